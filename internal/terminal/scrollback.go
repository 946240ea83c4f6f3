package terminal

import "sync"

// defaultScrollbackSize is the default replay buffer cap (256 KB).
const defaultScrollbackSize = 256 * 1024

// ScrollbackBuffer stores recent shell output for replay when a client
// reattaches to a detached session. It is bounded: once the buffer
// exceeds maxLen, older data is trimmed from the front. This is a replay
// window only, never a transport queue, so it cannot grow with a slow
// client.
type ScrollbackBuffer struct {
	mu     sync.Mutex
	data   []byte
	maxLen int
	closed bool
}

// NewScrollbackBuffer creates a buffer capped at maxLen bytes.
// maxLen <= 0 uses defaultScrollbackSize.
func NewScrollbackBuffer(maxLen int) *ScrollbackBuffer {
	if maxLen <= 0 {
		maxLen = defaultScrollbackSize
	}
	return &ScrollbackBuffer{maxLen: maxLen}
}

// Write appends output, trimming from the front past the cap.
func (b *ScrollbackBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.data = append(b.data, p...)
	if len(b.data) > b.maxLen {
		b.data = b.data[len(b.data)-b.maxLen:]
	}
}

// Snapshot returns a copy of the current contents.
func (b *ScrollbackBuffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the current buffered length.
func (b *ScrollbackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Close releases the buffer; further writes are dropped.
func (b *ScrollbackBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.data = nil
}
