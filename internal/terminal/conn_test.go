package terminal

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// fakeMsg is one frame exchanged with a fakeConn.
type fakeMsg struct {
	typ  websocket.MessageType
	data []byte
}

// fakeConn is an in-memory StreamConn. Frames pushed via send are
// delivered to Read; frames the bridge writes are collected for
// inspection. Setting stall makes Write block until the connection
// closes, simulating a consumer that stops reading.
type fakeConn struct {
	in     chan fakeMsg
	closed chan struct{}

	mu        sync.Mutex
	out       []fakeMsg
	stall     bool
	closeOnce sync.Once
	closeCode websocket.StatusCode
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan fakeMsg, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case m, ok := <-f.in:
		if !ok {
			return 0, nil, net.ErrClosed
		}
		return m.typ, m.data, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, typ websocket.MessageType, p []byte) error {
	f.mu.Lock()
	stalled := f.stall
	f.mu.Unlock()
	if stalled {
		select {
		case <-f.closed:
			return net.ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	data := make([]byte, len(p))
	copy(data, p)
	f.mu.Lock()
	f.out = append(f.out, fakeMsg{typ, data})
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close(code websocket.StatusCode, reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeCode = code
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

// send queues a binary input frame for the bridge to read.
func (f *fakeConn) send(data string) {
	f.in <- fakeMsg{websocket.MessageBinary, []byte(data)}
}

// sendText queues a text frame (control messages, plain keystrokes).
func (f *fakeConn) sendText(data string) {
	f.in <- fakeMsg{websocket.MessageText, []byte(data)}
}

// disconnect simulates the client going away.
func (f *fakeConn) disconnect() {
	f.Close(websocket.StatusGoingAway, "client disconnect")
}

// output returns everything written to the conn so far, concatenated.
func (f *fakeConn) output() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	for _, m := range f.out {
		b.Write(m.data)
	}
	return b.String()
}

// textFrames returns the text frames written to the conn.
func (f *fakeConn) textFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var frames []string
	for _, m := range f.out {
		if m.typ == websocket.MessageText {
			frames = append(frames, string(m.data))
		}
	}
	return frames
}

func (f *fakeConn) waitOutput(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(f.output(), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("conn output never contained %q; got %q", want, f.output())
}
