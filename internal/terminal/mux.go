package terminal

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"
)

// StreamConn is the slice of a WebSocket connection the bridge needs.
// *websocket.Conn satisfies it; tests substitute an in-memory pipe.
type StreamConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// controlMsg is a JSON control frame from the client. Only resize is
// currently defined.
type controlMsg struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// sessionInfoMsg is the first frame sent to a freshly attached client so
// it can reconnect to the same session later.
type sessionInfoMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// connWriter adapts a StreamConn to io.Writer for use as a session's
// output sink. Writes block until the socket accepts the chunk, which is
// the backpressure contract: a stalled client suspends the PTY reader
// instead of growing a server-side queue.
type connWriter struct {
	conn StreamConn
	ctx  context.Context
}

func (w *connWriter) Write(p []byte) (int, error) {
	if err := w.conn.Write(w.ctx, websocket.MessageBinary, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// runBridge bridges conn to the session until the socket closes, the
// caller's context ends, or the session is torn down. On a plain socket
// close the session is left detached with the shell alive; when the
// session closed underneath us a human-readable trailer is written
// before the socket is closed.
func runBridge(ctx context.Context, sess *Session, conn StreamConn) error {
	bridgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := &connWriter{conn: conn, ctx: bridgeCtx}
	snapshot, err := sess.attach(conn, sink)
	if err != nil {
		return err
	}
	defer sess.detach(sink)

	info, _ := json.Marshal(sessionInfoMsg{Type: "session_info", SessionID: sess.ID})
	if err := conn.Write(bridgeCtx, websocket.MessageText, info); err != nil {
		return nil
	}
	if len(snapshot) > 0 {
		if err := conn.Write(bridgeCtx, websocket.MessageBinary, snapshot); err != nil {
			return nil
		}
	}

	// Unblock the inbound read when the session is torn down.
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-bridgeCtx.Done():
		}
	}()

	// Inbound: socket -> PTY. Binary frames are raw input; text frames
	// are JSON control messages, with non-JSON text forwarded as typed
	// input for clients that send plain strings.
	for {
		msgType, data, err := conn.Read(bridgeCtx)
		if err != nil {
			break
		}
		if len(data) > MaxInputMessageSize {
			log.Printf("[terminal] session %s: dropping oversized input (%d bytes)", sess.ID, len(data))
			continue
		}

		if msgType == websocket.MessageBinary {
			if _, err := sess.WriteInput(data); err != nil {
				break
			}
			continue
		}

		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "resize" {
			// Plain keystrokes sent as a text frame.
			if _, err := sess.WriteInput(data); err != nil {
				break
			}
			continue
		}
		if msg.Cols == 0 || msg.Rows == 0 {
			continue
		}
		cols, rows := msg.Cols, msg.Rows
		if cols > MaxResizeCols {
			cols = MaxResizeCols
		}
		if rows > MaxResizeRows {
			rows = MaxResizeRows
		}
		if err := sess.Resize(rows, cols); err != nil {
			log.Printf("[terminal] session %s: resize to %dx%d: %v", sess.ID, cols, rows, err)
		}
	}

	sess.detach(sink)

	if sess.State() == StateClosed {
		writeTrailer(conn, sess.CloseReason())
		return nil
	}
	return nil
}

// writeTrailer sends the final status line and closes the socket. The
// trailer format matches what the terminal widget prints on its own for
// connection events.
func writeTrailer(conn StreamConn, reason string) {
	if reason == "" {
		reason = ReasonShellExited
	}
	ctx, cancel := context.WithTimeout(context.Background(), trailerTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, []byte("\r\n*** "+reason+" ***\r\n"))
	_ = conn.Close(websocket.StatusNormalClosure, reason)
}
