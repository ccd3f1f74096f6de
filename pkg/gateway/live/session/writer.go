package session

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriter is the write half of a websocket connection. It exists so the
// writer can be tested without a network connection.
type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundWriter is the only goroutine that touches the socket's write half.
// All outbound frames funnel through a single bounded channel so that frame
// order on the wire matches the order events were produced in. The session
// closes the channel once the producing loops have exited; the writer drains
// whatever is still queued before closing the connection, so a trailing
// interrupted or turn_complete is never dropped on a clean end.
type outboundWriter struct {
	ws     wsWriter
	ctx    context.Context
	frames <-chan []byte

	writeTimeout time.Duration
	pingInterval time.Duration
}

func (w *outboundWriter) run() error {
	pingTicker := time.NewTicker(w.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drainOnShutdown()
			w.closeConn()
			return nil

		case <-pingTicker.C:
			deadline := time.Now().Add(w.writeTimeout)
			if err := w.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}

		case frame, ok := <-w.frames:
			if !ok {
				w.closeConn()
				return nil
			}
			if err := w.writeFrame(frame); err != nil {
				return err
			}
		}
	}
}

// drainOnShutdown writes out every frame queued before the session ended.
// The queue is bounded and closed after the producers exit, so the drain
// terminates; a failed or expired write aborts it early.
func (w *outboundWriter) drainOnShutdown() {
	for frame := range w.frames {
		if err := w.writeFrame(frame); err != nil {
			return
		}
	}
}

func (w *outboundWriter) closeConn() {
	deadline := time.Now().Add(w.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = w.ws.Close()
}

func (w *outboundWriter) writeFrame(frame []byte) error {
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := w.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
