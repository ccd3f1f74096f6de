package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chrispomp/live-advisor/pkg/gateway/config"
	"github.com/chrispomp/live-advisor/pkg/gateway/lifecycle"
	"github.com/chrispomp/live-advisor/pkg/gateway/live/protocol"
	"github.com/chrispomp/live-advisor/pkg/gateway/live/session"
	"github.com/chrispomp/live-advisor/pkg/gateway/live/sessions"
	"github.com/chrispomp/live-advisor/pkg/gateway/metrics"
	"github.com/chrispomp/live-advisor/pkg/gateway/mw"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

// LiveHandler accepts /v1/live websocket sessions and runs the relay until
// either side ends the conversation.
type LiveHandler struct {
	Config    config.Config
	Dialer    upstream.Dialer
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", reqID)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeJSONError(w, http.StatusServiceUnavailable, "draining", "gateway is draining", reqID)
		return
	}
	if h.Config.MaxSessions > 0 && h.Sessions.Count() >= h.Config.MaxSessions {
		writeJSONError(w, http.StatusServiceUnavailable, "at_capacity", "session capacity reached", reqID)
		return
	}
	if !h.originAllowed(r) {
		writeJSONError(w, http.StatusForbidden, "forbidden_origin", "origin is not allowed", reqID)
		return
	}

	logger := h.logger().With("request_id", reqID)

	upgrader := websocket.Upgrader{
		// Origin is checked above against the configured allowlist.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := "s_" + randHex(8)
	logger = logger.With("session_id", sessionID)

	backend, err := h.Dialer.Dial(r.Context(), sessionID)
	if err != nil {
		logger.Error("backend dial failed", "error", err)
		h.closeWithReason(conn, websocket.CloseInternalServerErr, "backend unavailable")
		return
	}
	defer backend.Close()

	// The ready frame is the first frame on the wire, written before the
	// session writer takes over the connection.
	if err := h.writeReady(conn); err != nil {
		logger.Warn("failed to write ready frame", "error", err)
		return
	}

	sess, err := session.New(r.Context(), session.Config{
		MaxMessageBytes:    h.Config.MaxMessageBytes,
		MaxAudioFrameBytes: h.Config.MaxAudioFrameBytes,
		OutboundQueueSize:  h.Config.OutboundQueueSize,
		AudioQueueSize:     h.Config.AudioQueueSize,
		WriteTimeout:       h.Config.WriteTimeout,
		PingInterval:       h.Config.PingInterval,
		ReadTimeout:        h.Config.ReadTimeout,
	}, session.Dependencies{
		Conn:      conn,
		Backend:   backend,
		Logger:    logger,
		Metrics:   h.Metrics,
		SessionID: sessionID,
	})
	if err != nil {
		logger.Error("session setup failed", "error", err)
		h.closeWithReason(conn, websocket.CloseInternalServerErr, "session setup failed")
		return
	}

	unregister := h.Sessions.Register(sessionID, sess.Cancel)
	defer unregister()

	logger.Info("session started")
	if err := sess.Run(); err != nil {
		logger.Warn("session failed", "error", err)
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients send no origin.
		return true
	}
	if len(h.Config.AllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.AllowedOrigins[origin]
	return ok
}

func (h LiveHandler) writeReady(conn *websocket.Conn) error {
	deadline := time.Now().Add(h.Config.WriteTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(protocol.Ready(h.Config.OutputSampleRateHz)); err != nil {
		return err
	}
	return conn.SetWriteDeadline(time.Time{})
}

func (h LiveHandler) closeWithReason(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(h.Config.WriteTimeout)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
}

func (h LiveHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}})
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000000")))
	}
	return hex.EncodeToString(b)
}
