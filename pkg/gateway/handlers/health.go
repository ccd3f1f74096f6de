package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chrispomp/live-advisor/pkg/gateway/config"
	"github.com/chrispomp/live-advisor/pkg/gateway/lifecycle"
	"github.com/chrispomp/live-advisor/pkg/gateway/live/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports whether this instance should receive new sessions.
// While draining it returns 503 so load balancers take it out of rotation.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		Draining       bool     `json:"draining"`
		ActiveSessions int      `json:"active_sessions"`
		Model          string   `json:"model"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.Model == "" {
		issues = append(issues, "model is not configured")
	}
	if h.Config.APIKey == "" && h.Config.ProjectID == "" {
		issues = append(issues, "no backend credentials configured")
	}
	if h.Config.OutboundQueueSize <= 0 || h.Config.AudioQueueSize <= 0 {
		issues = append(issues, "queue sizes must be > 0")
	}
	if h.Config.WriteTimeout <= 0 || h.Config.PingInterval <= 0 {
		issues = append(issues, "write timeout and ping interval must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		Draining:       draining,
		ActiveSessions: h.Sessions.Count(),
		Model:          h.Config.Model,
		Issues:         issues,
	})
}
