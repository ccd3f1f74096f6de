// Package server wires the gateway's routes and middleware chain.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrispomp/live-advisor/pkg/gateway/config"
	"github.com/chrispomp/live-advisor/pkg/gateway/handlers"
	"github.com/chrispomp/live-advisor/pkg/gateway/lifecycle"
	"github.com/chrispomp/live-advisor/pkg/gateway/live/sessions"
	"github.com/chrispomp/live-advisor/pkg/gateway/metrics"
	"github.com/chrispomp/live-advisor/pkg/gateway/mw"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	dialer    upstream.Dialer
	metrics   *metrics.Metrics
	lifecycle *lifecycle.Lifecycle
	sessions  *sessions.Tracker

	metricsHandler http.Handler
}

type Options struct {
	Dialer upstream.Dialer

	// Registry defaults to the process-wide Prometheus registry.
	Registry *prometheus.Registry

	// Metrics defaults to a fresh set registered against Registry. Pass a
	// pre-built set when the dialer already holds one.
	Metrics *metrics.Metrics
}

func New(cfg config.Config, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(registry)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		dialer:    opts.Dialer,
		metrics:   m,
		lifecycle: &lifecycle.Lifecycle{},
		sessions:  sessions.NewTracker(),
		metricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	})
	s.mux.Handle("/metrics", s.metricsHandler)

	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:    s.cfg,
		Dialer:    s.dialer,
		Logger:    s.logger,
		Metrics:   s.metrics,
		Lifecycle: s.lifecycle,
		Sessions:  s.sessions,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg.AllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Lifecycle exposes the draining flag for graceful shutdown.
func (s *Server) Lifecycle() *lifecycle.Lifecycle {
	return s.lifecycle
}

// Sessions exposes the session tracker for graceful shutdown.
func (s *Server) Sessions() *sessions.Tracker {
	return s.sessions
}
