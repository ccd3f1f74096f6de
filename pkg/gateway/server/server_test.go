package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chrispomp/live-advisor/pkg/gateway/config"
	"github.com/chrispomp/live-advisor/pkg/gateway/live/protocol"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

type noDialer struct{}

func (noDialer) Dial(ctx context.Context, sessionID string) (upstream.Stream, error) {
	return nil, fmt.Errorf("no backend in tests")
}

type idleStream struct {
	events    chan upstream.Event
	closeOnce sync.Once
}

func (s *idleStream) SendAudio(ctx context.Context, pcm []byte) error { return nil }
func (s *idleStream) Events() <-chan upstream.Event                   { return s.events }
func (s *idleStream) Err() error                                      { return nil }

func (s *idleStream) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

type idleDialer struct{}

func (idleDialer) Dial(ctx context.Context, sessionID string) (upstream.Stream, error) {
	return &idleStream{events: make(chan upstream.Event, 1)}, nil
}

func testConfig() config.Config {
	return config.Config{
		Model:             "gemini-2.0-flash-live-001",
		APIKey:            "test-key",
		OutboundQueueSize: 128,
		AudioQueueSize:    64,
		MaxSessions:       4,
		WriteTimeout:      5 * time.Second,
		PingInterval:      20 * time.Second,
	}
}

func testServer() *Server {
	return New(testConfig(), nil, Options{Dialer: noDialer{}})
}

func TestRoutes(t *testing.T) {
	srv := httptest.NewServer(testServer().Handler())
	defer srv.Close()

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.wantStatus {
			t.Fatalf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
		}
	}
}

func TestHandlerSetsRequestID(t *testing.T) {
	srv := httptest.NewServer(testServer().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	id := resp.Header.Get("X-Request-ID")
	if !strings.HasPrefix(id, "req_") {
		t.Fatalf("X-Request-ID = %q, want a req_ prefix", id)
	}
}

func TestLiveUpgradeWorksThroughMiddleware(t *testing.T) {
	srv := httptest.NewServer(New(testConfig(), nil, Options{Dialer: idleDialer{}}).Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial through middleware chain: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	var msg protocol.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	if msg.Type != protocol.TypeReady {
		t.Fatalf("first frame type = %q, want %q", msg.Type, protocol.TypeReady)
	}
}

func TestLiveRouteRejectsPost(t *testing.T) {
	srv := httptest.NewServer(testServer().Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/live", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/live: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
