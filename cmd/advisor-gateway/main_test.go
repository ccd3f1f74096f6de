package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/chrispomp/live-advisor/pkg/gateway/config"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

type stubDialer struct{}

func (stubDialer) Dial(ctx context.Context, sessionID string) (upstream.Stream, error) {
	return nil, fmt.Errorf("no backend in tests")
}

func testConfig() config.Config {
	return config.Config{
		Addr:                "127.0.0.1:0",
		Model:               "gemini-2.0-flash-live-001",
		Voice:               "Aoede",
		APIKey:              "test-key",
		OutboundQueueSize:   128,
		AudioQueueSize:      64,
		WriteTimeout:        time.Second,
		PingInterval:        20 * time.Second,
		ReadHeaderTimeout:   time.Second,
		ShutdownGracePeriod: time.Second,
	}
}

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, gatewayDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newDialer: func(context.Context, upstream.GeminiConfig) (upstream.Dialer, error) {
			t.Fatalf("newDialer should not be called when config load fails")
			return nil, nil
		},
		signalNotify: func(chan<- os.Signal, ...os.Signal) {},
		signalStop:   func(chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if stderr.String() == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunGateway_RequiresDependencies(t *testing.T) {
	t.Parallel()

	err := runGateway(context.Background(), &bytes.Buffer{}, gatewayDeps{})
	if err == nil {
		t.Fatalf("expected an error for missing dependencies")
	}
}

func TestRunGateway_ShutsDownOnSignal(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var sigCh chan<- os.Signal

	deps := gatewayDeps{
		loadConfig: func() (config.Config, error) { return testConfig(), nil },
		newDialer: func(context.Context, upstream.GeminiConfig) (upstream.Dialer, error) {
			return stubDialer{}, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			mu.Lock()
			sigCh = c
			mu.Unlock()
		},
		signalStop: func(chan<- os.Signal) {},
	}

	done := make(chan error, 1)
	go func() {
		done <- runGateway(context.Background(), &bytes.Buffer{}, deps)
	}()

	// Let the server start, then deliver the shutdown signal.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	c := sigCh
	mu.Unlock()
	if c == nil {
		t.Fatalf("signalNotify was never called")
	}
	c <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runGateway returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runGateway did not shut down after the signal")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
}

func TestSystemInstruction_ReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("You are a test advisor.\n"), 0o600); err != nil {
		t.Fatalf("write prompt file: %v", err)
	}

	cfg := config.Config{SystemPromptFile: path}
	got, err := systemInstruction(cfg)
	if err != nil {
		t.Fatalf("systemInstruction: %v", err)
	}
	if got != "You are a test advisor." {
		t.Fatalf("instruction = %q", got)
	}

	cfg.SystemPromptFile = filepath.Join(t.TempDir(), "missing.txt")
	if _, err := systemInstruction(cfg); err == nil {
		t.Fatalf("expected an error for a missing prompt file")
	}

	cfg.SystemPromptFile = ""
	got, err = systemInstruction(cfg)
	if err != nil || got != "" {
		t.Fatalf("empty path should yield empty instruction, got %q, %v", got, err)
	}
}
