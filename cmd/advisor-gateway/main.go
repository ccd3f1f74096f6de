// Command advisor-gateway serves the live advisor websocket relay.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chrispomp/live-advisor/internal/dotenv"
	"github.com/chrispomp/live-advisor/pkg/gateway/config"
	"github.com/chrispomp/live-advisor/pkg/gateway/metrics"
	gatewayserver "github.com/chrispomp/live-advisor/pkg/gateway/server"
	"github.com/chrispomp/live-advisor/pkg/gateway/tools/advisortools"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	newDialer    func(context.Context, upstream.GeminiConfig) (upstream.Dialer, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig: config.LoadFromEnv,
		newDialer: func(ctx context.Context, cfg upstream.GeminiConfig) (upstream.Dialer, error) {
			return upstream.NewGeminiDialer(ctx, cfg)
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func systemInstruction(cfg config.Config) (string, error) {
	if cfg.SystemPromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(cfg.SystemPromptFile)
	if err != nil {
		return "", fmt.Errorf("read system prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func runGateway(ctx context.Context, stderr io.Writer, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.newDialer == nil {
		return errors.New("missing newDialer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	instruction, err := systemInstruction(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	dialer, err := deps.newDialer(ctx, upstream.GeminiConfig{
		Model:             cfg.Model,
		Voice:             cfg.Voice,
		APIKey:            cfg.APIKey,
		ProjectID:         cfg.ProjectID,
		Location:          cfg.Location,
		SystemInstruction: instruction,
		InputSampleRateHz: cfg.InputSampleRateHz,
		Tools:             advisortools.Default(),
		Logger:            logger,
		Metrics:           m,
	})
	if err != nil {
		return fmt.Errorf("init backend dialer: %w", err)
	}

	gw := gatewayserver.New(cfg, logger, gatewayserver.Options{
		Dialer:   dialer,
		Registry: registry,
		Metrics:  m,
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway", "addr", cfg.Addr, "model", cfg.Model, "voice", cfg.Voice)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.Lifecycle().SetDraining(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.Sessions().Wait(waitCtx) {
		canceled := gw.Sessions().CancelAll()
		logger.Warn("canceled sessions past the grace period", "count", canceled)
		gw.Sessions().Wait(nil)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "advisor-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, stderr, deps); err != nil {
		fmt.Fprintf(stderr, "advisor-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
