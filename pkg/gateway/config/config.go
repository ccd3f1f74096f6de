package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Gemini Live backend.
	Model     string
	Voice     string
	APIKey    string
	ProjectID string
	Location  string

	// Optional path to a file overriding the built-in system instruction.
	SystemPromptFile string

	// Audio shape. Raw PCM, 16-bit signed little-endian, mono.
	InputSampleRateHz  int
	OutputSampleRateHz int

	// Per-session limits.
	MaxMessageBytes    int64
	MaxAudioFrameBytes int
	OutboundQueueSize  int
	AudioQueueSize     int
	MaxSessions        int

	// WebSocket keepalive and write discipline.
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadTimeout  time.Duration // 0 disables the inbound idle deadline

	// CORS / browser origin allowlist. Empty => same-origin only.
	AllowedOrigins map[string]struct{}

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	LogLevel slog.Level
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("LIVE_ADVISOR_ADDR", ":8080"),
		Model:               envOr("LIVE_ADVISOR_MODEL", "gemini-2.0-flash-live-preview-04-09"),
		Voice:               envOr("LIVE_ADVISOR_VOICE", "Puck"),
		APIKey:              strings.TrimSpace(os.Getenv("LIVE_ADVISOR_API_KEY")),
		ProjectID:           strings.TrimSpace(os.Getenv("LIVE_ADVISOR_PROJECT_ID")),
		Location:            envOr("LIVE_ADVISOR_LOCATION", "us-central1"),
		SystemPromptFile:    strings.TrimSpace(os.Getenv("LIVE_ADVISOR_SYSTEM_PROMPT_FILE")),
		InputSampleRateHz:   envIntOr("LIVE_ADVISOR_INPUT_SAMPLE_RATE", 16000),
		OutputSampleRateHz:  envIntOr("LIVE_ADVISOR_OUTPUT_SAMPLE_RATE", 24000),
		MaxMessageBytes:     envInt64Or("LIVE_ADVISOR_MAX_MESSAGE_BYTES", 256<<10), // 256 KiB
		MaxAudioFrameBytes:  envIntOr("LIVE_ADVISOR_MAX_AUDIO_FRAME_BYTES", 32<<10),
		OutboundQueueSize:   envIntOr("LIVE_ADVISOR_OUTBOUND_QUEUE", 128),
		AudioQueueSize:      envIntOr("LIVE_ADVISOR_AUDIO_QUEUE", 64),
		MaxSessions:         envIntOr("LIVE_ADVISOR_MAX_SESSIONS", 32),
		WriteTimeout:        envDurationOr("LIVE_ADVISOR_WRITE_TIMEOUT", 5*time.Second),
		PingInterval:        envDurationOr("LIVE_ADVISOR_PING_INTERVAL", 20*time.Second),
		ReadTimeout:         envDurationOr("LIVE_ADVISOR_READ_TIMEOUT", 0),
		AllowedOrigins:      make(map[string]struct{}),
		ReadHeaderTimeout:   envDurationOr("LIVE_ADVISOR_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("LIVE_ADVISOR_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	level, err := parseLogLevel(envOr("LIVE_ADVISOR_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	for _, origin := range splitCSV(os.Getenv("LIVE_ADVISOR_CORS_ORIGINS")) {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.Addr) == "" {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_ADDR must not be empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_VOICE must not be empty")
	}
	if cfg.APIKey == "" && cfg.ProjectID == "" {
		return Config{}, fmt.Errorf("one of LIVE_ADVISOR_API_KEY or LIVE_ADVISOR_PROJECT_ID must be set")
	}
	if cfg.ProjectID != "" && strings.TrimSpace(cfg.Location) == "" {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_LOCATION must not be empty when LIVE_ADVISOR_PROJECT_ID is set")
	}
	if cfg.InputSampleRateHz <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_INPUT_SAMPLE_RATE must be > 0")
	}
	if cfg.OutputSampleRateHz <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_OUTPUT_SAMPLE_RATE must be > 0")
	}
	if cfg.MaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_OUTBOUND_QUEUE must be > 0")
	}
	if cfg.AudioQueueSize <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_AUDIO_QUEUE must be > 0")
	}
	if cfg.MaxSessions <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_MAX_SESSIONS must be > 0")
	}
	if cfg.WriteTimeout <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_WRITE_TIMEOUT must be > 0")
	}
	if cfg.PingInterval <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_PING_INTERVAL must be > 0")
	}
	if cfg.ReadTimeout < 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_READ_TIMEOUT must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("LIVE_ADVISOR_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LIVE_ADVISOR_LOG_LEVEL must be one of debug|info|warn|error")
	}
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
