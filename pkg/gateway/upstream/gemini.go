package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/genai"

	"github.com/chrispomp/live-advisor/pkg/gateway/metrics"
	"github.com/chrispomp/live-advisor/pkg/gateway/tools/advisortools"
)

// DefaultSystemInstruction is the advisor persona used when no override is
// configured.
const DefaultSystemInstruction = "You are a friendly and professional wealth advisory voice assistant. " +
	"Answer questions about portfolios, markets, and financial planning concisely, in a tone suited for " +
	"spoken conversation. Use the available tools to look up client portfolios, quotes, order status, " +
	"market news, and the research knowledge base rather than inventing figures. Do not give individualized " +
	"legal or tax advice; suggest speaking with the client's advisor for decisions."

type GeminiConfig struct {
	Model string
	Voice string

	// Exactly one auth path is used: APIKey for the public API, or
	// ProjectID+Location for Vertex.
	APIKey    string
	ProjectID string
	Location  string

	SystemInstruction string
	InputSampleRateHz int

	Tools   *advisortools.Registry
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// EventBuffer is the per-stream event channel capacity.
	EventBuffer int
}

// GeminiDialer opens Gemini Live streams. One dialer is shared by all
// sessions; each Dial creates an independent backend conversation.
type GeminiDialer struct {
	cfg    GeminiConfig
	client *genai.Client
}

func NewGeminiDialer(ctx context.Context, cfg GeminiConfig) (*GeminiDialer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Voice == "" {
		return nil, fmt.Errorf("voice is required")
	}
	if cfg.APIKey == "" && cfg.ProjectID == "" {
		return nil, fmt.Errorf("an api key or a project id is required")
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	if cfg.InputSampleRateHz <= 0 {
		cfg.InputSampleRateHz = 16000
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	clientCfg := &genai.ClientConfig{}
	if cfg.APIKey != "" {
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	} else {
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.ProjectID
		clientCfg.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiDialer{cfg: cfg, client: client}, nil
}

func (d *GeminiDialer) Dial(ctx context.Context, sessionID string) (Stream, error) {
	liveCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: d.cfg.Voice},
			},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: d.cfg.SystemInstruction}},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if decls := d.cfg.Tools.Declarations(); len(decls) > 0 {
		liveCfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	session, err := d.client.Live.Connect(ctx, d.cfg.Model, liveCfg)
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}

	// The stream context outlives the dial request and is cancelled by
	// Close, so tool executions cannot outlive their session.
	sctx, cancel := context.WithCancel(context.Background())
	s := &geminiStream{
		session:   session,
		tools:     d.cfg.Tools,
		metrics:   d.cfg.Metrics,
		logger:    d.cfg.Logger.With("component", "gemini_stream", "session_id", sessionID),
		audioMIME: fmt.Sprintf("audio/pcm;rate=%d", d.cfg.InputSampleRateHz),
		events:    make(chan Event, d.cfg.EventBuffer),
		ctx:       sctx,
		cancel:    cancel,
	}
	go s.receiveLoop()
	return s, nil
}

type geminiStream struct {
	session   *genai.Session
	tools     *advisortools.Registry
	metrics   *metrics.Metrics
	logger    *slog.Logger
	audioMIME string

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once

	errMu sync.Mutex
	mErr  error
}

func (s *geminiStream) SendAudio(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.ctx.Done():
		return fmt.Errorf("backend stream is closed")
	default:
	}
	if err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: pcm, MIMEType: s.audioMIME},
	}); err != nil {
		return fmt.Errorf("backend send audio: %w", err)
	}
	return nil
}

func (s *geminiStream) Events() <-chan Event {
	return s.events
}

func (s *geminiStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.mErr
}

func (s *geminiStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.session.Close()
	})
	return nil
}

func (s *geminiStream) receiveLoop() {
	defer close(s.events)

	for {
		msg, err := s.session.Receive()
		if err != nil {
			select {
			case <-s.ctx.Done():
				// Close() already tore the session down; not an error.
			default:
				if !errors.Is(err, io.EOF) {
					s.setErr(fmt.Errorf("backend receive: %w", err))
					s.logger.Warn("backend stream ended with error", "error", err)
				}
			}
			return
		}

		if msg.ToolCall != nil {
			s.handleToolCall(msg.ToolCall)
		}

		for _, ev := range normalizeServerMessage(msg) {
			select {
			case s.events <- ev:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// handleToolCall executes requested functions inline and replies before the
// model continues the turn.
func (s *geminiStream) handleToolCall(tc *genai.LiveServerToolCall) {
	if tc == nil || len(tc.FunctionCalls) == 0 {
		return
	}

	responses := runToolCalls(s.ctx, s.tools, s.metrics, s.logger, tc.FunctionCalls)
	if len(responses) == 0 {
		return
	}
	if err := s.session.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses}); err != nil {
		s.logger.Warn("failed to send tool response", "error", err)
	}
}

// runToolCalls executes tools under the stream's context so a slow tool is
// cut off when the session ends. Tool failures surface to the model as error
// payloads, never as stream errors.
func runToolCalls(ctx context.Context, reg *advisortools.Registry, m *metrics.Metrics, logger *slog.Logger, calls []*genai.FunctionCall) []*genai.FunctionResponse {
	responses := make([]*genai.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		if call == nil {
			continue
		}
		result := reg.Execute(ctx, call.Name, call.Args)
		ok := result["error"] == nil
		m.RecordToolCall(call.Name, ok)
		logger.Info("tool call", "tool", call.Name, "ok", ok)
		responses = append(responses, &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: result,
		})
	}
	return responses
}

func (s *geminiStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.mErr == nil {
		s.mErr = err
	}
}
