// Package session relays one websocket client conversation to one backend
// audio stream and back.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chrispomp/live-advisor/pkg/gateway/live/protocol"
	"github.com/chrispomp/live-advisor/pkg/gateway/metrics"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

// Conn is the subset of *websocket.Conn the relay needs.
type Conn interface {
	wsWriter
	ReadMessage() (messageType int, data []byte, err error)
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

type Config struct {
	// MaxMessageBytes caps a single websocket message. Zero disables the cap.
	MaxMessageBytes int64
	// MaxAudioFrameBytes caps a single decoded audio frame. Zero disables
	// the cap; oversized frames are logged and skipped, not fatal.
	MaxAudioFrameBytes int

	// OutboundQueueSize bounds frames waiting for the socket writer.
	OutboundQueueSize int
	// AudioQueueSize bounds client audio waiting for the backend.
	AudioQueueSize int

	WriteTimeout time.Duration
	PingInterval time.Duration
	// ReadTimeout is the pong-refreshed read deadline. Zero disables it.
	ReadTimeout time.Duration
}

type Dependencies struct {
	Conn    Conn
	Backend upstream.Stream
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	SessionID string
}

// Session owns one relay conversation. Four goroutines cooperate under one
// context: the socket read loop, the ingest loop that decodes client frames,
// the forward loop that pushes audio upstream, and the consume loop that
// turns backend events into outbound frames. A single writer goroutine owns
// the socket's write half. The first failing duty cancels the rest.
type Session struct {
	conn    Conn
	backend upstream.Stream
	logger  *slog.Logger
	metrics *metrics.Metrics

	id  string
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	outbound chan []byte
	turns    *turnTracker
}

func New(ctx context.Context, cfg Config, deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("a websocket connection is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("a backend stream is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.OutboundQueueSize <= 0 {
		cfg.OutboundQueueSize = 128
	}
	if cfg.AudioQueueSize <= 0 {
		cfg.AudioQueueSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}

	sctx, cancel := context.WithCancel(ctx)
	return &Session{
		conn:     deps.Conn,
		backend:  deps.Backend,
		logger:   deps.Logger.With("component", "session", "session_id", deps.SessionID),
		metrics:  deps.Metrics,
		id:       deps.SessionID,
		cfg:      cfg,
		ctx:      sctx,
		cancel:   cancel,
		outbound: make(chan []byte, cfg.OutboundQueueSize),
		turns:    newTurnTracker(),
	}, nil
}

// Cancel tears the session down from outside, for example during shutdown.
func (s *Session) Cancel() {
	s.cancel()
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

// Run blocks until the session ends. It returns nil for a clean end (client
// close or backend finishing) and the first failure otherwise.
func (s *Session) Run() error {
	defer s.cancel()

	started := time.Now()
	s.metrics.RecordSessionStart()
	defer func() {
		s.metrics.RecordSessionEnd(time.Since(started).Seconds())
	}()

	if s.cfg.MaxMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	writerErrCh := make(chan error, 1)
	go func() {
		w := &outboundWriter{
			ws:           s.conn,
			ctx:          s.ctx,
			frames:       s.outbound,
			writeTimeout: s.cfg.WriteTimeout,
			pingInterval: s.cfg.PingInterval,
		}
		writerErrCh <- w.run()
	}()

	readCh := make(chan inboundFrame, 64)
	go s.readLoop(readCh)

	audioCh := make(chan []byte, s.cfg.AudioQueueSize)

	errCh := make(chan error, 3)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		errCh <- s.ingestLoop(readCh, audioCh)
	}()
	go func() {
		defer wg.Done()
		errCh <- s.forwardLoop(audioCh)
	}()
	go func() {
		defer wg.Done()
		errCh <- s.consumeLoop()
	}()

	var firstErr error
	select {
	case firstErr = <-errCh:
	case err := <-writerErrCh:
		writerErrCh = nil
		if err != nil {
			firstErr = fmt.Errorf("client write: %w", err)
		}
	case <-s.ctx.Done():
	}

	s.cancel()
	_ = s.backend.Close()
	wg.Wait()

	// All producers have exited; closing the queue lets the writer drain the
	// remaining frames and exit. Each write carries a deadline, so a stuck
	// client aborts the drain rather than stalling teardown.
	close(s.outbound)
	if writerErrCh != nil {
		<-writerErrCh
	}

	if firstErr != nil {
		s.logger.Warn("session ended with error", "error", firstErr)
	} else {
		s.logger.Info("session ended")
	}
	return firstErr
}

// readLoop is the only reader of the websocket. It exits when the connection
// errors or closes; the final frame carries the error.
func (s *Session) readLoop(readCh chan<- inboundFrame) {
	defer close(readCh)
	for {
		messageType, data, err := s.conn.ReadMessage()
		select {
		case readCh <- inboundFrame{messageType: messageType, data: data, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) ingestLoop(readCh <-chan inboundFrame, audioCh chan<- []byte) error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case frame, ok := <-readCh:
			if !ok {
				return nil
			}
			if frame.err != nil {
				if isExpectedClose(frame.err) {
					s.logger.Info("client disconnected")
					return nil
				}
				return fmt.Errorf("client read: %w", frame.err)
			}
			if frame.messageType != websocket.TextMessage {
				s.logger.Warn("ignoring non-text frame", "message_type", frame.messageType)
				continue
			}

			decoded, err := protocol.DecodeClientMessage(frame.data)
			if err != nil {
				s.metrics.RecordMalformedMessage()
				s.logger.Warn("skipping malformed client frame", "error", err)
				continue
			}

			switch msg := decoded.(type) {
			case protocol.ClientAudio:
				s.metrics.RecordClientFrame(protocol.TypeClientAudio)
				if s.cfg.MaxAudioFrameBytes > 0 && len(msg.PCM) > s.cfg.MaxAudioFrameBytes {
					s.logger.Warn("skipping oversized audio frame",
						"bytes", len(msg.PCM), "limit", s.cfg.MaxAudioFrameBytes)
					continue
				}
				select {
				case audioCh <- msg.PCM:
				case <-s.ctx.Done():
					return nil
				}
			case protocol.ClientEnd:
				s.metrics.RecordClientFrame(protocol.TypeClientEnd)
				s.logger.Info("client signaled end of audio")
			case protocol.ClientText:
				s.metrics.RecordClientFrame(protocol.TypeClientText)
				s.logger.Info("client text received, not forwarded", "bytes", len(msg.Text))
			}
		}
	}
}

func (s *Session) forwardLoop(audioCh <-chan []byte) error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case pcm := <-audioCh:
			if err := s.backend.SendAudio(s.ctx, pcm); err != nil {
				if s.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("backend send: %w", err)
			}
		}
	}
}

func (s *Session) consumeLoop() error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case ev, ok := <-s.backend.Events():
			if !ok {
				if err := s.backend.Err(); err != nil {
					return fmt.Errorf("backend stream: %w", err)
				}
				s.logger.Info("backend stream ended")
				return nil
			}
			s.metrics.RecordBackendEvent(ev.Kind.String())
			for _, msg := range s.turns.handle(ev) {
				if err := s.enqueue(msg); err != nil {
					return err
				}
			}
		}
	}
}

// enqueue marshals one outbound frame and hands it to the writer. The send
// blocks when the queue is full so backend events slow down instead of
// arriving out of order or getting dropped.
func (s *Session) enqueue(msg protocol.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", msg.Type, err)
	}
	select {
	case s.outbound <- data:
		return nil
	case <-s.ctx.Done():
		return nil
	}
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
