package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Sink receives ordered PCM for playback. Cut stops whatever is in flight
// without closing the sink; after a Cut the sink accepts new audio again.
type Sink interface {
	Write(pcm []byte) error
	Cut() error
	Close() error
}

type playbackConfig struct {
	sampleRateHz   int
	channels       int
	bytesPerSample int
	tick           time.Duration
}

// playbackQueue buffers model audio and drains it to the sink in realtime
// sized ticks, so an interruption can discard audio that has not been
// played yet.
type playbackQueue struct {
	cfg  playbackConfig
	sink Sink

	mu     sync.Mutex
	buffer bytes.Buffer

	ctx    context.Context
	cancel context.CancelFunc
	errCh  chan error
}

func newPlaybackQueue(cfg playbackConfig, sink Sink) *playbackQueue {
	if cfg.sampleRateHz <= 0 {
		cfg.sampleRateHz = defaultOutSampleRateHz
	}
	if cfg.channels <= 0 {
		cfg.channels = 1
	}
	if cfg.bytesPerSample <= 0 {
		cfg.bytesPerSample = 2
	}
	if cfg.tick <= 0 {
		cfg.tick = 20 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &playbackQueue{
		cfg:    cfg,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
		errCh:  make(chan error, 1),
	}
	go q.run()
	return q
}

func (q *playbackQueue) ErrCh() <-chan error {
	return q.errCh
}

// Enqueue appends decoded PCM for playback in arrival order.
func (q *playbackQueue) Enqueue(pcm []byte) {
	if q == nil || len(pcm) == 0 {
		return
	}
	q.mu.Lock()
	_, _ = q.buffer.Write(pcm)
	q.mu.Unlock()
}

// Interrupt discards buffered audio and cuts in-flight output. Calling it
// with nothing queued is a no-op.
func (q *playbackQueue) Interrupt() {
	if q == nil {
		return
	}
	q.mu.Lock()
	had := q.buffer.Len() > 0
	q.buffer.Reset()
	q.mu.Unlock()

	if q.sink != nil {
		if err := q.sink.Cut(); err != nil && had {
			q.emitErr(err)
		}
	}
}

// BufferedBytes reports how much audio is waiting to be played.
func (q *playbackQueue) BufferedBytes() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buffer.Len()
}

func (q *playbackQueue) Close() error {
	if q == nil {
		return nil
	}
	q.cancel()
	if q.sink != nil {
		return q.sink.Close()
	}
	return nil
}

func (q *playbackQueue) run() {
	ticker := time.NewTicker(q.cfg.tick)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.onTick()
		}
	}
}

func (q *playbackQueue) onTick() {
	bytesPerSecond := int64(q.cfg.sampleRateHz * q.cfg.channels * q.cfg.bytesPerSample)
	if bytesPerSecond <= 0 {
		return
	}
	bytesPerTick := bytesPerSecond * int64(q.cfg.tick) / int64(time.Second)
	if bytesPerTick <= 0 {
		bytesPerTick = 1
	}

	var toPlay []byte
	q.mu.Lock()
	if q.buffer.Len() > 0 {
		n := int(bytesPerTick)
		if n > q.buffer.Len() {
			n = q.buffer.Len()
		}
		toPlay = make([]byte, n)
		_, _ = io.ReadFull(&q.buffer, toPlay)
	}
	q.mu.Unlock()

	if len(toPlay) > 0 && q.sink != nil {
		if err := q.sink.Write(toPlay); err != nil {
			q.emitErr(err)
		}
	}
}

func (q *playbackQueue) emitErr(err error) {
	if err == nil {
		return
	}
	select {
	case q.errCh <- err:
	default:
	}
}

// ffplaySpeaker plays raw PCM by piping it into an ffplay subprocess.
type ffplaySpeaker struct {
	path       string
	sampleRate int
	channels   int
	volume     int

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newFFPlaySpeaker(path string, sampleRate, channels, volume int) *ffplaySpeaker {
	if path == "" {
		path = "ffplay"
	}
	if volume <= 0 {
		volume = 80
	}
	return &ffplaySpeaker{path: path, sampleRate: sampleRate, channels: channels, volume: volume}
}

func (s *ffplaySpeaker) ensureRunningLocked() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}
	// ffplay does not accept ffmpeg-style `-ac` (channels); use `-ch_layout`.
	chLayout := "mono"
	if s.channels == 2 {
		chLayout = "stereo"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-volume", fmt.Sprintf("%d", s.volume),
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", chLayout,
		"-ar", fmt.Sprintf("%d", s.sampleRate),
		"-i", "-",
	}
	cmd := exec.Command(s.path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

func (s *ffplaySpeaker) Write(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRunningLocked(); err != nil {
		return err
	}
	_, err := s.stdin.Write(pcm)
	return err
}

// Cut restarts ffplay so audio already written to its pipe stops playing.
func (s *ffplaySpeaker) Cut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return s.ensureRunningLocked()
}

func (s *ffplaySpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *ffplaySpeaker) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}
