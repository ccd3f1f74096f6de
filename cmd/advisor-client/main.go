// Command advisor-client is a terminal client for the live advisor gateway.
// It streams PCM audio from a file or stdin, plays the model's reply through
// ffplay, and prints transcripts as they arrive.
package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chrispomp/live-advisor/pkg/gateway/live/protocol"
)

const (
	audioInSampleRateHz = 16000

	// defaultOutSampleRateHz is used when the ready frame does not
	// advertise the gateway's egress rate.
	defaultOutSampleRateHz = 24000
)

func playbackRate(advertised int) int {
	if advertised > 0 {
		return advertised
	}
	return defaultOutSampleRateHz
}

type options struct {
	gateway    string
	audioPath  string
	frameMS    int
	noSpeaker  bool
	ffplayPath string
	volume     int
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	var opt options
	flag.StringVar(&opt.gateway, "gateway", "ws://127.0.0.1:8080", "gateway base URL (http(s):// or ws(s)://)")
	flag.StringVar(&opt.audioPath, "audio", "", "PCM s16le 16kHz mono file to stream, or - for stdin")
	flag.IntVar(&opt.frameMS, "frame-ms", 20, "audio frame duration in ms")
	flag.BoolVar(&opt.noSpeaker, "no-speaker", false, "do not spawn ffplay; discard model audio")
	flag.StringVar(&opt.ffplayPath, "ffplay-path", "ffplay", "path to ffplay executable")
	flag.IntVar(&opt.volume, "volume", 80, "ffplay volume (0-100)")
	flag.Parse()

	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "advisor-client: %v\n", err)
		return 1
	}
	return 0
}

func liveURL(gateway string) (string, error) {
	raw := strings.TrimSpace(gateway)
	if raw == "" {
		return "", errors.New("-gateway is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/live"
	return u.String(), nil
}

func openAudio(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, nil
	}
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	return f, nil
}

func run(opt options) error {
	wsURL, err := liveURL(opt.gateway)
	if err != nil {
		return err
	}
	audio, err := openAudio(opt.audioPath)
	if err != nil {
		return err
	}
	if audio != nil {
		defer audio.Close()
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	// The gateway sends ready before anything else.
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var first protocol.ServerMessage
	if err := conn.ReadJSON(&first); err != nil {
		return fmt.Errorf("read ready frame: %w", err)
	}
	if first.Type != protocol.TypeReady {
		return fmt.Errorf("first frame type = %q, want %q", first.Type, protocol.TypeReady)
	}
	_ = conn.SetReadDeadline(time.Time{})
	outRate := playbackRate(first.OutputSampleRateHz)
	fmt.Printf("connected; session is ready (%d Hz output)\n", outRate)

	var sink Sink
	if !opt.noSpeaker {
		sink = newFFPlaySpeaker(opt.ffplayPath, outRate, 1, opt.volume)
	}
	playback := newPlaybackQueue(playbackConfig{sampleRateHz: outRate}, sink)
	defer playback.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sendErrCh := make(chan error, 1)
	if audio != nil {
		go func() { sendErrCh <- streamAudio(conn, audio, opt.frameMS) }()
	}

	readErrCh := make(chan error, 1)
	go func() { readErrCh <- readFrames(conn, playback) }()

	select {
	case err := <-readErrCh:
		if err != nil && !isClientCleanClose(err) {
			return err
		}
		return nil
	case err := <-sendErrCh:
		if err != nil {
			return err
		}
		// Keep reading replies after the audio file is fully sent.
		err = <-readErrCh
		if err != nil && !isClientCleanClose(err) {
			return err
		}
		return nil
	case err := <-playback.ErrCh():
		return fmt.Errorf("playback: %w", err)
	case sig := <-sigCh:
		fmt.Fprintf(os.Stderr, "\nreceived %s, closing\n", sig)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return nil
	}
}

// streamAudio paces the file out in realtime sized frames so the backend
// sees audio at roughly the rate a microphone would produce it.
func streamAudio(conn *websocket.Conn, audio io.Reader, frameMS int) error {
	if frameMS <= 0 {
		frameMS = 20
	}
	bytesPerSecond := audioInSampleRateHz * 2
	frameBytes := bytesPerSecond * frameMS / 1000
	buf := make([]byte, frameBytes)

	ticker := time.NewTicker(time.Duration(frameMS) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		n, err := io.ReadFull(audio, buf)
		if n > 0 {
			frame := struct {
				Type string `json:"type"`
				Data string `json:"data"`
			}{Type: protocol.TypeClientAudio, Data: base64.StdEncoding.EncodeToString(buf[:n])}
			if werr := conn.WriteJSON(frame); werr != nil {
				return fmt.Errorf("send audio: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				end := struct {
					Type string `json:"type"`
				}{Type: protocol.TypeClientEnd}
				if werr := conn.WriteJSON(end); werr != nil {
					return fmt.Errorf("send end: %w", werr)
				}
				return nil
			}
			return fmt.Errorf("read audio: %w", err)
		}
	}
	return nil
}

func readFrames(conn *websocket.Conn, playback *playbackQueue) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			fmt.Fprintf(os.Stderr, "skipping unparseable frame: %v\n", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeAudio:
			pcm, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping bad audio frame: %v\n", err)
				continue
			}
			playback.Enqueue(pcm)
		case protocol.TypeText:
			fmt.Printf("[model] %s\n", msg.Data)
		case protocol.TypeUserTranscript:
			fmt.Printf("[you]   %s\n", msg.Data)
		case protocol.TypeInterrupted:
			playback.Interrupt()
			fmt.Println("-- interrupted --")
		case protocol.TypeTurnComplete:
			fmt.Println("-- turn complete --")
		default:
			fmt.Fprintf(os.Stderr, "unknown frame type %q\n", msg.Type)
		}
	}
}

func isClientCleanClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	)
}
