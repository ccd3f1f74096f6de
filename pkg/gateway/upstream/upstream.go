// Package upstream connects relay sessions to the conversational audio
// backend and normalizes its wire messages into a small event set the rest
// of the gateway can consume without knowing the vendor API.
package upstream

import "context"

type EventKind int

const (
	// KindAudioFrame carries one chunk of PCM speech from the model.
	KindAudioFrame EventKind = iota
	// KindTextFragment carries an incremental transcript fragment.
	KindTextFragment
	// KindTurnComplete marks the natural end of a model turn.
	KindTurnComplete
	// KindInterrupted reports that the client spoke over the model and the
	// backend abandoned the rest of the turn.
	KindInterrupted
)

func (k EventKind) String() string {
	switch k {
	case KindAudioFrame:
		return "audio_frame"
	case KindTextFragment:
		return "text_fragment"
	case KindTurnComplete:
		return "turn_complete"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Event is the normalized backend event. Exactly the fields for its Kind
// are set: PCM for audio frames, Text and Role for text fragments.
type Event struct {
	Kind EventKind
	PCM  []byte
	Text string
	Role Role
}

// Stream is one live backend conversation. Events is closed when the
// backend ends the stream or an error occurs; Err reports the cause after
// closure, nil meaning a clean shutdown.
type Stream interface {
	SendAudio(ctx context.Context, pcm []byte) error
	Events() <-chan Event
	Err() error
	Close() error
}

// Dialer opens a backend stream per relay session.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Stream, error)
}
