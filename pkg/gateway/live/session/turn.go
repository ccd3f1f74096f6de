package session

import (
	"strings"

	"github.com/chrispomp/live-advisor/pkg/gateway/live/protocol"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

type turnState int

const (
	turnIdle turnState = iota
	turnSpeaking
	turnInterrupted
)

func (s turnState) String() string {
	switch s {
	case turnIdle:
		return "idle"
	case turnSpeaking:
		return "speaking"
	case turnInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// turnTracker serializes a session's turn lifecycle into outbound frames.
// It is not safe for concurrent use; exactly one goroutine feeds it.
//
// Audio keeps flowing in every state, including after an interruption,
// so the client always hears the tail of what the model already produced.
// An interrupted turn emits exactly one interrupted frame and suppresses
// the turn_complete that follows it; the user transcript accumulates
// across a turn and resets at the turn boundary.
type turnTracker struct {
	state          turnState
	userTranscript strings.Builder
}

func newTurnTracker() *turnTracker {
	return &turnTracker{}
}

func (t *turnTracker) handle(ev upstream.Event) []protocol.ServerMessage {
	switch ev.Kind {
	case upstream.KindAudioFrame:
		if t.state == turnIdle {
			t.state = turnSpeaking
		}
		return []protocol.ServerMessage{protocol.Audio(ev.PCM)}

	case upstream.KindTextFragment:
		if ev.Role == upstream.RoleUser {
			t.userTranscript.WriteString(ev.Text)
			return []protocol.ServerMessage{protocol.UserTranscript(t.userTranscript.String())}
		}
		if t.state == turnIdle {
			t.state = turnSpeaking
		}
		return []protocol.ServerMessage{protocol.Text(ev.Text)}

	case upstream.KindInterrupted:
		if t.state == turnInterrupted {
			return nil
		}
		t.state = turnInterrupted
		return []protocol.ServerMessage{protocol.Interrupted()}

	case upstream.KindTurnComplete:
		suppressed := t.state == turnInterrupted
		t.state = turnIdle
		t.userTranscript.Reset()
		if suppressed {
			return nil
		}
		return []protocol.ServerMessage{protocol.TurnComplete()}

	default:
		return nil
	}
}
