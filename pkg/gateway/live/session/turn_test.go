package session

import (
	"encoding/base64"
	"testing"

	"github.com/chrispomp/live-advisor/pkg/gateway/live/protocol"
	"github.com/chrispomp/live-advisor/pkg/gateway/upstream"
)

func frameTypes(t *testing.T, tracker *turnTracker, events []upstream.Event) []string {
	t.Helper()
	var types []string
	for _, ev := range events {
		for _, msg := range tracker.handle(ev) {
			types = append(types, msg.Type)
		}
	}
	return types
}

func TestTurnTracker_CompleteTurn(t *testing.T) {
	tracker := newTurnTracker()

	got := frameTypes(t, tracker, []upstream.Event{
		{Kind: upstream.KindAudioFrame, PCM: []byte{1, 2}},
		{Kind: upstream.KindAudioFrame, PCM: []byte{3, 4}},
		{Kind: upstream.KindTurnComplete},
	})
	want := []string{protocol.TypeAudio, protocol.TypeAudio, protocol.TypeTurnComplete}
	if len(got) != len(want) {
		t.Fatalf("got frames %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
	if tracker.state != turnIdle {
		t.Fatalf("state after turn = %v, want idle", tracker.state)
	}
}

func TestTurnTracker_AudioPayloadIsBase64(t *testing.T) {
	tracker := newTurnTracker()

	msgs := tracker.handle(upstream.Event{Kind: upstream.KindAudioFrame, PCM: []byte{0x01, 0x02, 0x03}})
	if len(msgs) != 1 {
		t.Fatalf("got %d frames, want 1", len(msgs))
	}
	want := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})
	if msgs[0].Data != want {
		t.Fatalf("audio data = %q, want %q", msgs[0].Data, want)
	}
}

func TestTurnTracker_InterruptedSuppressesTurnComplete(t *testing.T) {
	tracker := newTurnTracker()

	got := frameTypes(t, tracker, []upstream.Event{
		{Kind: upstream.KindAudioFrame, PCM: []byte{1}},
		{Kind: upstream.KindInterrupted},
		{Kind: upstream.KindAudioFrame, PCM: []byte{2}},
		{Kind: upstream.KindTurnComplete},
	})
	want := []string{protocol.TypeAudio, protocol.TypeInterrupted, protocol.TypeAudio}
	if len(got) != len(want) {
		t.Fatalf("got frames %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}

	// The suppressed turn_complete still closes the turn, so the next one
	// is delivered again.
	next := frameTypes(t, tracker, []upstream.Event{
		{Kind: upstream.KindAudioFrame, PCM: []byte{3}},
		{Kind: upstream.KindTurnComplete},
	})
	if len(next) != 2 || next[1] != protocol.TypeTurnComplete {
		t.Fatalf("frames after interrupted turn = %v, want audio then turn_complete", next)
	}
}

func TestTurnTracker_InterruptIsIdempotent(t *testing.T) {
	tracker := newTurnTracker()
	tracker.handle(upstream.Event{Kind: upstream.KindAudioFrame, PCM: []byte{1}})

	first := tracker.handle(upstream.Event{Kind: upstream.KindInterrupted})
	if len(first) != 1 || first[0].Type != protocol.TypeInterrupted {
		t.Fatalf("first interrupt frames = %v, want one interrupted frame", first)
	}
	second := tracker.handle(upstream.Event{Kind: upstream.KindInterrupted})
	if len(second) != 0 {
		t.Fatalf("second interrupt frames = %v, want none", second)
	}
}

func TestTurnTracker_UserTranscriptAccumulatesAndResets(t *testing.T) {
	tracker := newTurnTracker()

	msgs := tracker.handle(upstream.Event{Kind: upstream.KindTextFragment, Role: upstream.RoleUser, Text: "how is "})
	if len(msgs) != 1 || msgs[0].Type != protocol.TypeUserTranscript || msgs[0].Data != "how is " {
		t.Fatalf("first transcript frame = %+v", msgs)
	}
	msgs = tracker.handle(upstream.Event{Kind: upstream.KindTextFragment, Role: upstream.RoleUser, Text: "my portfolio"})
	if len(msgs) != 1 || msgs[0].Data != "how is my portfolio" {
		t.Fatalf("cumulative transcript = %+v", msgs)
	}

	tracker.handle(upstream.Event{Kind: upstream.KindTurnComplete})

	msgs = tracker.handle(upstream.Event{Kind: upstream.KindTextFragment, Role: upstream.RoleUser, Text: "thanks"})
	if len(msgs) != 1 || msgs[0].Data != "thanks" {
		t.Fatalf("transcript after turn boundary = %+v, want reset to %q", msgs, "thanks")
	}
}

func TestTurnTracker_ModelTextPassesThrough(t *testing.T) {
	tracker := newTurnTracker()

	msgs := tracker.handle(upstream.Event{Kind: upstream.KindTextFragment, Role: upstream.RoleModel, Text: "hello"})
	if len(msgs) != 1 || msgs[0].Type != protocol.TypeText || msgs[0].Data != "hello" {
		t.Fatalf("model text frame = %+v", msgs)
	}

	// Model text is not folded into the user transcript.
	msgs = tracker.handle(upstream.Event{Kind: upstream.KindTextFragment, Role: upstream.RoleUser, Text: "hi"})
	if len(msgs) != 1 || msgs[0].Data != "hi" {
		t.Fatalf("user transcript after model text = %+v, want %q", msgs, "hi")
	}
}
