package upstream

import (
	"testing"

	"google.golang.org/genai"
)

func TestNormalize_NilAndEmptyMessages(t *testing.T) {
	t.Parallel()
	if got := normalizeServerMessage(nil); got != nil {
		t.Fatalf("normalize(nil) = %v, want nil", got)
	}
	if got := normalizeServerMessage(&genai.LiveServerMessage{}); got != nil {
		t.Fatalf("normalize(empty) = %v, want nil", got)
	}
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{nil, {}}},
		},
	}
	if got := normalizeServerMessage(msg); len(got) != 0 {
		t.Fatalf("normalize(empty parts) = %v, want none", got)
	}
}

func TestNormalize_AudioBeforeTextWithinPart(t *testing.T) {
	t.Parallel()
	pcm := []byte{1, 2, 3, 4}
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{Data: pcm, MIMEType: "audio/pcm"},
					Text:       "hello there",
				},
			}},
		},
	}

	events := normalizeServerMessage(msg)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != KindAudioFrame || string(events[0].PCM) != string(pcm) {
		t.Fatalf("events[0] = %+v, want audio frame", events[0])
	}
	if events[1].Kind != KindTextFragment || events[1].Role != RoleModel || events[1].Text != "hello there" {
		t.Fatalf("events[1] = %+v, want model text fragment", events[1])
	}
}

func TestNormalize_TranscriptionsCarryRoles(t *testing.T) {
	t.Parallel()
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			InputTranscription:  &genai.Transcription{Text: "what is my"},
			OutputTranscription: &genai.Transcription{Text: "Your portfolio"},
		},
	}

	events := normalizeServerMessage(msg)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Role != RoleUser || events[0].Text != "what is my" {
		t.Fatalf("events[0] = %+v, want user fragment", events[0])
	}
	if events[1].Role != RoleModel || events[1].Text != "Your portfolio" {
		t.Fatalf("events[1] = %+v, want model fragment", events[1])
	}
}

func TestNormalize_TerminalFlagsFollowContent(t *testing.T) {
	t.Parallel()
	msg := &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: []byte{9, 9}}},
			}},
			TurnComplete: true,
		},
	}
	events := normalizeServerMessage(msg)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != KindAudioFrame {
		t.Fatalf("events[0].Kind = %v, want audio frame", events[0].Kind)
	}
	if events[1].Kind != KindTurnComplete {
		t.Fatalf("events[1].Kind = %v, want turn complete", events[1].Kind)
	}

	msg = &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{Interrupted: true},
	}
	events = normalizeServerMessage(msg)
	if len(events) != 1 || events[0].Kind != KindInterrupted {
		t.Fatalf("events = %+v, want single interrupted", events)
	}
}
