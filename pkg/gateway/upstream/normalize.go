package upstream

import "google.golang.org/genai"

// normalizeServerMessage flattens one backend message into zero or more
// events. Within a single message the emission order is: user transcript,
// model turn parts (audio before text within each part), model transcript,
// then terminal flags. Empty or unrecognized payloads yield nothing.
func normalizeServerMessage(msg *genai.LiveServerMessage) []Event {
	if msg == nil || msg.ServerContent == nil {
		return nil
	}
	sc := msg.ServerContent

	var events []Event

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, Event{Kind: KindTextFragment, Role: RoleUser, Text: sc.InputTranscription.Text})
	}

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				events = append(events, Event{Kind: KindAudioFrame, PCM: part.InlineData.Data})
			}
			if part.Text != "" {
				events = append(events, Event{Kind: KindTextFragment, Role: RoleModel, Text: part.Text})
			}
		}
	}

	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, Event{Kind: KindTextFragment, Role: RoleModel, Text: sc.OutputTranscription.Text})
	}

	// A message can carry content alongside a terminal flag; content goes
	// first so clients never see a terminal frame ahead of its turn's audio.
	if sc.Interrupted {
		events = append(events, Event{Kind: KindInterrupted})
	}
	if sc.TurnComplete {
		events = append(events, Event{Kind: KindTurnComplete})
	}

	return events
}
