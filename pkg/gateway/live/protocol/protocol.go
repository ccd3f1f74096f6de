// Package protocol defines the JSON frames exchanged with advisor clients
// over the live websocket.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Server frame types.
const (
	TypeReady          = "ready"
	TypeAudio          = "audio"
	TypeText           = "text"
	TypeUserTranscript = "user_transcript"
	TypeInterrupted    = "interrupted"
	TypeTurnComplete   = "turn_complete"
)

// Client frame types.
const (
	TypeClientAudio = "audio"
	TypeClientEnd   = "end"
	TypeClientText  = "text"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// ServerMessage is the envelope for every server-to-client frame. Data is
// base64 PCM for audio frames and plain text otherwise; it is omitted for
// ready and terminal frames. The ready frame advertises the PCM sample rate
// of the audio frames that follow.
type ServerMessage struct {
	Type               string `json:"type"`
	Data               string `json:"data,omitempty"`
	OutputSampleRateHz int    `json:"output_sample_rate_hz,omitempty"`
}

func Ready(outputSampleRateHz int) ServerMessage {
	return ServerMessage{Type: TypeReady, OutputSampleRateHz: outputSampleRateHz}
}

func Audio(pcm []byte) ServerMessage {
	return ServerMessage{Type: TypeAudio, Data: base64.StdEncoding.EncodeToString(pcm)}
}

func Text(text string) ServerMessage {
	return ServerMessage{Type: TypeText, Data: text}
}

func UserTranscript(text string) ServerMessage {
	return ServerMessage{Type: TypeUserTranscript, Data: text}
}

func Interrupted() ServerMessage {
	return ServerMessage{Type: TypeInterrupted}
}

func TurnComplete() ServerMessage {
	return ServerMessage{Type: TypeTurnComplete}
}

// ClientAudio carries one microphone chunk. PCM holds the decoded payload.
type ClientAudio struct {
	PCM []byte
}

// ClientEnd signals the client is done sending audio. It carries no payload
// and does not close the session.
type ClientEnd struct{}

// ClientText is accepted for forward compatibility; the session logs it and
// does not forward it to the backend.
type ClientText struct {
	Text string
}

// DecodeClientMessage parses one inbound text frame. It returns a typed
// message or a *DecodeError; decode failures are recoverable and must not
// end the session.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeClientAudio:
		if strings.TrimSpace(envelope.Data) == "" {
			return nil, badRequest("audio.data is required", "data")
		}
		pcm, err := base64.StdEncoding.DecodeString(envelope.Data)
		if err != nil {
			return nil, badRequest("audio.data must be base64", "data")
		}
		if len(pcm) == 0 {
			return nil, badRequest("audio.data must not be empty", "data")
		}
		return ClientAudio{PCM: pcm}, nil
	case TypeClientEnd:
		return ClientEnd{}, nil
	case TypeClientText:
		return ClientText{Text: envelope.Data}, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}
