package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeAudioData   MessageType = "audio_data"
	TypeBotResponse MessageType = "bot_response"
	TypeStatus      MessageType = "status"
	TypeError       MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// AudioData carries one recorded utterance from the client. Audio is the
// base64-encoded capture in the client's native container format; it is
// forwarded to transcription unmodified. An empty Audio field is valid at
// the protocol level: the orchestrator drops it as a no-op.
type AudioData struct {
	Type  MessageType `json:"type"`
	Audio string      `json:"audio"`
}

// DecodeAudio returns the raw audio bytes, empty when no audio was sent.
func (m AudioData) DecodeAudio() ([]byte, error) {
	if m.Audio == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(m.Audio)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return data, nil
}

// BotResponse is the single outbound reply for one processed turn.
type BotResponse struct {
	Type      MessageType `json:"type"`
	UserText  string      `json:"user_text"`
	BotText   string      `json:"bot_text"`
	LatencyMS LatencyMS   `json:"latency_ms"`
}

type LatencyMS struct {
	Backend int64 `json:"backend"`
}

// Status acknowledges connection lifecycle events.
type Status struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ErrorEvent reports a failed turn to the client.
type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// ParseClientMessage sniffs the envelope then strictly decodes the payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeAudioData:
		var msg AudioData
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
