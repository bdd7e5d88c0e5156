// Package protocol defines the JSON messages exchanged with the assistant server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies the tag of an inbound server message.
type EventType string

const (
	TypeTranscript    EventType = "transcript"
	TypeLLMResponse   EventType = "llm_response"
	TypeAudioResponse EventType = "audio_response"
	TypeError         EventType = "error"
)

var (
	// ErrNoTag is returned when a server message carries none of the known tags.
	ErrNoTag = errors.New("server message has no known tag")
	// ErrEmptyAudio is returned when a recording payload has no audio.
	ErrEmptyAudio = errors.New("recording payload has no audio")
)

// RecordingPayload is the client-to-server message sent once per recording gesture.
type RecordingPayload struct {
	Audio         string  `json:"audio"`
	Temperature   float64 `json:"temperature"`
	ContextLength int     `json:"context_length"`
	Instructions  string  `json:"instructions"`
}

// Validate checks the required field.
func (p RecordingPayload) Validate() error {
	if p.Audio == "" {
		return ErrEmptyAudio
	}
	return nil
}

// ServerEvent is one decoded server message. Exactly one tag is set.
type ServerEvent struct {
	Type EventType
	Text string
}

type serverMessage struct {
	Transcript    string `json:"transcript,omitempty"`
	LLMResponse   string `json:"llm_response,omitempty"`
	AudioResponse string `json:"audio_response,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ParseServerMessage decodes a server message and resolves its tag. Empty values count as
// absent; when several tags are present the first of transcript, llm_response,
// audio_response, error wins.
func ParseServerMessage(raw []byte) (ServerEvent, error) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ServerEvent{}, fmt.Errorf("invalid server message: %w", err)
	}
	switch {
	case msg.Transcript != "":
		return ServerEvent{Type: TypeTranscript, Text: msg.Transcript}, nil
	case msg.LLMResponse != "":
		return ServerEvent{Type: TypeLLMResponse, Text: msg.LLMResponse}, nil
	case msg.AudioResponse != "":
		return ServerEvent{Type: TypeAudioResponse, Text: msg.AudioResponse}, nil
	case msg.Error != "":
		return ServerEvent{Type: TypeError, Text: msg.Error}, nil
	default:
		return ServerEvent{}, ErrNoTag
	}
}

// Marshal encodes a server event back into its wire form.
func (e ServerEvent) Marshal() ([]byte, error) {
	var msg serverMessage
	switch e.Type {
	case TypeTranscript:
		msg.Transcript = e.Text
	case TypeLLMResponse:
		msg.LLMResponse = e.Text
	case TypeAudioResponse:
		msg.AudioResponse = e.Text
	case TypeError:
		msg.Error = e.Text
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return json.Marshal(msg)
}
