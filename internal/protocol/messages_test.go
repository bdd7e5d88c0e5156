package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseServerMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ServerEvent
	}{
		{name: "transcript", raw: `{"transcript":"hello"}`, want: ServerEvent{Type: TypeTranscript, Text: "hello"}},
		{name: "response", raw: `{"llm_response":"hi there"}`, want: ServerEvent{Type: TypeLLMResponse, Text: "hi there"}},
		{name: "audio", raw: `{"audio_response":"AAAA"}`, want: ServerEvent{Type: TypeAudioResponse, Text: "AAAA"}},
		{name: "error", raw: `{"error":"timeout"}`, want: ServerEvent{Type: TypeError, Text: "timeout"}},
		{name: "empty transcript skipped", raw: `{"transcript":"","error":"x"}`, want: ServerEvent{Type: TypeError, Text: "x"}},
		{name: "first tag wins", raw: `{"error":"e","transcript":"t"}`, want: ServerEvent{Type: TypeTranscript, Text: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServerMessage([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseServerMessage error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseServerMessage=%+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseServerMessageErrors(t *testing.T) {
	if _, err := ParseServerMessage([]byte(`{}`)); !errors.Is(err, ErrNoTag) {
		t.Fatalf("error=%v, want %v", err, ErrNoTag)
	}
	if _, err := ParseServerMessage([]byte(`not json`)); err == nil {
		t.Fatal("error=nil for invalid json, want non-nil")
	}
}

func TestRecordingPayloadWireNames(t *testing.T) {
	data, err := json.Marshal(RecordingPayload{Audio: "QUJD", Temperature: 0.8, ContextLength: 10, Instructions: "be terse"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	for _, key := range []string{"audio", "temperature", "context_length", "instructions"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("payload missing %q: %s", key, data)
		}
	}
	if fields["context_length"].(float64) != 10 {
		t.Fatalf("context_length=%v, want 10", fields["context_length"])
	}
}

func TestRecordingPayloadValidate(t *testing.T) {
	if err := (RecordingPayload{}).Validate(); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("Validate error=%v, want %v", err, ErrEmptyAudio)
	}
}

func TestServerEventMarshal(t *testing.T) {
	data, err := ServerEvent{Type: TypeError, Text: "timeout"}.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `{"error":"timeout"}` {
		t.Fatalf("Marshal=%s, want %s", data, `{"error":"timeout"}`)
	}
}
