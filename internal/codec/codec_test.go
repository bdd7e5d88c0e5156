package codec

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestPackDecodeAudio(t *testing.T) {
	payload := []byte{0x09, 0x08, 0x07}
	frame, err := Pack(payload)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}

	got, rest, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if got.Kind != PayloadKindAudio {
		t.Fatalf("Decode kind=%v, want %v", got.Kind, PayloadKindAudio)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("Decode payload=%v, want %v", got.Payload, payload)
	}
	if len(rest) != 0 {
		t.Fatalf("Decode rest=%v, want empty", rest)
	}
}

func TestSplitSkipsMeta(t *testing.T) {
	a, _ := Pack([]byte{1, 2})
	m, _ := PackMeta([]byte(`{"sample_rate":24000}`))
	b, _ := Pack([]byte{3})
	stream := append(append(append([]byte{}, a...), m...), b...)

	packets, err := Split(stream)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("Split packets=%d, want 2", len(packets))
	}
	if packets[0][1] != 2 || packets[1][0] != 3 {
		t.Fatalf("Split packets=%v, want [[1 2] [3]]", packets)
	}
}

func TestDecodeInvalidPayloadSize(t *testing.T) {
	frame := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(frame[2:4], 10)

	if _, _, err := Decode(frame); !errors.Is(err, ErrPayloadSize) {
		t.Fatalf("Decode error=%v, want ErrPayloadSize", err)
	}
}

func TestDecodeUnsupportedType(t *testing.T) {
	frame := []byte{7, 0, 0, 0}
	if _, _, err := Decode(frame); !errors.Is(err, ErrPayloadType) {
		t.Fatalf("Decode error=%v, want ErrPayloadType", err)
	}
}

func TestSplitTruncatedStream(t *testing.T) {
	a, _ := Pack([]byte{1, 2, 3})
	if _, err := Split(a[:len(a)-1]); !errors.Is(err, ErrPayloadSize) {
		t.Fatalf("Split error=%v, want ErrPayloadSize", err)
	}
}

func TestPackTooLong(t *testing.T) {
	if _, err := Pack(make([]byte, MaxPayload+1)); !errors.Is(err, ErrPayloadTooLong) {
		t.Fatalf("Pack error=%v, want ErrPayloadTooLong", err)
	}
}
