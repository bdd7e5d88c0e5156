// Package codec frames opus packets into a self-delimiting byte stream so a recording
// or a response segment can carry many packets in one blob.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed size of every frame header.
const HeaderSize = 4

// MaxPayload is the largest payload a single frame can carry.
const MaxPayload = 0xFFFF

const (
	payloadTypeAudio = 0
	payloadTypeMeta  = 1
)

var (
	ErrShortFrame     = errors.New("codec: frame too short")
	ErrPayloadSize    = errors.New("codec: invalid payload size")
	ErrPayloadType    = errors.New("codec: unsupported payload type")
	ErrPayloadTooLong = errors.New("codec: payload exceeds frame limit")
)

// PayloadKind describes the decoded payload category.
type PayloadKind int

const (
	// PayloadKindAudio indicates an encoded audio packet.
	PayloadKindAudio PayloadKind = iota
	// PayloadKindMeta indicates a JSON metadata payload.
	PayloadKindMeta
)

// Frame is one decoded unit of a stream.
type Frame struct {
	Kind    PayloadKind
	Payload []byte
}

// Pack wraps an audio packet in a frame header.
func Pack(payload []byte) ([]byte, error) {
	return pack(payloadTypeAudio, payload)
}

// PackMeta wraps a metadata payload in a frame header.
func PackMeta(payload []byte) ([]byte, error) {
	return pack(payloadTypeMeta, payload)
}

// Decode parses exactly one frame from the head of buf and returns the remaining bytes.
func Decode(buf []byte) (Frame, []byte, error) {
	if len(buf) < HeaderSize {
		return Frame{}, nil, ErrShortFrame
	}
	msgType := buf[0]
	payloadSize := int(binary.BigEndian.Uint16(buf[2:4]))
	if payloadSize > len(buf)-HeaderSize {
		return Frame{}, nil, ErrPayloadSize
	}
	payload := buf[HeaderSize : HeaderSize+payloadSize]
	rest := buf[HeaderSize+payloadSize:]
	switch msgType {
	case payloadTypeAudio:
		return Frame{Kind: PayloadKindAudio, Payload: payload}, rest, nil
	case payloadTypeMeta:
		return Frame{Kind: PayloadKindMeta, Payload: payload}, rest, nil
	default:
		return Frame{}, nil, ErrPayloadType
	}
}

// Split decodes every frame in a stream. Audio packets are returned in order; metadata frames are skipped.
func Split(stream []byte) ([][]byte, error) {
	var packets [][]byte
	offset := 0
	for len(stream) > 0 {
		frame, rest, err := Decode(stream)
		if err != nil {
			return nil, fmt.Errorf("frame at offset %d: %w", offset, err)
		}
		offset += len(stream) - len(rest)
		stream = rest
		if frame.Kind == PayloadKindAudio {
			packets = append(packets, frame.Payload)
		}
	}
	return packets, nil
}

func pack(msgType byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLong
	}
	frame := make([]byte, HeaderSize, HeaderSize+len(payload))
	frame[0] = msgType
	frame[1] = 0
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	return append(frame, payload...), nil
}
