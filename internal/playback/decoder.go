package playback

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/saker-ai/orion-client/internal/codec"
	"github.com/saker-ai/orion-client/pkg/audio"
)

// Segment formats.
const (
	FormatAuto = "auto"
	FormatWAV  = "wav"
	FormatPCM  = "pcm_s16le"
	FormatOpus = "opus"
)

var (
	ErrEmptySegment  = errors.New("playback: empty segment")
	ErrUnknownFormat = errors.New("playback: unrecognized segment format")
)

// Decoder turns raw segment bytes into PCM.
type Decoder interface {
	Decode(data []byte) (audio.PCM, error)
}

// DecodeSegment base64-decodes a segment and hands it to dec.
func DecodeSegment(dec Decoder, segment string) (audio.PCM, error) {
	if segment == "" {
		return audio.PCM{}, ErrEmptySegment
	}
	data, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode base64 segment: %w", err)
	}
	if len(data) == 0 {
		return audio.PCM{}, ErrEmptySegment
	}
	return dec.Decode(data)
}

// FormatDecoder decodes one configured format. SampleRate and Channels describe headerless
// formats and are the fallback for WAV.
type FormatDecoder struct {
	Format     string
	SampleRate int
	Channels   int
}

// NewFormatDecoder normalizes the format name.
func NewFormatDecoder(format string, sampleRate, channels int) *FormatDecoder {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}
	return &FormatDecoder{
		Format:     normalizeFormat(format),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Decode implements Decoder.
func (d *FormatDecoder) Decode(data []byte) (audio.PCM, error) {
	switch d.Format {
	case FormatWAV:
		return audio.DecodeWAV(data, d.SampleRate, d.Channels)
	case FormatPCM:
		return d.decodePCM(data)
	case FormatOpus:
		return d.decodeOpus(data)
	case FormatAuto:
		if audio.IsWAV(data) {
			return audio.DecodeWAV(data, d.SampleRate, d.Channels)
		}
		if packets, err := codec.Split(data); err == nil && len(packets) > 0 {
			return d.decodePackets(packets)
		}
		return audio.PCM{}, ErrUnknownFormat
	default:
		return audio.PCM{}, fmt.Errorf("%w: %q", ErrUnknownFormat, d.Format)
	}
}

func (d *FormatDecoder) decodePCM(data []byte) (audio.PCM, error) {
	frame := 2 * d.Channels
	if len(data) < frame {
		return audio.PCM{}, ErrEmptySegment
	}
	// a trailing partial frame is dropped
	n := len(data) - len(data)%frame
	return audio.PCM{Data: data[:n], SampleRate: d.SampleRate, Channels: d.Channels}, nil
}

func (d *FormatDecoder) decodeOpus(data []byte) (audio.PCM, error) {
	packets, err := codec.Split(data)
	if err != nil {
		return audio.PCM{}, err
	}
	if len(packets) == 0 {
		return audio.PCM{}, ErrEmptySegment
	}
	return d.decodePackets(packets)
}

func (d *FormatDecoder) decodePackets(packets [][]byte) (audio.PCM, error) {
	dec, err := audio.NewOpusDecoder(d.SampleRate, d.Channels)
	if err != nil {
		return audio.PCM{}, err
	}
	return dec.DecodeAll(packets)
}

func normalizeFormat(format string) string {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "", "auto":
		return FormatAuto
	case "pcm", "pcm16", "pcm_s16le", "raw":
		return FormatPCM
	case "wav":
		return FormatWAV
	case "opus":
		return FormatOpus
	default:
		return strings.TrimSpace(strings.ToLower(format))
	}
}
