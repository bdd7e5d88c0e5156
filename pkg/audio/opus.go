package audio

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/pkg/audio/opusx"
)

const opusMaxFrameDurationMs = 120

// OpusEncoder encodes fixed-duration PCM16 frames into opus packets.
type OpusEncoder struct {
	encoder       *opusx.Encoder
	sampleRate    int
	channels      int
	frameDuration int
	frameSize     int
	opusBuffer    []byte
	scratch       []int16
	mutex         sync.Mutex
}

// NewOpusEncoder creates an encoder for frames of frameDurationMs, applying opts.
func NewOpusEncoder(sampleRate, channels, frameDurationMs int, opts EncoderOptions, logger *zap.Logger) (*OpusEncoder, error) {
	if sampleRate <= 0 || channels <= 0 || frameDurationMs <= 0 {
		return nil, fmt.Errorf("create opus encoder: invalid params rate=%d channels=%d frame=%dms", sampleRate, channels, frameDurationMs)
	}
	enc, err := acquireRawOpusEncoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	opts.apply(enc, logger)

	return &OpusEncoder{
		encoder:       enc,
		sampleRate:    sampleRate,
		channels:      channels,
		frameDuration: frameDurationMs,
		frameSize:     sampleRate * frameDurationMs / 1000,
		opusBuffer:    make([]byte, 4000),
	}, nil
}

// Encode encodes one frame. Short input is zero-padded; long input is truncated.
func (e *OpusEncoder) Encode(pcmData []byte) ([]byte, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.encoder == nil {
		return nil, errors.New("opus encoder is closed")
	}

	expectedSamples := e.frameSize * e.channels
	pcmSamples := BytesToInt16Into(e.scratch, pcmData)
	if len(pcmSamples) < expectedSamples {
		if cap(pcmSamples) < expectedSamples {
			tmp := make([]int16, expectedSamples)
			copy(tmp, pcmSamples)
			pcmSamples = tmp
		} else {
			origLen := len(pcmSamples)
			pcmSamples = pcmSamples[:expectedSamples]
			clear(pcmSamples[origLen:])
		}
	} else if len(pcmSamples) > expectedSamples {
		pcmSamples = pcmSamples[:expectedSamples]
	}
	e.scratch = pcmSamples

	n, err := e.encoder.Encode(pcmSamples, e.opusBuffer)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	result := make([]byte, n)
	copy(result, e.opusBuffer[:n])
	return result, nil
}

// Close returns the underlying encoder to its pool.
func (e *OpusEncoder) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.encoder != nil {
		releaseRawOpusEncoder(e.sampleRate, e.channels, e.encoder)
	}
	e.encoder = nil
	e.opusBuffer = nil
	return nil
}

// FrameBytes is the PCM16 byte length of one input frame.
func (e *OpusEncoder) FrameBytes() int {
	return e.frameSize * e.channels * 2
}

func (e *OpusEncoder) FrameDuration() int {
	return e.frameDuration
}

// OpusDecoder turns opus packets back into PCM16.
type OpusDecoder struct {
	decoder    *opusx.Decoder
	sampleRate int
	channels   int
	pcm        []int16
}

// NewOpusDecoder creates a decoder for the given output format.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	dec, err := opusx.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	maxSamples := sampleRate * opusMaxFrameDurationMs / 1000
	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
		pcm:        make([]int16, maxSamples*channels),
	}, nil
}

// Decode decodes one packet into little-endian PCM16 bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	samples, err := d.decoder.Decode(packet, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	if samples <= 0 {
		return nil, nil
	}
	return Int16ToBytes(d.pcm[:samples*d.channels]), nil
}

// DecodeAll decodes packets in order and concatenates the PCM.
func (d *OpusDecoder) DecodeAll(packets [][]byte) (PCM, error) {
	var out []byte
	for i, packet := range packets {
		pcm, err := d.Decode(packet)
		if err != nil {
			return PCM{}, fmt.Errorf("packet %d: %w", i, err)
		}
		out = append(out, pcm...)
	}
	return PCM{Data: out, SampleRate: d.sampleRate, Channels: d.channels}, nil
}

type opusRawKey struct {
	sampleRate int
	channels   int
}

var opusRawEncoderPools keyedPools[opusRawKey]

func acquireRawOpusEncoder(sampleRate, channels int) (*opusx.Encoder, error) {
	pool := opusRawEncoderPools.get(opusRawKey{sampleRate: sampleRate, channels: channels})
	if v := pool.Get(); v != nil {
		if enc, ok := v.(*opusx.Encoder); ok && enc != nil {
			return enc, nil
		}
	}
	return opusx.NewEncoder(sampleRate, channels, opusx.AppVoIP)
}

func releaseRawOpusEncoder(sampleRate, channels int, enc *opusx.Encoder) {
	if enc == nil {
		return
	}
	// a failed reset leaves stale state; drop the encoder rather than pool it
	if err := enc.Reset(); err != nil {
		return
	}
	opusRawEncoderPools.get(opusRawKey{sampleRate: sampleRate, channels: channels}).Put(enc)
}
