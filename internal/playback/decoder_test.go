package playback

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/saker-ai/orion-client/internal/codec"
	"github.com/saker-ai/orion-client/pkg/audio"
)

func TestFormatDecoderWAV(t *testing.T) {
	pcm := audio.Int16ToBytes([]int16{1, 2, 3, 4})
	dec := NewFormatDecoder("auto", 16000, 1)
	got, err := DecodeSegment(dec, base64.StdEncoding.EncodeToString(audio.EncodeWAV(pcm, 22050, 2)))
	if err != nil {
		t.Fatalf("DecodeSegment error: %v", err)
	}
	if got.SampleRate != 22050 || got.Channels != 2 || !bytes.Equal(got.Data, pcm) {
		t.Fatalf("pcm=%+v, want 22050/2 %v", got, pcm)
	}
}

func TestFormatDecoderPCM(t *testing.T) {
	dec := NewFormatDecoder("raw", 24000, 1)
	got, err := dec.Decode([]byte{1, 0, 2, 0, 9})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(got.Data) != 4 || got.SampleRate != 24000 {
		t.Fatalf("pcm=%+v, want 4 bytes at 24000", got)
	}
	if _, err := dec.Decode([]byte{1}); !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("Decode(1 byte) err=%v, want ErrEmptySegment", err)
	}
}

func TestFormatDecoderOpus(t *testing.T) {
	enc, err := audio.NewOpusEncoder(16000, 1, 20, audio.EncoderOptions{}, nil)
	if err != nil {
		t.Fatalf("NewOpusEncoder error: %v", err)
	}
	defer enc.Close()

	var stream []byte
	for i := 0; i < 3; i++ {
		packet, err := enc.Encode(make([]byte, enc.FrameBytes()))
		if err != nil {
			t.Fatalf("Encode error: %v", err)
		}
		frame, err := codec.Pack(packet)
		if err != nil {
			t.Fatalf("Pack error: %v", err)
		}
		stream = append(stream, frame...)
	}

	got, err := NewFormatDecoder("opus", 16000, 1).Decode(stream)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.Frames() != 960 {
		t.Fatalf("frames=%d, want 960", got.Frames())
	}
}

func TestFormatDecoderErrors(t *testing.T) {
	if _, err := DecodeSegment(NewFormatDecoder("auto", 0, 0), ""); !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("empty segment err=%v, want ErrEmptySegment", err)
	}
	if _, err := NewFormatDecoder("auto", 0, 0).Decode([]byte{9, 9, 9}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("garbage err=%v, want ErrUnknownFormat", err)
	}
	if _, err := NewFormatDecoder("mp3", 0, 0).Decode([]byte{1, 2}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("mp3 err=%v, want ErrUnknownFormat", err)
	}
}

type captureSink struct {
	ch chan []byte
}

func (s *captureSink) Write(pcm []byte) error {
	select {
	case s.ch <- append([]byte(nil), pcm...):
	default:
	}
	return nil
}
func (s *captureSink) Close() error { return nil }

func TestClockPlayerEndsAndFeedsAnalyser(t *testing.T) {
	sink := &captureSink{ch: make(chan []byte, 64)}
	p := NewClockPlayer(ClockConfig{Tick: 5 * time.Millisecond, FFTSize: 64}, sink, nil)
	samples := make([]int16, 800) // 50ms at 16kHz
	for i := range samples {
		samples[i] = 8000
	}
	ended := make(chan struct{})
	v, err := p.Play(audio.PCM{Data: audio.Int16ToBytes(samples), SampleRate: 16000, Channels: 1}, 2.0, func() { close(ended) })
	if err != nil {
		t.Fatalf("Play error: %v", err)
	}
	if v.Rate() != 2.0 {
		t.Fatalf("rate=%v, want 2", v.Rate())
	}

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("voice never ended")
	}
	td := v.Analyser().ByteTimeDomainData(nil)
	if td[len(td)-1] <= 128 {
		t.Fatalf("analyser tail=%d, want > 128", td[len(td)-1])
	}
	select {
	case <-sink.ch:
	default:
		t.Fatal("sink received no audio")
	}
}

func TestClockPlayerStopSuppressesEnd(t *testing.T) {
	p := NewClockPlayer(ClockConfig{Tick: 5 * time.Millisecond}, nil, nil)
	ended := make(chan struct{}, 1)
	v, err := p.Play(audio.PCM{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}, 1, func() { ended <- struct{}{} })
	if err != nil {
		t.Fatalf("Play error: %v", err)
	}
	v.Stop()
	select {
	case <-ended:
		t.Fatal("onEnded fired after Stop")
	case <-time.After(200 * time.Millisecond):
	}
}
