package recorder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/codec"
	"github.com/saker-ai/orion-client/internal/config"
	"github.com/saker-ai/orion-client/pkg/audio"
)

// ErrNoMicrophone is returned when no capture source is configured.
var ErrNoMicrophone = errors.New("recorder: no microphone configured")

// chunkStream is the Stream shared by the microphones. The producer closes ch.
type chunkStream struct {
	ch       chan []byte
	quit     chan struct{}
	stopOnce sync.Once
	onStop   func() error
	monitor  atomic.Pointer[audio.Analyser]
	channels int
}

func newChunkStream(channels int, onStop func() error) *chunkStream {
	if channels <= 0 {
		channels = 1
	}
	return &chunkStream{
		ch:       make(chan []byte, 16),
		quit:     make(chan struct{}),
		onStop:   onStop,
		channels: channels,
	}
}

func (s *chunkStream) Chunks() <-chan []byte {
	return s.ch
}

func (s *chunkStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.onStop != nil {
			err = s.onStop()
		}
	})
	return err
}

func (s *chunkStream) Monitor(a *audio.Analyser) {
	s.monitor.Store(a)
}

// emit delivers a chunk and reports whether the stream is still wanted.
func (s *chunkStream) emit(chunk []byte) bool {
	if a := s.monitor.Load(); a != nil {
		a.WritePCM16(chunk, s.channels)
	}
	select {
	case s.ch <- chunk:
		return true
	case <-s.quit:
		// the final chunk still counts once stop is requested
		s.ch <- chunk
		return false
	}
}

// CommandMicrophone captures from the stdout of an external process, e.g.
// `arecord -q -f S16_LE -r 16000 -c 1 -t raw` or `ffmpeg -f avfoundation -i :0 -f s16le -`.
type CommandMicrophone struct {
	Argv       []string
	ChunkBytes int
	Channels   int
	Logger     *zap.Logger
}

// Open implements Microphone. A process that fails to start is reported as denied access.
func (m *CommandMicrophone) Open(ctx context.Context) (Stream, error) {
	if len(m.Argv) == 0 {
		return nil, ErrNoMicrophone
	}
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.CommandContext(ctx, m.Argv[0], m.Argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("microphone stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start microphone %q: %w", m.Argv[0], err)
	}
	logger.Info("microphone process started", zap.Strings("command", m.Argv), zap.Int("pid", cmd.Process.Pid))

	stream := newChunkStream(m.Channels, func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	})
	size := m.ChunkBytes
	if size <= 0 {
		size = 4096
	}
	go func() {
		defer close(stream.ch)
		reader := bufio.NewReaderSize(stdout, size)
		for {
			buf := make([]byte, size)
			n, err := io.ReadFull(reader, buf)
			if n > 0 {
				stream.emit(buf[:n])
			}
			if err != nil {
				break
			}
		}
		if err := cmd.Wait(); err != nil {
			logger.Debug("microphone process exited", zap.Error(err))
		}
	}()
	return stream, nil
}

// FileMicrophone replays a PCM or WAV file in paced chunks. After the file is exhausted
// the stream stays open until Stop, like a live microphone picking up silence.
type FileMicrophone struct {
	Path       string
	ChunkBytes int
	Interval   time.Duration
	Channels   int
}

// Open implements Microphone.
func (m *FileMicrophone) Open(ctx context.Context) (Stream, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, fmt.Errorf("open microphone file: %w", err)
	}
	size := m.ChunkBytes
	if size <= 0 {
		size = 4096
	}
	interval := m.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	stream := newChunkStream(m.Channels, nil)
	go func() {
		defer close(stream.ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for offset := 0; offset < len(data); {
			end := min(offset+size, len(data))
			chunk := data[offset:end]
			offset = end
			if !stream.emit(chunk) {
				return
			}
			select {
			case <-ticker.C:
			case <-stream.quit:
				return
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-stream.quit:
		case <-ctx.Done():
		}
	}()
	return stream, nil
}

// WAVMicrophone prefixes a raw PCM16 source with a streaming WAV header.
type WAVMicrophone struct {
	Source     Microphone
	SampleRate int
	Channels   int
}

// Open implements Microphone.
func (m *WAVMicrophone) Open(ctx context.Context) (Stream, error) {
	src, err := m.Source.Open(ctx)
	if err != nil {
		return nil, err
	}
	stream := newChunkStream(m.Channels, src.Stop)
	go func() {
		defer close(stream.ch)
		header := audio.WAVHeader(m.SampleRate, max(m.Channels, 1), -1)
		select {
		case stream.ch <- header:
		case <-stream.quit:
			stream.ch <- header
		}
		for chunk := range src.Chunks() {
			stream.emit(chunk)
		}
	}()
	return stream, nil
}

// OpusMicrophone encodes a raw PCM16 source into opus packets, one framed packet per chunk.
type OpusMicrophone struct {
	Source        Microphone
	SampleRate    int
	Channels      int
	FrameDuration int
	Options       audio.EncoderOptions
	Logger        *zap.Logger
}

// Open implements Microphone.
func (m *OpusMicrophone) Open(ctx context.Context) (Stream, error) {
	enc, err := audio.NewOpusEncoder(m.SampleRate, max(m.Channels, 1), m.FrameDuration, m.Options, m.Logger)
	if err != nil {
		return nil, err
	}
	src, err := m.Source.Open(ctx)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stream := newChunkStream(m.Channels, src.Stop)
	go func() {
		defer close(stream.ch)
		defer enc.Close()
		frameBytes := enc.FrameBytes()
		var pending []byte
		encode := func(pcm []byte) {
			packet, err := enc.Encode(pcm)
			if err != nil {
				logger.Warn("opus encode failed", zap.Error(err))
				return
			}
			if len(packet) == 0 {
				return
			}
			frame, err := codec.Pack(packet)
			if err != nil {
				logger.Warn("opus frame pack failed", zap.Error(err))
				return
			}
			stream.ch <- frame
		}
		for chunk := range src.Chunks() {
			if a := stream.monitor.Load(); a != nil {
				a.WritePCM16(chunk, stream.channels)
			}
			pending = append(pending, chunk...)
			for len(pending) >= frameBytes {
				encode(pending[:frameBytes])
				pending = pending[frameBytes:]
			}
		}
		if len(pending) > 0 {
			encode(pending)
		}
	}()
	return stream, nil
}

// FromConfig builds the microphone described by cfg.
func FromConfig(cfg config.RecorderConfig, logger *zap.Logger) (Microphone, error) {
	var src Microphone
	switch {
	case cfg.File != "":
		src = &FileMicrophone{Path: cfg.File, ChunkBytes: cfg.ChunkBytes, Interval: cfg.ChunkInterval, Channels: cfg.Channels}
	case len(cfg.Command) > 0:
		src = &CommandMicrophone{Argv: cfg.Command, ChunkBytes: cfg.ChunkBytes, Channels: cfg.Channels, Logger: logger}
	default:
		return nil, ErrNoMicrophone
	}
	switch cfg.Format {
	case "", "raw", "pcm", "pcm_s16le":
		return src, nil
	case "wav":
		return &WAVMicrophone{Source: src, SampleRate: cfg.SampleRate, Channels: cfg.Channels}, nil
	case "opus":
		return &OpusMicrophone{
			Source:        src,
			SampleRate:    cfg.SampleRate,
			Channels:      cfg.Channels,
			FrameDuration: cfg.FrameDuration,
			Options:       cfg.Opus,
			Logger:        logger,
		}, nil
	default:
		return nil, fmt.Errorf("recorder: unsupported format %q", cfg.Format)
	}
}

// Unavailable is a microphone whose every Open fails with Err. Each press then surfaces as
// a denied microphone.
type Unavailable struct {
	Err error
}

func (u Unavailable) Open(context.Context) (Stream, error) {
	if u.Err == nil {
		return nil, ErrNoMicrophone
	}
	return nil, u.Err
}
