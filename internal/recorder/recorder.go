// Package recorder captures one utterance per gesture and hands the finished blob to the channel.
package recorder

import (
	"context"
	"encoding/base64"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/internal/protocol"
	"github.com/saker-ai/orion-client/pkg/audio"
)

// Stream is an open microphone. Chunks is closed after Stop once the last chunk is delivered.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
}

// Monitorable streams can feed a live analyser. A nil analyser detaches it.
type Monitorable interface {
	Monitor(a *audio.Analyser)
}

// Microphone opens capture streams. An error means access was denied or the device failed.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Sender delivers a finished recording.
type Sender interface {
	IsOpen() bool
	Send(payload protocol.RecordingPayload) bool
}

// Session returns the session parameters attached to a recording.
type Session func() (temperature float64, contextLength int, instructions string)

// Drop reasons reported through OnDropped.
const (
	DropNoAudio      = "no_audio"
	DropChannelShut  = "channel_closed"
	DropSendRejected = "send_rejected"
)

// Hooks report recorder events. All hooks run on the loop.
type Hooks struct {
	BeforeStart func()
	OnDenied    func(err error)
	OnStarted   func()
	OnStopped   func()
	OnSent      func(audioBytes int)
	OnDropped   func(reason string)
}

type attempt struct{}

type session struct {
	stream   Stream
	chunks   [][]byte
	size     int
	analyser *audio.Analyser
	stopping bool
}

// Recorder owns at most one recording session. Every method must run on the loop.
type Recorder struct {
	exec    loop.Executor
	mic     Microphone
	sender  Sender
	params  Session
	hooks   Hooks
	logger  *zap.Logger
	fftSize int

	pending *attempt
	active  *session
}

// New creates a recorder.
func New(exec loop.Executor, mic Microphone, sender Sender, params Session, hooks Hooks, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		exec:    exec,
		mic:     mic,
		sender:  sender,
		params:  params,
		hooks:   hooks,
		logger:  logger,
		fftSize: audio.DefaultFFTSize,
	}
}

// Active reports whether a session is capturing or finalizing.
func (r *Recorder) Active() bool {
	return r.active != nil
}

// Pending reports whether microphone access is being requested.
func (r *Recorder) Pending() bool {
	return r.pending != nil
}

// Analyser returns the live input analyser, or nil when idle.
func (r *Recorder) Analyser() *audio.Analyser {
	if r.active == nil {
		return nil
	}
	return r.active.analyser
}

// Start runs BeforeStart and requests the microphone. It is ignored while a recording is
// already pending or active.
func (r *Recorder) Start(ctx context.Context) {
	if r.pending != nil || r.active != nil {
		r.logger.Debug("record start ignored, already recording")
		return
	}
	if r.hooks.BeforeStart != nil {
		r.hooks.BeforeStart()
	}
	a := &attempt{}
	r.pending = a
	r.exec.Go(func() {
		stream, err := r.mic.Open(ctx)
		r.exec.Post(func() { r.opened(a, stream, err) })
	})
}

// Stop finalizes the active session. A release while access is still pending abandons the attempt.
func (r *Recorder) Stop() {
	if r.active == nil {
		if r.pending != nil {
			r.logger.Info("record released before microphone was granted")
			r.pending = nil
		}
		return
	}
	r.stop(r.active)
}

func (r *Recorder) stop(s *session) {
	if s.stopping {
		return
	}
	s.stopping = true
	if r.hooks.OnStopped != nil {
		r.hooks.OnStopped()
	}
	stream := s.stream
	r.exec.Go(func() {
		if err := stream.Stop(); err != nil {
			r.logger.Warn("microphone stop failed", zap.Error(err))
		}
	})
}

func (r *Recorder) opened(a *attempt, stream Stream, err error) {
	if r.pending != a {
		if stream != nil {
			r.exec.Go(func() { _ = stream.Stop() })
			// nobody pumps an abandoned stream; drain it so the producer can finish
			go func() {
				for range stream.Chunks() {
				}
			}()
		}
		return
	}
	r.pending = nil
	if err != nil {
		r.logger.Warn("microphone access denied", zap.Error(err))
		if r.hooks.OnDenied != nil {
			r.hooks.OnDenied(err)
		}
		return
	}

	s := &session{stream: stream, analyser: audio.NewAnalyser(r.fftSize)}
	if m, ok := stream.(Monitorable); ok {
		m.Monitor(s.analyser)
	}
	r.active = s
	// the pump lives as long as the stream, so it runs outside the executor
	go func() {
		for chunk := range stream.Chunks() {
			r.exec.Post(func() { r.collect(s, chunk) })
		}
		r.exec.Post(func() { r.closed(s) })
	}()
	r.logger.Info("recording started")
	if r.hooks.OnStarted != nil {
		r.hooks.OnStarted()
	}
}

func (r *Recorder) collect(s *session, chunk []byte) {
	if r.active != s || len(chunk) == 0 {
		return
	}
	s.chunks = append(s.chunks, chunk)
	s.size += len(chunk)
}

func (r *Recorder) closed(s *session) {
	if r.active != s {
		return
	}
	if !s.stopping {
		r.logger.Warn("microphone stream ended before release")
		s.stopping = true
		if r.hooks.OnStopped != nil {
			r.hooks.OnStopped()
		}
	}
	r.active = nil
	if m, ok := s.stream.(Monitorable); ok {
		m.Monitor(nil)
	}
	r.finalize(s)
}

func (r *Recorder) finalize(s *session) {
	if len(s.chunks) == 0 {
		r.drop(DropNoAudio)
		return
	}
	if r.sender == nil || !r.sender.IsOpen() {
		r.drop(DropChannelShut)
		return
	}

	blob := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		blob = append(blob, c...)
	}
	payload := protocol.RecordingPayload{Audio: base64.StdEncoding.EncodeToString(blob)}
	if r.params != nil {
		payload.Temperature, payload.ContextLength, payload.Instructions = r.params()
	}
	if !r.sender.Send(payload) {
		r.drop(DropSendRejected)
		return
	}
	r.logger.Info("recording sent", zap.Int("chunks", len(s.chunks)), zap.Int("bytes", len(blob)))
	if r.hooks.OnSent != nil {
		r.hooks.OnSent(len(blob))
	}
}

func (r *Recorder) drop(reason string) {
	r.logger.Info("recording dropped", zap.String("reason", reason))
	if r.hooks.OnDropped != nil {
		r.hooks.OnDropped(reason)
	}
}
