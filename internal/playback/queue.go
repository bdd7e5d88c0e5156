// Package playback plays server audio segments one at a time, in arrival order.
package playback

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/pkg/audio"
)

// State is the queue's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateDecoding State = "decoding"
	StatePlaying  State = "playing"
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("playback: invalid state transition")

var transitions = map[State]map[State]struct{}{
	StateIdle: {
		StateDecoding: {},
	},
	StateDecoding: {
		StatePlaying: {},
		StateIdle:    {},
	},
	StatePlaying: {
		StateIdle: {},
	},
}

// Display is the visual tied to the active voice.
type Display interface {
	Start(tap audio.Tap)
	Stop()
	Clear()
}

// Hooks report queue events. All hooks run on the loop.
type Hooks struct {
	OnEnqueued    func(depth int)
	OnStarted     func()
	OnFailed      func(err error)
	OnEnded       func()
	OnDrained     func()
	OnInterrupted func(discarded int)
}

// Options tunes queue behaviour.
type Options struct {
	// SkipFailed advances to the next segment after a decode failure instead of stalling.
	SkipFailed bool
	// Rate returns the playback rate applied when a segment starts.
	Rate   func() float64
	Logger *zap.Logger
}

// Queue is a FIFO of encoded segments with at most one active voice. Every method must
// run on the loop.
type Queue struct {
	exec    loop.Executor
	decoder Decoder
	player  Player
	display Display
	hooks   Hooks
	opts    Options
	logger  *zap.Logger

	state   State
	pending []string
	voice   Voice
	gen     uint64
}

// New creates an idle queue.
func New(exec loop.Executor, decoder Decoder, player Player, display Display, hooks Hooks, opts Options) *Queue {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Rate == nil {
		opts.Rate = func() float64 { return 1 }
	}
	return &Queue{
		exec:    exec,
		decoder: decoder,
		player:  player,
		display: display,
		hooks:   hooks,
		opts:    opts,
		logger:  logger,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (q *Queue) State() State {
	return q.state
}

// Len returns the number of segments waiting.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Active reports whether a segment is decoding or playing.
func (q *Queue) Active() bool {
	return q.state != StateIdle
}

// Enqueue appends a base64 segment. It does not start playback.
func (q *Queue) Enqueue(segment string) {
	q.pending = append(q.pending, segment)
	if q.hooks.OnEnqueued != nil {
		q.hooks.OnEnqueued(len(q.pending))
	}
}

// Pump starts the oldest segment if nothing is active. It reports whether a session began.
func (q *Queue) Pump() bool {
	if q.state != StateIdle || len(q.pending) == 0 {
		return false
	}
	segment := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]

	q.stopVoice()
	if err := q.transition(StateDecoding); err != nil {
		return false
	}
	q.gen++
	gen := q.gen
	q.exec.Go(func() {
		pcm, err := DecodeSegment(q.decoder, segment)
		q.exec.Post(func() { q.decoded(gen, pcm, err) })
	})
	return true
}

// Interrupt stops the active voice and discards every pending segment.
func (q *Queue) Interrupt() int {
	discarded := len(q.pending)
	q.pending = nil
	q.gen++
	q.stopVoice()
	q.state = StateIdle
	q.logger.Info("playback interrupted", zap.Int("discarded", discarded))
	if q.hooks.OnInterrupted != nil {
		q.hooks.OnInterrupted(discarded)
	}
	return discarded
}

// SetRate changes the rate of the active voice without restarting it.
func (q *Queue) SetRate(rate float64) {
	if q.voice != nil {
		q.voice.SetRate(rate)
	}
}

func (q *Queue) decoded(gen uint64, pcm audio.PCM, err error) {
	if gen != q.gen || q.state != StateDecoding {
		q.logger.Debug("dropping stale decode result", zap.Uint64("gen", gen))
		return
	}
	if err != nil {
		q.fail(err)
		return
	}

	voice, err := q.player.Play(pcm, q.opts.Rate(), func() {
		q.exec.Post(func() { q.ended(gen) })
	})
	if err != nil {
		q.fail(fmt.Errorf("start playback: %w", err))
		return
	}
	if err := q.transition(StatePlaying); err != nil {
		voice.Stop()
		return
	}
	q.voice = voice
	q.logger.Debug("playback started",
		zap.Int("sample_rate", pcm.SampleRate),
		zap.Int("channels", pcm.Channels),
		zap.Float64("seconds", audio.Duration(pcm.Data, pcm.SampleRate, pcm.Channels)),
	)
	if q.hooks.OnStarted != nil {
		q.hooks.OnStarted()
	}
	if q.display != nil {
		q.display.Start(voice)
	}
}

func (q *Queue) ended(gen uint64) {
	if gen != q.gen || q.state != StatePlaying {
		return
	}
	q.stopVoice()
	if err := q.transition(StateIdle); err != nil {
		return
	}
	if q.hooks.OnEnded != nil {
		q.hooks.OnEnded()
	}
	if !q.Pump() && q.state == StateIdle && q.hooks.OnDrained != nil {
		q.hooks.OnDrained()
	}
}

func (q *Queue) fail(err error) {
	q.logger.Warn("segment playback failed", zap.Error(err), zap.Int("pending", len(q.pending)))
	if terr := q.transition(StateIdle); terr != nil {
		return
	}
	if q.hooks.OnFailed != nil {
		q.hooks.OnFailed(err)
	}
	if q.opts.SkipFailed {
		q.Pump()
	}
}

func (q *Queue) stopVoice() {
	if q.voice != nil {
		q.voice.Stop()
		q.voice = nil
	}
	if q.display != nil {
		q.display.Stop()
		q.display.Clear()
	}
}

func (q *Queue) transition(to State) error {
	if _, ok := transitions[q.state][to]; !ok {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.state, to)
		q.logger.Error("playback transition rejected", zap.Error(err))
		return err
	}
	q.state = to
	return nil
}
