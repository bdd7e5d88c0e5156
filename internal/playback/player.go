package playback

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/pkg/audio"
)

// Voice is the handle of one playing segment.
type Voice interface {
	audio.Tap
	SetRate(rate float64)
	Stop()
}

// Player starts decoded audio. onEnded is called from any goroutine when playback runs to
// the end; it is never called after Stop.
type Player interface {
	Play(pcm audio.PCM, rate float64, onEnded func()) (Voice, error)
}

// ClockConfig configures a ClockPlayer.
type ClockConfig struct {
	Tick             time.Duration
	FFTSize          int
	OutputSampleRate int
}

// ClockPlayer plays PCM in real time against the wall clock. Each tick it advances
// rate × sample rate frames, feeds them to the voice analyser and, when a sink is set,
// resamples them to the sink's rate.
type ClockPlayer struct {
	cfg    ClockConfig
	sink   Sink
	logger *zap.Logger
}

// NewClockPlayer creates a player. sink may be nil.
func NewClockPlayer(cfg ClockConfig, sink Sink, logger *zap.Logger) *ClockPlayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 20 * time.Millisecond
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = audio.DefaultFFTSize
	}
	return &ClockPlayer{cfg: cfg, sink: sink, logger: logger}
}

// Play implements Player.
func (p *ClockPlayer) Play(pcm audio.PCM, rate float64, onEnded func()) (Voice, error) {
	if pcm.Frames() == 0 {
		return nil, ErrEmptySegment
	}
	v := &clockVoice{
		pcm:      pcm,
		rate:     sanitizeRate(rate),
		analyser: audio.NewAnalyser(p.cfg.FFTSize),
		sink:     p.sink,
		outRate:  p.cfg.OutputSampleRate,
		logger:   p.logger,
		onEnded:  onEnded,
		quit:     make(chan struct{}),
	}
	go v.run(p.cfg.Tick)
	return v, nil
}

type clockVoice struct {
	pcm      audio.PCM
	analyser *audio.Analyser
	sink     Sink
	outRate  int
	logger   *zap.Logger
	onEnded  func()

	mu        sync.Mutex
	rate      float64
	position  float64
	resampler *audio.StreamResampler

	quit     chan struct{}
	stopOnce sync.Once
}

func (v *clockVoice) Analyser() *audio.Analyser {
	return v.analyser
}

func (v *clockVoice) Rate() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rate
}

func (v *clockVoice) SetRate(rate float64) {
	v.mu.Lock()
	v.rate = sanitizeRate(rate)
	v.mu.Unlock()
}

// Position returns the number of frames already played.
func (v *clockVoice) Position() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return int(v.position)
}

func (v *clockVoice) Stop() {
	v.stopOnce.Do(func() { close(v.quit) })
}

func (v *clockVoice) run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	defer v.closeResampler()

	last := time.Now()
	total := v.pcm.Frames()
	frameBytes := 2 * v.pcm.Channels
	for {
		select {
		case <-v.quit:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now

			v.mu.Lock()
			rate := v.rate
			start := int(v.position)
			v.position = math.Min(v.position+elapsed*rate*float64(v.pcm.SampleRate), float64(total))
			end := int(v.position)
			v.mu.Unlock()

			if end > start {
				chunk := v.pcm.Data[start*frameBytes : end*frameBytes]
				v.analyser.WritePCM16(chunk, v.pcm.Channels)
				v.writeSink(chunk, rate)
			}
			if end >= total {
				select {
				case <-v.quit:
					return
				default:
				}
				if v.onEnded != nil {
					v.onEnded()
				}
				return
			}
		}
	}
}

func (v *clockVoice) writeSink(chunk []byte, rate float64) {
	if v.sink == nil {
		return
	}
	out := chunk
	if v.outRate > 0 {
		inRate := int(math.Round(float64(v.pcm.SampleRate) * rate))
		if v.resampler == nil || v.resampler.InRate() != inRate {
			v.closeResampler()
			r, err := audio.NewStreamResampler(inRate, v.outRate)
			if err != nil {
				v.logger.Warn("sink resampler init failed", zap.Error(err))
				return
			}
			v.resampler = r
		}
		if err := v.resampler.AppendPCM(audio.BytesToInt16(chunk)); err != nil {
			v.logger.Warn("sink resample failed", zap.Error(err))
			return
		}
		out = v.resampler.PopAll()
	}
	if len(out) == 0 {
		return
	}
	if err := v.sink.Write(out); err != nil {
		v.logger.Warn("sink write failed", zap.Error(err))
	}
}

func (v *clockVoice) closeResampler() {
	if v.resampler != nil {
		v.resampler.Close()
		v.resampler = nil
	}
}

func sanitizeRate(rate float64) float64 {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 1
	}
	return rate
}
