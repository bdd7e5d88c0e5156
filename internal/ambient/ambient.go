// Package ambient animates the drifting particle field shown behind the assistant.
package ambient

import (
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/internal/render"
)

// Particle is one dot of the field. VX and VY are the velocities applied on the last frame.
type Particle struct {
	X, Y   float64
	Radius float64
	BaseVX float64
	BaseVY float64
	VX, VY float64
	Color  render.Color
}

// Config sizes the field.
type Config struct {
	BaseParticles int
	BusyExtra     int
	SpeedBoost    float64
	LinkDistance  float64
	FPS           int
	Seed          uint64
}

func (c Config) withDefaults() Config {
	if c.BaseParticles < 0 {
		c.BaseParticles = 0
	}
	if c.BusyExtra < 0 {
		c.BusyExtra = 0
	}
	if c.SpeedBoost <= 0 {
		c.SpeedBoost = 2.5
	}
	if c.LinkDistance <= 0 {
		c.LinkDistance = 70
	}
	return c
}

// Animator owns the particle population. Every method must run on the loop, except
// Population which copies under its own lock.
type Animator struct {
	cfg    Config
	canvas render.Canvas
	frames *loop.Frames
	rng    *rand.Rand
	logger *zap.Logger

	busy      bool
	particles []Particle
	snapshot  snapshot
}

// New creates an animator with the baseline population. A zero seed draws from the clock.
func New(exec loop.Executor, canvas render.Canvas, cfg Config, logger *zap.Logger) *Animator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	a := &Animator{
		cfg:    cfg,
		canvas: canvas,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger: logger,
	}
	a.frames = loop.NewFrames(exec, cfg.FPS, a.Step)
	a.particles = a.spawn(cfg.BaseParticles)
	a.snapshot.store(a.particles)
	return a
}

// Start begins the frame loop.
func (a *Animator) Start() {
	a.frames.Start()
}

// Stop halts the frame loop.
func (a *Animator) Stop() {
	a.frames.Stop()
}

// Busy reports whether the processing population is active.
func (a *Animator) Busy() bool {
	return a.busy
}

// SetBusy replaces the whole population with a freshly generated one of the matching size.
func (a *Animator) SetBusy(busy bool) {
	a.busy = busy
	n := a.cfg.BaseParticles
	if busy {
		n += a.cfg.BusyExtra
	}
	a.particles = a.spawn(n)
	a.snapshot.store(a.particles)
	a.logger.Debug("ambient population replaced", zap.Bool("busy", busy), zap.Int("particles", n))
}

// Population returns a copy of the current particles.
func (a *Animator) Population() []Particle {
	return a.snapshot.load()
}

// Step advances and draws one frame.
func (a *Animator) Step() {
	w, h := a.canvas.Size()
	width, height := float64(w), float64(h)
	boost := 1.0
	if a.busy {
		boost = a.cfg.SpeedBoost
	}

	a.canvas.Clear()
	for i := range a.particles {
		p := &a.particles[i]
		p.VX = p.BaseVX * boost
		p.VY = p.BaseVY * boost
		p.X += p.VX
		p.Y += p.VY
		p.X = wrap(p.X, width)
		p.Y = wrap(p.Y, height)

		a.canvas.FillCircle(p.X, p.Y, p.Radius, p.Color)
		for j := i + 1; j < len(a.particles); j++ {
			q := &a.particles[j]
			d := math.Hypot(p.X-q.X, p.Y-q.Y)
			if d < a.cfg.LinkDistance {
				a.canvas.Line(p.X, p.Y, q.X, q.Y, 1, LinkColor(d))
			}
		}
	}
	a.canvas.Flush()
	a.snapshot.store(a.particles)
}

// LinkColor is the white connecting line for two particles d apart.
func LinkColor(d float64) render.Color {
	return render.RGBA(255, 255, 255, max(0.4-d/100, 0))
}

func (a *Animator) spawn(n int) []Particle {
	w, h := a.canvas.Size()
	out := make([]Particle, n)
	for i := range out {
		p := Particle{
			X:      a.rng.Float64() * float64(w),
			Y:      a.rng.Float64() * float64(h),
			Radius: a.rng.Float64()*2 + 1,
			BaseVX: (a.rng.Float64() - 0.5) * 0.5,
			BaseVY: (a.rng.Float64() - 0.5) * 0.5,
			Color:  render.RGBA(147, 197, 253, a.rng.Float64()*0.5+0.3),
		}
		p.VX, p.VY = p.BaseVX, p.BaseVY
		out[i] = p
	}
	return out
}

// wrap moves a coordinate that left [0, limit] to the opposite edge.
func wrap(v, limit float64) float64 {
	if v < 0 {
		return limit
	}
	if v > limit {
		return 0
	}
	return v
}
