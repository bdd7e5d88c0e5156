// Package visualizer draws the live spectrum or waveform of the active voice.
package visualizer

import (
	"math"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/internal/render"
	"github.com/saker-ai/orion-client/internal/settings"
	"github.com/saker-ai/orion-client/pkg/audio"
)

// Background is the canvas fill behind every frame.
var Background = render.RGB(31, 41, 55)

// Options reads the user's current choices. Both are read fresh each frame.
type Options interface {
	Style() string
	ColorScheme() string
}

// Visualizer runs a frame loop only while a voice is attached. Every method must run on the loop.
type Visualizer struct {
	canvas  render.Canvas
	options Options
	frames  *loop.Frames
	logger  *zap.Logger

	tap audio.Tap
	buf []byte
}

// New creates a stopped visualizer.
func New(exec loop.Executor, canvas render.Canvas, options Options, fps int, logger *zap.Logger) *Visualizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Visualizer{canvas: canvas, options: options, logger: logger}
	v.frames = loop.NewFrames(exec, fps, v.render)
	return v
}

// Start attaches a voice and begins drawing. Starting again swaps the voice.
func (v *Visualizer) Start(tap audio.Tap) {
	v.tap = tap
	v.frames.Start()
}

// Stop halts the frame loop and detaches the voice.
func (v *Visualizer) Stop() {
	v.frames.Stop()
	v.tap = nil
}

// Clear blanks the canvas.
func (v *Visualizer) Clear() {
	v.canvas.Clear()
	v.canvas.Flush()
}

// Running reports whether frames are scheduled.
func (v *Visualizer) Running() bool {
	return v.frames.Running()
}

// Step draws one frame immediately.
func (v *Visualizer) Step() {
	v.frames.Step()
}

func (v *Visualizer) render() {
	if v.tap == nil {
		return
	}
	analyser := v.tap.Analyser()
	if analyser == nil {
		return
	}
	w, h := v.canvas.Size()
	bins := analyser.FrequencyBinCount()
	v.canvas.Fill(Background)

	switch v.options.Style() {
	case settings.StyleWaveform:
		v.buf = analyser.ByteTimeDomainData(v.buf)
		Waveform(v.canvas, v.buf[:bins], float64(w), float64(h), v.tap.Rate(), v.options.ColorScheme())
	default:
		v.buf = analyser.ByteFrequencyData(v.buf)
		Bars(v.canvas, v.buf[:bins], float64(w), float64(h), v.options.ColorScheme())
	}
	v.canvas.Flush()
}

// Bars draws one rectangle per frequency bin, rising from the bottom edge.
func Bars(c render.Canvas, data []byte, width, height float64, scheme string) {
	n := len(data)
	if n == 0 {
		return
	}
	barWidth := width / float64(n) * 1.5
	x := 0.0
	for i, value := range data {
		barHeight := float64(value) / 2
		c.FillRect(x, height-barHeight, barWidth, barHeight, BarColor(scheme, barHeight, i, n))
		x += barWidth + 1
	}
}

// BarColor is the gradient for bin i of n with the given bar height.
func BarColor(scheme string, barHeight float64, i, n int) render.Color {
	t := float64(i) / float64(n)
	switch scheme {
	case settings.SchemeOrion:
		return render.RGB(barHeight+50*t, 100*t, 150)
	case settings.SchemeRetro:
		return render.RGB(50, barHeight+100*t, 50)
	default:
		return render.RGB(150*t, barHeight, 200)
	}
}

// Waveform draws the time-domain samples as one polyline centered on the canvas. The
// horizontal step grows with rate so the trace moves at the audible speed.
func Waveform(c render.Canvas, data []byte, width, height, rate float64, scheme string) {
	n := len(data)
	if n == 0 {
		return
	}
	slice := width / float64(n) * rate
	pts := make([]render.Point, 0, n+1)
	x := 0.0
	for _, value := range data {
		y := float64(value) / 128 * height / 2
		pts = append(pts, render.Point{X: x, Y: y})
		x += slice
	}
	pts = append(pts, render.Point{X: math.Min(x, width), Y: height / 2})
	c.Polyline(pts, 2, StrokeColor(scheme))
}

// StrokeColor is the waveform color of a scheme.
func StrokeColor(scheme string) render.Color {
	switch scheme {
	case settings.SchemeOrion:
		return render.RGB(147, 197, 253)
	case settings.SchemeRetro:
		return render.RGB(74, 222, 128)
	default:
		return render.RGB(244, 114, 182)
	}
}
