// Package settings holds the user-adjustable controls read by the recorder, playback and visualizer.
package settings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/saker-ai/orion-client/internal/config"
)

var (
	ErrOutOfRange    = errors.New("settings: value out of range")
	ErrUnknownOption = errors.New("settings: unknown option")
)

// Visualization styles.
const (
	StyleBars     = "bars"
	StyleWaveform = "waveform"
)

// Color schemes.
const (
	SchemeOrion  = "orion"
	SchemeRetro  = "retro"
	SchemeSunset = "sunset"
)

// Bounds constrains the numeric controls.
type Bounds struct {
	TemperatureMin float64
	TemperatureMax float64
	ContextMin     int
	ContextMax     int
	RateMin        float64
	RateMax        float64
}

// Values is a snapshot of every control.
type Values struct {
	Temperature   float64 `json:"temperature"`
	ContextLength int     `json:"context_length"`
	Instructions  string  `json:"instructions"`
	PlaybackRate  float64 `json:"playback_rate"`
	Style         string  `json:"visualization_style"`
	ColorScheme   string  `json:"color_scheme"`
}

// Display holds the formatted labels next to each slider.
type Display struct {
	Temperature  string `json:"temperature"`
	PlaybackRate string `json:"playback_rate"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	ContextLength *int     `json:"context_length,omitempty"`
	Instructions  *string  `json:"instructions,omitempty"`
	PlaybackRate  *float64 `json:"playback_rate,omitempty"`
	Style         *string  `json:"visualization_style,omitempty"`
	ColorScheme   *string  `json:"color_scheme,omitempty"`
}

// Settings is safe for concurrent use.
type Settings struct {
	mu     sync.RWMutex
	bounds Bounds
	values Values
}

// New builds settings from explicit bounds and initial values. Initial values are clamped.
func New(bounds Bounds, initial Values) *Settings {
	if bounds.RateMax <= bounds.RateMin {
		bounds.RateMin, bounds.RateMax = 0.97, 1.2
	}
	if bounds.TemperatureMax <= bounds.TemperatureMin {
		bounds.TemperatureMin, bounds.TemperatureMax = 0, 1
	}
	if bounds.ContextMax < bounds.ContextMin {
		bounds.ContextMax = bounds.ContextMin
	}
	initial.Temperature = clampFloat(initial.Temperature, bounds.TemperatureMin, bounds.TemperatureMax)
	initial.ContextLength = clampInt(initial.ContextLength, bounds.ContextMin, bounds.ContextMax)
	initial.PlaybackRate = clampFloat(initial.PlaybackRate, bounds.RateMin, bounds.RateMax)
	if !validStyle(initial.Style) {
		initial.Style = StyleBars
	}
	if !validScheme(initial.ColorScheme) {
		initial.ColorScheme = SchemeOrion
	}
	return &Settings{bounds: bounds, values: initial}
}

// FromConfig builds settings from the loaded configuration.
func FromConfig(cfg config.Config) *Settings {
	return New(Bounds{
		TemperatureMin: cfg.Session.TemperatureMin,
		TemperatureMax: cfg.Session.TemperatureMax,
		ContextMin:     cfg.Session.ContextMin,
		ContextMax:     cfg.Session.ContextMax,
		RateMin:        cfg.Playback.RateMin,
		RateMax:        cfg.Playback.RateMax,
	}, Values{
		Temperature:   cfg.Session.Temperature,
		ContextLength: cfg.Session.ContextLength,
		Instructions:  cfg.Session.Instructions,
		PlaybackRate:  cfg.Playback.Rate,
		Style:         cfg.Visualizer.Style,
		ColorScheme:   cfg.Visualizer.ColorScheme,
	})
}

// Values returns a snapshot.
func (s *Settings) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Bounds returns the configured ranges.
func (s *Settings) Bounds() Bounds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds
}

func (s *Settings) Temperature() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Temperature
}

func (s *Settings) ContextLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.ContextLength
}

func (s *Settings) Instructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Instructions
}

func (s *Settings) PlaybackRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.PlaybackRate
}

func (s *Settings) Style() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Style
}

func (s *Settings) ColorScheme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.ColorScheme
}

// SetTemperature validates and stores the sampling temperature.
func (s *Settings) SetTemperature(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(v) || v < s.bounds.TemperatureMin || v > s.bounds.TemperatureMax {
		return fmt.Errorf("%w: temperature %v not in [%v, %v]", ErrOutOfRange, v, s.bounds.TemperatureMin, s.bounds.TemperatureMax)
	}
	s.values.Temperature = v
	return nil
}

// SetContextLength validates and stores the number of turns the server keeps.
func (s *Settings) SetContextLength(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < s.bounds.ContextMin || v > s.bounds.ContextMax {
		return fmt.Errorf("%w: context length %d not in [%d, %d]", ErrOutOfRange, v, s.bounds.ContextMin, s.bounds.ContextMax)
	}
	s.values.ContextLength = v
	return nil
}

func (s *Settings) SetInstructions(v string) {
	s.mu.Lock()
	s.values.Instructions = v
	s.mu.Unlock()
}

// SetPlaybackRate stores an absolute playback rate.
func (s *Settings) SetPlaybackRate(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(v) || v < s.bounds.RateMin || v > s.bounds.RateMax {
		return fmt.Errorf("%w: playback rate %v not in [%v, %v]", ErrOutOfRange, v, s.bounds.RateMin, s.bounds.RateMax)
	}
	s.values.PlaybackRate = v
	return nil
}

// SetSlider maps a normalized slider position in [0,1] onto the playback rate range.
func (s *Settings) SetSlider(pos float64) (float64, error) {
	if math.IsNaN(pos) || pos < 0 || pos > 1 {
		return 0, fmt.Errorf("%w: slider %v not in [0, 1]", ErrOutOfRange, pos)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rate := s.bounds.RateMin + pos*(s.bounds.RateMax-s.bounds.RateMin)
	s.values.PlaybackRate = rate
	return rate, nil
}

func (s *Settings) SetStyle(v string) error {
	if !validStyle(v) {
		return fmt.Errorf("%w: visualization style %q", ErrUnknownOption, v)
	}
	s.mu.Lock()
	s.values.Style = v
	s.mu.Unlock()
	return nil
}

func (s *Settings) SetColorScheme(v string) error {
	if !validScheme(v) {
		return fmt.Errorf("%w: color scheme %q", ErrUnknownOption, v)
	}
	s.mu.Lock()
	s.values.ColorScheme = v
	s.mu.Unlock()
	return nil
}

// Apply validates every field of the patch before storing any of them.
func (s *Settings) Apply(p Patch) error {
	s.mu.RLock()
	b := s.bounds
	s.mu.RUnlock()

	if p.Temperature != nil && (math.IsNaN(*p.Temperature) || *p.Temperature < b.TemperatureMin || *p.Temperature > b.TemperatureMax) {
		return fmt.Errorf("%w: temperature %v", ErrOutOfRange, *p.Temperature)
	}
	if p.ContextLength != nil && (*p.ContextLength < b.ContextMin || *p.ContextLength > b.ContextMax) {
		return fmt.Errorf("%w: context length %d", ErrOutOfRange, *p.ContextLength)
	}
	if p.PlaybackRate != nil && (math.IsNaN(*p.PlaybackRate) || *p.PlaybackRate < b.RateMin || *p.PlaybackRate > b.RateMax) {
		return fmt.Errorf("%w: playback rate %v", ErrOutOfRange, *p.PlaybackRate)
	}
	if p.Style != nil && !validStyle(*p.Style) {
		return fmt.Errorf("%w: visualization style %q", ErrUnknownOption, *p.Style)
	}
	if p.ColorScheme != nil && !validScheme(*p.ColorScheme) {
		return fmt.Errorf("%w: color scheme %q", ErrUnknownOption, *p.ColorScheme)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Temperature != nil {
		s.values.Temperature = *p.Temperature
	}
	if p.ContextLength != nil {
		s.values.ContextLength = *p.ContextLength
	}
	if p.Instructions != nil {
		s.values.Instructions = *p.Instructions
	}
	if p.PlaybackRate != nil {
		s.values.PlaybackRate = *p.PlaybackRate
	}
	if p.Style != nil {
		s.values.Style = *p.Style
	}
	if p.ColorScheme != nil {
		s.values.ColorScheme = *p.ColorScheme
	}
	return nil
}

// Display formats the slider labels: temperature with one decimal, playback rate as its
// normalized slider position with two decimals.
func (s *Settings) Display() Display {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos := (s.values.PlaybackRate - s.bounds.RateMin) / (s.bounds.RateMax - s.bounds.RateMin)
	return Display{
		Temperature:  strconv.FormatFloat(s.values.Temperature, 'f', 1, 64),
		PlaybackRate: strconv.FormatFloat(pos, 'f', 2, 64),
	}
}

func validStyle(v string) bool {
	return v == StyleBars || v == StyleWaveform
}

func validScheme(v string) bool {
	switch v {
	case SchemeOrion, SchemeRetro, SchemeSunset:
		return true
	}
	return false
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
