package settings

import (
	"errors"
	"math"
	"testing"
)

func newTestSettings() *Settings {
	return New(Bounds{
		TemperatureMin: 0,
		TemperatureMax: 1,
		ContextMin:     1,
		ContextMax:     50,
		RateMin:        0.97,
		RateMax:        1.2,
	}, Values{
		Temperature:   0.7,
		ContextLength: 10,
		PlaybackRate:  1.0,
		Style:         StyleBars,
		ColorScheme:   SchemeOrion,
	})
}

func TestDisplay(t *testing.T) {
	s := newTestSettings()
	d := s.Display()
	if d.Temperature != "0.7" {
		t.Fatalf("temperature display=%q, want %q", d.Temperature, "0.7")
	}
	if d.PlaybackRate != "0.13" {
		t.Fatalf("rate display=%q, want %q", d.PlaybackRate, "0.13")
	}
}

func TestSetSliderMapsToRange(t *testing.T) {
	s := newTestSettings()
	tests := []struct {
		pos  float64
		want float64
	}{
		{pos: 0, want: 0.97},
		{pos: 1, want: 1.2},
		{pos: 0.5, want: 1.085},
	}
	for _, tt := range tests {
		got, err := s.SetSlider(tt.pos)
		if err != nil {
			t.Fatalf("SetSlider(%v) error: %v", tt.pos, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("SetSlider(%v)=%v, want %v", tt.pos, got, tt.want)
		}
	}
	if _, err := s.SetSlider(1.5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetSlider(1.5) err=%v, want ErrOutOfRange", err)
	}
}

func TestValidation(t *testing.T) {
	s := newTestSettings()
	if err := s.SetTemperature(1.5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetTemperature err=%v, want ErrOutOfRange", err)
	}
	if err := s.SetContextLength(0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetContextLength err=%v, want ErrOutOfRange", err)
	}
	if err := s.SetStyle("spiral"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("SetStyle err=%v, want ErrUnknownOption", err)
	}
	if err := s.SetColorScheme("neon"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("SetColorScheme err=%v, want ErrUnknownOption", err)
	}
	if err := s.SetColorScheme(SchemeSunset); err != nil {
		t.Fatalf("SetColorScheme error: %v", err)
	}
	if got := s.ColorScheme(); got != SchemeSunset {
		t.Fatalf("scheme=%q, want %q", got, SchemeSunset)
	}
}

func TestApplyIsAtomic(t *testing.T) {
	s := newTestSettings()
	temp := 0.2
	bad := 99
	err := s.Apply(Patch{Temperature: &temp, ContextLength: &bad})
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Apply err=%v, want ErrOutOfRange", err)
	}
	if got := s.Temperature(); got != 0.7 {
		t.Fatalf("temperature=%v after rejected patch, want 0.7", got)
	}

	ctx := 20
	instr := "answer briefly"
	if err := s.Apply(Patch{Temperature: &temp, ContextLength: &ctx, Instructions: &instr}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	v := s.Values()
	if v.Temperature != 0.2 || v.ContextLength != 20 || v.Instructions != instr {
		t.Fatalf("values=%+v, want temperature 0.2, context 20, instructions %q", v, instr)
	}
}

func TestNewClampsInitialValues(t *testing.T) {
	s := New(Bounds{RateMin: 0.97, RateMax: 1.2, TemperatureMax: 1, ContextMin: 1, ContextMax: 50},
		Values{Temperature: 3, ContextLength: 0, PlaybackRate: 2, Style: "?", ColorScheme: ""})
	v := s.Values()
	if v.Temperature != 1 || v.ContextLength != 1 || v.PlaybackRate != 1.2 {
		t.Fatalf("values=%+v, want clamped", v)
	}
	if v.Style != StyleBars || v.ColorScheme != SchemeOrion {
		t.Fatalf("style=%q scheme=%q, want defaults", v.Style, v.ColorScheme)
	}
}
