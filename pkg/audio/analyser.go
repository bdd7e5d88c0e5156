package audio

import (
	"math"
	"sync"
)

const (
	DefaultFFTSize   = 256
	DefaultSmoothing = 0.8
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0
)

// Analyser exposes frequency and time-domain snapshots of the most recent samples, scaled
// to bytes the way a browser AnalyserNode does.
type Analyser struct {
	mu        sync.Mutex
	fftSize   int
	ring      []float32
	pos       int
	smoothed  []float64
	window    []float64
	re, im    []float64
	smoothing float64
	minDB     float64
	maxDB     float64
}

// NewAnalyser creates an analyser. fftSize is rounded up to a power of two in [32, 32768].
func NewAnalyser(fftSize int) *Analyser {
	size := 32
	for size < fftSize && size < 32768 {
		size <<= 1
	}
	return &Analyser{
		fftSize:   size,
		ring:      make([]float32, size),
		smoothed:  make([]float64, size/2),
		window:    blackman(size),
		re:        make([]float64, size),
		im:        make([]float64, size),
		smoothing: DefaultSmoothing,
		minDB:     DefaultMinDB,
		maxDB:     DefaultMaxDB,
	}
}

// FFTSize returns the analysis window length.
func (a *Analyser) FFTSize() int {
	return a.fftSize
}

// FrequencyBinCount is half the FFT size.
func (a *Analyser) FrequencyBinCount() int {
	return a.fftSize / 2
}

// Write appends mono samples in [-1, 1].
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.fftSize
	}
}

// WritePCM16 appends little-endian PCM16 audio, downmixed to mono.
func (a *Analyser) WritePCM16(pcm []byte, channels int) {
	if len(pcm) < 2 {
		return
	}
	samples := AcquireInt16((len(pcm) + 1) / 2)
	samples = BytesToInt16Into(samples, pcm)
	a.Write(Mono(samples, channels))
	ReleaseInt16(samples)
}

// Reset clears the sample window and the smoothing state.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

// ByteTimeDomainData fills dst with the latest waveform, 128 meaning silence.
func (a *Analyser) ByteTimeDomainData(dst []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	dst = sizeBytes(dst, a.fftSize)
	for i := range dst {
		s := float64(a.ring[(a.pos+i)%a.fftSize])
		dst[i] = clampByte(128 * (1 + s))
	}
	return dst
}

// ByteFrequencyData fills dst with smoothed magnitudes mapped from [minDB, maxDB] onto [0, 255].
// Each call advances the smoothing state.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.fftSize
	for i := 0; i < n; i++ {
		a.re[i] = float64(a.ring[(a.pos+i)%n]) * a.window[i]
		a.im[i] = 0
	}
	fft(a.re, a.im)

	bins := n / 2
	dst = sizeBytes(dst, bins)
	scale := 255 / (a.maxDB - a.minDB)
	for k := 0; k < bins; k++ {
		mag := math.Hypot(a.re[k], a.im[k]) / float64(n)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		dst[k] = clampByte((db - a.minDB) * scale)
	}
	return dst
}

func sizeBytes(dst []byte, n int) []byte {
	if cap(dst) < n {
		return make([]byte, n)
	}
	return dst[:n]
}

func clampByte(v float64) byte {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}

// Tap is a live audio source a visualizer can sample.
type Tap interface {
	Analyser() *Analyser
	Rate() float64
}
