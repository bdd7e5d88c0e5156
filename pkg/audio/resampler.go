package audio

import (
	"errors"

	resampler "github.com/godeps/go-audio-soxr"
)

type soxrKey struct {
	inRate  int
	outRate int
	quality resampler.QualityPreset
}

var soxrPools keyedPools[soxrKey]

func acquireSoxrResampler(key soxrKey) (*resampler.SimpleResamplerFloat32, error) {
	if v := soxrPools.get(key).Get(); v != nil {
		if r, ok := v.(*resampler.SimpleResamplerFloat32); ok && r != nil {
			return r, nil
		}
	}
	return resampler.NewEngineFloat32(float64(key.inRate), float64(key.outRate), key.quality)
}

func releaseSoxrResampler(key soxrKey, r *resampler.SimpleResamplerFloat32) {
	if r == nil {
		return
	}
	r.Reset()
	soxrPools.get(key).Put(r)
}

// StreamResampler keeps resampling state across frames of a continuous stream.
type StreamResampler struct {
	key    soxrKey
	r      *resampler.SimpleResamplerFloat32
	outBuf []float32
}

// NewStreamResampler creates a streaming resampler from inRate to outRate.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, errors.New("resampler rates must be positive")
	}
	key := soxrKey{inRate: inRate, outRate: outRate, quality: resampler.QualityHigh}
	r, err := acquireSoxrResampler(key)
	if err != nil {
		return nil, err
	}
	return &StreamResampler{key: key, r: r}, nil
}

// InRate returns the source rate.
func (s *StreamResampler) InRate() int {
	if s == nil {
		return 0
	}
	return s.key.inRate
}

// Close releases the underlying resampler.
func (s *StreamResampler) Close() {
	if s == nil || s.r == nil {
		return
	}
	releaseSoxrResampler(s.key, s.r)
	s.r = nil
	s.outBuf = nil
}

// AppendPCM feeds PCM16 samples.
func (s *StreamResampler) AppendPCM(pcm []int16) error {
	if s == nil || s.r == nil || len(pcm) == 0 {
		return nil
	}
	tmp := AcquireFloat32(len(pcm))
	tmp = Int16ToFloat32Into(tmp, pcm)
	out, err := s.r.Process(tmp)
	ReleaseFloat32(tmp)
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// Flush drains samples still buffered inside the resampler.
func (s *StreamResampler) Flush() error {
	if s == nil || s.r == nil {
		return nil
	}
	out, err := s.r.Flush()
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// Buffered returns the number of resampled samples ready to pop.
func (s *StreamResampler) Buffered() int {
	if s == nil {
		return 0
	}
	return len(s.outBuf)
}

// PopAll returns every resampled sample as PCM16 bytes.
func (s *StreamResampler) PopAll() []byte {
	if s == nil || len(s.outBuf) == 0 {
		return nil
	}
	frame := AcquireInt16(len(s.outBuf))
	frame = Float32ToInt16Into(frame, s.outBuf)
	s.outBuf = s.outBuf[:0]
	out := Int16ToBytes(frame)
	ReleaseInt16(frame)
	return out
}
