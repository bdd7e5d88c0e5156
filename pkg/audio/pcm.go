// Package audio holds the PCM helpers, codecs, resampler and analyser shared by the
// recorder and the playback path.
package audio

import (
	"encoding/binary"
	"math"
)

func float32ToInt16(sample float32) int16 {
	if sample > 1.0 {
		return 32767
	}
	if sample < -1.0 {
		return -32768
	}
	return int16(sample * 32767)
}

// Float32ToInt16Into fills dst with float32 converted to int16 and returns the slice.
func Float32ToInt16Into(dst []int16, samples []float32) []int16 {
	if cap(dst) < len(samples) {
		dst = make([]int16, len(samples))
	} else {
		dst = dst[:len(samples)]
	}
	for i, sample := range samples {
		dst[i] = float32ToInt16(sample)
	}
	return dst
}

// Int16ToFloat32Into fills dst with int16 converted to float32 and returns the slice.
func Int16ToFloat32Into(dst []float32, samples []int16) []float32 {
	if cap(dst) < len(samples) {
		dst = make([]float32, len(samples))
	} else {
		dst = dst[:len(samples)]
	}
	for i, sample := range samples {
		dst[i] = float32(sample) / float32(math.MaxInt16)
	}
	return dst
}

// Int16ToBytes converts int16 samples to little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	if len(samples) == 0 {
		return nil
	}
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// BytesToInt16Into fills dst with little-endian int16 samples. A trailing odd byte becomes
// the low half of a final sample.
func BytesToInt16Into(dst []int16, data []byte) []int16 {
	needed := (len(data) + 1) / 2
	if cap(dst) < needed {
		dst = make([]int16, needed)
	} else {
		dst = dst[:needed]
	}
	for i := 0; i < needed; i++ {
		low := data[i*2]
		high := byte(0)
		if i*2+1 < len(data) {
			high = data[i*2+1]
		}
		dst[i] = int16(low) | int16(high)<<8
	}
	return dst
}

// BytesToInt16 decodes little-endian PCM16 bytes.
func BytesToInt16(data []byte) []int16 {
	return BytesToInt16Into(nil, data)
}

// Mono averages interleaved channels into a single float channel in [-1, 1].
func Mono(samples []int16, channels int) []float32 {
	if channels <= 1 {
		return Int16ToFloat32Into(nil, samples)
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = float32(sum) / float32(channels) / float32(math.MaxInt16)
	}
	return out
}

// Duration returns the playback length in seconds of a PCM16 buffer.
func Duration(pcm []byte, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(len(pcm)/(2*channels)) / float64(sampleRate)
}
