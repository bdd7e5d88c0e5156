package audio

import (
	"encoding/binary"
	"errors"
)

var (
	ErrInvalidWAV     = errors.New("invalid wav data")
	ErrWAVNoData      = errors.New("wav data chunk not found")
	ErrWAVBitDepth    = errors.New("unsupported wav bits per sample")
	ErrWAVChunkLength = errors.New("invalid wav chunk size")
)

// streamingSize marks a RIFF/data length that is not known up front.
const streamingSize = 0xFFFFFFFF

// PCM is decoded 16-bit little-endian interleaved audio.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Data) / (2 * p.Channels)
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV extracts the PCM16 data chunk. Chunks that overrun the buffer are truncated,
// so streamed headers with unknown lengths decode too.
func DecodeWAV(data []byte, fallbackSampleRate int, fallbackChannels int) (PCM, error) {
	if !IsWAV(data) {
		return PCM{}, ErrInvalidWAV
	}

	sampleRate := fallbackSampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := fallbackChannels
	if channels <= 0 {
		channels = 1
	}
	bitsPerSample := 16

	offset := 12
	dataOffset := -1
	dataSize := 0
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8
		if chunkSize < 0 {
			return PCM{}, ErrWAVChunkLength
		}
		if offset+chunkSize > len(data) || offset+chunkSize < offset {
			chunkSize = len(data) - offset
		}

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 {
				channels = int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
				sampleRate = int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
				bitsPerSample = int(binary.LittleEndian.Uint16(data[offset+14 : offset+16]))
			}
		case "data":
			dataOffset = offset
			dataSize = chunkSize
		}

		offset += chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if dataOffset < 0 || dataSize <= 0 {
		return PCM{}, ErrWAVNoData
	}
	if bitsPerSample != 16 {
		return PCM{}, ErrWAVBitDepth
	}
	if channels <= 0 || sampleRate <= 0 {
		return PCM{}, ErrInvalidWAV
	}
	return PCM{Data: data[dataOffset : dataOffset+dataSize], SampleRate: sampleRate, Channels: channels}, nil
}

// WAVHeader builds a 44-byte PCM16 header. A negative dataLen writes the streaming marker.
func WAVHeader(sampleRate, channels, dataLen int) []byte {
	head := make([]byte, 44)
	riffSize := uint32(streamingSize)
	dataSize := uint32(streamingSize)
	if dataLen >= 0 {
		riffSize = uint32(36 + dataLen)
		dataSize = uint32(dataLen)
	}
	copy(head[0:4], "RIFF")
	binary.LittleEndian.PutUint32(head[4:8], riffSize)
	copy(head[8:12], "WAVE")
	copy(head[12:16], "fmt ")
	binary.LittleEndian.PutUint32(head[16:20], 16)
	binary.LittleEndian.PutUint16(head[20:22], 1)
	binary.LittleEndian.PutUint16(head[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(head[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(head[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(head[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(head[34:36], 16)
	copy(head[36:40], "data")
	binary.LittleEndian.PutUint32(head[40:44], dataSize)
	return head
}

// EncodeWAV wraps PCM16 data in a complete WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	out := WAVHeader(sampleRate, channels, len(pcm))
	return append(out, pcm...)
}
