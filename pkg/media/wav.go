package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// wavHeaderSize is the byte size of a canonical PCM WAV header.
const wavHeaderSize = 44

var errNotWAV = errors.New("not a RIFF/WAVE file")

// ReadPCM16 loads a 16-bit PCM WAV file as float64 samples in [-1, 1) plus
// the sample rate. Multi-channel files are downmixed by averaging; the
// sampler always extracts mono, so that path only matters for foreign files.
func ReadPCM16(path string) ([]float64, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%s: %w", path, errNotWAV)
	}

	var (
		channels   int
		sampleRate int
		bits       int
		pcm        []byte
		haveFmt    bool
	)

	// Chunk walk: fmt must precede data per spec, but tolerate any order.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%s: short fmt chunk", path)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("%s: unsupported wav format %d (want PCM)", path, format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if !haveFmt || pcm == nil {
		return nil, 0, fmt.Errorf("%s: missing fmt or data chunk", path)
	}
	if bits != 16 {
		return nil, 0, fmt.Errorf("%s: unsupported bit depth %d (want 16)", path, bits)
	}
	if channels < 1 || sampleRate < 1 {
		return nil, 0, fmt.Errorf("%s: invalid wav header (%d channels, %d Hz)", path, channels, sampleRate)
	}

	frameBytes := 2 * channels
	n := len(pcm) / frameBytes
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes+2*c:]))
			sum += float64(v)
		}
		samples[i] = sum / float64(channels) / 32768.0
	}
	return samples, sampleRate, nil
}
