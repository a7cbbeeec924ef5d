package crossdelay

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// DefaultBlockFrames is the block size used when rendering offline.
const DefaultBlockFrames = 256

// RenderOptions controls RenderSamples.
type RenderOptions struct {
	// BlockFrames is the number of stereo frames per processing block.
	// Parameter changes are applied at block boundaries.
	BlockFrames int
	// TailSeconds of silence are appended to the input so echoes can ring out.
	TailSeconds float64
	// OnBlock runs before each block with the index of its first frame. It
	// may change engine parameters.
	OnBlock func(frame int)
}

// RenderSamples runs interleaved stereo input through e and returns the
// processed samples, including the tail.
func RenderSamples(e *Engine, in []float32, opts RenderOptions) []float32 {
	block := opts.BlockFrames
	if block <= 0 {
		block = DefaultBlockFrames
	}
	tail := 0
	if opts.TailSeconds > 0 {
		tail = int(opts.TailSeconds * e.SampleRate())
	}
	frames := len(in)/2 + tail
	out := make([]float32, frames*2)
	copy(out, in[:len(in)/2*2])

	for start := 0; start < frames; start += block {
		end := start + block
		if end > frames {
			end = frames
		}
		if opts.OnBlock != nil {
			opts.OnBlock(start)
		}
		e.ProcessInterleaved(out[start*2 : end*2])
	}
	return out
}

// DecodeWAV reads a WAV file and returns interleaved stereo float32 samples
// and the file's sample rate. Mono files are duplicated to both channels.
// Only 8 and 16-bit linear PCM is accepted, so files written by
// EncodeWAVFloat32LE cannot be read back.
func DecodeWAV(r io.Reader) ([]float32, int, error) {
	stream, err := wav.DecodeF32(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	raw, err := io.ReadAll(stream)
	if err != nil {
		return nil, 0, fmt.Errorf("read wav samples: %w", err)
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, stream.SampleRate(), nil
}

// EncodeWAVFloat32LE encodes samples as a 32-bit IEEE float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	const headerSize = 44
	dataSize := len(samples) * 4
	out := make([]byte, headerSize+dataSize)
	le := binary.LittleEndian

	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(headerSize-8+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 3) // WAVE_FORMAT_IEEE_FLOAT
	le.PutUint16(out[22:], uint16(channels))
	le.PutUint32(out[24:], uint32(sampleRate))
	le.PutUint32(out[28:], uint32(sampleRate*channels*4))
	le.PutUint16(out[32:], uint16(channels*4))
	le.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		le.PutUint32(out[headerSize+i*4:], math.Float32bits(s))
	}
	return out
}
