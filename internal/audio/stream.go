// Package audio connects a stereo frame processor to audio devices: ebiten
// for file playback and malgo for live duplex monitoring.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// FrameProcessor processes one block of interleaved stereo float32 samples
// in place.
type FrameProcessor interface {
	ProcessInterleaved(buf []float32)
}

const bytesPerFrame = 8 // two float32 channels

// StreamReader is an io.Reader of stereo float32 LE frames. Each Read pulls
// the same number of frames from src, runs them through the processor as
// one block, and after src is exhausted keeps producing a silent tail of
// tailFrames frames before returning io.EOF.
type StreamReader struct {
	drained    atomic.Bool
	mu         sync.Mutex
	src        io.Reader
	proc       FrameProcessor
	tailFrames int
	srcDone    bool
	pending    []byte // partial frame carried between reads of src
	buf        []float32
}

func NewStreamReader(src io.Reader, proc FrameProcessor, tailFrames int) *StreamReader {
	return &StreamReader{src: src, proc: proc, tailFrames: tailFrames}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	n := 0
	if !r.srcDone {
		var err error
		n, err = r.fill(p[:frames*bytesPerFrame])
		if errors.Is(err, io.EOF) {
			r.srcDone = true
		} else if err != nil {
			return 0, err
		}
	}
	if r.srcDone {
		// Pad with silence from the tail budget.
		for n < frames*bytesPerFrame && r.tailFrames > 0 {
			clear(p[n : n+bytesPerFrame])
			n += bytesPerFrame
			r.tailFrames--
		}
		if n == 0 {
			r.drained.Store(true)
			return 0, io.EOF
		}
	}

	count := n / 4
	if cap(r.buf) < count {
		r.buf = make([]float32, count)
	}
	r.buf = r.buf[:count]
	for i := range r.buf {
		r.buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	r.proc.ProcessInterleaved(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n, nil
}

// fill reads whole frames from src into p. It returns io.EOF only when no
// further frames will arrive.
func (r *StreamReader) fill(p []byte) (int, error) {
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	for n < len(p) {
		m, err := r.src.Read(p[n:])
		n += m
		if err != nil {
			whole := n - n%bytesPerFrame
			if errors.Is(err, io.EOF) {
				return whole, io.EOF
			}
			return whole, fmt.Errorf("read source: %w", err)
		}
		if m == 0 || n%bytesPerFrame == 0 {
			break
		}
	}
	whole := n - n%bytesPerFrame
	if whole < n {
		r.pending = append(r.pending[:0], p[whole:n]...)
	}
	return whole, nil
}

// Drained reports whether the source and the tail have been fully read.
func (r *StreamReader) Drained() bool {
	return r.drained.Load()
}

func (r *StreamReader) Close() error { return nil }

// Player plays a StreamReader on the shared ebiten audio context.
type Player struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	audioContextMu  sync.Mutex
	audioContext    *ebitaudio.Context
	audioSampleRate int
)

// sharedAudioContext returns the process-wide ebiten context. ebiten allows
// only one context, so every player must use the same sample rate.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextMu.Lock()
	defer audioContextMu.Unlock()
	if audioContext == nil {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	}
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewPlayer(sampleRate int, reader *StreamReader) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }

// Finished reports whether the stream has ended and the device has played
// out what was buffered. A paused player whose stream has not ended is not
// finished.
func (p *Player) Finished() bool {
	return p.reader.Drained() && !p.player.IsPlaying()
}

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
