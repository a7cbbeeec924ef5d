package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

type gainProcessor struct {
	gain   float32
	blocks int
}

func (g *gainProcessor) ProcessInterleaved(buf []float32) {
	g.blocks++
	for i := range buf {
		buf[i] *= g.gain
	}
}

func encodeFrames(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func decodeFrames(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func TestStreamReaderProcessesSourceThenTail(t *testing.T) {
	src := bytes.NewReader(encodeFrames([]float32{1, 2, 3, 4, 5, 6}))
	proc := &gainProcessor{gain: 0.5}
	r := NewStreamReader(src, proc, 2)

	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	got := decodeFrames(raw)
	want := []float32{0.5, 1, 1.5, 2, 2.5, 3, 0, 0, 0, 0}
	if len(got) != len(want) {
		t.Fatalf("got %d samples %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v (all %v)", i, got[i], want[i], got)
		}
	}
	if proc.blocks == 0 {
		t.Fatal("processor was never called")
	}
}

// oneByteReader returns data one byte at a time to force partial frames.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestStreamReaderReassemblesPartialFrames(t *testing.T) {
	in := []float32{0.25, -0.25, 0.75, -0.75}
	r := NewStreamReader(oneByteReader{bytes.NewReader(encodeFrames(in))}, &gainProcessor{gain: 1}, 0)
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	got := decodeFrames(raw)
	if len(got) != len(in) {
		t.Fatalf("got %v, want %v", got, in)
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("got %v, want %v", got, in)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestStreamReaderPropagatesSourceErrors(t *testing.T) {
	r := NewStreamReader(failingReader{}, &gainProcessor{gain: 1}, 4)
	_, err := r.Read(make([]byte, 64))
	if err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestStreamReaderShortBuffer(t *testing.T) {
	r := NewStreamReader(bytes.NewReader(nil), &gainProcessor{gain: 1}, 1)
	n, err := r.Read(make([]byte, 4))
	if n != 0 || err != nil {
		t.Fatalf("Read(4 bytes) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestStreamReaderDrainedAfterTail(t *testing.T) {
	src := bytes.NewReader(encodeFrames([]float32{1, 1}))
	r := NewStreamReader(src, &gainProcessor{gain: 1}, 1)
	buf := make([]byte, bytesPerFrame)

	for i := 0; i < 2; i++ {
		if _, err := r.Read(buf); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if r.Drained() {
			t.Fatalf("drained after %d reads, before the tail ended", i+1)
		}
	}
	if _, err := r.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
	if !r.Drained() {
		t.Fatal("not drained after io.EOF")
	}
}
