package delay

import "fmt"

// Buffer is a fixed-capacity circular history of one channel's samples.
// All slots start at 0 (silence). The write index always points at the slot
// that receives the next write.
type Buffer struct {
	samples []float64
	index   int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("delay: buffer capacity must be positive, got %d", capacity))
	}
	return &Buffer{samples: make([]float64, capacity)}
}

func (b *Buffer) Capacity() int {
	return len(b.samples)
}

// Write stores v at the write position and advances it by one slot.
func (b *Buffer) Write(v float64) {
	b.samples[b.index] = v
	b.index++
	if b.index == len(b.samples) {
		b.index = 0
	}
}

// ReadWithDelay returns the sample written delay steps before the most
// recent write. ReadWithDelay(0) is the last written sample.
// delay must be in [0, Capacity()).
func (b *Buffer) ReadWithDelay(delay int) float64 {
	if delay < 0 || delay >= len(b.samples) {
		panic(fmt.Sprintf("delay: read offset %d outside [0, %d)", delay, len(b.samples)))
	}
	var pos int
	if delay >= b.index {
		pos = len(b.samples) + b.index - 1 - delay
	} else {
		pos = b.index - 1 - delay
	}
	return b.samples[pos]
}
