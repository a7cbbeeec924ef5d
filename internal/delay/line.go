// Package delay implements the per-channel delay path: a circular sample
// buffer and a delay line with feedback and wet/dry mixing.
package delay

import "fmt"

// FeedbackSource selects which signal a Line re-injects into its buffer.
type FeedbackSource int

const (
	// FeedbackInternal feeds the line's own delayed signal back, scaled by
	// its feedback gain.
	FeedbackInternal FeedbackSource = iota
	// FeedbackExternal feeds back whatever the caller passes in.
	FeedbackExternal
)

func (s FeedbackSource) String() string {
	switch s {
	case FeedbackInternal:
		return "internal"
	case FeedbackExternal:
		return "external"
	default:
		return fmt.Sprintf("FeedbackSource(%d)", int(s))
	}
}

// Line is a single-channel delay with feedback and wet/dry mix.
// It is owned by the audio thread; settings change between blocks only.
type Line struct {
	buf          *Buffer
	delaySamples int
	source       FeedbackSource
	feedback     float64 // internal feedback gain 0..1
	wet          float64 // wet/dry ratio 0..1
}

// NewLine creates a delay line whose buffer holds capacity samples.
// delaySamples must be below capacity; feedback and wet must be in [0, 1].
func NewLine(capacity, delaySamples int, source FeedbackSource, feedback, wet float64) *Line {
	l := &Line{buf: NewBuffer(capacity), source: source}
	l.SetDelaySamples(delaySamples)
	l.SetInternalFeedback(feedback)
	l.SetWetDryRatio(wet)
	return l
}

// ProcessWithFeedback computes one output sample. externalFeedback is only
// written into the buffer when the line runs in FeedbackExternal mode. The
// second return value is always the line's own delayed signal scaled by its
// feedback gain, so a caller can route it to another line.
func (l *Line) ProcessWithFeedback(x, externalFeedback float64) (float64, float64) {
	delayed := l.buf.ReadWithDelay(l.delaySamples)
	internal := delayed * l.feedback

	fb := externalFeedback
	if l.source == FeedbackInternal {
		fb = internal
	}
	l.buf.Write(x + fb)
	return delayed*l.wet + x*(1-l.wet), internal
}

func (l *Line) SetDelaySamples(n int) {
	if n < 0 || n >= l.buf.Capacity() {
		panic(fmt.Sprintf("delay: delay of %d samples outside [0, %d)", n, l.buf.Capacity()))
	}
	l.delaySamples = n
}

func (l *Line) SetInternalFeedback(g float64) {
	if !(g >= 0 && g <= 1) {
		panic(fmt.Sprintf("delay: feedback gain %v outside [0, 1]", g))
	}
	l.feedback = g
}

// SetWetDryRatio sets the output blend: 0 is fully dry, 1 fully wet.
func (l *Line) SetWetDryRatio(r float64) {
	if !(r >= 0 && r <= 1) {
		panic(fmt.Sprintf("delay: wet/dry ratio %v outside [0, 1]", r))
	}
	l.wet = r
}

func (l *Line) SetSource(s FeedbackSource) {
	l.source = s
}

func (l *Line) Source() FeedbackSource    { return l.source }
func (l *Line) DelaySamples() int         { return l.delaySamples }
func (l *Line) InternalFeedback() float64 { return l.feedback }
func (l *Line) WetDryRatio() float64      { return l.wet }
func (l *Line) Capacity() int             { return l.buf.Capacity() }
