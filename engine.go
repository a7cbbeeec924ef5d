// Package crossdelay implements a stereo cross-feedback delay: each channel
// is delayed, fed back into the opposite channel one frame later, and
// blended with the dry input.
package crossdelay

import (
	"fmt"
	"math"
	"sync/atomic"

	intdelay "github.com/cbegin/crossdelay-go/internal/delay"
	intparam "github.com/cbegin/crossdelay-go/internal/param"
)

const (
	DefaultDelaySeconds = 0.50
	DefaultFeedback     = 0.50
	DefaultWetDryRatio  = 0.50

	// MaxDelaySeconds is the longest delay the buffers hold. Buffer capacity
	// is sampleRate+1 samples.
	MaxDelaySeconds = 1.0
)

// Param is a single live-tunable control.
type Param = intparam.Float

// Params are the live-tunable controls of an Engine. They are the only state
// that may be touched from outside the audio goroutine.
type Params struct {
	DelaySeconds *Param
	Feedback     *Param
	WetDryRatio  *Param
}

func DefaultParams() *Params {
	return &Params{
		DelaySeconds: intparam.New("Delay", intparam.Decimals3, DefaultDelaySeconds).Range(0, MaxDelaySeconds),
		Feedback:     intparam.New("Feedback", intparam.Percent, DefaultFeedback),
		WetDryRatio:  intparam.New("Wet/Dry", intparam.Percent, DefaultWetDryRatio),
	}
}

// All returns the parameters in host index order.
func (p *Params) All() []*Param {
	return []*Param{p.DelaySeconds, p.Feedback, p.WetDryRatio}
}

// FeedbackRouting selects where each channel's feedback goes.
type FeedbackRouting int

const (
	// RoutingCross feeds left into right and right into left.
	RoutingCross FeedbackRouting = iota
	// RoutingSelf runs two independent feedback delays.
	RoutingSelf
)

type EngineOption func(*engineConfig)

type engineConfig struct {
	routing FeedbackRouting
	params  *Params
}

func WithFeedbackRouting(r FeedbackRouting) EngineOption {
	return func(cfg *engineConfig) {
		cfg.routing = r
	}
}

// WithParams shares an existing parameter set, e.g. one already bound to a UI.
func WithParams(p *Params) EngineOption {
	return func(cfg *engineConfig) {
		cfg.params = p
	}
}

// Engine is the stereo cross-feedback delay.
//
// BeginBlock, Process, ProcessInterleaved and SetSampleRate belong to the
// audio goroutine and must not run concurrently with each other. Params may
// be read and written from any goroutine.
type Engine struct {
	params     *Params
	routing    FeedbackRouting
	sampleRate atomic.Uint64 // float64 bits

	left, right *intdelay.Line

	// previous frame's internally computed feedback per channel
	leftFeedback, rightFeedback float64
}

// NewEngine creates an engine running at sampleRate Hz. sampleRate must be
// at least 1.
func NewEngine(sampleRate float64, opts ...EngineOption) *Engine {
	cfg := engineConfig{routing: RoutingCross}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.params == nil {
		cfg.params = DefaultParams()
	}
	e := &Engine{params: cfg.params, routing: cfg.routing}
	e.reset(sampleRate)
	return e
}

func (e *Engine) Params() *Params {
	return e.params
}

func (e *Engine) SampleRate() float64 {
	return math.Float64frombits(e.sampleRate.Load())
}

func (e *Engine) Routing() FeedbackRouting {
	return e.routing
}

// SetSampleRate rebuilds both channels when rate differs from the current
// one. Delay history is lost; parameter values are kept.
func (e *Engine) SetSampleRate(rate float64) {
	if rate == e.SampleRate() {
		return
	}
	e.reset(rate)
}

// Reset clears delay history and the pending cross feedback. The sample rate
// and parameter values are kept. Call it only while no block is in flight.
func (e *Engine) Reset() {
	e.reset(e.SampleRate())
}

func (e *Engine) reset(rate float64) {
	if !(rate >= 1) || math.IsInf(rate, 0) {
		panic(fmt.Sprintf("crossdelay: invalid sample rate %v", rate))
	}
	e.sampleRate.Store(math.Float64bits(rate))
	e.left = e.newLine(rate)
	e.right = e.newLine(rate)
	e.leftFeedback, e.rightFeedback = 0, 0
}

func (e *Engine) newLine(rate float64) *intdelay.Line {
	source := intdelay.FeedbackExternal
	if e.routing == RoutingSelf {
		source = intdelay.FeedbackInternal
	}
	return intdelay.NewLine(
		int(rate)+1,
		delaySamples(e.params.DelaySeconds.Get(), rate),
		source,
		e.params.Feedback.Get(),
		e.params.WetDryRatio.Get(),
	)
}

func delaySamples(seconds, rate float64) int {
	return int(seconds * rate)
}

// BeginBlock pushes every parameter touched since the previous block into
// both channels. Call it once before the Process calls of each block.
func (e *Engine) BeginBlock() {
	if seconds, ok := e.params.DelaySeconds.Take(); ok {
		n := delaySamples(seconds, e.SampleRate())
		e.left.SetDelaySamples(n)
		e.right.SetDelaySamples(n)
	}
	if fb, ok := e.params.Feedback.Take(); ok {
		e.left.SetInternalFeedback(fb)
		e.right.SetInternalFeedback(fb)
	}
	if wet, ok := e.params.WetDryRatio.Take(); ok {
		e.left.SetWetDryRatio(wet)
		e.right.SetWetDryRatio(wet)
	}
}

// Process renders one stereo frame. Each channel receives the opposite
// channel's feedback from the previous frame, never the current one, which
// gives the cross-feedback path a fixed one-frame hop.
func (e *Engine) Process(inL, inR float64) (float64, float64) {
	outL, fbL := e.left.ProcessWithFeedback(inL, e.rightFeedback)
	outR, fbR := e.right.ProcessWithFeedback(inR, e.leftFeedback)
	e.leftFeedback, e.rightFeedback = fbL, fbR
	return outL, outR
}

// ProcessInterleaved runs one block of interleaved stereo samples in place.
func (e *Engine) ProcessInterleaved(buf []float32) {
	e.BeginBlock()
	for i := 0; i+1 < len(buf); i += 2 {
		l, r := e.Process(float64(buf[i]), float64(buf[i+1]))
		buf[i], buf[i+1] = float32(l), float32(r)
	}
}
