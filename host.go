package crossdelay

import (
	"errors"
	"fmt"
	"math"
)

// Parameter indexes exposed to plugin hosts.
const (
	ParamDelay = iota
	ParamFeedback
	ParamWetDry
	paramCount
)

// DefaultHostSampleRate is used until the host reports its own rate.
const DefaultHostSampleRate = 44100

var (
	ErrUnknownParameter = errors.New("unknown parameter index")
	ErrBufferLength     = errors.New("channel buffers differ in length")
)

// Info describes the effect to a plugin host.
type Info struct {
	Name       string
	Vendor     string
	UniqueID   int32
	Inputs     int
	Outputs    int
	Category   string
	Parameters int
}

// Host adapts an Engine to an index-based plugin parameter protocol with
// split float32 channel buffers. Parameter calls may come from any
// goroutine; SetSampleRate and ProcessBuffers belong to the audio goroutine.
type Host struct {
	engine *Engine
}

func NewHost(sampleRate float64, opts ...EngineOption) (*Host, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, err
	}
	return &Host{engine: NewEngine(sampleRate, opts...)}, nil
}

func validateSampleRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 1 {
		return fmt.Errorf("invalid sample rate %v", rate)
	}
	return nil
}

func (h *Host) Engine() *Engine {
	return h.engine
}

func (h *Host) Info() Info {
	return Info{
		Name:       "Stereo Delay",
		Vendor:     "crossdelay",
		UniqueID:   1358,
		Inputs:     2,
		Outputs:    2,
		Category:   "Effect",
		Parameters: paramCount,
	}
}

func (h *Host) SetSampleRate(rate float32) error {
	if err := validateSampleRate(float64(rate)); err != nil {
		return err
	}
	h.engine.SetSampleRate(float64(rate))
	return nil
}

func (h *Host) ParameterCount() int {
	return paramCount
}

func (h *Host) param(index int) (*Param, error) {
	all := h.engine.params.All()
	if index < 0 || index >= len(all) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParameter, index)
	}
	return all[index], nil
}

func (h *Host) ParameterName(index int) (string, error) {
	p, err := h.param(index)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}

// ParameterText returns the formatted display value, e.g. "0.500" or "50%".
func (h *Host) ParameterText(index int) (string, error) {
	p, err := h.param(index)
	if err != nil {
		return "", err
	}
	return p.Text(), nil
}

func (h *Host) Parameter(index int) (float32, error) {
	p, err := h.param(index)
	if err != nil {
		return 0, err
	}
	return float32(p.Get()), nil
}

// SetParameter stores v clamped into the parameter's range, so values from
// a host UI can never break the engine's delay and gain bounds.
func (h *Host) SetParameter(index int, v float32) error {
	p, err := h.param(index)
	if err != nil {
		return err
	}
	p.Set(p.Clamp(float64(v)))
	return nil
}

// ProcessBuffers renders one block from split input channels into split
// output channels. All four slices must have the same length.
func (h *Host) ProcessBuffers(inL, inR, outL, outR []float32) error {
	n := len(inL)
	if len(inR) != n || len(outL) != n || len(outR) != n {
		return fmt.Errorf("%w: in %d/%d out %d/%d", ErrBufferLength, len(inL), len(inR), len(outL), len(outR))
	}
	e := h.engine
	e.BeginBlock()
	for i := 0; i < n; i++ {
		l, r := e.Process(float64(inL[i]), float64(inR[i]))
		outL[i], outR[i] = float32(l), float32(r)
	}
	return nil
}
