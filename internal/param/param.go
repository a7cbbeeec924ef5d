// Package param provides lock-free float parameters shared between a control
// goroutine and the audio goroutine.
package param

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Formatter renders a parameter value for display.
type Formatter func(float64) string

// Decimals3 formats a value with three decimals, e.g. "0.500".
func Decimals3(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// Percent formats a 0..1 value as a whole percentage, e.g. "50%".
func Percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// Float is a named float parameter. The value is stored as its uint64 bit
// pattern so reads and writes from different goroutines never tear.
//
// The dirty flag is raised by every Get and Set and lowered only by Take.
// Value and flag are independent atomics with no ordering between them; a
// consumer may briefly see a new value with an old flag or the reverse and
// picks the change up on its next Take.
type Float struct {
	name     string
	format   Formatter
	min, max float64
	def      float64

	bits  atomic.Uint64
	dirty atomic.Bool
}

// New creates a parameter holding initial. The default display range is
// [0, 1]; use Range to change it before sharing the parameter.
func New(name string, format Formatter, initial float64) *Float {
	if format == nil {
		format = Decimals3
	}
	p := &Float{name: name, format: format, min: 0, max: 1, def: initial}
	p.bits.Store(math.Float64bits(initial))
	return p
}

// Range sets the display and clamping range used by host adapters.
// Set itself never validates.
func (p *Float) Range(lo, hi float64) *Float {
	p.min, p.max = lo, hi
	return p
}

func (p *Float) Name() string     { return p.name }
func (p *Float) Min() float64     { return p.min }
func (p *Float) Max() float64     { return p.max }
func (p *Float) Default() float64 { return p.def }

// Get returns the current value and marks the parameter dirty.
func (p *Float) Get() float64 {
	p.dirty.Store(true)
	return p.load()
}

// Set stores v and marks the parameter dirty.
func (p *Float) Set(v float64) {
	p.bits.Store(math.Float64bits(v))
	p.dirty.Store(true)
}

// IsDirty reports whether the value was read or written since the last Take.
func (p *Float) IsDirty() bool {
	return p.dirty.Load()
}

// Take lowers the dirty flag and, if it was raised, returns the current
// value with ok set. The flag is cleared before the value is loaded so a
// concurrent Set is either returned now or raises the flag again.
func (p *Float) Take() (v float64, ok bool) {
	if !p.dirty.Swap(false) {
		return 0, false
	}
	return p.load(), true
}

// Text formats the current value. Like Get it marks the parameter dirty.
func (p *Float) Text() string {
	return p.format(p.Get())
}

// Clamp limits v to the parameter's range. NaN maps to the default value.
func (p *Float) Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return p.def
	case v < p.min:
		return p.min
	case v > p.max:
		return p.max
	}
	return v
}

func (p *Float) load() float64 {
	return math.Float64frombits(p.bits.Load())
}
