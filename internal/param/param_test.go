package param

import (
	"math"
	"sync"
	"testing"
)

func TestFloatRoundTrip(t *testing.T) {
	p := New("Delay", Decimals3, 0.5)
	for _, v := range []float64{0, 0.25, 1, -3.5, 1e9, math.Inf(1)} {
		p.Set(v)
		if got := p.Get(); got != v {
			t.Fatalf("Set(%v); Get() = %v", v, got)
		}
	}
}

func TestFloatDirtyFlag(t *testing.T) {
	p := New("Feedback", Percent, 0.5)
	if p.IsDirty() {
		t.Fatal("fresh parameter should not be dirty")
	}

	p.Get()
	if !p.IsDirty() {
		t.Fatal("Get should mark the parameter dirty")
	}
	if v, ok := p.Take(); !ok || v != 0.5 {
		t.Fatalf("Take() = (%v, %v), want (0.5, true)", v, ok)
	}
	if p.IsDirty() {
		t.Fatal("Take should clear the dirty flag")
	}
	if _, ok := p.Take(); ok {
		t.Fatal("second Take should report no change")
	}

	// Setting the same value still counts as a change.
	p.Set(0.5)
	if !p.IsDirty() {
		t.Fatal("Set should mark the parameter dirty")
	}
	if !p.IsDirty() {
		t.Fatal("IsDirty must not clear the flag")
	}
}

func TestFloatText(t *testing.T) {
	cases := []struct {
		name   string
		format Formatter
		value  float64
		want   string
	}{
		{"decimals", Decimals3, 0.5, "0.500"},
		{"decimals rounding", Decimals3, 0.12345, "0.123"},
		{"percent", Percent, 0.5, "50%"},
		{"percent full", Percent, 1, "100%"},
		{"percent rounds", Percent, 0.333, "33%"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(tc.name, tc.format, tc.value)
			if got := p.Text(); got != tc.want {
				t.Fatalf("Text() = %q, want %q", got, tc.want)
			}
			if !p.IsDirty() {
				t.Fatal("Text should mark the parameter dirty")
			}
		})
	}
}

func TestFloatRangeAndClamp(t *testing.T) {
	p := New("Delay", nil, 0.5).Range(0, 2)
	if p.Min() != 0 || p.Max() != 2 || p.Default() != 0.5 {
		t.Fatalf("range = [%v, %v] default %v", p.Min(), p.Max(), p.Default())
	}
	if p.Name() != "Delay" {
		t.Fatalf("Name() = %q", p.Name())
	}
	if got := p.Text(); got != "0.500" {
		t.Fatalf("nil formatter should fall back to Decimals3, got %q", got)
	}
	for in, want := range map[float64]float64{-1: 0, 1.5: 1.5, 3: 2} {
		if got := p.Clamp(in); got != want {
			t.Errorf("Clamp(%v) = %v, want %v", in, got, want)
		}
	}
	if got := p.Clamp(math.NaN()); got != 0.5 {
		t.Errorf("Clamp(NaN) = %v, want default", got)
	}
}

func TestFloatConcurrentAccess(t *testing.T) {
	p := New("Wet/Dry", Percent, 0)
	values := []float64{0.125, 0.25, 0.5, 0.75}
	valid := map[float64]bool{0: true}
	for _, v := range values {
		valid[v] = true
	}

	var wg sync.WaitGroup
	for _, v := range values {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				p.Set(v)
				_ = p.Text()
			}
		}(v)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		if v, ok := p.Take(); ok && !valid[v] {
			t.Fatalf("observed torn value %v", v)
		}
		select {
		case <-done:
			if v := p.Get(); !valid[v] {
				t.Fatalf("final value %v was never written", v)
			}
			return
		default:
		}
	}
}
