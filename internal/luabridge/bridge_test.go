package luabridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/crossdelay-go"
)

func newState(t *testing.T) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	Register(L)
	return L
}

func TestDelayNewAndParameters(t *testing.T) {
	L := newState(t)
	require.NoError(t, L.DoString(`
		local d = Delay.new(8)
		rate = d:sample_rate()
		d:set_delay_seconds(0.25)
		d:set_feedback(2.0)
		d:set_wet_dry_ratio(0.75)
		delay_s = d:get_delay_seconds()
		feedback = d:get_feedback()
		wet = d:get_wet_dry_ratio()
		wet_text = d:text(2)
		delay_name = d:name(0)
	`))

	assert.Equal(t, lua.LNumber(8), L.GetGlobal("rate"))
	assert.Equal(t, lua.LNumber(0.25), L.GetGlobal("delay_s"))
	assert.Equal(t, lua.LNumber(1), L.GetGlobal("feedback"), "feedback is clamped to 1")
	assert.Equal(t, lua.LNumber(0.75), L.GetGlobal("wet"))
	assert.Equal(t, lua.LString("75%"), L.GetGlobal("wet_text"))
	assert.Equal(t, lua.LString("Delay"), L.GetGlobal("delay_name"))
}

func TestDelayProcessBlock(t *testing.T) {
	L := newState(t)
	require.NoError(t, L.DoString(`
		local d = Delay.new(8)
		d:set_delay_seconds(0.25) -- 2 samples
		d:set_feedback(0)
		d:set_wet_dry_ratio(1)
		out_l, out_r = d:process({1, 0, 0, 0, 0}, {0, 0, 0.5, 0, 0})
	`))

	outL, ok := L.GetGlobal("out_l").(*lua.LTable)
	require.True(t, ok)
	outR, ok := L.GetGlobal("out_r").(*lua.LTable)
	require.True(t, ok)
	require.Equal(t, 5, outL.Len())
	require.Equal(t, 5, outR.Len())

	wantL := []float64{0, 0, 0, 1, 0}
	for i, want := range wantL {
		assert.Equal(t, lua.LNumber(want), outL.RawGetInt(i+1), "left frame %d", i)
	}
	assert.Equal(t, lua.LNumber(0), outR.RawGetInt(4))
	assert.Equal(t, lua.LNumber(0), outR.RawGetInt(5))
}

func TestDelayProcessRejectsMismatchedChannels(t *testing.T) {
	L := newState(t)
	err := L.DoString(`Delay.new(8):process({1, 2}, {1})`)
	require.Error(t, err)
}

func TestDelayProcessRejectsNonNumberSamples(t *testing.T) {
	L := newState(t)
	err := L.DoString(`Delay.new(8):process({1, "x", 0}, {0, 0, 0})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample 2")

	err = L.DoString(`Delay.new(8):process({0, 0}, {0, {}})`)
	require.Error(t, err)
}

func TestDelayRejectsBadIndexAndRate(t *testing.T) {
	L := newState(t)
	assert.Error(t, L.DoString(`Delay.new(8):text(7)`))
	assert.Error(t, L.DoString(`Delay.new(8):set_sample_rate(0)`))
	assert.Error(t, L.DoString(`Delay.new(-1)`))
}

func TestScriptBindsHostAndAutomates(t *testing.T) {
	h, err := crossdelay.NewHost(1000)
	require.NoError(t, err)

	s, err := NewScript(`
		delay:set_wet_dry_ratio(0.25)
		function automate(t)
			delay:set_delay_seconds(t / 10)
		end
	`, h)
	require.NoError(t, err)
	defer s.Close()

	params := h.Engine().Params()
	assert.Equal(t, 0.25, params.WetDryRatio.Get())
	require.True(t, s.HasAutomation())

	require.NoError(t, s.Automate(5))
	assert.Equal(t, 0.5, params.DelaySeconds.Get())

	// Values outside the range are clamped before they reach the engine.
	require.NoError(t, s.Automate(50))
	assert.Equal(t, crossdelay.MaxDelaySeconds, params.DelaySeconds.Get())
	assert.NotPanics(t, h.Engine().BeginBlock)
}

func TestScriptWithoutAutomation(t *testing.T) {
	h, err := crossdelay.NewHost(1000)
	require.NoError(t, err)
	s, err := NewScript(`delay:set_feedback(0.1)`, h)
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.HasAutomation())
	assert.NoError(t, s.Automate(1))
}

func TestScriptErrors(t *testing.T) {
	h, err := crossdelay.NewHost(1000)
	require.NoError(t, err)

	_, err = NewScript(`this is not lua`, h)
	assert.Error(t, err)

	s, err := NewScript(`function automate(t) error("boom") end`, h)
	require.NoError(t, err)
	defer s.Close()
	assert.ErrorContains(t, s.Automate(1), "boom")
}

func TestLoadScriptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.lua")
	require.NoError(t, os.WriteFile(path, []byte(`delay:set_feedback(0.2)`), 0o644))

	h, err := crossdelay.NewHost(1000)
	require.NoError(t, err)
	s, err := LoadScript(path, h)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "20%", h.Engine().Params().Feedback.Text())

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.lua"), h)
	assert.Error(t, err)
}

func TestScriptControlsOnlyHidesAudioMethods(t *testing.T) {
	h, err := crossdelay.NewHost(1000)
	require.NoError(t, err)

	s, err := NewScript(`
		delay:set_feedback(0.4)
		rate = delay:sample_rate()
		label = delay:text(1)
		has_process = delay.process ~= nil
		has_set_rate = delay.set_sample_rate ~= nil
		function automate(t)
			delay:set_wet_dry_ratio(t)
		end
	`, h, ControlsOnly())
	require.NoError(t, err)
	defer s.Close()

	params := h.Engine().Params()
	assert.Equal(t, 0.4, params.Feedback.Get())
	assert.Equal(t, lua.LNumber(1000), s.L.GetGlobal("rate"))
	assert.Equal(t, lua.LString("40%"), s.L.GetGlobal("label"))
	assert.Equal(t, lua.LFalse, s.L.GetGlobal("has_process"))
	assert.Equal(t, lua.LFalse, s.L.GetGlobal("has_set_rate"))

	require.NoError(t, s.Automate(0.5))
	assert.Equal(t, 0.5, params.WetDryRatio.Get())

	s2, err := NewScript(`function automate(t) delay:set_sample_rate(8) end`, h, ControlsOnly())
	require.NoError(t, err)
	defer s2.Close()
	assert.Error(t, s2.Automate(0))
	assert.Equal(t, 1000.0, h.Engine().SampleRate())

	// Full delays created by the script itself keep every method.
	s3, err := NewScript(`local d = Delay.new(8); d:process({1}, {0})`, h, ControlsOnly())
	require.NoError(t, err)
	s3.Close()
}
