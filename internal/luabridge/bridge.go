// Package luabridge exposes the delay to Lua scripts through gopher-lua.
//
//	local d = Delay.new(48000)
//	d:set_feedback(0.3)
//	local l, r = d:process({1, 0, 0}, {0, 0, 0})
package luabridge

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/crossdelay-go"
)

const (
	typeName         = "delay"
	controlsTypeName = "delay_controls"
	globalType       = "Delay"
)

// controlMethods only read and write parameters, which are safe to touch
// while another thread is processing audio.
var controlMethods = map[string]lua.LGFunction{
	"sample_rate":       sampleRate,
	"get_delay_seconds": getter(crossdelay.ParamDelay),
	"set_delay_seconds": setter(crossdelay.ParamDelay),
	"get_feedback":      getter(crossdelay.ParamFeedback),
	"set_feedback":      setter(crossdelay.ParamFeedback),
	"get_wet_dry_ratio": getter(crossdelay.ParamWetDry),
	"set_wet_dry_ratio": setter(crossdelay.ParamWetDry),
	"name":              name,
	"text":              text,
}

var methods = map[string]lua.LGFunction{
	"process":         process,
	"set_sample_rate": setSampleRate,
}

func init() {
	for k, fn := range controlMethods {
		methods[k] = fn
	}
}

// controls is a Host handle limited to controlMethods.
type controls struct {
	host *crossdelay.Host
}

// Register installs the global Delay type with its constructor.
func Register(L *lua.LState) {
	mt := L.NewTypeMetatable(typeName)
	L.SetGlobal(globalType, mt)
	L.SetField(mt, "new", L.NewFunction(newDelay))
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), methods))

	cmt := L.NewTypeMetatable(controlsTypeName)
	L.SetField(cmt, "__index", L.SetFuncs(L.NewTable(), controlMethods))
}

// Push pushes h onto the Lua stack as a delay value.
func Push(L *lua.LState, h *crossdelay.Host) {
	L.Push(wrap(L, h))
}

func wrap(L *lua.LState, h *crossdelay.Host) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, L.GetTypeMetatable(typeName))
	return ud
}

func wrapControls(L *lua.LState, h *crossdelay.Host) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = controls{host: h}
	L.SetMetatable(ud, L.GetTypeMetatable(controlsTypeName))
	return ud
}

// checkControls accepts either a full delay or a controls handle.
func checkControls(L *lua.LState) *crossdelay.Host {
	ud := L.CheckUserData(1)
	switch v := ud.Value.(type) {
	case *crossdelay.Host:
		return v
	case controls:
		return v.host
	}
	L.ArgError(1, "delay expected")
	return nil
}

func checkHost(L *lua.LState) *crossdelay.Host {
	ud := L.CheckUserData(1)
	if h, ok := ud.Value.(*crossdelay.Host); ok {
		return h
	}
	L.ArgError(1, "delay expected")
	return nil
}

func newDelay(L *lua.LState) int {
	rate := float64(L.OptNumber(1, crossdelay.DefaultHostSampleRate))
	h, err := crossdelay.NewHost(rate)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	Push(L, h)
	return 1
}

// process(inL, inR) renders one block and returns two output arrays.
func process(L *lua.LState) int {
	h := checkHost(L)
	inL := toSamples(L, 2)
	inR := toSamples(L, 3)
	if len(inL) != len(inR) {
		L.ArgError(3, "channel arrays differ in length")
		return 0
	}
	outL := make([]float32, len(inL))
	outR := make([]float32, len(inR))
	if err := h.ProcessBuffers(inL, inR, outL, outR); err != nil {
		L.RaiseError("%v", err)
		return 0
	}
	L.Push(fromSamples(L, outL))
	L.Push(fromSamples(L, outR))
	return 2
}

func toSamples(L *lua.LState, arg int) []float32 {
	tbl := L.CheckTable(arg)
	out := make([]float32, tbl.Len())
	for i := range out {
		n, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
		if !ok {
			L.ArgError(arg, fmt.Sprintf("sample %d is %s, not a number", i+1, tbl.RawGetInt(i+1).Type()))
			return nil
		}
		out[i] = float32(n)
	}
	return out
}

func fromSamples(L *lua.LState, samples []float32) *lua.LTable {
	tbl := L.CreateTable(len(samples), 0)
	for i, s := range samples {
		tbl.RawSetInt(i+1, lua.LNumber(s))
	}
	return tbl
}

func setSampleRate(L *lua.LState) int {
	h := checkHost(L)
	if err := h.SetSampleRate(float32(L.CheckNumber(2))); err != nil {
		L.ArgError(2, err.Error())
	}
	return 0
}

func sampleRate(L *lua.LState) int {
	h := checkControls(L)
	L.Push(lua.LNumber(h.Engine().SampleRate()))
	return 1
}

func param(L *lua.LState, h *crossdelay.Host, index int) *crossdelay.Param {
	all := h.Engine().Params().All()
	if index < 0 || index >= len(all) {
		L.ArgError(2, "unknown parameter index")
		return nil
	}
	return all[index]
}

func getter(index int) lua.LGFunction {
	return func(L *lua.LState) int {
		p := param(L, checkControls(L), index)
		L.Push(lua.LNumber(p.Get()))
		return 1
	}
}

// setter clamps into the parameter range like a host UI would.
func setter(index int) lua.LGFunction {
	return func(L *lua.LState) int {
		p := param(L, checkControls(L), index)
		p.Set(p.Clamp(float64(L.CheckNumber(2))))
		return 0
	}
}

func name(L *lua.LState) int {
	p := param(L, checkControls(L), L.CheckInt(2))
	L.Push(lua.LString(p.Name()))
	return 1
}

func text(L *lua.LState) int {
	p := param(L, checkControls(L), L.CheckInt(2))
	L.Push(lua.LString(p.Text()))
	return 1
}
