package luabridge

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/cbegin/crossdelay-go"
)

const automateFunc = "automate"

// Script is a user Lua program bound to a Host through the global "delay".
// Scripts can still create independent instances with Delay.new.
// If the program defines automate(seconds), Automate calls it; renderers
// invoke it at block boundaries to drive parameters over time.
//
// A Script is not safe for concurrent use.
type Script struct {
	L        *lua.LState
	automate *lua.LFunction
}

// ScriptOption configures how a Script binds its Host.
type ScriptOption func(*scriptConfig)

type scriptConfig struct {
	controlsOnly bool
}

// ControlsOnly binds delay as a handle that can only read and write
// parameters. Use it when the Host is processing audio on another thread
// while the script runs.
func ControlsOnly() ScriptOption {
	return func(cfg *scriptConfig) {
		cfg.controlsOnly = true
	}
}

// LoadScript runs the Lua file at path with delay bound to h.
func LoadScript(path string, h *crossdelay.Host, opts ...ScriptOption) (*Script, error) {
	return newScript(h, opts, func(L *lua.LState) error { return L.DoFile(path) })
}

// NewScript runs Lua source with delay bound to h.
func NewScript(src string, h *crossdelay.Host, opts ...ScriptOption) (*Script, error) {
	return newScript(h, opts, func(L *lua.LState) error { return L.DoString(src) })
}

func newScript(h *crossdelay.Host, opts []ScriptOption, run func(*lua.LState) error) (*Script, error) {
	var cfg scriptConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	L := lua.NewState()
	Register(L)
	if cfg.controlsOnly {
		L.SetGlobal("delay", wrapControls(L, h))
	} else {
		L.SetGlobal("delay", wrap(L, h))
	}
	if err := run(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("run script: %w", err)
	}
	s := &Script{L: L}
	if fn, ok := L.GetGlobal(automateFunc).(*lua.LFunction); ok {
		s.automate = fn
	}
	return s, nil
}

func (s *Script) HasAutomation() bool {
	return s.automate != nil
}

// Automate calls the script's automate(seconds) function, if any.
func (s *Script) Automate(seconds float64) error {
	if s.automate == nil {
		return nil
	}
	err := s.L.CallByParam(lua.P{Fn: s.automate, NRet: 0, Protect: true}, lua.LNumber(seconds))
	if err != nil {
		return fmt.Errorf("%s(%g): %w", automateFunc, seconds, err)
	}
	return nil
}

func (s *Script) Close() {
	s.L.Close()
}
