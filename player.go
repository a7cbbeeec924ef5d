package crossdelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	intaudio "github.com/cbegin/crossdelay-go/internal/audio"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	tailSeconds float64
	periodMs    int
	engineOpts  []EngineOption
	sampleTap   func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{tailSeconds: 2 * MaxDelaySeconds}
}

// WithTail sets how long playback continues after the input ends so the
// delay can ring out.
func WithTail(seconds float64) PlayerOption {
	return func(cfg *playerConfig) {
		if seconds < 0 {
			seconds = 0
		}
		cfg.tailSeconds = seconds
	}
}

// WithPeriod sets the live device period in milliseconds.
func WithPeriod(ms int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.periodMs = ms
	}
}

func WithEngineOptions(opts ...EngineOption) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.engineOpts = append(cfg.engineOpts, opts...)
	}
}

// WithSampleTap installs a callback invoked with each processed stereo block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player runs the delay in real time, either over a decoded file or live
// from the default capture device. Parameters can be changed from any
// goroutine through Host or Params while audio is running.
type Player struct {
	mu     sync.Mutex
	cfg    playerConfig
	host   *Host
	audio  playback
	paused bool
	duplex *intaudio.Duplex
	done   chan struct{}
}

// playback is the file playback backend driven by Player.
type playback interface {
	Play()
	Pause()
	Finished() bool
	Stop() error
}

var watchInterval = 50 * time.Millisecond

// tappedEngine hands processed blocks to the sample tap.
type tappedEngine struct {
	engine *Engine
	tap    func([]float32)
}

func (t *tappedEngine) ProcessInterleaved(buf []float32) {
	t.engine.ProcessInterleaved(buf)
	if t.tap != nil {
		t.tap(buf)
	}
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	host, err := NewHost(DefaultHostSampleRate, cfg.engineOpts...)
	if err != nil {
		return nil, err
	}
	return &Player{cfg: cfg, host: host}, nil
}

func (p *Player) Host() *Host {
	return p.host
}

func (p *Player) Params() *Params {
	return p.host.engine.Params()
}

// PlayWAV decodes a WAV stream and plays it through the delay, starting from
// empty delay history. It returns once playback has started; use Wait to
// block until it ends. Pausing does not end playback.
func (p *Player) PlayWAV(r io.Reader) error {
	stream, err := wav.DecodeF32(r)
	if err != nil {
		return fmt.Errorf("decode wav: %w", err)
	}
	rate := stream.SampleRate()

	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.stopLocked()
	if err := p.host.SetSampleRate(float32(rate)); err != nil {
		return err
	}
	p.host.engine.Reset()

	tail := int(p.cfg.tailSeconds * float64(rate))
	proc := &tappedEngine{engine: p.host.engine, tap: p.cfg.sampleTap}
	reader := intaudio.NewStreamReader(stream, proc, tail)
	backend, err := intaudio.NewPlayer(rate, reader)
	if err != nil {
		return err
	}
	p.startLocked(backend)
	return nil
}

// startLocked starts backend and the goroutine that closes done once it has
// finished.
func (p *Player) startLocked(backend playback) {
	p.audio = backend
	p.paused = false
	p.done = make(chan struct{})
	go p.watch(backend, p.done, watchInterval)
	backend.Play()
}

// watch closes done when backend has played its whole stream. A paused
// backend is never treated as finished.
func (p *Player) watch(backend playback, done chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		if p.audio != backend {
			p.mu.Unlock()
			return
		}
		if !p.paused && backend.Finished() {
			if p.done == done {
				p.done = nil
				close(done)
			}
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// Monitor runs the delay live on the default duplex device at sampleRate Hz
// until ctx is cancelled or Stop is called.
func (p *Player) Monitor(ctx context.Context, sampleRate int) error {
	p.mu.Lock()
	_ = p.stopLocked()
	if err := p.host.SetSampleRate(float32(sampleRate)); err != nil {
		p.mu.Unlock()
		return err
	}
	p.host.engine.Reset()
	proc := &tappedEngine{engine: p.host.engine, tap: p.cfg.sampleTap}
	duplex, err := intaudio.NewDuplex(sampleRate, p.cfg.periodMs, proc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if err := duplex.Start(); err != nil {
		_ = duplex.Stop()
		p.mu.Unlock()
		return err
	}
	p.duplex = duplex
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return errors.Join(p.Stop(), ctx.Err())
	case <-done:
		return nil
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
		p.paused = true
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
		p.paused = false
	}
}

// Stop ends file playback or live monitoring.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Player) stopLocked() error {
	var err error
	if p.audio != nil {
		err = p.audio.Stop()
		p.audio = nil
		p.paused = false
	}
	if p.duplex != nil {
		err = errors.Join(err, p.duplex.Stop())
		p.duplex = nil
	}
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	return err
}

// Wait blocks until the current playback ends or is stopped. It returns
// immediately if nothing is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}
