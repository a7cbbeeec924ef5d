package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Duplex captures stereo input from the default device, runs it through a
// FrameProcessor and plays the result on the default output device.
type Duplex struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	proc    FrameProcessor
	buf     []float32
	started bool
}

// NewDuplex opens a full-duplex f32 stereo device at sampleRate Hz.
// periodMs sets the device period; zero keeps the backend default.
func NewDuplex(sampleRate, periodMs int, proc FrameProcessor) (*Duplex, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	d := &Duplex{ctx: ctx, proc: proc}

	cfg := malgo.DefaultDeviceConfig(malgo.Duplex)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 2
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 2
	cfg.SampleRate = uint32(sampleRate)
	if periodMs > 0 {
		cfg.PeriodSizeInMilliseconds = uint32(periodMs)
	}
	cfg.Alsa.NoMMap = 1

	d.device, err = malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: d.onData,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init duplex device: %w", err)
	}
	return d, nil
}

// onData runs on the device thread.
func (d *Duplex) onData(out, in []byte, frames uint32) {
	count := int(frames) * 2
	if len(in) < count*4 || len(out) < count*4 {
		clear(out)
		return
	}
	if cap(d.buf) < count {
		d.buf = make([]float32, count)
	}
	buf := d.buf[:count]
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(in[i*4:]))
	}
	d.proc.ProcessInterleaved(buf)
	for i, s := range buf {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
}

func (d *Duplex) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("start duplex device: %w", err)
	}
	d.started = true
	return nil
}

// Stop halts the device and releases the audio context.
func (d *Duplex) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil
	}
	var err error
	if d.started {
		err = d.device.Stop()
		d.started = false
	}
	d.device.Uninit()
	d.device = nil
	_ = d.ctx.Uninit()
	d.ctx.Free()
	return err
}
