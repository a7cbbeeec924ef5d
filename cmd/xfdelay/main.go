package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/cbegin/crossdelay-go"
	"github.com/cbegin/crossdelay-go/internal/luabridge"
)

func main() {
	// .env is optional; flags override anything it sets.
	_ = godotenv.Load()

	var (
		inPath     = flag.String("in", os.Getenv("XFDELAY_IN"), "input WAV file (8 or 16-bit PCM; float WAV is not readable)")
		outPath    = flag.String("out", os.Getenv("XFDELAY_OUT"), "write the processed signal to this WAV file")
		play       = flag.Bool("play", envBool("XFDELAY_PLAY", false), "play the processed input")
		live       = flag.Bool("live", envBool("XFDELAY_LIVE", false), "run live from the default capture device")
		sampleRate = flag.Int("sample-rate", envInt("XFDELAY_SAMPLE_RATE", 48000), "live sample rate")
		periodMs   = flag.Int("period", envInt("XFDELAY_PERIOD_MS", 10), "live device period in milliseconds")
		delaySec   = flag.Float64("delay", envFloat("XFDELAY_DELAY", crossdelay.DefaultDelaySeconds), "delay time in seconds (0..1)")
		feedback   = flag.Float64("feedback", envFloat("XFDELAY_FEEDBACK", crossdelay.DefaultFeedback), "feedback amount (0..1)")
		mix        = flag.Float64("mix", envFloat("XFDELAY_MIX", crossdelay.DefaultWetDryRatio), "wet/dry ratio (0 dry .. 1 wet)")
		tail       = flag.Float64("tail", envFloat("XFDELAY_TAIL", 2), "seconds rendered after the input ends")
		block      = flag.Int("block", envInt("XFDELAY_BLOCK", crossdelay.DefaultBlockFrames), "offline block size in frames")
		self       = flag.Bool("self", envBool("XFDELAY_SELF", false), "feed each channel back into itself instead of the other channel")
		scriptPath = flag.String("script", os.Getenv("XFDELAY_SCRIPT"), "Lua script controlling the global 'delay'")
	)
	flag.Parse()

	if err := checkUnit("delay", *delaySec); err != nil {
		log.Fatal(err)
	}
	if err := checkUnit("feedback", *feedback); err != nil {
		log.Fatal(err)
	}
	if err := checkUnit("mix", *mix); err != nil {
		log.Fatal(err)
	}

	routing := crossdelay.RoutingCross
	if *self {
		routing = crossdelay.RoutingSelf
	}
	pl, err := crossdelay.NewPlayer(
		crossdelay.WithTail(*tail),
		crossdelay.WithPeriod(*periodMs),
		crossdelay.WithEngineOptions(crossdelay.WithFeedbackRouting(routing)),
	)
	if err != nil {
		log.Fatal(err)
	}
	host := pl.Host()
	initial := settings{delay: *delaySec, feedback: *feedback, mix: *mix}
	initial.apply(pl.Params())

	var script *luabridge.Script
	if *scriptPath != "" {
		// The script runs beside the audio thread, so it only gets parameter access.
		script, err = luabridge.LoadScript(*scriptPath, host, luabridge.ControlsOnly())
		if err != nil {
			log.Fatal(err)
		}
		defer script.Close()
	}
	logParams(host)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *live:
		if err := runLive(ctx, pl, *sampleRate, script); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	case *inPath != "":
		if *outPath == "" && !*play {
			log.Fatal("nothing to do: pass -out and/or -play")
		}
		if err := runFile(ctx, pl, *inPath, *outPath, *play, *tail, *block, initial, script); err != nil {
			log.Fatal(err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runFile(ctx context.Context, pl *crossdelay.Player, inPath, outPath string, play bool, tail float64, block int, initial settings, script *luabridge.Script) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	if outPath != "" {
		samples, rate, err := crossdelay.DecodeWAV(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s: %w", inPath, err)
		}
		host := pl.Host()
		if err := host.SetSampleRate(float32(rate)); err != nil {
			return err
		}
		engine := host.Engine()
		var scriptErr error
		out := crossdelay.RenderSamples(engine, samples, crossdelay.RenderOptions{
			BlockFrames: block,
			TailSeconds: tail,
			OnBlock: func(frame int) {
				if script != nil && scriptErr == nil {
					scriptErr = script.Automate(float64(frame) / float64(rate))
				}
			},
		})
		if scriptErr != nil {
			return scriptErr
		}
		if err := os.WriteFile(outPath, crossdelay.EncodeWAVFloat32LE(out, rate, 2), 0o644); err != nil {
			return err
		}
		log.Printf("wrote %s: %d frames at %d Hz", outPath, len(out)/2, rate)
	}

	if !play {
		return nil
	}
	// Automation during the render may have moved the parameters; playback
	// starts from the command-line values. PlayWAV clears delay history.
	initial.apply(pl.Params())
	if err := pl.PlayWAV(bytes.NewReader(data)); err != nil {
		return err
	}
	log.Printf("playing %s", inPath)
	done := make(chan struct{})
	go func() {
		pl.Wait()
		close(done)
	}()
	automate(ctx, done, script)
	return pl.Stop()
}

func runLive(ctx context.Context, pl *crossdelay.Player, sampleRate int, script *luabridge.Script) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go automate(ctx, ctx.Done(), script)
	log.Printf("monitoring live input at %d Hz, interrupt to stop", sampleRate)
	return pl.Monitor(ctx, sampleRate)
}

// automate calls the script's automate function from this control goroutine
// until done is closed or ctx is cancelled.
func automate(ctx context.Context, done <-chan struct{}, script *luabridge.Script) {
	if script == nil || !script.HasAutomation() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		return
	}
	start := time.Now()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := script.Automate(time.Since(start).Seconds()); err != nil {
				log.Printf("script: %v", err)
				return
			}
		}
	}
}

// settings are the starting parameter values from flags or the environment.
type settings struct {
	delay, feedback, mix float64
}

func (s settings) apply(p *crossdelay.Params) {
	p.DelaySeconds.Set(s.delay)
	p.Feedback.Set(s.feedback)
	p.WetDryRatio.Set(s.mix)
}

func logParams(host *crossdelay.Host) {
	for i := 0; i < host.ParameterCount(); i++ {
		name, _ := host.ParameterName(i)
		text, _ := host.ParameterText(i)
		log.Printf("%s: %s", name, text)
	}
}

func checkUnit(name string, v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("invalid -%s %v (expected 0..1)", name, v)
	}
	return nil
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
