package viz

import (
	"context"
	"sync"
	"time"

	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// Tap is a source of audio measurements.
type Tap interface {
	FrequencyBinCount() int
	ByteFrequencyData(dst []byte) int
	ByteTimeDomainData(dst []byte) int
}

// FrameSource paces the render loops. Start returns a frame channel and a
// function that releases it.
type FrameSource interface {
	Start() (frames <-chan time.Time, stop func())
}

// TickerFrames is a FrameSource backed by a time.Ticker.
type TickerFrames struct {
	interval time.Duration
}

// NewTickerFrames creates a frame source running at fps frames per second.
func NewTickerFrames(fps int) TickerFrames {
	if fps <= 0 {
		fps = 30
	}
	return TickerFrames{interval: time.Second / time.Duration(fps)}
}

// Start implements FrameSource.
func (f TickerFrames) Start() (<-chan time.Time, func()) {
	t := time.NewTicker(f.interval)
	return t.C, t.Stop
}

// DefaultVisibleFraction is the share of the spectrum (from DC upward)
// drawn as bars. Speech energy lives in the lower bins.
const DefaultVisibleFraction = 0.35

// Driver runs the spectrum and waveform loops.
type Driver struct {
	frames   FrameSource
	log      *logger.Logger
	spectrum *Canvas
	wave     *Canvas
	visible  float64
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithSpectrumSurface sets the canvas for the playback spectrum.
func WithSpectrumSurface(c *Canvas) DriverOption {
	return func(d *Driver) { d.spectrum = c }
}

// WithWaveSurface sets the canvas for the capture waveform.
func WithWaveSurface(c *Canvas) DriverOption {
	return func(d *Driver) { d.wave = c }
}

// WithVisibleFraction sets how much of the spectrum is drawn.
func WithVisibleFraction(f float64) DriverOption {
	return func(d *Driver) {
		if f > 0 && f <= 1 {
			d.visible = f
		}
	}
}

// NewDriver creates a driver. Surfaces are optional; a loop without a
// surface does nothing.
func NewDriver(frames FrameSource, log *logger.Logger, opts ...DriverOption) *Driver {
	d := &Driver{
		frames:  frames,
		log:     log,
		visible: DefaultVisibleFraction,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// RunOutput draws the playback spectrum on every frame until ctx is done.
// The tap is resolved per frame because the graph is built lazily; frames
// without a tap are skipped. Bars are lit while playing() and dim
// otherwise, so the idle spectrum decays visibly.
func (d *Driver) RunOutput(ctx context.Context, tap func() Tap, playing func() bool) {
	if d.spectrum == nil || tap == nil {
		return
	}
	frames, stop := d.frames.Start()
	defer stop()
	d.log.Debug("viz: output loop started")

	var buf []byte
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("viz: output loop stopped")
			return
		case <-frames:
		}

		t := tap()
		if t == nil {
			continue
		}
		bins := t.FrequencyBinCount()
		if len(buf) != bins {
			buf = make([]byte, bins)
		}
		t.ByteFrequencyData(buf)

		shown := max(int(float64(bins)*d.visible), 1)
		style := StyleDim
		if playing() {
			style = StyleLit
		}
		d.spectrum.DrawBars(buf[:shown], style)
	}
}

// StartInput draws the capture waveform on every frame while active()
// holds. On the first frame where it does not, the loop clears its
// surface and exits. The returned stop function ends the loop early and
// waits for it; it is safe to call more than once.
func (d *Driver) StartInput(tap Tap, active func() bool) (stop func()) {
	if d.wave == nil || tap == nil {
		return func() {}
	}

	quit := make(chan struct{})
	done := make(chan struct{})
	frames, stopFrames := d.frames.Start()

	go func() {
		defer close(done)
		defer stopFrames()
		defer d.wave.Clear()
		d.log.Debug("viz: input loop started")

		buf := make([]byte, tap.FrequencyBinCount())
		for {
			select {
			case <-quit:
				d.log.Debug("viz: input loop cancelled")
				return
			case <-frames:
			}
			if !active() {
				d.log.Debug("viz: input loop finished")
				return
			}
			tap.ByteTimeDomainData(buf)
			d.wave.DrawWave(buf, StyleLit)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		<-done
	}
}
