package graph

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// Sink is the graph's output device. It pulls interleaved float32 PCM
// from the reader it was built with, on its own goroutine, while resumed.
type Sink interface {
	Resume() error
	Suspend() error
	Close() error
}

// SinkFactory builds the sink for a graph. It is called at most once per
// Manager.
type SinkFactory func(sampleRate, channels int, src io.Reader) (Sink, error)

// OtoSink plays through the system audio device.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player
	log    *logger.Logger
}

type otoConfig struct {
	bufferSize time.Duration
}

// OtoOption configures the oto sink.
type OtoOption func(*otoConfig)

// WithBufferSize sets the device buffer duration. Smaller values lower
// the delay between a graph change and hearing it.
func WithBufferSize(d time.Duration) OtoOption {
	return func(c *otoConfig) { c.bufferSize = d }
}

// NewOtoSinkFactory returns a factory for the system device. oto allows a
// single context per process, so the factory must only be used by one
// Manager.
func NewOtoSinkFactory(log *logger.Logger, opts ...OtoOption) SinkFactory {
	cfg := otoConfig{bufferSize: 80 * time.Millisecond}
	for _, o := range opts {
		o(&cfg)
	}

	return func(sampleRate, channels int, src io.Reader) (Sink, error) {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   cfg.bufferSize,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("oto context: %w", err)
		}
		<-readyChan

		player := ctx.NewPlayer(src)
		bytesPerSecond := sampleRate * channels * 4
		player.SetBufferSize(int(cfg.bufferSize.Seconds() * float64(bytesPerSecond)))

		log.Debug("oto sink initialized (rate=%d, channels=%d, buffer=%s)", sampleRate, channels, cfg.bufferSize)
		return &OtoSink{ctx: ctx, player: player, log: log}, nil
	}
}

// Resume starts or continues pulling from the graph.
func (s *OtoSink) Resume() error {
	s.player.Play()
	return s.player.Err()
}

// Suspend pauses the device; the graph clock stops with it.
func (s *OtoSink) Suspend() error {
	s.player.Pause()
	return nil
}

// Close releases the player. The oto context lives until process exit.
func (s *OtoSink) Close() error {
	return s.player.Close()
}
