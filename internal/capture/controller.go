// Package capture records short microphone takes for voice cloning. A
// session streams device PCM into a live input tap and a compressed
// encoder, stops itself at a hard duration cap, and publishes the encoded
// take once the device has been released.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/graph"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 1
	DefaultMaxTicks   = 30
	DefaultTick       = time.Second

	frameQueueCap = 64
)

// State is the controller's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InputDevice is a microphone. onData is called on the device's own
// thread with interleaved PCM and must not block.
type InputDevice interface {
	Open(sampleRate, channels int, onData func(pcm []int16)) error
	// Stop halts delivery; no onData call starts after it returns.
	Stop() error
	// Close releases the device.
	Close() error
}

// Encoder compresses PCM into a container written to the io.Writer it
// was built with.
type Encoder interface {
	Write(pcm []int16) error
	Close() error
	MIMEType() string
}

// EncoderFactory builds an encoder for one session.
type EncoderFactory func(w io.Writer, sampleRate, channels int) (Encoder, error)

// Graph is the part of the audio graph a capture session needs.
type Graph interface {
	EnsureGraph() error
	NewInputTap() (*graph.Analyser, error)
	DetachInputTap(tap *graph.Analyser)
}

// Capture is a finished take.
type Capture struct {
	Audio   domain.EncodedAudio
	Elapsed int // ticks (seconds) recorded
	Chunks  int
	Dropped int64 // device buffers lost to a full queue
	// Err is set when the encoder failed part way; Audio holds what was
	// produced before the failure.
	Err error
}

// Controller runs at most one capture session at a time.
type Controller struct {
	mu         sync.Mutex
	device     InputDevice
	graph      Graph
	newEncoder EncoderFactory
	log        *logger.Logger
	sampleRate int
	channels   int
	maxTicks   int
	tick       time.Duration

	state State
	sess  *session
}

// Option configures a Controller.
type Option func(*Controller)

// WithSampleRate sets the capture rate.
func WithSampleRate(rate int) Option {
	return func(c *Controller) { c.sampleRate = rate }
}

// WithChannels sets the capture channel count.
func WithChannels(n int) Option {
	return func(c *Controller) { c.channels = n }
}

// WithMaxTicks sets the automatic stop point.
func WithMaxTicks(n int) Option {
	return func(c *Controller) { c.maxTicks = n }
}

// WithTickInterval sets the length of one tick (1s in production).
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tick = d }
}

// New creates an idle controller.
func New(device InputDevice, g Graph, newEncoder EncoderFactory, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		device:     device,
		graph:      g,
		newEncoder: newEncoder,
		log:        log,
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		maxTicks:   DefaultMaxTicks,
		tick:       DefaultTick,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type session struct {
	tap     *graph.Analyser
	enc     Encoder
	chunks  *chunkSink
	elapsed int
	cancel  context.CancelFunc
	out     chan Capture

	frameMu  sync.Mutex
	frames   chan []int16
	closed   bool
	pumpDone chan struct{}
	encErr   error
	dropped  atomic.Int64
}

// push runs on the device thread.
func (s *session) push(pcm []int16) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- pcm:
	default:
		s.dropped.Add(1)
	}
}

func (s *session) closeFrames() {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}

// pump feeds device frames to the tap and the encoder.
func (s *session) pump() {
	defer close(s.pumpDone)
	for pcm := range s.frames {
		s.tap.WritePCM16(pcm)
		if s.encErr != nil {
			continue
		}
		if err := s.enc.Write(pcm); err != nil {
			s.encErr = err
		}
	}
}

// Start opens the microphone and begins a session. The returned channel
// receives exactly one Capture when the session ends, then closes.
func (c *Controller) Start(ctx context.Context) (<-chan Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return nil, domain.ErrCaptureBusy
	}

	sess := &session{
		chunks:   &chunkSink{},
		out:      make(chan Capture, 1),
		frames:   make(chan []int16, frameQueueCap),
		pumpDone: make(chan struct{}),
	}

	if err := c.device.Open(c.sampleRate, c.channels, sess.push); err != nil {
		c.log.Warn("capture: device open failed: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	// Undo everything acquired so far; teardown errors are not reported.
	abort := func(err error) (<-chan Capture, error) {
		_ = c.device.Stop()
		_ = c.device.Close()
		if sess.tap != nil {
			c.graph.DetachInputTap(sess.tap)
		}
		return nil, err
	}

	if err := c.graph.EnsureGraph(); err != nil {
		return abort(err)
	}
	tap, err := c.graph.NewInputTap()
	if err != nil {
		return abort(err)
	}
	sess.tap = tap
	enc, err := c.newEncoder(sess.chunks, c.sampleRate, c.channels)
	if err != nil {
		return abort(fmt.Errorf("capture encoder: %w", err))
	}
	sess.enc = enc

	tctx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	go sess.pump()
	go c.runTicker(tctx, sess)

	c.sess = sess
	c.state = StateRecording
	c.log.Info("capture: recording (rate=%d, channels=%d, cap=%d ticks)", c.sampleRate, c.channels, c.maxTicks)
	return sess.out, nil
}

func (c *Controller) runTicker(ctx context.Context, sess *session) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			// Either Stop cancelled us or the caller's context ended.
			c.finalize(sess)
			return
		case <-t.C:
			if c.advance(sess) {
				c.log.Debug("capture: reached %d ticks", c.maxTicks)
				c.finalize(sess)
				return
			}
		}
	}
}

// advance counts one tick and reports whether the cap was reached.
func (c *Controller) advance(sess *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess || c.state != StateRecording {
		return false
	}
	sess.elapsed++
	return sess.elapsed >= c.maxTicks
}

// Stop ends the current session. It is a no-op unless recording. The
// capture is published on the session channel, not returned.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.sess
	recording := c.state == StateRecording
	c.mu.Unlock()
	if !recording {
		return
	}
	c.finalize(sess)
}

func (c *Controller) finalize(sess *session) {
	c.mu.Lock()
	if c.sess != sess || c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	c.state = StateFinalizing
	c.mu.Unlock()

	if err := c.device.Stop(); err != nil {
		c.log.Debug("capture: device stop: %v", err)
	}
	sess.cancel()
	sess.closeFrames()
	<-sess.pumpDone

	encErr := sess.encErr
	if err := sess.enc.Close(); err != nil && encErr == nil {
		encErr = err
	}
	audio := domain.EncodedAudio{Data: sess.chunks.concat(), MIMEType: sess.enc.MIMEType()}

	if err := c.device.Close(); err != nil {
		c.log.Debug("capture: device close: %v", err)
	}
	c.graph.DetachInputTap(sess.tap)

	c.mu.Lock()
	result := Capture{
		Audio:   audio,
		Elapsed: sess.elapsed,
		Chunks:  sess.chunks.count(),
		Dropped: sess.dropped.Load(),
		Err:     encErr,
	}
	c.sess = nil
	c.state = StateIdle
	c.mu.Unlock()

	if encErr != nil {
		c.log.Warn("capture: encoder: %v", encErr)
	}
	c.log.Info("capture: finished (%d ticks, %d bytes, %d chunks, %d dropped)",
		result.Elapsed, len(audio.Data), result.Chunks, result.Dropped)

	sess.out <- result
	close(sess.out)
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsRecording reports whether a session is capturing.
func (c *Controller) IsRecording() bool {
	return c.State() == StateRecording
}

// Elapsed returns the ticks counted in the current session.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return 0
	}
	return c.sess.elapsed
}

// MaxTicks returns the automatic stop point.
func (c *Controller) MaxTicks() int { return c.maxTicks }

// InputTap returns the live tap of the current session, or nil.
func (c *Controller) InputTap() *graph.Analyser {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.tap
}

// chunkSink keeps each encoder write as one chunk.
type chunkSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *chunkSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, bytes.Clone(p))
	return len(p), nil
}

func (s *chunkSink) concat() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.chunks, nil)
}

func (s *chunkSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}
