// Package graph is the software audio graph behind playback: one source at
// a time feeding an analysis tap, a smoothed gain stage and the output
// sink. The sink pulls rendered audio on its own goroutine; the graph
// clock advances with every frame it pulls.
package graph

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// Defaults match a browser audio context.
const (
	DefaultSampleRate    = 48000
	DefaultChannels      = 2
	DefaultFFTSize       = 512
	DefaultGainSmoothing = 0.05
)

// Manager owns the single live graph. It is built lazily by EnsureGraph
// and lives until Close.
type Manager struct {
	initMu sync.Mutex // serialises construction and sink state changes
	mu     sync.Mutex // guards everything below; held by the render path

	newSink    SinkFactory
	log        *logger.Logger
	sampleRate int
	channels   int
	fftSize    int
	smoothing  float64
	minDB      float64
	maxDB      float64
	gainTau    float64
	gainValue  float64

	built     bool
	buildErr  error
	suspended bool
	sink      Sink
	gain      *AudioParam
	output    *Analyser
	input     *Analyser
	source    *Source
	sources   map[*Source]struct{}
	playing   bool
	frames    int64
	mix       [][]float32
}

// Option configures a Manager.
type Option func(*Manager)

// WithSampleRate sets the graph rate in Hz.
func WithSampleRate(rate int) Option {
	return func(m *Manager) { m.sampleRate = rate }
}

// WithChannels sets the output channel count.
func WithChannels(n int) Option {
	return func(m *Manager) { m.channels = n }
}

// WithFFTSize sets the analysis window of the output and input taps.
func WithFFTSize(n int) Option {
	return func(m *Manager) { m.fftSize = n }
}

// WithAnalyserSmoothing sets the spectral smoothing of the taps.
func WithAnalyserSmoothing(tau float64) Option {
	return func(m *Manager) { m.smoothing = tau }
}

// WithAnalyserRange sets the dB window the taps map onto 0..255.
func WithAnalyserRange(minDB, maxDB float64) Option {
	return func(m *Manager) { m.minDB, m.maxDB = minDB, maxDB }
}

// WithGainSmoothing sets the time constant of gain transitions.
func WithGainSmoothing(tau float64) Option {
	return func(m *Manager) { m.gainTau = tau }
}

// WithInitialGain sets the gain applied when the graph is first built.
func WithInitialGain(v float64) Option {
	return func(m *Manager) { m.gainValue = v }
}

// NewManager creates an unbuilt graph. Nothing touches the audio device
// until EnsureGraph.
func NewManager(newSink SinkFactory, log *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		newSink:    newSink,
		log:        log,
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		fftSize:    DefaultFFTSize,
		smoothing:  defaultSmoothing,
		minDB:      defaultMinDecibels,
		maxDB:      defaultMaxDecibels,
		gainTau:    DefaultGainSmoothing,
		gainValue:  1,
		sources:    make(map[*Source]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) newTap() *Analyser {
	return NewAnalyser(m.fftSize, WithSmoothing(m.smoothing), WithDecibelRange(m.minDB, m.maxDB))
}

// EnsureGraph builds the sink, output tap and gain stage on first use.
// Every call re-applies the configured gain at the current graph time
// (smoothed while a source plays) and resumes a suspended sink. A
// construction failure is permanent.
func (m *Manager) EnsureGraph() error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.buildErr != nil {
		return m.buildErr
	}

	if !m.isBuilt() {
		output := m.newTap()
		gain := NewAudioParam(m.gainValue)

		// Built without holding mu: the sink may pull immediately.
		sink, err := m.newSink(m.sampleRate, m.channels, &renderer{m: m})
		if err != nil {
			m.buildErr = fmt.Errorf("%w: %v", domain.ErrAudioUnavailable, err)
			m.log.Error("graph: sink construction failed: %v", err)
			return m.buildErr
		}

		m.mu.Lock()
		m.sink = sink
		m.output = output
		m.gain = gain
		m.suspended = true
		m.built = true
		m.mu.Unlock()
		m.log.Info("graph: built (rate=%d, channels=%d, fft=%d)", m.sampleRate, m.channels, m.fftSize)
	}

	m.mu.Lock()
	now := m.currentTimeLocked()
	m.gain.Compact(now)
	// A running source must not hear a step; let an active ramp finish.
	if m.gain.ValueAt(now) != m.gainValue {
		if m.playing {
			m.gain.SetTargetAtTime(m.gainValue, now, m.gainTau)
		} else {
			m.gain.SetValueAtTime(m.gainValue, now)
		}
	}
	resume := m.suspended
	sink := m.sink
	m.mu.Unlock()

	if !resume {
		return nil
	}
	// Resuming may pull from the renderer synchronously, so mu is free.
	if err := sink.Resume(); err != nil {
		return fmt.Errorf("%w: resume: %v", domain.ErrAudioUnavailable, err)
	}
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()
	m.log.Debug("graph: sink resumed")
	return nil
}

// Suspend pauses the sink. The graph clock stops until EnsureGraph.
func (m *Manager) Suspend() error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	if !m.built || m.suspended {
		m.mu.Unlock()
		return nil
	}
	sink := m.sink
	m.mu.Unlock()

	if err := sink.Suspend(); err != nil {
		return fmt.Errorf("graph suspend: %w", err)
	}
	m.mu.Lock()
	m.suspended = true
	m.mu.Unlock()
	return nil
}

// SetGain records v as the output gain. On a built graph the change is a
// smoothed approach starting at the current graph time, never a jump.
func (m *Manager) SetGain(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gainValue = v
	if !m.built {
		return
	}
	now := m.currentTimeLocked()
	m.gain.Compact(now)
	m.gain.SetTargetAtTime(v, now, m.gainTau)
}

// StartSource replaces whatever is playing with buf at the given rate and
// starts it immediately.
func (m *Manager) StartSource(buf *domain.SampleBuffer, rate float64) (*Source, error) {
	if buf == nil {
		return nil, fmt.Errorf("start source: %w", domain.ErrNoBuffer)
	}
	if rate <= 0 || math.IsNaN(rate) {
		rate = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.built {
		return nil, fmt.Errorf("start source: %w: graph not initialised", domain.ErrAudioUnavailable)
	}

	m.stopLocked()

	src := newSource(buf, m.sampleRate)
	src.PlaybackRate().SetValueAtTime(rate, m.currentTimeLocked())
	m.sources[src] = struct{}{}
	m.source = src
	m.playing = true
	go m.watch(src)

	m.log.Debug("graph: source started (%s at x%.2f)", buf.Duration(), rate)
	return src, nil
}

// StopSource stops and disconnects the current source. No-op when idle.
func (m *Manager) StopSource() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.source == nil {
		return
	}
	src := m.source
	src.finish()
	delete(m.sources, src)
	m.source = nil
	m.playing = false
	m.log.Debug("graph: source stopped")
}

// watch clears the playing state once src ends, unless it was replaced.
func (m *Manager) watch(src *Source) {
	<-src.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, src)
	if m.source == src {
		m.source = nil
		m.playing = false
		m.log.Debug("graph: source ended")
	}
}

// IsPlaying reports whether a source is connected and has not ended.
func (m *Manager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// ConnectedSources counts sources currently feeding the sink.
func (m *Manager) ConnectedSources() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

// CurrentTime is the graph clock in seconds.
func (m *Manager) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTimeLocked()
}

func (m *Manager) currentTimeLocked() float64 {
	return float64(m.frames) / float64(m.sampleRate)
}

// Gain returns the gain parameter, or nil before EnsureGraph.
func (m *Manager) Gain() *AudioParam {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gain
}

// OutputTap is the analyser between the source and the gain stage, or nil
// before EnsureGraph.
func (m *Manager) OutputTap() *Analyser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output
}

// SampleRate returns the graph rate.
func (m *Manager) SampleRate() int { return m.sampleRate }

// NewInputTap creates a fresh analyser for microphone monitoring. It is not
// connected to the output; the caller pushes samples into it.
func (m *Manager) NewInputTap() (*Analyser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.built {
		return nil, fmt.Errorf("input tap: %w: graph not initialised", domain.ErrAudioUnavailable)
	}
	m.input = m.newTap()
	return m.input, nil
}

// InputTap returns the live input analyser, if any.
func (m *Manager) InputTap() *Analyser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// DetachInputTap drops tap if it is still the live input analyser.
func (m *Manager) DetachInputTap(tap *Analyser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.input == tap {
		m.input = nil
	}
}

// Close stops playback and releases the sink. Errors are logged only.
func (m *Manager) Close() {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	m.stopLocked()
	sink := m.sink
	m.sink = nil
	m.built = false
	m.mu.Unlock()

	if sink == nil {
		return
	}
	if err := sink.Close(); err != nil {
		m.log.Warn("graph: sink close: %v", err)
	}
}

func (m *Manager) isBuilt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.built
}

// render produces the next frames of the graph into the scratch mix,
// advancing the clock.
func (m *Manager) render(frames int) [][]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.mix) != m.channels || len(m.mix[0]) < frames {
		m.mix = make([][]float32, m.channels)
		for c := range m.mix {
			m.mix[c] = make([]float32, frames)
		}
	}
	mix := make([][]float32, m.channels)
	for c := range mix {
		mix[c] = m.mix[c][:frames]
		clear(mix[c])
	}

	t0 := m.currentTimeLocked()
	if src := m.source; src != nil {
		if src.render(mix, t0) {
			src.finish()
		}
	}

	if m.output != nil {
		mono := make([]float32, frames)
		for c := range mix {
			for i, s := range mix[c] {
				mono[i] += s
			}
		}
		inv := 1 / float32(len(mix))
		for i := range mono {
			mono[i] *= inv
		}
		m.output.Write(mono)
	}

	if m.gain != nil {
		dt := 1 / float64(m.sampleRate)
		for i := 0; i < frames; i++ {
			g := float32(m.gain.ValueAt(t0 + float64(i)*dt))
			for c := range mix {
				mix[c][i] *= g
			}
		}
	}

	m.frames += int64(frames)
	return mix
}

// renderer adapts the graph to the io.Reader a sink pulls from.
type renderer struct {
	m *Manager
}

func (r *renderer) Read(p []byte) (int, error) {
	frameBytes := 4 * r.m.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	mix := r.m.render(frames)
	pos := 0
	for i := 0; i < frames; i++ {
		for c := range mix {
			binary.LittleEndian.PutUint32(p[pos:], math.Float32bits(mix[c][i]))
			pos += 4
		}
	}
	return pos, nil
}
