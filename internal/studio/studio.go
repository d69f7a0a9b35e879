// Package studio is the orchestrator behind every user action: it turns
// scripts into decoded speech on the live graph, records reference voices,
// keeps the playback settings, and renders exports offline.
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/voicestudio/internal/capture"
	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/graph"
	"github.com/hammamikhairi/voicestudio/internal/logger"
	"github.com/hammamikhairi/voicestudio/internal/observe"
)

// DefaultProduct prefixes export file names.
const DefaultProduct = "DogarStudio_VoiceMaster"

// Player is the live audio graph.
type Player interface {
	EnsureGraph() error
	StartSource(buf *domain.SampleBuffer, rate float64) (*graph.Source, error)
	StopSource()
	SetGain(v float64)
	IsPlaying() bool
}

// Recorder runs capture sessions.
type Recorder interface {
	Start(ctx context.Context) (<-chan capture.Capture, error)
	Stop()
	IsRecording() bool
	Elapsed() int
	MaxTicks() int
}

// Decoder turns provider bytes into samples.
type Decoder interface {
	Decode(audio domain.EncodedAudio) (*domain.SampleBuffer, error)
}

// Studio serialises user actions against the shared graph and recorder.
// All methods are safe for concurrent use.
type Studio struct {
	player      Player
	recorder    Recorder
	decoder     Decoder
	synthesizer domain.Synthesizer
	refiner     domain.Refiner
	cache       *SynthesisCache
	metrics     *observe.Metrics
	log         *logger.Logger
	product     string
	now         func() time.Time
	onCapture   func(capture.Capture)

	synthName     string
	refineName    string
	synthTimeout  time.Duration
	refineTimeout time.Duration

	mu        sync.Mutex
	settings  domain.PlaybackSettings
	status    domain.Status
	generated *domain.SampleBuffer
	reference *domain.EncodedAudio
}

// Option configures a Studio.
type Option func(*Studio)

// WithSettings sets the startup settings. They are clamped.
func WithSettings(s domain.PlaybackSettings) Option {
	return func(st *Studio) { st.settings = s.Clamp() }
}

// WithCache routes synthesis through c.
func WithCache(c *SynthesisCache) Option {
	return func(st *Studio) { st.cache = c }
}

// WithMetrics records studio activity into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(st *Studio) { st.metrics = m }
}

// WithProduct sets the export file name prefix.
func WithProduct(name string) Option {
	return func(st *Studio) { st.product = name }
}

// WithClock replaces time.Now for export naming.
func WithClock(now func() time.Time) Option {
	return func(st *Studio) { st.now = now }
}

// WithCaptureHook is called with every finished capture, after the studio
// has stored it.
func WithCaptureHook(fn func(capture.Capture)) Option {
	return func(st *Studio) { st.onCapture = fn }
}

// WithProviderNames labels provider metrics.
func WithProviderNames(synthesis, refine string) Option {
	return func(st *Studio) {
		st.synthName = synthesis
		st.refineName = refine
	}
}

// WithTimeouts bounds each provider call. Zero leaves a call unbounded.
func WithTimeouts(synthesis, refine time.Duration) Option {
	return func(st *Studio) {
		st.synthTimeout = synthesis
		st.refineTimeout = refine
	}
}

// New creates a studio. refiner may be nil, in which case Refine fails.
func New(player Player, recorder Recorder, decoder Decoder, synth domain.Synthesizer, refiner domain.Refiner, log *logger.Logger, opts ...Option) *Studio {
	s := &Studio{
		player:      player,
		recorder:    recorder,
		decoder:     decoder,
		synthesizer: synth,
		refiner:     refiner,
		metrics:     observe.Discard(),
		log:         log,
		product:     DefaultProduct,
		now:         time.Now,
		synthName:   "synthesis",
		refineName:  "refine",
		settings:    domain.DefaultSettings(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak synthesizes text with the active voice, stores the result as the
// generated buffer and plays it at the configured rate. Every failure is
// also reported to the status slot.
func (s *Studio) Speak(ctx context.Context, text string) error {
	if domain.IsBlank(text) {
		return s.Report(fmt.Errorf("speak: %w", domain.ErrEmptyInput), domain.MsgEmptyScript)
	}

	s.mu.Lock()
	if s.status.Synthesizing {
		s.mu.Unlock()
		return domain.ErrBusy
	}
	s.status.Synthesizing = true
	req := s.requestLocked(text)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.status.Synthesizing = false
		s.mu.Unlock()
	}()

	if err := s.player.EnsureGraph(); err != nil {
		return s.Report(err, domain.MsgAudioOffline)
	}
	s.player.StopSource()

	s.mu.Lock()
	s.generated = nil
	s.mu.Unlock()

	buf, err := s.render(ctx, req)
	if err != nil {
		return s.Report(err, domain.MsgSynthesisFault)
	}

	s.mu.Lock()
	s.generated = buf
	rate := s.settings.Rate
	s.mu.Unlock()

	return s.play(ctx, buf, rate)
}

// Preview speaks the calibration line for the current language with the
// active voice. The generated buffer is left alone.
func (s *Studio) Preview(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Synthesizing {
		s.mu.Unlock()
		return domain.ErrBusy
	}
	s.status.Synthesizing = true
	req := s.requestLocked(s.settings.Language.PreviewText())
	rate := s.settings.Rate
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.status.Synthesizing = false
		s.mu.Unlock()
	}()

	if err := s.player.EnsureGraph(); err != nil {
		return s.Report(err, domain.MsgAudioOffline)
	}
	s.player.StopSource()

	buf, err := s.render(ctx, req)
	if err != nil {
		return s.Report(err, domain.MsgSynthesisFault)
	}
	return s.play(ctx, buf, rate)
}

func (s *Studio) requestLocked(text string) domain.SynthesisRequest {
	return domain.SynthesisRequest{
		Text:     text,
		Voice:    s.settings.Voice,
		Language: s.settings.Language,
		Pitch:    s.settings.Pitch,
	}
}

// render fetches (or recalls) the payload for req and decodes it.
func (s *Studio) render(ctx context.Context, req domain.SynthesisRequest) (*domain.SampleBuffer, error) {
	audio, cached, err := s.synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	buf, err := s.decoder.Decode(audio)
	if err != nil {
		s.metrics.DecodeFailures.Add(ctx, 1)
		return nil, err
	}
	// Only payloads that decode are worth recalling.
	if s.cache != nil && !cached {
		s.cache.Put(req, audio)
	}
	return buf, nil
}

// synthesize reports whether the payload came from the cache.
func (s *Studio) synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.EncodedAudio, bool, error) {
	if s.cache != nil {
		if audio, ok := s.cache.Get(req); ok {
			s.metrics.RecordCacheLookup(ctx, true)
			return audio, true, nil
		}
		s.metrics.RecordCacheLookup(ctx, false)
	}

	callCtx, cancel := withTimeout(ctx, s.synthTimeout)
	defer cancel()
	start := time.Now()
	audio, err := s.synthesizer.Synthesize(callCtx, req)
	s.metrics.RecordProviderRequest(ctx, s.synthName, "synthesis", time.Since(start), err)
	if err != nil {
		return domain.EncodedAudio{}, false, err
	}
	if audio.Empty() {
		return domain.EncodedAudio{}, false, fmt.Errorf("synthesis returned no audio: %w", domain.ErrDecode)
	}
	s.log.Info("synthesized %d bytes (%s) in %s", len(audio.Data), audio.MIMEType, time.Since(start).Round(time.Millisecond))
	return audio, false, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (s *Studio) play(ctx context.Context, buf *domain.SampleBuffer, rate float64) error {
	if _, err := s.player.StartSource(buf, rate); err != nil {
		return s.Report(err, domain.MsgAudioOffline)
	}
	s.metrics.PlaybackStarts.Add(ctx, 1)
	s.clearError()
	return nil
}

// StopPlayback stops whatever is playing. Synthesis in flight is unaffected.
func (s *Studio) StopPlayback() {
	s.player.StopSource()
}

// Replay plays the generated buffer again from the start.
func (s *Studio) Replay(ctx context.Context) error {
	s.mu.Lock()
	buf := s.generated
	rate := s.settings.Rate
	s.mu.Unlock()

	if buf == nil {
		return s.Report(domain.ErrNoBuffer, domain.MsgNothingToSave)
	}
	if err := s.player.EnsureGraph(); err != nil {
		return s.Report(err, domain.MsgAudioOffline)
	}
	return s.play(ctx, buf, rate)
}

// Refine rewrites text for speech in the current language.
func (s *Studio) Refine(ctx context.Context, text string) (string, error) {
	if domain.IsBlank(text) {
		return "", s.Report(fmt.Errorf("refine: %w", domain.ErrEmptyInput), domain.MsgEmptyScript)
	}
	if s.refiner == nil {
		return "", s.Report(&domain.ServiceError{Service: s.refineName, Err: errors.New("refinement not configured")}, domain.MsgRefineFailed)
	}

	s.mu.Lock()
	if s.status.Refining {
		s.mu.Unlock()
		return "", domain.ErrBusy
	}
	s.status.Refining = true
	lang := s.settings.Language
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.status.Refining = false
		s.mu.Unlock()
	}()

	callCtx, cancel := withTimeout(ctx, s.refineTimeout)
	defer cancel()
	start := time.Now()
	out, err := s.refiner.Refine(callCtx, text, lang)
	s.metrics.RecordProviderRequest(ctx, s.refineName, "refine", time.Since(start), err)
	if err != nil {
		return "", s.Report(err, domain.MsgRefineFailed)
	}
	if domain.IsBlank(out) {
		return "", s.Report(&domain.ServiceError{Service: s.refineName, Err: errors.New("empty refinement")}, domain.MsgRefineFailed)
	}
	s.clearError()
	return out, nil
}

// StartRecording begins a capture session. The take is stored as the
// reference voice when the session ends, whether by StopRecording or by
// reaching the duration cap.
func (s *Studio) StartRecording(ctx context.Context) error {
	out, err := s.recorder.Start(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCaptureBusy) {
			return err
		}
		return s.Report(err, domain.MsgInputSensors)
	}
	s.clearError()
	go s.awaitCapture(ctx, out)
	return nil
}

// StopRecording ends the current capture session. The take is published
// asynchronously.
func (s *Studio) StopRecording() {
	s.recorder.Stop()
}

func (s *Studio) awaitCapture(ctx context.Context, out <-chan capture.Capture) {
	c, ok := <-out
	if !ok {
		return
	}

	outcome := "ok"
	switch {
	case c.Audio.Empty():
		outcome = "empty"
		s.Report(fmt.Errorf("capture produced no audio: %w", domain.ErrDeviceUnavailable), domain.MsgInputSensors)
	default:
		if c.Err != nil {
			outcome = "partial"
			s.log.Warn("capture: encoder failed after %d chunks: %v", c.Chunks, c.Err)
		}
		ref := c.Audio
		s.mu.Lock()
		s.reference = &ref
		if s.settings.Voice.IsCloned() {
			s.settings.Voice.Reference = &ref
		}
		s.mu.Unlock()
		s.log.Info("capture: reference stored (%ds, %d bytes, %s)", c.Elapsed, len(ref.Data), ref.MIMEType)
	}
	s.metrics.RecordCapture(ctx, outcome, c.Elapsed)

	if s.onCapture != nil {
		s.onCapture(c)
	}
}

// UseClonedVoice makes the captured reference the active voice.
func (s *Studio) UseClonedVoice() error {
	s.mu.Lock()
	ref := s.reference
	preset := s.settings.Voice.Preset
	s.mu.Unlock()

	if ref == nil {
		return s.Report(domain.ErrNoReference, "")
	}
	p, err := domain.ClonedProfile(preset, *ref)
	if err != nil {
		return s.Report(err, "")
	}
	s.mu.Lock()
	s.settings.Voice = p
	s.mu.Unlock()
	return nil
}

// SelectPreset activates a preset voice, dropping a cloned selection.
func (s *Studio) SelectPreset(id string) error {
	p, err := domain.PresetProfile(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.settings.Voice = p
	s.mu.Unlock()
	return nil
}

// SetLanguage changes the target language.
func (s *Studio) SetLanguage(lang domain.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("unsupported language %q", lang)
	}
	s.mu.Lock()
	s.settings.Language = lang
	s.mu.Unlock()
	return nil
}

// SetRate changes the playback speed used by the next playback and export.
func (s *Studio) SetRate(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Rate = v
	s.settings = s.settings.Clamp()
	return s.settings.Rate
}

// SetPitch changes the delivery hint sent with the next synthesis.
func (s *Studio) SetPitch(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Pitch = v
	s.settings = s.settings.Clamp()
	return s.settings.Pitch
}

// SetGain changes the output gain; a running graph ramps to it smoothly.
func (s *Studio) SetGain(v float64) float64 {
	s.mu.Lock()
	s.settings.Gain = v
	s.settings = s.settings.Clamp()
	g := s.settings.Gain
	s.mu.Unlock()

	s.player.SetGain(g)
	return g
}

// Settings returns a copy of the playback settings.
func (s *Studio) Settings() domain.PlaybackSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Generated returns the last synthesized buffer, or nil.
func (s *Studio) Generated() *domain.SampleBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated
}

// Report stores the user-facing message for err in the status slot,
// replacing the previous one, and returns err.
func (s *Studio) Report(err error, fallback string) error {
	if err == nil {
		return nil
	}
	msg := domain.MessageFor(err, fallback)
	s.log.Warn("%s (%v)", msg, err)
	s.mu.Lock()
	s.status.Error = msg
	s.mu.Unlock()
	return err
}

// ClearError empties the status slot.
func (s *Studio) ClearError() { s.clearError() }

func (s *Studio) clearError() {
	s.mu.Lock()
	s.status.Error = ""
	s.mu.Unlock()
}

// Snapshot is everything the presentation layer renders.
type Snapshot struct {
	Status       domain.Status
	Settings     domain.PlaybackSettings
	HasGenerated bool
	Generated    time.Duration
	HasReference bool
	Elapsed      int
	MaxSeconds   int
}

// Snapshot returns the current state.
func (s *Studio) Snapshot() Snapshot {
	playing := s.player.IsPlaying()
	recording := s.recorder.IsRecording()
	elapsed := s.recorder.Elapsed()
	maxSeconds := s.recorder.MaxTicks()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Status:       s.status,
		Settings:     s.settings,
		HasGenerated: s.generated != nil,
		HasReference: s.reference != nil,
		Elapsed:      elapsed,
		MaxSeconds:   maxSeconds,
	}
	snap.Status.Playing = playing
	snap.Status.Recording = recording
	if s.generated != nil {
		snap.Generated = s.generated.Duration()
	}
	return snap
}
