package studio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/voicestudio/internal/capture"
	"github.com/hammamikhairi/voicestudio/internal/codec"
	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/graph"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// ── fakes ────────────────────────────────────────────────────────

type fakePlayer struct {
	mu        sync.Mutex
	ensures   int
	starts    int
	stops     int
	gains     []float64
	rates     []float64
	playing   bool
	ensureErr error
}

func (p *fakePlayer) EnsureGraph() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensures++
	return p.ensureErr
}

func (p *fakePlayer) StartSource(buf *domain.SampleBuffer, rate float64) (*graph.Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	p.rates = append(p.rates, rate)
	p.playing = true
	return nil, nil
}

func (p *fakePlayer) StopSource() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.playing = false
}

func (p *fakePlayer) SetGain(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gains = append(p.gains, v)
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensures + p.starts + p.stops
}

type fakeRecorder struct {
	mu        sync.Mutex
	out       chan capture.Capture
	startErr  error
	recording bool
	stops     int
}

func (r *fakeRecorder) Start(ctx context.Context) (<-chan capture.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.out = make(chan capture.Capture, 1)
	r.recording = true
	return r.out, nil
}

func (r *fakeRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.recording = false
}

func (r *fakeRecorder) finish(c capture.Capture) {
	r.mu.Lock()
	r.recording = false
	out := r.out
	r.mu.Unlock()
	out <- c
	close(out)
}

func (r *fakeRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *fakeRecorder) Elapsed() int  { return 0 }
func (r *fakeRecorder) MaxTicks() int { return 30 }

type fakeSynth struct {
	mu    sync.Mutex
	audio domain.EncodedAudio
	err   error
	reqs  []domain.SynthesisRequest
}

func (f *fakeSynth) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.EncodedAudio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.audio, f.err
}

func (f *fakeSynth) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeRefiner struct {
	out string
	err error
}

func (f *fakeRefiner) Refine(ctx context.Context, text string, lang domain.Language) (string, error) {
	return f.out, f.err
}

// ── helpers ──────────────────────────────────────────────────────

func toneWAV(t *testing.T, rate, frames int) domain.EncodedAudio {
	t.Helper()
	ch := make([]float32, frames)
	for i := range ch {
		ch[i] = float32(i%100) / 200
	}
	buf, err := domain.NewSampleBuffer(rate, [][]float32{ch})
	if err != nil {
		t.Fatalf("building buffer: %v", err)
	}
	return codec.EncodeWAV(buf)
}

type harness struct {
	studio   *Studio
	player   *fakePlayer
	recorder *fakeRecorder
	synth    *fakeSynth
}

func setup(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		player:   &fakePlayer{},
		recorder: &fakeRecorder{},
		synth:    &fakeSynth{audio: toneWAV(t, 8000, 8000)},
	}
	log := logger.New(logger.LevelOff, nil)
	h.studio = New(h.player, h.recorder, codec.NewDecoder(48000), h.synth, &fakeRefiner{out: "refined"}, log, opts...)
	return h
}

// ── tests ────────────────────────────────────────────────────────

func TestSpeakEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		h := setup(t)
		err := h.studio.Speak(context.Background(), text)
		if !errors.Is(err, domain.ErrEmptyInput) {
			t.Fatalf("Speak(%q) error = %v, want ErrEmptyInput", text, err)
		}
		if n := h.player.mutations(); n != 0 {
			t.Errorf("Speak(%q) touched the graph %d times", text, n)
		}
		if h.synth.calls() != 0 {
			t.Errorf("Speak(%q) called the synthesizer", text)
		}
		if got := h.studio.Snapshot().Status.Error; got != domain.MsgEmptyScript {
			t.Errorf("status error = %q, want %q", got, domain.MsgEmptyScript)
		}
	}
}

func TestSpeakPlaysGeneratedBuffer(t *testing.T) {
	h := setup(t)
	h.studio.SetRate(1.5)

	if err := h.studio.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	gen := h.studio.Generated()
	if gen == nil {
		t.Fatal("generated buffer not stored")
	}
	if gen.Frames() != 8000 || gen.SampleRate() != 8000 {
		t.Errorf("generated = %d frames at %d Hz", gen.Frames(), gen.SampleRate())
	}
	if h.player.starts != 1 || h.player.rates[0] != 1.5 {
		t.Errorf("starts=%d rates=%v, want one start at 1.5", h.player.starts, h.player.rates)
	}
	if h.player.stops != 1 {
		t.Errorf("stops = %d, want the previous source stopped first", h.player.stops)
	}
	snap := h.studio.Snapshot()
	if snap.Status.Synthesizing {
		t.Error("synthesizing flag left set")
	}
	if !snap.Status.Playing || !snap.HasGenerated {
		t.Errorf("snapshot = %+v", snap)
	}
	if req := h.synth.reqs[0]; req.Text != "hello" || req.Voice.Preset != domain.DefaultPreset {
		t.Errorf("request = %+v", req)
	}
}

func TestSpeakDecodeFailure(t *testing.T) {
	h := setup(t)
	if err := h.studio.Speak(context.Background(), "first"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	h.synth.audio = domain.EncodedAudio{Data: []byte("definitely not audio"), MIMEType: "audio/mpeg"}
	err := h.studio.Speak(context.Background(), "hello")
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
	if h.studio.Generated() != nil {
		t.Error("generated buffer should be cleared after a decode failure")
	}
	snap := h.studio.Snapshot()
	if snap.Status.Synthesizing {
		t.Error("synthesizing flag left set")
	}
	if snap.Status.Error != domain.MsgDecodeFailed {
		t.Errorf("status error = %q", snap.Status.Error)
	}
	if h.player.starts != 1 {
		t.Errorf("starts = %d, want only the first Speak to play", h.player.starts)
	}
}

func TestSpeakServiceFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"provider message", &domain.ServiceError{Service: "gemini", Message: "quota exceeded"}, "quota exceeded"},
		{"no message", &domain.ServiceError{Service: "gemini", Err: errors.New("eof")}, domain.MsgSynthesisFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setup(t)
			h.synth.err = tt.err
			err := h.studio.Speak(context.Background(), "hello")
			if !errors.Is(err, domain.ErrServiceFailure) {
				t.Fatalf("error = %v, want ErrServiceFailure", err)
			}
			snap := h.studio.Snapshot()
			if snap.Status.Error != tt.want {
				t.Errorf("status error = %q, want %q", snap.Status.Error, tt.want)
			}
			if snap.Status.Synthesizing {
				t.Error("synthesizing flag left set")
			}
		})
	}
}

func TestSpeakAudioUnavailable(t *testing.T) {
	h := setup(t)
	h.player.ensureErr = domain.ErrAudioUnavailable
	err := h.studio.Speak(context.Background(), "hello")
	if !errors.Is(err, domain.ErrAudioUnavailable) {
		t.Fatalf("error = %v", err)
	}
	if h.synth.calls() != 0 {
		t.Error("synthesizer called without a graph")
	}
	if got := h.studio.Snapshot().Status.Error; got != domain.MsgAudioOffline {
		t.Errorf("status error = %q", got)
	}
}

func TestSpeakUsesCache(t *testing.T) {
	cache := NewSynthesisCache(8, logger.New(logger.LevelOff, nil))
	h := setup(t, WithCache(cache))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := h.studio.Speak(ctx, "hello"); err != nil {
			t.Fatalf("Speak %d: %v", i, err)
		}
	}
	if h.synth.calls() != 1 {
		t.Errorf("synthesizer calls = %d, want 1", h.synth.calls())
	}

	if err := h.studio.SelectPreset("Kore"); err != nil {
		t.Fatal(err)
	}
	if err := h.studio.Speak(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	if h.synth.calls() != 2 {
		t.Errorf("voice change should miss the cache, calls = %d", h.synth.calls())
	}
}

func TestSpeakDoesNotCacheUndecodableAudio(t *testing.T) {
	cache := NewSynthesisCache(8, logger.New(logger.LevelOff, nil))
	h := setup(t, WithCache(cache))
	ctx := context.Background()
	good := h.synth.audio

	h.synth.audio = domain.EncodedAudio{Data: []byte("garbage"), MIMEType: "audio/mpeg"}
	if err := h.studio.Speak(ctx, "hello"); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("first Speak error = %v, want ErrDecode", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("cache holds %d entries after a decode failure", cache.Len())
	}

	h.synth.audio = good
	if err := h.studio.Speak(ctx, "hello"); err != nil {
		t.Fatalf("retry Speak: %v", err)
	}
	if h.synth.calls() != 2 {
		t.Errorf("synthesizer calls = %d, want the retry to reach the provider", h.synth.calls())
	}
	if h.studio.Generated() == nil {
		t.Error("retry did not store a generated buffer")
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d, want the decoded payload stored", cache.Len())
	}
}

func TestPreviewKeepsGenerated(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	if err := h.studio.SetLanguage(domain.French); err != nil {
		t.Fatal(err)
	}
	if err := h.studio.Preview(ctx); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if h.studio.Generated() != nil {
		t.Error("preview should not become the generated buffer")
	}
	if got := h.synth.reqs[0].Text; got != domain.French.PreviewText() {
		t.Errorf("preview text = %q", got)
	}
	if h.player.starts != 1 {
		t.Errorf("starts = %d", h.player.starts)
	}
}

func TestRefine(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	got, err := h.studio.Refine(ctx, "hi")
	if err != nil || got != "refined" {
		t.Fatalf("Refine = %q, %v", got, err)
	}

	if _, err := h.studio.Refine(ctx, " "); !errors.Is(err, domain.ErrEmptyInput) {
		t.Errorf("blank refine error = %v", err)
	}

	h.studio.refiner = &fakeRefiner{err: &domain.ServiceError{Service: "chat", Err: errors.New("500")}}
	if _, err := h.studio.Refine(ctx, "hi"); !errors.Is(err, domain.ErrServiceFailure) {
		t.Errorf("refine failure error = %v", err)
	}
	snap := h.studio.Snapshot()
	if snap.Status.Error != domain.MsgRefineFailed {
		t.Errorf("status error = %q", snap.Status.Error)
	}
	if snap.Status.Refining {
		t.Error("refining flag left set")
	}
}

func TestRecordingStoresReference(t *testing.T) {
	got := make(chan capture.Capture, 1)
	h := setup(t, WithCaptureHook(func(c capture.Capture) { got <- c }))
	ctx := context.Background()

	if err := h.studio.UseClonedVoice(); !errors.Is(err, domain.ErrNoReference) {
		t.Fatalf("UseClonedVoice before capture = %v", err)
	}

	if err := h.studio.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !h.studio.Snapshot().Status.Recording {
		t.Error("snapshot should show recording")
	}
	h.studio.StopRecording()
	h.recorder.finish(capture.Capture{
		Audio:   domain.EncodedAudio{Data: []byte("OggS..."), MIMEType: domain.MIMEOgg},
		Elapsed: 4,
	})

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("capture was never published")
	}

	if !h.studio.Snapshot().HasReference {
		t.Fatal("reference not stored")
	}
	if err := h.studio.UseClonedVoice(); err != nil {
		t.Fatalf("UseClonedVoice: %v", err)
	}
	if err := h.studio.Speak(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	req := h.synth.reqs[0]
	if !req.Voice.IsCloned() || string(req.Voice.Reference.Data) != "OggS..." {
		t.Errorf("request voice = %+v", req.Voice)
	}

	if err := h.studio.SelectPreset("Puck"); err != nil {
		t.Fatal(err)
	}
	if h.studio.Settings().Voice.IsCloned() {
		t.Error("selecting a preset should drop the cloned voice")
	}
}

func TestRecordingDeviceUnavailable(t *testing.T) {
	h := setup(t)
	h.recorder.startErr = domain.ErrDeviceUnavailable
	err := h.studio.StartRecording(context.Background())
	if !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("error = %v", err)
	}
	if got := h.studio.Snapshot().Status.Error; got != domain.MsgInputSensors {
		t.Errorf("status error = %q", got)
	}
}

func TestSettingsAreClamped(t *testing.T) {
	h := setup(t)
	if got := h.studio.SetRate(9); got != domain.MaxRate {
		t.Errorf("rate = %v", got)
	}
	if got := h.studio.SetPitch(0.1); got != domain.MinPitch {
		t.Errorf("pitch = %v", got)
	}
	if got := h.studio.SetGain(0.2); got != 0.2 {
		t.Errorf("gain = %v", got)
	}
	if len(h.player.gains) != 1 || h.player.gains[0] != 0.2 {
		t.Errorf("player gains = %v", h.player.gains)
	}
	if err := h.studio.SetLanguage("xx-XX"); err == nil {
		t.Error("unknown language accepted")
	}
	if err := h.studio.SelectPreset("Nobody"); err == nil {
		t.Error("unknown preset accepted")
	}
}

func TestExportRequiresBuffer(t *testing.T) {
	h := setup(t)
	_, err := h.studio.ExportCurrent(1)
	if !errors.Is(err, domain.ErrNoBuffer) {
		t.Fatalf("error = %v, want ErrNoBuffer", err)
	}
	if got := h.studio.Snapshot().Status.Error; got != domain.MsgNothingToSave {
		t.Errorf("status error = %q", got)
	}
}

func TestExportCurrent(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	h := setup(t, WithClock(func() time.Time { return at }), WithProduct("Studio"))
	if err := h.studio.Speak(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	starts := h.player.starts

	tests := []struct {
		rate   float64
		frames int
	}{
		{1, 8000},
		{2, 4000},
		{0.5, 16000},
	}
	for _, tt := range tests {
		a, err := h.studio.ExportCurrent(tt.rate)
		if err != nil {
			t.Fatalf("ExportCurrent(%v): %v", tt.rate, err)
		}
		if a.Name != "Studio_1700000000123.wav" {
			t.Errorf("name = %q", a.Name)
		}
		if a.Frames != tt.frames {
			t.Errorf("rate %v: frames = %d, want %d", tt.rate, a.Frames, tt.frames)
		}
		back, err := codec.DecodeWAV(a.Audio.Data)
		if err != nil {
			t.Fatalf("exported WAV does not decode: %v", err)
		}
		if back.Frames() != tt.frames || back.SampleRate() != 8000 {
			t.Errorf("decoded export = %d frames at %d Hz", back.Frames(), back.SampleRate())
		}
	}
	if h.player.starts != starts {
		t.Error("export touched live playback")
	}
}

func TestArtifactSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	a := Artifact{Name: "x.wav", Audio: domain.EncodedAudio{Data: []byte("RIFF")}}
	path, err := a.Save(dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "RIFF" {
		t.Errorf("saved %q, %v", data, err)
	}
}
