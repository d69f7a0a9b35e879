package display

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
	"github.com/hammamikhairi/voicestudio/internal/studio"
	"github.com/hammamikhairi/voicestudio/internal/viz"
)

type fakeStudio struct {
	spoken    []string
	settings  domain.PlaybackSettings
	reference bool
	stops     int
	recording bool
}

func newFakeStudio() *fakeStudio {
	return &fakeStudio{settings: domain.DefaultSettings()}
}

func (f *fakeStudio) Speak(ctx context.Context, text string) error {
	f.spoken = append(f.spoken, text)
	return nil
}
func (f *fakeStudio) Preview(ctx context.Context) error { return nil }
func (f *fakeStudio) Refine(ctx context.Context, text string) (string, error) {
	return "refined " + text, nil
}
func (f *fakeStudio) StartRecording(ctx context.Context) error {
	f.recording = true
	return nil
}
func (f *fakeStudio) StopRecording() { f.recording = false }
func (f *fakeStudio) UseClonedVoice() error {
	if !f.reference {
		return domain.ErrNoReference
	}
	f.settings.Voice = domain.VoiceProfile{Preset: f.settings.Voice.Preset, Reference: &domain.EncodedAudio{Data: []byte{1}}}
	return nil
}
func (f *fakeStudio) SelectPreset(id string) error {
	p, err := domain.PresetProfile(id)
	if err != nil {
		return err
	}
	f.settings.Voice = p
	return nil
}
func (f *fakeStudio) SetLanguage(lang domain.Language) error {
	f.settings.Language = lang
	return nil
}
func (f *fakeStudio) SetRate(v float64) float64 {
	f.settings.Rate = v
	f.settings = f.settings.Clamp()
	return f.settings.Rate
}
func (f *fakeStudio) SetPitch(v float64) float64 {
	f.settings.Pitch = v
	f.settings = f.settings.Clamp()
	return f.settings.Pitch
}
func (f *fakeStudio) SetGain(v float64) float64 {
	f.settings.Gain = v
	f.settings = f.settings.Clamp()
	return f.settings.Gain
}
func (f *fakeStudio) StopPlayback() { f.stops++ }
func (f *fakeStudio) ExportSettings() (studio.Artifact, error) {
	return studio.Artifact{}, domain.ErrNoBuffer
}
func (f *fakeStudio) Snapshot() studio.Snapshot {
	return studio.Snapshot{
		Status:       domain.Status{Recording: f.recording},
		Settings:     f.settings,
		HasReference: f.reference,
		MaxSeconds:   30,
	}
}
func (f *fakeStudio) ClearError() {}

func testModel(st Studio) model {
	u := NewUI(st, logger.New(logger.LevelOff, nil), WithCanvases(viz.NewCanvas(20, 4), viz.NewCanvas(20, 4)))
	m := newModel(context.Background(), u)
	m.resize(80)
	return m
}

func send(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestSpeakKeyRunsInCommand(t *testing.T) {
	st := newFakeStudio()
	m := testModel(st)
	m.editor.SetValue("hello there")

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatal("speak should return a command")
	}
	if len(st.spoken) != 0 {
		t.Fatal("speak ran inside Update")
	}
	msg := cmd()
	if _, ok := msg.(opDoneMsg); !ok {
		t.Fatalf("command returned %T", msg)
	}
	if len(st.spoken) != 1 || st.spoken[0] != "hello there" {
		t.Errorf("spoken = %q", st.spoken)
	}
	_ = m
}

func TestRefineReplacesScript(t *testing.T) {
	st := newFakeStudio()
	m := testModel(st)
	m.editor.SetValue("draft")

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m, _ = send(t, m, cmd())
	if got := m.editor.Value(); got != "refined draft" {
		t.Errorf("editor = %q", got)
	}
}

func TestTagInsertion(t *testing.T) {
	m := testModel(newFakeStudio())
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2"), Alt: true})
	if got := m.editor.Value(); got != "[calm]" {
		t.Errorf("editor = %q, want exactly [calm]", got)
	}
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("5"), Alt: true})
	if got := m.editor.Value(); got != "[calm][whisper]" {
		t.Errorf("editor = %q, want tags inserted verbatim", got)
	}
}

func TestSettingsKeys(t *testing.T) {
	st := newFakeStudio()
	m := testModel(st)

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyF7})
	if st.settings.Rate <= 1 {
		t.Errorf("rate = %v after f7", st.settings.Rate)
	}
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyF10})
	if st.settings.Gain >= 1 {
		t.Errorf("gain = %v after f10", st.settings.Gain)
	}
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyF5})
	if st.settings.Language != domain.Urdu {
		t.Errorf("language = %v after f5", st.settings.Language)
	}
	_ = m
}

func TestCycleVoiceReachesClone(t *testing.T) {
	st := newFakeStudio()
	st.reference = true
	m := testModel(st)
	for range domain.PresetVoices {
		m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyF4})
	}
	if !st.settings.Voice.IsCloned() {
		t.Errorf("voice = %+v, want cloned after cycling past the presets", st.settings.Voice)
	}
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyF4})
	if st.settings.Voice.IsCloned() || st.settings.Voice.Preset != domain.PresetVoices[0].ID {
		t.Errorf("voice = %+v, want first preset", st.settings.Voice)
	}
}

func TestRecordModal(t *testing.T) {
	st := newFakeStudio()
	monitored := false
	u := NewUI(st, logger.New(logger.LevelOff, nil), WithInputMonitor(func() func() {
		monitored = true
		return func() {}
	}))
	m := newModel(context.Background(), u)

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyF2})
	if !m.modal {
		t.Fatal("modal not open")
	}
	m, _ = send(t, m, cmd())
	if !st.recording || !monitored {
		t.Fatalf("recording=%v monitored=%v", st.recording, monitored)
	}
	m.snap = st.Snapshot()
	if !strings.Contains(m.View(), "REC") {
		t.Error("modal does not show the recording indicator")
	}

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if st.recording {
		t.Fatal("enter should stop the recording")
	}

	st.reference = true
	m.snap = st.Snapshot()
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.modal {
		t.Error("modal should close after applying the profile")
	}
	if !st.settings.Voice.IsCloned() {
		t.Error("profile not applied")
	}
}

func TestTagIndex(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"alt+1", 0, true},
		{"alt+7", 6, true},
		{"alt+0", 0, false},
		{"ctrl+1", 0, false},
		{"1", 0, false},
	}
	for _, tt := range tests {
		got, ok := tagIndex(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("tagIndex(%q) = %d, %v", tt.in, got, ok)
		}
	}
}

func TestRenderCanvas(t *testing.T) {
	c := viz.NewCanvas(4, 2)
	c.DrawBars([]byte{255, 0, 128, 255}, viz.StyleLit)
	out := renderCanvas(c.Rows(), gradient(2))
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.Contains(out, "█") {
		t.Errorf("full bars missing from %q", out)
	}
}

func TestGradient(t *testing.T) {
	if g := gradient(0); g != nil {
		t.Error("gradient(0) should be nil")
	}
	if g := gradient(5); len(g) != 5 {
		t.Errorf("len = %d", len(g))
	}
}

func TestRenderBannerCentresBlock(t *testing.T) {
	rows := strings.Split(strings.TrimRight(bannerRaw, "\n"), "\n")
	widest := 0
	for _, r := range rows {
		if len(r) > widest {
			widest = len(r)
		}
	}

	out := RenderBanner(widest + 20)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != len(rows) {
		t.Fatalf("got %d lines, want %d", len(lines), len(rows))
	}
	indent := strings.Repeat(" ", 10)
	for i, l := range lines {
		if !strings.HasPrefix(l, indent) {
			t.Errorf("line %d not indented by 10: %q", i, l)
		}
	}

	narrow := RenderBanner(widest - 5)
	if strings.HasPrefix(narrow, " ") && !strings.HasPrefix(rows[0], " ") {
		t.Errorf("banner padded in a terminal narrower than the art: %q", narrow)
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0.0s"},
		{2500 * time.Millisecond, "2.5s"},
		{75 * time.Second, "1m15.0s"},
	}
	for _, tt := range tests {
		if got := fmtDuration(tt.d); got != tt.want {
			t.Errorf("fmtDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
