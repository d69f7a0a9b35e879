// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] renders the script editor, the playback settings, the live
// spectrum and the recording modal. Every studio call that can block runs
// as a tea.Cmd so the event loop never waits on the network or a device;
// the view is rebuilt from a studio snapshot on every frame tick.
package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
	"github.com/hammamikhairi/voicestudio/internal/studio"
	"github.com/hammamikhairi/voicestudio/internal/viz"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fdba74"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3f3f46")).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#ea580c")).
			Padding(1, 2)

	scriptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8")).
			Italic(true)
)

// Layout.
const (
	spectrumHeight = 8
	waveHeight     = 6
	editorHeight   = 8
	charLimit      = 5000

	rateStep  = 0.1
	pitchStep = 0.05
	gainStep  = 0.05
)

// Studio is the part of the orchestrator the UI drives.
type Studio interface {
	Speak(ctx context.Context, text string) error
	Preview(ctx context.Context) error
	Refine(ctx context.Context, text string) (string, error)
	StartRecording(ctx context.Context) error
	StopRecording()
	UseClonedVoice() error
	SelectPreset(id string) error
	SetLanguage(lang domain.Language) error
	SetRate(v float64) float64
	SetPitch(v float64) float64
	SetGain(v float64) float64
	StopPlayback()
	ExportSettings() (studio.Artifact, error)
	Snapshot() studio.Snapshot
	ClearError()
}

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Other goroutines may call
// [UI.Quit] at any time after [UI.WaitReady] returns.
type UI struct {
	studio    Studio
	spectrum  *viz.Canvas
	wave      *viz.Canvas
	monitor   func() (stop func())
	exportDir string
	fps       int
	log       *logger.Logger

	program *tea.Program
	readyCh chan struct{}
	quitCh  chan struct{}
}

// Option configures the UI.
type Option func(*UI)

// WithCanvases sets the surfaces the visualization driver draws on.
func WithCanvases(spectrum, wave *viz.Canvas) Option {
	return func(u *UI) {
		u.spectrum = spectrum
		u.wave = wave
	}
}

// WithInputMonitor sets the function that starts the capture waveform
// loop once a recording is running. It returns the loop's stop function.
func WithInputMonitor(fn func() (stop func())) Option {
	return func(u *UI) { u.monitor = fn }
}

// WithExportDir sets where exported WAV files are written.
func WithExportDir(dir string) Option {
	return func(u *UI) { u.exportDir = dir }
}

// WithFPS sets the view refresh rate.
func WithFPS(fps int) Option {
	return func(u *UI) {
		if fps > 0 {
			u.fps = fps
		}
	}
}

// NewUI creates the display. Call Run() to start.
func NewUI(st Studio, log *logger.Logger, opts ...Option) *UI {
	u := &UI{
		studio:    st,
		exportDir: ".",
		fps:       30,
		log:       log,
		readyCh:   make(chan struct{}),
		quitCh:    make(chan struct{}),
	}
	for _, o := range opts {
		o(u)
	}
	if u.spectrum == nil {
		u.spectrum = viz.NewCanvas(0, 0)
	}
	if u.wave == nil {
		u.wave = viz.NewCanvas(0, 0)
	}
	return u
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop. Blocks until the user quits or
// ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	defer close(u.quitCh)

	u.program = tea.NewProgram(newModel(ctx, u), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := u.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	ctx       context.Context
	studio    Studio
	spectrum  *viz.Canvas
	wave      *viz.Canvas
	monitor   func() (stop func())
	exportDir string
	interval  time.Duration
	log       *logger.Logger
	readyCh   chan struct{}

	editor   textarea.Model
	help     help.Model
	keys     keyMap
	lit      []lipgloss.Style
	snap     studio.Snapshot
	width    int
	notice   string
	modal    bool
	stopWave func()
}

func newModel(ctx context.Context, u *UI) model {
	ta := textarea.New()
	ta.Placeholder = "Type a script. alt+1..7 inserts a delivery tag."
	ta.ShowLineNumbers = false
	ta.CharLimit = charLimit
	ta.SetHeight(editorHeight)
	ta.Focus()

	return model{
		ctx:       ctx,
		studio:    u.studio,
		spectrum:  u.spectrum,
		wave:      u.wave,
		monitor:   u.monitor,
		exportDir: u.exportDir,
		interval:  time.Second / time.Duration(u.fps),
		log:       u.log,
		readyCh:   u.readyCh,
		editor:    ta,
		help:      help.New(),
		keys:      defaultKeyMap(),
		lit:       gradient(spectrumHeight),
		snap:      u.studio.Snapshot(),
	}
}

// Messages.
type (
	frameMsg time.Time

	// opDoneMsg reports a finished background studio call.
	opDoneMsg struct {
		op     string
		err    error
		notice string
	}

	refinedMsg struct {
		text string
		err  error
	}

	recordStartedMsg struct{ err error }
)

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.frameCmd(),
		signalReady(m.readyCh),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

func (m model) frameCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.studio.StopRecording()
			return m, tea.Quit
		}
		if m.modal {
			return m.updateModal(msg)
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width)
		return m, nil

	case frameMsg:
		m.snap = m.studio.Snapshot()
		return m, tea.Batch(m.frameCmd(), tea.SetWindowTitle(m.titleStr()))

	case opDoneMsg:
		if msg.err != nil {
			m.log.Debug("ui: %s failed: %v", msg.op, msg.err)
			m.notice = ""
		} else if msg.notice != "" {
			m.notice = msg.notice
		}
		m.snap = m.studio.Snapshot()
		return m, nil

	case refinedMsg:
		if msg.err == nil {
			m.editor.SetValue(msg.text)
			m.notice = "Script refined."
		}
		m.snap = m.studio.Snapshot()
		return m, nil

	case recordStartedMsg:
		if msg.err != nil {
			m.modal = false
		} else if m.monitor != nil {
			m.stopWave = m.monitor()
		}
		m.snap = m.studio.Snapshot()
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// handleKey runs studio shortcuts. Keys it does not handle go to the editor.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	ctx, st := m.ctx, m.studio
	switch {
	case key.Matches(msg, m.keys.Speak):
		text := m.editor.Value()
		m.notice = ""
		return func() tea.Msg {
			return opDoneMsg{op: "speak", err: st.Speak(ctx, text)}
		}, true

	case key.Matches(msg, m.keys.Refine):
		text := m.editor.Value()
		m.notice = ""
		return func() tea.Msg {
			out, err := st.Refine(ctx, text)
			return refinedMsg{text: out, err: err}
		}, true

	case key.Matches(msg, m.keys.Preview):
		return func() tea.Msg {
			return opDoneMsg{op: "preview", err: st.Preview(ctx)}
		}, true

	case key.Matches(msg, m.keys.Stop):
		st.StopPlayback()
		return nil, true

	case key.Matches(msg, m.keys.Export):
		dir := m.exportDir
		return func() tea.Msg {
			a, err := st.ExportSettings()
			if err != nil {
				return opDoneMsg{op: "export", err: err}
			}
			path, err := a.Save(dir)
			if err != nil {
				return opDoneMsg{op: "export", err: err}
			}
			return opDoneMsg{op: "export", notice: fmt.Sprintf("Exported %s (%s).", path, fmtDuration(a.Duration))}
		}, true

	case key.Matches(msg, m.keys.Clear):
		m.editor.Reset()
		st.ClearError()
		m.notice = ""
		return nil, true

	case key.Matches(msg, m.keys.Record):
		m.modal = true
		m.notice = ""
		return func() tea.Msg {
			return recordStartedMsg{err: st.StartRecording(ctx)}
		}, true

	case key.Matches(msg, m.keys.Voice):
		m.cycleVoice()
		return nil, true

	case key.Matches(msg, m.keys.Language):
		m.cycleLanguage()
		return nil, true

	case key.Matches(msg, m.keys.RateDown):
		st.SetRate(m.snap.Settings.Rate - rateStep)
	case key.Matches(msg, m.keys.RateUp):
		st.SetRate(m.snap.Settings.Rate + rateStep)
	case key.Matches(msg, m.keys.PitchDown):
		st.SetPitch(m.snap.Settings.Pitch - pitchStep)
	case key.Matches(msg, m.keys.PitchUp):
		st.SetPitch(m.snap.Settings.Pitch + pitchStep)
	case key.Matches(msg, m.keys.GainDown):
		st.SetGain(m.snap.Settings.Gain - gainStep)
	case key.Matches(msg, m.keys.GainUp):
		st.SetGain(m.snap.Settings.Gain + gainStep)

	case key.Matches(msg, m.keys.Tag):
		if i, ok := tagIndex(msg.String()); ok && i < len(domain.Tags) {
			m.editor.InsertString(domain.Tags[i].Markup)
		}
		return nil, true

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil, true

	default:
		return nil, false
	}

	// Settings keys fall through here.
	m.snap = st.Snapshot()
	return nil, true
}

func (m model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Apply), key.Matches(msg, m.keys.Record):
		if m.snap.Status.Recording {
			m.studio.StopRecording()
			return m, nil
		}
		if m.snap.HasReference {
			if err := m.studio.UseClonedVoice(); err == nil {
				m.notice = "Cloned voice active."
			}
			return m.closeModal()
		}
	case key.Matches(msg, m.keys.Close):
		m.studio.StopRecording()
		return m.closeModal()
	}
	return m, nil
}

func (m model) closeModal() (tea.Model, tea.Cmd) {
	m.modal = false
	m.snap = m.studio.Snapshot()
	stop := m.stopWave
	m.stopWave = nil
	if stop == nil {
		return m, nil
	}
	return m, func() tea.Msg {
		stop()
		return nil
	}
}

// cycleVoice steps through the presets, then the cloned voice when a
// reference has been recorded.
func (m *model) cycleVoice() {
	voice := m.snap.Settings.Voice
	next := 0
	if !voice.IsCloned() {
		for i, p := range domain.PresetVoices {
			if p.ID == voice.Preset {
				next = i + 1
				break
			}
		}
	}
	if next == len(domain.PresetVoices) && m.snap.HasReference {
		_ = m.studio.UseClonedVoice()
	} else {
		_ = m.studio.SelectPreset(domain.PresetVoices[next%len(domain.PresetVoices)].ID)
	}
	m.snap = m.studio.Snapshot()
}

func (m *model) cycleLanguage() {
	cur := m.snap.Settings.Language
	next := domain.Languages[0]
	for i, l := range domain.Languages {
		if l == cur {
			next = domain.Languages[(i+1)%len(domain.Languages)]
			break
		}
	}
	_ = m.studio.SetLanguage(next)
	m.snap = m.studio.Snapshot()
}

func (m *model) resize(width int) {
	m.width = width
	inner := max(width-4, 10)
	m.editor.SetWidth(inner)
	m.help.Width = width
	m.spectrum.Resize(inner, spectrumHeight)
	m.wave.Resize(max(inner-8, 10), waveHeight)
}

func (m model) titleStr() string {
	s := m.snap.Status
	switch {
	case s.Recording:
		return fmt.Sprintf("VoiceStudio | recording %ds", m.snap.Elapsed)
	case s.Synthesizing:
		return "VoiceStudio | synthesizing"
	case s.Playing:
		return "VoiceStudio | playing"
	}
	return "VoiceStudio"
}

// ── View ─────────────────────────────────────────────────────────

func (m model) View() string {
	if m.modal {
		return m.viewModal()
	}

	var b strings.Builder
	b.WriteString(RenderBanner(m.width))
	b.WriteString(m.renderBar())
	b.WriteString("\n\n")

	b.WriteString(panelStyle.Render(m.editor.View()))
	b.WriteByte('\n')
	chars, words := domain.ScriptCounts(m.editor.Value())
	b.WriteString(secondaryStyle.Render(fmt.Sprintf("  %d chars · %d words", chars, words)))
	b.WriteString("   ")
	b.WriteString(m.renderTags())
	b.WriteString("\n\n")

	b.WriteString(m.renderSettings())
	b.WriteString("\n\n")
	b.WriteString(panelStyle.Render(renderCanvas(m.spectrum.Rows(), m.lit)))
	b.WriteByte('\n')

	switch {
	case m.snap.Status.Error != "":
		b.WriteString(errorStyle.Render("  " + m.snap.Status.Error))
	case m.notice != "":
		b.WriteString(noticeStyle.Render("  " + m.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) renderBar() string {
	s := m.snap.Status
	var parts []string
	if s.Synthesizing {
		parts = append(parts, busyStyle.Render("synthesizing…"))
	}
	if s.Refining {
		parts = append(parts, busyStyle.Render("refining…"))
	}
	if s.Playing {
		parts = append(parts, valueStyle.Render("▶ playing"))
	}
	if m.snap.HasGenerated {
		parts = append(parts, labelStyle.Render("take: ")+valueStyle.Render(fmtDuration(m.snap.Generated)))
	}
	if len(parts) == 0 {
		parts = append(parts, labelStyle.Render("idle"))
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "
	w := m.width
	if w <= 0 {
		w = 80
	}
	return barBg.Width(w).Render(content)
}

func (m model) renderSettings() string {
	set := m.snap.Settings
	voice := set.Voice.Label()
	if p, ok := domain.LookupPreset(set.Voice.Preset); ok && !set.Voice.IsCloned() {
		voice += " (" + string(p.Gender) + ")"
	}
	field := func(label, value string) string {
		return labelStyle.Render(label+": ") + valueStyle.Render(value)
	}
	parts := []string{
		field("Language", set.Language.Label()),
		field("Voice", voice),
		field("Rate", fmt.Sprintf("%.2fx", set.Rate)),
		field("Pitch", fmt.Sprintf("%.2f", set.Pitch)),
		field("Gain", fmt.Sprintf("%d%%", int(set.Gain*100+0.5))),
	}
	return "  " + strings.Join(parts, sepStyle.Render("  │  "))
}

func (m model) renderTags() string {
	parts := make([]string, len(domain.Tags))
	for i, t := range domain.Tags {
		parts[i] = fmt.Sprintf("%d:%s", i+1, t.Label)
	}
	return secondaryStyle.Render(strings.Join(parts, " "))
}

func (m model) viewModal() string {
	var b strings.Builder
	b.WriteString(valueStyle.Render("Voice Cloner"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Read aloud:"))
	b.WriteByte('\n')
	width := max(m.width-12, 20)
	b.WriteString(scriptStyle.Width(width).Render(m.snap.Settings.Language.RecordingScript()))
	b.WriteString("\n\n")

	switch {
	case m.snap.Status.Recording:
		b.WriteString(errorStyle.Render("● REC "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%ds / %ds", m.snap.Elapsed, m.snap.MaxSeconds)))
		b.WriteString("\n\n")
		b.WriteString(renderCanvas(m.wave.Rows(), m.lit))
	case m.snap.Status.Error != "":
		b.WriteString(errorStyle.Render(m.snap.Status.Error))
	case m.snap.HasReference:
		b.WriteString(noticeStyle.Render("Reference captured. Press enter to apply the profile."))
	default:
		b.WriteString(busyStyle.Render("Opening microphone…"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(modalKeys{m.keys}))

	return modalStyle.Render(b.String())
}

// ── Helpers ──────────────────────────────────────────────────────

func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(100 * time.Millisecond)
	m := int(d.Minutes())
	s := d.Seconds() - float64(m*60)
	if m == 0 {
		return fmt.Sprintf("%.1fs", s)
	}
	return fmt.Sprintf("%dm%04.1fs", m, s)
}
