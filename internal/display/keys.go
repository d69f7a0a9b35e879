package display

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Speak     key.Binding
	Refine    key.Binding
	Stop      key.Binding
	Export    key.Binding
	Clear     key.Binding
	Record    key.Binding
	Preview   key.Binding
	Voice     key.Binding
	Language  key.Binding
	RateDown  key.Binding
	RateUp    key.Binding
	PitchDown key.Binding
	PitchUp   key.Binding
	GainDown  key.Binding
	GainUp    key.Binding
	Tag       key.Binding
	Apply     key.Binding
	Close     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Speak:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "speak")),
		Refine:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refine")),
		Stop:      key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "stop")),
		Export:    key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "export wav")),
		Clear:     key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear script")),
		Record:    key.NewBinding(key.WithKeys("f2"), key.WithHelp("f2", "record voice")),
		Preview:   key.NewBinding(key.WithKeys("f3"), key.WithHelp("f3", "preview voice")),
		Voice:     key.NewBinding(key.WithKeys("f4"), key.WithHelp("f4", "next voice")),
		Language:  key.NewBinding(key.WithKeys("f5"), key.WithHelp("f5", "next language")),
		RateDown:  key.NewBinding(key.WithKeys("f6"), key.WithHelp("f6/f7", "rate")),
		RateUp:    key.NewBinding(key.WithKeys("f7")),
		PitchDown: key.NewBinding(key.WithKeys("f8"), key.WithHelp("f8/f9", "pitch")),
		PitchUp:   key.NewBinding(key.WithKeys("f9")),
		GainDown:  key.NewBinding(key.WithKeys("f10"), key.WithHelp("f10/f11", "gain")),
		GainUp:    key.NewBinding(key.WithKeys("f11")),
		Tag: key.NewBinding(
			key.WithKeys("alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7"),
			key.WithHelp("alt+1..7", "insert tag"),
		),
		Apply: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "stop / apply profile")),
		Close: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Help:  key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "help")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Speak, k.Refine, k.Stop, k.Export, k.Record, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Speak, k.Refine, k.Stop, k.Export, k.Clear},
		{k.Record, k.Preview, k.Voice, k.Language, k.Tag},
		{k.RateDown, k.PitchDown, k.GainDown, k.Help, k.Quit},
	}
}

// modalKeys is the help shown inside the recording modal.
type modalKeys struct{ k keyMap }

func (m modalKeys) ShortHelp() []key.Binding { return []key.Binding{m.k.Apply, m.k.Close} }

func (m modalKeys) FullHelp() [][]key.Binding { return [][]key.Binding{m.ShortHelp()} }

// tagIndex maps "alt+N" to a palette index.
func tagIndex(s string) (int, bool) {
	if len(s) != 5 || s[:4] != "alt+" {
		return 0, false
	}
	i := int(s[4] - '1')
	if i < 0 || i > 8 {
		return 0, false
	}
	return i, true
}
