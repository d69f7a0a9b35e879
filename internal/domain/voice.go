package domain

import "fmt"

// Gender is the display label attached to a preset voice.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// PresetVoice is one entry of the built-in voice catalogue.
type PresetVoice struct {
	ID     string
	Gender Gender
}

// PresetVoices is the fixed catalogue offered by the synthesis provider.
var PresetVoices = []PresetVoice{
	{ID: "Zephyr", Gender: GenderMale},
	{ID: "Kore", Gender: GenderFemale},
	{ID: "Fenrir", Gender: GenderMale},
	{ID: "Puck", Gender: GenderMale},
	{ID: "Charon", Gender: GenderMale},
}

// DefaultPreset is the voice active at startup.
const DefaultPreset = "Zephyr"

// LookupPreset returns the catalogue entry for id.
func LookupPreset(id string) (PresetVoice, bool) {
	for _, v := range PresetVoices {
		if v.ID == id {
			return v, true
		}
	}
	return PresetVoice{}, false
}

// VoiceProfile selects the identity used for synthesis: a preset, or a
// captured reference recording. Exactly one profile is active at a time.
type VoiceProfile struct {
	Preset    string
	Reference *EncodedAudio // non-nil for a cloned profile
}

// PresetProfile builds a preset profile, validating the id.
func PresetProfile(id string) (VoiceProfile, error) {
	if _, ok := LookupPreset(id); !ok {
		return VoiceProfile{}, fmt.Errorf("unknown preset voice %q", id)
	}
	return VoiceProfile{Preset: id}, nil
}

// ClonedProfile builds a cloned profile around a captured reference. The
// preset is kept as the fallback voice name sent alongside the reference.
func ClonedProfile(preset string, ref EncodedAudio) (VoiceProfile, error) {
	if ref.Empty() {
		return VoiceProfile{}, ErrNoReference
	}
	return VoiceProfile{Preset: preset, Reference: &ref}, nil
}

// IsCloned reports whether the profile carries a reference recording.
func (p VoiceProfile) IsCloned() bool { return p.Reference != nil }

// Label is the short name shown in the UI.
func (p VoiceProfile) Label() string {
	if p.IsCloned() {
		return "Cloned"
	}
	return p.Preset
}
