package domain

import "math"

// Settings bounds, matching the studio's sliders.
const (
	MinRate  = 0.5
	MaxRate  = 2.0
	MinPitch = 0.5
	MaxPitch = 1.5
	MinGain  = 0.0
	MaxGain  = 1.0
)

// PlaybackSettings are changed only by explicit user actions. Rate scales
// playback speed, Gain drives the output gain stage, Pitch is forwarded to
// the synthesizer as a delivery hint.
type PlaybackSettings struct {
	Language Language
	Pitch    float64
	Rate     float64
	Gain     float64
	Voice    VoiceProfile
}

// DefaultSettings is the startup state.
func DefaultSettings() PlaybackSettings {
	return PlaybackSettings{
		Language: English,
		Pitch:    1.0,
		Rate:     1.0,
		Gain:     1.0,
		Voice:    VoiceProfile{Preset: DefaultPreset},
	}
}

// Clamp returns a copy with every scalar forced into range and an invalid
// language replaced by English.
func (s PlaybackSettings) Clamp() PlaybackSettings {
	s.Pitch = clamp(s.Pitch, MinPitch, MaxPitch)
	s.Rate = clamp(s.Rate, MinRate, MaxRate)
	s.Gain = clamp(s.Gain, MinGain, MaxGain)
	if !s.Language.Valid() {
		s.Language = English
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
