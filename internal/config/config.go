// Package config defines the studio's YAML configuration and its defaults.
// Command-line flags override loaded values in main.
package config

import (
	"time"

	"github.com/hammamikhairi/voicestudio/internal/domain"
)

// Config is the root configuration.
type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Capture   CaptureConfig   `yaml:"capture"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Providers ProvidersConfig `yaml:"providers"`
	Export    ExportConfig    `yaml:"export"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// AudioConfig shapes the live graph and the visualizers.
type AudioConfig struct {
	SampleRate    int           `yaml:"sample_rate"`
	Channels      int           `yaml:"channels"`
	FFTSize       int           `yaml:"fft_size"`
	Smoothing     float64       `yaml:"smoothing"`
	MinDecibels   float64       `yaml:"min_decibels"`
	MaxDecibels   float64       `yaml:"max_decibels"`
	GainSmoothing time.Duration `yaml:"gain_smoothing"`
	BufferSize    time.Duration `yaml:"buffer_size"`
	FPS           int           `yaml:"fps"`
}

// CaptureConfig shapes microphone sessions.
type CaptureConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	MaxSeconds int           `yaml:"max_seconds"`
	Tick       time.Duration `yaml:"tick"`
	Bitrate    int           `yaml:"bitrate"`
}

// PlaybackConfig holds the settings the studio starts with.
type PlaybackConfig struct {
	Language string  `yaml:"language"`
	Voice    string  `yaml:"voice"`
	Rate     float64 `yaml:"rate"`
	Pitch    float64 `yaml:"pitch"`
	Gain     float64 `yaml:"gain"`
}

// ProvidersConfig selects the external services.
type ProvidersConfig struct {
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Refine    RefineConfig    `yaml:"refine"`
}

// SynthesisConfig configures speech synthesis. Backend is "gemini" or
// "azure"; only gemini can speak a cloned voice.
type SynthesisConfig struct {
	Backend      string        `yaml:"backend"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	CacheEntries int           `yaml:"cache_entries"`
}

// RefineConfig configures script refinement. Backend is "gemini" or "chat";
// the chat backend reads its endpoint and key from the environment.
type RefineConfig struct {
	Backend string        `yaml:"backend"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// ExportConfig names and places exported files.
type ExportConfig struct {
	Product string `yaml:"product"`
	Dir     string `yaml:"dir"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Provider backends.
const (
	BackendGemini = "gemini"
	BackendAzure  = "azure"
	BackendChat   = "chat"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	s := domain.DefaultSettings()
	return &Config{
		Audio: AudioConfig{
			SampleRate:    48000,
			Channels:      2,
			FFTSize:       512,
			Smoothing:     0.8,
			MinDecibels:   -100,
			MaxDecibels:   -30,
			GainSmoothing: 50 * time.Millisecond,
			BufferSize:    80 * time.Millisecond,
			FPS:           30,
		},
		Capture: CaptureConfig{
			SampleRate: 48000,
			MaxSeconds: 30,
			Tick:       time.Second,
			Bitrate:    32000,
		},
		Playback: PlaybackConfig{
			Language: string(s.Language),
			Voice:    s.Voice.Preset,
			Rate:     s.Rate,
			Pitch:    s.Pitch,
			Gain:     s.Gain,
		},
		Providers: ProvidersConfig{
			Synthesis: SynthesisConfig{
				Backend:      BackendGemini,
				Model:        "gemini-2.5-flash-preview-tts",
				Timeout:      90 * time.Second,
				CacheEntries: 64,
			},
			Refine: RefineConfig{
				Backend: BackendGemini,
				Model:   "gemini-2.5-flash",
				Timeout: 30 * time.Second,
			},
		},
		Export: ExportConfig{
			Product: "DogarStudio_VoiceMaster",
			Dir:     ".",
		},
		Log: LogConfig{
			Level: "normal",
			File:  ".voicestudio/studio.log",
		},
	}
}

// Settings converts the playback section into clamped studio settings.
// An unknown voice falls back to the default preset.
func (c *Config) Settings() domain.PlaybackSettings {
	voice, err := domain.PresetProfile(c.Playback.Voice)
	if err != nil {
		voice = domain.VoiceProfile{Preset: domain.DefaultPreset}
	}
	return domain.PlaybackSettings{
		Language: domain.Language(c.Playback.Language),
		Voice:    voice,
		Rate:     c.Playback.Rate,
		Pitch:    c.Playback.Pitch,
		Gain:     c.Playback.Gain,
	}.Clamp()
}
