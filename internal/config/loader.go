package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// opusRates are the input rates the Opus encoder accepts.
var opusRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes YAML from r over the defaults. Unknown keys are
// rejected. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem found in cfg, joined into one error.
func Validate(cfg *Config) error {
	var errs []error

	a := cfg.Audio
	if a.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("config: audio.sample_rate must be positive, got %d", a.SampleRate))
	}
	if a.Channels < 1 || a.Channels > 2 {
		errs = append(errs, fmt.Errorf("config: audio.channels must be 1 or 2, got %d", a.Channels))
	}
	if a.FFTSize < 32 || a.FFTSize&(a.FFTSize-1) != 0 {
		errs = append(errs, fmt.Errorf("config: audio.fft_size must be a power of two >= 32, got %d", a.FFTSize))
	}
	if a.Smoothing < 0 || a.Smoothing >= 1 {
		errs = append(errs, fmt.Errorf("config: audio.smoothing must be in [0, 1), got %g", a.Smoothing))
	}
	if a.MinDecibels >= a.MaxDecibels {
		errs = append(errs, fmt.Errorf("config: audio.min_decibels must be below max_decibels, got %g >= %g", a.MinDecibels, a.MaxDecibels))
	}
	if a.GainSmoothing < 0 {
		errs = append(errs, fmt.Errorf("config: audio.gain_smoothing must not be negative"))
	}
	if a.FPS <= 0 {
		errs = append(errs, fmt.Errorf("config: audio.fps must be positive, got %d", a.FPS))
	}

	c := cfg.Capture
	if !opusRates[c.SampleRate] {
		errs = append(errs, fmt.Errorf("config: capture.sample_rate %d is not an Opus rate", c.SampleRate))
	}
	if c.MaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.max_seconds must be positive, got %d", c.MaxSeconds))
	}
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.tick must be positive"))
	}
	if c.Bitrate <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.bitrate must be positive, got %d", c.Bitrate))
	}

	p := cfg.Playback
	if !domain.Language(p.Language).Valid() {
		errs = append(errs, fmt.Errorf("config: playback.language %q is not supported", p.Language))
	}
	if _, ok := domain.LookupPreset(p.Voice); !ok {
		errs = append(errs, fmt.Errorf("config: playback.voice %q is not a preset", p.Voice))
	}
	if p.Rate < domain.MinRate || p.Rate > domain.MaxRate {
		errs = append(errs, fmt.Errorf("config: playback.rate must be in [%g, %g], got %g", domain.MinRate, domain.MaxRate, p.Rate))
	}
	if p.Pitch < domain.MinPitch || p.Pitch > domain.MaxPitch {
		errs = append(errs, fmt.Errorf("config: playback.pitch must be in [%g, %g], got %g", domain.MinPitch, domain.MaxPitch, p.Pitch))
	}
	if p.Gain < domain.MinGain || p.Gain > domain.MaxGain {
		errs = append(errs, fmt.Errorf("config: playback.gain must be in [%g, %g], got %g", domain.MinGain, domain.MaxGain, p.Gain))
	}

	switch cfg.Providers.Synthesis.Backend {
	case BackendGemini:
		if cfg.Providers.Synthesis.Model == "" {
			errs = append(errs, errors.New("config: providers.synthesis.model is required for gemini"))
		}
	case BackendAzure:
	default:
		errs = append(errs, fmt.Errorf("config: providers.synthesis.backend must be %q or %q, got %q",
			BackendGemini, BackendAzure, cfg.Providers.Synthesis.Backend))
	}
	if cfg.Providers.Synthesis.CacheEntries < 0 {
		errs = append(errs, errors.New("config: providers.synthesis.cache_entries must not be negative"))
	}
	switch cfg.Providers.Refine.Backend {
	case BackendGemini, BackendChat:
	default:
		errs = append(errs, fmt.Errorf("config: providers.refine.backend must be %q or %q, got %q",
			BackendGemini, BackendChat, cfg.Providers.Refine.Backend))
	}

	if cfg.Export.Product == "" {
		errs = append(errs, errors.New("config: export.product is required"))
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}

	return errors.Join(errs...)
}
