package studio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hammamikhairi/voicestudio/internal/codec"
	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/graph"
)

// Artifact is a rendered export, ready to be written out.
type Artifact struct {
	Name     string
	Audio    domain.EncodedAudio
	Frames   int
	Duration time.Duration
}

// Save writes the artifact into dir and returns the file path.
func (a Artifact) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, a.Name)
	if err := os.WriteFile(path, a.Audio.Data, 0o644); err != nil {
		return "", fmt.Errorf("export: writing %s: %w", path, err)
	}
	return path, nil
}

// ExportCurrent renders the generated buffer offline at rate and encodes
// it as WAV. Nothing touches the network or the audio device.
func (s *Studio) ExportCurrent(rate float64) (Artifact, error) {
	s.mu.Lock()
	buf := s.generated
	s.mu.Unlock()

	if buf == nil {
		return Artifact{}, s.Report(fmt.Errorf("export: %w", domain.ErrNoBuffer), domain.MsgNothingToSave)
	}

	rendered, err := graph.RenderOffline(buf, rate)
	if err != nil {
		return Artifact{}, s.Report(fmt.Errorf("export: %w", err), "")
	}

	a := Artifact{
		Name:     fmt.Sprintf("%s_%d.wav", s.product, s.now().UnixMilli()),
		Audio:    codec.EncodeWAV(rendered),
		Frames:   rendered.Frames(),
		Duration: rendered.Duration(),
	}
	s.metrics.Exports.Add(context.Background(), 1)
	s.log.Info("export: %s (%d frames at x%.2f)", a.Name, a.Frames, rate)
	return a, nil
}

// ExportSettings renders the generated buffer at the configured rate.
func (s *Studio) ExportSettings() (Artifact, error) {
	return s.ExportCurrent(s.Settings().Rate)
}
