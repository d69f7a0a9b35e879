package graph

import (
	"fmt"
	"math"

	"github.com/hammamikhairi/voicestudio/internal/domain"
)

const offlineBlock = 1024

// RenderOffline plays buf through a fresh source at the given rate as fast
// as possible and returns the result. The output keeps the buffer's shape
// and is floor(frames/rate) frames long. The live graph is not touched.
func RenderOffline(buf *domain.SampleBuffer, rate float64) (*domain.SampleBuffer, error) {
	if buf == nil {
		return nil, fmt.Errorf("offline render: %w", domain.ErrNoBuffer)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("offline render: invalid playback rate %v", rate)
	}

	sr := buf.SampleRate()
	length := int(math.Floor(float64(buf.Frames()) / rate))
	out := make([][]float32, buf.NumChannels())
	for c := range out {
		out[c] = make([]float32, length)
	}

	src := newSource(buf, sr)
	src.PlaybackRate().SetValueAtTime(rate, 0)

	block := make([][]float32, len(out))
	for start := 0; start < length; start += offlineBlock {
		end := min(start+offlineBlock, length)
		for c := range block {
			block[c] = out[c][start:end]
		}
		if src.render(block, float64(start)/float64(sr)) {
			break
		}
	}
	src.finish()
	return domain.NewSampleBuffer(sr, out)
}
