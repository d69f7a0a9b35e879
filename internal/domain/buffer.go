package domain

import (
	"fmt"
	"time"
)

// SampleBuffer is decoded audio: one []float32 per channel, all the same
// length, nominally in [-1, 1]. It is immutable once built; Channel hands out
// the backing slice, which readers must treat as read-only.
type SampleBuffer struct {
	sampleRate int
	channels   [][]float32
}

// NewSampleBuffer validates and wraps per-channel sample data. The slices are
// taken over by the buffer; the caller must not modify them afterwards.
func NewSampleBuffer(sampleRate int, channels [][]float32) (*SampleBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample buffer: sample rate must be positive, got %d", sampleRate)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("sample buffer: at least one channel required")
	}
	frames := len(channels[0])
	for i, ch := range channels[1:] {
		if len(ch) != frames {
			return nil, fmt.Errorf("sample buffer: channel %d has %d frames, channel 0 has %d", i+1, len(ch), frames)
		}
	}
	return &SampleBuffer{sampleRate: sampleRate, channels: channels}, nil
}

// SilentBuffer returns a zero-filled buffer of the given shape.
func SilentBuffer(sampleRate, numChannels, frames int) (*SampleBuffer, error) {
	if numChannels < 1 {
		return nil, fmt.Errorf("sample buffer: at least one channel required")
	}
	chs := make([][]float32, numChannels)
	for i := range chs {
		chs[i] = make([]float32, frames)
	}
	return NewSampleBuffer(sampleRate, chs)
}

// SampleRate returns the rate in Hz.
func (b *SampleBuffer) SampleRate() int { return b.sampleRate }

// NumChannels returns the channel count (always >= 1).
func (b *SampleBuffer) NumChannels() int { return len(b.channels) }

// Frames returns the per-channel sample count.
func (b *SampleBuffer) Frames() int { return len(b.channels[0]) }

// Channel returns channel i. Read-only.
func (b *SampleBuffer) Channel(i int) []float32 { return b.channels[i] }

// Duration is Frames / SampleRate.
func (b *SampleBuffer) Duration() time.Duration {
	return time.Duration(float64(b.Frames()) / float64(b.sampleRate) * float64(time.Second))
}

// EncodedAudio is an opaque byte payload plus its container/codec MIME type.
// Both the provider's synthesis bytes and locally produced WAV files use it.
type EncodedAudio struct {
	Data     []byte
	MIMEType string
}

// Common MIME types.
const (
	MIMEWAV  = "audio/wav"
	MIMEOgg  = "audio/ogg"
	MIMEL16  = "audio/L16"
	MIMEPCM  = "audio/pcm"
	MIMEOpus = "audio/ogg; codecs=opus"
)

// Empty reports whether there is no payload.
func (a EncodedAudio) Empty() bool { return len(a.Data) == 0 }

