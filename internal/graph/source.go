package graph

import (
	"sync"

	"github.com/hammamikhairi/voicestudio/internal/domain"
)

// Source plays a decoded buffer into the graph once. Its playback rate
// scales both speed and pitch, resampling to the graph rate with linear
// interpolation. A source cannot be restarted; build a new one instead.
type Source struct {
	buf     *domain.SampleBuffer
	rate    *AudioParam
	ctxRate int

	pos      float64 // fractional read position in buffer frames
	done     chan struct{}
	doneOnce sync.Once
}

func newSource(buf *domain.SampleBuffer, ctxRate int) *Source {
	return &Source{
		buf:     buf,
		rate:    NewAudioParam(1),
		ctxRate: ctxRate,
		done:    make(chan struct{}),
	}
}

// PlaybackRate is the speed multiplier, evaluated once per render block.
func (s *Source) PlaybackRate() *AudioParam { return s.rate }

// Buffer returns the audio being played.
func (s *Source) Buffer() *domain.SampleBuffer { return s.buf }

// Done is closed when the source reaches the end of its buffer or is
// stopped.
func (s *Source) Done() <-chan struct{} { return s.done }

func (s *Source) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Source) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// render mixes up to len(out[0]) frames into out starting at graph time t.
// It reports whether the end of the buffer was reached.
func (s *Source) render(out [][]float32, t float64) bool {
	if s.finished() {
		return true
	}
	frames := s.buf.Frames()
	rate := s.rate.ValueAt(t)
	if rate <= 0 {
		rate = 1
	}
	step := rate * float64(s.buf.SampleRate()) / float64(s.ctxRate)

	n := len(out[0])
	for i := 0; i < n; i++ {
		if s.pos >= float64(frames) {
			break
		}
		idx := int(s.pos)
		frac := float32(s.pos - float64(idx))
		for c := range out {
			out[c][i] += s.sampleAt(c, len(out), idx, frac)
		}
		s.pos += step
	}
	return s.pos >= float64(frames)
}

// sampleAt maps buffer channels onto an outCh-channel layout: equal
// layouts map one to one, mono is copied everywhere, mono output takes the
// average, and anything else wraps around.
func (s *Source) sampleAt(c, outCh, idx int, frac float32) float32 {
	inCh := s.buf.NumChannels()
	switch {
	case inCh == outCh:
		return s.interp(c, idx, frac)
	case inCh == 1:
		return s.interp(0, idx, frac)
	case outCh == 1:
		var sum float32
		for k := 0; k < inCh; k++ {
			sum += s.interp(k, idx, frac)
		}
		return sum / float32(inCh)
	default:
		return s.interp(c%inCh, idx, frac)
	}
}

func (s *Source) interp(c, idx int, frac float32) float32 {
	ch := s.buf.Channel(c)
	a := ch[idx]
	if frac == 0 || idx+1 >= len(ch) {
		return a
	}
	return a + (ch[idx+1]-a)*frac
}
