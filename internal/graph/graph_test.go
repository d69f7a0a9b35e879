package graph

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/logger"
)

// fakeSink records lifecycle calls. Tests pull audio by hand.
type fakeSink struct {
	mu       sync.Mutex
	src      io.Reader
	resumes  int
	suspends int
	closed   bool
}

func (s *fakeSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	return nil
}

func (s *fakeSink) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspends++
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// pull renders frames of interleaved audio from the graph.
func (s *fakeSink) pull(t *testing.T, frames, channels int) []float32 {
	t.Helper()
	p := make([]byte, frames*channels*4)
	n, err := s.src.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("pull: n=%d err=%v", n, err)
	}
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return out
}

type sinkRecorder struct {
	builds int
	sinks  []*fakeSink
	err    error
}

func (r *sinkRecorder) factory(_, _ int, src io.Reader) (Sink, error) {
	r.builds++
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeSink{src: src}
	r.sinks = append(r.sinks, s)
	return s, nil
}

const testRate = 8000

func newTestManager(t *testing.T, rec *sinkRecorder, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithSampleRate(testRate), WithChannels(1)}, opts...)
	return NewManager(rec.factory, logger.New(logger.LevelOff, nil), opts...)
}

func constBuffer(t *testing.T, rate, frames int, v float32) *domain.SampleBuffer {
	t.Helper()
	ch := make([]float32, frames)
	for i := range ch {
		ch[i] = v
	}
	buf, err := domain.NewSampleBuffer(rate, [][]float32{ch})
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEnsureGraphIdempotent(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)

	if m.Gain() != nil || m.OutputTap() != nil {
		t.Fatal("graph built before EnsureGraph")
	}
	if err := m.EnsureGraph(); err != nil {
		t.Fatalf("EnsureGraph: %v", err)
	}
	gain, tap := m.Gain(), m.OutputTap()

	for i := 0; i < 10; i++ {
		m.SetGain(0.1 * float64(i))
		if err := m.EnsureGraph(); err != nil {
			t.Fatalf("EnsureGraph #%d: %v", i+2, err)
		}
		rec.sinks[0].pull(t, 100, 1)
	}

	if rec.builds != 1 {
		t.Errorf("sinks built = %d, want 1", rec.builds)
	}
	if m.Gain() != gain {
		t.Error("gain node replaced")
	}
	if m.OutputTap() != tap {
		t.Error("analysis tap replaced")
	}
	if rec.sinks[0].resumes != 1 {
		t.Errorf("resumes = %d, want 1", rec.sinks[0].resumes)
	}
	if got := m.Gain().ValueAt(m.CurrentTime()); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("gain = %v, want 0.9", got)
	}
}

func TestEnsureGraphResumesAfterSuspend(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)

	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	if err := m.Suspend(); err != nil {
		t.Fatal(err)
	}
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	s := rec.sinks[0]
	if s.suspends != 1 || s.resumes != 2 {
		t.Errorf("suspends=%d resumes=%d, want 1 and 2", s.suspends, s.resumes)
	}
}

func TestEnsureGraphFailureIsSticky(t *testing.T) {
	rec := &sinkRecorder{err: errors.New("no device")}
	m := newTestManager(t, rec)

	for i := 0; i < 3; i++ {
		if err := m.EnsureGraph(); !errors.Is(err, domain.ErrAudioUnavailable) {
			t.Fatalf("call %d: err = %v, want ErrAudioUnavailable", i, err)
		}
	}
	if rec.builds != 1 {
		t.Errorf("factory called %d times, want 1", rec.builds)
	}
	if _, err := m.StartSource(constBuffer(t, testRate, 10, 0.5), 1); !errors.Is(err, domain.ErrAudioUnavailable) {
		t.Errorf("StartSource err = %v", err)
	}
}

func TestAtMostOneSource(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	sink := rec.sinks[0]

	var prev *Source
	for i := 0; i < 20; i++ {
		src, err := m.StartSource(constBuffer(t, testRate, testRate, float32(i)/20), 1+float64(i%3)/2)
		if err != nil {
			t.Fatalf("StartSource: %v", err)
		}
		if n := m.ConnectedSources(); n != 1 {
			t.Fatalf("after start %d: %d sources connected", i, n)
		}
		if prev != nil {
			select {
			case <-prev.Done():
			default:
				t.Fatalf("start %d: previous source still running", i)
			}
		}
		prev = src

		if i%4 == 3 {
			m.StopSource()
			if n := m.ConnectedSources(); n != 0 {
				t.Fatalf("after stop: %d sources connected", n)
			}
		}
		sink.pull(t, 64, 1)
	}

	m.StopSource()
	m.StopSource() // idle stop is a no-op
	if m.IsPlaying() || m.ConnectedSources() != 0 {
		t.Error("graph not idle after StopSource")
	}
}

func TestSourceEndClearsPlaying(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}

	src, err := m.StartSource(constBuffer(t, testRate, 100, 0.5), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsPlaying() {
		t.Fatal("not playing after start")
	}

	out := rec.sinks[0].pull(t, 150, 1)
	if out[0] != 0.5 || out[99] != 0.5 || out[100] != 0 {
		t.Errorf("rendered %v %v %v, want 0.5 0.5 0", out[0], out[99], out[100])
	}

	<-src.Done()
	waitFor(t, "playing flag to clear", func() bool { return !m.IsPlaying() })
	waitFor(t, "source to disconnect", func() bool { return m.ConnectedSources() == 0 })
}

func TestEndedSourceDoesNotClearReplacement(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}

	first, _ := m.StartSource(constBuffer(t, testRate, 10, 0.1), 1)
	if _, err := m.StartSource(constBuffer(t, testRate, testRate, 0.2), 1); err != nil {
		t.Fatal(err)
	}
	<-first.Done()
	time.Sleep(20 * time.Millisecond)

	if !m.IsPlaying() {
		t.Error("replacement lost its playing flag")
	}
	if m.ConnectedSources() != 1 {
		t.Errorf("connected = %d, want 1", m.ConnectedSources())
	}
}

func TestPlaybackRateResamples(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}

	ramp := make([]float32, 8)
	for i := range ramp {
		ramp[i] = float32(i) / 8
	}
	buf, _ := domain.NewSampleBuffer(testRate, [][]float32{ramp})
	if _, err := m.StartSource(buf, 0.5); err != nil {
		t.Fatal(err)
	}

	out := rec.sinks[0].pull(t, 4, 1)
	want := []float32{0, 0.0625, 0.125, 0.1875}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestGainChangeIsSmoothedWhilePlaying(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartSource(constBuffer(t, testRate, 2*testRate, 1), 1); err != nil {
		t.Fatal(err)
	}
	rec.sinks[0].pull(t, testRate/10, 1)

	now := m.CurrentTime()
	if math.Abs(now-0.1) > 1e-9 {
		t.Fatalf("clock = %v, want 0.1", now)
	}
	m.SetGain(0.2)

	events := m.Gain().Pending()
	last := events[len(events)-1]
	if !last.Smoothed {
		t.Fatal("gain change scheduled as an instant set")
	}
	if last.Time != now || last.Value != 0.2 || last.TimeConstant != DefaultGainSmoothing {
		t.Errorf("event = %+v, want target 0.2 at %v with tau %v", last, now, DefaultGainSmoothing)
	}
	if got := m.Gain().ValueAt(now); math.Abs(got-1) > 1e-9 {
		t.Errorf("value at change = %v, want 1 (no jump)", got)
	}
	want := 0.2 + 0.8*math.Exp(-1)
	if got := m.Gain().ValueAt(now + DefaultGainSmoothing); math.Abs(got-want) > 1e-9 {
		t.Errorf("value after one tau = %v, want %v", got, want)
	}

	// Rendered output follows the curve.
	out := rec.sinks[0].pull(t, testRate/2, 1)
	if out[0] < 0.99 {
		t.Errorf("first frame after change = %v, want ~1", out[0])
	}
	if last := out[len(out)-1]; math.Abs(float64(last)-0.2) > 0.01 {
		t.Errorf("settled gain = %v, want ~0.2", last)
	}
}

func TestEnsureGraphKeepsGainRampWhilePlaying(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartSource(constBuffer(t, testRate, 2*testRate, 1), 1); err != nil {
		t.Fatal(err)
	}
	m.SetGain(0.2)
	rec.sinks[0].pull(t, testRate/100, 1)

	now := m.CurrentTime()
	before := m.Gain().ValueAt(now)
	if before < 0.5 {
		t.Fatalf("ramp already settled at %v", before)
	}
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	if got := m.Gain().ValueAt(now); math.Abs(got-before) > 1e-9 {
		t.Errorf("gain at re-ensure = %v, want %v (no step)", got, before)
	}
	events := m.Gain().Pending()
	if last := events[len(events)-1]; !last.Smoothed {
		t.Errorf("re-ensure scheduled %+v, want a smoothed approach", last)
	}
	want := 0.2 + (before-0.2)*math.Exp(-1)
	if got := m.Gain().ValueAt(now + DefaultGainSmoothing); math.Abs(got-want) > 1e-9 {
		t.Errorf("gain one tau later = %v, want %v", got, want)
	}
}

func TestAnalyserRangeReachesTaps(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec, WithAnalyserRange(-80, -10))
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	in, err := m.NewInputTap()
	if err != nil {
		t.Fatal(err)
	}
	for _, tap := range []*Analyser{m.OutputTap(), in} {
		if tap.minDB != -80 || tap.maxDB != -10 {
			t.Errorf("tap range = [%v, %v], want [-80, -10]", tap.minDB, tap.maxDB)
		}
	}
}

func TestSetGainBeforeBuildIsApplied(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec, WithInitialGain(0.7))
	m.SetGain(0.4)
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	if got := m.Gain().ValueAt(0); got != 0.4 {
		t.Errorf("gain = %v, want 0.4", got)
	}
}

func TestInputTap(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)

	if _, err := m.NewInputTap(); !errors.Is(err, domain.ErrAudioUnavailable) {
		t.Fatalf("tap before build: err = %v", err)
	}
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	a, err := m.NewInputTap()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.NewInputTap()
	m.DetachInputTap(a)
	if m.InputTap() != b {
		t.Error("stale detach removed the live tap")
	}
	m.DetachInputTap(b)
	if m.InputTap() != nil {
		t.Error("tap still attached")
	}
}

func TestClose(t *testing.T) {
	rec := &sinkRecorder{}
	m := newTestManager(t, rec)
	m.Close() // before build
	if err := m.EnsureGraph(); err != nil {
		t.Fatal(err)
	}
	m.Close()
	if !rec.sinks[0].closed {
		t.Error("sink not closed")
	}
}
