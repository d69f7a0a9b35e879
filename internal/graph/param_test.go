package graph

import (
	"math"
	"testing"
)

func TestAudioParamSetValueAtTime(t *testing.T) {
	p := NewAudioParam(1)
	p.SetValueAtTime(0.5, 2)
	p.SetValueAtTime(0.25, 1)

	tests := []struct {
		t    float64
		want float64
	}{
		{0, 1},
		{0.999, 1},
		{1, 0.25},
		{1.5, 0.25},
		{2, 0.5},
		{10, 0.5},
	}
	for _, tt := range tests {
		if got := p.ValueAt(tt.t); got != tt.want {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestAudioParamSetTargetAtTime(t *testing.T) {
	p := NewAudioParam(1)
	p.SetTargetAtTime(0, 1, 0.5)

	if got := p.ValueAt(1); got != 1 {
		t.Errorf("at start = %v, want 1", got)
	}
	if got, want := p.ValueAt(1.5), math.Exp(-1); math.Abs(got-want) > 1e-12 {
		t.Errorf("after one tau = %v, want %v", got, want)
	}
	if got := p.ValueAt(10); got > 1e-6 {
		t.Errorf("long after = %v, want ~0", got)
	}

	// A later jump freezes the curve at its start.
	p.SetValueAtTime(0.75, 2)
	if got := p.ValueAt(3); got != 0.75 {
		t.Errorf("after jump = %v, want 0.75", got)
	}
}

func TestAudioParamChainedTargets(t *testing.T) {
	p := NewAudioParam(1)
	p.SetTargetAtTime(0, 0, 0.1)
	p.SetTargetAtTime(1, 0.1, 0.1)

	// The second approach starts from wherever the first one got to.
	start := math.Exp(-1)
	want := 1 + (start-1)*math.Exp(-1)
	if got := p.ValueAt(0.2); math.Abs(got-want) > 1e-12 {
		t.Errorf("ValueAt(0.2) = %v, want %v", got, want)
	}
}

func TestAudioParamNonPositiveTauJumps(t *testing.T) {
	p := NewAudioParam(1)
	p.SetTargetAtTime(0.3, 0, 0)
	if got := p.ValueAt(0); got != 0.3 {
		t.Errorf("ValueAt = %v, want 0.3", got)
	}
	if ev := p.Pending(); len(ev) != 1 || ev[0].Smoothed {
		t.Errorf("pending = %+v, want one instant event", ev)
	}
}

func TestAudioParamCompact(t *testing.T) {
	p := NewAudioParam(1)
	p.SetValueAtTime(0.5, 0)
	p.SetTargetAtTime(0.1, 1, 0.2)
	p.SetTargetAtTime(0.9, 2, 0.2)
	p.SetValueAtTime(0.3, 5)

	times := []float64{2, 2.1, 2.5, 3, 4.99, 5, 6}
	before := make([]float64, len(times))
	for i, tt := range times {
		before[i] = p.ValueAt(tt)
	}

	p.Compact(2.5)
	if n := len(p.Pending()); n != 2 {
		t.Fatalf("pending after compact = %d, want 2", n)
	}
	for i, tt := range times {
		if got := p.ValueAt(tt); math.Abs(got-before[i]) > 1e-12 {
			t.Errorf("ValueAt(%v) = %v after compact, was %v", tt, got, before[i])
		}
	}
}
