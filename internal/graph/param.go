package graph

import (
	"math"
	"sort"
	"sync"
)

type eventKind int

const (
	eventSetValue eventKind = iota
	eventSetTarget
)

type paramEvent struct {
	kind  eventKind
	time  float64
	value float64
	tau   float64
}

// AudioParam is a time-automated value. Changes are scheduled against the
// graph clock (seconds) instead of being applied immediately, so a running
// render can evaluate the exact value for every frame.
type AudioParam struct {
	mu      sync.Mutex
	initial float64
	events  []paramEvent
}

// NewAudioParam creates a parameter holding v until an event is scheduled.
func NewAudioParam(v float64) *AudioParam {
	return &AudioParam{initial: v}
}

// SetValueAtTime jumps to v at time t.
func (p *AudioParam) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventSetValue, time: t, value: v})
}

// SetTargetAtTime starts an exponential approach towards target at time t.
// After tau seconds the value has covered about 63% of the distance.
func (p *AudioParam) SetTargetAtTime(target, t, tau float64) {
	if tau <= 0 {
		p.SetValueAtTime(target, t)
		return
	}
	p.insert(paramEvent{kind: eventSetTarget, time: t, value: target, tau: tau})
}

// ValueAt evaluates the automation curve at time t.
func (p *AudioParam) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAtLocked(t, len(p.events))
}

// Pending reports the scheduled events, oldest first. Used for inspection.
func (p *AudioParam) Pending() []ParamEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ParamEvent, len(p.events))
	for i, ev := range p.events {
		out[i] = ParamEvent{Time: ev.time, Value: ev.value, TimeConstant: ev.tau, Smoothed: ev.kind == eventSetTarget}
	}
	return out
}

// ParamEvent describes a scheduled change.
type ParamEvent struct {
	Time         float64
	Value        float64
	TimeConstant float64
	Smoothed     bool
}

// Compact folds every event that is fully superseded at time t into the
// initial value. The curve is unchanged for any time >= t.
func (p *AudioParam) Compact(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Last event that has started by t; everything before it is history.
	last := -1
	for i, ev := range p.events {
		if ev.time > t {
			break
		}
		last = i
	}
	if last <= 0 {
		return
	}
	p.initial = p.valueAtLocked(p.events[last].time, last)
	p.events = append(p.events[:0], p.events[last:]...)
}

func (p *AudioParam) insert(ev paramEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Events at the same time keep insertion order.
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > ev.time })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

// valueAtLocked evaluates the curve at t using only the first n events.
func (p *AudioParam) valueAtLocked(t float64, n int) float64 {
	v := p.initial
	for i := 0; i < n; i++ {
		ev := p.events[i]
		if ev.time > t {
			break
		}
		switch ev.kind {
		case eventSetValue:
			v = ev.value
		case eventSetTarget:
			end := t
			if i+1 < n && p.events[i+1].time <= t {
				end = p.events[i+1].time
			}
			v = ev.value + (v-ev.value)*math.Exp(-(end-ev.time)/ev.tau)
		}
	}
	return v
}
