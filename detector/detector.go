// Package detector turns successive scale samples into higher-level
// events: timer state edges (preferred over the raw timer_running bit,
// which can lie during shutdown), inferred button presses, and
// weight-stability tracking.
package detector

import (
	"time"

	"brewcore/event"
	"brewcore/x/mathx"
)

const (
	startEdgeMaxDeltaMs = 100
	timerTimeout        = 30 * time.Second
	buttonDebounce      = 500 * time.Millisecond

	tareStableWeightMin = 5.0 // g
	tareCurrentMax      = 1.0 // g
	buttonFlowMax       = 0.5 // g/s

	stabilityWindow = 1 * time.Second
	stabilityRange  = 1.0 // g
)

type weightPoint struct {
	weight     float64
	receivedAt time.Time
}

// Detector holds the inference state across successive samples. One
// instance per scale.
type Detector struct {
	havePrevTimestamp bool
	prevTimestampMs   uint32

	running          bool
	haveLastReceived bool
	lastReceivedAt   time.Time

	haveStableWeight bool
	lastStableWeight float64
	window           []weightPoint

	haveTarePress  bool
	lastTarePress  time.Time
	haveTimerPress bool
	lastTimerPress time.Time

	timerEdgeJustSeen bool
}

// New returns a Detector ready to process its first sample.
func New() *Detector {
	return &Detector{}
}

// Evaluate feeds one sample and returns the events it produces: timer
// edges first, then button inferences.
func (d *Detector) Evaluate(s event.ScaleSample) []event.SystemEvent {
	var out []event.SystemEvent
	d.timerEdgeJustSeen = false

	out = append(out, d.timerTimeoutCheck(s.ReceivedAt)...)
	out = append(out, d.timerEdge(s)...)
	out = append(out, d.buttonInference(s)...)
	d.updateStability(s)

	d.haveLastReceived = true
	d.lastReceivedAt = s.ReceivedAt
	return out
}

// timerTimeoutCheck emits TimerStopped if more than 30s have elapsed since
// the previous sample while the timer was running.
func (d *Detector) timerTimeoutCheck(now time.Time) []event.SystemEvent {
	if !d.running || !d.haveLastReceived {
		return nil
	}
	if now.Sub(d.lastReceivedAt) > timerTimeout {
		d.running = false
		return []event.SystemEvent{event.TimerStopped()}
	}
	return nil
}

// timerEdge implements the timestamp edge rules.
func (d *Detector) timerEdge(s event.ScaleSample) []event.SystemEvent {
	current := s.TimestampMs

	if !d.havePrevTimestamp {
		d.havePrevTimestamp = true
		d.prevTimestampMs = current
		return nil
	}
	previous := d.prevTimestampMs
	d.prevTimestampMs = current

	switch {
	case !d.running && current > previous && current-previous < startEdgeMaxDeltaMs && current > 0:
		d.running = true
		d.notifyTimerEdge()
		return []event.SystemEvent{event.TimerStarted(current)}

	case d.running && current == previous && current > 0:
		// Frozen timestamp: the scale stopped advancing its own clock,
		// the surest sign of a manual stop press.
		d.running = false
		d.notifyTimerEdge()
		return []event.SystemEvent{event.TimerStopped()}

	case d.running && current == 0:
		d.running = false
		d.notifyTimerEdge()
		return []event.SystemEvent{event.TimerReset()}
	}
	return nil
}

// buttonInference infers button presses from data patterns,
// each independently debounced 500 ms.
func (d *Detector) buttonInference(s event.ScaleSample) []event.SystemEvent {
	var out []event.SystemEvent

	if d.haveStableWeight && d.lastStableWeight >= tareStableWeightMin &&
		mathx.Abs(s.WeightG) < tareCurrentMax && mathx.Abs(s.FlowRateGPerS) < buttonFlowMax {
		if d.debounced(&d.haveTarePress, &d.lastTarePress, s.ReceivedAt) {
			out = append(out, event.ButtonPressed())
		}
	}

	if d.timerEdgeJustSeen && mathx.Abs(s.FlowRateGPerS) < buttonFlowMax {
		if d.debounced(&d.haveTimerPress, &d.lastTimerPress, s.ReceivedAt) {
			out = append(out, event.ButtonPressed())
		}
	}

	return out
}

// notifyTimerEdge marks that a timer edge fired during this Evaluate call;
// buttonInference consults it to detect a timer button press.
func (d *Detector) notifyTimerEdge() {
	d.timerEdgeJustSeen = true
}

func (d *Detector) debounced(have *bool, last *time.Time, now time.Time) bool {
	if *have && now.Sub(*last) < buttonDebounce {
		return false
	}
	*have = true
	*last = now
	return true
}

// updateStability maintains the rolling 1 s window and, once its range
// drops below 1.0 g, records a new "last stable weight".
func (d *Detector) updateStability(s event.ScaleSample) {
	d.window = append(d.window, weightPoint{weight: s.WeightG, receivedAt: s.ReceivedAt})

	cutoff := s.ReceivedAt.Add(-stabilityWindow)
	i := 0
	for i < len(d.window) && d.window[i].receivedAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		d.window = d.window[i:]
	}

	if len(d.window) < 2 {
		return
	}
	if d.window[len(d.window)-1].receivedAt.Sub(d.window[0].receivedAt) < stabilityWindow {
		return
	}

	lo, hi := d.window[0].weight, d.window[0].weight
	for _, p := range d.window[1:] {
		lo = mathx.Min(lo, p.weight)
		hi = mathx.Max(hi, p.weight)
	}
	if hi-lo < stabilityRange {
		d.haveStableWeight = true
		d.lastStableWeight = s.WeightG
	}
}
