// Package safety implements the data-freshness and error watchdog that
// runs on every dispatcher tick, plus the impossible-flow heuristic used to
// tell a genuine emergency apart from a scale power-down.
package safety

import (
	"time"

	"brewcore/event"
)

const (
	dataFreshnessTimeout    = 10 * time.Second
	impossibleFlowWindow    = 3 * time.Second
	impossibleFlowThreshold = 25.0 // g/s, physically impossible for this scale
)

// Watchdog accumulates the bookkeeping its invariants need from the event
// stream. It never emits on its own; Check, driven by Time.Tick, is the
// only source of EmergencyStop.
type Watchdog struct {
	haveLastSample bool
	lastSampleAt   time.Time
	timerRunning   bool
	lastFlow       float64

	scaleConnected bool

	haveError   bool
	errorReason string

	haveTimerStart bool
	timerStartAt   time.Time
	timerStartFlow float64
}

// New returns a Watchdog with no observations yet.
func New() *Watchdog { return &Watchdog{} }

// Observe folds one bus event into the watchdog's bookkeeping.
func (w *Watchdog) Observe(evt event.SystemEvent, now time.Time) {
	switch {
	case evt.Category == event.CategoryScale && evt.Kind == event.KindWeightChanged:
		w.haveLastSample = true
		w.lastSampleAt = now
		w.timerRunning = evt.Sample.TimerRunning
		w.lastFlow = evt.Sample.FlowRateGPerS
	case evt.Category == event.CategoryScale && evt.Kind == event.KindScaleConnected:
		w.scaleConnected = true
	case evt.Category == event.CategoryScale && evt.Kind == event.KindScaleDisconnected:
		w.scaleConnected = false
	case evt.Category == event.CategoryScale && evt.Kind == event.KindTimerStarted:
		w.haveTimerStart = true
		w.timerStartAt = now
		w.timerStartFlow = w.lastFlow
	}
}

// ReportError records a resource or invariant error for Check's
// timer-running-with-error branch. ClearError resets it once resolved.
func (w *Watchdog) ReportError(reason string) {
	w.haveError = true
	w.errorReason = reason
}

// ClearError clears a previously reported error.
func (w *Watchdog) ClearError() {
	w.haveError = false
	w.errorReason = ""
}

// Check runs the data-freshness and error invariants against now and
// returns an EmergencyStop event if one trips. Only meaningful while the
// scale reports timer_running; a stopped timer has nothing to protect.
func (w *Watchdog) Check(now time.Time) (event.SystemEvent, bool) {
	if !w.timerRunning {
		return event.SystemEvent{}, false
	}
	switch {
	case w.haveLastSample && now.Sub(w.lastSampleAt) >= dataFreshnessTimeout:
		return event.EmergencyStop("no scale sample for 10s"), true
	case !w.scaleConnected:
		return event.EmergencyStop("scale disconnected"), true
	case w.haveError:
		return event.EmergencyStop(w.errorReason), true
	}
	return event.SystemEvent{}, false
}

// ScalePowerDownFalsePositive reports whether a BLE disconnect observed at
// now should be treated as a scale power-down rather than a genuine safety
// trip: the most recent timer start happened within the last 3s and that
// start arrived carrying a physically impossible flow reading.
func (w *Watchdog) ScalePowerDownFalsePositive(now time.Time) bool {
	if !w.haveTimerStart {
		return false
	}
	return now.Sub(w.timerStartAt) <= impossibleFlowWindow && w.timerStartFlow > impossibleFlowThreshold
}

// ImpossibleFlow reports whether flow cannot physically come from this
// scale. The dispatcher checks this at the moment a rising edge is
// detected and, if true, withholds the TimerStarted event from the state
// machine instead of waiting out a 3s window for a confirming disconnect.
func ImpossibleFlow(flow float64) bool {
	return flow > impossibleFlowThreshold
}
