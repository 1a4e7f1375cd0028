// Package overshoot implements the predictive-stop learning controller: it
// predicts when flow will carry the cup to target weight, schedules a
// compensated early stop, then watches the settled overshoot to adjust its
// learned delay via a confidence-weighted EWMA.
package overshoot

import (
	"math"
	"time"

	"brewcore/event"
	"brewcore/x/mathx"
	"brewcore/x/ring"
)

const (
	initialStopDelayMs  = 500
	minStopDelayMs      = 100
	maxStopDelayMs      = 2000
	initialLearningRate = 0.3
	historyCapacity     = 5

	elapsedGuardS        = 2.0 // sample's scale-timer elapsed must exceed this
	overshootTriggerFlow = 0.5 // |flow| g/s below which a pending stop is measured
	minCompensatedDelayS = 0.1
)

// Learner is the brew state machine's owned predictive-stop controller.
// The state machine exclusively owns one instance; nothing here is shared
// by mutable reference.
type Learner struct {
	StopDelayMs     int64
	Ewma            float64
	LearningRate    float64
	ConfidenceScore float64
	BrewCount       uint64

	history *ring.Buffer[float64]

	PendingPredictedStop bool
	pendingStopTime      time.Time
	havePendingStopTime  bool
}

// New returns a Learner at its initial values.
func New() *Learner {
	l := &Learner{}
	l.Reset()
	return l
}

// Reset restores every field to its initial value, fired on
// User.ResetOvershoot.
func (l *Learner) Reset() {
	if l.history == nil {
		l.history = ring.New[float64](historyCapacity)
	} else {
		l.history.Reset()
	}
	l.StopDelayMs = initialStopDelayMs
	l.Ewma = 0
	l.LearningRate = initialLearningRate
	l.ConfidenceScore = 0
	l.BrewCount = 0
	l.PendingPredictedStop = false
	l.pendingStopTime = time.Time{}
	l.havePendingStopTime = false
}

// PendingStopTime returns the scheduled stop instant and whether one is set.
func (l *Learner) PendingStopTime() (time.Time, bool) {
	return l.pendingStopTime, l.havePendingStopTime
}

// ClearPendingStop clears the scheduled stop time without touching
// PendingPredictedStop. The state machine calls this once the scheduled
// stop has fired, before leaving Brewing — pending_stop_time must be
// cleared ahead of any transition out of Brewing.
func (l *Learner) ClearPendingStop() {
	l.pendingStopTime = time.Time{}
	l.havePendingStopTime = false
}

// predictionWindow returns (min_reaction, max_prediction) in seconds for
// the currently learned delay.
func (l *Learner) predictionWindow() (minReaction, maxPrediction float64) {
	minReaction = float64(l.StopDelayMs)/1000.0 + 0.2
	maxPrediction = minReaction * 3.0
	return
}

// ShouldTrigger evaluates the trigger conditions against one sample and, if
// they all hold, returns the predicted final weight and true.
func (l *Learner) ShouldTrigger(elapsedS, flow, weight, target float64) (predictedWeight float64, ok bool) {
	if elapsedS <= elapsedGuardS || flow <= 0 {
		return 0, false
	}
	weightNeeded := target - weight
	if weightNeeded <= 0 {
		return 0, false
	}
	timeToTarget := weightNeeded / flow
	minReaction, maxPrediction := l.predictionWindow()
	if !(timeToTarget > minReaction && timeToTarget <= maxPrediction) {
		return 0, false
	}
	return weight + flow*timeToTarget, true
}

// Schedule records a predictive stop at now + compensated delay and returns
// the PredictiveStopTriggered event to emit.
// It is a no-op — returning ok=false — if a stop is already scheduled.
func (l *Learner) Schedule(now time.Time, timeToTargetS, predictedWeight float64) (event.SystemEvent, bool) {
	if l.havePendingStopTime {
		return event.SystemEvent{}, false
	}
	compensatedS := math.Max(minCompensatedDelayS, timeToTargetS-float64(l.StopDelayMs)/1000.0)
	l.PendingPredictedStop = true
	l.pendingStopTime = now.Add(time.Duration(compensatedS * float64(time.Second)))
	l.havePendingStopTime = true
	delayMs := int64(compensatedS * 1000.0)
	return event.PredictiveStopTriggered(delayMs, predictedWeight), true
}

// RecordOvershoot is called when Brewing observes |flow| < overshootTriggerFlow
// while a predicted stop is pending. It updates the EWMA, the learned
// delay, and the confidence score, then clears PendingPredictedStop — all
// exactly once per predicted stop. Only the first crossing below the flow
// threshold is recorded; if flow oscillates back above threshold and drops
// again, ShouldMeasure already returns false since PendingPredictedStop was
// cleared on the first crossing.
func (l *Learner) RecordOvershoot(weight, target float64) {
	overshoot := weight - target
	l.history.Push(overshoot)
	l.Ewma = l.LearningRate*overshoot + (1-l.LearningRate)*l.Ewma

	l.updateDelay()
	l.updateConfidence()

	l.PendingPredictedStop = false
}

// ShouldMeasure reports whether the current flow crossing qualifies for
// RecordOvershoot: a pending predicted stop and |flow| below threshold.
func (l *Learner) ShouldMeasure(flow float64) bool {
	return l.PendingPredictedStop && mathx.Abs(flow) < overshootTriggerFlow
}

func (l *Learner) updateDelay() {
	errMagnitude := mathx.Abs(l.Ewma)
	base := mathx.Clamp(50.0*errMagnitude, 10.0, 200.0)
	adjust := base * (0.5 + 0.5*l.ConfidenceScore)

	switch {
	case l.Ewma > 0.5:
		l.StopDelayMs = mathx.Clamp(l.StopDelayMs+int64(adjust), minStopDelayMs, maxStopDelayMs)
	case l.Ewma < -0.5:
		l.StopDelayMs = mathx.Clamp(l.StopDelayMs-int64(adjust), minStopDelayMs, maxStopDelayMs)
	}
}

func (l *Learner) updateConfidence() {
	if l.history.Len() < 3 {
		l.ConfidenceScore = 0
	} else {
		sd := stdev(l.history.Slice())
		consistency := math.Max(0, 3.0-sd) / 2.5
		experience := math.Min(1.0, float64(l.BrewCount)/20.0)
		l.ConfidenceScore = math.Min(1.0, consistency*experience)
	}

	switch {
	case l.ConfidenceScore > 0.8:
		l.LearningRate = 0.1
	case l.ConfidenceScore > 0.5:
		l.LearningRate = 0.2
	default:
		l.LearningRate = 0.3
	}
}

// NotifyBrewFinished increments the experience counter that feeds the
// confidence score and clears any predicted stop that was never measured,
// called once per completed brew.
func (l *Learner) NotifyBrewFinished() {
	l.BrewCount++
	l.PendingPredictedStop = false
}

func stdev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))

	return math.Sqrt(variance)
}
