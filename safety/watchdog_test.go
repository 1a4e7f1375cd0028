package safety

import (
	"testing"
	"time"

	"brewcore/event"
)

func runningSample(flow float64) event.SystemEvent {
	return event.WeightChanged(event.ScaleSample{WeightG: 10, FlowRateGPerS: flow, TimerRunning: true})
}

func TestCheckIdleWhenTimerNotRunning(t *testing.T) {
	w := New()
	now := time.Now()
	w.Observe(event.WeightChanged(event.ScaleSample{TimerRunning: false}), now)
	if _, trip := w.Check(now.Add(time.Hour)); trip {
		t.Fatal("expected no trip while timer is not running")
	}
}

func TestCheckTripsOnStaleSample(t *testing.T) {
	w := New()
	now := time.Now()
	w.Observe(runningSample(2.0), now)
	w.Observe(event.ScaleConnected(), now)

	if _, trip := w.Check(now.Add(9 * time.Second)); trip {
		t.Fatal("expected no trip before 10s of silence")
	}
	evt, trip := w.Check(now.Add(10 * time.Second))
	if !trip {
		t.Fatal("expected a trip after 10s of silence")
	}
	if evt.Kind != event.KindEmergencyStop {
		t.Fatalf("expected EmergencyStop, got %v", evt.Kind)
	}
}

func TestCheckTripsOnScaleDisconnected(t *testing.T) {
	w := New()
	now := time.Now()
	w.Observe(runningSample(2.0), now)
	w.Observe(event.ScaleConnected(), now)
	w.Observe(event.ScaleDisconnected(), now)

	if _, trip := w.Check(now); !trip {
		t.Fatal("expected a trip on scale disconnect while timer running")
	}
}

func TestCheckTripsOnReportedError(t *testing.T) {
	w := New()
	now := time.Now()
	w.Observe(runningSample(2.0), now)
	w.Observe(event.ScaleConnected(), now)
	w.ReportError("relay gpio write failed")

	evt, trip := w.Check(now)
	if !trip {
		t.Fatal("expected a trip on a reported error")
	}
	if evt.Reason != "relay gpio write failed" {
		t.Fatalf("expected the reported reason to propagate, got %q", evt.Reason)
	}

	w.ClearError()
	if _, trip := w.Check(now); trip {
		t.Fatal("expected no trip after ClearError")
	}
}

func TestScalePowerDownFalsePositive(t *testing.T) {
	w := New()
	now := time.Now()
	w.Observe(runningSample(60.0), now)
	w.Observe(event.TimerStarted(50), now)

	if w.ScalePowerDownFalsePositive(now.Add(1 * time.Second)) != true {
		t.Fatal("expected a false positive within the 3s window at impossible flow")
	}
	if w.ScalePowerDownFalsePositive(now.Add(4 * time.Second)) {
		t.Fatal("expected no false positive once the 3s window has elapsed")
	}
}

func TestScalePowerDownFalsePositiveRequiresImpossibleFlow(t *testing.T) {
	w := New()
	now := time.Now()
	w.Observe(runningSample(5.0), now)
	w.Observe(event.TimerStarted(50), now)

	if w.ScalePowerDownFalsePositive(now.Add(time.Second)) {
		t.Fatal("expected no false positive at a physically plausible flow")
	}
}

func TestImpossibleFlowThreshold(t *testing.T) {
	if ImpossibleFlow(25.0) {
		t.Fatal("expected 25.0 g/s to be within the plausible boundary")
	}
	if !ImpossibleFlow(25.1) {
		t.Fatal("expected 25.1 g/s to be flagged impossible")
	}
}
