package brew

import (
	"testing"
	"time"

	"brewcore/event"
)

func cfg() Config {
	return Config{TargetWeight: 36.0, AutoTareEnabled: true, PredictiveStopEnabled: true}
}

func sample(ts uint32, weight, flow float64, at time.Time) event.ScaleSample {
	return event.ScaleSample{TimestampMs: ts, WeightG: weight, FlowRateGPerS: flow, ReceivedAt: at}
}

func kindsOf(evts []event.SystemEvent) []event.Kind {
	ks := make([]event.Kind, len(evts))
	for i, e := range evts {
		ks[i] = e.Kind
	}
	return ks
}

func contains(ks []event.Kind, want event.Kind) bool {
	for _, k := range ks {
		if k == want {
			return true
		}
	}
	return false
}

func countKind(evts []event.SystemEvent, want event.Kind) int {
	n := 0
	for _, e := range evts {
		if e.Kind == want {
			n++
		}
	}
	return n
}

// bringUpIdle drives a fresh Machine from BleDisabled to Idle the way the
// dispatcher would: BLE radio up, scale connected.
func bringUpIdle(m *Machine, now time.Time) {
	m.Handle(event.BleConnected(), now)
	m.Handle(event.ScaleConnected(), now)
}

// TestS1HappyBrew mirrors the "happy brew, target 36g, no prior learning"
// scenario: stop_delay starts at 500ms, so time_to_target at the 34g sample
// (flow 20 g/s) is well under the minimum reaction window and no predictive
// stop fires; the brew ends on weight >= target.
func TestS1HappyBrew(t *testing.T) {
	m := New(cfg())
	now := time.Now()
	bringUpIdle(m, now)
	if m.State != Idle {
		t.Fatalf("setup: expected Idle, got %v", m.State)
	}

	now = now.Add(100 * time.Millisecond)
	out := m.Handle(event.TimerStarted(100), now)
	if !contains(kindsOf(out), event.KindRelayOn) {
		t.Fatalf("expected RelayOn on the rising edge, got %v", kindsOf(out))
	}
	if m.State != Brewing {
		t.Fatalf("expected Brewing, got %v", m.State)
	}

	weight := 0.0
	ts := uint32(100)
	var stopEvents []event.SystemEvent
	for weight < 36.0 {
		weight += 2.0
		ts += 100
		now = now.Add(100 * time.Millisecond)
		out = m.Handle(event.WeightChanged(sample(ts, weight, 20.0, now)), now)
		if contains(kindsOf(out), event.KindPredictiveStopTriggered) {
			t.Fatalf("expected no predictive stop at weight=%.1f (time-to-target too short)", weight)
		}
		if contains(kindsOf(out), event.KindStateChanged) {
			stopEvents = out
			break
		}
	}

	if m.State != Settling {
		t.Fatalf("expected Settling once target reached, got %v", m.State)
	}
	if !contains(kindsOf(stopEvents), event.KindRelayOff) {
		t.Fatalf("expected RelayOff when target reached, got %v", kindsOf(stopEvents))
	}
	if !contains(kindsOf(stopEvents), event.KindSendScaleCommand) {
		t.Fatalf("expected StopTimer command, got %v", kindsOf(stopEvents))
	}

	now = now.Add(settlingTimeout)
	out = m.Handle(event.SettlingTimeout(), now)
	if !contains(kindsOf(out), event.KindBrewFinished) {
		t.Fatalf("expected BrewFinished after settling, got %v", kindsOf(out))
	}
	if m.State != Idle {
		t.Fatalf("expected Idle after settling, got %v", m.State)
	}
}

// TestS5KillswitchMidBrew mirrors "killswitch engaged mid-brew": DisableSystem
// forces an immediate RelayOff and SystemDisabled, and every subsequent scale
// sample produces no outputs until EnableSystem.
func TestS5KillswitchMidBrew(t *testing.T) {
	m := New(cfg())
	now := time.Now()
	bringUpIdle(m, now)
	m.Handle(event.TimerStarted(100), now)
	if m.State != Brewing {
		t.Fatalf("setup: expected Brewing, got %v", m.State)
	}

	out := m.Handle(event.DisableSystem(), now)
	if !contains(kindsOf(out), event.KindRelayOff) {
		t.Fatalf("expected immediate RelayOff, got %v", kindsOf(out))
	}
	if m.State != SystemDisabled {
		t.Fatalf("expected SystemDisabled, got %v", m.State)
	}

	out = m.Handle(event.WeightChanged(sample(200, 10, 5, now)), now)
	if len(out) != 0 {
		t.Fatalf("expected no outputs from the killswitch, got %v", kindsOf(out))
	}
	out = m.Handle(event.TimerStarted(300), now)
	if len(out) != 0 {
		t.Fatalf("expected the killswitch to swallow timer edges too, got %v", kindsOf(out))
	}

	out = m.Handle(event.EnableSystem(), now)
	if m.State != Idle {
		t.Fatalf("expected Idle after re-enable with a connected scale, got %v", m.State)
	}
	if !contains(kindsOf(out), event.KindStateChanged) {
		t.Fatalf("expected a StateChanged event on re-enable, got %v", kindsOf(out))
	}
}

func TestEnableRoutesByConnectivityContext(t *testing.T) {
	m := New(cfg())
	now := time.Now()

	m.Handle(event.DisableSystem(), now) // BleDisabled -> SystemDisabled
	if m.State != SystemDisabled {
		t.Fatalf("expected SystemDisabled, got %v", m.State)
	}

	out := m.Handle(event.EnableSystem(), now)
	if m.State != BleDisabled {
		t.Fatalf("expected BleDisabled (no BLE, no scale), got %v", m.State)
	}
	if !contains(kindsOf(out), event.KindStateChanged) {
		t.Fatal("expected a StateChanged event")
	}

	m.Handle(event.BleConnected(), now) // BleDisabled -> BleEnabled
	m.Handle(event.DisableSystem(), now)
	out = m.Handle(event.EnableSystem(), now)
	if m.State != ScaleDisconnected {
		t.Fatalf("expected ScaleDisconnected (BLE up, scale not connected), got %v", m.State)
	}
	if !contains(kindsOf(out), event.KindStateChanged) {
		t.Fatal("expected a StateChanged event")
	}
}

func TestStateChangedEmittedExactlyOncePerTransition(t *testing.T) {
	m := New(cfg())
	now := time.Now()
	out := m.Handle(event.BleConnected(), now)
	if countKind(out, event.KindStateChanged) != 1 {
		t.Fatalf("expected exactly one StateChanged, got %v", kindsOf(out))
	}
	out = m.Handle(event.ScaleConnected(), now)
	if countKind(out, event.KindStateChanged) != 1 {
		t.Fatalf("expected exactly one StateChanged, got %v", kindsOf(out))
	}
}

func TestBleDisconnectDuringBrewForcesRelayOff(t *testing.T) {
	m := New(cfg())
	now := time.Now()
	bringUpIdle(m, now)
	m.Handle(event.TimerStarted(100), now)

	out := m.Handle(event.BleDisconnected(), now)
	if !contains(kindsOf(out), event.KindRelayOff) {
		t.Fatalf("expected RelayOff on BLE loss mid-brew, got %v", kindsOf(out))
	}
	if m.State != BleDisabled {
		t.Fatalf("expected BleDisabled, got %v", m.State)
	}
}

func TestSettlingRestartsBrewingOnNewTimerStart(t *testing.T) {
	m := New(cfg())
	now := time.Now()
	bringUpIdle(m, now)
	m.Handle(event.TimerStarted(100), now)
	m.Handle(event.WeightChanged(sample(200, 36.0, 20.0, now)), now)
	if m.State != Settling {
		t.Fatalf("setup: expected Settling, got %v", m.State)
	}

	out := m.Handle(event.TimerStarted(50), now)
	if m.State != Brewing {
		t.Fatalf("expected Brewing restarted from Settling, got %v", m.State)
	}
	if !contains(kindsOf(out), event.KindRelayOn) {
		t.Fatalf("expected RelayOn on restart, got %v", kindsOf(out))
	}
}
