// Package brew implements the hierarchical-but-flattened brew state
// machine: a pure (state, event) -> (state, outputs) transducer that owns
// the auto-tare controller and the predictive-stop learner. It never
// touches hardware; it only emits the events the dispatcher should act on.
package brew

import (
	"time"

	"brewcore/autotare"
	"brewcore/event"
	"brewcore/overshoot"
)

const settlingTimeout = 5 * time.Second

// Config is the mutable brew configuration (persisted out of band by the
// config package).
type Config struct {
	TargetWeight          float64
	AutoTareEnabled       bool
	PredictiveStopEnabled bool
}

// Machine is the exclusive owner of one AutoTareContext and one
// OvershootLearner; nothing here is shared by mutable reference with any
// other component.
type Machine struct {
	State SystemState
	cfg   Config

	autoTare  *autotare.Context
	overshoot *overshoot.Learner

	bleEnabled     bool
	scaleConnected bool

	haveBrewStart        bool
	brewStartTimestampMs uint32

	haveSettlingDeadline bool
	settlingDeadline     time.Time

	haveLastSample bool
	lastSample     event.ScaleSample
}

// New returns a Machine in its initial state, BleDisabled.
func New(cfg Config) *Machine {
	return &Machine{
		State:     BleDisabled,
		cfg:       cfg,
		autoTare:  autotare.New(),
		overshoot: overshoot.New(),
	}
}

// Config returns the machine's current brew configuration.
func (m *Machine) Config() Config { return m.cfg }

// BleEnabled reports whether the BLE radio is currently connected to
// anything, for status reporting; it does not imply a scale is paired.
func (m *Machine) BleEnabled() bool { return m.bleEnabled }

// ScaleConnected reports whether the scale is currently paired and
// streaming samples.
func (m *Machine) ScaleConnected() bool { return m.scaleConnected }

// Handle feeds one event into the machine and returns the events it
// produced, in emission order. now should be the monotonic instant
// associated with evt.
func (m *Machine) Handle(evt event.SystemEvent, now time.Time) []event.SystemEvent {
	switch evt.Category {
	case event.CategoryUser:
		return m.handleUser(evt, now)
	case event.CategoryNetwork:
		return m.handleNetwork(evt)
	case event.CategoryScale:
		return m.handleScale(evt, now)
	case event.CategoryTime:
		return m.handleTime(evt, now)
	case event.CategorySafety:
		return m.handleSafety(evt, now)
	default:
		return nil
	}
}

func (m *Machine) setState(to SystemState, out *[]event.SystemEvent) {
	if to == m.State {
		return
	}
	*out = append(*out, event.StateChanged(m.State.String(), to.String()))
	m.State = to
}

// --- User ---------------------------------------------------------------

func (m *Machine) handleUser(evt event.SystemEvent, now time.Time) []event.SystemEvent {
	var out []event.SystemEvent

	switch evt.Kind {
	case event.KindSetTargetWeight:
		m.cfg.TargetWeight = evt.TargetWeight
	case event.KindSetAutoTare:
		m.cfg.AutoTareEnabled = evt.Enabled
	case event.KindSetPredictiveStop:
		m.cfg.PredictiveStopEnabled = evt.Enabled
	case event.KindResetOvershoot:
		m.overshoot.Reset()
	case event.KindTareScaleCmd:
		out = append(out, event.SendScaleCommand(event.CmdTare))
	case event.KindStartBrewing:
		if m.State == Idle || m.State == Settling {
			out = append(out, event.SendScaleCommand(event.CmdStartTimer))
		}
	case event.KindStopBrewing:
		if m.State == Brewing {
			out = append(out, event.SendScaleCommand(event.CmdStopTimer))
		}
	case event.KindResetTimer:
		out = append(out, event.SendScaleCommand(event.CmdResetTimer))
	case event.KindTestRelay:
		out = append(out, event.RelayOn(), event.RelayOff())
	case event.KindEmergencyStopCmd:
		out = append(out, m.emergencyStop(now)...)
	case event.KindEnableSystem:
		out = append(out, m.enable()...)
	case event.KindDisableSystem:
		out = append(out, m.disable()...)
	}
	return out
}

func (m *Machine) enable() []event.SystemEvent {
	var out []event.SystemEvent
	if m.State != SystemDisabled {
		return out
	}
	switch {
	case m.scaleConnected:
		m.setState(Idle, &out)
	case m.bleEnabled:
		m.setState(ScaleDisconnected, &out)
	default:
		m.setState(BleDisabled, &out)
	}
	return out
}

func (m *Machine) disable() []event.SystemEvent {
	var out []event.SystemEvent
	if m.State == SystemDisabled {
		return out
	}
	if m.State == Brewing || m.State == Settling {
		out = append(out, event.RelayOff())
	}
	m.setState(SystemDisabled, &out)
	return out
}

// --- Network / connectivity ---------------------------------------------

func (m *Machine) handleNetwork(evt event.SystemEvent) []event.SystemEvent {
	var out []event.SystemEvent

	switch evt.Kind {
	case event.KindBleConnected:
		m.bleEnabled = true
		if m.State == BleDisabled {
			m.setState(BleEnabled, &out)
		}
	case event.KindBleDisconnected:
		m.bleEnabled = false
		m.scaleConnected = false
		if m.State != SystemDisabled {
			if m.State == Brewing || m.State == Settling {
				out = append(out, event.RelayOff())
			}
			m.setState(BleDisabled, &out)
		}
	}
	return out
}

// --- Scale ----------------------------------------------------------------

func (m *Machine) handleScale(evt event.SystemEvent, now time.Time) []event.SystemEvent {
	switch evt.Kind {
	case event.KindScaleConnected:
		return m.onScaleConnected()
	case event.KindScaleDisconnected:
		return m.onScaleDisconnected()
	case event.KindWeightChanged:
		return m.onSample(evt.Sample, now)
	case event.KindTimerStarted, event.KindTimerStopped, event.KindTimerReset:
		return m.onTimerEdge(evt, now)
	default:
		return nil
	}
}

func (m *Machine) onScaleConnected() []event.SystemEvent {
	var out []event.SystemEvent
	m.scaleConnected = true
	if isConnectivity(m.State) {
		m.setState(Idle, &out)
	}
	return out
}

func (m *Machine) onScaleDisconnected() []event.SystemEvent {
	var out []event.SystemEvent
	m.scaleConnected = false
	if m.State == SystemDisabled {
		return out
	}
	if m.State == Brewing || m.State == Settling {
		out = append(out, event.RelayOff())
	}
	m.setState(ScaleDisconnected, &out)
	return out
}

func (m *Machine) onSample(s event.ScaleSample, now time.Time) []event.SystemEvent {
	m.lastSample = s
	m.haveLastSample = true

	var out []event.SystemEvent
	switch m.State {
	case Idle:
		out = append(out, event.DisplayUpdate(s))
		if m.cfg.AutoTareEnabled {
			r := m.autoTare.Evaluate(s.WeightG, now)
			if r.SubStateChanged {
				out = append(out, event.AutoTareStateChanged(r.FromSub.String(), r.ToSub.String()))
			}
			if r.Tare {
				out = append(out, autotare.ToTareEvent()...)
			}
		}
	case Brewing:
		out = append(out, m.processBrewingSample(s, now)...)
	}
	return out
}

func (m *Machine) processBrewingSample(s event.ScaleSample, now time.Time) []event.SystemEvent {
	var out []event.SystemEvent

	if m.overshoot.ShouldMeasure(s.FlowRateGPerS) {
		m.overshoot.RecordOvershoot(s.WeightG, m.cfg.TargetWeight)
	}

	if m.cfg.PredictiveStopEnabled && m.haveBrewStart {
		elapsedS := float64(s.TimestampMs-m.brewStartTimestampMs) / 1000.0
		if predictedWeight, ok := m.overshoot.ShouldTrigger(elapsedS, s.FlowRateGPerS, s.WeightG, m.cfg.TargetWeight); ok {
			timeToTarget := (m.cfg.TargetWeight - s.WeightG) / s.FlowRateGPerS
			if evt, scheduled := m.overshoot.Schedule(now, timeToTarget, predictedWeight); scheduled {
				out = append(out, evt)
			}
		}
	}

	out = append(out, m.checkStopConditions(s.WeightG, now)...)
	return out
}

// checkStopConditions evaluates whether Brewing should end, either because
// a predicted stop time has arrived or because the target weight has
// already been reached.
func (m *Machine) checkStopConditions(weight float64, now time.Time) []event.SystemEvent {
	if m.State != Brewing {
		return nil
	}

	stop := weight >= m.cfg.TargetWeight
	if pendingTime, ok := m.overshoot.PendingStopTime(); ok && !now.Before(pendingTime) {
		stop = true
	}
	if !stop {
		return nil
	}
	m.overshoot.ClearPendingStop()

	var out []event.SystemEvent
	out = append(out, event.SendScaleCommand(event.CmdStopTimer), event.RelayOff())
	m.beginSettling(now, &out)
	return out
}

func (m *Machine) onTimerEdge(evt event.SystemEvent, now time.Time) []event.SystemEvent {
	var out []event.SystemEvent

	switch m.State {
	case Idle, Settling:
		if evt.Kind == event.KindTimerStarted {
			m.brewStartTimestampMs = evt.TimestampMs
			m.haveBrewStart = true
			out = append(out, event.RelayOn())
			m.setState(Brewing, &out)
			out = append(out, event.BrewStarted())
		}
	case Brewing:
		if evt.Kind == event.KindTimerStopped || evt.Kind == event.KindTimerReset {
			m.overshoot.ClearPendingStop()
			out = append(out, event.RelayOff())
			m.beginSettling(now, &out)
		}
	}
	return out
}

func (m *Machine) beginSettling(now time.Time, out *[]event.SystemEvent) {
	m.settlingDeadline = now.Add(settlingTimeout)
	m.haveSettlingDeadline = true
	m.setState(Settling, out)
}

// --- Time -----------------------------------------------------------------

func (m *Machine) handleTime(evt event.SystemEvent, now time.Time) []event.SystemEvent {
	switch evt.Kind {
	case event.KindTick:
		return m.onTick(now)
	case event.KindSettlingTimeout:
		if m.State == Settling {
			return m.finishBrew(now)
		}
	}
	return nil
}

func (m *Machine) onTick(now time.Time) []event.SystemEvent {
	var out []event.SystemEvent
	if m.State == Brewing && m.haveLastSample {
		out = append(out, m.checkStopConditions(m.lastSample.WeightG, now)...)
	}
	if m.State == Settling && m.haveSettlingDeadline && !now.Before(m.settlingDeadline) {
		out = append(out, m.finishBrew(now)...)
	}
	return out
}

func (m *Machine) finishBrew(now time.Time) []event.SystemEvent {
	var out []event.SystemEvent
	out = append(out, event.BrewFinished())
	m.autoTare.NotifyBrewFinished(now)
	m.overshoot.NotifyBrewFinished()
	m.haveBrewStart = false
	m.haveSettlingDeadline = false
	m.setState(Idle, &out)
	return out
}

// --- Safety -----------------------------------------------------------------

func (m *Machine) handleSafety(evt event.SystemEvent, now time.Time) []event.SystemEvent {
	if evt.Kind == event.KindEmergencyStop {
		return m.emergencyStop(now)
	}
	return nil
}

func (m *Machine) emergencyStop(now time.Time) []event.SystemEvent {
	var out []event.SystemEvent
	out = append(out, event.RelayOff())
	if m.State == Brewing || m.State == Settling {
		m.overshoot.ClearPendingStop()
		m.haveBrewStart = false
		m.haveSettlingDeadline = false
		m.setState(Idle, &out)
	}
	return out
}
