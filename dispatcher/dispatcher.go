// Package dispatcher owns the single task that ties the event bus, the
// brew state machine, and the hardware collaborators together: the same
// "one task, one select loop" shape the teacher's main dispatch loop uses,
// generalised from a fixed device tree to the brew domain.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"brewcore/brew"
	"brewcore/bus"
	"brewcore/detector"
	"brewcore/event"
	"brewcore/hardware"
	"brewcore/protocol"
	"brewcore/safety"
	"brewcore/x/logx"
	"brewcore/x/timex"
)

// tickInterval is the dispatcher's clock period: it drives both the brew
// machine's Time.Tick input and the safety watchdog's Check, expressed as
// the teacher's x/timex does for its own periodic tasks — a frequency in
// Hz converted to a duration, rather than a bare millisecond literal.
var tickInterval = time.Duration(timex.PeriodFromHz(10))

// Snapshot is a point-in-time, copyable view of dispatcher state for
// out-of-scope status reporting (a web UI, a CLI "status" command). It is
// always a value copy, never a reference into live state.
type Snapshot struct {
	State                 string
	TargetWeight          float64
	AutoTareEnabled       bool
	PredictiveStopEnabled bool
	BleEnabled            bool
	ScaleConnected        bool
	HaveSample            bool
	LastWeight            float64
	LastFlow              float64
	LastSampleAt          time.Time
}

// Dispatcher is the sole owner of one brew.Machine and one safety.Watchdog.
// It never holds a reference to the bus subscription outside Run; readers
// outside the dispatcher only ever see a Snapshot.
type Dispatcher struct {
	busInst *bus.Bus
	machine *brew.Machine
	watch   *safety.Watchdog
	relay   *hardware.Relay
	scale   hardware.ScaleCommandWriter
	display hardware.Display
	log     *logx.Logger
	detect  *detector.Detector

	lastFlow     float64
	haveSample   bool
	lastWeight   float64
	lastSampleAt time.Time

	mu       sync.Mutex
	snapshot Snapshot
}

// New returns a Dispatcher. scale and display may be nil in configurations
// without those collaborators (e.g. a test harness with no display).
func New(b *bus.Bus, m *brew.Machine, w *safety.Watchdog, relay *hardware.Relay, scale hardware.ScaleCommandWriter, display hardware.Display, log *logx.Logger) *Dispatcher {
	d := &Dispatcher{
		busInst: b,
		machine: m,
		watch:   w,
		relay:   relay,
		scale:   scale,
		display: display,
		log:     log,
		detect:  detector.New(),
	}
	d.refreshSnapshot()
	return d
}

// IngestScaleNotification decodes one raw BLE notification from the scale
// and publishes the resulting Scale.WeightChanged plus whatever edge
// events the detector infers from it (timer start/stop/reset, button
// presses). This is the hook the out-of-scope BLE notify handler calls on
// every packet; brewcore owns decode and inference, not the transport.
func (d *Dispatcher) IngestScaleNotification(raw []byte) {
	s, ok := protocol.DecodeFrameLogged(raw, d.log)
	if !ok {
		return
	}
	d.busInst.Publish(event.WeightChanged(s))
	for _, evt := range d.detect.Evaluate(s) {
		d.busInst.Publish(evt)
	}
}

// Snapshot returns a copy of the dispatcher's last-known state, safe to
// read concurrently with Run.
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// Run drives the dispatcher's event loop until ctx is cancelled. It owns
// the bus subscription for its entire lifetime and forces the relay low
// on exit regardless of brew state, mirroring the teacher's
// never-leave-an-output-asserted shutdown discipline.
func (d *Dispatcher) Run(ctx context.Context) {
	sub := d.busInst.Subscribe(nil)
	defer sub.Unsubscribe()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.relay.ForceLow("dispatcher context cancelled")
			return
		case evt := <-sub.Channel():
			d.process(evt, time.Now())
		case <-ticker.C:
			now := time.Now()
			if stopEvt, tripped := d.watch.Check(now); tripped {
				d.relay.ForceLow(stopEvt.Reason)
				d.busInst.Publish(stopEvt)
			}
			d.process(event.Tick(), now)
		}
	}
}

// process classifies one event per §4.8: Hardware.* goes straight to the
// hardware handler, everything else is fed to the state machine and its
// outputs are republished onto the bus (where Hardware.* outputs loop back
// through this same method on their next delivery, and Brew.* outputs are
// left for any other subscriber — a display task, a logger — to observe).
func (d *Dispatcher) process(evt event.SystemEvent, now time.Time) {
	d.watch.Observe(evt, now)
	d.observeSample(evt, now)

	if evt.Category == event.CategoryHardware {
		d.handleHardware(evt, now)
		return
	}

	if d.suppressImpossibleFlowStart(evt) {
		d.busInst.Publish(event.SystemAlert(event.AlertWarning, "timer start suppressed: impossible flow reading"))
		return
	}

	outs := d.machine.Handle(evt, now)
	for _, o := range outs {
		d.busInst.Publish(o)
	}
	d.refreshSnapshot()
}

// suppressImpossibleFlowStart is the rising-edge half of the scale
// power-down heuristic: a timer-start carrying a flow reading the scale
// cannot physically produce is withheld from the state machine entirely,
// so no RelayOn is ever emitted for it. safety.ScalePowerDownFalsePositive
// covers the matching BLE-disconnect-in-the-following-window half.
func (d *Dispatcher) suppressImpossibleFlowStart(evt event.SystemEvent) bool {
	if evt.Category != event.CategoryScale || evt.Kind != event.KindTimerStarted {
		return false
	}
	if !safety.ImpossibleFlow(d.lastFlow) {
		return false
	}
	if d.log != nil {
		d.log.Warn("dispatcher", "withheld timer start: impossible flow reading")
	}
	return true
}

func (d *Dispatcher) observeSample(evt event.SystemEvent, now time.Time) {
	if evt.Category != event.CategoryScale || evt.Kind != event.KindWeightChanged {
		return
	}
	d.lastFlow = evt.Sample.FlowRateGPerS
	d.lastWeight = evt.Sample.WeightG
	d.lastSampleAt = now
	d.haveSample = true
}

func (d *Dispatcher) handleHardware(evt event.SystemEvent, now time.Time) {
	switch evt.Kind {
	case event.KindRelayOn:
		if err := d.relay.On(); err != nil {
			d.escalateResourceError("relay write failed: "+err.Error(), now)
		}
	case event.KindRelayOff:
		if err := d.relay.Off(); err != nil {
			d.escalateResourceError("relay write failed: "+err.Error(), now)
		}
	case event.KindSendScaleCommand:
		d.writeScaleCommand(evt.Command)
	case event.KindDisplayUpdate:
		if d.display != nil {
			d.display.Update(evt.DisplayPayload)
		}
	case event.KindDisplayAlert:
		if d.display != nil {
			d.display.Alert(evt.DisplayPayload)
		}
	}
}

// escalateResourceError implements §7's resource-error handling: a failed
// relay GPIO write is fed straight to the state machine as an
// EmergencyStop (which takes it out of Brewing/Settling and emits another
// Hardware.RelayOff), on top of the direct synchronous ForceLow bypass —
// belt and braces, since the write that just failed might fail again.
func (d *Dispatcher) escalateResourceError(reason string, now time.Time) {
	if d.log != nil {
		d.log.Error("dispatcher", reason)
	}
	d.relay.ForceLow(reason)
	d.watch.ReportError(reason)
	outs := d.machine.Handle(event.EmergencyStop(reason), now)
	for _, o := range outs {
		d.busInst.Publish(o)
	}
	d.refreshSnapshot()
}

func (d *Dispatcher) writeScaleCommand(cmd event.ScaleCommand) {
	if d.scale == nil {
		return
	}
	if err := d.scale.Write(cmd); err != nil {
		if d.log != nil {
			d.log.Warn("dispatcher", "scale command write failed: "+err.Error())
		}
		// A write failure is a transport error (§7): treat it the same as
		// a BLE disconnect rather than an emergency stop.
		d.busInst.Publish(event.ScaleDisconnected())
	}
}

func (d *Dispatcher) refreshSnapshot() {
	cfg := d.machine.Config()
	d.mu.Lock()
	d.snapshot = Snapshot{
		State:                 d.machine.State.String(),
		TargetWeight:          cfg.TargetWeight,
		AutoTareEnabled:       cfg.AutoTareEnabled,
		PredictiveStopEnabled: cfg.PredictiveStopEnabled,
		BleEnabled:            d.machine.BleEnabled(),
		ScaleConnected:        d.machine.ScaleConnected(),
		HaveSample:            d.haveSample,
		LastWeight:            d.lastWeight,
		LastFlow:              d.lastFlow,
		LastSampleAt:          d.lastSampleAt,
	}
	d.mu.Unlock()
}
