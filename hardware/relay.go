// Package hardware defines the Go interfaces brewcore's out-of-scope
// drivers satisfy: the relay GPIO pin, the scale's BLE command/notification
// channel, and the OLED display. brewcore only ever talks to these
// interfaces from the dispatcher — business logic never imports this
// package.
package hardware

// GPIOPin is the pin-level contract the relay driver is built on, the same
// shape as the teacher's gpio_dout device's handle: configure once, then
// set/read logical levels. Set returns an error so a failed write can be
// escalated as a resource error (§7) rather than silently assumed to have
// taken effect.
type GPIOPin interface {
	ConfigureOutput(level bool) error
	Set(level bool) error
	Get() bool
}

// Relay owns the single digital output that drives the pump solenoid.
// Active-high per §6, but ActiveLow is accepted for board variants the
// same way the teacher's gpio_dout Params does.
type Relay struct {
	pin       GPIOPin
	activeLow bool
	on        bool
}

// NewRelay returns a Relay that has not yet been initialised; call Init
// before relying on IsOn.
func NewRelay(pin GPIOPin, activeLow bool) *Relay {
	return &Relay{pin: pin, activeLow: activeLow}
}

// Init drives the pin low before anything else runs, per §6's cold-boot
// requirement.
func (r *Relay) Init() error {
	r.on = false
	return r.pin.ConfigureOutput(r.electrical(false))
}

// On asserts the relay (through the dispatcher's normal Hardware.RelayOn
// handling). A returned error is a resource error (§7): the caller must
// escalate to Safety.EmergencyStop.
func (r *Relay) On() error { return r.setLogical(true) }

// Off de-asserts the relay.
func (r *Relay) Off() error { return r.setLogical(false) }

// IsOn reports the last commanded logical state.
func (r *Relay) IsOn() bool { return r.on }

// ForceLow is the direct, synchronous emergency path: it bypasses the
// event loop entirely so the pin goes low even if the dispatcher is wedged.
// reason is for the caller's log line; ForceLow itself never logs. Any
// write error is swallowed — this is already the last-resort path, there
// is nothing further to escalate to.
func (r *Relay) ForceLow(reason string) {
	r.on = false
	_ = r.pin.Set(r.electrical(false))
}

func (r *Relay) setLogical(on bool) error {
	r.on = on
	return r.pin.Set(r.electrical(on))
}

func (r *Relay) electrical(on bool) bool {
	if r.activeLow {
		return !on
	}
	return on
}
