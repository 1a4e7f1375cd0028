package hardware

import "brewcore/event"

// BLE identifiers for the target scale (§6), exported so the out-of-scope
// transport and brewcore's fixtures agree on them without brewcore
// importing a BLE stack.
const (
	ScaleNamePrefix    = "BOOKOO_SC"
	ScaleServiceUUID16 = 0x0FFE
	ScaleServiceUUID   = "0000ffe0-0000-1000-8000-00805f9b34fb"
	ScaleNotifyChar16  = 0xFF11
	ScaleCommandChar16 = 0xFF12
)

// ScaleCommandWriter is the outbound half of the scale I/O task: it hands
// an encoded command frame to the BLE characteristic write. A write
// failure is a transport error (§7) and should be reported to the safety
// watchdog through event.ScaleDisconnected / a reported error, not
// returned to business logic.
type ScaleCommandWriter interface {
	Write(cmd event.ScaleCommand) error
}

// Display is the OLED collaborator: it renders the live brewing status and
// transient alerts. Both methods take the opaque payload carried on
// Hardware.DisplayUpdate / Hardware.DisplayAlert.
type Display interface {
	Update(payload any)
	Alert(payload any)
}
