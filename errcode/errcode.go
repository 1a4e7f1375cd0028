package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	Timeout        Code = "timeout"

	// Decode error: malformed or checksum-failed scale frame.
	// Local only — dropped with a warn, never advances state.
	DecodeError Code = "decode_error"

	// Transport error: BLE disconnection or scale write failure.
	// Surfaced as Scale.Disconnected / Network.BleDisconnected.
	Transport Code = "transport_error"

	// Resource error: relay GPIO write failed. Escalates
	// immediately to Safety.EmergencyStop.
	ResourceError Code = "resource_error"

	// Invariant error: data watchdog timeout or scale shutdown
	// pattern. Handled the same as ResourceError.
	Invariant Code = "invariant_error"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code.
// Extend the heuristics per platform/driver.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	return Error
}
