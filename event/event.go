// Package event defines the SystemEvent sum type that flows across
// brewcore's event bus. Every hardware action and every input is a value
// of this type — business logic never calls hardware directly, it only
// produces events for the dispatcher to act on.
package event

import "time"

// Category tags which arm of the SystemEvent union a value belongs to.
type Category int

const (
	CategoryScale Category = iota
	CategoryBrew
	CategoryUser
	CategoryTime
	CategorySafety
	CategoryHardware
	CategoryNetwork
)

func (c Category) String() string {
	switch c {
	case CategoryScale:
		return "Scale"
	case CategoryBrew:
		return "Brew"
	case CategoryUser:
		return "User"
	case CategoryTime:
		return "Time"
	case CategorySafety:
		return "Safety"
	case CategoryHardware:
		return "Hardware"
	case CategoryNetwork:
		return "Network"
	default:
		return "Unknown"
	}
}

// Kind identifies a specific variant within a Category. All Kind values
// come from one sequence and are distinct across categories, so a Kind
// alone identifies the variant; the SystemEvent.Category field names the
// arm it belongs to.
type Kind int

const (
	// Scale
	KindWeightChanged Kind = iota
	KindScaleConnected
	KindScaleDisconnected
	KindButtonPressed
	KindTimerStarted
	KindTimerStopped
	KindTimerReset

	// Brew
	KindStateChanged
	KindBrewStarted
	KindTargetReached
	KindPredictiveStopTriggered
	KindBrewFinished
	KindAutoTareTriggered
	KindAutoTareStateChanged

	// User
	KindSetTargetWeight
	KindSetAutoTare
	KindSetPredictiveStop
	KindTareScaleCmd
	KindStartBrewing
	KindStopBrewing
	KindResetTimer
	KindTestRelay
	KindResetOvershoot
	KindEmergencyStopCmd
	KindEnableSystem
	KindDisableSystem

	// Time
	KindTick
	KindSettlingTimeout
	KindTimeout

	// Safety
	KindEmergencyStop
	KindSystemAlert

	// Hardware
	KindRelayOn
	KindRelayOff
	KindSendScaleCommand
	KindDisplayUpdate
	KindDisplayAlert

	// Network
	KindWifiConnected
	KindWifiDisconnected
	KindBleConnected
	KindBleDisconnected
)

// ScaleCommand is an outbound 6-byte command.
type ScaleCommand int

const (
	CmdTare ScaleCommand = iota
	CmdStartTimer
	CmdStopTimer
	CmdResetTimer
)

func (c ScaleCommand) String() string {
	switch c {
	case CmdTare:
		return "Tare"
	case CmdStartTimer:
		return "StartTimer"
	case CmdStopTimer:
		return "StopTimer"
	case CmdResetTimer:
		return "ResetTimer"
	default:
		return "Unknown"
	}
}

// AlertLevel grades a Safety.SystemAlert.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertCritical
)

// ScaleSample is produced by the decoder and consumed by the detector,
// the state machine, and the safety watchdog.
type ScaleSample struct {
	TimestampMs    uint32
	WeightG        float64
	FlowRateGPerS  float64
	BatteryPercent uint8
	TimerRunning   bool
	ReceivedAt     time.Time
}

// SystemEvent is the single sum type carried on the bus. Only the field
// matching Category/Kind is meaningful; all others are zero.
type SystemEvent struct {
	Category Category
	Kind     Kind

	// Scale.WeightChanged
	Sample ScaleSample

	// Scale.TimerStarted
	TimestampMs uint32

	// Brew.StateChanged
	From, To string

	// Brew.PredictiveStopTriggered
	DelayMs         int64
	PredictedWeight float64

	// User.SetTargetWeight
	TargetWeight float64
	// User.SetAutoTare / User.SetPredictiveStop
	Enabled bool

	// Time.Timeout
	TimeoutID string

	// Safety.EmergencyStop / Safety.SystemAlert
	Reason  string
	Level   AlertLevel
	Message string

	// Hardware.SendScaleCommand
	Command ScaleCommand

	// Hardware.DisplayUpdate / DisplayAlert — opaque payload for the
	// out-of-scope display collaborator.
	DisplayPayload any
}

// --- constructors -----------------------------------------------------

func WeightChanged(s ScaleSample) SystemEvent {
	return SystemEvent{Category: CategoryScale, Kind: KindWeightChanged, Sample: s}
}

func ScaleConnected() SystemEvent {
	return SystemEvent{Category: CategoryScale, Kind: KindScaleConnected}
}

func ScaleDisconnected() SystemEvent {
	return SystemEvent{Category: CategoryScale, Kind: KindScaleDisconnected}
}

func ButtonPressed() SystemEvent {
	return SystemEvent{Category: CategoryScale, Kind: KindButtonPressed}
}

func TimerStarted(ts uint32) SystemEvent {
	return SystemEvent{Category: CategoryScale, Kind: KindTimerStarted, TimestampMs: ts}
}

func TimerStopped() SystemEvent {
	return SystemEvent{Category: CategoryScale, Kind: KindTimerStopped}
}

func TimerReset() SystemEvent {
	return SystemEvent{Category: CategoryScale, Kind: KindTimerReset}
}

func StateChanged(from, to string) SystemEvent {
	return SystemEvent{Category: CategoryBrew, Kind: KindStateChanged, From: from, To: to}
}

func BrewStarted() SystemEvent {
	return SystemEvent{Category: CategoryBrew, Kind: KindBrewStarted}
}

func TargetReached() SystemEvent {
	return SystemEvent{Category: CategoryBrew, Kind: KindTargetReached}
}

func PredictiveStopTriggered(delayMs int64, predictedWeight float64) SystemEvent {
	return SystemEvent{
		Category: CategoryBrew, Kind: KindPredictiveStopTriggered,
		DelayMs: delayMs, PredictedWeight: predictedWeight,
	}
}

func BrewFinished() SystemEvent {
	return SystemEvent{Category: CategoryBrew, Kind: KindBrewFinished}
}

func AutoTareTriggered() SystemEvent {
	return SystemEvent{Category: CategoryBrew, Kind: KindAutoTareTriggered}
}

func AutoTareStateChanged(from, to string) SystemEvent {
	return SystemEvent{Category: CategoryBrew, Kind: KindAutoTareStateChanged, From: from, To: to}
}

func SetTargetWeight(w float64) SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindSetTargetWeight, TargetWeight: w}
}

func SetAutoTare(enabled bool) SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindSetAutoTare, Enabled: enabled}
}

func SetPredictiveStop(enabled bool) SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindSetPredictiveStop, Enabled: enabled}
}

func TareScaleCmd() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindTareScaleCmd}
}

func StartBrewing() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindStartBrewing}
}

func StopBrewing() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindStopBrewing}
}

func ResetTimer() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindResetTimer}
}

func TestRelay() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindTestRelay}
}

func ResetOvershoot() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindResetOvershoot}
}

func EmergencyStopCmd() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindEmergencyStopCmd}
}

func EnableSystem() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindEnableSystem}
}

func DisableSystem() SystemEvent {
	return SystemEvent{Category: CategoryUser, Kind: KindDisableSystem}
}

func Tick() SystemEvent {
	return SystemEvent{Category: CategoryTime, Kind: KindTick}
}

func SettlingTimeout() SystemEvent {
	return SystemEvent{Category: CategoryTime, Kind: KindSettlingTimeout}
}

func Timeout(id string) SystemEvent {
	return SystemEvent{Category: CategoryTime, Kind: KindTimeout, TimeoutID: id}
}

func EmergencyStop(reason string) SystemEvent {
	return SystemEvent{Category: CategorySafety, Kind: KindEmergencyStop, Reason: reason}
}

func SystemAlert(level AlertLevel, message string) SystemEvent {
	return SystemEvent{Category: CategorySafety, Kind: KindSystemAlert, Level: level, Message: message}
}

func RelayOn() SystemEvent {
	return SystemEvent{Category: CategoryHardware, Kind: KindRelayOn}
}

func RelayOff() SystemEvent {
	return SystemEvent{Category: CategoryHardware, Kind: KindRelayOff}
}

func SendScaleCommand(cmd ScaleCommand) SystemEvent {
	return SystemEvent{Category: CategoryHardware, Kind: KindSendScaleCommand, Command: cmd}
}

func DisplayUpdate(payload any) SystemEvent {
	return SystemEvent{Category: CategoryHardware, Kind: KindDisplayUpdate, DisplayPayload: payload}
}

func DisplayAlert(payload any) SystemEvent {
	return SystemEvent{Category: CategoryHardware, Kind: KindDisplayAlert, DisplayPayload: payload}
}

func WifiConnected() SystemEvent {
	return SystemEvent{Category: CategoryNetwork, Kind: KindWifiConnected}
}

func WifiDisconnected() SystemEvent {
	return SystemEvent{Category: CategoryNetwork, Kind: KindWifiDisconnected}
}

func BleConnected() SystemEvent {
	return SystemEvent{Category: CategoryNetwork, Kind: KindBleConnected}
}

func BleDisconnected() SystemEvent {
	return SystemEvent{Category: CategoryNetwork, Kind: KindBleDisconnected}
}
