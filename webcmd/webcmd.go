// Package webcmd decodes the JSON command object the out-of-scope HTTP
// server hands brewcore (§6) into the matching User.* bus event. The
// transport, routing, and response shape are all out of scope; this
// package only covers turning raw bytes into one event.SystemEvent.
package webcmd

import (
	"github.com/andreyvit/tinyjson"

	"brewcore/errcode"
	"brewcore/event"
)

// Decode parses a {"type": <tag>, ...fields} document and returns the
// matching User.* event, or an errcode.Code error if the type tag is
// missing, unrecognised, or a required field is the wrong shape.
func Decode(raw []byte) (event.SystemEvent, error) {
	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return event.SystemEvent{}, errcode.InvalidPayload
	}

	tag, ok := m["type"].(string)
	if !ok {
		return event.SystemEvent{}, errcode.InvalidPayload
	}

	switch tag {
	case "set_target_weight":
		w, ok := m["weight"].(float64)
		if !ok {
			return event.SystemEvent{}, errcode.InvalidParams
		}
		return event.SetTargetWeight(w), nil
	case "set_auto_tare":
		b, ok := m["enabled"].(bool)
		if !ok {
			return event.SystemEvent{}, errcode.InvalidParams
		}
		return event.SetAutoTare(b), nil
	case "set_predictive_stop":
		b, ok := m["enabled"].(bool)
		if !ok {
			return event.SystemEvent{}, errcode.InvalidParams
		}
		return event.SetPredictiveStop(b), nil
	case "tare_scale":
		return event.TareScaleCmd(), nil
	case "start_timer":
		return event.StartBrewing(), nil
	case "stop_timer":
		return event.StopBrewing(), nil
	case "reset_timer":
		return event.ResetTimer(), nil
	case "reset_overshoot":
		return event.ResetOvershoot(), nil
	case "test_relay":
		return event.TestRelay(), nil
	default:
		return event.SystemEvent{}, errcode.InvalidPayload
	}
}
