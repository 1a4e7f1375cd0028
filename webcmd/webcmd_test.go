package webcmd

import (
	"testing"

	"brewcore/errcode"
	"brewcore/event"
)

func TestDecodeSetTargetWeight(t *testing.T) {
	evt, err := Decode([]byte(`{"type":"set_target_weight","weight":38.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Kind != event.KindSetTargetWeight || evt.TargetWeight != 38.5 {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestDecodeBooleanCommands(t *testing.T) {
	cases := []struct {
		body string
		kind event.Kind
	}{
		{`{"type":"set_auto_tare","enabled":false}`, event.KindSetAutoTare},
		{`{"type":"set_predictive_stop","enabled":true}`, event.KindSetPredictiveStop},
	}
	for _, c := range cases {
		evt, err := Decode([]byte(c.body))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", c.body, err)
		}
		if evt.Kind != c.kind {
			t.Fatalf("expected kind %v, got %v", c.kind, evt.Kind)
		}
	}
}

func TestDecodeNullaryCommands(t *testing.T) {
	cases := []struct {
		body string
		kind event.Kind
	}{
		{`{"type":"tare_scale"}`, event.KindTareScaleCmd},
		{`{"type":"start_timer"}`, event.KindStartBrewing},
		{`{"type":"stop_timer"}`, event.KindStopBrewing},
		{`{"type":"reset_timer"}`, event.KindResetTimer},
		{`{"type":"reset_overshoot"}`, event.KindResetOvershoot},
		{`{"type":"test_relay"}`, event.KindTestRelay},
	}
	for _, c := range cases {
		evt, err := Decode([]byte(c.body))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", c.body, err)
		}
		if evt.Kind != c.kind {
			t.Fatalf("expected kind %v, got %v", c.kind, evt.Kind)
		}
	}
}

func TestDecodeUnknownTypeIsInvalidPayload(t *testing.T) {
	_, err := Decode([]byte(`{"type":"flush_boiler"}`))
	if errcode.Of(err) != errcode.InvalidPayload {
		t.Fatalf("expected InvalidPayload, got %v", err)
	}
}

func TestDecodeMissingWeightIsInvalidParams(t *testing.T) {
	_, err := Decode([]byte(`{"type":"set_target_weight"}`))
	if errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
}

func TestDecodeNotAnObjectIsInvalidPayload(t *testing.T) {
	_, err := Decode([]byte(`"just a string"`))
	if errcode.Of(err) != errcode.InvalidPayload {
		t.Fatalf("expected InvalidPayload, got %v", err)
	}
}
