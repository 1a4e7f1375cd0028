// Package protocol decodes inbound scale BLE notifications and encodes
// outbound scale commands. The decoder never panics and never returns an
// error for a malformed frame — a parse failure is reported only via the
// boolean return, and is logged at warn by the caller.
package protocol

import (
	"encoding/binary"
	"time"

	"brewcore/event"
	"brewcore/x/logx"
)

const (
	frameLen  = 20
	header0   = 0x03
	header1   = 0x0B
	checksumI = frameLen - 1
)

// DecodeFrame parses a 20-byte scale notification. It returns
// the decoded sample and true on success, or a zero sample and false for
// any malformed input: wrong length, bad header, or checksum mismatch.
func DecodeFrame(b []byte) (event.ScaleSample, bool) {
	if len(b) != frameLen {
		return event.ScaleSample{}, false
	}
	if b[0] != header0 || b[1] != header1 {
		return event.ScaleSample{}, false
	}
	if xorChecksum(b[:checksumI]) != b[checksumI] {
		return event.ScaleSample{}, false
	}

	ts := binary.LittleEndian.Uint32(b[2:6])
	weightRaw := int16(binary.LittleEndian.Uint16(b[6:8]))
	flowRaw := int16(binary.LittleEndian.Uint16(b[8:10]))

	return event.ScaleSample{
		TimestampMs:    ts,
		WeightG:        float64(weightRaw) / 100.0,
		FlowRateGPerS:  float64(flowRaw) / 100.0,
		BatteryPercent: b[10],
		TimerRunning:   b[11] != 0,
		ReceivedAt:     time.Now(),
	}, true
}

// DecodeFrameLogged is DecodeFrame plus a warn-level log of why a frame
// was dropped.
func DecodeFrameLogged(b []byte, log *logx.Logger) (event.ScaleSample, bool) {
	s, ok := DecodeFrame(b)
	if !ok && log != nil {
		log.Warn("protocol", "dropped malformed scale frame")
	}
	return s, ok
}

func xorChecksum(b []byte) byte {
	var x byte
	for _, c := range b {
		x ^= c
	}
	return x
}

// Fixed 6-byte outbound command frames. The sixth byte is
// documented as "XOR of the first five", which holds for Tare but not
// for the other three — these are the exact wire bytes the scale
// expects, taken as-is rather than recomputed, since a real device only
// acks these precise sequences.
var commandFrames = map[event.ScaleCommand][6]byte{
	event.CmdTare:       {0x03, 0x0A, 0x01, 0x00, 0x00, 0x08},
	event.CmdStartTimer: {0x03, 0x0A, 0x04, 0x00, 0x00, 0x0A},
	event.CmdStopTimer:  {0x03, 0x0A, 0x05, 0x00, 0x00, 0x0D},
	event.CmdResetTimer: {0x03, 0x0A, 0x06, 0x00, 0x00, 0x0C},
}

// EncodeCommand renders a 6-byte outbound scale command, or
// nil for an unrecognised command.
func EncodeCommand(cmd event.ScaleCommand) []byte {
	frame, ok := commandFrames[cmd]
	if !ok {
		return nil
	}
	out := make([]byte, 6)
	copy(out, frame[:])
	return out
}
