// Package autotare implements the four-state stability machine that
// watches every sample while the brew state machine is Idle and decides
// when to emit a TareScale hardware event.
package autotare

import (
	"time"

	"brewcore/event"
	"brewcore/x/mathx"
	"brewcore/x/ring"
)

// SubState is the auto-tare sub-state machine's state.
type SubState int

const (
	Empty SubState = iota
	Loading
	StableObject
	Unloading
)

func (s SubState) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Loading:
		return "Loading"
	case StableObject:
		return "StableObject"
	case Unloading:
		return "Unloading"
	default:
		return "Unknown"
	}
}

// Tunables, fixed.
const (
	emptyThreshold       = 2.0 // g, inclusive
	stableReadingsNeeded = 5
	stabilityRange       = 0.5 // g
	cooldown             = 2 * time.Second
	postBrewCooldown     = 10 * time.Second
	historyCapacity      = 10
	cupSwapDelta         = 10.0 // g
	unloadingDelta       = 5.0  // g, moving average of last 3
)

// Context is the auto-tare controller's owned state. The brew state
// machine exclusively owns one instance per scale; nothing is shared by
// mutable reference.
type Context struct {
	Sub          SubState
	StableWeight float64

	history      *ring.Buffer[float64]
	lastTareTime time.Time
	haveLastTare bool

	brewingCooldownUntil time.Time
	haveBrewCooldown     bool
}

// New returns a Context ready for use, starting in Empty.
func New() *Context {
	return &Context{Sub: Empty, history: ring.New[float64](historyCapacity)}
}

// Output is what a single Evaluate call produced: at most one TareScale,
// and an optional sub-state transition notice.
type Output struct {
	Tare            bool
	SubStateChanged bool
	FromSub, ToSub  SubState
}

// NotifyBrewFinished starts the post-brew cooldown window so residual puck
// drip doesn't re-tare the just-brewed cup, called once when the brew
// state machine transitions Settling -> Idle.
func (c *Context) NotifyBrewFinished(now time.Time) {
	c.brewingCooldownUntil = now.Add(postBrewCooldown)
	c.haveBrewCooldown = true
}

// Evaluate runs the stability machine over one sample. now should be the
// monotonic instant associated with the sample; the caller only drives
// this while the brew state machine is Idle.
func (c *Context) Evaluate(weight float64, now time.Time) Output {
	c.history.Push(weight)
	stable, empty := c.isStable(), c.isEmpty(weight)

	from := c.Sub
	out := Output{}

	switch c.Sub {
	case Empty:
		if !empty && stable {
			c.transition(StableObject, weight, now, &out)
			out.Tare = c.maybeTare(now)
		} else if !empty && !stable {
			c.Sub = Loading
		}

	case Loading:
		if stable && empty {
			c.Sub = Empty
		} else if stable && !empty {
			c.transition(StableObject, weight, now, &out)
			out.Tare = c.maybeTare(now)
		}

	case StableObject:
		switch {
		case empty && stable:
			c.Sub = Empty
		case stable && mathx.Abs(weight-c.StableWeight) > cupSwapDelta:
			// Cup swap re-detection: go to Empty without tare; the next
			// Empty -> StableObject transition will tare.
			c.Sub = Empty
		case !stable && c.movingAvgDeviates():
			c.Sub = Unloading
		}

	case Unloading:
		if stable && empty {
			c.Sub = Empty
		} else if stable && !empty {
			c.transition(StableObject, weight, now, &out)
			out.Tare = c.maybeTare(now)
		}
	}

	if c.Sub != from {
		out.SubStateChanged = true
		out.FromSub, out.ToSub = from, c.Sub
	}
	return out
}

func (c *Context) transition(to SubState, weight float64, now time.Time, out *Output) {
	c.Sub = to
	c.StableWeight = weight
}

// maybeTare applies the cooldown invariants and,
// if clear, records this instant as the last tare time and reports a
// tare should be emitted.
func (c *Context) maybeTare(now time.Time) bool {
	if c.haveLastTare && now.Sub(c.lastTareTime) < cooldown {
		return false
	}
	if c.haveBrewCooldown && now.Before(c.brewingCooldownUntil) {
		return false
	}
	c.lastTareTime = now
	c.haveLastTare = true
	return true
}

func (c *Context) isEmpty(weight float64) bool {
	return mathx.Abs(weight) <= emptyThreshold
}

// isStable reports whether the last 5 samples' range is <= 0.5 g, given at
// least 5 samples buffered.
func (c *Context) isStable() bool {
	if c.history.Len() < stableReadingsNeeded {
		return false
	}
	lo, hi := recentRange(c.history, stableReadingsNeeded)
	return hi-lo <= stabilityRange
}

func (c *Context) movingAvgDeviates() bool {
	n := mathx.Min(3, c.history.Len())
	if n == 0 {
		return false
	}
	sum := 0.0
	for i := c.history.Len() - n; i < c.history.Len(); i++ {
		sum += c.history.At(i)
	}
	avg := sum / float64(n)
	return mathx.Abs(avg-c.StableWeight) > unloadingDelta
}

func recentRange(h *ring.Buffer[float64], n int) (lo, hi float64) {
	start := h.Len() - n
	lo, hi = h.At(start), h.At(start)
	for i := start + 1; i < h.Len(); i++ {
		v := h.At(i)
		lo = mathx.Min(lo, v)
		hi = mathx.Max(hi, v)
	}
	return lo, hi
}

// ToTareEvent converts a tare decision into the bus events it should
// become: a Hardware.SendScaleCommand plus a Brew.AutoTareTriggered notice.
func ToTareEvent() []event.SystemEvent {
	return []event.SystemEvent{
		event.AutoTareTriggered(),
		event.SendScaleCommand(event.CmdTare),
	}
}
