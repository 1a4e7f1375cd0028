package autotare

import (
	"testing"
	"time"
)

func feed(c *Context, weights []float64, start time.Time, step time.Duration) []Output {
	outs := make([]Output, len(weights))
	t := start
	for i, w := range weights {
		outs[i] = c.Evaluate(w, t)
		t = t.Add(step)
	}
	return outs
}

func TestEmptyThresholdInclusive(t *testing.T) {
	c := New()
	now := time.Now()
	if !c.isEmpty(2.0) {
		t.Error("2.0 g should be treated as empty (threshold is inclusive)")
	}
	if c.isEmpty(2.01) {
		t.Error("2.01 g should be treated as present")
	}
	_ = now
}

func TestPlacingObjectEmitsOneTare(t *testing.T) {
	c := New()
	now := time.Now()
	// 5 stable samples at 0 g (empty), then 5 stable samples at 250 g.
	weights := []float64{0, 0, 0, 0, 0, 250, 250.1, 249.9, 250.0, 250.1}
	outs := feed(c, weights, now, 100*time.Millisecond)

	tares := 0
	for _, o := range outs {
		if o.Tare {
			tares++
		}
	}
	if tares != 1 {
		t.Fatalf("expected exactly 1 tare, got %d", tares)
	}
	if c.Sub != StableObject {
		t.Fatalf("expected StableObject, got %v", c.Sub)
	}
}

func TestRemovingObjectNeverTares(t *testing.T) {
	c := New()
	now := time.Now()
	weights := []float64{
		0, 0, 0, 0, 0, // empty
		250, 250, 250, 250, 250, // placed -> tare
		0, 0, 0, 0, 0, // removed
	}
	outs := feed(c, weights, now, 100*time.Millisecond)
	for i, o := range outs[10:] {
		if o.Tare {
			t.Fatalf("removing the object must never tare (index %d)", i+10)
		}
	}
	if c.Sub != Empty {
		t.Fatalf("expected Empty after removal, got %v", c.Sub)
	}
}

func TestCupSwapTaresOnceNewCupIsStable(t *testing.T) {
	c := New()
	now := time.Now()
	// Settle on a 250 g cup.
	feed(c, []float64{0, 0, 0, 0, 0, 250, 250, 250, 250, 250}, now, 100*time.Millisecond)
	if c.Sub != StableObject || c.StableWeight != 250 {
		t.Fatalf("setup failed: sub=%v weight=%v", c.Sub, c.StableWeight)
	}

	// Swap to a 310 g cup well after the standard cooldown has cleared:
	// the deviation is detected, then the new stable object is
	// recognised and exactly one tare follows.
	t2 := now.Add(4 * time.Second)
	swapOuts := feed(c, []float64{310, 310, 310, 310, 310}, t2, 100*time.Millisecond)

	tares := 0
	for _, o := range swapOuts {
		if o.Tare {
			tares++
		}
	}
	if tares != 1 {
		t.Fatalf("expected exactly 1 tare after cup swap settles, got %d", tares)
	}
	if c.Sub != StableObject || c.StableWeight != 310 {
		t.Fatalf("expected StableObject at 310g, got sub=%v weight=%v", c.Sub, c.StableWeight)
	}
}

func TestCooldownSuppressesSecondTare(t *testing.T) {
	c := New()
	now := time.Now()
	feed(c, []float64{0, 0, 0, 0, 0, 100, 100, 100, 100, 100}, now, 100*time.Millisecond)

	// Swap again shortly after, still within the 2s cooldown window.
	t2 := now.Add(1 * time.Second)
	outs := feed(c, []float64{200, 200, 200, 200, 200}, t2, 50*time.Millisecond)
	for _, o := range outs {
		if o.Tare {
			t.Fatal("expected cooldown to suppress a tare within 2s of the previous one")
		}
	}
}

func TestPostBrewCooldownSuppressesTare(t *testing.T) {
	c := New()
	now := time.Now()
	c.NotifyBrewFinished(now)

	outs := feed(c, []float64{0, 0, 0, 0, 0, 100, 100, 100, 100, 100}, now.Add(time.Second), 100*time.Millisecond)
	for _, o := range outs {
		if o.Tare {
			t.Fatal("expected the 10s post-brew cooldown to suppress the tare")
		}
	}
}
