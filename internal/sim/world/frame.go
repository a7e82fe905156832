package world

import "time"

// FrameContext carries per-frame timing into the world. The world never
// reads the wall clock for streaming decisions; everything comes from here.
type FrameContext struct {
	Frame uint64
	Now   time.Time
	Delta time.Duration
}

// FrameClock produces successive FrameContexts.
type FrameClock struct {
	now   func() time.Time
	frame uint64
	last  time.Time
}

// NewFrameClock uses now as its time source; nil means time.Now.
func NewFrameClock(now func() time.Time) *FrameClock {
	if now == nil {
		now = time.Now
	}
	return &FrameClock{now: now}
}

// Next samples the time source. The first frame has zero Delta.
func (c *FrameClock) Next() FrameContext {
	t := c.now()
	var d time.Duration
	if !c.last.IsZero() {
		d = t.Sub(c.last)
	}
	c.last = t
	c.frame++
	return FrameContext{Frame: c.frame, Now: t, Delta: d}
}

// Step advances by exactly d without consulting the time source after the
// first frame. Used for fixed-step replay and tests.
func (c *FrameClock) Step(d time.Duration) FrameContext {
	if c.last.IsZero() {
		c.last = c.now()
	} else {
		c.last = c.last.Add(d)
	}
	c.frame++
	return FrameContext{Frame: c.frame, Now: c.last, Delta: d}
}
