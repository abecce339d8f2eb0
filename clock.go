package meadow

import "time"

// Clock supplies the shared time base for the tween scheduler, the
// performance monitor and the quality manager. Now is monotonic.
type Clock interface {
	Now() time.Duration
}

// FrameClock is a manually advanced clock. The host advances it once per
// update tick; tests advance it explicitly.
type FrameClock struct {
	now time.Duration
}

// NewFrameClock returns a FrameClock starting at zero.
func NewFrameClock() *FrameClock {
	return &FrameClock{}
}

// Now returns the accumulated time.
func (c *FrameClock) Now() time.Duration {
	return c.now
}

// Advance moves the clock forward by dt. Negative values are ignored.
func (c *FrameClock) Advance(dt time.Duration) {
	if dt > 0 {
		c.now += dt
	}
}

// Set jumps the clock to t. Used by tests.
func (c *FrameClock) Set(t time.Duration) {
	c.now = t
}

// SystemClock reports wall time elapsed since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a SystemClock anchored at the current instant.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the elapsed time since creation.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
