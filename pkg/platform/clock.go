package platform

import "time"

// SystemClock is a Clock backed by the monotonic system clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a SystemClock counting from now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Millis implements Clock.
func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

// BusyWait implements Clock by spinning.
func (c *SystemClock) BusyWait(d time.Duration) {
	for deadline := time.Now().Add(d); time.Now().Before(deadline); {
	}
}
