package bridge

import (
	"time"

	fx "github.com/robotalks/wifibridge/pkg/framework"
	"github.com/robotalks/wifibridge/pkg/platform"
)

// Heartbeat defaults.
const (
	DefaultHeartbeatPattern uint16 = 0x0015
	DefaultHeartbeatMask    uint16 = 0x0F
	DefaultHeartbeatStep           = 100 * time.Millisecond
)

// Heartbeat blinks a status LED through a 16 step pattern. A step drives
// the pin low when its bit is set in Pattern.
type Heartbeat struct {
	Pin     platform.Pin
	Clock   platform.Clock
	Pattern uint16
	Mask    uint16
	Step    time.Duration

	index uint16
	last  uint32
}

// NewHeartbeat creates a Heartbeat with the default pattern.
func NewHeartbeat(pin platform.Pin, clock platform.Clock) *Heartbeat {
	return &Heartbeat{
		Pin:     pin,
		Clock:   clock,
		Pattern: DefaultHeartbeatPattern,
		Mask:    DefaultHeartbeatMask,
		Step:    DefaultHeartbeatStep,
		last:    clock.Millis(),
	}
}

// Update advances the pattern when a step is due.
func (h *Heartbeat) Update() {
	now := h.Clock.Millis()
	if now-h.last < platform.Millis(h.Step) {
		return
	}
	h.last = now
	h.Pin.Set(^h.Pattern&(1<<h.index) != 0)
	h.index = (h.index + 1) & h.Mask
}

// Control implements framework.Controller.
func (h *Heartbeat) Control(fx.ControlContext) error {
	h.Update()
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (h *Heartbeat) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvIndicator, h)
}
