package bridge

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/wifibridge/pkg/command"
	"github.com/robotalks/wifibridge/pkg/platform"
	"github.com/robotalks/wifibridge/pkg/ring"
)

// DefaultKeepAliveInterval is the period of keep-alive frames once ready.
const DefaultKeepAliveInterval = 60 * time.Second

// Readiness reports whether keep-alives should be sent.
type Readiness interface {
	IsReady() bool
}

// KeepAlive emits a frame at a fixed interval while the radio is ready.
// The interval restarts whenever the radio drops out of ready.
type KeepAlive struct {
	Interval time.Duration
	Clock    platform.Clock
	Ready    Readiness
	Out      *ring.Ring
	Frame    []byte
	// OnSent is called with the running count after each keep-alive.
	OnSent func(sent uint64)

	armed bool
	start uint32
	sent  uint64
}

// NewKeepAlive creates a KeepAlive with the default interval.
func NewKeepAlive(clock platform.Clock, ready Readiness, out *ring.Ring) *KeepAlive {
	return &KeepAlive{
		Interval: DefaultKeepAliveInterval,
		Clock:    clock,
		Ready:    ready,
		Out:      out,
		Frame:    command.KeepAliveFrame(),
	}
}

// Sent returns the number of keep-alives emitted.
func (k *KeepAlive) Sent() uint64 {
	return k.sent
}

// Check emits a keep-alive when due and reports whether it did.
func (k *KeepAlive) Check() bool {
	if !k.Ready.IsReady() {
		k.armed = false
		return false
	}
	now := k.Clock.Millis()
	if !k.armed {
		k.armed, k.start = true, now
		return false
	}
	if now-k.start < platform.Millis(k.Interval) {
		return false
	}
	k.start = now
	k.Out.Write(k.Frame)
	k.sent++
	glog.V(2).Infof("keep-alive #%d", k.sent)
	if k.OnSent != nil {
		k.OnSent(k.sent)
	}
	return true
}
