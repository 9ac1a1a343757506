// Package platform provides the host side implementations of the
// capabilities the bridge core depends on: ports, pins and a clock.
package platform

import (
	"io"
	"time"
)

// Port is a raw byte link.
type Port io.ReadWriteCloser

// Pin is a digital output.
type Pin interface {
	Set(high bool)
}

// PinFunc is func type of Pin.
type PinFunc func(bool)

// Set implements Pin.
func (f PinFunc) Set(high bool) {
	f(high)
}

// Clock provides monotonic milliseconds and short busy waits.
// Millis wraps around, callers compare with unsigned subtraction.
type Clock interface {
	Millis() uint32
	BusyWait(time.Duration)
}

// Elapsed returns the milliseconds passed since start, wrap safe.
func Elapsed(c Clock, start uint32) uint32 {
	return c.Millis() - start
}

// Millis converts a duration into clock milliseconds.
func Millis(d time.Duration) uint32 {
	return uint32(d / time.Millisecond)
}
