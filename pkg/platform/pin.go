package platform

import (
	"github.com/golang/glog"
	"go.bug.st/serial"
)

// LogPin is a Pin without hardware, it only logs level changes.
type LogPin struct {
	Name  string
	level bool
}

// Set implements Pin.
func (p *LogPin) Set(high bool) {
	if p.level != high {
		glog.V(2).Infof("pin %s: %v", p.Name, high)
	}
	p.level = high
}

// Level returns the last level set.
func (p *LogPin) Level() bool {
	return p.level
}

// ModemLine selects a modem control line of a serial port.
type ModemLine int

// Modem control lines usable as outputs.
const (
	LineDTR ModemLine = iota
	LineRTS
)

// ModemLinePin drives a modem control line of a serial port, commonly
// wired to the enable input of USB-UART radio adapters.
type ModemLinePin struct {
	Port   serial.Port
	Line   ModemLine
	Invert bool
}

// Set implements Pin.
func (p *ModemLinePin) Set(high bool) {
	level := high != p.Invert
	var err error
	switch p.Line {
	case LineRTS:
		err = p.Port.SetRTS(level)
	default:
		err = p.Port.SetDTR(level)
	}
	if err != nil {
		glog.Warningf("set modem line %d: %v", p.Line, err)
	}
}
