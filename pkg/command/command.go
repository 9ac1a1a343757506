// Package command executes decoded frames and writes the responses.
package command

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/wifibridge/pkg/frame"
	"github.com/robotalks/wifibridge/pkg/radio"
	"github.com/robotalks/wifibridge/pkg/ring"
)

// Command identifiers.
const (
	Ack         byte = 0x0D
	GetAlive    byte = 0xF0
	StartConfig byte = 0xEE
	// Unknown is the marker answered to unrecognized commands.
	Unknown byte = 0xDD
)

// ResponseBufferSize bounds the encoded size of every response.
const ResponseBufferSize = 50

// Name returns a printable name of cmd.
func Name(cmd byte) string {
	switch cmd {
	case Ack:
		return "ACK"
	case GetAlive:
		return "GET_ALIVE"
	case StartConfig:
		return "START_CONFIG"
	case Unknown:
		return "UNKNOWN"
	}
	return fmt.Sprintf("0x%02X", cmd)
}

// Response returns the response payload for cmd.
func Response(cmd byte) []byte {
	switch cmd {
	case Ack, GetAlive, StartConfig:
		return []byte{cmd, Ack}
	}
	return []byte{Unknown}
}

// KeepAliveFrame returns the frame sent to the remote peer as keep-alive.
func KeepAliveFrame() []byte {
	return frame.MustEncode(GetAlive, Ack)
}

// Radio is the part of the sequencer START_CONFIG drives.
type Radio interface {
	Reset()
	Configure(*radio.Record)
}

// Processor executes frames. It is owned by the loop goroutine.
type Processor struct {
	Radio Radio

	record radio.Record
	buf    [ResponseBufferSize]byte
}

// NewProcessor creates a Processor.
func NewProcessor(r Radio) *Processor {
	return &Processor{Radio: r}
}

// Record returns the last configuration received.
func (p *Processor) Record() radio.Record {
	return p.record
}

// Process executes f and writes the response frame into out.
func (p *Processor) Process(f *frame.Frame, out *ring.Ring) {
	cmd := f.Command()
	glog.V(2).Infof("command %s", Name(cmd))
	if err := frame.Write(out, p.buf[:], Response(cmd)); err != nil {
		glog.Warningf("command %s: response: %v", Name(cmd), err)
	}
	if cmd == StartConfig {
		p.startConfig(f)
	}
}

// Handler adapts the Processor to a frame.Handler answering into out.
func (p *Processor) Handler(out *ring.Ring) frame.Handler {
	return frame.HandleFrameFunc(func(f *frame.Frame) {
		p.Process(f, out)
	})
}

func (p *Processor) startConfig(f *frame.Frame) {
	// A short payload copies bytes past the frame, which the receiver may be
	// overwriting concurrently.
	if n := int(f.Length) - 1; n < radio.RecordSize {
		glog.Warningf("START_CONFIG carries %d of %d record bytes", n, radio.RecordSize)
	}
	if p.Radio == nil {
		return
	}
	p.Radio.Reset()
	f.Store.CopyAt(p.record[:], f.Start+1)
	p.Radio.Configure(&p.record)
}

// GetAliveRequest encodes a GET_ALIVE request.
func GetAliveRequest() []byte {
	return frame.MustEncode(GetAlive)
}

// AckRequest encodes an ACK request.
func AckRequest() []byte {
	return frame.MustEncode(Ack)
}

// StartConfigRequest encodes a START_CONFIG request carrying rec.
func StartConfigRequest(rec *radio.Record) []byte {
	payload := make([]byte, 0, 1+radio.RecordSize)
	payload = append(payload, StartConfig)
	return frame.MustEncode(append(payload, rec[:]...)...)
}
