package frame

import (
	"github.com/golang/glog"

	"github.com/robotalks/wifibridge/pkg/ring"
)

// State is the decoder state.
type State int

// Decoder states.
const (
	AwaitMagic1 State = iota
	AwaitMagic2
	AwaitMagic3
	AwaitMagic4
	ReadLength
	ReadToken
	ReadPayload
)

var stateNames = [...]string{
	"AwaitMagic1",
	"AwaitMagic2",
	"AwaitMagic3",
	"AwaitMagic4",
	"ReadLength",
	"ReadToken",
	"ReadPayload",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Decoder decodes frames from a ring. The state survives across Decode
// calls so frames may arrive split over any number of ticks.
type Decoder struct {
	Handler Handler

	state     State
	length    byte
	remaining int
	sum       byte
	start     int

	// Dropped counts frames rejected by checksum.
	Dropped uint64
}

// NewDecoder creates a Decoder.
func NewDecoder(h Handler) *Decoder {
	return &Decoder{Handler: h}
}

// State returns the current state.
func (d *Decoder) State() State {
	return d.state
}

// Remaining returns the payload bytes still expected in ReadPayload.
func (d *Decoder) Remaining() int {
	return d.remaining
}

// Reset returns the decoder to AwaitMagic1.
func (d *Decoder) Reset() {
	d.state, d.length, d.remaining, d.sum, d.start = AwaitMagic1, 0, 0, 0, 0
}

// Decode consumes the bytes currently available in r and returns the number
// of frames dispatched. It never waits for more bytes.
//
// A mismatching magic or token byte is left in the ring and re-examined as
// the first magic byte. The checksum byte is compared without being consumed
// and is re-examined the same way.
func (d *Decoder) Decode(r *ring.Ring) (frames int) {
	for r.HasData() {
		switch d.state {
		case AwaitMagic1:
			if r.Pop() == Magic[0] {
				d.state = AwaitMagic2
			}
		case AwaitMagic2, AwaitMagic3, AwaitMagic4:
			if r.Peek() != Magic[d.state-AwaitMagic1] {
				d.state = AwaitMagic1
				continue
			}
			r.Pop()
			d.state++
			if d.state > AwaitMagic4 {
				d.state = ReadLength
			}
		case ReadLength:
			d.length = r.Pop()
			d.state = ReadToken
		case ReadToken:
			if r.Peek() != Token {
				d.state = AwaitMagic1
				continue
			}
			r.Pop()
			d.sum = headerChecksum(d.length)
			d.start = r.Offset()
			d.remaining = int(d.length)
			d.state = ReadPayload
		case ReadPayload:
			if d.remaining > 0 {
				d.sum ^= r.Pop()
				d.remaining--
				continue
			}
			if r.Peek() == d.sum {
				d.dispatch(r)
				frames++
			} else {
				d.Dropped++
				glog.V(4).Infof("frame dropped: checksum %02x expected %02x", r.Peek(), d.sum)
			}
			d.state = AwaitMagic1
		}
	}
	return
}

func (d *Decoder) dispatch(r *ring.Ring) {
	f := &Frame{
		Length:  d.length,
		Payload: make([]byte, d.length),
		Start:   d.start,
		Store:   r,
	}
	r.CopyAt(f.Payload, d.start)
	glog.V(4).Infof("frame decoded: len=%d cmd=%02x", f.Length, f.Command())
	if h := d.Handler; h != nil {
		h.HandleFrame(f)
	}
}
