// Package bridge ties the channels, codec, command processor and radio
// sequencer together and drives them from the polling loop.
package bridge

import (
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/wifibridge/pkg/command"
	fx "github.com/robotalks/wifibridge/pkg/framework"
	"github.com/robotalks/wifibridge/pkg/frame"
	"github.com/robotalks/wifibridge/pkg/platform"
	"github.com/robotalks/wifibridge/pkg/radio"
	"github.com/robotalks/wifibridge/pkg/ring"
)

// Bridge owns the four channels and everything polling them.
//
// FeedPC and FeedRadio are the producers of the inbound channels and may be
// called from one receiver goroutine each. Everything else belongs to the
// loop goroutine.
type Bridge struct {
	PCIn     *ring.Ring
	PCOut    *ring.Ring
	RadioIn  *ring.Ring
	RadioOut *ring.Ring

	// PCPort and RadioPort receive the outbound channels. A nil port leaves
	// the bytes in the channel.
	PCPort    io.Writer
	RadioPort io.Writer

	Radio     *radio.Sequencer
	Processor *command.Processor
	KeepAlive *KeepAlive

	pcDecoder    *frame.Decoder
	radioDecoder *frame.Decoder
	flushBuf     []byte
}

// New creates a Bridge with channels of the given capacity.
func New(clock platform.Clock, enable platform.Pin, capacity int) *Bridge {
	if capacity <= 0 {
		capacity = ring.DefaultCapacity
	}
	b := &Bridge{
		PCIn:     ring.New(capacity),
		PCOut:    ring.New(capacity),
		RadioIn:  ring.New(capacity),
		RadioOut: ring.New(capacity),
		flushBuf: make([]byte, capacity),
	}
	b.Radio = radio.NewSequencer(clock, enable, b.RadioOut, capacity)
	b.Radio.KeepAlive = command.KeepAliveFrame()
	b.Processor = command.NewProcessor(b.Radio)
	b.KeepAlive = NewKeepAlive(clock, b.Radio, b.RadioOut)
	b.pcDecoder = frame.NewDecoder(b.Processor.Handler(b.PCOut))
	b.radioDecoder = frame.NewDecoder(b.Processor.Handler(b.RadioOut))
	return b
}

// FeedPC queues a byte received from the PC link.
func (b *Bridge) FeedPC(c byte) {
	b.PCIn.Push(c)
}

// FeedRadio queues a byte received from the radio link. While the
// sequencer is capturing, module output goes to the sequencer instead.
func (b *Bridge) FeedRadio(c byte) {
	if b.Radio.Capturing() {
		b.Radio.FeedResponse(c)
		return
	}
	b.RadioIn.Push(c)
}

// IsRadioReady reports whether the radio is relaying data.
func (b *Bridge) IsRadioReady() bool {
	return b.Radio.IsReady()
}

// Tick runs one iteration: sequencer, PC channel, radio channel and the
// keep-alive timer, in that order. Only port write failures are returned,
// the core itself never fails.
func (b *Bridge) Tick() error {
	b.Radio.Step()
	b.pcDecoder.Decode(b.PCIn)
	errPC := b.flush(b.PCOut, b.PCPort)
	b.radioDecoder.Decode(b.RadioIn)
	errRadio := b.flush(b.RadioOut, b.RadioPort)
	b.KeepAlive.Check()
	if errPC != nil {
		return errors.Wrap(errPC, "pc")
	}
	if errRadio != nil {
		return errors.Wrap(errRadio, "radio")
	}
	return nil
}

// Control implements framework.Controller.
func (b *Bridge) Control(fx.ControlContext) error {
	return b.Tick()
}

// AddToLoop implements framework.LoopAdder.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvBridge, b)
}

func (b *Bridge) flush(r *ring.Ring, w io.Writer) error {
	if w == nil {
		return nil
	}
	for r.HasData() {
		n := r.Drain(b.flushBuf)
		if _, err := w.Write(b.flushBuf[:n]); err != nil {
			glog.V(2).Infof("dropped %d bytes: %v", n, err)
			return err
		}
	}
	return nil
}
