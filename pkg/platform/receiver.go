package platform

import (
	"context"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	fx "github.com/robotalks/wifibridge/pkg/framework"
)

// FeedFunc receives one byte from a port.
type FeedFunc func(byte)

// Receiver reads a port and hands every byte to Feed, standing in for the
// receive interrupt of the port.
type Receiver struct {
	Name string
	Port io.ReadCloser
	Feed FeedFunc
	// BufferSize is the size of a single read, defaults to 64.
	BufferSize int
}

// NewReceiver creates a Receiver.
func NewReceiver(name string, port io.ReadCloser, feed FeedFunc) *Receiver {
	return &Receiver{Name: name, Port: port, Feed: feed}
}

// Run implements Runnable.
func (r *Receiver) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, r.Port, r.readLoop)
}

func (r *Receiver) readLoop() error {
	size := r.BufferSize
	if size <= 0 {
		size = 64
	}
	buf := make([]byte, size)
	for {
		n, err := r.Port.Read(buf)
		for _, b := range buf[:n] {
			r.Feed(b)
		}
		if n > 0 {
			glog.V(4).Infof("%s: received %d bytes", r.Name, n)
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			if err == io.EOF {
				return errors.Wrapf(err, "%s closed", r.Name)
			}
			return errors.Wrapf(err, "%s read", r.Name)
		}
	}
}
