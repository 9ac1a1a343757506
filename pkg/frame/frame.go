// Package frame implements the length-prefixed, XOR-checksummed framing
// used on both the PC link and the radio link.
//
// A frame on the wire is:
//
//	offset  size  field
//	0       4     magic "UNER"
//	4       1     payload length N
//	5       1     token ':'
//	6       N     payload, payload[0] is the command
//	6+N     1     XOR of bytes[0 .. 6+N-1]
package frame

import (
	"errors"

	"github.com/robotalks/wifibridge/pkg/ring"
)

// Magic is the frame header literal.
const Magic = "UNER"

// Token separates the header from the payload.
const Token byte = ':'

const (
	// HeaderSize is the size of magic, length and token.
	HeaderSize = len(Magic) + 2
	// Overhead is the number of bytes a frame adds to its payload.
	Overhead = HeaderSize + 1
	// MaxPayload is the largest payload the length byte can describe.
	MaxPayload = 255
)

// ErrPayloadTooLong is returned when encoding more than MaxPayload bytes.
var ErrPayloadTooLong = errors.New("payload too long")

// Frame is a decoded frame. It is only valid during the HandleFrame call.
type Frame struct {
	// Length is the length byte as received.
	Length byte
	// Payload is a copy of the payload bytes.
	Payload []byte
	// Start is the physical offset of the payload inside Store.
	Start int
	// Store is the ring the frame was decoded from.
	Store *ring.Ring
}

// Command returns the command byte, 0 for an empty payload.
func (f *Frame) Command() byte {
	if len(f.Payload) == 0 {
		return 0
	}
	return f.Payload[0]
}

// Handler is called when a valid frame is decoded.
type Handler interface {
	HandleFrame(*Frame)
}

// HandleFrameFunc is func type of Handler.
type HandleFrameFunc func(*Frame)

// HandleFrame implements Handler.
func (f HandleFrameFunc) HandleFrame(fr *Frame) {
	f(fr)
}

// Checksum returns the XOR of all bytes in b.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum ^= c
	}
	return sum
}

func headerChecksum(n byte) byte {
	return Checksum([]byte(Magic)) ^ n ^ Token
}

// AppendFrame appends the encoded frame of payload to dst.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, ErrPayloadTooLong
	}
	start := len(dst)
	dst = append(dst, Magic...)
	dst = append(dst, byte(len(payload)), Token)
	dst = append(dst, payload...)
	return append(dst, Checksum(dst[start:])), nil
}

// Encode encodes payload into a new frame.
func Encode(payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, len(payload)+Overhead), payload)
}

// MustEncode is Encode for payloads known to fit.
func MustEncode(payload ...byte) []byte {
	out, err := Encode(payload)
	if err != nil {
		panic(err)
	}
	return out
}

// Write encodes payload into the ring using buf as scratch space.
func Write(r *ring.Ring, buf, payload []byte) error {
	out, err := AppendFrame(buf[:0], payload)
	if err != nil {
		return err
	}
	r.Write(out)
	return nil
}
