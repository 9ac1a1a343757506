package platform

import (
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 115200

// ReadTimeout bounds a single serial read so receivers notice cancellation.
var ReadTimeout = 200 * time.Millisecond

// OpenSerial opens a serial port in 8N1 mode.
func OpenSerial(path string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "set read timeout on %s", path)
	}
	glog.Infof("opened %s at %d baud", path, baud)
	return port, nil
}

// DialWebSocket connects to a websocket endpoint exchanging binary frames.
func DialWebSocket(wsURL string) (Port, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %q", wsURL)
	}
	origin := "http://" + u.Host + "/"
	if u.Scheme == "wss" {
		origin = "https://" + u.Host + "/"
	}
	conn, err := websocket.Dial(wsURL, "", origin)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", wsURL)
	}
	conn.PayloadType = websocket.BinaryFrame
	glog.Infof("connected %s", wsURL)
	return conn, nil
}

// IsWebSocketURL tells whether addr names a websocket endpoint.
func IsWebSocketURL(addr string) bool {
	return strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://")
}

// Open opens addr as a websocket when it is a ws:// or wss:// URL, otherwise
// as a serial device.
func Open(addr string, baud int) (Port, error) {
	if IsWebSocketURL(addr) {
		return DialWebSocket(addr)
	}
	return OpenSerial(addr, baud)
}
