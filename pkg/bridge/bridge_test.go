package bridge

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/wifibridge/pkg/command"
	"github.com/robotalks/wifibridge/pkg/frame"
	"github.com/robotalks/wifibridge/pkg/radio"
	"github.com/robotalks/wifibridge/pkg/ring"
)

type testClock struct {
	now uint32
}

func (c *testClock) Millis() uint32          { return c.now }
func (c *testClock) BusyWait(time.Duration)  {}
func (c *testClock) advance(d time.Duration) { c.now += uint32(d / time.Millisecond) }

type testPin struct {
	levels []bool
}

func (p *testPin) Set(high bool) { p.levels = append(p.levels, high) }

// testModule answers AT commands written to the radio port.
type testModule struct {
	b       *Bridge
	silent  bool
	written bytes.Buffer
}

func (m *testModule) Write(p []byte) (int, error) {
	m.written.Write(p)
	if !m.silent && bytes.HasPrefix(p, []byte("AT+")) {
		reply := "\r\nOK\r\n"
		if bytes.HasPrefix(p, []byte("AT+CIPSEND")) {
			reply = "\r\nOK\r\n>"
		}
		for _, c := range []byte(reply) {
			m.b.FeedRadio(c)
		}
	}
	return len(p), nil
}

type bridgeTest struct {
	t      *testing.T
	clock  *testClock
	pin    *testPin
	b      *Bridge
	pc     bytes.Buffer
	module *testModule
}

func newBridgeTest(t *testing.T) *bridgeTest {
	bt := &bridgeTest{t: t, clock: &testClock{now: 5}, pin: &testPin{}}
	bt.b = New(bt.clock, bt.pin, 256)
	bt.b.Radio.StartupTime = 0
	bt.b.Radio.CheckAfter = time.Hour
	for n := range bt.b.Radio.Stages {
		bt.b.Radio.Stages[n].Delay = 0
	}
	bt.module = &testModule{b: bt.b}
	bt.b.PCPort = &bt.pc
	bt.b.RadioPort = bt.module
	return bt
}

func (bt *bridgeTest) feedPC(p []byte) {
	for _, c := range p {
		bt.b.FeedPC(c)
	}
}

func (bt *bridgeTest) feedRadio(p []byte) {
	for _, c := range p {
		bt.b.FeedRadio(c)
	}
}

func (bt *bridgeTest) tick(n int) {
	for i := 0; i < n; i++ {
		require.NoError(bt.t, bt.b.Tick())
	}
}

func decodePayloads(p []byte) [][]byte {
	var out [][]byte
	r := ring.New(1024)
	r.Write(p)
	frame.NewDecoder(frame.HandleFrameFunc(func(f *frame.Frame) {
		out = append(out, f.Payload)
	})).Decode(r)
	return out
}

func testRecord(t *testing.T) *radio.Record {
	rec, err := radio.NewRecord(
		"AT+CWMODE_DEF=1\r\n",
		"AT+CWDHCP_DEF=1,1\r\n",
		"AT+CWJAP_DEF=\"lab\",\"12345678\"\r\n",
		"AT+CIPMUX=0\r\n",
		"AT+CIPSTART=\"UDP\",\"192.168.2.100\",30010,30001,0\r\n",
		"AT+CIPMODE=1\r\n",
		"AT+CIPSEND\r\n",
	)
	require.NoError(t, err)
	return rec
}

func TestBridgeGetAlive(t *testing.T) {
	bt := newBridgeTest(t)
	req := []byte{'U', 'N', 'E', 'R', 0x02, ':', 0xF0, 0x0D}
	bt.feedPC(append(req, frame.Checksum(req)))
	bt.tick(1)
	require.Equal(t, frame.MustEncode(0xF0, 0x0D), bt.pc.Bytes())
}

func TestBridgeSplitDelivery(t *testing.T) {
	bt := newBridgeTest(t)
	req := command.GetAliveRequest()
	for _, c := range req {
		bt.b.FeedPC(c)
		bt.tick(1)
	}
	require.Equal(t, [][]byte{{command.GetAlive, command.Ack}}, decodePayloads(bt.pc.Bytes()))
}

func TestBridgeStartConfigToReady(t *testing.T) {
	bt := newBridgeTest(t)
	rec := testRecord(t)
	bt.feedPC(command.StartConfigRequest(rec))
	for i := 0; i < 50 && !bt.b.IsRadioReady(); i++ {
		bt.tick(1)
	}
	require.True(t, bt.b.IsRadioReady())
	require.Equal(t, [][]byte{{command.StartConfig, command.Ack}}, decodePayloads(bt.pc.Bytes()))
	require.Equal(t, []bool{false, true}, bt.pin.levels)

	bt.tick(1)
	var cmds strings.Builder
	for d := radio.DirectiveMode; d < radio.NumDirectives; d++ {
		cmds.Write(rec.Command(d))
	}
	written := bt.module.written.Bytes()
	require.True(t, bytes.HasPrefix(written, []byte(cmds.String())))
	require.Equal(t, command.KeepAliveFrame(), written[cmds.Len():])
	require.False(t, bt.b.Radio.Capturing())
}

func TestBridgeKeepAlive(t *testing.T) {
	bt := newBridgeTest(t)
	bt.b.Radio.Configure(testRecord(t))
	for i := 0; i < 50 && !bt.b.IsRadioReady(); i++ {
		bt.tick(1)
	}
	require.True(t, bt.b.IsRadioReady())
	bt.tick(1)
	bt.module.written.Reset()

	bt.clock.advance(DefaultKeepAliveInterval - time.Millisecond)
	bt.tick(2)
	require.Zero(t, bt.module.written.Len())
	bt.clock.advance(time.Millisecond)
	bt.tick(2)
	require.Equal(t, command.KeepAliveFrame(), bt.module.written.Bytes())
	require.Equal(t, uint64(1), bt.b.KeepAlive.Sent())
}

func TestBridgeKeepAliveRestartsAfterReconfigure(t *testing.T) {
	bt := newBridgeTest(t)
	untilReady := func() {
		for i := 0; i < 50 && !bt.b.IsRadioReady(); i++ {
			bt.tick(1)
		}
		require.True(t, bt.b.IsRadioReady())
		bt.tick(1)
		bt.module.written.Reset()
	}
	bt.b.Radio.Configure(testRecord(t))
	untilReady()

	bt.clock.advance(DefaultKeepAliveInterval - 10*time.Millisecond)
	bt.tick(1)
	bt.b.Radio.Configure(testRecord(t))
	bt.tick(1)
	require.False(t, bt.b.IsRadioReady())
	untilReady()

	bt.clock.advance(10 * time.Millisecond)
	bt.tick(2)
	require.Zero(t, bt.module.written.Len())
	bt.clock.advance(DefaultKeepAliveInterval - 11*time.Millisecond)
	bt.tick(2)
	require.Zero(t, bt.module.written.Len())
	require.Zero(t, bt.b.KeepAlive.Sent())

	bt.clock.advance(time.Millisecond)
	bt.tick(1)
	require.Equal(t, command.KeepAliveFrame(), bt.module.written.Bytes())
	require.Equal(t, uint64(1), bt.b.KeepAlive.Sent())
}

func TestBridgeKeepAliveSuppressedWhenNotReady(t *testing.T) {
	bt := newBridgeTest(t)
	bt.clock.advance(10 * DefaultKeepAliveInterval)
	bt.tick(3)
	require.Zero(t, bt.b.KeepAlive.Sent())
	require.Empty(t, decodePayloads(bt.module.written.Bytes()))
}

func TestBridgeRadioFramesAnsweredOnRadio(t *testing.T) {
	bt := newBridgeTest(t)
	bt.tick(1)
	require.False(t, bt.b.Radio.Capturing())
	bt.feedRadio(frame.MustEncode(0x55, 0x01))
	bt.tick(1)
	require.Equal(t, [][]byte{{command.Unknown}}, decodePayloads(bt.module.written.Bytes()))
	require.Zero(t, bt.pc.Len())
}

func TestBridgeCapturesModuleOutput(t *testing.T) {
	bt := newBridgeTest(t)
	require.True(t, bt.b.Radio.Capturing())
	bt.feedRadio(command.GetAliveRequest())
	require.False(t, bt.b.RadioIn.HasData())
	bt.tick(1)
	require.Zero(t, bt.module.written.Len())
}

func TestBridgeModuleSilentResets(t *testing.T) {
	bt := newBridgeTest(t)
	bt.module.silent = true
	bt.b.Radio.Configure(testRecord(t))
	for i := 0; i < 100 && bt.b.Radio.Status().Resets == 0; i++ {
		bt.tick(1)
	}
	require.Equal(t, 1, bt.b.Radio.Status().Resets)
	require.Equal(t, radio.SetMode, bt.b.Radio.Status().Stage)
	require.False(t, bt.b.IsRadioReady())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken") }

func TestBridgePortErrorReported(t *testing.T) {
	bt := newBridgeTest(t)
	bt.b.PCPort = failingWriter{}
	bt.feedPC(command.GetAliveRequest())
	err := bt.b.Tick()
	require.Error(t, err)
	require.Contains(t, err.Error(), "pc")
	require.NoError(t, bt.b.Tick())
}

func TestHeartbeat(t *testing.T) {
	clock := &testClock{}
	pin := &testPin{}
	h := NewHeartbeat(pin, clock)
	for i := 0; i < 32; i++ {
		clock.advance(DefaultHeartbeatStep / 2)
		h.Update()
		clock.advance(DefaultHeartbeatStep / 2)
		h.Update()
	}
	require.Len(t, pin.levels, 32)
	expect := make([]bool, 16)
	for n := range expect {
		expect[n] = n != 0 && n != 2 && n != 4
	}
	require.Equal(t, expect, pin.levels[:16])
	require.Equal(t, expect, pin.levels[16:])
}
