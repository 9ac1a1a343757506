package sh

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/wifibridge/pkg/command"
	"github.com/robotalks/wifibridge/pkg/config"
	fx "github.com/robotalks/wifibridge/pkg/framework"
	"github.com/robotalks/wifibridge/pkg/frame"
	"github.com/robotalks/wifibridge/pkg/platform"
	"github.com/robotalks/wifibridge/pkg/ring"
)

// Shell provides ishell backed interactive shell talking to a bridge over
// its PC link.
type Shell struct {
	Interactive bool
	// OpenAddr is opened before running commands when set.
	OpenAddr string
	OpenBaud int

	Shell  *ishell.Shell
	Config *config.Config
	Conn   *Conn
}

// Conn is an open link with a loop decoding what the bridge sends back.
type Conn struct {
	Addr   string
	Port   platform.Port
	Ctx    context.Context
	Cancel func()
	Loop   *fx.Loop

	rx       *ring.Ring
	decoder  *frame.Decoder
	printer  func(string, ...interface{})
	frames   atomic.Uint64
	rejected atomic.Uint64
	state    atomic.Int32
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	evalOnly bool
	openAddr string
	openBaud int

	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&openAddr, "port", openAddr, "Serial device or ws:// URL to open on start.")
	flag.IntVar(&openBaud, "baud", platform.DefaultBaudRate, "Baud rate of -port.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OpenAddr:    openAddr,
		OpenBaud:    openBaud,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an open link.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not open"))
			return
		}
		fn(c)
	}
}

// Send writes raw bytes to the open link.
func Send(c *ishell.Context, data []byte) error {
	s := ShellFrom(c)
	if s.Conn == nil {
		err := fmt.Errorf("not open")
		c.Err(err)
		return err
	}
	if _, err := s.Conn.Port.Write(data); err != nil {
		c.Err(err)
		return err
	}
	c.Printf("TX % X\n", data)
	return nil
}

// FormatFrame prints a frame payload for display.
func FormatFrame(payload []byte) string {
	if len(payload) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	sb.WriteString(command.Name(payload[0]))
	for _, b := range payload[1:] {
		sb.WriteByte(' ')
		if name := command.Name(b); !strings.HasPrefix(name, "0x") {
			sb.WriteString(name)
		} else {
			fmt.Fprintf(&sb, "%02X", b)
		}
	}
	return sb.String()
}

// Open opens addr and starts decoding received frames.
func (s *Shell) Open(addr string, baud int) error {
	port, err := platform.Open(addr, baud)
	if err != nil {
		return err
	}
	conn := newConn(addr, port, s.Config.Channel.Capacity, s.Shell.Printf)
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	conn.Loop.Interval = s.Config.Loop.Interval
	conn.Loop.AddRunnable(platform.NewReceiver(addr, port, conn.rx.Push))
	conn.Loop.AddController(fx.PrLvNormal, conn)
	if s.Conn != nil {
		s.Conn.Cancel()
	}
	s.Conn = conn
	go conn.Loop.Run(conn.Ctx)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", addr))
	return nil
}

// Close closes the current link.
func (s *Shell) Close() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.Shell.SetPrompt(closedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.OpenAddr != "" {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.OpenAddr)
		}
		if err := s.Open(s.OpenAddr, s.OpenBaud); err != nil {
			log.Fatalf("open %q failed: %v", s.OpenAddr, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func newConn(addr string, port platform.Port, capacity int, printer func(string, ...interface{})) *Conn {
	c := &Conn{
		Addr:    addr,
		Port:    port,
		Loop:    fx.NewLoop(),
		rx:      ring.New(capacity),
		printer: printer,
	}
	c.decoder = frame.NewDecoder(frame.HandleFrameFunc(c.handleFrame))
	return c
}

// Control implements framework.Controller. The decoder belongs to the loop
// goroutine, other goroutines read the counters published here.
func (c *Conn) Control(fx.ControlContext) error {
	c.decoder.Decode(c.rx)
	c.rejected.Store(c.decoder.Dropped)
	c.state.Store(int32(c.decoder.State()))
	return nil
}

// Frames returns the number of frames received.
func (c *Conn) Frames() uint64 {
	return c.frames.Load()
}

// Rejected returns the number of frames failing the checksum.
func (c *Conn) Rejected() uint64 {
	return c.rejected.Load()
}

// DecoderState returns the decoder state after the last iteration.
func (c *Conn) DecoderState() frame.State {
	return frame.State(c.state.Load())
}

func (c *Conn) handleFrame(f *frame.Frame) {
	c.frames.Add(1)
	c.printer("RX %s\n", FormatFrame(f.Payload))
}

var (
	// OpenCmd opens a link.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "PORT [BAUD]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("PORT required"))
				return
			}
			addr, baud := c.Args[0], s.OpenBaud
			if len(c.Args) > 1 {
				val, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("Invalid BAUD: %v", err))
					return
				}
				baud = val
			}
			if err := s.Open(addr, baud); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the current link.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// StatusCmd prints link counters.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			conn := ShellFrom(c).Conn
			c.Printf("%s: %d frames, %d rejected, decoder %s\n",
				conn.Addr, conn.Frames(), conn.Rejected(), conn.DecoderState())
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := config.FromFlags()
	if err != nil {
		log.Fatalln(err)
	}
	New(conf).Run(flag.Args()...)
}
