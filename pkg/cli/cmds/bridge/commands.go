package bridge

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/wifibridge/pkg/cli/sh"
	"github.com/robotalks/wifibridge/pkg/command"
	"github.com/robotalks/wifibridge/pkg/config"
	"github.com/robotalks/wifibridge/pkg/frame"
)

var (
	// AliveCmd sends GET_ALIVE.
	AliveCmd = ishell.Cmd{
		Name:    "alive",
		Aliases: []string{"a"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			sh.Send(c, command.GetAliveRequest())
		}),
	}

	// AckCmd sends ACK.
	AckCmd = ishell.Cmd{
		Name: "ack",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			sh.Send(c, command.AckRequest())
		}),
	}

	// ConfigCmd sends START_CONFIG with the autoconnect section of a
	// configuration file, or of the loaded configuration.
	ConfigCmd = ishell.Cmd{
		Name:    "config",
		Aliases: []string{"cfg"},
		Help:    "[FILE]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			conf := sh.ShellFrom(c).Config
			if len(c.Args) > 0 {
				loaded, err := config.Load(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				conf = loaded
			}
			req, err := conf.AutoConnect.StartConfigRequest()
			if err != nil {
				c.Err(err)
				return
			}
			for _, cmd := range conf.AutoConnect.Commands() {
				c.Printf("  %q\n", cmd)
			}
			sh.Send(c, req)
		}),
	}

	// FrameCmd wraps hex bytes as a frame payload and sends it.
	FrameCmd = ishell.Cmd{
		Name:    "frame",
		Aliases: []string{"f"},
		Help:    "HEX...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			payload, err := ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			data, err := frame.Encode(payload)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Send(c, data)
		}),
	}

	// RawCmd sends hex bytes unframed.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "HEX...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			data, err := ParseHex(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Send(c, data)
		}),
	}
)

// ParseHex parses hex bytes, separated or not, like "F0 0d" or "f00d".
func ParseHex(args []string) ([]byte, error) {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(strings.TrimPrefix(strings.TrimPrefix(arg, "0x"), "0X"))
	}
	data, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("Invalid HEX: %v", err)
	}
	return data, nil
}

func init() {
	sh.AddCmds(
		&AliveCmd,
		&AckCmd,
		&ConfigCmd,
		&FrameCmd,
		&RawCmd,
	)
}
