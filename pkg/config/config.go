// Package config loads the bridge configuration from YAML, environment
// variables and command line flags, in increasing precedence.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/wifibridge/pkg/bridge"
	"github.com/robotalks/wifibridge/pkg/command"
	"github.com/robotalks/wifibridge/pkg/frame"
	"github.com/robotalks/wifibridge/pkg/platform"
	"github.com/robotalks/wifibridge/pkg/radio"
	"github.com/robotalks/wifibridge/pkg/ring"
)

// Config is the complete bridge configuration.
type Config struct {
	PC          PortConfig        `yaml:"pc"`
	Radio       RadioConfig       `yaml:"radio"`
	Loop        LoopConfig        `yaml:"loop"`
	Channel     ChannelConfig     `yaml:"channel"`
	Sequencer   SequencerConfig   `yaml:"sequencer"`
	KeepAlive   KeepAliveConfig   `yaml:"keepalive"`
	Heartbeat   HeartbeatConfig   `yaml:"heartbeat"`
	AutoConnect AutoConnectConfig `yaml:"autoconnect"`
	Monitor     MonitorConfig     `yaml:"monitor"`
}

// PortConfig selects a link. Port is a serial device or a ws:// URL.
type PortConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// RadioConfig is the radio link and its enable line.
type RadioConfig struct {
	PortConfig `yaml:",inline"`
	// Enable is the line wired to the module enable pin: dtr, rts or none.
	Enable       string `yaml:"enable"`
	EnableInvert bool   `yaml:"enable_invert"`
}

// LoopConfig is the polling loop.
type LoopConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ChannelConfig sizes the ring channels.
type ChannelConfig struct {
	Capacity int `yaml:"capacity"`
}

// SequencerConfig tunes the radio bring-up.
type SequencerConfig struct {
	Startup     time.Duration `yaml:"startup"`
	CheckAfter  time.Duration `yaml:"check_after"`
	MaxSends    int           `yaml:"max_sends"`
	MaxTimeouts int           `yaml:"max_timeouts"`
	// Delays overrides the response delay per stage name.
	Delays map[string]time.Duration `yaml:"delays"`
}

// KeepAliveConfig is the periodic keep-alive.
type KeepAliveConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// HeartbeatConfig is the status LED.
type HeartbeatConfig struct {
	Enabled bool          `yaml:"enabled"`
	Pattern uint16        `yaml:"pattern"`
	Step    time.Duration `yaml:"step"`
}

// AutoConnectConfig is the record configured at boot.
type AutoConnectConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Mode         string `yaml:"mode"`
	DHCP         string `yaml:"dhcp"`
	JoinAP       string `yaml:"join_ap"`
	Mux          string `yaml:"mux"`
	Start        string `yaml:"start"`
	TransferMode string `yaml:"transfer_mode"`
	SendTrigger  string `yaml:"send_trigger"`
}

// MonitorConfig publishes radio status to MQTT.
type MonitorConfig struct {
	// URL is the broker, e.g. mqtt://host:1883/bridge/, empty disables.
	URL      string `yaml:"url"`
	DeviceID string `yaml:"device_id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PC:    PortConfig{Port: "/dev/ttyUSB0", Baud: platform.DefaultBaudRate},
		Radio: RadioConfig{PortConfig: PortConfig{Port: "/dev/ttyUSB1", Baud: platform.DefaultBaudRate}, Enable: "dtr"},
		Loop:  LoopConfig{Interval: time.Millisecond},
		Channel: ChannelConfig{
			Capacity: ring.DefaultCapacity,
		},
		Sequencer: SequencerConfig{
			Startup:     radio.DefaultStartupTime,
			CheckAfter:  radio.DefaultCheckAfter,
			MaxSends:    radio.DefaultMaxSends,
			MaxTimeouts: radio.DefaultMaxTimeouts,
		},
		KeepAlive: KeepAliveConfig{Interval: bridge.DefaultKeepAliveInterval},
		Heartbeat: HeartbeatConfig{
			Enabled: true,
			Pattern: bridge.DefaultHeartbeatPattern,
			Step:    bridge.DefaultHeartbeatStep,
		},
		AutoConnect: AutoConnectConfig{
			Enabled:      true,
			Mode:         "AT+CWMODE_DEF=1\r\n",
			DHCP:         "AT+CWDHCP_DEF=1,1\r\n",
			JoinAP:       "AT+CWJAP_DEF=\"FCAL\",\"fcalconcordia.06-2019\"\r\n",
			Mux:          "AT+CIPMUX=0\r\n",
			Start:        "AT+CIPSTART=\"UDP\",\"172.23.245.91\",30010,30001,0\r\n",
			TransferMode: "AT+CIPMODE=1\r\n",
			SendTrigger:  "AT+CIPSEND\r\n",
		},
	}
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, cfg.Validate()
}

// Load reads path, or returns the defaults when path is empty. Environment
// overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if cfg, err = Parse(data); err != nil {
			return nil, errors.Wrap(err, path)
		}
		glog.Infof("config loaded from %s", path)
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv applies BRIDGE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BRIDGE_PC_PORT"); v != "" {
		c.PC.Port = v
	}
	if v := os.Getenv("BRIDGE_PC_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PC.Baud = n
		}
	}
	if v := os.Getenv("BRIDGE_RADIO_PORT"); v != "" {
		c.Radio.Port = v
	}
	if v := os.Getenv("BRIDGE_RADIO_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Radio.Baud = n
		}
	}
	if v := os.Getenv("BRIDGE_RADIO_ENABLE"); v != "" {
		c.Radio.Enable = v
	}
	if v := os.Getenv("BRIDGE_AUTOCONNECT"); v != "" {
		c.AutoConnect.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("BRIDGE_MQTT_URL"); v != "" {
		c.Monitor.URL = v
	}
	if v := os.Getenv("BRIDGE_DEVICE_ID"); v != "" {
		c.Monitor.DeviceID = v
	}
}

// Validate checks values the bridge cannot run with.
func (c *Config) Validate() error {
	if need := frame.Overhead + 1 + radio.RecordSize; c.Channel.Capacity < need {
		return errors.Errorf("channel capacity %d can't hold a START_CONFIG frame of %d bytes", c.Channel.Capacity, need)
	}
	switch c.Radio.Enable {
	case "", "none", "dtr", "rts":
	default:
		return errors.Errorf("unknown radio enable line %q", c.Radio.Enable)
	}
	for name := range c.Sequencer.Delays {
		if _, ok := radio.ParseStage(name); !ok {
			return errors.Errorf("unknown stage %q in sequencer delays", name)
		}
	}
	if _, err := c.AutoConnect.Record(); err != nil {
		return errors.Wrap(err, "autoconnect")
	}
	return nil
}

// Commands returns the directives in record order.
func (a *AutoConnectConfig) Commands() []string {
	return []string{a.Mode, a.DHCP, a.JoinAP, a.Mux, a.Start, a.TransferMode, a.SendTrigger}
}

// Record builds the configuration record.
func (a *AutoConnectConfig) Record() (*radio.Record, error) {
	return radio.NewRecord(a.Commands()...)
}

// Apply configures the sequencer.
func (c *SequencerConfig) Apply(s *radio.Sequencer) {
	s.StartupTime = c.Startup
	s.CheckAfter = c.CheckAfter
	if c.MaxSends > 0 {
		s.MaxSends = c.MaxSends
	}
	if c.MaxTimeouts > 0 {
		s.MaxTimeouts = c.MaxTimeouts
	}
	for name, d := range c.Delays {
		if stage, ok := radio.ParseStage(name); ok && stage < radio.Automatic {
			s.Stages[stage].Delay = d
		}
	}
}

// NewBridge creates a bridge from the configuration without ports.
func (c *Config) NewBridge(clock platform.Clock, enable platform.Pin) (*bridge.Bridge, error) {
	b := bridge.New(clock, enable, c.Channel.Capacity)
	c.Sequencer.Apply(b.Radio)
	if c.KeepAlive.Interval > 0 {
		b.KeepAlive.Interval = c.KeepAlive.Interval
	}
	if c.AutoConnect.Enabled {
		rec, err := c.AutoConnect.Record()
		if err != nil {
			return nil, errors.Wrap(err, "autoconnect")
		}
		b.Radio.Configure(rec)
	}
	return b, nil
}

// Apply configures the heartbeat pattern and step.
func (c *HeartbeatConfig) Apply(h *bridge.Heartbeat) {
	if c.Pattern != 0 {
		h.Pattern = c.Pattern
	}
	if c.Step > 0 {
		h.Step = c.Step
	}
}

// StartConfigRequest encodes the autoconnect record as a START_CONFIG frame.
func (a *AutoConnectConfig) StartConfigRequest() ([]byte, error) {
	rec, err := a.Record()
	if err != nil {
		return nil, err
	}
	return command.StartConfigRequest(rec), nil
}

var (
	configFile string
	overrides  Config
)

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML configuration file.")
	flag.StringVar(&overrides.PC.Port, "pc-port", "", "PC link: serial device or ws:// URL.")
	flag.IntVar(&overrides.PC.Baud, "pc-baud", 0, "PC link baud rate.")
	flag.StringVar(&overrides.Radio.Port, "radio-port", "", "Radio link: serial device or ws:// URL.")
	flag.IntVar(&overrides.Radio.Baud, "radio-baud", 0, "Radio link baud rate.")
	flag.StringVar(&overrides.Monitor.URL, "mqtt", "", "MQTT URL for status, e.g. mqtt://localhost:1883/bridge/")
}

// FromFlags loads the file named by -config and applies flag overrides.
func FromFlags() (*Config, error) {
	cfg, err := Load(configFile)
	if err != nil {
		return nil, err
	}
	if overrides.PC.Port != "" {
		cfg.PC.Port = overrides.PC.Port
	}
	if overrides.PC.Baud > 0 {
		cfg.PC.Baud = overrides.PC.Baud
	}
	if overrides.Radio.Port != "" {
		cfg.Radio.Port = overrides.Radio.Port
	}
	if overrides.Radio.Baud > 0 {
		cfg.Radio.Baud = overrides.Radio.Baud
	}
	if overrides.Monitor.URL != "" {
		cfg.Monitor.URL = overrides.Monitor.URL
	}
	return cfg, nil
}
