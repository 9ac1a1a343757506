package main

import (
	"context"
	"flag"
	"io"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/wifibridge/pkg/bridge"
	"github.com/robotalks/wifibridge/pkg/config"
	fx "github.com/robotalks/wifibridge/pkg/framework"
	"github.com/robotalks/wifibridge/pkg/monitor"
	"github.com/robotalks/wifibridge/pkg/platform"
	"github.com/robotalks/wifibridge/pkg/radio"
)

func init() {
	config.SetupFlags()
}

func enablePin(conf *config.RadioConfig, port platform.Port) platform.Pin {
	sp, ok := port.(serial.Port)
	if !ok {
		return &platform.LogPin{Name: "radio-enable"}
	}
	switch conf.Enable {
	case "dtr":
		return &platform.ModemLinePin{Port: sp, Line: platform.LineDTR, Invert: conf.EnableInvert}
	case "rts":
		return &platform.ModemLinePin{Port: sp, Line: platform.LineRTS, Invert: conf.EnableInvert}
	}
	return &platform.LogPin{Name: "radio-enable"}
}

func startMonitor(conf *config.Config, b *bridge.Bridge) io.Closer {
	deviceID := conf.Monitor.DeviceID
	if deviceID == "" {
		deviceID = monitor.DeviceID()
	}
	q, err := monitor.NewQueueFromURL(conf.Monitor.URL, deviceID)
	if err != nil {
		glog.Exitf("monitor: %v", err)
	}
	reporter := monitor.NewReporter(q, deviceID)
	q.OnConnect = reporter.OnConnect
	b.Radio.Observer = radio.Observers{b.Radio.Observer, reporter}
	b.KeepAlive.OnSent = reporter.KeepAliveSent
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Warningf("monitor: %v, events are not published", token.Error())
	}
	glog.Infof("monitor publishing as %s", deviceID)
	return q
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := config.FromFlags()
	if err != nil {
		glog.Exit(err)
	}

	pcPort, err := platform.Open(conf.PC.Port, conf.PC.Baud)
	if err != nil {
		glog.Exit(err)
	}
	radioPort, err := platform.Open(conf.Radio.Port, conf.Radio.Baud)
	if err != nil {
		glog.Exit(err)
	}

	clock := platform.NewSystemClock()
	b, err := conf.NewBridge(clock, enablePin(&conf.Radio, radioPort))
	if err != nil {
		glog.Exit(err)
	}
	b.PCPort, b.RadioPort = pcPort, radioPort
	b.Radio.Observer = radio.ObserverFunc(func(ev radio.Event) {
		glog.V(1).Infof("radio %s: task %s stage %s", ev.Kind, ev.Task, ev.Stage)
	})
	if conf.Monitor.URL != "" {
		defer startMonitor(conf, b).Close()
	}

	loop := fx.NewLoop()
	loop.Interval = conf.Loop.Interval
	loop.Add(b)
	if conf.Heartbeat.Enabled {
		hb := bridge.NewHeartbeat(&platform.LogPin{Name: "heartbeat"}, clock)
		conf.Heartbeat.Apply(hb)
		loop.Add(hb)
	}

	runner := fx.NewRunner().HandleSignals()
	ctx, cancel := context.WithCancel(runner.Context)
	stopOnExit := func(r fx.Runnable) fx.Runnable {
		return fx.RunFunc(func(ctx context.Context) error {
			defer cancel()
			return r.Run(ctx)
		})
	}
	runner.GoWith(ctx,
		fx.NamedRun("pc", stopOnExit(platform.NewReceiver("pc", pcPort, b.FeedPC))),
		fx.NamedRun("radio", stopOnExit(platform.NewReceiver("radio", radioPort, b.FeedRadio))),
		fx.NamedRun("loop", stopOnExit(loop)),
	)
	glog.Infof("bridging %s <-> %s", conf.PC.Port, conf.Radio.Port)
	err = runner.Wait()
	cancel()
	if err != nil {
		glog.Error(err)
	}
}
