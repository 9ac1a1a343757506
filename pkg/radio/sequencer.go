// Package radio brings the WiFi module online through its AT command
// handshake and tracks when it is ready to relay data.
package radio

import (
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/wifibridge/pkg/platform"
	"github.com/robotalks/wifibridge/pkg/ring"
)

// Defaults of a Sequencer.
const (
	DefaultStartupTime = 10 * time.Second
	DefaultCheckAfter  = 8 * time.Second
	DefaultMaxSends    = 3
	DefaultMaxTimeouts = 3
	// ResetPulse is how long the enable line is held low on reset.
	ResetPulse = 10 * time.Microsecond
)

// Sequencer drives the module through the configuration stages.
//
// All methods except FeedResponse and Capturing belong to the loop
// goroutine. FeedResponse is the producer side of the capture ring and is
// called from the radio receiver.
type Sequencer struct {
	Clock  platform.Clock
	Enable platform.Pin
	// Out receives AT commands and the keep-alive frame.
	Out *ring.Ring
	// KeepAlive is the frame written when the module becomes ready.
	KeepAlive []byte
	Observer  Observer

	Stages      [NumStages]StageSpec
	StartupTime time.Duration
	CheckAfter  time.Duration
	MaxSends    int
	MaxTimeouts int

	capture       *ring.Ring
	configActive  atomic.Bool
	startupActive atomic.Bool
	ready         atomic.Bool

	record       Record
	task         TaskState
	stage        Stage
	sub          SubState
	sends        int
	timeouts     int
	stageStart   uint32
	startupStart uint32
	resets       int
}

// Status is a snapshot of the sequencer.
type Status struct {
	Task     TaskState
	Stage    Stage
	Sub      SubState
	Sends    int
	Timeouts int
	Resets   int
	Ready    bool
}

// NewSequencer creates a Sequencer in the startup window. captureSize is
// the capacity of the ring holding module output during configuration.
func NewSequencer(clock platform.Clock, enable platform.Pin, out *ring.Ring, captureSize int) *Sequencer {
	s := &Sequencer{
		Clock:       clock,
		Enable:      enable,
		Out:         out,
		Stages:      DefaultStages(),
		StartupTime: DefaultStartupTime,
		CheckAfter:  DefaultCheckAfter,
		MaxSends:    DefaultMaxSends,
		MaxTimeouts: DefaultMaxTimeouts,
		capture:     ring.New(captureSize),
	}
	s.startupActive.Store(true)
	now := clock.Millis()
	s.stageStart, s.startupStart = now, now
	return s
}

// Capturing tells whether inbound module bytes belong to the sequencer.
func (s *Sequencer) Capturing() bool {
	return s.configActive.Load() || s.startupActive.Load()
}

// FeedResponse queues a byte of module output for scanning.
func (s *Sequencer) FeedResponse(b byte) {
	s.capture.Push(b)
}

// IsReady reports whether the module reached relay mode.
func (s *Sequencer) IsReady() bool {
	return s.ready.Load()
}

// Record returns the active configuration.
func (s *Sequencer) Record() Record {
	return s.record
}

// Status returns a snapshot of the state.
func (s *Sequencer) Status() Status {
	return Status{
		Task:     s.task,
		Stage:    s.stage,
		Sub:      s.sub,
		Sends:    s.sends,
		Timeouts: s.timeouts,
		Resets:   s.resets,
		Ready:    s.IsReady(),
	}
}

// Configure starts the stages over with rec. It may be called at any time.
func (s *Sequencer) Configure(rec *Record) {
	s.record = *rec
	s.flushCapture()
	s.configActive.Store(true)
	s.ready.Store(false)
	s.stage, s.sub = SetMode, ReadyToTransmit
	s.sends, s.timeouts = 0, 0
	if s.task == TaskReady {
		s.task = TaskStandby
	}
	glog.Infof("radio: configure requested (task %s)", s.task)
	s.emit(EventConfigure)
}

// Reset pulses the enable line and restarts from the startup window.
func (s *Sequencer) Reset() {
	if s.Enable != nil {
		s.Enable.Set(false)
		s.Clock.BusyWait(ResetPulse)
		s.Enable.Set(true)
	}
	s.flushCapture()
	s.ready.Store(false)
	s.startupActive.Store(true)
	s.task, s.stage, s.sub = TaskStartup, SetMode, ReadyToTransmit
	s.sends, s.timeouts = 0, 0
	now := s.Clock.Millis()
	s.stageStart, s.startupStart = now, now
	s.resets++
	glog.Warningf("radio: module reset (#%d)", s.resets)
	s.emit(EventReset)
}

// Step advances the state machine once. It never blocks.
func (s *Sequencer) Step() {
	now := s.Clock.Millis()
	switch s.task {
	case TaskStartup:
		s.stepStartup(now)
	case TaskStandby:
		if s.configActive.Load() {
			s.task, s.stageStart = TaskConfig, now
			glog.V(2).Infof("radio: config from stage %s", s.stage)
		}
	case TaskConfig:
		s.stepConfig(now)
	}
}

func (s *Sequencer) stepStartup(now uint32) {
	if now-s.startupStart >= platform.Millis(s.CheckAfter) && Scan(s.capture, ResponseGotIP) {
		glog.Infof("radio: module associated on startup")
		s.stage, s.sub = SetMux, ReadyToTransmit
		s.endStartup(now)
		s.emit(EventAssociated)
		return
	}
	if now-s.startupStart >= platform.Millis(s.StartupTime) {
		s.endStartup(now)
	}
}

func (s *Sequencer) endStartup(now uint32) {
	s.startupActive.Store(false)
	s.task, s.stageStart = TaskStandby, now
}

func (s *Sequencer) stepConfig(now uint32) {
	if s.stage >= Automatic {
		s.enterReady()
		return
	}
	spec := &s.Stages[s.stage]
	switch s.sub {
	case ReadyToTransmit:
		cmd := s.record.Command(s.stage.Directive())
		s.Out.Write(cmd)
		s.sub = AwaitingResponse
		s.sends++
		s.stageStart = now
		glog.V(2).Infof("radio: %s sent %q (%d)", s.stage, cmd, s.sends)
	case AwaitingResponse:
		if now-s.stageStart < platform.Millis(spec.Delay) {
			return
		}
		s.stageStart = now
		if Scan(s.capture, spec.Expect...) {
			glog.Infof("radio: %s done", s.stage)
			s.emit(EventStage)
			s.stage++
			s.sub = ReadyToTransmit
			s.sends, s.timeouts = 0, 0
		} else {
			s.timeouts++
			glog.V(2).Infof("radio: %s no response (%d)", s.stage, s.timeouts)
			s.emit(EventTimeout)
		}
	}
	if s.sends > s.MaxSends {
		s.Reset()
		return
	}
	if s.timeouts > s.MaxTimeouts {
		s.timeouts = 0
		s.sub = ReadyToTransmit
	}
}

func (s *Sequencer) enterReady() {
	s.Out.Write(s.KeepAlive)
	s.task = TaskReady
	s.configActive.Store(false)
	s.ready.Store(true)
	glog.Info("radio: ready")
	s.emit(EventReady)
}

func (s *Sequencer) flushCapture() {
	for s.capture.HasData() {
		s.capture.Pop()
	}
}

func (s *Sequencer) emit(kind EventKind) {
	if s.Observer == nil {
		return
	}
	s.Observer.RadioEvent(Event{
		Kind:     kind,
		Task:     s.task,
		Stage:    s.stage,
		Sends:    s.sends,
		Timeouts: s.timeouts,
		Millis:   s.Clock.Millis(),
	})
}
