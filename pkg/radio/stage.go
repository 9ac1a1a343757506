package radio

import (
	"fmt"
	"time"
)

// Stage is one step of the bring-up sequence.
type Stage int

// Stages in order. Every stage before Automatic transmits the directive with
// the same index.
const (
	SetMode Stage = iota
	SetDHCP
	JoinAP
	SetMux
	StartConnection
	SetTransferMode
	SetSendTrigger
	Automatic

	NumStages = int(Automatic)
)

var stageNames = [...]string{
	"SetMode",
	"SetDHCP",
	"JoinAP",
	"SetMux",
	"StartConnection",
	"SetTransferMode",
	"SetSendTrigger",
	"Automatic",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Directive returns the directive transmitted at this stage.
func (s Stage) Directive() Directive {
	return Directive(s)
}

// SubState is the position inside a stage.
type SubState int

// Sub-states.
const (
	ReadyToTransmit SubState = iota
	AwaitingResponse
)

func (s SubState) String() string {
	if s == AwaitingResponse {
		return "AwaitingResponse"
	}
	return "ReadyToTransmit"
}

// TaskState is the outer state of the sequencer.
type TaskState int

// Task states.
const (
	// TaskStartup captures module output after power up looking for an
	// association made with stored credentials.
	TaskStartup TaskState = iota
	// TaskStandby waits for a configuration.
	TaskStandby
	// TaskConfig runs the stages.
	TaskConfig
	// TaskReady relays data transparently.
	TaskReady
)

var taskNames = [...]string{"Startup", "Standby", "Config", "Ready"}

func (s TaskState) String() string {
	if s >= 0 && int(s) < len(taskNames) {
		return taskNames[s]
	}
	return fmt.Sprintf("task(%d)", int(s))
}

// StageSpec describes how a stage is judged.
type StageSpec struct {
	// Expect lists substrings any of which completes the stage.
	Expect []string
	// Delay is how long to wait before scanning the module output.
	Delay time.Duration
}

// Response substrings.
const (
	ResponseOK     = "OK"
	ResponsePrompt = ">"
	ResponseGotIP  = "GOT IP"
)

// DefaultStages returns the nominal stage table.
func DefaultStages() [NumStages]StageSpec {
	return [NumStages]StageSpec{
		SetMode:         {Expect: []string{ResponseOK}, Delay: 10 * time.Millisecond},
		SetDHCP:         {Expect: []string{ResponseOK}, Delay: 10 * time.Millisecond},
		JoinAP:          {Expect: []string{ResponseOK}, Delay: 5000 * time.Millisecond},
		SetMux:          {Expect: []string{ResponseOK}, Delay: 20 * time.Millisecond},
		StartConnection: {Expect: []string{ResponseOK}, Delay: 1500 * time.Millisecond},
		SetTransferMode: {Expect: []string{ResponseOK}, Delay: 15 * time.Millisecond},
		SetSendTrigger:  {Expect: []string{ResponseOK, ResponsePrompt}, Delay: 15 * time.Millisecond},
	}
}

// ParseStage parses a stage name, case sensitive.
func ParseStage(name string) (Stage, bool) {
	for n, s := range stageNames {
		if s == name {
			return Stage(n), true
		}
	}
	return 0, false
}
