package pipeline

import "fmt"

// The pipeline is a sequential state machine:
//
//	Idle -> Displaying(i) -> {commit | calibrate | skip} -> Displaying(i+1) -> ... -> Done
//
// Each mode is its own type so an illegal combination (for example,
// committing while calibrating) has no representation; every event handler
// switches on the concrete state.
type state interface {
	String() string
}

type stateIdle struct{}

type stateDisplaying struct{ index int }

type stateCalibrating struct{ index int }

type stateDone struct{}

func (stateIdle) String() string { return "idle" }

func (s stateDisplaying) String() string { return fmt.Sprintf("displaying(%d)", s.index) }

func (s stateCalibrating) String() string { return fmt.Sprintf("calibrating(%d)", s.index) }

func (stateDone) String() string { return "done" }
