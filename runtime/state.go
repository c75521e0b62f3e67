package runtime

import (
	"fmt"

	"github.com/wnxd/lispcore/layout"
	"golang.org/x/sys/unix"
)

// Bits of State.Flags.
const (
	FlagAtomic      = 0
	FlagInterrupted = 1
)

// State is the runtime's process-wide record, shared by the runtime and
// managed code.
type State struct {
	CurrentDynamicSpace layout.SpaceID
	FreePointer         uint64
	// GCTrigger is the free pointer value past which a collection is
	// requested. Zero disables it.
	GCTrigger           uint64
	ControlStackPointer uint64
	ControlFramePointer uint64
	BindingStackPointer uint64
	ForeignCallActive   bool
	Flags               uint32
}

func (s *State) Flag(bit int) bool {
	return s.Flags&(1<<bit) != 0
}

func (s *State) SetFlag(bit int, on bool) {
	if on {
		s.Flags |= 1 << bit
	} else {
		s.Flags &^= 1 << bit
	}
}

// AtomicFlags is the storage behind the pseudo-atomic protocol. Ports keep
// it either in State.Flags or in static symbol values managed code can
// reach directly.
type AtomicFlags interface {
	Atomic() (bool, error)
	SetAtomic(on bool) error
	Interrupted() (bool, error)
	SetInterrupted(on bool) error
}

type FlagStore int

const (
	// FlagStoreDefault lets the port decide.
	FlagStoreDefault FlagStore = iota
	FlagStoreWord
	FlagStoreSymbols
)

type Phase int

const (
	PhaseRunning Phase = iota
	PhaseTrapped
	PhaseSingleStepping
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseTrapped:
		return "trapped"
	case PhaseSingleStepping:
		return "single-stepping"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Signal is an asynchronous event delivered to the runtime.
type Signal int

// SignalCollect is raised by the allocator when the free pointer crosses
// the GC trigger.
const SignalCollect Signal = -1

func (s Signal) String() string {
	if s == SignalCollect {
		return "collect"
	}
	if name := unix.SignalName(unix.Signal(s)); name != "" {
		return name
	}
	return fmt.Sprintf("signal(%d)", int(s))
}
