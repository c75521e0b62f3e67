// Package layout holds the per-platform address maps. Compiled code
// embeds some of these addresses, so changing a map invalidates every
// snapshot saved with it.
package layout

import (
	"fmt"
	"slices"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type SpaceID int

const (
	ReadOnlySpace SpaceID = iota
	StaticSpace
	Dynamic0Space
	Dynamic1Space
	BindingStack
	ControlStack
	spaceEnding
)

type Growth int

const (
	GrowUp Growth = iota
	GrowDown
)

type Access int

const (
	AccessReadOnly Access = iota
	AccessStatic
	AccessDynamic
	AccessStack
)

type Space struct {
	ID     SpaceID
	Name   string
	Start  uint64
	Size   uint64
	Growth Growth
	Access Access
}

func (s Space) End() uint64 {
	return s.Start + s.Size
}

func (s Space) Contains(addr uint64) bool {
	return addr >= s.Start && addr < s.End()
}

// Initial is where a pointer into the space starts: the base for spaces
// that grow up, the end for the control stack.
func (s Space) Initial() uint64 {
	if s.Growth == GrowDown {
		return s.End()
	}
	return s.Start
}

func (s Space) String() string {
	dir := "up"
	if s.Growth == GrowDown {
		dir = "down"
	}
	return fmt.Sprintf("%-14s %#010x-%#010x %7dK %s", s.Name, s.Start, s.End(), s.Size>>10, dir)
}

// TrapStyle tells where the PC points once a trap instruction executed.
type TrapStyle int

const (
	// TrapAfter: the PC is past the instruction (int3).
	TrapAfter TrapStyle = iota
	// TrapAt: the PC is on the instruction (ud2 faults).
	TrapAt
)

// StepMechanism picks how a breakpoint is stepped over.
type StepMechanism string

const (
	StepTraceFlag  StepMechanism = "trace-flag"
	StepTrampoline StepMechanism = "trampoline"
)

type Platform struct {
	Name      string
	Spaces    [spaceEnding]Space
	TrapInsn  []byte
	TrapStyle TrapStyle
	Step      StepMechanism
	// Signals carrying synchronous traps, and the asynchronous ones routed
	// through the pseudo-atomic check.
	TrapSignals  []unix.Signal
	AsyncSignals []unix.Signal
	PageSize     uint64
}

func (p *Platform) Space(id SpaceID) Space {
	return p.Spaces[id]
}

// SpaceOf finds the space containing addr.
func (p *Platform) SpaceOf(addr uint64) (Space, bool) {
	for _, s := range p.Spaces {
		if s.Contains(addr) {
			return s, true
		}
	}
	return Space{}, false
}

// Validate checks that every space is page aligned, non-empty and
// disjoint from the others.
func (p *Platform) Validate() error {
	if p.PageSize == 0 || p.PageSize&(p.PageSize-1) != 0 {
		return errors.Wrapf(ErrBadLayout, "%s: page size %#x", p.Name, p.PageSize)
	}
	if len(p.TrapInsn) == 0 {
		return errors.Wrapf(ErrBadLayout, "%s: no trap instruction", p.Name)
	}
	spaces := slices.Clone(p.Spaces[:])
	for _, s := range spaces {
		if s.Size == 0 {
			return errors.Wrapf(ErrBadLayout, "%s: %s is empty", p.Name, s.Name)
		}
		if s.Start%p.PageSize != 0 || s.Size%p.PageSize != 0 {
			return errors.Wrapf(ErrBadLayout, "%s: %s not page aligned", p.Name, s.Name)
		}
		if s.End() < s.Start || s.End() > 1<<32 {
			return errors.Wrapf(ErrBadLayout, "%s: %s outside the address space", p.Name, s.Name)
		}
	}
	sort.Slice(spaces, func(i, j int) bool { return spaces[i].Start < spaces[j].Start })
	for i := 1; i < len(spaces); i++ {
		if spaces[i-1].End() > spaces[i].Start {
			return errors.Wrapf(ErrSpaceOverlap, "%s: %s and %s", p.Name, spaces[i-1].Name, spaces[i].Name)
		}
	}
	return nil
}

func (p *Platform) Clone() *Platform {
	c := *p
	c.TrapInsn = slices.Clone(p.TrapInsn)
	c.TrapSignals = slices.Clone(p.TrapSignals)
	c.AsyncSignals = slices.Clone(p.AsyncSignals)
	return &c
}

func (id SpaceID) String() string {
	switch id {
	case ReadOnlySpace:
		return "read-only"
	case StaticSpace:
		return "static"
	case Dynamic0Space:
		return "dynamic-0"
	case Dynamic1Space:
		return "dynamic-1"
	case BindingStack:
		return "binding-stack"
	case ControlStack:
		return "control-stack"
	}
	return "unknown"
}

func SpaceIDs() []SpaceID {
	ids := make([]SpaceID, spaceEnding)
	for i := range ids {
		ids[i] = SpaceID(i)
	}
	return ids
}
