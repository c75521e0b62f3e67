package runtime

import (
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/log"
	"github.com/wnxd/lispcore/runtime"
)

// Runtime is what a port adds on top of Rt: its register convention,
// trap vectors and single-step mechanisms.
type Runtime interface {
	runtime.Runtime
	PC() emulator.Reg
	SP() emulator.Reg
	FunctionReg() emulator.Reg
	NargsReg() emulator.Reg
	ArgRegs() []emulator.Reg
	ResultReg() emulator.Reg
	TrapVector() uint64
	StepVector() uint64
	SignalOf(intno uint64) (runtime.Signal, bool)
	VectorOf(sig runtime.Signal) uint64
	NewStepStrategy(mech layout.StepMechanism) (runtime.SingleStepStrategy, error)
	DefaultFlagStore() runtime.FlagStore
	// CallInStub is written at the call-in return address. It is never
	// reached by a well-behaved function, since the run stops there.
	CallInStub() []byte
}

type Rt struct {
	impl     Runtime
	emu      emulator.Emulator
	platform *layout.Platform
	log      hclog.Logger
	handlers runtime.Handlers
	spaceManager
	stateManager
	atomicCoordinator
	trapManager
	breakpointManager
	callManager
}

func (rt *Rt) Init(impl Runtime, emu emulator.Emulator, opts runtime.Options) error {
	platform := opts.Platform
	if platform == nil {
		var err error
		if platform, err = layout.Lookup(layout.DefaultPlatform); err != nil {
			return err
		}
	} else {
		platform = platform.Clone()
	}
	if opts.Step != "" {
		platform.Step = opts.Step
	}
	if err := platform.Validate(); err != nil {
		return err
	}
	if emu.PageSize() != platform.PageSize {
		return errors.Wrapf(layout.ErrBadLayout, "%s: page size %#x, machine uses %#x", platform.Name, platform.PageSize, emu.PageSize())
	}
	rt.impl = impl
	rt.emu = emu
	rt.platform = platform
	rt.handlers = opts.Handlers
	rt.log = opts.Logger
	if rt.log == nil {
		rt.log = log.Named("runtime")
	}
	if err := rt.spaceManager.ctor(rt); err != nil {
		return err
	}
	rt.stateManager.ctor(rt)
	if err := rt.trapManager.ctor(rt, opts); err != nil {
		rt.Close()
		return err
	}
	if err := rt.breakpointManager.ctor(rt); err != nil {
		rt.Close()
		return err
	}
	rt.atomicCoordinator.ctor(rt, opts.Flags)
	rt.callManager.ctor()
	rt.log.Debug("runtime ready", "platform", platform.Name, "step", rt.step.Name())
	return nil
}

func (rt *Rt) Close() error {
	rt.callManager.dtor()
	rt.atomicCoordinator.dtor()
	rt.breakpointManager.dtor(rt)
	rt.trapManager.dtor()
	rt.stateManager.dtor()
	return rt.spaceManager.dtor(rt)
}

func (rt *Rt) Emulator() emulator.Emulator {
	return rt.emu
}

func (rt *Rt) Platform() *layout.Platform {
	return rt.platform
}

func (rt *Rt) Logger() hclog.Logger {
	return rt.log
}

func (rt *Rt) pc() uint64 {
	pc, _ := rt.emu.RegRead(rt.impl.PC())
	return pc
}

func (rt *Rt) setPC(pc uint64) error {
	return rt.emu.RegWrite(rt.impl.PC(), pc)
}
