package x86

import (
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
	emu_x86 "github.com/wnxd/lispcore/emulator/x86"
	internal "github.com/wnxd/lispcore/internal/runtime"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/runtime"
)

// Call-in register convention: the function in EAX, the fixnum argument
// count in ECX, arguments in EDX, EDI and ESI, the result in EDX.
var argRegs = []emulator.Reg{emu_x86.X86_REG_EDX, emu_x86.X86_REG_EDI, emu_x86.X86_REG_ESI}

// hlt; never executed since the run stops on reaching it.
var callInStub = []byte{0xF4}

type X86Rt struct {
	internal.Rt
}

func New(emu emulator.Emulator, opts runtime.Options) (runtime.Runtime, error) {
	if emu.Arch() != emulator.ARCH_X86 {
		return nil, errors.Wrapf(emulator.ErrArchMismatch, "x86 runtime on %s", emu.Arch())
	}
	rt := new(X86Rt)
	if err := rt.Init(rt, emu, opts); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *X86Rt) PC() emulator.Reg {
	return emu_x86.X86_REG_EIP
}

func (rt *X86Rt) SP() emulator.Reg {
	return emu_x86.X86_REG_ESP
}

func (rt *X86Rt) FunctionReg() emulator.Reg {
	return emu_x86.X86_REG_EAX
}

func (rt *X86Rt) NargsReg() emulator.Reg {
	return emu_x86.X86_REG_ECX
}

func (rt *X86Rt) ArgRegs() []emulator.Reg {
	return argRegs
}

func (rt *X86Rt) ResultReg() emulator.Reg {
	return emu_x86.X86_REG_EDX
}

func (rt *X86Rt) TrapVector() uint64 {
	return emu_x86.INTR_BREAKPOINT
}

func (rt *X86Rt) StepVector() uint64 {
	return emu_x86.INTR_DEBUG
}

// External vectors carry the signal number above INTR_EXTERNAL. Signal
// zero does not exist, so its vector carries collection requests.
func (rt *X86Rt) SignalOf(intno uint64) (runtime.Signal, bool) {
	if intno < emu_x86.INTR_EXTERNAL {
		return 0, false
	}
	if intno == emu_x86.INTR_EXTERNAL {
		return runtime.SignalCollect, true
	}
	return runtime.Signal(intno - emu_x86.INTR_EXTERNAL), true
}

func (rt *X86Rt) VectorOf(sig runtime.Signal) uint64 {
	if sig == runtime.SignalCollect {
		return emu_x86.INTR_EXTERNAL
	}
	return emu_x86.INTR_EXTERNAL + uint64(sig)
}

func (rt *X86Rt) NewStepStrategy(mech layout.StepMechanism) (runtime.SingleStepStrategy, error) {
	switch mech {
	case layout.StepTraceFlag:
		return TraceFlag{}, nil
	case layout.StepTrampoline:
		return new(Trampoline), nil
	}
	return nil, errors.Wrapf(runtime.ErrStrategyUnknown, "%q", mech)
}

func (rt *X86Rt) DefaultFlagStore() runtime.FlagStore {
	return runtime.FlagStoreSymbols
}

func (rt *X86Rt) CallInStub() []byte {
	return callInStub
}
