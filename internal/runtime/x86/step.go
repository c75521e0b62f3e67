package x86

import (
	"github.com/pkg/errors"
	emu_x86 "github.com/wnxd/lispcore/emulator/x86"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/runtime"
)

// trampolineCode sits right before the stepped instruction and sets the
// trace flag through the stack: nop; nop; nop; pushf; or dword [esp],
// 0x100; popf. Entry is at the pushf.
var trampolineCode = []byte{0x90, 0x90, 0x90, 0x9C, 0x81, 0x0C, 0x24, 0x00, 0x01, 0x00, 0x00, 0x9D}

const trampolineEntry = 3

func setTrace(t runtime.StepTarget, on bool) error {
	flags, err := t.RegRead(emu_x86.X86_REG_EFLAGS)
	if err != nil {
		return err
	}
	if on {
		flags |= uint64(emu_x86.EFLAGS_TF)
	} else {
		flags &^= uint64(emu_x86.EFLAGS_TF)
	}
	return t.RegWrite(emu_x86.X86_REG_EFLAGS, flags)
}

// TraceFlag steps with the CPU's trace flag.
type TraceFlag struct{}

func (TraceFlag) Name() string {
	return string(layout.StepTraceFlag)
}

func (TraceFlag) Arm(t runtime.StepTarget, addr uint64) error {
	return setTrace(t, true)
}

func (TraceFlag) Disarm(t runtime.StepTarget, addr uint64) error {
	return setTrace(t, false)
}

// Trampoline is for machines where the handler cannot set the trace flag
// in the interrupted context: helper code before the instruction sets it
// from inside managed code.
type Trampoline struct {
	patch *runtime.CodePatch
}

func (s *Trampoline) Name() string {
	return string(layout.StepTrampoline)
}

func (s *Trampoline) Arm(t runtime.StepTarget, addr uint64) error {
	if s.patch != nil {
		return errors.Wrapf(runtime.ErrAlreadyStepping, "trampoline at %08X", s.patch.Addr)
	}
	base := addr - uint64(len(trampolineCode))
	patch, err := runtime.NewCodePatch(t, base, trampolineCode)
	if err != nil {
		return err
	}
	if err := patch.Apply(t); err != nil {
		return err
	}
	if err := t.RegWrite(emu_x86.X86_REG_EIP, base+trampolineEntry); err != nil {
		patch.Revert(t)
		return err
	}
	s.patch = patch
	return nil
}

func (s *Trampoline) Disarm(t runtime.StepTarget, addr uint64) error {
	if s.patch == nil || s.patch.Addr+s.patch.Size() != addr {
		return errors.Wrapf(runtime.ErrStepMismatch, "no trampoline before %08X", addr)
	}
	if err := s.patch.Revert(t); err != nil {
		return err
	}
	s.patch = nil
	return setTrace(t, false)
}
