package x86

import "github.com/wnxd/lispcore/emulator"

const (
	X86_REG_INVALID emulator.Reg = iota
	X86_REG_EAX
	X86_REG_ECX
	X86_REG_EDX
	X86_REG_EBX
	X86_REG_ESP
	X86_REG_EBP
	X86_REG_ESI
	X86_REG_EDI
	X86_REG_EIP
	X86_REG_EFLAGS
	x86RegEnding
)

const (
	EFLAGS_CF uint32 = 1 << 0
	EFLAGS_ZF uint32 = 1 << 6
	EFLAGS_SF uint32 = 1 << 7
	EFLAGS_TF uint32 = 1 << 8
	EFLAGS_IF uint32 = 1 << 9

	eflagsFixed uint32 = 1 << 1
)

// Interrupt vectors raised by the machine itself.
const (
	INTR_DEBUG      uint64 = 1
	INTR_BREAKPOINT uint64 = 3
	// External interrupts are numbered from INTR_EXTERNAL upward.
	INTR_EXTERNAL uint64 = 0x20
)

type regFile [x86RegEnding]uint32

func (rf *regFile) read(reg emulator.Reg) (uint64, error) {
	if reg <= X86_REG_INVALID || reg >= x86RegEnding {
		return 0, emulator.ErrRegInvalid
	}
	return uint64(rf[reg]), nil
}

func (rf *regFile) write(reg emulator.Reg, value uint64) error {
	if reg <= X86_REG_INVALID || reg >= x86RegEnding {
		return emulator.ErrRegInvalid
	}
	if reg == X86_REG_EFLAGS {
		value |= uint64(eflagsFixed)
	}
	rf[reg] = uint32(value)
	return nil
}

func (rf *regFile) readBatch(regs ...emulator.Reg) ([]uint64, error) {
	vals := make([]uint64, len(regs))
	for i, reg := range regs {
		v, err := rf.read(reg)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (rf *regFile) writeBatch(regs []emulator.Reg, vals []uint64) error {
	if len(regs) != len(vals) {
		return emulator.ErrRegInvalid
	}
	for i, reg := range regs {
		if err := rf.write(reg, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// gpr maps the 3-bit register field of an instruction to a register.
func gpr(n byte) emulator.Reg {
	return X86_REG_EAX + emulator.Reg(n&7)
}
