package x86

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
)

var errUndecodable = errors.New("undecodable")

type operand struct {
	reg  emulator.Reg
	addr uint64
	mem  bool
}

// step executes one instruction. trapped reports whether the instruction
// itself raised an interrupt, which suppresses the trace trap for it.
func (m *Machine) step() (trapped bool, err error) {
	eip := uint64(m.regs[X86_REG_EIP])
	next, trapped, err := m.exec(eip)
	if errors.Is(err, errUndecodable) {
		if m.invalid() {
			return false, nil
		}
		return false, errors.Wrapf(ErrInvalidInstruction, "at %#x", eip)
	} else if err != nil {
		return trapped, err
	}
	if next != 0 {
		m.regs[X86_REG_EIP] = uint32(next)
	}
	return trapped, nil
}

// exec returns the address of the next instruction, or 0 when the
// instruction already updated EIP itself.
func (m *Machine) exec(eip uint64) (uint64, bool, error) {
	op, err := m.fetch8(eip)
	if err != nil {
		return 0, false, err
	}
	next := eip + 1
	switch {
	case op == 0x90: // nop
	case op == 0xCC: // int3
		m.regs[X86_REG_EIP] = uint32(next)
		return 0, true, m.interrupt(INTR_BREAKPOINT, eip)
	case op == 0xCD: // int imm8
		n, err := m.fetch8(next)
		if err != nil {
			return 0, false, err
		}
		m.regs[X86_REG_EIP] = uint32(next + 1)
		return 0, true, m.interrupt(uint64(n), eip)
	case op == 0xF4: // hlt
		m.regs[X86_REG_EIP] = uint32(next)
		m.Stop()
		return 0, false, nil
	case op == 0x9C: // pushf
		err = m.push(m.regs[X86_REG_EFLAGS])
	case op == 0x9D: // popf
		var v uint32
		if v, err = m.pop(); err == nil {
			m.regs[X86_REG_EFLAGS] = v | eflagsFixed
		}
	case op >= 0x50 && op <= 0x57: // push r32
		err = m.push(m.regs[gpr(op)])
	case op >= 0x58 && op <= 0x5F: // pop r32
		var v uint32
		if v, err = m.pop(); err == nil {
			m.regs[gpr(op)] = v
		}
	case op >= 0xB8 && op <= 0xBF: // mov r32, imm32
		var v uint32
		if v, err = m.fetch32(next); err == nil {
			m.regs[gpr(op)] = v
			next += 4
		}
	case op == 0x05: // add eax, imm32
		var v uint32
		if v, err = m.fetch32(next); err == nil {
			m.regs[X86_REG_EAX] = m.flags(m.regs[X86_REG_EAX] + v)
			next += 4
		}
	case op == 0x81 || op == 0x83: // group 1 r/m32, imm
		return m.group1(op, next)
	case op == 0xC7: // mov r/m32, imm32
		dst, sub, at, err := m.modrm(next)
		if err != nil {
			return 0, false, err
		} else if sub != 0 {
			return 0, false, errUndecodable
		}
		v, err := m.fetch32(at)
		if err != nil {
			return 0, false, err
		}
		return at + 4, false, m.set(dst, v)
	case op == 0x89 || op == 0x8B: // mov r/m32, r32 / mov r32, r/m32
		rm, reg, at, err := m.modrm(next)
		if err != nil {
			return 0, false, err
		}
		if op == 0x89 {
			return at, false, m.set(rm, m.regs[gpr(reg)])
		}
		v, err := m.get(rm)
		if err == nil {
			m.regs[gpr(reg)] = v
		}
		return at, false, err
	case op == 0x74 || op == 0x75 || op == 0xEB: // jz / jnz / jmp rel8
		rel, err := m.fetch8(next)
		if err != nil {
			return 0, false, err
		}
		next++
		zf := m.regs[X86_REG_EFLAGS]&EFLAGS_ZF != 0
		if op == 0xEB || (op == 0x74) == zf {
			next = uint64(uint32(next) + uint32(int32(int8(rel))))
		}
	case op == 0xE8 || op == 0xE9: // call / jmp rel32
		rel, err := m.fetch32(next)
		if err != nil {
			return 0, false, err
		}
		next += 4
		if op == 0xE8 {
			if err := m.push(uint32(next)); err != nil {
				return 0, false, err
			}
		}
		next = uint64(uint32(next) + rel)
	case op == 0xC3: // ret
		var v uint32
		if v, err = m.pop(); err == nil {
			next = uint64(v)
		}
	case op == 0x0F: // ud2 and the rest of the two-byte map fault on the instruction
		return 0, false, errUndecodable
	default:
		return 0, false, errUndecodable
	}
	return next, false, err
}

func (m *Machine) group1(op byte, at uint64) (uint64, bool, error) {
	dst, sub, at, err := m.modrm(at)
	if err != nil {
		return 0, false, err
	}
	var imm uint32
	if op == 0x81 {
		if imm, err = m.fetch32(at); err != nil {
			return 0, false, err
		}
		at += 4
	} else {
		b, err := m.fetch8(at)
		if err != nil {
			return 0, false, err
		}
		imm = uint32(int32(int8(b)))
		at++
	}
	v, err := m.get(dst)
	if err != nil {
		return 0, false, err
	}
	switch sub {
	case 0:
		v = m.flags(v + imm)
	case 1:
		v = m.flags(v | imm)
	case 4:
		v = m.flags(v & imm)
	case 5:
		v = m.flags(v - imm)
	case 7:
		m.flags(v - imm)
		return at, false, nil
	default:
		return 0, false, errUndecodable
	}
	return at, false, m.set(dst, v)
}

// modrm decodes a ModR/M byte (and SIB/displacement) at addr and returns
// the r/m operand, the reg field and the address after the encoding.
func (m *Machine) modrm(addr uint64) (operand, byte, uint64, error) {
	b, err := m.fetch8(addr)
	if err != nil {
		return operand{}, 0, 0, err
	}
	addr++
	mod, reg, rm := b>>6, (b>>3)&7, b&7
	if mod == 3 {
		return operand{reg: gpr(rm)}, reg, addr, nil
	}
	var ea uint32
	switch {
	case rm == 4:
		sib, err := m.fetch8(addr)
		if err != nil {
			return operand{}, 0, 0, err
		}
		addr++
		scale, index, base := sib>>6, (sib>>3)&7, sib&7
		if index != 4 {
			ea = m.regs[gpr(index)] << scale
		}
		if base == 5 && mod == 0 {
			disp, err := m.fetch32(addr)
			if err != nil {
				return operand{}, 0, 0, err
			}
			addr += 4
			ea += disp
		} else {
			ea += m.regs[gpr(base)]
		}
	case rm == 5 && mod == 0:
		disp, err := m.fetch32(addr)
		if err != nil {
			return operand{}, 0, 0, err
		}
		return operand{addr: uint64(disp), mem: true}, reg, addr + 4, nil
	default:
		ea = m.regs[gpr(rm)]
	}
	switch mod {
	case 1:
		d, err := m.fetch8(addr)
		if err != nil {
			return operand{}, 0, 0, err
		}
		addr++
		ea += uint32(int32(int8(d)))
	case 2:
		d, err := m.fetch32(addr)
		if err != nil {
			return operand{}, 0, 0, err
		}
		addr += 4
		ea += d
	}
	return operand{addr: uint64(ea), mem: true}, reg, addr, nil
}

func (m *Machine) flags(v uint32) uint32 {
	f := m.regs[X86_REG_EFLAGS] &^ (EFLAGS_ZF | EFLAGS_SF)
	if v == 0 {
		f |= EFLAGS_ZF
	}
	if v&0x80000000 != 0 {
		f |= EFLAGS_SF
	}
	m.regs[X86_REG_EFLAGS] = f
	return v
}

func (m *Machine) interrupt(intno, eip uint64) error {
	if !m.raise(intno) {
		return errors.Wrapf(ErrUnhandledInterrupt, "interrupt %d at %#x", intno, eip)
	}
	return nil
}

func (m *Machine) get(op operand) (uint32, error) {
	if !op.mem {
		return m.regs[op.reg], nil
	}
	return m.load32(op.addr)
}

func (m *Machine) set(op operand, v uint32) error {
	if !op.mem {
		m.regs[op.reg] = v
		return nil
	}
	return m.store32(op.addr, v)
}

func (m *Machine) push(v uint32) error {
	esp := m.regs[X86_REG_ESP] - 4
	if err := m.store32(uint64(esp), v); err != nil {
		return err
	}
	m.regs[X86_REG_ESP] = esp
	return nil
}

func (m *Machine) pop() (uint32, error) {
	esp := m.regs[X86_REG_ESP]
	v, err := m.load32(uint64(esp))
	if err != nil {
		return 0, err
	}
	m.regs[X86_REG_ESP] = esp + 4
	return v, nil
}

func (m *Machine) access(addr, size uint64, prot emulator.MemProt, typ emulator.HookType, value uint64) error {
	err := m.mem.check(addr, size, prot)
	if err == nil {
		return nil
	}
	if m.memFault(typ, addr, size, value) {
		return m.mem.check(addr, size, prot)
	}
	return err
}

func (m *Machine) fetch8(addr uint64) (byte, error) {
	if err := m.access(addr, 1, emulator.MEM_PROT_EXEC, emulator.HOOK_TYPE_MEM_FETCH_UNMAPPED, 0); err != nil {
		return 0, err
	}
	var b [1]byte
	m.mem.read(addr, b[:])
	return b[0], nil
}

func (m *Machine) fetch32(addr uint64) (uint32, error) {
	if err := m.access(addr, 4, emulator.MEM_PROT_EXEC, emulator.HOOK_TYPE_MEM_FETCH_UNMAPPED, 0); err != nil {
		return 0, err
	}
	var b [4]byte
	m.mem.read(addr, b[:])
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (m *Machine) load32(addr uint64) (uint32, error) {
	if err := m.access(addr, 4, emulator.MEM_PROT_READ, emulator.HOOK_TYPE_MEM_READ_UNMAPPED, 0); err != nil {
		return 0, err
	}
	var b [4]byte
	m.mem.read(addr, b[:])
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (m *Machine) store32(addr uint64, v uint32) error {
	typ := emulator.HOOK_TYPE_MEM_WRITE_UNMAPPED
	if _, ok := m.mem.find(addr); ok {
		typ = emulator.HOOK_TYPE_MEM_WRITE_PROT
	}
	if err := m.access(addr, 4, emulator.MEM_PROT_WRITE, typ, uint64(v)); err != nil {
		return err
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.mem.write(addr, b[:])
	return nil
}
