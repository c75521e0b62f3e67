// Package x86 is a small software i386 machine. It implements enough of
// the instruction set to run trap sequences, single-step trampolines and
// call-in stubs: control transfer, stack, flag and simple arithmetic
// instructions. Anything else raises an invalid-instruction hook.
package x86

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
)

var (
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrUnhandledInterrupt = errors.New("unhandled interrupt")
)

type Machine struct {
	regs    regFile
	mem     memory
	hooks   []*hook
	closed  bool
	stopped atomic.Bool

	mu      sync.Mutex
	pending []uint64
}

func New() *Machine {
	m := new(Machine)
	m.mem.init()
	m.regs[X86_REG_EFLAGS] = eflagsFixed | EFLAGS_IF
	return m
}

func (m *Machine) Close() error {
	m.closed = true
	m.hooks = nil
	m.mem.regions = nil
	clear(m.mem.pages)
	return nil
}

func (m *Machine) Arch() emulator.Arch {
	return emulator.ARCH_X86
}

func (m *Machine) ByteOrder() emulator.ByteOrder {
	return emulator.BO_LITTLE_ENDIAN
}

func (m *Machine) RegRead(reg emulator.Reg) (uint64, error) {
	return m.regs.read(reg)
}

func (m *Machine) RegWrite(reg emulator.Reg, value uint64) error {
	return m.regs.write(reg, value)
}

func (m *Machine) RegReadBatch(regs ...emulator.Reg) ([]uint64, error) {
	return m.regs.readBatch(regs...)
}

func (m *Machine) RegWriteBatch(regs []emulator.Reg, vals []uint64) error {
	return m.regs.writeBatch(regs, vals)
}

func (m *Machine) Interrupt(intno uint64) {
	m.mu.Lock()
	m.pending = append(m.pending, intno)
	m.mu.Unlock()
}

func (m *Machine) takePending() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pending
	m.pending = nil
	return p
}

// Stop makes the current Start return after the instruction in progress.
func (m *Machine) Stop() error {
	m.stopped.Store(true)
	return nil
}

// Start runs from begin until EIP reaches until, Stop is called or a HLT
// executes. Start may be re-entered from a hook; the inner run stops
// independently of the outer one.
func (m *Machine) Start(begin, until uint64) error {
	if m.closed {
		return emulator.ErrClosed
	}
	outer := m.stopped.Load()
	m.stopped.Store(false)
	defer m.stopped.Store(outer)
	m.regs[X86_REG_EIP] = uint32(begin)
	for {
		for _, intno := range m.takePending() {
			if !m.raise(intno) {
				return errors.Wrapf(ErrUnhandledInterrupt, "external interrupt %d", intno)
			}
			if m.stopped.Load() {
				return nil
			}
		}
		eip := uint64(m.regs[X86_REG_EIP])
		if eip == until {
			return nil
		}
		trace := m.regs[X86_REG_EFLAGS]&EFLAGS_TF != 0
		trapped, err := m.step()
		if err != nil {
			return err
		}
		if m.stopped.Load() {
			return nil
		}
		if trace && !trapped {
			if !m.raise(INTR_DEBUG) {
				return errors.Wrapf(ErrUnhandledInterrupt, "debug trap at %#x", eip)
			}
			if m.stopped.Load() {
				return nil
			}
		}
	}
}
