package x86

import "github.com/wnxd/lispcore/emulator"

type context struct {
	m    *Machine
	regs regFile
}

func (m *Machine) ContextAlloc() (emulator.Context, error) {
	if m.closed {
		return nil, emulator.ErrClosed
	}
	return &context{m: m}, nil
}

func (c *context) Close() error {
	c.m = nil
	return nil
}

func (c *context) Save() error {
	c.regs = c.m.regs
	return nil
}

func (c *context) Restore() error {
	c.m.regs = c.regs
	return nil
}

func (c *context) Clone() (emulator.Context, error) {
	return &context{m: c.m, regs: c.regs}, nil
}

func (c *context) RegRead(reg emulator.Reg) (uint64, error) {
	return c.regs.read(reg)
}

func (c *context) RegWrite(reg emulator.Reg, value uint64) error {
	return c.regs.write(reg, value)
}

func (c *context) RegReadBatch(regs ...emulator.Reg) ([]uint64, error) {
	return c.regs.readBatch(regs...)
}

func (c *context) RegWriteBatch(regs []emulator.Reg, vals []uint64) error {
	return c.regs.writeBatch(regs, vals)
}
