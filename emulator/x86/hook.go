package x86

import (
	"slices"

	"github.com/wnxd/lispcore/emulator"
)

type hook struct {
	m          *Machine
	typ        emulator.HookType
	callback   any
	data       any
	begin, end uint64
}

func (m *Machine) Hook(typ emulator.HookType, callback any, data any, begin, end uint64) (emulator.Hook, error) {
	switch typ {
	case emulator.HOOK_TYPE_INTR:
		if _, ok := callback.(emulator.InterruptHook); !ok {
			return nil, emulator.ErrHookType
		}
	case emulator.HOOK_TYPE_INSN_INVALID:
		if _, ok := callback.(emulator.InvalidHook); !ok {
			return nil, emulator.ErrHookType
		}
	default:
		if typ&emulator.HOOK_TYPE_MEM_INVALID == 0 {
			return nil, emulator.ErrHookType
		}
		if _, ok := callback.(emulator.MemoryHook); !ok {
			return nil, emulator.ErrHookType
		}
	}
	h := &hook{m: m, typ: typ, callback: callback, data: data, begin: begin, end: end}
	m.hooks = append(m.hooks, h)
	return h, nil
}

func (h *hook) Close() error {
	if h.m != nil {
		h.m.hooks = slices.DeleteFunc(h.m.hooks, func(o *hook) bool { return o == h })
		h.m = nil
	}
	return nil
}

// valid follows the unicorn convention: begin > end covers every address.
func (h *hook) valid(typ emulator.HookType, pc uint64) bool {
	if h.typ&typ == 0 {
		return false
	} else if h.begin > h.end {
		return true
	}
	return pc >= h.begin && pc < h.end
}

func (m *Machine) each(typ emulator.HookType, pc uint64, fn func(*hook) bool) bool {
	// Callbacks may add or remove hooks.
	for _, h := range slices.Clone(m.hooks) {
		if h.m != nil && h.valid(typ, pc) && fn(h) {
			return true
		}
	}
	return false
}

func (m *Machine) raise(intno uint64) bool {
	pc := uint64(m.regs[X86_REG_EIP])
	if !m.hasHook(emulator.HOOK_TYPE_INTR, pc) {
		return false
	}
	m.each(emulator.HOOK_TYPE_INTR, pc, func(h *hook) bool {
		h.callback.(emulator.InterruptHook)(intno, h.data)
		return false
	})
	return true
}

func (m *Machine) invalid() bool {
	pc := uint64(m.regs[X86_REG_EIP])
	return m.each(emulator.HOOK_TYPE_INSN_INVALID, pc, func(h *hook) bool {
		return h.callback.(emulator.InvalidHook)(h.data)
	})
}

func (m *Machine) memFault(typ emulator.HookType, addr, size, value uint64) bool {
	pc := uint64(m.regs[X86_REG_EIP])
	return m.each(typ, pc, func(h *hook) bool {
		return h.callback.(emulator.MemoryHook)(typ, addr, size, value, h.data)
	})
}

func (m *Machine) hasHook(typ emulator.HookType, pc uint64) bool {
	return slices.ContainsFunc(m.hooks, func(h *hook) bool { return h.valid(typ, pc) })
}
