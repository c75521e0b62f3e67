package emulator

import "io"

type HookType int

const (
	HOOK_TYPE_INTR HookType = 1 << iota
	HOOK_TYPE_INSN_INVALID
	HOOK_TYPE_MEM_READ_UNMAPPED
	HOOK_TYPE_MEM_WRITE_UNMAPPED
	HOOK_TYPE_MEM_FETCH_UNMAPPED
	HOOK_TYPE_MEM_WRITE_PROT

	HOOK_TYPE_MEM_INVALID = HOOK_TYPE_MEM_READ_UNMAPPED | HOOK_TYPE_MEM_WRITE_UNMAPPED | HOOK_TYPE_MEM_FETCH_UNMAPPED | HOOK_TYPE_MEM_WRITE_PROT
)

// Callback shapes accepted by Emulator.Hook, per hook type.
type (
	InterruptHook = func(intno uint64, data any)
	InvalidHook   = func(data any) bool
	MemoryHook    = func(typ HookType, addr, size, value uint64, data any) bool
)

type Hook interface {
	io.Closer
}

func (t HookType) String() string {
	switch t {
	case HOOK_TYPE_INTR:
		return "intr"
	case HOOK_TYPE_INSN_INVALID:
		return "insn_invalid"
	case HOOK_TYPE_MEM_READ_UNMAPPED:
		return "mem_read_unmapped"
	case HOOK_TYPE_MEM_WRITE_UNMAPPED:
		return "mem_write_unmapped"
	case HOOK_TYPE_MEM_FETCH_UNMAPPED:
		return "mem_fetch_unmapped"
	case HOOK_TYPE_MEM_WRITE_PROT:
		return "mem_write_prot"
	}
	return "mixed"
}
