package emulator

import (
	"io"
)

// Emulator is the machine managed code runs on. Memory is mapped in
// page-sized regions; hooks fire on the goroutine that called Start.
type Emulator interface {
	io.Closer
	Arch() Arch
	ByteOrder() ByteOrder
	PageSize() uint64
	MemMap(addr, size uint64, prot MemProt) error
	MemUnmap(addr, size uint64) error
	MemProtect(addr, size uint64, prot MemProt) error
	MemRegions() ([]MemRegion, error)
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
	RegisterContext
	Start(begin, until uint64) error
	Stop() error
	// Interrupt queues an external interrupt. It is the only method that
	// may be called from another goroutine; delivery happens between two
	// instructions of a running Start.
	Interrupt(intno uint64)
	ContextAlloc() (Context, error)
	Hook(typ HookType, callback any, data any, begin, end uint64) (Hook, error)
}
