package emulator

import "encoding/binary"

type Pointer struct {
	emu  Emulator
	addr uint64
}

func ToPointer(emu Emulator, addr uint64) Pointer {
	return Pointer{emu, addr}
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.emu, p.addr + offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.emu.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.emu.MemWrite(p.addr, data)
}

// MemReadWord reads one machine word in the emulator's byte order.
func (p Pointer) MemReadWord() (uint64, error) {
	size := p.emu.Arch().PointerSize()
	if size == 0 {
		return 0, ErrArchUnsupported
	}
	buf, err := p.MemRead(size)
	if err != nil {
		return 0, err
	}
	order := Order(p.emu.ByteOrder())
	if size == 4 {
		return uint64(order.Uint32(buf)), nil
	}
	return order.Uint64(buf), nil
}

func (p Pointer) MemWriteWord(val uint64) error {
	size := p.emu.Arch().PointerSize()
	if size == 0 {
		return ErrArchUnsupported
	}
	buf := make([]byte, size)
	order := Order(p.emu.ByteOrder())
	if size == 4 {
		order.PutUint32(buf, uint32(val))
	} else {
		order.PutUint64(buf, val)
	}
	return p.MemWrite(buf)
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	data, err := p.emu.MemRead(p.addr+uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	return len(b), p.emu.MemWrite(p.addr+uint64(off), b)
}

func Order(bo ByteOrder) binary.ByteOrder {
	if bo == BO_BIG_ENDIAN {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
