package runtime

import (
	"encoding/binary"

	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/encoding"
	"github.com/wnxd/lispcore/lisp"
)

type pointerStream struct {
	ptr   emulator.Pointer
	order binary.ByteOrder
}

// PointerStream reads and writes heap words at ptr, advancing as it goes.
func PointerStream(emu emulator.Emulator, addr uint64) encoding.Stream {
	return &pointerStream{emulator.ToPointer(emu, addr), emulator.Order(emu.ByteOrder())}
}

func (ps *pointerStream) WordSize() int {
	return lisp.WordSize
}

func (ps *pointerStream) ByteOrder() binary.ByteOrder {
	return ps.order
}

func (ps *pointerStream) Offset() uint64 {
	return ps.ptr.Address()
}

func (ps *pointerStream) Skip(n int) error {
	ps.ptr = ps.ptr.Add(uint64(n))
	return nil
}

func (ps *pointerStream) Read(b []byte) (int, error) {
	n, err := ps.ptr.ReadAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}

func (ps *pointerStream) Write(b []byte) (int, error) {
	n, err := ps.ptr.WriteAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}
