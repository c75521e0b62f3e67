package runtime

import (
	"bytes"
	"slices"

	"github.com/pkg/errors"
)

type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
}

// CodePatch is a reversible overwrite of managed code. Original holds the
// bytes that were there before the patch was taken.
type CodePatch struct {
	Addr        uint64
	Original    []byte
	Replacement []byte
}

// NewCodePatch captures the bytes replacement will cover without writing
// anything.
func NewCodePatch(mem Memory, addr uint64, replacement []byte) (*CodePatch, error) {
	orig, err := mem.MemRead(addr, uint64(len(replacement)))
	if err != nil {
		return nil, err
	}
	return &CodePatch{Addr: addr, Original: orig, Replacement: slices.Clone(replacement)}, nil
}

func (p *CodePatch) Size() uint64 {
	return uint64(len(p.Replacement))
}

func (p *CodePatch) Apply(mem Memory) error {
	return mem.MemWrite(p.Addr, p.Replacement)
}

func (p *CodePatch) Revert(mem Memory) error {
	return mem.MemWrite(p.Addr, p.Original)
}

// Applied reports whether memory currently holds the replacement. It fails
// when memory holds neither version.
func (p *CodePatch) Applied(mem Memory) (bool, error) {
	cur, err := mem.MemRead(p.Addr, p.Size())
	if err != nil {
		return false, err
	}
	switch {
	case bytes.Equal(cur, p.Replacement):
		return true, nil
	case bytes.Equal(cur, p.Original):
		return false, nil
	}
	return false, errors.Wrapf(ErrPatchMismatch, "%08X: % x", p.Addr, cur)
}

func (p *CodePatch) Overlaps(addr, size uint64) bool {
	return addr < p.Addr+p.Size() && p.Addr < addr+size
}
