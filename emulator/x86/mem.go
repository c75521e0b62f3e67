package x86

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
)

const PageSize = 0x1000

// memory is sparse: spaces are reserved at their full size but a page is
// only backed once something touches it.
type memory struct {
	regions []emulator.MemRegion
	pages   map[uint64][]byte
}

func (mem *memory) init() {
	mem.pages = make(map[uint64][]byte)
}

func (mem *memory) find(addr uint64) (int, bool) {
	i, found := slices.BinarySearchFunc(mem.regions, addr, func(r emulator.MemRegion, addr uint64) int {
		switch {
		case addr < r.Addr:
			return 1
		case addr >= r.End():
			return -1
		}
		return 0
	})
	return i, found
}

func (mem *memory) mapRegion(addr, size uint64, prot emulator.MemProt) error {
	if addr%PageSize != 0 || size%PageSize != 0 || size == 0 {
		return errors.Wrapf(emulator.ErrMemUnaligned, "map %#x+%#x", addr, size)
	}
	region := emulator.MemRegion{Addr: addr, Size: size, Prot: prot}
	i, _ := slices.BinarySearchFunc(mem.regions, addr, func(r emulator.MemRegion, addr uint64) int {
		if r.Addr < addr {
			return -1
		} else if r.Addr > addr {
			return 1
		}
		return 0
	})
	if i > 0 && mem.regions[i-1].End() > addr {
		return errors.Wrapf(emulator.ErrMemOverlap, "map %#x+%#x", addr, size)
	}
	if i < len(mem.regions) && mem.regions[i].Addr < region.End() {
		return errors.Wrapf(emulator.ErrMemOverlap, "map %#x+%#x", addr, size)
	}
	mem.regions = slices.Insert(mem.regions, i, region)
	return nil
}

func (mem *memory) unmapRegion(addr, size uint64) error {
	if addr%PageSize != 0 || size%PageSize != 0 {
		return errors.Wrapf(emulator.ErrMemUnaligned, "unmap %#x+%#x", addr, size)
	}
	end := addr + size
	var kept []emulator.MemRegion
	for _, r := range mem.regions {
		if r.End() <= addr || r.Addr >= end {
			kept = append(kept, r)
			continue
		}
		if r.Addr < addr {
			kept = append(kept, emulator.MemRegion{Addr: r.Addr, Size: addr - r.Addr, Prot: r.Prot})
		}
		if r.End() > end {
			kept = append(kept, emulator.MemRegion{Addr: end, Size: r.End() - end, Prot: r.Prot})
		}
	}
	mem.regions = kept
	for page := addr / PageSize; page < end/PageSize; page++ {
		delete(mem.pages, page)
	}
	return nil
}

func (mem *memory) protect(addr, size uint64, prot emulator.MemProt) error {
	end := addr + size
	for i := range mem.regions {
		r := &mem.regions[i]
		if r.Addr >= addr && r.End() <= end {
			r.Prot = prot
		} else if r.End() > addr && r.Addr < end {
			return errors.Wrapf(emulator.ErrMemUnaligned, "protect %#x+%#x splits region %#x", addr, size, r.Addr)
		}
	}
	return nil
}

// check verifies that [addr, addr+size) is mapped with at least prot.
func (mem *memory) check(addr, size uint64, prot emulator.MemProt) error {
	for size > 0 {
		i, ok := mem.find(addr)
		if !ok {
			return errors.Wrapf(emulator.ErrMemUnmapped, "address %#x", addr)
		}
		r := mem.regions[i]
		if r.Prot&prot != prot {
			return errors.Wrapf(emulator.ErrMemProtection, "address %#x is %s", addr, r.Prot)
		}
		n := min(size, r.End()-addr)
		addr += n
		size -= n
	}
	return nil
}

func (mem *memory) read(addr uint64, b []byte) {
	for len(b) > 0 {
		page, off := addr/PageSize, addr%PageSize
		n := min(uint64(len(b)), PageSize-off)
		if data, ok := mem.pages[page]; ok {
			copy(b[:n], data[off:])
		} else {
			clear(b[:n])
		}
		b = b[n:]
		addr += n
	}
}

func (mem *memory) write(addr uint64, b []byte) {
	for len(b) > 0 {
		page, off := addr/PageSize, addr%PageSize
		data, ok := mem.pages[page]
		if !ok {
			data = make([]byte, PageSize)
			mem.pages[page] = data
		}
		n := copy(data[off:], b)
		b = b[n:]
		addr += uint64(n)
	}
}

func (m *Machine) PageSize() uint64 {
	return PageSize
}

func (m *Machine) MemMap(addr, size uint64, prot emulator.MemProt) error {
	return m.mem.mapRegion(addr, size, prot)
}

func (m *Machine) MemUnmap(addr, size uint64) error {
	return m.mem.unmapRegion(addr, size)
}

func (m *Machine) MemProtect(addr, size uint64, prot emulator.MemProt) error {
	return m.mem.protect(addr, size, prot)
}

func (m *Machine) MemRegions() ([]emulator.MemRegion, error) {
	return slices.Clone(m.mem.regions), nil
}

// MemRead and MemWrite are host accesses: they ignore protection but not
// mapping.
func (m *Machine) MemRead(addr, size uint64) ([]byte, error) {
	if err := m.mem.check(addr, size, emulator.MEM_PROT_NONE); err != nil {
		return nil, err
	}
	b := make([]byte, size)
	m.mem.read(addr, b)
	return b, nil
}

func (m *Machine) MemWrite(addr uint64, data []byte) error {
	if err := m.mem.check(addr, uint64(len(data)), emulator.MEM_PROT_NONE); err != nil {
		return err
	}
	m.mem.write(addr, data)
	return nil
}
