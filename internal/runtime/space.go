package runtime

import (
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

type spaceManager struct {
	mapped      []emulator.MemRegion
	stub        uint64
	staticFree  uint64
	gcRequested bool
}

func spaceProt(s layout.Space) emulator.MemProt {
	if s.Access == layout.AccessStack {
		return emulator.MEM_PROT_READ | emulator.MEM_PROT_WRITE
	}
	return emulator.MEM_PROT_ALL
}

func (sm *spaceManager) ctor(rt *Rt) error {
	for _, s := range rt.platform.Spaces {
		if err := rt.emu.MemMap(s.Start, s.Size, spaceProt(s)); err != nil {
			sm.dtor(rt)
			return errors.Wrapf(err, "mapping %s", s.Name)
		}
		sm.mapped = append(sm.mapped, emulator.MemRegion{Addr: s.Start, Size: s.Size, Prot: spaceProt(s)})
	}
	// The call-in stub lives on the page left free at the top of read-only
	// space.
	stub := runtime.Align(rt.platform.Space(layout.ReadOnlySpace).End(), rt.platform.PageSize)
	if s, ok := rt.platform.SpaceOf(stub); ok {
		sm.dtor(rt)
		return errors.Wrapf(layout.ErrSpaceOverlap, "call-in page %#x inside %s", stub, s.Name)
	}
	if err := rt.emu.MemMap(stub, rt.platform.PageSize, emulator.MEM_PROT_READ|emulator.MEM_PROT_EXEC); err != nil {
		sm.dtor(rt)
		return errors.Wrap(err, "mapping call-in page")
	}
	sm.mapped = append(sm.mapped, emulator.MemRegion{Addr: stub, Size: rt.platform.PageSize})
	if err := rt.emu.MemWrite(stub, rt.impl.CallInStub()); err != nil {
		sm.dtor(rt)
		return err
	}
	sm.stub = stub
	sm.staticFree = lisp.StaticSymbolsEnd(rt.platform.Space(layout.StaticSpace).Start)
	return nil
}

func (sm *spaceManager) dtor(rt *Rt) error {
	var first error
	for i := len(sm.mapped) - 1; i >= 0; i-- {
		if err := rt.emu.MemUnmap(sm.mapped[i].Addr, sm.mapped[i].Size); err != nil && first == nil {
			first = err
		}
	}
	sm.mapped = nil
	return first
}

func (rt *Rt) SpaceOf(addr uint64) (layout.Space, bool) {
	return rt.platform.SpaceOf(addr)
}

// CheckPointer finds the space a pointer object refers into.
func (rt *Rt) CheckPointer(obj lisp.Obj) (layout.Space, error) {
	if !obj.IsPointer() {
		return layout.Space{}, errors.Wrapf(lisp.ErrNotPointer, "%v", obj)
	}
	s, ok := rt.SpaceOf(obj.Addr())
	if !ok {
		return layout.Space{}, errors.Wrapf(runtime.ErrNotInSpace, "%v", obj)
	}
	return s, nil
}

func (rt *Rt) DynamicSpace() layout.Space {
	return rt.platform.Space(rt.state.CurrentDynamicSpace)
}

// FlipDynamicSpace makes the other dynamic space current and resets the
// free pointer to its base. The collector calls it once it has copied the
// live objects out.
func (rt *Rt) FlipDynamicSpace() error {
	next := layout.Dynamic1Space
	if rt.state.CurrentDynamicSpace == layout.Dynamic1Space {
		next = layout.Dynamic0Space
	}
	rt.log.Debug("flip dynamic space", "from", rt.state.CurrentDynamicSpace, "to", next)
	rt.state.CurrentDynamicSpace = next
	rt.state.FreePointer = rt.platform.Space(next).Start
	rt.gcRequested = false
	return nil
}

func (rt *Rt) SetGCTrigger(addr uint64) {
	rt.state.GCTrigger = addr
	rt.gcRequested = false
}

// Alloc bumps the free pointer of the current dynamic space. Crossing the
// GC trigger delivers SignalCollect first, so the collector runs now or at
// the end of the enclosing pseudo-atomic section. A request larger than the
// whole space is fatal without asking for a collection.
func (rt *Rt) Alloc(size uint64) (uint64, error) {
	if rt.fatal != nil {
		return 0, rt.fatal
	}
	st := &rt.state
	space := rt.DynamicSpace()
	aligned := lisp.Align(size)
	if aligned < size || aligned > space.Size {
		return 0, rt.lose("heap-bounds", runtime.ErrHeapExhausted, "%s: %d bytes requested, space holds %d", space.Name, size, space.Size)
	}
	size = aligned
	if st.GCTrigger != 0 && !rt.gcRequested && !fits(st.FreePointer, size, st.GCTrigger) {
		rt.gcRequested = true
		rt.log.Debug("gc trigger crossed", "free", hclog.Fmt("%#x", st.FreePointer), "trigger", hclog.Fmt("%#x", st.GCTrigger))
		if err := rt.Deliver(runtime.SignalCollect); err != nil {
			return 0, err
		}
		space = rt.DynamicSpace()
	}
	if st.FreePointer < space.Start || !fits(st.FreePointer, size, space.End()) {
		return 0, rt.lose("heap-bounds", runtime.ErrHeapExhausted, "%s: %d bytes requested at %#x", space.Name, size, st.FreePointer)
	}
	addr := st.FreePointer
	st.FreePointer += size
	return addr, nil
}

// fits reports whether size bytes from free stay at or below limit,
// without overflowing.
func fits(free, size, limit uint64) bool {
	return free <= limit && size <= limit-free
}

// allocStatic carves objects the runtime creates at genesis out of static
// space, after the static symbols.
func (rt *Rt) allocStatic(size uint64) (uint64, error) {
	space := rt.platform.Space(layout.StaticSpace)
	aligned := lisp.Align(size)
	if aligned < size || !fits(rt.staticFree, aligned, space.End()) {
		return 0, rt.lose("heap-bounds", runtime.ErrHeapExhausted, "static space")
	}
	addr := rt.staticFree
	rt.staticFree += aligned
	return addr, nil
}
