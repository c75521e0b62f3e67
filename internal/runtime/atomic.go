package runtime

import (
	"slices"

	"github.com/hashicorp/go-hclog"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

type atomicCoordinator struct {
	flags   runtime.AtomicFlags
	pending []runtime.Signal
}

// wordFlags keeps the two bits in State.Flags.
type wordFlags struct {
	st *runtime.State
}

func (f wordFlags) Atomic() (bool, error) {
	return f.st.Flag(runtime.FlagAtomic), nil
}

func (f wordFlags) SetAtomic(on bool) error {
	f.st.SetFlag(runtime.FlagAtomic, on)
	return nil
}

func (f wordFlags) Interrupted() (bool, error) {
	return f.st.Flag(runtime.FlagInterrupted), nil
}

func (f wordFlags) SetInterrupted(on bool) error {
	f.st.SetFlag(runtime.FlagInterrupted, on)
	return nil
}

// symbolFlags keeps them in the values of two static symbols, where
// compiled code sets and tests them with a single instruction. Any value
// other than fixnum zero or NIL counts as set.
type symbolFlags struct {
	rt *Rt
}

func (f symbolFlags) get(sym lisp.StaticSymbol) (bool, error) {
	v, err := f.rt.SymbolValue(f.rt.StaticSymbol(sym))
	if err != nil {
		return false, err
	}
	return v != lisp.Fixnum(0) && v != f.rt.Nil(), nil
}

func (f symbolFlags) set(sym lisp.StaticSymbol, on bool) error {
	v := lisp.Fixnum(0)
	if on {
		v = lisp.Fixnum(1)
	}
	return f.rt.SetSymbolValue(f.rt.StaticSymbol(sym), v)
}

func (f symbolFlags) Atomic() (bool, error) {
	return f.get(lisp.PseudoAtomicAtomic)
}

func (f symbolFlags) SetAtomic(on bool) error {
	return f.set(lisp.PseudoAtomicAtomic, on)
}

func (f symbolFlags) Interrupted() (bool, error) {
	return f.get(lisp.PseudoAtomicInterrupted)
}

func (f symbolFlags) SetInterrupted(on bool) error {
	return f.set(lisp.PseudoAtomicInterrupted, on)
}

func (ac *atomicCoordinator) ctor(rt *Rt, store runtime.FlagStore) {
	if store == runtime.FlagStoreDefault {
		store = rt.impl.DefaultFlagStore()
	}
	if store == runtime.FlagStoreSymbols {
		ac.flags = symbolFlags{rt}
	} else {
		ac.flags = wordFlags{&rt.state}
	}
}

func (ac *atomicCoordinator) dtor() {
	ac.pending = nil
}

func (ac *atomicCoordinator) AtomicFlags() runtime.AtomicFlags {
	return ac.flags
}

func (ac *atomicCoordinator) Pending() []runtime.Signal {
	return slices.Clone(ac.pending)
}

func (rt *Rt) BeginPseudoAtomic() error {
	return rt.flags.SetAtomic(true)
}

// EndPseudoAtomic clears the atomic bit and, if a signal arrived in the
// meantime, raises the pending-interrupt trap to run it.
func (rt *Rt) EndPseudoAtomic() error {
	if err := rt.flags.SetAtomic(false); err != nil {
		return err
	}
	interrupted, err := rt.flags.Interrupted()
	if err != nil || !interrupted {
		return err
	}
	if err := rt.flags.SetInterrupted(false); err != nil {
		return err
	}
	return rt.Raise(runtime.TrapRecord{Kind: runtime.TrapPendingInterrupt})
}

// PseudoAtomic runs fn as a non-interruptible section. Inside an enclosing
// section it just runs fn; the outer end does the check.
func (rt *Rt) PseudoAtomic(fn func() error) error {
	was, err := rt.flags.Atomic()
	if err != nil {
		return err
	}
	if !was {
		if err := rt.BeginPseudoAtomic(); err != nil {
			return err
		}
	}
	ferr := fn()
	if !was {
		if err := rt.EndPseudoAtomic(); err != nil {
			return err
		}
	}
	return ferr
}

// Deliver runs the handler for sig now, or queues it and marks the
// section interrupted if one is in progress.
func (rt *Rt) Deliver(sig runtime.Signal) error {
	atomic, err := rt.flags.Atomic()
	if err != nil {
		return err
	}
	if atomic {
		rt.log.Debug("signal deferred", "signal", sig, "queued", len(rt.pending)+1)
		rt.pending = append(rt.pending, sig)
		return rt.flags.SetInterrupted(true)
	}
	frame := rt.pushFrame(runtime.TrapPendingInterrupt, rt.pc(), runtime.TrapRecord{})
	frame.Signal = sig
	frame.Resume = frame.PC
	err = rt.dispatchSignal(frame, sig)
	rt.popFrame(frame)
	return err
}

// Interrupt may be called from any goroutine. The signal reaches Deliver
// between two instructions of the next or current run of managed code.
func (rt *Rt) Interrupt(sig runtime.Signal) {
	rt.emu.Interrupt(rt.impl.VectorOf(sig))
}

func (rt *Rt) handlePending(frame *runtime.TrapFrame) error {
	for len(rt.pending) > 0 {
		sig := rt.pending[0]
		rt.pending = rt.pending[1:]
		frame.Signal = sig
		if err := rt.dispatchSignal(frame, sig); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Rt) dispatchSignal(frame *runtime.TrapFrame, sig runtime.Signal) error {
	if sig == runtime.SignalCollect {
		if rt.handlers.Collect == nil {
			rt.log.Warn("collection requested with no collector installed", "free", hclog.Fmt("%#x", rt.state.FreePointer))
			rt.gcRequested = false
			return nil
		}
		rt.log.Debug("collecting", "depth", frame.Depth)
		err := rt.handlers.Collect(rt.impl)
		rt.gcRequested = false
		return err
	}
	if rt.handlers.Interrupt == nil {
		rt.log.Info("signal ignored", "signal", sig)
		return nil
	}
	return rt.handlers.Interrupt(rt.impl, frame, sig)
}
