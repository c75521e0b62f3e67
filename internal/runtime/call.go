package runtime

import (
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

type callManager struct {
	calls int
}

func (cm *callManager) ctor() {
	cm.calls = 0
}

func (cm *callManager) dtor() {
}

// Execute runs managed code from begin until the PC reaches until. The
// foreign-call flag is clear for the duration.
func (rt *Rt) Execute(begin, until uint64) error {
	if rt.fatal != nil {
		return rt.fatal
	}
	r := new(run)
	rt.runs = append(rt.runs, r)
	active := rt.state.ForeignCallActive
	rt.state.ForeignCallActive = false
	err := rt.emu.Start(begin, until)
	rt.state.ForeignCallActive = active
	rt.runs = rt.runs[:len(rt.runs)-1]
	switch {
	case r.err != nil:
		return r.err
	case err != nil:
		return errors.Wrapf(err, "managed code at %08X", rt.pc())
	case rt.fatal != nil:
		return rt.fatal
	}
	if pc := rt.pc(); pc != until {
		return errors.Wrapf(runtime.ErrAborted, "stopped at %08X", pc)
	}
	return nil
}

// CallIntoLisp calls fn with up to as many arguments as the port passes in
// registers. The native register context is saved around the call, so a
// handler may call in while managed code is trapped.
func (rt *Rt) CallIntoLisp(fn lisp.Obj, args ...lisp.Obj) (lisp.Obj, error) {
	return rt.callIntoLisp(fn, len(args), args)
}

func (rt *Rt) callIntoLisp(fn lisp.Obj, nargs int, args []lisp.Obj) (lisp.Obj, error) {
	regs := rt.impl.ArgRegs()
	if len(args) > len(regs) {
		return 0, errors.Wrapf(runtime.ErrTooManyArgs, "%d arguments, %d registers", len(args), len(regs))
	}
	entry, err := rt.entryOf(fn)
	if err != nil {
		return 0, err
	}
	ctx, err := rt.emu.ContextAlloc()
	if err != nil {
		return 0, err
	}
	defer ctx.Close()
	if err := ctx.Save(); err != nil {
		return 0, err
	}
	defer ctx.Restore()

	// The return address is the stub, where the run stops.
	sp := rt.state.ControlStackPointer - lisp.WordSize
	if err := emulator.ToPointer(rt.emu, sp).MemWriteWord(rt.stub); err != nil {
		return 0, errors.Wrap(err, "pushing return address")
	}
	set := []emulator.Reg{rt.impl.SP(), rt.impl.FunctionReg(), rt.impl.NargsReg()}
	vals := []uint64{sp, uint64(fn), uint64(lisp.Fixnum(int32(nargs)))}
	for i, arg := range args {
		set = append(set, regs[i])
		vals = append(vals, uint64(arg))
	}
	if err := rt.emu.RegWriteBatch(set, vals); err != nil {
		return 0, err
	}
	rt.calls++
	rt.log.Trace("call into lisp", "fn", fn, "entry", hclog.Fmt("%08X", entry), "nargs", nargs, "depth", rt.calls)
	err = rt.Execute(entry, rt.stub)
	rt.calls--
	if err != nil {
		return 0, err
	}
	res, err := rt.emu.RegRead(rt.impl.ResultReg())
	if err != nil {
		return 0, err
	}
	return lisp.Obj(res), nil
}

func (rt *Rt) Funcall0(fn lisp.Obj) (lisp.Obj, error) {
	return rt.CallIntoLisp(fn)
}

func (rt *Rt) Funcall1(fn, arg0 lisp.Obj) (lisp.Obj, error) {
	return rt.CallIntoLisp(fn, arg0)
}

func (rt *Rt) Funcall2(fn, arg0, arg1 lisp.Obj) (lisp.Obj, error) {
	return rt.CallIntoLisp(fn, arg0, arg1)
}

func (rt *Rt) Funcall3(fn, arg0, arg1, arg2 lisp.Obj) (lisp.Obj, error) {
	return rt.CallIntoLisp(fn, arg0, arg1, arg2)
}

// Funcall passes arguments beyond the register count as a list in the last
// argument register; the count register still holds the full count.
func (rt *Rt) Funcall(fn lisp.Obj, args ...lisp.Obj) (lisp.Obj, error) {
	n := len(rt.impl.ArgRegs())
	if len(args) <= n {
		return rt.CallIntoLisp(fn, args...)
	}
	rest, err := rt.List(args[n-1:]...)
	if err != nil {
		return 0, err
	}
	regs := append(args[:n-1:n-1], rest)
	return rt.callIntoLisp(fn, len(args), regs)
}

func (rt *Rt) CallInitialFunction() (lisp.Obj, error) {
	if !rt.booted {
		return 0, runtime.ErrNotBooted
	}
	fn, err := rt.SymbolValue(rt.StaticSymbol(lisp.InitialFunction))
	if err != nil {
		return 0, err
	}
	if fn == lisp.UnboundMarker {
		return 0, errors.Wrap(runtime.ErrNotCallable, "%INITIAL-FUNCTION is unbound")
	}
	return rt.Funcall0(fn)
}
