package runtime

import (
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

// Boot brings the runtime up the way the startup front end does: reset the
// process-wide record, lay out NIL and the static symbols, let the loader
// fill the spaces, then publish the command line and environment. It
// leaves the atomic bit set; managed code clears it once running.
func (rt *Rt) Boot(loader runtime.Loader, args, env []string) (bool, error) {
	if rt.fatal != nil {
		return false, rt.fatal
	}
	rt.globalsInit(rt.platform)
	rt.pending = nil
	rt.gcRequested = false
	if err := rt.genesis(); err != nil {
		return false, errors.Wrap(err, "genesis")
	}
	restore := false
	if loader != nil {
		var err error
		if restore, err = loader.Load(rt.impl); err != nil {
			return false, errors.Wrap(err, "loading core")
		}
	}
	rt.records.Purge()

	argv, err := rt.AllocStringList(args)
	if err != nil {
		return false, err
	}
	if err := rt.SetSymbolValue(rt.StaticSymbol(lisp.LispCommandLineList), argv); err != nil {
		return false, err
	}
	envp, err := rt.AllocStringList(env)
	if err != nil {
		return false, err
	}
	if err := rt.SetSymbolValue(rt.StaticSymbol(lisp.LispEnvironmentList), envp); err != nil {
		return false, err
	}
	if err := rt.flags.SetAtomic(true); err != nil {
		return false, err
	}
	if err := rt.flags.SetInterrupted(false); err != nil {
		return false, err
	}
	rt.booted = true
	rt.log.Info("booted", "platform", rt.platform.Name, "restore", restore, "args", len(args), "env", len(env))
	return restore, nil
}

// genesis writes NIL and the static symbols into static space. NIL's
// symbol header sits one word before its cons, so NIL's car and cdr are
// its value and hash slots.
func (rt *Rt) genesis() error {
	static := rt.platform.Space(layout.StaticSpace)
	rt.staticFree = lisp.StaticSymbolsEnd(static.Start)
	nil_ := rt.Nil()
	header := lisp.MakeHeader(lisp.SymbolHeaderType, lisp.SymbolSize/lisp.WordSize-1)

	name, err := rt.allocString(rt.allocStatic, "NIL")
	if err != nil {
		return err
	}
	sym := lisp.Symbol{Header: header, Value: nil_, Hash: nil_, Plist: nil_, Name: name, Package: nil_}
	if err := rt.WriteObject(lisp.NilSymbolAddr(static.Start), &sym); err != nil {
		return err
	}
	for _, s := range lisp.StaticSymbols() {
		name, err := rt.allocString(rt.allocStatic, s.String())
		if err != nil {
			return err
		}
		sym := lisp.Symbol{Header: header, Value: rt.initialValue(s), Hash: lisp.Fixnum(int32(s)), Plist: nil_, Name: name, Package: nil_}
		if err := rt.WriteObject(s.Addr(static.Start), &sym); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Rt) initialValue(s lisp.StaticSymbol) lisp.Obj {
	switch s {
	case lisp.T:
		return rt.StaticSymbol(lisp.T)
	case lisp.InitialFunction:
		return lisp.UnboundMarker
	case lisp.PseudoAtomicAtomic, lisp.PseudoAtomicInterrupted:
		return lisp.Fixnum(0)
	case lisp.BindingStackPointer:
		return lisp.Obj(rt.state.BindingStackPointer)
	}
	return rt.Nil()
}
