package runtime

import (
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/encoding"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

const maxListLength = 1 << 20

func (rt *Rt) ReadObject(addr uint64, val any) error {
	return encoding.Decode(PointerStream(rt.emu, addr), val)
}

func (rt *Rt) WriteObject(addr uint64, val any) error {
	return encoding.Encode(PointerStream(rt.emu, addr), val)
}

func (rt *Rt) readWord(addr uint64) (lisp.Obj, error) {
	w, err := emulator.ToPointer(rt.emu, addr).MemReadWord()
	return lisp.Obj(w), err
}

func (rt *Rt) writeWord(addr uint64, obj lisp.Obj) error {
	return emulator.ToPointer(rt.emu, addr).MemWriteWord(uint64(obj))
}

func (rt *Rt) Nil() lisp.Obj {
	return lisp.Nil(rt.platform.Space(layout.StaticSpace).Start)
}

func (rt *Rt) StaticSymbol(sym lisp.StaticSymbol) lisp.Obj {
	return sym.Obj(rt.platform.Space(layout.StaticSpace).Start)
}

func (rt *Rt) header(obj lisp.Obj) (lisp.Obj, error) {
	if !obj.IsOtherPointer() && obj.Lowtag() != lisp.FunctionPointerLowtag {
		return 0, errors.Wrapf(lisp.ErrWrongType, "%v has no header", obj)
	}
	return rt.readWord(obj.Addr())
}

func (rt *Rt) checkSymbol(sym lisp.Obj) error {
	h, err := rt.header(sym)
	if err != nil {
		return err
	}
	if h.Type() != lisp.SymbolHeaderType {
		return errors.Wrapf(lisp.ErrWrongType, "%v is a %s, not a symbol", sym, h.Type())
	}
	return nil
}

func (rt *Rt) SymbolValue(sym lisp.Obj) (lisp.Obj, error) {
	if sym == rt.Nil() {
		return sym, nil
	}
	if err := rt.checkSymbol(sym); err != nil {
		return 0, err
	}
	return rt.readWord(sym.Addr() + lisp.SymbolValueOffset)
}

func (rt *Rt) SetSymbolValue(sym, val lisp.Obj) error {
	if sym == rt.Nil() {
		return errors.Wrap(lisp.ErrWrongType, "NIL is a constant")
	}
	if err := rt.checkSymbol(sym); err != nil {
		return err
	}
	return rt.writeWord(sym.Addr()+lisp.SymbolValueOffset, val)
}

// Cons and the other allocating constructors run pseudo-atomically, so a
// collection requested while they fill in an object waits for them.
func (rt *Rt) Cons(car, cdr lisp.Obj) (obj lisp.Obj, err error) {
	err = rt.PseudoAtomic(func() error {
		obj, err = rt.cons(car, cdr)
		return err
	})
	return
}

func (rt *Rt) cons(car, cdr lisp.Obj) (lisp.Obj, error) {
	addr, err := rt.Alloc(lisp.ConsSize)
	if err != nil {
		return 0, err
	}
	if err := rt.WriteObject(addr, &lisp.Cons{Car: car, Cdr: cdr}); err != nil {
		return 0, err
	}
	return lisp.MakePointer(addr, lisp.ListPointerLowtag)
}

func (rt *Rt) List(objs ...lisp.Obj) (list lisp.Obj, err error) {
	err = rt.PseudoAtomic(func() error {
		list = rt.Nil()
		for i := len(objs) - 1; i >= 0; i-- {
			if list, err = rt.cons(objs[i], list); err != nil {
				return err
			}
		}
		return nil
	})
	return
}

func (rt *Rt) AllocString(s string) (obj lisp.Obj, err error) {
	err = rt.PseudoAtomic(func() error {
		obj, err = rt.allocString(rt.Alloc, s)
		return err
	})
	return
}

func (rt *Rt) allocString(alloc func(uint64) (uint64, error), s string) (lisp.Obj, error) {
	addr, err := alloc(lisp.StringSize(len(s)))
	if err != nil {
		return 0, err
	}
	hdr := lisp.VectorHeader{Header: lisp.MakeHeader(lisp.SimpleStringType, 0), Length: lisp.Fixnum(int32(len(s)))}
	if err := rt.WriteObject(addr, &hdr); err != nil {
		return 0, err
	}
	data := append([]byte(s), 0)
	if err := rt.emu.MemWrite(addr+lisp.VectorHeaderSize, data); err != nil {
		return 0, err
	}
	return lisp.MakePointer(addr, lisp.OtherPointerLowtag)
}

// AllocStringList builds a fresh list of fresh strings, in order.
func (rt *Rt) AllocStringList(strs []string) (list lisp.Obj, err error) {
	err = rt.PseudoAtomic(func() error {
		list = rt.Nil()
		for i := len(strs) - 1; i >= 0; i-- {
			str, err := rt.allocString(rt.Alloc, strs[i])
			if err != nil {
				return err
			}
			if list, err = rt.cons(str, list); err != nil {
				return err
			}
		}
		return nil
	})
	return
}

func (rt *Rt) consOf(obj lisp.Obj) (lisp.Cons, error) {
	var c lisp.Cons
	if obj == rt.Nil() {
		return lisp.Cons{Car: obj, Cdr: obj}, nil
	}
	if !obj.IsList() {
		return c, errors.Wrapf(lisp.ErrWrongType, "%v is not a list", obj)
	}
	err := rt.ReadObject(obj.Addr(), &c)
	return c, err
}

func (rt *Rt) Car(obj lisp.Obj) (lisp.Obj, error) {
	c, err := rt.consOf(obj)
	return c.Car, err
}

func (rt *Rt) Cdr(obj lisp.Obj) (lisp.Obj, error) {
	c, err := rt.consOf(obj)
	return c.Cdr, err
}

func (rt *Rt) ListSlice(obj lisp.Obj) ([]lisp.Obj, error) {
	var objs []lisp.Obj
	for obj != rt.Nil() {
		if len(objs) == maxListLength {
			return nil, errors.Wrapf(lisp.ErrWrongType, "list longer than %d", maxListLength)
		}
		c, err := rt.consOf(obj)
		if err != nil {
			return nil, err
		}
		objs = append(objs, c.Car)
		obj = c.Cdr
	}
	return objs, nil
}

func (rt *Rt) ReadString(obj lisp.Obj) (string, error) {
	var hdr lisp.VectorHeader
	if !obj.IsOtherPointer() {
		return "", errors.Wrapf(lisp.ErrWrongType, "%v is not a string", obj)
	}
	if err := rt.ReadObject(obj.Addr(), &hdr); err != nil {
		return "", err
	}
	if hdr.Header.Type() != lisp.SimpleStringType {
		return "", errors.Wrapf(lisp.ErrWrongType, "%v is a %s, not a string", obj, hdr.Header.Type())
	}
	n, err := hdr.Length.Int()
	if err != nil {
		return "", err
	}
	data, err := rt.emu.MemRead(obj.Addr()+lisp.VectorHeaderSize, uint64(n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// entryOf resolves a callable object to the raw address the call-in
// jumps to.
func (rt *Rt) entryOf(fn lisp.Obj) (uint64, error) {
	for range 4 {
		switch fn.Lowtag() {
		case lisp.FunctionPointerLowtag:
			var fh lisp.FunctionHeader
			if err := rt.ReadObject(fn.Addr(), &fh); err != nil {
				return 0, err
			}
			switch fh.Header.Type() {
			case lisp.FunctionHeaderType:
				return uint64(fh.Self), nil
			case lisp.ClosureHeaderType:
				// A closure's second word is its underlying function.
				fn = fh.Self
				continue
			}
			return 0, errors.Wrapf(runtime.ErrNotCallable, "%v: %s", fn, fh.Header.Type())
		case lisp.OtherPointerLowtag:
			h, err := rt.header(fn)
			if err != nil {
				return 0, err
			}
			switch h.Type() {
			case lisp.FdefnType:
				var fd lisp.Fdefn
				if err := rt.ReadObject(fn.Addr(), &fd); err != nil {
					return 0, err
				}
				fn = fd.Function
				continue
			}
			return 0, errors.Wrapf(runtime.ErrNotCallable, "%v: %s", fn, h.Type())
		default:
			return 0, errors.Wrapf(runtime.ErrNotCallable, "%v", fn)
		}
	}
	return 0, errors.Wrapf(runtime.ErrNotCallable, "%v: too many indirections", fn)
}
