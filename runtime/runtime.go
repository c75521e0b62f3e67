package runtime

import (
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/lisp"
)

type Runtime interface {
	io.Closer
	Emulator() emulator.Emulator
	Platform() *layout.Platform
	Logger() hclog.Logger
	Boot(loader Loader, args, env []string) (restore bool, err error)
	SpaceManager
	StateManager
	TrapManager
	BreakpointManager
	CallManager
}

type SpaceManager interface {
	SpaceOf(addr uint64) (layout.Space, bool)
	CheckPointer(obj lisp.Obj) (layout.Space, error)
	DynamicSpace() layout.Space
	FlipDynamicSpace() error
	SetGCTrigger(addr uint64)
	Alloc(size uint64) (uint64, error)
	Cons(car, cdr lisp.Obj) (lisp.Obj, error)
	List(objs ...lisp.Obj) (lisp.Obj, error)
	AllocString(s string) (lisp.Obj, error)
	AllocStringList(strs []string) (lisp.Obj, error)
	Car(obj lisp.Obj) (lisp.Obj, error)
	Cdr(obj lisp.Obj) (lisp.Obj, error)
	ListSlice(obj lisp.Obj) ([]lisp.Obj, error)
	ReadString(obj lisp.Obj) (string, error)
	ReadObject(addr uint64, val any) error
	WriteObject(addr uint64, val any) error
	Nil() lisp.Obj
	StaticSymbol(sym lisp.StaticSymbol) lisp.Obj
	SymbolValue(sym lisp.Obj) (lisp.Obj, error)
	SetSymbolValue(sym, val lisp.Obj) error
}

type StateManager interface {
	State() State
	Phase() Phase
	ForeignCallActive() bool
	AtomicFlags() AtomicFlags
	BeginPseudoAtomic() error
	EndPseudoAtomic() error
	PseudoAtomic(fn func() error) error
	// Deliver hands an asynchronous signal to the runtime on the goroutine
	// driving it. Interrupt may be called from any goroutine.
	Deliver(sig Signal) error
	Interrupt(sig Signal)
	Pending() []Signal
}

type TrapManager interface {
	TrappedPC() (uint64, bool)
	TrapDepth() int
	TrapStack() []TrapFrame
	DumpTrapStack() string
	Raise(rec TrapRecord) error
	Observe(fn Observer) io.Closer
}

type Breakpoint struct {
	Addr     uint64
	Kind     TrapKind
	Original []byte
	// Disarmed is set while the breakpoint is being stepped over.
	Disarmed bool
}

type BreakpointManager interface {
	InstallBreakpoint(addr uint64) error
	InstallFunctionEndBreakpoint(addr uint64) error
	RemoveBreakpoint(addr uint64) error
	StepOverAndRearm(addr uint64) error
	Breakpoints() []Breakpoint
	SingleStepping() (uint64, bool)
	StepStrategy() SingleStepStrategy
}

type CallManager interface {
	Execute(begin, until uint64) error
	CallIntoLisp(fn lisp.Obj, args ...lisp.Obj) (lisp.Obj, error)
	Funcall0(fn lisp.Obj) (lisp.Obj, error)
	Funcall1(fn, arg0 lisp.Obj) (lisp.Obj, error)
	Funcall2(fn, arg0, arg1 lisp.Obj) (lisp.Obj, error)
	Funcall3(fn, arg0, arg1, arg2 lisp.Obj) (lisp.Obj, error)
	Funcall(fn lisp.Obj, args ...lisp.Obj) (lisp.Obj, error)
	CallInitialFunction() (lisp.Obj, error)
}

func New(emu emulator.Emulator, opts Options) (Runtime, error) {
	if ctor, ok := rtMap[emu.Arch()]; ok {
		return ctor(emu, opts)
	}
	return nil, emulator.ErrArchUnsupported
}
