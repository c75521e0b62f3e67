package runtime

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTrap         = errors.New("unknown trap kind")
	ErrShortRecord         = errors.New("truncated trap record")
	ErrBadRecord           = errors.New("malformed trap record")
	ErrBreakpointInstalled = errors.New("breakpoint already installed")
	ErrNoBreakpoint        = errors.New("no breakpoint at address")
	ErrAlreadyStepping     = errors.New("single-step already in progress")
	ErrStepMismatch        = errors.New("single-step completed at unexpected address")
	ErrPatchMismatch       = errors.New("code does not match patch")
	ErrHeapExhausted       = errors.New("dynamic space exhausted")
	ErrNotInSpace          = errors.New("address outside every space")
	ErrTooManyArgs         = errors.New("too many arguments")
	ErrNotCallable         = errors.New("object is not callable")
	ErrNotBooted           = errors.New("runtime not booted")
	ErrHalted              = errors.New("halt trap")
	ErrAborted             = errors.New("managed code aborted")
	ErrDead                = errors.New("runtime is dead")
	ErrStrategyUnknown     = errors.New("unknown single-step mechanism")
	ErrNoHandler           = errors.New("no handler installed")
)

// FatalError is what lose produces: an internal consistency failure the
// runtime cannot continue from. Once returned, the runtime refuses to run
// managed code again.
type FatalError struct {
	Invariant string
	PC        uint64
	Msg       string
	Err       error
}

func (e *FatalError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Fatal] %s, pc: %08X", e.Invariant, e.PC)
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ErrorTrap describes an error or cerror trap raised by managed code.
// A payload that does not decode leaves Code and the operands zero, keeps
// the raw Args and records the reason in Malformed.
type ErrorTrap struct {
	PC          uint64
	Continuable bool
	Code        byte
	Args        []byte
	Malformed   error
	operands    []SCOffset
}

func NewErrorTrap(pc uint64, rec TrapRecord) *ErrorTrap {
	e := &ErrorTrap{PC: pc, Continuable: rec.Kind == TrapCerror, Args: rec.Args}
	if len(rec.Args) == 0 {
		return e
	}
	code, ops, err := ParseErrorArgs(rec.Args)
	if err != nil {
		e.Malformed = err
		return e
	}
	e.Code, e.operands = code, ops
	return e
}

// Operands are the storage locations of the error's arguments.
func (e *ErrorTrap) Operands() []SCOffset {
	return e.operands
}

func (e *ErrorTrap) Error() string {
	kind := TrapError
	if e.Continuable {
		kind = TrapCerror
	}
	if e.Malformed != nil {
		return fmt.Sprintf("[%s] pc: %08X, args: % X: %v", kind, e.PC, e.Args, e.Malformed)
	}
	return fmt.Sprintf("[%s] pc: %08X, code: %d, operands: %v", kind, e.PC, e.Code, e.operands)
}
