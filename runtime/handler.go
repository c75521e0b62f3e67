package runtime

// TrapFrame describes one trap being serviced. Frames nest when a handler
// itself traps.
type TrapFrame struct {
	Kind TrapKind
	// PC is the address of the trap instruction, or of the breakpoint.
	PC     uint64
	Record TrapRecord
	// Resume is where execution continues unless the handler moves the PC.
	Resume uint64
	Signal Signal
	Depth  int
	// State before the trap.
	ForeignCallActive   bool
	ControlStackPointer uint64
}

type ErrorAction int

const (
	ErrorAbort ErrorAction = iota
	// ErrorResume continues after the trap record.
	ErrorResume
	// ErrorJump continues wherever the handler left the PC.
	ErrorJump
)

type (
	InterruptHandler   func(rt Runtime, frame *TrapFrame, sig Signal) error
	ErrorHandler       func(rt Runtime, frame *TrapFrame, trap *ErrorTrap) (ErrorAction, error)
	BreakpointHandler  func(rt Runtime, frame *TrapFrame) error
	FunctionEndHandler func(rt Runtime, frame *TrapFrame) (uint64, error)
	CollectHandler     func(rt Runtime) error
)

// TrapEvent reports a phase change.
type TrapEvent struct {
	From, To Phase
	Kind     TrapKind
	PC       uint64
	Depth    int
}

type Observer func(TrapEvent)

type Handlers struct {
	Interrupt   InterruptHandler
	Error       ErrorHandler
	Breakpoint  BreakpointHandler
	FunctionEnd FunctionEndHandler
	Collect     CollectHandler
}
