package runtime

import "github.com/wnxd/lispcore/emulator"

// StepTarget is what a single-step strategy works on: the machine's
// registers and code memory.
type StepTarget interface {
	Memory
	emulator.RegisterContext
}

// SingleStepStrategy runs exactly one original instruction at a
// temporarily disarmed breakpoint and then traps again.
type SingleStepStrategy interface {
	Name() string
	// Arm prepares the machine, stopped at addr with the original bytes
	// restored, so that resuming executes one instruction and raises the
	// debug trap.
	Arm(t StepTarget, addr uint64) error
	// Disarm undoes whatever Arm changed besides the PC it left behind.
	Disarm(t StepTarget, addr uint64) error
}
