package runtime

import (
	"slices"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/runtime"
)

type breakpoint struct {
	kind  runtime.TrapKind
	patch *runtime.CodePatch
	// disarmed while the original instruction is back in place for a step.
	disarmed bool
}

type breakpointManager struct {
	breakpoints map[uint64]*breakpoint
	stepping    *uint64
	step        runtime.SingleStepStrategy
}

func (bm *breakpointManager) ctor(rt *Rt) error {
	step, err := rt.impl.NewStepStrategy(rt.platform.Step)
	if err != nil {
		return err
	}
	bm.step = step
	bm.breakpoints = make(map[uint64]*breakpoint)
	return nil
}

func (bm *breakpointManager) dtor(rt *Rt) {
	for addr, bp := range bm.breakpoints {
		if !bp.disarmed {
			bp.patch.Revert(rt.emu)
		}
		delete(bm.breakpoints, addr)
	}
	bm.stepping = nil
}

func (bm *breakpointManager) StepStrategy() runtime.SingleStepStrategy {
	return bm.step
}

func (bm *breakpointManager) SingleStepping() (uint64, bool) {
	if bm.stepping == nil {
		return 0, false
	}
	return *bm.stepping, true
}

func (bm *breakpointManager) Breakpoints() []runtime.Breakpoint {
	bps := make([]runtime.Breakpoint, 0, len(bm.breakpoints))
	for addr, bp := range bm.breakpoints {
		bps = append(bps, runtime.Breakpoint{Addr: addr, Kind: bp.kind, Original: slices.Clone(bp.patch.Original), Disarmed: bp.disarmed})
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].Addr < bps[j].Addr })
	return bps
}

func (rt *Rt) InstallBreakpoint(addr uint64) error {
	return rt.installBreakpoint(addr, runtime.TrapBreakpoint)
}

func (rt *Rt) InstallFunctionEndBreakpoint(addr uint64) error {
	return rt.installBreakpoint(addr, runtime.TrapFunctionEndBreakpoint)
}

// installBreakpoint overwrites addr with the trap instruction and kind
// byte. A second install at the same address means the table and the code
// disagree, which is fatal.
func (rt *Rt) installBreakpoint(addr uint64, kind runtime.TrapKind) error {
	if _, ok := rt.breakpoints[addr]; ok {
		return rt.loseAt(addr, "breakpoint-install", runtime.ErrBreakpointInstalled, "%08X", addr)
	}
	patch, err := runtime.NewCodePatch(rt.emu, addr, append(slices.Clone(rt.platform.TrapInsn), byte(kind)))
	if err != nil {
		return errors.Wrapf(err, "breakpoint at %08X", addr)
	}
	if err := patch.Apply(rt.emu); err != nil {
		return err
	}
	rt.breakpoints[addr] = &breakpoint{kind: kind, patch: patch}
	rt.records.Purge()
	rt.log.Debug("breakpoint installed", "addr", hclog.Fmt("%08X", addr), "kind", kind, "original", hclog.Fmt("% x", patch.Original))
	return nil
}

// RemoveBreakpoint puts the original bytes back. Removing an address with
// no breakpoint does nothing.
func (rt *Rt) RemoveBreakpoint(addr uint64) error {
	bp, ok := rt.breakpoints[addr]
	if !ok {
		return nil
	}
	if !bp.disarmed {
		if err := bp.patch.Revert(rt.emu); err != nil {
			return err
		}
	}
	delete(rt.breakpoints, addr)
	rt.records.Purge()
	rt.log.Debug("breakpoint removed", "addr", hclog.Fmt("%08X", addr))
	return nil
}

// StepOverAndRearm restores the original instruction at addr and arms the
// step strategy so that exactly one instruction runs before the breakpoint
// goes back in. The PC must be at addr.
func (rt *Rt) StepOverAndRearm(addr uint64) error {
	bp, ok := rt.breakpoints[addr]
	if !ok {
		return errors.Wrapf(runtime.ErrNoBreakpoint, "%08X", addr)
	}
	if rt.stepping != nil {
		return errors.Wrapf(runtime.ErrAlreadyStepping, "at %08X", *rt.stepping)
	}
	from := rt.Phase()
	if !bp.disarmed {
		if err := bp.patch.Revert(rt.emu); err != nil {
			return err
		}
		bp.disarmed = true
	}
	if err := rt.step.Arm(rt.emu, addr); err != nil {
		if perr := bp.patch.Apply(rt.emu); perr != nil {
			return rt.loseAt(addr, "breakpoint-install", perr, "re-arming after failed %s step", rt.step.Name())
		}
		bp.disarmed = false
		return errors.Wrapf(err, "arming %s step", rt.step.Name())
	}
	rt.stepping = &addr
	rt.records.Purge()
	if len(rt.frames) == 0 {
		rt.notify(runtime.TrapEvent{From: from, To: runtime.PhaseSingleStepping, Kind: runtime.TrapBreakpoint, PC: addr})
	}
	return nil
}

func (rt *Rt) handleBreakpoint(frame *runtime.TrapFrame) error {
	if h := rt.handlers.Breakpoint; h != nil {
		if err := h(rt.impl, frame); err != nil {
			return err
		}
	}
	// Unless the handler moved on by itself, step over the breakpoint so
	// resuming does not trap on it again.
	bp, ok := rt.breakpoints[frame.PC]
	if !ok || bp.disarmed || rt.stepping != nil || rt.pc() != frame.PC {
		return nil
	}
	return rt.StepOverAndRearm(frame.PC)
}

// stepTrap ends a single-step: the stepped instruction has run, so the
// breakpoint goes back in.
func (rt *Rt) stepTrap() {
	if rt.stepping == nil {
		rt.abort(rt.lose("single-step", runtime.ErrStepMismatch, "debug trap with no step in progress"))
		return
	}
	addr := *rt.stepping
	pc := rt.pc()
	if err := rt.step.Disarm(rt.emu, addr); err != nil {
		rt.abort(rt.loseAt(addr, "single-step", err, "disarming %s step", rt.step.Name()))
		return
	}
	rt.stepping = nil
	bp, ok := rt.breakpoints[addr]
	switch {
	case !ok:
		rt.log.Debug("breakpoint removed while stepping", "addr", hclog.Fmt("%08X", addr))
	case pc > addr && pc < addr+bp.patch.Size():
		// The next instruction starts inside the patch; writing it back
		// now would corrupt that instruction.
		rt.log.Warn("breakpoint not re-installed", "addr", hclog.Fmt("%08X", addr))
	default:
		if err := bp.patch.Apply(rt.emu); err != nil {
			rt.abort(rt.loseAt(addr, "single-step", err, "re-installing breakpoint"))
			return
		}
		bp.disarmed = false
	}
	rt.records.Purge()
	rt.notify(runtime.TrapEvent{From: runtime.PhaseSingleStepping, To: rt.Phase(), Kind: runtime.TrapStepComplete, PC: pc})
}
