package runtime

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/runtime"
)

type trapManager struct {
	releases  []func() error
	frames    []*runtime.TrapFrame
	records   *lru.ARCCache
	observers []*observer
	runs      []*run
	fatal     *runtime.FatalError
}

type observer struct {
	tm *trapManager
	fn runtime.Observer
}

// run is one Execute in progress. Runs nest when a handler calls into
// managed code.
type run struct {
	err error
}

type cachedRecord struct {
	raw []byte
	rec runtime.TrapRecord
}

func (tm *trapManager) ctor(rt *Rt, opts runtime.Options) error {
	size := opts.RecordCacheSize
	if size <= 0 {
		size = runtime.DefaultRecordCacheSize
	}
	records, err := lru.NewARC(size)
	if err != nil {
		return err
	}
	tm.records = records
	for _, fn := range opts.Observers {
		tm.Observe(fn)
	}
	hook, err := rt.emu.Hook(emulator.HOOK_TYPE_INTR, rt.handleInterrupt, rt, 1, 0)
	if err != nil {
		return err
	}
	tm.releases = append(tm.releases, hook.Close)
	hook, err = rt.emu.Hook(emulator.HOOK_TYPE_INSN_INVALID, rt.handleInvalid, rt, 1, 0)
	if err != nil {
		tm.dtor()
		return err
	}
	tm.releases = append(tm.releases, hook.Close)
	return nil
}

func (tm *trapManager) dtor() {
	for i := len(tm.releases) - 1; i >= 0; i-- {
		tm.releases[i]()
	}
	tm.releases = nil
	tm.observers = nil
	if tm.records != nil {
		tm.records.Purge()
	}
}

func (tm *trapManager) Observe(fn runtime.Observer) io.Closer {
	o := &observer{tm, fn}
	tm.observers = append(tm.observers, o)
	return o
}

func (o *observer) Close() error {
	if o.tm != nil {
		o.tm.observers = slices.DeleteFunc(o.tm.observers, func(x *observer) bool { return x == o })
		o.tm = nil
	}
	return nil
}

func (tm *trapManager) notify(ev runtime.TrapEvent) {
	for _, o := range slices.Clone(tm.observers) {
		o.fn(ev)
	}
}

func (tm *trapManager) TrapDepth() int {
	return len(tm.frames)
}

// TrappedPC is the PC of the innermost trap being serviced.
func (tm *trapManager) TrappedPC() (uint64, bool) {
	if len(tm.frames) == 0 {
		return 0, false
	}
	return tm.frames[len(tm.frames)-1].PC, true
}

// TrapStack lists the frames being serviced, outermost first.
func (tm *trapManager) TrapStack() []runtime.TrapFrame {
	frames := make([]runtime.TrapFrame, len(tm.frames))
	for i, f := range tm.frames {
		frames[i] = *f
	}
	return frames
}

func (tm *trapManager) DumpTrapStack() string {
	var sb strings.Builder
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
	for i, f := range tm.frames {
		fmt.Fprintf(&sb, "#%d %s at %08X\n", i, f.Kind, f.PC)
		cfg.Fprint(&sb, *f)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (rt *Rt) pushFrame(kind runtime.TrapKind, pc uint64, rec runtime.TrapRecord) *runtime.TrapFrame {
	from := rt.Phase()
	frame := &runtime.TrapFrame{
		Kind:                kind,
		PC:                  pc,
		Record:              rec,
		Depth:               len(rt.frames) + 1,
		ForeignCallActive:   rt.state.ForeignCallActive,
		ControlStackPointer: rt.state.ControlStackPointer,
	}
	// Native code called from the handler stacks its frames below the
	// trapped ones.
	if len(rt.runs) > 0 {
		if sp, err := rt.emu.RegRead(rt.impl.SP()); err == nil {
			rt.state.ControlStackPointer = sp
		}
	}
	rt.state.ForeignCallActive = true
	rt.frames = append(rt.frames, frame)
	rt.notify(runtime.TrapEvent{From: from, To: runtime.PhaseTrapped, Kind: kind, PC: pc, Depth: frame.Depth})
	return frame
}

func (rt *Rt) popFrame(frame *runtime.TrapFrame) {
	rt.frames = rt.frames[:frame.Depth-1]
	rt.state.ForeignCallActive = frame.ForeignCallActive
	rt.state.ControlStackPointer = frame.ControlStackPointer
	rt.notify(runtime.TrapEvent{From: runtime.PhaseTrapped, To: rt.Phase(), Kind: frame.Kind, PC: frame.PC, Depth: frame.Depth - 1})
}

// abort ends the innermost run with err. Outside any run it only reports.
func (rt *Rt) abort(err error) {
	if len(rt.runs) == 0 {
		rt.log.Error("trap outside managed code", "error", err)
		return
	}
	r := rt.runs[len(rt.runs)-1]
	if r.err == nil {
		r.err = err
	}
	rt.emu.Stop()
}

func (rt *Rt) handleInterrupt(intno uint64, data any) {
	switch intno {
	case rt.impl.TrapVector():
		if rt.platform.TrapStyle != layout.TrapAfter {
			rt.abort(rt.loseAt(rt.pc(), "trap-kind", runtime.ErrUnknownTrap, "int3 on a %s platform", rt.platform.Name))
			return
		}
		rt.sigtrap(rt.kindAddr(rt.pc()))
	case rt.impl.StepVector():
		rt.stepTrap()
	default:
		sig, ok := rt.impl.SignalOf(intno)
		if !ok {
			rt.abort(rt.lose("trap-kind", emulator.ErrHookType, "unexpected interrupt %d", intno))
			return
		}
		if err := rt.Deliver(sig); err != nil {
			rt.abort(err)
		}
	}
}

// handleInvalid catches trap instructions that fault with the PC still on
// them.
func (rt *Rt) handleInvalid(data any) bool {
	if rt.platform.TrapStyle != layout.TrapAt {
		return false
	}
	pc := rt.pc()
	insn := rt.platform.TrapInsn
	code, err := rt.emu.MemRead(pc, uint64(len(insn)))
	if err != nil || !bytes.Equal(code, insn) {
		return false
	}
	rt.sigtrap(rt.kindAddr(pc))
	return true
}

// kindAddr maps the PC reported for a trap instruction to the kind byte
// that follows it.
func (rt *Rt) kindAddr(pc uint64) uint64 {
	if rt.platform.TrapStyle == layout.TrapAt {
		return pc + uint64(len(rt.platform.TrapInsn))
	}
	return pc
}

func (rt *Rt) sigtrap(kindAddr uint64) {
	rec, err := rt.trapRecord(kindAddr)
	if err != nil {
		rt.abort(rt.loseAt(kindAddr, "trap-kind", err, "bad trap record"))
		return
	}
	frame := rt.pushFrame(rec.Kind, kindAddr-uint64(len(rt.platform.TrapInsn)), rec)
	frame.Resume = kindAddr + rec.Size()
	err = rt.dispatch(frame)
	rt.popFrame(frame)
	if err == nil && rt.fatal != nil {
		err = rt.fatal
	}
	if err != nil {
		rt.abort(err)
	}
}

// Raise services a trap on behalf of native code, as if managed code had
// executed it at the current PC.
func (rt *Rt) Raise(rec runtime.TrapRecord) error {
	if !rec.Kind.Valid() {
		return rt.lose("trap-kind", runtime.ErrUnknownTrap, "raised kind %d", uint8(rec.Kind))
	}
	pc := rt.pc()
	frame := rt.pushFrame(rec.Kind, pc, rec)
	frame.Resume = pc
	err := rt.dispatch(frame)
	rt.popFrame(frame)
	return err
}

func (rt *Rt) dispatch(frame *runtime.TrapFrame) error {
	rt.log.Trace("trap", "kind", frame.Kind, "pc", hclog.Fmt("%08X", frame.PC), "depth", frame.Depth)
	switch frame.Kind {
	case runtime.TrapPendingInterrupt:
		if err := rt.setPC(frame.Resume); err != nil {
			return err
		}
		return rt.handlePending(frame)
	case runtime.TrapHalt:
		return rt.loseAt(frame.PC, "halt", runtime.ErrHalted, "%%primitive halt called; the party is over")
	case runtime.TrapError, runtime.TrapCerror:
		return rt.internalError(frame)
	case runtime.TrapBreakpoint:
		if err := rt.setPC(frame.PC); err != nil {
			return err
		}
		return rt.handleBreakpoint(frame)
	case runtime.TrapFunctionEndBreakpoint:
		if err := rt.setPC(frame.PC); err != nil {
			return err
		}
		return rt.handleFunctionEnd(frame)
	}
	return rt.loseAt(frame.PC, "trap-kind", runtime.ErrUnknownTrap, "kind %d", uint8(frame.Kind))
}

func (rt *Rt) internalError(frame *runtime.TrapFrame) error {
	et := runtime.NewErrorTrap(frame.PC, frame.Record)
	if et.Malformed != nil {
		rt.log.Warn("malformed error payload", "pc", hclog.Fmt("%08X", et.PC), "args", hclog.Fmt("% X", et.Args), "error", et.Malformed)
	}
	var err error
	action := runtime.ErrorAbort
	if et.Continuable {
		action = runtime.ErrorResume
	}
	rt.log.Debug("internal error", "code", et.Code, "continuable", et.Continuable, "pc", hclog.Fmt("%08X", et.PC))
	if h := rt.handlers.Error; h != nil {
		if action, err = h(rt.impl, frame, et); err != nil {
			return err
		}
	}
	switch action {
	case runtime.ErrorResume:
		return rt.setPC(frame.Resume)
	case runtime.ErrorJump:
		return nil
	}
	return et
}

func (rt *Rt) handleFunctionEnd(frame *runtime.TrapFrame) error {
	h := rt.handlers.FunctionEnd
	if h == nil {
		return rt.loseAt(frame.PC, "function-end", runtime.ErrNoHandler, "no function-end handler")
	}
	ret, err := h(rt.impl, frame)
	if err != nil {
		return err
	}
	return rt.setPC(ret)
}

// trapRecord decodes the record at addr. Cached records are checked
// against memory, since code may be patched behind the runtime's back.
func (rt *Rt) trapRecord(addr uint64) (runtime.TrapRecord, error) {
	if v, ok := rt.records.Get(addr); ok {
		c := v.(cachedRecord)
		if cur, err := rt.emu.MemRead(addr, uint64(len(c.raw))); err == nil && bytes.Equal(cur, c.raw) {
			return c.rec, nil
		}
		rt.records.Remove(addr)
	}
	raw, err := rt.emu.MemRead(addr, 1)
	if err != nil {
		return runtime.TrapRecord{}, err
	}
	if runtime.TrapKind(raw[0]).HasArgs() {
		n, err := rt.emu.MemRead(addr+1, 1)
		if err != nil {
			return runtime.TrapRecord{}, err
		}
		args, err := rt.emu.MemRead(addr+2, uint64(n[0]))
		if err != nil {
			return runtime.TrapRecord{}, err
		}
		raw = append(append(raw, n[0]), args...)
	}
	rec, err := runtime.DecodeTrapRecord(raw)
	if err != nil {
		return rec, err
	}
	rt.records.Add(addr, cachedRecord{raw, rec})
	return rec, nil
}

// lose records a fatal consistency failure. The runtime is dead
// afterwards: every later run returns the same error.
func (rt *Rt) lose(invariant string, err error, format string, args ...any) error {
	return rt.loseAt(rt.pc(), invariant, err, format, args...)
}

func (rt *Rt) loseAt(pc uint64, invariant string, err error, format string, args ...any) error {
	if rt.fatal != nil {
		return rt.fatal
	}
	rt.fatal = &runtime.FatalError{Invariant: invariant, PC: pc, Msg: fmt.Sprintf(format, args...), Err: err}
	rt.log.Error("fatal error", "invariant", invariant, "pc", hclog.Fmt("%08X", pc), "msg", rt.fatal.Msg, "error", err)
	if len(rt.frames) > 0 {
		rt.log.Error("trap stack\n" + rt.DumpTrapStack())
	}
	return errors.WithStack(rt.fatal)
}
