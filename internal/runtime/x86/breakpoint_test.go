package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

func TestBreakpointInstallRemove(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	_, entry := defun(t, rt, 0, movEaxEdx, addEaxFix1, movEdxEax, ret)
	emu := rt.Emulator()
	orig, err := emu.MemRead(entry, 10)
	require.NoError(t, err)

	require.NoError(t, rt.InstallBreakpoint(entry+2))
	code, err := emu.MemRead(entry, 10)
	require.NoError(t, err)
	require.Equal(t, []byte{0xCC, byte(runtime.TrapBreakpoint)}, code[2:4])
	require.Equal(t, orig[:2], code[:2])
	require.Equal(t, orig[4:], code[4:])

	bps := rt.Breakpoints()
	require.Len(t, bps, 1)
	require.Equal(t, entry+2, bps[0].Addr)
	require.Equal(t, orig[2:4], bps[0].Original)
	require.False(t, bps[0].Disarmed)

	require.NoError(t, rt.RemoveBreakpoint(entry+2))
	code, err = emu.MemRead(entry, 10)
	require.NoError(t, err)
	require.Equal(t, orig, code)
	require.Empty(t, rt.Breakpoints())

	// Removing twice is fine.
	require.NoError(t, rt.RemoveBreakpoint(entry+2))
}

func TestBreakpointDoubleInstallIsFatal(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	_, entry := defun(t, rt, 0, movEaxEdx, ret)

	require.NoError(t, rt.InstallBreakpoint(entry))
	err := rt.InstallBreakpoint(entry)
	var fatal *runtime.FatalError
	require.ErrorAs(t, err, &fatal)
	require.ErrorIs(t, err, runtime.ErrBreakpointInstalled)
	require.Equal(t, "breakpoint-install", fatal.Invariant)
}

func TestStepOverUnknownBreakpoint(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	require.ErrorIs(t, rt.StepOverAndRearm(codeBase), runtime.ErrNoBreakpoint)
}

func TestStepArmFailureKeepsBreakpoint(t *testing.T) {
	// Nothing is mapped below read-only space, so there is no room for the
	// trampoline in front of its first byte.
	rt := newPlatformRuntime(t, "freebsd-x86", runtime.Options{})
	emu := rt.Emulator()
	orig, err := emu.MemRead(codeBase, 2)
	require.NoError(t, err)
	require.NoError(t, rt.InstallBreakpoint(codeBase))
	armed, err := emu.MemRead(codeBase, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = rt.StepOverAndRearm(codeBase)
		require.Error(t, err)
		require.NotErrorIs(t, err, runtime.ErrAlreadyStepping)

		code, err := emu.MemRead(codeBase, 2)
		require.NoError(t, err)
		require.Equal(t, armed, code)
		bps := rt.Breakpoints()
		require.Len(t, bps, 1)
		require.False(t, bps[0].Disarmed)
	}

	require.NoError(t, rt.RemoveBreakpoint(codeBase))
	code, err := emu.MemRead(codeBase, 2)
	require.NoError(t, err)
	require.Equal(t, orig, code)
}

// The breakpointed instruction is preceded by room for the trampoline.
func stepFixture(t *testing.T, rt runtime.Runtime) (lisp.Obj, uint64) {
	t.Helper()
	fn, entry := defun(t, rt, 0, movEaxEdx, nops(10), addEaxFix1, movEdxEax, ret)
	return fn, entry + 12
}

func TestBreakpointStepOver(t *testing.T) {
	for _, tc := range []struct {
		platform string
		step     string
	}{
		{"linux-x86", "trace-flag"},
		{"freebsd-x86", "trampoline"},
		{"darwin-x86", "trampoline"},
	} {
		t.Run(tc.platform, func(t *testing.T) {
			var (
				hits     int
				steps    int
				transits []runtime.Phase
				disarmed bool
				stepAddr uint64
			)
			rt := newPlatformRuntime(t, tc.platform, runtime.Options{
				Handlers: runtime.Handlers{
					Breakpoint: func(rt runtime.Runtime, f *runtime.TrapFrame) error {
						hits++
						return rt.StepOverAndRearm(f.PC)
					},
				},
				Observers: []runtime.Observer{func(ev runtime.TrapEvent) {
					transits = append(transits, ev.To)
					if ev.Kind == runtime.TrapStepComplete {
						steps++
					}
				}},
			})
			require.Equal(t, tc.step, rt.StepStrategy().Name())
			fn, addr := stepFixture(t, rt)
			rt.Observe(func(ev runtime.TrapEvent) {
				if ev.To == runtime.PhaseSingleStepping {
					bps := rt.Breakpoints()
					disarmed = len(bps) == 1 && bps[0].Disarmed
					stepAddr, _ = rt.SingleStepping()
				}
			})
			orig, err := rt.Emulator().MemRead(addr-12, 20)
			require.NoError(t, err)
			require.NoError(t, rt.InstallBreakpoint(addr))
			armed, err := rt.Emulator().MemRead(addr-12, 20)
			require.NoError(t, err)

			res, err := rt.Funcall1(fn, lisp.Fixnum(5))
			require.NoError(t, err)
			require.Equal(t, lisp.Fixnum(6), res)
			require.Equal(t, 1, hits)
			require.Equal(t, 1, steps)
			require.True(t, disarmed)
			require.Equal(t, addr, stepAddr)
			require.Equal(t, []runtime.Phase{runtime.PhaseTrapped, runtime.PhaseSingleStepping, runtime.PhaseRunning}, transits)

			// The breakpoint is back and the trampoline gone.
			code, err := rt.Emulator().MemRead(addr-12, 20)
			require.NoError(t, err)
			require.Equal(t, armed, code)
			_, stepping := rt.SingleStepping()
			require.False(t, stepping)
			require.False(t, rt.Breakpoints()[0].Disarmed)

			res, err = rt.Funcall1(fn, lisp.Fixnum(7))
			require.NoError(t, err)
			require.Equal(t, lisp.Fixnum(8), res)
			require.Equal(t, 2, hits)
			require.Equal(t, 2, steps)

			require.NoError(t, rt.RemoveBreakpoint(addr))
			code, err = rt.Emulator().MemRead(addr-12, 20)
			require.NoError(t, err)
			require.Equal(t, orig, code)
		})
	}
}

func TestBreakpointAutoStepOver(t *testing.T) {
	hits := 0
	rt := newRuntime(t, runtime.Options{Handlers: runtime.Handlers{
		Breakpoint: func(runtime.Runtime, *runtime.TrapFrame) error {
			hits++
			return nil
		},
	}})
	fn, addr := stepFixture(t, rt)
	require.NoError(t, rt.InstallBreakpoint(addr))

	res, err := rt.Funcall1(fn, lisp.Fixnum(1))
	require.NoError(t, err)
	require.Equal(t, lisp.Fixnum(2), res)
	require.Equal(t, 1, hits)
	require.Len(t, rt.Breakpoints(), 1)
}

func TestBreakpointRemovedWhileStepping(t *testing.T) {
	rt := newRuntime(t, runtime.Options{Handlers: runtime.Handlers{
		Breakpoint: func(rt runtime.Runtime, f *runtime.TrapFrame) error {
			if err := rt.StepOverAndRearm(f.PC); err != nil {
				return err
			}
			return rt.RemoveBreakpoint(f.PC)
		},
	}})
	fn, addr := stepFixture(t, rt)
	orig, err := rt.Emulator().MemRead(addr, 5)
	require.NoError(t, err)
	require.NoError(t, rt.InstallBreakpoint(addr))

	res, err := rt.Funcall1(fn, lisp.Fixnum(1))
	require.NoError(t, err)
	require.Equal(t, lisp.Fixnum(2), res)
	require.Empty(t, rt.Breakpoints())
	code, err := rt.Emulator().MemRead(addr, 5)
	require.NoError(t, err)
	require.Equal(t, orig, code)
}
