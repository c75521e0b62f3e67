package x86

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

func readStrings(t *testing.T, rt runtime.Runtime, list lisp.Obj) []string {
	t.Helper()
	objs, err := rt.ListSlice(list)
	require.NoError(t, err)
	strs := make([]string, len(objs))
	for i, o := range objs {
		strs[i], err = rt.ReadString(o)
		require.NoError(t, err)
	}
	return strs
}

func TestBootPublishesCommandLine(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})

	argv, err := rt.SymbolValue(rt.StaticSymbol(lisp.LispCommandLineList))
	require.NoError(t, err)
	require.Equal(t, []string{"lisp", "-core", "test.core"}, readStrings(t, rt, argv))

	envp, err := rt.SymbolValue(rt.StaticSymbol(lisp.LispEnvironmentList))
	require.NoError(t, err)
	require.Equal(t, []string{"HOME=/root"}, readStrings(t, rt, envp))
}

func TestBootState(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	p := rt.Platform()

	st := rt.State()
	require.True(t, st.ForeignCallActive)
	require.Equal(t, layout.Dynamic0Space, st.CurrentDynamicSpace)
	require.Equal(t, p.Space(layout.ControlStack).End(), st.ControlStackPointer)
	require.Equal(t, p.Space(layout.BindingStack).Start, st.BindingStackPointer)
	require.Equal(t, runtime.PhaseRunning, rt.Phase())

	atomic, err := rt.AtomicFlags().Atomic()
	require.NoError(t, err)
	require.True(t, atomic)
	interrupted, err := rt.AtomicFlags().Interrupted()
	require.NoError(t, err)
	require.False(t, interrupted)

	// The symbol-backed flags are visible to managed code.
	v, err := rt.SymbolValue(rt.StaticSymbol(lisp.PseudoAtomicAtomic))
	require.NoError(t, err)
	require.Equal(t, lisp.Fixnum(1), v)

	tv, err := rt.SymbolValue(rt.StaticSymbol(lisp.T))
	require.NoError(t, err)
	require.Equal(t, rt.StaticSymbol(lisp.T), tv)

	fn, err := rt.SymbolValue(rt.StaticSymbol(lisp.InitialFunction))
	require.NoError(t, err)
	require.Equal(t, lisp.UnboundMarker, fn)
}

func TestNil(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	nil_ := rt.Nil()

	car, err := rt.Car(nil_)
	require.NoError(t, err)
	require.Equal(t, nil_, car)
	cdr, err := rt.Cdr(nil_)
	require.NoError(t, err)
	require.Equal(t, nil_, cdr)
	v, err := rt.SymbolValue(nil_)
	require.NoError(t, err)
	require.Equal(t, nil_, v)

	s, err := rt.CheckPointer(nil_)
	require.NoError(t, err)
	require.Equal(t, layout.StaticSpace, s.ID)

	objs, err := rt.ListSlice(nil_)
	require.NoError(t, err)
	require.Empty(t, objs)
}

func TestCheckPointer(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})

	_, err := rt.CheckPointer(lisp.Fixnum(3))
	require.ErrorIs(t, err, lisp.ErrNotPointer)

	_, err = rt.CheckPointer(lisp.Obj(0x7ff00000) | lisp.Obj(lisp.ListPointerLowtag))
	require.ErrorIs(t, err, runtime.ErrNotInSpace)

	c, err := rt.Cons(lisp.Fixnum(1), rt.Nil())
	require.NoError(t, err)
	s, err := rt.CheckPointer(c)
	require.NoError(t, err)
	require.Equal(t, layout.Dynamic0Space, s.ID)
}

func TestList(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	list, err := rt.List(lisp.Fixnum(1), lisp.Fixnum(2), lisp.Fixnum(3))
	require.NoError(t, err)
	objs, err := rt.ListSlice(list)
	require.NoError(t, err)
	require.Equal(t, []lisp.Obj{lisp.Fixnum(1), lisp.Fixnum(2), lisp.Fixnum(3)}, objs)

	_, err = rt.Car(lisp.Fixnum(1))
	require.Error(t, err)
}

func TestGCTriggerRunsCollectorBeforeAlloc(t *testing.T) {
	var (
		calls int
		free  uint64
	)
	rt := newRuntime(t, runtime.Options{Handlers: runtime.Handlers{
		Collect: func(rt runtime.Runtime) error {
			calls++
			free = rt.State().FreePointer
			return nil
		},
	}})
	clearAtomic(t, rt)

	start := rt.State().FreePointer
	rt.SetGCTrigger(start + 16)
	addr, err := rt.Alloc(8)
	require.NoError(t, err)
	require.Equal(t, start, addr)
	require.Zero(t, calls)

	addr, err = rt.Alloc(16)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	// The collector saw the heap before this allocation.
	require.Equal(t, addr, free)
	require.Equal(t, addr+16, rt.State().FreePointer)
}

func TestGCTriggerDeferredInsideAtomic(t *testing.T) {
	calls := 0
	rt := newRuntime(t, runtime.Options{Handlers: runtime.Handlers{
		Collect: func(runtime.Runtime) error {
			calls++
			return nil
		},
	}})
	clearAtomic(t, rt)
	rt.SetGCTrigger(rt.State().FreePointer + 8)

	err := rt.PseudoAtomic(func() error {
		if _, err := rt.Alloc(16); err != nil {
			return err
		}
		require.Zero(t, calls)
		require.Equal(t, []runtime.Signal{runtime.SignalCollect}, rt.Pending())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Empty(t, rt.Pending())
}

func TestHeapExhaustionIsFatal(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	clearAtomic(t, rt)

	_, err := rt.Alloc(rt.DynamicSpace().Size + 8)
	var fatal *runtime.FatalError
	require.ErrorAs(t, err, &fatal)
	require.ErrorIs(t, err, runtime.ErrHeapExhausted)
	require.Equal(t, "heap-bounds", fatal.Invariant)

	// Dead from here on.
	_, err = rt.Alloc(8)
	require.ErrorAs(t, err, &fatal)
	_, err = rt.Boot(nil, nil, nil)
	require.ErrorAs(t, err, &fatal)
}

func TestOversizedAllocLeavesFreePointer(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	clearAtomic(t, rt)
	rt.SetGCTrigger(rt.State().FreePointer + 0x100)

	before := rt.State().FreePointer
	for _, size := range []uint64{^uint64(0) - 0x1000, ^uint64(0)} {
		t.Run(fmt.Sprintf("%#x", size), func(t *testing.T) {
			_, err := rt.Alloc(size)
			var fatal *runtime.FatalError
			require.ErrorAs(t, err, &fatal)
			require.ErrorIs(t, err, runtime.ErrHeapExhausted)
			require.Equal(t, "heap-bounds", fatal.Invariant)
			require.Equal(t, before, rt.State().FreePointer)
		})
	}
}

func TestFlipDynamicSpace(t *testing.T) {
	rt := newRuntime(t, runtime.Options{})
	p := rt.Platform()

	require.NoError(t, rt.FlipDynamicSpace())
	require.Equal(t, layout.Dynamic1Space, rt.DynamicSpace().ID)
	require.Equal(t, p.Space(layout.Dynamic1Space).Start, rt.State().FreePointer)

	c, err := rt.Cons(lisp.Fixnum(1), rt.Nil())
	require.NoError(t, err)
	s, err := rt.CheckPointer(c)
	require.NoError(t, err)
	require.Equal(t, layout.Dynamic1Space, s.ID)

	require.NoError(t, rt.FlipDynamicSpace())
	require.Equal(t, layout.Dynamic0Space, rt.DynamicSpace().ID)
	require.Equal(t, p.Space(layout.Dynamic0Space).Start, rt.State().FreePointer)
}

func TestWordFlagStore(t *testing.T) {
	rt := newRuntime(t, runtime.Options{Flags: runtime.FlagStoreWord})
	atomic, err := rt.AtomicFlags().Atomic()
	require.NoError(t, err)
	require.True(t, atomic)
	st := rt.State()
	require.True(t, st.Flag(runtime.FlagAtomic))

	require.NoError(t, rt.AtomicFlags().SetAtomic(false))
	st = rt.State()
	require.False(t, st.Flag(runtime.FlagAtomic))
}
