package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/lispcore/emulator"
)

const (
	codeAddr  = 0x1000
	stackAddr = 0x8000
)

func newMachine(t *testing.T, code ...byte) *Machine {
	t.Helper()
	m := New()
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.MemMap(codeAddr, PageSize, emulator.MEM_PROT_ALL))
	require.NoError(t, m.MemMap(stackAddr, PageSize, emulator.MEM_PROT_READ|emulator.MEM_PROT_WRITE))
	require.NoError(t, m.MemWrite(codeAddr, code))
	require.NoError(t, m.RegWrite(X86_REG_ESP, stackAddr+PageSize))
	return m
}

func TestMemory(t *testing.T) {
	m := New()
	require.NoError(t, m.MemMap(0x10000, 3*PageSize, emulator.MEM_PROT_READ))
	require.ErrorIs(t, m.MemMap(0x11000, PageSize, emulator.MEM_PROT_READ), emulator.ErrMemOverlap)
	require.ErrorIs(t, m.MemMap(0x20010, PageSize, emulator.MEM_PROT_READ), emulator.ErrMemUnaligned)

	// Host writes ignore protection and may cross pages.
	data := []byte{1, 2, 3, 4, 5, 6}
	require.NoError(t, m.MemWrite(0x10ffd, data))
	got, err := m.MemRead(0x10ffd, 6)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = m.MemRead(0x12ffe, 4)
	require.ErrorIs(t, err, emulator.ErrMemUnmapped)

	require.NoError(t, m.MemUnmap(0x11000, PageSize))
	regions, err := m.MemRegions()
	require.NoError(t, err)
	require.Equal(t, []emulator.MemRegion{
		{Addr: 0x10000, Size: PageSize, Prot: emulator.MEM_PROT_READ},
		{Addr: 0x12000, Size: PageSize, Prot: emulator.MEM_PROT_READ},
	}, regions)
}

func TestRunArithmetic(t *testing.T) {
	m := newMachine(t,
		0xB8, 0x05, 0, 0, 0, // mov eax, 5
		0x05, 0x03, 0, 0, 0, // add eax, 3
		0x89, 0xC2, // mov edx, eax
		0x83, 0xEA, 0x08, // sub edx, 8
		0x74, 0x01, // jz +1
		0x90,
		0xF4, // hlt
	)
	require.NoError(t, m.Start(codeAddr, 0))
	vals, err := m.RegReadBatch(X86_REG_EAX, X86_REG_EDX, X86_REG_EIP)
	require.NoError(t, err)
	require.Equal(t, []uint64{8, 0, codeAddr + 19}, vals)
}

func TestCallRet(t *testing.T) {
	m := newMachine(t,
		0xE8, 0x01, 0, 0, 0, // call +1
		0xF4,                // hlt
		0xBA, 0x2A, 0, 0, 0, // mov edx, 42
		0xC3, // ret
	)
	require.NoError(t, m.Start(codeAddr, 0))
	edx, err := m.RegRead(X86_REG_EDX)
	require.NoError(t, err)
	require.EqualValues(t, 42, edx)
	esp, err := m.RegRead(X86_REG_ESP)
	require.NoError(t, err)
	require.EqualValues(t, stackAddr+PageSize, esp)
}

func TestStartUntil(t *testing.T) {
	m := newMachine(t, 0x90, 0x90, 0x90, 0xF4)
	require.NoError(t, m.Start(codeAddr, codeAddr+2))
	eip, err := m.RegRead(X86_REG_EIP)
	require.NoError(t, err)
	require.EqualValues(t, codeAddr+2, eip)
}

func TestInt3Hook(t *testing.T) {
	m := newMachine(t, 0x90, 0xCC, 0x0C, 0xF4)
	var (
		vectors []uint64
		pcs     []uint64
	)
	_, err := m.Hook(emulator.HOOK_TYPE_INTR, func(intno uint64, data any) {
		vectors = append(vectors, intno)
		pc, _ := m.RegRead(X86_REG_EIP)
		pcs = append(pcs, pc)
		m.RegWrite(X86_REG_EIP, pc+1)
	}, nil, 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.Start(codeAddr, 0))
	require.Equal(t, []uint64{INTR_BREAKPOINT}, vectors)
	// The PC is left on the byte after int3.
	require.Equal(t, []uint64{codeAddr + 2}, pcs)
}

func TestUnhandledInterrupt(t *testing.T) {
	m := newMachine(t, 0xCD, 0x21)
	require.ErrorIs(t, m.Start(codeAddr, 0), ErrUnhandledInterrupt)
}

func TestInvalidHook(t *testing.T) {
	m := newMachine(t, 0x0F, 0x0B, 0x0C, 0xF4)
	require.ErrorIs(t, m.Start(codeAddr, 0), ErrInvalidInstruction)

	hits := 0
	h, err := m.Hook(emulator.HOOK_TYPE_INSN_INVALID, func(data any) bool {
		hits++
		pc, _ := m.RegRead(X86_REG_EIP)
		require.EqualValues(t, codeAddr, pc)
		m.RegWrite(X86_REG_EIP, pc+3)
		return true
	}, nil, 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.Start(codeAddr, 0))
	require.Equal(t, 1, hits)
	require.NoError(t, h.Close())

	_, err = m.Hook(emulator.HOOK_TYPE_INSN_INVALID, func() {}, nil, 1, 0)
	require.ErrorIs(t, err, emulator.ErrHookType)
}

func TestTraceFlag(t *testing.T) {
	m := newMachine(t,
		0x9C,                               // pushf
		0x81, 0x0C, 0x24, 0x00, 0x01, 0, 0, // or dword [esp], 0x100
		0x9D, // popf
		0x90, // nop
		0x90,
		0xF4,
	)
	var at []uint64
	_, err := m.Hook(emulator.HOOK_TYPE_INTR, func(intno uint64, data any) {
		require.Equal(t, INTR_DEBUG, intno)
		pc, _ := m.RegRead(X86_REG_EIP)
		at = append(at, pc)
		flags, _ := m.RegRead(X86_REG_EFLAGS)
		m.RegWrite(X86_REG_EFLAGS, flags&^uint64(EFLAGS_TF))
	}, nil, 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.Start(codeAddr, 0))
	// Exactly one instruction ran with the flag set.
	require.Equal(t, []uint64{codeAddr + 10}, at)
}

func TestExternalInterrupt(t *testing.T) {
	m := newMachine(t, 0x90, 0xF4)
	var got []uint64
	_, err := m.Hook(emulator.HOOK_TYPE_INTR, func(intno uint64, data any) {
		got = append(got, intno)
	}, nil, 1, 0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.Interrupt(INTR_EXTERNAL + 2)
		close(done)
	}()
	<-done
	require.NoError(t, m.Start(codeAddr, 0))
	require.Equal(t, []uint64{INTR_EXTERNAL + 2}, got)
}

func TestReentrantStart(t *testing.T) {
	m := newMachine(t,
		0xCC, 0xF4, // outer: int3; hlt
		0xBA, 0x07, 0, 0, 0, // inner: mov edx, 7
		0xF4,
	)
	_, err := m.Hook(emulator.HOOK_TYPE_INTR, func(intno uint64, data any) {
		ctx, err := m.ContextAlloc()
		require.NoError(t, err)
		defer ctx.Close()
		require.NoError(t, ctx.Save())
		require.NoError(t, m.Start(codeAddr+2, 0))
		edx, _ := m.RegRead(X86_REG_EDX)
		require.EqualValues(t, 7, edx)
		require.NoError(t, ctx.Restore())
	}, nil, 1, 0)
	require.NoError(t, err)
	require.NoError(t, m.Start(codeAddr, 0))
	// The inner hlt stopped only the inner run.
	eip, err := m.RegRead(X86_REG_EIP)
	require.NoError(t, err)
	require.EqualValues(t, codeAddr+2, eip)
}

func TestClosed(t *testing.T) {
	m := New()
	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Start(0, 0), emulator.ErrClosed)
}
