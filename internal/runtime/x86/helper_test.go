package x86

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	emu_x86 "github.com/wnxd/lispcore/emulator/x86"
	"github.com/wnxd/lispcore/layout"
	"github.com/wnxd/lispcore/lisp"
	"github.com/wnxd/lispcore/runtime"
)

// Functions are laid out in read-only space, one per 0x100 bytes.
const codeBase = 0x10000000

func newRuntime(t *testing.T, opts runtime.Options) *X86Rt {
	t.Helper()
	m := emu_x86.New()
	t.Cleanup(func() { m.Close() })
	r, err := New(m, opts)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	_, err = r.Boot(nil, []string{"lisp", "-core", "test.core"}, []string{"HOME=/root"})
	require.NoError(t, err)
	return r.(*X86Rt)
}

func newPlatformRuntime(t *testing.T, platform string, opts runtime.Options) *X86Rt {
	t.Helper()
	p, err := layout.Lookup(platform)
	require.NoError(t, err)
	opts.Platform = p
	return newRuntime(t, opts)
}

// clearAtomic does what managed code does first thing after boot.
func clearAtomic(t *testing.T, rt runtime.Runtime) {
	t.Helper()
	require.NoError(t, rt.AtomicFlags().SetAtomic(false))
}

// defun writes a function header followed by code in slot n and returns
// the function and its entry address.
func defun(t *testing.T, rt runtime.Runtime, n int, code ...[]byte) (lisp.Obj, uint64) {
	t.Helper()
	addr := uint64(codeBase + n*0x100)
	entry := addr + lisp.FunctionHeaderSize
	nil_ := rt.Nil()
	fh := lisp.FunctionHeader{
		Header:  lisp.MakeHeader(lisp.FunctionHeaderType, lisp.FunctionHeaderSize/lisp.WordSize-1),
		Self:    lisp.Obj(entry),
		Next:    nil_,
		Name:    nil_,
		Arglist: nil_,
		Type:    nil_,
	}
	require.NoError(t, rt.WriteObject(addr, &fh))
	var body []byte
	for _, c := range code {
		body = append(body, c...)
	}
	require.NoError(t, rt.Emulator().MemWrite(entry, body))
	fn, err := lisp.MakePointer(addr, lisp.FunctionPointerLowtag)
	require.NoError(t, err)
	return fn, entry
}

func imm32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func cat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// mov dword [addr], v
func movMem(addr uint64, v uint32) []byte {
	return cat([]byte{0xC7, 0x05}, imm32(uint32(addr)), imm32(v))
}

// cmp dword [addr], v
func cmpMem(addr uint64, v uint32) []byte {
	return cat([]byte{0x81, 0x3D}, imm32(uint32(addr)), imm32(v))
}

var (
	nop        = []byte{0x90}
	ret        = []byte{0xC3}
	movEaxEdx  = []byte{0x8B, 0xC2}
	movEdxEax  = []byte{0x89, 0xC2}
	movEdxEcx  = []byte{0x89, 0xCA}
	movEdxEsi  = []byte{0x89, 0xF2}
	addEaxFix1 = cat([]byte{0x05}, imm32(4))
)

func nops(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = nop[0]
	}
	return b
}

func trap(kind runtime.TrapKind, args ...byte) []byte {
	rec, err := runtime.TrapRecord{Kind: kind, Args: args}.Encode()
	if err != nil {
		panic(err)
	}
	return append([]byte{0xCC}, rec...)
}

func symbolValueAddr(rt runtime.Runtime, sym lisp.StaticSymbol) uint64 {
	return rt.StaticSymbol(sym).Addr() + lisp.SymbolValueOffset
}
