// Package x86 registers the i386 runtime. Import it for its side effect.
package x86

import (
	"github.com/wnxd/lispcore/emulator"
	"github.com/wnxd/lispcore/internal/runtime/x86"
	"github.com/wnxd/lispcore/runtime"
)

type (
	TraceFlag  = x86.TraceFlag
	Trampoline = x86.Trampoline
)

func init() {
	runtime.Register(emulator.ARCH_X86, x86.New)
}
