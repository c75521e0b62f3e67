package runtime

import (
	"github.com/wnxd/lispcore/emulator"
)

type RtCtor func(emulator.Emulator, Options) (Runtime, error)

var rtMap = make(map[emulator.Arch]RtCtor)

func Register(arch emulator.Arch, ctor RtCtor) bool {
	if _, ok := rtMap[arch]; ok {
		return false
	}
	rtMap[arch] = ctor
	return true
}
