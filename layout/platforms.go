package layout

import (
	"maps"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	readOnlySpaceStart = 0x10000000
	readOnlySpaceSize  = 0x0ffff000 // 256MB - 1 page
	staticSpaceStart   = 0x28000000
	staticSpaceSize    = 0x0ffff000
	dynamic0SpaceStart = 0x48000000
	dynamicSpaceSize   = 0x04000000 // 64MB

	pageSize = 0x1000
)

var (
	int3 = []byte{0xCC}
	ud2  = []byte{0x0F, 0x0B}
)

func spaces(bindingStart, bindingSize, controlStart, controlSize uint64) [spaceEnding]Space {
	return [spaceEnding]Space{
		ReadOnlySpace: {ID: ReadOnlySpace, Name: "read-only", Start: readOnlySpaceStart, Size: readOnlySpaceSize, Access: AccessReadOnly},
		StaticSpace:   {ID: StaticSpace, Name: "static", Start: staticSpaceStart, Size: staticSpaceSize, Access: AccessStatic},
		Dynamic0Space: {ID: Dynamic0Space, Name: "dynamic-0", Start: dynamic0SpaceStart, Size: dynamicSpaceSize, Access: AccessDynamic},
		Dynamic1Space: {ID: Dynamic1Space, Name: "dynamic-1", Start: dynamic0SpaceStart + dynamicSpaceSize, Size: dynamicSpaceSize, Access: AccessDynamic},
		BindingStack:  {ID: BindingStack, Name: "binding-stack", Start: bindingStart, Size: bindingSize, Access: AccessStack},
		ControlStack:  {ID: ControlStack, Name: "control-stack", Start: controlStart, Size: controlSize, Growth: GrowDown, Access: AccessStack},
	}
}

var platforms = map[string]*Platform{
	"linux-x86": {
		Name:         "linux-x86",
		Spaces:       spaces(0x20000000, 0x07fff000, 0x38000000, 0x07fff000),
		TrapInsn:     int3,
		TrapStyle:    TrapAfter,
		Step:         StepTraceFlag,
		TrapSignals:  []unix.Signal{unix.SIGTRAP, unix.SIGILL},
		AsyncSignals: []unix.Signal{unix.SIGINT, unix.SIGALRM, unix.SIGIO, unix.SIGURG},
		PageSize:     pageSize,
	},
	"freebsd-x86": {
		Name:         "freebsd-x86",
		Spaces:       spaces(0x38000000, 0x07fff000, 0x40000000, 0x08000000),
		TrapInsn:     int3,
		TrapStyle:    TrapAfter,
		Step:         StepTrampoline,
		TrapSignals:  []unix.Signal{unix.SIGTRAP, unix.SIGILL},
		AsyncSignals: []unix.Signal{unix.SIGINT, unix.SIGALRM, unix.SIGIO, unix.SIGURG},
		PageSize:     pageSize,
	},
	// Same map as linux but trapping with ud2, which faults with the PC on
	// the instruction instead of past it.
	"darwin-x86": {
		Name:         "darwin-x86",
		Spaces:       spaces(0x20000000, 0x07fff000, 0x38000000, 0x07fff000),
		TrapInsn:     ud2,
		TrapStyle:    TrapAt,
		Step:         StepTrampoline,
		TrapSignals:  []unix.Signal{unix.SIGILL, unix.SIGTRAP},
		AsyncSignals: []unix.Signal{unix.SIGINT, unix.SIGALRM, unix.SIGIO, unix.SIGURG},
		PageSize:     pageSize,
	},
}

const DefaultPlatform = "linux-x86"

// Lookup returns a copy of a built-in platform map.
func Lookup(name string) (*Platform, error) {
	p, ok := platforms[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPlatform, "%q", name)
	}
	return p.Clone(), nil
}

func Platforms() []string {
	return slices.Sorted(maps.Keys(platforms))
}
