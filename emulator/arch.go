package emulator

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
	ARCH_ARM64
	ARCH_X86
	ARCH_X86_64
)

func (a Arch) String() string {
	switch a {
	case ARCH_ARM:
		return "arm"
	case ARCH_ARM64:
		return "arm64"
	case ARCH_X86:
		return "x86"
	case ARCH_X86_64:
		return "x86_64"
	}
	return "unknown"
}

func (a Arch) PointerSize() uint64 {
	switch a {
	case ARCH_ARM, ARCH_X86:
		return 4
	case ARCH_ARM64, ARCH_X86_64:
		return 8
	}
	return 0
}
