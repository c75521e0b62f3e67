package lisp

// Heap object layouts as the compiler lays them out. Each field is one
// word; the struct is read and written through the encoding package.

type Cons struct {
	Car, Cdr Obj
}

type Symbol struct {
	Header  Obj
	Value   Obj
	Hash    Obj
	Plist   Obj
	Name    Obj
	Package Obj
}

type Fdefn struct {
	Header   Obj
	Name     Obj
	Function Obj
	RawAddr  Obj
}

// FunctionHeader precedes a function's code; Self holds the raw entry
// address the call-in jumps to.
type FunctionHeader struct {
	Header  Obj
	Self    Obj
	Next    Obj
	Name    Obj
	Arglist Obj
	Type    Obj
}

type VectorHeader struct {
	Header Obj
	Length Obj
}

const (
	ConsSize           = 2 * WordSize
	SymbolSize         = 6 * WordSize
	FdefnSize          = 4 * WordSize
	FunctionHeaderSize = 6 * WordSize
	VectorHeaderSize   = 2 * WordSize

	SymbolValueOffset = WordSize
)

// Align rounds n up to the next object boundary.
func Align(n uint64) uint64 {
	return (n + ObjectAlign - 1) &^ (ObjectAlign - 1)
}

// StringSize is the allocation size of a simple-string of n characters,
// including its trailing NUL.
func StringSize(n int) uint64 {
	return Align(VectorHeaderSize + uint64(n) + 1)
}

func VectorSize(n int) uint64 {
	return Align(VectorHeaderSize + uint64(n)*WordSize)
}
