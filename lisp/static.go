package lisp

// NIL lives at a fixed place in static space and is both a cons and a
// symbol: its symbol header sits one word before the cons, so the car and
// cdr alias the symbol's value and hash slots and both hold NIL.
const (
	nilSymbolOffset = WordSize
	nilConsOffset   = 2 * WordSize
	// NIL's symbol runs to 7 words; T starts on the next object boundary.
	staticSymbolsOffset = 8 * WordSize
)

type StaticSymbol int

const (
	T StaticSymbol = iota
	InitialFunction
	PseudoAtomicAtomic
	PseudoAtomicInterrupted
	LispCommandLineList
	LispEnvironmentList
	BindingStackPointer
	InterruptPending
	staticSymbolEnding
)

var staticSymbolNames = [...]string{
	T:                       "T",
	InitialFunction:         "%INITIAL-FUNCTION",
	PseudoAtomicAtomic:      "*PSEUDO-ATOMIC-ATOMIC*",
	PseudoAtomicInterrupted: "*PSEUDO-ATOMIC-INTERRUPTED*",
	LispCommandLineList:     "*LISP-COMMAND-LINE-LIST*",
	LispEnvironmentList:     "*LISP-ENVIRONMENT-LIST*",
	BindingStackPointer:     "*BINDING-STACK-POINTER*",
	InterruptPending:        "*INTERRUPT-PENDING*",
}

func (s StaticSymbol) String() string {
	return staticSymbolNames[s]
}

func StaticSymbols() []StaticSymbol {
	syms := make([]StaticSymbol, staticSymbolEnding)
	for i := range syms {
		syms[i] = StaticSymbol(i)
	}
	return syms
}

// Nil returns NIL for a static space starting at base.
func Nil(base uint64) Obj {
	return Obj(base+nilConsOffset) | Obj(ListPointerLowtag)
}

// NilSymbolAddr is where NIL's symbol header lives.
func NilSymbolAddr(base uint64) uint64 {
	return base + nilSymbolOffset
}

func (s StaticSymbol) Addr(base uint64) uint64 {
	return base + staticSymbolsOffset + uint64(s)*SymbolSize
}

func (s StaticSymbol) Obj(base uint64) Obj {
	return Obj(s.Addr(base)) | Obj(OtherPointerLowtag)
}

// StaticSymbolsEnd is the first free byte of static space after the
// runtime's symbols.
func StaticSymbolsEnd(base uint64) uint64 {
	return Align(staticSymbolEnding.Addr(base))
}
