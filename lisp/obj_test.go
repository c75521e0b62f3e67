package lisp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixnum(t *testing.T) {
	require.Equal(t, Obj(20), Fixnum(5))
	require.EqualValues(t, 5, Fixnum(5).FixnumValue())
	require.EqualValues(t, -3, Fixnum(-3).FixnumValue())
	require.True(t, Fixnum(-3).IsFixnum())
	require.Equal(t, OddFixnumLowtag, Fixnum(1).Lowtag())
	require.Equal(t, ClassFixnum, Fixnum(1).Class())

	_, err := MakeFixnum(MostPositiveFixnum + 1)
	require.ErrorIs(t, err, ErrFixnumRange)
	o, err := MakeFixnum(MostNegativeFixnum)
	require.NoError(t, err)
	require.Equal(t, MostNegativeFixnum, o.FixnumValue())

	_, err = Obj(0x1003).Int()
	require.ErrorIs(t, err, ErrNotFixnum)
}

func TestFixnumArithmetic(t *testing.T) {
	r, ok := FixnumAdd(Fixnum(2), Fixnum(3))
	require.True(t, ok)
	require.Equal(t, Fixnum(5), r)

	_, ok = FixnumAdd(Fixnum(int32(MostPositiveFixnum)), Fixnum(1))
	require.False(t, ok)

	r, ok = FixnumSub(Fixnum(2), Fixnum(3))
	require.True(t, ok)
	require.Equal(t, Fixnum(-1), r)

	r, ok = FixnumMul(Fixnum(-4), Fixnum(6))
	require.True(t, ok)
	require.Equal(t, Fixnum(-24), r)

	_, ok = FixnumMul(Fixnum(1<<20), Fixnum(1<<12))
	require.False(t, ok)

	r, ok = FixnumNegate(Fixnum(7))
	require.True(t, ok)
	require.Equal(t, Fixnum(-7), r)
}

func TestPointer(t *testing.T) {
	o, err := MakePointer(0x48000010, ListPointerLowtag)
	require.NoError(t, err)
	require.True(t, o.IsPointer())
	require.True(t, o.IsList())
	require.Equal(t, uint64(0x48000010), o.Addr())
	require.Equal(t, ClassListPointer, o.Class())

	_, err = MakePointer(0x48000014, OtherPointerLowtag)
	require.ErrorIs(t, err, ErrMisaligned)
	_, err = MakePointer(0x48000010, OddFixnumLowtag)
	require.ErrorIs(t, err, ErrNotPointer)
}

func TestImmediates(t *testing.T) {
	c := MakeChar('a')
	require.True(t, c.IsChar())
	require.Equal(t, byte('a'), c.CharCode())
	require.Equal(t, ClassImmediate, c.Class())
	require.Equal(t, "#<char 'a'>", c.String())
	require.Equal(t, "#<unbound>", UnboundMarker.String())
	require.False(t, UnboundMarker.IsPointer())

	h := MakeHeader(SymbolHeaderType, 5)
	require.Equal(t, SymbolHeaderType, h.Type())
	require.EqualValues(t, 5, h.HeaderValue())
}

func TestStaticSymbols(t *testing.T) {
	const base = 0x28000000
	n := Nil(base)
	require.True(t, n.IsList())
	require.Equal(t, NilSymbolAddr(base)+WordSize, n.Addr())

	syms := StaticSymbols()
	require.Equal(t, T, syms[0])
	require.Equal(t, "*PSEUDO-ATOMIC-ATOMIC*", PseudoAtomicAtomic.String())
	for _, s := range syms {
		require.Zero(t, s.Addr(base)%ObjectAlign, s.String())
		require.True(t, s.Obj(base).IsOtherPointer())
		require.LessOrEqual(t, s.Addr(base)+SymbolSize, StaticSymbolsEnd(base))
	}
	// NIL's symbol ends before T.
	require.LessOrEqual(t, NilSymbolAddr(base)+SymbolSize, T.Addr(base))
}

func TestSizes(t *testing.T) {
	require.EqualValues(t, 16, StringSize(3))
	require.EqualValues(t, 24, StringSize(8))
	require.EqualValues(t, 16, VectorSize(2))
	require.EqualValues(t, 8, Align(1))
}
