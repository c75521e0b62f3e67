package lisp

import (
	"math"

	"github.com/pkg/errors"
)

const (
	MostPositiveFixnum int64 = 1<<(WordBits-FixnumTagBits-1) - 1
	MostNegativeFixnum int64 = -1 << (WordBits - FixnumTagBits - 1)
)

func (o Obj) IsFixnum() bool {
	return o&FixnumTagMask == 0
}

// Fixnum tags n without a range check, like the compiler's inline
// make-fixnum. Values outside the fixnum range wrap.
func Fixnum(n int32) Obj {
	return Obj(uint32(n) << FixnumTagBits)
}

func MakeFixnum(n int64) (Obj, error) {
	if n > MostPositiveFixnum || n < MostNegativeFixnum {
		return 0, errors.Wrapf(ErrFixnumRange, "%d", n)
	}
	return Fixnum(int32(n)), nil
}

// FixnumValue recovers the integer with an arithmetic shift.
func (o Obj) FixnumValue() int64 {
	return int64(int32(o) >> FixnumTagBits)
}

func (o Obj) Int() (int64, error) {
	if !o.IsFixnum() {
		return 0, errors.Wrapf(ErrNotFixnum, "%s", o)
	}
	return o.FixnumValue(), nil
}

// The fixnum helpers work on tagged words directly. ok is false when the
// result does not fit.

func FixnumAdd(a, b Obj) (Obj, bool) {
	r := int32(a) + int32(b)
	overflow := (int32(a) >= 0) == (int32(b) >= 0) && (r >= 0) != (int32(a) >= 0)
	return Obj(r), !overflow
}

func FixnumSub(a, b Obj) (Obj, bool) {
	r := int32(a) - int32(b)
	overflow := (int32(a) >= 0) != (int32(b) >= 0) && (r >= 0) != (int32(a) >= 0)
	return Obj(r), !overflow
}

func FixnumMul(a, b Obj) (Obj, bool) {
	r := int64(int32(a)) * (int64(int32(b)) >> FixnumTagBits)
	if r > math.MaxInt32 || r < math.MinInt32 {
		return 0, false
	}
	return Obj(int32(r)), true
}

func FixnumNegate(a Obj) (Obj, bool) {
	return FixnumSub(0, a)
}
