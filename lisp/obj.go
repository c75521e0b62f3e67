// Package lisp defines the tagged-word object representation shared by
// compiled code and the runtime.
//
// A word's low three bits are its lowtag. Even and odd fixnums use the two
// lowtags whose low two bits are zero, so a fixnum carries a 30-bit
// integer shifted left by FixnumTagBits. Pointer lowtags have the low bit
// set; masking the lowtag off yields a dual-word aligned address.
package lisp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Obj is one tagged 32-bit word.
type Obj uint32

const (
	WordSize      = 4
	WordBits      = 32
	LowtagBits    = 3
	LowtagMask    = 1<<LowtagBits - 1
	FixnumTagBits = 2
	FixnumTagMask = 1<<FixnumTagBits - 1
	TypeBits      = 8
	TypeMask      = 1<<TypeBits - 1
	// Objects start on dual-word boundaries.
	ObjectAlign = 2 * WordSize
)

type Lowtag uint8

const (
	EvenFixnumLowtag Lowtag = iota
	FunctionPointerLowtag
	OtherImmediate0Lowtag
	ListPointerLowtag
	OddFixnumLowtag
	InstancePointerLowtag
	OtherImmediate1Lowtag
	OtherPointerLowtag
)

// Class is the coarse representation class of a word.
type Class int

const (
	ClassFixnum Class = iota
	ClassListPointer
	ClassOtherPointer
	ClassFunctionPointer
	ClassInstancePointer
	ClassImmediate
)

func (lt Lowtag) IsPointer() bool {
	return lt&1 != 0
}

func (lt Lowtag) String() string {
	switch lt {
	case EvenFixnumLowtag:
		return "even-fixnum"
	case FunctionPointerLowtag:
		return "function-pointer"
	case OtherImmediate0Lowtag:
		return "other-immediate-0"
	case ListPointerLowtag:
		return "list-pointer"
	case OddFixnumLowtag:
		return "odd-fixnum"
	case InstancePointerLowtag:
		return "instance-pointer"
	case OtherImmediate1Lowtag:
		return "other-immediate-1"
	case OtherPointerLowtag:
		return "other-pointer"
	}
	return fmt.Sprintf("lowtag(%d)", uint8(lt))
}

func (c Class) String() string {
	switch c {
	case ClassFixnum:
		return "fixnum"
	case ClassListPointer:
		return "list-pointer"
	case ClassOtherPointer:
		return "other-pointer"
	case ClassFunctionPointer:
		return "function-pointer"
	case ClassInstancePointer:
		return "instance-pointer"
	case ClassImmediate:
		return "immediate"
	}
	return "unknown"
}

func (o Obj) Lowtag() Lowtag {
	return Lowtag(o & LowtagMask)
}

func (o Obj) Class() Class {
	switch o.Lowtag() {
	case EvenFixnumLowtag, OddFixnumLowtag:
		return ClassFixnum
	case ListPointerLowtag:
		return ClassListPointer
	case OtherPointerLowtag:
		return ClassOtherPointer
	case FunctionPointerLowtag:
		return ClassFunctionPointer
	case InstancePointerLowtag:
		return ClassInstancePointer
	}
	return ClassImmediate
}

func (o Obj) IsPointer() bool {
	return o.Lowtag().IsPointer()
}

func (o Obj) IsList() bool {
	return o.Lowtag() == ListPointerLowtag
}

func (o Obj) IsOtherPointer() bool {
	return o.Lowtag() == OtherPointerLowtag
}

// Addr masks the lowtag off a pointer.
func (o Obj) Addr() uint64 {
	return uint64(o &^ LowtagMask)
}

// MakePointer is the inverse of Addr for a pointer lowtag.
func MakePointer(addr uint64, lt Lowtag) (Obj, error) {
	if !lt.IsPointer() {
		return 0, errors.Wrapf(ErrNotPointer, "lowtag %s", lt)
	}
	if addr%ObjectAlign != 0 || addr > 1<<WordBits-1 {
		return 0, errors.Wrapf(ErrMisaligned, "address %#x", addr)
	}
	return Obj(addr) | Obj(lt), nil
}

func (o Obj) String() string {
	switch o.Class() {
	case ClassFixnum:
		return fmt.Sprintf("#<fixnum %d>", o.FixnumValue())
	case ClassImmediate:
		switch o.Type() {
		case BaseCharType:
			return fmt.Sprintf("#<char %q>", rune(o.CharCode()))
		case UnboundMarkerType:
			return "#<unbound>"
		}
		return fmt.Sprintf("#<immediate %#08x>", uint32(o))
	}
	return fmt.Sprintf("#<%s %#08x>", o.Class(), o.Addr())
}
