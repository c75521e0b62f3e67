package lisp

import "fmt"

// Type is the low byte of a header word or of an other-immediate. Every
// type code has OtherImmediate in its low bits.
type Type uint8

const (
	BignumType Type = 0x0A + 4*iota
	RatioType
	SingleFloatType
	DoubleFloatType
	ComplexType
	SimpleArrayType
	SimpleStringType
	SimpleBitVectorType
	SimpleVectorType
	SimpleArrayUnsignedByte8Type
	SimpleArrayUnsignedByte32Type
	CodeHeaderType
	FunctionHeaderType
	ClosureHeaderType
	FuncallableInstanceHeaderType
	ValueCellHeaderType
	SymbolHeaderType
	BaseCharType
	SapType
	UnboundMarkerType
	WeakPointerType
	InstanceHeaderType
	FdefnType
)

var typeNames = map[Type]string{
	BignumType:                    "bignum",
	RatioType:                     "ratio",
	SingleFloatType:               "single-float",
	DoubleFloatType:               "double-float",
	ComplexType:                   "complex",
	SimpleArrayType:               "simple-array",
	SimpleStringType:              "simple-string",
	SimpleBitVectorType:           "simple-bit-vector",
	SimpleVectorType:              "simple-vector",
	SimpleArrayUnsignedByte8Type:  "simple-array-unsigned-byte-8",
	SimpleArrayUnsignedByte32Type: "simple-array-unsigned-byte-32",
	CodeHeaderType:                "code-header",
	FunctionHeaderType:            "function-header",
	ClosureHeaderType:             "closure-header",
	FuncallableInstanceHeaderType: "funcallable-instance-header",
	ValueCellHeaderType:           "value-cell-header",
	SymbolHeaderType:              "symbol-header",
	BaseCharType:                  "base-char",
	SapType:                       "sap",
	UnboundMarkerType:             "unbound-marker",
	WeakPointerType:               "weak-pointer",
	InstanceHeaderType:            "instance-header",
	FdefnType:                     "fdefn",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%#02x)", uint8(t))
}

// UnboundMarker is the value of a symbol with no global value.
const UnboundMarker = Obj(UnboundMarkerType)

// Type returns the low byte; meaningful for headers and immediates.
func (o Obj) Type() Type {
	return Type(o & TypeMask)
}

// HeaderValue is the part of a header word above the type byte, usually a
// length in words.
func (o Obj) HeaderValue() uint32 {
	return uint32(o) >> TypeBits
}

func MakeHeader(t Type, value uint32) Obj {
	return Obj(value<<TypeBits | uint32(t))
}

func MakeChar(code byte) Obj {
	return Obj(uint32(code)<<TypeBits | uint32(BaseCharType))
}

func (o Obj) IsChar() bool {
	return o.Class() == ClassImmediate && o.Type() == BaseCharType
}

func (o Obj) CharCode() byte {
	return byte(o >> TypeBits)
}
