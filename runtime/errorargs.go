package runtime

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// SCOffset names a storage location: a storage class in the low five
// bits and an offset within it above them.
type SCOffset uint32

const scBits = 5

func MakeSCOffset(sc, offset uint32) SCOffset {
	return SCOffset(offset<<scBits | sc)
}

func (o SCOffset) SC() uint32 {
	return uint32(o) & (1<<scBits - 1)
}

func (o SCOffset) Offset() uint32 {
	return uint32(o) >> scBits
}

func (o SCOffset) String() string {
	return fmt.Sprintf("sc%d:%d", o.SC(), o.Offset())
}

// Variable length integers: values up to 253 take one byte, 254 prefixes
// a 16-bit value and 255 a 32-bit one, both little endian.
const (
	varInt16 = 254
	varInt32 = 255
)

func AppendVarInt(b []byte, v uint32) []byte {
	switch {
	case v < varInt16:
		return append(b, byte(v))
	case v <= 0xFFFF:
		return binary.LittleEndian.AppendUint16(append(b, varInt16), uint16(v))
	default:
		return binary.LittleEndian.AppendUint32(append(b, varInt32), v)
	}
}

// ReadVarInt decodes one integer from b and returns it with the number of
// bytes consumed.
func ReadVarInt(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrShortRecord
	}
	switch b[0] {
	case varInt16:
		if len(b) < 3 {
			return 0, 0, ErrShortRecord
		}
		return uint32(binary.LittleEndian.Uint16(b[1:])), 3, nil
	case varInt32:
		if len(b) < 5 {
			return 0, 0, ErrShortRecord
		}
		return binary.LittleEndian.Uint32(b[1:]), 5, nil
	}
	return uint32(b[0]), 1, nil
}

// ParseErrorArgs splits the payload of an error trap into the error code
// and the locations of its operands.
func ParseErrorArgs(args []byte) (byte, []SCOffset, error) {
	if len(args) == 0 {
		return 0, nil, ErrShortRecord
	}
	code := args[0]
	var ops []SCOffset
	for rest := args[1:]; len(rest) > 0; {
		v, n, err := ReadVarInt(rest)
		if err != nil {
			return 0, nil, errors.Wrapf(ErrBadRecord, "error %d operand %d", code, len(ops))
		}
		ops = append(ops, SCOffset(v))
		rest = rest[n:]
	}
	return code, ops, nil
}

// EncodeErrorArgs is the inverse of ParseErrorArgs.
func EncodeErrorArgs(code byte, ops ...SCOffset) []byte {
	b := []byte{code}
	for _, op := range ops {
		b = AppendVarInt(b, uint32(op))
	}
	return b
}
