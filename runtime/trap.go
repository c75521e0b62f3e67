package runtime

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// TrapKind is the byte following a trap instruction in managed code.
type TrapKind uint8

// TrapStepComplete never appears in code; it tags the debug trap that
// ends a single-step.
const TrapStepComplete TrapKind = 0

const (
	TrapHalt TrapKind = 8 + iota
	TrapPendingInterrupt
	TrapError
	TrapCerror
	TrapBreakpoint
	TrapFunctionEndBreakpoint
)

var trapKindNames = map[TrapKind]string{
	TrapStepComplete:          "single-step",
	TrapHalt:                  "halt",
	TrapPendingInterrupt:      "pending-interrupt",
	TrapError:                 "error",
	TrapCerror:                "cerror",
	TrapBreakpoint:            "breakpoint",
	TrapFunctionEndBreakpoint: "function-end-breakpoint",
}

func (k TrapKind) String() string {
	if name, ok := trapKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("trap(%d)", uint8(k))
}

// Valid reports whether k may appear in a trap record.
func (k TrapKind) Valid() bool {
	return k >= TrapHalt && k <= TrapFunctionEndBreakpoint
}

// HasArgs reports whether records of this kind carry a length byte and an
// argument payload.
func (k TrapKind) HasArgs() bool {
	return k == TrapError || k == TrapCerror
}

// TrapRecord is the data placed in the instruction stream right after a
// trap instruction.
type TrapRecord struct {
	Kind TrapKind
	Args []byte
}

// Size is the number of bytes the record occupies, kind byte included.
func (r TrapRecord) Size() uint64 {
	if r.Kind.HasArgs() {
		return 2 + uint64(len(r.Args))
	}
	return 1
}

func (r TrapRecord) Encode() ([]byte, error) {
	if !r.Kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownTrap, "kind %d", r.Kind)
	}
	if !r.Kind.HasArgs() {
		if len(r.Args) != 0 {
			return nil, errors.Wrapf(ErrBadRecord, "%s takes no arguments", r.Kind)
		}
		return []byte{byte(r.Kind)}, nil
	}
	if len(r.Args) > 0xFF {
		return nil, errors.Wrapf(ErrBadRecord, "%d argument bytes", len(r.Args))
	}
	b := make([]byte, 0, r.Size())
	b = append(b, byte(r.Kind), byte(len(r.Args)))
	return append(b, r.Args...), nil
}

// DecodeTrapRecord parses a record from b, which starts at the kind byte.
func DecodeTrapRecord(b []byte) (TrapRecord, error) {
	if len(b) == 0 {
		return TrapRecord{}, ErrShortRecord
	}
	rec := TrapRecord{Kind: TrapKind(b[0])}
	if !rec.Kind.Valid() {
		return TrapRecord{}, errors.Wrapf(ErrUnknownTrap, "kind %d", b[0])
	}
	if !rec.Kind.HasArgs() {
		return rec, nil
	}
	if len(b) < 2 || len(b) < 2+int(b[1]) {
		return TrapRecord{}, ErrShortRecord
	}
	rec.Args = append([]byte(nil), b[2:2+int(b[1])]...)
	return rec, nil
}

// ReadTrapRecord reads a record one byte at a time.
func ReadTrapRecord(r io.ByteReader) (TrapRecord, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return TrapRecord{}, errors.Wrap(ErrShortRecord, err.Error())
	}
	rec := TrapRecord{Kind: TrapKind(kind)}
	if !rec.Kind.Valid() {
		return TrapRecord{}, errors.Wrapf(ErrUnknownTrap, "kind %d", kind)
	}
	if !rec.Kind.HasArgs() {
		return rec, nil
	}
	n, err := r.ReadByte()
	if err != nil {
		return TrapRecord{}, errors.Wrap(ErrShortRecord, err.Error())
	}
	rec.Args = make([]byte, n)
	for i := range rec.Args {
		if rec.Args[i], err = r.ReadByte(); err != nil {
			return TrapRecord{}, errors.Wrap(ErrShortRecord, err.Error())
		}
	}
	return rec, nil
}
