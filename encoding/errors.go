package encoding

import "errors"

var (
	ErrShortStream     = errors.New("short stream")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrNotPointer      = errors.New("value is not a pointer")
)
