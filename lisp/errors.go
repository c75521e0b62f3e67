package lisp

import "errors"

var (
	ErrNotPointer   = errors.New("not a pointer lowtag")
	ErrMisaligned   = errors.New("address not dual-word aligned")
	ErrFixnumRange  = errors.New("integer outside fixnum range")
	ErrNotFixnum    = errors.New("not a fixnum")
	ErrWrongType    = errors.New("object has wrong type")
	ErrNotCharacter = errors.New("not a base character")
)
