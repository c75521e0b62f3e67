package layout

import "errors"

var (
	ErrSpaceOverlap    = errors.New("memory spaces overlap")
	ErrBadLayout       = errors.New("bad address map")
	ErrUnknownPlatform = errors.New("unknown platform")
)
