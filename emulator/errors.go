package emulator

import "errors"

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrArchMismatch    = errors.New("architecture mismatch")
	ErrMemUnmapped     = errors.New("memory unmapped")
	ErrMemProtection   = errors.New("memory protection violation")
	ErrMemOverlap      = errors.New("memory region overlaps")
	ErrMemUnaligned    = errors.New("memory region unaligned")
	ErrRegInvalid      = errors.New("register invalid")
	ErrHookType        = errors.New("hook callback type exception")
	ErrRunning         = errors.New("emulator already running")
	ErrClosed          = errors.New("emulator closed")
)
