package opcodes

import "errors"

// List of abstract execution errors. Each of them aborts only the execution
// path that produced it.
var (
	ErrInvalidJump    = errors.New("invalid jump destination")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrStackOverflow  = errors.New("stack limit reached")
)
