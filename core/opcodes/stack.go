package opcodes

import (
	"strings"

	"github.com/holiman/uint256"
)

// StackLimit is the maximum depth of the EVM operand stack.
const StackLimit = 1024

// Value is an abstract stack slot: either a known 256-bit constant or unknown.
type Value struct {
	known bool
	u     uint256.Int
}

// Unknown returns a value whose content is not tracked.
func Unknown() Value { return Value{} }

// Known wraps a constant.
func Known(u *uint256.Int) Value {
	return Value{known: true, u: *u}
}

// KnownUint64 is a shorthand for small constants.
func KnownUint64(n uint64) Value {
	return Value{known: true, u: *uint256.NewInt(n)}
}

// IsKnown reports whether the value is a constant.
func (v Value) IsKnown() bool { return v.known }

// Uint256 returns the constant, or nil for unknown values.
func (v Value) Uint256() *uint256.Int {
	if !v.known {
		return nil
	}
	u := v.u
	return &u
}

func (v Value) String() string {
	if !v.known {
		return "?"
	}
	return v.u.Hex()
}

// Stack is the abstract operand stack. Index 0 is the bottom.
type Stack struct {
	data []Value
}

// NewStack returns a stack holding the given values, bottom first.
func NewStack(values ...Value) *Stack {
	s := &Stack{data: make([]Value, len(values))}
	copy(s.data, values)
	return s
}

// UnknownStack returns a stack of n unknown values.
func UnknownStack(n int) *Stack {
	if n < 0 {
		n = 0
	}
	return &Stack{data: make([]Value, n)}
}

func (s *Stack) Len() int { return len(s.data) }

func (s *Stack) push(v Value) error {
	if len(s.data) >= StackLimit {
		return ErrStackOverflow
	}
	s.data = append(s.data, v)
	return nil
}

func (s *Stack) pop() (Value, error) {
	if len(s.data) == 0 {
		return Value{}, ErrStackUnderflow
	}
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v, nil
}

// Peek returns the nth item from the top (0-indexed).
func (s *Stack) Peek(n int) (Value, bool) {
	if n < 0 || n >= len(s.data) {
		return Value{}, false
	}
	return s.data[len(s.data)-1-n], true
}

func (s *Stack) swap(n int) error {
	if n >= len(s.data) {
		return ErrStackUnderflow
	}
	top := len(s.data) - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
	return nil
}

func (s *Stack) dup(n int) error {
	if n > len(s.data) {
		return ErrStackUnderflow
	}
	return s.push(s.data[len(s.data)-n])
}

// Copy returns an independent copy of the stack.
func (s *Stack) Copy() *Stack {
	return NewStack(s.data...)
}

// Suffix returns the top n values, bottom first. A stack shorter than n
// yields the whole stack.
func (s *Stack) Suffix(n int) []Value {
	if n <= 0 {
		return nil
	}
	if n > len(s.data) {
		n = len(s.data)
	}
	return s.data[len(s.data)-n:]
}

// SuffixKey encodes the top n values into a comparable key.
func (s *Stack) SuffixKey(n int) string {
	suffix := s.Suffix(n)
	var b strings.Builder
	b.Grow(len(suffix) * 33)
	for _, v := range suffix {
		if !v.known {
			b.WriteByte('?')
			continue
		}
		b.WriteByte('k')
		word := v.u.Bytes32()
		b.Write(word[:])
	}
	return b.String()
}
