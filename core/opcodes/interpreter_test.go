package opcodes

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultInterpreter() *Interpreter {
	return NewInterpreter(true, 257, []uint64{0, 2, 4, 7})
}

// run decodes code and applies it to stack, returning the successors of the
// last instruction.
func run(t *testing.T, in *Interpreter, code []byte, stack *Stack) ([]uint64, error) {
	t.Helper()
	var (
		succ  []uint64
		err   error
		dests = JumpDests(code)
	)
	for _, ins := range Decode(code, 0, uint64(len(code))) {
		ins := ins
		if succ, err = in.Apply(&ins, stack, dests); err != nil {
			return nil, err
		}
	}
	return succ, nil
}

func top(t *testing.T, s *Stack) *uint256.Int {
	t.Helper()
	v, ok := s.Peek(0)
	require.True(t, ok, "empty stack")
	require.True(t, v.IsKnown(), "top of stack unknown")
	return v.Uint256()
}

func TestConstantFolding(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want uint64
	}{
		{"add", []byte{0x60, 0x01, 0x60, 0x02, 0x01}, 3},
		{"sub", []byte{0x60, 0x01, 0x60, 0x05, 0x03}, 4},
		{"div", []byte{0x60, 0x02, 0x60, 0x09, 0x04}, 4},
		{"div by zero", []byte{0x60, 0x00, 0x60, 0x09, 0x04}, 0},
		{"mod", []byte{0x60, 0x04, 0x60, 0x0a, 0x06}, 2},
		{"exp", []byte{0x60, 0x08, 0x60, 0x02, 0x0a}, 256},
		{"lt", []byte{0x60, 0x02, 0x60, 0x01, 0x10}, 1},
		{"gt", []byte{0x60, 0x02, 0x60, 0x01, 0x11}, 0},
		{"eq", []byte{0x60, 0x07, 0x60, 0x07, 0x14}, 1},
		{"iszero", []byte{0x60, 0x00, 0x15}, 1},
		{"and", []byte{0x60, 0x0c, 0x60, 0x0a, 0x16}, 8},
		{"shl", []byte{0x60, 0x01, 0x60, 0x04, 0x1b}, 16},
		{"shr", []byte{0x60, 0x10, 0x60, 0x04, 0x1c}, 1},
		{"shl overflow", []byte{0x60, 0x01, 0x61, 0x01, 0x00, 0x1b}, 0},
		{"byte", []byte{0x61, 0xab, 0xcd, 0x60, 0x1e, 0x1a}, 0xab},
		{"addmod", []byte{0x60, 0x05, 0x60, 0x04, 0x60, 0x03, 0x08}, 2},
		{"dup", []byte{0x60, 0x03, 0x80, 0x01}, 6},
		{"swap", []byte{0x60, 0x05, 0x60, 0x01, 0x90, 0x03}, 4},
		{"pc", []byte{0x5b, 0x5b, 0x58}, 2},
		{"push0", []byte{0x60, 0x07, 0x5f, 0x01}, 7},
	}
	in := defaultInterpreter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := NewStack()
			_, err := run(t, in, tt.code, stack)
			require.NoError(t, err)
			assert.Equal(t, tt.want, top(t, stack).Uint64())
		})
	}
}

func TestEnvironmentIsUnknown(t *testing.T) {
	// CALLVALUE PUSH1 1 ADD
	stack := NewStack()
	_, err := run(t, defaultInterpreter(), []byte{0x34, 0x60, 0x01, 0x01}, stack)
	require.NoError(t, err)
	require.Equal(t, 1, stack.Len())
	v, _ := stack.Peek(0)
	assert.False(t, v.IsKnown())
}

func TestExponentCap(t *testing.T) {
	// PUSH2 0x0102 PUSH1 2 EXP: exponent 258 is above the cap.
	code := []byte{0x61, 0x01, 0x02, 0x60, 0x02, 0x0a}

	stack := NewStack()
	_, err := run(t, defaultInterpreter(), code, stack)
	require.NoError(t, err)
	v, _ := stack.Peek(0)
	assert.False(t, v.IsKnown())

	stack = NewStack()
	_, err = run(t, NewInterpreter(false, 0, nil), code, stack)
	require.NoError(t, err)
	assert.True(t, top(t, stack).IsZero())
}

func TestJump(t *testing.T) {
	in := defaultInterpreter()

	// PUSH1 3 JUMP JUMPDEST
	succ, err := run(t, in, []byte{0x60, 0x03, 0x56, 0x5b}, NewStack())
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, succ)

	// PUSH1 5 JUMP: no JUMPDEST at 5.
	_, err = run(t, in, []byte{0x60, 0x05, 0x56}, NewStack())
	require.ErrorIs(t, err, ErrInvalidJump)

	// PUSH1 2 JUMP: 2 is an accepted throw target.
	succ, err = run(t, in, []byte{0x60, 0x02, 0x56}, NewStack())
	require.NoError(t, err)
	assert.Empty(t, succ)

	// Unknown target ends the path.
	succ, err = run(t, in, []byte{0x56}, UnknownStack(1))
	require.NoError(t, err)
	assert.Empty(t, succ)

	_, err = run(t, in, []byte{0x56}, NewStack())
	require.ErrorIs(t, err, ErrStackUnderflow)
}

func TestJumpi(t *testing.T) {
	in := defaultInterpreter()
	tests := []struct {
		name string
		cond Value
		want []uint64
	}{
		{"taken", KnownUint64(1), []uint64{6}},
		{"not taken", KnownUint64(0), []uint64{3}},
		{"unknown", Unknown(), []uint64{3, 6}},
	}
	// PUSH1 6 JUMPI STOP STOP STOP JUMPDEST
	code := []byte{0x60, 0x06, 0x57, 0x00, 0x00, 0x00, 0x5b}
	dests := JumpDests(code)
	ins := Decode(code, 0, uint64(len(code)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := NewStack(tt.cond)
			_, err := in.Apply(&ins[0], stack, dests)
			require.NoError(t, err)
			succ, err := in.Apply(&ins[1], stack, dests)
			require.NoError(t, err)
			assert.Equal(t, tt.want, succ)
			assert.Zero(t, stack.Len())
		})
	}
}

func TestDecode(t *testing.T) {
	// PUSH2 0xaabb ADD PUSH3 0xcc (truncated)
	code := []byte{0x61, 0xaa, 0xbb, 0x01, 0x62, 0xcc}
	ins := Decode(code, 0, uint64(len(code)))
	require.Len(t, ins, 3)

	assert.Equal(t, PUSH1+1, ins[0].Op.Code)
	assert.Equal(t, uint64(0xaabb), ins[0].Imm.Uint64())
	assert.Equal(t, uint64(3), ins[0].Next())

	assert.Equal(t, ADD, ins[1].Op.Code)
	assert.Equal(t, uint64(3), ins[1].PC)

	assert.True(t, ins[2].Op.Missing)
	assert.Equal(t, uint64(0xcc), ins[2].Imm.Uint64())
}

func TestJumpDests(t *testing.T) {
	// JUMPDEST PUSH1 0x5b JUMPDEST PUSH2 0x5b5b
	code := []byte{0x5b, 0x60, 0x5b, 0x5b, 0x61, 0x5b, 0x5b}
	dests := JumpDests(code)
	assert.True(t, dests.Equal(mapset.NewThreadUnsafeSet[uint64](0, 3)))
}

func TestLookup(t *testing.T) {
	assert.True(t, Lookup(0x0c).Invalid)
	assert.True(t, Lookup(0x0c).Halts)
	assert.False(t, Lookup(0x0c).AltersFlow)

	assert.True(t, Lookup(byte(INVALID)).AltersFlow)
	assert.True(t, Lookup(byte(STOP)).Halts)
	assert.True(t, Lookup(byte(JUMPI)).IsJump())
	assert.False(t, Lookup(byte(JUMPI)).Halts)

	assert.Equal(t, 32, Lookup(byte(PUSH32)).ImmediateLen)
	assert.Equal(t, 16, Lookup(byte(DUP16)).Pops)
	assert.Equal(t, 17, Lookup(byte(DUP16)).Pushes)
	assert.Equal(t, 6, Lookup(byte(LOG4)).Pops)

	assert.Equal(t, "JUMPDEST", JUMPDEST.String())
	assert.Equal(t, "UNDEFINED", ByteCode(0x0c).String())
}

func TestStackSuffixKey(t *testing.T) {
	a := NewStack(KnownUint64(1), Unknown(), KnownUint64(2))
	b := NewStack(KnownUint64(9), Unknown(), KnownUint64(2))

	assert.Equal(t, a.SuffixKey(2), b.SuffixKey(2))
	assert.NotEqual(t, a.SuffixKey(3), b.SuffixKey(3))
	assert.Empty(t, a.SuffixKey(0))

	c := a.Copy()
	require.NoError(t, c.push(Unknown()))
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 4, c.Len())
}
