package opcodes

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

// Interpreter applies opcode semantics to an abstract stack. Arithmetic is
// folded when every operand is a known constant; anything that depends on
// memory, storage, calldata or the environment produces an unknown value.
type Interpreter struct {
	expCap       bool
	expCapValue  uint64
	knownInvalid mapset.Set[uint64]
}

// NewInterpreter creates an interpreter. When expCap is set, EXP is only
// folded for exponents up to capValue. Jumps to a target listed in
// knownInvalid are accepted as deliberate throws instead of failing.
func NewInterpreter(expCap bool, capValue uint64, knownInvalid []uint64) *Interpreter {
	return &Interpreter{
		expCap:       expCap,
		expCapValue:  capValue,
		knownInvalid: mapset.NewThreadUnsafeSet(knownInvalid...),
	}
}

// Apply executes ins on stack and returns the program counters control may
// transfer to. Straight-line instructions and halts return nothing, JUMP
// returns its target and JUMPI returns up to two entries. A known jump target
// that is neither in jumpDests nor accepted as known-invalid yields
// ErrInvalidJump.
func (in *Interpreter) Apply(ins *Instruction, stack *Stack, jumpDests mapset.Set[uint64]) ([]uint64, error) {
	succ, err := in.apply(ins, stack, jumpDests)
	if err != nil {
		return nil, fmt.Errorf("%v at %#x: %w", ins.Op.Code, ins.PC, err)
	}
	return succ, nil
}

func (in *Interpreter) apply(ins *Instruction, stack *Stack, jumpDests mapset.Set[uint64]) ([]uint64, error) {
	op := ins.Op
	if op.Missing || op.Invalid {
		return nil, nil
	}
	switch code := op.Code; {
	case code.IsPush():
		return nil, stack.push(Known(&ins.Imm))
	case code == PUSH0:
		return nil, stack.push(KnownUint64(0))
	case code == PC:
		return nil, stack.push(KnownUint64(ins.PC))
	case code >= DUP1 && code <= DUP16:
		return nil, stack.dup(int(code-DUP1) + 1)
	case code >= SWAP1 && code <= SWAP16:
		return nil, stack.swap(int(code-SWAP1) + 1)
	case code == JUMP:
		target, err := stack.pop()
		if err != nil {
			return nil, err
		}
		return in.jumpTarget(target, jumpDests)
	case code == JUMPI:
		return in.jumpi(ins, stack, jumpDests)
	case code == ISZERO || code == NOT:
		return nil, unary(code, stack)
	case code == ADDMOD || code == MULMOD:
		return nil, ternary(code, stack)
	case (code >= ADD && code <= SIGNEXTEND) || (code >= LT && code <= SAR):
		return nil, in.binary(code, stack)
	}
	for i := 0; i < op.Pops; i++ {
		if _, err := stack.pop(); err != nil {
			return nil, err
		}
	}
	for i := 0; i < op.Pushes; i++ {
		if err := stack.push(Unknown()); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (in *Interpreter) jumpTarget(target Value, jumpDests mapset.Set[uint64]) ([]uint64, error) {
	if !target.known {
		return nil, nil
	}
	if target.u.IsUint64() {
		pc := target.u.Uint64()
		if jumpDests.Contains(pc) {
			return []uint64{pc}, nil
		}
		if in.knownInvalid.Contains(pc) {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%w %s", ErrInvalidJump, target.u.Hex())
}

func (in *Interpreter) jumpi(ins *Instruction, stack *Stack, jumpDests mapset.Set[uint64]) ([]uint64, error) {
	target, err := stack.pop()
	if err != nil {
		return nil, err
	}
	cond, err := stack.pop()
	if err != nil {
		return nil, err
	}
	next := ins.Next()
	if cond.known && cond.u.IsZero() {
		return []uint64{next}, nil
	}
	taken, err := in.jumpTarget(target, jumpDests)
	if err != nil {
		return nil, err
	}
	if cond.known {
		return taken, nil
	}
	return append([]uint64{next}, taken...), nil
}

func pop2(stack *Stack) (x, y Value, err error) {
	if x, err = stack.pop(); err != nil {
		return
	}
	y, err = stack.pop()
	return
}

func unary(code ByteCode, stack *Stack) error {
	x, err := stack.pop()
	if err != nil {
		return err
	}
	if !x.known {
		return stack.push(Unknown())
	}
	var z uint256.Int
	if code == ISZERO {
		if x.u.IsZero() {
			z.SetOne()
		}
	} else {
		z.Not(&x.u)
	}
	return stack.push(Known(&z))
}

func ternary(code ByteCode, stack *Stack) error {
	x, y, err := pop2(stack)
	if err != nil {
		return err
	}
	m, err := stack.pop()
	if err != nil {
		return err
	}
	if !x.known || !y.known || !m.known {
		return stack.push(Unknown())
	}
	var z uint256.Int
	if code == ADDMOD {
		z.AddMod(&x.u, &y.u, &m.u)
	} else {
		z.MulMod(&x.u, &y.u, &m.u)
	}
	return stack.push(Known(&z))
}

// binary folds two-operand instructions. x is the top of the stack, y the
// item below it, matching the operand order in core/vm/instructions.go.
func (in *Interpreter) binary(code ByteCode, stack *Stack) error {
	x, y, err := pop2(stack)
	if err != nil {
		return err
	}
	if !x.known || !y.known {
		return stack.push(Unknown())
	}
	var (
		z    uint256.Int
		a, b = &x.u, &y.u
	)
	switch code {
	case ADD:
		z.Add(a, b)
	case MUL:
		z.Mul(a, b)
	case SUB:
		z.Sub(a, b)
	case DIV:
		z.Div(a, b)
	case SDIV:
		z.SDiv(a, b)
	case MOD:
		z.Mod(a, b)
	case SMOD:
		z.SMod(a, b)
	case EXP:
		if in.expCap && (!b.IsUint64() || b.Uint64() > in.expCapValue) {
			return stack.push(Unknown())
		}
		z.Exp(a, b)
	case SIGNEXTEND:
		z.ExtendSign(b, a)
	case LT:
		setBool(&z, a.Lt(b))
	case GT:
		setBool(&z, a.Gt(b))
	case SLT:
		setBool(&z, a.Slt(b))
	case SGT:
		setBool(&z, a.Sgt(b))
	case EQ:
		setBool(&z, a.Eq(b))
	case AND:
		z.And(a, b)
	case OR:
		z.Or(a, b)
	case XOR:
		z.Xor(a, b)
	case BYTE:
		z.Set(b)
		z.Byte(a)
	case SHL:
		if a.LtUint64(256) {
			z.Lsh(b, uint(a.Uint64()))
		}
	case SHR:
		if a.LtUint64(256) {
			z.Rsh(b, uint(a.Uint64()))
		}
	case SAR:
		if a.GtUint64(255) {
			if b.Sign() < 0 {
				z.SetAllOne()
			}
		} else {
			z.SRsh(b, uint(a.Uint64()))
		}
	default:
		return stack.push(Unknown())
	}
	return stack.push(Known(&z))
}

func setBool(z *uint256.Int, b bool) {
	if b {
		z.SetOne()
	}
}
