package opcodes

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

// Instruction is one decoded opcode together with its immediate operand.
type Instruction struct {
	Op  Descriptor
	PC  uint64
	Imm uint256.Int
}

// Next returns the pc of the following instruction.
func (ins *Instruction) Next() uint64 {
	return ins.PC + 1 + uint64(ins.Op.ImmediateLen)
}

func (ins *Instruction) String() string {
	if ins.Op.ImmediateLen > 0 {
		return fmt.Sprintf("%#x: %v %s", ins.PC, ins.Op.Code, ins.Imm.Hex())
	}
	return fmt.Sprintf("%#x: %v", ins.PC, ins.Op.Code)
}

// Decode decodes code[start:end] into instructions. A push whose immediate
// reaches past end is flagged Missing and its available bytes are used as
// the immediate.
func Decode(code []byte, start, end uint64) []Instruction {
	if end > uint64(len(code)) {
		end = uint64(len(code))
	}
	var ins []Instruction
	for pc := start; pc < end; {
		op := Lookup(code[pc])
		in := Instruction{Op: op, PC: pc}
		if n := uint64(op.ImmediateLen); n > 0 {
			from, to := pc+1, pc+1+n
			if to > end {
				in.Op.Missing = true
				to = end
			}
			if from < to {
				in.Imm.SetBytes(code[from:to])
			}
		}
		ins = append(ins, in)
		pc = in.Next()
	}
	return ins
}

// JumpDests collects every JUMPDEST offset that is not inside a push
// immediate.
func JumpDests(code []byte) mapset.Set[uint64] {
	dests := mapset.NewThreadUnsafeSet[uint64]()
	for pc := 0; pc < len(code); pc++ {
		op := ByteCode(code[pc])
		if op == JUMPDEST {
			dests.Add(uint64(pc))
		}
		pc += op.PushLen()
	}
	return dests
}
