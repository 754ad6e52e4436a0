package segment

import (
	"fmt"

	"github.com/bnb-chain/evmseg/core/opcodes"
	mapset "github.com/deckarep/golang-set/v2"
)

type reachability uint8

const (
	reachUnknown reachability = iota
	reachTrue
	reachFalse
)

// Block is a basic block of one code unit. Offsets are relative to the unit
// base. The range never changes once built; the remaining fields record the
// progress of the analysis.
type Block struct {
	idx        int // position in address order
	start, end uint64
	kind       Kind

	instructions []opcodes.Instruction
	neededStack  int

	budget   int
	executed bool
	seen     mapset.Set[string]
	reach    reachability

	owner   uint64
	claimed bool

	succ mapset.Set[uint64] // successors observed while executing
}

func newBlock(kind Kind, start, end uint64, budget int) *Block {
	return &Block{
		start:  start,
		end:    end,
		kind:   kind,
		budget: budget,
		seen:   mapset.NewThreadUnsafeSet[string](),
		succ:   mapset.NewThreadUnsafeSet[uint64](),
	}
}

// decode fills in the instructions of the block from its unit's code.
func (b *Block) decode(code []byte) {
	b.instructions = opcodes.Decode(code, b.start, b.end)
	current := 0
	for i := range b.instructions {
		op := &b.instructions[i].Op
		current += op.Pops
		if current > b.neededStack {
			b.neededStack = current
		}
		current -= op.Pushes
	}
}

func (b *Block) Start() uint64                        { return b.start }
func (b *Block) End() uint64                          { return b.end }
func (b *Block) Kind() Kind                           { return b.kind }
func (b *Block) Executed() bool                       { return b.executed }
func (b *Block) Instructions() []opcodes.Instruction { return b.instructions }
func (b *Block) NeededStackSize() int                 { return b.neededStack }

// Owner returns the base of the unit that claimed the block last.
func (b *Block) Owner() (uint64, bool) { return b.owner, b.claimed }

// Successors returns the offsets control was seen to transfer to.
func (b *Block) Successors() []uint64 { return b.succ.ToSlice() }

func (b *Block) claim(owner uint64) {
	b.owner, b.claimed = owner, true
}

func (b *Block) last() *opcodes.Instruction {
	if len(b.instructions) == 0 {
		return nil
	}
	return &b.instructions[len(b.instructions)-1]
}

// MinimumStackSize is the stack depth a caller must provide for the block to
// run without underflow.
func (b *Block) MinimumStackSize() int {
	var (
		delta  int
		lowest int
	)
	for i := range b.instructions {
		op := &b.instructions[i].Op
		delta -= op.Pops
		if delta < lowest {
			lowest = delta
		}
		delta += op.Pushes
	}
	return -lowest
}

// Execute runs the block on stack and returns the offsets control continues
// at. Nothing is returned once the execution budget is spent or when the top
// of the stack matches an earlier execution.
func (b *Block) Execute(owner uint64, stack *opcodes.Stack, jumpDests mapset.Set[uint64], interp *opcodes.Interpreter) ([]uint64, error) {
	b.claim(owner)
	if b.budget == 0 {
		return nil, nil
	}
	if b.budget > 0 {
		b.budget--
	}
	// A block that reads nothing from the stack has a single empty key, so
	// it runs at most once however deep the incoming stack is.
	key := stack.SuffixKey(b.neededStack)
	if b.seen.Contains(key) {
		return nil, nil
	}
	b.seen.Add(key)

	var succ []uint64
	for i := range b.instructions {
		next, err := interp.Apply(&b.instructions[i], stack, jumpDests)
		if err != nil {
			return nil, err
		}
		succ = next
	}
	if last := b.last(); last != nil {
		op := last.Op
		if !op.AltersFlow && !op.Halts && !op.Missing {
			succ = []uint64{b.end}
		}
	}
	b.executed = true
	b.succ.Append(succ...)
	return succ, nil
}

// isReachable reports whether control can arrive at the block, either because
// it was executed or because the blocks before it fall through into it.
func (b *Block) isReachable(blocks []*Block) bool {
	// Iterate down to the first decided block, then settle the chain upwards.
	var pending []*Block
	result := false
	for cur := b; ; {
		if r, done := cur.reachableLocal(blocks); done {
			result = r
			break
		}
		pending = append(pending, cur)
		cur = blocks[cur.idx-1]
	}
	state := reachFalse
	if result {
		state = reachTrue
	}
	for _, p := range pending {
		p.reach = state
	}
	return result
}

// reachableLocal decides reachability from the block and its predecessor
// alone. done is false when the answer is the predecessor's reachability.
func (b *Block) reachableLocal(blocks []*Block) (reachable bool, done bool) {
	switch {
	case b.reach != reachUnknown:
		return b.reach == reachTrue, true
	case b.executed:
		b.reach = reachTrue
		return true, true
	case len(b.instructions) > 0 && b.instructions[0].Op.Code == opcodes.JUMPDEST:
		b.reach = reachTrue
		return true, true
	case b.idx == 0:
		b.reach = reachTrue
		return true, true
	}
	pre := blocks[b.idx-1]
	if pre.kind != KindCode {
		b.reach = reachFalse
		return false, true
	}
	if last := pre.last(); last != nil && (last.Op.Halts || last.Op.Code == opcodes.JUMP) {
		b.reach = reachFalse
		return false, true
	}
	if pre.executed {
		b.reach = reachTrue
		return true, true
	}
	return false, false
}

// mostLikelyCode follows fallthrough from the block and reports whether the
// chain ends in a deliberate control transfer.
func (b *Block) mostLikelyCode(blocks []*Block) bool {
	for cur := b; ; {
		if !cur.isReachable(blocks) {
			return false
		}
		last := cur.last()
		if last == nil || last.Op.Missing {
			return false
		}
		if last.Op.AltersFlow && last.Op.Code != opcodes.JUMPI {
			return true
		}
		if cur.idx+1 >= len(blocks) {
			return true
		}
		cur = blocks[cur.idx+1]
	}
}

func (b *Block) String() string {
	return fmt.Sprintf("%s [%#x,%#x)", b.kind, b.start, b.end)
}
