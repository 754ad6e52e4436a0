package segment

import (
	"errors"
	"fmt"

	"github.com/bnb-chain/evmseg/core/opcodes"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
)

// Engine analyses a single code unit: the bytes from the unit's base to the
// end of the buffer. It owns the blocks of the unit; nothing is shared with
// other engines.
type Engine struct {
	cfg    *Config
	interp *opcodes.Interpreter

	code         []byte
	base         uint64
	predictedEnd uint64

	blocks    []*Block
	byStart   map[uint64]*Block
	jumpDests mapset.Set[uint64]

	steps      int
	degenerate bool
}

type pending struct {
	pc    uint64
	stack *opcodes.Stack
}

// newEngine builds the blocks of the unit starting at unit.Start. The unit
// is expected to end at unit.End, but blocks cover the rest of the buffer.
func newEngine(code []byte, unit Span, meta []Span, cfg *Config, interp *opcodes.Interpreter) (*Engine, error) {
	if unit.Start >= uint64(len(code)) {
		return nil, fmt.Errorf("%w: unit %#x beyond code size %d", ErrMalformedRegion, unit.Start, len(code))
	}
	region := code[unit.Start:]
	e := &Engine{
		cfg:          cfg,
		interp:       interp,
		code:         region,
		base:         unit.Start,
		predictedEnd: unit.End,
		jumpDests:    opcodes.JumpDests(region),
	}
	e.blocks, e.degenerate = buildBlocks(region, e.base, meta, cfg)
	e.index()
	return e, nil
}

func (e *Engine) index() {
	e.byStart = make(map[uint64]*Block, len(e.blocks))
	for i, b := range e.blocks {
		b.idx = i
		e.byStart[b.start] = b
	}
}

// Base returns the absolute offset of the unit.
func (e *Engine) Base() uint64 { return e.base }

// Blocks returns the blocks of the unit in address order.
func (e *Engine) Blocks() []*Block { return e.blocks }

// Steps returns the number of worklist entries processed.
func (e *Engine) Steps() int { return e.steps }

// Run executes all analysis passes.
func (e *Engine) Run() {
	if e.degenerate {
		return
	}
	if e.blocks[0].MinimumStackSize() > 0 {
		// Real entry points start with an empty stack.
		e.blocks = []*Block{newBlock(KindData, 0, uint64(len(e.code)), e.cfg.MaxBlockExecutions)}
		e.blocks[0].decode(e.code)
		e.index()
		e.degenerate = true
		return
	}
	e.execute(0, opcodes.NewStack())
	if e.cfg.SecondaryExecution {
		e.secondary()
	}
	if e.cfg.SanitizeBlocks {
		e.sanitize()
	}
	log.Debug("Analysed code unit", "base", e.base, "blocks", len(e.blocks), "executed", e.executedCount(), "steps", e.steps)
}

// execute runs the worklist starting at pc. Failing paths are dropped
// without affecting the others.
func (e *Engine) execute(pc uint64, stack *opcodes.Stack) {
	work := []pending{{pc: pc, stack: stack}}
	for len(work) > 0 {
		if limit := e.cfg.MaxTotalExecutions; limit >= 0 && e.steps >= limit {
			log.Debug("Execution budget exhausted", "base", e.base, "steps", e.steps)
			return
		}
		e.steps++

		cur := work[len(work)-1]
		work = work[:len(work)-1]

		b, ok := e.byStart[cur.pc]
		if !ok || b.kind != KindCode {
			continue
		}
		succ, err := b.Execute(e.base, cur.stack, e.jumpDests, e.interp)
		if err != nil {
			failedPathCounter.Inc(1)
			if errors.Is(err, opcodes.ErrInvalidJump) {
				invalidJumpCounter.Inc(1)
			}
			debugTrace("Dropped execution path", "base", e.base, "block", b.start, "err", err)
			continue
		}
		for _, next := range succ {
			work = append(work, pending{pc: next, stack: cur.stack.Copy()})
		}
	}
}

// secondary seeds execution at likely-code blocks the primary pass missed.
func (e *Engine) secondary() {
	var code []*Block
	for _, b := range e.blocks {
		if b.kind == KindCode {
			code = append(code, b)
		}
	}
	for i := len(code) - 1; i > 0; i-- {
		if code[i].executed || code[i].mostLikelyCode(e.blocks) {
			break
		}
		code = code[:i]
	}
	for _, b := range code {
		if e.base+b.start >= e.predictedEnd {
			break
		}
		if !b.executed && b.mostLikelyCode(e.blocks) {
			size := e.cfg.secondaryStackSize(b.MinimumStackSize())
			e.execute(b.start, opcodes.UnknownStack(size))
		}
	}
}

// sanitize claims reachable blocks that were skipped over during execution
// and demotes code blocks nobody claimed. The first and last block are left
// alone.
func (e *Engine) sanitize() {
	n := len(e.blocks)
	for i := 1; i < n-1; i++ {
		b := e.blocks[i]
		if b.kind != KindCode {
			continue
		}
		if !b.executed && e.blocks[i-1].executed && b.isReachable(e.blocks) {
			for _, later := range e.blocks[i : n-1] {
				if later.executed {
					b.claim(e.base)
					break
				}
			}
		} else if !b.claimed {
			b.kind = KindData
		}
	}
}

func (e *Engine) executedCount() int {
	n := 0
	for _, b := range e.blocks {
		if b.executed {
			n++
		}
	}
	return n
}

// claimedAt reports whether the absolute offset pc lies in a code block this
// unit claimed.
func (e *Engine) claimedAt(pc uint64) bool {
	if pc < e.base {
		return false
	}
	for _, b := range e.blocks {
		if b.kind == KindCode && b.claimed && b.start <= pc-e.base && pc-e.base < b.end {
			return true
		}
	}
	return false
}

// codeSpans coalesces the claimed code blocks of the unit into maximal runs,
// in absolute offsets.
func (e *Engine) codeSpans() []Span {
	var spans []Span
	for _, b := range e.blocks {
		if b.kind != KindCode || !b.claimed {
			continue
		}
		start, end := e.base+b.start, e.base+b.end
		if n := len(spans); n > 0 && spans[n-1].End == start {
			spans[n-1].End = end
			continue
		}
		spans = append(spans, Span{Start: start, End: end, Kind: KindCode, Owner: e.base, Owned: true})
	}
	return spans
}
