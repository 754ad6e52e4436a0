package segment

import (
	"sort"

	"github.com/bnb-chain/evmseg/core/opcodes"
)

// buildBlocks splits the code of one unit into basic blocks with a single
// linear scan. meta holds the metadata spans of the whole buffer in absolute
// offsets; base is the absolute offset of code[0]. The second return value
// is set when the unit's first opcode halts, in which case the whole region
// is returned as a single data block.
func buildBlocks(code []byte, base uint64, meta []Span, cfg *Config) ([]*Block, bool) {
	size := uint64(len(code))
	if opcodes.Lookup(code[0]).Halts {
		b := newBlock(KindData, 0, size, cfg.MaxBlockExecutions)
		b.decode(code)
		return []*Block{b}, true
	}
	var (
		kinds  = map[uint64]Kind{0: KindCode}
		skip   uint64
		inData bool
	)
	for i := uint64(0); i < size; i++ {
		if skip > 0 {
			skip--
			continue
		}
		if m, ok := metaAt(meta, base+i); ok {
			start := uint64(0)
			if m.Start > base {
				start = m.Start - base
			}
			kinds[start] = KindMeta
			if end := m.End - base; end < size {
				kinds[end] = KindCode
			}
			inData = false
			skip = m.End - (base + i) - 1
			continue
		}
		op := opcodes.Lookup(code[i])
		skip = uint64(op.ImmediateLen)

		if inData {
			if !op.Invalid {
				kinds[i] = KindCode
				inData = false
			}
			continue
		}
		switch {
		case op.Code == opcodes.JUMPDEST:
			kinds[i] = KindCode
		case op.Invalid:
			if cfg.SingleInvalidsAreCode && i+1 < size && !opcodes.Lookup(code[i+1]).Invalid {
				kinds[i+1] = KindCode
				break
			}
			kinds[i] = KindData
			inData = true
		case op.AltersFlow:
			if i+1 >= size {
				break
			}
			if i+2 < size && opcodes.Lookup(code[i+2]).Invalid {
				kinds[i+1] = KindData
				inData = true
			} else {
				kinds[i+1] = KindCode
			}
		}
	}

	starts := make([]uint64, 0, len(kinds))
	for s := range kinds {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	blocks := make([]*Block, len(starts))
	for i, s := range starts {
		end := size
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		b := newBlock(kinds[s], s, end, cfg.MaxBlockExecutions)
		b.idx = i
		b.decode(code)
		blocks[i] = b
	}
	return blocks, false
}

func metaAt(meta []Span, pc uint64) (Span, bool) {
	for _, m := range meta {
		if m.Contains(pc) {
			return m, true
		}
	}
	return Span{}, false
}
