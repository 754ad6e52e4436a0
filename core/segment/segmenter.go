package segment

import (
	"fmt"
	"sort"

	"github.com/bnb-chain/evmseg/core/opcodes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

// Segmenter partitions bytecode into code, data and metadata spans. A single
// Segmenter may be used from multiple goroutines; every call works on its
// own engines.
type Segmenter struct {
	cfg    Config
	interp *opcodes.Interpreter
	cache  *lru.Cache[common.Hash, []Span]
}

// Analysis is the full state of one segmentation run.
type Analysis struct {
	Structure []Span    // output of the structural split
	Units     []*Engine // analysed code units, in address order
	Skipped   int       // candidates starting inside code of an earlier unit
	Failed    int       // candidates whose analysis failed
	Spans     []Span    // final segmentation
}

// New creates a segmenter with the given configuration.
func New(cfg Config) *Segmenter {
	s := &Segmenter{
		cfg:    cfg,
		interp: cfg.interpreter(),
	}
	if cfg.CacheSize > 0 {
		s.cache = lru.NewCache[common.Hash, []Span](cfg.CacheSize)
	}
	return s
}

// Config returns the configuration of the segmenter.
func (s *Segmenter) Config() Config { return s.cfg }

// Segment returns the sorted, gap free segmentation of code. Results are
// cached by code hash.
func (s *Segmenter) Segment(code []byte) ([]Span, error) {
	if len(code) == 0 {
		return nil, ErrEmptyCode
	}
	var hash common.Hash
	if s.cache != nil {
		hash = crypto.Keccak256Hash(code)
		if spans, ok := s.cache.Get(hash); ok {
			cacheHitCounter.Inc(1)
			return append([]Span(nil), spans...), nil
		}
		cacheMissCounter.Inc(1)
	}
	a, err := s.Analyze(code)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(hash, append([]Span(nil), a.Spans...))
	}
	return a.Spans, nil
}

// Analyze segments code and keeps every intermediate result.
func (s *Segmenter) Analyze(code []byte) (*Analysis, error) {
	if len(code) == 0 {
		return nil, ErrEmptyCode
	}
	return s.analyzeStructure(code, Decompose(code)), nil
}

func (s *Segmenter) analyzeStructure(code []byte, parts []Span) *Analysis {
	a := &Analysis{Structure: parts}

	var meta []Span
	for _, p := range parts {
		if p.Kind == KindMeta {
			meta = append(meta, p)
		}
	}
	for _, p := range parts {
		if p.Kind != KindCode {
			continue
		}
		if claimedBy(a.Units, p.Start) {
			a.Skipped++
			skippedUnitCounter.Inc(1)
			log.Debug("Skipping nested code unit", "start", p.Start, "end", p.End)
			continue
		}
		unit, err := s.runUnit(code, p, meta)
		if err != nil {
			a.Failed++
			skippedUnitCounter.Inc(1)
			log.Error("Failed to analyse code unit", "start", p.Start, "end", p.End, "err", err)
			continue
		}
		a.Units = append(a.Units, unit)
	}
	a.Spans = merge(uint64(len(code)), a.Units, meta)
	return a
}

func (s *Segmenter) runUnit(code []byte, unit Span, meta []Span) (e *Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, err = nil, fmt.Errorf("%w: %v", ErrMalformedRegion, r)
		}
	}()
	if e, err = newEngine(code, unit, meta, &s.cfg, s.interp); err != nil {
		return nil, err
	}
	e.Run()
	unitCounter.Inc(1)
	return e, nil
}

func claimedBy(units []*Engine, pc uint64) bool {
	for _, u := range units {
		if u.claimedAt(pc) {
			return true
		}
	}
	return false
}

// merge combines the code runs of all units with the metadata spans and
// fills every gap with data. Where two spans overlap, the one sorting first
// wins and the other is clipped.
func merge(size uint64, units []*Engine, meta []Span) []Span {
	var spans []Span
	for _, u := range units {
		spans = append(spans, u.codeSpans()...)
	}
	spans = append(spans, meta...)
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	var (
		out    []Span
		cursor uint64
	)
	for _, sp := range spans {
		if sp.Start < cursor {
			overlapCounter.Inc(1)
			log.Warn("Overlapping segments", "prev", out[len(out)-1], "next", sp)
			if sp.End <= cursor {
				continue
			}
			sp.Start = cursor
		}
		if sp.Start > cursor {
			out = appendSpan(out, Span{Start: cursor, End: sp.Start, Kind: KindData})
		}
		out = appendSpan(out, sp)
		cursor = sp.End
	}
	if cursor < size {
		out = appendSpan(out, Span{Start: cursor, End: size, Kind: KindData})
	}
	return out
}

// appendSpan adds sp to spans, extending the last span instead when both are
// data or both are code of the same unit.
func appendSpan(spans []Span, sp Span) []Span {
	if n := len(spans); n > 0 {
		last := &spans[n-1]
		if last.End == sp.Start && last.Kind == sp.Kind && last.Owned == sp.Owned && last.Owner == sp.Owner && sp.Kind != KindMeta {
			last.End = sp.End
			return spans
		}
	}
	return append(spans, sp)
}
