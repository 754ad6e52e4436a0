package segment

import "github.com/bnb-chain/evmseg/core/opcodes"

// Config holds the tunable knobs of the analysis. It is passed by value and
// never mutated by the engine.
type Config struct {
	// MaxBlockExecutions bounds how often a single block is executed.
	// Negative means unbounded, which may not terminate on cyclic code.
	MaxBlockExecutions int
	// MaxTotalExecutions bounds the number of block executions per code
	// unit across all passes. Negative means unbounded.
	MaxTotalExecutions int

	// ExponentCap restricts EXP folding to exponents <= ExponentCapValue.
	ExponentCap      bool
	ExponentCapValue uint64

	// KnownInvalidJumpDests are jump targets accepted as deliberate throws.
	KnownInvalidJumpDests []uint64

	// SecondaryExecution re-executes likely-code blocks the primary pass
	// missed, seeded with an unknown stack of
	// SecondaryStackMultiplier * minimumStackSize entries.
	SecondaryExecution       bool
	SecondaryStackMultiplier int

	// SanitizeBlocks claims reachable-but-unexecuted blocks and demotes
	// unclaimed code blocks to data.
	SanitizeBlocks bool

	// SingleInvalidsAreCode keeps a lone invalid byte between valid opcodes
	// inside code instead of opening a data run.
	SingleInvalidsAreCode bool

	// CacheSize is the number of segmentation results kept per Segmenter,
	// keyed by code hash. Zero disables the cache.
	CacheSize int

	stackSize func(int) int `toml:"-"`
}

// DefaultConfig contains the default settings.
var DefaultConfig = Config{
	MaxBlockExecutions:       100,
	MaxTotalExecutions:       -1,
	ExponentCap:              true,
	ExponentCapValue:         257,
	KnownInvalidJumpDests:    []uint64{0, 2, 4, 7},
	SecondaryExecution:       true,
	SecondaryStackMultiplier: 2,
	SanitizeBlocks:           false,
	SingleInvalidsAreCode:    true,
	CacheSize:                1024,
}

// WithSecondaryStackSize returns a copy of c that sizes the synthetic stack
// of secondary executions with fn instead of the multiplier.
func (c Config) WithSecondaryStackSize(fn func(int) int) Config {
	c.stackSize = fn
	return c
}

// secondaryStackSize maps a block's minimum stack size to the number of
// unknown values a secondary execution starts with.
func (c *Config) secondaryStackSize(n int) int {
	if c.stackSize != nil {
		return c.stackSize(n)
	}
	return n * c.SecondaryStackMultiplier
}

func (c *Config) interpreter() *opcodes.Interpreter {
	return opcodes.NewInterpreter(c.ExponentCap, c.ExponentCapValue, c.KnownInvalidJumpDests)
}
