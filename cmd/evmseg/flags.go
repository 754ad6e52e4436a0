package main

import (
	"github.com/bnb-chain/evmseg/core/segment"
	"github.com/urfave/cli/v2"
)

const (
	inputCategory    = "INPUT / OUTPUT"
	analysisCategory = "ANALYSIS"
	loggingCategory  = "LOGGING"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: analysisCategory,
	}
	inputFlag = &cli.StringFlag{
		Name:     "input",
		Usage:    "CSV file with id,address,bytecode records (default: stdin)",
		Category: inputCategory,
	}
	legacyFlag = &cli.BoolFlag{
		Name:     "legacy",
		Usage:    "Print spans without the owning code unit",
		Category: inputCategory,
	}
	withIDFlag = &cli.BoolFlag{
		Name:     "with-id",
		Usage:    "Prefix every output line with the record id",
		Category: inputCategory,
	}
	strictFlag = &cli.BoolFlag{
		Name:     "strict",
		Usage:    "Abort on the first malformed record instead of skipping it",
		Category: inputCategory,
	}
	workersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "Number of records segmented in parallel",
		Value:    1,
		Category: inputCategory,
	}

	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: loggingCategory,
	}
	progressFlag = &cli.IntFlag{
		Name:     "progress",
		Usage:    "Log progress every N records (0 disables)",
		Value:    1000,
		Category: loggingCategory,
	}

	blockBudgetFlag = &cli.IntFlag{
		Name:     "block-budget",
		Usage:    "Maximum executions of a single block (negative: unbounded)",
		Value:    segment.DefaultConfig.MaxBlockExecutions,
		Category: analysisCategory,
	}
	totalBudgetFlag = &cli.IntFlag{
		Name:     "total-budget",
		Usage:    "Maximum block executions per code unit (negative: unbounded)",
		Value:    segment.DefaultConfig.MaxTotalExecutions,
		Category: analysisCategory,
	}
	expCapFlag = &cli.BoolFlag{
		Name:     "exp-cap",
		Usage:    "Only fold EXP for exponents up to --exp-cap-value",
		Value:    segment.DefaultConfig.ExponentCap,
		Category: analysisCategory,
	}
	expCapValueFlag = &cli.Uint64Flag{
		Name:     "exp-cap-value",
		Usage:    "Largest exponent folded when --exp-cap is set",
		Value:    segment.DefaultConfig.ExponentCapValue,
		Category: analysisCategory,
	}
	knownInvalidFlag = &cli.Uint64SliceFlag{
		Name:     "known-invalid-jumpdests",
		Usage:    "Jump targets accepted as deliberate throws",
		Value:    cli.NewUint64Slice(segment.DefaultConfig.KnownInvalidJumpDests...),
		Category: analysisCategory,
	}
	secondaryFlag = &cli.BoolFlag{
		Name:     "secondary",
		Usage:    "Re-execute likely code blocks missed by the first pass",
		Value:    segment.DefaultConfig.SecondaryExecution,
		Category: analysisCategory,
	}
	stackMultiplierFlag = &cli.IntFlag{
		Name:     "stack-multiplier",
		Usage:    "Stack size of secondary executions as a multiple of the block's minimum",
		Value:    segment.DefaultConfig.SecondaryStackMultiplier,
		Category: analysisCategory,
	}
	sanitizeFlag = &cli.BoolFlag{
		Name:     "sanitize",
		Usage:    "Claim reachable unexecuted blocks and demote unclaimed code",
		Value:    segment.DefaultConfig.SanitizeBlocks,
		Category: analysisCategory,
	}
	singleInvalidsFlag = &cli.BoolFlag{
		Name:     "single-invalids-code",
		Usage:    "Treat a lone invalid byte between opcodes as code",
		Value:    segment.DefaultConfig.SingleInvalidsAreCode,
		Category: analysisCategory,
	}
	cacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Number of segmentation results cached by code hash (0 disables)",
		Value:    segment.DefaultConfig.CacheSize,
		Category: analysisCategory,
	}
)

var (
	segmentFlags = []cli.Flag{
		configFileFlag,
		blockBudgetFlag,
		totalBudgetFlag,
		expCapFlag,
		expCapValueFlag,
		knownInvalidFlag,
		secondaryFlag,
		stackMultiplierFlag,
		sanitizeFlag,
		singleInvalidsFlag,
		cacheFlag,
	}
	ioFlags = []cli.Flag{
		inputFlag,
		legacyFlag,
		withIDFlag,
		strictFlag,
		workersFlag,
	}
	logFlags = []cli.Flag{
		verbosityFlag,
		progressFlag,
	}
)
