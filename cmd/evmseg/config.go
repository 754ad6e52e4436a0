package main

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/bnb-chain/evmseg/core/segment"
	"github.com/naoina/toml"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type evmsegConfig struct {
	Segment segment.Config
}

func loadConfig(file string, cfg *evmsegConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the command
// line overrides on top of it.
func makeConfig(ctx *cli.Context) (evmsegConfig, error) {
	cfg := evmsegConfig{Segment: segment.DefaultConfig}
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, errors.Wrap(err, "failed to load config")
		}
	}
	applySegmentFlags(ctx, &cfg.Segment)
	return cfg, nil
}

func applySegmentFlags(ctx *cli.Context, cfg *segment.Config) {
	if ctx.IsSet(blockBudgetFlag.Name) {
		cfg.MaxBlockExecutions = ctx.Int(blockBudgetFlag.Name)
	}
	if ctx.IsSet(totalBudgetFlag.Name) {
		cfg.MaxTotalExecutions = ctx.Int(totalBudgetFlag.Name)
	}
	if ctx.IsSet(expCapFlag.Name) {
		cfg.ExponentCap = ctx.Bool(expCapFlag.Name)
	}
	if ctx.IsSet(expCapValueFlag.Name) {
		cfg.ExponentCapValue = ctx.Uint64(expCapValueFlag.Name)
	}
	if ctx.IsSet(knownInvalidFlag.Name) {
		dests := ctx.Uint64Slice(knownInvalidFlag.Name)
		cfg.KnownInvalidJumpDests = append([]uint64{}, dests...)
	}
	if ctx.IsSet(secondaryFlag.Name) {
		cfg.SecondaryExecution = ctx.Bool(secondaryFlag.Name)
	}
	if ctx.IsSet(stackMultiplierFlag.Name) {
		cfg.SecondaryStackMultiplier = ctx.Int(stackMultiplierFlag.Name)
	}
	if ctx.IsSet(sanitizeFlag.Name) {
		cfg.SanitizeBlocks = ctx.Bool(sanitizeFlag.Name)
	}
	if ctx.IsSet(singleInvalidsFlag.Name) {
		cfg.SingleInvalidsAreCode = ctx.Bool(singleInvalidsFlag.Name)
	}
	if ctx.IsSet(cacheFlag.Name) {
		cfg.CacheSize = ctx.Int(cacheFlag.Name)
	}
}

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Export configuration values in a TOML format",
	ArgsUsage:   "<dumpfile (optional)>",
	Flags:       segmentFlags,
	Description: `Export configuration values in TOML format (to stdout by default).`,
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	_, err = dump.Write(out)
	return err
}
