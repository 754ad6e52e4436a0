// evmseg splits EVM bytecode into code, data and metadata spans.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	app := &cli.App{
		Name:      "evmseg",
		Usage:     "segment EVM bytecode into code, data and metadata",
		ArgsUsage: "",
		Description: `
Reads CSV records of the form id,address,bytecode from stdin (or --input) and
prints one line per span: start,end,"kind",owner. Offsets are hex, ranges are
half-open and owner is the offset of the code unit a code span belongs to.`,
		Flags:  append(append(append([]cli.Flag{}, segmentFlags...), ioFlags...), logFlags...),
		Before: setupLogging,
		Action: segmentRecords,
		Commands: []*cli.Command{
			disasmCommand,
			statsCommand,
			dumpConfigCommand,
		},
	}
	return app
}

func setupLogging(ctx *cli.Context) error {
	var (
		output   io.Writer = ctx.App.ErrWriter
		useColor           = false
	)
	if output == nil || output == os.Stderr {
		output = colorable.NewColorableStderr()
		useColor = isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	}
	handler := log.NewTerminalHandlerWithLevel(output, log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)), useColor)
	log.SetDefault(log.NewLogger(handler))
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
