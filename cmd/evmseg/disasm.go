package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bnb-chain/evmseg/core/segment"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	hexFlag = &cli.StringFlag{
		Name:  "hex",
		Usage: "contract bytecode as hex (with or without 0x prefix)",
	}
	fileFlag = &cli.StringFlag{
		Name:  "file",
		Usage: "path to file containing contract bytecode hex",
	}
	dotFlag = &cli.BoolFlag{
		Name:  "dot",
		Usage: "emit a Graphviz DOT graph of the blocks instead of a listing",
	}
	titleFlag = &cli.StringFlag{
		Name:  "title",
		Usage: "graph title (optional)",
	}

	disasmCommand = &cli.Command{
		Action:    disasm,
		Name:      "disasm",
		Usage:     "Show the blocks of every code unit of one bytecode",
		ArgsUsage: "",
		Flags:     append([]cli.Flag{hexFlag, fileFlag, dotFlag, titleFlag}, segmentFlags...),
		Description: `
Prints the structural split, every block of every analysed code unit with its
claimed and executed state, and the final spans. With --dot the blocks and the
edges observed during execution are written as a DOT graph.`,
	}
)

func loadBytecode(hexArg, fileArg string) ([]byte, error) {
	if hexArg != "" {
		return decodeHexString(hexArg)
	}
	data, err := os.ReadFile(fileArg)
	if err != nil {
		return nil, err
	}
	return decodeHexString(string(data))
}

func disasm(ctx *cli.Context) error {
	hexArg, fileArg := ctx.String(hexFlag.Name), ctx.String(fileFlag.Name)
	if hexArg == "" && fileArg == "" {
		return errors.New("one of --hex or --file is required")
	}
	code, err := loadBytecode(hexArg, fileArg)
	if err != nil {
		return errors.Wrap(err, "failed to load bytecode")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	a, err := segment.New(cfg.Segment).Analyze(code)
	if err != nil {
		return err
	}
	if ctx.Bool(dotFlag.Name) {
		_, err = ctx.App.Writer.Write(buildDOT(a, ctx.String(titleFlag.Name)))
		return err
	}
	return writeListing(ctx.App.Writer, code, a)
}

func writeListing(out io.Writer, code []byte, a *segment.Analysis) error {
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "size %d, units %d, skipped %d, failed %d\n", len(code), len(a.Units), a.Skipped, a.Failed)
	fmt.Fprintln(w, "structure:")
	for _, p := range a.Structure {
		fmt.Fprintf(w, "  [%#x,%#x) %s\n", p.Start, p.End, p.Kind)
	}
	for _, u := range a.Units {
		base := u.Base()
		fmt.Fprintf(w, "unit %#x: blocks %d, steps %d\n", base, len(u.Blocks()), u.Steps())
		for _, b := range u.Blocks() {
			state := []string{fmt.Sprintf("[%#x,%#x)", base+b.Start(), base+b.End()), b.Kind().String()}
			if _, ok := b.Owner(); ok {
				state = append(state, "claimed")
			}
			if b.Executed() {
				state = append(state, "executed")
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(state, " "))
			if b.Kind() == segment.KindMeta {
				continue
			}
			for _, ins := range b.Instructions() {
				fmt.Fprintf(w, "    %#06x: %v", base+ins.PC, ins.Op.Code)
				if ins.Op.ImmediateLen > 0 {
					fmt.Fprintf(w, " %s", ins.Imm.Hex())
				}
				if ins.Op.Missing {
					fmt.Fprint(w, " (truncated)")
				}
				fmt.Fprintln(w)
			}
		}
	}
	fmt.Fprintln(w, "spans:")
	p := newPrinter(w, false, false)
	if err := p.print("", a.Spans); err != nil {
		return err
	}
	if err := p.flush(); err != nil {
		return err
	}
	return w.Flush()
}

func buildDOT(a *segment.Analysis, title string) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	fmt.Fprintln(w, "digraph evmseg {")
	fmt.Fprintln(w, "  rankdir=TB;")
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")
	if title != "" {
		fmt.Fprintf(w, "  labelloc=\"t\";\n  label=\"%s\";\n", escapeDOT(title))
	}
	for ui, u := range a.Units {
		base := u.Base()
		fmt.Fprintf(w, "  subgraph cluster_%d {\n", ui)
		fmt.Fprintf(w, "    label=\"unit %#x\";\n", base)

		blocks := u.Blocks()
		index := make(map[uint64]int, len(blocks))
		for bi, b := range blocks {
			index[b.Start()] = bi
			firstOp, lastOp := "", ""
			if ins := b.Instructions(); len(ins) > 0 && b.Kind() != segment.KindMeta {
				firstOp, lastOp = ins[0].Op.Code.String(), ins[len(ins)-1].Op.Code.String()
			}
			label := fmt.Sprintf("%s [%#x,%#x)\\nfirst:%s\\nlast:%s", b.Kind(), base+b.Start(), base+b.End(), firstOp, lastOp)
			style := ""
			switch {
			case b.Executed():
				style = ", style=filled, fillcolor=\"palegreen\""
			case b.Kind() != segment.KindCode:
				style = ", style=dashed"
			}
			fmt.Fprintf(w, "    u%d_b%d [label=\"%s\"%s];\n", ui, bi, escapeDOT(label), style)
		}
		for bi, b := range blocks {
			succ := b.Successors()
			sort.Slice(succ, func(i, j int) bool { return succ[i] < succ[j] })
			for _, s := range succ {
				if j, ok := index[s]; ok {
					fmt.Fprintf(w, "    u%d_b%d -> u%d_b%d;\n", ui, bi, ui, j)
				}
			}
		}
		fmt.Fprintln(w, "  }")
	}
	fmt.Fprintln(w, "}")
	w.Flush()
	return buf.Bytes()
}

var dotEscaper = strings.NewReplacer(`"`, `\"`, "\n", `\n`)

func escapeDOT(s string) string { return dotEscaper.Replace(s) }
