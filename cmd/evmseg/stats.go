package main

import (
	"fmt"
	"io"

	"github.com/bnb-chain/evmseg/core/segment"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var statsCommand = &cli.Command{
	Action:    stats,
	Name:      "stats",
	Usage:     "Summarise the segmentation of all input records",
	ArgsUsage: "",
	Flags:     append([]cli.Flag{inputFlag, strictFlag}, segmentFlags...),
	Description: `
Segments every input record and prints the number of records, the bytes
classified as code, data and metadata and the number of analysed, skipped and
failed code units.`,
}

type segmentStats struct {
	records, empty         int
	bytes                  uint64
	kinds                  map[segment.Kind]uint64
	units, skipped, failed int
}

func (s *segmentStats) add(a *segment.Analysis) {
	for _, sp := range a.Spans {
		s.kinds[sp.Kind] += sp.Len()
		s.bytes += sp.Len()
	}
	s.units += len(a.Units)
	s.skipped += a.Skipped
	s.failed += a.Failed
}

func (s *segmentStats) render(w io.Writer) {
	share := func(n uint64) string {
		if s.bytes == 0 {
			return fmt.Sprintf("%d", n)
		}
		return fmt.Sprintf("%d (%.2f%%)", n, 100*float64(n)/float64(s.bytes))
	}
	data := [][]string{
		{"Records", fmt.Sprintf("%d", s.records)},
		{"Empty records", fmt.Sprintf("%d", s.empty)},
		{"Bytes", common.StorageSize(s.bytes).String()},
		{"Code bytes", share(s.kinds[segment.KindCode])},
		{"Data bytes", share(s.kinds[segment.KindData])},
		{"Metadata bytes", share(s.kinds[segment.KindMeta])},
		{"Code units", fmt.Sprintf("%d", s.units)},
		{"Skipped units", fmt.Sprintf("%d", s.skipped)},
		{"Failed units", fmt.Sprintf("%d", s.failed)},
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.AppendBulk(data)
	table.Render()
}

func stats(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	in, closeInput, err := openInput(ctx)
	if err != nil {
		return err
	}
	defer closeInput()

	var (
		seg    = segment.New(cfg.Segment)
		rr     = newRecordReader(in)
		strict = ctx.Bool(strictFlag.Name)
		st     = segmentStats{kinds: make(map[segment.Kind]uint64)}
	)
	for {
		batch, done, err := readBatch(rr, recordsPerWorker, strict)
		if err != nil {
			return err
		}
		for _, rec := range batch {
			st.records++
			if len(rec.Code) == 0 {
				st.empty++
				continue
			}
			a, err := seg.Analyze(rec.Code)
			if err != nil {
				log.Warn("Failed to segment record", "index", rec.Index, "err", err)
				continue
			}
			st.add(a)
		}
		if done {
			break
		}
	}
	st.render(ctx.App.Writer)
	return nil
}
