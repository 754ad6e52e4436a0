package main

import (
	"io"
	"os"

	"github.com/bnb-chain/evmseg/core/segment"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// recordsPerWorker is the number of records read ahead for every worker.
const recordsPerWorker = 64

func openInput(ctx *cli.Context) (io.Reader, func() error, error) {
	file := ctx.String(inputFlag.Name)
	if file == "" {
		return ctx.App.Reader, func() error { return nil }, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open input")
	}
	return f, f.Close, nil
}

// readBatch reads up to n records. Malformed records are logged and skipped
// unless strict is set.
func readBatch(rr *recordReader, n int, strict bool) ([]*record, bool, error) {
	batch := make([]*record, 0, n)
	for len(batch) < n {
		rec, err := rr.Next()
		if err == io.EOF {
			return batch, true, nil
		}
		if err != nil {
			if strict {
				return nil, false, err
			}
			log.Warn("Skipping malformed record", "err", err)
			continue
		}
		batch = append(batch, rec)
	}
	return batch, false, nil
}

func segmentCode(seg *segment.Segmenter, code []byte) ([]segment.Span, error) {
	if len(code) == 0 {
		return emptySpans, nil
	}
	return seg.Segment(code)
}

// segmentRecords is the default action: it segments every input record and
// prints the spans in input order.
func segmentRecords(ctx *cli.Context) error {
	if ctx.NArg() > 0 {
		return errors.Errorf("unexpected arguments: %v", ctx.Args().Slice())
	}
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
		seg      = segment.New(cfg.Segment)
		out      = newPrinter(ctx.App.Writer, ctx.Bool(legacyFlag.Name), ctx.Bool(withIDFlag.Name))
		rr       = newRecordReader(in)
		strict   = ctx.Bool(strictFlag.Name)
		progress = ctx.Int(progressFlag.Name)
		workers  = ctx.Int(workersFlag.Name)
		total    int
	)
	if workers < 1 {
		workers = 1
	}
	for {
		batch, done, err := readBatch(rr, workers*recordsPerWorker, strict)
		if err != nil {
			return err
		}
		results := make([][]segment.Span, len(batch))

		var g errgroup.Group
		g.SetLimit(workers)
		for i, rec := range batch {
			i, rec := i, rec
			g.Go(func() error {
				if progress > 0 && rec.Index%progress == 0 {
					log.Info("Segmenting record", "index", rec.Index, "id", rec.ID)
				}
				spans, err := segmentCode(seg, rec.Code)
				if err != nil {
					return errors.Wrapf(err, "record %d", rec.Index)
				}
				results[i] = spans
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, rec := range batch {
			if err := out.print(rec.ID, results[i]); err != nil {
				return err
			}
		}
		total += len(batch)
		if done {
			break
		}
	}
	log.Debug("Segmented records", "count", total)
	return out.flush()
}
