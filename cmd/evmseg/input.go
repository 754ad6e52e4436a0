package main

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// headerID marks the header row of an input file.
const headerID = "codeid"

// record is one input line: an opaque id, the contract address and its code.
type record struct {
	Index   int
	ID      string
	Address string
	Code    []byte
}

// recordReader turns CSV lines into records. Lines are numbered from zero,
// header included.
type recordReader struct {
	r     *csv.Reader
	index int
}

func newRecordReader(r io.Reader) *recordReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &recordReader{r: cr, index: -1}
}

// Next returns the next record. A malformed line is reported with its index
// and does not stop the reader; io.EOF is returned at the end of input.
func (rr *recordReader) Next() (*record, error) {
	for {
		fields, err := rr.r.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		rr.index++
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", rr.index)
		}
		if len(fields) > 0 && fields[0] == headerID {
			continue
		}
		if len(fields) < 3 {
			return nil, errors.Errorf("record %d: expected 3 fields, got %d", rr.index, len(fields))
		}
		code, err := decodeHexString(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", rr.index)
		}
		return &record{Index: rr.index, ID: fields[0], Address: fields[1], Code: code}, nil
	}
}

// decodeHexString accepts hex with an optional 0x prefix and any whitespace
// between digits.
func decodeHexString(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.Join(strings.Fields(s), ""), "0x")
	if len(s)%2 != 0 {
		return nil, errors.Errorf("odd hex length %d", len(s))
	}
	code, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex")
	}
	return code, nil
}
