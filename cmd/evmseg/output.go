package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bnb-chain/evmseg/core/segment"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// printer writes segmentation results, one line per span.
type printer struct {
	w      *bufio.Writer
	legacy bool
	withID bool
}

func newPrinter(w io.Writer, legacy, withID bool) *printer {
	return &printer{w: bufio.NewWriter(w), legacy: legacy, withID: withID}
}

// emptySpans is printed for records without any bytes.
var emptySpans = []segment.Span{{Kind: segment.KindData}}

func (p *printer) print(id string, spans []segment.Span) error {
	for _, sp := range spans {
		if p.withID {
			fmt.Fprintf(p.w, "%s,", id)
		}
		fmt.Fprintf(p.w, "%s,%s,%q", hexutil.EncodeUint64(sp.Start), hexutil.EncodeUint64(sp.End), sp.Kind.String())
		if !p.legacy {
			fmt.Fprintf(p.w, ",%s", sp.OwnerHex())
		}
		if err := p.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) flush() error {
	return p.w.Flush()
}
