package segment

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Kind classifies a byte range.
type Kind uint8

const (
	KindCode Kind = iota
	KindData
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindData:
		return "data"
	case KindMeta:
		return "meta"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Span is a half-open byte range [Start, End) of the analysed buffer. Owner
// is the base offset of the code unit that claimed a code span; it is only
// meaningful when Owned is set.
type Span struct {
	Start, End uint64
	Kind       Kind
	Owner      uint64
	Owned      bool
}

// Len returns the number of bytes covered.
func (s Span) Len() uint64 { return s.End - s.Start }

// Contains reports whether pc lies within the span.
func (s Span) Contains(pc uint64) bool {
	return s.Start <= pc && pc < s.End
}

// OwnerHex renders the owner as hex, or "None" for unowned spans.
func (s Span) OwnerHex() string {
	if !s.Owned {
		return "None"
	}
	return hexutil.EncodeUint64(s.Owner)
}

func (s Span) String() string {
	return fmt.Sprintf("%s,%s,%q,%s", hexutil.EncodeUint64(s.Start), hexutil.EncodeUint64(s.End), s.Kind.String(), s.OwnerHex())
}
