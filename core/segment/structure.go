package segment

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/fxamacker/cbor/v2"
)

// metadataWindow is how far before a marker the start of the encoded
// metadata map is searched for.
const metadataWindow = 50

// Compiler signatures marking the start of a code unit. The patterns run over
// a one-rune-per-byte view of the code, so \xNN matches the raw byte NN.
var (
	pushPop      = `(?:` + pushAlternatives() + `)\x50`
	contractOld  = `\x60\x60\x60\x40(?:\x81\x90|\x90\x81)?\x52`
	contractNew  = `\x60\x80\x60\x40(?:\x81\x90|\x90\x81)?\x52`
	contractNew2 = `(?<=\x56[\x00\xfe])\x60.\x60\x40`
	libraryCheck = `\x73.{20}\x30\x14`

	solidityStart = `(?:` + pushPop + `|` + libraryCheck + `)?(?:` + contractOld + `|` + contractNew + `)|` + contractNew2

	// DUP1 PUSH1 . PUSH1 00 CODECOPY PUSH1 00 RETURN STOP (PUSH1 00 CALLDATALOAD | CALLDATASIZE)
	deployment1 = `(?<=\x80\x60.\x60\x00\x39\x60\x00\xf3\x00)(?:\x60\x00\x35|\x36)`
	// DUP1 PUSH2 .. PUSH1 00 CODECOPY PUSH1 00 RETURN STOP (PUSH1 00 CALLDATALOAD | 0xe6)
	deployment2 = `(?<=\x80\x61..\x60\x00\x39\x60\x00\xf3\x00)(?:\x60\x00\x35|\xe6)`
	// DUP1 PUSH2 .. PUSH1 00 CODECOPY PUSH2 .. JUMP | PUSH1 00 PUSH2 .. MSTORE8
	deployment3 = `(?<=\x80\x61..\x60\x00\x39\x61..\x56)\x60\x00\x61..\x53`
	// JUMP | PUSH1 00 CALLDATALOAD
	deployment4 = `(?<=\x56)\x60\x00\x35`
	// DUP1 PUSH1 . PUSH1 00 CODECOPY PUSH1 00 RETURN | PUSH1
	deployment5 = `(?<=\x80\x60.\x60\x00\x39\x60\x00\xf3)\x60`

	codeStartRE = regexp2.MustCompile(strings.Join([]string{
		solidityStart, deployment1, deployment2, deployment3, deployment4, deployment5,
	}, "|"), regexp2.Singleline)

	// Hash scheme keys solc writes into the metadata map.
	markerRE = regexp2.MustCompile(`bzzr0|bzzr1|ipfs`, regexp2.None)
)

// pushAlternatives renders PUSH1..PUSH32 with their immediates.
func pushAlternatives() string {
	alts := make([]string, 32)
	for n := 1; n <= 32; n++ {
		alts[n-1] = fmt.Sprintf(`\x%02x.{%d}`, 0x5f+n, n)
	}
	return strings.Join(alts, "|")
}

// byteRunes maps every byte to the rune of the same value, so that rune
// indices equal byte offsets.
func byteRunes(code []byte) []rune {
	runes := make([]rune, len(code))
	for i, b := range code {
		runes[i] = rune(b)
	}
	return runes
}

// matchMetadata checks whether code starts with a CBOR map containing key,
// directly followed by a big-endian uint16 holding the map's encoded length.
// It returns the length of map plus length field, or 0.
func matchMetadata(code []byte, key string) int {
	var fields map[string]cbor.RawMessage
	rest, err := cbor.UnmarshalFirst(code, &fields)
	if err != nil || len(rest) < 2 {
		return 0
	}
	size := int(binary.BigEndian.Uint16(rest[:2]))
	if len(code) != size+len(rest) {
		return 0
	}
	if _, ok := fields[key]; !ok {
		return 0
	}
	return size + 2
}

// SearchMetadata locates compiler metadata trailers and splits code into
// alternating code and metadata runs, in address order.
func SearchMetadata(code []byte) []Span {
	var (
		parts     []Span
		codeStart int
		runes     = byteRunes(code)
		m, _      = markerRE.FindRunesMatch(runes)
	)
	for m != nil {
		marker := m.String()
		source := m.Index

		metaStart, metaLen := source, 0
		lowest := source - metadataWindow
		if lowest < 0 {
			lowest = 0
		}
		for j := source - 2; j >= lowest; j-- {
			if n := matchMetadata(code[j:], marker); n > 0 {
				metaStart, metaLen = j, n
				break
			}
		}
		next := source + 1
		if metaEnd := metaStart + metaLen; metaEnd > source {
			if metaStart > codeStart {
				parts = append(parts, Span{Start: uint64(codeStart), End: uint64(metaStart), Kind: KindCode})
			}
			parts = append(parts, Span{Start: uint64(metaStart), End: uint64(metaEnd), Kind: KindMeta})
			codeStart, next = metaEnd, metaEnd
		}
		if next >= len(runes) {
			break
		}
		m, _ = markerRE.FindRunesMatchStartingAt(runes, next)
	}
	if codeStart < len(code) {
		parts = append(parts, Span{Start: uint64(codeStart), End: uint64(len(code)), Kind: KindCode})
	}
	return parts
}

// splitCode cuts code[start:end] at every signature match. The returned
// ranges are contiguous; the first one may be empty when a signature matches
// right at start.
func splitCode(runes []rune, start, end int) [][2]int {
	var (
		parts [][2]int
		from  = start
	)
	m, _ := codeStartRE.FindRunesMatch(runes[start:end])
	for m != nil {
		at := start + m.Index
		parts = append(parts, [2]int{from, at})
		from = at
		m, _ = codeStartRE.FindNextMatch(m)
	}
	if from < end {
		parts = append(parts, [2]int{from, end})
	}
	return parts
}

// Decompose partitions code into metadata spans and code candidates. The
// leading piece of a run that precedes the first signature match is code when
// the run starts before any metadata, and data otherwise.
func Decompose(code []byte) []Span {
	var (
		parts   []Span
		preMeta = true
		runes   = byteRunes(code)
	)
	for _, p := range SearchMetadata(code) {
		if p.Kind == KindMeta {
			parts = append(parts, p)
			preMeta = false
			continue
		}
		pieces := splitCode(runes, int(p.Start), int(p.End))
		for i, piece := range pieces {
			if piece[0] == piece[1] {
				continue
			}
			kind := KindCode
			if i == 0 && !preMeta {
				kind = KindData
			}
			parts = append(parts, Span{Start: uint64(piece[0]), End: uint64(piece[1]), Kind: kind})
		}
	}
	return parts
}
