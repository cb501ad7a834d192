package subscriber

// PackedStrings is a compact, append-only store of strictly ascending
// strings, delta-encoded against their predecessor: only the suffix that
// differs from the previous entry is retained, with all suffixes packed
// into one contiguous buffer. Journal listings routinely reach millions
// of entries with long shared path prefixes, where this cuts storage and
// allocation by an order of magnitude over a []string.
//
// Adapted from original_source's crates/gazette/src/journal/list/
// subscriber.rs's PackedStrings.
type PackedStrings struct {
	data    []byte
	entries []packedEntry
}

type packedEntry struct {
	prefixLen uint32
	suffixEnd uint32
}

// Len reports the number of strings stored.
func (p *PackedStrings) Len() int { return len(p.entries) }

// Encode appends s, delta-encoded against tail (the most recently encoded
// string, or "" initially), and updates tail to s for the next call.
func (p *PackedStrings) Encode(s string, tail *string) {
	var prefixLen = commonPrefixLen(s, *tail)
	var suffix = s[prefixLen:]
	p.data = append(p.data, suffix...)
	p.entries = append(p.entries, packedEntry{
		prefixLen: uint32(prefixLen),
		suffixEnd: uint32(len(p.data)),
	})
	*tail = s
}

// Decode reconstructs the string at index into tail. Sequential decoding
// (index, index+1, ...) is the intended usage, but re-decoding the same
// index repeatedly is also safe and always yields the same result.
func (p *PackedStrings) Decode(index int, tail *string) {
	var e = p.entries[index]
	var suffixStart uint32
	if index > 0 {
		suffixStart = p.entries[index-1].suffixEnd
	}
	var suffix = string(p.data[suffixStart:e.suffixEnd])
	*tail = (*tail)[:e.prefixLen] + suffix
}

func commonPrefixLen(a, b string) int {
	var n = len(a)
	if len(b) < n {
		n = len(b)
	}
	var i int
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
