package labels

import (
	"fmt"
	"strconv"

	"github.com/estuary/data-plane-core/go/catalog"
)

// EncodeRange encodes the RangeSpec into the given LabelSet, which is then
// returned, ready to attach to a ShardSpec or partition JournalSpec.
func EncodeRange(r catalog.RangeSpec, set catalog.LabelSet) catalog.LabelSet {
	set = EncodeHexU32Label(KeyBegin, r.KeyBegin, set)
	set = EncodeHexU32Label(KeyEnd, r.KeyEnd, set)
	set = EncodeHexU32Label(RClockBegin, r.RClockBegin, set)
	set = EncodeHexU32Label(RClockEnd, r.RClockEnd, set)
	return set
}

// ParseRangeSpec extracts a RangeSpec from its associated labels, validating
// that key_begin <= key_end and rclock_begin <= rclock_end.
func ParseRangeSpec(set catalog.LabelSet) (catalog.RangeSpec, error) {
	kb, err := ParseHexU32Label(KeyBegin, set)
	if err != nil {
		return catalog.RangeSpec{}, err
	}
	ke, err := ParseHexU32Label(KeyEnd, set)
	if err != nil {
		return catalog.RangeSpec{}, err
	}
	cb, err := ParseHexU32Label(RClockBegin, set)
	if err != nil {
		return catalog.RangeSpec{}, err
	}
	ce, err := ParseHexU32Label(RClockEnd, set)
	if err != nil {
		return catalog.RangeSpec{}, err
	}
	var out = catalog.RangeSpec{KeyBegin: kb, KeyEnd: ke, RClockBegin: cb, RClockEnd: ce}
	return out, out.Validate()
}

// MustParseRangeSpec parses a RangeSpec from the labels, and panics on error.
func MustParseRangeSpec(set catalog.LabelSet) catalog.RangeSpec {
	s, err := ParseRangeSpec(set)
	if err != nil {
		panic(err)
	}
	return s
}

// EncodeHexU32Label encodes |value| as an 8-character hex string under |name|.
func EncodeHexU32Label(name string, value uint32, set catalog.LabelSet) catalog.LabelSet {
	set.SetValue(name, fmt.Sprintf("%08x", value))
	return set
}

// ParseHexU32Label parses label |name|, an 8-character hex-encoded uint32.
func ParseHexU32Label(name string, set catalog.LabelSet) (uint32, error) {
	l, err := ExpectOne(set, name)
	if err != nil {
		return 0, err
	}
	if len(l) != 8 {
		return 0, fmt.Errorf("expected %s to be a 4-byte, hex encoded integer; got %v", name, l)
	}
	b, err := strconv.ParseUint(l, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("decoding hex-encoded label %s: %w", name, err)
	}
	return uint32(b), nil
}

// ExpectOne extracts label |name| from |set|, requiring exactly one
// non-empty value.
func ExpectOne(set catalog.LabelSet, name string) (string, error) {
	v := set.ValuesOf(name)
	if len(v) != 1 {
		return "", fmt.Errorf("expected one label for %q (got %v)", name, v)
	} else if len(v[0]) == 0 {
		return "", fmt.Errorf("label %q value is empty but shouldn't be", name)
	}
	return v[0], nil
}

// MaybeOne extracts at most one value of label |name|, returning "" if absent.
func MaybeOne(set catalog.LabelSet, name string) (string, error) {
	v := set.ValuesOf(name)
	if len(v) > 1 {
		return "", fmt.Errorf("expected one label for %q (got %v)", name, v)
	} else if len(v) == 0 {
		return "", nil
	} else if len(v[0]) == 0 {
		return "", fmt.Errorf("label %q value is empty but shouldn't be", name)
	}
	return v[0], nil
}
