package labels

import (
	"encoding/base32"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/estuary/data-plane-core/go/catalog"
)

// partitionValueEncoding is a base32 alphabet matching RFC 4648 without
// padding, used to escape partition field values that aren't already
// URL/path safe. Gazette journal names are restricted to a conservative
// character set, so arbitrary UTF-8 field values must be escaped before
// they're embedded into a partition journal name.
var partitionValueEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodePartitionValue renders a single partition field value as the string
// embedded in a journal name or label value. Values are tagged by a one
// character prefix so that decoding can recover the original Go type:
// "s" string, "i" signed integer, "u" unsigned integer, "b" boolean, "n" null.
func EncodePartitionValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "n"
	case bool:
		if v {
			return "btrue"
		}
		return "bfalse"
	case uint64:
		return "u" + strconv.FormatUint(v, 10)
	case int64:
		return "i" + strconv.FormatInt(v, 10)
	case int:
		return "i" + strconv.FormatInt(int64(v), 10)
	case string:
		if isPathSafe(v) {
			return "s" + v
		}
		return "S" + partitionValueEncoding.EncodeToString([]byte(v))
	default:
		panic(fmt.Sprintf("unsupported partition value type %T", value))
	}
}

// DecodePartitionValue is the inverse of EncodePartitionValue.
func DecodePartitionValue(encoded string) (interface{}, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("empty encoded partition value")
	}
	tag, rest := encoded[0], encoded[1:]
	switch tag {
	case 'n':
		return nil, nil
	case 'b':
		switch rest {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid encoded bool partition value %q", encoded)
	case 'u':
		v, err := strconv.ParseUint(rest, 10, 64)
		return v, err
	case 'i':
		v, err := strconv.ParseInt(rest, 10, 64)
		return v, err
	case 's':
		return rest, nil
	case 'S':
		b, err := partitionValueEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("decoding escaped partition value %q: %w", encoded, err)
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unknown partition value tag %q in %q", tag, encoded)
	}
}

func isPathSafe(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// EncodePartitionLabels projects the values of a collection's partitioned
// fields, keyed by field name, into the FieldPrefix-namespaced labels of a
// partition JournalSpec.
func EncodePartitionLabels(fields map[string]interface{}, set catalog.LabelSet) catalog.LabelSet {
	for field, value := range fields {
		set.SetValue(FieldPrefix+field, EncodePartitionValue(value))
	}
	return set
}

// DecodePartitionLabels extracts the partitioned field values previously
// encoded by EncodePartitionLabels, keyed by bare field name.
func DecodePartitionLabels(set catalog.LabelSet) (map[string]interface{}, error) {
	var out = make(map[string]interface{})
	for _, l := range set.Labels {
		if !strings.HasPrefix(l.Name, FieldPrefix) {
			continue
		}
		field := l.Name[len(FieldPrefix):]
		value, err := DecodePartitionValue(l.Value)
		if err != nil {
			return nil, fmt.Errorf("decoding partition field %q: %w", field, err)
		}
		out[field] = value
	}
	return out, nil
}

// PartitionSuffix builds the partition-selector suffix of a journal name:
// "{field}={value}/.../pivot={hex_key_begin}", with fields ordered
// lexicographically by name for a canonical encoding. keyBegin of
// catalog.RangeSpec's minimum (0) encodes as pivot=00, matching the
// teacher's convention for the initial, unsplit partition.
func PartitionSuffix(fields map[string]string, keyBegin uint32) string {
	var names = make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(fields[name])
		b.WriteByte('/')
	}
	b.WriteString("pivot=")
	if keyBegin == 0 {
		b.WriteString("00")
	} else {
		fmt.Fprintf(&b, "%08x", keyBegin)
	}
	return b.String()
}

// ShardSuffixOf returns the "{hex_key_begin}-{hex_rclock_begin}" shard id
// suffix for the given range, matching ShardSuffix but over a RangeSpec
// value directly rather than a LabelSet.
func ShardSuffixOf(r catalog.RangeSpec) string {
	return fmt.Sprintf("%08x-%08x", r.KeyBegin, r.RClockBegin)
}
