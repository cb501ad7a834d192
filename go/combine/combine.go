// Package combine implements the spill-sorted combiner (module 4.4): an
// external-sort combiner that accepts unordered operand documents per
// binding and key, reduces them through the reduce/schema packages with
// bounded memory, spilling sorted segments to disk once an in-memory
// table grows past a threshold, and heap-merging those segments on drain.
//
// Adapted from original_source's crates/doc/src/combine/{mod,spill}.rs,
// with the Go-side API shape (Configure/ReduceLeft/CombineRight/Drain,
// a binding-indexed Spec) drawn from the teacher's go/flow/combine.go and
// go/bindings/combine.go, which front a CGo-bound combiner service; this
// package reimplements the combiner natively in Go rather than bind to
// that service, since CORE does not retrieve or build the Rust bindings
// crate. Segment chunks are compressed with klauspost/compress/s2 (an
// indirect dependency of the teacher's own go.sum, pulled in for
// broker/journal fragment compression) rather than LZ4, since no LZ4
// package is grounded anywhere in the retrieved example corpus; the
// chunk framing (8-byte header + compressed block) otherwise matches
// spill.rs exactly. Key bucketing reuses go/flow/mapping.go's
// HighwayHash-based packed-key hash.
package combine

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/estuary/data-plane-core/go/ptr"
	"github.com/estuary/data-plane-core/go/schema"
	"github.com/minio/highwayhash"
)

// ErrNotAssociative describes a reduction that requires left-hand context
// not available in the current pass. Nothing in this package returns it:
// MemTable.Add and SpillDrainer.DrainNext detect that case through
// reduce.NotAssociative.
var ErrNotAssociative = fmt.Errorf("combine: reduction is not associative without left-hand context")

// Extractor pulls a comparable key from a decoded document, used both to
// group operands for reduction and to order spilled entries.
type Extractor func(doc interface{}) []interface{}

// PointerExtractor builds an Extractor from JSON Pointer strings.
func PointerExtractor(pointers []string) (Extractor, error) {
	for _, p := range pointers {
		if _, err := ptr.New(p); err != nil {
			return nil, fmt.Errorf("key pointer %q: %w", p, err)
		}
	}
	return func(doc interface{}) []interface{} {
		var out = make([]interface{}, len(pointers))
		for i, p := range pointers {
			if v, err := ptr.Query(doc, p); err == nil {
				out[i] = v
			}
		}
		return out
	}, nil
}

// Binding configures one combiner binding: its schema (for validation and
// `reduce` annotation lookup), key extraction, and whether its reductions
// are full (associative folding is always valid) or incremental (an
// explicit left-hand document, when one exists, must lead the fold).
type Binding struct {
	Name      string
	Schema    *schema.Schema
	KeyExtractor Extractor
	Full      bool
}

// Meta carries a spilled entry's bookkeeping: which binding it belongs
// to, whether it's a "front" (already-reduced, previously-drained)
// document, and whether the drainer discovered it cannot be reduced
// further without left-hand context.
type Meta struct {
	Binding       int
	Front         bool
	NotAssociative bool
}

func (m Meta) bytes() [6]byte {
	var b [6]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(m.Binding))
	if m.Front {
		b[4] = 1
	}
	if m.NotAssociative {
		b[5] = 1
	}
	return b
}

func metaFromBytes(b [6]byte) Meta {
	return Meta{
		Binding:       int(binary.LittleEndian.Uint32(b[0:4])),
		Front:         b[4] != 0,
		NotAssociative: b[5] != 0,
	}
}

// entry is a single document awaiting reduction, along with the
// comparable key extracted from it.
type entry struct {
	meta Meta
	key  []interface{}
	doc  interface{}
}

// DrainedDoc is one fully-combined document handed back by Drain.
type DrainedDoc struct {
	Binding int
	Full    bool
	Doc     interface{}
}

func compareKeys(a, b []interface{}) int {
	var n = len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := valueCmp(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// valueCmp orders two JSON values: null < false < true < numbers <
// strings < arrays < objects, matching the natural ordering reduce's
// Minimize/Maximize/key-ordered Merge strategies use. Key comparison
// needs the same ordering but reduce doesn't export it, so it's
// reimplemented here directly rather than laundered through a Strategy.
func valueCmp(a, b interface{}) int {
	var ar, br = valueRank(a), valueRank(b)
	if ar != br {
		if ar < br {
			return -1
		}
		return 1
	}
	switch v := a.(type) {
	case nil:
		return 0
	case bool:
		var bv = b.(bool)
		switch {
		case v == bv:
			return 0
		case !v:
			return -1
		default:
			return 1
		}
	case float64:
		var bv = b.(float64)
		switch {
		case v < bv:
			return -1
		case v > bv:
			return 1
		default:
			return 0
		}
	case string:
		var bv = b.(string)
		switch {
		case v < bv:
			return -1
		case v > bv:
			return 1
		default:
			return 0
		}
	default:
		// Arrays/objects as key components are rare; fall back to a
		// serialization compare, which is stable if not cheap.
		var av, _ = json.Marshal(a)
		var bv, _ = json.Marshal(b)
		switch {
		case string(av) < string(bv):
			return -1
		case string(av) > string(bv):
			return 1
		default:
			return 0
		}
	}
}

// bucketHashKey is a fixed 32-byte HighwayHash key, the same value the
// upstream mapping package uses for packed-key hashing; a combiner running
// across many worker goroutines buckets keys by this hash so work on a
// given key always lands on the same MemTable shard.
var bucketHashKey, _ = hex.DecodeString("ba737e89155238d47d8067c35aad4d25ecdd1c3488227e011ffa480c022bd3ba")

// KeyBucket hashes an encoded key into one of numBuckets shards, using the
// top 32 bits of a HighwayHash digest exactly as go/flow/mapping.go's
// PackedKeyHash_HH64 does for shuffled reads.
func KeyBucket(encodedKey []byte, numBuckets int) int {
	if numBuckets <= 1 {
		return 0
	}
	var h = uint32(highwayhash.Sum64(encodedKey, bucketHashKey) >> 32)
	return int(h % uint32(numBuckets))
}

func valueRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []interface{}:
		return 4
	case map[string]interface{}:
		return 5
	default:
		return 6
	}
}
