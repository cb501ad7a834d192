package combine

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/estuary/data-plane-core/go/reduce"
	"github.com/estuary/data-plane-core/go/schema"
)

// BumpThreshold bounds how many bytes of accumulated (estimated) document
// size a MemTable holds before the caller should spill it, named for the
// upstream bump-allocator arena threshold it stands in for.
const BumpThreshold = 8 << 20

// MemTable accumulates combiner operands in memory, reducing documents
// that share a (binding, key) as they arrive so the table never holds
// more than one entry per key. Adapted from the HeapEntry/MemTable
// described alongside SpillWriter in spill.rs: upstream backs the table
// with a bump arena and spills when the arena crosses BUMP_THRESHOLD;
// this port tracks an approximate byte count via each document's
// marshaled JSON length instead, since Go documents aren't arena
// allocated.
type MemTable struct {
	bindings []Binding
	entries  map[tableKey]*entry
	bytes    int
}

type tableKey struct {
	binding int
	key     string
}

func NewMemTable(bindings []Binding) *MemTable {
	return &MemTable{bindings: bindings, entries: make(map[tableKey]*entry)}
}

// Bytes reports the MemTable's approximate accumulated size.
func (t *MemTable) Bytes() int { return t.bytes }

// Len reports the number of distinct (binding, key) groups held.
func (t *MemTable) Len() int { return len(t.entries) }

// Add reduces doc into the table's existing entry for its (binding, key),
// if any, as a full or an associative-only reduction according to the
// binding's Full setting. front marks the entry as a front
// (previously-drained) document; it does not change the reduction.
func (t *MemTable) Add(binding int, doc interface{}, front bool) error {
	if binding < 0 || binding >= len(t.bindings) {
		return fmt.Errorf("combine: binding %d out of range", binding)
	}
	var b = t.bindings[binding]
	var key = b.KeyExtractor(doc)
	var tk = tableKey{binding: binding, key: encodeKey(key)}

	var result *schema.Result
	var err error
	if b.Schema != nil {
		result, err = schema.Validate(b.Schema, doc)
		if err != nil {
			return err
		}
		if !result.Valid() {
			return fmt.Errorf("combine: %s: validation failed: %v", b.Name, result.Errors)
		}
	}

	var existing, hasExisting = t.entries[tk]
	if !hasExisting {
		t.entries[tk] = &entry{meta: Meta{Binding: binding, Front: front}, key: key, doc: doc}
		t.bytes += estimateSize(doc)
		return nil
	}

	var locate reduce.Locate
	if result != nil {
		locate = result.Locate()
	}
	var reduced, rerr = reduce.Reduce(true, existing.doc, doc, locate, b.Full)
	if rerr != nil {
		if _, ok := rerr.(reduce.NotAssociative); ok {
			existing.meta.NotAssociative = true
			return nil
		}
		return rerr
	}
	t.bytes += estimateSize(reduced) - estimateSize(existing.doc)
	existing.doc = reduced
	existing.meta.Front = existing.meta.Front || front
	return nil
}

// Sorted returns the table's entries ordered by (binding, key), the order
// spilled segments and drained output both require.
func (t *MemTable) Sorted() []*entry {
	var out = make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Reset clears the table for reuse after a spill.
func (t *MemTable) Reset() {
	t.entries = make(map[tableKey]*entry)
	t.bytes = 0
}

func estimateSize(doc interface{}) int {
	enc, err := json.Marshal(doc)
	if err != nil {
		return 0
	}
	return len(enc)
}

func encodeKey(key []interface{}) string {
	enc, _ := json.Marshal(key)
	return string(enc)
}

func sortEntries(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].meta.Binding != entries[j].meta.Binding {
			return entries[i].meta.Binding < entries[j].meta.Binding
		}
		return compareKeys(entries[i].key, entries[j].key) < 0
	})
}
