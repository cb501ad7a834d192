package combine

import (
	"container/heap"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/estuary/data-plane-core/go/reduce"
	"github.com/estuary/data-plane-core/go/schema"
	"github.com/klauspost/compress/s2"
)

// segment tracks one spill segment's remaining byte range and the
// decoded-but-not-yet-consumed chunk at its read head, used to drive the
// heap-merge in SpillDrainer. Adapted from spill.rs's Segment/pop_head.
type segment struct {
	file       SpillFile
	offset     int64 // next unread byte of this segment within file.
	end        int64
	order      int // index of this segment's range, in spill order.
	chunk      []byte // remaining raw bytes of the current decompressed chunk.
	head       entry
	hasHead    bool
}

func openSegment(file SpillFile, r segmentRange) (*segment, error) {
	var s = &segment{file: file, offset: r.begin, end: r.end}
	if err := s.advance(); err != nil {
		return nil, err
	}
	return s, nil
}

// advance loads the next entry into s.head, reading and decompressing a
// new chunk from the spill file when the current one is exhausted.
func (s *segment) advance() error {
	for len(s.chunk) == 0 {
		if s.offset >= s.end {
			s.hasHead = false
			return nil
		}
		if _, err := s.file.Seek(s.offset, io.SeekStart); err != nil {
			return err
		}
		var header [8]byte
		if _, err := io.ReadFull(s.file, header[:]); err != nil {
			return fmt.Errorf("combine: corrupt segment: reading chunk header: %w", err)
		}
		var compressedLen = binary.LittleEndian.Uint32(header[0:4])
		var rawLen = binary.LittleEndian.Uint32(header[4:8])
		var compressed = make([]byte, compressedLen)
		if _, err := io.ReadFull(s.file, compressed); err != nil {
			return fmt.Errorf("combine: corrupt segment: reading chunk body: %w", err)
		}
		s.offset += int64(len(header)) + int64(compressedLen)
		raw, err := s2.Decode(nil, compressed)
		if err != nil {
			return fmt.Errorf("combine: corrupt segment: decompressing chunk: %w", err)
		}
		if uint32(len(raw)) != rawLen {
			return fmt.Errorf("combine: corrupt segment: decompressed size mismatch: got %d want %d",
				len(raw), rawLen)
		}
		s.chunk = raw
	}

	var metaBytes [6]byte
	copy(metaBytes[:], s.chunk[0:6])
	var meta = metaFromBytes(metaBytes)
	var docLen = binary.LittleEndian.Uint32(s.chunk[6:10])
	var docBytes = s.chunk[10 : 10+docLen]
	s.chunk = s.chunk[10+docLen:]

	var doc interface{}
	if err := json.Unmarshal(docBytes, &doc); err != nil {
		return fmt.Errorf("combine: corrupt segment: decoding document: %w", err)
	}
	s.head = entry{meta: meta}
	s.head.doc = doc
	s.hasHead = true
	return nil
}

// segmentHeap orders segments by their head entry's (binding, key),
// ties broken by insertion order (front segments drain before later
// spills of the same key, matching the upstream !front/spill_order tie
// break).
type segmentHeap struct {
	segments []*segment
	keys     [][]interface{}
	order    int
}

func (h *segmentHeap) Len() int { return len(h.segments) }
func (h *segmentHeap) Less(i, j int) bool {
	var a, b = h.segments[i].head, h.segments[j].head
	if a.meta.Binding != b.meta.Binding {
		return a.meta.Binding < b.meta.Binding
	}
	if c := compareKeys(h.keys[i], h.keys[j]); c != 0 {
		return c < 0
	}
	if a.meta.Front != b.meta.Front {
		return a.meta.Front
	}
	return h.segments[i].order < h.segments[j].order
}
func (h *segmentHeap) Swap(i, j int) {
	h.segments[i], h.segments[j] = h.segments[j], h.segments[i]
	h.keys[i], h.keys[j] = h.keys[j], h.keys[i]
}
func (h *segmentHeap) Push(x interface{}) {
	h.segments = append(h.segments, x.(*segment))
	h.keys = append(h.keys, nil)
}
func (h *segmentHeap) Pop() interface{} {
	var n = len(h.segments)
	var s = h.segments[n-1]
	h.segments = h.segments[:n-1]
	h.keys = h.keys[:n-1]
	return s
}

// SpillDrainer drains documents across all segments of a spill file in
// ascending (binding, key) order. For a Full binding, the entries of a
// group are reduced into one document (a reduction returning
// reduce.NotAssociative ends that document early); for a non-full
// binding, each spilled entry is yielded as its own document.
type SpillDrainer struct {
	bindings []Binding
	heap     segmentHeap
	keyOf    func(binding int, doc interface{}) []interface{}
}

// NewSpillDrainer opens every written segment range for draining.
func NewSpillDrainer(file SpillFile, ranges []segmentRange, bindings []Binding) (*SpillDrainer, error) {
	var d = &SpillDrainer{bindings: bindings}
	d.keyOf = func(binding int, doc interface{}) []interface{} {
		return bindings[binding].KeyExtractor(doc)
	}
	for i, r := range ranges {
		seg, err := openSegment(file, r)
		if err != nil {
			return nil, err
		}
		seg.order = i
		if seg.hasHead {
			d.pushSegment(seg)
		}
	}
	heap.Init(&d.heap)
	return d, nil
}

func (d *SpillDrainer) pushSegment(seg *segment) {
	d.heap.segments = append(d.heap.segments, seg)
	d.heap.keys = append(d.heap.keys, d.keyOf(seg.head.meta.Binding, seg.head.doc))
	heap.Fix(&d.heap, len(d.heap.segments)-1)
}

// popAndAdvance removes the heap's current root, reads its next entry,
// and re-pushes it if more entries remain.
func (d *SpillDrainer) popAndAdvance() (*segment, entry, error) {
	var seg = heap.Pop(&d.heap).(*segment)
	var e = seg.head
	if err := seg.advance(); err != nil {
		return nil, entry{}, err
	}
	if seg.hasHead {
		d.pushSegment(seg)
	}
	return seg, e, nil
}

// DrainNext returns the next combined document, or (nil, false, nil) once
// every segment is exhausted.
func (d *SpillDrainer) DrainNext() (*DrainedDoc, bool, error) {
	if d.heap.Len() == 0 {
		return nil, false, nil
	}
	var _, head, err = d.popAndAdvance()
	if err != nil {
		return nil, false, err
	}

	var binding = d.bindings[head.meta.Binding]
	var reducedDoc = head.doc
	var notAssociative = head.meta.NotAssociative
	var inGroup = false

	for d.heap.Len() > 0 {
		var next = d.heap.segments[0]
		var sameGroup = next.head.meta.Binding == head.meta.Binding &&
			compareKeys(d.keyOf(head.meta.Binding, reducedDoc), next.head.key(d)) == 0
		if !sameGroup {
			break
		}
		if !binding.Full && (!inGroup || notAssociative) {
			inGroup = true
			break
		}

		var result *schema.Result
		if binding.Schema != nil {
			var r, verr = schema.Validate(binding.Schema, next.head.doc)
			if verr != nil {
				return nil, false, verr
			}
			if !r.Valid() {
				return nil, false, fmt.Errorf("combine: %s: validation failed: %v", binding.Name, r.Errors)
			}
			result = r
		}
		var locate reduce.Locate
		if result != nil {
			locate = result.Locate()
		}

		var reduced, rerr = reduce.Reduce(true, reducedDoc, next.head.doc, locate, binding.Full)
		if rerr != nil {
			if _, ok := rerr.(reduce.NotAssociative); ok {
				// The operand stays at its segment's head, to be drained
				// by the next call.
				notAssociative = true
				break
			}
			return nil, false, rerr
		}
		if _, _, aerr := d.popAndAdvance(); aerr != nil {
			return nil, false, aerr
		}
		reducedDoc = reduced
		inGroup = true
	}

	if binding.Schema != nil {
		var r, verr = schema.Validate(binding.Schema, reducedDoc)
		if verr != nil {
			return nil, false, verr
		}
		if !r.Valid() {
			return nil, false, fmt.Errorf("combine: %s: validation failed: %v", binding.Name, r.Errors)
		}
	}

	return &DrainedDoc{Binding: head.meta.Binding, Full: binding.Full, Doc: reducedDoc}, true, nil
}

func (e entry) key(d *SpillDrainer) []interface{} {
	return d.keyOf(e.meta.Binding, e.doc)
}
