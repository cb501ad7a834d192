package combine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
)

// ChunkTargetSize is the raw (uncompressed) byte size a spill chunk grows
// to before it's compressed and flushed, mirroring spill.rs's
// CHUNK_TARGET_SIZE.
const ChunkTargetSize = 256 << 10

// SpillFile is the read/write/seek capability a spill file needs; an
// *os.File satisfies it, as does the in-memory memSpillFile the package's
// tests use.
type SpillFile interface {
	io.Reader
	io.Writer
	io.Seeker
}

// SpillWriter writes segments of sorted documents to a spill file and
// tracks each segment's byte range within it.
type SpillWriter struct {
	file   SpillFile
	ranges []segmentRange
}

type segmentRange struct {
	begin, end int64
}

func NewSpillWriter(file SpillFile) (*SpillWriter, error) {
	var cur, err = file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if cur != 0 {
		return nil, fmt.Errorf("combine: spill file must start at offset zero")
	}
	return &SpillWriter{file: file}, nil
}

// WriteSegment writes entries, already sorted in (binding, key) order, as
// one or more length-prefixed, s2-compressed chunks, and records the
// segment's byte range. Returns the number of bytes written.
func (w *SpillWriter) WriteSegment(entries []*entry, chunkTargetSize int) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	var begin, err = w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	var raw []byte
	var flush = func() error {
		if len(raw) == 0 {
			return nil
		}
		var compressed = s2.Encode(nil, raw)
		var header [8]byte
		binary.LittleEndian.PutUint32(header[0:4], uint32(len(compressed)))
		binary.LittleEndian.PutUint32(header[4:8], uint32(len(raw)))
		if _, err := w.file.Write(header[:]); err != nil {
			return err
		}
		if _, err := w.file.Write(compressed); err != nil {
			return err
		}
		raw = raw[:0]
		return nil
	}

	for i, e := range entries {
		docBytes, err := json.Marshal(e.doc)
		if err != nil {
			return 0, fmt.Errorf("combine: marshaling spilled document: %w", err)
		}
		var metaBytes = e.meta.bytes()
		raw = append(raw, metaBytes[:]...)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(docBytes)))
		raw = append(raw, lenBuf[:]...)
		raw = append(raw, docBytes...)

		if i != len(entries)-1 && len(raw) < chunkTargetSize {
			continue
		}
		if err := flush(); err != nil {
			return 0, err
		}
	}

	var end int64
	if end, err = w.file.Seek(0, io.SeekCurrent); err != nil {
		return 0, err
	}
	w.ranges = append(w.ranges, segmentRange{begin: begin, end: end})
	return end - begin, nil
}

// Ranges returns the byte ranges of every segment written so far, in
// write order — the input a SpillDrainer needs to begin draining.
func (w *SpillWriter) Ranges() []segmentRange { return append([]segmentRange(nil), w.ranges...) }
