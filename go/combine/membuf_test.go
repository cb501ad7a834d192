package combine

import "io"

// memSpillFile is a minimal in-memory SpillFile, standing in for a real
// spill temp file in tests.
type memSpillFile struct {
	buf []byte
	off int64
}

func (f *memSpillFile) Write(p []byte) (int, error) {
	var end = f.off + int64(len(p))
	if end > int64(len(f.buf)) {
		var grown = make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.off:end], p)
	f.off = end
	return len(p), nil
}

func (f *memSpillFile) Read(p []byte) (int, error) {
	if f.off >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	var n = copy(p, f.buf[f.off:])
	f.off += int64(n)
	return n, nil
}

func (f *memSpillFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.off
	case io.SeekEnd:
		base = int64(len(f.buf))
	}
	f.off = base + offset
	return f.off, nil
}
