package jfr

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// mapping owns the memory-mapped view of a JFR file and the handle it
// was mapped from.
//
// Grounded on saferwall/pe's file.go New: os.Open, then
// mmap.Map(f, mmap.RDONLY, 0), keeping both the mmap.MMap and the
// *os.File so Close can release both in the right order. Adopted from
// that repo rather than the teacher's io.ReaderAt-based perffile,
// since perf.data is read by a long-lived tool rather than randomly
// accessed the way spec §1/§6 requires for JFR.
type mapping struct {
	f    *os.File
	data mmap.MMap
}

func openMapping(path string) (*mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &mapping{f: f, data: data}, nil
}

func (m *mapping) Close() error {
	var err error
	if m.data != nil {
		err = m.data.Unmap()
		m.data = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
