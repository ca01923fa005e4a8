//go:build linux || darwin || freebsd || netbsd || openbsd

package source

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mmapSource serves reads from a read-only shared mapping of the image.
type mmapSource struct {
	f    *os.File
	data []byte
}

func mmapFile(f *os.File, size int64) (Source, error) {
	if int64(int(size)) != size {
		return nil, fmt.Errorf("image of %d bytes too large to map", size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// Extraction reads each file front to back.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return &mmapSource{f: f, data: data}, nil
}

func (m *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset")
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mmapSource) Size() int64 { return int64(len(m.data)) }

func (m *mmapSource) Close() error {
	err := unix.Munmap(m.data)
	m.data = nil
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
