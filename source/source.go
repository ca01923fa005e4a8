// Package source opens disk images as read-only random-access byte sources.
package source

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// Source is a random-access image of known length.
type Source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Options controls how an image is opened.
type Options struct {
	Mmap       bool          // Map the image read-only when the platform allows it
	Serial     bool          // Allow only one physical read at a time
	Retries    int           // Extra attempts after a failed physical read
	RetryDelay time.Duration // Pause before the first retry, doubled each time
}

// Open opens the image at path read-only. Block and character devices
// are accepted; their size is found by seeking to the end.
func Open(path string, opts Options) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}

	size, err := imageSize(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	var src Source = &fileSource{f: file, size: size}
	if opts.Mmap && size > 0 {
		m, err := mmapFile(file, size)
		if err == nil {
			src = m
		} else {
			logger.Debug("mmap %s: %v, reading with pread", path, err)
		}
	}

	if !opts.Serial && opts.Retries <= 0 {
		return src, nil
	}
	var r io.ReaderAt = src
	if opts.Serial {
		r = Serialize(r)
	}
	return &closer{ReaderAt: WithRetry(r, opts.Retries, opts.RetryDelay), Closer: src, size: size}, nil
}

func imageSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat image: %w", err)
	}
	if info.Mode().IsRegular() {
		return info.Size(), nil
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("sizing image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("sizing image: %w", err)
	}
	return size, nil
}

// fileSource reads with pread. *os.File.ReadAt is safe for concurrent use.
type fileSource struct {
	f    *os.File
	size int64
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Size() int64                             { return s.size }
func (s *fileSource) Close() error                            { return s.f.Close() }

// closer pairs a wrapped reader with the Source it wraps.
type closer struct {
	io.ReaderAt
	io.Closer
	size int64
}

func (c *closer) Size() int64 { return c.size }
