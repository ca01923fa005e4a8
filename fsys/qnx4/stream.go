package qnx4

import (
	"context"
	"io"
)

// maxRunBlocks bounds a single physical read of a stream.
const maxRunBlocks = 128

// Stream reads a file's bytes by concatenating its extents in order.
// It reads whole blocks and drops the padding after the last byte.
type Stream struct {
	ctx     context.Context
	blocks  blockReader
	extents []Extent
	size    int64

	off  int64  // bytes handed out so far
	ext  int    // current extent
	skip uint32 // blocks of the current extent already read
	buf  []byte // unread part of the last run
	run  []byte
}

// OpenFile resolves ino's extents and returns a stream of exactly
// ino.Size bytes. Every call returns an independent stream.
//
// If the extent chain is truncated the stream covers the bytes that
// could be located and the *TruncatedChainError is returned with it,
// so the caller may keep a partial file. ctx is checked before every
// physical read.
func (f *FS) OpenFile(ctx context.Context, ino *Inode) (*Stream, error) {
	extents, err := f.ResolveExtents(ino)
	if err != nil && !Partial(err) {
		return nil, err
	}
	var avail int64
	for _, e := range extents {
		avail += int64(e.Length) * BlockSize
	}
	size := int64(ino.Size)
	if avail < size {
		size = avail
	}
	return &Stream{
		ctx:     ctx,
		blocks:  f.blocks,
		extents: extents,
		size:    size,
	}, err
}

// Size returns the number of bytes the stream yields in total.
func (s *Stream) Size() int64 { return s.size }

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if s.off >= s.size {
		return 0, io.EOF
	}
	if len(s.buf) == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	s.off += int64(n)
	return n, nil
}

// WriteTo implements io.WriterTo so io.Copy skips an intermediate buffer.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for s.off < s.size {
		if len(s.buf) == 0 {
			if err := s.fill(); err != nil {
				return total, err
			}
		}
		n, err := w.Write(s.buf)
		total += int64(n)
		s.off += int64(n)
		s.buf = s.buf[n:]
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// fill reads the next run of contiguous blocks, at most maxRunBlocks
// long, and trims it to the bytes left in the file.
func (s *Stream) fill() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	for s.ext < len(s.extents) && s.skip >= s.extents[s.ext].Length {
		s.ext++
		s.skip = 0
	}
	if s.ext >= len(s.extents) {
		return io.ErrUnexpectedEOF
	}

	e := s.extents[s.ext]
	left := uint64(s.size-s.off+BlockSize-1) / BlockSize
	count := uint64(e.Length - s.skip)
	if count > maxRunBlocks {
		count = maxRunBlocks
	}
	if count > left {
		count = left
	}

	if cap(s.run) < int(count)*BlockSize {
		s.run = make([]byte, count*BlockSize)
	}
	run := s.run[:count*BlockSize]
	if err := s.blocks.readInto(run, uint64(e.Block)+uint64(s.skip)); err != nil {
		return err
	}
	s.skip += uint32(count)

	if rest := s.size - s.off; int64(len(run)) > rest {
		run = run[:rest]
	}
	s.buf = run
	return nil
}
