package qnx4

import (
	"fmt"
	"io"
)

// blockReader translates block numbers into byte offsets of the image.
// It holds no state beyond the image bounds and never caches.
type blockReader struct {
	r     io.ReaderAt
	count uint64 // whole blocks in the image
}

func newBlockReader(r io.ReaderAt, size int64) blockReader {
	if size < 0 {
		size = 0
	}
	return blockReader{r: r, count: uint64(size) / BlockSize}
}

func (b blockReader) offset(block uint64) int64 {
	return int64(block) * BlockSize
}

// contains reports whether [block, block+count) lies inside the image.
func (b blockReader) contains(block, count uint64) bool {
	return count <= b.count && block <= b.count-count
}

// readBlocks reads count whole blocks starting at block.
func (b blockReader) readBlocks(block, count uint64) ([]byte, error) {
	if !b.contains(block, count) {
		return nil, &OutOfRangeError{Block: block, Count: count, Blocks: b.count}
	}
	data := make([]byte, count*BlockSize)
	if err := b.readInto(data, block); err != nil {
		return nil, err
	}
	return data, nil
}

// readInto fills p, which must be a whole number of blocks, starting at block.
func (b blockReader) readInto(p []byte, block uint64) error {
	count := uint64(len(p)) / BlockSize
	if !b.contains(block, count) {
		return &OutOfRangeError{Block: block, Count: count, Blocks: b.count}
	}
	n, err := b.r.ReadAt(p, b.offset(block))
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("reading blocks [%d,%d): %w", block, block+count, err)
}

// readRecord reads one fixed-size record at a byte offset inside the image.
func (b blockReader) readRecord(off int64, size int) ([]byte, error) {
	end := off + int64(size)
	if off < 0 || end > int64(b.count)*BlockSize {
		return nil, &OutOfRangeError{Block: uint64(off / BlockSize), Count: 1, Blocks: b.count}
	}
	data := make([]byte, size)
	n, err := b.r.ReadAt(data, off)
	if n == size {
		return data, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("reading %d bytes at %d: %w", size, off, err)
}
