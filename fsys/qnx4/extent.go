package qnx4

import (
	"fmt"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// ExtentBlock is a decoded extent continuation block.
type ExtentBlock struct {
	Block     uint32 // 0-based location of this block
	Next      uint32 // On-disk (1-based) pointer to the next block, 0 ends the chain
	Prev      uint32
	NumBlocks uint32
	Extents   []Extent
}

// readExtentBlock reads and structurally validates the extent block at
// the on-disk pointer ptr. The trailing signature field is not checked:
// volumes in the field carry arbitrary bytes there.
func (f *FS) readExtentBlock(ino uint32, ptr uint32) (*ExtentBlock, error) {
	block := uint64(ptr) - 1
	data, err := f.blocks.readBlocks(block, 1)
	if err != nil {
		return nil, fmt.Errorf("inode %d: extent block %d: %w", ino, block, err)
	}

	xb := &ExtentBlock{
		Block:     uint32(block),
		Next:      le32(data, 0x00),
		Prev:      le32(data, 0x04),
		NumBlocks: le32(data, 0x0C),
	}
	n := int(data[0x08])
	if n > XblkExtents {
		return nil, &CorruptInodeError{
			Inode:  ino,
			Reason: fmt.Sprintf("extent block %d claims %d extents, room for %d", block, n, XblkExtents),
		}
	}
	if xb.Next != 0 && !f.blocks.contains(uint64(xb.Next)-1, 1) {
		return nil, &CorruptInodeError{
			Inode:  ino,
			Reason: fmt.Sprintf("extent block %d points past the image (next %d)", block, xb.Next),
		}
	}

	xb.Extents = make([]Extent, 0, n)
	for i := 0; i < n; i++ {
		off := 0x10 + i*8
		blk, length := le32(data, off), le32(data, off+4)
		if blk == 0 {
			length = 0
		} else {
			blk--
		}
		xb.Extents = append(xb.Extents, Extent{Block: blk, Length: length})
	}
	return xb, nil
}

// ResolveExtents returns the extents that make up ino, in file order.
//
// The inline extents come first. The extent block chain is followed
// only while extents remain to be found, the next pointer is non-zero
// and the declared size is not yet covered; a zero pointer always ends
// the walk before anything is read.
//
// When the chain ends short of the declared size the extents found so
// far are returned together with a *TruncatedChainError.
func (f *FS) ResolveExtents(ino *Inode) ([]Extent, error) {
	need := ino.Blocks()
	remaining := ino.NumExtents
	extents := make([]Extent, 0, ino.NumExtents)
	var have uint64

	add := func(e Extent) error {
		remaining--
		if e.Length == 0 {
			return nil
		}
		if !f.blocks.contains(uint64(e.Block), uint64(e.Length)) {
			return &CorruptInodeError{
				Inode:  ino.Number,
				Reason: fmt.Sprintf("extent %v outside image of %d blocks", e, f.blocks.count),
			}
		}
		extents = append(extents, e)
		have += uint64(e.Length)
		return nil
	}

	for _, e := range ino.Inline {
		if remaining <= 0 {
			break
		}
		if err := add(e); err != nil {
			return extents, err
		}
	}

	next := ino.XBlock
	seen := make(map[uint32]bool)
	for remaining > 0 && next != 0 && have < need {
		if seen[next] {
			logger.Warn("inode %d: extent block %d revisited, stopping chain", ino.Number, next-1)
			break
		}
		seen[next] = true

		xb, err := f.readExtentBlock(ino.Number, next)
		if err != nil {
			return extents, err
		}
		logger.Debug("inode %d: extent block %d holds %d extents, next %d", ino.Number, xb.Block, len(xb.Extents), xb.Next)

		for _, e := range xb.Extents {
			if remaining <= 0 {
				break
			}
			if err := add(e); err != nil {
				return extents, err
			}
		}
		next = xb.Next
	}

	if have < need {
		return extents, &TruncatedChainError{Inode: ino.Number, Extents: len(extents), Have: have, Need: need}
	}
	return extents, nil
}

// FileExtents returns the byte-level extents of the file at name, trimmed
// to its size, so that fsys.ExtentReaderAt can read it in place. A
// truncated chain yields the extents that exist along with the error.
func (f *FS) FileExtents(name string) ([]fsys.Extent, error) {
	ino, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if ino.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", name)
	}
	extents, err := f.ResolveExtents(ino)
	return byteExtents(extents, int64(ino.Size)), err
}

// byteExtents converts block extents into fsys extents covering at most size bytes.
func byteExtents(extents []Extent, size int64) []fsys.Extent {
	out := make([]fsys.Extent, 0, len(extents))
	var logical int64
	for _, e := range extents {
		if logical >= size {
			break
		}
		length := int64(e.Length) * BlockSize
		if logical+length > size {
			length = size - logical
		}
		out = append(out, fsys.Extent{
			Logical:  logical,
			Physical: int64(e.Block) * BlockSize,
			Length:   length,
		})
		logical += length
	}
	return out
}
