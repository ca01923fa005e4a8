package qnx4

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// rootSignature is the name field of the root directory entry.
var rootSignature = append([]byte{'/'}, make([]byte, shortNameMax-1)...)

// superblockCandidates are the blocks that may hold the superblock.
var superblockCandidates = []uint64{superblockBlock}

// Superblock holds the volume parameters. It is read once per image.
type Superblock struct {
	BlockSize    uint32
	TotalBlocks  uint64
	RootInode    uint32
	InodeFile    uint32
	BootInode    uint32
	AltBootInode uint32

	// Root is the root directory record as found in the superblock.
	Root *Inode
}

// Locate finds and validates the superblock of a QNX4 volume. A missing
// signature is reported as ErrNotThisFilesystem, which means the image
// holds something else rather than a damaged QNX4 volume.
func Locate(r io.ReaderAt, size int64) (*Superblock, error) {
	br := newBlockReader(r, size)
	var reasons []string
	for _, block := range superblockCandidates {
		sb, reason, err := probeSuperblock(br, block)
		if err != nil {
			return nil, err
		}
		if sb != nil {
			return sb, nil
		}
		reasons = append(reasons, fmt.Sprintf("block %d: %s", block, reason))
	}
	return nil, fmt.Errorf("%w (%s)", ErrNotThisFilesystem, strings.Join(reasons, "; "))
}

// probeSuperblock checks one candidate block. It returns a reason
// instead of an error when the block simply does not match.
func probeSuperblock(br blockReader, block uint64) (*Superblock, string, error) {
	if !br.contains(block, 1) {
		return nil, "image too small", nil
	}
	data, err := br.readBlocks(block, 1)
	if err != nil {
		return nil, "", fmt.Errorf("reading superblock: %w", err)
	}
	if !bytes.Equal(data[:shortNameMax], rootSignature) {
		return nil, "no root directory entry", nil
	}

	rootNum := uint32(block * InodesPerBlock)
	root := decodeInode(rootNum, data[:InodeSize])
	if root.Status&StatusUsed == 0 {
		return nil, "root entry not in use", nil
	}
	if !root.IsDir() {
		return nil, fmt.Sprintf("root entry is not a directory (mode %#o)", root.Mode), nil
	}
	if root.NumExtents == 0 || root.Inline[0].Length == 0 {
		return nil, "root directory has no extents", nil
	}
	if first := root.Inline[0]; !br.contains(uint64(first.Block), uint64(first.Length)) {
		return nil, fmt.Sprintf("root extent %v outside image", first), nil
	}

	sb := &Superblock{
		BlockSize:    BlockSize,
		TotalBlocks:  br.count,
		RootInode:    rootNum,
		InodeFile:    rootNum + 1,
		BootInode:    rootNum + 2,
		AltBootInode: rootNum + 3,
		Root:         root,
	}
	if !isPowerOfTwo(sb.BlockSize) {
		return nil, fmt.Sprintf("block size %d not a power of two", sb.BlockSize), nil
	}
	return sb, "", nil
}

func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
