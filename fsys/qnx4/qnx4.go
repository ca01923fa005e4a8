// Package qnx4 implements read-only QNX4 filesystem recovery.
//
// Files are located through their inode's inline extent and, when a
// file is fragmented, a linked chain of extent blocks ("xblks"). The
// directory tree is rebuilt by walking directory entries from the root
// inode held in the superblock.
package qnx4

import (
	"encoding/binary"
	"io"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys"
)

const (
	BlockSize      = 512
	InodeSize      = 64
	InodesPerBlock = BlockSize / InodeSize

	// InlineExtents is the number of extents stored in the inode itself.
	InlineExtents = 1
	// XblkExtents is the number of extents an extent block can hold.
	XblkExtents = 60

	shortNameMax = 16
	linkNameMax  = 48
	longNameMax  = 510

	superblockBlock = 1

	RootInode    = superblockBlock*InodesPerBlock + 0
	InodeFile    = superblockBlock*InodesPerBlock + 1
	BootInode    = superblockBlock*InodesPerBlock + 2
	AltBootInode = superblockBlock*InodesPerBlock + 3
)

// Directory entry and inode status bits
const (
	StatusUsed      = 0x01
	StatusModified  = 0x02
	StatusBusy      = 0x04
	StatusLink      = 0x08
	StatusInode     = 0x10
	StatusFsysClean = 0x20
)

// FS is an opened QNX4 volume.
type FS struct {
	r      io.ReaderAt
	size   int64
	blocks blockReader
	sb     *Superblock
}

var (
	_ fsys.FS           = (*FS)(nil)
	_ fsys.ExtentMapper = (*FS)(nil)
)

// Open locates the superblock of the QNX4 volume in r. It returns an
// error matching ErrNotThisFilesystem when r does not hold one.
func Open(r io.ReaderAt, size int64) (*FS, error) {
	sb, err := Locate(r, size)
	if err != nil {
		return nil, err
	}
	return &FS{
		r:      r,
		size:   size,
		blocks: newBlockReader(r, size),
		sb:     sb,
	}, nil
}

func (f *FS) Type() string { return "QNX4" }
func (f *FS) Close() error { return nil }

// BaseReader returns the reader the volume was opened on.
func (f *FS) BaseReader() io.ReaderAt { return f.r }

// Superblock returns the parameters found when the volume was opened.
func (f *FS) Superblock() *Superblock { return f.sb }

// Root decodes the root directory inode.
func (f *FS) Root() (*Inode, error) { return f.Inode(f.sb.RootInode) }

func le16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off : off+2]) }
func le32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }

// cstring returns b up to its first NUL.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
