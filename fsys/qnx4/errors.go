package qnx4

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. The typed errors below match them.
var (
	ErrNotThisFilesystem = errors.New("qnx4: not a QNX4 filesystem")
	ErrCorruptInode      = errors.New("qnx4: corrupt inode")
	ErrTruncatedChain    = errors.New("qnx4: truncated extent chain")
	ErrCyclicDirectory   = errors.New("qnx4: cyclic directory")
	ErrOutOfRange        = errors.New("qnx4: read beyond image bounds")
)

// OutOfRangeError is returned when a block read would pass the end of the image.
type OutOfRangeError struct {
	Block  uint64 // First requested block
	Count  uint64 // Number of blocks requested
	Blocks uint64 // Blocks available in the image
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("qnx4: blocks [%d,%d) outside image of %d blocks", e.Block, e.Block+e.Count, e.Blocks)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// CorruptInodeError reports an inode whose fields contradict each other
// or the image. The rest of the tree is still usable.
type CorruptInodeError struct {
	Inode  uint32
	Reason string
}

func (e *CorruptInodeError) Error() string {
	return fmt.Sprintf("qnx4: inode %d: %s", e.Inode, e.Reason)
}

func (e *CorruptInodeError) Is(target error) bool { return target == ErrCorruptInode }

// TruncatedChainError reports an extent chain that ended before covering
// the inode's declared size. The extents gathered so far are returned
// alongside it so that a partial file can still be recovered.
type TruncatedChainError struct {
	Inode   uint32
	Extents int    // Extents gathered before the chain ended
	Have    uint64 // Blocks covered
	Need    uint64 // Blocks required by the declared size
}

func (e *TruncatedChainError) Error() string {
	return fmt.Sprintf("qnx4: inode %d: extent chain ends after %d extents covering %d of %d blocks",
		e.Inode, e.Extents, e.Have, e.Need)
}

func (e *TruncatedChainError) Is(target error) bool { return target == ErrTruncatedChain }

// CyclicDirectoryError reports a directory that names one of its own ancestors.
type CyclicDirectoryError struct {
	Inode    uint32 // The repeated inode
	Path     string // Where it reappeared
	Ancestor string // Where it was first seen on the same branch
}

func (e *CyclicDirectoryError) Error() string {
	return fmt.Sprintf("qnx4: %s: directory inode %d already open as %s", e.Path, e.Inode, e.Ancestor)
}

func (e *CyclicDirectoryError) Is(target error) bool { return target == ErrCyclicDirectory }

// Partial reports whether err still leaves usable data behind: a
// truncated chain or a corrupt inode, as opposed to a wrong image type
// or a failed physical read.
func Partial(err error) bool {
	return errors.Is(err, ErrTruncatedChain) || errors.Is(err, ErrCorruptInode)
}
