package qnx4

import (
	"fmt"
	"io/fs"
	"time"
)

// FileType is the kind of object an inode describes.
type FileType uint8

const (
	TypeSpecial FileType = iota
	TypeRegular
	TypeDir
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "file"
	case TypeDir:
		return "dir"
	case TypeSymlink:
		return "symlink"
	default:
		return "special"
	}
}

// POSIX file type bits of di_mode
const (
	modeTypeMask = 0xF000
	modeFIFO     = 0x1000
	modeChar     = 0x2000
	modeDir      = 0x4000
	modeBlock    = 0x6000
	modeRegular  = 0x8000
	modeSymlink  = 0xA000
	modeSocket   = 0xC000
)

// Extent is a run of Length blocks starting at Block (0-based).
type Extent struct {
	Block  uint32
	Length uint32
}

func (e Extent) String() string { return fmt.Sprintf("(%d,%d)", e.Block, e.Length) }

// Inode is a decoded 64-byte inode entry. It is never modified after decoding.
type Inode struct {
	Number uint32
	Name   string // Short name from the record; directories may hold a better one
	Size   uint64
	Mode   uint16
	Type   FileType
	Status uint8
	UID    uint16
	GID    uint16
	Nlink  uint16

	// Inline holds the extent slots stored in the record. Zero-length
	// slots are unused.
	Inline []Extent
	// NumExtents is the total number of extents the file declares,
	// inline ones included.
	NumExtents int
	// XBlock is the on-disk (1-based) number of the first extent block,
	// zero when there is none.
	XBlock uint32

	FTime time.Time
	MTime time.Time
	ATime time.Time
	CTime time.Time
}

// IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool { return i.Type == TypeDir }

// Blocks returns the number of blocks needed to hold Size bytes.
func (i *Inode) Blocks() uint64 {
	return (i.Size + BlockSize - 1) / BlockSize
}

// FileMode converts the POSIX mode bits to an fs.FileMode.
func (i *Inode) FileMode() fs.FileMode {
	mode := fs.FileMode(i.Mode & 0777)
	switch i.Mode & modeTypeMask {
	case modeDir:
		mode |= fs.ModeDir
	case modeSymlink:
		mode |= fs.ModeSymlink
	case modeBlock:
		mode |= fs.ModeDevice
	case modeChar:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case modeFIFO:
		mode |= fs.ModeNamedPipe
	case modeSocket:
		mode |= fs.ModeSocket
	}
	if i.Mode&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if i.Mode&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if i.Mode&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}

func fileType(mode uint16) FileType {
	switch mode & modeTypeMask {
	case modeRegular:
		return TypeRegular
	case modeDir:
		return TypeDir
	case modeSymlink:
		return TypeSymlink
	default:
		return TypeSpecial
	}
}

// Inode reads inode n from the inode table and decodes it.
func (f *FS) Inode(n uint32) (*Inode, error) {
	if uint64(n) >= f.blocks.count*InodesPerBlock || n < RootInode {
		return nil, &CorruptInodeError{Inode: n, Reason: "inode number outside the image"}
	}
	data, err := f.blocks.readRecord(int64(n)*InodeSize, InodeSize)
	if err != nil {
		return nil, fmt.Errorf("reading inode %d: %w", n, err)
	}
	ino := decodeInode(n, data)
	if err := f.checkInode(ino); err != nil {
		return nil, err
	}
	return ino, nil
}

// decodeInode parses a 64-byte inode entry without validating it.
func decodeInode(n uint32, data []byte) *Inode {
	ino := &Inode{
		Number:     n,
		Name:       cstring(data[0x00:0x10]),
		Size:       uint64(le32(data, 0x10)),
		XBlock:     le32(data, 0x1C),
		FTime:      time.Unix(int64(le32(data, 0x20)), 0),
		MTime:      time.Unix(int64(le32(data, 0x24)), 0),
		ATime:      time.Unix(int64(le32(data, 0x28)), 0),
		CTime:      time.Unix(int64(le32(data, 0x2C)), 0),
		NumExtents: int(le16(data, 0x30)),
		Mode:       le16(data, 0x32),
		UID:        le16(data, 0x34),
		GID:        le16(data, 0x36),
		Nlink:      le16(data, 0x38),
		Status:     data[0x3F],
	}
	ino.Type = fileType(ino.Mode)

	// On disk the block is 1-based; a zero block is an empty slot.
	blk, length := le32(data, 0x14), le32(data, 0x18)
	if blk == 0 {
		length = 0
	} else {
		blk--
	}
	ino.Inline = []Extent{{Block: blk, Length: length}}
	return ino
}

// checkInode rejects inodes whose declared size cannot be backed by
// their extents. Chained inodes are checked when their chain is resolved.
// The extent count alone decides which: a chain pointer on an inode whose
// extents all fit inline is never followed.
func (f *FS) checkInode(ino *Inode) error {
	if ino.Status&(StatusUsed|StatusLink|StatusInode) == 0 {
		return &CorruptInodeError{Inode: ino.Number, Reason: fmt.Sprintf("slot not in use (status %#02x)", ino.Status)}
	}
	if ino.Size > 0 && ino.NumExtents == 0 {
		return &CorruptInodeError{Inode: ino.Number, Reason: fmt.Sprintf("size %d with no extents", ino.Size)}
	}
	if ino.NumExtents > len(ino.Inline) {
		return nil
	}
	var covered uint64
	for _, e := range ino.Inline {
		covered += uint64(e.Length)
	}
	if covered < ino.Blocks() {
		return &CorruptInodeError{
			Inode:  ino.Number,
			Reason: fmt.Sprintf("size %d needs %d blocks but inline extents hold %d", ino.Size, ino.Blocks(), covered),
		}
	}
	return nil
}
