// Package qnx4test builds small QNX4 images in memory for tests.
//
// The builder writes the on-disk structures directly and shares no code
// with the decoder, so a layout mistake in one is not masked by the
// other. Helpers taking a block number use 0-based blocks; fields named
// Ptr hold on-disk (1-based) pointers where 0 means "none".
package qnx4test

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const (
	BlockSize  = 512
	RecordSize = 64
	PerBlock   = BlockSize / RecordSize

	// RootInode is the root directory's record, slot 0 of block 1.
	RootInode = 8

	// DirBlocks is the fixed size of every directory the builder makes.
	DirBlocks = 4

	// Epoch is the timestamp written into every record.
	Epoch = 0x5F000000
)

const (
	ModeDir     = 0o040755
	ModeFile    = 0o100644
	ModeSymlink = 0o120777

	StatusUsed = 0x01
	StatusLink = 0x08
)

// Record holds the raw fields of a 64-byte inode entry.
type Record struct {
	Name       string
	Size       uint32
	FirstPtr   uint32 // first extent block, on-disk
	FirstLen   uint32
	XblkPtr    uint32
	NumExtents uint16
	Mode       uint16
	Status     uint8
	Nlink      uint16
}

// Extent is a run of blocks. Block is 0-based.
type Extent struct {
	Block  uint32
	Length uint32
}

// Ptr converts a 0-based block number into an on-disk pointer.
func Ptr(block uint32) uint32 { return block + 1 }

type dir struct {
	first uint32
	used  int
}

// Image is a QNX4 volume under construction.
type Image struct {
	// PerXblk is how many extents AddFragmented puts in each extent
	// block, at most 60.
	PerXblk int

	data []byte
	next uint32
	dirs map[uint32]*dir
}

// New returns an image of the given number of blocks holding an empty
// root directory. Block 0 is left for a boot loader.
func New(blocks int) *Image {
	img := &Image{
		PerXblk: 60,
		data:    make([]byte, blocks*BlockSize),
		next:    1,
		dirs:    make(map[uint32]*dir),
	}
	first := img.Alloc(DirBlocks)
	// Slots 1-3 of the first root block are reserved for the system files.
	img.dirs[RootInode] = &dir{first: first, used: 4}
	img.WriteRecord(RootInode, Record{
		Name:       "/",
		Size:       4 * RecordSize,
		FirstPtr:   Ptr(first),
		FirstLen:   DirBlocks,
		NumExtents: 1,
		Mode:       ModeDir,
		Status:     StatusUsed,
		Nlink:      2,
	})
	return img
}

// Bytes returns the image. It is not copied.
func (img *Image) Bytes() []byte { return img.data }

// Blocks returns the number of blocks in the image.
func (img *Image) Blocks() int { return len(img.data) / BlockSize }

// Alloc reserves n consecutive blocks and returns the first one.
func (img *Image) Alloc(n int) uint32 {
	b := img.next
	if int(b)+n > img.Blocks() {
		panic(fmt.Sprintf("qnx4test: image of %d blocks is full", img.Blocks()))
	}
	img.next += uint32(n)
	return b
}

// Block returns block b of the image for direct modification.
func (img *Image) Block(b uint32) []byte {
	return img.data[int(b)*BlockSize : int(b+1)*BlockSize]
}

// Raw returns the 64-byte record of inode n for direct modification.
func (img *Image) Raw(n uint32) []byte {
	return img.data[int(n)*RecordSize : int(n+1)*RecordSize]
}

// WriteRecord writes an inode entry at inode n.
func (img *Image) WriteRecord(n uint32, r Record) {
	rec := img.Raw(n)
	clear(rec)
	copy(rec[0x00:0x10], r.Name)
	le := binary.LittleEndian
	le.PutUint32(rec[0x10:], r.Size)
	le.PutUint32(rec[0x14:], r.FirstPtr)
	le.PutUint32(rec[0x18:], r.FirstLen)
	le.PutUint32(rec[0x1C:], r.XblkPtr)
	for off := 0x20; off <= 0x2C; off += 4 {
		le.PutUint32(rec[off:], Epoch)
	}
	le.PutUint16(rec[0x30:], r.NumExtents)
	le.PutUint16(rec[0x32:], r.Mode)
	le.PutUint16(rec[0x38:], r.Nlink)
	rec[0x3F] = r.Status
}

// WriteExtentBlock writes an extent block at block b.
func (img *Image) WriteExtentBlock(b, nextPtr, prevPtr uint32, extents []Extent) {
	if len(extents) > 60 {
		panic("qnx4test: too many extents for one extent block")
	}
	data := img.Block(b)
	clear(data)
	le := binary.LittleEndian
	le.PutUint32(data[0x00:], nextPtr)
	le.PutUint32(data[0x04:], prevPtr)
	data[0x08] = uint8(len(extents))
	var blocks uint32
	for i, e := range extents {
		le.PutUint32(data[0x10+i*8:], Ptr(e.Block))
		le.PutUint32(data[0x14+i*8:], e.Length)
		blocks += e.Length
	}
	le.PutUint32(data[0x0C:], blocks)
	copy(data[496:], "IamXblk")
	if len(extents) > 0 {
		le.PutUint32(data[504:], Ptr(extents[0].Block))
		le.PutUint32(data[508:], extents[0].Length)
	}
}

// slot claims the next free entry of directory parent and grows its size.
func (img *Image) slot(parent uint32) uint32 {
	d, ok := img.dirs[parent]
	if !ok {
		panic(fmt.Sprintf("qnx4test: inode %d is not a directory", parent))
	}
	if d.used == DirBlocks*PerBlock {
		panic(fmt.Sprintf("qnx4test: directory %d is full", parent))
	}
	n := d.first*PerBlock + uint32(d.used)
	d.used++
	binary.LittleEndian.PutUint32(img.Raw(parent)[0x10:], uint32(d.used*RecordSize))
	return n
}

func (img *Image) writeData(first uint32, data []byte) {
	copy(img.data[int(first)*BlockSize:], data)
}

// Mkdir creates a directory in parent and returns its inode.
func (img *Image) Mkdir(parent uint32, name string) uint32 {
	n := img.slot(parent)
	first := img.Alloc(DirBlocks)
	img.WriteRecord(n, Record{
		Name:       name,
		FirstPtr:   Ptr(first),
		FirstLen:   DirBlocks,
		NumExtents: 1,
		Mode:       ModeDir,
		Status:     StatusUsed,
		Nlink:      2,
	})
	img.dirs[n] = &dir{first: first}
	img.AddLink(n, ".", n)
	img.AddLink(n, "..", parent)
	return n
}

// AddFile stores data contiguously as a file in parent and returns its inode.
func (img *Image) AddFile(parent uint32, name string, data []byte) uint32 {
	return img.addContiguous(parent, name, data, ModeFile)
}

// AddSymlink creates a symlink in parent pointing at target.
func (img *Image) AddSymlink(parent uint32, name, target string) uint32 {
	return img.addContiguous(parent, name, []byte(target), ModeSymlink)
}

func (img *Image) addContiguous(parent uint32, name string, data []byte, mode uint16) uint32 {
	n := img.slot(parent)
	r := Record{Name: name, Size: uint32(len(data)), Mode: mode, Status: StatusUsed, Nlink: 1}
	if len(data) > 0 {
		blocks := (len(data) + BlockSize - 1) / BlockSize
		first := img.Alloc(blocks)
		img.writeData(first, data)
		r.FirstPtr, r.FirstLen, r.NumExtents = Ptr(first), uint32(blocks), 1
	}
	img.WriteRecord(n, r)
	return n
}

// AddFragmented stores data as a file made of runs of the given block
// lengths, each separated from the next by an unused block. The first
// run is the inline extent and the rest are chained through extent
// blocks of PerXblk extents each. It returns the inode and the extent
// blocks written.
func (img *Image) AddFragmented(parent uint32, name string, data []byte, runs []int) (uint32, []uint32) {
	var extents []Extent
	var total int
	for _, length := range runs {
		b := img.Alloc(length + 1)
		extents = append(extents, Extent{Block: b, Length: uint32(length)})
		end := total + length*BlockSize
		if end > len(data) {
			end = len(data)
		}
		if total < end {
			img.writeData(b, data[total:end])
		}
		total += length * BlockSize
	}
	if total < len(data) {
		panic("qnx4test: runs do not hold the data")
	}

	n := img.slot(parent)
	r := Record{
		Name:       name,
		Size:       uint32(len(data)),
		NumExtents: uint16(len(extents)),
		Mode:       ModeFile,
		Status:     StatusUsed,
		Nlink:      1,
	}
	if len(extents) > 0 {
		r.FirstPtr, r.FirstLen = Ptr(extents[0].Block), extents[0].Length
	}

	var chunks [][]Extent
	for rest := extents[min(1, len(extents)):]; len(rest) > 0; {
		k := min(img.PerXblk, len(rest))
		chunks = append(chunks, rest[:k])
		rest = rest[k:]
	}
	xblks := make([]uint32, len(chunks))
	for i := range chunks {
		xblks[i] = img.Alloc(1)
	}
	for i, chunk := range chunks {
		var next, prev uint32
		if i+1 < len(xblks) {
			next = Ptr(xblks[i+1])
		}
		if i > 0 {
			prev = Ptr(xblks[i-1])
		}
		img.WriteExtentBlock(xblks[i], next, prev, chunk)
	}
	if len(xblks) > 0 {
		r.XblkPtr = Ptr(xblks[0])
	}
	img.WriteRecord(n, r)
	return n, xblks
}

// AddLink adds a link entry in parent naming inode target. Names longer
// than a link entry can hold are stored in a long file name block.
func (img *Image) AddLink(parent uint32, name string, target uint32) uint32 {
	n := img.slot(parent)
	rec := img.Raw(n)
	clear(rec)
	copy(rec[:48], name)
	if len(name) > 48 {
		lfn := img.Alloc(1)
		copy(img.Block(lfn), name)
		binary.LittleEndian.PutUint32(rec[0x35:], Ptr(lfn))
	}
	binary.LittleEndian.PutUint32(rec[0x30:], Ptr(target/PerBlock))
	rec[0x34] = uint8(target % PerBlock)
	rec[0x3F] = StatusLink
	return n
}

// Remove marks inode n's slot as deleted.
func (img *Image) Remove(n uint32) {
	img.Raw(n)[0x3F] = 0
}

// WithMBR returns img placed at startLBA of a disk with a one-entry MBR
// of partition type ptype.
func WithMBR(img []byte, startLBA uint32, ptype byte) []byte {
	disk := make([]byte, int(startLBA)*BlockSize+len(img))
	copy(disk[int(startLBA)*BlockSize:], img)
	entry := disk[446:462]
	entry[0] = 0x80
	entry[4] = ptype
	binary.LittleEndian.PutUint32(entry[8:], startLBA)
	binary.LittleEndian.PutUint32(entry[12:], uint32(len(img)/BlockSize))
	disk[510], disk[511] = 0x55, 0xAA
	return disk
}

// Recorder is an io.ReaderAt that remembers which blocks were read.
type Recorder struct {
	data []byte

	mu    sync.Mutex
	reads map[uint32]int
}

// NewRecorder serves reads from data.
func NewRecorder(data []byte) *Recorder {
	return &Recorder{data: data, reads: make(map[uint32]int)}
}

func (r *Recorder) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	for b := off / BlockSize; b*BlockSize < off+int64(len(p)); b++ {
		r.reads[uint32(b)]++
	}
	r.mu.Unlock()
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Reads returns how many reads touched block b.
func (r *Recorder) Reads(b uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads[b]
}

// Reset forgets all reads so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	clear(r.reads)
	r.mu.Unlock()
}
