package qnx4

import (
	"encoding/binary"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4/qnx4test"
)

func TestInodeDecode(t *testing.T) {
	img := qnx4test.New(64)
	data := make([]byte, 1300)
	n := img.AddFile(qnx4test.RootInode, "config.sys", data)
	f := openImage(t, img)

	ino, err := f.Inode(n)
	require.NoError(t, err)
	assert.Equal(t, n, ino.Number)
	assert.Equal(t, "config.sys", ino.Name)
	assert.Equal(t, uint64(1300), ino.Size)
	assert.Equal(t, uint64(3), ino.Blocks())
	assert.Equal(t, TypeRegular, ino.Type)
	assert.Equal(t, 1, ino.NumExtents)
	assert.Zero(t, ino.XBlock)
	require.Len(t, ino.Inline, 1)
	assert.Equal(t, uint32(3), ino.Inline[0].Length)
	assert.Equal(t, time.Unix(qnx4test.Epoch, 0), ino.MTime)
	assert.Equal(t, fs.FileMode(0o644), ino.FileMode())
}

func TestInodeFileMode(t *testing.T) {
	tests := []struct {
		mode uint16
		want fs.FileMode
	}{
		{0o100644, 0o644},
		{0o040755, fs.ModeDir | 0o755},
		{0o120777, fs.ModeSymlink | 0o777},
		{0o020600, fs.ModeDevice | fs.ModeCharDevice | 0o600},
		{0o060600, fs.ModeDevice | 0o600},
		{0o010644, fs.ModeNamedPipe | 0o644},
		{0o104755, fs.ModeSetuid | 0o755},
	}
	for _, tt := range tests {
		ino := &Inode{Mode: tt.mode}
		assert.Equal(t, tt.want, ino.FileMode(), "mode %#o", tt.mode)
	}
}

func TestInodeCorrupt(t *testing.T) {
	tests := []struct {
		name  string
		inode func(img *qnx4test.Image) uint32
	}{
		{"below root", func(*qnx4test.Image) uint32 { return 3 }},
		{"past image", func(img *qnx4test.Image) uint32 { return uint32(img.Blocks()) * InodesPerBlock }},
		{"unused slot", func(img *qnx4test.Image) uint32 {
			n := img.AddFile(qnx4test.RootInode, "gone", []byte("x"))
			img.Remove(n)
			return n
		}},
		{"size without extents", func(img *qnx4test.Image) uint32 {
			n := img.AddFile(qnx4test.RootInode, "empty", nil)
			img.Raw(n)[0x10] = 10
			return n
		}},
		{"inline extent too short", func(img *qnx4test.Image) uint32 {
			n := img.AddFile(qnx4test.RootInode, "short", make([]byte, 100))
			img.Raw(n)[0x11] = 0x10 // size 4196
			return n
		}},
		{"inline extent too short with chain pointer", func(img *qnx4test.Image) uint32 {
			n := img.AddFile(qnx4test.RootInode, "short", make([]byte, 100))
			stale := img.Alloc(1)
			img.WriteExtentBlock(stale, 0, 0, []qnx4test.Extent{{Block: img.Alloc(8), Length: 8}})
			binary.LittleEndian.PutUint32(img.Raw(n)[0x1C:], qnx4test.Ptr(stale))
			img.Raw(n)[0x11] = 0x10
			return n
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := qnx4test.New(32)
			n := tt.inode(img)
			f := openImage(t, img)

			_, err := f.Inode(n)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptInode)
			var ce *CorruptInodeError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, n, ce.Inode)
		})
	}
}

func TestInodeEmptyFile(t *testing.T) {
	img := qnx4test.New(16)
	n := img.AddFile(qnx4test.RootInode, "empty", nil)
	f := openImage(t, img)

	ino, err := f.Inode(n)
	require.NoError(t, err)
	assert.Zero(t, ino.Size)
	assert.Zero(t, ino.NumExtents)
	assert.Equal(t, []Extent{{}}, ino.Inline)
}
