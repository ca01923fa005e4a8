package qnx4

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4/qnx4test"
)

func TestStreamLength(t *testing.T) {
	sizes := []int{0, 1, 511, 512, 513, 4096, 70000}
	img := qnx4test.New(512)
	inodes := make([]uint32, len(sizes))
	for i, size := range sizes {
		inodes[i] = img.AddFile(qnx4test.RootInode, string(rune('a'+i)), pattern(size))
	}
	f := openImage(t, img)

	for i, size := range sizes {
		ino, err := f.Inode(inodes[i])
		require.NoError(t, err)
		s, err := f.OpenFile(context.Background(), ino)
		require.NoError(t, err)
		assert.Equal(t, int64(size), s.Size())

		got, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Len(t, got, size)
		assert.True(t, bytes.Equal(pattern(size), got), "size %d", size)
	}
}

func TestStreamReopen(t *testing.T) {
	img := qnx4test.New(600)
	img.PerXblk = 3
	runs := []int{4, 130, 1, 7, 2, 2, 9}
	data := pattern(154*BlockSize + 77)
	n, _ := img.AddFragmented(qnx4test.RootInode, "nav.db", data, runs)
	f := openImage(t, img)

	first, err := fsReadFile(f, n)
	require.NoError(t, err)
	second, err := fsReadFile(f, n)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, bytes.Equal(data, first))
}

func TestStreamWriteTo(t *testing.T) {
	img := qnx4test.New(256)
	data := pattern(200 * BlockSize)
	n, _ := img.AddFragmented(qnx4test.RootInode, "big", data, []int{150, 50})
	f := openImage(t, img)

	ino, err := f.Inode(n)
	require.NoError(t, err)
	s, err := f.OpenFile(context.Background(), ino)
	require.NoError(t, err)

	var buf bytes.Buffer
	written, err := io.Copy(&buf, s)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), written)
	assert.True(t, bytes.Equal(data, buf.Bytes()))
}

func TestStreamSmallReads(t *testing.T) {
	img := qnx4test.New(64)
	data := pattern(3*BlockSize + 5)
	n, _ := img.AddFragmented(qnx4test.RootInode, "f", data, []int{1, 1, 2})
	f := openImage(t, img)

	ino, err := f.Inode(n)
	require.NoError(t, err)
	s, err := f.OpenFile(context.Background(), ino)
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 100)
	for {
		n, err := s.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, data, got)
}

func TestStreamTruncated(t *testing.T) {
	img := qnx4test.New(64)
	data := pattern(3 * BlockSize)
	n, _ := img.AddFragmented(qnx4test.RootInode, "f", data, []int{1, 2})
	// Two more blocks that no extent holds.
	binary.LittleEndian.PutUint32(img.Raw(n)[0x10:], 5*BlockSize)
	binary.LittleEndian.PutUint16(img.Raw(n)[0x30:], 3)
	f := openImage(t, img)

	ino, err := f.Inode(n)
	require.NoError(t, err)
	s, err := f.OpenFile(context.Background(), ino)
	require.ErrorIs(t, err, ErrTruncatedChain)
	require.NotNil(t, s)
	assert.Equal(t, int64(len(data)), s.Size())

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStreamCancelled(t *testing.T) {
	img := qnx4test.New(64)
	n := img.AddFile(qnx4test.RootInode, "f", pattern(4*BlockSize))
	f := openImage(t, img)

	ino, err := f.Inode(n)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s, err := f.OpenFile(ctx, ino)
	require.NoError(t, err)
	cancel()

	_, err = s.Read(make([]byte, 10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamReadError(t *testing.T) {
	img := qnx4test.New(64)
	n := img.AddFile(qnx4test.RootInode, "f", pattern(2*BlockSize))
	data := img.Bytes()
	f, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	ino, err := f.Inode(n)
	require.NoError(t, err)

	// Reopen over a reader that ends before the file's blocks.
	short := bytes.NewReader(data[:int(ino.Inline[0].Block)*BlockSize+100])
	f2 := &FS{r: short, size: int64(len(data)), blocks: blockReader{r: short, count: uint64(len(data) / BlockSize)}, sb: f.sb}
	s, err := f2.OpenFile(context.Background(), ino)
	require.NoError(t, err)
	_, err = io.ReadAll(s)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
