package part

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4/qnx4test"
)

func TestParse(t *testing.T) {
	disk := qnx4test.WithMBR(make([]byte, 64*512), 63, TypeQNX4)
	// A second, non-QNX entry and one running off the end of the disk.
	e := disk[462:478]
	e[4] = 0x0C
	binary.LittleEndian.PutUint32(e[8:], 1)
	binary.LittleEndian.PutUint32(e[12:], 10)
	e = disk[478:494]
	e[4] = TypeQNX4Alt
	binary.LittleEndian.PutUint32(e[8:], 100)
	binary.LittleEndian.PutUint32(e[12:], 1000)

	parts, err := Parse(bytes.NewReader(disk), int64(len(disk)))
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.True(t, parts[0].IsQNX())
	assert.True(t, parts[0].Bootable)
	assert.Equal(t, int64(63*512), parts[0].StartOffset())
	assert.Equal(t, int64(64*512), parts[0].SizeBytes())
	assert.False(t, parts[1].IsQNX())

	p, err := FindQNX(parts, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)
	p, err = FindQNX(parts, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x0C), p.Type)
	_, err = FindQNX(parts[1:], -1)
	assert.ErrorIs(t, err, ErrNoQNX)
	_, err = FindQNX(parts, 3)
	assert.Error(t, err)

	assert.Contains(t, Table(parts), "qnx4")
}

func TestParseBadSignature(t *testing.T) {
	_, err := Parse(bytes.NewReader(make([]byte, 1024)), 1024)
	assert.Error(t, err)
}

func TestSectionOpensVolume(t *testing.T) {
	img := qnx4test.New(64)
	data := []byte("partitioned payload")
	img.AddFile(qnx4test.RootInode, "file", data)
	disk := qnx4test.WithMBR(img.Bytes(), 63, TypeQNX4)

	parts, err := Parse(bytes.NewReader(disk), int64(len(disk)))
	require.NoError(t, err)
	p, err := FindQNX(parts, -1)
	require.NoError(t, err)

	section := p.Section(bytes.NewReader(disk))
	vol, err := qnx4.Open(section, section.Size())
	require.NoError(t, err)

	got, err := io.ReadAll(must(vol.Open("file")))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Extents found through the section point straight into the disk.
	extents, err := vol.FileExtents("file")
	require.NoError(t, err)
	r := fsys.NewExtentReaderAt(section, extents, int64(len(data)))
	require.Len(t, r.Extents(), 1)
	assert.GreaterOrEqual(t, r.Extents()[0].Physical, p.StartOffset())

	buf := make([]byte, len(data))
	_, err = r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, data, buf)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
