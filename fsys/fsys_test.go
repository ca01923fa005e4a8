package fsys

import (
	"bytes"
	"io"
	"reflect"
	"testing"
)

func TestComposeExtents(t *testing.T) {
	tests := []struct {
		name     string
		outer    []Extent
		inner    []Extent
		expected []Extent
	}{
		{
			name: "file block inside partition",
			// A 512-byte block at volume offset 5120 of a partition starting at sector 63.
			outer:    []Extent{{Logical: 0, Physical: 5120, Length: 512}},
			inner:    []Extent{{Logical: 0, Physical: 63 * 512, Length: 1 << 20}},
			expected: []Extent{{Logical: 0, Physical: 63*512 + 5120, Length: 512}},
		},
		{
			name: "fragmented file inside partition",
			outer: []Extent{
				{Logical: 0, Physical: 1024, Length: 1024},
				{Logical: 1024, Physical: 8192, Length: 300},
			},
			inner: []Extent{{Logical: 0, Physical: 32256, Length: 65536}},
			expected: []Extent{
				{Logical: 0, Physical: 33280, Length: 1024},
				{Logical: 1024, Physical: 40448, Length: 300},
			},
		},
		{
			name: "outer spans two inner extents",
			outer: []Extent{{Logical: 0, Physical: 50, Length: 100}},
			inner: []Extent{
				{Logical: 0, Physical: 1000, Length: 100},
				{Logical: 100, Physical: 2000, Length: 100},
			},
			expected: []Extent{
				{Logical: 0, Physical: 1050, Length: 50},
				{Logical: 50, Physical: 2000, Length: 50},
			},
		},
		{
			name: "hole in inner extents is dropped",
			outer: []Extent{{Logical: 0, Physical: 50, Length: 100}},
			inner: []Extent{
				{Logical: 0, Physical: 1000, Length: 75},
				{Logical: 100, Physical: 2000, Length: 100},
			},
			expected: []Extent{
				{Logical: 0, Physical: 1050, Length: 25},
				{Logical: 50, Physical: 2000, Length: 50},
			},
		},
		{
			name:     "outer past inner",
			outer:    []Extent{{Logical: 0, Physical: 500, Length: 100}},
			inner:    []Extent{{Logical: 0, Physical: 1000, Length: 100}},
			expected: nil,
		},
		{
			name:     "empty inner",
			outer:    []Extent{{Logical: 0, Physical: 0, Length: 100}},
			inner:    []Extent{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComposeExtents(tt.outer, tt.inner)
			if len(result) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ComposeExtents() =\n%v\nwant:\n%v", result, tt.expected)
			}
		})
	}
}

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestSectionFlattening(t *testing.T) {
	base := bytes.NewReader(sequence(10000))

	part := Section(base, 1000, 5000)
	file := NewExtentReaderAt(part, []Extent{
		{Logical: 0, Physical: 512, Length: 512},
		{Logical: 512, Physical: 2048, Length: 100},
	}, 612)

	if file.r != base {
		t.Fatal("expected nested reader to read from the base reader")
	}
	want := []Extent{
		{Logical: 0, Physical: 1512, Length: 512},
		{Logical: 512, Physical: 3048, Length: 100},
	}
	if !reflect.DeepEqual(file.Extents(), want) {
		t.Fatalf("Extents() = %v, want %v", file.Extents(), want)
	}

	buf := make([]byte, 612)
	n, err := file.ReadAt(buf, 0)
	if err != nil || n != 612 {
		t.Fatalf("ReadAt = %d, %v", n, err)
	}
	data := sequence(10000)
	if !bytes.Equal(buf[:512], data[1512:2024]) || !bytes.Equal(buf[512:], data[3048:3148]) {
		t.Error("composed read returned wrong bytes")
	}
}

func TestExtentReaderAtHoles(t *testing.T) {
	data := sequence(4096)
	r := NewExtentReaderAt(bytes.NewReader(data), []Extent{
		{Logical: 100, Physical: 0, Length: 50},
		{Logical: 0, Physical: 1000, Length: 50},
	}, 200)

	buf := make([]byte, 200)
	n, err := r.ReadAt(buf, 0)
	if err != nil || n != 200 {
		t.Fatalf("ReadAt = %d, %v", n, err)
	}
	if !bytes.Equal(buf[0:50], data[1000:1050]) {
		t.Error("first extent mismatch")
	}
	if !bytes.Equal(buf[50:100], make([]byte, 50)) {
		t.Error("hole not zeroed")
	}
	if !bytes.Equal(buf[100:150], data[0:50]) {
		t.Error("second extent mismatch")
	}
	if !bytes.Equal(buf[150:], make([]byte, 50)) {
		t.Error("tail not zeroed")
	}
}

func TestExtentReaderAtEOF(t *testing.T) {
	r := Section(bytes.NewReader(sequence(1000)), 0, 100)

	buf := make([]byte, 50)
	n, err := r.ReadAt(buf, 80)
	if n != 20 || err != io.EOF {
		t.Errorf("ReadAt past end = %d, %v; want 20, EOF", n, err)
	}
	if _, err := r.ReadAt(buf, 100); err != io.EOF {
		t.Errorf("ReadAt at end = %v; want EOF", err)
	}
	if _, err := r.ReadAt(buf, -1); err == nil {
		t.Error("negative offset accepted")
	}
}

func TestExtentReaderAtShortBase(t *testing.T) {
	// The section claims more bytes than the base reader holds.
	r := Section(bytes.NewReader(sequence(100)), 50, 100)

	buf := make([]byte, 100)
	n, err := r.ReadAt(buf, 0)
	if n != 50 || err != io.ErrUnexpectedEOF {
		t.Errorf("ReadAt = %d, %v; want 50, ErrUnexpectedEOF", n, err)
	}
}
