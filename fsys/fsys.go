// Package fsys holds what the filesystem decoders share: the read-only
// filesystem interface and a reader that views scattered byte ranges of
// an image as one contiguous file.
package fsys

import (
	"errors"
	"io"
	"io/fs"
	"sort"
)

// Extent maps a range of a file's logical bytes to bytes of the image.
type Extent struct {
	Logical  int64 // Offset within the file
	Physical int64 // Offset within the image
	Length   int64 // Length of this extent
}

// FS represents a read-only filesystem opened from a disk image.
type FS interface {
	fs.FS
	fs.ReadDirFS
	fs.StatFS

	// Type returns the filesystem type name (e.g. "QNX4")
	Type() string

	// Close releases any resources held by the filesystem
	Close() error
}

// ExtentMapper is an optional interface for filesystems that can report
// where a file's data sits within the image.
type ExtentMapper interface {
	// FileExtents returns the extents mapping the file's logical offsets
	// to image offsets. Directories are an error. A partial list may be
	// returned alongside an error when the file is damaged.
	FileExtents(path string) ([]Extent, error)
}

// FileInfo provides extended file information
type FileInfo interface {
	fs.FileInfo

	// Inode returns the inode number
	Inode() uint64
}

// ExtentReaderAt presents the bytes named by a list of extents as one
// file. Holes between extents read as zeros.
type ExtentReaderAt struct {
	r       io.ReaderAt
	extents []Extent // sorted by Logical
	size    int64
}

// NewExtentReaderAt creates an ExtentReaderAt over r. If r is itself an
// ExtentReaderAt the mappings are composed so reads go straight to the
// innermost reader.
func NewExtentReaderAt(r io.ReaderAt, extents []Extent, size int64) *ExtentReaderAt {
	sorted := make([]Extent, len(extents))
	copy(sorted, extents)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Logical < sorted[j].Logical
	})

	if inner, ok := r.(*ExtentReaderAt); ok {
		return &ExtentReaderAt{r: inner.r, extents: ComposeExtents(sorted, inner.extents), size: size}
	}
	return &ExtentReaderAt{r: r, extents: sorted, size: size}
}

// Section returns a reader over size bytes of r starting at off, such
// as a partition of a disk image.
func Section(r io.ReaderAt, off, size int64) *ExtentReaderAt {
	return NewExtentReaderAt(r, []Extent{{Logical: 0, Physical: off, Length: size}}, size)
}

// ComposeExtents maps outer extents, whose Physical offsets are logical
// offsets of the inner mapping, through inner to real image offsets.
// Parts of outer that fall into holes of inner are dropped.
//
// For example, if outer maps [0,100) -> [1000,1100) and inner maps [1000,1100) -> [5000,5100),
// the composed result maps [0,100) -> [5000,5100).
func ComposeExtents(outer, inner []Extent) []Extent {
	var composed []Extent

	for _, o := range outer {
		remaining := o.Length
		at := o.Physical
		logical := o.Logical

		for remaining > 0 {
			i, found := findExtent(inner, at)
			if !found {
				if i >= len(inner) {
					break
				}
				gap := inner[i].Logical - at
				if gap > remaining {
					gap = remaining
				}
				logical += gap
				at += gap
				remaining -= gap
				continue
			}

			in := inner[i]
			skip := at - in.Logical
			use := in.Length - skip
			if use > remaining {
				use = remaining
			}
			composed = append(composed, Extent{
				Logical:  logical,
				Physical: in.Physical + skip,
				Length:   use,
			})
			logical += use
			at += use
			remaining -= use
		}
	}

	return composed
}

// findExtent returns the index of the extent holding logical offset
// off. If none does, it returns the index of the first extent after off
// (len(extents) if there is none) and false.
func findExtent(extents []Extent, off int64) (int, bool) {
	i := sort.Search(len(extents), func(i int) bool {
		return extents[i].Logical+extents[i].Length > off
	})
	if i < len(extents) && extents[i].Logical <= off {
		return i, true
	}
	return i, false
}

// Size returns the logical size of the file
func (e *ExtentReaderAt) Size() int64 {
	return e.size
}

// Extents returns the composed extent list.
func (e *ExtentReaderAt) Extents() []Extent {
	return e.extents
}

// ReadAt implements io.ReaderAt
func (e *ExtentReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= e.size {
		return 0, io.EOF
	}

	short := false
	if off+int64(len(p)) > e.size {
		p = p[:e.size-off]
		short = true
	}

	for n < len(p) {
		i, found := findExtent(e.extents, off)
		if !found {
			end := e.size
			if i < len(e.extents) && e.extents[i].Logical < end {
				end = e.extents[i].Logical
			}
			zeros := p[n:]
			if int64(len(zeros)) > end-off {
				zeros = zeros[:end-off]
			}
			clear(zeros)
			n += len(zeros)
			off += int64(len(zeros))
			continue
		}

		ext := e.extents[i]
		within := off - ext.Logical
		chunk := p[n:]
		if int64(len(chunk)) > ext.Length-within {
			chunk = chunk[:ext.Length-within]
		}
		nr, err := e.r.ReadAt(chunk, ext.Physical+within)
		n += nr
		off += int64(nr)
		if nr < len(chunk) {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, err
		}
	}

	if short {
		return n, io.EOF
	}
	return n, nil
}
