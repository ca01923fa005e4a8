package qnx4

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// maxSymlinkSize bounds how much of a symlink is read as its target.
const maxSymlinkSize = 4096

// fs.FS implementation

func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	ino, err := f.lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if ino.IsDir() {
		return &qnxDir{fs: f, inode: ino, name: path.Base(name)}, nil
	}
	return &qnxFile{fs: f, inode: ino, name: path.Base(name)}, nil
}

// Lookup returns the inode at name, a slash-separated path relative to
// the root ("." is the root itself).
func (f *FS) Lookup(name string) (*Inode, error) {
	return f.lookup(name)
}

func (f *FS) lookup(name string) (*Inode, error) {
	cur, err := f.Root()
	if err != nil {
		return nil, err
	}

	for _, part := range splitPath(name) {
		if !cur.IsDir() {
			return nil, fs.ErrNotExist
		}
		entries, derr := f.ReadDirEntries(cur)
		if derr != nil && len(entries) == 0 {
			return nil, derr
		}

		var next uint32
		found := false
		for _, e := range entries {
			if e.Name == part {
				next = e.Inode
				found = true
				break
			}
		}
		if !found {
			if derr != nil {
				return nil, derr
			}
			return nil, fs.ErrNotExist
		}
		if derr != nil {
			logger.Warn("%s: directory inode %d incomplete: %v", name, cur.Number, derr)
		}

		if cur, err = f.Inode(next); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func splitPath(name string) []string {
	name = strings.Trim(name, "/")
	if name == "" || name == "." {
		return nil
	}
	return strings.Split(name, "/")
}

// ReadDir returns the entries of the directory at name sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}
	entries, err := dir.ReadDir(-1)
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, err
}

func (f *FS) Stat(name string) (fs.FileInfo, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return file.Stat()
}

// Readlink returns the target of the symlink at name.
func (f *FS) Readlink(name string) (string, error) {
	ino, err := f.lookup(name)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	if ino.Type != TypeSymlink {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
	}
	if ino.Size > maxSymlinkSize {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fmt.Errorf("target of %d bytes", ino.Size)}
	}
	s, err := f.OpenFile(context.Background(), ino)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	target, err := io.ReadAll(s)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	return strings.TrimRight(string(target), "\x00"), nil
}

// qnxFile implements fs.File for regular files. A truncated extent
// chain surfaces as the error in place of io.EOF.
type qnxFile struct {
	fs     *FS
	inode  *Inode
	name   string
	stream *Stream
	tail   error
}

func (f *qnxFile) Stat() (fs.FileInfo, error) {
	return &qnxFileInfo{inode: f.inode, name: f.name}, nil
}

func (f *qnxFile) Read(b []byte) (int, error) {
	if f.stream == nil {
		s, err := f.fs.OpenFile(context.Background(), f.inode)
		if s == nil {
			return 0, err
		}
		f.stream, f.tail = s, err
	}
	n, err := f.stream.Read(b)
	if err == io.EOF && f.tail != nil {
		err = f.tail
	}
	return n, err
}

func (f *qnxFile) Close() error {
	f.stream = nil
	return nil
}

// qnxDir implements fs.File and fs.ReadDirFile for directories. Like
// qnxFile, damage to the directory's extents comes back with the entries
// that could still be read.
type qnxDir struct {
	fs      *FS
	inode   *Inode
	name    string
	entries []fs.DirEntry
	offset  int
	tail    error
}

func (d *qnxDir) Stat() (fs.FileInfo, error) {
	return &qnxFileInfo{inode: d.inode, name: d.name}, nil
}

func (d *qnxDir) Read(b []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *qnxDir) Close() error {
	d.entries = nil
	return nil
}

func (d *qnxDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		raw, err := d.fs.ReadDirEntries(d.inode)
		if err != nil && len(raw) == 0 {
			return nil, err
		}
		d.tail = err

		d.entries = make([]fs.DirEntry, 0, len(raw))
		for _, e := range raw {
			if e.Name == "." || e.Name == ".." || e.Name == "/" {
				continue
			}
			d.entries = append(d.entries, &qnxDirEntry{fs: d.fs, entry: e})
		}
	}

	if n <= 0 {
		entries := d.entries[d.offset:]
		d.offset = len(d.entries)
		return entries, d.tail
	}

	if d.offset >= len(d.entries) {
		if d.tail != nil {
			return nil, d.tail
		}
		return nil, io.EOF
	}

	end := d.offset + n
	if end > len(d.entries) {
		end = len(d.entries)
	}

	entries := d.entries[d.offset:end]
	d.offset = end
	return entries, nil
}

// qnxDirEntry implements fs.DirEntry. Type information comes from the
// inode table, not from the entry itself.
type qnxDirEntry struct {
	fs    *FS
	entry DirEntry
	inode *Inode
}

func (e *qnxDirEntry) Name() string { return e.entry.Name }

func (e *qnxDirEntry) resolve() (*Inode, error) {
	if e.inode == nil {
		ino, err := e.fs.Inode(e.entry.Inode)
		if err != nil {
			return nil, err
		}
		e.inode = ino
	}
	return e.inode, nil
}

func (e *qnxDirEntry) IsDir() bool {
	ino, err := e.resolve()
	return err == nil && ino.IsDir()
}

func (e *qnxDirEntry) Type() fs.FileMode {
	ino, err := e.resolve()
	if err != nil {
		return fs.ModeIrregular
	}
	return ino.FileMode().Type()
}

func (e *qnxDirEntry) Info() (fs.FileInfo, error) {
	ino, err := e.resolve()
	if err != nil {
		return nil, err
	}
	return &qnxFileInfo{inode: ino, name: e.entry.Name}, nil
}

// qnxFileInfo implements fs.FileInfo and fsys.FileInfo
type qnxFileInfo struct {
	inode *Inode
	name  string
}

func (i *qnxFileInfo) Name() string       { return i.name }
func (i *qnxFileInfo) Size() int64        { return int64(i.inode.Size) }
func (i *qnxFileInfo) Mode() fs.FileMode  { return i.inode.FileMode() }
func (i *qnxFileInfo) ModTime() time.Time { return i.inode.MTime }
func (i *qnxFileInfo) IsDir() bool        { return i.inode.IsDir() }
func (i *qnxFileInfo) Sys() any           { return i.inode }
func (i *qnxFileInfo) Inode() uint64      { return uint64(i.inode.Number) }
