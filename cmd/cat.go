package cmd

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
)

// Cat copies the contents of a file to the given writer.
// When the filesystem supports extent mapping, it reads directly from
// the underlying image. A damaged file is written as far as it can be
// recovered and the damage is returned as the error.
func Cat(filesystem fsys.FS, fsPath string, out io.Writer) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(filesystem, fsPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", fsPath)
	}

	if em, ok := filesystem.(fsys.ExtentMapper); ok {
		if br, ok := filesystem.(interface{ BaseReader() io.ReaderAt }); ok {
			extents, err := em.FileExtents(fsPath)
			if err == nil {
				reader := fsys.NewExtentReaderAt(br.BaseReader(), extents, info.Size())
				_, err = io.Copy(out, io.NewSectionReader(reader, 0, info.Size()))
				return err
			}
		}
	}

	file, err := filesystem.Open(fsPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(out, file)
	return err
}

// Stat shows detailed information about a file or directory.
func Stat(vol *qnx4.FS, fsPath string, out io.Writer) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(vol, fsPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "   File: %s\n", info.Name())
	fmt.Fprintf(out, "   Size: %d\n", info.Size())
	fmt.Fprintf(out, "   Mode: %s\n", info.Mode())
	fmt.Fprintf(out, "ModTime: %s\n", info.ModTime())

	ino, ok := info.Sys().(*qnx4.Inode)
	if !ok {
		return nil
	}
	fmt.Fprintf(out, "  Inode: %d\n", ino.Number)
	fmt.Fprintf(out, "   Type: %s\n", ino.Type)
	fmt.Fprintf(out, "    UID: %d  GID: %d  Links: %d\n", ino.UID, ino.GID, ino.Nlink)
	fmt.Fprintf(out, " Status: %#02x\n", ino.Status)

	extents, err := vol.ResolveExtents(ino)
	fmt.Fprintf(out, "Extents: %d declared, %d found %v\n", ino.NumExtents, len(extents), extents)
	if err != nil {
		fmt.Fprintf(out, " Damage: %v\n", err)
	}
	return nil
}
