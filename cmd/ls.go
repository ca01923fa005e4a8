// Package cmd implements the qnx4x commands.
package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys"
)

// LsOptions controls ls behavior
type LsOptions struct {
	Long bool // Long format (-l)
	All  bool // Show dot files such as .inodes and .bitmap (-a)
}

// Ls lists the contents of a path in the filesystem.
// If the path is a file, it shows file information.
// If the path is a directory, it lists its contents.
func Ls(filesystem fsys.FS, fsPath string, out io.Writer, opts LsOptions) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(filesystem, fsPath)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return listDirectory(filesystem, fsPath, out, opts)
	}
	if opts.Long {
		printLongFormat(info, out)
	} else {
		fmt.Fprintln(out, info.Name())
	}
	return nil
}

// normalizePath turns a user-supplied path into an fs.FS path.
func normalizePath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" {
		return "."
	}
	return p
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// listDirectory prints whatever entries could be read. A damaged
// directory is still listed, and the damage is returned afterwards.
func listDirectory(filesystem fsys.FS, dirPath string, out io.Writer, opts LsOptions) error {
	entries, err := fs.ReadDir(filesystem, dirPath)
	if err != nil && len(entries) == 0 {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if !opts.All && hidden(name) {
			continue
		}

		if !opts.Long {
			if entry.IsDir() {
				name += "/"
			}
			fmt.Fprintln(out, name)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(out, "%8s %-10s %12s %s %s  (%v)\n", "?", "??????????", "?", "????????????", name, err)
			continue
		}
		printLongFormat(info, out)
	}
	return err
}

func printLongFormat(info fs.FileInfo, out io.Writer) {
	var inode string
	if fi, ok := info.(fsys.FileInfo); ok {
		inode = fmt.Sprintf("%8d ", fi.Inode())
	}
	fmt.Fprintf(out, "%s%s %12d %s %s\n", inode, info.Mode(), info.Size(), info.ModTime().Format("Jan _2  2006"), info.Name())
}
