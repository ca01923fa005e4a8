package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
)

// TreeOptions controls tree behavior
type TreeOptions struct {
	All bool // Include dot files (-a)
}

// Tree prints the rebuilt directory hierarchy, marking damaged entries,
// followed by a summary line.
func Tree(ctx context.Context, vol *qnx4.FS, out io.Writer, opts TreeOptions) error {
	tree, err := vol.Scan(ctx)
	if err != nil {
		return err
	}

	err = tree.Root.Walk(func(n *qnx4.PathNode) error {
		if n != tree.Root && !opts.All && hidden(n.Name) {
			return fs.SkipDir
		}
		depth := 0
		if n != tree.Root {
			depth = strings.Count(n.Path, "/")
		}

		name := n.Name
		switch n.Kind {
		case qnx4.KindDir:
			if n != tree.Root {
				name += "/"
			}
		case qnx4.KindSymlink:
			name += "@"
		default:
			name = fmt.Sprintf("%s (%d)", name, n.Size)
		}
		if n.Err != nil {
			name += "  !! " + n.Err.Error()
		}
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), name)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d directories, %d files, %d damaged\n", tree.Dirs, tree.Files, len(tree.Errors))
	return nil
}
