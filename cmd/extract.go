package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// ExtractOptions controls extract behavior
type ExtractOptions struct {
	Dir     string // Output directory (-o)
	Workers int    // Files copied in parallel (-j)
}

// Summary counts the outcome of an extract or sum run.
type Summary struct {
	Dirs    int
	Files   int
	Bytes   int64
	Partial int // Files written short of their declared size
	Failed  int // Files or directories that could not be recovered at all
	Skipped int // Special files
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d directories, %d files (%d bytes), %d partial, %d failed, %d skipped",
		s.Dirs, s.Files, s.Bytes, s.Partial, s.Failed, s.Skipped)
}

// Extract copies the subtrees at paths (the whole volume when empty)
// under opts.Dir. Damage to one file is logged and counted; only a
// cancelled context stops the run.
func Extract(ctx context.Context, vol *qnx4.FS, paths []string, out io.Writer, opts ExtractOptions) (*Summary, error) {
	tree, err := vol.Scan(ctx)
	if err != nil {
		return nil, err
	}
	roots, err := selectNodes(tree, paths)
	if err != nil {
		return nil, err
	}

	var files []*qnx4.PathNode
	sum := &Summary{}
	for _, root := range roots {
		root.Walk(func(n *qnx4.PathNode) error {
			switch {
			case n.IsDir():
				target, err := outputPath(opts.Dir, n.Path)
				if err == nil {
					err = os.MkdirAll(target, 0o755)
				}
				if err != nil {
					logger.Error("%s: %v", n.Path, err)
					sum.Failed++
					return fs.SkipDir
				}
				sum.Dirs++
				if n.Err != nil {
					logger.Warn("%s: directory incomplete: %v", n.Path, n.Err)
				}
			case n.Kind == qnx4.KindSpecial:
				sum.Skipped++
			default:
				files = append(files, n)
			}
			return nil
		})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Workers))
	for _, n := range files {
		g.Go(func() error {
			written, err := extractOne(gctx, vol, opts.Dir, n)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sum.Files++
			case gctx.Err() != nil:
				return gctx.Err()
			case qnx4.Partial(err) && written > 0:
				logger.Warn("%s: recovered %d of %d bytes: %v", n.Path, written, n.Size, err)
				sum.Files++
				sum.Partial++
			default:
				logger.Error("%s: %v", n.Path, err)
				sum.Failed++
			}
			sum.Bytes += written
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	fmt.Fprintln(out, sum)
	return sum, nil
}

// extractOne writes one file or symlink and returns the bytes written.
func extractOne(ctx context.Context, vol *qnx4.FS, dir string, n *qnx4.PathNode) (int64, error) {
	if n.Err != nil {
		return 0, n.Err
	}
	target, err := outputPath(dir, n.Path)
	if err != nil {
		return 0, err
	}
	ino, err := vol.Inode(n.Inode)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	if n.Kind == qnx4.KindSymlink {
		link, err := vol.Readlink(strings.TrimPrefix(n.Path, "/"))
		if err != nil {
			return 0, err
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("%s: removing old %s: %v", n.Path, target, err)
		}
		return 0, os.Symlink(link, target)
	}

	stream, serr := vol.OpenFile(ctx, ino)
	if stream == nil {
		return 0, serr
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, ino.FileMode().Perm())
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(f, stream)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, err
	}
	if err := os.Chtimes(target, ino.ATime, ino.MTime); err != nil {
		logger.Warn("%s: times not restored: %v", n.Path, err)
	}
	return written, serr
}

// outputPath maps a volume path to a path under dir, refusing anything
// that would land outside it.
func outputPath(dir, volPath string) (string, error) {
	rel := strings.TrimPrefix(volPath, "/")
	if rel == "" {
		return dir, nil
	}
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("unsafe path %q", volPath)
	}
	return filepath.Join(dir, rel), nil
}

// selectNodes returns the nodes at paths, or the root when paths is empty.
func selectNodes(tree *qnx4.Tree, paths []string) ([]*qnx4.PathNode, error) {
	if len(paths) == 0 {
		return []*qnx4.PathNode{tree.Root}, nil
	}
	var nodes []*qnx4.PathNode
	for _, p := range paths {
		n := tree.Root.Find(p)
		if n == nil {
			return nil, &fs.PathError{Op: "find", Path: p, Err: fs.ErrNotExist}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
