package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// Digest is the checksum of one recovered file.
type Digest struct {
	Path    string
	Sum     string // BLAKE2b-256, hex
	Bytes   int64
	Partial bool
	Err     error // Set when no digest could be taken
}

// Sum prints a BLAKE2b-256 digest for every regular file below paths
// (the whole volume when empty), in tree order. Digests of damaged
// files cover the bytes that could be recovered and are flagged.
func Sum(ctx context.Context, vol *qnx4.FS, paths []string, out io.Writer, workers int) ([]Digest, error) {
	tree, err := vol.Scan(ctx)
	if err != nil {
		return nil, err
	}
	roots, err := selectNodes(tree, paths)
	if err != nil {
		return nil, err
	}

	var nodes []*qnx4.PathNode
	for _, root := range roots {
		root.Walk(func(n *qnx4.PathNode) error {
			if n.Kind == qnx4.KindFile {
				nodes = append(nodes, n)
			}
			return nil
		})
	}

	digests := make([]Digest, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i, n := range nodes {
		g.Go(func() error {
			d := Digest{Path: n.Path}
			d.Sum, d.Bytes, d.Err = digest(gctx, vol, n)
			if d.Err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			if qnx4.Partial(d.Err) && d.Sum != "" {
				logger.Warn("%s: digest covers %d of %d bytes: %v", n.Path, d.Bytes, n.Size, d.Err)
				d.Partial, d.Err = true, nil
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, d := range digests {
		switch {
		case d.Err != nil:
			logger.Error("%s: %v", d.Path, d.Err)
			fmt.Fprintf(out, "%-64s  %s\n", "FAILED", d.Path)
		case d.Partial:
			fmt.Fprintf(out, "%s  %s (partial)\n", d.Sum, d.Path)
		default:
			fmt.Fprintf(out, "%s  %s\n", d.Sum, d.Path)
		}
	}
	return digests, nil
}

// digest hashes one file. A partial stream still yields a sum,
// returned together with the damage.
func digest(ctx context.Context, vol *qnx4.FS, n *qnx4.PathNode) (string, int64, error) {
	if n.Err != nil {
		return "", 0, n.Err
	}
	ino, err := vol.Inode(n.Inode)
	if err != nil {
		return "", 0, err
	}
	stream, serr := vol.OpenFile(ctx, ino)
	if stream == nil {
		return "", 0, serr
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, err
	}
	written, err := io.Copy(h, stream)
	if err != nil {
		return "", written, err
	}
	return hex.EncodeToString(h.Sum(nil)), written, serr
}
