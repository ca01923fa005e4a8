package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/part"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
)

// Info prints the volume parameters and a scan summary. p is the
// partition the volume was found in, nil for a bare volume.
func Info(ctx context.Context, vol *qnx4.FS, p *part.Partition, out io.Writer) error {
	sb := vol.Superblock()

	fmt.Fprintf(out, "Filesystem: %s\n", vol.Type())
	if p != nil {
		fmt.Fprintf(out, "Partition:  %s\n", p)
	}
	fmt.Fprintf(out, "Block size: %d\n", sb.BlockSize)
	fmt.Fprintf(out, "Blocks:     %d\n", sb.TotalBlocks)
	fmt.Fprintf(out, "Root inode: %d (extent %v)\n", sb.RootInode, sb.Root.Inline[0])

	tree, err := vol.Scan(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Dirs:       %d\n", tree.Dirs)
	fmt.Fprintf(out, "Files:      %d\n", tree.Files)
	fmt.Fprintf(out, "Damaged:    %d\n", len(tree.Errors))
	return nil
}
