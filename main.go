// qnx4x - Recover files from QNX4 filesystem images
//
// Usage:
//
//	qnx4x [-p N] [-log level] <image> info
//	qnx4x [-p N] [-log level] <image> ls [-l] [-a] [path]
//	qnx4x [-p N] [-log level] <image> tree [-a]
//	qnx4x [-p N] [-log level] <image> cat <path>
//	qnx4x [-p N] [-log level] <image> stat <path>
//	qnx4x [-p N] [-log level] <image> extract [-o dir] [-j N] [path...]
//	qnx4x [-p N] [-log level] <image> sum [-j N] [path...]
//
// The image may be a bare QNX4 volume or a disk with an MBR, in which
// case the first QNX4 partition is used unless -p selects another.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/cmd"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/config"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/detect"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/part"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/source"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "qnx4x: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Load()

	global := flag.NewFlagSet("qnx4x", flag.ContinueOnError)
	global.SetOutput(stderr)
	partition := global.Int("p", cfg.Partition, "MBR partition slot to open (-1 for the first QNX4 one)")
	level := global.String("log", cfg.LogLevel.String(), "log level: debug, info, warn, error")
	retries := global.Int("retries", cfg.ReadRetries, "extra attempts after a failed read")
	noMmap := global.Bool("no-mmap", !cfg.Mmap, "read the image with pread instead of mapping it")
	serial := global.Bool("serial", cfg.Serial, "issue one read at a time")
	if err := global.Parse(args); err != nil {
		return err
	}

	logger.SetOutput(stderr)
	logger.SetLevel(config.ParseLogLevel(*level))

	if global.NArg() < 2 {
		return fmt.Errorf("usage: qnx4x [options] <image> <command> [options] [path]")
	}
	imagePath := global.Arg(0)
	command := global.Arg(1)
	cmdArgs := global.Args()[2:]

	src, err := source.Open(imagePath, source.Options{
		Mmap:       !*noMmap,
		Serial:     *serial,
		Retries:    *retries,
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	vol, p, err := openVolume(src, src.Size(), *partition)
	if err != nil {
		return fmt.Errorf("opening filesystem: %w", err)
	}
	defer vol.Close()

	switch command {
	case "info":
		return cmd.Info(ctx, vol, p, stdout)
	case "ls":
		return runLs(vol, cmdArgs, stdout)
	case "tree":
		return runTree(ctx, vol, cmdArgs, stdout)
	case "cat":
		return runCat(vol, cmdArgs, stdout)
	case "stat":
		return runStat(vol, cmdArgs, stdout)
	case "extract":
		return runExtract(ctx, vol, cmdArgs, stdout, cfg.Workers)
	case "sum":
		return runSum(ctx, vol, cmdArgs, stdout, cfg.Workers)
	default:
		return fmt.Errorf("unknown command: %s (use info, ls, tree, cat, stat, extract or sum)", command)
	}
}

// openVolume finds the QNX4 volume in r, looking inside an MBR if
// there is one. The partition is nil for a bare volume.
func openVolume(r io.ReaderAt, size int64, index int) (*qnx4.FS, *part.Partition, error) {
	kind, err := detect.Detect(r, size)
	if err != nil {
		return nil, nil, fmt.Errorf("detecting image type: %w", err)
	}
	logger.Debug("image type %s", kind)

	if kind == detect.QNX4 {
		vol, err := qnx4.Open(r, size)
		return vol, nil, err
	}
	if !kind.IsPartitionTable() {
		return nil, nil, qnx4.ErrNotThisFilesystem
	}

	parts, err := part.Parse(r, size)
	if err != nil {
		return nil, nil, err
	}
	p, err := part.FindQNX(parts, index)
	if err != nil {
		return nil, nil, err
	}
	if !p.IsQNX() {
		logger.Warn("partition %s has type %#02x, trying QNX4 anyway", p.Name, p.Type)
	}
	section := p.Section(r)
	vol, err := qnx4.Open(section, section.Size())
	return vol, p, err
}

func runLs(vol *qnx4.FS, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	long := fs.Bool("l", false, "use long listing format")
	all := fs.Bool("a", false, "show dot files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := "."
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	return cmd.Ls(vol, path, out, cmd.LsOptions{Long: *long, All: *all})
}

func runTree(ctx context.Context, vol *qnx4.FS, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	all := fs.Bool("a", false, "show dot files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return cmd.Tree(ctx, vol, out, cmd.TreeOptions{All: *all})
}

func runCat(vol *qnx4.FS, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("cat requires a path argument")
	}
	return cmd.Cat(vol, args[0], out)
}

func runStat(vol *qnx4.FS, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("stat requires a path argument")
	}
	return cmd.Stat(vol, args[0], out)
}

func runExtract(ctx context.Context, vol *qnx4.FS, args []string, out io.Writer, workers int) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	dir := fs.String("o", ".", "output directory")
	jobs := fs.Int("j", workers, "files to extract in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sum, err := cmd.Extract(ctx, vol, fs.Args(), out, cmd.ExtractOptions{Dir: *dir, Workers: *jobs})
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return errors.New("some files could not be recovered")
	}
	return nil
}

func runSum(ctx context.Context, vol *qnx4.FS, args []string, out io.Writer, workers int) error {
	fs := flag.NewFlagSet("sum", flag.ContinueOnError)
	jobs := fs.Int("j", workers, "files to hash in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, err := cmd.Sum(ctx, vol, fs.Args(), out, *jobs)
	return err
}
