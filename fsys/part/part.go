// Package part reads MBR partition tables and picks out QNX partitions.
package part

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys"
)

// QNX partition types
const (
	TypeQNX4     = 0x4D // QNX4.x
	TypeQNX4Alt  = 0x4E // QNX4.x 2nd part
	TypeQNX4Alt2 = 0x4F // QNX4.x 3rd part
)

const sectorSize = 512

// ErrNoQNX is returned by FindQNX when no entry has a QNX type.
var ErrNoQNX = errors.New("no QNX4 partition in table")

// Partition represents a single partition entry
type Partition struct {
	Index    int    // Slot in the table (0-3)
	Name     string // Display name (e.g., "p0", "p1")
	Type     byte   // MBR partition type
	StartLBA uint64
	SizeLBA  uint64
	Bootable bool
}

// SizeBytes returns the partition size in bytes
func (p *Partition) SizeBytes() int64 {
	return int64(p.SizeLBA) * sectorSize
}

// StartOffset returns the starting byte offset
func (p *Partition) StartOffset() int64 {
	return int64(p.StartLBA) * sectorSize
}

// IsQNX reports whether the entry has one of the QNX4 partition types.
func (p *Partition) IsQNX() bool {
	return p.Type == TypeQNX4 || p.Type == TypeQNX4Alt || p.Type == TypeQNX4Alt2
}

// Section returns a reader over the partition's bytes of disk. Offsets
// of files found through it compose with the partition start when the
// reader is wrapped again.
func (p *Partition) Section(disk io.ReaderAt) *fsys.ExtentReaderAt {
	return fsys.Section(disk, p.StartOffset(), p.SizeBytes())
}

func (p *Partition) String() string {
	flag := ""
	if p.Bootable {
		flag = " (bootable)"
	}
	return fmt.Sprintf("%s type %#02x start %d size %s%s", p.Name, p.Type, p.StartLBA, formatSize(p.SizeBytes()), flag)
}

// Parse reads the four primary entries of the MBR at the start of r.
// Entries that are empty or extend past size are skipped.
func Parse(r io.ReaderAt, size int64) ([]*Partition, error) {
	header := make([]byte, sectorSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("reading MBR: %w", err)
	}

	if header[510] != 0x55 || header[511] != 0xAA {
		return nil, fmt.Errorf("invalid MBR signature")
	}

	var parts []*Partition
	for i := 0; i < 4; i++ {
		entry := header[446+i*16 : 446+(i+1)*16]

		partType := entry[4]
		if partType == 0 {
			continue // Empty entry
		}

		lbaStart := binary.LittleEndian.Uint32(entry[8:12])
		lbaSize := binary.LittleEndian.Uint32(entry[12:16])
		if lbaStart == 0 || lbaSize == 0 {
			continue
		}

		p := &Partition{
			Index:    i,
			Name:     fmt.Sprintf("p%d", i),
			Type:     partType,
			StartLBA: uint64(lbaStart),
			SizeLBA:  uint64(lbaSize),
			Bootable: entry[0] == 0x80,
		}
		if p.StartOffset()+p.SizeBytes() > size {
			continue
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// FindQNX returns the partition in slot index, or the first QNX one
// when index is negative.
func FindQNX(parts []*Partition, index int) (*Partition, error) {
	for _, p := range parts {
		if index >= 0 && p.Index == index {
			return p, nil
		}
		if index < 0 && p.IsQNX() {
			return p, nil
		}
	}
	if index >= 0 {
		return nil, fmt.Errorf("no partition in slot %d", index)
	}
	return nil, ErrNoQNX
}

// Table formats parts for display.
func Table(parts []*Partition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-6s %-6s %12s %10s %s\n", "NAME", "TYPE", "START", "SIZE", "FLAGS")
	for _, p := range parts {
		var flags []string
		if p.Bootable {
			flags = append(flags, "boot")
		}
		if p.IsQNX() {
			flags = append(flags, "qnx4")
		}
		fmt.Fprintf(&sb, "%-6s %#-6x %12d %10s %s\n", p.Name, p.Type, p.StartLBA, formatSize(p.SizeBytes()), strings.Join(flags, ","))
	}
	return sb.String()
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fG", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1fM", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1fK", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
