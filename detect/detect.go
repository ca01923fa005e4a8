// Package detect identifies what a disk image holds.
package detect

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4"
)

// Type represents an image type
type Type int

const (
	Unknown Type = iota
	QNX4         // Bare QNX4 volume
	MBR          // Master Boot Record partition table
)

func (t Type) String() string {
	switch t {
	case QNX4:
		return "QNX4"
	case MBR:
		return "MBR"
	default:
		return "unknown"
	}
}

// IsPartitionTable returns true if the type is a partition table format
func (t Type) IsPartitionTable() bool {
	return t == MBR
}

// Detect identifies the image type. A bare QNX4 volume wins over an MBR
// signature, since QNX boot loaders end their first block with one too.
func Detect(r io.ReaderAt, size int64) (Type, error) {
	header := make([]byte, 512)
	n, err := r.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return Unknown, fmt.Errorf("reading header: %w", err)
	}
	if n < 512 {
		return Unknown, fmt.Errorf("file too small: %d bytes", n)
	}

	if _, err := qnx4.Locate(r, size); err == nil {
		return QNX4, nil
	} else if !errors.Is(err, qnx4.ErrNotThisFilesystem) {
		return Unknown, err
	}

	if header[510] == 0x55 && header[511] == 0xAA && isMBRPartitionTable(header) {
		return MBR, nil
	}
	return Unknown, nil
}

// isMBRPartitionTable checks for at least one plausible primary entry.
func isMBRPartitionTable(header []byte) bool {
	for i := 0; i < 4; i++ {
		entry := header[446+i*16 : 446+(i+1)*16]

		// Boot flag must be 0x00 or 0x80
		if entry[0] != 0x00 && entry[0] != 0x80 {
			continue
		}
		if entry[4] == 0x00 {
			continue
		}
		lbaStart := binary.LittleEndian.Uint32(entry[8:12])
		lbaSize := binary.LittleEndian.Uint32(entry[12:16])
		if lbaStart > 0 && lbaSize > 0 {
			return true
		}
	}
	return false
}
