package qnx4

import (
	"fmt"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// DirEntry is one active slot of a directory.
type DirEntry struct {
	Name   string
	Inode  uint32 // Inode the entry names
	Status uint8
	Link   bool // The entry points at an inode stored elsewhere

	// Snapshot is the inode record embedded in a non-link entry, as read
	// while scanning the directory. Inode is authoritative; this is only
	// a hint for listings.
	Snapshot *Inode
}

// ReadDirEntries returns the active entries of dir in on-disk order.
// Unused and deleted slots are skipped. If the directory's extent chain
// is truncated, the entries found in the available blocks are returned
// along with the error.
func (f *FS) ReadDirEntries(dir *Inode) ([]DirEntry, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("inode %d: not a directory", dir.Number)
	}

	extents, chainErr := f.ResolveExtents(dir)
	if chainErr != nil && !Partial(chainErr) {
		return nil, chainErr
	}

	// Only slots inside the declared size are directory entries.
	slots := dir.Size / InodeSize
	if dir.Size%InodeSize != 0 {
		slots++
	}

	var entries []DirEntry
	var slot uint64
	for _, e := range extents {
		for b := uint64(0); b < uint64(e.Length) && slot < slots; b++ {
			block := uint64(e.Block) + b
			data, err := f.blocks.readBlocks(block, 1)
			if err != nil {
				return entries, fmt.Errorf("directory inode %d: %w", dir.Number, err)
			}
			for i := 0; i < InodesPerBlock && slot < slots; i, slot = i+1, slot+1 {
				rec := data[i*InodeSize : (i+1)*InodeSize]
				if entry, ok := f.decodeDirEntry(uint32(block)*InodesPerBlock+uint32(i), rec); ok {
					entries = append(entries, entry)
				}
			}
		}
	}
	return entries, chainErr
}

// decodeDirEntry parses one 64-byte directory slot stored at inode
// number n. ok is false for unused and deleted slots. A link entry with
// an impossible target keeps its name and gets inode 0, which fails to
// decode later and is reported against that name.
func (f *FS) decodeDirEntry(n uint32, rec []byte) (entry DirEntry, ok bool) {
	status := rec[InodeSize-1]
	if rec[0] == 0 || status&(StatusUsed|StatusLink) == 0 {
		return DirEntry{}, false
	}

	if status&StatusLink == 0 {
		snap := decodeInode(n, rec)
		return DirEntry{Name: snap.Name, Inode: n, Status: status, Snapshot: snap}, true
	}

	entry = DirEntry{Name: cstring(rec[:linkNameMax]), Status: status, Link: true}
	inodeBlk := le32(rec, 0x30)
	inodeNdx := rec[0x34]
	if inodeBlk != 0 && inodeNdx < InodesPerBlock {
		entry.Inode = (inodeBlk-1)*InodesPerBlock + uint32(inodeNdx)
	}
	if lfnBlk := le32(rec, 0x35); lfnBlk != 0 {
		long, err := f.readLongName(lfnBlk)
		if err != nil {
			logger.Warn("entry %q: %v", entry.Name, err)
		} else if long != "" {
			entry.Name = long
		}
	}
	return entry, true
}

// readLongName returns the name stored in the long file name block at
// the on-disk pointer ptr.
func (f *FS) readLongName(ptr uint32) (string, error) {
	data, err := f.blocks.readBlocks(uint64(ptr)-1, 1)
	if err != nil {
		return "", fmt.Errorf("long file name block %d: %w", ptr-1, err)
	}
	return cstring(data[:longNameMax]), nil
}
