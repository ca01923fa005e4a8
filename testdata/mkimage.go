//go:build ignore

// mkimage writes sample images for trying out qnx4x by hand:
//
//	testdata/qnx4.img      bare volume
//	testdata/qnx4-mbr.img  the same volume in an MBR partition of type 0x4D
//
// Run it from the repository root with "go run testdata/mkimage.go".
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/fsys/qnx4/qnx4test"
)

func main() {
	img := build()
	if err := os.WriteFile("testdata/qnx4.img", img.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "qnx4.img: %v\n", err)
		os.Exit(1)
	}
	disk := qnx4test.WithMBR(img.Bytes(), 2048, 0x4D)
	if err := os.WriteFile("testdata/qnx4-mbr.img", disk, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "qnx4-mbr.img: %v\n", err)
		os.Exit(1)
	}
}

func build() *qnx4test.Image {
	img := qnx4test.New(8192) // 4MB
	img.PerXblk = 4

	root := uint32(qnx4test.RootInode)
	img.AddFile(root, ".bitmap", make([]byte, 1024))

	etc := img.Mkdir(root, "etc")
	img.AddFile(etc, "rc.local", []byte("#!/bin/sh\nslay -f io-audio\nio-audio -d mygig &\n"))
	img.AddFile(etc, "version", []byte("MY GIG RHB 4.25\n"))
	img.AddSymlink(etc, "motd", "version")

	bin := img.Mkdir(root, "bin")
	img.AddFile(bin, "sh", bytes.Repeat([]byte{0x7F, 'E', 'L', 'F'}, 3000))

	maps := img.Mkdir(root, "maps")
	var runs []int
	for i := 0; i < 20; i++ {
		runs = append(runs, 1+i%3)
	}
	img.AddFragmented(maps, "region.dat", bytes.Repeat([]byte("NAVTEQ"), 3000), runs)

	// A file whose extent chain stops short of its size.
	broken, _ := img.AddFragmented(maps, "broken.dat", bytes.Repeat([]byte{0xEE}, 3*512), []int{1, 2})
	binary.LittleEndian.PutUint32(img.Raw(broken)[0x10:], 6*512)
	binary.LittleEndian.PutUint16(img.Raw(broken)[0x30:], 4)

	// A directory that links back to its parent under another name.
	music := img.Mkdir(root, "music")
	track := img.AddFile(music, "track01.mp3", make([]byte, 700))
	img.AddLink(music, strings.Repeat("long_track_name_", 4)+".mp3", track)
	img.AddLink(music, "loop", music)

	return img
}
