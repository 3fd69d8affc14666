// Copyright 2024 The fcheck Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package v6fs provides read-only access to xv6-style filesystem images.
//
// The design principle of this package is that it only provides access to
// the on-disk structures; it performs no consistency checking beyond the
// bounds of the mapping itself. The whole image is mapped via a read-only
// shared mapping and never mutated.
package v6fs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/xv6fs/fcheck/pkg/cleanup"
)

var (
	// ErrBadSuperBlock indicates superblock fields that are internally
	// inconsistent or inconsistent with the image size.
	ErrBadSuperBlock = errors.New("bad superblock")

	// ErrOutOfRange indicates an access outside the mapped image.
	ErrOutOfRange = errors.New("access out of image range")
)

// Image represents an open filesystem image.
type Image struct {
	src    *os.File
	bytes  []byte
	sb     SuperBlock
	layout Layout
}

// OpenImage returns an Image providing access to the contents of the image
// file src.
//
// On success, the ownership of src is transferred to Image.
func OpenImage(src *os.File) (*Image, error) {
	var cu cleanup.Cleanup
	defer cu.Clean()

	stat, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	bytes, err := unix.Mmap(int(src.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map image: %w", err)
	}
	cu.Add(func() { unix.Munmap(bytes) })

	i, err := NewImage(bytes)
	if err != nil {
		return nil, err
	}
	i.src = src
	cu.Release()
	return i, nil
}

// NewImage returns an Image backed by an in-memory byte buffer. The buffer
// is borrowed for the lifetime of the Image and must not be mutated.
func NewImage(bytes []byte) (*Image, error) {
	i := &Image{bytes: bytes}
	if err := i.initSuperBlock(); err != nil {
		return nil, err
	}
	return i, nil
}

// Close closes the image, releasing the mapping if one was established.
func (i *Image) Close() {
	if i.src != nil {
		unix.Munmap(i.bytes)
		i.src.Close()
		i.src = nil
	}
	i.bytes = nil
}

// initSuperBlock reads and sanity checks the superblock. The check rejects
// values that would let a caller size scratch state beyond the image itself;
// everything semantic is left to the caller.
func (i *Image) initSuperBlock() error {
	b, err := i.BytesAt(SuperBlockNum*BlockSize, SuperBlockSize)
	if err != nil {
		return fmt.Errorf("%w: image too small for superblock", ErrBadSuperBlock)
	}
	i.sb = parseSuperBlock(b)

	if i.sb.Ninodes == 0 {
		return fmt.Errorf("%w: no inodes", ErrBadSuperBlock)
	}
	if i.sb.Size <= i.sb.Nblocks {
		return fmt.Errorf("%w: total blocks %d not greater than data blocks %d", ErrBadSuperBlock, i.sb.Size, i.sb.Nblocks)
	}
	if uint64(i.sb.Size)*BlockSize > uint64(len(i.bytes)) {
		return fmt.Errorf("%w: claims %d blocks but image holds %d bytes", ErrBadSuperBlock, i.sb.Size, len(i.bytes))
	}

	i.layout = ComputeLayout(i.sb)
	if i.layout.FirstDataBlock >= i.sb.Size {
		return fmt.Errorf("%w: metadata overruns the image (%d metadata blocks of %d)", ErrBadSuperBlock, i.layout.FirstDataBlock, i.sb.Size)
	}
	return nil
}

// SuperBlock returns a copy of the image's superblock.
func (i *Image) SuperBlock() SuperBlock {
	return i.sb
}

// Layout returns the computed image layout.
func (i *Image) Layout() Layout {
	return i.layout
}

// Size returns the total block count of this image.
func (i *Image) Size() uint32 {
	return i.sb.Size
}

// Ninodes returns the inode count of this image.
func (i *Image) Ninodes() uint32 {
	return i.sb.Ninodes
}

// checkRange checks whether the range [off, off+n) is inside the image.
func (i *Image) checkRange(off, n uint64) bool {
	size := uint64(len(i.bytes))
	end := off + n
	return off < size && off <= end && end <= size
}

// BytesAt returns the bytes at [off, off+n) of the image.
func (i *Image) BytesAt(off, n uint64) ([]byte, error) {
	if ok := i.checkRange(off, n); !ok {
		return nil, fmt.Errorf("%w: [0x%x, 0x%x) of %d bytes", ErrOutOfRange, off, off+n, len(i.bytes))
	}
	return i.bytes[off : off+n], nil
}

// Block returns the bytes of the block at addr.
func (i *Image) Block(addr uint32) ([]byte, error) {
	return i.BytesAt(uint64(addr)*BlockSize, BlockSize)
}

// Inode returns the on-disk inode identified by inum.
func (i *Image) Inode(inum uint32) (Dinode, error) {
	if inum >= i.sb.Ninodes {
		return Dinode{}, fmt.Errorf("%w: inode %d of %d", ErrOutOfRange, inum, i.sb.Ninodes)
	}
	off := uint64(i.layout.InodeBase)*BlockSize + uint64(inum)*InodeSize
	b, err := i.BytesAt(off, InodeSize)
	if err != nil {
		return Dinode{}, err
	}
	return parseInode(b), nil
}

// BitmapBit returns whether the allocation bitmap claims the block at addr
// is in use. Bits are packed LSB first within each byte.
func (i *Image) BitmapBit(addr uint32) (bool, error) {
	if addr >= i.sb.Size {
		return false, fmt.Errorf("%w: bitmap bit %d of %d", ErrOutOfRange, addr, i.sb.Size)
	}
	off := uint64(i.layout.BitmapBase)*BlockSize + uint64(addr/8)
	b, err := i.BytesAt(off, 1)
	if err != nil {
		return false, err
	}
	return b[0]&(1<<(addr%8)) != 0, nil
}

// IndirectTargets returns the NIndirect addresses stored in the indirect
// block at addr.
func (i *Image) IndirectTargets(addr uint32) ([]uint32, error) {
	b, err := i.Block(addr)
	if err != nil {
		return nil, err
	}
	targets := make([]uint32, NIndirect)
	for j := range targets {
		targets[j] = binary.LittleEndian.Uint32(b[4*j:])
	}
	return targets, nil
}

// Dirents returns the DirentsPerBlock directory entries stored in the data
// block at addr. Empty slots (Inum == 0) are included.
func (i *Image) Dirents(addr uint32) ([]Dirent, error) {
	b, err := i.Block(addr)
	if err != nil {
		return nil, err
	}
	dirents := make([]Dirent, DirentsPerBlock)
	for j := range dirents {
		dirents[j] = parseDirent(b[j*DirentSize:])
	}
	return dirents, nil
}
