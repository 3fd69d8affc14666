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

// Package v6fstest builds xv6-style filesystem images in memory for tests.
// It is a minimal mkfs: it lays out the metadata regions, hands out data
// blocks from a bump allocator, and writes raw records, without enforcing
// any consistency. Tests corrupt the result at will.
package v6fstest

import (
	"encoding/binary"
	"fmt"

	"github.com/xv6fs/fcheck/pkg/v6fs"
)

// Builder accumulates an in-memory filesystem image.
type Builder struct {
	sb     v6fs.SuperBlock
	layout v6fs.Layout
	bytes  []byte

	// nextData is the bump allocator position for AllocBlock.
	nextData uint32
}

// New returns a Builder for an image with the given superblock geometry.
// The metadata blocks (boot, superblock, inode table, bitmap) are marked in
// the allocation bitmap, as mkfs does.
func New(size, nblocks, ninodes uint32) *Builder {
	b := &Builder{
		sb:    v6fs.SuperBlock{Size: size, Nblocks: nblocks, Ninodes: ninodes},
		bytes: make([]byte, uint64(size)*v6fs.BlockSize),
	}
	b.layout = v6fs.ComputeLayout(b.sb)
	b.nextData = b.layout.FirstDataBlock

	off := v6fs.SuperBlockNum * v6fs.BlockSize
	binary.LittleEndian.PutUint32(b.bytes[off:], b.sb.Size)
	binary.LittleEndian.PutUint32(b.bytes[off+4:], b.sb.Nblocks)
	binary.LittleEndian.PutUint32(b.bytes[off+8:], b.sb.Ninodes)

	for addr := uint32(0); addr < b.layout.FirstDataBlock; addr++ {
		b.MarkBlock(addr)
	}
	return b
}

// Bytes returns the image contents. The slice aliases the builder's buffer,
// so later mutations are visible through it.
func (b *Builder) Bytes() []byte {
	return b.bytes
}

// Layout returns the computed layout of the image under construction.
func (b *Builder) Layout() v6fs.Layout {
	return b.layout
}

// AllocBlock hands out the next unused data block and marks it in the
// bitmap.
func (b *Builder) AllocBlock() uint32 {
	addr := b.nextData
	if addr >= b.sb.Size {
		panic(fmt.Sprintf("image full: %d blocks", b.sb.Size))
	}
	b.nextData++
	b.MarkBlock(addr)
	return addr
}

// MarkBlock sets the allocation bitmap bit for addr.
func (b *Builder) MarkBlock(addr uint32) {
	off := uint64(b.layout.BitmapBase)*v6fs.BlockSize + uint64(addr/8)
	b.bytes[off] |= 1 << (addr % 8)
}

// ClearBlock clears the allocation bitmap bit for addr.
func (b *Builder) ClearBlock(addr uint32) {
	off := uint64(b.layout.BitmapBase)*v6fs.BlockSize + uint64(addr/8)
	b.bytes[off] &^= 1 << (addr % 8)
}

// SetInode writes the on-disk record for inode inum.
func (b *Builder) SetInode(inum uint32, in v6fs.Dinode) {
	off := uint64(b.layout.InodeBase)*v6fs.BlockSize + uint64(inum)*v6fs.InodeSize
	binary.LittleEndian.PutUint16(b.bytes[off:], uint16(in.Type))
	binary.LittleEndian.PutUint16(b.bytes[off+2:], uint16(in.Major))
	binary.LittleEndian.PutUint16(b.bytes[off+4:], uint16(in.Minor))
	binary.LittleEndian.PutUint16(b.bytes[off+6:], uint16(in.Nlink))
	binary.LittleEndian.PutUint32(b.bytes[off+8:], in.Size)
	for i, addr := range in.Addrs {
		binary.LittleEndian.PutUint32(b.bytes[off+12+uint64(4*i):], addr)
	}
}

// InodeAt reads back the on-disk record for inode inum.
func (b *Builder) InodeAt(inum uint32) v6fs.Dinode {
	off := uint64(b.layout.InodeBase)*v6fs.BlockSize + uint64(inum)*v6fs.InodeSize
	var in v6fs.Dinode
	in.Type = int16(binary.LittleEndian.Uint16(b.bytes[off:]))
	in.Major = int16(binary.LittleEndian.Uint16(b.bytes[off+2:]))
	in.Minor = int16(binary.LittleEndian.Uint16(b.bytes[off+4:]))
	in.Nlink = int16(binary.LittleEndian.Uint16(b.bytes[off+6:]))
	in.Size = binary.LittleEndian.Uint32(b.bytes[off+8:])
	for i := range in.Addrs {
		in.Addrs[i] = binary.LittleEndian.Uint32(b.bytes[off+12+uint64(4*i):])
	}
	return in
}

// PutDirent writes a directory entry into the given slot of the data block
// at addr.
func (b *Builder) PutDirent(addr uint32, slot int, inum uint16, name string) {
	if len(name) > v6fs.DirSize {
		panic(fmt.Sprintf("name %q exceeds %d bytes", name, v6fs.DirSize))
	}
	off := uint64(addr)*v6fs.BlockSize + uint64(slot)*v6fs.DirentSize
	binary.LittleEndian.PutUint16(b.bytes[off:], inum)
	nameField := b.bytes[off+2 : off+2+v6fs.DirSize]
	for i := range nameField {
		nameField[i] = 0
	}
	copy(nameField, name)
}

// SetIndirect fills the block at addr with the given address list, zero
// padded to NIndirect slots.
func (b *Builder) SetIndirect(addr uint32, targets ...uint32) {
	if len(targets) > v6fs.NIndirect {
		panic(fmt.Sprintf("%d targets exceed indirect capacity %d", len(targets), v6fs.NIndirect))
	}
	off := uint64(addr) * v6fs.BlockSize
	for i, t := range targets {
		binary.LittleEndian.PutUint32(b.bytes[off+uint64(4*i):], t)
	}
}

// MakeDir initializes inum as a directory with a freshly allocated data
// block holding its "." and ".." entries, and returns the block address.
func (b *Builder) MakeDir(inum, parent uint32) uint32 {
	addr := b.AllocBlock()
	b.SetInode(inum, v6fs.Dinode{
		Type:  v6fs.TypeDir,
		Nlink: 1,
		Size:  v6fs.BlockSize,
		Addrs: [v6fs.NDirect + 1]uint32{addr},
	})
	b.PutDirent(addr, 0, uint16(inum), ".")
	b.PutDirent(addr, 1, uint16(parent), "..")
	return addr
}

// AddEntry appends an entry to the first free slot in the directory's first
// data block.
func (b *Builder) AddEntry(dir uint32, name string, target uint32) {
	in := b.InodeAt(dir)
	addr := in.Addrs[0]
	for slot := 0; slot < v6fs.DirentsPerBlock; slot++ {
		off := uint64(addr)*v6fs.BlockSize + uint64(slot)*v6fs.DirentSize
		if binary.LittleEndian.Uint16(b.bytes[off:]) == 0 && b.bytes[off+2] == 0 {
			b.PutDirent(addr, slot, uint16(target), name)
			return
		}
	}
	panic(fmt.Sprintf("directory %d block %d is full", dir, addr))
}
