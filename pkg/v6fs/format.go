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

package v6fs

import (
	"bytes"
	"encoding/binary"
)

// On-disk layout constants. All on-disk structures are little endian.
const (
	// BlockSize is the fixed block size in bytes.
	BlockSize = 512

	// NDirect is the number of direct address slots in an inode.
	NDirect = 12

	// NIndirect is the number of address slots in an indirect block.
	NIndirect = BlockSize / 4

	// DirSize is the fixed width of a directory entry name.
	DirSize = 14

	// SuperBlockNum is the block holding the superblock. Block 0 is
	// reserved and never referenced.
	SuperBlockNum = 1

	// RootInum is the inode number of the root directory.
	RootInum = 1
)

// Sizes of on-disk structures in bytes.
const (
	SuperBlockSize = 12
	InodeSize      = 64
	DirentSize     = 16
)

// Derived per-block packing factors.
const (
	InodesPerBlock  = BlockSize / InodeSize
	DirentsPerBlock = BlockSize / DirentSize
	BitsPerBlock    = BlockSize * 8
)

// Inode types.
const (
	TypeFree int16 = 0
	TypeDir  int16 = 1
	TypeFile int16 = 2
	TypeDev  int16 = 3
)

// SuperBlock represents the on-disk superblock.
type SuperBlock struct {
	// Size is the total number of blocks in the filesystem, metadata
	// included.
	Size uint32

	// Nblocks is the number of data blocks.
	Nblocks uint32

	// Ninodes is the number of entries in the inode table.
	Ninodes uint32
}

func parseSuperBlock(b []byte) SuperBlock {
	return SuperBlock{
		Size:    binary.LittleEndian.Uint32(b[0:]),
		Nblocks: binary.LittleEndian.Uint32(b[4:]),
		Ninodes: binary.LittleEndian.Uint32(b[8:]),
	}
}

// Dinode represents an on-disk inode.
type Dinode struct {
	Type  int16
	Major int16
	Minor int16
	Nlink int16
	Size  uint32

	// Addrs holds the direct block addresses; the final slot is the
	// indirect block address. Zero means the slot is unused.
	Addrs [NDirect + 1]uint32
}

func parseInode(b []byte) Dinode {
	var in Dinode
	in.Type = int16(binary.LittleEndian.Uint16(b[0:]))
	in.Major = int16(binary.LittleEndian.Uint16(b[2:]))
	in.Minor = int16(binary.LittleEndian.Uint16(b[4:]))
	in.Nlink = int16(binary.LittleEndian.Uint16(b[6:]))
	in.Size = binary.LittleEndian.Uint32(b[8:])
	for i := range in.Addrs {
		in.Addrs[i] = binary.LittleEndian.Uint32(b[12+4*i:])
	}
	return in
}

// IsFree indicates whether the inode slot is unallocated.
func (in *Dinode) IsFree() bool {
	return in.Type == TypeFree
}

// IsDir indicates whether in represents a directory.
func (in *Dinode) IsDir() bool {
	return in.Type == TypeDir
}

// IsFile indicates whether in represents a regular file.
func (in *Dinode) IsFile() bool {
	return in.Type == TypeFile
}

// Indirect returns the indirect block address, or zero if unused.
func (in *Dinode) Indirect() uint32 {
	return in.Addrs[NDirect]
}

// Dirent represents an on-disk directory entry. An entry with Inum == 0 is
// an empty slot.
type Dirent struct {
	Inum uint16
	Name [DirSize]byte
}

func parseDirent(b []byte) Dirent {
	var d Dirent
	d.Inum = binary.LittleEndian.Uint16(b[0:])
	copy(d.Name[:], b[2:2+DirSize])
	return d
}

// NameString returns the entry name. The name field is fixed width and not
// necessarily NUL terminated; the returned string stops at the first NUL, if
// any, and never exceeds DirSize bytes.
func (d *Dirent) NameString() string {
	if n := bytes.IndexByte(d.Name[:], 0); n >= 0 {
		return string(d.Name[:n])
	}
	return string(d.Name[:])
}

// NameIs reports whether the entry name equals name, comparing at most
// DirSize bytes.
func (d *Dirent) NameIs(name string) bool {
	return d.NameString() == name
}

// Layout holds the block offsets of the image regions, derived from the
// superblock: block 0 reserved, block 1 superblock, then the inode table,
// the allocation bitmap, and the data region.
type Layout struct {
	// InodeBlocks is the number of blocks in the inode table.
	InodeBlocks uint32

	// BitmapBlocks is the number of blocks in the allocation bitmap.
	BitmapBlocks uint32

	// InodeBase is the first block of the inode table.
	InodeBase uint32

	// BitmapBase is the first block of the allocation bitmap.
	BitmapBase uint32

	// FirstDataBlock is the lowest valid data block address.
	FirstDataBlock uint32
}

// ComputeLayout derives the image layout from superblock fields. Pure
// computation; no validation beyond what the arithmetic itself implies.
//
// Region sizes follow mkfs: each region gets floor(count/per-block) blocks
// plus one more, so a region whose count divides evenly still carries a
// trailing spare block. The classic 1024/941/200 geometry places the inode
// table at blocks 2-27, the bitmap at 28, and the first data block at 29.
func ComputeLayout(sb SuperBlock) Layout {
	l := Layout{
		InodeBlocks:  sb.Ninodes/InodesPerBlock + 1,
		BitmapBlocks: sb.Size/BitsPerBlock + 1,
		InodeBase:    SuperBlockNum + 1,
	}
	l.BitmapBase = l.InodeBase + l.InodeBlocks
	l.FirstDataBlock = l.BitmapBase + l.BitmapBlocks
	return l
}
