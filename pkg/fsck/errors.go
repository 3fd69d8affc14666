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

package fsck

import "fmt"

// Kind identifies a class of consistency violation. Every Kind is fatal for
// the image being checked.
type Kind int

// The violation kinds, in the order the passes can detect them.
const (
	// BadInodeType: an allocated inode has a type tag outside the known
	// set.
	BadInodeType Kind = iota

	// BadDirectAddress: a direct address slot holds a block number
	// outside (0, size).
	BadDirectAddress

	// BadIndirectAddress: the indirect pointer, or an address inside the
	// indirect block, is outside (0, size).
	BadIndirectAddress

	// MissingRoot: inode 1 is not a directory.
	MissingRoot

	// MalformedDirectory: a directory lacks proper "." / ".." entries,
	// or holds an entry whose inode number is out of table range.
	MalformedDirectory

	// AddressNotInBitmap: a block used by an inode is marked free in the
	// allocation bitmap.
	AddressNotInBitmap

	// DuplicateBlockUse: a block is referenced by more than one
	// (inode, slot) pair.
	DuplicateBlockUse

	// InodeNotInAnyDirectory: an allocated inode is referenced by no
	// directory entry.
	InodeNotInAnyDirectory

	// DanglingDirectoryReference: a directory entry points at a free
	// inode.
	DanglingDirectoryReference

	// BadLinkCount: a file inode's nlink does not equal the number of
	// directory entries referencing it.
	BadLinkCount

	// DirectoryHardLinked: a directory is referenced by more than one
	// directory entry.
	DirectoryHardLinked

	// DirectoryCycle: the directory tree loops back to a directory that
	// is still being visited.
	DirectoryCycle

	// BlockNotInUse: the bitmap marks a data block in use but no inode
	// references it. Fatal only in strict bitmap mode.
	BlockNotInUse
)

// String returns the canonical diagnostic for the kind. The wording matches
// the diagnostics the original checker printed.
func (k Kind) String() string {
	switch k {
	case BadInodeType:
		return "bad inode"
	case BadDirectAddress:
		return "bad direct address in inode"
	case BadIndirectAddress:
		return "bad indirect address in inode"
	case MissingRoot:
		return "root directory does not exist"
	case MalformedDirectory:
		return "directory not properly formatted"
	case AddressNotInBitmap:
		return "address used by inode but marked free in bitmap"
	case DuplicateBlockUse:
		return "address used more than once"
	case InodeNotInAnyDirectory:
		return "inode marked use but not found in a directory"
	case DanglingDirectoryReference:
		return "inode referred to in directory but marked free"
	case BadLinkCount:
		return "bad reference count for file"
	case DirectoryHardLinked:
		return "directory appears more than once in file system"
	case DirectoryCycle:
		return "directory tree contains a cycle"
	case BlockNotInUse:
		return "bitmap marks block in use but it is not in use"
	default:
		return fmt.Sprintf("unknown violation (%d)", int(k))
	}
}

// Error is a single consistency violation.
type Error struct {
	// Kind is the violation class.
	Kind Kind

	// Inum is the inode involved, when meaningful.
	Inum uint32

	// Addr is the block address involved, when meaningful.
	Addr uint32
}

// Error implements error.Error.
func (e *Error) Error() string {
	s := e.Kind.String()
	switch {
	case e.Inum != 0 && e.Addr != 0:
		return fmt.Sprintf("%s (inode %d, block %d)", s, e.Inum, e.Addr)
	case e.Inum != 0:
		return fmt.Sprintf("%s (inode %d)", s, e.Inum)
	case e.Addr != 0:
		return fmt.Sprintf("%s (block %d)", s, e.Addr)
	default:
		return s
	}
}
