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

import (
	"github.com/xv6fs/fcheck/pkg/v6fs"
)

// walkFrame is one worklist item of the directory walk. A frame with exit
// set marks the point where its directory leaves the current path.
type walkFrame struct {
	inum uint32
	exit bool
}

// checkTree walks the directory tree from the root, accumulating how many
// directory entries reference each inode, then reconciles the counts
// against the inode table.
//
// The walk is an explicit depth-first worklist with a currently-visiting
// set, so a loop back to a directory still on the path is reported as
// DirectoryCycle rather than recursing forever. A directory reachable from
// two parents without a loop is walked once per parent; its children are
// counted again, and the directory itself ends up with more than one
// reference, which the reconciliation reports as DirectoryHardLinked.
func (c *Checker) checkTree() error {
	refs := make([]uint32, c.sb.Ninodes)

	// Root's own "." and ".." point at itself; credit them up front since
	// the walk skips both names.
	refs[v6fs.RootInum] += 2

	onPath := make(map[uint32]bool)
	stack := []walkFrame{{inum: v6fs.RootInum}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.exit {
			delete(onPath, f.inum)
			continue
		}
		if onPath[f.inum] {
			return &Error{Kind: DirectoryCycle, Inum: f.inum}
		}
		onPath[f.inum] = true
		stack = append(stack, walkFrame{inum: f.inum, exit: true})

		in, err := c.image.Inode(f.inum)
		if err != nil {
			return err
		}
		if !in.IsDir() {
			continue
		}

		walkBlock := func(addr uint32) error {
			if addr == 0 || addr >= c.sb.Size {
				// Out-of-range addresses are reported by the
				// inode sweep.
				return nil
			}
			dirents, err := c.image.Dirents(addr)
			if err != nil {
				return err
			}
			for _, de := range dirents {
				if de.Inum == 0 || de.NameIs(".") || de.NameIs("..") {
					continue
				}
				target := uint32(de.Inum)
				if target >= c.sb.Ninodes {
					return &Error{Kind: MalformedDirectory, Inum: f.inum, Addr: addr}
				}
				refs[target]++
				child, err := c.image.Inode(target)
				if err != nil {
					return err
				}
				if child.IsDir() {
					stack = append(stack, walkFrame{inum: target})
				}
			}
			return nil
		}

		for i := 0; i < v6fs.NDirect; i++ {
			if err := walkBlock(in.Addrs[i]); err != nil {
				return err
			}
		}
		if ind := in.Indirect(); ind != 0 && ind < c.sb.Size {
			targets, err := c.image.IndirectTargets(ind)
			if err != nil {
				return err
			}
			for _, addr := range targets {
				if err := walkBlock(addr); err != nil {
					return err
				}
			}
		}
	}

	return c.reconcileRefs(refs)
}

// reconcileRefs compares accumulated reference counts against inode type
// and link-count metadata. Inodes 0 (reserved) and 1 (root) are excluded;
// device inodes have no link-count rule.
func (c *Checker) reconcileRefs(refs []uint32) error {
	for inum := uint32(2); inum < c.sb.Ninodes; inum++ {
		in, err := c.image.Inode(inum)
		if err != nil {
			return err
		}
		n := refs[inum]
		if !in.IsFree() && n == 0 {
			return &Error{Kind: InodeNotInAnyDirectory, Inum: inum}
		}
		if n > 0 && in.IsFree() {
			return &Error{Kind: DanglingDirectoryReference, Inum: inum}
		}
		if in.IsFile() && int64(in.Nlink) != int64(n) {
			return &Error{Kind: BadLinkCount, Inum: inum}
		}
		if in.IsDir() && n > 1 {
			return &Error{Kind: DirectoryHardLinked, Inum: inum}
		}
	}
	return nil
}
