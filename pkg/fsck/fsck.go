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

// Package fsck validates the consistency of an xv6-style filesystem image.
//
// The checker makes one synchronous pass over an immutable image: an inode
// table sweep, a bitmap reconciliation, a duplicate-address sweep, and a
// directory tree walk with reference-count reconciliation, in that order.
// The first violation aborts the run unless collect-all mode is enabled.
// Nothing is ever written back.
package fsck

import (
	"errors"

	"github.com/xv6fs/fcheck/pkg/log"
	"github.com/xv6fs/fcheck/pkg/v6fs"
)

// Config adjusts checker behavior. The zero value matches the original
// tool: stop at the first violation, tolerate over-marked bitmap bits.
type Config struct {
	// AllErrors keeps running later passes after one fails, reporting
	// every pass's first violation instead of only the overall first.
	AllErrors bool

	// StrictBitmap makes the backward bitmap check fatal: a data block
	// marked in use that no inode references becomes a violation instead
	// of a warning.
	StrictBitmap bool
}

// Checker validates a single image. It holds only per-run scratch state;
// the image itself is never mutated.
type Checker struct {
	image *v6fs.Image
	conf  Config
	sb    v6fs.SuperBlock
	lay   v6fs.Layout
}

// New returns a Checker for the given image.
func New(image *v6fs.Image, conf Config) *Checker {
	return &Checker{
		image: image,
		conf:  conf,
		sb:    image.SuperBlock(),
		lay:   image.Layout(),
	}
}

// Check runs all passes and returns nil iff the image is consistent. In
// collect-all mode the returned error joins each failing pass's first
// violation; otherwise it is the overall first violation.
func (c *Checker) Check() error {
	passes := []struct {
		name string
		run  func() error
	}{
		{"inode table", c.checkInodes},
		{"bitmap", c.checkBitmap},
		{"duplicate addresses", c.checkDuplicates},
		{"directory tree", c.checkTree},
	}

	var all []error
	for _, p := range passes {
		log.Debugf("checking %s", p.name)
		if err := p.run(); err != nil {
			if !c.conf.AllErrors {
				return err
			}
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

// validAddr reports whether addr may legally appear in an address slot.
// Zero is the unused-slot sentinel, handled by callers.
func (c *Checker) validAddr(addr uint32) bool {
	return addr > 0 && addr < c.sb.Size
}

// forEachUsedAddr calls f for every block address used by the inode: the
// non-zero direct slots, the indirect pointer block, and the non-zero
// addresses inside it, in that order.
func (c *Checker) forEachUsedAddr(in *v6fs.Dinode, f func(addr uint32) error) error {
	for i := 0; i < v6fs.NDirect; i++ {
		if addr := in.Addrs[i]; addr != 0 {
			if err := f(addr); err != nil {
				return err
			}
		}
	}
	ind := in.Indirect()
	if ind == 0 {
		return nil
	}
	if err := f(ind); err != nil {
		return err
	}
	if ind >= c.sb.Size {
		// The pointer itself is out of range, so there is no indirect
		// block to read. The inode sweep reports it.
		return nil
	}
	targets, err := c.image.IndirectTargets(ind)
	if err != nil {
		return err
	}
	for _, addr := range targets {
		if addr == 0 {
			continue
		}
		if err := f(addr); err != nil {
			return err
		}
	}
	return nil
}

// checkInodes sweeps the inode table: type tags, address bounds, root
// special case, directory formatting, and per-inode bitmap membership. The
// per-inode bitmap check duplicates part of checkBitmap so that a broken
// inode fails before the global reconciliation runs.
func (c *Checker) checkInodes() error {
	for inum := uint32(0); inum < c.sb.Ninodes; inum++ {
		in, err := c.image.Inode(inum)
		if err != nil {
			return err
		}
		if in.IsFree() {
			continue
		}

		switch in.Type {
		case v6fs.TypeDir, v6fs.TypeFile, v6fs.TypeDev:
		default:
			return &Error{Kind: BadInodeType, Inum: inum}
		}

		for i := 0; i < v6fs.NDirect; i++ {
			if addr := in.Addrs[i]; addr != 0 && !c.validAddr(addr) {
				return &Error{Kind: BadDirectAddress, Inum: inum, Addr: addr}
			}
		}
		if ind := in.Indirect(); ind != 0 {
			if !c.validAddr(ind) {
				return &Error{Kind: BadIndirectAddress, Inum: inum, Addr: ind}
			}
			targets, err := c.image.IndirectTargets(ind)
			if err != nil {
				return err
			}
			for _, addr := range targets {
				if addr != 0 && !c.validAddr(addr) {
					return &Error{Kind: BadIndirectAddress, Inum: inum, Addr: addr}
				}
			}
		}

		if inum == v6fs.RootInum && !in.IsDir() {
			return &Error{Kind: MissingRoot, Inum: inum}
		}
		if in.IsDir() {
			if err := c.checkDirFormat(inum, &in); err != nil {
				return err
			}
		}

		if err := c.forEachUsedAddr(&in, func(addr uint32) error {
			set, err := c.image.BitmapBit(addr)
			if err != nil {
				return err
			}
			if !set {
				return &Error{Kind: AddressNotInBitmap, Inum: inum, Addr: addr}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// checkDirFormat verifies the "." and ".." entries of a directory inode:
// exactly "." naming the inode itself, and ".." naming the parent, which
// for the root is the root itself and for every other directory is some
// different inode. Only direct blocks are scanned; the original tool
// behaves the same way and mkfs never spills "." or ".." past them.
func (c *Checker) checkDirFormat(inum uint32, in *v6fs.Dinode) error {
	var dot, dotdot bool
	for i := 0; i < v6fs.NDirect && !(dot && dotdot); i++ {
		addr := in.Addrs[i]
		if addr == 0 {
			continue
		}
		dirents, err := c.image.Dirents(addr)
		if err != nil {
			return err
		}
		for _, de := range dirents {
			switch {
			case de.NameIs("."):
				dot = true
				if uint32(de.Inum) != inum {
					return &Error{Kind: MalformedDirectory, Inum: inum, Addr: addr}
				}
			case de.NameIs(".."):
				dotdot = true
				if inum == v6fs.RootInum {
					if uint32(de.Inum) != v6fs.RootInum {
						return &Error{Kind: MalformedDirectory, Inum: inum, Addr: addr}
					}
				} else if uint32(de.Inum) == inum {
					return &Error{Kind: MalformedDirectory, Inum: inum, Addr: addr}
				}
			}
		}
	}
	if !dot || !dotdot {
		return &Error{Kind: MalformedDirectory, Inum: inum}
	}
	return nil
}

// checkBitmap cross-checks inode address usage against the allocation
// bitmap in both directions. Forward (used but marked free) is fatal.
// Backward (marked in use but unreferenced) is detected for data blocks
// only; metadata blocks are legitimately marked without inode references.
// Backward is a warning unless strict bitmap mode is on.
func (c *Checker) checkBitmap() error {
	referenced := make([]bool, c.sb.Size)
	for inum := uint32(0); inum < c.sb.Ninodes; inum++ {
		in, err := c.image.Inode(inum)
		if err != nil {
			return err
		}
		if in.IsFree() {
			continue
		}
		if err := c.forEachUsedAddr(&in, func(addr uint32) error {
			if addr >= c.sb.Size {
				// Out-of-range slots are reported by the inode
				// sweep; skip them here in collect-all mode.
				return nil
			}
			set, err := c.image.BitmapBit(addr)
			if err != nil {
				return err
			}
			if !set {
				return &Error{Kind: AddressNotInBitmap, Inum: inum, Addr: addr}
			}
			referenced[addr] = true
			return nil
		}); err != nil {
			return err
		}
	}

	for addr := c.lay.FirstDataBlock; addr < c.sb.Size; addr++ {
		set, err := c.image.BitmapBit(addr)
		if err != nil {
			return err
		}
		if set && !referenced[addr] {
			if c.conf.StrictBitmap {
				return &Error{Kind: BlockNotInUse, Addr: addr}
			}
			log.Warningf("bitmap marks block %d in use but no inode references it", addr)
		}
	}
	return nil
}

// checkDuplicates verifies that no block, indirect pointer blocks
// included, is referenced by more than one (inode, slot) pair anywhere in
// the inode table.
func (c *Checker) checkDuplicates() error {
	seen := make([]bool, c.sb.Size)
	for inum := uint32(0); inum < c.sb.Ninodes; inum++ {
		in, err := c.image.Inode(inum)
		if err != nil {
			return err
		}
		if in.IsFree() {
			continue
		}
		if err := c.forEachUsedAddr(&in, func(addr uint32) error {
			if addr >= c.sb.Size {
				// Out-of-range slots are reported by the inode
				// sweep; skip them here in collect-all mode.
				return nil
			}
			if seen[addr] {
				return &Error{Kind: DuplicateBlockUse, Inum: inum, Addr: addr}
			}
			seen[addr] = true
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
