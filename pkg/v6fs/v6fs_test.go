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

package v6fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xv6fs/fcheck/pkg/v6fs"
	"github.com/xv6fs/fcheck/pkg/v6fs/v6fstest"
)

func TestOnDiskStructureSizes(t *testing.T) {
	if v6fs.InodesPerBlock*v6fs.InodeSize != v6fs.BlockSize {
		t.Errorf("inode records do not pack a block: %d * %d != %d", v6fs.InodesPerBlock, v6fs.InodeSize, v6fs.BlockSize)
	}
	if v6fs.DirentsPerBlock*v6fs.DirentSize != v6fs.BlockSize {
		t.Errorf("dirent records do not pack a block: %d * %d != %d", v6fs.DirentsPerBlock, v6fs.DirentSize, v6fs.BlockSize)
	}
	if v6fs.NIndirect*4 != v6fs.BlockSize {
		t.Errorf("indirect slots do not pack a block: %d * 4 != %d", v6fs.NIndirect, v6fs.BlockSize)
	}
	if want := 2 + v6fs.DirSize; v6fs.DirentSize != want {
		t.Errorf("wrong dirent size: want %d, got %d", want, v6fs.DirentSize)
	}
}

func TestComputeLayout(t *testing.T) {
	for _, tc := range []struct {
		name string
		sb   v6fs.SuperBlock
		want v6fs.Layout
	}{
		{
			// mkfs places the bitmap at block 28 and the first data
			// block at 29 for this geometry.
			name: "classic geometry",
			sb:   v6fs.SuperBlock{Size: 1024, Nblocks: 941, Ninodes: 200},
			want: v6fs.Layout{
				InodeBlocks:    26,
				BitmapBlocks:   1,
				InodeBase:      2,
				BitmapBase:     28,
				FirstDataBlock: 29,
			},
		},
		{
			// Counts that divide evenly still get a trailing spare
			// block per region.
			name: "even counts keep the spare block",
			sb:   v6fs.SuperBlock{Size: 4096, Nblocks: 4000, Ninodes: 64},
			want: v6fs.Layout{
				InodeBlocks:    9,
				BitmapBlocks:   2,
				InodeBase:      2,
				BitmapBase:     11,
				FirstDataBlock: 13,
			},
		},
		{
			name: "bitmap spills into a third block",
			sb:   v6fs.SuperBlock{Size: 8193, Nblocks: 8000, Ninodes: 8},
			want: v6fs.Layout{
				InodeBlocks:    2,
				BitmapBlocks:   3,
				InodeBase:      2,
				BitmapBase:     4,
				FirstDataBlock: 7,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := v6fs.ComputeLayout(tc.sb)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("layout mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDirentNames(t *testing.T) {
	var full v6fs.Dirent
	copy(full.Name[:], "abcdefghijklmn") // exactly DirSize bytes, no NUL
	if got := full.NameString(); got != "abcdefghijklmn" {
		t.Errorf("full-width name: got %q", got)
	}
	if full.NameIs("abcdefghijklm") {
		t.Errorf("full-width name matched a 13-byte prefix")
	}

	var dot v6fs.Dirent
	copy(dot.Name[:], ".")
	if !dot.NameIs(".") {
		t.Errorf("NUL-terminated name %q did not match", dot.Name[:])
	}
	if dot.NameIs("") {
		t.Errorf("name %q matched the empty string", dot.Name[:])
	}

	var tricky v6fs.Dirent
	copy(tricky.Name[:], "a\x00b") // bytes past the NUL must be ignored
	if !tricky.NameIs("a") {
		t.Errorf("name with embedded NUL did not stop at the NUL")
	}
}

func TestImageAccessors(t *testing.T) {
	b := v6fstest.New(1024, 941, 200)
	rootBlk := b.MakeDir(v6fs.RootInum, v6fs.RootInum)
	if rootBlk != 29 {
		t.Fatalf("first data block allocated at %d, mkfs places it at 29", rootBlk)
	}

	img, err := v6fs.NewImage(b.Bytes())
	if err != nil {
		t.Fatalf("NewImage failed: %v", err)
	}

	in, err := img.Inode(v6fs.RootInum)
	if err != nil {
		t.Fatalf("Inode(root) failed: %v", err)
	}
	if !in.IsDir() {
		t.Errorf("root inode type = %d, want directory", in.Type)
	}
	if in.Addrs[0] != rootBlk {
		t.Errorf("root block = %d, want %d", in.Addrs[0], rootBlk)
	}

	dirents, err := img.Dirents(rootBlk)
	if err != nil {
		t.Fatalf("Dirents(%d) failed: %v", rootBlk, err)
	}
	if !dirents[0].NameIs(".") || dirents[0].Inum != v6fs.RootInum {
		t.Errorf(`dirent 0 = %d %q, want root "."`, dirents[0].Inum, dirents[0].NameString())
	}
	if !dirents[1].NameIs("..") || dirents[1].Inum != v6fs.RootInum {
		t.Errorf(`dirent 1 = %d %q, want root ".."`, dirents[1].Inum, dirents[1].NameString())
	}

	set, err := img.BitmapBit(rootBlk)
	if err != nil {
		t.Fatalf("BitmapBit(%d) failed: %v", rootBlk, err)
	}
	if !set {
		t.Errorf("bitmap bit for allocated block %d is clear", rootBlk)
	}
	set, err = img.BitmapBit(1000)
	if err != nil {
		t.Fatalf("BitmapBit(1000) failed: %v", err)
	}
	if set {
		t.Errorf("bitmap bit for unallocated block 1000 is set")
	}

	if _, err := img.Inode(200); !errors.Is(err, v6fs.ErrOutOfRange) {
		t.Errorf("Inode(ninodes) = %v, want ErrOutOfRange", err)
	}
	if _, err := img.Block(1024); !errors.Is(err, v6fs.ErrOutOfRange) {
		t.Errorf("Block(size) = %v, want ErrOutOfRange", err)
	}
}

func TestOpenImage(t *testing.T) {
	openFile := func(t *testing.T, contents []byte) *os.File {
		t.Helper()
		path := filepath.Join(t.TempDir(), "fs.img")
		if err := os.WriteFile(path, contents, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		return f
	}

	t.Run("valid image", func(t *testing.T) {
		b := v6fstest.New(64, 32, 8)
		b.MakeDir(v6fs.RootInum, v6fs.RootInum)
		img, err := v6fs.OpenImage(openFile(t, b.Bytes()))
		if err != nil {
			t.Fatalf("OpenImage failed: %v", err)
		}
		defer img.Close()
		if got := img.Ninodes(); got != 8 {
			t.Errorf("Ninodes() = %d, want 8", got)
		}
	})
	t.Run("bad superblock", func(t *testing.T) {
		// The mapping established before validation must be torn down
		// on this path; the error alone is observable here.
		f := openFile(t, make([]byte, 64*v6fs.BlockSize))
		defer f.Close()
		if _, err := v6fs.OpenImage(f); !errors.Is(err, v6fs.ErrBadSuperBlock) {
			t.Errorf("OpenImage = %v, want ErrBadSuperBlock", err)
		}
	})
}

func TestBadSuperBlock(t *testing.T) {
	for _, tc := range []struct {
		name  string
		bytes func() []byte
	}{
		{
			name:  "image too small",
			bytes: func() []byte { return make([]byte, 100) },
		},
		{
			name: "no inodes",
			bytes: func() []byte {
				b := v6fstest.New(64, 32, 8).Bytes()
				// Zero the superblock's ninodes field.
				b[v6fs.SuperBlockNum*v6fs.BlockSize+8] = 0
				return b
			},
		},
		{
			name: "data blocks exceed total blocks",
			bytes: func() []byte {
				b := v6fstest.New(64, 32, 8).Bytes()
				b[v6fs.SuperBlockNum*v6fs.BlockSize+4] = 64
				return b
			},
		},
		{
			name: "claims more blocks than the image holds",
			bytes: func() []byte {
				b := v6fstest.New(64, 32, 8).Bytes()
				b[v6fs.SuperBlockNum*v6fs.BlockSize+1] = 1 // size = 64 + 256
				return b
			},
		},
		{
			name: "inode table overruns the image",
			bytes: func() []byte {
				b := v6fstest.New(64, 32, 8).Bytes()
				// ninodes = 0xffffffff; the derived metadata size
				// must not wrap around and slip past the guard.
				off := v6fs.SuperBlockNum*v6fs.BlockSize + 8
				for i := 0; i < 4; i++ {
					b[off+i] = 0xff
				}
				return b
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v6fs.NewImage(tc.bytes()); !errors.Is(err, v6fs.ErrBadSuperBlock) {
				t.Errorf("NewImage = %v, want ErrBadSuperBlock", err)
			}
		})
	}
}
