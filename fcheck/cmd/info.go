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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/xv6fs/fcheck/pkg/v6fs"
)

// Info implements subcommands.Command for the "info" command. It prints
// the superblock fields and the layout derived from them, without running
// any consistency checks.
type Info struct{}

// Name implements subcommands.Command.Name.
func (*Info) Name() string {
	return "info"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Info) Synopsis() string {
	return "prints the superblock and computed layout of a filesystem image"
}

// Usage implements subcommands.Command.Usage.
func (*Info) Usage() string {
	return `info <file_system_image> - print the superblock and computed layout of a filesystem image
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Info) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Info) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	src, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	image, err := v6fs.OpenImage(src)
	if err != nil {
		src.Close()
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer image.Close()

	sb := image.SuperBlock()
	lay := image.Layout()
	fmt.Printf("size: %d\n", sb.Size)
	fmt.Printf("nblocks: %d\n", sb.Nblocks)
	fmt.Printf("ninodes: %d\n", sb.Ninodes)
	fmt.Printf("inode blocks: %d (first %d)\n", lay.InodeBlocks, lay.InodeBase)
	fmt.Printf("bitmap blocks: %d (first %d)\n", lay.BitmapBlocks, lay.BitmapBase)
	fmt.Printf("first data block: %d\n", lay.FirstDataBlock)
	return subcommands.ExitSuccess
}
