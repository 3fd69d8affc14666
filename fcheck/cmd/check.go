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

	"github.com/google/subcommands"

	"github.com/xv6fs/fcheck/fcheck/config"
	"github.com/xv6fs/fcheck/pkg/fsck"
)

// Check implements subcommands.Command for the "check" command.
type Check struct {
	all          bool
	strictBitmap bool
}

// Name implements subcommands.Command.Name.
func (*Check) Name() string {
	return "check"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Check) Synopsis() string {
	return "checks the consistency of a filesystem image"
}

// Usage implements subcommands.Command.Usage.
func (*Check) Usage() string {
	return `check [flags] <file_system_image> - check the consistency of a filesystem image
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Check) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "report every pass's first violation instead of stopping at the first one.")
	f.BoolVar(&c.strictBitmap, "strict-bitmap", false, "treat bitmap bits set for unreferenced data blocks as violations instead of warnings.")
}

// Execute implements subcommands.Command.Execute.
func (c *Check) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	return RunCheck(f.Arg(0), fsck.Config{
		AllErrors:    c.all || conf.AllErrors,
		StrictBitmap: c.strictBitmap || conf.StrictBitmap,
	})
}
