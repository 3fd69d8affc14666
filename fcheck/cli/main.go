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

// Package cli is the main entrypoint for fcheck.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/xv6fs/fcheck/fcheck/cmd"
	"github.com/xv6fs/fcheck/fcheck/config"
	"github.com/xv6fs/fcheck/pkg/fsck"
	"github.com/xv6fs/fcheck/pkg/log"
)

// Main is the main entrypoint.
func Main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Check), "")
	subcommands.Register(new(cmd.Info), "")

	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	// Set up logging.
	emitter := log.Emitter(&log.Writer{Next: os.Stderr})
	if conf.LogFilename != "" {
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		emitter = &log.Writer{Next: f}
	}
	log.SetTarget(emitter)
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	// The historical surface is a single positional argument naming the
	// image. Keep it working: an argument that is not a registered
	// command runs the checker directly.
	switch arg := flag.Arg(0); arg {
	case "":
		fmt.Fprintf(os.Stderr, "Usage: %s <file_system_image>\n", os.Args[0])
		os.Exit(1)
	case "help", "flags", "check", "info":
		os.Exit(int(subcommands.Execute(context.Background(), conf)))
	default:
		os.Exit(int(cmd.RunCheck(arg, fsck.Config{
			AllErrors:    conf.AllErrors,
			StrictBitmap: conf.StrictBitmap,
		})))
	}
}
