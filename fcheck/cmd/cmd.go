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

// Package cmd holds implementations of the fcheck commands.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/xv6fs/fcheck/pkg/fsck"
	"github.com/xv6fs/fcheck/pkg/log"
	"github.com/xv6fs/fcheck/pkg/v6fs"
)

// Fatalf logs a message to stderr and exits with failure.
func Fatalf(format string, v ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", v...)
	os.Exit(1)
}

// RunCheck opens the image at path, runs the checker with the given
// configuration, and reports the outcome. It is shared by the check
// subcommand and the bare "fcheck <image>" invocation.
func RunCheck(path string, conf fsck.Config) subcommands.ExitStatus {
	src, err := os.Open(path)
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

	if err := fsck.New(image, conf).Check(); err != nil {
		reportViolations(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// reportViolations prints one diagnostic line per violation to stderr. The
// wording of the line is the violation kind's canonical diagnostic; the
// inode/block context is kept at debug level.
func reportViolations(err error) {
	for _, e := range flatten(err) {
		var v *fsck.Error
		if errors.As(e, &v) {
			fmt.Fprintf(os.Stderr, "ERROR: %s.\n", v.Kind)
			log.Debugf("violation detail: %v", v)
		} else {
			fmt.Fprintln(os.Stderr, e)
		}
	}
}

// flatten expands an error joined from several pass errors.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
