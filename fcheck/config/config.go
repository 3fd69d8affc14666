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

// Package config provides the global tool configuration, populated from
// command line flags.
package config

import (
	"flag"
	"fmt"
)

// Config holds the configuration for fcheck. It is immutable after
// NewFromFlags.
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// LogFilename is the file to log to, empty for stderr.
	LogFilename string

	// AllErrors reports every pass's first violation instead of stopping
	// at the overall first.
	AllErrors bool

	// StrictBitmap makes the backward bitmap check fatal.
	StrictBitmap bool
}

// RegisterFlags registers the flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where log output is written, default is stderr.")
	flagSet.Bool("all", false, "report every pass's first violation instead of stopping at the first one.")
	flagSet.Bool("strict-bitmap", false, "treat bitmap bits set for unreferenced data blocks as violations instead of warnings.")
}

// NewFromFlags creates a new Config from the flags registered with
// RegisterFlags. The flag set must already be parsed.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	var err error
	if conf.Debug, err = boolFlag(flagSet, "debug"); err != nil {
		return nil, err
	}
	if conf.LogFilename, err = stringFlag(flagSet, "log"); err != nil {
		return nil, err
	}
	if conf.AllErrors, err = boolFlag(flagSet, "all"); err != nil {
		return nil, err
	}
	if conf.StrictBitmap, err = boolFlag(flagSet, "strict-bitmap"); err != nil {
		return nil, err
	}
	return conf, nil
}

func lookup(flagSet *flag.FlagSet, name string) (any, error) {
	fl := flagSet.Lookup(name)
	if fl == nil {
		return nil, fmt.Errorf("flag %q is not registered", name)
	}
	getter, ok := fl.Value.(flag.Getter)
	if !ok {
		return nil, fmt.Errorf("flag %q does not expose its value", name)
	}
	return getter.Get(), nil
}

func boolFlag(flagSet *flag.FlagSet, name string) (bool, error) {
	v, err := lookup(flagSet, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("flag %q is not a bool", name)
	}
	return b, nil
}

func stringFlag(flagSet *flag.FlagSet, name string) (string, error) {
	v, err := lookup(flagSet, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("flag %q is not a string", name)
	}
	return s, nil
}
