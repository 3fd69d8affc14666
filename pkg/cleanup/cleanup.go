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

// Package cleanup provides error-path cleanup that can be released once a
// multi-step acquisition succeeds.
package cleanup

// Cleanup accumulates undo functions while a caller acquires resources in
// stages. Clean runs them in reverse order; Release abandons them once the
// whole acquisition has succeeded and ownership moves to the result.
//
// v6fs.OpenImage is the typical caller: the mapping must be torn down if
// superblock validation fails, but survives the function on success.
//
//	var cu cleanup.Cleanup
//	defer cu.Clean()
//	...
//	cu.Add(func() { unix.Munmap(bytes) })
//	...
//	cu.Release() // validation passed; the Image now owns the mapping.
type Cleanup struct {
	cleaners []func()
}

// Make returns a Cleanup holding a single undo function.
func Make(f func()) Cleanup {
	return Cleanup{cleaners: []func(){f}}
}

// Add registers another undo function.
func (c *Cleanup) Add(f func()) {
	c.cleaners = append(c.cleaners, f)
}

// Clean runs the registered functions in reverse order and empties the set.
func (c *Cleanup) Clean() {
	clean(c.cleaners)
	c.cleaners = nil
}

// Release empties the set without running anything. The returned function
// runs the abandoned set, for callers that hand cleanup duty onward.
func (c *Cleanup) Release() func() {
	old := c.cleaners
	c.cleaners = nil
	return func() { clean(old) }
}

func clean(cleaners []func()) {
	for i := len(cleaners) - 1; i >= 0; i-- {
		cleaners[i]()
	}
}
