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

package log

import (
	"strings"
	"testing"
)

type testWriter struct {
	lines []string
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestLevelGating(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	l.Warningf("warning")
	l.Infof("info")
	l.Debugf("debug")

	if len(tw.lines) != 2 {
		t.Fatalf("logger emitted %d lines, expected 2: %v", len(tw.lines), tw.lines)
	}
	if !strings.HasSuffix(tw.lines[0], "warning\n") {
		t.Errorf("first line %q is not the warning", tw.lines[0])
	}
	if !strings.HasSuffix(tw.lines[1], "info\n") {
		t.Errorf("second line %q is not the info", tw.lines[1])
	}
}

func TestIsLogging(t *testing.T) {
	l := &BasicLogger{Level: Warning, Emitter: &Writer{Next: &testWriter{}}}
	if !l.IsLogging(Warning) {
		t.Errorf("IsLogging(Warning) = false at level Warning")
	}
	if l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = true at level Warning")
	}
}

func TestSetLevelKeepsTarget(t *testing.T) {
	tw := &testWriter{}
	old := Log()
	defer logger.Store(old)

	SetTarget(&Writer{Next: tw})
	SetLevel(Debug)
	Debugf("probe")

	if len(tw.lines) != 1 {
		t.Fatalf("global logger emitted %d lines, expected 1: %v", len(tw.lines), tw.lines)
	}
}
