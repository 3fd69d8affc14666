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

// Package log provides a minimal leveled logging facility.
//
// The log target is set once at startup and used for the rest of the run;
// packages log through the package-level functions and never hold their own
// writers.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level is the log level.
type Level uint32

// The set of levels, from least to most verbose.
const (
	// Warning indicates a problem that the run can survive, e.g. a
	// discrepancy that is detected but not enforced.
	Warning Level = iota

	// Info is general operational notes.
	Info

	// Debug is verbose per-pass tracing. Expensive to format; callers
	// should gate hot-path messages with IsLogging.
	Debug
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case Warning:
		return "W"
	case Info:
		return "I"
	case Debug:
		return "D"
	default:
		return "?"
	}
}

// Emitter is the final destination for log lines.
type Emitter interface {
	// Emit emits the given log statement. Emit is safe for concurrent use.
	Emit(level Level, timestamp time.Time, format string, v ...any)
}

// Writer writes to an io.Writer, serializing concurrent emits.
type Writer struct {
	// Next is where output is written.
	Next io.Writer

	// mu protects Next.
	mu sync.Mutex
}

// Emit implements Emitter.Emit.
func (w *Writer) Emit(level Level, timestamp time.Time, format string, v ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.Next, "%s%s %s\n",
		level, timestamp.Format("0102 15:04:05.000000"),
		fmt.Sprintf(format, v...))
}

// BasicLogger is the default logger: one emitter gated by a level.
type BasicLogger struct {
	Level
	Emitter
}

// Debugf logs at the Debug level.
func (l *BasicLogger) Debugf(format string, v ...any) {
	if l.IsLogging(Debug) {
		l.Emit(Debug, time.Now(), format, v...)
	}
}

// Infof logs at the Info level.
func (l *BasicLogger) Infof(format string, v ...any) {
	if l.IsLogging(Info) {
		l.Emit(Info, time.Now(), format, v...)
	}
}

// Warningf logs at the Warning level.
func (l *BasicLogger) Warningf(format string, v ...any) {
	if l.IsLogging(Warning) {
		l.Emit(Warning, time.Now(), format, v...)
	}
}

// IsLogging returns whether the given level would be emitted.
func (l *BasicLogger) IsLogging(level Level) bool {
	return level <= l.Level
}

// logger is the global logger.
var logger atomic.Pointer[BasicLogger]

func init() {
	logger.Store(&BasicLogger{Level: Warning, Emitter: &Writer{Next: os.Stderr}})
}

// Log returns the global logger.
func Log() *BasicLogger {
	return logger.Load()
}

// SetTarget sets the log target for the global logger, keeping the level.
func SetTarget(e Emitter) {
	logger.Store(&BasicLogger{Level: Log().Level, Emitter: e})
}

// SetLevel sets the log level for the global logger, keeping the target.
func SetLevel(level Level) {
	logger.Store(&BasicLogger{Level: level, Emitter: Log().Emitter})
}

// Debugf logs to the global logger.
func Debugf(format string, v ...any) {
	Log().Debugf(format, v...)
}

// Infof logs to the global logger.
func Infof(format string, v ...any) {
	Log().Infof(format, v...)
}

// Warningf logs to the global logger.
func Warningf(format string, v ...any) {
	Log().Warningf(format, v...)
}

// IsLogging returns whether the global logger emits the given level.
func IsLogging(level Level) bool {
	return Log().IsLogging(level)
}
