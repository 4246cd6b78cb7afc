/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/pflag"
)

var (
	logFormat string
	logLevel  string

	// structured is the logger used by the *S functions. nil routes them to glog.
	structured atomic.Pointer[slog.Logger]
)

// Init switches the *S functions to slog when --log-fmt was given.
func Init(fs *pflag.FlagSet) error {
	if fs == nil || !fs.Changed("log-fmt") {
		return nil
	}
	logger, err := newLogger(os.Stderr, logFormat, logLevel)
	if err != nil {
		return err
	}
	structured.Store(logger)
	return nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "logfmt":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log-fmt %q: expected json or logfmt", format)
}

func logS(level slog.Level, msg string, args ...any) {
	logger := structured.Load()
	if logger == nil {
		glogS(level, msg, args)
		return
	}
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}

	// skip runtime.Callers, logS and the exported wrapper
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = logger.Handler().Handle(ctx, record)
}

// glogS renders key/value pairs after the message so they survive in
// plain glog output.
func glogS(level slog.Level, msg string, args []any) {
	const depth = 3
	line := append([]any{msg}, args...)
	switch {
	case level >= slog.LevelError:
		glog.ErrorDepth(depth, line...)
	case level >= slog.LevelWarn:
		glog.WarningDepth(depth, line...)
	case level >= slog.LevelInfo:
		glog.InfoDepth(depth, line...)
	case bool(glog.V(1)):
		glog.InfoDepth(depth, line...)
	}
}

func InfoS(msg string, args ...any)  { logS(slog.LevelInfo, msg, args...) }
func WarnS(msg string, args ...any)  { logS(slog.LevelWarn, msg, args...) }
func DebugS(msg string, args ...any) { logS(slog.LevelDebug, msg, args...) }
func ErrorS(msg string, args ...any) { logS(slog.LevelError, msg, args...) }

// SetLogger routes the *S functions to logger until the returned func is
// called. Used in tests.
func SetLogger(logger *slog.Logger) func() {
	previous := structured.Swap(logger)
	return func() { structured.Store(previous) }
}
