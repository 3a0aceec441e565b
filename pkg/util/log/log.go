// Copyright 2024 The Presto Authors.
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

// Package log provides context-aware leveled logging. Log lines carry the
// tags attached to the context via logtags and arguments are formatted
// through redact. The redaction markers are stripped before output, so log
// lines are written unredacted.
package log

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"strconv"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
)

// verbosity gates VEventf output. It is read once at startup.
var verbosity = func() int {
	v, err := strconv.Atoi(os.Getenv("PRESTO_VERBOSITY"))
	if err != nil {
		return 0
	}
	return v
}()

var logger = stdlog.New(os.Stderr, "", stdlog.LstdFlags|stdlog.Lmicroseconds)

// V returns true if the configured verbosity is at or above the requested
// level.
func V(level int) bool {
	return level <= verbosity
}

// Infof logs an informational message.
func Infof(ctx context.Context, format string, args ...interface{}) {
	output(ctx, "I", format, args...)
}

// Warningf logs a warning.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, "W", format, args...)
}

// Errorf logs an error.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, "E", format, args...)
}

// Fatalf logs an error and terminates the process.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	output(ctx, "F", format, args...)
	os.Exit(255)
}

// VEventf logs an informational message if the verbosity is at or above
// level.
func VEventf(ctx context.Context, level int, format string, args ...interface{}) {
	if V(level) {
		output(ctx, "I", format, args...)
	}
}

func output(ctx context.Context, sev string, format string, args ...interface{}) {
	msg := redact.Sprintf(format, args...).StripMarkers()
	if tags := logtags.FromContext(ctx); tags != nil {
		logger.Print(fmt.Sprintf("%s [%s] %s", sev, tags.String(), msg))
		return
	}
	logger.Print(fmt.Sprintf("%s %s", sev, msg))
}
