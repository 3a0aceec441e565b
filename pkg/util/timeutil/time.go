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

// Package timeutil provides time helpers used throughout the codebase.
package timeutil

import "time"

// Now returns the current local time, carrying a monotonic clock reading.
func Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t, using the monotonic clock when
// available.
func Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Until returns the duration until t.
func Until(t time.Time) time.Duration {
	return time.Until(t)
}
