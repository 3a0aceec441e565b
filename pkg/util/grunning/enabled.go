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

// See grunning.Supported() for an explanation behind this build tag. It is
// only set when building against a runtime patched to export
// Grunningnanos.
//
//go:build grunning

package grunning

import "runtime"

// grunningnanos returns the running time observed by the current goroutine.
func grunningnanos() int64 {
	return runtime.Grunningnanos()
}

func supported() bool { return true }
