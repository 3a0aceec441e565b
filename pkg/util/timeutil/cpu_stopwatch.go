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

package timeutil

import (
	"time"

	"github.com/parekhparth/presto/pkg/util/grunning"
)

// CPUStopWatch measures the CPU time spent by the current goroutine between
// Start and Stop. When the goroutine running-time clock is unavailable it
// falls back to wall-clock time, which overcounts time spent off-CPU. Not
// safe for concurrent use.
type CPUStopWatch struct {
	startCPU  time.Duration
	startWall time.Time
}

// Start begins a measurement interval.
func (w *CPUStopWatch) Start() {
	w.startCPU = grunning.Time()
	w.startWall = Now()
}

// Stop ends the interval started by the last call to Start and returns its
// length.
func (w *CPUStopWatch) Stop() time.Duration {
	if grunning.Supported() {
		return grunning.Elapsed(w.startCPU, grunning.Time())
	}
	return Since(w.startWall)
}
