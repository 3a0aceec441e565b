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

package executor

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/parekhparth/presto/pkg/util/leaktest"
)

const maxInterestingNanos = 400 * int64(time.Second)

func TestComputeLevelProperties(t *testing.T) {
	defer leaktest.AfterTest(t)()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("monotone in scheduled time", prop.ForAll(
		func(a, b int64) bool {
			if a > b {
				a, b = b, a
			}
			return ComputeLevel(a) <= ComputeLevel(b)
		},
		gen.Int64Range(0, maxInterestingNanos),
		gen.Int64Range(0, maxInterestingNanos),
	))

	properties.Property("level thresholds bound the result", prop.ForAll(
		func(nanos int64) bool {
			level := ComputeLevel(nanos)
			if level < 0 || level >= NumLevels {
				return false
			}
			seconds := nanos / int64(time.Second)
			if seconds < levelThresholdSeconds[level] {
				return false
			}
			return level == NumLevels-1 || seconds < levelThresholdSeconds[level+1]
		},
		gen.Int64Range(0, maxInterestingNanos),
	))

	properties.TestingRun(t)
}

func TestUpdatePriorityChargeConservation(t *testing.T) {
	defer leaktest.AfterTest(t)()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	sumScheduled := func(q *MultilevelSplitQueue) int64 {
		var total int64
		for _, nanos := range q.LevelScheduledTime() {
			total += nanos
		}
		return total
	}

	// The total charged across all levels by one update equals the capped
	// quantum, regardless of how many level boundaries the split crossed.
	properties.Property("total charge equals capped quantum", prop.ForAll(
		func(prevScheduled, quanta int64) bool {
			q := NewMultilevelSplitQueue(false, 2.0)
			oldPriority := NewPriority(ComputeLevel(prevScheduled), 0)
			before := sumScheduled(q)
			q.UpdatePriority(oldPriority, quanta, prevScheduled+quanta)
			charged := sumScheduled(q) - before
			return charged == min(quanta, LevelContributionCap.Nanoseconds())
		},
		gen.Int64Range(0, maxInterestingNanos),
		gen.Int64Range(0, 100*int64(time.Second)),
	))

	// The new level always reflects the cumulative scheduled time.
	properties.Property("new priority lands in the computed level", prop.ForAll(
		func(prevScheduled, quanta int64) bool {
			q := NewMultilevelSplitQueue(false, 2.0)
			oldPriority := NewPriority(ComputeLevel(prevScheduled), 0)
			p := q.UpdatePriority(oldPriority, quanta, prevScheduled+quanta)
			return p.Level() == ComputeLevel(prevScheduled+quanta)
		},
		gen.Int64Range(0, maxInterestingNanos),
		gen.Int64Range(0, 100*int64(time.Second)),
	))

	properties.TestingRun(t)
}
