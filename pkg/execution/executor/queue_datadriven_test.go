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
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/datadriven"
	"github.com/parekhparth/presto/pkg/util/leaktest"
)

// TestQueueDataDriven runs scripted offer/take/update-priority sequences
// against the queue. Commands:
//
//	new-queue [absolute] [multiplier=<m>]
//	offer level=<l> pri=<nanos> name=<name>
//	take
//	update-priority level=<l> pri=<nanos> quanta=<nanos> scheduled=<nanos>
//	scheduled-times
//	counters
//	size
func TestQueueDataDriven(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var q *MultilevelSplitQueue
	names := make(map[PrioritizedSplit]string)

	datadriven.RunTest(t, "testdata/queue", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "new-queue":
			multiplier := 2.0
			if d.HasArg("multiplier") {
				var s string
				d.ScanArgs(t, "multiplier", &s)
				var err error
				multiplier, err = strconv.ParseFloat(s, 64)
				if err != nil {
					t.Fatalf("bad multiplier %q: %v", s, err)
				}
			}
			q = NewMultilevelSplitQueue(d.HasArg("absolute"), multiplier)
			names = make(map[PrioritizedSplit]string)
			return "ok"

		case "offer":
			var level int
			var pri int64
			var name string
			d.ScanArgs(t, "level", &level)
			d.ScanArgs(t, "pri", &pri)
			d.ScanArgs(t, "name", &name)
			split := newTestSplit(level, pri)
			names[split] = name
			if err := q.Offer(split); err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return "ok"

		case "take":
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			split, err := q.Take(ctx)
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			return fmt.Sprintf("%s %s", names[split], split.Priority())

		case "update-priority":
			var level int
			var pri, quanta, scheduled int64
			d.ScanArgs(t, "level", &level)
			d.ScanArgs(t, "pri", &pri)
			d.ScanArgs(t, "quanta", &quanta)
			d.ScanArgs(t, "scheduled", &scheduled)
			return q.UpdatePriority(NewPriority(level, pri), quanta, scheduled).String()

		case "scheduled-times":
			return fmt.Sprintf("%v", q.LevelScheduledTime())

		case "counters":
			return fmt.Sprintf("%v", counterValues(q))

		case "size":
			return fmt.Sprintf("%d", q.Size())

		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}
