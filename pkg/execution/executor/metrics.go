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
	"fmt"

	"github.com/parekhparth/presto/pkg/util/metric"
)

var (
	metaCompletedSplits = metric.Metadata{
		Name:        "executor.splits.completed",
		Help:        "Number of splits that ran to completion.",
		Measurement: "Splits",
		Unit:        metric.Unit_COUNT,
	}
	metaFailedSplits = metric.Metadata{
		Name:        "executor.splits.failed",
		Help:        "Number of splits retired because a quantum returned an error.",
		Measurement: "Splits",
		Unit:        metric.Unit_COUNT,
	}
	metaRunningSplits = metric.Metadata{
		Name:        "executor.splits.running",
		Help:        "Number of splits currently executing a quantum.",
		Measurement: "Splits",
		Unit:        metric.Unit_COUNT,
	}
	metaSplitWaitNanos = metric.Metadata{
		Name:        "executor.splits.wait-nanos",
		Help:        "Cumulative time dispatched splits spent waiting in the queue.",
		Measurement: "Wait time",
		Unit:        metric.Unit_NANOSECONDS,
	}
)

func makeSelectedSplitsMetadata(level int) metric.Metadata {
	return metric.Metadata{
		Name:        fmt.Sprintf("executor.splits.selected.l%d", level),
		Help:        fmt.Sprintf("Number of splits dispatched from level %d.", level),
		Measurement: "Splits",
		Unit:        metric.Unit_COUNT,
	}
}

// Metrics holds the executor's metrics, including the queue's per-level
// dispatch counters.
type Metrics struct {
	CompletedSplits *metric.Counter
	FailedSplits    *metric.Counter
	RunningSplits   *metric.Gauge
	SplitWaitNanos  *metric.Counter
	SelectedSplits  []*metric.Counter
}

func makeMetrics(queue *MultilevelSplitQueue) Metrics {
	return Metrics{
		CompletedSplits: metric.NewCounter(metaCompletedSplits),
		FailedSplits:    metric.NewCounter(metaFailedSplits),
		RunningSplits:   metric.NewGauge(metaRunningSplits),
		SplitWaitNanos:  metric.NewCounter(metaSplitWaitNanos),
		SelectedSplits:  queue.SelectedLevelCounters(),
	}
}

// RegisterMetrics adds the executor's metrics to the registry.
func (e *TaskExecutor) RegisterMetrics(registry *metric.Registry) {
	registry.AddMetricStruct(&e.metrics)
}

// Metrics returns the executor's metrics.
func (e *TaskExecutor) Metrics() *Metrics {
	return &e.metrics
}
