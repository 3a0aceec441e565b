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

package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := NewCounter(Metadata{Name: "test.counter", Help: "a counter"})
	require.EqualValues(t, 0, c.Count())
	c.Inc(3)
	c.Inc(2)
	require.EqualValues(t, 5, c.Count())

	m := c.ToPrometheusMetric()
	require.NotNil(t, m.Counter)
	require.Equal(t, 5.0, m.Counter.GetValue())
}

func TestGauge(t *testing.T) {
	g := NewGauge(Metadata{Name: "test.gauge", Help: "a gauge"})
	g.Update(10)
	g.Inc(5)
	g.Dec(3)
	require.EqualValues(t, 12, g.Value())

	m := g.ToPrometheusMetric()
	require.NotNil(t, m.Gauge)
	require.Equal(t, 12.0, m.Gauge.GetValue())
}

func TestRegistryAddMetricStruct(t *testing.T) {
	type metrics struct {
		Hits   *Counter
		Misses *Counter
		Depth  *Gauge
		Levels []*Counter
	}
	m := metrics{
		Hits:   NewCounter(Metadata{Name: "test.hits"}),
		Misses: NewCounter(Metadata{Name: "test.misses"}),
		Depth:  NewGauge(Metadata{Name: "test.depth"}),
		Levels: []*Counter{
			NewCounter(Metadata{Name: "test.levels.l0"}),
			NewCounter(Metadata{Name: "test.levels.l1"}),
		},
	}
	r := NewRegistry()
	r.AddMetricStruct(&m)

	var names []string
	r.Each(func(metric Iterable) {
		names = append(names, metric.GetName())
	})
	require.ElementsMatch(t, []string{
		"test.hits", "test.misses", "test.depth", "test.levels.l0", "test.levels.l1",
	}, names)
}

func TestExportedName(t *testing.T) {
	require.Equal(t, "executor_splits_selected_l0", exportedName("executor.splits.selected.l0"))
	require.Equal(t, "executor_splits_wait_nanos", exportedName("executor.splits.wait-nanos"))
}
