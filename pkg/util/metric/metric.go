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

// Package metric provides thread-safe counters and gauges that can be
// bundled into a Registry and exported in the prometheus data model.
package metric

import (
	"sync/atomic"

	"github.com/gogo/protobuf/proto"
	prometheusgo "github.com/prometheus/client_model/go"
)

// Unit describes how the metric's value should be interpreted.
type Unit int

const (
	// Unit_COUNT describes a unitless count.
	Unit_COUNT Unit = iota
	// Unit_NANOSECONDS describes a duration in nanoseconds.
	Unit_NANOSECONDS
)

// Metadata holds the static information describing a metric.
type Metadata struct {
	Name        string
	Help        string
	Measurement string
	Unit        Unit
}

// GetName returns the metric's name.
func (m Metadata) GetName() string { return m.Name }

// GetHelp returns the metric's help text.
func (m Metadata) GetHelp() string { return m.Help }

// Iterable provides a method for exporting a metric in the prometheus data
// model.
type Iterable interface {
	GetName() string
	GetHelp() string
	GetType() *prometheusgo.MetricType
	ToPrometheusMetric() *prometheusgo.Metric
}

// A Counter holds a single monotonically increasing value.
type Counter struct {
	Metadata
	count atomic.Int64
}

// NewCounter creates a counter.
func NewCounter(metadata Metadata) *Counter {
	return &Counter{Metadata: metadata}
}

// Inc increments the counter.
func (c *Counter) Inc(i int64) {
	c.count.Add(i)
}

// Count returns the current value of the counter.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

// GetType returns the prometheus type enum for this metric.
func (c *Counter) GetType() *prometheusgo.MetricType {
	return prometheusgo.MetricType_COUNTER.Enum()
}

// ToPrometheusMetric returns a filled-in prometheus metric.
func (c *Counter) ToPrometheusMetric() *prometheusgo.Metric {
	return &prometheusgo.Metric{
		Counter: &prometheusgo.Counter{Value: proto.Float64(float64(c.Count()))},
	}
}

// A Gauge holds a single settable value.
type Gauge struct {
	Metadata
	value atomic.Int64
}

// NewGauge creates a gauge.
func NewGauge(metadata Metadata) *Gauge {
	return &Gauge{Metadata: metadata}
}

// Update sets the gauge's value.
func (g *Gauge) Update(v int64) {
	g.value.Store(v)
}

// Inc increments the gauge's value.
func (g *Gauge) Inc(i int64) {
	g.value.Add(i)
}

// Dec decrements the gauge's value.
func (g *Gauge) Dec(i int64) {
	g.value.Add(-i)
}

// Value returns the gauge's current value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// GetType returns the prometheus type enum for this metric.
func (g *Gauge) GetType() *prometheusgo.MetricType {
	return prometheusgo.MetricType_GAUGE.Enum()
}

// ToPrometheusMetric returns a filled-in prometheus metric.
func (g *Gauge) ToPrometheusMetric() *prometheusgo.Metric {
	return &prometheusgo.Metric{
		Gauge: &prometheusgo.Gauge{Value: proto.Float64(float64(g.Value()))},
	}
}
