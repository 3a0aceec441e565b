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
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	prometheusgo "github.com/prometheus/client_model/go"
)

// PrometheusExporter exposes the metrics of a Registry as a
// prometheus.Collector so they can be served by the standard prometheus
// client handlers.
type PrometheusExporter struct {
	registry *Registry
}

var _ prometheus.Collector = PrometheusExporter{}

// MakePrometheusExporter returns an exporter for the given registry.
func MakePrometheusExporter(registry *Registry) PrometheusExporter {
	return PrometheusExporter{registry: registry}
}

// exportedName transforms a metric name into the prometheus naming scheme.
func exportedName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// Describe implements prometheus.Collector.
func (pe PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	pe.registry.Each(func(metric Iterable) {
		ch <- prometheus.NewDesc(exportedName(metric.GetName()), metric.GetHelp(), nil, nil)
	})
}

// Collect implements prometheus.Collector.
func (pe PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	pe.registry.Each(func(metric Iterable) {
		ch <- exportedMetric{
			desc:   prometheus.NewDesc(exportedName(metric.GetName()), metric.GetHelp(), nil, nil),
			metric: metric,
		}
	})
}

// exportedMetric adapts an Iterable to the prometheus.Metric interface.
type exportedMetric struct {
	desc   *prometheus.Desc
	metric Iterable
}

// Desc implements prometheus.Metric.
func (m exportedMetric) Desc() *prometheus.Desc {
	return m.desc
}

// Write implements prometheus.Metric.
func (m exportedMetric) Write(out *prometheusgo.Metric) error {
	*out = *m.metric.ToPrometheusMetric()
	return nil
}
