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
	"reflect"

	"github.com/parekhparth/presto/pkg/util/syncutil"
)

// A Registry bundles up metrics to provide a single point of access to them.
type Registry struct {
	syncutil.Mutex
	tracked []Iterable
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddMetric adds the passed-in metric to the registry.
func (r *Registry) AddMetric(metric Iterable) {
	r.Lock()
	defer r.Unlock()
	r.tracked = append(r.tracked, metric)
}

// AddMetricStruct examines the top-level fields of metricStruct and adds all
// Iterable or slice-of-Iterable objects to the registry. Nested structs are
// not descended into.
func (r *Registry) AddMetricStruct(metricStruct interface{}) {
	v := reflect.ValueOf(metricStruct)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < v.NumField(); i++ {
		vfield := v.Field(i)
		if !vfield.CanInterface() {
			continue
		}
		switch vfield.Kind() {
		case reflect.Slice, reflect.Array:
			for j := 0; j < vfield.Len(); j++ {
				if metric, ok := vfield.Index(j).Interface().(Iterable); ok && metric != nil {
					r.AddMetric(metric)
				}
			}
		default:
			if metric, ok := vfield.Interface().(Iterable); ok && metric != nil {
				r.AddMetric(metric)
			}
		}
	}
}

// Each calls the given closure for all metrics.
func (r *Registry) Each(f func(Iterable)) {
	r.Lock()
	defer r.Unlock()
	for _, metric := range r.tracked {
		f(metric)
	}
}
