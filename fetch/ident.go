//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
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

package fetch

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// Ident is a set of dimension name/value pairs identifying a metric
// within its namespace.
type Ident map[string]string

// String renders dimensions canonically (sorted by name), suitable
// as a map key or a display fragment.
func (it Ident) String() string {
	names := make([]string, 0, len(it))
	for name := range it {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + it[name]
	}
	return strings.Join(parts, ",")
}

// Metric identifies a raw series at the backend.
type Metric struct {
	Namespace, Name string
	Dimensions      Ident
}

// Key is the canonical identity of the metric, dimensions sorted.
func (m Metric) Key() string {
	if len(m.Dimensions) == 0 {
		return m.Namespace + "," + m.Name
	}
	return m.Namespace + "," + m.Name + "," + m.Dimensions.String()
}

// Label is the display form used for output series.
func (m Metric) Label() string {
	if len(m.Dimensions) == 0 {
		return m.Name
	}
	return m.Name + " " + m.Dimensions.String()
}

// Parsed metric names are pure derived values, safe to memoize
// process-wide.
var metricCache, _ = lru.New(512)

// ParseMetric decodes the metric name encoding: comma-separated,
// percent-encoded fields - namespace, metric name, then zero or more
// dimension name/value pairs. Fewer than two fields, an odd total
// field count, or a bad percent escape is an error.
func ParseMetric(s string) (Metric, error) {
	if m, ok := metricCache.Get(s); ok {
		return m.(Metric), nil
	}

	fields := strings.Split(s, ",")
	if len(fields) < 2 {
		return Metric{}, fmt.Errorf("metric %q: expecting at least namespace and name", s)
	}
	if len(fields)%2 != 0 {
		return Metric{}, fmt.Errorf("metric %q: odd field count %d, dimensions must be name/value pairs", s, len(fields))
	}

	decoded := make([]string, len(fields))
	for i, f := range fields {
		d, err := url.QueryUnescape(f)
		if err != nil {
			return Metric{}, fmt.Errorf("metric %q: field %d: %v", s, i+1, err)
		}
		decoded[i] = d
	}

	m := Metric{Namespace: decoded[0], Name: decoded[1], Dimensions: make(Ident)}
	for i := 2; i < len(decoded); i += 2 {
		m.Dimensions[decoded[i]] = decoded[i+1]
	}

	metricCache.Add(s, m)
	return m, nil
}
