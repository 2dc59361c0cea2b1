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
	"math"
	"sort"
	"sync"
)

// MemFetcher is a complete in-memory metric backend. It exists for
// tests and for running the daemon without external storage.
type MemFetcher struct {
	mu      sync.RWMutex
	metrics map[string]*memMetric
}

type memMetric struct {
	metric  Metric
	samples []memSample // sorted by ts
}

type memSample struct {
	ts int64
	v  float64
}

func NewMemFetcher() *MemFetcher {
	return &MemFetcher{metrics: make(map[string]*memMetric)}
}

func (m *MemFetcher) AddSample(metric Metric, ts int64, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metric.Key()
	mm := m.metrics[key]
	if mm == nil {
		mm = &memMetric{metric: metric}
		m.metrics[key] = mm
	}
	mm.samples = append(mm.samples, memSample{ts, value})
	sort.Slice(mm.samples, func(i, j int) bool { return mm.samples[i].ts < mm.samples[j].ts })
}

func (m *MemFetcher) Fetch(w Window, specs []SeriesSpec) ([]RawSeries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RawSeries, len(specs))
	for i, spec := range specs {
		rs := RawSeries{ID: spec.ID, Label: spec.Metric.Label()}
		if mm := m.metrics[spec.Metric.Key()]; mm != nil {
			if spec.Range {
				rs.Timestamps, rs.Values = mm.rangePercent(w, spec.Bottom, spec.Top)
			} else {
				rs.Timestamps, rs.Values = mm.gridSeries(w, spec.Stat)
			}
		}
		result[i] = rs
	}
	return result, nil
}

func (m *MemFetcher) FetchExpression(w Window, expr string) ([]RawSeries, error) {
	pattern, err := ParseMetric(expr)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.metrics))
	for key := range m.metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]RawSeries, 0)
	for _, key := range keys {
		mm := m.metrics[key]
		if !matchMetric(pattern, mm.metric) {
			continue
		}
		rs := RawSeries{ID: key, Label: mm.metric.Label()}
		rs.Timestamps, rs.Values = mm.gridSeries(w, StatAvg)
		result = append(result, rs)
	}
	return result, nil
}

// matchMetric compares a pattern metric to a concrete one; a "*"
// field in the pattern matches anything, pattern dimensions must be
// a subset of the metric's.
func matchMetric(pattern, m Metric) bool {
	if pattern.Namespace != "*" && pattern.Namespace != m.Namespace {
		return false
	}
	if pattern.Name != "*" && pattern.Name != m.Name {
		return false
	}
	for name, want := range pattern.Dimensions {
		if got, ok := m.Dimensions[name]; !ok || (want != "*" && want != got) {
			return false
		}
	}
	return true
}

func (mm *memMetric) gridSeries(w Window, stat Stat) ([]int64, []float64) {
	nslots := (w.End - w.Start + w.Period - 1) / w.Period
	sums := make([]float64, nslots)
	mins := make([]float64, nslots)
	maxs := make([]float64, nslots)
	counts := make([]int64, nslots)

	for _, s := range mm.samples {
		if s.ts < w.Start || s.ts >= w.End {
			continue
		}
		slot := (s.ts - w.Start) / w.Period
		if counts[slot] == 0 {
			mins[slot], maxs[slot] = s.v, s.v
		} else {
			mins[slot] = math.Min(mins[slot], s.v)
			maxs[slot] = math.Max(maxs[slot], s.v)
		}
		sums[slot] += s.v
		counts[slot]++
	}

	ts := make([]int64, 0, nslots)
	vals := make([]float64, 0, nslots)
	for slot := int64(0); slot < nslots; slot++ {
		if counts[slot] == 0 {
			continue // gap, not zero
		}
		var v float64
		switch stat {
		case StatMin:
			v = mins[slot]
		case StatMax:
			v = maxs[slot]
		case StatSum:
			v = sums[slot]
		case StatSampleCount:
			v = float64(counts[slot])
		default:
			v = sums[slot] / float64(counts[slot])
		}
		ts = append(ts, w.Start+slot*w.Period)
		vals = append(vals, v)
	}
	return ts, vals
}

// rangePercent answers the percentile-range statistic: the share of
// window samples with value in [bottom, top), as a 0-100 percentage.
func (mm *memMetric) rangePercent(w Window, bottom, top float64) ([]int64, []float64) {
	var total, in int64
	for _, s := range mm.samples {
		if s.ts < w.Start || s.ts >= w.End {
			continue
		}
		total++
		if s.v >= bottom && s.v < top {
			in++
		}
	}
	if total == 0 {
		return nil, nil
	}
	return []int64{w.Start}, []float64{100 * float64(in) / float64(total)}
}
