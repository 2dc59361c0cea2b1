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

// Package series provides the canonical in-memory representation of a
// discretely sampled time series: parallel slices of epoch-second
// timestamps and values on an implicit fixed step. A missing
// timestamp is a gap, never a zero.
package series

import "math"

// StatusComplete is the only status the engine ever reports - a
// returned series is always fully resolved for the range it covers.
const StatusComplete = "complete"

type Series struct {
	Label      string
	Unit       string
	Status     string
	Timestamps []int64
	Values     []float64
}

func New(label string) *Series {
	return &Series{
		Label:      label,
		Status:     StatusComplete,
		Timestamps: make([]int64, 0),
		Values:     make([]float64, 0),
	}
}

func (s *Series) Len() int {
	return len(s.Timestamps)
}

// Append adds a data point. Timestamps must arrive in ascending
// order, the caller guarantees it.
func (s *Series) Append(ts int64, value float64) {
	s.Timestamps = append(s.Timestamps, ts)
	s.Values = append(s.Values, value)
}

// TimeMap is a timestamp -> value lookup. Keys are whole epoch
// seconds, never floats, so that lookups cannot miss on precision.
type TimeMap map[int64]float64

func (m TimeMap) Value(ts int64) (float64, bool) {
	v, ok := m[ts]
	return v, ok
}

// TimeMap builds the lookup from the parallel slices. Duplicate
// timestamps are not expected; last write wins if they occur.
func (s *Series) TimeMap() TimeMap {
	m := make(TimeMap, len(s.Timestamps))
	for i, ts := range s.Timestamps {
		m[ts] = s.Values[i]
	}
	return m
}

// Summary holds whole-series aggregate statistics.
type Summary struct {
	Min, Max, Sum, Avg float64
	Count              int
}

// Summarize computes min/max/sum/avg in a single linear pass. NaN
// values count as gaps and are skipped. A series with no data points
// yields a zero Count and NaN statistics.
func Summarize(s *Series) Summary {
	sum := Summary{Min: math.NaN(), Max: math.NaN(), Sum: math.NaN(), Avg: math.NaN()}
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		if sum.Count == 0 {
			sum.Min, sum.Max, sum.Sum = v, v, v
		} else {
			if v < sum.Min {
				sum.Min = v
			}
			if v > sum.Max {
				sum.Max = v
			}
			sum.Sum += v
		}
		sum.Count++
	}
	if sum.Count > 0 {
		sum.Avg = sum.Sum / float64(sum.Count)
	}
	return sum
}
