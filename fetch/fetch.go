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

// Package fetch is the boundary to the raw metric backend. A Fetcher
// answers window queries with raw timestamped samples; implementations
// exist for PostgreSQL, a JSON HTTP backend and an in-memory store.
// The engine never assumes results arrive densely or in request
// order - series are matched back to their specs by request ID.
package fetch

import "fmt"

// Window is the query range: a half-open [Start, End) in epoch
// seconds with samples expected (not guaranteed) every Period.
type Window struct {
	Start, End, Period int64
}

func (w Window) Validate() error {
	if w.Start >= w.End {
		return fmt.Errorf("start (%d) must precede end (%d)", w.Start, w.End)
	}
	if w.Period <= 0 {
		return fmt.Errorf("period must be positive, got %d", w.Period)
	}
	return nil
}

// WholeWindow collapses the window into a single slot, for aggregate
// statistics over the entire range.
func (w Window) WholeWindow() Window {
	return Window{Start: w.Start, End: w.End, Period: w.End - w.Start}
}

type Stat int

const (
	StatAvg Stat = iota
	StatMin
	StatMax
	StatSum
	StatSampleCount
)

func (s Stat) String() string {
	switch s {
	case StatAvg:
		return "avg"
	case StatMin:
		return "min"
	case StatMax:
		return "max"
	case StatSum:
		return "sum"
	case StatSampleCount:
		return "samplecount"
	}
	return "unknown"
}

// SeriesSpec describes one requested series. When Range is set, the
// spec is a percentile-range statistic: the percentage (0-100) of
// samples over the window whose value falls in [Bottom, Top).
type SeriesSpec struct {
	ID     string
	Metric Metric
	Stat   Stat

	Range       bool
	Bottom, Top float64
}

// RawSeries is what a backend hands back: timestamps already
// converted to epoch seconds, values index-aligned.
type RawSeries struct {
	ID         string
	Label      string
	Timestamps []int64
	Values     []float64
}

// A Fetcher retrieves raw series from a metric backend. Fetch returns
// exactly one series per spec, possibly empty, in arbitrary order.
// FetchExpression expands a search expression into zero or more
// average-stat series.
type Fetcher interface {
	Fetch(w Window, specs []SeriesSpec) ([]RawSeries, error)
	FetchExpression(w Window, expr string) ([]RawSeries, error)
}

// MatchByID reorders backend results into spec order. A missing ID is
// an error - the backend must answer every spec, if only emptily.
func MatchByID(specs []SeriesSpec, raws []RawSeries) ([]RawSeries, error) {
	byID := make(map[string]*RawSeries, len(raws))
	for i := range raws {
		byID[raws[i].ID] = &raws[i]
	}
	result := make([]RawSeries, len(specs))
	for i, spec := range specs {
		rs, ok := byID[spec.ID]
		if !ok {
			return nil, fmt.Errorf("backend returned no series for request id %q", spec.ID)
		}
		result[i] = *rs
	}
	return result, nil
}

// FirstValue returns the sole meaningful value of a whole-window
// aggregate series, or dflt if the backend had nothing.
func FirstValue(rs RawSeries, dflt float64) float64 {
	if len(rs.Values) == 0 {
		return dflt
	}
	return rs.Values[0]
}
