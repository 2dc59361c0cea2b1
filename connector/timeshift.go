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

package connector

import (
	"math"
	"time"

	"github.com/mconn/mconn/fetch"
	"github.com/mconn/mconn/series"
)

// timeShift produces the metric alongside itself shifted back by 1..N
// multiples of an interval, realigned onto the query grid. Lookup is
// by absolute instant, not index offset, so uneven backend sample
// availability cannot desynchronize the shifted series from the
// unshifted grid.
type timeShift struct {
	reg *Registry
}

var timeShiftArgs = []argDef{
	{"metric", argMetric, nil},
	{"shiftInterval", argDuration, nil},
	{"numberOfShifts", argNumber, 1.0},
}

const maxShifts = 10

func (c *timeShift) Describe() Description {
	return Description{
		DisplayName: "Time shift",
		Defaults:    []string{"namespace,metric-name", "P7D", "1"},
		Documentation: "Returns the metric plus numberOfShifts copies of it, each " +
			"shifted back by a multiple of shiftInterval (a calendar duration such " +
			"as P7D or PT12H) and realigned onto the query grid for comparison.",
	}
}

func (c *timeShift) Compute(req Request) ([]*series.Series, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, Validationf("%v", err)
	}
	argm, err := processArgs(timeShiftArgs, false, req.Args)
	if err != nil {
		return nil, err
	}
	metric := argm["metric"].(fetch.Metric)
	dur := argm["shiftInterval"].(time.Duration)
	shifts, err := intArg("numberOfShifts", argm["numberOfShifts"].(float64))
	if err != nil {
		return nil, err
	}
	if shifts < 1 || shifts > maxShifts {
		return nil, Validationf("numberOfShifts must be between 1 and %d, got %d", maxShifts, shifts)
	}

	// The grid is whole epoch seconds; round the shift to match so
	// instant lookups cannot miss on sub-second drift.
	shiftSecs := int64(math.Round(dur.Seconds()))
	if shiftSecs <= 0 {
		return nil, Validationf("shiftInterval is below one second: %v", dur)
	}

	f, err := c.reg.fetcher(req.Region)
	if err != nil {
		return nil, err
	}

	w := req.Window
	span := fetch.Window{Start: w.Start - shiftSecs*shifts, End: w.End, Period: w.Period}
	raws, err := f.Fetch(span, []fetch.SeriesSpec{{ID: "m1", Metric: metric, Stat: fetch.StatAvg}})
	if err != nil {
		return nil, Internalf("fetch: %v", err)
	}
	matched, err := fetch.MatchByID([]fetch.SeriesSpec{{ID: "m1"}}, raws)
	if err != nil {
		return nil, Internalf("%v", err)
	}
	raw := matched[0]

	tm := make(series.TimeMap, len(raw.Timestamps))
	for i, ts := range raw.Timestamps {
		tm[ts] = raw.Values[i]
	}

	result := make([]*series.Series, 0, shifts+1)
	for i := int64(0); i <= shifts; i++ {
		shift := i * shiftSecs
		out := series.New(shiftLabel(time.Duration(shift) * time.Second))
		// Walk the forward grid; emit only instants the history
		// actually recorded.
		for t := w.Start; t < w.End; t += w.Period {
			if v, ok := tm.Value(t - shift); ok {
				out.Append(t, v)
			}
		}
		result = append(result, out)
	}
	return result, nil
}
