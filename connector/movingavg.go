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
	"fmt"
	"math"

	"github.com/mconn/mconn/fetch"
	"github.com/mconn/mconn/series"
)

// movingAvg produces a trailing-window average series. The window is
// N timestamp slots, gaps included as empty slots; only present
// values enter the accumulators, and a slot window with no samples at
// all emits nothing for that timestamp.
type movingAvg struct {
	reg *Registry
}

var movingAvgArgs = []argDef{
	{"metric", argMetric, nil},
	{"windowLength", argNumber, nil},
}

func (c *movingAvg) Describe() Description {
	return Description{
		DisplayName: "Moving average",
		Defaults:    []string{"namespace,metric-name", "10"},
		Documentation: "Computes the trailing moving average of a metric over a window " +
			"of N periods. Missing samples are tolerated: each point is the average " +
			"of however many samples its window actually holds.",
	}
}

func (c *movingAvg) Compute(req Request) ([]*series.Series, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, Validationf("%v", err)
	}
	argm, err := processArgs(movingAvgArgs, false, req.Args)
	if err != nil {
		return nil, err
	}
	metric := argm["metric"].(fetch.Metric)
	n, err := intArg("windowLength", argm["windowLength"].(float64))
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, Validationf("windowLength must be at least 2, got %d", n)
	}

	f, err := c.reg.fetcher(req.Region)
	if err != nil {
		return nil, err
	}

	// Fetch enough history to fill the first window.
	w := req.Window
	lookback := fetch.Window{Start: w.Start - (n-1)*w.Period, End: w.End, Period: w.Period}
	raws, err := f.Fetch(lookback, []fetch.SeriesSpec{{ID: "m1", Metric: metric, Stat: fetch.StatAvg}})
	if err != nil {
		return nil, Internalf("fetch: %v", err)
	}
	matched, err := fetch.MatchByID([]fetch.SeriesSpec{{ID: "m1"}}, raws)
	if err != nil {
		return nil, Internalf("%v", err)
	}
	raw := matched[0]

	out := series.New(fmt.Sprintf("movingavg(%s, %d)", metric.Label(), n))
	if len(raw.Timestamps) == 0 {
		return []*series.Series{out}, nil
	}

	// Anchor the walk at the earliest timestamp the backend actually
	// returned. If it has no data as far back as the theoretical
	// lookback start, starting there would count unfetched history as
	// real gaps.
	tm := make(series.TimeMap, len(raw.Timestamps))
	for i, ts := range raw.Timestamps {
		tm[ts] = raw.Values[i]
	}
	anchor := raw.Timestamps[0]

	var (
		ring  = make([]float64, n)
		sum   float64
		count int
	)
	for step := int64(0); ; step++ {
		t := anchor + step*w.Period
		if t >= w.End {
			break
		}

		pos := step % n
		if step >= n {
			// The window is full, evict the slot falling off its back.
			if old := ring[pos]; !math.IsNaN(old) {
				sum -= old
				count--
			}
		}
		v, present := tm.Value(t)
		if present {
			ring[pos] = v
			sum += v
			count++
		} else {
			ring[pos] = math.NaN()
		}

		if t >= w.Start && count > 0 {
			out.Append(t, sum/float64(count))
		}
	}

	return []*series.Series{out}, nil
}
