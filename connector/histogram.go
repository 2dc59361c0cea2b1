//
// Copyright 2017 Gregory Trubetskoy. All Rights Reserved.
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
	"github.com/mconn/mconn/quantize"
	"github.com/mconn/mconn/series"
)

// histogram renders the distribution of a metric's samples over the
// window as a log-scale histogram: the value range is probed first,
// quantized into buckets of constant relative width, then each
// bucket's share of samples is queried as a percentile-range
// statistic and converted to a count.
type histogram struct {
	reg *Registry
}

var histogramArgs = []argDef{
	{"metric", argMetric, nil},
	{"bucketCount", argNumber, 100.0},
}

const maxBuckets = 500

func (c *histogram) Describe() Description {
	return Description{
		DisplayName: "Log-scale histogram",
		Defaults:    []string{"namespace,metric-name", "100"},
		Documentation: "Builds a histogram of all samples in the window on a " +
			"logarithmic value scale, so every bar covers the same relative " +
			"(~10%) value range. Bucket values are sample counts.",
	}
}

func (c *histogram) Compute(req Request) ([]*series.Series, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, Validationf("%v", err)
	}
	argm, err := processArgs(histogramArgs, false, req.Args)
	if err != nil {
		return nil, err
	}
	metric := argm["metric"].(fetch.Metric)
	count, err := intArg("bucketCount", argm["bucketCount"].(float64))
	if err != nil {
		return nil, err
	}
	if count < 1 || count > maxBuckets {
		return nil, Validationf("bucketCount must be between 1 and %d, got %d", maxBuckets, count)
	}

	f, err := c.reg.fetcher(req.Region)
	if err != nil {
		return nil, err
	}

	// Probe the value range and total sample count over the whole
	// window in one shot.
	whole := req.Window.WholeWindow()
	probeSpecs := []fetch.SeriesSpec{
		{ID: "min", Metric: metric, Stat: fetch.StatMin},
		{ID: "max", Metric: metric, Stat: fetch.StatMax},
		{ID: "count", Metric: metric, Stat: fetch.StatSampleCount},
	}
	raws, err := f.Fetch(whole, probeSpecs)
	if err != nil {
		return nil, Internalf("fetch: %v", err)
	}
	probe, err := fetch.MatchByID(probeSpecs, raws)
	if err != nil {
		return nil, Internalf("%v", err)
	}
	// An empty window is not an error; the range collapses to the
	// clamp floor and every count comes out zero.
	minv := fetch.FirstValue(probe[0], quantize.ClampFloor)
	maxv := fetch.FirstValue(probe[1], quantize.ClampFloor)
	total := fetch.FirstValue(probe[2], 0)

	buckets := quantize.BucketRange(minv, maxv, int(count))

	rangeSpecs := make([]fetch.SeriesSpec, len(buckets))
	for i, b := range buckets {
		rangeSpecs[i] = fetch.SeriesSpec{
			ID:     fmt.Sprintf("b%d", i),
			Metric: metric,
			Range:  true,
			Bottom: b.Bottom,
			Top:    b.Top,
		}
	}
	raws, err = f.Fetch(whole, rangeSpecs)
	if err != nil {
		return nil, Internalf("fetch: %v", err)
	}
	shares, err := fetch.MatchByID(rangeSpecs, raws)
	if err != nil {
		return nil, Internalf("%v", err)
	}

	result := make([]*series.Series, len(buckets))
	for i, b := range buckets {
		// The backend reports each bucket's share as a percentage of
		// all samples; the chart wants counts.
		pct := fetch.FirstValue(shares[i], 0)
		n := math.Round(pct * total / 100)

		out := series.New(b.Label)
		out.Unit = "Count"
		out.Append(req.Window.Start, n)
		result[i] = out
	}
	return result, nil
}
