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

	"github.com/mconn/mconn/fetch"
	"github.com/mconn/mconn/series"
)

// multiRegion fetches the same metric from several regional backends
// in parallel and returns one series per region, in the order the
// regions were requested.
type multiRegion struct {
	reg *Registry
}

var multiRegionArgs = []argDef{
	{"metric", argMetric, nil},
	{"region", argString, nil},
}

func (c *multiRegion) Describe() Description {
	return Description{
		DisplayName: "Multi-region",
		Defaults:    []string{"namespace,metric-name", "us-east-1", "eu-west-1"},
		Documentation: "Fetches the average of a metric from every listed region " +
			"concurrently and returns one series per region. All regions must " +
			"succeed; a single failure fails the whole request.",
	}
}

func (c *multiRegion) Compute(req Request) ([]*series.Series, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, Validationf("%v", err)
	}
	argm, err := processArgs(multiRegionArgs, true, req.Args)
	if err != nil {
		return nil, err
	}
	metric := argm["metric"].(fetch.Metric)
	rest := argm["region"].([]interface{})
	regions := make([]string, len(rest))
	for i, v := range rest {
		regions[i] = v.(string)
	}

	// Unknown regions are the caller's mistake, catch them before
	// any goroutine starts.
	for _, name := range regions {
		if _, ok := c.reg.regions.Region(name); !ok {
			return nil, Validationf("unknown region: %q", name)
		}
	}

	specs := []fetch.SeriesSpec{{ID: "m1", Metric: metric, Stat: fetch.StatAvg}}
	perRegion, err := c.reg.regions.FanOut(regions, req.Window, specs)
	if err != nil {
		return nil, Internalf("%v", err)
	}

	result := make([]*series.Series, len(regions))
	for i, raws := range perRegion {
		matched, err := fetch.MatchByID(specs, raws)
		if err != nil {
			return nil, Internalf("region %q: %v", regions[i], err)
		}
		label := fmt.Sprintf("%s (%s)", metric.Label(), regions[i])
		result[i] = rawToSeries(matched[0], label, req.Window)
	}
	return result, nil
}
