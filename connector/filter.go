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
	"strconv"
	"strings"

	"github.com/mconn/mconn/fetch"
	"github.com/mconn/mconn/series"
)

// thresholdFilter expands an expression into candidate series and
// keeps only those whose aggregate statistic passes a comparison.
type thresholdFilter struct {
	reg *Registry
}

var thresholdFilterArgs = []argDef{
	{"expression", argString, nil},
	{"filter", argString, ""},
}

func (c *thresholdFilter) Describe() Description {
	return Description{
		DisplayName: "Threshold filter",
		Defaults:    []string{"namespace,metric-name,dimension,*", "AVG > 0"},
		Documentation: "Expands the expression into series and keeps those whose " +
			"statistic (MIN, MAX, AVG or SUM) satisfies the comparison. An empty " +
			"filter keeps everything.",
	}
}

// predicate is a parsed non-empty filter. The empty filter is
// represented by a nil *predicate - a distinct always-true state,
// not a predicate that happens to pass.
type predicate struct {
	stat      string
	cond      string
	threshold float64
}

var filterStats = map[string]bool{"MIN": true, "MAX": true, "AVG": true, "SUM": true}
var filterConds = map[string]bool{">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true}

func parsePredicate(s string) (*predicate, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return nil, Validationf("filter must be \"STAT CONDITION THRESHOLD\", got %q", s)
	}
	stat := strings.ToUpper(fields[0])
	if !filterStats[stat] {
		return nil, Validationf("unknown filter statistic %q (want MIN, MAX, AVG or SUM)", fields[0])
	}
	if !filterConds[fields[1]] {
		return nil, Validationf("unknown filter condition %q", fields[1])
	}
	threshold, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, Validationf("filter threshold %q is not a number", fields[2])
	}
	return &predicate{stat: stat, cond: fields[1], threshold: threshold}, nil
}

// matches reports whether a series passes. A series with no data
// points never matches a real predicate - none of its statistics are
// computable.
func (p *predicate) matches(s *series.Series) bool {
	if s.Len() == 0 {
		return false
	}
	sum := series.Summarize(s)
	var v float64
	switch p.stat {
	case "MIN":
		v = sum.Min
	case "MAX":
		v = sum.Max
	case "SUM":
		v = sum.Sum
	default:
		v = sum.Avg
	}
	switch p.cond {
	case ">":
		return v > p.threshold
	case ">=":
		return v >= p.threshold
	case "<":
		return v < p.threshold
	case "<=":
		return v <= p.threshold
	case "==":
		return v == p.threshold
	default:
		return v != p.threshold
	}
}

func (c *thresholdFilter) Compute(req Request) ([]*series.Series, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, Validationf("%v", err)
	}
	argm, err := processArgs(thresholdFilterArgs, false, req.Args)
	if err != nil {
		return nil, err
	}
	expr := argm["expression"].(string)
	pred, err := parsePredicate(argm["filter"].(string))
	if err != nil {
		return nil, err
	}
	// Validate the expression before paying for a fetch.
	if _, err := fetch.ParseMetric(expr); err != nil {
		return nil, Validationf("expression: %v", err)
	}

	f, err := c.reg.fetcher(req.Region)
	if err != nil {
		return nil, err
	}
	raws, err := f.FetchExpression(req.Window, expr)
	if err != nil {
		return nil, Internalf("fetch: %v", err)
	}

	result := make([]*series.Series, 0, len(raws))
	for _, raw := range raws {
		s := rawToSeries(raw, raw.Label, req.Window)
		// The empty filter is always true and is checked first, so a
		// zero-length series still passes through it.
		if pred == nil || pred.matches(s) {
			result = append(result, s)
		}
	}
	return result, nil
}
