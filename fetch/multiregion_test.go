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
	"strings"
	"testing"
	"time"
)

// fakeFetcher answers every spec with a single point carrying its
// marker value, after an optional delay, or fails outright.
type fakeFetcher struct {
	marker float64
	delay  time.Duration
	fail   bool
}

func (f *fakeFetcher) Fetch(w Window, specs []SeriesSpec) ([]RawSeries, error) {
	time.Sleep(f.delay)
	if f.fail {
		return nil, fmt.Errorf("backend unavailable")
	}
	result := make([]RawSeries, len(specs))
	for i, spec := range specs {
		result[i] = RawSeries{ID: spec.ID, Timestamps: []int64{w.Start}, Values: []float64{f.marker}}
	}
	return result, nil
}

func (f *fakeFetcher) FetchExpression(w Window, expr string) ([]RawSeries, error) {
	return nil, nil
}

func Test_multiregion_OrderPreserved(t *testing.T) {
	// The slowest region comes first; output must still follow the
	// request order, not completion order.
	rm := RegionMap{
		"us-east-1": &fakeFetcher{marker: 1, delay: 50 * time.Millisecond},
		"us-west-2": &fakeFetcher{marker: 2},
		"eu-west-1": &fakeFetcher{marker: 3},
	}
	w := Window{Start: 1000, End: 1600, Period: 60}
	specs := []SeriesSpec{{ID: "q1"}}

	results, err := rm.FanOut([]string{"us-east-1", "us-west-2", "eu-west-1"}, w, specs)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3} {
		if results[i][0].Values[0] != want {
			t.Errorf("results[%d] marker = %v, want %v", i, results[i][0].Values[0], want)
		}
	}
}

func Test_multiregion_AnyFailureFailsAll(t *testing.T) {
	rm := RegionMap{
		"us-east-1": &fakeFetcher{marker: 1},
		"us-west-2": &fakeFetcher{marker: 2, fail: true},
		"eu-west-1": &fakeFetcher{marker: 3},
	}
	w := Window{Start: 1000, End: 1600, Period: 60}

	results, err := rm.FanOut([]string{"us-east-1", "us-west-2", "eu-west-1"}, w, []SeriesSpec{{ID: "q1"}})
	if err == nil {
		t.Fatal("expected failure when one region fails")
	}
	if results != nil {
		t.Errorf("no partial results on failure, got %v", results)
	}
	if !strings.Contains(err.Error(), "us-west-2") {
		t.Errorf("error should name the failing region: %v", err)
	}
}

func Test_multiregion_UnknownRegion(t *testing.T) {
	rm := RegionMap{"us-east-1": &fakeFetcher{}}
	_, err := rm.FanOut([]string{"us-east-1", "mars-1"}, Window{Start: 0, End: 60, Period: 60}, nil)
	if err == nil || !strings.Contains(err.Error(), "mars-1") {
		t.Errorf("expected unknown region error, got %v", err)
	}
}
