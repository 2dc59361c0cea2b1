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
	"testing"

	"github.com/mconn/mconn/fetch"
)

func Test_histogram_singleBucket(t *testing.T) {
	reg, mem := newTestRegistry()
	m := mustMetric(t, "NS,lat")
	mem.AddSample(m, 1000, 1)
	mem.AddSample(m, 1010, 2)
	mem.AddSample(m, 1020, 3)

	c, _ := reg.Get("histogram")
	out, err := c.Compute(Request{
		Window: fetch.Window{Start: 1000, End: 1060, Period: 10},
		Args:   []Arg{StringArg("NS,lat"), NumberArg(1)},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket series, got %d", len(out))
	}
	s := out[0]
	if s.Len() != 1 || s.Timestamps[0] != 1000 {
		t.Fatalf("expected one point at window start, got %v", s.Timestamps)
	}
	// One bucket spans the whole sampled range, so it holds every
	// sample.
	if s.Values[0] != 3 {
		t.Errorf("bucket count = %v, want 3", s.Values[0])
	}
	if s.Unit != "Count" {
		t.Errorf("unit = %q", s.Unit)
	}
	if s.Label == "" {
		t.Errorf("bucket series needs a value label")
	}
}

func Test_histogram_countsSumToTotal(t *testing.T) {
	reg, mem := newTestRegistry()
	m := mustMetric(t, "NS,lat")
	for i, v := range []float64{1, 1, 1, 10} {
		mem.AddSample(m, 1000+int64(i)*10, v)
	}

	c, _ := reg.Get("histogram")
	out, err := c.Compute(Request{
		Window: fetch.Window{Start: 1000, End: 1100, Period: 10},
		Args:   []Arg{StringArg("NS,lat"), NumberArg(3)},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 bucket series, got %d", len(out))
	}

	// Buckets tile [min, max] without overlap, so the per-bucket
	// shares convert back to counts that sum to the sample total.
	var sum float64
	for _, s := range out {
		if s.Len() != 1 {
			t.Fatalf("bucket %q has %d points", s.Label, s.Len())
		}
		sum += s.Values[0]
	}
	if sum != 4 {
		t.Errorf("bucket counts sum to %v, want 4", sum)
	}
}

func Test_histogram_emptyWindow(t *testing.T) {
	reg, _ := newTestRegistry()

	c, _ := reg.Get("histogram")
	out, err := c.Compute(Request{
		Window: fetch.Window{Start: 1000, End: 1060, Period: 10},
		Args:   []Arg{StringArg("NS,silent"), NumberArg(2)},
	})
	if err != nil {
		t.Fatalf("an empty window is not an error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 bucket series, got %d", len(out))
	}
	for _, s := range out {
		if s.Len() != 1 || s.Values[0] != 0 {
			t.Errorf("empty window should yield zero counts, got %v", s.Values)
		}
	}
}

func Test_histogram_validation(t *testing.T) {
	reg, _ := newTestRegistry()
	c, _ := reg.Get("histogram")
	w := fetch.Window{Start: 1000, End: 1060, Period: 10}

	_, err := c.Compute(Request{Window: w, Args: []Arg{StringArg("NS,lat"), NumberArg(0)}})
	wantValidation(t, err, "zero buckets")

	_, err = c.Compute(Request{Window: w, Args: []Arg{StringArg("NS,lat"), NumberArg(501)}})
	wantValidation(t, err, "too many buckets")

	_, err = c.Compute(Request{Window: w, Args: []Arg{StringArg("NS,lat"), NumberArg(10.5)}})
	wantValidation(t, err, "fractional buckets")
}
