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
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mconn/mconn/fetch"
)

const testRegion = "us-east-1"

func newTestRegistry() (*Registry, *fetch.MemFetcher) {
	mem := fetch.NewMemFetcher()
	reg := NewRegistry(fetch.RegionMap{testRegion: mem}, testRegion)
	return reg, mem
}

func mustMetric(t *testing.T, name string) fetch.Metric {
	t.Helper()
	m, err := fetch.ParseMetric(name)
	if err != nil {
		t.Fatalf("ParseMetric(%q): %v", name, err)
	}
	return m
}

func wantValidation(t *testing.T, err error, what string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected a validation error, got nil", what)
		return
	}
	if KindOf(err) != ErrValidation {
		t.Errorf("%s: expected a validation error, got %v (%v)", what, KindOf(err), err)
	}
}

func Test_connector_errorKinds(t *testing.T) {
	if KindOf(Validationf("x")) != ErrValidation {
		t.Errorf("Validationf should classify as validation")
	}
	if KindOf(Internalf("x")) != ErrInternal {
		t.Errorf("Internalf should classify as internal")
	}
	if KindOf(errors.New("plain")) != ErrInternal {
		t.Errorf("a plain error should default to internal")
	}
	if ErrValidation.String() != "validation" || ErrInternal.String() != "internal" {
		t.Errorf("unexpected kind names: %v %v", ErrValidation, ErrInternal)
	}
}

func Test_connector_processArgs(t *testing.T) {
	defs := []argDef{
		{"metric", argMetric, nil},
		{"n", argNumber, 5.0},
	}

	argm, err := processArgs(defs, false, []Arg{StringArg("NS,m1")})
	if err != nil {
		t.Fatalf("processArgs: %v", err)
	}
	if argm["metric"].(fetch.Metric).Name != "m1" {
		t.Errorf("metric arg not parsed: %+v", argm["metric"])
	}
	if argm["n"].(float64) != 5.0 {
		t.Errorf("default not applied: %v", argm["n"])
	}

	// Numbers may arrive as strings.
	argm, err = processArgs(defs, false, []Arg{StringArg("NS,m1"), StringArg("3")})
	if err != nil {
		t.Fatalf("processArgs: %v", err)
	}
	if argm["n"].(float64) != 3.0 {
		t.Errorf("numeric string not converted: %v", argm["n"])
	}

	_, err = processArgs(defs, false, nil)
	wantValidation(t, err, "missing required arg")

	_, err = processArgs(defs, false, []Arg{StringArg("NS,m1"), NumberArg(1), NumberArg(2)})
	wantValidation(t, err, "too many args")

	_, err = processArgs(defs, false, []Arg{StringArg("no-comma")})
	wantValidation(t, err, "bad metric")

	_, err = processArgs(defs, false, []Arg{StringArg("NS,m1"), StringArg("three")})
	wantValidation(t, err, "non-numeric number arg")
}

func Test_connector_processArgs_varArg(t *testing.T) {
	defs := []argDef{
		{"metric", argMetric, nil},
		{"region", argString, nil},
	}

	argm, err := processArgs(defs, true, []Arg{StringArg("NS,m1"), StringArg("a"), StringArg("b")})
	if err != nil {
		t.Fatalf("processArgs: %v", err)
	}
	rest := argm["region"].([]interface{})
	if !reflect.DeepEqual(rest, []interface{}{"a", "b"}) {
		t.Errorf("varArg collected %v", rest)
	}

	_, err = processArgs(defs, true, []Arg{StringArg("NS,m1")})
	wantValidation(t, err, "empty varArg without default")
}

func Test_connector_processArgs_duration(t *testing.T) {
	defs := []argDef{{"shift", argDuration, nil}}

	argm, err := processArgs(defs, false, []Arg{StringArg("P1DT12H")})
	if err != nil {
		t.Fatalf("processArgs: %v", err)
	}
	if argm["shift"].(time.Duration) != 36*time.Hour {
		t.Errorf("P1DT12H = %v", argm["shift"])
	}

	_, err = processArgs(defs, false, []Arg{NumberArg(7)})
	wantValidation(t, err, "numeric duration")

	_, err = processArgs(defs, false, []Arg{StringArg("7 days")})
	wantValidation(t, err, "bad duration grammar")

	_, err = processArgs(defs, false, []Arg{StringArg("PT0S")})
	wantValidation(t, err, "zero duration")
}

func Test_connector_intArg(t *testing.T) {
	if n, err := intArg("n", 42); err != nil || n != 42 {
		t.Errorf("intArg(42) = %v, %v", n, err)
	}
	_, err := intArg("n", 2.5)
	wantValidation(t, err, "fractional intArg")
}

func Test_connector_registry(t *testing.T) {
	reg, _ := newTestRegistry()

	want := []string{"filter", "histogram", "movingavg", "multiregion", "timeshift"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	for _, name := range want {
		c, ok := reg.Get(name)
		if !ok {
			t.Errorf("Get(%q) not found", name)
			continue
		}
		d := c.Describe()
		if d.DisplayName == "" || d.Documentation == "" {
			t.Errorf("%s: incomplete description: %+v", name, d)
		}
	}
	if _, ok := reg.Get("nope"); ok {
		t.Errorf("Get should miss on unknown name")
	}

	if _, err := reg.fetcher(""); err != nil {
		t.Errorf("empty region should fall back to the default: %v", err)
	}
	_, err := reg.fetcher("mars-north-1")
	wantValidation(t, err, "unknown region")
}

func Test_connector_rawToSeries(t *testing.T) {
	raw := fetch.RawSeries{
		Timestamps: []int64{90, 100, 110, 120},
		Values:     []float64{1, 2, 3, 4},
	}
	s := rawToSeries(raw, "x", fetch.Window{Start: 100, End: 120, Period: 10})
	if !reflect.DeepEqual(s.Timestamps, []int64{100, 110}) {
		t.Errorf("window not clipped: %v", s.Timestamps)
	}
	if !reflect.DeepEqual(s.Values, []float64{2, 3}) {
		t.Errorf("values out of step: %v", s.Values)
	}
}

func Test_connector_shiftLabel(t *testing.T) {
	if got := shiftLabel(0); got != "current" {
		t.Errorf("shiftLabel(0) = %q", got)
	}
	if got := shiftLabel(7 * 24 * time.Hour); got != "7d" {
		t.Errorf("shiftLabel(7d) = %q", got)
	}
}
