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

// Package connector implements the metric connectors: stateless
// transforms invoked by a monitoring console that derive new series
// from raw backend samples. Each connector declares an ordered
// argument schema, validates eagerly (malformed requests never incur
// a fetch), fetches through the fetch package and applies its
// transform.
package connector

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mconn/mconn/fetch"
	"github.com/mconn/mconn/misc"
	"github.com/mconn/mconn/series"
)

// ErrKind splits failures the caller should not retry (their own bad
// arguments) from ones they may (something broke on our side).
type ErrKind int

const (
	ErrValidation ErrKind = iota
	ErrInternal
)

func (k ErrKind) String() string {
	if k == ErrValidation {
		return "validation"
	}
	return "internal"
}

type Error struct {
	Kind ErrKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInternal, Msg: fmt.Sprintf(format, args...)}
}

// KindOf classifies any error; non-connector errors default to
// internal.
func KindOf(err error) ErrKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrInternal
}

// Arg is one opaque invocation argument: a string or a number.
type Arg struct {
	Str   string
	Num   float64
	IsNum bool
}

func StringArg(s string) Arg  { return Arg{Str: s} }
func NumberArg(f float64) Arg { return Arg{Num: f, IsNum: true} }

func (a Arg) String() string {
	if a.IsNum {
		return strconv.FormatFloat(a.Num, 'g', -1, 64)
	}
	return a.Str
}

type argType int

const (
	argString argType = iota
	argNumber
	argMetric
	argDuration
)

// argDef is one slot of a connector's ordered argument schema. A nil
// dft means the argument is required.
type argDef struct {
	name string
	tp   argType
	dft  interface{}
}

// processArgs validates an argument list against a schema and
// returns a map of converted values. With varArg, the last def
// repeats to the end of the argument list and collects into a slice.
// All failures here are validation errors.
func processArgs(defs []argDef, varArg bool, args []Arg) (map[string]interface{}, error) {
	if !varArg && len(args) > len(defs) {
		return nil, Validationf("expecting at most %d arguments, got %d", len(defs), len(args))
	}

	result := make(map[string]interface{})

	for n, def := range defs {
		if varArg && n == len(defs)-1 {
			rest := make([]interface{}, 0)
			for i := n; i < len(args); i++ {
				v, err := convertArg(def, args[i], i)
				if err != nil {
					return nil, err
				}
				rest = append(rest, v)
			}
			if len(rest) == 0 && def.dft == nil {
				return nil, Validationf("missing argument: %s", def.name)
			}
			result[def.name] = rest
			continue
		}

		var arg Arg
		if n < len(args) {
			arg = args[n]
		} else if def.dft != nil {
			switch d := def.dft.(type) {
			case string:
				arg = StringArg(d)
			case float64:
				arg = NumberArg(d)
			}
		} else {
			return nil, Validationf("expecting argument %d (%s), but there are only %d", n+1, def.name, len(args))
		}

		v, err := convertArg(def, arg, n)
		if err != nil {
			return nil, err
		}
		result[def.name] = v
	}

	return result, nil
}

func convertArg(def argDef, arg Arg, pos int) (interface{}, error) {
	switch def.tp {
	case argString:
		return arg.String(), nil
	case argNumber:
		if arg.IsNum {
			return arg.Num, nil
		}
		if f, err := strconv.ParseFloat(arg.Str, 64); err == nil {
			return f, nil
		}
		return nil, Validationf("argument %d (%q) expecting a number, got: %q", pos+1, def.name, arg.Str)
	case argMetric:
		if arg.IsNum {
			return nil, Validationf("argument %d (%q) expecting a metric name, got a number", pos+1, def.name)
		}
		m, err := fetch.ParseMetric(arg.Str)
		if err != nil {
			return nil, Validationf("argument %d (%q): %v", pos+1, def.name, err)
		}
		return m, nil
	case argDuration:
		if arg.IsNum {
			return nil, Validationf("argument %d (%q) expecting a duration string, got a number", pos+1, def.name)
		}
		d, err := misc.ParseCalendarDuration(arg.Str)
		if err != nil {
			return nil, Validationf("argument %d (%q): %v", pos+1, def.name, err)
		}
		if d <= 0 {
			return nil, Validationf("argument %d (%q) must be a positive interval: %q", pos+1, def.name, arg.Str)
		}
		return d, nil
	}
	return nil, Validationf("invalid argType: %v", def.tp)
}

// intArg converts an already-validated number value to a whole int64.
func intArg(name string, v float64) (int64, error) {
	n := int64(v)
	if float64(n) != v {
		return 0, Validationf("%s must be a whole number, got %v", name, v)
	}
	return n, nil
}

// Description is the static metadata a "describe" invocation returns.
type Description struct {
	DisplayName   string
	Defaults      []string
	Documentation string
}

// Request is one "compute" invocation: the query window, the opaque
// argument list and the target region.
type Request struct {
	Window fetch.Window
	Args   []Arg
	Region string
}

type Connector interface {
	Describe() Description
	Compute(req Request) ([]*series.Series, error)
}

// Registry holds all connectors plus the region-to-backend map they
// fetch through. Everything in it is immutable after construction.
type Registry struct {
	regions       fetch.RegionMap
	defaultRegion string
	connectors    map[string]Connector
}

func NewRegistry(regions fetch.RegionMap, defaultRegion string) *Registry {
	r := &Registry{regions: regions, defaultRegion: defaultRegion}
	r.connectors = map[string]Connector{
		"movingavg":   &movingAvg{r},
		"timeshift":   &timeShift{r},
		"histogram":   &histogram{r},
		"filter":      &thresholdFilter{r},
		"multiregion": &multiRegion{r},
	}
	return r
}

func (r *Registry) Get(name string) (Connector, bool) {
	c, ok := r.connectors[name]
	return c, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fetcher resolves the request's target region. An empty region
// falls back to the configured default; a region we have no backend
// for is the caller's mistake.
func (r *Registry) fetcher(region string) (fetch.Fetcher, error) {
	if region == "" {
		region = r.defaultRegion
	}
	f, ok := r.regions.Region(region)
	if !ok {
		return nil, Validationf("unknown region: %q", region)
	}
	return f, nil
}

// rawToSeries converts a backend series to the output model,
// dropping anything outside [Start, End) - output series never leave
// the requested window.
func rawToSeries(raw fetch.RawSeries, label string, w fetch.Window) *series.Series {
	s := series.New(label)
	for i, ts := range raw.Timestamps {
		if ts < w.Start || ts >= w.End {
			continue
		}
		s.Append(ts, raw.Values[i])
	}
	return s
}

// shiftLabel names a time-shifted series.
func shiftLabel(shift time.Duration) string {
	if shift == 0 {
		return "current"
	}
	return misc.HumanDuration(shift)
}
