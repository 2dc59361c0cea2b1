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

// Package http exposes the connectors over HTTP: one POST endpoint
// per invocation carrying the operation, arguments and query window
// as JSON.
package http

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mconn/mconn/connector"
	"github.com/mconn/mconn/fetch"
	"github.com/mconn/mconn/series"
)

// invocation is the wire form of one connector call.
type invocation struct {
	Operation string        `json:"operation"`
	Arguments []interface{} `json:"arguments"`
	Start     int64         `json:"start"`
	End       int64         `json:"end"`
	Period    int64         `json:"period"`
	Region    string        `json:"region"`
}

type describeResponse struct {
	Name          string   `json:"name"`
	Defaults      []string `json:"defaults"`
	Documentation string   `json:"documentation"`
}

type seriesResponse struct {
	Series []outSeries `json:"series"`
}

type outSeries struct {
	Status     string    `json:"status"`
	Label      string    `json:"label"`
	Timestamps []int64   `json:"timestamps"`
	Values     []float64 `json:"values"`
	Unit       string    `json:"unit,omitempty"`
}

type errorResponse struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// ConnectorHandler dispatches POST /connector/{name}. Validation
// failures (the caller's fault) come back 400, everything else 500,
// both with a category/message JSON body.
func ConnectorHandler(reg *connector.Registry) http.HandlerFunc {
	return makeGzipHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != "POST" {
			writeError(w, connector.Validationf("method %s not allowed, POST required", r.Method))
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/connector/")
		c, ok := reg.Get(name)
		if !ok {
			writeError(w, connector.Validationf("unknown connector: %q", name))
			return
		}

		var inv invocation
		if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
			writeError(w, connector.Validationf("bad request body: %v", err))
			return
		}

		start := time.Now()
		switch inv.Operation {
		case "describe":
			d := c.Describe()
			writeJSON(w, describeResponse{
				Name:          d.DisplayName,
				Defaults:      d.Defaults,
				Documentation: d.Documentation,
			})
		case "compute":
			args, err := decodeArgs(inv.Arguments)
			if err != nil {
				writeError(w, err)
				return
			}
			result, err := c.Compute(connector.Request{
				Window: fetch.Window{Start: inv.Start, End: inv.End, Period: inv.Period},
				Args:   args,
				Region: inv.Region,
			})
			if err != nil {
				log.Printf("ConnectorHandler: %s: %v", name, err)
				writeError(w, err)
				return
			}
			writeJSON(w, toResponse(result))
			log.Printf("ConnectorHandler: %s computed %d series in %v", name, len(result), time.Now().Sub(start))
		default:
			writeError(w, connector.Validationf("unknown operation: %q", inv.Operation))
		}
	})
}

// PingHandler answers liveness probes.
func PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { fmt.Fprintf(w, "OK\n") }
}

// decodeArgs maps JSON values onto connector arguments. Only strings
// and numbers are legal; anything else in the list is the caller's
// mistake.
func decodeArgs(raw []interface{}) ([]connector.Arg, error) {
	args := make([]connector.Arg, len(raw))
	for i, v := range raw {
		switch tv := v.(type) {
		case string:
			args[i] = connector.StringArg(tv)
		case float64:
			args[i] = connector.NumberArg(tv)
		default:
			return nil, connector.Validationf("argument %d: expecting a string or a number, got %T", i+1, v)
		}
	}
	return args, nil
}

func toResponse(result []*series.Series) seriesResponse {
	out := make([]outSeries, len(result))
	for i, s := range result {
		out[i] = outSeries{
			Status:     s.Status,
			Label:      s.Label,
			Timestamps: s.Timestamps,
			Values:     s.Values,
			Unit:       s.Unit,
		}
		// Zero-length series still marshal as [], not null.
		if out[i].Timestamps == nil {
			out[i].Timestamps = []int64{}
			out[i].Values = []float64{}
		}
	}
	return seriesResponse{Series: out}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := connector.KindOf(err)
	if kind == connector.ErrValidation {
		w.WriteHeader(http.StatusBadRequest)
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	writeJSON(w, errorResponse{Category: kind.String(), Message: err.Error()})
}

type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func makeGzipHandler(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			fn(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		fn(gzipResponseWriter{Writer: gz, ResponseWriter: w}, r)
	}
}
