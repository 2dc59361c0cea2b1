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

package http

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/mconn/mconn/connector"
	"github.com/mconn/mconn/fetch"
)

func newTestHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	mem := fetch.NewMemFetcher()
	m, err := fetch.ParseMetric("NS,m1")
	if err != nil {
		t.Fatal(err)
	}
	mem.AddSample(m, 990, 4)
	mem.AddSample(m, 1000, 6)
	reg := connector.NewRegistry(fetch.RegionMap{"us-east-1": mem}, "us-east-1")
	return ConnectorHandler(reg)
}

func post(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func Test_http_describe(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/connector/movingavg", `{"operation": "describe"}`)
	if w.Code != 200 {
		t.Fatalf("describe status = %d, body %s", w.Code, w.Body.String())
	}

	var resp describeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad describe body: %v", err)
	}
	if resp.Name == "" || resp.Documentation == "" || len(resp.Defaults) == 0 {
		t.Errorf("incomplete describe response: %+v", resp)
	}
}

func Test_http_compute(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, "/connector/movingavg",
		`{"operation": "compute", "arguments": ["NS,m1", 2], "start": 1000, "end": 1020, "period": 10}`)
	if w.Code != 200 {
		t.Fatalf("compute status = %d, body %s", w.Code, w.Body.String())
	}

	var resp seriesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad compute body: %v", err)
	}
	if len(resp.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(resp.Series))
	}
	s := resp.Series[0]
	if s.Status != "complete" {
		t.Errorf("status = %q", s.Status)
	}
	if !reflect.DeepEqual(s.Timestamps, []int64{1000, 1010}) {
		t.Errorf("timestamps = %v", s.Timestamps)
	}
	if !reflect.DeepEqual(s.Values, []float64{5, 6}) {
		t.Errorf("values = %v", s.Values)
	}
}

func Test_http_failures(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		what, path, body string
		code             int
	}{
		{"unknown connector", "/connector/nope", `{"operation": "describe"}`, 400},
		{"unknown operation", "/connector/movingavg", `{"operation": "destroy"}`, 400},
		{"bad body", "/connector/movingavg", `{{{`, 400},
		{"bad argument type", "/connector/movingavg",
			`{"operation": "compute", "arguments": [["NS,m1"]], "start": 1000, "end": 1010, "period": 10}`, 400},
		{"bad window", "/connector/movingavg",
			`{"operation": "compute", "arguments": ["NS,m1", 2], "start": 1010, "end": 1000, "period": 10}`, 400},
	}
	for _, tc := range cases {
		w := post(t, h, tc.path, tc.body)
		if w.Code != tc.code {
			t.Errorf("%s: status = %d, want %d (%s)", tc.what, w.Code, tc.code, w.Body.String())
			continue
		}
		var resp errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: bad error body: %v", tc.what, err)
			continue
		}
		if resp.Category != "validation" || resp.Message == "" {
			t.Errorf("%s: error body %+v", tc.what, resp)
		}
	}

	req := httptest.NewRequest("GET", "/connector/movingavg", nil)
	w := httptest.NewRecorder()
	h(w, req)
	if w.Code != 400 {
		t.Errorf("GET should be rejected, got %d", w.Code)
	}
}

func Test_http_gzip(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest("POST", "/connector/movingavg",
		bytes.NewBufferString(`{"operation": "describe"}`))
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h(w, req)

	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q", got)
	}
	gz, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	body, err := ioutil.ReadAll(gz)
	if err != nil {
		t.Fatalf("reading gzip body: %v", err)
	}
	var resp describeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Errorf("bad gzipped body: %v", err)
	}
}

func Test_http_ping(t *testing.T) {
	w := httptest.NewRecorder()
	PingHandler()(w, httptest.NewRequest("GET", "/ping", nil))
	if w.Code != 200 || w.Body.String() != "OK\n" {
		t.Errorf("ping = %d %q", w.Code, w.Body.String())
	}
}
