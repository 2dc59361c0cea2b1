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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// httpFetcher talks to a JSON metric backend. The backend may return
// results in any order (we match by request id) and stamps points
// with absolute RFC3339 times, which are converted to epoch seconds
// here.
type httpFetcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a backend client limited to maxRate
// requests per second (0 disables limiting).
func NewHTTPFetcher(url string, maxRate float64) Fetcher {
	h := &httpFetcher{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	if maxRate > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(maxRate), int(maxRate)+1)
	}
	return h
}

type backendQuery struct {
	ID         string  `json:"id"`
	Namespace  string  `json:"namespace,omitempty"`
	Name       string  `json:"name,omitempty"`
	Dimensions Ident   `json:"dimensions,omitempty"`
	Stat       string  `json:"stat,omitempty"`
	Bottom     float64 `json:"bottom,omitempty"`
	Top        float64 `json:"top,omitempty"`
	Range      bool    `json:"range,omitempty"`
	Expression string  `json:"expression,omitempty"`
}

type backendRequest struct {
	Start   int64          `json:"start"`
	End     int64          `json:"end"`
	Period  int64          `json:"period"`
	Queries []backendQuery `json:"queries"`
}

type backendSeries struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Timestamps []string  `json:"timestamps"`
	Values     []float64 `json:"values"`
}

type backendResponse struct {
	Results []backendSeries `json:"results"`
	Error   string          `json:"error,omitempty"`
}

func (h *httpFetcher) Fetch(w Window, specs []SeriesSpec) ([]RawSeries, error) {
	queries := make([]backendQuery, len(specs))
	for i, spec := range specs {
		queries[i] = backendQuery{
			ID:         spec.ID,
			Namespace:  spec.Metric.Namespace,
			Name:       spec.Metric.Name,
			Dimensions: spec.Metric.Dimensions,
			Stat:       spec.Stat.String(),
			Bottom:     spec.Bottom,
			Top:        spec.Top,
			Range:      spec.Range,
		}
	}
	raws, err := h.roundTrip(w, queries)
	if err != nil {
		return nil, err
	}
	// Fill labels the backend did not set.
	byID := make(map[string]int, len(raws))
	for i := range raws {
		byID[raws[i].ID] = i
	}
	for _, spec := range specs {
		if i, ok := byID[spec.ID]; ok && raws[i].Label == "" {
			raws[i].Label = spec.Metric.Label()
		}
	}
	return raws, nil
}

func (h *httpFetcher) FetchExpression(w Window, expr string) ([]RawSeries, error) {
	return h.roundTrip(w, []backendQuery{{ID: "expr1", Expression: expr}})
}

func (h *httpFetcher) roundTrip(w Window, queries []backendQuery) ([]RawSeries, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(context.Background()); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(backendRequest{Start: w.Start, End: w.End, Period: w.Period, Queries: queries})
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var br backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, err
	}
	if br.Error != "" {
		return nil, fmt.Errorf("backend error: %s", br.Error)
	}

	raws := make([]RawSeries, len(br.Results))
	for i, bs := range br.Results {
		if len(bs.Timestamps) != len(bs.Values) {
			return nil, fmt.Errorf("backend series %q: %d timestamps vs %d values", bs.ID, len(bs.Timestamps), len(bs.Values))
		}
		rs := RawSeries{ID: bs.ID, Label: bs.Label, Values: bs.Values}
		rs.Timestamps = make([]int64, len(bs.Timestamps))
		for j, s := range bs.Timestamps {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("backend series %q: bad timestamp %q: %v", bs.ID, s, err)
			}
			rs.Timestamps[j] = t.Unix()
		}
		raws[i] = rs
	}
	return raws, nil
}
