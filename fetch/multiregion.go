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
	"sync"
)

// RegionMap holds one Fetcher per region identifier.
type RegionMap map[string]Fetcher

func (rm RegionMap) Region(name string) (Fetcher, bool) {
	f, ok := rm[name]
	return f, ok
}

// FanOut fetches the same specs from every named region in parallel
// and joins all of them. Results are assembled by request position,
// so the output order always matches the region argument order, not
// completion order. If any regional fetch fails the whole call fails;
// there is no partial success.
func (rm RegionMap) FanOut(regions []string, w Window, specs []SeriesSpec) ([][]RawSeries, error) {
	for _, name := range regions {
		if _, ok := rm[name]; !ok {
			return nil, fmt.Errorf("unknown region %q", name)
		}
	}

	var (
		wg      sync.WaitGroup
		results = make([][]RawSeries, len(regions))
		errs    = make([]error, len(regions))
	)
	for i, name := range regions {
		wg.Add(1)
		go func(i int, f Fetcher) {
			results[i], errs[i] = f.Fetch(w, specs)
			wg.Done()
		}(i, rm[name])
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("region %q: %v", regions[i], err)
		}
	}
	return results, nil
}
