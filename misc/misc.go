//
// Copyright 2015 Gregory Trubetskoy. All Rights Reserved.
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

// Package misc is misc stuff.
package misc

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The restricted calendar-duration grammar: P[n]D[T[n]H][n]M][n[.fff]S].
// Days, hours and minutes are whole numbers, seconds may carry a
// fraction to millisecond precision.
var durationRegex = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d{1,3})?)S)?)?$`)

// ParseCalendarDuration converts a calendar-duration string to a
// fixed Duration. Anything not matching the grammar, including a
// bare "P" or "PT", is an error.
func ParseCalendarDuration(s string) (time.Duration, error) {
	parts := durationRegex.FindStringSubmatch(s)
	if parts == nil {
		return 0, fmt.Errorf("ParseCalendarDuration(): invalid duration: %q", s)
	}
	if parts[1] == "" && parts[2] == "" && parts[3] == "" && parts[4] == "" {
		return 0, fmt.Errorf("ParseCalendarDuration(): duration has no components: %q", s)
	}
	// A "T" with nothing after it is not valid.
	if strings.Contains(s, "T") && parts[2] == "" && parts[3] == "" && parts[4] == "" {
		return 0, fmt.Errorf("ParseCalendarDuration(): empty time part: %q", s)
	}

	var d time.Duration
	if parts[1] != "" {
		n, _ := strconv.ParseInt(parts[1], 10, 64)
		d += time.Duration(n) * 24 * time.Hour
	}
	if parts[2] != "" {
		n, _ := strconv.ParseInt(parts[2], 10, 64)
		d += time.Duration(n) * time.Hour
	}
	if parts[3] != "" {
		n, _ := strconv.ParseInt(parts[3], 10, 64)
		d += time.Duration(n) * time.Minute
	}
	if parts[4] != "" {
		f, _ := strconv.ParseFloat(parts[4], 64)
		// The grammar stops at milliseconds; round to the nearest one.
		d += time.Duration(math.Round(f*1000)) * time.Millisecond
	}
	return d, nil
}

// HumanDuration renders a duration the way a chart legend would want
// it: "7d", "1d3h", "1m30s", "1.5s". Larger units are always carried
// out first, and units that are zero are skipped.
func HumanDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if days := d / (24 * time.Hour); days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		d -= days * 24 * time.Hour
	}
	if hours := d / time.Hour; hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
		d -= hours * time.Hour
	}
	if mins := d / time.Minute; mins > 0 {
		fmt.Fprintf(&b, "%dm", mins)
		d -= mins * time.Minute
	}
	if d > 0 {
		secs := float64(d) / float64(time.Second)
		fmt.Fprintf(&b, "%ss", strconv.FormatFloat(secs, 'f', -1, 64))
	}
	return b.String()
}
