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

// Package quantize maps sample values onto a logarithmic scale with
// constant relative bucket width. Adjacent bins differ by a constant
// multiplicative ratio of 1+epsilon (~10% relative width), which
// renders as uniform bars on a log axis. The mapping is sign-aware:
// positive and negative magnitudes occupy disjoint bin ranges, and
// zero has its own sentinel bin, so no input ever produces -Inf.
package quantize

import (
	"math"
	"strconv"
)

const (
	// Relative bucket width.
	Epsilon = 0.1

	// Bin index saturation bound; exp(7000*w) overflows float64
	// anyway, indexes past it are clamped rather than overflowing.
	maxBin = 7000

	// Values below this floor are treated as if they were at it when
	// a range of bins is built - ln() of tiny magnitudes would
	// otherwise dominate the span.
	ClampFloor = 0.0001

	// Negative magnitudes map to negOffset-bin, placing them wholly
	// below the positive range [-maxBin, maxBin]. Zero sits below
	// even that.
	negOffset = -(2*maxBin + 2)
	zeroBin   = -(3*maxBin + 3)
)

var binWidth = math.Log1p(Epsilon) // ln(1 + epsilon)

// BinOf returns the bin index of a value. For v > 0 the index is
// floor(ln(v)/w) clamped to [-maxBin, maxBin]; negative values land
// in the mirrored disjoint range; zero gets the sentinel bin.
func BinOf(v float64) int {
	if v == 0 {
		return zeroBin
	}
	b := int(math.Floor(math.Log(math.Abs(v)) / binWidth))
	if b > maxBin {
		b = maxBin
	} else if b < -maxBin {
		b = -maxBin
	}
	if v < 0 {
		return negOffset - b
	}
	return b
}

// Edge returns the lower edge of a positive-range bin: exp(b*w). The
// upper edge of bin b is Edge(b+1). Callers only construct edges for
// positive-range indexes; negative bins recover their magnitude bin
// first.
func Edge(bin int) float64 {
	if bin > maxBin+1 {
		bin = maxBin + 1
	} else if bin < -maxBin {
		bin = -maxBin
	}
	return math.Exp(float64(bin) * binWidth)
}

// UpperEdge recovers the upper boundary of the bin a value of either
// sign fell into. For the zero sentinel it is zero.
func UpperEdge(bin int) float64 {
	if bin == zeroBin {
		return 0
	}
	if bin < -maxBin { // mirrored negative range
		mag := negOffset - bin
		return -Edge(mag) // sign restored; -exp(b*w) bounds the magnitude bin from above
	}
	return Edge(bin + 1)
}

// Bucket is one value range of a quantized histogram, half-open
// [Bottom, Top).
type Bucket struct {
	Num         int
	Bottom, Top float64
	Label       string
}

// BucketRange divides the bin span of [min, max] evenly into count
// buckets. Both ends are raised to ClampFloor first. The per-bucket
// boundary is the fractional step rounded to the nearest whole bin,
// so the buckets tile the clamped range exactly.
func BucketRange(min, max float64, count int) []Bucket {
	if min < ClampFloor {
		min = ClampFloor
	}
	if max < ClampFloor {
		max = ClampFloor
	}

	binLo := BinOf(min)
	binHi := BinOf(max)
	step := float64(binHi+1-binLo) / float64(count)

	buckets := make([]Bucket, count)
	for i := 0; i < count; i++ {
		b0 := binLo + int(math.Round(float64(i)*step))
		b1 := binLo + int(math.Round(float64(i+1)*step))
		bottom, top := Edge(b0), Edge(b1)
		buckets[i] = Bucket{
			Num:    b0,
			Bottom: bottom,
			Top:    top,
			Label:  FormatValue((bottom + top) / 2),
		}
	}
	return buckets
}

// FormatValue renders a millisecond magnitude for a bucket label,
// auto-scaling to seconds at 1000. Three significant digits below
// 1e6, six above, to keep large magnitudes distinguishable.
func FormatValue(v float64) string {
	digits := 3
	if math.Abs(v) >= 1e6 {
		digits = 6
	}
	if math.Abs(v) >= 1000 {
		return strconv.FormatFloat(v/1000, 'g', digits, 64) + "s"
	}
	return strconv.FormatFloat(v, 'g', digits, 64) + "ms"
}
