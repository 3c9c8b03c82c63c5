// Package aggregate computes credible intervals over the sample dimension.
//
// Records are grouped by everything except their sample tag. Each group's
// values are sorted once and every requested width is read from the same
// order statistics, so widths are independent and never recomputed.
package aggregate

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/roach88/epiband/internal/ir"
)

// DefaultWidths are the interval widths reported when none are requested.
var DefaultWidths = []float64{0.5, 0.95}

// Quantile returns the p-th quantile of sorted values using linear
// interpolation between order statistics (Hyndman-Fan type 7):
//
//	h = (n-1)*p,  Q(p) = x[floor(h)] + (h - floor(h)) * (x[floor(h)+1] - x[floor(h)])
//
// sorted must be ascending and non-empty; p is clamped to [0, 1].
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 || n == 1 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	a, b := sorted[lo], sorted[lo+1]
	if a == b {
		return a
	}
	return a + frac*(b-a)
}

// Bounds returns the (lower, upper) quantile levels for a central interval of
// the given width.
func Bounds(width float64) (float64, float64) {
	tail := (1 - width) / 2
	return tail, 1 - tail
}

// NormalizeWidths validates widths, removes duplicates and sorts them
// ascending. An empty input yields DefaultWidths.
func NormalizeWidths(widths []float64) ([]float64, error) {
	if len(widths) == 0 {
		return slices.Clone(DefaultWidths), nil
	}
	out := make([]float64, 0, len(widths))
	for _, w := range widths {
		if !(w > 0 && w <= 1) {
			return nil, ir.NewInvalidConfiguration(fmt.Sprintf("interval width %g must be in (0, 1]", w))
		}
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	sort.Float64s(out)
	return out, nil
}

// distinctAtMostOne reports whether sorted holds fewer than two distinct values.
func distinctAtMostOne(sorted []float64) bool {
	return len(sorted) == 0 || sorted[0] == sorted[len(sorted)-1]
}
