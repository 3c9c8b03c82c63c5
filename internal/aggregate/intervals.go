package aggregate

import (
	"cmp"
	"slices"
	"sort"

	"github.com/roach88/epiband/internal/ir"
)

// CurveIntervals computes credible bands for timed records.
//
// Records are grouped by (measure, policy, window, time, group). A time point
// missing for some samples is aggregated over the samples that report it.
// Untimed records are ignored. The result holds one row per group and width,
// sorted by measure, policy, window, group, time, width.
func CurveIntervals(records []ir.ResultRecord, widths []float64) ([]ir.IntervalSummary, error) {
	return summarize(records, widths, func(r ir.ResultRecord) bool { return r.HasTime })
}

// PointIntervals computes credible intervals for per-sample scalar totals.
//
// Records are grouped by (measure, policy, window, group, domain, cost type).
// Timed records are ignored.
func PointIntervals(records []ir.ResultRecord, widths []float64) ([]ir.IntervalSummary, error) {
	return summarize(records, widths, func(r ir.ResultRecord) bool { return !r.HasTime })
}

// Median returns the median of the values grouped by GroupKey.
func Median(records []ir.ResultRecord) map[ir.GroupKey]float64 {
	groups := Group(records, nil)
	out := make(map[ir.GroupKey]float64, len(groups))
	for k, vals := range groups {
		out[k] = Quantile(vals, 0.5)
	}
	return out
}

// Group collects record values by GroupKey and sorts each group ascending.
// keep filters records; nil keeps all.
func Group(records []ir.ResultRecord, keep func(ir.ResultRecord) bool) map[ir.GroupKey][]float64 {
	groups := make(map[ir.GroupKey][]float64)
	for _, r := range records {
		if keep != nil && !keep(r) {
			continue
		}
		k := r.GroupKey()
		groups[k] = append(groups[k], r.Value)
	}
	for _, vals := range groups {
		sort.Float64s(vals)
	}
	return groups
}

func summarize(records []ir.ResultRecord, widths []float64, keep func(ir.ResultRecord) bool) ([]ir.IntervalSummary, error) {
	ws, err := NormalizeWidths(widths)
	if err != nil {
		return nil, err
	}
	groups := Group(records, keep)

	keys := make([]ir.GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareGroupKeys)

	out := make([]ir.IntervalSummary, 0, len(keys)*len(ws))
	for _, k := range keys {
		vals := groups[k]
		degenerate := distinctAtMostOne(vals)
		median := Quantile(vals, 0.5)
		for _, w := range ws {
			s := ir.IntervalSummary{GroupKey: k, Width: w, Median: median, N: len(vals), Degenerate: degenerate}
			if degenerate {
				s.Lower, s.Upper = vals[0], vals[0]
			} else {
				lo, hi := Bounds(w)
				s.Lower, s.Upper = Quantile(vals, lo), Quantile(vals, hi)
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// CompareGroupKeys orders group keys by measure, policy, window, group,
// domain, cost type and time.
func CompareGroupKeys(a, b ir.GroupKey) int {
	return cmp.Or(
		cmp.Compare(a.Measure, b.Measure),
		cmp.Compare(a.PolicyID, b.PolicyID),
		cmp.Compare(a.Window.Start, b.Window.Start),
		cmp.Compare(a.Window.End, b.Window.End),
		cmp.Compare(a.Group, b.Group),
		cmp.Compare(a.Domain, b.Domain),
		cmp.Compare(a.CostType, b.CostType),
		compareBool(a.HasTime, b.HasTime),
		cmp.Compare(a.Time, b.Time),
	)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
