package reshape

import (
	"cmp"
	"math"

	"github.com/roach88/epiband/internal/aggregate"
	"github.com/roach88/epiband/internal/ir"
)

// QuartileRow is the coarse percentile export for one (policy, category).
// Domain is set for cost rows and keeps domains apart when their
// categories coincide.
type QuartileRow struct {
	PolicyID string
	Window   ir.Window
	Measure  string
	Domain   string
	Category string
	P25      float64
	P50      float64
	P75      float64
	N        int
}

// Category returns the category a record is summarized under: its group,
// else its cost type, else its domain.
func Category(r ir.ResultRecord) string {
	return cmp.Or(r.Group, r.CostType, r.Domain)
}

// QuartileSummary computes rounded 25th/50th/75th percentiles of untimed
// records per (measure, policy, window, domain, category). digits < 0 disables
// rounding. Rows are ordered by Ordering{}; callers re-sort with their own.
func QuartileSummary(records []ir.ResultRecord, digits int) []QuartileRow {
	regrouped := make([]ir.ResultRecord, 0, len(records))
	for _, r := range records {
		if r.HasTime {
			continue
		}
		// Fold group and cost type into one category; domain stays in the key.
		r.Group, r.CostType = Category(r), ""
		regrouped = append(regrouped, r)
	}

	groups := aggregate.Group(regrouped, nil)
	rows := make([]QuartileRow, 0, len(groups))
	for k, vals := range groups {
		rows = append(rows, QuartileRow{
			PolicyID: k.PolicyID,
			Window:   k.Window,
			Measure:  k.Measure,
			Domain:   k.Domain,
			Category: k.Group,
			P25:      Round(aggregate.Quantile(vals, 0.25), digits),
			P50:      Round(aggregate.Quantile(vals, 0.5), digits),
			P75:      Round(aggregate.Quantile(vals, 0.75), digits),
			N:        len(vals),
		})
	}
	Ordering{}.SortQuartiles(rows)
	return rows
}

// Round rounds v half away from zero to digits decimal places.
// digits < 0 returns v unchanged.
func Round(v float64, digits int) float64 {
	if digits < 0 {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
