// Package cost splits cost records into deterministic and stochastic parts.
//
// Closure-driven costs depend only on the policy and its duration, so their
// spread across parameter samples is rounding noise. They are reduced to the
// median across samples. Everything else (absences, mortality, life years)
// keeps its full per-sample distribution and goes through the interval
// estimator.
package cost

import (
	"cmp"
	"slices"

	"github.com/roach88/epiband/internal/aggregate"
	"github.com/roach88/epiband/internal/ir"
)

// Measure is the ResultRecord measure name carried by cost records.
const Measure = "cost"

// DefaultDeterministicTypes are the cost types reduced by median.
var DefaultDeterministicTypes = []string{"closures", "education"}

// Options controls a decomposition.
type Options struct {
	// Widths for stochastic intervals. Empty means aggregate.DefaultWidths.
	Widths []float64

	// DeterministicTypes lists cost types reduced by median. A record with
	// an empty cost type is matched by its domain instead.
	// Nil means DefaultDeterministicTypes.
	DeterministicTypes []string

	// ExcludeDomains drops domains from the output, e.g. "life_years" when
	// the presentation is value denominated.
	ExcludeDomains []string
}

// Breakdown is the result of a decomposition.
type Breakdown struct {
	Deterministic []ir.CostMedian
	Stochastic    []ir.IntervalSummary
}

// Decompose partitions cost records by domain and cost type. Records whose
// measure is not Measure are ignored.
func Decompose(records []ir.ResultRecord, opts Options) (*Breakdown, error) {
	detTypes := opts.DeterministicTypes
	if detTypes == nil {
		detTypes = DefaultDeterministicTypes
	}

	var deterministic, stochastic []ir.ResultRecord
	for _, r := range records {
		if r.Measure != Measure || slices.Contains(opts.ExcludeDomains, r.Domain) {
			continue
		}
		if slices.Contains(detTypes, cmp.Or(r.CostType, r.Domain)) {
			deterministic = append(deterministic, r)
		} else {
			stochastic = append(stochastic, r)
		}
	}

	intervals, err := aggregate.PointIntervals(stochastic, opts.Widths)
	if err != nil {
		return nil, err
	}

	groups := aggregate.Group(deterministic, nil)
	medians := make([]ir.CostMedian, 0, len(groups))
	for k, vals := range groups {
		medians = append(medians, ir.CostMedian{
			PolicyID: k.PolicyID,
			Window:   k.Window,
			Domain:   k.Domain,
			CostType: k.CostType,
			Median:   aggregate.Quantile(vals, 0.5),
			N:        len(vals),
		})
	}
	slices.SortFunc(medians, compareMedians)

	return &Breakdown{Deterministic: medians, Stochastic: intervals}, nil
}

// Total is the combined central cost of one domain under one policy.
type Total struct {
	PolicyID      string
	Window        ir.Window
	Domain        string
	Deterministic float64
	Stochastic    float64
}

// Sum returns Deterministic + Stochastic.
func (t Total) Sum() float64 { return t.Deterministic + t.Stochastic }

// Totals adds deterministic medians and stochastic medians per
// (policy, window, domain). Stochastic medians are taken from the first
// width of each group, since the median does not depend on width.
func (b *Breakdown) Totals() []Total {
	type key struct {
		policy string
		window ir.Window
		domain string
	}
	acc := map[key]*Total{}
	get := func(k key) *Total {
		t, ok := acc[k]
		if !ok {
			t = &Total{PolicyID: k.policy, Window: k.window, Domain: k.domain}
			acc[k] = t
		}
		return t
	}

	for _, m := range b.Deterministic {
		get(key{m.PolicyID, m.Window, m.Domain}).Deterministic += m.Median
	}
	seen := map[ir.GroupKey]bool{}
	for _, s := range b.Stochastic {
		if seen[s.GroupKey] {
			continue
		}
		seen[s.GroupKey] = true
		get(key{s.PolicyID, s.Window, s.Domain}).Stochastic += s.Median
	}

	out := make([]Total, 0, len(acc))
	for _, t := range acc {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b Total) int {
		return cmp.Or(
			cmp.Compare(a.PolicyID, b.PolicyID),
			cmp.Compare(a.Window.Start, b.Window.Start),
			cmp.Compare(a.Window.End, b.Window.End),
			cmp.Compare(a.Domain, b.Domain),
		)
	})
	return out
}

func compareMedians(a, b ir.CostMedian) int {
	return cmp.Or(
		cmp.Compare(a.PolicyID, b.PolicyID),
		cmp.Compare(a.Window.Start, b.Window.Start),
		cmp.Compare(a.Window.End, b.Window.End),
		cmp.Compare(a.Domain, b.Domain),
		cmp.Compare(a.CostType, b.CostType),
	)
}
