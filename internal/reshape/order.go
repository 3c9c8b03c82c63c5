package reshape

import (
	"cmp"
	"slices"

	"github.com/roach88/epiband/internal/cost"
	"github.com/roach88/epiband/internal/ir"
)

// Ordering is a caller-declared canonical order for categorical fields.
// Values not listed sort after listed ones, lexically.
type Ordering struct {
	Policies  []string `yaml:"policies"`
	AgeGroups []string `yaml:"age_groups"`
}

// ComparePolicies orders two policy ids.
func (o Ordering) ComparePolicies(a, b string) int { return compareDeclared(o.Policies, a, b) }

// CompareGroups orders two age-group codes.
func (o Ordering) CompareGroups(a, b string) int { return compareDeclared(o.AgeGroups, a, b) }

func compareDeclared(declared []string, a, b string) int {
	ia, ib := slices.Index(declared, a), slices.Index(declared, b)
	switch {
	case ia >= 0 && ib >= 0:
		return cmp.Compare(ia, ib)
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// SortSummaries orders interval rows by policy, measure, window, group,
// domain, cost type, time and width.
func (o Ordering) SortSummaries(rows []ir.IntervalSummary) {
	slices.SortStableFunc(rows, func(a, b ir.IntervalSummary) int {
		return cmp.Or(
			o.ComparePolicies(a.PolicyID, b.PolicyID),
			cmp.Compare(a.Measure, b.Measure),
			cmp.Compare(a.Window.Start, b.Window.Start),
			cmp.Compare(a.Window.End, b.Window.End),
			o.CompareGroups(a.Group, b.Group),
			cmp.Compare(a.Domain, b.Domain),
			cmp.Compare(a.CostType, b.CostType),
			cmp.Compare(a.Time, b.Time),
			cmp.Compare(a.Width, b.Width),
		)
	})
}

// SortMedians orders deterministic cost rows by policy, window, domain and cost type.
func (o Ordering) SortMedians(rows []ir.CostMedian) {
	slices.SortStableFunc(rows, func(a, b ir.CostMedian) int {
		return cmp.Or(
			o.ComparePolicies(a.PolicyID, b.PolicyID),
			cmp.Compare(a.Window.Start, b.Window.Start),
			cmp.Compare(a.Window.End, b.Window.End),
			cmp.Compare(a.Domain, b.Domain),
			cmp.Compare(a.CostType, b.CostType),
		)
	})
}

// SortTotals orders cost totals by policy, window and domain.
func (o Ordering) SortTotals(rows []cost.Total) {
	slices.SortStableFunc(rows, func(a, b cost.Total) int {
		return cmp.Or(
			o.ComparePolicies(a.PolicyID, b.PolicyID),
			cmp.Compare(a.Window.Start, b.Window.Start),
			cmp.Compare(a.Window.End, b.Window.End),
			cmp.Compare(a.Domain, b.Domain),
		)
	})
}

// SortQuartiles orders quartile rows by policy, measure, window, domain and
// category.
func (o Ordering) SortQuartiles(rows []QuartileRow) {
	slices.SortStableFunc(rows, func(a, b QuartileRow) int {
		return cmp.Or(
			o.ComparePolicies(a.PolicyID, b.PolicyID),
			cmp.Compare(a.Measure, b.Measure),
			cmp.Compare(a.Window.Start, b.Window.Start),
			cmp.Compare(a.Window.End, b.Window.End),
			cmp.Compare(a.Domain, b.Domain),
			o.CompareGroups(a.Category, b.Category),
		)
	})
}
