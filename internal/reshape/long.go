package reshape

import (
	"slices"
	"sort"

	"github.com/roach88/epiband/internal/cost"
	"github.com/roach88/epiband/internal/ir"
)

// LongSpec selects which parts of a run become records.
type LongSpec struct {
	// Measures restricts series, totals and age totals to these measure
	// names. Empty keeps every measure.
	Measures []string

	Series    bool
	Totals    bool
	AgeTotals bool
	Costs     bool
}

// AllParts keeps every part and every measure.
var AllParts = LongSpec{Series: true, Totals: true, AgeTotals: true, Costs: true}

func (s LongSpec) keep(measure string) bool {
	return len(s.Measures) == 0 || slices.Contains(s.Measures, measure)
}

// Long reshapes runs into records. Output order follows runs, then part
// (series, totals, age totals, costs), then measure name, then time or group.
func Long(runs []ir.SimulationRun, sel LongSpec) []ir.ResultRecord {
	var out []ir.ResultRecord
	for _, run := range runs {
		if sel.Series {
			for _, m := range sortedKeys(run.Series) {
				if !sel.keep(m) {
					continue
				}
				points := slices.Clone(run.Series[m])
				sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })
				for _, p := range points {
					out = append(out, ir.ResultRecord{Key: run.Key, Measure: m, Time: p.Time, HasTime: true, Value: p.Value})
				}
			}
		}
		if sel.Totals {
			for _, m := range sortedKeys(run.Totals) {
				if sel.keep(m) {
					out = append(out, ir.ResultRecord{Key: run.Key, Measure: m, Value: run.Totals[m]})
				}
			}
		}
		if sel.AgeTotals {
			for _, m := range sortedKeys(run.AgeTotals) {
				if !sel.keep(m) {
					continue
				}
				groups := run.AgeTotals[m]
				for _, g := range sortedKeys(groups) {
					out = append(out, ir.ResultRecord{Key: run.Key, Measure: m, Group: g, Value: groups[g]})
				}
			}
		}
		if sel.Costs {
			for _, c := range run.Costs {
				out = append(out, ir.ResultRecord{
					Key:      run.Key,
					Measure:  cost.Measure,
					Domain:   c.Domain,
					CostType: c.CostType,
					Value:    c.Value,
				})
			}
		}
	}
	return out
}

// Filter returns the records for which keep is true.
func Filter(records []ir.ResultRecord, keep func(ir.ResultRecord) bool) []ir.ResultRecord {
	var out []ir.ResultRecord
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
