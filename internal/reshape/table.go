package reshape

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/roach88/epiband/internal/cost"
	"github.com/roach88/epiband/internal/ir"
)

// Table is a flat export: one header and string rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// WriteCSV writes the table as CSV.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write %s rows: %w", t.Name, err)
	}
	return nil
}

// WriteFile writes the table to dir/<name>.csv.
func (t Table) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, t.Name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// Exporter renders tables with a declared ordering and label map.
type Exporter struct {
	Order  Ordering
	Labels Labels
}

// IntervalTable renders interval rows. Time is blank for point summaries.
func (e Exporter) IntervalTable(name string, rows []ir.IntervalSummary, capacity float64) Table {
	sorted := append([]ir.IntervalSummary(nil), rows...)
	e.Order.SortSummaries(sorted)

	t := Table{
		Name: name,
		Header: []string{
			"measure", "policy", "window_start", "window_end", "time", "group",
			"domain", "cost_type", "width", "lower", "median", "upper", "n", "degenerate", "capacity",
		},
		Rows: make([][]string, 0, len(sorted)),
	}
	for _, s := range sorted {
		tm := ""
		if s.HasTime {
			tm = strconv.Itoa(s.Time)
		}
		t.Rows = append(t.Rows, []string{
			s.Measure,
			e.Labels.Label(s.PolicyID),
			strconv.Itoa(s.Window.Start),
			strconv.Itoa(s.Window.End),
			tm,
			e.Labels.Label(s.Group),
			e.Labels.Label(s.Domain),
			e.Labels.Label(s.CostType),
			formatFloat(s.Width),
			formatFloat(s.Lower),
			formatFloat(s.Median),
			formatFloat(s.Upper),
			strconv.Itoa(s.N),
			strconv.FormatBool(s.Degenerate),
			formatFloat(capacity),
		})
	}
	return t
}

// CostTable renders a breakdown as (policy, window, domain, cost type,
// statistic, value) rows. Deterministic costs report "median"; stochastic
// costs report "median" plus "lower_<w>" and "upper_<w>" per width.
func (e Exporter) CostTable(b *cost.Breakdown) Table {
	t := Table{
		Name:   "costs",
		Header: []string{"policy", "window_start", "window_end", "domain", "cost_type", "kind", "statistic", "value"},
	}
	row := func(policy string, w ir.Window, domain, costType, kind, stat string, v float64) []string {
		return []string{
			e.Labels.Label(policy),
			strconv.Itoa(w.Start),
			strconv.Itoa(w.End),
			e.Labels.Label(domain),
			e.Labels.Label(costType),
			kind,
			stat,
			formatFloat(v),
		}
	}

	det := append([]ir.CostMedian(nil), b.Deterministic...)
	e.Order.SortMedians(det)
	for _, m := range det {
		t.Rows = append(t.Rows, row(m.PolicyID, m.Window, m.Domain, m.CostType, "deterministic", "median", m.Median))
	}

	sto := append([]ir.IntervalSummary(nil), b.Stochastic...)
	e.Order.SortSummaries(sto)
	var last *ir.GroupKey
	for i := range sto {
		s := sto[i]
		if last == nil || *last != s.GroupKey {
			t.Rows = append(t.Rows, row(s.PolicyID, s.Window, s.Domain, s.CostType, "stochastic", "median", s.Median))
			last = &sto[i].GroupKey
		}
		w := formatFloat(s.Width)
		t.Rows = append(t.Rows,
			row(s.PolicyID, s.Window, s.Domain, s.CostType, "stochastic", "lower_"+w, s.Lower),
			row(s.PolicyID, s.Window, s.Domain, s.CostType, "stochastic", "upper_"+w, s.Upper),
		)
	}
	return t
}

// TotalsTable renders per-domain combined cost medians.
func (e Exporter) TotalsTable(totals []cost.Total) Table {
	sorted := append([]cost.Total(nil), totals...)
	e.Order.SortTotals(sorted)

	t := Table{
		Name:   "cost_totals",
		Header: []string{"policy", "window_start", "window_end", "domain", "deterministic", "stochastic", "total"},
	}
	for _, c := range sorted {
		t.Rows = append(t.Rows, []string{
			e.Labels.Label(c.PolicyID),
			strconv.Itoa(c.Window.Start),
			strconv.Itoa(c.Window.End),
			e.Labels.Label(c.Domain),
			formatFloat(c.Deterministic),
			formatFloat(c.Stochastic),
			formatFloat(c.Sum()),
		})
	}
	return t
}

// QuartileTable renders quartile rows keyed by (policy, category, percentile)
// in wide form: one row per group, one column per percentile.
func (e Exporter) QuartileTable(rows []QuartileRow) Table {
	sorted := append([]QuartileRow(nil), rows...)
	e.Order.SortQuartiles(sorted)

	t := Table{
		Name:   "quartiles",
		Header: []string{"measure", "policy", "window_start", "window_end", "domain", "category", "p25", "p50", "p75", "n"},
	}
	for _, q := range sorted {
		t.Rows = append(t.Rows, []string{
			q.Measure,
			e.Labels.Label(q.PolicyID),
			strconv.Itoa(q.Window.Start),
			strconv.Itoa(q.Window.End),
			e.Labels.Label(q.Domain),
			e.Labels.Label(q.Category),
			formatFloat(q.P25),
			formatFloat(q.P50),
			formatFloat(q.P75),
			strconv.Itoa(q.N),
		})
	}
	return t
}

// SampleTable renders the parameter ensemble: tag, draw index, scalar fields
// (sorted by name) and vector fields flattened as name[i].
func SampleTable(samples []ir.ParameterSample) Table {
	t := Table{Name: "samples", Header: []string{"tag", "index"}}
	if len(samples) == 0 {
		return t
	}

	scalars := sortedKeys(samples[0].Scalars())
	vectors := samples[0].Vectors()
	vectorNames := sortedKeys(vectors)

	t.Header = append(t.Header, scalars...)
	for _, name := range vectorNames {
		for i := range vectors[name] {
			t.Header = append(t.Header, fmt.Sprintf("%s[%d]", name, i))
		}
	}

	for _, s := range samples {
		row := []string{s.Tag(), strconv.Itoa(s.Index())}
		for _, name := range scalars {
			v, _ := s.Value(name)
			row = append(row, formatFloat(v))
		}
		for _, name := range vectorNames {
			vec, _ := s.Vector(name)
			for _, v := range vec {
				row = append(row, formatFloat(v))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// TablesByName indexes tables for lookup in tests and the CLI.
func TablesByName(tables []Table) map[string]Table {
	out := make(map[string]Table, len(tables))
	for _, t := range tables {
		out[t.Name] = t
	}
	return out
}

// Names returns the sorted table names.
func Names(tables []Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
