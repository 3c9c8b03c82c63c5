package ir

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
)

// ParameterSample is one draw of disease parameters.
//
// Scalars hold single-valued fields (e.g. "r0", "severity"); Vectors hold
// per-group fields (e.g. "severity_by_age"). Samples are immutable once
// created: the constructor copies its inputs and accessors return copies.
type ParameterSample struct {
	tag     string
	index   int
	scalars map[string]float64
	vectors map[string][]float64
}

// NewParameterSample creates a sample. index is the original draw position.
func NewParameterSample(tag string, index int, scalars map[string]float64, vectors map[string][]float64) ParameterSample {
	s := ParameterSample{
		tag:     tag,
		index:   index,
		scalars: maps.Clone(scalars),
		vectors: make(map[string][]float64, len(vectors)),
	}
	if s.scalars == nil {
		s.scalars = map[string]float64{}
	}
	for k, v := range vectors {
		s.vectors[k] = slices.Clone(v)
	}
	return s
}

// Tag returns the sample identifier (e.g. "sample_1").
func (s ParameterSample) Tag() string { return s.tag }

// Index returns the position of the sample in the original draw order.
func (s ParameterSample) Index() int { return s.index }

// Value returns a scalar field.
func (s ParameterSample) Value(name string) (float64, bool) {
	v, ok := s.scalars[name]
	return v, ok
}

// Vector returns a copy of a per-group field.
func (s ParameterSample) Vector(name string) ([]float64, bool) {
	v, ok := s.vectors[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Scalars returns a copy of all scalar fields.
func (s ParameterSample) Scalars() map[string]float64 { return maps.Clone(s.scalars) }

// Vectors returns a copy of all vector fields.
func (s ParameterSample) Vectors() map[string][]float64 {
	out := make(map[string][]float64, len(s.vectors))
	for k, v := range s.vectors {
		out[k] = slices.Clone(v)
	}
	return out
}

// Schema returns the sorted field names (scalars then vectors, prefixed
// "vector:") used to check that an ensemble shares one schema.
func (s ParameterSample) Schema() []string {
	names := make([]string, 0, len(s.scalars)+len(s.vectors))
	for k := range s.scalars {
		names = append(names, k)
	}
	for k, v := range s.vectors {
		names = append(names, fmt.Sprintf("vector:%s[%d]", k, len(v)))
	}
	sort.Strings(names)
	return names
}

type sampleJSON struct {
	Tag     string               `json:"tag"`
	Index   int                  `json:"index"`
	Scalars map[string]float64   `json:"scalars"`
	Vectors map[string][]float64 `json:"vectors,omitempty"`
}

// MarshalJSON encodes the sample for external simulators and the store.
func (s ParameterSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{Tag: s.tag, Index: s.index, Scalars: s.scalars, Vectors: s.vectors})
}

// UnmarshalJSON decodes a sample written by MarshalJSON.
func (s *ParameterSample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewParameterSample(raw.Tag, raw.Index, raw.Scalars, raw.Vectors)
	return nil
}

// PolicyVariant describes an intervention. The core passes it through to
// the simulator without interpreting it.
type PolicyVariant struct {
	ID        string    `json:"id" yaml:"id"`
	Baseline  bool      `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Intensity []float64 `json:"intensity,omitempty" yaml:"intensity,omitempty"`
}

// Window is a policy activation window in simulation time steps.
type Window struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Duration returns End - Start.
func (w Window) Duration() int { return w.End - w.Start }

// Validate checks 0 <= Start <= End <= horizon.
func (w Window) Validate(horizon int) error {
	if w.Start < 0 || w.Start > w.End || w.End > horizon {
		return NewInvalidConfiguration(fmt.Sprintf("window %s outside 0 <= start <= end <= %d", w, horizon))
	}
	return nil
}

func (w Window) String() string { return fmt.Sprintf("%d-%d", w.Start, w.End) }

// ScenarioKey identifies one (sample, policy, window) simulation.
type ScenarioKey struct {
	SampleTag string `json:"sample_tag"`
	PolicyID  string `json:"policy_id"`
	Window    Window `json:"window"`
}

func (k ScenarioKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SampleTag, k.PolicyID, k.Window)
}

// SeriesPoint is one time step of a trajectory.
type SeriesPoint struct {
	Time  int     `json:"time"`
	Value float64 `json:"value"`
}

// CostEntry is one cost total for a domain and cost type.
type CostEntry struct {
	Domain   string  `json:"domain"`
	CostType string  `json:"cost_type"`
	Value    float64 `json:"value"`
}

// SimulationRun is the simulator output for one ScenarioKey.
type SimulationRun struct {
	Key ScenarioKey `json:"key"`

	// Series maps measure name to its trajectory.
	Series map[string][]SeriesPoint `json:"series"`

	// Totals maps measure name to its cumulative total.
	Totals map[string]float64 `json:"totals,omitempty"`

	// AgeTotals maps measure name to per age-group totals.
	AgeTotals map[string]map[string]float64 `json:"age_totals,omitempty"`

	Costs []CostEntry `json:"costs,omitempty"`

	// Capacity is the region constant reported by the simulator (e.g. beds).
	Capacity float64 `json:"capacity,omitempty"`
}

// ResultRecord is one long-format value.
type ResultRecord struct {
	Key      ScenarioKey `json:"key"`
	Measure  string      `json:"measure"`
	Time     int         `json:"time"`
	HasTime  bool        `json:"has_time"`
	Group    string      `json:"group,omitempty"`
	Domain   string      `json:"domain,omitempty"`
	CostType string      `json:"cost_type,omitempty"`
	Value    float64     `json:"value"`
}

// GroupKey identifies a set of records that differ only by sample.
type GroupKey struct {
	Measure  string `json:"measure"`
	PolicyID string `json:"policy_id"`
	Window   Window `json:"window"`
	Time     int    `json:"time"`
	HasTime  bool   `json:"has_time"`
	Group    string `json:"group,omitempty"`
	Domain   string `json:"domain,omitempty"`
	CostType string `json:"cost_type,omitempty"`
}

// GroupKey drops the sample tag from the record's identity.
func (r ResultRecord) GroupKey() GroupKey {
	return GroupKey{
		Measure:  r.Measure,
		PolicyID: r.Key.PolicyID,
		Window:   r.Key.Window,
		Time:     r.Time,
		HasTime:  r.HasTime,
		Group:    r.Group,
		Domain:   r.Domain,
		CostType: r.CostType,
	}
}

// IntervalSummary is a credible interval at one width for one group.
type IntervalSummary struct {
	GroupKey
	Width  float64 `json:"width"`
	Lower  float64 `json:"lower"`
	Median float64 `json:"median"`
	Upper  float64 `json:"upper"`
	N      int     `json:"n"`

	// Degenerate is set when fewer than two distinct values were observed.
	Degenerate bool `json:"degenerate,omitempty"`
}

// CostMedian is a deterministic cost reduced across samples.
type CostMedian struct {
	PolicyID string  `json:"policy_id"`
	Window   Window  `json:"window"`
	Domain   string  `json:"domain"`
	CostType string  `json:"cost_type"`
	Median   float64 `json:"median"`
	N        int     `json:"n"`
}
