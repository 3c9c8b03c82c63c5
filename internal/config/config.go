// Package config loads experiment definitions.
//
// An experiment file is YAML. It is checked against an embedded CUE schema
// first, which catches type errors and misspelled keys with a position, and
// then decoded into typed structs and validated semantically.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/epiband/internal/aggregate"
	"github.com/roach88/epiband/internal/cost"
	"github.com/roach88/epiband/internal/ir"
	"github.com/roach88/epiband/internal/reshape"
	"github.com/roach88/epiband/internal/sampler"
)

//go:embed schema.cue
var schemaSource string

// DefaultQuartileDigits is the rounding applied to quartile tables.
const DefaultQuartileDigits = 1

// Experiment is one complete experiment definition.
type Experiment struct {
	Name    string `yaml:"name"`
	Region  string `yaml:"region"`
	Horizon int    `yaml:"horizon"`

	Sampler  sampler.Config     `yaml:"sampler"`
	Policies []ir.PolicyVariant `yaml:"policies"`

	// Windows defaults to one window spanning the whole horizon.
	Windows []ir.Window `yaml:"windows"`

	Simulator Simulator `yaml:"simulator"`

	// Workers bounds concurrent simulations. Zero means GOMAXPROCS.
	Workers      int `yaml:"workers"`
	MaxScenarios int `yaml:"max_scenarios"`

	Aggregate Aggregate `yaml:"aggregate"`
	Costs     Costs     `yaml:"costs"`
	Report    Report    `yaml:"report"`
	Output    Output    `yaml:"output"`
}

// Simulator names the external model command.
type Simulator struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	Dir     string   `yaml:"dir"`
}

// Aggregate selects interval widths and measures.
type Aggregate struct {
	Widths []float64 `yaml:"widths"`

	// CurveMeasures restricts the time-series measures summarized.
	// Empty keeps all of them.
	CurveMeasures []string `yaml:"curve_measures"`

	// PointMeasures restricts the total and age-group measures summarized.
	PointMeasures []string `yaml:"point_measures"`
}

// Costs configures the cost decomposition.
type Costs struct {
	DeterministicTypes []string `yaml:"deterministic_types"`
	ExcludeDomains     []string `yaml:"exclude_domains"`
}

// Options converts to cost.Options with the given widths.
func (c Costs) Options(widths []float64) cost.Options {
	return cost.Options{
		Widths:             widths,
		DeterministicTypes: c.DeterministicTypes,
		ExcludeDomains:     c.ExcludeDomains,
	}
}

// Report configures labels, ordering and quartile rounding.
type Report struct {
	Labels           map[string]string `yaml:"labels"`
	Ordering         reshape.Ordering  `yaml:"ordering"`
	QuartileDigits   *int              `yaml:"quartile_digits"`
	QuartileMeasures []string          `yaml:"quartile_measures"`
}

// Digits returns the quartile rounding, defaulting to DefaultQuartileDigits.
func (r Report) Digits() int {
	if r.QuartileDigits == nil {
		return DefaultQuartileDigits
	}
	return *r.QuartileDigits
}

// Exporter builds the table exporter for this report.
func (r Report) Exporter() reshape.Exporter {
	return reshape.Exporter{Order: r.Ordering, Labels: reshape.NewLabels(r.Labels)}
}

// Output names where results go. Empty fields disable that output.
type Output struct {
	Dir      string `yaml:"dir"`
	Database string `yaml:"database"`
}

// Load reads, checks and decodes an experiment file. Relative simulator and
// output paths are resolved against the file's directory.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment: %w", err)
	}
	exp, err := Parse(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	exp.resolvePaths(filepath.Dir(path))
	return exp, nil
}

// Parse checks data against the schema, decodes it and validates it.
// filename is used in error positions only.
func Parse(filename string, data []byte) (*Experiment, error) {
	if err := CheckSchema(filename, data); err != nil {
		return nil, err
	}

	var exp Experiment
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&exp); err != nil {
		return nil, ir.NewInvalidConfiguration(fmt.Sprintf("decode %s: %v", filename, err))
	}
	exp.applyDefaults()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// CheckSchema validates raw YAML against the embedded CUE schema.
func CheckSchema(filename string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return ir.NewInvalidConfiguration(fmt.Sprintf("parse %s: %v", filename, err))
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return ir.NewInvalidConfiguration(fmt.Sprintf("build %s: %v", filename, err))
	}

	unified := schema.LookupPath(cue.ParsePath("#Experiment")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return ir.NewInvalidConfiguration(schemaMessage(err))
	}
	return nil
}

// schemaMessage flattens a CUE error list into one line per problem.
func schemaMessage(err error) string {
	var list cueerrors.Error
	if !errors.As(err, &list) {
		return err.Error()
	}
	msg := "schema violation"
	for _, e := range cueerrors.Errors(list) {
		msg += "\n  " + e.Error()
		if pos := e.Position(); pos.IsValid() {
			msg += fmt.Sprintf(" (%s:%d:%d)", pos.Filename(), pos.Line(), pos.Column())
		}
	}
	return msg
}

func (e *Experiment) applyDefaults() {
	if e.Sampler.Primary.Dist.Kind == "" {
		e.Sampler.Primary.Dist.Kind = sampler.DistBeta
	}
	if e.Sampler.Secondary != nil && e.Sampler.Secondary.Dist.Kind == "" {
		e.Sampler.Secondary.Dist.Kind = sampler.DistBeta
	}
	if len(e.Windows) == 0 && e.Horizon > 0 {
		e.Windows = []ir.Window{{Start: 0, End: e.Horizon}}
	}
}

func (e *Experiment) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	e.Simulator.Dir = resolve(e.Simulator.Dir)
	e.Output.Dir = resolve(e.Output.Dir)
	e.Output.Database = resolve(e.Output.Database)
}

// Validate performs the checks the schema cannot express.
func (e *Experiment) Validate() error {
	if e.Horizon <= 0 {
		return ir.NewInvalidConfiguration(fmt.Sprintf("horizon must be positive, got %d", e.Horizon))
	}
	if err := e.Sampler.Validate(); err != nil {
		return err
	}
	if len(e.Policies) == 0 {
		return ir.NewInvalidConfiguration("at least one policy is required")
	}
	var ids []string
	for _, p := range e.Policies {
		if slices.Contains(ids, p.ID) {
			return ir.NewInvalidConfiguration(fmt.Sprintf("duplicate policy id %q", p.ID))
		}
		ids = append(ids, p.ID)
	}
	for _, w := range e.Windows {
		if err := w.Validate(e.Horizon); err != nil {
			return err
		}
	}
	if _, err := aggregate.NormalizeWidths(e.Aggregate.Widths); err != nil {
		return err
	}
	if e.Report.Digits() > 15 {
		return ir.NewInvalidConfiguration(fmt.Sprintf("quartile_digits %d is beyond float64 precision", e.Report.Digits()))
	}
	return nil
}

// Scenarios returns the size of the cross product.
func (e *Experiment) Scenarios() int {
	return e.Sampler.N * len(e.Policies) * len(e.Windows)
}
