// Package sampler draws reproducible parameter ensembles.
//
// A primary field is drawn from a two-parameter shape distribution, shifted
// affinely and rescaled over the realized sample range so the ensemble spans
// exactly [lo, hi]. An optional secondary field is drawn from an independent
// stream of the same seed and spread across subgroups by a profile vector
// normalized to mean 1.
package sampler

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/epiband/internal/ir"
)

// Distribution kinds.
const (
	DistBeta  = "beta"
	DistGamma = "gamma"
)

// DefaultTagPrefix is used when Config.TagPrefix is empty.
const DefaultTagPrefix = "sample"

// Stream selectors for the PCG source. Each field gets its own stream of the
// same seed so adding a secondary field never perturbs the primary draws.
const (
	streamPrimary   uint64 = 0x9e3779b97f4a7c15
	streamSecondary uint64 = 0xbf58476d1ce4e5b9
)

// Distribution is a two-parameter shape distribution.
// For beta, Shape1/Shape2 are alpha/beta. For gamma they are shape/rate.
type Distribution struct {
	Kind   string  `yaml:"kind"`
	Shape1 float64 `yaml:"shape1"`
	Shape2 float64 `yaml:"shape2"`
}

// Interval is a closed target interval.
type Interval struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

// Field declares how one scalar field is drawn.
type Field struct {
	Name  string       `yaml:"name"`
	Dist  Distribution `yaml:"distribution"`
	Scale float64      `yaml:"scale"` // zero means 1
	// Offset anchors the shifted value, typically near a baseline value.
	Offset  float64   `yaml:"offset"`
	Rescale *Interval `yaml:"rescale,omitempty"`
}

// Profile spreads a secondary field across subgroups.
type Profile struct {
	Name    string    `yaml:"name"`
	Groups  []string  `yaml:"groups"`
	Weights []float64 `yaml:"weights"`
}

// Config declares an ensemble draw.
type Config struct {
	N         int      `yaml:"n"`
	Seed      uint64   `yaml:"seed"`
	Primary   Field    `yaml:"primary"`
	Secondary *Field   `yaml:"secondary,omitempty"`
	Profile   *Profile `yaml:"profile,omitempty"`
	Sort      bool     `yaml:"sort"`
	TagPrefix string   `yaml:"tag_prefix,omitempty"`
}

// Validate checks the configuration without drawing.
func (c Config) Validate() error {
	if c.N <= 0 {
		return ir.NewInvalidConfiguration(fmt.Sprintf("sample count must be positive, got %d", c.N))
	}
	if c.Primary.Name == "" {
		return ir.NewInvalidConfiguration("primary field name is required")
	}
	if c.Primary.Rescale == nil {
		return ir.NewInvalidConfiguration("primary field requires a rescale interval")
	}
	if err := c.Primary.validate(); err != nil {
		return err
	}
	if c.Secondary != nil {
		if c.Secondary.Name == "" || c.Secondary.Name == c.Primary.Name {
			return ir.NewInvalidConfiguration("secondary field needs a distinct name")
		}
		if err := c.Secondary.validate(); err != nil {
			return err
		}
	}
	if c.Profile != nil {
		if c.Secondary == nil {
			return ir.NewInvalidConfiguration("profile requires a secondary field")
		}
		if _, err := NormalizeProfile(c.Profile.Weights); err != nil {
			return err
		}
		if len(c.Profile.Groups) != len(c.Profile.Weights) {
			return ir.NewInvalidConfiguration(fmt.Sprintf("profile has %d groups but %d weights",
				len(c.Profile.Groups), len(c.Profile.Weights)))
		}
	}
	return nil
}

func (f Field) validate() error {
	switch f.Dist.Kind {
	case DistBeta, DistGamma:
	default:
		return ir.NewInvalidConfiguration(fmt.Sprintf("field %s: unknown distribution %q", f.Name, f.Dist.Kind))
	}
	if !(f.Dist.Shape1 > 0) || !(f.Dist.Shape2 > 0) {
		return ir.NewInvalidConfiguration(fmt.Sprintf("field %s: shape parameters must be positive, got (%g, %g)",
			f.Name, f.Dist.Shape1, f.Dist.Shape2))
	}
	if f.Rescale != nil && !(f.Rescale.Lo < f.Rescale.Hi) {
		return ir.NewInvalidConfiguration(fmt.Sprintf("field %s: rescale interval requires lo < hi, got [%g, %g]",
			f.Name, f.Rescale.Lo, f.Rescale.Hi))
	}
	return nil
}

// ProfileName returns the vector field name used for the profile.
func (c Config) ProfileName() string {
	if c.Profile == nil {
		return ""
	}
	if c.Profile.Name != "" {
		return c.Profile.Name
	}
	return c.Secondary.Name + "_by_group"
}

// Sample draws an ensemble. Identical configurations produce identical samples.
func Sample(cfg Config) ([]ir.ParameterSample, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	primary := cfg.Primary.draw(cfg.N, rand.NewPCG(cfg.Seed, streamPrimary))

	var secondary []float64
	if cfg.Secondary != nil {
		secondary = cfg.Secondary.draw(cfg.N, rand.NewPCG(cfg.Seed, streamSecondary))
	}

	var profile []float64
	if cfg.Profile != nil {
		profile, _ = NormalizeProfile(cfg.Profile.Weights)
	}

	order := make([]int, cfg.N)
	for i := range order {
		order[i] = i
	}
	if cfg.Sort {
		sort.SliceStable(order, func(a, b int) bool {
			return primary[order[a]] < primary[order[b]]
		})
	}

	prefix := cfg.TagPrefix
	if prefix == "" {
		prefix = DefaultTagPrefix
	}

	samples := make([]ir.ParameterSample, cfg.N)
	for pos, idx := range order {
		scalars := map[string]float64{cfg.Primary.Name: primary[idx]}
		var vectors map[string][]float64
		if cfg.Secondary != nil {
			scalars[cfg.Secondary.Name] = secondary[idx]
			if profile != nil {
				vec := make([]float64, len(profile))
				for g, w := range profile {
					vec[g] = secondary[idx] * w
				}
				vectors = map[string][]float64{cfg.ProfileName(): vec}
			}
		}
		tag := fmt.Sprintf("%s_%d", prefix, pos+1)
		samples[pos] = ir.NewParameterSample(tag, idx, scalars, vectors)
	}
	return samples, nil
}

// draw returns n shifted and, if declared, rescaled values in draw order.
func (f Field) draw(n int, src rand.Source) []float64 {
	var gen interface{ Rand() float64 }
	switch f.Dist.Kind {
	case DistGamma:
		gen = distuv.Gamma{Alpha: f.Dist.Shape1, Beta: f.Dist.Shape2, Src: src}
	default:
		gen = distuv.Beta{Alpha: f.Dist.Shape1, Beta: f.Dist.Shape2, Src: src}
	}

	scale := f.Scale
	if scale == 0 {
		scale = 1
	}

	values := make([]float64, n)
	for i := range values {
		values[i] = gen.Rand()*scale + f.Offset
	}
	if f.Rescale != nil {
		values = Rescale(values, f.Rescale.Lo, f.Rescale.Hi)
	}
	return values
}

// Rescale maps values linearly so the realized minimum becomes lo and the
// realized maximum becomes hi. Endpoints are assigned exactly. A zero range
// maps every value to the midpoint of [lo, hi].
func Rescale(values []float64, lo, hi float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	span := maxV - minV
	for i, v := range values {
		switch {
		case span == 0:
			out[i] = lo + (hi-lo)/2
		case v == minV:
			out[i] = lo
		case v == maxV:
			out[i] = hi
		default:
			out[i] = lo + (v-minV)/span*(hi-lo)
		}
	}
	return out
}

// NormalizeProfile scales weights so they average to 1, preserving their
// relative sizes.
func NormalizeProfile(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, ir.NewInvalidConfiguration("profile weights are empty")
	}
	var sum float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, ir.NewInvalidConfiguration(fmt.Sprintf("profile weight %g must be finite and non-negative", w))
		}
		sum += w
	}
	if sum <= 0 {
		return nil, ir.NewInvalidConfiguration("profile weights must have a positive mean")
	}
	mean := sum / float64(len(weights))
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / mean
	}
	return out, nil
}
