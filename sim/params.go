package sim

import (
	"fmt"
	"math"
)

// CatalogParams is the parameter snapshot a catalog is built under.
// A catalog copies these values in BeginCatalog and never aliases the caller's struct.
type CatalogParams struct {
	A     float64 // productivity a-value
	P     float64 // Omori exponent
	C     float64 // Omori offset, in days
	B     float64 // Gutenberg-Richter b-value
	Alpha float64 // ETAS productivity scaling exponent
	MRef  float64 // reference magnitude
	MSup  float64 // upper magnitude for branch-ratio integration

	TBegin float64 // start of the simulation window, in days
	TEnd   float64 // end of the simulation window, in days

	MagMinSim float64 // lowest magnitude simulated
	MagMaxSim float64 // highest magnitude simulated
	MagEps    float64 // tolerance when comparing magnitudes
}

// Validate checks the parameter invariants.
func (p *CatalogParams) Validate() error {
	for _, f := range []struct {
		name string
		val  float64
	}{
		{"a", p.A}, {"p", p.P}, {"c", p.C}, {"b", p.B}, {"alpha", p.Alpha},
		{"mref", p.MRef}, {"msup", p.MSup}, {"tbegin", p.TBegin}, {"tend", p.TEnd},
		{"mag_min_sim", p.MagMinSim}, {"mag_max_sim", p.MagMaxSim}, {"mag_eps", p.MagEps},
	} {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return ConfigErrorf("catalog params: %s must be a finite number, got %f", f.name, f.val)
		}
	}
	if p.C <= 0 {
		return ConfigErrorf("catalog params: c must be positive, got %f", p.C)
	}
	if p.B <= 0 {
		return ConfigErrorf("catalog params: b must be positive, got %f", p.B)
	}
	if p.TEnd < p.TBegin {
		return ConfigErrorf("catalog params: tend (%f) < tbegin (%f)", p.TEnd, p.TBegin)
	}
	if p.MagMaxSim < p.MagMinSim {
		return ConfigErrorf("catalog params: mag_max_sim (%f) < mag_min_sim (%f)", p.MagMaxSim, p.MagMinSim)
	}
	if p.MSup < p.MRef {
		return ConfigErrorf("catalog params: msup (%f) < mref (%f)", p.MSup, p.MRef)
	}
	if p.MagEps < 0 {
		return ConfigErrorf("catalog params: mag_eps must be non-negative, got %f", p.MagEps)
	}
	return nil
}

// CopyFrom copies every field of other into p.
func (p *CatalogParams) CopyFrom(other *CatalogParams) {
	*p = *other
}

// Equals reports whether p and other are identical field by field.
func (p *CatalogParams) Equals(other *CatalogParams) bool {
	return *p == *other
}

// Duration returns TEnd - TBegin.
func (p *CatalogParams) Duration() float64 {
	return p.TEnd - p.TBegin
}

func (p *CatalogParams) String() string {
	return fmt.Sprintf("CatalogParams{a=%.4f p=%.4f c=%.3g b=%.3f alpha=%.3f mref=%.2f msup=%.2f t=[%g,%g] mag=[%.2f,%.2f] eps=%g}",
		p.A, p.P, p.C, p.B, p.Alpha, p.MRef, p.MSup, p.TBegin, p.TEnd, p.MagMinSim, p.MagMaxSim, p.MagEps)
}

// CatalogLimits bounds the growth of one catalog.
type CatalogLimits struct {
	MaxGenCount int // maximum number of generations, including the seed generation
	SoftMaxSize int // catalog size at which generation stops
}

// Validate checks that both limits are positive.
func (l *CatalogLimits) Validate() error {
	if l.MaxGenCount <= 0 {
		return ConfigErrorf("catalog limits: max_gen_count must be positive, got %d", l.MaxGenCount)
	}
	if l.SoftMaxSize <= 0 {
		return ConfigErrorf("catalog limits: soft_max_size must be positive, got %d", l.SoftMaxSize)
	}
	return nil
}

// SeedParams configures the seed generation.
type SeedParams struct {
	Ams        float64 // mainshock productivity a-value
	Mu         float64 // background rate, events/day with magnitude >= MRef
	SeedMagMin float64 // reported lower magnitude of the seed generation
	SeedMagMax float64 // reported upper magnitude of the seed generation
}

// Validate checks the seed parameter invariants.
func (s *SeedParams) Validate() error {
	if math.IsNaN(s.Ams) || math.IsInf(s.Ams, 0) {
		return ConfigErrorf("seed params: ams must be a finite number, got %f", s.Ams)
	}
	if math.IsNaN(s.Mu) || s.Mu < 0 {
		return ConfigErrorf("seed params: mu must be non-negative, got %f", s.Mu)
	}
	if s.SeedMagMax < s.SeedMagMin {
		return ConfigErrorf("seed params: seed_mag_max (%f) < seed_mag_min (%f)", s.SeedMagMax, s.SeedMagMin)
	}
	return nil
}

// MagRange is a reported [Min, Max] magnitude range.
type MagRange struct {
	Min float64
	Max float64
}

// Validate checks Min <= Max.
func (m MagRange) Validate() error {
	if math.IsNaN(m.Min) || math.IsNaN(m.Max) || m.Max < m.Min {
		return ConfigErrorf("magnitude range: invalid bounds [%f, %f]", m.Min, m.Max)
	}
	return nil
}

// GenInfo is the summary supplied when a generation begins.
// The magnitude bounds describe completeness; they do not clamp the ruptures.
type GenInfo struct {
	GenMagMin float64 // completeness magnitude of the generation
	GenMagMax float64 // upper magnitude of the generation
}

// ResultCode encodes how a catalog's simulation ended.
// Every value is an ordinary outcome; failures are reported as errors instead.
type ResultCode int

const (
	// ResultSuccess means the catalog ran the full window to TEnd.
	ResultSuccess ResultCode = iota
	// ResultGenLimit means generation stopped at the maximum generation count.
	ResultGenLimit
	// ResultSizeLimit means generation stopped at the soft maximum size.
	ResultSizeLimit
)

func (rc ResultCode) String() string {
	switch rc {
	case ResultSuccess:
		return "success"
	case ResultGenLimit:
		return "gen_limit"
	case ResultSizeLimit:
		return "size_limit"
	default:
		return fmt.Sprintf("ResultCode(%d)", int(rc))
	}
}

// IsEarlyStop reports whether the catalog stopped before TEnd.
func (rc ResultCode) IsEarlyStop() bool {
	return rc == ResultGenLimit || rc == ResultSizeLimit
}
