package seed

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/etas-sim/etas-sim/sim"
	"github.com/etas-sim/etas-sim/sim/stats"
)

// NoMainshock marks a FixedConfig whose seed ruptures have no designated mainshock.
const NoMainshock = -1

// FixedConfig configures a FixedInitializer.
type FixedConfig struct {
	Params sim.CatalogParams
	Seed   sim.SeedParams
	// Ruptures are the observed earthquakes (mainshock, foreshocks,
	// aftershocks). TDay, RupMag, XKm and YKm are used; productivity and
	// parent are assigned when seeding.
	Ruptures []sim.Rupture
	// MainshockIndex selects the mainshock within Ruptures, or NoMainshock.
	MainshockIndex int
}

// Validate checks the configuration.
func (c *FixedConfig) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if err := c.Seed.Validate(); err != nil {
		return err
	}
	if len(c.Ruptures) == 0 && c.Seed.Mu == 0 {
		return sim.ConfigErrorf("fixed initializer: no seed ruptures and no background rate")
	}
	for i := range c.Ruptures {
		r := &c.Ruptures[i]
		for _, v := range []float64{r.TDay, r.RupMag, r.XKm, r.YKm} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return sim.ConfigErrorf("fixed initializer: seed rupture %d has a non-finite field: %s", i, r)
			}
		}
		if r.TDay <= sim.TimeBackground {
			return sim.ConfigErrorf("fixed initializer: seed rupture %d is a background marker; use the seed background rate instead", i)
		}
	}
	if c.MainshockIndex != NoMainshock && (c.MainshockIndex < 0 || c.MainshockIndex >= len(c.Ruptures)) {
		return sim.ConfigErrorf("fixed initializer: mainshock index %d out of range [0, %d)", c.MainshockIndex, len(c.Ruptures))
	}
	return nil
}

// FixedInitializer seeds every catalog with the same parameters and the same
// observed ruptures. Its initial-state sequence is constant, which trivially
// satisfies the repeatability contract.
type FixedInitializer struct {
	life     lifecycle
	params   sim.CatalogParams
	seed     sim.SeedParams
	ruptures []sim.Rupture
	mainshk  int
}

// NewFixedInitializer validates cfg and copies it into a new initializer.
func NewFixedInitializer(cfg FixedConfig) (*FixedInitializer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fi := &FixedInitializer{
		life:     lifecycle{name: "FixedInitializer"},
		params:   cfg.Params,
		seed:     cfg.Seed,
		ruptures: append([]sim.Rupture(nil), cfg.Ruptures...),
		mainshk:  cfg.MainshockIndex,
	}
	return fi, nil
}

func (fi *FixedInitializer) MakeSeeder() Seeder {
	return &fixedSeeder{seederState: seederState{life: &fi.life}, init: fi}
}

func (fi *FixedInitializer) BeginInitialization() {
	fi.life.begin()
	logrus.Debugf("FixedInitializer: begin ensemble, %d seed ruptures, mu=%g, %s",
		len(fi.ruptures), fi.seed.Mu, &fi.params)
}

func (fi *FixedInitializer) EndInitialization() {
	fi.life.end()
}

func (fi *FixedInitializer) HasMainshockMag() bool {
	return fi.mainshk != NoMainshock
}

func (fi *FixedInitializer) MainshockMag() float64 {
	if fi.mainshk == NoMainshock {
		return math.NaN()
	}
	return fi.ruptures[fi.mainshk].RupMag
}

// ScalingMag is the mainshock magnitude when known, else the largest seed
// magnitude, else the reported upper seed magnitude.
func (fi *FixedInitializer) ScalingMag() float64 {
	return scalingMag(fi.ruptures, fi.mainshk, &fi.seed)
}

func (fi *FixedInitializer) SimRange() SimRange {
	return simRangeOf(&fi.params)
}

func (fi *FixedInitializer) SetSimRange(r SimRange) error {
	fi.life.requireIdle("SetSimRange")
	if err := r.Validate(); err != nil {
		return err
	}
	r.applyTo(&fi.params)
	return nil
}

func (fi *FixedInitializer) BValue() float64 { return fi.params.B }
func (fi *FixedInitializer) TBegin() float64 { return fi.params.TBegin }

type fixedSeeder struct {
	seederState
	init    *FixedInitializer
	scratch sim.Rupture
}

func (s *fixedSeeder) Open()  { s.open() }
func (s *fixedSeeder) Close() { s.close() }

func (s *fixedSeeder) SeedCatalog(comm *SeedContext) error {
	s.requireOpened(comm)
	fi := s.init
	writeSeedGeneration(comm.Builder, &fi.params, &fi.seed, fi.seed.Ams, fi.ruptures, &s.scratch)
	return nil
}

// === shared helpers ===

// writeSeedGeneration begins a catalog under params and writes generation 0:
// one rupture per observed earthquake with productivity
// 10^(ams + alpha*(m - mref)), then a background marker when sp.Mu > 0.
func writeSeedGeneration(b sim.CatalogBuilder, params *sim.CatalogParams, sp *sim.SeedParams,
	ams float64, ruptures []sim.Rupture, scratch *sim.Rupture) {
	b.BeginCatalog(params)
	info := sim.GenInfo{GenMagMin: sp.SeedMagMin, GenMagMax: sp.SeedMagMax}
	b.BeginGeneration(&info)
	for i := range ruptures {
		r := &ruptures[i]
		k := stats.Productivity(ams, params.Alpha, r.RupMag, params.MRef)
		scratch.Set(r.TDay, r.RupMag, k, sim.RupParentSeed, r.XKm, r.YKm)
		b.AddRup(scratch)
	}
	if sp.Mu > 0 {
		scratch.SetBackground(sp.Mu)
		b.AddRup(scratch)
	}
	b.EndGeneration()
}

func scalingMag(ruptures []sim.Rupture, mainshock int, sp *sim.SeedParams) float64 {
	if mainshock != NoMainshock {
		return ruptures[mainshock].RupMag
	}
	if len(ruptures) == 0 {
		return sp.SeedMagMax
	}
	m := math.Inf(-1)
	for i := range ruptures {
		m = math.Max(m, ruptures[i].RupMag)
	}
	return m
}
