package seed

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/etas-sim/etas-sim/sim"
	"github.com/etas-sim/etas-sim/sim/stats"
)

// GridConfig configures a GridInitializer.
//
// The grid is the outer product A x P x C x Ams. Cells are numbered in
// row-major order with Ams varying fastest.
type GridConfig struct {
	// Base supplies everything not drawn from the grid. Its A, P, C and Ams
	// values are ignored.
	Base FixedConfig

	A   sim.DiscreteRange // productivity a-values, or branch ratios when BranchRatio is set
	P   sim.DiscreteRange // Omori exponents
	C   sim.DiscreteRange // Omori offsets, days
	Ams sim.DiscreteRange // mainshock productivities

	// BranchRatio interprets A as branch ratios over the simulation window.
	BranchRatio bool

	// Weights holds one non-negative weight per cell; nil means uniform.
	Weights []float64

	// Key selects the initial-state sequence.
	Key sim.SimulationKey
}

// GridCell is one parameter combination of the grid.
type GridCell struct {
	Index int // cell number, row-major
	A     float64
	P     float64
	C     float64
	Ams   float64
}

// GridInitializer draws each catalog's parameters from a weighted grid.
// The cell used by catalog i is a pure function of (Key, i).
type GridInitializer struct {
	life     lifecycle
	cfg      GridConfig
	params   sim.CatalogParams
	cells    []GridCell
	cumW     []float64
	ruptures []sim.Rupture
}

// NewGridInitializer validates cfg and builds the grid.
func NewGridInitializer(cfg GridConfig) (*GridInitializer, error) {
	if err := cfg.Base.Validate(); err != nil {
		return nil, err
	}
	for _, r := range []struct {
		name string
		rng  sim.DiscreteRange
	}{{"a", cfg.A}, {"p", cfg.P}, {"c", cfg.C}, {"ams", cfg.Ams}} {
		if r.rng == nil {
			return nil, sim.ConfigErrorf("grid initializer: range %s is required", r.name)
		}
	}
	gi := &GridInitializer{
		life:     lifecycle{name: "GridInitializer"},
		cfg:      cfg,
		params:   cfg.Base.Params,
		ruptures: append([]sim.Rupture(nil), cfg.Base.Ruptures...),
	}
	if err := gi.buildCells(); err != nil {
		return nil, err
	}
	return gi, nil
}

// buildCells materializes the grid under the current simulation range.
func (gi *GridInitializer) buildCells() error {
	cfg := &gi.cfg
	n := cfg.A.Size() * cfg.P.Size() * cfg.C.Size() * cfg.Ams.Size()
	if cfg.Weights != nil && len(cfg.Weights) != n {
		return sim.ConfigErrorf("grid initializer: %d weights for %d cells", len(cfg.Weights), n)
	}

	cells := make([]GridCell, 0, n)
	cumW := make([]float64, 0, n)
	total := 0.0
	probe := gi.params
	for ia := 0; ia < cfg.A.Size(); ia++ {
		for ip := 0; ip < cfg.P.Size(); ip++ {
			for ic := 0; ic < cfg.C.Size(); ic++ {
				p, c := cfg.P.Value(ip), cfg.C.Value(ic)
				a, err := gi.aValue(cfg.A.Value(ia), p, c)
				if err != nil {
					return err
				}
				probe.A, probe.P, probe.C = a, p, c
				if err := probe.Validate(); err != nil {
					return fmt.Errorf("grid initializer: cell (a=%d, p=%d, c=%d): %w", ia, ip, ic, err)
				}
				for im := 0; im < cfg.Ams.Size(); im++ {
					ams := cfg.Ams.Value(im)
					if math.IsNaN(ams) || math.IsInf(ams, 0) {
						return sim.ConfigErrorf("grid initializer: ams value %d is not finite", im)
					}
					w := 1.0
					if cfg.Weights != nil {
						w = cfg.Weights[len(cells)]
						if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
							return sim.ConfigErrorf("grid initializer: weight %d must be finite and non-negative, got %f", len(cells), w)
						}
					}
					total += w
					cells = append(cells, GridCell{Index: len(cells), A: a, P: p, C: c, Ams: ams})
					cumW = append(cumW, total)
				}
			}
		}
	}
	if !(total > 0) {
		return sim.ConfigErrorf("grid initializer: total weight must be positive")
	}
	gi.cells = cells
	gi.cumW = cumW
	return nil
}

func (gi *GridInitializer) aValue(v, p, c float64) (float64, error) {
	if !gi.cfg.BranchRatio {
		return v, nil
	}
	bp := stats.BranchParams{
		P: p, C: c,
		B: gi.params.B, Alpha: gi.params.Alpha,
		MRef: gi.params.MRef, MSup: gi.params.MSup,
		TInt: gi.params.Duration(),
	}
	a, err := stats.AFromBranchRatio(v, bp)
	if err != nil {
		return 0, fmt.Errorf("grid initializer: branch ratio %g: %w: %w", v, sim.ErrInvalidConfig, err)
	}
	return a, nil
}

// Cells returns a copy of the grid.
func (gi *GridInitializer) Cells() []GridCell {
	return append([]GridCell(nil), gi.cells...)
}

// CellFor returns the cell catalog index draws.
func (gi *GridInitializer) CellFor(index int) GridCell {
	stream := sim.NewCatalogStream(gi.cfg.Key, sim.SubsystemInitializer)
	return gi.draw(stream, index)
}

func (gi *GridInitializer) draw(stream *sim.CatalogStream, index int) GridCell {
	stream.Reset(index, 0)
	u := stream.Float64() * gi.cumW[len(gi.cumW)-1]
	k := sort.Search(len(gi.cumW), func(i int) bool { return gi.cumW[i] > u })
	if k == len(gi.cumW) {
		k = len(gi.cumW) - 1
	}
	return gi.cells[k]
}

func (gi *GridInitializer) MakeSeeder() Seeder {
	return &gridSeeder{
		seederState: seederState{life: &gi.life},
		init:        gi,
		stream:      sim.NewCatalogStream(gi.cfg.Key, sim.SubsystemInitializer),
	}
}

func (gi *GridInitializer) BeginInitialization() {
	gi.life.begin()
	logrus.Debugf("GridInitializer: begin ensemble over %d cells (branch ratio=%v)", len(gi.cells), gi.cfg.BranchRatio)
}

func (gi *GridInitializer) EndInitialization() {
	gi.life.end()
}

func (gi *GridInitializer) HasMainshockMag() bool {
	return gi.cfg.Base.MainshockIndex != NoMainshock
}

func (gi *GridInitializer) MainshockMag() float64 {
	if gi.cfg.Base.MainshockIndex == NoMainshock {
		return math.NaN()
	}
	return gi.ruptures[gi.cfg.Base.MainshockIndex].RupMag
}

func (gi *GridInitializer) ScalingMag() float64 {
	return scalingMag(gi.ruptures, gi.cfg.Base.MainshockIndex, &gi.cfg.Base.Seed)
}

func (gi *GridInitializer) SimRange() SimRange {
	return simRangeOf(&gi.params)
}

// SetSimRange replaces the simulation range. With branch-ratio grids the
// a-values depend on the window length and are recomputed.
func (gi *GridInitializer) SetSimRange(r SimRange) error {
	gi.life.requireIdle("SetSimRange")
	if err := r.Validate(); err != nil {
		return err
	}
	old := gi.params
	r.applyTo(&gi.params)
	if err := gi.buildCells(); err != nil {
		gi.params = old
		return err
	}
	return nil
}

func (gi *GridInitializer) BValue() float64 { return gi.params.B }
func (gi *GridInitializer) TBegin() float64 { return gi.params.TBegin }

type gridSeeder struct {
	seederState
	init    *GridInitializer
	stream  *sim.CatalogStream
	params  sim.CatalogParams
	scratch sim.Rupture
}

func (s *gridSeeder) Open()  { s.open() }
func (s *gridSeeder) Close() { s.close() }

func (s *gridSeeder) SeedCatalog(comm *SeedContext) error {
	s.requireOpened(comm)
	gi := s.init
	cell := gi.draw(s.stream, comm.Index)
	s.params = gi.params
	s.params.A, s.params.P, s.params.C = cell.A, cell.P, cell.C
	writeSeedGeneration(comm.Builder, &s.params, &gi.cfg.Base.Seed, cell.Ams, gi.ruptures, &s.scratch)
	return nil
}
