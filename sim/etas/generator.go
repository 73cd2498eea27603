// Package etas grows seeded catalogs under the ETAS branching process.
//
// Each rupture of generation g-1 independently triggers a Poisson number of
// direct offspring in generation g. Offspring times follow the Omori law
// (t + c)^(-p) measured from the parent, restricted to the simulation
// window; magnitudes follow Gutenberg-Richter truncated to
// [MagMinSim, MagMaxSim]; productivity is 10^(a + alpha*(m - mref)).
// A background marker in generation 0 contributes Poisson background events
// spread uniformly over the window.
package etas

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/etas-sim/etas-sim/sim"
	"github.com/etas-sim/etas-sim/sim/stats"
)

// maxExpectedChildren bounds the expected offspring of a single parent.
// Anything larger means the parameters have blown up.
const maxExpectedChildren = 1.0e8

// Generator builds generations 1..n of catalogs whose generation 0 is already seeded.
// A Generator holds no mutable state and may be shared by workers.
type Generator struct {
	Limits sim.CatalogLimits
	// KernelKm is the scale of parent-relative isotropic offsets for a parent
	// of magnitude mref. Zero disables spatial offsets.
	KernelKm float64
}

// NewGenerator validates limits and returns a generator.
func NewGenerator(limits sim.CatalogLimits, kernelKm float64) (*Generator, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(kernelKm) || math.IsInf(kernelKm, 0) || kernelKm < 0 {
		return nil, sim.ConfigErrorf("etas generator: kernel_km must be finite and non-negative, got %f", kernelKm)
	}
	return &Generator{Limits: limits, KernelKm: kernelKm}, nil
}

// Build appends generations to builder until a generation comes out empty
// or a limit is reached, then records the stop time and result code and
// seals the catalog.
//
// builder must hold a completed seed generation and no other. On a limit
// the stop time is the earliest time in the last generation, clamped to
// the window, since descendants of that generation are missing from then
// on. A *sim.SimulationError leaves the catalog unsealed and unusable.
func (gen *Generator) Build(builder sim.CatalogBuilder, rng sim.RandomGenerator) error {
	if builder.IsSealed() || builder.GenCount() != 1 {
		panic(fmt.Sprintf("etas.Generator: Build needs exactly a seeded generation 0, got %d generations (sealed=%v)",
			builder.GenCount(), builder.IsSealed()))
	}

	var b build
	builder.Params(&b.params)
	b.builder = builder
	b.rng = rng
	b.kernelKm = gen.KernelKm
	b.info = sim.GenInfo{GenMagMin: b.params.MagMinSim, GenMagMax: b.params.MagMaxSim}

	rc := sim.ResultSuccess
	for g := 1; ; g++ {
		if g >= gen.Limits.MaxGenCount {
			if builder.GenSize(g-1) > 0 {
				rc = sim.ResultGenLimit
			}
			break
		}
		n, err := b.generation(g)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if builder.Size() >= gen.Limits.SoftMaxSize {
			rc = sim.ResultSizeLimit
			break
		}
	}

	stop := b.params.TEnd
	if rc != sim.ResultSuccess {
		stop = b.earliestTime(builder.GenCount() - 1)
		builder.SetCatStopTime(stop)
		builder.SetCatResultCode(rc)
	}
	builder.EndCatalog()
	logrus.Debugf("etas: built catalog with %d generations, %d ruptures, result %s, stop %g",
		builder.GenCount(), builder.Size(), rc, stop)
	return nil
}

// build is the state of one Build call.
type build struct {
	builder  sim.CatalogBuilder
	rng      sim.RandomGenerator
	params   sim.CatalogParams
	info     sim.GenInfo
	kernelKm float64
	parent   sim.Rupture
	child    sim.Rupture
}

// generation writes generation g and returns its size.
func (b *build) generation(g int) (int, error) {
	p := &b.params
	prevSize := b.builder.GenSize(g - 1)
	b.builder.BeginGeneration(&b.info)
	count := 0
	for j := 0; j < prevSize; j++ {
		b.builder.RupFull(g-1, j, &b.parent)
		var n int
		var err error
		if b.parent.IsBackground() {
			n, err = b.background(j)
		} else {
			n, err = b.offspring(j)
		}
		if err != nil {
			return 0, err
		}
		count += n
	}
	b.builder.EndGeneration()
	if count > 0 {
		logrus.Debugf("etas: generation %d has %d ruptures (a=%.3f)", g, count, p.A)
	}
	return count, nil
}

// offspring draws the direct children of b.parent, which sits at index j.
func (b *build) offspring(j int) (int, error) {
	p := &b.params
	par := &b.parent
	if par.KProd <= 0 {
		return 0, nil
	}
	t0 := math.Max(par.TDay, p.TBegin)
	if t0 >= p.TEnd {
		return 0, nil
	}
	d1, d2 := t0-par.TDay, p.TEnd-par.TDay
	mean, err := stats.ExpectedChildren(par.KProd, p.P, p.C, p.B, p.MRef, d1, d2, p.MagMinSim, p.MagMaxSim)
	if err != nil {
		return 0, sim.NewSimulationError("etas.offspring", fmt.Sprintf("parent %d: expected count", j), err)
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) || mean > maxExpectedChildren {
		return 0, sim.NewSimulationError("etas.offspring",
			fmt.Sprintf("parent %d (mag %.3f, k %.4g) expects %g children", j, par.RupMag, par.KProd, mean), nil)
	}

	n := sim.PoissonDeviate(b.rng, mean)
	scale := 0.0
	if b.kernelKm > 0 {
		scale = b.kernelKm * math.Pow(10.0, 0.5*(par.RupMag-p.MRef))
	}
	for i := 0; i < n; i++ {
		t := par.TDay + sim.OmoriDeviate(b.rng, p.P, p.C, d1, d2)
		m := sim.GRMagDeviate(b.rng, p.B, p.MagMinSim, p.MagMaxSim)
		k := stats.Productivity(p.A, p.Alpha, m, p.MRef)
		x, y := par.XKm, par.YKm
		if scale > 0 {
			x += scale * b.rng.NormFloat64()
			y += scale * b.rng.NormFloat64()
		}
		b.child.Set(t, m, k, j, x, y)
		b.builder.AddRup(&b.child)
	}
	return n, nil
}

// background draws the events of the background marker at index j: rate
// mu per day above mref, uniform in time over the window.
func (b *build) background(j int) (int, error) {
	p := &b.params
	frac := math.Pow(10.0, -p.B*(p.MagMinSim-p.MRef)) - math.Pow(10.0, -p.B*(p.MagMaxSim-p.MRef))
	mean := b.parent.KProd * p.Duration() * frac
	if math.IsNaN(mean) || math.IsInf(mean, 0) || mean > maxExpectedChildren {
		return 0, sim.NewSimulationError("etas.background", fmt.Sprintf("background rate %g expects %g events", b.parent.KProd, mean), nil)
	}
	n := sim.PoissonDeviate(b.rng, mean)
	for i := 0; i < n; i++ {
		t := p.TBegin + b.rng.Float64()*p.Duration()
		m := sim.GRMagDeviate(b.rng, p.B, p.MagMinSim, p.MagMaxSim)
		b.child.Set(t, m, stats.Productivity(p.A, p.Alpha, m, p.MRef), j, 0.0, 0.0)
		b.builder.AddRup(&b.child)
	}
	return n, nil
}

// earliestTime returns the earliest rupture time of generation g, clamped to
// the window. Background markers start at TBegin.
func (b *build) earliestTime(g int) float64 {
	p := &b.params
	t := p.TEnd
	for j := 0; j < b.builder.GenSize(g); j++ {
		b.builder.RupTime(g, j, &b.child)
		t = math.Min(t, b.child.TDay)
	}
	return math.Max(t, p.TBegin)
}
