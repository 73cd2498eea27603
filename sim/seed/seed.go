// Package seed builds generation 0 of ETAS catalogs.
//
// An Initializer is the ensemble-scoped factory for Seeders. Each worker
// goroutine owns one Seeder and calls SeedCatalog once per catalog it builds.
//
// Repeatability: the initial state of catalog i depends only on the
// initializer's key and i. A run of M catalogs therefore consumes the prefix
// 0..M-1 of one fixed sequence of initial states, whatever the number of
// workers or the way indices are split between them.
//
// Lifecycle (happens-before, left to right):
//
//	construct -> BeginInitialization -> MakeSeeder/Open -> SeedCatalog* -> Close -> EndInitialization
//
// An initializer may be reused for another ensemble once EndInitialization
// has returned. Violations that can be observed panic.
package seed

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/etas-sim/etas-sim/sim"
)

// SeedContext carries the per-catalog inputs of SeedCatalog.
type SeedContext struct {
	// Builder receives the catalog. SeedCatalog calls BeginCatalog on it.
	Builder sim.CatalogBuilder
	// Index is the catalog's position in the ensemble sequence.
	Index int
}

// Seeder populates generation 0 of one catalog at a time.
// A Seeder is owned by one goroutine.
type Seeder interface {
	// Open moves the seeder from idle to opened.
	Open()
	// SeedCatalog begins the catalog in comm.Builder and writes and ends its
	// seed generation. Legal only while opened.
	SeedCatalog(comm *SeedContext) error
	// Close moves the seeder from opened back to idle.
	Close()
}

// Initializer creates Seeders and describes the ensemble they seed.
type Initializer interface {
	// MakeSeeder returns a new idle Seeder.
	MakeSeeder() Seeder
	// BeginInitialization starts an ensemble. Panics if one is in progress.
	BeginInitialization()
	// EndInitialization finishes an ensemble. Panics if a seeder is still open.
	EndInitialization()

	// HasMainshockMag reports whether a mainshock magnitude is known.
	HasMainshockMag() bool
	// MainshockMag is the mainshock magnitude, or NaN when unknown.
	MainshockMag() float64
	// ScalingMag is a magnitude usable for ranging even when no mainshock is known.
	ScalingMag() float64

	// SimRange is the simulation window and magnitude range applied to each catalog.
	SimRange() SimRange
	// SetSimRange replaces the simulation range. Not legal during an ensemble.
	SetSimRange(r SimRange) error

	// BValue is the Gutenberg-Richter b-value in effect.
	BValue() float64
	// TBegin is the forecast start time, in days.
	TBegin() float64
}

// SimRange is the adjustable time and magnitude range of a simulation.
type SimRange struct {
	TBegin    float64
	TEnd      float64
	MagMinSim float64
	MagMaxSim float64
}

// Validate checks that the range is finite and ordered.
func (r SimRange) Validate() error {
	for _, v := range []float64{r.TBegin, r.TEnd, r.MagMinSim, r.MagMaxSim} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return sim.ConfigErrorf("sim range: non-finite bound in %+v", r)
		}
	}
	if r.TEnd < r.TBegin {
		return sim.ConfigErrorf("sim range: tend (%f) < tbegin (%f)", r.TEnd, r.TBegin)
	}
	if r.MagMaxSim < r.MagMinSim {
		return sim.ConfigErrorf("sim range: mag_max_sim (%f) < mag_min_sim (%f)", r.MagMaxSim, r.MagMinSim)
	}
	return nil
}

// applyTo overwrites the window and simulated magnitude range of p.
func (r SimRange) applyTo(p *sim.CatalogParams) {
	p.TBegin = r.TBegin
	p.TEnd = r.TEnd
	p.MagMinSim = r.MagMinSim
	p.MagMaxSim = r.MagMaxSim
}

// simRangeOf extracts the simulation range of p.
func simRangeOf(p *sim.CatalogParams) SimRange {
	return SimRange{TBegin: p.TBegin, TEnd: p.TEnd, MagMinSim: p.MagMinSim, MagMaxSim: p.MagMaxSim}
}

// === lifecycle ===

// lifecycle tracks ensemble state shared by an initializer and its seeders.
// Seeders on different goroutines read and update it, hence the atomics.
type lifecycle struct {
	name        string
	active      atomic.Bool
	openSeeders atomic.Int64
}

func (l *lifecycle) begin() {
	if !l.active.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("%s: BeginInitialization called while an ensemble is in progress", l.name))
	}
}

func (l *lifecycle) end() {
	if n := l.openSeeders.Load(); n != 0 {
		panic(fmt.Sprintf("%s: EndInitialization called with %d seeders still open", l.name, n))
	}
	if !l.active.CompareAndSwap(true, false) {
		panic(fmt.Sprintf("%s: EndInitialization called without BeginInitialization", l.name))
	}
}

func (l *lifecycle) requireIdle(op string) {
	if l.active.Load() {
		panic(fmt.Sprintf("%s: %s called during an ensemble", l.name, op))
	}
}

// seederState is the two-state machine every seeder embeds.
type seederState struct {
	life   *lifecycle
	opened bool
}

func (s *seederState) open() {
	if s.opened {
		panic(fmt.Sprintf("%s seeder: Open called on an opened seeder", s.life.name))
	}
	if !s.life.active.Load() {
		panic(fmt.Sprintf("%s seeder: Open called before BeginInitialization", s.life.name))
	}
	s.opened = true
	s.life.openSeeders.Add(1)
}

func (s *seederState) close() {
	if !s.opened {
		panic(fmt.Sprintf("%s seeder: Close called on an idle seeder", s.life.name))
	}
	s.opened = false
	s.life.openSeeders.Add(-1)
}

func (s *seederState) requireOpened(comm *SeedContext) {
	if !s.opened {
		panic(fmt.Sprintf("%s seeder: SeedCatalog called on an idle seeder", s.life.name))
	}
	if comm.Index < 0 {
		panic(fmt.Sprintf("%s seeder: negative catalog index %d", s.life.name, comm.Index))
	}
}
