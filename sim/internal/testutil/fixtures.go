// Package testutil provides shared test infrastructure for the simulator.
// It consolidates the aftershock-sequence fixtures and assertion helpers used
// across the sim/ test packages.
package testutil

import (
	"math"
	"testing"

	"github.com/etas-sim/etas-sim/sim"
	"github.com/etas-sim/etas-sim/sim/seed"
)

// AftershockParams returns a subcritical parameter set over a 30 day window
// with magnitudes simulated from 3 to 8.
func AftershockParams() sim.CatalogParams {
	return sim.CatalogParams{
		A: -2.2, P: 1.1, C: 0.01, B: 1.0, Alpha: 1.0, MRef: 3.0, MSup: 9.5,
		TBegin: 0.0, TEnd: 30.0, MagMinSim: 3.0, MagMaxSim: 8.0, MagEps: 0.001,
	}
}

// AftershockSeed returns seed parameters with a weak background rate.
func AftershockSeed() sim.SeedParams {
	return sim.SeedParams{Ams: -2.0, Mu: 0.1, SeedMagMin: 3.0, SeedMagMax: 7.0}
}

// MainshockConfig seeds every catalog with an M5.8 mainshock shortly
// before the window opens.
func MainshockConfig() seed.FixedConfig {
	return seed.FixedConfig{
		Params:         AftershockParams(),
		Seed:           AftershockSeed(),
		Ruptures:       []sim.Rupture{{TDay: -0.1, RupMag: 5.8}},
		MainshockIndex: 0,
	}
}

// NewMainshockInitializer builds a fixed initializer from MainshockConfig.
func NewMainshockInitializer(t *testing.T) *seed.FixedInitializer {
	t.Helper()
	fi, err := seed.NewFixedInitializer(MainshockConfig())
	if err != nil {
		t.Fatalf("mainshock initializer: %v", err)
	}
	return fi
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
