package seed

import (
	"errors"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etas-sim/etas-sim/sim"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func testFixedConfig() FixedConfig {
	return FixedConfig{
		Params: sim.CatalogParams{
			A: -2.0, P: 1.08, C: 0.018, B: 1.0, Alpha: 1.0, MRef: 3.0, MSup: 9.5,
			TBegin: 0.0, TEnd: 30.0, MagMinSim: 3.0, MagMaxSim: 9.5, MagEps: 0.001,
		},
		Seed: sim.SeedParams{Ams: -2.5, Mu: 0.0, SeedMagMin: 2.5, SeedMagMax: 7.0},
		Ruptures: []sim.Rupture{
			{TDay: -1.5, RupMag: 4.2},
			{TDay: -1.0, RupMag: 6.5, XKm: 1.0, YKm: -2.0},
			{TDay: -0.5, RupMag: 3.8},
		},
		MainshockIndex: 1,
	}
}

func TestFixedConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *FixedConfig)
	}{
		{"bad params", func(c *FixedConfig) { c.Params.C = 0 }},
		{"negative mu", func(c *FixedConfig) { c.Seed.Mu = -1 }},
		{"nothing to seed", func(c *FixedConfig) { c.Ruptures = nil; c.MainshockIndex = NoMainshock }},
		{"non-finite rupture", func(c *FixedConfig) { c.Ruptures[0].RupMag = math.NaN() }},
		{"background rupture", func(c *FixedConfig) { c.Ruptures[0].TDay = sim.TimeBackground }},
		{"mainshock out of range", func(c *FixedConfig) { c.MainshockIndex = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testFixedConfig()
			tt.mutate(&cfg)
			_, err := NewFixedInitializer(cfg)
			assert.ErrorIs(t, err, sim.ErrInvalidConfig)
		})
	}
}

func TestFixedInitializer_SeedsGenerationZero(t *testing.T) {
	// GIVEN a fixed initializer with three observed ruptures and a background rate
	cfg := testFixedConfig()
	cfg.Seed.Mu = 0.25
	fi, err := NewFixedInitializer(cfg)
	require.NoError(t, err)

	// WHEN one catalog is seeded
	fi.BeginInitialization()
	s := fi.MakeSeeder()
	s.Open()
	cat := sim.NewCatalog(sim.LayoutCompact)
	require.NoError(t, s.SeedCatalog(&SeedContext{Builder: cat, Index: 0}))
	s.Close()
	fi.EndInitialization()
	cat.EndCatalog()

	// THEN generation 0 holds every rupture plus the background marker
	require.Equal(t, 1, cat.GenCount())
	require.Equal(t, 4, cat.GenSize(0))
	assert.Equal(t, 0, cat.ETASSize())

	var info sim.GenInfo
	cat.GenInfo(0, &info)
	assert.Equal(t, sim.GenInfo{GenMagMin: 2.5, GenMagMax: 7.0}, info)

	var rup sim.Rupture
	cat.RupFull(0, 1, &rup)
	assert.Equal(t, 6.5, rup.RupMag)
	assert.Equal(t, sim.RupParentSeed, rup.RupParent)
	assert.Equal(t, 1.0, rup.XKm)
	assert.InEpsilon(t, math.Pow(10, -2.5+1.0*(6.5-3.0)), rup.KProd, 1e-12)

	cat.RupFull(0, 3, &rup)
	assert.True(t, rup.IsBackground())
	assert.Equal(t, 0.25, rup.KProd)

	var params sim.CatalogParams
	cat.Params(&params)
	assert.True(t, params.Equals(&cfg.Params))
}

func TestFixedInitializer_Metadata(t *testing.T) {
	fi, err := NewFixedInitializer(testFixedConfig())
	require.NoError(t, err)
	assert.True(t, fi.HasMainshockMag())
	assert.Equal(t, 6.5, fi.MainshockMag())
	assert.Equal(t, 6.5, fi.ScalingMag())
	assert.Equal(t, 1.0, fi.BValue())
	assert.Equal(t, 0.0, fi.TBegin())

	cfg := testFixedConfig()
	cfg.MainshockIndex = NoMainshock
	fi, err = NewFixedInitializer(cfg)
	require.NoError(t, err)
	assert.False(t, fi.HasMainshockMag())
	assert.True(t, math.IsNaN(fi.MainshockMag()))
	// Scaling falls back to the largest seed magnitude.
	assert.Equal(t, 6.5, fi.ScalingMag())
}

func TestFixedInitializer_SetSimRange(t *testing.T) {
	fi, err := NewFixedInitializer(testFixedConfig())
	require.NoError(t, err)

	r := SimRange{TBegin: 1.0, TEnd: 8.0, MagMinSim: 2.0, MagMaxSim: 8.0}
	require.NoError(t, fi.SetSimRange(r))
	assert.Equal(t, r, fi.SimRange())
	assert.Equal(t, 1.0, fi.TBegin())

	err = fi.SetSimRange(SimRange{TBegin: 5, TEnd: 1, MagMinSim: 2, MagMaxSim: 8})
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
	assert.Equal(t, r, fi.SimRange(), "rejected range must not be applied")

	fi.BeginInitialization()
	assert.PanicsWithValue(t, "FixedInitializer: SetSimRange called during an ensemble", func() {
		_ = fi.SetSimRange(r)
	})
	fi.EndInitialization()
}

func TestSeeder_StateMachine(t *testing.T) {
	fi, err := NewFixedInitializer(testFixedConfig())
	require.NoError(t, err)
	s := fi.MakeSeeder()
	cat := sim.NewCatalog(sim.LayoutRecords)

	assert.PanicsWithValue(t, "FixedInitializer seeder: Open called before BeginInitialization", func() { s.Open() })

	fi.BeginInitialization()
	assert.PanicsWithValue(t, "FixedInitializer: BeginInitialization called while an ensemble is in progress", func() {
		fi.BeginInitialization()
	})
	assert.PanicsWithValue(t, "FixedInitializer seeder: SeedCatalog called on an idle seeder", func() {
		_ = s.SeedCatalog(&SeedContext{Builder: cat})
	})
	assert.PanicsWithValue(t, "FixedInitializer seeder: Close called on an idle seeder", func() { s.Close() })

	s.Open()
	assert.PanicsWithValue(t, "FixedInitializer seeder: Open called on an opened seeder", func() { s.Open() })
	assert.PanicsWithValue(t, "FixedInitializer: EndInitialization called with 1 seeders still open", func() {
		fi.EndInitialization()
	})

	// Any number of catalogs while opened.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SeedCatalog(&SeedContext{Builder: cat, Index: i}))
	}
	s.Close()
	fi.EndInitialization()

	// Reusable for another ensemble.
	fi.BeginInitialization()
	s.Open()
	require.NoError(t, s.SeedCatalog(&SeedContext{Builder: cat, Index: 0}))
	s.Close()
	fi.EndInitialization()

	assert.PanicsWithValue(t, "FixedInitializer: EndInitialization called without BeginInitialization", func() {
		fi.EndInitialization()
	})
}

func testGridConfig(t *testing.T) GridConfig {
	t.Helper()
	a, err := sim.NewLinearRange(3, -2.5, -1.5)
	require.NoError(t, err)
	p, err := sim.NewLinearRange(2, 1.0, 1.2)
	require.NoError(t, err)
	c, err := sim.NewLogRange(2, 0.001, 0.1)
	require.NoError(t, err)
	return GridConfig{
		Base: testFixedConfig(),
		A:    a,
		P:    p,
		C:    c,
		Ams:  sim.NewSingleRange(-2.0),
		Key:  sim.NewSimulationKey(42),
	}
}

func TestGridInitializer_Cells(t *testing.T) {
	gi, err := NewGridInitializer(testGridConfig(t))
	require.NoError(t, err)

	cells := gi.Cells()
	require.Len(t, cells, 12)
	// Ams varies fastest, then c, then p, then a.
	assert.Equal(t, GridCell{Index: 0, A: -2.5, P: 1.0, C: 0.001, Ams: -2.0}, cells[0])
	assert.Equal(t, 0.1, cells[1].C)
	assert.Equal(t, 1.2, cells[2].P)
	assert.Equal(t, -2.0, cells[4].A)
	assert.Equal(t, 11, cells[11].Index)
}

func TestGridInitializer_BranchRatioCells(t *testing.T) {
	// GIVEN a grid expressed as branch ratios
	cfg := testGridConfig(t)
	cfg.A = sim.NewSingleRange(0.5)
	cfg.BranchRatio = true
	gi, err := NewGridInitializer(cfg)
	require.NoError(t, err)

	// THEN every cell's a-value depends on its p and c but all stay finite
	for _, cell := range gi.Cells() {
		assert.False(t, math.IsNaN(cell.A) || math.IsInf(cell.A, 0))
	}
	cells := gi.Cells()
	assert.NotEqual(t, cells[0].A, cells[1].A)

	// WHEN the window is lengthened, the same branch ratio needs a smaller a-value
	before := cells[0].A
	require.NoError(t, gi.SetSimRange(SimRange{TBegin: 0, TEnd: 365, MagMinSim: 3, MagMaxSim: 9.5}))
	assert.Less(t, gi.Cells()[0].A, before)

	// AND a zero-length window cannot define a branch ratio
	err = gi.SetSimRange(SimRange{TBegin: 1, TEnd: 1, MagMinSim: 3, MagMaxSim: 9.5})
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
	assert.Equal(t, 365.0, gi.SimRange().TEnd)
}

func TestGridInitializer_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *GridConfig)
	}{
		{"missing range", func(c *GridConfig) { c.P = nil }},
		{"weight count", func(c *GridConfig) { c.Weights = []float64{1, 2} }},
		{"negative weight", func(c *GridConfig) {
			c.Weights = make([]float64, 12)
			c.Weights[3] = -1
		}},
		{"zero total weight", func(c *GridConfig) { c.Weights = make([]float64, 12) }},
		{"bad cell", func(c *GridConfig) { c.C = sim.NewSingleRange(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testGridConfig(t)
			tt.mutate(&cfg)
			_, err := NewGridInitializer(cfg)
			assert.True(t, errors.Is(err, sim.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestGridInitializer_WeightsSelectCells(t *testing.T) {
	// GIVEN all weight on a single cell
	cfg := testGridConfig(t)
	cfg.Weights = make([]float64, 12)
	cfg.Weights[7] = 1.0
	gi, err := NewGridInitializer(cfg)
	require.NoError(t, err)

	// THEN every catalog draws it
	for i := 0; i < 50; i++ {
		assert.Equal(t, 7, gi.CellFor(i).Index)
	}
}

// seedParams seeds catalog index with s and returns its parameter snapshot.
func seedParams(t *testing.T, s Seeder, cat sim.CatalogBuilder, index int) sim.CatalogParams {
	t.Helper()
	require.NoError(t, s.SeedCatalog(&SeedContext{Builder: cat, Index: index}))
	var p sim.CatalogParams
	cat.Params(&p)
	return p
}

func TestGridInitializer_Repeatability(t *testing.T) {
	// GIVEN one grid initializer
	gi, err := NewGridInitializer(testGridConfig(t))
	require.NoError(t, err)
	const m = 64

	// WHEN a single seeder walks indices 0..m-1 in order
	gi.BeginInitialization()
	s := gi.MakeSeeder()
	s.Open()
	cat := sim.NewCatalog(sim.LayoutCompact)
	sequential := make([]sim.CatalogParams, m)
	for i := 0; i < m; i++ {
		sequential[i] = seedParams(t, s, cat, i)
	}
	s.Close()
	gi.EndInitialization()

	// AND four seeders on separate goroutines split the same range in
	// interleaved order
	gi.BeginInitialization()
	parallel := make([]sim.CatalogParams, m)
	seeders := make([]Seeder, 4)
	var wg sync.WaitGroup
	for w := range seeders {
		seeders[w] = gi.MakeSeeder()
		seeders[w].Open()
		wg.Add(1)
		go func(w int, seeder Seeder) {
			defer wg.Done()
			cat := sim.NewCatalog(sim.LayoutRecords)
			for i := m - 1 - w; i >= 0; i -= 4 {
				assert.NoError(t, seeder.SeedCatalog(&SeedContext{Builder: cat, Index: i}))
				cat.Params(&parallel[i])
			}
		}(w, seeders[w])
	}
	wg.Wait()
	for _, seeder := range seeders {
		seeder.Close()
	}
	gi.EndInitialization()

	// THEN catalog i received the same initial state both times
	for i := 0; i < m; i++ {
		assert.True(t, sequential[i].Equals(&parallel[i]), "index %d: %s vs %s", i, &sequential[i], &parallel[i])
		cell := gi.CellFor(i)
		assert.Equal(t, cell.A, sequential[i].A)
		assert.Equal(t, cell.C, sequential[i].C)
	}

	// AND a larger ensemble extends the smaller one as a prefix
	for i := 0; i < m; i++ {
		assert.Equal(t, gi.CellFor(i), gi.CellFor(i))
	}

	// AND the draws actually spread over the grid
	seen := map[int]bool{}
	for i := 0; i < m; i++ {
		seen[gi.CellFor(i).Index] = true
	}
	assert.Greater(t, len(seen), 6)
}

func TestGridInitializer_SeedsAmsFromCell(t *testing.T) {
	cfg := testGridConfig(t)
	cfg.Ams = sim.NewSingleRange(-1.0)
	gi, err := NewGridInitializer(cfg)
	require.NoError(t, err)

	gi.BeginInitialization()
	s := gi.MakeSeeder()
	s.Open()
	cat := sim.NewCatalog(sim.LayoutCompact)
	p := seedParams(t, s, cat, 5)
	s.Close()
	gi.EndInitialization()
	cat.EndCatalog()

	var rup sim.Rupture
	cat.RupFull(0, 1, &rup)
	assert.InEpsilon(t, math.Pow(10, -1.0+p.Alpha*(6.5-p.MRef)), rup.KProd, 1e-12)
}
