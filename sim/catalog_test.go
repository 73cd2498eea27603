package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allLayouts = []Layout{LayoutCompact, LayoutRecords}

// buildCatalog builds a sealed catalog from per-generation rupture lists.
func buildCatalog(t *testing.T, layout Layout, params CatalogParams, stopTime float64, gens [][]Rupture) CatalogBuilder {
	t.Helper()
	cat := NewCatalog(layout)
	cat.BeginCatalog(&params)
	for _, gen := range gens {
		cat.BeginGeneration(&GenInfo{GenMagMin: params.MagMinSim, GenMagMax: params.MagMaxSim})
		for i := range gen {
			cat.AddRup(&gen[i])
		}
		cat.EndGeneration()
	}
	cat.SetCatStopTime(stopTime)
	cat.EndCatalog()
	return cat
}

func TestCatalog_ValidSize_StopTimeScenario(t *testing.T) {
	// GIVEN params with window [0, 10] and one generation at t = 1, 5, 12
	// WHEN the stop time is set to 8 and the catalog is sealed
	// THEN only the ruptures before 8 are valid
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			params := testParams()
			params.TBegin, params.TEnd = 0, 10
			gen0 := []Rupture{
				{TDay: 1, RupMag: 5.0, RupParent: RupParentSeed},
				{TDay: 5, RupMag: 4.0, RupParent: RupParentSeed},
				{TDay: 12, RupMag: 3.5, RupParent: RupParentSeed},
			}
			cat := buildCatalog(t, layout, params, 8, [][]Rupture{gen0})

			assert.Equal(t, 2, cat.ValidSize())
			assert.Equal(t, 2, cat.GenValidSize(0))
			assert.Equal(t, 3, cat.Size())
			assert.Equal(t, 0, cat.ETASSize())
			assert.Equal(t, 8.0, cat.StopTime())
		})
	}
}

func TestCatalog_SizesAcrossGenerations(t *testing.T) {
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			params := testParams()
			gens := [][]Rupture{
				{{TDay: 0.1, RupMag: 6.0, RupParent: RupParentSeed}},
				{{TDay: 0.5, RupMag: 3.1, RupParent: 0}, {TDay: 2.0, RupMag: 4.2, RupParent: 0}},
				{{TDay: 2.5, RupMag: 3.3, RupParent: 1}},
			}
			cat := buildCatalog(t, layout, params, params.TEnd, gens)

			assert.Equal(t, 3, cat.GenCount())
			assert.Equal(t, 4, cat.Size())
			assert.Equal(t, 3, cat.ETASSize())
			assert.Equal(t, 4, cat.ValidSize())
			assert.Equal(t, []int{1, 2, 1}, []int{cat.GenSize(0), cat.GenSize(1), cat.GenSize(2)})
			assert.Equal(t, ResultSuccess, cat.ResultCode())

			var got Rupture
			cat.RupFull(1, 1, &got)
			assert.True(t, got.Equals(&gens[1][1]))
		})
	}
}

func TestCatalog_DefaultsAndParamSnapshot(t *testing.T) {
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			// GIVEN a caller-owned params struct
			params := testParams()
			cat := NewCatalog(layout)
			cat.BeginCatalog(&params)

			// WHEN the caller mutates it after BeginCatalog
			params.B = 0.5

			// THEN the catalog keeps its own copy and the default termination status
			var snap CatalogParams
			cat.Params(&snap)
			assert.Equal(t, 1.0, snap.B)
			assert.Equal(t, snap.TEnd, cat.StopTime())
			assert.Equal(t, ResultSuccess, cat.ResultCode())
		})
	}
}

func TestCatalog_AddRupCopiesRecord(t *testing.T) {
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			params := testParams()
			cat := NewCatalog(layout)
			cat.BeginCatalog(&params)
			cat.BeginGeneration(&GenInfo{GenMagMin: 3, GenMagMax: 9})
			rup := Rupture{TDay: 1.0, RupMag: 5.0, RupParent: RupParentSeed}
			cat.AddRup(&rup)
			rup.RupMag = 7.0
			cat.EndGeneration()
			cat.EndCatalog()

			var got Rupture
			cat.RupFull(0, 0, &got)
			assert.Equal(t, 5.0, got.RupMag)
		})
	}
}

func TestCatalog_PartialAccessorsWriteOnlyTheirFields(t *testing.T) {
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			src := Rupture{TDay: 2.0, RupMag: 4.0, KProd: 0.5, RupParent: RupParentSeed, XKm: 3.0, YKm: -1.0}
			cat := buildCatalog(t, layout, testParams(), 10, [][]Rupture{{src}})

			// Fill the destination with a marker and check which fields change.
			marker := Rupture{TDay: -9, RupMag: -9, KProd: -9, RupParent: -9, XKm: -9, YKm: -9}

			got := marker
			cat.RupTime(0, 0, &got)
			assert.Equal(t, 2.0, got.TDay)

			got = marker
			cat.RupTimeProd(0, 0, &got)
			assert.Equal(t, 2.0, got.TDay)
			assert.Equal(t, 0.5, got.KProd)

			got = marker
			cat.RupTimeXY(0, 0, &got)
			assert.Equal(t, [3]float64{2.0, 3.0, -1.0}, [3]float64{got.TDay, got.XKm, got.YKm})

			got = marker
			cat.RupFull(0, 0, &got)
			assert.True(t, got.Equals(&src))
		})
	}
}

func TestCatalog_Reuse(t *testing.T) {
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			params := testParams()
			cat := buildCatalog(t, layout, params, 10, [][]Rupture{
				{{TDay: 1, RupParent: RupParentSeed}, {TDay: 2, RupParent: RupParentSeed}},
				{{TDay: 3, RupParent: 1}},
			})
			require.Equal(t, 3, cat.Size())

			// WHEN the catalog is begun again
			cat.BeginCatalog(&params)
			cat.BeginGeneration(&GenInfo{})
			cat.AddRup(&Rupture{TDay: 4, RupParent: RupParentSeed})
			cat.EndGeneration()
			cat.SetCatResultCode(ResultSizeLimit)
			cat.EndCatalog()

			// THEN no state from the previous catalog remains
			assert.Equal(t, 1, cat.GenCount())
			assert.Equal(t, 1, cat.Size())
			assert.Equal(t, ResultSizeLimit, cat.ResultCode())
			var got Rupture
			cat.RupTime(0, 0, &got)
			assert.Equal(t, 4.0, got.TDay)
		})
	}
}

func TestCatalog_PreconditionViolationsPanic(t *testing.T) {
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			params := testParams()

			unsealed := NewCatalog(layout)
			unsealed.BeginCatalog(&params)
			unsealed.BeginGeneration(&GenInfo{})
			unsealed.AddRup(&Rupture{TDay: 1, RupParent: RupParentSeed})
			assert.PanicsWithValue(t, "Catalog: ValidSize called before EndCatalog", func() { unsealed.ValidSize() })
			assert.Panics(t, func() { unsealed.GenValidSize(0) })
			assert.PanicsWithValue(t, "Catalog: EndCatalog called while a generation is open", func() { unsealed.EndCatalog() })
			assert.Panics(t, func() { unsealed.BeginGeneration(&GenInfo{}) })

			sealed := buildCatalog(t, layout, params, 10, [][]Rupture{{{TDay: 1, RupParent: RupParentSeed}}})
			var r Rupture
			assert.Panics(t, func() { sealed.RupFull(0, 1, &r) })
			assert.Panics(t, func() { sealed.RupFull(1, 0, &r) })
			assert.Panics(t, func() { sealed.GenSize(-1) })
			assert.Panics(t, func() { sealed.SetCatStopTime(5) })
			assert.Panics(t, func() { sealed.AddRup(&r) })
		})
	}
}

func TestCatalog_ParentMustReferencePreviousGeneration(t *testing.T) {
	for _, layout := range allLayouts {
		t.Run(layout.String(), func(t *testing.T) {
			params := testParams()
			cat := NewCatalog(layout)
			cat.BeginCatalog(&params)
			cat.BeginGeneration(&GenInfo{})
			assert.Panics(t, func() { cat.AddRup(&Rupture{RupParent: 0}) }, "seed generation needs a sentinel parent")
			cat.AddRup(&Rupture{RupParent: RupParentSeed})
			cat.EndGeneration()

			cat.BeginGeneration(&GenInfo{})
			cat.AddRup(&Rupture{RupParent: 0})
			cat.AddRup(&Rupture{RupParent: RupParentDeleted})
			assert.Panics(t, func() { cat.AddRup(&Rupture{RupParent: 1}) })
		})
	}
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("records")
	require.NoError(t, err)
	assert.Equal(t, LayoutRecords, l)

	l, err = ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutCompact, l)

	_, err = ParseLayout("columnar")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
