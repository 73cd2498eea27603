package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRupture_CopyFrom_Equals(t *testing.T) {
	tests := []struct {
		name string
		rup  Rupture
	}{
		{"seed", Rupture{TDay: 0.5, RupMag: 6.1, KProd: 0.02, RupParent: RupParentSeed}},
		{"spatial child", Rupture{TDay: 3.25, RupMag: 3.4, KProd: 1e-4, RupParent: 7, XKm: -12.5, YKm: 4.0}},
		{"deleted parent", Rupture{TDay: 9.0, RupMag: 2.5, RupParent: RupParentDeleted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Rupture
			r.CopyFrom(&tt.rup)
			assert.True(t, r.Equals(&tt.rup))

			// Copy is by value: mutating the copy leaves the source intact.
			r.RupMag += 1.0
			assert.False(t, r.Equals(&tt.rup))
		})
	}
}

func TestRupture_SetBackground(t *testing.T) {
	var r Rupture
	r.Set(1.0, 5.0, 0.1, 3, 1.0, 2.0)
	assert.False(t, r.IsBackground())

	r.SetBackground(0.75)
	assert.True(t, r.IsBackground())
	assert.Equal(t, TimeBackground, r.TDay)
	assert.Equal(t, 0.75, r.KProd)
	assert.Contains(t, r.String(), "background")
}

func TestRupture_BelowBackgroundSentinelIsBackground(t *testing.T) {
	r := Rupture{TDay: TimeBackground * 2}
	assert.True(t, r.IsBackground())
}

func TestRupture_Clear(t *testing.T) {
	r := Rupture{TDay: 1, RupMag: 2, KProd: 3, RupParent: 4, XKm: 5, YKm: 6}
	r.Clear()
	assert.Equal(t, Rupture{RupParent: RupParentUnknown}, r)
}

func TestRupture_SetTMKP_ZeroesCoordinates(t *testing.T) {
	r := Rupture{XKm: 9, YKm: 9}
	r.SetTMKP(2.0, 4.5, 0.3, RupParentSeed)
	assert.Equal(t, Rupture{TDay: 2.0, RupMag: 4.5, KProd: 0.3, RupParent: RupParentSeed}, r)
}

func TestIsRupParentSentinel(t *testing.T) {
	assert.True(t, IsRupParentSentinel(RupParentSeed))
	assert.True(t, IsRupParentSentinel(RupParentUnknown))
	assert.True(t, IsRupParentSentinel(RupParentDeleted))
	assert.False(t, IsRupParentSentinel(0))
	assert.False(t, IsRupParentSentinel(12))
}
