package sim

import "fmt"

// === Reserved values ===

const (
	// TimeBackground marks a rupture as a background-rate marker rather than a
	// discrete event. Any rupture with TDay at or below this value is background.
	TimeBackground = -1.0e30

	// RupParentSeed is the parent index of ruptures in the seed generation.
	RupParentSeed = -1

	// RupParentUnknown is used when a rupture's parent is not known.
	RupParentUnknown = -2

	// RupParentDeleted marks a rupture whose parent was removed from the catalog.
	RupParentDeleted = -3
)

// IsRupParentSentinel reports whether parent is one of the reserved sentinels.
func IsRupParentSentinel(parent int) bool {
	return parent == RupParentSeed || parent == RupParentUnknown || parent == RupParentDeleted
}

// Rupture is the atomic event record of a catalog.
//
// KProd is the productivity kernel coefficient: the rate of direct offspring
// with magnitude >= MRef is KProd * (t - TDay + c)^(-p). For a background
// marker it holds the background rate mu instead.
// XKm and YKm are zero for non-spatial runs.
type Rupture struct {
	TDay      float64 // time in days since the origin
	RupMag    float64 // magnitude
	KProd     float64 // productivity, or background rate for a background marker
	RupParent int     // index into the previous generation, or a reserved sentinel
	XKm       float64 // planar x coordinate in km
	YKm       float64 // planar y coordinate in km
}

// Clear resets every field to its zero value and the parent to RupParentUnknown.
func (r *Rupture) Clear() {
	*r = Rupture{RupParent: RupParentUnknown}
}

// Set assigns every field.
func (r *Rupture) Set(tDay, rupMag, kProd float64, rupParent int, xKm, yKm float64) {
	r.TDay = tDay
	r.RupMag = rupMag
	r.KProd = kProd
	r.RupParent = rupParent
	r.XKm = xKm
	r.YKm = yKm
}

// SetTMKP assigns time, magnitude, productivity and parent, leaving the
// coordinates at zero.
func (r *Rupture) SetTMKP(tDay, rupMag, kProd float64, rupParent int) {
	r.Set(tDay, rupMag, kProd, rupParent, 0.0, 0.0)
}

// CopyFrom copies every field of other into r.
func (r *Rupture) CopyFrom(other *Rupture) {
	*r = *other
}

// Equals reports whether r and other hold identical field values.
func (r *Rupture) Equals(other *Rupture) bool {
	return r.TDay == other.TDay &&
		r.RupMag == other.RupMag &&
		r.KProd == other.KProd &&
		r.RupParent == other.RupParent &&
		r.XKm == other.XKm &&
		r.YKm == other.YKm
}

// SetBackground turns r into a background marker with rate mu.
func (r *Rupture) SetBackground(mu float64) {
	r.Set(TimeBackground, 0.0, mu, RupParentSeed, 0.0, 0.0)
}

// IsBackground reports whether r is a background marker.
func (r *Rupture) IsBackground() bool {
	return r.TDay <= TimeBackground
}

func (r *Rupture) String() string {
	if r.IsBackground() {
		return fmt.Sprintf("Rupture{background mu=%g}", r.KProd)
	}
	return fmt.Sprintf("Rupture{t=%.6f mag=%.3f k=%.6g parent=%d x=%.3f y=%.3f}",
		r.TDay, r.RupMag, r.KProd, r.RupParent, r.XKm, r.YKm)
}
