// Package stats converts between equivalent ETAS parameterizations.
//
// Conventions: a parent of magnitude m with productivity a-value a triggers
// direct offspring of magnitude >= mref at rate
//
//	k(m) * (t + c)^(-p),   k(m) = 10^(a + alpha*(m - mref))
//
// with offspring magnitudes following Gutenberg-Richter with b-value b.
// The branch ratio is the expected number of direct offspring (magnitude in
// [mref, msup]) per parent, with parent magnitudes weighted by the
// Gutenberg-Richter density over [mref, msup] and time integrated over
// [0, tint]:
//
//	n = 10^a * Q * W
//	Q = b*ln(10) * integral_{mref}^{msup} 10^((alpha-b)*(m-mref)) dm
//	W = integral_0^{tint} (t + c)^(-p) dt
//
// Every function is pure and performs no I/O.
package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrDomain is wrapped by every error caused by inputs outside a function's domain.
var ErrDomain = errors.New("numeric domain error")

func domainErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

// exponentEps is the |alpha - b| below which Q uses its alpha == b limit,
// and the |1 - p| below which W uses its logarithmic limit.
const exponentEps = 1.0e-10

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// OmoriIntegral returns the integral of (t + c)^(-p) over [t1, t2].
func OmoriIntegral(p, c, t1, t2 float64) (float64, error) {
	if !finite(p, c, t1, t2) {
		return 0, domainErrorf("omori integral: non-finite input p=%v c=%v t=[%v,%v]", p, c, t1, t2)
	}
	if c <= 0 {
		return 0, domainErrorf("omori integral: c must be positive, got %v", c)
	}
	if t1 < 0 || t2 < t1 {
		return 0, domainErrorf("omori integral: need 0 <= t1 <= t2, got [%v, %v]", t1, t2)
	}
	if math.Abs(1.0-p) < exponentEps {
		return math.Log((t2 + c) / (t1 + c)), nil
	}
	q := 1.0 - p
	return (math.Pow(t2+c, q) - math.Pow(t1+c, q)) / q, nil
}

// MagIntegralQ returns b*ln(10) times the integral of 10^((alpha-b)*(m-mref))
// over [mref, msup].
func MagIntegralQ(b, alpha, mref, msup float64) (float64, error) {
	if !finite(b, alpha, mref, msup) {
		return 0, domainErrorf("magnitude integral: non-finite input b=%v alpha=%v mref=%v msup=%v", b, alpha, mref, msup)
	}
	if b <= 0 {
		return 0, domainErrorf("magnitude integral: b must be positive, got %v", b)
	}
	if msup <= mref {
		return 0, domainErrorf("magnitude integral: need msup > mref, got msup=%v mref=%v", msup, mref)
	}
	d := alpha - b
	if math.Abs(d) < exponentEps {
		return b * math.Ln10 * (msup - mref), nil
	}
	return b / d * (math.Pow(10.0, d*(msup-mref)) - 1.0), nil
}

// BranchParams holds everything the branch ratio depends on besides the a-value.
type BranchParams struct {
	P, C       float64 // Omori exponent and offset (days)
	B, Alpha   float64 // Gutenberg-Richter b-value and ETAS alpha
	MRef, MSup float64 // reference and upper magnitude
	TInt       float64 // integration duration, days
}

// tenAQW returns Q*W, the factor that multiplies 10^a.
func (bp BranchParams) tenAQW() (float64, error) {
	if !(bp.TInt > 0) {
		return 0, domainErrorf("branch ratio: duration must be positive, got %v", bp.TInt)
	}
	w, err := OmoriIntegral(bp.P, bp.C, 0, bp.TInt)
	if err != nil {
		return 0, err
	}
	q, err := MagIntegralQ(bp.B, bp.Alpha, bp.MRef, bp.MSup)
	if err != nil {
		return 0, err
	}
	qw := q * w
	if !(qw > 0) || math.IsInf(qw, 0) {
		return 0, domainErrorf("branch ratio: scale factor %v is not a positive finite number", qw)
	}
	return qw, nil
}

// BranchRatio converts a productivity a-value into a branch ratio.
func BranchRatio(a float64, bp BranchParams) (float64, error) {
	if !finite(a) {
		return 0, domainErrorf("branch ratio: a must be finite, got %v", a)
	}
	qw, err := bp.tenAQW()
	if err != nil {
		return 0, err
	}
	return math.Pow(10.0, a) * qw, nil
}

// AFromBranchRatio converts a branch ratio n > 0 into a productivity a-value.
func AFromBranchRatio(n float64, bp BranchParams) (float64, error) {
	if !(n > 0) || math.IsInf(n, 0) {
		return 0, domainErrorf("a-value: branch ratio must be positive and finite, got %v", n)
	}
	qw, err := bp.tenAQW()
	if err != nil {
		return 0, err
	}
	return math.Log10(n / qw), nil
}

// ConvertProductivity re-references a productivity value (a or ams) from
// mrefOld to mrefNew, preserving the offspring rate above any fixed magnitude:
//
//	v_new = v_old + (alpha - b) * (mrefNew - mrefOld)
func ConvertProductivity(v, b, alpha, mrefOld, mrefNew float64) (float64, error) {
	if !finite(v, b, alpha, mrefOld, mrefNew) {
		return 0, domainErrorf("productivity conversion: non-finite input")
	}
	return v + (alpha-b)*(mrefNew-mrefOld), nil
}

// ZamsFromAms re-references a mainshock productivity ams from mrefOld to
// mrefNew, giving zams.
func ZamsFromAms(ams, b, alpha, mrefOld, mrefNew float64) (float64, error) {
	return ConvertProductivity(ams, b, alpha, mrefOld, mrefNew)
}

// AmsFromZams is the inverse of ZamsFromAms for the same magnitudes.
func AmsFromZams(zams, b, alpha, mrefOld, mrefNew float64) (float64, error) {
	return ConvertProductivity(zams, b, alpha, mrefNew, mrefOld)
}

// ConvertBackgroundRate re-references a background rate mu, counted above
// mrefOld, to a rate counted above mrefNew.
func ConvertBackgroundRate(mu, b, mrefOld, mrefNew float64) (float64, error) {
	if !finite(mu, b, mrefOld, mrefNew) || mu < 0 {
		return 0, domainErrorf("background rate conversion: need finite inputs and mu >= 0, got mu=%v", mu)
	}
	return mu * math.Pow(10.0, -b*(mrefNew-mrefOld)), nil
}

// GRFraction returns the fraction of Gutenberg-Richter magnitudes drawn from
// [m1, msup] that fall at or above m2.
func GRFraction(b, m1, m2, msup float64) (float64, error) {
	if !finite(b, m1, m2, msup) {
		return 0, domainErrorf("gr fraction: non-finite input b=%v m=[%v,%v,%v]", b, m1, m2, msup)
	}
	if b <= 0 {
		return 0, domainErrorf("gr fraction: b must be positive, got %v", b)
	}
	if !(m1 < msup) || m2 < m1 || m2 > msup {
		return 0, domainErrorf("gr fraction: need m1 <= m2 <= msup and m1 < msup, got m1=%v m2=%v msup=%v", m1, m2, msup)
	}
	top := math.Pow(10.0, -b*(msup-m1))
	return (math.Pow(10.0, -b*(m2-m1)) - top) / (1.0 - top), nil
}

// Productivity returns k = 10^(a + alpha*(mag - mref)), the productivity of
// a rupture of magnitude mag.
func Productivity(a, alpha, mag, mref float64) float64 {
	return math.Pow(10.0, a+alpha*(mag-mref))
}

// ExpectedChildren returns the expected number of direct offspring with
// magnitude in [mLo, mHi] produced over [t1, t2] (relative to the parent's
// time) by a parent with productivity k.
func ExpectedChildren(k, p, c, b, mref, t1, t2, mLo, mHi float64) (float64, error) {
	w, err := OmoriIntegral(p, c, t1, t2)
	if err != nil {
		return 0, err
	}
	if mHi < mLo {
		return 0, domainErrorf("expected children: need mLo <= mHi, got [%v, %v]", mLo, mHi)
	}
	frac := math.Pow(10.0, -b*(mLo-mref)) - math.Pow(10.0, -b*(mHi-mref))
	return k * w * frac, nil
}
