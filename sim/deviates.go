package sim

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// poissonInversionLimit is the largest mean sampled by sequential inversion.
// Larger means go through gonum's rejection sampler.
const poissonInversionLimit = 12.0

// PoissonDeviate draws a Poisson-distributed count with the given mean.
// A non-positive mean yields 0.
func PoissonDeviate(rng RandomGenerator, mean float64) int {
	if !(mean > 0) {
		return 0
	}
	if mean < poissonInversionLimit {
		// Sequential inversion: walk the CDF until it passes u.
		u := rng.Float64()
		p := math.Exp(-mean)
		cdf := p
		k := 0
		for u > cdf {
			k++
			p *= mean / float64(k)
			cdf += p
			if p == 0 {
				break
			}
		}
		return k
	}
	return int(distuv.Poisson{Lambda: mean, Src: rng}.Rand())
}

// GRMagDeviate draws a magnitude from a Gutenberg-Richter distribution with
// b-value b truncated to [mLo, mHi].
func GRMagDeviate(rng RandomGenerator, b, mLo, mHi float64) float64 {
	if mHi <= mLo {
		return mLo
	}
	u := rng.Float64()
	span := 1.0 - math.Pow(10.0, -b*(mHi-mLo))
	m := mLo - math.Log10(1.0-u*span)/b
	if m > mHi {
		m = mHi
	}
	return m
}

// GRRatio returns the expected number of events in [mLo, mHi) per event in
// [mHi, mTop], under a Gutenberg-Richter distribution with b-value b.
func GRRatio(b, mLo, mHi, mTop float64) float64 {
	num := math.Pow(10.0, -b*(mLo-mHi)) - 1.0
	den := 1.0 - math.Pow(10.0, -b*(mTop-mHi))
	if den <= 0 {
		return 0
	}
	return num / den
}

// OmoriDeviate draws a delay in [t1, t2) from the density proportional to
// (t + c)^(-p). It requires 0 <= t1 < t2 and c > 0.
func OmoriDeviate(rng RandomGenerator, p, c, t1, t2 float64) float64 {
	u := rng.Float64()
	var t float64
	if math.Abs(1.0-p) < 1.0e-10 {
		t = (t1+c)*math.Pow((t2+c)/(t1+c), u) - c
	} else {
		q := 1.0 - p
		lo := math.Pow(t1+c, q)
		hi := math.Pow(t2+c, q)
		t = math.Pow(lo+u*(hi-lo), 1.0/q) - c
	}
	if t < t1 {
		return t1
	}
	if t >= t2 {
		return math.Nextafter(t2, t1)
	}
	return t
}
