package sim

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestPoissonDeviate_MeanAndVariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	for _, mean := range []float64{0.3, 4.0, 30.0} {
		samples := make([]float64, 20000)
		for i := range samples {
			samples[i] = float64(PoissonDeviate(rng, mean))
		}
		m, v := stat.MeanVariance(samples, nil)
		assert.InDelta(t, mean, m, 0.05*mean+0.02, "mean for lambda=%v", mean)
		assert.InDelta(t, mean, v, 0.1*mean+0.05, "variance for lambda=%v", mean)
	}
}

func TestPoissonDeviate_NonPositiveMean(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	assert.Equal(t, 0, PoissonDeviate(rng, 0))
	assert.Equal(t, 0, PoissonDeviate(rng, -3))
	assert.Equal(t, 0, PoissonDeviate(rng, math.NaN()))
}

func TestGRMagDeviate_StaysInRangeWithGRSlope(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	above := 0
	const n = 50000
	for i := 0; i < n; i++ {
		m := GRMagDeviate(rng, 1.0, 2.0, 8.0)
		assert.GreaterOrEqual(t, m, 2.0)
		assert.LessOrEqual(t, m, 8.0)
		if m >= 3.0 {
			above++
		}
	}
	// With b = 1 about a tenth of the events exceed mLo + 1.
	assert.InDelta(t, 0.1, float64(above)/n, 0.01)
}

func TestGRRatio(t *testing.T) {
	// Untruncated limit: 10^(b*(mHi-mLo)) - 1.
	assert.InDelta(t, 9.0, GRRatio(1.0, 2.0, 3.0, 100.0), 1e-9)
	assert.Equal(t, 0.0, GRRatio(1.0, 2.0, 3.0, 3.0))
}

func TestOmoriDeviate_MatchesIntegratedRate(t *testing.T) {
	rng := rand.New(rand.NewPCG(17, 19))
	for _, p := range []float64{0.9, 1.0, 1.2} {
		const c, t1, t2, mid = 0.01, 0.0, 10.0, 1.0
		// Expected fraction of draws below mid from the integrated Omori rate.
		integral := func(a, b float64) float64 {
			if p == 1.0 {
				return math.Log((b + c) / (a + c))
			}
			return (math.Pow(b+c, 1-p) - math.Pow(a+c, 1-p)) / (1 - p)
		}
		want := integral(t1, mid) / integral(t1, t2)

		const n = 40000
		below := 0
		for i := 0; i < n; i++ {
			d := OmoriDeviate(rng, p, c, t1, t2)
			assert.GreaterOrEqual(t, d, t1)
			assert.Less(t, d, t2)
			if d < mid {
				below++
			}
		}
		assert.InDelta(t, want, float64(below)/n, 0.01, "p=%v", p)
	}
}
