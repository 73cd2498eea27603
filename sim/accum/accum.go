// Package accum reduces scanned catalogs into ensemble readouts.
//
// An accumulator is shared by every worker of an ensemble. Each worker owns
// one consumer per accumulator; the consumer tallies one catalog privately
// and commits the tally in EndCatalog, which is the only point where the
// accumulator's lock is taken on the build path.
//
// Readouts are empirical fractiles over per-catalog values. Each column is
// sorted the first time it is queried and the sorted copy is kept until the
// next catalog is committed.
package accum

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/etas-sim/etas-sim/sim"
)

// Magnitude readout sentinels. HighMagPositive means the requested fractile
// falls among catalogs with no data for the bin. HighMagNegative means it
// falls among catalogs with no rupture at all through the bin.
const (
	HighMagPositive = 1.0e20
	HighMagNegative = -1.0e20
)

// fractile returns the empirical f-fractile of ascending data: the smallest
// value whose cumulative fraction reaches f.
func fractile(f float64, sorted []float64) float64 {
	return stat.Quantile(f, stat.Empirical, sorted, nil)
}

func checkFraction(op string, f float64) {
	if !(f >= 0 && f <= 1) {
		panic(fmt.Sprintf("%s: fraction %v outside [0, 1]", op, f))
	}
}

// sortedCopy returns an ascending copy of x.
func sortedCopy(x []float64) []float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	return s
}

// countAbove returns how many values in ascending data exceed x.
func countAbove(sorted []float64, x float64) int {
	return len(sorted) - sort.Search(len(sorted), func(i int) bool { return sorted[i] > x })
}

// checkAscending validates a strictly increasing, finite sequence.
func checkAscending(what string, vals []float64, minLen int) error {
	if len(vals) < minLen {
		return sim.ConfigErrorf("%s: need at least %d values, got %d", what, minLen, len(vals))
	}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return sim.ConfigErrorf("%s: value %d is not finite", what, i)
		}
		if i > 0 && !(v > vals[i-1]) {
			return sim.ConfigErrorf("%s: values must be strictly increasing, got %v after %v", what, v, vals[i-1])
		}
	}
	return nil
}
