package accum

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/etas-sim/etas-sim/sim"
)

// TimeAccumulator ranges an ensemble over time bins.
//
// Bin n covers [timeValues[n], timeValues[n+1]). A catalog completes bin n
// when its stop time is at least timeValues[n+1]. For each catalog it keeps
// the stop time, and for each bin the cumulative count of valid, non-seed
// ruptures with magnitude >= the threshold and the maximum magnitude of any
// valid, non-seed rupture since timeValues[0].
type TimeAccumulator struct {
	timeValues []float64
	nbins      int
	magThresh  float64

	mu        sync.Mutex
	stopTimes []float64
	completed []int
	counts    []float64 // catalog-major, nbins per catalog
	maxMags   []float64 // catalog-major, nbins per catalog
	cache     map[timeColumn][]float64
}

type timeColumnKind int

const (
	colCount timeColumnKind = iota
	colMaxCompleting
	colMaxTotal
	colMaxSelected
	colStopTimes
)

type timeColumn struct {
	kind timeColumnKind
	n    int
	sel  int
}

// NewTimeAccumulator creates an accumulator over the bin edges timeValues
// (at least two, strictly increasing) counting ruptures with magnitude >= magThresh.
func NewTimeAccumulator(timeValues []float64, magThresh float64) (*TimeAccumulator, error) {
	if err := checkAscending("time accumulator: time values", timeValues, 2); err != nil {
		return nil, err
	}
	if math.IsNaN(magThresh) || math.IsInf(magThresh, 0) {
		return nil, sim.ConfigErrorf("time accumulator: magnitude threshold must be finite, got %v", magThresh)
	}
	return &TimeAccumulator{
		timeValues: append([]float64(nil), timeValues...),
		nbins:      len(timeValues) - 1,
		magThresh:  magThresh,
		cache:      make(map[timeColumn][]float64),
	}, nil
}

// BinCount returns the number of time bins.
func (a *TimeAccumulator) BinCount() int { return a.nbins }

// TimeValues returns a copy of the bin edges.
func (a *TimeAccumulator) TimeValues() []float64 {
	return append([]float64(nil), a.timeValues...)
}

// MagThresh returns the counting threshold.
func (a *TimeAccumulator) MagThresh() float64 { return a.magThresh }

// binOf returns the bin containing t, or -1 when t lies outside every bin.
func (a *TimeAccumulator) binOf(t float64) int {
	n := sort.Search(len(a.timeValues), func(i int) bool { return a.timeValues[i] > t }) - 1
	if n < 0 || n >= a.nbins {
		return -1
	}
	return n
}

// add commits one catalog. counts and maxMags are per-bin (not cumulative)
// and have nbins entries each.
func (a *TimeAccumulator) add(stopTime float64, counts []int, maxMags []float64) {
	completed := 0
	for completed < a.nbins && stopTime >= a.timeValues[completed+1] {
		completed++
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimes = append(a.stopTimes, stopTime)
	a.completed = append(a.completed, completed)
	cum := 0
	mx := math.Inf(-1)
	for n := 0; n < a.nbins; n++ {
		cum += counts[n]
		mx = math.Max(mx, maxMags[n])
		a.counts = append(a.counts, float64(cum))
		a.maxMags = append(a.maxMags, mx)
	}
	clear(a.cache)
}

func (a *TimeAccumulator) checkBin(op string, n int) {
	if n < 0 || n >= a.nbins {
		panic(fmt.Sprintf("TimeAccumulator.%s: bin %d out of range [0, %d)", op, n, a.nbins))
	}
}

// column returns the sorted column for key, building it under a.mu.
func (a *TimeAccumulator) column(key timeColumn) []float64 {
	if col, ok := a.cache[key]; ok {
		return col
	}
	var col []float64
	for i, done := range a.completed {
		switch key.kind {
		case colCount:
			if done > key.n {
				col = append(col, a.counts[i*a.nbins+key.n])
			}
		case colMaxCompleting:
			if done > key.n {
				col = append(col, a.maxMags[i*a.nbins+key.n])
			}
		case colMaxTotal:
			if done > key.n {
				col = append(col, a.maxMags[i*a.nbins+key.n])
			} else {
				col = append(col, math.Inf(1))
			}
		case colMaxSelected:
			if done <= key.sel {
				continue
			}
			if done > key.n {
				col = append(col, a.maxMags[i*a.nbins+key.n])
			} else {
				col = append(col, math.Inf(1))
			}
		case colStopTimes:
			col = append(col, a.stopTimes[i])
		}
	}
	sort.Float64s(col)
	a.cache[key] = col
	return col
}

// CatalogCount returns the number of catalogs committed.
func (a *TimeAccumulator) CatalogCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.stopTimes)
}

// CompletingCount returns how many catalogs complete bin n.
func (a *TimeAccumulator) CompletingCount(n int) int {
	a.checkBin("CompletingCount", n)
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.column(timeColumn{kind: colCount, n: n}))
}

// BinFractile returns the rupture count N such that, among catalogs that
// complete bin n, a fraction f have a cumulative count through bin n of at
// most N. It returns 0 when no catalog completes bin n.
func (a *TimeAccumulator) BinFractile(n int, f float64) int {
	a.checkBin("BinFractile", n)
	checkFraction("TimeAccumulator.BinFractile", f)
	a.mu.Lock()
	defer a.mu.Unlock()
	col := a.column(timeColumn{kind: colCount, n: n})
	if len(col) == 0 {
		return 0
	}
	return int(fractile(f, col))
}

// SurvivalBins returns the largest N in [0, BinCount()] such that the
// fraction of catalogs stopping strictly before timeValues[N] is at most
// stopFraction. The comparison is inclusive.
func (a *TimeAccumulator) SurvivalBins(stopFraction float64) int {
	checkFraction("TimeAccumulator.SurvivalBins", stopFraction)
	a.mu.Lock()
	defer a.mu.Unlock()
	stops := a.column(timeColumn{kind: colStopTimes})
	total := float64(len(stops))
	for n := a.nbins; n > 0; n-- {
		stopped := sort.SearchFloat64s(stops, a.timeValues[n])
		if total == 0 || float64(stopped)/total <= stopFraction {
			return n
		}
	}
	return 0
}

// HighMagFractile returns the f-fractile of the maximum magnitude through
// bin n. With fTotal every catalog is included and those not completing bin
// n rank above all magnitudes; otherwise only completing catalogs count.
// Results in the no-data tail return HighMagPositive, results among
// catalogs without any rupture return HighMagNegative.
func (a *TimeAccumulator) HighMagFractile(n int, f float64, fTotal bool) float64 {
	a.checkBin("HighMagFractile", n)
	checkFraction("TimeAccumulator.HighMagFractile", f)
	kind := colMaxCompleting
	if fTotal {
		kind = colMaxTotal
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return magFractile(f, a.column(timeColumn{kind: kind, n: n}))
}

// SelHighMagFractile is HighMagFractile restricted to the catalogs that
// complete bin nSel. Selected catalogs not completing bin n rank above all
// magnitudes.
func (a *TimeAccumulator) SelHighMagFractile(n int, f float64, nSel int) float64 {
	a.checkBin("SelHighMagFractile", n)
	a.checkBin("SelHighMagFractile", nSel)
	checkFraction("TimeAccumulator.SelHighMagFractile", f)
	a.mu.Lock()
	defer a.mu.Unlock()
	return magFractile(f, a.column(timeColumn{kind: colMaxSelected, n: n, sel: nSel}))
}

// ProbOccur returns the fraction of catalogs completing bin n whose
// cumulative count through bin n exceeds xcount, or 0 when none completes it.
func (a *TimeAccumulator) ProbOccur(n int, xcount int) float64 {
	a.checkBin("ProbOccur", n)
	a.mu.Lock()
	defer a.mu.Unlock()
	col := a.column(timeColumn{kind: colCount, n: n})
	if len(col) == 0 {
		return 0
	}
	return float64(countAbove(col, float64(xcount))) / float64(len(col))
}

func magFractile(f float64, col []float64) float64 {
	if len(col) == 0 {
		return HighMagPositive
	}
	m := fractile(f, col)
	switch {
	case math.IsInf(m, 1):
		return HighMagPositive
	case math.IsInf(m, -1):
		return HighMagNegative
	}
	return m
}

// === TimeConsumer ===

// TimeConsumer tallies one catalog at a time into a TimeAccumulator.
// It requests sterile ruptures down to the accumulator's threshold so counts
// below a generation's completeness magnitude are represented.
type TimeConsumer struct {
	sim.NopConsumer
	acc     *TimeAccumulator
	counts  []int
	maxMags []float64
}

// NewTimeConsumer creates a consumer feeding acc.
func NewTimeConsumer(acc *TimeAccumulator) *TimeConsumer {
	return &TimeConsumer{
		acc:     acc,
		counts:  make([]int, acc.nbins),
		maxMags: make([]float64, acc.nbins),
	}
}

func (c *TimeConsumer) BeginCatalog(*sim.ScanContext) {
	for n := range c.counts {
		c.counts[n] = 0
		c.maxMags[n] = math.Inf(-1)
	}
}

func (c *TimeConsumer) BeginGeneration(ctx *sim.ScanContext) {
	ctx.RequestSterileMag(c.acc.magThresh)
}

func (c *TimeConsumer) NextRup(ctx *sim.ScanContext)        { c.tally(ctx) }
func (c *TimeConsumer) NextSterileRup(ctx *sim.ScanContext) { c.tally(ctx) }

func (c *TimeConsumer) tally(ctx *sim.ScanContext) {
	if !ctx.IsValid {
		return
	}
	n := c.acc.binOf(ctx.Rup.TDay)
	if n < 0 {
		return
	}
	if ctx.Rup.RupMag >= c.acc.magThresh {
		c.counts[n]++
	}
	if ctx.Rup.RupMag > c.maxMags[n] {
		c.maxMags[n] = ctx.Rup.RupMag
	}
}

func (c *TimeConsumer) EndCatalog(ctx *sim.ScanContext) {
	c.acc.add(ctx.StopTime, c.counts, c.maxMags)
}
