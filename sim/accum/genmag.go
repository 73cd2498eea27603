package accum

import (
	"fmt"
	"sync"

	"github.com/etas-sim/etas-sim/sim"
)

// GenMagAccumulator ranges an ensemble over a generation-count by magnitude
// grid. Cell (g, j) of a catalog is the number of valid ruptures in
// generations 1 through g+1 with magnitude >= magValues[j].
type GenMagAccumulator struct {
	genCount  int
	magValues []float64
	ncell     int

	mu     sync.Mutex
	rows   []float64 // catalog-major, ncell per catalog, cell index g*len(magValues)+j
	nrows  int
	sorted [][]float64 // per cell, nil until queried
}

// NewGenMagAccumulator creates a grid of genCount generations by the
// strictly increasing magValues.
func NewGenMagAccumulator(genCount int, magValues []float64) (*GenMagAccumulator, error) {
	if genCount < 1 {
		return nil, sim.ConfigErrorf("gen-mag accumulator: generation count must be positive, got %d", genCount)
	}
	if err := checkAscending("gen-mag accumulator: magnitude values", magValues, 1); err != nil {
		return nil, err
	}
	ncell := genCount * len(magValues)
	return &GenMagAccumulator{
		genCount:  genCount,
		magValues: append([]float64(nil), magValues...),
		ncell:     ncell,
		sorted:    make([][]float64, ncell),
	}, nil
}

// GenCount returns the number of generation rows.
func (a *GenMagAccumulator) GenCount() int { return a.genCount }

// MagValues returns a copy of the magnitude columns.
func (a *GenMagAccumulator) MagValues() []float64 {
	return append([]float64(nil), a.magValues...)
}

// CatalogCount returns the number of catalogs committed.
func (a *GenMagAccumulator) CatalogCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nrows
}

// add commits one catalog. cells holds per-generation (not cumulative) counts.
func (a *GenMagAccumulator) add(cells []int) {
	nmag := len(a.magValues)
	a.mu.Lock()
	defer a.mu.Unlock()
	for g := 0; g < a.genCount; g++ {
		for j := 0; j < nmag; j++ {
			v := cells[g*nmag+j]
			if g > 0 {
				v += int(a.rows[len(a.rows)-nmag])
			}
			a.rows = append(a.rows, float64(v))
		}
	}
	a.nrows++
	for i := range a.sorted {
		a.sorted[i] = nil
	}
}

// cell returns the sorted column of cell k, building it under a.mu.
func (a *GenMagAccumulator) cell(k int) []float64 {
	if a.sorted[k] == nil {
		col := make([]float64, a.nrows)
		for i := range col {
			col[i] = a.rows[i*a.ncell+k]
		}
		a.sorted[k] = sortedCopy(col)
	}
	return a.sorted[k]
}

// FractileArray returns, per (generation, magnitude) cell, the count N such
// that a fraction f of catalogs have at most N ruptures in that cell.
// Cells are all zero while no catalog has been committed.
func (a *GenMagAccumulator) FractileArray(f float64) [][]int {
	checkFraction("GenMagAccumulator.FractileArray", f)
	nmag := len(a.magValues)
	out := make([][]int, a.genCount)
	a.mu.Lock()
	defer a.mu.Unlock()
	for g := range out {
		out[g] = make([]int, nmag)
		if a.nrows == 0 {
			continue
		}
		for j := range out[g] {
			out[g][j] = int(fractile(f, a.cell(g*nmag+j)))
		}
	}
	return out
}

// ProbOccurArray returns, per cell, the fraction of catalogs with more than
// xcount ruptures in that cell.
func (a *GenMagAccumulator) ProbOccurArray(xcount int) [][]float64 {
	if xcount < 0 {
		panic(fmt.Sprintf("GenMagAccumulator.ProbOccurArray: negative count %d", xcount))
	}
	nmag := len(a.magValues)
	out := make([][]float64, a.genCount)
	a.mu.Lock()
	defer a.mu.Unlock()
	for g := range out {
		out[g] = make([]float64, nmag)
		if a.nrows == 0 {
			continue
		}
		for j := range out[g] {
			col := a.cell(g*nmag + j)
			out[g][j] = float64(countAbove(col, float64(xcount))) / float64(a.nrows)
		}
	}
	return out
}

// === GenMagConsumer ===

// GenMagConsumer tallies one catalog at a time into a GenMagAccumulator.
// It requests sterile ruptures down to the lowest magnitude column.
type GenMagConsumer struct {
	sim.NopConsumer
	acc   *GenMagAccumulator
	cells []int
	gen   int
}

// NewGenMagConsumer creates a consumer feeding acc.
func NewGenMagConsumer(acc *GenMagAccumulator) *GenMagConsumer {
	return &GenMagConsumer{acc: acc, cells: make([]int, acc.ncell)}
}

func (c *GenMagConsumer) BeginCatalog(*sim.ScanContext) {
	clear(c.cells)
}

func (c *GenMagConsumer) BeginGeneration(ctx *sim.ScanContext) {
	c.gen = ctx.GenIndex - 1
	if c.gen < c.acc.genCount {
		ctx.RequestSterileMag(c.acc.magValues[0])
	}
}

func (c *GenMagConsumer) NextRup(ctx *sim.ScanContext)        { c.tally(ctx) }
func (c *GenMagConsumer) NextSterileRup(ctx *sim.ScanContext) { c.tally(ctx) }

func (c *GenMagConsumer) tally(ctx *sim.ScanContext) {
	if c.gen >= c.acc.genCount || !ctx.IsValid {
		return
	}
	nmag := len(c.acc.magValues)
	row := c.cells[c.gen*nmag : (c.gen+1)*nmag]
	for j, m := range c.acc.magValues {
		if ctx.Rup.RupMag < m {
			break
		}
		row[j]++
	}
}

func (c *GenMagConsumer) EndCatalog(*sim.ScanContext) {
	c.acc.add(c.cells)
}
