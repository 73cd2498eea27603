package sim

import "fmt"

// compactCatalog stores every rupture column-wise in slices shared by all
// generations. genStart[g] is the offset of generation g's first rupture;
// genStart has one more entry than there are generations begun.
type compactCatalog struct {
	catalogState

	tDay   []float64
	rupMag []float64
	kProd  []float64
	xKm    []float64
	yKm    []float64
	parent []int32

	genStart []int
}

func newCompactCatalog() *compactCatalog {
	return &compactCatalog{genStart: []int{0}}
}

func (c *compactCatalog) BeginCatalog(params *CatalogParams) {
	c.begin(params)
	c.tDay = c.tDay[:0]
	c.rupMag = c.rupMag[:0]
	c.kProd = c.kProd[:0]
	c.xKm = c.xKm[:0]
	c.yKm = c.yKm[:0]
	c.parent = c.parent[:0]
	c.genStart = c.genStart[:1]
}

func (c *compactCatalog) BeginGeneration(info *GenInfo) {
	c.beginGeneration(info)
	c.genStart = append(c.genStart, len(c.tDay))
}

func (c *compactCatalog) AddRup(rup *Rupture) {
	c.requireGenOpen("AddRup")
	g := len(c.genInfos) - 1
	prevSize := 0
	if g > 0 {
		prevSize = c.genStart[g] - c.genStart[g-1]
	}
	c.checkParent(g, rup.RupParent, prevSize)

	c.tDay = append(c.tDay, rup.TDay)
	c.rupMag = append(c.rupMag, rup.RupMag)
	c.kProd = append(c.kProd, rup.KProd)
	c.xKm = append(c.xKm, rup.XKm)
	c.yKm = append(c.yKm, rup.YKm)
	c.parent = append(c.parent, int32(rup.RupParent))
	c.genStart[g+1] = len(c.tDay)
}

func (c *compactCatalog) EndGeneration() {
	c.endGeneration()
}

func (c *compactCatalog) EndCatalog() {
	c.seal(func(g int) int {
		n := 0
		for _, t := range c.tDay[c.genStart[g]:c.genStart[g+1]] {
			if t < c.stopTime {
				n++
			}
		}
		return n
	})
}

func (c *compactCatalog) Size() int { return len(c.tDay) }

func (c *compactCatalog) ETASSize() int {
	if len(c.genInfos) == 0 {
		return 0
	}
	return len(c.tDay) - c.genStart[1]
}

func (c *compactCatalog) GenSize(g int) int {
	c.checkGen(g)
	return c.genStart[g+1] - c.genStart[g]
}

// index maps (g, j) to a column offset.
func (c *compactCatalog) index(g, j int) int {
	c.checkGen(g)
	lo, hi := c.genStart[g], c.genStart[g+1]
	if j < 0 || j >= hi-lo {
		panic(fmt.Sprintf("Catalog: rupture index %d out of range [0, %d) in generation %d", j, hi-lo, g))
	}
	return lo + j
}

func (c *compactCatalog) RupTime(g, j int, dst *Rupture) {
	i := c.index(g, j)
	dst.TDay = c.tDay[i]
}

func (c *compactCatalog) RupTimeProd(g, j int, dst *Rupture) {
	i := c.index(g, j)
	dst.TDay = c.tDay[i]
	dst.KProd = c.kProd[i]
}

func (c *compactCatalog) RupTimeXY(g, j int, dst *Rupture) {
	i := c.index(g, j)
	dst.TDay = c.tDay[i]
	dst.XKm = c.xKm[i]
	dst.YKm = c.yKm[i]
}

func (c *compactCatalog) RupFull(g, j int, dst *Rupture) {
	i := c.index(g, j)
	dst.TDay = c.tDay[i]
	dst.RupMag = c.rupMag[i]
	dst.KProd = c.kProd[i]
	dst.RupParent = int(c.parent[i])
	dst.XKm = c.xKm[i]
	dst.YKm = c.yKm[i]
}
