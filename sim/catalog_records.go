package sim

import "fmt"

// recordsCatalog stores one []Rupture per generation. Generation slices are
// kept across catalogs and truncated for reuse.
type recordsCatalog struct {
	catalogState
	gens [][]Rupture
	size int
}

func newRecordsCatalog() *recordsCatalog {
	return &recordsCatalog{}
}

func (c *recordsCatalog) BeginCatalog(params *CatalogParams) {
	c.begin(params)
	c.size = 0
}

func (c *recordsCatalog) BeginGeneration(info *GenInfo) {
	c.beginGeneration(info)
	g := len(c.genInfos) - 1
	if g < len(c.gens) {
		c.gens[g] = c.gens[g][:0]
	} else {
		c.gens = append(c.gens, make([]Rupture, 0, 16))
	}
}

func (c *recordsCatalog) AddRup(rup *Rupture) {
	c.requireGenOpen("AddRup")
	g := len(c.genInfos) - 1
	prevSize := 0
	if g > 0 {
		prevSize = len(c.gens[g-1])
	}
	c.checkParent(g, rup.RupParent, prevSize)
	c.gens[g] = append(c.gens[g], *rup)
	c.size++
}

func (c *recordsCatalog) EndGeneration() {
	c.endGeneration()
}

func (c *recordsCatalog) EndCatalog() {
	c.seal(func(g int) int {
		n := 0
		for i := range c.gens[g] {
			if c.gens[g][i].TDay < c.stopTime {
				n++
			}
		}
		return n
	})
}

func (c *recordsCatalog) Size() int { return c.size }

func (c *recordsCatalog) ETASSize() int {
	if len(c.genInfos) == 0 {
		return 0
	}
	return c.size - len(c.gens[0])
}

func (c *recordsCatalog) GenSize(g int) int {
	c.checkGen(g)
	return len(c.gens[g])
}

func (c *recordsCatalog) rup(g, j int) *Rupture {
	c.checkGen(g)
	if j < 0 || j >= len(c.gens[g]) {
		panic(fmt.Sprintf("Catalog: rupture index %d out of range [0, %d) in generation %d", j, len(c.gens[g]), g))
	}
	return &c.gens[g][j]
}

func (c *recordsCatalog) RupTime(g, j int, dst *Rupture) {
	dst.TDay = c.rup(g, j).TDay
}

func (c *recordsCatalog) RupTimeProd(g, j int, dst *Rupture) {
	r := c.rup(g, j)
	dst.TDay = r.TDay
	dst.KProd = r.KProd
}

func (c *recordsCatalog) RupTimeXY(g, j int, dst *Rupture) {
	r := c.rup(g, j)
	dst.TDay = r.TDay
	dst.XKm = r.XKm
	dst.YKm = r.YKm
}

func (c *recordsCatalog) RupFull(g, j int, dst *Rupture) {
	dst.CopyFrom(c.rup(g, j))
}
