package sim

import (
	"fmt"
	"math"
)

// Consumer is a visitor driven by a Scanner over sealed catalogs.
//
// Call sequence per catalog:
//
//	BeginCatalog
//	  BeginSeedGeneration, NextSeedRup*, EndSeedGeneration
//	  (BeginGeneration, (NextRup | NextSterileRup)*, EndGeneration)*
//	EndCatalog
//
// Open is called once before the first catalog and Close once after the last.
// One consumer instance is driven from a single goroutine and needs no
// internal locking; consumers that feed a shared accumulator rely on the
// accumulator's own synchronization.
type Consumer interface {
	Open()
	Close()
	BeginCatalog(ctx *ScanContext)
	EndCatalog(ctx *ScanContext)
	BeginSeedGeneration(ctx *ScanContext)
	NextSeedRup(ctx *ScanContext)
	EndSeedGeneration(ctx *ScanContext)
	BeginGeneration(ctx *ScanContext)
	NextRup(ctx *ScanContext)
	NextSterileRup(ctx *ScanContext)
	EndGeneration(ctx *ScanContext)
}

// NopConsumer implements every Consumer method as a no-op. Embed it and
// override the calls of interest.
type NopConsumer struct{}

func (NopConsumer) Open()                            {}
func (NopConsumer) Close()                           {}
func (NopConsumer) BeginCatalog(*ScanContext)        {}
func (NopConsumer) EndCatalog(*ScanContext)          {}
func (NopConsumer) BeginSeedGeneration(*ScanContext) {}
func (NopConsumer) NextSeedRup(*ScanContext)         {}
func (NopConsumer) EndSeedGeneration(*ScanContext)   {}
func (NopConsumer) BeginGeneration(*ScanContext)     {}
func (NopConsumer) NextRup(*ScanContext)             {}
func (NopConsumer) NextSterileRup(*ScanContext)      {}
func (NopConsumer) EndGeneration(*ScanContext)       {}

// ScanContext is the mutable record shared by the scanner and its consumers.
// It is reused across ruptures, generations and catalogs.
//
// Field validity:
//   - per catalog (from BeginCatalog through EndCatalog): Catalog, Params,
//     StopTime, ResultCode, CatSize, CatValidSize, CatGenCount, RNG
//   - per generation (from Begin*Generation through End*Generation): GenIndex,
//     GenInfo, GenSize, GenValidSize, SterileMag, HasSterile; SterileCount is
//     final only in EndGeneration
//   - per rupture (inside NextSeedRup, NextRup, NextSterileRup): RupIndex,
//     Rup, IsValid
type ScanContext struct {
	Catalog      CatalogView
	Params       CatalogParams
	StopTime     float64
	ResultCode   ResultCode
	CatSize      int
	CatValidSize int
	CatGenCount  int
	RNG          RandomGenerator

	GenIndex     int
	GenInfo      GenInfo
	GenSize      int
	GenValidSize int
	SterileMag   float64 // applied sterile threshold; meaningful when HasSterile
	HasSterile   bool
	SterileCount int

	RupIndex int // index within the generation; for sterile ruptures, the index of the natural sibling
	Rup      Rupture
	IsValid  bool // Rup.TDay < StopTime

	sterileRequest float64
	inBeginGen     bool
}

// RequestSterileMag asks the scanner to synthesize sterile ruptures down to
// mag in the current generation. Legal only inside BeginGeneration.
// The lowest request of all consumers wins; a request at or above the
// generation's completeness magnitude has no effect, and so does any request
// in a generation whose GenMagMax does not exceed GenMagMin, since no GR ratio
// relates the two ranges there.
func (c *ScanContext) RequestSterileMag(mag float64) {
	if !c.inBeginGen {
		panic("ScanContext: RequestSterileMag called outside BeginGeneration")
	}
	if mag < c.sterileRequest {
		c.sterileRequest = mag
	}
}

// Scanner drives a set of consumers over sealed catalogs.
// A Scanner is owned by one goroutine.
type Scanner struct {
	consumers []Consumer
	ctx       ScanContext
	opened    bool
}

// NewScanner creates a scanner over the given consumers.
func NewScanner(consumers ...Consumer) *Scanner {
	return &Scanner{consumers: consumers}
}

// Add appends a consumer. Panics once the scanner is open.
func (s *Scanner) Add(c Consumer) {
	if s.opened {
		panic("Scanner: Add called on an open scanner")
	}
	s.consumers = append(s.consumers, c)
}

// Open opens every consumer.
func (s *Scanner) Open() {
	if s.opened {
		panic("Scanner: Open called twice")
	}
	s.opened = true
	for _, c := range s.consumers {
		c.Open()
	}
}

// Close closes every consumer.
func (s *Scanner) Close() {
	if !s.opened {
		panic("Scanner: Close called on a scanner that is not open")
	}
	for _, c := range s.consumers {
		c.Close()
	}
	s.opened = false
}

// Scan delivers one sealed catalog to every consumer. rng is used for sterile
// rupture synthesis and exposed to consumers through the context.
func (s *Scanner) Scan(view CatalogView, rng RandomGenerator) {
	if !s.opened {
		panic("Scanner: Scan called on a scanner that is not open")
	}
	if !view.IsSealed() {
		panic("Scanner: Scan called on a catalog that is not sealed")
	}

	ctx := &s.ctx
	ctx.Catalog = view
	view.Params(&ctx.Params)
	ctx.StopTime = view.StopTime()
	ctx.ResultCode = view.ResultCode()
	ctx.CatSize = view.Size()
	ctx.CatValidSize = view.ValidSize()
	ctx.CatGenCount = view.GenCount()
	ctx.RNG = rng

	for _, c := range s.consumers {
		c.BeginCatalog(ctx)
	}

	if ctx.CatGenCount > 0 {
		s.scanSeedGeneration(view)
	}
	for g := 1; g < ctx.CatGenCount; g++ {
		s.scanGeneration(view, g)
	}

	for _, c := range s.consumers {
		c.EndCatalog(ctx)
	}
	ctx.Catalog = nil
	ctx.RNG = nil
}

func (s *Scanner) setGeneration(view CatalogView, g int) {
	ctx := &s.ctx
	ctx.GenIndex = g
	view.GenInfo(g, &ctx.GenInfo)
	ctx.GenSize = view.GenSize(g)
	ctx.GenValidSize = view.GenValidSize(g)
	ctx.HasSterile = false
	ctx.SterileMag = math.Inf(1)
	ctx.SterileCount = 0
}

func (s *Scanner) scanSeedGeneration(view CatalogView) {
	ctx := &s.ctx
	s.setGeneration(view, 0)
	for _, c := range s.consumers {
		c.BeginSeedGeneration(ctx)
	}
	for j := 0; j < ctx.GenSize; j++ {
		ctx.RupIndex = j
		view.RupFull(0, j, &ctx.Rup)
		ctx.IsValid = ctx.Rup.TDay < ctx.StopTime
		for _, c := range s.consumers {
			c.NextSeedRup(ctx)
		}
	}
	for _, c := range s.consumers {
		c.EndSeedGeneration(ctx)
	}
}

func (s *Scanner) scanGeneration(view CatalogView, g int) {
	ctx := &s.ctx
	s.setGeneration(view, g)

	// Every consumer states its threshold before the tail can be enumerated.
	ctx.sterileRequest = math.Inf(1)
	ctx.inBeginGen = true
	for _, c := range s.consumers {
		c.BeginGeneration(ctx)
	}
	ctx.inBeginGen = false

	sterileMean := 0.0
	if ctx.sterileRequest < ctx.GenInfo.GenMagMin && ctx.GenInfo.GenMagMax > ctx.GenInfo.GenMagMin {
		if ctx.RNG == nil {
			panic(fmt.Sprintf("Scanner: sterile ruptures requested for generation %d without a random generator", g))
		}
		ctx.HasSterile = true
		ctx.SterileMag = ctx.sterileRequest
		sterileMean = GRRatio(ctx.Params.B, ctx.SterileMag, ctx.GenInfo.GenMagMin, ctx.GenInfo.GenMagMax)
	}

	for j := 0; j < ctx.GenSize; j++ {
		ctx.RupIndex = j
		view.RupFull(g, j, &ctx.Rup)
		ctx.IsValid = ctx.Rup.TDay < ctx.StopTime
		for _, c := range s.consumers {
			c.NextRup(ctx)
		}
		if ctx.HasSterile {
			s.emitSterile(sterileMean)
		}
	}

	for _, c := range s.consumers {
		c.EndGeneration(ctx)
	}
}

// emitSterile delivers the sterile siblings of the natural rupture held in
// ctx.Rup. Siblings share its time, parent and position, have no
// productivity, and draw magnitudes from [SterileMag, GenMagMin).
func (s *Scanner) emitSterile(mean float64) {
	ctx := &s.ctx
	n := PoissonDeviate(ctx.RNG, mean)
	if n == 0 {
		return
	}
	ctx.Rup.KProd = 0.0
	for k := 0; k < n; k++ {
		ctx.Rup.RupMag = GRMagDeviate(ctx.RNG, ctx.Params.B, ctx.SterileMag, ctx.GenInfo.GenMagMin)
		if ctx.Rup.RupMag >= ctx.GenInfo.GenMagMin {
			ctx.Rup.RupMag = math.Nextafter(ctx.GenInfo.GenMagMin, math.Inf(-1))
		}
		ctx.SterileCount++
		for _, c := range s.consumers {
			c.NextSterileRup(ctx)
		}
	}
}
