package sim

import "fmt"

// CatalogView is the read-only projection of a catalog.
// Once sealed, a view is safe for unsynchronized concurrent reads.
//
// Accessors that return rupture data copy the requested fields into a
// caller-supplied *Rupture so that scanning never allocates. The partial
// accessors (RupTime, RupTimeProd, RupTimeXY) write only their documented
// fields; other fields of dst are left in an unspecified state.
// Out-of-range generation or rupture indices panic.
type CatalogView interface {
	// Params copies the catalog's parameter snapshot into dst.
	Params(dst *CatalogParams)
	// StopTime is the time at which simulation stopped; TEnd when it ran the full window.
	StopTime() float64
	// ResultCode reports how the simulation ended.
	ResultCode() ResultCode
	// IsSealed reports whether EndCatalog has been called.
	IsSealed() bool

	// Size counts every rupture in every generation.
	Size() int
	// ETASSize counts ruptures outside the seed generation.
	ETASSize() int
	// ValidSize counts ruptures with TDay < StopTime. Panics before sealing.
	ValidSize() int

	// GenCount is the number of completed generations.
	GenCount() int
	// GenSize is the number of ruptures in generation g.
	GenSize(g int) int
	// GenValidSize counts ruptures of generation g with TDay < StopTime. Panics before sealing.
	GenValidSize(g int) int
	// GenInfo copies the summary of generation g into dst.
	GenInfo(g int, dst *GenInfo)

	// RupTime writes TDay only.
	RupTime(g, j int, dst *Rupture)
	// RupTimeProd writes TDay and KProd only.
	RupTimeProd(g, j int, dst *Rupture)
	// RupTimeXY writes TDay, XKm and YKm only.
	RupTimeXY(g, j int, dst *Rupture)
	// RupFull writes every field.
	RupFull(g, j int, dst *Rupture)
}

// CatalogBuilder adds single-writer mutation to a CatalogView.
// It has no internal locking: a catalog must never be mutated and read concurrently.
//
// Lifecycle: BeginCatalog, then for each generation in order
// BeginGeneration, AddRup zero or more times, EndGeneration; finally EndCatalog.
// SetCatStopTime and SetCatResultCode may be called any time before EndCatalog.
// A builder is reusable: BeginCatalog resets it.
type CatalogBuilder interface {
	CatalogView

	// BeginCatalog resets the catalog and copies in params.
	BeginCatalog(params *CatalogParams)
	// BeginGeneration opens the next generation. info is copied.
	BeginGeneration(info *GenInfo)
	// AddRup appends a copy of rup to the open generation.
	AddRup(rup *Rupture)
	// EndGeneration closes the open generation.
	EndGeneration()
	// EndCatalog seals the catalog. The last generation must already be ended.
	EndCatalog()
	// SetCatStopTime sets the stop time (defaults to TEnd).
	SetCatStopTime(t float64)
	// SetCatResultCode sets the result code (defaults to ResultSuccess).
	SetCatResultCode(rc ResultCode)
}

// Layout selects the backing storage strategy of a catalog.
type Layout int

const (
	// LayoutCompact stores ruptures column-wise in slices shared by all generations.
	LayoutCompact Layout = iota
	// LayoutRecords stores one []Rupture per generation.
	LayoutRecords
)

func (l Layout) String() string {
	switch l {
	case LayoutCompact:
		return "compact"
	case LayoutRecords:
		return "records"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout maps a layout name to a Layout.
func ParseLayout(name string) (Layout, error) {
	switch name {
	case "", "compact":
		return LayoutCompact, nil
	case "records":
		return LayoutRecords, nil
	default:
		return 0, ConfigErrorf("unknown catalog layout %q; valid: compact, records", name)
	}
}

// NewCatalog creates an empty catalog builder with the given layout.
func NewCatalog(layout Layout) CatalogBuilder {
	switch layout {
	case LayoutCompact:
		return newCompactCatalog()
	case LayoutRecords:
		return newRecordsCatalog()
	default:
		panic(fmt.Sprintf("NewCatalog: unknown layout %d", int(layout)))
	}
}

// === catalogState ===

type catalogPhase int

const (
	phaseIdle      catalogPhase = iota // never begun
	phaseBuilding                      // between generations
	phaseGenOpen                       // inside BeginGeneration/EndGeneration
	phaseSealed                        // after EndCatalog
)

// catalogState holds the lifecycle and summary data shared by both layouts.
type catalogState struct {
	phase      catalogPhase
	params     CatalogParams
	stopTime   float64
	resultCode ResultCode

	genInfos   []GenInfo
	genValid   []int // per-generation valid sizes, filled by seal
	validTotal int
}

func (s *catalogState) begin(params *CatalogParams) {
	s.phase = phaseBuilding
	s.params.CopyFrom(params)
	s.stopTime = params.TEnd
	s.resultCode = ResultSuccess
	s.genInfos = s.genInfos[:0]
	s.genValid = s.genValid[:0]
	s.validTotal = 0
}

func (s *catalogState) beginGeneration(info *GenInfo) {
	if s.phase != phaseBuilding {
		panic(fmt.Sprintf("Catalog: BeginGeneration called in phase %d, want an open catalog between generations", s.phase))
	}
	s.phase = phaseGenOpen
	s.genInfos = append(s.genInfos, *info)
}

func (s *catalogState) requireGenOpen(op string) {
	if s.phase != phaseGenOpen {
		panic(fmt.Sprintf("Catalog: %s called with no open generation", op))
	}
}

func (s *catalogState) endGeneration() {
	s.requireGenOpen("EndGeneration")
	s.phase = phaseBuilding
}

func (s *catalogState) requireUnsealed(op string) {
	if s.phase != phaseBuilding && s.phase != phaseGenOpen {
		panic(fmt.Sprintf("Catalog: %s called on a catalog that is not being built", op))
	}
}

func (s *catalogState) requireSealed(op string) {
	if s.phase != phaseSealed {
		panic(fmt.Sprintf("Catalog: %s called before EndCatalog", op))
	}
}

func (s *catalogState) checkGen(g int) {
	if g < 0 || g >= len(s.genInfos) {
		panic(fmt.Sprintf("Catalog: generation index %d out of range [0, %d)", g, len(s.genInfos)))
	}
}

// checkParent enforces that generation g's ruptures point into generation g-1.
func (s *catalogState) checkParent(g, parent, prevSize int) {
	if IsRupParentSentinel(parent) {
		return
	}
	if g == 0 {
		panic(fmt.Sprintf("Catalog: seed generation rupture has parent %d, want a reserved sentinel", parent))
	}
	if parent < 0 || parent >= prevSize {
		panic(fmt.Sprintf("Catalog: rupture parent %d out of range [0, %d) of generation %d", parent, prevSize, g-1))
	}
}

func (s *catalogState) Params(dst *CatalogParams) { dst.CopyFrom(&s.params) }
func (s *catalogState) StopTime() float64         { return s.stopTime }
func (s *catalogState) ResultCode() ResultCode    { return s.resultCode }
func (s *catalogState) IsSealed() bool            { return s.phase == phaseSealed }

func (s *catalogState) GenCount() int {
	if s.phase == phaseGenOpen {
		return len(s.genInfos) - 1
	}
	return len(s.genInfos)
}

func (s *catalogState) GenInfo(g int, dst *GenInfo) {
	s.checkGen(g)
	*dst = s.genInfos[g]
}

func (s *catalogState) SetCatStopTime(t float64) {
	s.requireUnsealed("SetCatStopTime")
	s.stopTime = t
}

func (s *catalogState) SetCatResultCode(rc ResultCode) {
	s.requireUnsealed("SetCatResultCode")
	s.resultCode = rc
}

func (s *catalogState) ValidSize() int {
	s.requireSealed("ValidSize")
	return s.validTotal
}

func (s *catalogState) GenValidSize(g int) int {
	s.requireSealed("GenValidSize")
	s.checkGen(g)
	return s.genValid[g]
}

// seal switches to the sealed phase after the layout has supplied the
// per-generation valid counts.
func (s *catalogState) seal(validCount func(g int) int) {
	if s.phase == phaseGenOpen {
		panic("Catalog: EndCatalog called while a generation is open")
	}
	if s.phase != phaseBuilding {
		panic("Catalog: EndCatalog called on a catalog that is not being built")
	}
	s.validTotal = 0
	for g := range s.genInfos {
		n := validCount(g)
		s.genValid = append(s.genValid, n)
		s.validTotal += n
	}
	s.phase = phaseSealed
}
