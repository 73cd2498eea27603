package codec

import (
	"fmt"
	"math"

	"github.com/etas-sim/etas-sim/sim"
)

// Current wire versions.
const (
	CatalogParamsVersion = 1
	CatalogLimitsVersion = 1
	SeedParamsVersion    = 1
	MagRangeVersion      = 1
	RuptureVersion       = 1
	RuptureListVersion   = 1
	RangeVersion         = 1
)

// CatalogParamsWire is the persisted form of sim.CatalogParams.
type CatalogParamsWire struct {
	Ver       int     `yaml:"ver,omitempty" json:"ver" toml:"ver"`
	A         float64 `yaml:"a" json:"a" toml:"a"`
	P         float64 `yaml:"p" json:"p" toml:"p"`
	C         float64 `yaml:"c" json:"c" toml:"c"`
	B         float64 `yaml:"b" json:"b" toml:"b"`
	Alpha     float64 `yaml:"alpha" json:"alpha" toml:"alpha"`
	MRef      float64 `yaml:"mref" json:"mref" toml:"mref"`
	MSup      float64 `yaml:"msup" json:"msup" toml:"msup"`
	TBegin    float64 `yaml:"tbegin" json:"tbegin" toml:"tbegin"`
	TEnd      float64 `yaml:"tend" json:"tend" toml:"tend"`
	MagMinSim float64 `yaml:"mag_min_sim" json:"mag_min_sim" toml:"mag_min_sim"`
	MagMaxSim float64 `yaml:"mag_max_sim" json:"mag_max_sim" toml:"mag_max_sim"`
	MagEps    float64 `yaml:"mag_eps" json:"mag_eps" toml:"mag_eps"`
}

// FromCatalogParams returns the current wire form of p.
func FromCatalogParams(p *sim.CatalogParams) CatalogParamsWire {
	return CatalogParamsWire{
		Ver:       CatalogParamsVersion,
		A:         p.A,
		P:         p.P,
		C:         p.C,
		B:         p.B,
		Alpha:     p.Alpha,
		MRef:      p.MRef,
		MSup:      p.MSup,
		TBegin:    p.TBegin,
		TEnd:      p.TEnd,
		MagMinSim: p.MagMinSim,
		MagMaxSim: p.MagMaxSim,
		MagEps:    p.MagEps,
	}
}

// Decode converts w to validated parameters.
func (w *CatalogParamsWire) Decode() (sim.CatalogParams, error) {
	if err := checkVersion("catalog params", w.Ver, CatalogParamsVersion); err != nil {
		return sim.CatalogParams{}, err
	}
	p := sim.CatalogParams{
		A:         w.A,
		P:         w.P,
		C:         w.C,
		B:         w.B,
		Alpha:     w.Alpha,
		MRef:      w.MRef,
		MSup:      w.MSup,
		TBegin:    w.TBegin,
		TEnd:      w.TEnd,
		MagMinSim: w.MagMinSim,
		MagMaxSim: w.MagMaxSim,
		MagEps:    w.MagEps,
	}
	if err := p.Validate(); err != nil {
		return sim.CatalogParams{}, err
	}
	return p, nil
}

// CatalogLimitsWire is the persisted form of sim.CatalogLimits.
type CatalogLimitsWire struct {
	Ver         int `yaml:"ver,omitempty" json:"ver" toml:"ver"`
	MaxGenCount int `yaml:"max_gen_count" json:"max_gen_count" toml:"max_gen_count"`
	SoftMaxSize int `yaml:"soft_max_size" json:"soft_max_size" toml:"soft_max_size"`
}

// FromCatalogLimits returns the current wire form of l.
func FromCatalogLimits(l *sim.CatalogLimits) CatalogLimitsWire {
	return CatalogLimitsWire{Ver: CatalogLimitsVersion, MaxGenCount: l.MaxGenCount, SoftMaxSize: l.SoftMaxSize}
}

// Decode validates the limits.
func (w *CatalogLimitsWire) Decode() (sim.CatalogLimits, error) {
	if err := checkVersion("catalog limits", w.Ver, CatalogLimitsVersion); err != nil {
		return sim.CatalogLimits{}, err
	}
	l := sim.CatalogLimits{MaxGenCount: w.MaxGenCount, SoftMaxSize: w.SoftMaxSize}
	if err := l.Validate(); err != nil {
		return sim.CatalogLimits{}, err
	}
	return l, nil
}

// SeedParamsWire is the persisted form of sim.SeedParams.
type SeedParamsWire struct {
	Ver        int     `yaml:"ver,omitempty" json:"ver" toml:"ver"`
	Ams        float64 `yaml:"ams" json:"ams" toml:"ams"`
	Mu         float64 `yaml:"mu" json:"mu" toml:"mu"`
	SeedMagMin float64 `yaml:"seed_mag_min" json:"seed_mag_min" toml:"seed_mag_min"`
	SeedMagMax float64 `yaml:"seed_mag_max" json:"seed_mag_max" toml:"seed_mag_max"`
}

// FromSeedParams returns the current wire form of s.
func FromSeedParams(s *sim.SeedParams) SeedParamsWire {
	return SeedParamsWire{Ver: SeedParamsVersion, Ams: s.Ams, Mu: s.Mu, SeedMagMin: s.SeedMagMin, SeedMagMax: s.SeedMagMax}
}

// Decode validates the seed parameters.
func (w *SeedParamsWire) Decode() (sim.SeedParams, error) {
	if err := checkVersion("seed params", w.Ver, SeedParamsVersion); err != nil {
		return sim.SeedParams{}, err
	}
	s := sim.SeedParams{Ams: w.Ams, Mu: w.Mu, SeedMagMin: w.SeedMagMin, SeedMagMax: w.SeedMagMax}
	if err := s.Validate(); err != nil {
		return sim.SeedParams{}, err
	}
	return s, nil
}

// MagRangeWire is the persisted form of sim.MagRange.
type MagRangeWire struct {
	Ver int     `yaml:"ver,omitempty" json:"ver" toml:"ver"`
	Min float64 `yaml:"min" json:"min" toml:"min"`
	Max float64 `yaml:"max" json:"max" toml:"max"`
}

// FromMagRange returns the current wire form of m.
func FromMagRange(m sim.MagRange) MagRangeWire {
	return MagRangeWire{Ver: MagRangeVersion, Min: m.Min, Max: m.Max}
}

// Decode validates the range.
func (w *MagRangeWire) Decode() (sim.MagRange, error) {
	if err := checkVersion("magnitude range", w.Ver, MagRangeVersion); err != nil {
		return sim.MagRange{}, err
	}
	m := sim.MagRange{Min: w.Min, Max: w.Max}
	if err := m.Validate(); err != nil {
		return sim.MagRange{}, err
	}
	return m, nil
}

// RuptureWire is the persisted form of sim.Rupture.
type RuptureWire struct {
	Ver       int     `yaml:"ver,omitempty" json:"ver" toml:"ver"`
	TDay      float64 `yaml:"t_day" json:"t_day" toml:"t_day"`
	RupMag    float64 `yaml:"rup_mag" json:"rup_mag" toml:"rup_mag"`
	KProd     float64 `yaml:"k_prod,omitempty" json:"k_prod" toml:"k_prod"`
	RupParent int     `yaml:"rup_parent,omitempty" json:"rup_parent" toml:"rup_parent"`
	XKm       float64 `yaml:"x_km,omitempty" json:"x_km" toml:"x_km"`
	YKm       float64 `yaml:"y_km,omitempty" json:"y_km" toml:"y_km"`
}

// FromRupture returns the current wire form of r.
func FromRupture(r *sim.Rupture) RuptureWire {
	return RuptureWire{
		Ver:       RuptureVersion,
		TDay:      r.TDay,
		RupMag:    r.RupMag,
		KProd:     r.KProd,
		RupParent: r.RupParent,
		XKm:       r.XKm,
		YKm:       r.YKm,
	}
}

// Decode converts w to a rupture. Every field must be finite, and the parent
// must be an index or one of the reserved sentinels.
func (w *RuptureWire) Decode() (sim.Rupture, error) {
	if err := checkVersion("rupture", w.Ver, RuptureVersion); err != nil {
		return sim.Rupture{}, err
	}
	for _, v := range []float64{w.TDay, w.RupMag, w.KProd, w.XKm, w.YKm} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return sim.Rupture{}, sim.ConfigErrorf("rupture: non-finite field in t=%g m=%g k=%g x=%g y=%g",
				w.TDay, w.RupMag, w.KProd, w.XKm, w.YKm)
		}
	}
	if w.RupParent < 0 && !sim.IsRupParentSentinel(w.RupParent) {
		return sim.Rupture{}, sim.ConfigErrorf("rupture: invalid parent %d", w.RupParent)
	}
	var r sim.Rupture
	r.Set(w.TDay, w.RupMag, w.KProd, w.RupParent, w.XKm, w.YKm)
	return r, nil
}

// RuptureListWire is the persisted form of a rupture list.
type RuptureListWire struct {
	Ver      int           `yaml:"ver,omitempty" json:"ver" toml:"ver"`
	Ruptures []RuptureWire `yaml:"ruptures" json:"ruptures" toml:"ruptures"`
}

// FromRuptures wraps rups in a versioned list.
func FromRuptures(rups []sim.Rupture) RuptureListWire {
	w := RuptureListWire{Ver: RuptureListVersion, Ruptures: make([]RuptureWire, len(rups))}
	for i := range rups {
		w.Ruptures[i] = FromRupture(&rups[i])
	}
	return w
}

// Decode checks the list version and decodes each rupture in order.
func (w *RuptureListWire) Decode() ([]sim.Rupture, error) {
	if err := checkVersion("rupture list", w.Ver, RuptureListVersion); err != nil {
		return nil, err
	}
	rups := make([]sim.Rupture, len(w.Ruptures))
	for i := range w.Ruptures {
		r, err := w.Ruptures[i].Decode()
		if err != nil {
			return nil, fmt.Errorf("rupture %d: %w", i, err)
		}
		rups[i] = r
	}
	return rups, nil
}

// RangeKind tags the variant of a persisted discrete range.
type RangeKind int

const (
	RangeAbsent RangeKind = iota // no range; decodes to nil
	RangeSingle
	RangeLinear
	RangeLog
)

func (k RangeKind) String() string {
	switch k {
	case RangeAbsent:
		return "absent"
	case RangeSingle:
		return "single"
	case RangeLinear:
		return "linear"
	case RangeLog:
		return "log"
	default:
		return fmt.Sprintf("RangeKind(%d)", int(k))
	}
}

// RangeWire is the persisted form of a sim.DiscreteRange, or of its absence.
// Single uses Value; linear and log use N, Min and Max.
type RangeWire struct {
	Ver   int       `yaml:"ver,omitempty" json:"ver" toml:"ver"`
	Kind  RangeKind `yaml:"kind" json:"kind" toml:"kind"`
	Value float64   `yaml:"value,omitempty" json:"value,omitempty" toml:"value"`
	N     int       `yaml:"n,omitempty" json:"n,omitempty" toml:"n"`
	Min   float64   `yaml:"min,omitempty" json:"min,omitempty" toml:"min"`
	Max   float64   `yaml:"max,omitempty" json:"max,omitempty" toml:"max"`
}

// FromRange encodes r. A nil r encodes as RangeAbsent.
func FromRange(r sim.DiscreteRange) (RangeWire, error) {
	w := RangeWire{Ver: RangeVersion}
	switch rr := r.(type) {
	case nil:
		w.Kind = RangeAbsent
	case *sim.SingleRange:
		w.Kind = RangeSingle
		w.Value = rr.Min()
	case *sim.LinearRange:
		w.Kind, w.N, w.Min, w.Max = RangeLinear, rr.Size(), rr.Min(), rr.Max()
	case *sim.LogRange:
		w.Kind, w.N, w.Min, w.Max = RangeLog, rr.Size(), rr.Min(), rr.Max()
	default:
		return RangeWire{}, fmt.Errorf("codec: cannot encode range of type %T", r)
	}
	return w, nil
}

// Decode rebuilds the range. RangeAbsent yields a nil range and no error.
func (w *RangeWire) Decode() (sim.DiscreteRange, error) {
	if err := checkVersion("range", w.Ver, RangeVersion); err != nil {
		return nil, err
	}
	switch w.Kind {
	case RangeAbsent:
		return nil, nil
	case RangeSingle:
		if math.IsNaN(w.Value) || math.IsInf(w.Value, 0) {
			return nil, sim.ConfigErrorf("single range: value must be finite, got %f", w.Value)
		}
		return sim.NewSingleRange(w.Value), nil
	case RangeLinear:
		r, err := sim.NewLinearRange(w.N, w.Min, w.Max)
		if err != nil {
			return nil, err
		}
		return r, nil
	case RangeLog:
		r, err := sim.NewLogRange(w.N, w.Min, w.Max)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, sim.ConfigErrorf("range: unknown kind %d", int(w.Kind))
	}
}

// === Whole-document helpers ===

func decodeAs[T any, W any, PW interface {
	*W
	Decode() (T, error)
}](f Format, data []byte, what string, current int) (T, error) {
	var zero T
	w := PW(new(W))
	if err := decodeVersioned(f, data, what, current, w); err != nil {
		return zero, err
	}
	return w.Decode()
}

// EncodeCatalogParams serializes p in format f.
func EncodeCatalogParams(f Format, p *sim.CatalogParams) ([]byte, error) {
	return Marshal(f, FromCatalogParams(p))
}

// DecodeCatalogParams parses and validates catalog parameters.
func DecodeCatalogParams(f Format, data []byte) (sim.CatalogParams, error) {
	return decodeAs[sim.CatalogParams, CatalogParamsWire](f, data, "catalog params", CatalogParamsVersion)
}

// EncodeCatalogLimits serializes l in format f.
func EncodeCatalogLimits(f Format, l *sim.CatalogLimits) ([]byte, error) {
	return Marshal(f, FromCatalogLimits(l))
}

// DecodeCatalogLimits parses and validates catalog limits.
func DecodeCatalogLimits(f Format, data []byte) (sim.CatalogLimits, error) {
	return decodeAs[sim.CatalogLimits, CatalogLimitsWire](f, data, "catalog limits", CatalogLimitsVersion)
}

// EncodeSeedParams serializes s in format f.
func EncodeSeedParams(f Format, s *sim.SeedParams) ([]byte, error) {
	return Marshal(f, FromSeedParams(s))
}

// DecodeSeedParams parses and validates seed parameters.
func DecodeSeedParams(f Format, data []byte) (sim.SeedParams, error) {
	return decodeAs[sim.SeedParams, SeedParamsWire](f, data, "seed params", SeedParamsVersion)
}

// EncodeMagRange serializes m in format f.
func EncodeMagRange(f Format, m sim.MagRange) ([]byte, error) {
	return Marshal(f, FromMagRange(m))
}

// DecodeMagRange parses and validates a magnitude range.
func DecodeMagRange(f Format, data []byte) (sim.MagRange, error) {
	return decodeAs[sim.MagRange, MagRangeWire](f, data, "magnitude range", MagRangeVersion)
}

// EncodeRupture serializes a single rupture.
func EncodeRupture(f Format, r *sim.Rupture) ([]byte, error) {
	return Marshal(f, FromRupture(r))
}

func DecodeRupture(f Format, data []byte) (sim.Rupture, error) {
	return decodeAs[sim.Rupture, RuptureWire](f, data, "rupture", RuptureVersion)
}

// EncodeRuptures serializes rups as one versioned list.
func EncodeRuptures(f Format, rups []sim.Rupture) ([]byte, error) {
	return Marshal(f, FromRuptures(rups))
}

// DecodeRuptures parses a rupture list written by EncodeRuptures.
func DecodeRuptures(f Format, data []byte) ([]sim.Rupture, error) {
	return decodeAs[[]sim.Rupture, RuptureListWire](f, data, "rupture list", RuptureListVersion)
}

// EncodeRange serializes r; a nil r is written as absent.
func EncodeRange(f Format, r sim.DiscreteRange) ([]byte, error) {
	w, err := FromRange(r)
	if err != nil {
		return nil, err
	}
	return Marshal(f, w)
}

// DecodeRange returns nil for an absent range.
func DecodeRange(f Format, data []byte) (sim.DiscreteRange, error) {
	return decodeAs[sim.DiscreteRange, RangeWire](f, data, "range", RangeVersion)
}
