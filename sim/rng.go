package sim

import (
	"hash/fnv"
	"math/rand/v2"
)

// RandomGenerator is the source of uniform and derived random deviates.
// It is always injected; nothing in the core constructs one on its own.
// *rand.Rand from math/rand/v2 satisfies it, and because it exposes Uint64 it
// can also serve as a rand.Source for gonum distributions.
type RandomGenerator interface {
	Float64() float64
	IntN(n int) int
	ExpFloat64() float64
	NormFloat64() float64
	Uint64() uint64
}

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible ensemble run.
// Two runs with the same key and identical configuration MUST produce
// bit-for-bit identical catalogs.
type SimulationKey uint64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed uint64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemCatalog is the RNG subsystem for per-catalog streams.
	SubsystemCatalog = "catalog"

	// SubsystemInitializer is the RNG subsystem for initial-state draws.
	SubsystemInitializer = "initializer"

	// SubsystemSterile is the RNG subsystem for sterile rupture synthesis.
	SubsystemSterile = "sterile"
)

// === CatalogStream ===

// CatalogStream is a reusable RNG whose state is a pure function of
// (key, subsystem, catalog index, attempt). Catalog i of an ensemble always
// sees the same deviates no matter which worker builds it.
type CatalogStream struct {
	*rand.Rand
	pcg     *rand.PCG
	key     SimulationKey
	subHash uint64
}

// NewCatalogStream creates a stream for the named subsystem. It must be
// positioned with Reset before use.
func NewCatalogStream(key SimulationKey, subsystem string) *CatalogStream {
	pcg := rand.NewPCG(0, 0)
	return &CatalogStream{
		Rand:    rand.New(pcg),
		pcg:     pcg,
		key:     key,
		subHash: fnv1a64(subsystem),
	}
}

// Reset positions the stream at the start of the sequence for catalog index
// and retry attempt. It does not allocate.
func (s *CatalogStream) Reset(index, attempt int) {
	s.pcg.Seed(uint64(s.key)^s.subHash, StreamSeed(uint64(index), uint64(attempt)))
}

// StreamSeed mixes an index and attempt number into a well-distributed seed
// (splitmix64 finalizer).
func StreamSeed(index, attempt uint64) uint64 {
	z := index*0x9E3779B97F4A7C15 + attempt*0xD1B54A32D192ED03 + 0x632BE59BD9B4E019
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
