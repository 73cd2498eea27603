package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/etas-sim/etas-sim/sim"
	"github.com/etas-sim/etas-sim/sim/accum"
	"github.com/etas-sim/etas-sim/sim/codec"
	"github.com/etas-sim/etas-sim/sim/etas"
	"github.com/etas-sim/etas-sim/sim/seed"
)

var defaultFractiles = []float64{0.025, 0.5, 0.975}

// ForecastConfig is the forecast file. Records reuse the persisted wire
// names; their "ver" keys may be omitted.
// All top-level sections must be listed to satisfy strict parsing.
type ForecastConfig struct {
	Name           string                  `yaml:"name" toml:"name"`
	Params         codec.CatalogParamsWire `yaml:"params" toml:"params"`
	Limits         codec.CatalogLimitsWire `yaml:"limits" toml:"limits"`
	Seed           codec.SeedParamsWire    `yaml:"seed" toml:"seed"`
	Ruptures       []codec.RuptureWire     `yaml:"ruptures" toml:"ruptures"`
	MainshockIndex *int                    `yaml:"mainshock_index" toml:"mainshock_index"`
	KernelKm       float64                 `yaml:"kernel_km" toml:"kernel_km"`
	Grid           *GridSection            `yaml:"grid" toml:"grid"`
	Readouts       ReadoutSection          `yaml:"readouts" toml:"readouts"`
	Run            RunSection              `yaml:"run" toml:"run"`
}

// GridSection turns the forecast into a parameter-grid ensemble. An absent
// range holds the value from params (a, p, c) or seed (ams).
type GridSection struct {
	A           codec.RangeWire `yaml:"a" toml:"a"`
	P           codec.RangeWire `yaml:"p" toml:"p"`
	C           codec.RangeWire `yaml:"c" toml:"c"`
	Ams         codec.RangeWire `yaml:"ams" toml:"ams"`
	BranchRatio bool            `yaml:"branch_ratio" toml:"branch_ratio"`
	Weights     []float64       `yaml:"weights" toml:"weights"`
}

// ReadoutSection selects the accumulators and the fractiles reported.
type ReadoutSection struct {
	TimeValues []float64 `yaml:"time_values" toml:"time_values"` // bin edges; default [tbegin, tend]
	MagThresh  *float64  `yaml:"mag_thresh" toml:"mag_thresh"`   // default mag_min_sim
	Fractiles  []float64 `yaml:"fractiles" toml:"fractiles"`
	GenCount   int       `yaml:"gen_count" toml:"gen_count"` // 0 disables the generation by magnitude grid
	MagValues  []float64 `yaml:"mag_values" toml:"mag_values"`
	ProbCount  int       `yaml:"prob_count" toml:"prob_count"` // probabilities are of more than this many ruptures
}

// RunSection holds ensemble settings. CLI flags override them.
type RunSection struct {
	Catalogs   int    `yaml:"catalogs" toml:"catalogs"`
	Workers    int    `yaml:"workers" toml:"workers"`
	MaxRetries int    `yaml:"max_retries" toml:"max_retries"`
	Seed       uint64 `yaml:"seed" toml:"seed"`
	Layout     string `yaml:"layout" toml:"layout"`
}

// loadForecastConfig reads path as TOML when it ends in .toml and as YAML
// otherwise. Unknown keys are errors in both formats.
func loadForecastConfig(path string) (*ForecastConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading forecast config: %w", err)
	}
	cfg, err := parseForecastConfig(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseForecastConfig(data []byte, isTOML bool) (*ForecastConfig, error) {
	var cfg ForecastConfig
	if isTOML {
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, sim.ConfigErrorf("unknown keys %v", undecoded)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *ForecastConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = "forecast"
	}
	if len(c.Readouts.TimeValues) == 0 {
		c.Readouts.TimeValues = []float64{c.Params.TBegin, c.Params.TEnd}
	}
	if c.Readouts.MagThresh == nil {
		m := c.Params.MagMinSim
		c.Readouts.MagThresh = &m
	}
	if len(c.Readouts.Fractiles) == 0 {
		c.Readouts.Fractiles = append([]float64(nil), defaultFractiles...)
	}
	if c.Run.Catalogs == 0 {
		c.Run.Catalogs = 1000
	}
	if c.Run.Workers == 0 {
		c.Run.Workers = runtime.NumCPU()
	}
	if c.Run.Layout == "" {
		c.Run.Layout = sim.LayoutCompact.String()
	}
}

// components is a validated forecast configuration turned into the objects
// one ensemble run needs.
type components struct {
	params      sim.CatalogParams
	limits      sim.CatalogLimits
	seedParams  sim.SeedParams
	initializer seed.Initializer
	generator   *etas.Generator
	time        *accum.TimeAccumulator
	genMag      *accum.GenMagAccumulator // nil when disabled
	layout      sim.Layout
	key         sim.SimulationKey
}

// Validate checks the whole configuration by building its components once.
func (c *ForecastConfig) Validate() error {
	_, err := c.components()
	return err
}

func (c *ForecastConfig) components() (*components, error) {
	var comp components
	var err error
	if comp.params, err = c.Params.Decode(); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	if comp.limits, err = c.Limits.Decode(); err != nil {
		return nil, fmt.Errorf("limits: %w", err)
	}
	if comp.seedParams, err = c.Seed.Decode(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	rups, err := (&codec.RuptureListWire{Ruptures: c.Ruptures}).Decode()
	if err != nil {
		return nil, fmt.Errorf("ruptures: %w", err)
	}
	if comp.layout, err = sim.ParseLayout(c.Run.Layout); err != nil {
		return nil, err
	}
	if c.Run.Catalogs < 0 {
		return nil, sim.ConfigErrorf("run: catalogs must be non-negative, got %d", c.Run.Catalogs)
	}
	comp.key = sim.NewSimulationKey(c.Run.Seed)

	fixed := seed.FixedConfig{
		Params:         comp.params,
		Seed:           comp.seedParams,
		Ruptures:       rups,
		MainshockIndex: seed.NoMainshock,
	}
	if c.MainshockIndex != nil {
		fixed.MainshockIndex = *c.MainshockIndex
	}
	if c.Grid == nil {
		comp.initializer, err = seed.NewFixedInitializer(fixed)
	} else {
		comp.initializer, err = c.gridInitializer(fixed, comp.key)
	}
	if err != nil {
		return nil, err
	}

	if comp.generator, err = etas.NewGenerator(comp.limits, c.KernelKm); err != nil {
		return nil, err
	}

	ro := &c.Readouts
	for _, f := range ro.Fractiles {
		if f < 0 || f > 1 {
			return nil, sim.ConfigErrorf("readouts: fractile %v outside [0, 1]", f)
		}
	}
	if ro.ProbCount < 0 {
		return nil, sim.ConfigErrorf("readouts: prob_count must be non-negative, got %d", ro.ProbCount)
	}
	if comp.time, err = accum.NewTimeAccumulator(ro.TimeValues, *ro.MagThresh); err != nil {
		return nil, fmt.Errorf("readouts: %w", err)
	}
	if ro.GenCount > 0 {
		if comp.genMag, err = accum.NewGenMagAccumulator(ro.GenCount, ro.MagValues); err != nil {
			return nil, fmt.Errorf("readouts: %w", err)
		}
	}
	return &comp, nil
}

func (c *ForecastConfig) gridInitializer(base seed.FixedConfig, key sim.SimulationKey) (*seed.GridInitializer, error) {
	g := c.Grid
	ranges := make([]sim.DiscreteRange, 4)
	for i, r := range []struct {
		name     string
		wire     *codec.RangeWire
		fallback float64
	}{
		{"a", &g.A, base.Params.A},
		{"p", &g.P, base.Params.P},
		{"c", &g.C, base.Params.C},
		{"ams", &g.Ams, base.Seed.Ams},
	} {
		rng, err := r.wire.Decode()
		if err != nil {
			return nil, fmt.Errorf("grid %s: %w", r.name, err)
		}
		if rng == nil {
			if r.name == "a" && g.BranchRatio {
				return nil, sim.ConfigErrorf("grid a: branch_ratio needs an explicit range")
			}
			rng = sim.NewSingleRange(r.fallback)
		}
		ranges[i] = rng
	}
	return seed.NewGridInitializer(seed.GridConfig{
		Base:        base,
		A:           ranges[0],
		P:           ranges[1],
		C:           ranges[2],
		Ams:         ranges[3],
		BranchRatio: g.BranchRatio,
		Weights:     g.Weights,
		Key:         key,
	})
}

// consumers returns the per-worker consumer factory feeding comp's accumulators.
func (comp *components) consumers(worker int) []sim.Consumer {
	out := []sim.Consumer{accum.NewTimeConsumer(comp.time)}
	if comp.genMag != nil {
		out = append(out, accum.NewGenMagConsumer(comp.genMag))
	}
	return out
}
