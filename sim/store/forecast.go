package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/etas-sim/etas-sim/sim/codec"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Forecast is the persisted outcome of one ensemble run: the configuration
// it ran under and the readouts taken from its accumulators.
type Forecast struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schema_version"`
	CodecVersion  int       `json:"codec_version"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`

	Key    uint64                  `json:"key"`
	Params codec.CatalogParamsWire `json:"params"`
	Limits codec.CatalogLimitsWire `json:"limits"`
	Seed   codec.SeedParamsWire    `json:"seed"`

	Summary RunSummary     `json:"summary"`
	Time    *TimeReadout   `json:"time,omitempty"`
	GenMag  *GenMagReadout `json:"gen_mag,omitempty"`
}

// RunSummary mirrors the ensemble summary with result codes keyed by name.
type RunSummary struct {
	Catalogs       int            `json:"catalogs"`
	Ruptures       int64          `json:"ruptures"`
	Retries        int            `json:"retries"`
	Results        map[string]int `json:"results"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
}

// TimeReadout holds time-binned readouts. Rows of Counts, HighMag and
// Survival follow Fractiles; columns of Counts, HighMag, Completing and
// ProbOccur follow the bins.
type TimeReadout struct {
	TimeValues []float64   `json:"time_values"`
	MagThresh  float64     `json:"mag_thresh"`
	Fractiles  []float64   `json:"fractiles"`
	Completing []int       `json:"completing"`
	Counts     [][]int     `json:"counts"`
	HighMag    [][]float64 `json:"high_mag"`
	Survival   []int       `json:"survival"`
	ProbOccur  []float64   `json:"prob_occur"`
}

// GenMagReadout holds generation by magnitude readouts, one grid per fractile.
type GenMagReadout struct {
	MagValues []float64   `json:"mag_values"`
	Fractiles []float64   `json:"fractiles"`
	Counts    [][][]int   `json:"counts"`
	ProbOccur [][]float64 `json:"prob_occur"`
}

// ForecastInfo is the listing entry of a stored forecast.
type ForecastInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Catalogs  int
}

// NewForecast returns an empty forecast with a fresh id and current versions.
func NewForecast(name string) Forecast {
	return Forecast{
		ID:            uuid.NewString(),
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
		Name:          name,
		CreatedAt:     time.Now().UTC(),
	}
}

func (f *Forecast) info() ForecastInfo {
	return ForecastInfo{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt, Catalogs: f.Summary.Catalogs}
}

func EncodeForecast(f Forecast) ([]byte, error) {
	if f.ID == "" {
		return nil, errors.New("forecast id is required")
	}
	return json.Marshal(f)
}

// DecodeForecast decodes and checks a payload, including the versioned
// configuration records it embeds.
func DecodeForecast(data []byte) (Forecast, error) {
	var f Forecast
	if err := json.Unmarshal(data, &f); err != nil {
		return Forecast{}, err
	}
	if f.SchemaVersion != CurrentSchemaVersion || f.CodecVersion != CurrentCodecVersion {
		return Forecast{}, ErrVersionMismatch
	}
	if _, err := f.Params.Decode(); err != nil {
		return Forecast{}, fmt.Errorf("forecast %s params: %w", f.ID, err)
	}
	if _, err := f.Limits.Decode(); err != nil {
		return Forecast{}, fmt.Errorf("forecast %s limits: %w", f.ID, err)
	}
	if _, err := f.Seed.Decode(); err != nil {
		return Forecast{}, fmt.Errorf("forecast %s seed: %w", f.ID, err)
	}
	return f, nil
}
