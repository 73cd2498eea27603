package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etas-sim/etas-sim/sim"
	"github.com/etas-sim/etas-sim/sim/codec"
	"github.com/etas-sim/etas-sim/sim/internal/testutil"
)

func sampleForecast(name string, created time.Time) Forecast {
	f := NewForecast(name)
	f.CreatedAt = created
	f.Key = 2024
	params, sp := testutil.AftershockParams(), testutil.AftershockSeed()
	f.Params = codec.FromCatalogParams(&params)
	f.Limits = codec.FromCatalogLimits(&sim.CatalogLimits{MaxGenCount: 100, SoftMaxSize: 50000})
	f.Seed = codec.FromSeedParams(&sp)
	f.Summary = RunSummary{
		Catalogs:       100,
		Ruptures:       4321,
		Retries:        1,
		Results:        map[string]int{"success": 98, "gen_limit": 2},
		ElapsedSeconds: 1.25,
	}
	f.Time = &TimeReadout{
		TimeValues: []float64{0, 1, 7, 30},
		MagThresh:  3.0,
		Fractiles:  []float64{0.5, 0.975},
		Completing: []int{100, 100, 99},
		Counts:     [][]int{{3, 5, 8}, {20, 31, 40}},
		HighMag:    [][]float64{{4.1, 4.6, 5.0}, {5.9, 6.2, 1e20}},
		Survival:   []int{3, 2},
		ProbOccur:  []float64{0.97, 0.99, 1},
	}
	f.GenMag = &GenMagReadout{
		MagValues: []float64{3, 4},
		Fractiles: []float64{0.5},
		Counts:    [][][]int{{{7, 1}, {9, 1}}},
		ProbOccur: [][]float64{{0.9, 0.4}, {0.95, 0.5}},
	}
	return f
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Init(context.Background()))
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s := NewSQLiteStore(filepath.Join(t.TempDir(), "forecasts.db"))
		require.NoError(t, s.Init(context.Background()))
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		f := sampleForecast("aftershocks", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

		require.NoError(t, s.SaveForecast(ctx, f))
		got, ok, err := s.GetForecast(ctx, f.ID)

		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, f, got)
	})
}

func TestStore_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, ok, err := s.GetForecast(context.Background(), "no-such-id")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_SaveOverwrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		f := sampleForecast("first", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, s.SaveForecast(ctx, f))

		f.Name = "renamed"
		f.Summary.Catalogs = 200
		require.NoError(t, s.SaveForecast(ctx, f))

		got, ok, err := s.GetForecast(ctx, f.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "renamed", got.Name)

		list, err := s.ListForecasts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 200, list[0].Catalogs)
	})
}

func TestStore_ListOldestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		late := sampleForecast("late", base.Add(48*time.Hour))
		early := sampleForecast("early", base)
		mid := sampleForecast("mid", base.Add(time.Hour+500*time.Millisecond))
		for _, f := range []Forecast{late, early, mid} {
			require.NoError(t, s.SaveForecast(ctx, f))
		}

		list, err := s.ListForecasts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"early", "mid", "late"}, []string{list[0].Name, list[1].Name, list[2].Name})
		assert.Equal(t, early.ID, list[0].ID)
		assert.True(t, list[1].CreatedAt.Equal(mid.CreatedAt))
		assert.Equal(t, 100, list[2].Catalogs)
	})
}

func TestStore_RequiresInit(t *testing.T) {
	ctx := context.Background()
	for _, s := range []Store{NewMemoryStore(), NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))} {
		err := s.SaveForecast(ctx, sampleForecast("x", time.Now().UTC()))
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, _, err = s.GetForecast(ctx, "x")
		assert.ErrorIs(t, err, ErrNotInitialized)
		_, err = s.ListForecasts(ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.NoError(t, s.Close())
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forecasts.db")
	f := sampleForecast("durable", time.Date(2026, 5, 5, 5, 5, 5, 5000, time.UTC))

	s := NewSQLiteStore(path)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.SaveForecast(ctx, f))
	require.NoError(t, s.Close())

	reopened := NewSQLiteStore(path)
	require.NoError(t, reopened.Init(ctx))
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err := reopened.GetForecast(ctx, f.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestEncodeForecast_RequiresID(t *testing.T) {
	f := sampleForecast("x", time.Now().UTC())
	f.ID = ""
	_, err := EncodeForecast(f)
	assert.Error(t, err)
}

func TestDecodeForecast_RejectsVersionMismatch(t *testing.T) {
	f := sampleForecast("x", time.Now().UTC())
	f.SchemaVersion = CurrentSchemaVersion + 1
	data, err := json.Marshal(f)
	require.NoError(t, err)

	_, err = DecodeForecast(data)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeForecast_ValidatesConfiguration(t *testing.T) {
	f := sampleForecast("x", time.Now().UTC())
	f.Limits.MaxGenCount = 0
	data, err := EncodeForecast(f)
	require.NoError(t, err)

	_, err = DecodeForecast(data)
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)

	f = sampleForecast("x", time.Now().UTC())
	f.Params.Ver = codec.CatalogParamsVersion + 1
	data, err = EncodeForecast(f)
	require.NoError(t, err)
	_, err = DecodeForecast(data)
	assert.ErrorIs(t, err, codec.ErrVersion)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore("sqlite", filepath.Join(t.TempDir(), "f.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = NewStore("sqlite", "")
	assert.Error(t, err)
	_, err = NewStore("postgres", "dsn")
	assert.Error(t, err)
}
