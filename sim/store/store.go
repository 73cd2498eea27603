// Package store persists forecasts produced by ensemble runs.
package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store defines persistence operations for forecasts.
type Store interface {
	Init(ctx context.Context) error
	SaveForecast(ctx context.Context, f Forecast) error
	GetForecast(ctx context.Context, id string) (Forecast, bool, error)
	// ListForecasts returns every stored forecast, oldest first.
	ListForecasts(ctx context.Context) ([]ForecastInfo, error)
	Close() error
}

// NewStore returns an uninitialized store of the given kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			return nil, errors.New("sqlite store needs a database path")
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
