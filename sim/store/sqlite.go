package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists forecasts in a SQLite database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveForecast(ctx context.Context, f Forecast) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeForecast(f)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO forecasts (id, name, created_at, catalogs, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			catalogs = excluded.catalogs,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, f.ID, f.Name, f.CreatedAt.UnixNano(), f.Summary.Catalogs, f.SchemaVersion, f.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetForecast(ctx context.Context, id string) (Forecast, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Forecast{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM forecasts WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Forecast{}, false, nil
		}
		return Forecast{}, false, err
	}

	f, err := DecodeForecast(payload)
	if err != nil {
		return Forecast{}, false, fmt.Errorf("decode forecast %s: %w", id, err)
	}
	return f, true, nil
}

func (s *SQLiteStore) ListForecasts(ctx context.Context) ([]ForecastInfo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, name, created_at, catalogs FROM forecasts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ForecastInfo
	for rows.Next() {
		var info ForecastInfo
		var created int64
		if err := rows.Scan(&info.ID, &info.Name, &created, &info.Catalogs); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS forecasts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			catalogs INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS forecasts_created_at ON forecasts (created_at);
	`)
	return err
}
