package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps encoded forecasts in a map. Stored forecasts never alias
// the caller's slices.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	payloads    map[string][]byte
	infos       map[string]ForecastInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.payloads = make(map[string][]byte)
	s.infos = make(map[string]ForecastInfo)
	return nil
}

func (s *MemoryStore) SaveForecast(_ context.Context, f Forecast) error {
	payload, err := EncodeForecast(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.payloads[f.ID] = payload
	s.infos[f.ID] = f.info()
	return nil
}

func (s *MemoryStore) GetForecast(_ context.Context, id string) (Forecast, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Forecast{}, false, ErrNotInitialized
	}
	payload, ok := s.payloads[id]
	if !ok {
		return Forecast{}, false, nil
	}
	f, err := DecodeForecast(payload)
	if err != nil {
		return Forecast{}, false, err
	}
	return f, true, nil
}

func (s *MemoryStore) ListForecasts(_ context.Context) ([]ForecastInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]ForecastInfo, 0, len(s.infos))
	for _, info := range s.infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
