package synthetic

import (
	"context"
	"sort"
	"sync"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

// Store is an in-memory reading store for tests. It keeps insertion order for
// readings that share a timestamp.
type Store struct {
	mu       sync.Mutex
	readings []types.Reading
	calls    int

	// Err, when set, is returned by every read.
	Err error
}

func NewStore(readings ...types.Reading) *Store {
	s := &Store{}
	s.readings = append(s.readings, readings...)
	return s
}

func (s *Store) ReadRange(ctx context.Context, from, to time.Time) ([]types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]types.Reading, 0)
	for _, r := range s.readings {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) Latest(ctx context.Context) (types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return types.Reading{}, err
	}
	if s.Err != nil {
		return types.Reading{}, s.Err
	}
	if len(s.readings) == 0 {
		return types.Reading{}, types.ErrNoReadings
	}
	latest := s.readings[0]
	for _, r := range s.readings[1:] {
		if !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	return latest, nil
}

func (s *Store) Insert(ctx context.Context, r types.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.readings = append(s.readings, r)
	return nil
}

// Calls returns how many reads have been attempted.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}
