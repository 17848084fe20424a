package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationmeteo-server/internal/cache"
	"stationmeteo-server/internal/modules/weather/synthetic"
	"stationmeteo-server/internal/modules/weather/types"
)

var day = time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

func dayFilter() types.Filter {
	return types.Filter{StartDate: day, EndDate: day.Add(24*time.Hour - time.Nanosecond), Granularity: types.Hourly}
}

// seededStore holds one reading every 20 minutes for the whole day: 24 hourly buckets.
func seededStore() *synthetic.Store {
	return synthetic.NewStore(synthetic.New(1).Series(day, 20*time.Minute, 72)...)
}

func TestRetrieve_firstPage(t *testing.T) {
	svc := NewService(seededStore(), nil)

	page, err := svc.Retrieve(context.Background(), dayFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 24, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 0, page.PageIndex)
	assert.Equal(t, 10, page.PageSize)
	require.Len(t, page.Items, 10)
	assert.Equal(t, day, page.Items[0].BucketStart)
	assert.Equal(t, 3, page.Items[0].Count)
}

func TestRetrieve_lastPartialPage(t *testing.T) {
	svc := NewService(seededStore(), nil)

	page, err := svc.Retrieve(context.Background(), dayFilter(), 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 4)
	assert.Equal(t, day.Add(20*time.Hour), page.Items[0].BucketStart)
}

func TestRetrieve_pastLastPageIsEmptyNotError(t *testing.T) {
	svc := NewService(seededStore(), nil)

	for _, idx := range []int{3, 4, 100} {
		page, err := svc.Retrieve(context.Background(), dayFilter(), idx, 10)
		require.NoError(t, err)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
		assert.Equal(t, idx, page.PageIndex)
		assert.Equal(t, 24, page.TotalItems)
		assert.Equal(t, 3, page.TotalPages)
	}
}

func TestRetrieve_totalPagesIndependentOfIndex(t *testing.T) {
	svc := NewService(seededStore(), nil)
	ctx := context.Background()

	for _, size := range []int{1, 5, 7, 24, 25, 1000} {
		first, err := svc.Retrieve(ctx, dayFilter(), 0, size)
		require.NoError(t, err)
		want := (first.TotalItems + size - 1) / size
		for idx := 0; idx <= want+1; idx++ {
			p, err := svc.Retrieve(ctx, dayFilter(), idx, size)
			require.NoError(t, err)
			assert.Equal(t, want, p.TotalPages, "size=%d idx=%d", size, idx)
		}
	}
}

func TestRetrieve_idempotent(t *testing.T) {
	svc := NewService(seededStore(), nil)
	ctx := context.Background()

	a, err := svc.Retrieve(ctx, dayFilter(), 1, 7)
	require.NoError(t, err)
	b, err := svc.Retrieve(ctx, dayFilter(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRetrieve_emptyStore(t *testing.T) {
	svc := NewService(synthetic.NewStore(), nil)

	page, err := svc.Retrieve(context.Background(), dayFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalItems)
	assert.Equal(t, 0, page.TotalPages)
	assert.Empty(t, page.Items)
}

func TestRetrieve_validationBeforeStoreAccess(t *testing.T) {
	tests := []struct {
		name     string
		filter   types.Filter
		index    int
		size     int
		checkErr func(t *testing.T, err error)
	}{
		{
			name:   "start after end",
			filter: types.Filter{StartDate: day.Add(time.Hour), EndDate: day, Granularity: types.Hourly},
			index:  0, size: 10,
			checkErr: func(t *testing.T, err error) {
				var e *types.InvalidRangeError
				assert.ErrorAs(t, err, &e)
			},
		},
		{
			name:   "bad granularity",
			filter: types.Filter{StartDate: day, EndDate: day, Granularity: "monthly"},
			index:  0, size: 10,
			checkErr: func(t *testing.T, err error) {
				var e *types.UnsupportedGranularityError
				assert.ErrorAs(t, err, &e)
			},
		},
		{
			name:   "zero page size",
			filter: dayFilter(),
			index:  0, size: 0,
			checkErr: func(t *testing.T, err error) {
				var e *types.InvalidPageSizeError
				assert.ErrorAs(t, err, &e)
			},
		},
		{
			name:   "negative page index",
			filter: dayFilter(),
			index:  -1, size: 10,
			checkErr: func(t *testing.T, err error) {
				var e *types.InvalidPageIndexError
				assert.ErrorAs(t, err, &e)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			svc := NewService(store, nil)

			_, err := svc.Retrieve(context.Background(), tt.filter, tt.index, tt.size)
			require.Error(t, err)
			tt.checkErr(t, err)
			assert.True(t, types.IsValidation(err))
			assert.Equal(t, 0, store.Calls(), "store was read before validation")
		})
	}
}

func TestRetrieve_storeErrorWrapped(t *testing.T) {
	store := seededStore()
	boom := errors.New("disk on fire")
	store.SetErr(boom)
	svc := NewService(store, nil)

	_, err := svc.Retrieve(context.Background(), dayFilter(), 0, 10)
	var se *types.ReadingStoreError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, boom)
	assert.False(t, types.IsValidation(err))
}

func TestRetrieve_canceledContext(t *testing.T) {
	svc := NewService(seededStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Retrieve(ctx, dayFilter(), 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetrieve_concurrentCallers(t *testing.T) {
	svc := NewService(seededStore(), nil)
	want, err := svc.Retrieve(context.Background(), dayFilter(), 1, 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Retrieve(context.Background(), dayFilter(), 1, 5)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestSeries_unpaginated(t *testing.T) {
	svc := NewService(seededStore(), nil)

	series, err := svc.Series(context.Background(), dayFilter())
	require.NoError(t, err)
	assert.Len(t, series, 24)

	_, err = svc.Series(context.Background(), types.Filter{StartDate: day.Add(time.Hour), EndDate: day, Granularity: types.Daily})
	var e *types.InvalidRangeError
	assert.ErrorAs(t, err, &e)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Ping(context.Context) error { return nil }
func (m *memCache) Close() error               { return nil }

func TestRetrieve_cacheServesRepeatReads(t *testing.T) {
	store := seededStore()
	c := newMemCache()
	svc := NewService(store, nil, WithCache(c, time.Minute))
	ctx := context.Background()

	first, err := svc.Retrieve(ctx, dayFilter(), 0, 24)
	require.NoError(t, err)
	require.Equal(t, 1, store.Calls())
	assert.Equal(t, time.Minute, c.ttls[cacheKey(dayFilter())])

	second, err := svc.Retrieve(ctx, dayFilter(), 0, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls(), "cached series should not hit the store")
	assert.Equal(t, first, second)
}

func TestRetrieve_cacheErrorFallsBackToStore(t *testing.T) {
	store := seededStore()
	c := newMemCache()
	c.getErr = errors.New("connection refused")
	svc := NewService(store, nil, WithCache(c, time.Minute))

	page, err := svc.Retrieve(context.Background(), dayFilter(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 24, page.TotalItems)
	assert.Equal(t, 1, store.Calls())
}

func TestPaginate(t *testing.T) {
	series := make([]types.AggregatedPoint, 5)
	for i := range series {
		series[i].BucketStart = day.Add(time.Duration(i) * time.Hour)
		series[i].Count = 1
	}

	p := Paginate(series, 1, 2)
	assert.Equal(t, 3, p.TotalPages)
	require.Len(t, p.Items, 2)
	assert.Equal(t, day.Add(2*time.Hour), p.Items[0].BucketStart)

	p = Paginate(series, 2, 2)
	require.Len(t, p.Items, 1)

	p = Paginate(series, 0, 5)
	assert.Equal(t, 1, p.TotalPages)
	assert.Len(t, p.Items, 5)

	// the page must not alias the caller's slice
	p.Items[0].Count = 99
	assert.Equal(t, 1, series[0].Count)
}

func TestPaginate_hugePageSize(t *testing.T) {
	series := make([]types.AggregatedPoint, 3)

	p := Paginate(series, 0, math.MaxInt)
	assert.Equal(t, 3, p.TotalItems)
	assert.Equal(t, 1, p.TotalPages)
	assert.Len(t, p.Items, 3)

	p = Paginate(series, 1, math.MaxInt)
	assert.Equal(t, 1, p.TotalPages)
	assert.Empty(t, p.Items)

	p = Paginate(nil, 0, math.MaxInt)
	assert.Equal(t, 0, p.TotalPages)
	assert.Empty(t, p.Items)
}
