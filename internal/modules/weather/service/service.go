// Package service implements historical retrieval: range read, aggregation and
// pagination, plus the unpaginated series used by exports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stationmeteo-server/internal/cache"
	"stationmeteo-server/internal/metrics"
	"stationmeteo-server/internal/modules/weather/aggregate"
	"stationmeteo-server/internal/modules/weather/types"
)

var tracer = otel.Tracer("stationmeteo-server/weather/service")

// ReadingReader is the read side of the reading store.
type ReadingReader interface {
	ReadRange(ctx context.Context, from, to time.Time) ([]types.Reading, error)
}

type Service struct {
	store    ReadingReader
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithCache caches aggregated series for ttl. A nil cache disables caching.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store ReadingReader, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		logger: logger.With("component", "weather.service"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns one page of the aggregated series. All arguments are
// validated before the store is touched. A page index past the last page
// yields empty items with the page metadata still populated.
func (s *Service) Retrieve(ctx context.Context, filter types.Filter, pageIndex, pageSize int) (types.Page, error) {
	ctx, span := tracer.Start(ctx, "weather.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("granularity", string(filter.Granularity)),
		attribute.Int("page.index", pageIndex),
		attribute.Int("page.size", pageSize),
	)

	if err := filter.Validate(); err != nil {
		return types.Page{}, err
	}
	if pageSize <= 0 {
		return types.Page{}, &types.InvalidPageSizeError{Size: pageSize}
	}
	if pageIndex < 0 {
		return types.Page{}, &types.InvalidPageIndexError{Index: pageIndex}
	}

	series, err := s.series(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Page{}, err
	}
	return Paginate(series, pageIndex, pageSize), nil
}

// Series returns the full aggregated series for filter.
func (s *Service) Series(ctx context.Context, filter types.Filter) ([]types.AggregatedPoint, error) {
	ctx, span := tracer.Start(ctx, "weather.Series")
	defer span.End()

	if err := filter.Validate(); err != nil {
		return nil, err
	}
	series, err := s.series(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return series, err
}

// series assumes filter is valid.
func (s *Service) series(ctx context.Context, filter types.Filter) ([]types.AggregatedPoint, error) {
	start := time.Now()
	defer func() {
		metrics.RetrieveDuration.WithLabelValues(string(filter.Granularity)).Observe(time.Since(start).Seconds())
	}()

	key := cacheKey(filter)
	if cached, ok := s.cached(ctx, key); ok {
		return cached, nil
	}

	readings, err := s.store.ReadRange(ctx, filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, &types.ReadingStoreError{Op: "read range", Err: err}
	}
	// no partial aggregation once the caller has gone away
	if err := ctx.Err(); err != nil {
		return nil, &types.ReadingStoreError{Op: "read range", Err: err}
	}

	series, err := aggregate.Aggregate(readings, filter)
	if err != nil {
		return nil, err
	}

	s.storeCached(ctx, key, series)
	return series, nil
}

func (s *Service) cached(ctx context.Context, key string) ([]types.AggregatedPoint, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, err := s.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("aggregate cache get failed", "key", key, "error", err)
		return nil, false
	}

	var series []types.AggregatedPoint
	if err := json.Unmarshal(b, &series); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("aggregate cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return series, true
}

func (s *Service) storeCached(ctx context.Context, key string, series []types.AggregatedPoint) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(series)
	if err != nil {
		s.logger.Warn("aggregate cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, b, s.cacheTTL); err != nil {
		s.logger.Warn("aggregate cache set failed", "key", key, "error", err)
	}
}

func cacheKey(f types.Filter) string {
	return fmt.Sprintf("agg:%s:%d:%d", f.Granularity, f.StartDate.UnixNano(), f.EndDate.UnixNano())
}

// Paginate slices series into the requested page. pageSize must be positive
// and pageIndex non-negative.
func Paginate(series []types.AggregatedPoint, pageIndex, pageSize int) types.Page {
	total := len(series)
	page := types.Page{
		Items:      []types.AggregatedPoint{},
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: total / pageSize,
	}
	if total%pageSize != 0 {
		page.TotalPages++
	}
	if pageIndex >= page.TotalPages {
		return page
	}
	from := pageIndex * pageSize
	to := from + min(pageSize, total-from)
	page.Items = append(page.Items, series[from:to]...)
	return page
}
