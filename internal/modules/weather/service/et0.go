package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

// ErrNoET0Data is returned when today has no et0 values to summarize.
var ErrNoET0Data = errors.New("no et0 data")

// trendThreshold is the percent change below which the trend is reported stable.
const trendThreshold = 1.0

// ET0Summary compares today's mean et0 (UTC day) with yesterday's. The range
// always ends on the last nanosecond of today so repeated calls within a day
// share one cache entry.
func (s *Service) ET0Summary(ctx context.Context) (types.ET0Summary, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	endOfToday := today.Add(24*time.Hour - time.Nanosecond)

	series, err := s.Series(ctx, types.Filter{StartDate: yesterday, EndDate: endOfToday, Granularity: types.Daily})
	if err != nil {
		return types.ET0Summary{}, err
	}
	return summarizeET0(series, today)
}

// MaxET0Hours bounds the window accepted by ET0Series.
const MaxET0Hours = 7 * 24

// ET0Series returns the hourly et0 buckets of the last hours, oldest first.
// Buckets without et0 are skipped. The window ends on the last nanosecond of
// the current hour.
func (s *Service) ET0Series(ctx context.Context, hours int) ([]types.ET0Point, error) {
	if hours <= 0 || hours > MaxET0Hours {
		return nil, fmt.Errorf("invalid hours %d (allowed: 1..%d)", hours, MaxET0Hours)
	}
	end := s.now().UTC().Truncate(time.Hour).Add(time.Hour - time.Nanosecond)
	start := end.Add(time.Nanosecond - time.Duration(hours)*time.Hour)

	series, err := s.Series(ctx, types.Filter{StartDate: start, EndDate: end, Granularity: types.Hourly})
	if err != nil {
		return nil, err
	}
	out := make([]types.ET0Point, 0, len(series))
	for _, p := range series {
		if p.ET0 == nil {
			continue
		}
		out = append(out, types.ET0Point{
			Timestamp: p.BucketStart,
			Value:     round2(p.ET0.Mean),
			Min:       p.ET0.Min,
			Max:       p.ET0.Max,
		})
	}
	return out, nil
}

func summarizeET0(series []types.AggregatedPoint, today time.Time) (types.ET0Summary, error) {
	var todayET0, yesterdayET0 *types.Stat
	for i := range series {
		p := series[i]
		switch {
		case p.BucketStart.Equal(today):
			todayET0 = p.ET0
		case p.BucketStart.Equal(today.AddDate(0, 0, -1)):
			yesterdayET0 = p.ET0
		}
	}
	if todayET0 == nil {
		return types.ET0Summary{}, ErrNoET0Data
	}

	sum := types.ET0Summary{
		Date:         today,
		DailyAverage: round2(todayET0.Mean),
		Trend:        types.TrendStable,
	}
	if yesterdayET0 == nil || yesterdayET0.Mean == 0 {
		return sum, nil
	}

	change := (todayET0.Mean - yesterdayET0.Mean) / yesterdayET0.Mean * 100
	sum.ComparisonToYesterday = round2(change)
	switch {
	case change > trendThreshold:
		sum.Trend = types.TrendIncreasing
	case change < -trendThreshold:
		sum.Trend = types.TrendDecreasing
	}
	return sum, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
