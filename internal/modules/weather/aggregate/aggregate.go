// Package aggregate buckets raw readings into fixed-width time buckets and
// reduces each bucket to per-metric statistics.
package aggregate

import (
	"sort"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

// Aggregate groups readings by the filter's granularity and returns one point per
// non-empty bucket, ordered by bucket start. Readings need not be pre-sorted.
//
// Weekly buckets are anchored at midnight UTC of the filter's start date.
func Aggregate(readings []types.Reading, filter types.Filter) ([]types.AggregatedPoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return []types.AggregatedPoint{}, nil
	}

	anchor := dayStart(filter.StartDate)
	buckets := make(map[int64]*bucket)
	for _, r := range readings {
		start := BucketStart(r.Timestamp, filter.Granularity, anchor)
		key := start.Unix()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{start: start}
			buckets[key] = b
		}
		b.add(r)
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]types.AggregatedPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, buckets[k].point())
	}
	return out, nil
}

// BucketStart returns the start of the bucket containing ts. anchor is only
// used for weekly buckets and must be a UTC midnight.
func BucketStart(ts time.Time, g types.Granularity, anchor time.Time) time.Time {
	t := ts.UTC()
	switch g {
	case types.Hourly:
		return t.Truncate(time.Hour)
	case types.Daily:
		return dayStart(t)
	case types.Weekly:
		width := g.Width()
		offset := t.Sub(anchor)
		n := offset / width
		if offset < 0 && offset%width != 0 {
			n--
		}
		return anchor.Add(n * width)
	default:
		return t
	}
}

func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

type metric struct {
	sum      float64
	min, max float64
	n        int
}

func (m *metric) add(v float64) {
	if m.n == 0 || v < m.min {
		m.min = v
	}
	if m.n == 0 || v > m.max {
		m.max = v
	}
	m.sum += v
	m.n++
}

func (m *metric) stat() types.Stat {
	if m.n == 0 {
		return types.Stat{}
	}
	return types.Stat{Mean: m.sum / float64(m.n), Min: m.min, Max: m.max}
}

type bucket struct {
	start time.Time
	count int

	temperature    metric
	humidity       metric
	solarRadiation metric
	windSpeed      metric
	windDirection  metric
	rainfall       metric
	et0            metric
}

func (b *bucket) add(r types.Reading) {
	b.count++
	b.temperature.add(r.Temperature)
	b.humidity.add(r.Humidity)
	b.solarRadiation.add(r.SolarRadiation)
	b.windSpeed.add(r.WindSpeed)
	b.windDirection.add(r.WindDirection)
	b.rainfall.add(r.Rainfall)
	// absent et0 shrinks the denominator instead of counting as zero
	if r.ET0 != nil {
		b.et0.add(*r.ET0)
	}
}

func (b *bucket) point() types.AggregatedPoint {
	p := types.AggregatedPoint{
		BucketStart:    b.start,
		Count:          b.count,
		Temperature:    b.temperature.stat(),
		Humidity:       b.humidity.stat(),
		SolarRadiation: b.solarRadiation.stat(),
		WindSpeed:      b.windSpeed.stat(),
		WindDirection:  b.windDirection.stat(),
		Rainfall:       b.rainfall.stat(),
	}
	if b.et0.n > 0 {
		s := b.et0.stat()
		p.ET0 = &s
	}
	return p
}
