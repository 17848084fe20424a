package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

//go:embed sql/get-readings-range.sql
var getReadingsRangeSQL string

//go:embed sql/get-latest-reading.sql
var getLatestReadingSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

// tsLayout is fixed width so that lexical order of the ts column matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// ReadingRepository is the SQLite-backed reading store. Range scans are ordered
// by timestamp, ties broken by insertion order.
type ReadingRepository interface {
	ReadRange(ctx context.Context, from, to time.Time) ([]types.Reading, error)
	Latest(ctx context.Context) (types.Reading, error)
	Insert(ctx context.Context, r types.Reading) error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ReadingRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) ReadRange(ctx context.Context, from, to time.Time) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsRangeSQL, formatTS(from), formatTS(to))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) Latest(ctx context.Context) (types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingSQL)
	if err != nil {
		return types.Reading{}, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest reading rows", "error", err)
		}
	}()
	out, err := scanReadings(rows)
	if err != nil {
		return types.Reading{}, err
	}
	if len(out) == 0 {
		return types.Reading{}, types.ErrNoReadings
	}
	return out[0], nil
}

func (r *repositoryImpl) Insert(ctx context.Context, rd types.Reading) error {
	var et0 any
	if rd.ET0 != nil {
		et0 = *rd.ET0
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		formatTS(rd.Timestamp),
		rd.Temperature,
		rd.Humidity,
		rd.SolarRadiation,
		rd.WindSpeed,
		rd.WindDirection,
		rd.Rainfall,
		et0,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	out := make([]types.Reading, 0)
	for rows.Next() {
		var (
			rec types.Reading
			ts  string
			et0 sql.NullFloat64
		)
		if err := rows.Scan(&ts, &rec.Temperature, &rec.Humidity, &rec.SolarRadiation,
			&rec.WindSpeed, &rec.WindDirection, &rec.Rainfall, &et0); err != nil {
			return nil, err
		}
		t, err := parseTS(ts)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = t
		if et0.Valid {
			v := et0.Float64
			rec.ET0 = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err == nil {
		return t.UTC(), nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, s)
	if err2 != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, errors.Join(err, err2))
	}
	return t.UTC(), nil
}
