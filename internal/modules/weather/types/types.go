package types

import (
	"strings"
	"time"
)

// Reading is one stored observation. Readings are immutable once stored.
type Reading struct {
	Timestamp      time.Time `json:"timestamp"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	SolarRadiation float64   `json:"solarRadiation"`
	WindSpeed      float64   `json:"windSpeed"`
	WindDirection  float64   `json:"windDirection"`
	Rainfall       float64   `json:"rainfall"`
	ET0            *float64  `json:"et0,omitempty"`
}

// Granularity selects the bucket width used by the aggregator.
type Granularity string

const (
	Hourly Granularity = "hourly"
	Daily  Granularity = "daily"
	Weekly Granularity = "weekly"
)

// ParseGranularity accepts the three recognized values, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if err := g.Validate(); err != nil {
		return "", &UnsupportedGranularityError{Value: s}
	}
	return g, nil
}

func (g Granularity) Validate() error {
	switch g {
	case Hourly, Daily, Weekly:
		return nil
	default:
		return &UnsupportedGranularityError{Value: string(g)}
	}
}

// Width returns the bucket width.
func (g Granularity) Width() time.Duration {
	switch g {
	case Hourly:
		return time.Hour
	case Daily:
		return 24 * time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Filter is the caller-supplied inclusive range and granularity.
type Filter struct {
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	Granularity Granularity `json:"granularity"`
}

// Validate checks the range first, then the granularity.
func (f Filter) Validate() error {
	if f.StartDate.After(f.EndDate) {
		return &InvalidRangeError{Start: f.StartDate, End: f.EndDate}
	}
	return f.Granularity.Validate()
}

// Stat is the reduction of one metric over a bucket.
type Stat struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// AggregatedPoint is one non-empty output bucket.
type AggregatedPoint struct {
	BucketStart    time.Time `json:"bucketStart"`
	Count          int       `json:"count"`
	Temperature    Stat      `json:"temperature"`
	Humidity       Stat      `json:"humidity"`
	SolarRadiation Stat      `json:"solarRadiation"`
	WindSpeed      Stat      `json:"windSpeed"`
	WindDirection  Stat      `json:"windDirection"`
	Rainfall       Stat      `json:"rainfall"`
	// ET0 is nil when no reading in the bucket carried et0.
	ET0 *Stat `json:"et0,omitempty"`
}

type Page struct {
	Items      []AggregatedPoint `json:"items"`
	PageIndex  int               `json:"pageIndex"`
	PageSize   int               `json:"pageSize"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
}

// Source tags which channel delivered a live reading.
type Source string

const (
	SourcePoll Source = "poll"
	SourcePush Source = "push"
)

// LiveReading is the reconciler's current value.
type LiveReading struct {
	Reading    Reading   `json:"reading"`
	Source     Source    `json:"source"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Format is an export serialization.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatPDF:
		return f, nil
	default:
		return "", &UnsupportedFormatError{Value: s}
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ExportArtifact is created on demand and never mutated.
type ExportArtifact struct {
	ID          string    `json:"id"`
	Format      Format    `json:"format"`
	Filter      Filter    `json:"filter"`
	GeneratedAt time.Time `json:"generatedAt"`
	Locator     string    `json:"locator"`
}

// Trend values reported by ET0Summary.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// ET0Summary compares today's mean reference evapotranspiration with yesterday's.
type ET0Summary struct {
	Date                  time.Time `json:"date"`
	DailyAverage          float64   `json:"dailyAverage"`
	Trend                 string    `json:"trend"`
	ComparisonToYesterday float64   `json:"comparisonToYesterday"`
}

// ET0Point is one hourly bucket of observed reference evapotranspiration.
type ET0Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
}
