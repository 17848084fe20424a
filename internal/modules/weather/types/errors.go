package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoReadings is returned by store lookups when nothing has been stored yet.
var ErrNoReadings = errors.New("no readings")

type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: startDate %s is after endDate %s",
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

type InvalidPageSizeError struct {
	Size int
	Raw  string
}

func (e *InvalidPageSizeError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("invalid page size %q: must be a positive integer", e.Raw)
	}
	return fmt.Sprintf("invalid page size %d: must be > 0", e.Size)
}

type InvalidPageIndexError struct {
	Index int
	Raw   string
}

func (e *InvalidPageIndexError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("invalid page index %q: must be a non-negative integer", e.Raw)
	}
	return fmt.Sprintf("invalid page index %d: must be >= 0", e.Index)
}

type UnsupportedGranularityError struct {
	Value string
}

func (e *UnsupportedGranularityError) Error() string {
	return fmt.Sprintf("unsupported granularity %q (allowed: hourly, daily, weekly)", e.Value)
}

type UnsupportedFormatError struct {
	Value string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported export format %q (allowed: csv, pdf)", e.Value)
}

// ReadingStoreError wraps a failed read against the reading store.
type ReadingStoreError struct {
	Op  string
	Err error
}

func (e *ReadingStoreError) Error() string {
	return fmt.Sprintf("reading store %s: %v", e.Op, e.Err)
}

func (e *ReadingStoreError) Unwrap() error { return e.Err }

// ExportFailedError wraps a serialization or artifact storage failure.
type ExportFailedError struct {
	Format Format
	Err    error
}

func (e *ExportFailedError) Error() string {
	return fmt.Sprintf("export %s failed: %v", e.Format, e.Err)
}

func (e *ExportFailedError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a caller-input error that must not be retried.
func IsValidation(err error) bool {
	var (
		rangeErr  *InvalidRangeError
		sizeErr   *InvalidPageSizeError
		indexErr  *InvalidPageIndexError
		granErr   *UnsupportedGranularityError
		formatErr *UnsupportedFormatError
	)
	return errors.As(err, &rangeErr) ||
		errors.As(err, &sizeErr) ||
		errors.As(err, &indexErr) ||
		errors.As(err, &granErr) ||
		errors.As(err, &formatErr)
}
