package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stationmeteo-server/internal/modules/weather/service"
	"stationmeteo-server/internal/modules/weather/types"
)

const (
	defaultPageSize    = 24
	defaultGranularity = types.Hourly
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	defaultET0Hours    = 24
	dateOnlyLayout     = "2006-01-02"
)

// parseDate accepts RFC 3339 or a bare YYYY-MM-DD. A bare date means the
// start of that UTC day, or its last nanosecond when endOfDay is set.
func parseDate(name, s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing '%s'", name)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(dateOnlyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid '%s' %q (expected RFC3339 or YYYY-MM-DD)", name, s)
	}
	if endOfDay {
		return d.Add(24*time.Hour - time.Nanosecond), nil
	}
	return d, nil
}

// parseFilter builds a Filter from raw values. Range and granularity checks
// are left to Filter.Validate so they are reported range first.
func parseFilter(start, end, granularity string) (types.Filter, error) {
	from, err := parseDate("startDate", start, false)
	if err != nil {
		return types.Filter{}, err
	}
	to, err := parseDate("endDate", end, true)
	if err != nil {
		return types.Filter{}, err
	}
	g := defaultGranularity
	if s := strings.ToLower(strings.TrimSpace(granularity)); s != "" {
		g = types.Granularity(s)
	}
	return types.Filter{StartDate: from, EndDate: to, Granularity: g}, nil
}

// parsePaging reads page and pageSize. Non-numeric values are reported as
// page errors; range checks happen in Retrieve.
func parsePaging(r *http.Request) (pageIndex, pageSize int, err error) {
	q := r.URL.Query()
	pageSize = defaultPageSize
	if s := strings.TrimSpace(q.Get("pageSize")); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, &types.InvalidPageSizeError{Raw: s}
		}
		pageSize = n
	}
	if s := strings.TrimSpace(q.Get("page")); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, 0, &types.InvalidPageIndexError{Raw: s}
		}
		pageIndex = n
	}
	return pageIndex, pageSize, nil
}

func parseRecentLimit(r *http.Request) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get("limit"))
	if s == "" {
		return defaultRecentLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid 'limit' %q (expected integer)", s)
	}
	if n <= 0 || n > maxRecentLimit {
		return 0, fmt.Errorf("'limit' must be between 1 and %d", maxRecentLimit)
	}
	return n, nil
}

func parseET0Hours(r *http.Request) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get("hours"))
	if s == "" {
		return defaultET0Hours, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid 'hours' %q (expected integer)", s)
	}
	if n <= 0 || n > service.MaxET0Hours {
		return 0, fmt.Errorf("'hours' must be between 1 and %d", service.MaxET0Hours)
	}
	return n, nil
}

type exportRequest struct {
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Granularity string `json:"granularity"`
	Format      string `json:"format"`
}

// parse leaves the format unchecked; the generator rejects unknown formats
// after validating the filter.
func (e exportRequest) parse() (types.Filter, types.Format, error) {
	filter, err := parseFilter(e.StartDate, e.EndDate, e.Granularity)
	if err != nil {
		return types.Filter{}, "", err
	}
	return filter, types.Format(strings.ToLower(strings.TrimSpace(e.Format))), nil
}
