package types

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func validTelemetry() Telemetry {
	return Telemetry{
		Timestamp:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Temperature:    f64(21.5),
		Humidity:       f64(55),
		SolarRadiation: f64(640),
		WindSpeed:      f64(12),
		WindDirection:  f64(270),
		Rainfall:       f64(0),
	}
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{in: "hourly", want: Hourly},
		{in: " Daily ", want: Daily},
		{in: "WEEKLY", want: Weekly},
		{in: "monthly", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGranularity(tt.in)
			if tt.wantErr {
				var ge *UnsupportedGranularityError
				if !errors.As(err, &ge) {
					t.Fatalf("ParseGranularity(%q) err = %v; want UnsupportedGranularityError", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseGranularity(%q) = %q, %v; want %q, nil", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestFilterValidate_rangeCheckedFirst(t *testing.T) {
	f := Filter{
		StartDate:   time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Granularity: "bogus",
	}
	var re *InvalidRangeError
	if err := f.Validate(); !errors.As(err, &re) {
		t.Fatalf("Validate() = %v; want InvalidRangeError", err)
	}
}

func TestFilterValidate_zeroWidthRangeIsValid(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := (Filter{StartDate: at, EndDate: at, Granularity: Hourly}).Validate(); err != nil {
		t.Fatalf("Validate() = %v; want nil", err)
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "range", err: &InvalidRangeError{}, want: true},
		{name: "page size", err: &InvalidPageSizeError{Size: 0}, want: true},
		{name: "page index", err: &InvalidPageIndexError{Index: -1}, want: true},
		{name: "granularity", err: &UnsupportedGranularityError{Value: "x"}, want: true},
		{name: "format", err: &UnsupportedFormatError{Value: "xls"}, want: true},
		{name: "store", err: &ReadingStoreError{Op: "range", Err: errors.New("boom")}, want: false},
		{name: "export", err: &ExportFailedError{Format: FormatCSV, Err: errors.New("boom")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation(%v) = %v; want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTelemetryValidate(t *testing.T) {
	if err := validTelemetry().Validate(); err != nil {
		t.Fatalf("Validate(valid) = %v; want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Telemetry)
		field  string
	}{
		{name: "humidity above 100", mutate: func(tm *Telemetry) { tm.Humidity = f64(100.5) }, field: "Humidity"},
		{name: "negative rainfall", mutate: func(tm *Telemetry) { tm.Rainfall = f64(-1) }, field: "Rainfall"},
		{name: "wind direction 360", mutate: func(tm *Telemetry) { tm.WindDirection = f64(360) }, field: "WindDirection"},
		{name: "missing temperature", mutate: func(tm *Telemetry) { tm.Temperature = nil }, field: "Temperature"},
		{name: "negative et0", mutate: func(tm *Telemetry) { tm.ET0 = f64(-0.1) }, field: "ET0"},
		{name: "missing timestamp", mutate: func(tm *Telemetry) { tm.Timestamp = time.Time{} }, field: "Timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := validTelemetry()
			tt.mutate(&tm)
			err := tm.Validate()
			if err == nil {
				t.Fatal("Validate() = nil; want error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("err = %q; want mention of %s", err.Error(), tt.field)
			}
		})
	}
}

func TestTelemetryReading(t *testing.T) {
	tm := validTelemetry()
	tm.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	tm.ET0 = f64(0.42)

	r := tm.Reading()
	if !r.Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) || r.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v; want 10:00 UTC", r.Timestamp)
	}
	if r.ET0 == nil || *r.ET0 != 0.42 {
		t.Errorf("ET0 = %v; want 0.42", r.ET0)
	}
	*tm.ET0 = 1
	if *r.ET0 != 0.42 {
		t.Error("Reading() aliases the payload's et0 pointer")
	}
}
