package views

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

func TestLoadTemplates_success(t *testing.T) {
	err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if dashboardTmpl == nil {
		t.Fatal("LoadTemplates() left dashboardTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// Empty FS has no "templates" directory; ParseFS finds no files.
	emptyFS := fstest.MapFS{}
	err := loadTemplatesFromFS(emptyFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS, \"templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/dashboard.html":  {Data: []byte("{{ .")},
		"templates/partials/a.html": {Data: []byte("ok")},
	}
	err := loadTemplatesFromFS(badFS, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(badFS, \"templates\") = nil; want error")
	}
}

func TestRenderDashboard_notLoaded(t *testing.T) {
	prev := dashboardTmpl
	dashboardTmpl = nil
	t.Cleanup(func() { dashboardTmpl = prev })

	var buf bytes.Buffer
	err := RenderDashboard(&buf, &DashboardData{})
	if err == nil {
		t.Fatal("RenderDashboard() = nil; want error when templates not loaded")
	}
	if !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("err = %q; want message containing \"not loaded\"", err.Error())
	}
}

func TestRenderDashboard_emptyData(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, &DashboardData{}); err != nil {
		t.Fatalf("RenderDashboard(empty data) = %v; want nil", err)
	}
	out := buf.String()
	for _, want := range []string{"<!doctype html>", "Station Meteo", "No reading received yet.", "No ET0 data for today."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "Last poll failed") {
		t.Error("output mentions a poll failure with none recorded")
	}
}

func TestRenderDashboard_withData(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	data := &DashboardData{
		Current: &types.LiveReading{
			Reading: types.Reading{
				Timestamp:   time.Date(2024, 8, 1, 14, 30, 0, 0, time.UTC),
				Temperature: 22.5,
				Humidity:    48,
				WindSpeed:   11.25,
			},
			Source: types.SourcePush,
		},
		PollError: "reading store latest: <locked>",
		ET0: &types.ET0Summary{
			Date:                  time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
			DailyAverage:          4.2,
			Trend:                 types.TrendIncreasing,
			ComparisonToYesterday: 5,
		},
	}

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, data); err != nil {
		t.Fatalf("RenderDashboard(data) = %v; want nil", err)
	}
	out := buf.String()
	for _, want := range []string{
		"2024-08-01 14:30 UTC",
		">push<",
		">22.5<",
		">48.0<",
		"4.20",
		"increasing (+5.00% vs yesterday)",
		"Last poll failed",
		"&lt;locked&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
