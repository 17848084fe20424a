package views

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

//go:embed templates
var viewsFS embed.FS

var dashboardTmpl *template.Template

var funcs = template.FuncMap{
	"fixed1": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"fixed2": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"signed": func(v float64) string { return fmt.Sprintf("%+.2f", v) },
	"utc":    func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	"day":    func(t time.Time) string { return t.UTC().Format("2006-01-02") },
}

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// DashboardData is the view model for the landing page. Current and ET0 are
// nil when there is nothing to show yet.
type DashboardData struct {
	Current   *types.LiveReading
	PollError string
	ET0       *types.ET0Summary
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}
