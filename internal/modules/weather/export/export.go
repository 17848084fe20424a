// Package export renders the full aggregated series for a filter into a CSV or
// PDF document, stores it, and returns a locator.
package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"stationmeteo-server/internal/metrics"
	"stationmeteo-server/internal/modules/weather/types"
)

var tracer = otel.Tracer("stationmeteo-server/weather/export")

// SeriesSource produces the unpaginated aggregated series for a filter.
type SeriesSource interface {
	Series(ctx context.Context, filter types.Filter) ([]types.AggregatedPoint, error)
}

type Renderer interface {
	Extension() string
	Render(w io.Writer, filter types.Filter, points []types.AggregatedPoint) error
}

// Recorder keeps a history of generated artifacts.
type Recorder interface {
	Record(ctx context.Context, a types.ExportArtifact) error
}

type Generator struct {
	source    SeriesSource
	store     ArtifactStore
	renderers map[types.Format]Renderer
	recorder  Recorder
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

type Option func(*Generator)

func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

func WithRenderer(f types.Format, r Renderer) Option {
	return func(g *Generator) { g.renderers[f] = r }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(source SeriesSource, store ArtifactStore, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		source: source,
		store:  store,
		renderers: map[types.Format]Renderer{
			types.FormatCSV: CSVRenderer{},
			types.FormatPDF: PDFRenderer{},
		},
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With("component", "weather.export"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Export renders the filter's full series in the given format. Filter errors
// from the retrieval path are returned unchanged. Rendering and storage
// failures are wrapped in ExportFailedError and leave no locator behind.
func (g *Generator) Export(ctx context.Context, filter types.Filter, format types.Format) (types.ExportArtifact, error) {
	ctx, span := tracer.Start(ctx, "weather.Export")
	defer span.End()
	span.SetAttributes(
		attribute.String("format", string(format)),
		attribute.String("granularity", string(filter.Granularity)),
	)

	label := string(format)
	if _, ok := g.renderers[format]; !ok {
		label = "unknown"
	}
	artifact, err := g.export(ctx, filter, format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Exports.WithLabelValues(label, "error").Inc()
		return types.ExportArtifact{}, err
	}
	metrics.Exports.WithLabelValues(label, "ok").Inc()
	return artifact, nil
}

func (g *Generator) export(ctx context.Context, filter types.Filter, format types.Format) (types.ExportArtifact, error) {
	if err := filter.Validate(); err != nil {
		return types.ExportArtifact{}, err
	}
	renderer, ok := g.renderers[format]
	if !ok {
		return types.ExportArtifact{}, &types.UnsupportedFormatError{Value: string(format)}
	}

	points, err := g.source.Series(ctx, filter)
	if err != nil {
		return types.ExportArtifact{}, err
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, filter, points); err != nil {
		return types.ExportArtifact{}, &types.ExportFailedError{Format: format, Err: err}
	}

	id := g.newID()
	locator, err := g.store.Put(ctx, id+"."+renderer.Extension(), format.ContentType(), buf.Bytes())
	if err != nil {
		return types.ExportArtifact{}, &types.ExportFailedError{Format: format, Err: err}
	}

	artifact := types.ExportArtifact{
		ID:          id,
		Format:      format,
		Filter:      filter,
		GeneratedAt: g.now().UTC(),
		Locator:     locator,
	}
	if g.recorder != nil {
		if err := g.recorder.Record(ctx, artifact); err != nil {
			g.logger.Warn("record export artifact failed", "id", id, "error", err)
		}
	}

	g.logger.Info("export generated",
		"id", id,
		"format", format,
		"buckets", len(points),
		"bytes", buf.Len(),
	)
	return artifact, nil
}
