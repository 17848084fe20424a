package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"stationmeteo-server/internal/modules/weather/types"
)

//go:embed sql/insert-export-artifact.sql
var insertExportArtifactSQL string

//go:embed sql/get-export-artifacts.sql
var getExportArtifactsSQL string

// ArtifactRepository keeps a history of generated exports.
type ArtifactRepository interface {
	Record(ctx context.Context, a types.ExportArtifact) error
	Recent(ctx context.Context, limit int) ([]types.ExportArtifact, error)
}

type artifactRepositoryImpl struct {
	db *sql.DB
}

func NewArtifactRepository(db *sql.DB) ArtifactRepository {
	return &artifactRepositoryImpl{db: db}
}

func (r *artifactRepositoryImpl) Record(ctx context.Context, a types.ExportArtifact) error {
	_, err := r.db.ExecContext(ctx, insertExportArtifactSQL,
		a.ID,
		string(a.Format),
		formatTS(a.Filter.StartDate),
		formatTS(a.Filter.EndDate),
		string(a.Filter.Granularity),
		formatTS(a.GeneratedAt),
		a.Locator,
	)
	if err != nil {
		return fmt.Errorf("insert export artifact: %w", err)
	}
	return nil
}

func (r *artifactRepositoryImpl) Recent(ctx context.Context, limit int) ([]types.ExportArtifact, error) {
	rows, err := r.db.QueryContext(ctx, getExportArtifactsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close export artifact rows", "error", err)
		}
	}()

	out := make([]types.ExportArtifact, 0)
	for rows.Next() {
		var (
			a                         types.ExportArtifact
			format, gran              string
			startTS, endTS, generated string
		)
		if err := rows.Scan(&a.ID, &format, &startTS, &endTS, &gran, &generated, &a.Locator); err != nil {
			return nil, err
		}
		a.Format = types.Format(format)
		a.Filter.Granularity = types.Granularity(gran)
		if a.Filter.StartDate, err = parseTS(startTS); err != nil {
			return nil, err
		}
		if a.Filter.EndDate, err = parseTS(endTS); err != nil {
			return nil, err
		}
		if a.GeneratedAt, err = parseTS(generated); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
