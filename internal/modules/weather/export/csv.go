package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"stationmeteo-server/internal/modules/weather/types"
)

// CSVRenderer writes a header line followed by one line per bucket.
type CSVRenderer struct{}

func (CSVRenderer) Extension() string { return "csv" }

func (CSVRenderer) Render(w io.Writer, _ types.Filter, points []types.AggregatedPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(points)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
