package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"stationmeteo-server/internal/modules/weather/types"
)

var pdfColumnWidths = []float64{46, 22, 22, 26, 22, 22, 20}

// PDFRenderer lays the same table as the CSV out on A4 pages.
type PDFRenderer struct{}

func (PDFRenderer) Extension() string { return "pdf" }

func (PDFRenderer) Render(w io.Writer, filter types.Filter, points []types.AggregatedPoint) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Station meteo historical export", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			tableHeader(pdf)
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Historical weather data", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s to %s, %s buckets",
		filter.StartDate.UTC().Format(time.RFC3339),
		filter.EndDate.UTC().Format(time.RFC3339),
		filter.Granularity,
	), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	rows := Rows(points)
	if len(rows) == 0 {
		pdf.CellFormat(0, 8, "No data for the selected range.", "", 1, "L", false, 0, "")
		return output(pdf, w)
	}

	tableHeader(pdf)
	pdf.SetFont("Helvetica", "", 8)
	for _, row := range rows {
		for i, v := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(pdfColumnWidths[i], 6, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return output(pdf, w)
}

func tableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(225, 230, 235)
	for i, c := range Columns {
		pdf.CellFormat(pdfColumnWidths[i], 7, c, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 8)
}

func output(pdf *fpdf.Fpdf, w io.Writer) error {
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
