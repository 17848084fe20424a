package export

import (
	"strconv"
	"time"

	"stationmeteo-server/internal/modules/weather/types"
)

// Columns is the fixed column order shared by every format.
var Columns = []string{"bucketStart", "temperature", "humidity", "solarRadiation", "windSpeed", "rainfall", "et0"}

// Rows projects the aggregated series onto Columns. Both renderers consume this
// projection so their content is identical. Means are rendered with two
// decimals; a bucket without et0 gets an empty cell.
func Rows(points []types.AggregatedPoint) [][]string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		et0 := ""
		if p.ET0 != nil {
			et0 = formatValue(p.ET0.Mean)
		}
		rows = append(rows, []string{
			p.BucketStart.UTC().Format(time.RFC3339),
			formatValue(p.Temperature.Mean),
			formatValue(p.Humidity.Mean),
			formatValue(p.SolarRadiation.Mean),
			formatValue(p.WindSpeed.Mean),
			formatValue(p.Rainfall.Mean),
			et0,
		})
	}
	return rows
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
