// Package synthetic produces fake station data. It is used by tests and by the
// simulate command; the service itself never imports it.
package synthetic

import (
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"stationmeteo-server/internal/modules/weather/types"
)

type Generator struct {
	faker *gofakeit.Faker
}

// New returns a deterministic generator for the given seed.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Telemetry returns a plausible payload for the given instant. Solar radiation
// follows a daylight curve so daily aggregates look realistic.
func (g *Generator) Telemetry(at time.Time) types.Telemetry {
	at = at.UTC()
	hour := float64(at.Hour()) + float64(at.Minute())/60

	daylight := math.Max(0, math.Sin((hour-6)/12*math.Pi))
	solar := round2(daylight * g.faker.Float64Range(650, 950))
	temp := round2(12 + 10*daylight + g.faker.Float64Range(-1.5, 1.5))
	hum := round2(math.Min(100, math.Max(0, 80-35*daylight+g.faker.Float64Range(-5, 5))))
	wind := round2(g.faker.Float64Range(0, 25))
	dir := round2(g.faker.Float64Range(0, 359.99))
	rain := 0.0
	if g.faker.Number(1, 10) == 1 {
		rain = round2(g.faker.Float64Range(0.1, 4))
	}

	t := types.Telemetry{
		Timestamp:      at,
		Temperature:    &temp,
		Humidity:       &hum,
		SolarRadiation: &solar,
		WindSpeed:      &wind,
		WindDirection:  &dir,
		Rainfall:       &rain,
	}
	if g.faker.Bool() {
		et0 := round2(0.05 + 0.6*daylight*g.faker.Float64Range(0.8, 1.2))
		t.ET0 = &et0
	}
	return t
}

func (g *Generator) Reading(at time.Time) types.Reading {
	return g.Telemetry(at).Reading()
}

// Series returns n readings starting at start, step apart.
func (g *Generator) Series(start time.Time, step time.Duration, n int) []types.Reading {
	out := make([]types.Reading, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Reading(start.Add(time.Duration(i)*step)))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
