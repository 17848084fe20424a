package types

import "time"

// Telemetry is the ingest payload published by the station over MQTT or POSTed
// to the readings endpoint.
type Telemetry struct {
	Timestamp      time.Time `json:"timestamp" validate:"required"`
	Temperature    *float64  `json:"temperature_c" validate:"required,gte=-90,lte=70"`
	Humidity       *float64  `json:"humidity_pct" validate:"required,gte=0,lte=100"`
	SolarRadiation *float64  `json:"solar_radiation_wm2" validate:"required,gte=0"`
	WindSpeed      *float64  `json:"wind_speed_kmh" validate:"required,gte=0"`
	WindDirection  *float64  `json:"wind_direction_deg" validate:"required,gte=0,lt=360"`
	Rainfall       *float64  `json:"rainfall_mm" validate:"required,gte=0"`
	ET0            *float64  `json:"et0_mm,omitempty" validate:"omitempty,gte=0"`
}

// Reading converts a validated payload. Timestamps are normalized to UTC.
func (t Telemetry) Reading() Reading {
	r := Reading{Timestamp: t.Timestamp.UTC()}
	if t.Temperature != nil {
		r.Temperature = *t.Temperature
	}
	if t.Humidity != nil {
		r.Humidity = *t.Humidity
	}
	if t.SolarRadiation != nil {
		r.SolarRadiation = *t.SolarRadiation
	}
	if t.WindSpeed != nil {
		r.WindSpeed = *t.WindSpeed
	}
	if t.WindDirection != nil {
		r.WindDirection = *t.WindDirection
	}
	if t.Rainfall != nil {
		r.Rainfall = *t.Rainfall
	}
	if t.ET0 != nil {
		v := *t.ET0
		r.ET0 = &v
	}
	return r
}
