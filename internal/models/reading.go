package models

import "time"

// Metric identifies what a Reading measures.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricPressure    Metric = "pressure"
)

// Valid reports whether m is one of the known metrics.
func (m Metric) Valid() bool {
	return m == MetricTemperature || m == MetricPressure
}

// Unit returns the display unit of the metric.
func (m Metric) Unit() string {
	switch m {
	case MetricTemperature:
		return "°C"
	case MetricPressure:
		return " kPa"
	default:
		return ""
	}
}

// Reading is one normalized sensor measurement.
type Reading struct {
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location"`
}

// SeriesPoint is a single value kept for chart rendering.
type SeriesPoint struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}
