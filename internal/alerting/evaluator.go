package alerting

import (
	"fmt"
	"strconv"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
)

// Level is one row of a threshold table. A reading strictly above Above
// raises an alert of Severity.
type Level struct {
	Above    float64
	Severity models.Severity
	Title    string
	Verb     string // "reached" | "at"
}

// Thresholds maps a metric to its levels, highest first.
type Thresholds map[models.Metric][]Level

// DefaultThresholds is the static cutoff table of the dashboard.
func DefaultThresholds() Thresholds {
	return NewThresholds(85, 75, 1300, 1200)
}

// NewThresholds builds the two-level table for temperature and pressure.
func NewThresholds(tempCritical, tempWarning, pressCritical, pressWarning float64) Thresholds {
	return Thresholds{
		models.MetricTemperature: {
			{Above: tempCritical, Severity: models.SeverityCritical, Title: "High Temperature", Verb: "reached"},
			{Above: tempWarning, Severity: models.SeverityWarning, Title: "Elevated Temperature", Verb: "at"},
		},
		models.MetricPressure: {
			{Above: pressCritical, Severity: models.SeverityCritical, Title: "High Pressure", Verb: "reached"},
			{Above: pressWarning, Severity: models.SeverityWarning, Title: "Elevated Pressure", Verb: "at"},
		},
	}
}

// Validate checks that every table is strictly descending so that at most
// one level can match first.
func (t Thresholds) Validate() error {
	for metric, levels := range t {
		for i := 1; i < len(levels); i++ {
			if levels[i].Above >= levels[i-1].Above {
				return fmt.Errorf("thresholds for %s must be strictly descending: %v >= %v",
					metric, levels[i].Above, levels[i-1].Above)
			}
		}
	}
	return nil
}

// Evaluator maps readings to at most one alert using a static table.
type Evaluator struct {
	thresholds Thresholds
}

func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

// Evaluate returns the alert for the highest level crossed, or nil.
// The result carries no ID; CreatedAt is the reading timestamp, so the
// same reading always yields the same alert.
func (e *Evaluator) Evaluate(r models.Reading) *models.AlertEvent {
	for _, lvl := range e.thresholds[r.Metric] {
		if r.Value > lvl.Above {
			return &models.AlertEvent{
				Severity:  lvl.Severity,
				Title:     lvl.Title,
				Message:   fmt.Sprintf("%s %s %s%s", metricLabel(r.Metric), lvl.Verb, formatValue(r.Value), r.Metric.Unit()),
				Location:  r.Location,
				Metric:    r.Metric,
				Value:     r.Value,
				CreatedAt: r.Timestamp,
				Status:    models.AlertActive,
			}
		}
	}
	return nil
}

func metricLabel(m models.Metric) string {
	switch m {
	case models.MetricTemperature:
		return "Temperature"
	case models.MetricPressure:
		return "Pressure"
	default:
		return string(m)
	}
}

// formatValue prints 90 as "90" and 90.5 as "90.5".
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
