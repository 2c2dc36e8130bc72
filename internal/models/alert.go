package models

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

// AlertEvent is a threshold crossing (or synthetic notice) shown on the dashboard.
// Status only moves from active to resolved.
type AlertEvent struct {
	ID         string      `json:"id"`
	Severity   Severity    `json:"severity"`
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	Location   string      `json:"location"`
	Metric     Metric      `json:"metric,omitempty"`
	Value      float64     `json:"value,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Status     AlertStatus `json:"status"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

// AlertCounts aggregates the register for the summary cards.
type AlertCounts struct {
	Critical      int `json:"critical"`
	Warning       int `json:"warning"`
	Info          int `json:"info"`
	Total         int `json:"total"`
	ResolvedToday int `json:"resolved_today"`
}
