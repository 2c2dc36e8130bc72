package models

import "time"

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// Snapshot is what the dashboard renders in one frame.
type Snapshot struct {
	Connection   ConnectionStatus         `json:"connection"`
	Temperature  *Reading                 `json:"temperature,omitempty"`
	Pressure     *Reading                 `json:"pressure,omitempty"`
	Series       map[Metric][]SeriesPoint `json:"series"`
	Valves       []ValveState             `json:"valves"`
	ValvesOpen   int                      `json:"valves_open"`
	ValvesClosed int                      `json:"valves_closed"`
	Alerts       AlertCounts              `json:"alerts"`
	RecentAlerts []AlertEvent             `json:"recent_alerts"`
	GeneratedAt  time.Time                `json:"generated_at"`
}
