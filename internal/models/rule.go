package models

import "time"

// AutomationRule is a user-defined rule kept for display only; it is never evaluated.
type AutomationRule struct {
	ID            string     `json:"id"`
	Metric        Metric     `json:"metric"`
	Operator      string     `json:"operator"` // gt | lt
	Threshold     float64    `json:"threshold"`
	Action        string     `json:"action"` // openValve | closeValve | notify
	Target        string     `json:"target,omitempty"`
	Condition     string     `json:"condition"`   // rendered, e.g. "Temperature > 80"
	ActionText    string     `json:"action_text"` // rendered, e.g. "Open valve VA1"
	Enabled       bool       `json:"enabled"`
	CreatedAt     time.Time  `json:"created_at"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}
