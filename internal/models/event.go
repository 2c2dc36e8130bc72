package models

import "time"

// Journal entry types.
const (
	EventAlert      = "ALERT"
	EventResolve    = "RESOLVE"
	EventValve      = "VALVE"
	EventRule       = "RULE"
	EventConnection = "CONNECTION"
	EventLogin      = "LOGIN"
	EventLogout     = "LOGOUT"
)

// Event is a single journal entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
