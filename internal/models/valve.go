package models

import "time"

// ValveStatus is the position of a valve.
type ValveStatus string

const (
	ValveOpen   ValveStatus = "open"
	ValveClosed ValveStatus = "closed"
)

// Valid reports whether s is open or closed.
func (s ValveStatus) Valid() bool {
	return s == ValveOpen || s == ValveClosed
}

// ValveState is the last known state of one valve.
type ValveState struct {
	ID          string      `json:"id"`
	Status      ValveStatus `json:"status"`
	LastUpdated time.Time   `json:"last_updated"`
}
