package service

import "time"

// LogFilter supports journal filtering by time range and type.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", "ALERT", "RESOLVE", "VALVE", "RULE", "CONNECTION", "LOGIN", "LOGOUT"
	Limit int       // 0 means no limit
}

type RuleParams struct {
	Metric    string  // "temperature" | "pressure"
	Operator  string  // "gt" | "lt"
	Threshold float64
	Action    string // "openValve" | "closeValve" | "notify"
	Target    string // valve id for valve actions
}

type SignInParams struct {
	Username string
	Password string
	Remember bool
}
