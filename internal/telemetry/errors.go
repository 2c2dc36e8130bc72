package telemetry

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownService     = errors.New("unknown service")
	ErrUnexpectedStatus   = errors.New("unexpected status code")
	ErrMalformedBody      = errors.New("malformed response body")
	ErrMissingField       = errors.New("missing field")
	ErrInvalidField       = errors.New("invalid field")
	ErrInvalidValveChange = errors.New("invalid valve command")
)

// NetworkError reports an unreachable endpoint, a non-2xx status or a body
// that could not be decoded at all.
type NetworkError struct {
	Endpoint   string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s): status %d: %v", e.Endpoint, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Endpoint, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError describes a single record that was dropped while normalizing a payload.
type ParseError struct {
	Section string // temperature, pressure, valves.<key>, data
	Field   string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Section, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
