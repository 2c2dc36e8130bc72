package telemetry

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	"github.com/segmentio/encoding/json"
)

const (
	defaultLocation         = "Unknown"
	defaultPressureLocation = "Section B"
	statusSuccess           = "success"
)

// accepted timestamp layouts, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Batch is the normalized result of one poll. Dropped records are reported
// but never fail the poll.
type Batch struct {
	Readings []models.Reading
	Valves   []models.ValveState
	Dropped  []*ParseError
}

func (b *Batch) drop(err error) {
	if pe, ok := err.(*ParseError); ok {
		b.Dropped = append(b.Dropped, pe)
		return
	}
	b.Dropped = append(b.Dropped, &ParseError{Section: "payload", Err: err})
}

// decodeObject unmarshals body into a generic JSON object.
func decodeObject(body []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrMalformedBody
	}
	if payload == nil {
		return nil, ErrMalformedBody
	}
	return payload, nil
}

// ParseAPIData normalizes the api-server /api/data payload:
// optional temperature and pressure objects plus a valves map keyed by id.
func ParseAPIData(body []byte, now time.Time) (Batch, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return Batch{}, err
	}

	var b Batch
	for _, metric := range []models.Metric{models.MetricTemperature, models.MetricPressure} {
		raw, ok := payload[string(metric)]
		if !ok || raw == nil {
			continue
		}
		r, err := ParseReading(metric, raw, now, defaultLocation)
		if err != nil {
			b.drop(err)
			continue
		}
		b.Readings = append(b.Readings, r)
	}

	if raw, ok := payload["valves"]; ok && raw != nil {
		valves, ok := raw.(map[string]any)
		if !ok {
			b.drop(&ParseError{Section: "valves", Err: ErrInvalidField})
			return b, nil
		}
		keys := make([]string, 0, len(valves))
		for k := range valves {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := ParseValve("valves."+k, valves[k], now)
			if err != nil {
				b.drop(err)
				continue
			}
			b.Valves = append(b.Valves, v)
		}
	}
	return b, nil
}

// ParseLatest normalizes the time-series /api/v1/data/latest payload:
// {status, data:{value, time, location}}. A non-success status yields an empty batch.
func ParseLatest(metric models.Metric, body []byte, now time.Time) (Batch, error) {
	payload, err := decodeObject(body)
	if err != nil {
		return Batch{}, err
	}

	var b Batch
	if status, _ := payload["status"].(string); status != statusSuccess {
		b.drop(&ParseError{Section: "status", Err: ErrInvalidField})
		return b, nil
	}
	data, ok := payload["data"].(map[string]any)
	if !ok {
		b.drop(&ParseError{Section: "data", Err: ErrMissingField})
		return b, nil
	}
	// the time-series connector names the timestamp "time"
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = data["time"]
	}
	r, err := ParseReading(metric, data, now, defaultPressureLocation)
	if err != nil {
		b.drop(err)
		return b, nil
	}
	b.Readings = append(b.Readings, r)
	return b, nil
}

// ParseReading builds a Reading from a decoded JSON object. The value is
// mandatory; timestamp falls back to now and location to defaultLoc.
func ParseReading(metric models.Metric, raw any, now time.Time, defaultLoc string) (models.Reading, error) {
	section := string(metric)
	if !metric.Valid() {
		return models.Reading{}, &ParseError{Section: section, Field: "metric", Err: ErrInvalidField}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return models.Reading{}, &ParseError{Section: section, Err: ErrInvalidField}
	}

	rawValue, ok := obj["value"]
	if !ok || rawValue == nil {
		return models.Reading{}, &ParseError{Section: section, Field: "value", Err: ErrMissingField}
	}
	value, ok := rawValue.(float64)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return models.Reading{}, &ParseError{Section: section, Field: "value", Err: ErrInvalidField}
	}

	loc, _ := obj["location"].(string)
	if loc = strings.TrimSpace(loc); loc == "" {
		loc = defaultLoc
	}

	return models.Reading{
		Metric:    metric,
		Value:     value,
		Timestamp: parseTimestamp(obj["timestamp"], now),
		Location:  loc,
	}, nil
}

// ParseValve builds a ValveState; both id and a known status are required.
func ParseValve(section string, raw any, now time.Time) (models.ValveState, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return models.ValveState{}, &ParseError{Section: section, Err: ErrInvalidField}
	}
	id, _ := obj["id"].(string)
	if id = strings.TrimSpace(id); id == "" {
		return models.ValveState{}, &ParseError{Section: section, Field: "id", Err: ErrMissingField}
	}
	rawStatus, _ := obj["status"].(string)
	if rawStatus == "" {
		return models.ValveState{}, &ParseError{Section: section, Field: "status", Err: ErrMissingField}
	}
	status := models.ValveStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
	if !status.Valid() {
		return models.ValveState{}, &ParseError{Section: section, Field: "status", Err: ErrInvalidField}
	}
	return models.ValveState{
		ID:          id,
		Status:      status,
		LastUpdated: parseTimestamp(obj["timestamp"], now),
	}, nil
}

// parseTimestamp accepts ISO8601 strings or unix seconds; anything else is now.
func parseTimestamp(raw any, now time.Time) time.Time {
	switch v := raw.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t.UTC()
			}
		}
	case float64:
		if v > 0 {
			sec, frac := math.Modf(v)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
	}
	return now.UTC()
}
