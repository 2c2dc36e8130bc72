package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"

	"github.com/segmentio/encoding/json"
)

const (
	defaultRequestTimeout = 5 * time.Second
	maxBodyBytes          = 1 << 20 // 1 MB
)

// Endpoint is a pollable upstream resource and the decoder for its payload.
type Endpoint struct {
	Name    string
	Service string
	Path    string
	decode  func(body []byte, now time.Time) (Batch, error)
}

var (
	// APIData is the aggregated sensor/valve feed of the api-server.
	APIData = Endpoint{
		Name:    "api-data",
		Service: ServiceAPI,
		Path:    "/api/data",
		decode:  ParseAPIData,
	}

	// LatestPressure is the newest pressure point stored by the time-series connector.
	LatestPressure = Endpoint{
		Name:    "latest-pressure",
		Service: ServiceTimeSeries,
		Path:    "/api/v1/data/latest?measurement=pressure",
		decode: func(body []byte, now time.Time) (Batch, error) {
			return ParseLatest(models.MetricPressure, body, now)
		},
	}
)

// Client issues requests against the registered endpoints and normalizes the responses.
// It keeps no state besides its configuration.
type Client struct {
	endpoints  *EndpointRegistry
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock sets the time source used for defaulted timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client; timeout <= 0 uses the default request timeout.
func NewClient(endpoints *EndpointRegistry, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	c := &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Poll fetches ep and normalizes its payload. Transport failures, non-2xx
// statuses and undecodable bodies return a *NetworkError.
func (c *Client) Poll(ctx context.Context, ep Endpoint) (Batch, error) {
	base, err := c.endpoints.URL(ep.Service)
	if err != nil {
		return Batch{}, err
	}
	target := base + ep.Path

	body, err := c.do(ctx, ep.Name, http.MethodGet, target, nil)
	if err != nil {
		return Batch{}, err
	}
	if ep.decode == nil {
		return Batch{}, fmt.Errorf("endpoint %q has no decoder", ep.Name)
	}
	b, err := ep.decode(body, c.now())
	if err != nil {
		return Batch{}, &NetworkError{Endpoint: ep.Name, URL: target, Err: err}
	}
	return b, nil
}

type valveCommand struct {
	Status models.ValveStatus `json:"status"`
}

// SetValve asks the api-server to move valve id to status. A 2xx answer is
// the confirmation; the echoed state is used when it parses.
func (c *Client) SetValve(ctx context.Context, id string, status models.ValveStatus) (models.ValveState, error) {
	id = strings.TrimSpace(id)
	if id == "" || !status.Valid() {
		return models.ValveState{}, fmt.Errorf("%w: id=%q status=%q", ErrInvalidValveChange, id, status)
	}
	base, err := c.endpoints.URL(ServiceAPI)
	if err != nil {
		return models.ValveState{}, err
	}
	target := base + "/api/valve/" + url.PathEscape(id)

	payload, err := json.Marshal(valveCommand{Status: status})
	if err != nil {
		return models.ValveState{}, fmt.Errorf("encode valve command: %w", err)
	}

	body, err := c.do(ctx, "valve-control", http.MethodPost, target, payload)
	if err != nil {
		return models.ValveState{}, err
	}

	now := c.now()
	confirmed := models.ValveState{ID: id, Status: status, LastUpdated: now.UTC()}
	var echoed map[string]any
	if err := json.Unmarshal(body, &echoed); err == nil {
		if v, err := ParseValve("valve", echoed, now); err == nil && v.ID == id && v.Status == status {
			confirmed = v
		}
	}
	return confirmed, nil
}

func (c *Client) do(ctx context.Context, name, method, target string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &NetworkError{Endpoint: name, URL: target, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: name, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Endpoint: name, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Endpoint: name, URL: target, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}
	return body, nil
}
