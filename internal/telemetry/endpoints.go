package telemetry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Logical service names known to the dashboard.
const (
	ServiceAPI            = "api-server"
	ServiceTimeSeries     = "time-series-db"
	ServiceAnalytics      = "analytics"
	ServiceAccountManager = "account-manager"
	ServiceControlCenter  = "control-center"
)

// DefaultEndpoints mirrors the local development layout of the upstream services.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		ServiceAPI:            "http://localhost:8088",
		ServiceTimeSeries:     "http://localhost:8081",
		ServiceAnalytics:      "http://localhost:8082",
		ServiceAccountManager: "http://localhost:8083",
		ServiceControlCenter:  "http://localhost:8084",
	}
}

// EndpointRegistry maps a logical service name to its base URL.
// It is read-only once constructed.
type EndpointRegistry struct {
	urls map[string]string
}

// NewEndpointRegistry validates every base URL and strips trailing slashes.
func NewEndpointRegistry(urls map[string]string) (*EndpointRegistry, error) {
	out := make(map[string]string, len(urls))
	for name, raw := range urls {
		name = strings.TrimSpace(name)
		raw = strings.TrimSpace(raw)
		if name == "" {
			return nil, fmt.Errorf("endpoint with empty service name")
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint %q: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", name, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("endpoint %q: missing host", name)
		}
		out[name] = strings.TrimRight(raw, "/")
	}
	return &EndpointRegistry{urls: out}, nil
}

// URL returns the base URL registered for service.
func (r *EndpointRegistry) URL(service string) (string, error) {
	u, ok := r.urls[service]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	return u, nil
}

// Services lists the registered service names in sorted order.
func (r *EndpointRegistry) Services() []string {
	names := make([]string, 0, len(r.urls))
	for name := range r.urls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
