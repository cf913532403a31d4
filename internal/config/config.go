// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers file and environment on top.
// - All loading functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/okian/careconnect/internal/domain/types"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: auto, console, json, text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the collaborator API root the report fetcher talks to.
	APIBaseURL string `koanf:"api_base_url"`

	// RequestTimeoutMS bounds every report request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// MaxResponseBytes caps a report response body.
	MaxResponseBytes int64 `koanf:"max_response_bytes"`

	// DeliveryQueueSize bounds the queue between fetches and the view model.
	DeliveryQueueSize int `koanf:"delivery_queue_size"`

	// DashboardTitle is the heading of the dashboard page.
	DashboardTitle string `koanf:"dashboard_title"`

	// Section toggles; disabled sections are neither fetched nor rendered.
	ShowAppointments  bool `koanf:"show_appointments"`
	ShowNoShowRates   bool `koanf:"show_no_show_rates"`
	ShowClinicReports bool `koanf:"show_clinic_reports"`

	// MetricsEnabled turns metric recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsLabels are constant labels added to every metric (YAML map).
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "auto",
		Addr:              ":9080",
		APIBaseURL:        "http://127.0.0.1:5000",
		RequestTimeoutMS:  10_000,
		MaxResponseBytes:  4 << 20,
		DeliveryQueueSize: 64,
		DashboardTitle:    "CareConnect Dashboard",
		ShowAppointments:  true,
		ShowNoShowRates:   true,
		ShowClinicReports: true,
		MetricsEnabled:    true,
		MetricsNamespace:  "careconnect",
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Sections returns the enabled dashboard sections in render order.
func (c *Config) Sections() []types.Section {
	var out []types.Section
	if c.ShowAppointments {
		out = append(out, types.SectionAppointments)
	}
	if c.ShowNoShowRates {
		out = append(out, types.SectionNoShowRates)
	}
	if c.ShowClinicReports {
		out = append(out, types.SectionClinicReports)
	}
	return out
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if err := ValidateBaseURL(c.APIBaseURL); err != nil {
		return err
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive, got %d", ErrInvalidConfig, c.RequestTimeoutMS)
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("%w: max_response_bytes must be positive, got %d", ErrInvalidConfig, c.MaxResponseBytes)
	}
	if c.DeliveryQueueSize <= 0 {
		return fmt.Errorf("%w: delivery_queue_size must be positive, got %d", ErrInvalidConfig, c.DeliveryQueueSize)
	}
	if len(c.Sections()) == 0 {
		return fmt.Errorf("%w: at least one dashboard section must be enabled", ErrInvalidConfig)
	}
	if !metricNameRE.MatchString(c.MetricsNamespace) {
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name", ErrInvalidConfig, c.MetricsNamespace)
	}
	for name := range c.MetricsLabels {
		if !metricNameRE.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("%w: metrics_labels key %q is not a valid label name", ErrInvalidConfig, name)
		}
	}
	return nil
}

// ValidateBaseURL accepts absolute http(s) URLs without query or fragment.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: api_base_url: %v", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_base_url must be an absolute http(s) URL, got %q", ErrInvalidConfig, raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%w: api_base_url must not carry a query or fragment, got %q", ErrInvalidConfig, raw)
	}
	return nil
}
