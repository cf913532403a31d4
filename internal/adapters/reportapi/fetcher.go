// Package reportapi fetches the three dashboard reports from the
// collaborator API. Each report is requested independently and resolves to
// its own Outcome.
package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/types"
	"github.com/okian/careconnect/pkg/logger"
	"github.com/okian/careconnect/pkg/metrics"
)

// Collaborator endpoint paths, relative to the base URL.
const (
	PathAppointments  = "/appointments/upcoming"
	PathNoShowRates   = "/reports/no_show_rate"
	PathClinicReports = "/reports/appointments_by_clinic"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 4 << 20
	excerptBytes        = 256
)

// Path returns the endpoint path for a section.
func Path(section types.Section) (string, bool) {
	switch section {
	case types.SectionAppointments:
		return PathAppointments, true
	case types.SectionNoShowRates:
		return PathNoShowRates, true
	case types.SectionClinicReports:
		return PathClinicReports, true
	default:
		return "", false
	}
}

// Fetcher requests reports from the collaborator API.
type Fetcher struct {
	baseURL      string
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	logger       logger.Logger
}

// New builds a Fetcher. WithBaseURL is required.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		client:       &http.Client{},
		timeout:      defaultTimeout,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logger.Get()
	}
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidBaseURL, f.baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, f.baseURL)
	}
	return f, nil
}

// BaseURL returns the collaborator API root.
func (f *Fetcher) BaseURL() string { return f.baseURL }

// FetchAppointments requests the upcoming appointments report.
func (f *Fetcher) FetchAppointments(ctx context.Context) ([]model.AppointmentSummary, error) {
	return fetchReport[model.AppointmentSummary](ctx, f, types.SectionAppointments)
}

// FetchNoShowRates requests the per-provider no-show report.
func (f *Fetcher) FetchNoShowRates(ctx context.Context) ([]model.NoShowRate, error) {
	return fetchReport[model.NoShowRate](ctx, f, types.SectionNoShowRates)
}

// FetchClinicReports requests the per-clinic summary report.
func (f *Fetcher) FetchClinicReports(ctx context.Context) ([]model.ClinicReport, error) {
	return fetchReport[model.ClinicReport](ctx, f, types.SectionClinicReports)
}

// Fetch requests one section and always returns an explicit outcome.
func (f *Fetcher) Fetch(ctx context.Context, section types.Section) model.Outcome {
	start := time.Now()
	out := model.Outcome{Section: section}

	switch section {
	case types.SectionAppointments:
		out.Appointments, out.Err = f.FetchAppointments(ctx)
	case types.SectionNoShowRates:
		out.NoShowRates, out.Err = f.FetchNoShowRates(ctx)
	case types.SectionClinicReports:
		out.ClinicReports, out.Err = f.FetchClinicReports(ctx)
	default:
		out.Err = fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	out.Latency = time.Since(start)

	kind := ErrorKind(out.Err)
	metrics.RecordFetch(string(section), kind, float64(out.Latency.Milliseconds()))
	if out.OK() {
		metrics.UpdateFetchRows(string(section), out.Rows())
		f.logger.Debug(ctx, "report fetched",
			logger.String("section", string(section)),
			logger.Int("rows", out.Rows()),
			logger.Duration("latency", out.Latency))
	} else {
		f.logger.Warn(ctx, "report fetch failed",
			logger.String("section", string(section)),
			logger.String("kind", kind),
			logger.Duration("latency", out.Latency),
			logger.Error(out.Err))
	}
	return out
}

// FetchAll requests every section concurrently. deliver is called once per
// section as soon as that section resolves, from the fetching goroutine.
// FetchAll returns after every section has been delivered.
func (f *Fetcher) FetchAll(ctx context.Context, sections []types.Section, deliver func(model.Outcome)) {
	var wg sync.WaitGroup
	for _, section := range sections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deliver(f.safeFetch(ctx, section))
		}()
	}
	wg.Wait()
}

func (f *Fetcher) safeFetch(ctx context.Context, section types.Section) (out model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = model.Outcome{
				Section: section,
				Err:     fmt.Errorf("%w: %s: %v", ErrFetchPanicked, section, r),
			}
			f.logger.Error(ctx, "report fetch panicked",
				logger.String("section", string(section)),
				logger.Any("panic", r))
			metrics.RecordFetch(string(section), KindInternal, 0)
		}
	}()
	return f.Fetch(ctx, section)
}

func fetchReport[T model.Validator](ctx context.Context, f *Fetcher, section types.Section) ([]T, error) {
	path, ok := Path(section)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	endpoint := f.baseURL + path

	body, err := f.get(ctx, section, endpoint)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &DecodeError{
			Section: section, Endpoint: endpoint,
			Reason: "expected a JSON array", Excerpt: excerpt(trimmed),
		}
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &DecodeError{
			Section: section, Endpoint: endpoint,
			Reason: "malformed report rows", Excerpt: excerpt(trimmed), Err: err,
		}
	}
	if err := model.ValidateAll(items); err != nil {
		return nil, err
	}
	return items, nil
}

// get performs the request and returns the body of a 2xx response.
func (f *Fetcher) get(ctx context.Context, section types.Section, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, &NetworkError{Section: section, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Section: section, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		head, _ := io.ReadAll(io.LimitReader(resp.Body, excerptBytes))
		return nil, &DecodeError{
			Section: section, Endpoint: endpoint, Status: resp.StatusCode,
			Reason: "unexpected status", Excerpt: excerpt(head),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, &NetworkError{Section: section, Endpoint: endpoint, Err: err}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, &DecodeError{
			Section: section, Endpoint: endpoint, Status: resp.StatusCode,
			Reason: fmt.Sprintf("response exceeds %d bytes", f.maxBodyBytes),
		}
	}
	return body, nil
}

func excerpt(b []byte) string {
	if len(b) > excerptBytes {
		return string(b[:excerptBytes]) + "..."
	}
	return string(b)
}
