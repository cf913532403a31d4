// Package service wires the report fetcher, delivery loop and dashboard view
// model, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/careconnect/internal/adapters/mq/queue"
	"github.com/okian/careconnect/internal/adapters/reportapi"
	"github.com/okian/careconnect/internal/domain/types"
	"github.com/okian/careconnect/internal/domain/viewmodel"
	"github.com/okian/careconnect/pkg/logger"
	"github.com/okian/careconnect/pkg/metrics"
)

// ErrNotStarted is returned by dashboard operations before Start.
var ErrNotStarted = errors.New("service not started")

// Default service configuration.
const (
	defaultTimeout   = 10 * time.Second
	defaultQueueSize = 64
	defaultTitle     = "CareConnect Dashboard"
)

// Service implements the API dependencies for the reporting dashboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	fetcher   *reportapi.Fetcher
	queue     *queue.InMemoryQueue
	viewModel *viewmodel.ViewModel

	// Configuration
	baseURL      string
	timeout      time.Duration
	maxBodyBytes int64
	queueSize    int
	sections     viewmodel.Sections
	title        string
	httpClient   *http.Client

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBaseURL sets the collaborator API root.
func WithBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithRequestTimeout bounds each report request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxResponseBytes caps report response bodies.
func WithMaxResponseBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithQueueSize sets the delivery queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSections sets which reports the dashboard fetches and renders.
func WithSections(list []types.Section) Option {
	return func(s *Service) {
		s.sections = viewmodel.SectionsOf(list)
	}
}

// WithTitle sets the dashboard heading.
func WithTitle(title string) Option {
	return func(s *Service) {
		if title != "" {
			s.title = title
		}
	}
}

// WithHTTPClient replaces the client used for report requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration. WithBaseURL is
// required; Start fails without it.
func New(opts ...Option) *Service {
	s := &Service{
		timeout:   defaultTimeout,
		queueSize: defaultQueueSize,
		sections:  viewmodel.AllSections(),
		title:     defaultTitle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and starts the delivery loop. Cancelling ctx
// stops the loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting dashboard service...")

	fetcherOpts := []reportapi.Option{
		reportapi.WithBaseURL(s.baseURL),
		reportapi.WithTimeout(s.timeout),
		reportapi.WithMaxBodyBytes(s.maxBodyBytes),
		reportapi.WithLogger(s.logger.Named("reportapi")),
	}
	if s.httpClient != nil {
		fetcherOpts = append(fetcherOpts, reportapi.WithHTTPClient(s.httpClient))
	}
	fetcher, err := reportapi.New(fetcherOpts...)
	if err != nil {
		return fmt.Errorf("build report fetcher: %w", err)
	}

	s.fetcher = fetcher
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.viewModel = viewmodel.New(fetcher,
		viewmodel.WithQueue(s.queue),
		viewmodel.WithSections(s.sections),
		viewmodel.WithLogger(s.logger))
	if err := s.viewModel.Start(ctx); err != nil {
		return fmt.Errorf("start view model: %w", err)
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "dashboard service started",
		logger.String("apiBaseURL", s.baseURL),
		logger.Duration("requestTimeout", s.timeout),
		logger.Int("queueSize", s.queueSize),
		logger.Int("sections", len(s.sections.List())),
	)
	return nil
}

// Stop tears the dashboard down and stops the delivery loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping dashboard service...")

	s.viewModel.Unmount(ctx)
	s.viewModel.Stop()

	s.started = false
	s.logger.Info(ctx, "dashboard service stopped")
}

func (s *Service) vm() (*viewmodel.ViewModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.viewModel, nil
}

// Title returns the dashboard heading.
func (s *Service) Title() string { return s.title }

// Sections returns the enabled report sections.
func (s *Service) Sections() viewmodel.Sections { return s.sections }

// Mount starts the first fetch cycle; later calls return the current cycle.
func (s *Service) Mount(ctx context.Context) (string, error) {
	vm, err := s.vm()
	if err != nil {
		return "", err
	}
	return vm.Mount(ctx), nil
}

// Refresh starts a new fetch cycle.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	vm, err := s.vm()
	if err != nil {
		return "", err
	}
	return vm.Refresh(ctx), nil
}

// Unmount tears down the current cycle.
func (s *Service) Unmount(ctx context.Context) error {
	vm, err := s.vm()
	if err != nil {
		return err
	}
	vm.Unmount(ctx)
	return nil
}

// Snapshot returns the current dashboard state.
func (s *Service) Snapshot() (viewmodel.Snapshot, error) {
	vm, err := s.vm()
	if err != nil {
		return viewmodel.Snapshot{Sections: s.sections}, err
	}
	return vm.Snapshot(), nil
}

// WaitSettled blocks until the current cycle has settled or ctx is done.
func (s *Service) WaitSettled(ctx context.Context) (viewmodel.Snapshot, error) {
	vm, err := s.vm()
	if err != nil {
		return viewmodel.Snapshot{Sections: s.sections}, err
	}
	return vm.WaitSettled(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":    s.started,
		"apiBaseURL": s.baseURL,
		"queueSize":  s.queueSize,
		"sections":   s.sections.List(),
	}
	if !s.started {
		return stats
	}

	snap := s.viewModel.Snapshot()
	queueLen := s.queue.Len(ctx)
	stats["queueLength"] = queueLen
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
	stats["mounted"] = snap.Mounted
	stats["settled"] = snap.Settled
	stats["cycleID"] = snap.CycleID
	stats["generation"] = snap.Generation

	states := make(map[string]string, 3)
	for _, sec := range s.sections.List() {
		states[string(sec)] = snap.State(sec).String()
	}
	stats["slices"] = states

	metrics.UpdateQueueSize(queueLen)
	return stats
}
