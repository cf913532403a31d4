// Package viewmodel holds the dashboard state: three report slices that load
// independently within a fetch cycle.
//
// Fetch goroutines never touch state. They push deliveries onto a queue that
// a single worker drains into Apply, so slice transitions happen one at a
// time. Each cycle carries a token (generation and cycle ID); Apply drops
// deliveries from any cycle other than the current mounted one.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/careconnect/internal/adapters/mq/queue"
	"github.com/okian/careconnect/internal/adapters/mq/worker"
	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/types"
	"github.com/okian/careconnect/pkg/logger"
	"github.com/okian/careconnect/pkg/metrics"
)

const (
	enqueueRetryInterval = 5 * time.Millisecond
	stopTimeout          = 5 * time.Second
)

// Reasons a delivery is discarded.
const (
	DiscardUnmounted = "unmounted"
	DiscardStale     = "stale"
	DiscardDisabled  = "disabled"
	DiscardDuplicate = "duplicate"
)

// Sentinel errors.
var (
	ErrNotMounted     = errors.New("dashboard not mounted")
	ErrAlreadyStarted = errors.New("view model already started")
	ErrUnknownSection = errors.New("unknown section")
)

// Fetcher resolves report sections, delivering each outcome as it arrives.
type Fetcher interface {
	FetchAll(ctx context.Context, sections []types.Section, deliver func(model.Outcome))
}

// Queue carries deliveries to the single apply loop.
type Queue interface {
	Enqueue(ctx context.Context, d model.Delivery) bool
	Dequeue(ctx context.Context) <-chan model.Delivery
	Close() error
}

// ViewModel is the dashboard state holder.
type ViewModel struct {
	fetcher  Fetcher
	queue    Queue
	sections Sections
	logger   logger.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	startOnce  sync.Once
	stopOnce   sync.Once
	worker     *worker.InMemoryWorker
	fetches    sync.WaitGroup

	// notifyMu serializes transitions with their notifications so
	// listeners observe snapshots in order.
	notifyMu sync.Mutex

	mu            sync.RWMutex
	stopped       bool
	mounted       bool
	generation    uint64
	cycleID       string
	cycleCancel   context.CancelFunc
	startedAt     time.Time
	appointments  Slice[model.AppointmentSummary]
	noShowRates   Slice[model.NoShowRate]
	clinicReports Slice[model.ClinicReport]
	changed       chan struct{}
	listeners     map[int]func(Snapshot)
	nextListener  int
}

// New creates a view model backed by fetcher.
func New(fetcher Fetcher, opts ...Option) *ViewModel {
	vm := &ViewModel{
		fetcher:   fetcher,
		sections:  AllSections(),
		changed:   make(chan struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.queue == nil {
		vm.queue = queue.NewInMemoryQueue()
	}
	if vm.logger == nil {
		vm.logger = logger.Get()
	}
	vm.logger = vm.logger.Named("viewmodel")
	vm.baseCtx, vm.baseCancel = context.WithCancel(context.Background())
	for _, s := range types.AllSections() {
		metrics.UpdateSliceState(string(s), int(types.StatePending))
	}
	return vm
}

// Sections returns the enabled sections.
func (vm *ViewModel) Sections() Sections { return vm.sections }

// Start launches the delivery loop. Cancelling ctx stops the view model.
func (vm *ViewModel) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	vm.startOnce.Do(func() {
		err = nil
		vm.worker = worker.NewInMemoryWorker(vm.queue, vm,
			worker.WithName("delivery-worker"),
			worker.WithLogger(vm.logger))
		go vm.worker.Run(vm.baseCtx)
		context.AfterFunc(ctx, vm.Stop)
	})
	return err
}

// Stop cancels every cycle, closes the queue and waits for the loop to exit.
func (vm *ViewModel) Stop() {
	vm.stopOnce.Do(func() {
		vm.mu.Lock()
		vm.stopped = true
		vm.mu.Unlock()

		vm.baseCancel()
		vm.fetches.Wait()
		_ = vm.queue.Close()
		if vm.worker != nil {
			ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			if err := vm.worker.Shutdown(ctx); err != nil {
				vm.logger.Warn(ctx, "delivery worker did not stop", logger.Error(err))
			}
		}
	})
}

// Mount starts the first fetch cycle. While mounted, or once stopped,
// further calls return the current cycle ID without fetching again.
func (vm *ViewModel) Mount(ctx context.Context) string {
	vm.notifyMu.Lock()
	defer vm.notifyMu.Unlock()

	vm.mu.Lock()
	if vm.mounted || vm.stopped {
		id := vm.cycleID
		vm.mu.Unlock()
		return id
	}
	vm.mounted = true
	return vm.beginCycleLocked(ctx, "mount")
}

// Refresh starts a new cycle, superseding the current one. Calling it while
// unmounted mounts the view. After Stop it returns the current cycle ID.
func (vm *ViewModel) Refresh(ctx context.Context) string {
	vm.notifyMu.Lock()
	defer vm.notifyMu.Unlock()

	vm.mu.Lock()
	if vm.stopped {
		id := vm.cycleID
		vm.mu.Unlock()
		return id
	}
	vm.mounted = true
	return vm.beginCycleLocked(ctx, "refresh")
}

// Unmount tears the view down: in-flight requests are cancelled, loaded data
// is dropped and any late delivery becomes a no-op.
func (vm *ViewModel) Unmount(ctx context.Context) {
	vm.notifyMu.Lock()
	defer vm.notifyMu.Unlock()

	vm.mu.Lock()
	if !vm.mounted {
		vm.mu.Unlock()
		return
	}
	vm.mounted = false
	vm.generation++
	if vm.cycleCancel != nil {
		vm.cycleCancel()
		vm.cycleCancel = nil
	}
	vm.resetSlicesLocked()
	cycleID := vm.cycleID
	snap := vm.snapshotLocked()
	vm.broadcastLocked()
	vm.mu.Unlock()

	vm.logger.Info(ctx, "dashboard unmounted", logger.String("cycle_id", cycleID))
	vm.publish(snap)
}

// beginCycleLocked must be called with mu held; it releases mu.
func (vm *ViewModel) beginCycleLocked(ctx context.Context, reason string) string {
	if vm.cycleCancel != nil {
		vm.cycleCancel()
	}
	cycleCtx, cancel := context.WithCancel(vm.baseCtx)
	vm.cycleCancel = cancel
	vm.generation++
	vm.cycleID = uuid.NewString()
	vm.startedAt = time.Now()
	vm.resetSlicesLocked()

	gen, cycleID := vm.generation, vm.cycleID
	sections := vm.sections.List()
	snap := vm.snapshotLocked()
	vm.broadcastLocked()
	// Added under mu so Stop either waits for this cycle or prevents it.
	vm.fetches.Add(1)
	vm.mu.Unlock()

	metrics.RecordCycleStarted()
	vm.logger.Info(ctx, "fetch cycle started",
		logger.String("reason", reason),
		logger.String("cycle_id", cycleID),
		logger.Uint64("generation", gen),
		logger.Int("sections", len(sections)))

	go func() {
		defer vm.fetches.Done()
		vm.fetcher.FetchAll(cycleCtx, sections, func(o model.Outcome) {
			vm.deliver(cycleCtx, model.Delivery{CycleID: cycleID, Generation: gen, Outcome: o})
		})
	}()

	vm.publish(snap)
	return cycleID
}

// deliver enqueues d, retrying while the queue is full. Deliveries of a
// cancelled cycle are dropped since Apply would discard them anyway.
func (vm *ViewModel) deliver(ctx context.Context, d model.Delivery) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	for attempt := 0; !vm.queue.Enqueue(ctx, d); attempt++ {
		if attempt == 0 && ctx.Err() == nil {
			vm.logger.Warn(ctx, "delivery rejected, retrying",
				logger.String("section", string(d.Section)),
				logger.String("cycle_id", d.CycleID),
				logger.Error(queue.ErrQueueFull))
		}
		select {
		case <-ctx.Done():
			metrics.RecordDeliveryDiscarded(string(d.Section), DiscardStale)
			return
		case <-time.After(enqueueRetryInterval):
		}
	}
}

// Apply commits one delivery to its slice if it belongs to the current
// mounted cycle. It is called only by the delivery worker.
func (vm *ViewModel) Apply(ctx context.Context, d model.Delivery) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	if _, err := types.ParseSection(string(d.Section)); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownSection, d.Section)
	}

	vm.notifyMu.Lock()
	defer vm.notifyMu.Unlock()

	vm.mu.Lock()
	reason := vm.discardReasonLocked(d)
	if reason != "" {
		vm.mu.Unlock()
		metrics.RecordDeliveryDiscarded(string(d.Section), reason)
		vm.logger.Debug(ctx, "delivery discarded",
			logger.String("section", string(d.Section)),
			logger.String("cycle_id", d.CycleID),
			logger.String("reason", reason))
		return nil
	}

	now := time.Now()
	switch d.Section {
	case types.SectionAppointments:
		resolve(&vm.appointments, d.Appointments, d.Err, now)
	case types.SectionNoShowRates:
		resolve(&vm.noShowRates, d.NoShowRates, d.Err, now)
	case types.SectionClinicReports:
		resolve(&vm.clinicReports, d.ClinicReports, d.Err, now)
	}
	elapsed := now.Sub(vm.startedAt)
	snap := vm.snapshotLocked()
	vm.broadcastLocked()
	vm.mu.Unlock()

	state := snap.State(d.Section)
	metrics.UpdateSliceState(string(d.Section), int(state))
	metrics.RecordDeliveryApplied(string(d.Section), float64(elapsed.Milliseconds()))
	vm.logger.Debug(ctx, "slice updated",
		logger.String("section", string(d.Section)),
		logger.String("state", state.String()),
		logger.Int("rows", snap.Rows(d.Section)))
	if snap.Settled {
		vm.logger.Info(ctx, "fetch cycle settled",
			logger.String("cycle_id", snap.CycleID),
			logger.Duration("elapsed", elapsed))
	}

	vm.publish(snap)
	return nil
}

func (vm *ViewModel) discardReasonLocked(d model.Delivery) string { //nolint:gocritic // hugeParam: read-only
	switch {
	case !vm.mounted:
		return DiscardUnmounted
	case d.Generation != vm.generation || d.CycleID != vm.cycleID:
		return DiscardStale
	case !vm.sections.Enabled(d.Section):
		return DiscardDisabled
	}
	switch d.Section {
	case types.SectionAppointments:
		if !vm.appointments.Pending() {
			return DiscardDuplicate
		}
	case types.SectionNoShowRates:
		if !vm.noShowRates.Pending() {
			return DiscardDuplicate
		}
	case types.SectionClinicReports:
		if !vm.clinicReports.Pending() {
			return DiscardDuplicate
		}
	}
	return ""
}

func (vm *ViewModel) resetSlicesLocked() {
	vm.appointments = Slice[model.AppointmentSummary]{}
	vm.noShowRates = Slice[model.NoShowRate]{}
	vm.clinicReports = Slice[model.ClinicReport]{}
	for _, s := range types.AllSections() {
		metrics.UpdateSliceState(string(s), int(types.StatePending))
	}
}

// Snapshot returns a consistent copy of the current state.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.snapshotLocked()
}

func (vm *ViewModel) snapshotLocked() Snapshot {
	snap := Snapshot{
		CycleID:       vm.cycleID,
		Generation:    vm.generation,
		Mounted:       vm.mounted,
		Sections:      vm.sections,
		StartedAt:     vm.startedAt,
		Appointments:  vm.appointments.clone(),
		NoShowRates:   vm.noShowRates.clone(),
		ClinicReports: vm.clinicReports.clone(),
	}
	snap.Settled = snap.Mounted
	for _, s := range vm.sections.List() {
		if !snap.State(s).Settled() {
			snap.Settled = false
		}
	}
	return snap
}

// broadcastLocked wakes every WaitSettled caller.
func (vm *ViewModel) broadcastLocked() {
	close(vm.changed)
	vm.changed = make(chan struct{})
}

// Subscribe registers fn to receive a snapshot after every transition.
// fn runs on the goroutine that made the transition and must not call
// Mount, Refresh, Unmount or Subscribe.
func (vm *ViewModel) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	vm.mu.Lock()
	id := vm.nextListener
	vm.nextListener++
	vm.listeners[id] = fn
	vm.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			vm.mu.Lock()
			delete(vm.listeners, id)
			vm.mu.Unlock()
		})
	}
}

func (vm *ViewModel) publish(snap Snapshot) { //nolint:gocritic // hugeParam: snapshots are values
	vm.mu.RLock()
	fns := make([]func(Snapshot), 0, len(vm.listeners))
	for _, fn := range vm.listeners {
		fns = append(fns, fn)
	}
	vm.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// WaitSettled blocks until the current cycle has settled or ctx is done.
// A Refresh while waiting moves the wait to the new cycle.
func (vm *ViewModel) WaitSettled(ctx context.Context) (Snapshot, error) {
	for {
		vm.mu.RLock()
		snap := vm.snapshotLocked()
		changed := vm.changed
		vm.mu.RUnlock()

		if !snap.Mounted {
			return snap, ErrNotMounted
		}
		if snap.Settled {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}
