package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/careconnect/internal/adapters/mq/queue"
	worker "github.com/okian/careconnect/internal/adapters/mq/worker"
	model "github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/types"
	logging "github.com/okian/careconnect/pkg/logger"
)

type mockQueue struct {
	ch chan queue.Delivery
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.Delivery, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Delivery { return mq.ch }

// recordingApplier records every applied delivery and tracks concurrency.
type recordingApplier struct {
	mu       sync.Mutex
	applied  []queue.Delivery
	active   int
	maxSeen  int
	failWith error
	panicOn  types.Section
	delay    time.Duration
}

func (a *recordingApplier) Apply(_ context.Context, d queue.Delivery) error { //nolint:gocritic // test helper
	a.mu.Lock()
	a.active++
	if a.active > a.maxSeen {
		a.maxSeen = a.active
	}
	a.mu.Unlock()

	time.Sleep(a.delay)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.active--
	if d.Section == a.panicOn {
		panic("boom")
	}
	a.applied = append(a.applied, d)
	return a.failWith
}

func (a *recordingApplier) snapshot() ([]queue.Delivery, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]queue.Delivery(nil), a.applied...), a.maxSeen
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		applier := &recordingApplier{delay: time.Millisecond}
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("Deliveries are applied one at a time in queue order", func() {
			for i, s := range types.AllSections() {
				q.ch <- queue.Delivery{Generation: uint64(i + 1), Outcome: model.Outcome{Section: s}}
			}
			convey.So(waitFor(func() bool { got, _ := applier.snapshot(); return len(got) == 3 }), convey.ShouldBeTrue)

			got, maxSeen := applier.snapshot()
			convey.So(maxSeen, convey.ShouldEqual, 1)
			convey.So(got[0].Section, convey.ShouldEqual, types.SectionAppointments)
			convey.So(got[2].Section, convey.ShouldEqual, types.SectionClinicReports)
		})

		convey.Convey("An apply error does not stop the loop", func() {
			applier.mu.Lock()
			applier.failWith = errors.New("stale")
			applier.mu.Unlock()
			q.ch <- queue.Delivery{Outcome: model.Outcome{Section: types.SectionNoShowRates}}
			q.ch <- queue.Delivery{Outcome: model.Outcome{Section: types.SectionClinicReports}}
			convey.So(waitFor(func() bool { got, _ := applier.snapshot(); return len(got) == 2 }), convey.ShouldBeTrue)
		})

		convey.Convey("A panicking apply is recovered", func() {
			applier.mu.Lock()
			applier.panicOn = types.SectionAppointments
			applier.mu.Unlock()
			q.ch <- queue.Delivery{Outcome: model.Outcome{Section: types.SectionAppointments}}
			q.ch <- queue.Delivery{Outcome: model.Outcome{Section: types.SectionClinicReports}}
			convey.So(waitFor(func() bool { got, _ := applier.snapshot(); return len(got) == 1 }), convey.ShouldBeTrue)
			got, _ := applier.snapshot()
			convey.So(got[0].Section, convey.ShouldEqual, types.SectionClinicReports)
		})

		convey.Convey("Shutdown stops the loop and is idempotent", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			<-w.Done()
		})
	})

	convey.Convey("Given a worker whose queue closes", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, &recordingApplier{})
		go w.Run(context.Background())
		close(q.ch)

		select {
		case <-w.Done():
			convey.So(true, convey.ShouldBeTrue)
		case <-time.After(time.Second):
			convey.So("worker still running", convey.ShouldBeEmpty)
		}
	})

	convey.Convey("Given a worker that never started", t, func() {
		w := worker.NewInMemoryWorker(newMockQueue(), &recordingApplier{})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		convey.So(w.Shutdown(ctx), convey.ShouldNotBeNil)
	})
}
