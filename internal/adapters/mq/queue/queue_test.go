package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/types"
)

func delivery(gen uint64, section types.Section) Delivery {
	return Delivery{
		CycleID:    "cycle",
		Generation: gen,
		Outcome:    model.Outcome{Section: section},
	}
}

func TestInMemoryQueue(t *testing.T) {
	convey.Convey("Given a queue with capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		ctx := context.Background()

		convey.So(q.Len(ctx), convey.ShouldEqual, 0)

		convey.Convey("Deliveries come out in enqueue order", func() {
			convey.So(q.Enqueue(ctx, delivery(1, types.SectionClinicReports)), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, delivery(1, types.SectionAppointments)), convey.ShouldBeTrue)
			convey.So(q.Len(ctx), convey.ShouldEqual, 2)

			ch := q.Dequeue(ctx)
			convey.So((<-ch).Section, convey.ShouldEqual, types.SectionClinicReports)
			convey.So((<-ch).Section, convey.ShouldEqual, types.SectionAppointments)
		})

		convey.Convey("A full queue rejects without blocking", func() {
			convey.So(q.Enqueue(ctx, delivery(1, types.SectionClinicReports)), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, delivery(1, types.SectionNoShowRates)), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, delivery(1, types.SectionAppointments)), convey.ShouldBeFalse)
		})

		convey.Convey("A cancelled context rejects", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			convey.So(q.Enqueue(cctx, delivery(1, types.SectionAppointments)), convey.ShouldBeFalse)
		})

		convey.Convey("Close stops enqueue and drains the dequeue channel", func() {
			convey.So(q.Enqueue(ctx, delivery(3, types.SectionNoShowRates)), convey.ShouldBeTrue)
			convey.So(q.Close(), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, delivery(4, types.SectionNoShowRates)), convey.ShouldBeFalse)

			var got []Delivery
			for d := range q.Dequeue(ctx) {
				got = append(got, d)
			}
			convey.So(got, convey.ShouldHaveLength, 1)
			convey.So(got[0].Generation, convey.ShouldEqual, uint64(3))
		})
	})
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	convey.Convey("Given many producers and one consumer", t, func() {
		q := NewInMemoryQueue(WithCapacity(300))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		for i := range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 100 {
					q.Enqueue(ctx, delivery(uint64(i*100+j), types.AllSections()[i]))
				}
			}()
		}
		wg.Wait()
		convey.So(q.Close(), convey.ShouldBeNil)

		count := 0
		for range q.Dequeue(ctx) {
			count++
		}
		convey.So(count, convey.ShouldEqual, 300)
	})
}
