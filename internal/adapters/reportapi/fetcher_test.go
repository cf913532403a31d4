package reportapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/careconnect/internal/domain/model"
	"github.com/okian/careconnect/internal/domain/types"
	"github.com/okian/careconnect/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	appointmentsBody = `[
		{"start_datetime":"Tue, 14 Jan 2025 09:00:00 GMT","patient":"Asha Singh","provider":"Dr. Ramdin","clinic_name":"North Clinic","status":"scheduled"},
		{"start_datetime":"2025-01-14T10:30:00Z","patient":"Mark Lewis","provider":"Dr. Persaud","clinic_name":"East Clinic","status":"completed"}
	]`
	noShowBody = `[{"provider":"Dr. Ramdin","no_show_rate":"12.50"},{"provider":"Dr. Persaud","no_show_rate":4}]`
	clinicBody = `[{"clinic_name":"North Clinic","total_appointments":50,"no_shows":5}]`
)

// collaborator serves the three reports; overrides replace a path's handler.
func collaborator(overrides map[string]http.HandlerFunc) (*httptest.Server, *sync.Map) {
	hits := &sync.Map{}
	bodies := map[string]string{
		PathAppointments:  appointmentsBody,
		PathNoShowRates:   noShowBody,
		PathClinicReports: clinicBody,
	}
	mux := http.NewServeMux()
	for path, body := range bodies {
		h, ok := overrides[path]
		if !ok {
			h = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}
		}
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			n, _ := hits.LoadOrStore(r.URL.Path, new(int32))
			atomic.AddInt32(n.(*int32), 1)
			h(w, r)
		})
	}
	return httptest.NewServer(mux), hits
}

func hitCount(hits *sync.Map, path string) int32 {
	n, ok := hits.Load(path)
	if !ok {
		return 0
	}
	return atomic.LoadInt32(n.(*int32))
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestNew(t *testing.T) {
	Convey("Given fetcher options", t, func() {
		Convey("A missing base URL is rejected", func() {
			_, err := New()
			So(errors.Is(err, ErrInvalidBaseURL), ShouldBeTrue)
		})

		Convey("A relative base URL is rejected", func() {
			_, err := New(WithBaseURL("127.0.0.1:5000"))
			So(errors.Is(err, ErrInvalidBaseURL), ShouldBeTrue)
		})

		Convey("Trailing slashes are trimmed", func() {
			f, err := New(WithBaseURL("http://127.0.0.1:5000/"))
			So(err, ShouldBeNil)
			So(f.BaseURL(), ShouldEqual, "http://127.0.0.1:5000")
		})

		Convey("A supplied logger replaces the global one", func() {
			l := &silentLogger{}
			f, err := New(WithBaseURL("http://127.0.0.1:5000"), WithLogger(l))
			So(err, ShouldBeNil)
			So(f.logger, ShouldEqual, l)
		})
	})
}

type silentLogger struct{}

func (l *silentLogger) Info(context.Context, string, ...logger.Field)  {}
func (l *silentLogger) Error(context.Context, string, ...logger.Field) {}
func (l *silentLogger) Debug(context.Context, string, ...logger.Field) {}
func (l *silentLogger) Warn(context.Context, string, ...logger.Field)  {}
func (l *silentLogger) Fatal(context.Context, string, ...logger.Field) {}
func (l *silentLogger) Named(string) logger.Logger                     { return l }

func TestFetchReports(t *testing.T) {
	Convey("Given a healthy collaborator", t, func() {
		srv, _ := collaborator(nil)
		defer srv.Close()
		f, err := New(WithBaseURL(srv.URL))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("Appointments decode in server order", func() {
			rows, err := f.FetchAppointments(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].Patient, ShouldEqual, "Asha Singh")
			So(rows[0].StartDateTime.Equal(time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)), ShouldBeTrue)
			So(rows[1].Status, ShouldEqual, model.StatusCompleted)
		})

		Convey("No-show rates accept numeric strings", func() {
			rows, err := f.FetchNoShowRates(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].NoShowRate, ShouldEqual, 12.5)
			So(rows[1].NoShowRate, ShouldEqual, 4.0)
		})

		Convey("The North Clinic row loads exactly", func() {
			rows, err := f.FetchClinicReports(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []model.ClinicReport{
				{ClinicName: "North Clinic", TotalAppointments: 50, NoShows: 5},
			})
		})
	})

	Convey("Given an out-of-range no-show rate", t, func() {
		for _, rate := range []string{"150", "-5"} {
			Convey("A rate of "+rate+" is a validation error", func() {
				srv, _ := collaborator(map[string]http.HandlerFunc{
					PathNoShowRates: respond(http.StatusOK, `[{"provider":"Dr. A","no_show_rate":`+rate+`}]`),
				})
				defer srv.Close()
				f, _ := New(WithBaseURL(srv.URL))

				rows, err := f.FetchNoShowRates(context.Background())
				So(rows, ShouldBeNil)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				var ve *model.ValidationError
				So(errors.As(err, &ve), ShouldBeTrue)
				So(ve.Index, ShouldEqual, 0)
				So(ve.Field, ShouldEqual, "no_show_rate")
				So(ErrorKind(err), ShouldEqual, KindValidation)
			})
		}
	})

	Convey("Given non-conforming responses", t, func() {
		cases := []struct {
			name    string
			handler http.HandlerFunc
			status  int
		}{
			{"a server error", respond(http.StatusInternalServerError, `{"error":"db down"}`), http.StatusInternalServerError},
			{"a not found page", respond(http.StatusNotFound, `<html>nope</html>`), http.StatusNotFound},
			{"an object body", respond(http.StatusOK, `{"rows":[]}`), 0},
			{"a null body", respond(http.StatusOK, `null`), 0},
			{"an empty body", respond(http.StatusOK, ``), 0},
			{"a wrong field type", respond(http.StatusOK, `[{"clinic_name":"X","total_appointments":true,"no_shows":0}]`), 0},
			{"a missing field", respond(http.StatusOK, `[{"clinic_name":"X","total_appointments":3}]`), 0},
			{"a fractional count", respond(http.StatusOK, `[{"clinic_name":"X","total_appointments":3.5,"no_shows":0}]`), 0},
		}
		for _, tc := range cases {
			Convey(tc.name+" is a decode error", func() {
				srv, _ := collaborator(map[string]http.HandlerFunc{PathClinicReports: tc.handler})
				defer srv.Close()
				f, _ := New(WithBaseURL(srv.URL))

				_, err := f.FetchClinicReports(context.Background())
				So(errors.Is(err, ErrDecode), ShouldBeTrue)
				So(errors.Is(err, ErrNetwork), ShouldBeFalse)
				var de *DecodeError
				So(errors.As(err, &de), ShouldBeTrue)
				So(de.Section, ShouldEqual, types.SectionClinicReports)
				So(de.Status, ShouldEqual, tc.status)
				So(de.Endpoint, ShouldEqual, srv.URL+PathClinicReports)
			})
		}

		Convey("An oversized body is a decode error", func() {
			srv, _ := collaborator(nil)
			defer srv.Close()
			f, _ := New(WithBaseURL(srv.URL), WithMaxBodyBytes(16))

			_, err := f.FetchClinicReports(context.Background())
			var de *DecodeError
			So(errors.As(err, &de), ShouldBeTrue)
			So(de.Reason, ShouldContainSubstring, "exceeds 16 bytes")
		})

		Convey("An empty array loads as no rows", func() {
			srv, _ := collaborator(map[string]http.HandlerFunc{PathAppointments: respond(http.StatusOK, `[]`)})
			defer srv.Close()
			f, _ := New(WithBaseURL(srv.URL))

			rows, err := f.FetchAppointments(context.Background())
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 0)
		})
	})

	Convey("Given an unreachable collaborator", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()
		f, _ := New(WithBaseURL(base))

		_, err := f.FetchAppointments(context.Background())
		So(errors.Is(err, ErrNetwork), ShouldBeTrue)
		var ne *NetworkError
		So(errors.As(err, &ne), ShouldBeTrue)
		So(ne.Endpoint, ShouldEqual, base+PathAppointments)
		So(ErrorKind(err), ShouldEqual, KindNetwork)
	})

	Convey("Given a collaborator slower than the timeout", t, func() {
		release := make(chan struct{})
		srv, _ := collaborator(map[string]http.HandlerFunc{
			PathAppointments: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			},
		})
		defer srv.Close()
		defer close(release)
		f, _ := New(WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))

		_, err := f.FetchAppointments(context.Background())
		var ne *NetworkError
		So(errors.As(err, &ne), ShouldBeTrue)
		So(ne.Timeout(), ShouldBeTrue)
	})
}

func TestRequestShape(t *testing.T) {
	Convey("Given a collaborator that records requests", t, func() {
		var method, accept string
		srv, _ := collaborator(map[string]http.HandlerFunc{
			PathClinicReports: func(w http.ResponseWriter, r *http.Request) {
				method, accept = r.Method, r.Header.Get("Accept")
				_, _ = w.Write([]byte(clinicBody))
			},
		})
		defer srv.Close()
		f, _ := New(WithBaseURL(srv.URL))

		_, err := f.FetchClinicReports(context.Background())
		So(err, ShouldBeNil)
		So(method, ShouldEqual, http.MethodGet)
		So(accept, ShouldEqual, "application/json")
	})
}

func TestFetchAll(t *testing.T) {
	Convey("Given appointments failing while the other reports succeed", t, func() {
		srv, _ := collaborator(map[string]http.HandlerFunc{
			PathAppointments: respond(http.StatusBadGateway, "upstream"),
		})
		defer srv.Close()
		f, _ := New(WithBaseURL(srv.URL))

		var mu sync.Mutex
		got := map[types.Section]model.Outcome{}
		f.FetchAll(context.Background(), types.AllSections(), func(o model.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			got[o.Section] = o
		})

		So(got, ShouldHaveLength, 3)
		So(errors.Is(got[types.SectionAppointments].Err, ErrDecode), ShouldBeTrue)
		So(got[types.SectionNoShowRates].OK(), ShouldBeTrue)
		So(got[types.SectionNoShowRates].Rows(), ShouldEqual, 2)
		So(got[types.SectionClinicReports].OK(), ShouldBeTrue)
		So(got[types.SectionClinicReports].ClinicReports[0].ClinicName, ShouldEqual, "North Clinic")
	})

	Convey("Given a slow report", t, func() {
		release := make(chan struct{})
		srv, _ := collaborator(map[string]http.HandlerFunc{
			PathAppointments: func(w http.ResponseWriter, r *http.Request) {
				<-release
				_, _ = w.Write([]byte(appointmentsBody))
			},
		})
		defer srv.Close()
		f, _ := New(WithBaseURL(srv.URL))

		delivered := make(chan model.Outcome, 3)
		done := make(chan struct{})
		go func() {
			defer close(done)
			f.FetchAll(context.Background(), types.AllSections(), func(o model.Outcome) { delivered <- o })
		}()

		Convey("Faster reports are delivered without waiting for it", func() {
			seen := map[types.Section]bool{}
			for range 2 {
				select {
				case o := <-delivered:
					seen[o.Section] = true
				case <-time.After(2 * time.Second):
				}
			}
			close(release)
			<-done
			So(seen[types.SectionNoShowRates], ShouldBeTrue)
			So(seen[types.SectionClinicReports], ShouldBeTrue)
			So(seen[types.SectionAppointments], ShouldBeFalse)
			So((<-delivered).Section, ShouldEqual, types.SectionAppointments)
		})
	})

	Convey("Given a subset of sections", t, func() {
		srv, hits := collaborator(nil)
		defer srv.Close()
		f, _ := New(WithBaseURL(srv.URL))

		var count int32
		f.FetchAll(context.Background(), []types.Section{types.SectionClinicReports}, func(model.Outcome) {
			atomic.AddInt32(&count, 1)
		})

		So(count, ShouldEqual, int32(1))
		So(hitCount(hits, PathClinicReports), ShouldEqual, int32(1))
		So(hitCount(hits, PathAppointments), ShouldEqual, int32(0))
		So(hitCount(hits, PathNoShowRates), ShouldEqual, int32(0))
	})

	Convey("Given an unknown section", t, func() {
		f, _ := New(WithBaseURL("http://127.0.0.1:1"))
		out := f.Fetch(context.Background(), types.Section("billing"))
		So(errors.Is(out.Err, ErrUnknownSection), ShouldBeTrue)
		So(ErrorKind(out.Err), ShouldEqual, KindInternal)
	})

	Convey("Given a cancelled context", t, func() {
		srv, _ := collaborator(nil)
		defer srv.Close()
		f, _ := New(WithBaseURL(srv.URL))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var outs []model.Outcome
		var mu sync.Mutex
		f.FetchAll(ctx, types.AllSections(), func(o model.Outcome) {
			mu.Lock()
			outs = append(outs, o)
			mu.Unlock()
		})
		So(outs, ShouldHaveLength, 3)
		for _, o := range outs {
			So(errors.Is(o.Err, ErrNetwork), ShouldBeTrue)
		}
	})
}

func TestDecodeErrorMessage(t *testing.T) {
	Convey("A decode error names the endpoint and status", t, func() {
		err := &DecodeError{Section: types.SectionNoShowRates, Endpoint: "http://x/reports/no_show_rate", Status: 500, Reason: "unexpected status"}
		So(err.Error(), ShouldContainSubstring, "status 500")
		So(strings.HasPrefix(err.Error(), ErrDecode.Error()), ShouldBeTrue)
	})
}
