package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/careconnect/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSection(t *testing.T) {
	Convey("Given the dashboard sections", t, func() {
		Convey("When listing all sections", func() {
			all := types.AllSections()

			Convey("Then they should be in render order", func() {
				So(all, ShouldResemble, []types.Section{
					types.SectionAppointments,
					types.SectionNoShowRates,
					types.SectionClinicReports,
				})
			})
		})

		Convey("When parsing known section names", func() {
			for _, name := range []string{"appointments", "no_show_rates", "clinic_reports"} {
				s, err := types.ParseSection(name)
				So(err, ShouldBeNil)
				So(string(s), ShouldEqual, name)
			}
		})

		Convey("When parsing an unknown section name", func() {
			_, err := types.ParseSection("billing")

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "billing")
			})
		})

		Convey("When asking for titles", func() {
			So(types.SectionAppointments.Title(), ShouldEqual, "Upcoming Appointments")
			So(types.SectionNoShowRates.Title(), ShouldEqual, "Top No-Show Rates")
			So(types.SectionClinicReports.Title(), ShouldEqual, "Clinic Summary")
		})
	})
}

func TestSliceState(t *testing.T) {
	Convey("Given slice states", t, func() {
		Convey("Then only loaded and failed are settled", func() {
			So(types.StatePending.Settled(), ShouldBeFalse)
			So(types.StateLoaded.Settled(), ShouldBeTrue)
			So(types.StateFailed.Settled(), ShouldBeTrue)
		})

		Convey("When marshaling to JSON", func() {
			b, err := json.Marshal(map[string]types.SliceState{"s": types.StateFailed})

			Convey("Then the state should be rendered by name", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"s":"failed"}`)
			})
		})

		Convey("When decoding a marshaled state", func() {
			for _, s := range []types.SliceState{types.StatePending, types.StateLoaded, types.StateFailed} {
				b, err := json.Marshal(s)
				So(err, ShouldBeNil)

				var got types.SliceState
				So(json.Unmarshal(b, &got), ShouldBeNil)
				So(got, ShouldEqual, s)
			}
		})

		Convey("When decoding an unknown state name", func() {
			var got types.SliceState
			err := json.Unmarshal([]byte(`"unknown"`), &got)

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown slice state")
			})
		})

		Convey("When stringifying an out-of-range state", func() {
			So(types.SliceState(42).String(), ShouldEqual, "unknown")
		})
	})
}
