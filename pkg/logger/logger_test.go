package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initializing with defaults", func() {
			err := Init()

			Convey("Then a logger should be available", func() {
				So(err, ShouldBeNil)
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initializing each explicit format", func() {
			for _, f := range []Format{FormatConsole, FormatJSON, FormatText, FormatAuto} {
				var buf bytes.Buffer
				So(Init(WithFormat(f), WithWriter(&buf)), ShouldBeNil)
				Get().Info(context.Background(), "hello", String("k", "v"))
				So(buf.String(), ShouldContainSubstring, "hello")
			}
		})

		Convey("When initializing with an unknown format", func() {
			err := Init(WithFormat(Format("xml")))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat(FormatJSON), WithWriter(&buf)), ShouldBeNil)
		So(SetLevelString("info"), ShouldBeNil)

		Convey("When logging through a named logger", func() {
			Named("fetcher").Warn(context.Background(), "slow report",
				String("section", "appointments"),
				Int("rows", 3),
				Error(errors.New("boom")),
			)

			Convey("Then fields, name and source should be recorded", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "slow report")
				So(rec["logger"], ShouldEqual, "fetcher")
				So(rec["section"], ShouldEqual, "appointments")
				So(rec["rows"], ShouldEqual, 3.0)
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			Get().Debug(context.Background(), "hidden")
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("When lowering the level at runtime", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			Get().Debug(context.Background(), "visible")
			So(buf.String(), ShouldContainSubstring, "visible")
			So(SetLevelString("info"), ShouldBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, l := range []string{"debug", "info", "", "warn", "warning", "ERROR"} {
			So(SetLevelString(l), ShouldBeNil)
		}
		So(SetLevelString("loud"), ShouldNotBeNil)
		_ = SetLevelString("info")
	})
}

func TestParseFormat(t *testing.T) {
	Convey("Given format strings", t, func() {
		f, err := ParseFormat("")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, FormatAuto)

		f, err = ParseFormat(" JSON ")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, FormatJSON)

		_, err = ParseFormat("yaml")
		So(err, ShouldNotBeNil)
	})
}
