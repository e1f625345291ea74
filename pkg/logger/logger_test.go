package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(WithWriter(&bytes.Buffer{})), ShouldBeNil)
		So(Get(), ShouldNotBeNil)
		So(Named("test"), ShouldNotBeNil)
		So(Sync(), ShouldBeNil)

		Convey("Unknown formats and levels are rejected", func() {
			So(Init(WithFormat("xml")), ShouldNotBeNil)
			So(Init(WithLevel("loud")), ShouldNotBeNil)
		})
	})
}

func TestLoggerJSON(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		defer func() { _ = SetLevelString("info") }()
		var buf bytes.Buffer
		l, err := New(WithFormat(FormatJSON), WithWriter(&buf), WithLevel("info"))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When an entry with fields is written", func() {
			l.Named("worker").With(String("subject_id", "u1")).Info(ctx, "processed",
				Int("alerts", 2), Bool("changed", true), Duration("took", time.Millisecond), Error(errors.New("boom")))

			Convey("Then every field is present", func() {
				var entry map[string]any
				So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
				So(entry["msg"], ShouldEqual, "processed")
				So(entry["logger"], ShouldEqual, "worker")
				So(entry["subject_id"], ShouldEqual, "u1")
				So(entry["alerts"], ShouldEqual, 2.0)
				So(entry["changed"], ShouldEqual, true)
				So(entry["error"], ShouldEqual, "boom")
				So(entry["source"], ShouldContainSubstring, "logger_test.go:")
			})
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("error"), ShouldBeNil)
			l.Info(ctx, "hidden")
			l.Warn(ctx, "hidden too")
			l.Error(ctx, "shown")

			Convey("Then lower levels are dropped", func() {
				So(strings.Count(buf.String(), "\n"), ShouldEqual, 1)
				So(buf.String(), ShouldContainSubstring, "shown")
			})
		})
	})

	Convey("Nop discards everything", t, func() {
		So(func() { Nop().Error(context.Background(), "nothing") }, ShouldNotPanic)
	})
}
