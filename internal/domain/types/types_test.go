package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/trustmatch/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestList(t *testing.T) {
	Convey("Given a nil slice", t, func() {
		l := types.NewList[string](nil)

		Convey("Then it encodes as an empty array", func() {
			b, err := json.Marshal(l)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"items":[],"count":0}`)
		})
	})

	Convey("Given items", t, func() {
		l := types.NewList([]int{3, 1, 2})

		Convey("Then the count follows", func() {
			So(l.Count, ShouldEqual, 3)
			So(l.Items, ShouldResemble, []int{3, 1, 2})
		})
	})
}

func TestDashboard(t *testing.T) {
	Convey("Given a fresh dashboard", t, func() {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		d := types.NewDashboard(at)

		Convey("Then counters can be incremented without allocation", func() {
			d.SubjectsByLevel["high"]++
			d.ActiveAlertsByRisk["medium"] += 2
			d.ActiveAlertsByPattern["duplicate_target_spam"]++
			So(d.SubjectsByLevel["high"], ShouldEqual, 1)
			So(d.ActiveAlertsByRisk["medium"], ShouldEqual, 2)
			So(d.GeneratedAt, ShouldEqual, at)
		})
	})
}
