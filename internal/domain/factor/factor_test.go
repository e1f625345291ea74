package factor_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/trustmatch/internal/domain/factor"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSet(t *testing.T) {
	Convey("Given an empty factor set", t, func() {
		var s factor.Set

		Convey("When recording base, additive and penalty factors", func() {
			So(s.Base("base", 50), ShouldBeNil)
			So(s.Additive("age", 400, 20, 20), ShouldBeNil)
			So(s.Additive("email", false, 0, 10), ShouldBeNil)
			So(s.Penalty("fraud", 2, -20), ShouldBeNil)

			Convey("Then items keep insertion order", func() {
				items := s.Items()
				So(len(items), ShouldEqual, 4)
				So(items[0].Name, ShouldEqual, factor.Name("base"))
				So(items[1].Kind, ShouldEqual, factor.KindAdditive)
				So(items[3].Kind, ShouldEqual, factor.KindPenalty)
			})

			Convey("Then zero-valued contributions are still recorded", func() {
				c, ok := s.Get("email")
				So(ok, ShouldBeTrue)
				So(c.Awarded, ShouldEqual, 0)
				So(c.Raw, ShouldEqual, false)
			})

			Convey("Then sums are tracked per kind", func() {
				So(s.Sum(), ShouldEqual, 50)
				So(s.SumKind(factor.KindAdditive), ShouldEqual, 20)
				So(s.SumKind(factor.KindPenalty), ShouldEqual, -20)
			})

			Convey("Then mutating the returned slice does not touch the set", func() {
				items := s.Items()
				items[0].Awarded = 999
				c, _ := s.Get("base")
				So(c.Awarded, ShouldEqual, 50)
			})
		})

		Convey("When an additive value exceeds its max", func() {
			So(s.Additive("profile", 5, 25, 15), ShouldBeNil)

			Convey("Then it is clamped to the max", func() {
				c, _ := s.Get("profile")
				So(c.Awarded, ShouldEqual, 15)
			})
		})

		Convey("When an additive value is negative", func() {
			So(s.Additive("activity", -1, -3, 10), ShouldBeNil)

			Convey("Then it is clamped to zero", func() {
				c, _ := s.Get("activity")
				So(c.Awarded, ShouldEqual, 0)
			})
		})

		Convey("When a penalty is positive", func() {
			err := s.Penalty("fraud", 1, 10)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, factor.ErrOutOfRange), ShouldBeTrue)
				So(s.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a name is recorded twice", func() {
			So(s.Additive("age", 1, 0, 20), ShouldBeNil)
			err := s.Additive("age", 2, 5, 20)

			Convey("Then the duplicate is rejected", func() {
				So(errors.Is(err, factor.ErrDuplicate), ShouldBeTrue)
			})
		})

		Convey("When a name is empty", func() {
			So(errors.Is(s.Base("", 1), factor.ErrEmptyName), ShouldBeTrue)
		})
	})
}

func TestClamp(t *testing.T) {
	Convey("Given clamp helpers", t, func() {
		So(factor.Clamp(1.5, 0, 1), ShouldEqual, 1)
		So(factor.Clamp(-0.1, 0, 1), ShouldEqual, 0)
		So(factor.Clamp(0.4, 0, 1), ShouldEqual, 0.4)
		So(factor.Clamp(math.NaN(), 0, 1), ShouldEqual, 0)
		So(factor.ClampInt(120, 0, 100), ShouldEqual, 100)
		So(factor.ClampInt(-30, 0, 100), ShouldEqual, 0)
		So(factor.ClampInt(42, 0, 100), ShouldEqual, 42)
	})
}
