package trust_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/trustmatch/internal/domain/trust"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newCalculator() *trust.Calculator {
	return trust.NewCalculator(trust.WithClock(func() time.Time { return fixedNow }))
}

func rate(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func awarded(s trust.Score, name string) float64 {
	for _, f := range s.Factors {
		if string(f.Name) == name {
			return f.Awarded
		}
	}
	return -1
}

func TestCalculator_Calculate(t *testing.T) {
	Convey("Given a trust calculator", t, func() {
		calc := newCalculator()

		Convey("When scoring a subject with no facts at all", func() {
			res, err := calc.Calculate(trust.Facts{SubjectID: "u1"}, nil, "")

			Convey("Then only the base counts and every factor is still recorded", func() {
				So(err, ShouldBeNil)
				So(res.Score.Score, ShouldEqual, 50)
				So(res.Score.Level, ShouldEqual, trust.LevelMedium)
				So(res.Score.Trend, ShouldEqual, trust.TrendStable)
				So(res.Score.PreviousScore, ShouldBeNil)
				So(len(res.Score.Factors), ShouldEqual, 7)
				So(awarded(res.Score, "referral_success_rate"), ShouldEqual, 0.0)
				So(res.Score.ComputedAt, ShouldEqual, fixedNow)
			})

			Convey("Then the ledger entry mirrors the score", func() {
				So(res.History.SubjectID, ShouldEqual, "u1")
				So(res.History.Score, ShouldEqual, 50)
				So(res.History.Delta, ShouldEqual, 0)
				So(res.History.Reason, ShouldEqual, trust.DefaultReason)
				So(res.History.Factors, ShouldResemble, res.Score.Factors)
			})
		})

		Convey("When scoring a fully established subject", func() {
			facts := trust.Facts{
				SubjectID:              "u2",
				AccountAgeDays:         400,
				EmailVerified:          true,
				ProfileSignals:         []bool{true, true, true, true},
				ReferralSuccessRate:    rate(0.6),
				RecentActivityCount30d: 9,
			}
			res, err := calc.Calculate(facts, nil, "initial")

			Convey("Then the total is clamped to 100", func() {
				So(err, ShouldBeNil)
				So(res.Score.Score, ShouldEqual, 100)
				So(res.Score.Level, ShouldEqual, trust.LevelHigh)
				So(awarded(res.Score, "profile_completeness"), ShouldEqual, 15.0)
				So(res.History.Reason, ShouldEqual, "initial")
			})
		})

		Convey("When many fraud alerts are open", func() {
			res, err := calc.Calculate(trust.Facts{SubjectID: "u3", OpenFraudAlertCount: 8}, nil, "")

			Convey("Then the total is clamped to 0", func() {
				So(err, ShouldBeNil)
				So(res.Score.Score, ShouldEqual, 0)
				So(res.Score.Level, ShouldEqual, trust.LevelLow)
				So(awarded(res.Score, "fraud_penalty"), ShouldEqual, -80.0)
			})
		})

		Convey("When a subject has referrals with zero success", func() {
			res, err := calc.Calculate(trust.Facts{SubjectID: "u4", ReferralSuccessRate: rate(0)}, nil, "")

			Convey("Then it still earns the minimum referral award", func() {
				So(err, ShouldBeNil)
				So(awarded(res.Score, "referral_success_rate"), ShouldEqual, 5.0)
				So(res.Score.Score, ShouldEqual, 55)
			})
		})

		Convey("When checking referral and activity steps", func() {
			cases := []struct {
				rate float64
				want float64
			}{{0.5, 25}, {0.49, 15}, {0.25, 15}, {0.1, 10}, {0.09, 5}}
			for _, c := range cases {
				res, err := calc.Calculate(trust.Facts{ReferralSuccessRate: rate(c.rate)}, nil, "")
				So(err, ShouldBeNil)
				So(awarded(res.Score, "referral_success_rate"), ShouldEqual, c.want)
			}
			activity := map[int]float64{0: 0, 1: 0, 2: 5, 4: 5, 5: 10, 50: 10}
			for count, want := range activity {
				res, err := calc.Calculate(trust.Facts{RecentActivityCount30d: count}, nil, "")
				So(err, ShouldBeNil)
				So(awarded(res.Score, "recent_activity"), ShouldEqual, want)
			}
		})

		Convey("When the facts are malformed", func() {
			_, errAge := calc.Calculate(trust.Facts{AccountAgeDays: -1}, nil, "")
			_, errRate := calc.Calculate(trust.Facts{ReferralSuccessRate: rate(1.5)}, nil, "")
			_, errAlerts := calc.Calculate(trust.Facts{OpenFraudAlertCount: -2}, nil, "")
			_, errActivity := calc.Calculate(trust.Facts{RecentActivityCount30d: -2}, nil, "")
			_, errPrev := calc.Calculate(trust.Facts{}, intp(101), "")

			Convey("Then they fail fast instead of clamping", func() {
				So(errors.Is(errAge, trust.ErrInvalidFacts), ShouldBeTrue)
				So(errors.Is(errRate, trust.ErrInvalidFacts), ShouldBeTrue)
				So(errors.Is(errAlerts, trust.ErrInvalidFacts), ShouldBeTrue)
				So(errors.Is(errActivity, trust.ErrInvalidFacts), ShouldBeTrue)
				So(errors.Is(errPrev, trust.ErrInvalidPrevious), ShouldBeTrue)
			})
		})
	})
}

func TestCalculator_Properties(t *testing.T) {
	Convey("Given a trust calculator", t, func() {
		calc := newCalculator()

		Convey("Then the score stays in [0,100] across a grid of facts", func() {
			for _, age := range []int{0, 29, 30, 365, 5000} {
				for _, alerts := range []int{0, 1, 3, 12} {
					for _, verified := range []bool{false, true} {
						res, err := calc.Calculate(trust.Facts{
							AccountAgeDays:         age,
							EmailVerified:          verified,
							OpenFraudAlertCount:    alerts,
							ProfileSignals:         []bool{true, true, true},
							ReferralSuccessRate:    rate(0.7),
							RecentActivityCount30d: 10,
						}, nil, "")
						So(err, ShouldBeNil)
						So(res.Score.Score, ShouldBeBetweenOrEqual, 0, 100)
					}
				}
			}
		})

		Convey("Then identical inputs give identical results", func() {
			facts := trust.Facts{SubjectID: "u", AccountAgeDays: 120, EmailVerified: true, ProfileSignals: []bool{true, false}, ReferralSuccessRate: rate(0.3)}
			a, errA := calc.Calculate(facts, intp(40), "manual")
			b, errB := calc.Calculate(facts, intp(40), "manual")
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(a, ShouldResemble, b)
		})

		Convey("Then the age contribution never decreases with age", func() {
			last := -1.0
			for age := 0; age <= 400; age++ {
				res, err := calc.Calculate(trust.Facts{AccountAgeDays: age}, nil, "")
				So(err, ShouldBeNil)
				got := awarded(res.Score, "account_age")
				So(got, ShouldBeGreaterThanOrEqualTo, last)
				last = got
			}
			So(last, ShouldEqual, 20.0)
		})

		Convey("Then more open alerts never raise the score", func() {
			last := 101
			for alerts := 0; alerts <= 12; alerts++ {
				res, err := calc.Calculate(trust.Facts{AccountAgeDays: 400, EmailVerified: true, OpenFraudAlertCount: alerts}, nil, "")
				So(err, ShouldBeNil)
				So(res.Score.Score, ShouldBeLessThanOrEqualTo, last)
				last = res.Score.Score
			}
		})
	})
}

func TestTrend(t *testing.T) {
	Convey("Given previous scores", t, func() {
		So(trust.TrendFor(46, intp(40)), ShouldEqual, trust.TrendStable)
		So(trust.TrendFor(45, intp(40)), ShouldEqual, trust.TrendStable)
		So(trust.TrendFor(50, intp(40)), ShouldEqual, trust.TrendUp)
		So(trust.TrendFor(40, intp(50)), ShouldEqual, trust.TrendDown)
		So(trust.TrendFor(80, nil), ShouldEqual, trust.TrendStable)
	})

	Convey("Given a recalculation against a stored score", t, func() {
		calc := newCalculator()
		// 50 base + 5 age + 10 email = 65
		res, err := calc.Calculate(trust.Facts{AccountAgeDays: 30, EmailVerified: true}, intp(50), "")

		So(err, ShouldBeNil)
		So(res.Score.Score, ShouldEqual, 65)
		So(res.Score.Trend, ShouldEqual, trust.TrendUp)
		So(*res.Score.PreviousScore, ShouldEqual, 50)
		So(res.History.Delta, ShouldEqual, 15)
	})
}

func TestLevelFor(t *testing.T) {
	Convey("Given level boundaries", t, func() {
		So(trust.LevelFor(71), ShouldEqual, trust.LevelHigh)
		So(trust.LevelFor(70), ShouldEqual, trust.LevelMedium)
		So(trust.LevelFor(31), ShouldEqual, trust.LevelMedium)
		So(trust.LevelFor(30), ShouldEqual, trust.LevelLow)
		So(trust.LevelFor(0), ShouldEqual, trust.LevelLow)
	})
}
