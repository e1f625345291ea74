package fraud_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/trustmatch/internal/domain/fraud"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newDetector(opts ...fraud.Option) *fraud.Detector {
	n := 0
	base := []fraud.Option{
		fraud.WithClock(func() time.Time { return now }),
		fraud.WithIDGenerator(func() string { n++; return fmt.Sprintf("alert-%d", n) }),
	}
	return fraud.NewDetector(append(base, opts...)...)
}

func referrals(target string, n int, start time.Time) []fraud.Action {
	out := make([]fraud.Action, n)
	for i := range out {
		out[i] = fraud.Action{
			ID:       fmt.Sprintf("%s-%d", target, i),
			Kind:     fraud.ActionReferralRequest,
			TargetID: target,
			At:       start.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

// oldAccount keeps the burst heuristic quiet.
func oldAccount(actions []fraud.Action) fraud.Window {
	return fraud.Window{
		SubjectID:        "u1",
		AccountCreatedAt: now.Add(-90 * 24 * time.Hour),
		Since:            now.Add(-7 * 24 * time.Hour),
		Actions:          actions,
	}
}

func TestDetector_DuplicateTargetSpam(t *testing.T) {
	Convey("Given a detector with default thresholds", t, func() {
		d := newDetector()

		Convey("When a subject sends 4 requests to the same job", func() {
			alerts, err := d.Detect("u1", oldAccount(referrals("job-1", 4, now.Add(-time.Hour))), nil)

			Convey("Then exactly one medium alert is raised", func() {
				So(err, ShouldBeNil)
				So(len(alerts), ShouldEqual, 1)
				a := alerts[0]
				So(a.Pattern, ShouldEqual, fraud.PatternDuplicateTargetSpam)
				So(a.RiskLevel, ShouldEqual, fraud.RiskMedium)
				So(a.Status, ShouldEqual, fraud.StatusOpen)
				So(a.SubjectID, ShouldEqual, "u1")
				So(a.Evidence["target_id"], ShouldEqual, "job-1")
				So(a.Evidence["count"], ShouldEqual, 4)
				So(a.CreatedAt, ShouldEqual, now)
			})
		})

		Convey("When a subject sends 3 requests to the same job", func() {
			alerts, err := d.Detect("u1", oldAccount(referrals("job-1", 3, now.Add(-time.Hour))), nil)

			Convey("Then nothing is raised", func() {
				So(err, ShouldBeNil)
				So(alerts, ShouldBeEmpty)
			})
		})

		Convey("When requests spread over several jobs", func() {
			actions := append(referrals("job-b", 5, now.Add(-2*time.Hour)), referrals("job-a", 6, now.Add(-time.Hour))...)
			actions = append(actions, referrals("job-c", 2, now.Add(-time.Hour))...)
			alerts, err := d.Detect("u1", oldAccount(actions), nil)

			Convey("Then one alert per offending job is raised in job order", func() {
				So(err, ShouldBeNil)
				So(len(alerts), ShouldEqual, 2)
				So(alerts[0].Evidence["target_id"], ShouldEqual, "job-a")
				So(alerts[1].Evidence["target_id"], ShouldEqual, "job-b")
			})
		})

		Convey("When requests fall before the window", func() {
			alerts, err := d.Detect("u1", oldAccount(referrals("job-1", 6, now.Add(-30*24*time.Hour))), nil)

			Convey("Then they are ignored", func() {
				So(err, ShouldBeNil)
				So(alerts, ShouldBeEmpty)
			})
		})

		Convey("When non-referral actions repeat", func() {
			actions := referrals("job-1", 6, now.Add(-time.Hour))
			for i := range actions {
				actions[i].Kind = "profile_update"
			}
			alerts, err := d.Detect("u1", oldAccount(actions), nil)

			Convey("Then they do not count", func() {
				So(err, ShouldBeNil)
				So(alerts, ShouldBeEmpty)
			})
		})
	})
}

func TestDetector_BurstActivityNewAccount(t *testing.T) {
	Convey("Given a detector with default thresholds", t, func() {
		d := newDetector()
		created := now.Add(-3 * time.Hour)
		spread := func(n int) []fraud.Action {
			var out []fraud.Action
			for i := 0; i < n; i++ {
				out = append(out, referrals(fmt.Sprintf("job-%d", i), 1, created.Add(time.Duration(i+1)*time.Minute))...)
			}
			return out
		}

		Convey("When a 3h old account sends 6 requests", func() {
			w := fraud.Window{SubjectID: "u2", AccountCreatedAt: created, Actions: spread(6)}
			alerts, err := d.Detect("u2", w, nil)

			Convey("Then a high risk alert is raised with age and count", func() {
				So(err, ShouldBeNil)
				So(len(alerts), ShouldEqual, 1)
				So(alerts[0].Pattern, ShouldEqual, fraud.PatternBurstActivityNewAccount)
				So(alerts[0].RiskLevel, ShouldEqual, fraud.RiskHigh)
				So(alerts[0].Evidence["account_age_hours"], ShouldEqual, 3)
				So(alerts[0].Evidence["activity_count"], ShouldEqual, 6)
			})
		})

		Convey("When the same account sends exactly 5", func() {
			w := fraud.Window{SubjectID: "u2", AccountCreatedAt: created, Actions: spread(5)}
			alerts, err := d.Detect("u2", w, nil)

			Convey("Then nothing is raised", func() {
				So(err, ShouldBeNil)
				So(alerts, ShouldBeEmpty)
			})
		})

		Convey("When the account is a day old", func() {
			w := fraud.Window{SubjectID: "u2", AccountCreatedAt: now.Add(-24 * time.Hour), Actions: spread(10)}
			alerts, err := d.Detect("u2", w, nil)

			Convey("Then it is no longer new", func() {
				So(err, ShouldBeNil)
				So(alerts, ShouldBeEmpty)
			})
		})

		Convey("When the creation time is unknown", func() {
			w := fraud.Window{SubjectID: "u2", Actions: spread(10)}
			alerts, err := d.Detect("u2", w, nil)

			Convey("Then the heuristic does not fire", func() {
				So(err, ShouldBeNil)
				So(alerts, ShouldBeEmpty)
			})
		})
	})
}

func TestDetector_Idempotence(t *testing.T) {
	Convey("Given a window that triggers both heuristics", t, func() {
		d := newDetector()
		created := now.Add(-2 * time.Hour)
		w := fraud.Window{SubjectID: "u3", AccountCreatedAt: created, Actions: referrals("job-9", 7, created.Add(time.Minute))}

		first, err := d.Detect("u3", w, nil)
		So(err, ShouldBeNil)
		So(len(first), ShouldEqual, 2)

		Convey("When detection runs again with the first output as existing alerts", func() {
			second, err := d.Detect("u3", w, first)

			Convey("Then no new alert is raised", func() {
				So(err, ShouldBeNil)
				So(second, ShouldBeEmpty)
			})
		})

		Convey("When more requests land in the same window", func() {
			w.Actions = append(w.Actions, referrals("job-9", 2, now.Add(-time.Minute))...)
			report, err := d.Run("u3", w, first)

			Convey("Then the growing counts are suppressed, not re-raised", func() {
				So(err, ShouldBeNil)
				So(report.Raised, ShouldBeEmpty)
				So(report.Suppressed[fraud.PatternDuplicateTargetSpam], ShouldEqual, 1)
				So(report.Suppressed[fraud.PatternBurstActivityNewAccount], ShouldEqual, 1)
			})
		})

		Convey("When the earlier alerts were already resolved", func() {
			resolved := make([]fraud.Alert, len(first))
			for i, a := range first {
				r, err := a.Transition(fraud.StatusResolved, "admin", now)
				So(err, ShouldBeNil)
				resolved[i] = r
			}
			again, err := d.Detect("u3", w, resolved)

			Convey("Then the patterns are raised afresh", func() {
				So(err, ShouldBeNil)
				So(len(again), ShouldEqual, 2)
			})
		})

		Convey("When existing alerts belong to another subject", func() {
			other := make([]fraud.Alert, len(first))
			copy(other, first)
			for i := range other {
				other[i].SubjectID = "someone-else"
			}
			again, err := d.Detect("u3", w, other)

			Convey("Then they do not suppress anything", func() {
				So(err, ShouldBeNil)
				So(len(again), ShouldEqual, 2)
			})
		})
	})
}

type nightOwl struct{}

func (nightOwl) Pattern() fraud.Pattern { return "night_activity" }

func (nightOwl) Evaluate(w fraud.Window, _ time.Time) []fraud.Finding {
	for _, a := range w.Actions {
		if a.At.Hour() < 4 {
			return []fraud.Finding{{Pattern: "night_activity", RiskLevel: fraud.RiskLow, Evidence: fraud.Evidence{"action_id": a.ID}}}
		}
	}
	return nil
}

func TestDetector_Options(t *testing.T) {
	Convey("Given a detector with custom thresholds and an extra heuristic", t, func() {
		d := newDetector(
			fraud.WithDuplicateTargetThreshold(1),
			fraud.WithBurstThresholds(48*time.Hour, 1),
			fraud.WithHeuristics(nightOwl{}),
		)

		So(d.Patterns(), ShouldResemble, []fraud.Pattern{
			fraud.PatternDuplicateTargetSpam,
			fraud.PatternBurstActivityNewAccount,
			"night_activity",
		})

		Convey("When the window trips every heuristic", func() {
			created := now.Add(-30 * time.Hour)
			actions := referrals("job-1", 2, time.Date(2026, 5, 10, 2, 0, 0, 0, time.UTC))
			alerts, err := d.Detect("u4", fraud.Window{AccountCreatedAt: created, Actions: actions}, nil)

			Convey("Then each raises independently", func() {
				So(err, ShouldBeNil)
				So(len(alerts), ShouldEqual, 3)
				So(alerts[2].Pattern, ShouldEqual, fraud.Pattern("night_activity"))
				So(alerts[0].ID, ShouldNotEqual, alerts[1].ID)
			})
		})
	})
}

func TestDetector_InvalidInput(t *testing.T) {
	Convey("Given a detector", t, func() {
		d := newDetector()

		Convey("When the subject id is empty", func() {
			_, err := d.Detect("  ", fraud.Window{}, nil)
			So(errors.Is(err, fraud.ErrInvalidWindow), ShouldBeTrue)
		})

		Convey("When the window belongs to another subject", func() {
			_, err := d.Detect("u1", fraud.Window{SubjectID: "u2"}, nil)
			So(errors.Is(err, fraud.ErrInvalidWindow), ShouldBeTrue)
		})

		Convey("When the window is inverted", func() {
			_, err := d.Detect("u1", fraud.Window{Since: now, Until: now.Add(-time.Hour)}, nil)
			So(errors.Is(err, fraud.ErrInvalidWindow), ShouldBeTrue)
		})

		Convey("When the window is empty", func() {
			alerts, err := d.Detect("u1", fraud.Window{}, nil)
			So(err, ShouldBeNil)
			So(alerts, ShouldBeEmpty)
		})
	})
}
