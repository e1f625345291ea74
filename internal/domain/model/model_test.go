package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func intPtr(v int) *int { return &v }

func TestProfile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	convey.Convey("Given a candidate profile", t, func() {
		p := model.Profile{
			SubjectID:          "cand-1",
			Role:               model.RoleCandidate,
			CreatedAt:          now.Add(-40*24*time.Hour - time.Hour),
			EmailVerified:      true,
			Skills:             []string{"go"},
			YearsExperience:    intPtr(4),
			Location:           "Berlin",
			ReferralsMade:      4,
			ReferralsSucceeded: 1,
		}

		convey.Convey("When facts are derived", func() {
			f := p.Facts(now, 3, 1)

			convey.Convey("Then they reflect the stored profile", func() {
				convey.So(f.SubjectID, convey.ShouldEqual, "cand-1")
				convey.So(f.AccountAgeDays, convey.ShouldEqual, 40)
				convey.So(f.EmailVerified, convey.ShouldBeTrue)
				convey.So(f.ProfileSignals, convey.ShouldResemble, []bool{true, true, false})
				convey.So(*f.ReferralSuccessRate, convey.ShouldEqual, 0.25)
				convey.So(f.RecentActivityCount30d, convey.ShouldEqual, 3)
				convey.So(f.OpenFraudAlertCount, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When no referral was made yet", func() {
			p.ReferralsMade, p.ReferralsSucceeded = 0, 0

			convey.Convey("Then the success rate is unknown, not zero", func() {
				convey.So(p.ReferralSuccessRate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the creation time lies in the future", func() {
			p.CreatedAt = now.Add(time.Hour)

			convey.Convey("Then the age degrades to zero", func() {
				convey.So(p.AccountAgeDays(now), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When projected as a match candidate", func() {
			c := p.Candidate()

			convey.Convey("Then the match fields carry over", func() {
				convey.So(c.ID, convey.ShouldEqual, "cand-1")
				convey.So(c.Skills, convey.ShouldResemble, []string{"go"})
				convey.So(*c.YearsExperience, convey.ShouldEqual, 4)
				convey.So(c.Location, convey.ShouldEqual, "Berlin")
			})
		})

		convey.Convey("Then it validates", func() {
			convey.So(p.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given an employer profile", t, func() {
		p := model.Profile{SubjectID: "emp-1", Role: model.RoleEmployer, Title: "Staff Engineer", CompanyID: "acme"}

		convey.Convey("Then completeness uses employer signals", func() {
			convey.So(p.CompletenessSignals(), convey.ShouldResemble, []bool{true, false, true})
		})
	})

	convey.Convey("Given malformed profiles", t, func() {
		bad := []model.Profile{
			{Role: model.RoleCandidate},
			{SubjectID: "x", Role: "admin"},
			{SubjectID: "x", Role: model.RoleCandidate, YearsExperience: intPtr(-1)},
			{SubjectID: "x", Role: model.RoleCandidate, ReferralsMade: -1},
			{SubjectID: "x", Role: model.RoleCandidate, ReferralsMade: 1, ReferralsSucceeded: 2},
		}

		convey.Convey("Then each is rejected", func() {
			for _, p := range bad {
				convey.So(errors.Is(p.Validate(), model.ErrInvalidProfile), convey.ShouldBeTrue)
			}
		})
	})
}

func TestActivity(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	convey.Convey("Given a referral request", t, func() {
		a := model.Activity{EventID: "e1", SubjectID: "u1", Kind: model.KindReferralRequest, TargetID: "job-1", At: at}

		convey.Convey("Then it validates and projects onto a fraud action", func() {
			convey.So(a.Validate(), convey.ShouldBeNil)
			act := a.Action()
			convey.So(act.Kind, convey.ShouldEqual, fraud.ActionReferralRequest)
			convey.So(act.TargetID, convey.ShouldEqual, "job-1")
			convey.So(act.ID, convey.ShouldEqual, "e1")
			convey.So(model.Actions([]model.Activity{a, a}), convey.ShouldHaveLength, 2)
		})
	})

	convey.Convey("Given malformed activity", t, func() {
		bad := []model.Activity{
			{SubjectID: "u1", Kind: model.KindLogin, At: at},
			{EventID: "e1", Kind: model.KindLogin, At: at},
			{EventID: "e1", SubjectID: "u1", Kind: "like", At: at},
			{EventID: "e1", SubjectID: "u1", Kind: model.KindLogin},
			{EventID: "e1", SubjectID: "u1", Kind: model.KindReferralRequest, At: at},
		}

		convey.Convey("Then each is rejected", func() {
			for _, a := range bad {
				convey.So(errors.Is(a.Validate(), model.ErrInvalidActivity), convey.ShouldBeTrue)
			}
		})
	})
}
