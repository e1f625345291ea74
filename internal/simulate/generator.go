package simulate

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
)

// Population sizes for the abusive behaviours. They sit just past the
// detector's default thresholds.
const (
	spamReferrals   = 5
	burstReferrals  = 7
	burstAccountAge = 2 * time.Hour
	maxNormalEvents = 6
)

var (
	skillPool   = []string{"go", "python", "sql", "docker", "kubernetes", "react", "java", "terraform"}
	cityPool    = []string{"Berlin", "Lisbon", "Toronto", "Remote", "Austin", "Nairobi"}
	jobTypePool = []string{"full_time", "part_time", "contract", "remote"}
	normalKinds = []model.ActivityKind{model.KindLogin, model.KindProfileUpdate, model.KindReferralRequest, model.KindJobPost}
)

// Population is the generated workload.
type Population struct {
	Profiles []model.Profile
	Activity []model.Activity
	// Expected maps a subject id to the pattern it should be flagged for.
	Expected map[string]fraud.Pattern
}

// generate builds a deterministic population for cfg.Seed at time now.
func generate(cfg *Config, now time.Time) Population {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	pop := Population{Expected: map[string]fraud.Pattern{}}

	for i := range cfg.Subjects {
		p := randomProfile(rng, fmt.Sprintf("subject-%04d", i), now)
		pop.Profiles = append(pop.Profiles, p)
		// Distinct targets per referral keep normal subjects clear of the
		// same-target heuristic.
		for j := range rng.IntN(maxNormalEvents) + 1 {
			kind := normalKinds[rng.IntN(len(normalKinds))]
			a := event(p.SubjectID, kind, now.Add(-time.Duration(rng.IntN(72*60))*time.Minute))
			if kind == model.KindReferralRequest {
				a.TargetID = fmt.Sprintf("job-%s-%d", p.SubjectID, j)
			}
			pop.Activity = append(pop.Activity, a)
		}
	}

	for i := range cfg.Spammers {
		p := randomProfile(rng, fmt.Sprintf("spammer-%04d", i), now)
		pop.Profiles = append(pop.Profiles, p)
		pop.Expected[p.SubjectID] = fraud.PatternDuplicateTargetSpam
		target := fmt.Sprintf("job-hot-%d", rng.IntN(10))
		for j := range spamReferrals {
			a := event(p.SubjectID, model.KindReferralRequest, now.Add(-time.Duration(j+1)*time.Hour))
			a.TargetID = target
			pop.Activity = append(pop.Activity, a)
		}
	}

	for i := range cfg.Bursters {
		p := model.Profile{
			SubjectID: fmt.Sprintf("burster-%04d", i),
			Role:      model.RoleEmployer,
			CreatedAt: now.Add(-burstAccountAge),
			Title:     "Recruiter",
		}
		pop.Profiles = append(pop.Profiles, p)
		pop.Expected[p.SubjectID] = fraud.PatternBurstActivityNewAccount
		for j := range burstReferrals {
			a := event(p.SubjectID, model.KindReferralRequest, now.Add(-time.Duration(j+1)*time.Minute))
			a.TargetID = fmt.Sprintf("job-%s-%d", p.SubjectID, j)
			pop.Activity = append(pop.Activity, a)
		}
	}

	rng.Shuffle(len(pop.Activity), func(i, j int) {
		pop.Activity[i], pop.Activity[j] = pop.Activity[j], pop.Activity[i]
	})
	for i := 0; i < cfg.Duplicates && len(pop.Activity) > 0; i++ {
		pop.Activity = append(pop.Activity, pop.Activity[rng.IntN(len(pop.Activity))])
	}
	return pop
}

func randomProfile(rng *rand.Rand, id string, now time.Time) model.Profile {
	years := rng.IntN(15)
	made := rng.IntN(20)
	p := model.Profile{
		SubjectID:          id,
		Role:               model.RoleCandidate,
		CreatedAt:          now.AddDate(0, 0, -(30 + rng.IntN(900))),
		EmailVerified:      rng.IntN(4) > 0,
		Skills:             pick(rng, skillPool, 1+rng.IntN(4)),
		YearsExperience:    &years,
		PreferredJobTypes:  pick(rng, jobTypePool, 1+rng.IntN(2)),
		Location:           cityPool[rng.IntN(len(cityPool))],
		WillingToRelocate:  rng.IntN(2) == 0,
		ReferralsMade:      made,
		ReferralsSucceeded: rng.IntN(made + 1),
	}
	if rng.IntN(2) == 0 {
		p.CurrentEmployer = "Acme"
	}
	return p
}

func event(subjectID string, kind model.ActivityKind, at time.Time) model.Activity {
	return model.Activity{
		EventID:   uuid.NewString(),
		SubjectID: subjectID,
		Kind:      kind,
		At:        at.UTC(),
	}
}

func pick(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))[:min(n, len(pool))]
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}
