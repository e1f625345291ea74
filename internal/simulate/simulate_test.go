package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/trustmatch/internal/adapters/http/api"
	"github.com/okian/trustmatch/internal/adapters/repository"
	service "github.com/okian/trustmatch/internal/app"
	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/model"
	"github.com/okian/trustmatch/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func startServer(wrap func(http.Handler) http.Handler) (*httptest.Server, func()) {
	ctx := context.Background()
	svc, err := service.New(
		service.WithStore(repository.NewMemoryStore(repository.WithMetricsUpdateInterval(-1))),
		service.WithWorkerCount(4),
	)
	So(err, ShouldBeNil)
	So(svc.Start(ctx), ShouldBeNil)

	r := mux.NewRouter()
	api.NewServer(svc).Register(ctx, r)
	var h http.Handler = r
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	return srv, func() {
		srv.Close()
		_ = svc.Stop(ctx)
	}
}

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:      baseURL,
		Subjects:     20,
		Spammers:     3,
		Bursters:     2,
		Duplicates:   5,
		Workers:      4,
		Timeout:      5 * time.Second,
		DrainTimeout: 5 * time.Second,
		Seed:         42,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a fixed seed", t, func() {
		now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
		cfg := testConfig("")

		a := generate(cfg, now)
		b := generate(cfg, now)

		Convey("Then the population is reproducible", func() {
			So(len(a.Profiles), ShouldEqual, len(b.Profiles))
			for i := range a.Profiles {
				So(a.Profiles[i].SubjectID, ShouldEqual, b.Profiles[i].SubjectID)
				So(a.Profiles[i].Skills, ShouldResemble, b.Profiles[i].Skills)
			}
			So(len(a.Activity), ShouldEqual, len(b.Activity))
		})

		Convey("Then every abusive subject is expected to be flagged", func() {
			So(a.Profiles, ShouldHaveLength, 25)
			So(a.Expected, ShouldHaveLength, 5)
			So(a.Expected["spammer-0000"], ShouldEqual, fraud.PatternDuplicateTargetSpam)
			So(a.Expected["burster-0001"], ShouldEqual, fraud.PatternBurstActivityNewAccount)
		})

		Convey("Then every event and profile is valid", func() {
			for _, p := range a.Profiles {
				So(p.Validate(), ShouldBeNil)
			}
			for _, e := range a.Activity {
				So(e.Validate(), ShouldBeNil)
				So(e.At.After(now), ShouldBeFalse)
			}
		})

		Convey("Then replays reuse existing event ids", func() {
			seen := map[string]int{}
			for _, e := range a.Activity {
				seen[e.EventID]++
			}
			So(len(seen), ShouldEqual, len(a.Activity)-cfg.Duplicates)
		})

		Convey("Then spammers hit one target and bursters many", func() {
			targets := map[string]map[string]bool{}
			for _, e := range a.Activity {
				if e.Kind != model.KindReferralRequest {
					continue
				}
				if targets[e.SubjectID] == nil {
					targets[e.SubjectID] = map[string]bool{}
				}
				targets[e.SubjectID][e.TargetID] = true
			}
			So(targets["spammer-0001"], ShouldHaveLength, 1)
			So(targets["burster-0000"], ShouldHaveLength, burstReferrals)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running trustmatch server", t, func() {
		srv, stop := startServer(nil)
		defer stop()

		cfg := testConfig(srv.URL)
		cfg.OutputFile = filepath.Join(t.TempDir(), "out", "activity.json")

		Convey("When the simulation runs", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every abusive subject is flagged and nobody else", func() {
				So(err, ShouldBeNil)
				So(stats.SubjectsSeeded, ShouldEqual, 25)
				So(stats.AlertsExpected, ShouldEqual, 5)
				So(stats.AlertsFound, ShouldEqual, 5)
				So(stats.UnexpectedAlerts, ShouldEqual, 0)
				So(stats.EventsFailed, ShouldEqual, 0)
				So(stats.EventsDuplicate, ShouldEqual, cfg.Duplicates)
				So(stats.EventsAccepted+stats.EventsDuplicate, ShouldEqual, stats.EventsGenerated)
				So(stats.HighTrustSubjects+stats.LowTrustSubjects, ShouldBeLessThanOrEqualTo, 25)
				So(stats.Duration > 0, ShouldBeTrue)
			})

			Convey("Then the generated activity is written out", func() {
				So(err, ShouldBeNil)
				raw, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var events []model.Activity
				So(json.Unmarshal(raw, &events), ShouldBeNil)
				So(events, ShouldHaveLength, stats.EventsGenerated)
			})
		})
	})

	Convey("Given a server that never reports alerts", t, func() {
		srv, stop := startServer(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/alerts" {
					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(`{"items":[],"count":0}`))
					return
				}
				next.ServeHTTP(w, r)
			})
		})
		defer stop()

		cfg := testConfig(srv.URL)
		cfg.Subjects = 2
		cfg.DrainTimeout = 300 * time.Millisecond

		Convey("Then verification fails", func() {
			stats, err := Run(context.Background(), cfg)
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
			So(stats.AlertsFound, ShouldEqual, 0)
		})
	})

	Convey("Given an unreachable server", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("Then the health check fails", func() {
			cfg := testConfig(url)
			cfg.Timeout = time.Second
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrVerification), ShouldBeFalse)
		})
	})
}

func TestSetupLogging(t *testing.T) {
	Convey("Given a log file path", t, func() {
		path := filepath.Join(t.TempDir(), "logs", "sim.log")

		closer, err := SetupLogging(path, true)
		So(err, ShouldBeNil)
		So(closer.Close(), ShouldBeNil)

		Convey("Then log lines land in the file", func() {
			raw, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, "logging to file")
		})

		Reset(func() {
			_ = logger.Init(logger.WithWriter(io.Discard))
		})
	})
}
