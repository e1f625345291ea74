package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/trustmatch/internal/config"
)

var configEnvVars = []string{
	"TRUSTMATCH_CONFIG",
	"TRUSTMATCH_ADDR",
	"TRUSTMATCH_QUEUE_SIZE",
	"TRUSTMATCH_WORKER_COUNT",
	"TRUSTMATCH_STORAGE",
	"TRUSTMATCH_BOLT_PATH",
	"TRUSTMATCH_FRAUD_WINDOW_DAYS",
	"TRUSTMATCH_MATCH_WEIGHTS__SKILL",
	"TRUSTMATCH_MATCH_WEIGHTS__SALARY",
	"TRUSTMATCH_KAFKA_BROKERS",
	"TRUSTMATCH_KAFKA_TOPIC",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "trustmatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it matches New()", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When environment variables are set", func() {
			_ = os.Setenv("TRUSTMATCH_ADDR", ":8080")
			_ = os.Setenv("TRUSTMATCH_QUEUE_SIZE", "500")
			_ = os.Setenv("TRUSTMATCH_WORKER_COUNT", "16")
			_ = os.Setenv("TRUSTMATCH_STORAGE", "bolt")
			_ = os.Setenv("TRUSTMATCH_BOLT_PATH", "/var/lib/trustmatch/trust.db")
			_ = os.Setenv("TRUSTMATCH_KAFKA_BROKERS", "k1:9092,k2:9092")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Storage, convey.ShouldEqual, config.StorageBolt)
				convey.So(cfg.BoltPath, convey.ShouldEqual, "/var/lib/trustmatch/trust.db")
				convey.So(cfg.KafkaBrokers, convey.ShouldResemble, []string{"k1:9092", "k2:9092"})
			})
		})

		convey.Convey("When nested weights come from the environment", func() {
			_ = os.Setenv("TRUSTMATCH_MATCH_WEIGHTS__SKILL", "0.5")
			_ = os.Setenv("TRUSTMATCH_MATCH_WEIGHTS__SALARY", "0.0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then only the named weights change", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MatchWeights.Skill, convey.ShouldEqual, 0.5)
				convey.So(cfg.MatchWeights.Salary, convey.ShouldEqual, 0.0)
				convey.So(cfg.MatchWeights.Experience, convey.ShouldEqual, 0.2)
			})
		})

		convey.Convey("When a YAML file is given and env overrides part of it", func() {
			path := writeConfigFile(t, `
addr: ":9090"
worker_count: 24
fraud_window_days: 14
duplicate_target_threshold: 5
match_weights:
  skill: 0.5
  salary: 0.0
kafka_brokers:
  - broker:9092
`)
			_ = os.Setenv("TRUSTMATCH_CONFIG", path)
			_ = os.Setenv("TRUSTMATCH_WORKER_COUNT", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values layer over defaults and env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.FraudWindowDays, convey.ShouldEqual, 14)
				convey.So(cfg.DuplicateTargetThreshold, convey.ShouldEqual, 5)
				convey.So(cfg.MatchWeights.Skill, convey.ShouldEqual, 0.5)
				convey.So(cfg.MatchWeights.Location, convey.ShouldEqual, 0.15)
				convey.So(cfg.KafkaBrokers, convey.ShouldResemble, []string{"broker:9092"})
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When the file is missing or malformed", func() {
			_ = os.Setenv("TRUSTMATCH_CONFIG", "/non/existent/file.yaml")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)

			_ = os.Setenv("TRUSTMATCH_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))
			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a value does not parse", func() {
			_ = os.Setenv("TRUSTMATCH_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded config is invalid", func() {
			_ = os.Setenv("TRUSTMATCH_ADDR", "")
			_ = os.Setenv("TRUSTMATCH_STORAGE", "bolt")
			_ = os.Setenv("TRUSTMATCH_BOLT_PATH", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}
