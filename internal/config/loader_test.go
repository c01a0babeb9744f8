package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/leaguemaker/internal/config"
	"github.com/okian/leaguemaker/internal/domain/clock"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("LEAGUE_ADDR", ":8080")
			_ = os.Setenv("LEAGUE_QUEUE_SIZE", "64")
			_ = os.Setenv("LEAGUE_WORKER_COUNT", "2")
			_ = os.Setenv("LEAGUE_HALF_DURATION_SECONDS", "1200")
			_ = os.Setenv("LEAGUE_CLOCK_MODE", "auto")
			_ = os.Setenv("LEAGUE_STORE_DRIVER", "sqlite")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.HalfDurationSeconds, convey.ShouldEqual, 1200)
				convey.So(cfg.Mode(), convey.ShouldEqual, clock.ModeAuto)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "leaguemaker.db")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
addr: ":9090"
queue_size: 300
worker_count: 24
tick_interval_ms: 100
persist_retries: 5
`)
			_ = os.Setenv("LEAGUE_CONFIG", path)
			_ = os.Setenv("LEAGUE_WORKER_COUNT", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.TickIntervalMS, convey.ShouldEqual, 100)
				convey.So(cfg.PersistRetries, convey.ShouldEqual, 5)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, config.New().DedupeSize)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("LEAGUE_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("LEAGUE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("LEAGUE_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown clock mode", func() {
			_ = os.Setenv("LEAGUE_CLOCK_MODE", "sometimes")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("LEAGUE_QUEUE_SIZE", "lots")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "league.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"LEAGUE_CONFIG", "LEAGUE_ADDR", "LEAGUE_QUEUE_SIZE", "LEAGUE_WORKER_COUNT",
		"LEAGUE_HALF_DURATION_SECONDS", "LEAGUE_CLOCK_MODE", "LEAGUE_STORE_DRIVER",
	} {
		_ = os.Unsetenv(key)
	}
}
