// Package app assembles the autopilot from configuration. The server, the
// worker and the CLI all start from New.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/eventnexus/autopilot/internal/api"
	"github.com/eventnexus/autopilot/internal/archive"
	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/engine"
	"github.com/eventnexus/autopilot/internal/metrics"
	"github.com/eventnexus/autopilot/internal/notify"
	"github.com/eventnexus/autopilot/internal/pkg/distlock"
	"github.com/eventnexus/autopilot/internal/pkg/logger"
	"github.com/eventnexus/autopilot/internal/repository/memory"
	"github.com/eventnexus/autopilot/internal/repository/postgres"
	"github.com/eventnexus/autopilot/internal/scheduler"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
	"github.com/eventnexus/autopilot/internal/social"
	"github.com/eventnexus/autopilot/internal/telemetry"
)

// App holds the wired service and the connections it owns.
type App struct {
	Config  *config.Config
	Service *autopilot.Service
	Metrics *telemetry.Metrics
	Health  *api.HealthChecker

	// DB and Redis are nil when not configured. Without a database the
	// service runs on the in-memory store.
	DB    *sql.DB
	Redis *redis.Client

	log *logger.Logger
}

// New connects to the configured backends and builds the service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.PIIRedaction())

	a := &App{Config: cfg, log: logger.With("component", "app")}

	var (
		repos  autopilot.Repositories
		source autopilot.SnapshotSource
	)
	if cfg.Database.URL != "" {
		db, err := openDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		repos = postgres.NewRepositories(db)
		source = metrics.NewAggregator(postgres.NewCounterSource(db))
		a.log.Info("app: connected to PostgreSQL")
	} else {
		store := memory.NewStore()
		repos = store.Repositories()
		source = metrics.NewAggregator(store)
		a.log.Warn("app: DATABASE_URL not set, using the in-memory store")
	}

	a.Redis = openRedis(ctx, cfg.Redis, a.log)

	deps := autopilot.Deps{
		Repos:  repos,
		Source: source,
		Locks:  distlock.NewLocker(a.Redis, a.DB),
	}

	a.Metrics = telemetry.New(nil)
	deps.Recorder = a.Metrics

	opts := Options(cfg.Autopilot)
	if cfg.Social.Enabled {
		d := social.NewDispatcherFromConfig(cfg.Social)
		deps.Publisher = d
		opts.Platforms = d.Platforms()
		a.log.Info("app: social cross-posting enabled", "platforms", opts.Platforms)
	}

	var bucket api.BucketAPI
	if cfg.Archive.Enabled {
		client, err := archive.NewS3Client(ctx, cfg.Archive)
		if err != nil {
			a.Close()
			return nil, err
		}
		if cfg.Archive.Bucket == "" {
			a.Close()
			return nil, errors.New("archive: bucket is required")
		}
		deps.Archiver = archive.New(client, cfg.Archive.Bucket, cfg.Archive.Prefix)
		bucket = client
		a.log.Info("app: run archive enabled", "bucket", cfg.Archive.Bucket)
	}

	if cfg.Notify.Enabled {
		n, err := notify.NewFromConfig(ctx, cfg.Notify)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("notify: %w", err)
		}
		deps.Notifier = n
		a.log.Info("app: failure notifications enabled", "recipients", len(cfg.Notify.To))
	}

	a.Service = autopilot.Build(deps, opts, cfg.Autopilot.CycleWindow())
	a.Health = api.NewHealthChecker(a.DB, a.Redis, bucket, cfg.Archive.Bucket)

	if cfg.Autopilot.SeedRules {
		n, err := a.Service.SeedDefaultRules(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed rules: %w", err)
		}
		if n > 0 {
			a.log.Info("app: seeded default rules", "count", n)
		}
	}
	return a, nil
}

// Server returns the operator API server over the app's service.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Config.Server, a.Service, a.Health, a.Metrics.Handler())
}

// Scheduler returns a cron scheduler that runs cycles on the configured
// schedule. It is not started.
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Service, a.Config.Autopilot.Schedule)
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// Options converts the autopilot config into cycle options.
func Options(cfg config.AutopilotConfig) autopilot.Options {
	return autopilot.Options{
		Concurrency: cfg.Concurrency,
		RunTimeout:  cfg.RunTimeout(),
		LockTTL:     cfg.LockTTL(),
		TrendWindow: cfg.TrendWindow,
		Thresholds:  Thresholds(cfg),
	}
}

// Thresholds overlays the configured reference policy on the defaults.
// Zero fields keep the default.
func Thresholds(cfg config.AutopilotConfig) engine.Thresholds {
	th := engine.DefaultThresholds()
	c := cfg.Thresholds
	setFloat(&th.PauseROIBelow, c.PauseROIBelow)
	setFloat(&th.PauseMinSpend, c.PauseMinSpend)
	setFloat(&th.ScaleUpROIAtLeast, c.ScaleUpROIAtLeast)
	setInt(&th.ScaleUpMinConversions, c.ScaleUpMinConversions)
	setFloat(&th.ScaleUpPercent, c.ScaleUpPercent)
	setFloat(&th.ScaleDownROIBelow, c.ScaleDownROIBelow)
	setFloat(&th.ScaleDownMinSpend, c.ScaleDownMinSpend)
	setFloat(&th.ScaleDownPercent, c.ScaleDownPercent)
	setFloat(&th.PostCTRAbove, c.PostCTRAbove)
	setInt(&th.PostMinImpressions, c.PostMinImpressions)
	th.MaxDailyBudget = cfg.MaxDailyBudget
	return th
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int64, v int64) {
	if v != 0 {
		*dst = v
	}
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Lifetime())
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// openRedis returns nil when Redis is not configured or unreachable, in
// which case locks fall back to PostgreSQL advisory locks.
func openRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		log.Info("app: Redis not configured, using advisory locks")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("app: Redis unreachable, falling back to advisory locks", "addr", cfg.Addr, "error", err.Error())
		client.Close()
		return nil
	}
	log.Info("app: Redis connected", "addr", cfg.Addr)
	return client
}
