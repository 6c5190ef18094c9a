package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/config"
	"github.com/kailas-cloud/invoicegate/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/invoicegate/internal/db/redis"
	"github.com/kailas-cloud/invoicegate/internal/identity"
	logpkg "github.com/kailas-cloud/invoicegate/internal/logger"
	"github.com/kailas-cloud/invoicegate/internal/metrics"
	"github.com/kailas-cloud/invoicegate/internal/ratelimit"
	agentrepo "github.com/kailas-cloud/invoicegate/internal/repository/agent"
	invoicerepo "github.com/kailas-cloud/invoicegate/internal/repository/invoice"
	perfrepo "github.com/kailas-cloud/invoicegate/internal/repository/performance"
	healthuc "github.com/kailas-cloud/invoicegate/internal/usecase/health"
	invoiceuc "github.com/kailas-cloud/invoicegate/internal/usecase/invoice"
	perfuc "github.com/kailas-cloud/invoicegate/internal/usecase/performance"
	"github.com/kailas-cloud/invoicegate/internal/version"
)

// app is the composition root shared by the serve and mcp commands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *postgres.Store
	perf     *postgres.Store // nil when performance reads share store
	counters *dbRedis.Store

	invoices    *invoiceuc.Service
	performance *perfuc.Service // nil when disabled
	health      *healthuc.Service
	resolver    identity.Resolver
	limiter     ratelimit.Limiter
}

func loadConfig(env string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, env string) (*app, error) {
	cfg, logger, err := loadConfig(env)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting invoicegate",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_host", cfg.Database.Host),
		zap.String("db_view", cfg.Database.View),
		zap.String("identity_mode", cfg.Identity.Mode),
	)

	dbCfg := cfg.Database
	store, err := postgres.NewStore(storeConfig(dbCfg, dbCfg.Name))
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store}

	if err := store.WaitForReady(ctx, seconds(dbCfg.ReadinessTimeout)); err != nil {
		a.close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	// Register query metrics explicitly (no init())
	metrics.RegisterQueryMetrics()

	repo := invoicerepo.New(store, dbCfg.View)
	a.invoices = invoiceuc.New(invoiceuc.NewInstrumentedRepository(repo), invoiceuc.Config{
		QueryTimeout: seconds(dbCfg.QueryTimeoutSec),
		DefaultLimit: cfg.Listing.DefaultLimit,
	})

	directory := agentrepo.NewDirectory(store, dbCfg.AgentTable)
	if err := a.buildPerformance(ctx, directory); err != nil {
		a.close()
		return nil, err
	}

	// Pass nil interface (not typed nil pointer!) when the directory is unused.
	var dir identity.Directory
	if cfg.Identity.Mode == identity.ModeEmail {
		dir = directory
	}
	a.resolver, err = identity.New(identity.Config{
		Mode:         cfg.Identity.Mode,
		DefaultAgent: cfg.Identity.DefaultAgent,
		JWTSecret:    cfg.Identity.JWTSecret,
		JWTIssuer:    cfg.Identity.JWTIssuer,
	}, dir)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create identity resolver: %w", err)
	}

	if err := a.buildLimiter(ctx); err != nil {
		a.close()
		return nil, err
	}

	var rateLimitPinger healthuc.Pinger
	if a.counters != nil {
		rateLimitPinger = a.counters
	}
	a.health = healthuc.New(store, rateLimitPinger)

	return a, nil
}

// buildPerformance wires the performance and zone queries. They read a
// second database when performance.database names one.
func (a *app) buildPerformance(ctx context.Context, dir *agentrepo.Directory) error {
	pc := a.cfg.Performance
	if !pc.Enabled {
		return nil
	}

	conns, dbName := a.store, a.cfg.Database.Name
	if pc.Database != "" && pc.Database != dbName {
		perf, err := postgres.NewStore(storeConfig(a.cfg.Database, pc.Database))
		if err != nil {
			return fmt.Errorf("create performance store: %w", err)
		}
		a.perf = perf
		if err := perf.WaitForReady(ctx, seconds(a.cfg.Database.ReadinessTimeout)); err != nil {
			return fmt.Errorf("performance database not ready: %w", err)
		}
		conns, dbName = perf, pc.Database
	}

	repo := perfrepo.New(conns, perfrepo.Tables{
		View:   pc.View,
		Agents: pc.AgentsTable,
		Zones:  pc.ZonesTable,
	})
	a.performance = perfuc.New(perfuc.NewInstrumentedRepository(repo), dir, perfuc.Config{
		QueryTimeout: seconds(a.cfg.Database.QueryTimeoutSec),
	})
	a.logger.Info("Performance queries enabled",
		zap.String("db_name", dbName),
		zap.String("view", pc.View),
	)
	return nil
}

func (a *app) buildLimiter(ctx context.Context) error {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		a.limiter = ratelimit.Nop{}
		return nil
	}

	limCfg := ratelimit.Config{
		Backend:           rl.Backend,
		RequestsPerMinute: rl.RequestsPerMinute,
		Burst:             rl.Burst,
		KeyPrefix:         rl.Redis.KeyPrefix,
	}

	if rl.Backend != ratelimit.BackendRedis {
		lim, err := ratelimit.New(limCfg, nil)
		if err != nil {
			return fmt.Errorf("create rate limiter: %w", err)
		}
		a.limiter = lim
		return nil
	}

	counters, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    rl.Redis.Addrs,
		Username: rl.Redis.Username,
		Password: rl.Redis.Password,
		DB:       rl.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("create rate limit store: %w", err)
	}
	a.counters = counters

	// The limiter fails open, so an unreachable store only degrades health.
	if err := counters.WaitForReady(ctx, 2*time.Second); err != nil {
		a.logger.Warn("Rate limit store not ready, admitting requests until it is", zap.Error(err))
	}

	lim, err := ratelimit.New(limCfg, counters)
	if err != nil {
		return fmt.Errorf("create rate limiter: %w", err)
	}
	a.limiter = lim
	a.logger.Info("Rate limiting enabled",
		zap.String("backend", rl.Backend),
		zap.Int("requests_per_minute", rl.RequestsPerMinute),
	)
	return nil
}

func (a *app) close() {
	if a.counters != nil {
		a.counters.Close()
	}
	if a.perf != nil {
		a.perf.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

func storeConfig(c config.DatabaseConfig, name string) postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		Name:            name,
		User:            c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		ConnectTimeout:  seconds(c.ConnectTimeoutSec),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: seconds(c.ConnMaxLifetimeSec),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
