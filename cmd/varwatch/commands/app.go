package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roeimichael/VarProject/internal/alert"
	"github.com/roeimichael/VarProject/internal/audit"
	"github.com/roeimichael/VarProject/internal/enrich"
	"github.com/roeimichael/VarProject/internal/limitsconfig"
	"github.com/roeimichael/VarProject/internal/metrics"
	"github.com/roeimichael/VarProject/internal/monitor"
	"github.com/roeimichael/VarProject/internal/pricing"
	"github.com/roeimichael/VarProject/internal/risk"
	"github.com/roeimichael/VarProject/internal/varcache"
	"github.com/roeimichael/VarProject/pkg/config"
	"github.com/roeimichael/VarProject/pkg/database"
	"github.com/roeimichael/VarProject/pkg/logger"
	"github.com/roeimichael/VarProject/pkg/redis"
)

// app holds the wired components shared by the commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB // nil without DATABASE_URL
	redis    *redis.Client
	metrics  *metrics.Registry
	cache    *varcache.Cache
	enricher *enrich.Enricher
	profile  *limitsconfig.Profile
	runs     *audit.Repository // nil without DATABASE_URL
	hub      *alert.Hub        // set by serve
	service  *monitor.Service

	closers []func() error
}

// loadConfig reads configuration and builds a logger that writes to stderr,
// keeping stdout for command output
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// console output already goes to stderr
	log := logger.New(cfg)
	if cfg.LogFormat != "console" && cfg.LogFormat != "pretty" {
		log = logger.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.Env)
	}
	return cfg, log, nil
}

// newApp wires every component the commands need.
// withHub attaches a websocket hub as the run publisher.
func newApp(ctx context.Context, withHub bool) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	if err := a.init(ctx, withHub); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, withHub bool) error {
	cfg, log := a.cfg, a.log

	// 1. Optional Postgres
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		a.runs = audit.NewRepository(db.Pool)
		log.Debug("Connected to database")
	}

	// 2. Optional Redis
	rc, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc
	a.closers = append(a.closers, rc.Close)

	// 3. Ticker risk cache
	pool := a.pool()
	path := varcache.PathFor(cfg.Cache.Backend, cfg.Paths.AllTickers)
	store, closeStore, err := varcache.OpenStore(cfg.Cache.Backend, path, pool)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	a.closers = append(a.closers, closeStore)

	cache, err := varcache.Load(ctx, store, log.Component("varcache"))
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	a.cache = cache
	a.metrics.SetCacheCounts(cache.Counts())

	// 4. Price provider chain
	provider, err := pricing.NewFromConfig(cfg.Prices, pricing.Deps{
		Pool:    pool,
		Redis:   rc,
		Metrics: a.metrics,
		Log:     log.Component("pricing"),
	})
	if err != nil {
		return err
	}

	a.enricher = enrich.New(cache, provider, risk.NewEstimator(cfg.VaR.Confidence), enrich.Config{
		InitialInvestment: cfg.VaR.InitialInvestment,
		LookbackStart:     cfg.VaR.StartDate,
		Concurrency:       cfg.Prices.FetchConcurrency,
	}, a.metrics, log.Component("enrich"))

	// 5. Limits profile
	profile, err := limitsconfig.Resolve(cfg.Limits)
	if err != nil {
		return fmt.Errorf("resolve risk limits: %w", err)
	}
	a.profile = profile

	// 6. Evaluation service
	deps := monitor.Deps{
		Cache:    cache,
		Enricher: a.enricher,
		Engine:   risk.NewRuleEngine(),
		Profile:  profile,
		Metrics:  a.metrics,
		Log:      log.Component("monitor"),
	}
	if a.runs != nil {
		deps.Recorder = a.runs
	}
	if rc.Enabled() {
		deps.Redis = redis.NewCache(rc, "varwatch")
	}
	if withHub {
		a.hub = alert.NewHub(a.metrics, log.Component("alert"))
		deps.Publisher = a.hub
	}

	svc, err := monitor.NewService(deps)
	if err != nil {
		return err
	}
	a.service = svc

	return nil
}

func (a *app) pool() *pgxpool.Pool {
	return poolOf(a.db)
}

func poolOf(db *database.DB) *pgxpool.Pool {
	if db == nil {
		return nil
	}
	return db.Pool
}

// Close releases resources in reverse order
func (a *app) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("Failed to release resource")
		}
	}
}

// commandContext returns a context bounded by timeout (0 = none)
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
