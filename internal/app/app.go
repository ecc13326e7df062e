package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domains
	"github.com/uniedit/quotagate/internal/domain/access"
	"github.com/uniedit/quotagate/internal/domain/billing"

	// Inbound adapters (HTTP handlers)
	ginadapter "github.com/uniedit/quotagate/internal/adapter/inbound/gin"

	// Outbound adapters
	"github.com/uniedit/quotagate/internal/adapter/outbound/breaker"
	"github.com/uniedit/quotagate/internal/adapter/outbound/memory"
	"github.com/uniedit/quotagate/internal/adapter/outbound/postgres"
	redisadapter "github.com/uniedit/quotagate/internal/adapter/outbound/redis"
	"github.com/uniedit/quotagate/internal/port/outbound"

	// Shared infrastructure
	"github.com/uniedit/quotagate/internal/infra/events"
	sharedcache "github.com/uniedit/quotagate/internal/shared/cache"
	"github.com/uniedit/quotagate/internal/shared/config"
	"github.com/uniedit/quotagate/internal/shared/database"
	"github.com/uniedit/quotagate/internal/shared/logger"
	"github.com/uniedit/quotagate/internal/utils/metrics"
	"github.com/uniedit/quotagate/internal/utils/middleware"
)

// App owns the process-wide resources and the HTTP router.
type App struct {
	config  *config.Config
	db      *gorm.DB
	redis   *goredis.Client
	ledger  outbound.UsageLedgerPort
	router  *gin.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
	bus     *events.Bus

	// Domain services
	accessDomain  access.AccessDomain
	billingDomain billing.BillingDomain

	// Cleanup functions, run in reverse order by Stop
	cleanupFuncs []func()
}

// New creates a new application instance, connecting to every backend the
// configuration requires.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	var redisClient *goredis.Client
	if cfg.NeedsRedis() {
		redisClient, err = sharedcache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	a, err := newApp(ctx, cfg, log, db, redisClient)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = database.Close(db)
		return nil, err
	}

	a.onStop(func() { _ = database.Close(db) })
	if redisClient != nil {
		a.onStop(func() { _ = redisClient.Close() })
	}
	return a, nil
}

// newApp wires the application on top of already opened connections.
// redisClient may be nil when no component needs it.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, db *gorm.DB, redisClient *goredis.Client) (*App, error) {
	a := &App{
		config:  cfg,
		db:      db,
		redis:   redisClient,
		logger:  log,
		metrics: metrics.New("quotagate", nil),
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	a.bus = events.NewBus(log)
	registerEventHandlers(a.bus, log, a.metrics)

	ledger, err := a.newLedger()
	if err != nil {
		return nil, fmt.Errorf("init usage ledger: %w", err)
	}
	a.ledger = ledger
	a.onStop(func() {
		if err := ledger.Close(); err != nil {
			log.Warn("close usage ledger", zap.Error(err))
		}
	})

	a.initDomains()

	if err := bootstrapPlans(ctx, a.billingDomain, cfg.Bootstrap.Plans, log); err != nil {
		a.Stop()
		return nil, fmt.Errorf("bootstrap plans: %w", err)
	}

	a.router = a.setupRouter()
	return a, nil
}

// newLedger builds the configured usage ledger, guarded by a circuit breaker
// when enabled.
func (a *App) newLedger() (outbound.UsageLedgerPort, error) {
	var ledger outbound.UsageLedgerPort
	switch a.config.Ledger.Driver {
	case config.LedgerDriverMemory:
		ledger = memory.NewUsageLedger(a.config.Ledger.Shards)
	case config.LedgerDriverPostgres:
		ledger = postgres.NewUsageLedger(a.db)
	case config.LedgerDriverRedis:
		if a.redis == nil {
			return nil, errors.New("redis ledger requires a redis connection")
		}
		ledger = redisadapter.NewUsageLedger(a.redis)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", a.config.Ledger.Driver)
	}

	bc := a.config.Ledger.Breaker
	if !bc.Enabled {
		return ledger, nil
	}
	return breaker.NewUsageLedger(ledger, "usage-ledger-"+a.config.Ledger.Driver, &breaker.Config{
		FailureThreshold:    bc.FailureThreshold,
		Interval:            bc.Interval,
		Timeout:             bc.Timeout,
		MaxHalfOpenRequests: bc.MaxHalfOpenRequests,
	}, a.logger, breaker.WithStateObserver(a.metrics.ObserveBreakerState)), nil
}

// initDomains initializes the domain services with their adapters.
func (a *App) initDomains() {
	planDB := postgres.NewPlanAdapter(a.db)
	subscriptionDB := postgres.NewSubscriptionAdapter(a.db)

	var planCache outbound.PlanCachePort
	if a.config.Access.PlanCacheEnabled && a.redis != nil {
		planCache = redisadapter.NewPlanCache(a.redis)
	}

	accessOpts := []access.Option{
		access.WithEventPublisher(a.bus),
		access.WithDecisionObserver(a.metrics),
	}
	billingOpts := []billing.Option{
		billing.WithLedger(a.ledger),
		billing.WithEventPublisher(a.bus),
	}
	if planCache != nil {
		accessOpts = append(accessOpts, access.WithPlanCache(planCache))
		billingOpts = append(billingOpts, billing.WithPlanCache(planCache))
	}

	a.accessDomain = access.NewAccessDomain(
		planDB,
		subscriptionDB,
		a.ledger,
		&access.Config{
			LookupTimeout: a.config.Access.LookupTimeout,
			LedgerTimeout: a.config.Access.LedgerTimeout,
			PlanCacheTTL:  a.config.Access.PlanCacheTTL,
		},
		a.logger,
		accessOpts...,
	)

	billingOpts = append(billingOpts, billing.WithUsageReader(a.accessDomain))
	a.billingDomain = billing.NewBillingDomain(planDB, subscriptionDB, a.logger, billingOpts...)
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Server.Mode != "" {
		gin.SetMode(a.config.Server.Mode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = a.config.Server.AllowedOrigins
	r.Use(middleware.CORS(cors))

	r.GET("/health", ginadapter.Health(2*time.Second, a.healthChecks()))
	if a.config.Metrics.Enabled {
		r.GET(a.config.Metrics.Path, gin.WrapH(a.metrics.Handler()))
	}

	ginadapter.RegisterRoutes(r, &ginadapter.Handlers{
		Plans:         ginadapter.NewPlanHandler(a.billingDomain),
		Subscriptions: ginadapter.NewSubscriptionHandler(a.billingDomain),
		Access:        ginadapter.NewAccessHandler(a.accessDomain, a.config.Access.RetryAfter),
	})

	return r
}

func (a *App) healthChecks() map[string]ginadapter.HealthCheck {
	checks := map[string]ginadapter.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *App) onStop(fn func()) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// Router returns the HTTP handler of the application.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases resources. The ledger is closed before the connections it uses.
func (a *App) Stop() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil

	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
