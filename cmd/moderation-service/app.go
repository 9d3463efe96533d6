package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"warden/internal/broker"
	"warden/internal/config"
	"warden/internal/constants"
	"warden/internal/groups"
	"warden/internal/history"
	"warden/internal/logger"
	"warden/internal/moderation"
	"warden/pkg/bootstrap"
	"warden/pkg/circuitbreaker"
	"warden/pkg/health"
	"warden/pkg/logging"
	"warden/pkg/metrics"
	"warden/pkg/middleware"
	"warden/pkg/migrations"
	"warden/pkg/models"
	"warden/pkg/ratelimit"
	"warden/pkg/retry"
	"warden/pkg/tracing"
)

const serviceName = "moderation-service"

type App struct {
	*bootstrap.Base
	dbConnector     *bootstrap.DatabaseConnector
	db              *sql.DB
	redisClient     *redisclient.Client
	mongoClient     *mongo.Client
	coordinator     *moderation.Coordinator
	dispatcher      *moderation.Dispatcher
	dispatchBreaker *circuitbreaker.Wrapper
	snapshotCache   *groups.SnapshotCache
	tracerProvider  *tracing.TracerProvider
	server          *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterModerationMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAPIMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initEngine(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Database.RunMigrations {
		if err := a.runMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis connection failed, config snapshots will hit the database", "error", err)
	} else {
		a.redisClient = redisClient
	}

	if a.Config.Database.MongoDB.URI != "" {
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		mongoClient, err := a.dbConnector.InitMongoDB(initCtx)
		if err != nil {
			a.Logger.WarnwCtx(initCtx, "MongoDB connection failed, action history disabled", "error", err)
		} else if mongoClient != nil {
			a.mongoClient = mongoClient
			if err := migrations.EnsureMongoCollection(initCtx, mongoClient.Database(a.mongoDBName())); err != nil {
				a.Logger.WarnwCtx(initCtx, "Failed to ensure action history indexes", "error", err)
			}
		}
	}

	return nil
}

func (a *App) runMigrations() error {
	driver, err := migratepostgres.WithInstance(a.db, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations/postgres", "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (a *App) mongoDBName() string {
	if a.Config.Database.MongoDB.Database != "" {
		return a.Config.Database.MongoDB.Database
	}
	return constants.DefaultMongoDBName
}

func (a *App) initEngine(ctx context.Context) error {
	repo := groups.NewRepository(a.db)

	cacheTTL := time.Duration(a.Config.Database.Redis.TTLSeconds) * time.Second
	a.snapshotCache = groups.NewSnapshotCache(repo, a.redisClient, cacheTTL, a.Logger)

	var provider moderation.ConfigProvider = a.snapshotCache
	defaults := moderation.EscalationPolicy{
		MuteThreshold: a.Config.Moderation.Defaults.MuteThreshold,
		KickThreshold: a.Config.Moderation.Defaults.KickThreshold,
		MuteDuration:  a.Config.Moderation.Defaults.MuteDuration,
		AutoAction:    models.ActionKind(a.Config.Moderation.Defaults.AutoAction),
	}
	if defaults.Valid() {
		provider = moderation.NewDefaultedProvider(provider, defaults)
	}

	coordinator, err := moderation.NewCoordinator(provider, a.Logger,
		moderation.WithExpiryHandler(a.onRestrictionExpired),
	)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	a.coordinator = coordinator

	dispatchOpts := []moderation.DispatcherOption{}
	if a.Config.CircuitBreaker.Enabled {
		a.dispatchBreaker = circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("action-dispatch"))
		dispatchOpts = append(dispatchOpts, moderation.WithBreaker(a.dispatchBreaker))
	}
	if a.mongoClient != nil {
		historyRepo := history.NewRepository(a.mongoClient.Database(a.mongoDBName()))
		dispatchOpts = append(dispatchOpts, moderation.WithRecorder(historyRepo))
	}

	a.dispatcher = moderation.NewDispatcher(
		a.Producer,
		a.outputTopic(),
		dispatchPolicy(a.Config.Moderation.Dispatch.Retry),
		coordinator.RollbackAction,
		a.Logger,
		dispatchOpts...,
	)

	return nil
}

// onRestrictionExpired delivers lift actions that fire from mute
// timers rather than from an inbound event.
func (a *App) onRestrictionExpired(action models.Action) {
	if err := a.dispatcher.Dispatch(context.Background(), []models.Action{action}); err != nil {
		a.Logger.Errorw("Expiry lift action not delivered", "error", err, "action_id", action.ID)
	}
}

func (a *App) outputTopic() string {
	if a.Config.Broker.Kafka.OutputTopic != "" {
		return a.Config.Broker.Kafka.OutputTopic
	}
	return constants.DefaultOutputTopic
}

func dispatchPolicy(cfg config.RetryConfig) retry.Policy {
	if cfg.MaxAttempts <= 0 {
		return retry.DefaultPolicy()
	}
	return retry.Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		MaxElapsedTime:  cfg.MaxElapsedTime,
	}
}

func (a *App) initHTTPServer(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.API.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.API.RateLimit.RPS,
			Burst:           a.Config.API.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.API.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.API.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	repo := groups.NewRepository(a.db)
	versioningRepo := groups.NewVersioningRepository(a.db)

	opts := []groups.ServiceOption{
		groups.WithVersioning(versioningRepo),
		groups.WithCache(a.snapshotCache),
	}
	if a.Config.Broker.Type == "kafka" && a.Config.Broker.Kafka.ConfigUpdateTopic != "" {
		configEventProducer := groups.NewConfigEventProducer(a.Producer, a.Config.Broker.Kafka.ConfigUpdateTopic)
		opts = append(opts, groups.WithConfigEvents(configEventProducer))
	}

	groupsHandler := groups.NewHandler(groups.NewService(repo, opts...), a.Logger)
	groupsHandler.RegisterRoutes(router)

	moderationHandler := moderation.NewHandler(a.coordinator, a.Logger, a.dispatcher.Dispatch)
	moderationHandler.RegisterRoutes(router)

	if a.mongoClient != nil {
		historyHandler := history.NewHandler(history.NewRepository(a.mongoClient.Database(a.mongoDBName())), a.Logger)
		historyHandler.RegisterRoutes(router)
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}
	if a.dispatchBreaker != nil {
		healthRegistry.Register(health.NewCheckerFunc("action-dispatch", func(ctx context.Context) error {
			if a.dispatchBreaker.IsOpen() {
				return fmt.Errorf("action dispatch breaker is open")
			}
			return nil
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: router,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.Config.Broker.Kafka.ConfigUpdateTopic != "" {
		configConsumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
		if err != nil {
			a.Logger.WarnwCtx(ctx, "Failed to create config event consumer, event-driven invalidation disabled", "error", err)
		} else {
			configConsumer.SetServiceName(serviceName)
			defer configConsumer.Close()

			g.Go(func() error {
				configCtx := logging.WithServiceName(gCtx, serviceName)
				a.Logger.InfowCtx(configCtx, "Starting config update event consumer",
					"topic", a.Config.Broker.Kafka.ConfigUpdateTopic,
				)
				return configConsumer.Consume(gCtx, a.Config.Broker.Kafka.ConfigUpdateTopic, a.handleConfigUpdate)
			})
		}
	}

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultInputTopic
	}
	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Starting chat event consumer", "topic", inputTopic)
		return a.Consumer.Consume(gCtx, inputTopic, a.handleChatEvent)
	})

	err := g.Wait()

	if shutdownErr := a.Shutdown(context.Background()); shutdownErr != nil {
		a.Logger.Errorw("Shutdown error", "error", shutdownErr)
	}

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (a *App) handleChatEvent(ctx context.Context, msg broker.Message) error {
	var evt models.ChatEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("failed to decode chat event: %w", err)
	}
	ctx = logging.WithGroupID(ctx, evt.GroupID)

	var actions []models.Action
	var err error

	switch evt.Type {
	case models.EventTypeMessage:
		actions, err = a.coordinator.OnMessage(ctx, &evt)
	case models.EventTypeMemberJoin:
		actions, err = a.coordinator.OnMemberJoin(ctx, &evt)
	default:
		a.Logger.WarnwCtx(ctx, "Skipping event of unknown type", "type", evt.Type, "event_id", evt.ID)
		return nil
	}
	if err != nil {
		return err
	}

	// Delivery failures are rolled back inside the dispatcher;
	// replaying the event here would sanction the sender twice.
	if err := a.dispatcher.Dispatch(ctx, actions); err != nil {
		a.Logger.ErrorwCtx(ctx, "Dropped undelivered actions after rollback", "error", err, "event_id", evt.ID)
	}
	return nil
}

func (a *App) handleConfigUpdate(ctx context.Context, msg broker.Message) error {
	var evt models.ConfigUpdateEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("failed to decode config update event: %w", err)
	}

	if evt.GroupID == 0 {
		a.Logger.WarnwCtx(ctx, "Config update event without group id", "event_type", evt.EventType)
		return nil
	}

	a.snapshotCache.Invalidate(ctx, evt.GroupID)
	a.Logger.InfowCtx(ctx, "Invalidated config snapshot",
		"group_id", evt.GroupID,
		"event_type", evt.EventType,
		"action", evt.Action,
	)
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down moderation service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			srvCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(srvCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.coordinator != nil {
			a.coordinator.Mutes().Stop()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
