package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"civicsource/internal/adapter"
	"civicsource/internal/alerts"
	"civicsource/internal/config"
	cronrunner "civicsource/internal/cron"
	"civicsource/internal/db"
	"civicsource/internal/dedup"
	"civicsource/internal/handler"
	"civicsource/internal/health"
	"civicsource/internal/lock"
	"civicsource/internal/logger"
	"civicsource/internal/pipeline"
	"civicsource/internal/quality"
	gormrepository "civicsource/internal/repository/gorm"
	"civicsource/internal/resolver"
	"civicsource/internal/scheduler"
)

func main() {
	cfgPath := os.Getenv("CS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CS_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	lease := initLease(cfg.Redis, logger)

	registry := adapter.NewRegistry(
		&adapter.RESTAdapter{HTTP: &http.Client{Timeout: cfg.Scheduler.FetchTimeout}},
	)

	monitor := &health.Monitor{
		Repo:   store,
		HTTP:   &http.Client{Timeout: cfg.HealthMonitor.ProbeTimeout},
		Logger: logger,
		Config: cfg.HealthMonitor,
	}
	rebuilder := &dedup.Rebuilder{
		Repo:   store,
		Engine: &dedup.Engine{GeoPrecision: cfg.Dedup.GeoPrecision},
		Logger: logger,
		Config: cfg.Dedup,
	}
	dispatcher := &scheduler.Scheduler{
		Repo:      store,
		Adapters:  registry,
		Rebuilder: rebuilder,
		Lease:     lease,
		Logger:    logger,
		Config:    cfg.Scheduler,
	}
	entityResolver := &resolver.Resolver{
		Repo:   store,
		Rules:  resolver.DefaultTypeRules(),
		Logger: logger,
		Config: cfg.Resolver,
	}
	voteService := &quality.VoteService{Repo: store, Logger: logger}
	pipelineRunner := &pipeline.Runner{
		Repo:   store,
		Lease:  lease,
		Logger: logger,
		Config: cfg.Pipelines,
	}
	alertEngine := &alerts.Engine{
		Repo:   store,
		Lease:  lease,
		Logger: logger,
		Config: cfg.Alerts,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	sourceHandler := &handler.SourceHandler{Repo: store}
	sourceHandler.Register(engine)
	jobHandler := &handler.JobHandler{Repo: store}
	jobHandler.Register(engine)
	recordHandler := &handler.RecordHandler{Repo: store, Votes: voteService}
	recordHandler.Register(engine)
	alertHandler := &handler.AlertHandler{Repo: store}
	alertHandler.Register(engine)
	pipelineHandler := &handler.PipelineHandler{Repo: store}
	pipelineHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		register := func(name, spec string, job func(context.Context)) {
			if _, err := cronRunner.Add(spec, job); err != nil {
				logger.Warn("cron register failed",
					zap.String("job", name),
					zap.String("spec", spec),
					zap.Error(err))
			}
		}
		register("health_monitor", cfg.Cron.HealthMonitor, func(ctx context.Context) {
			if err := monitor.RunOnce(ctx); err != nil {
				logger.Warn("health probe run failed", zap.Error(err))
			}
		})
		register("dispatch", cfg.Cron.Dispatch, dispatcher.Run)
		register("resolver", cfg.Cron.Resolver, func(ctx context.Context) {
			if _, err := entityResolver.ResolveBatch(ctx); err != nil {
				logger.Warn("resolver run failed", zap.Error(err))
			}
		})
		register("pipelines", cfg.Cron.Pipelines, pipelineRunner.Run)
		register("alerts", cfg.Cron.Alerts, alertEngine.Run)
		register("probe_retention", cfg.Cron.ProbeRetention, func(ctx context.Context) {
			if err := monitor.SweepProbes(ctx); err != nil {
				logger.Warn("probe sweep failed", zap.Error(err))
			}
		})
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// initLease prefers redis so the lease holds across processes; without a
// configured address it degrades to a process-local lease.
func initLease(cfg config.RedisConfig, logger *zap.Logger) lock.Lease {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		logger.Info("redis not configured, using local lease")
		return lock.NewLocalLease()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, using local lease", zap.Error(err))
		return lock.NewLocalLease()
	}
	logger.Info("redis lease enabled", zap.String("addr", addr))
	return &lock.RedisLease{Client: client}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
