package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/kulate-stoly-api/api/swagger"
	"github.com/noah-isme/kulate-stoly-api/internal/handler"
	internalmiddleware "github.com/noah-isme/kulate-stoly-api/internal/middleware"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/internal/repository"
	"github.com/noah-isme/kulate-stoly-api/internal/service"
	"github.com/noah-isme/kulate-stoly-api/pkg/cache"
	"github.com/noah-isme/kulate-stoly-api/pkg/config"
	"github.com/noah-isme/kulate-stoly-api/pkg/database"
	"github.com/noah-isme/kulate-stoly-api/pkg/jobs"
	"github.com/noah-isme/kulate-stoly-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/kulate-stoly-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/kulate-stoly-api/pkg/middleware/requestid"
	"github.com/noah-isme/kulate-stoly-api/pkg/storage"
)

// @title Kulaté stoly API
// @version 1.0.0
// @description Evaluation grid for calibration round tables.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	var readiness []handler.ReadinessCheck

	var db *sqlx.DB
	if cfg.Warehouse.Mode == config.WarehouseModePostgres {
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to warehouse", zap.Error(err))
		}
		defer db.Close()
		readiness = append(readiness, handler.ReadinessCheck{Name: "warehouse", Check: db.PingContext})
	}

	localStorage, err := storage.NewLocalStorage(cfg.Warehouse.LocalDir)
	if err != nil {
		logr.Fatal("failed to prepare local storage", zap.Error(err))
	}

	var (
		evaluations evaluationStore
		filterRepo  filterStore
		eventRepo   eventStore
	)
	if db != nil {
		evaluations = repository.NewEvaluationRepository(db, cfg.Warehouse.SourceTable)
		filterRepo = repository.NewFilterRepository(db, cfg.Warehouse.FilterTable)
		eventRepo = repository.NewEventRepository(db, cfg.Warehouse.EventsTable)
	} else {
		evaluations = repository.NewEvaluationCSVStore(localStorage, cfg.Warehouse.LocalFile)
		filterRepo = repository.NewFilterCSVStore(localStorage, "filters.csv")
		eventRepo = repository.NewLogEventRepository(logr)
	}

	var sessions sessionStore
	var memorySessions *repository.MemorySessionStore
	if cfg.Session.Store == config.SessionStoreRedis {
		var client *redis.Client
		client, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to session store", zap.Error(err))
		}
		defer client.Close()
		sessions = repository.NewSessionRepository(client, cfg.Session.KeyPrefix)
		readiness = append(readiness, handler.ReadinessCheck{Name: "session_store", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	} else {
		memorySessions = repository.NewMemorySessionStore()
		sessions = memorySessions
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events *service.EventService
	if cfg.Events.Enabled {
		worker := service.NewEventWorker(eventRepo, metrics, logr)
		queue := jobs.NewQueue("activity-events", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.BufferSize,
			MaxRetries: cfg.Events.MaxRetries,
			RetryDelay: cfg.Events.RetryDelay,
			Logger:     logr,
		})
		queue.Start(rootCtx)
		defer queue.Stop()
		events = service.NewEventService(queue, metrics, logr)
	}

	authorizer, err := service.NewAuthorizer(service.DefaultPolicy, logr)
	if err != nil {
		logr.Fatal("failed to build authorization policy", zap.Error(err))
	}
	identity := service.NewIdentityService(service.IdentityConfig{
		RoleIDs:          cfg.Identity.RoleIDs,
		AllowImpersonate: !cfg.IsProduction(),
		Permissions:      authorizer,
	}, logr)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.Session.TokenSecret, TTL: cfg.Session.TTL})
	reconciler := service.NewReconcileService(evaluations, events, metrics, service.ReconcileConfig{
		ConflictCheck: cfg.Warehouse.ConflictCheck,
	}, logr)
	locker := service.NewLockService(reconciler, events, metrics, logr)
	filters := service.NewFilterService(filterRepo, events, validate, logr)

	sessionSvc := service.NewSessionService(service.SessionServiceParams{
		Store:      sessions,
		Identity:   identity,
		Tokens:     tokens,
		Reconciler: reconciler,
		Locker:     locker,
		Filters:    filters,
		Scope:      service.NewScopeService(logr),
		Policy:     service.NewEditPolicy(cfg.Lock.GracePeriod, time.Now),
		Detector:   service.NewEditDetector(),
		Events:     events,
		Metrics:    metrics,
		Validator:  validate,
		Logger:     logr,
		Config:     service.SessionServiceConfig{TTL: cfg.Session.TTL},

		Permissions: authorizer,
	})
	charts := service.NewChartService(sessionSvc, logr)
	exports := service.NewExportService(sessionSvc, nil, nil, logr)

	if memorySessions != nil {
		go sweepSessions(rootCtx, memorySessions, logr)
	}

	sessionHandler := handler.NewSessionHandler(sessionSvc, cfg.Identity.RolesHeader, cfg.Identity.EmailHeader)
	filterHandler := handler.NewFilterHandler(filters)
	chartHandler := handler.NewChartHandler(charts)
	exportHandler := handler.NewExportHandler(exports)
	metricsHandler := handler.NewMetricsHandler(metrics, readiness...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.Identity.RolesHeader, cfg.Identity.EmailHeader))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/sessions", sessionHandler.Create)
	api.GET("/status", metricsHandler.Status)

	authed := api.Group("")
	authed.Use(internalmiddleware.SessionAuth(tokens))
	authed.GET("/grid", internalmiddleware.Authorize(authorizer, service.ObjectGrid, service.ActionView), sessionHandler.Grid)
	authed.POST("/grid/render", internalmiddleware.Authorize(authorizer, service.ObjectGrid, service.ActionView), sessionHandler.Render)
	authed.GET("/changes", internalmiddleware.Authorize(authorizer, service.ObjectGrid, service.ActionView), sessionHandler.Changes)
	authed.DELETE("/changes", internalmiddleware.Authorize(authorizer, service.ObjectGrid, service.ActionView), sessionHandler.Discard)
	authed.POST("/save", internalmiddleware.Authorize(authorizer, service.ObjectGrid, service.ActionSave), sessionHandler.Save)
	authed.POST("/lock", internalmiddleware.Authorize(authorizer, service.ObjectGrid, service.ActionLock), sessionHandler.Lock)
	authed.GET("/filters", internalmiddleware.Authorize(authorizer, service.ObjectFilters, service.ActionView), filterHandler.List)
	authed.POST("/filters", internalmiddleware.Authorize(authorizer, service.ObjectFilters, service.ActionSave), filterHandler.Save)
	authed.GET("/charts", internalmiddleware.Authorize(authorizer, service.ObjectCharts, service.ActionView), chartHandler.Charts)
	authed.GET("/export.csv", internalmiddleware.Authorize(authorizer, service.ObjectExport, service.ActionView), exportHandler.CSV)
	authed.GET("/export.pdf", internalmiddleware.Authorize(authorizer, service.ObjectExport, service.ActionView), exportHandler.PDF)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "warehouse_mode", evaluations.Mode(), "session_store", cfg.Session.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type evaluationStore interface {
	LoadAll(ctx context.Context) ([]models.EvaluationRecord, error)
	Persist(ctx context.Context, rows []models.EvaluationRecord) (int, error)
	ModifiedWhen(ctx context.Context, keys []models.EvaluationKey) (map[models.EvaluationKey]models.Timestamp, error)
	Mode() string
}

type filterStore interface {
	ListByCreator(ctx context.Context, creator string) ([]models.SavedFilter, error)
	Upsert(ctx context.Context, filter models.SavedFilter) error
}

type eventStore interface {
	Insert(ctx context.Context, event *models.ActivityEvent) error
}

type sessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, sess *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

func sweepSessions(ctx context.Context, store *repository.MemorySessionStore, logr *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(); removed > 0 {
				logr.Debug("expired sessions swept", zap.Int("removed", removed))
			}
		}
	}
}
