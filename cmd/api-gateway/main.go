package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/prof-roster-api/api/swagger"
	"github.com/noah-isme/prof-roster-api/internal/handler"
	"github.com/noah-isme/prof-roster-api/internal/middleware"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	"github.com/noah-isme/prof-roster-api/internal/service"
	"github.com/noah-isme/prof-roster-api/pkg/cache"
	"github.com/noah-isme/prof-roster-api/pkg/config"
	"github.com/noah-isme/prof-roster-api/pkg/database"
	"github.com/noah-isme/prof-roster-api/pkg/export"
	"github.com/noah-isme/prof-roster-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/prof-roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/prof-roster-api/pkg/middleware/requestid"
)

// @title Gestion des professeurs API
// @version 1.0.0
// @description Academic year rosters, assignments and schedules of professors
// @BasePath /
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	store, closeStore, err := openStore(ctx, cfg, logr, checks)
	if err != nil {
		logr.Fatal("failed to open document store", zap.Error(err))
	}
	defer closeStore()
	store = repository.NewInstrumentedDocumentStore(store, metrics)

	rosterCache, closeCache, err := openRosterCache(ctx, cfg, metrics, logr, checks)
	if err != nil {
		logr.Fatal("failed to open roster cache", zap.Error(err))
	}
	defer closeCache()

	professorRepo := repository.NewProfessorRepository(store)
	yearRepo := repository.NewAcademicYearRepository(store)
	assignmentRepo := repository.NewAssignmentRepository(store)
	referenceRepo := repository.NewReferenceRepository(store)
	timetableRepo := repository.NewTimetableRepository(store)
	accountRepo := repository.NewAccountRepository(store)

	validate := service.NewValidator()
	provisioner := service.NewAccountProvisioner(accountRepo, logr)
	authService := service.NewAuthService(accountRepo, provisioner, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		logr.Fatal("failed to bootstrap admin account", zap.Error(err))
	}

	resolver := service.NewYearResolver(cfg.Roster.Location())
	loader := service.NewRosterLoader(professorRepo, assignmentRepo, rosterCache, resolver, metrics, logr)
	sessions := service.NewRosterSessions(loader, cfg.Roster.SessionIdleTTL, metrics, logr)
	professorService := service.NewProfessorService(professorRepo, yearRepo, provisioner, rosterCache, service.ProfessorDefaults{
		RoleID:          cfg.Professors.RoleID,
		RoleLabel:       cfg.Professors.RoleLabel,
		DefaultPassword: cfg.Professors.DefaultPassword,
	}, validate, logr)
	assignmentService := service.NewAssignmentService(assignmentRepo, referenceRepo, professorRepo, yearRepo, rosterCache, validate, logr)
	scheduleService := service.NewScheduleService(assignmentRepo, professorRepo, timetableRepo, logr)
	yearService := service.NewAcademicYearService(yearRepo, referenceRepo, logr)
	exportService := service.NewExportService(loader, scheduleService, professorRepo, export.NewCSVExporter(';'), export.NewPDFExporter(), logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.Middleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		ExposedHeaders: []string{"Content-Disposition", reqidmiddleware.Header, handler.StaleHeader},
	}))

	handler.Routes{
		Auth:         handler.NewAuthHandler(authService),
		Years:        handler.NewAcademicYearHandler(yearService),
		Professors:   handler.NewProfessorHandler(professorService, sessions, exportService),
		Assignments:  handler.NewAssignmentHandler(assignmentService, scheduleService, exportService),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
		TokenChecker: authService,
	}.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver), zap.String("roster_cache", cfg.Roster.CacheDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (repository.DocumentStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logr.Warn("using in-memory document store; data is lost on restart")
		return repository.NewMemoryDocumentStore(), func() {}, nil
	case config.StoreDriverPostgres, "":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresDocumentStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["postgres"] = db.PingContext
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openRosterCache(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (service.RosterCache, func(), error) {
	switch cfg.Roster.CacheDriver {
	case config.CacheDriverNone:
		return &service.NopRosterCache{}, func() {}, nil
	case config.CacheDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = cache.Ping(client)
		repo := repository.NewCacheRepository(client, logr)
		return service.NewRedisRosterCache(repo, metrics, logr), func() { _ = repo.Close() }, nil
	case config.CacheDriverMemory, "":
		return service.NewMemoryRosterCache(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown roster cache driver %q", cfg.Roster.CacheDriver)
	}
}
