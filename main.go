package main

import (
	"context"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/lucentdata/metricplane/pkg/config"
	"github.com/lucentdata/metricplane/pkg/database"
	"github.com/lucentdata/metricplane/pkg/engine"
	"github.com/lucentdata/metricplane/pkg/handlers"
	"github.com/lucentdata/metricplane/pkg/logging"
	"github.com/lucentdata/metricplane/pkg/middleware"
	"github.com/lucentdata/metricplane/pkg/repositories"
	"github.com/lucentdata/metricplane/pkg/resolver"
	"github.com/lucentdata/metricplane/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("default_engine", cfg.Resolver.DefaultEngine),
		zap.String("grain_policy", cfg.Resolver.GrainPolicy),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to metadata store", zap.Error(err))
	}
	defer db.Close()

	migrationDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	metadata := repositories.NewMetadataRepository(db.Pool)
	audits := repositories.NewAuditRepository(db.Pool)

	engineRegistry := engine.NewRegistry()
	if cfg.Resolver.ExecutionEngineURL != "" {
		pgEngine, err := engine.NewPostgresEngine(ctx, cfg.Resolver.ExecutionEngineURL)
		if err != nil {
			logger.Fatal("Failed to connect execution engine", zap.Error(err))
		}
		engineRegistry.Register(pgEngine)
	} else {
		engineRegistry.Register(engine.NewPostgresEngineFromPool(db.Pool))
	}
	if cfg.Resolver.MSSQLConnectionString != "" {
		msEngine, err := engine.NewMSSQLEngine(cfg.Resolver.MSSQLConnectionString)
		if err != nil {
			logger.Fatal("Failed to open SQL Server engine", zap.Error(err))
		}
		engineRegistry.Register(msEngine)
	}
	defer func() {
		if err := engineRegistry.Close(); err != nil {
			logger.Warn("Failed to close engines", zap.Error(err))
		}
	}()
	logger.Info("Execution engines registered", zap.Strings("types", engineRegistry.Types()))

	orchestrator := services.NewOrchestrator(metadata, audits, engineRegistry, logger,
		services.WithDefaultEngine(cfg.Resolver.DefaultEngine),
		services.WithGrainPolicy(resolver.GrainPolicy(cfg.Resolver.GrainPolicy)))
	impactService := services.NewImpactService(metadata, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewResolveHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewAuditsHandler(audits, logger).RegisterRoutes(mux)
	handlers.NewConceptsHandler(metadata, logger).RegisterRoutes(mux)
	handlers.NewImpactHandler(impactService, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting metricplane", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
