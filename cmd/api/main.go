package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/briar/config"
	companyrepo "github.com/Ramsey-B/briar/internal/repositories/company"
	"github.com/Ramsey-B/briar/internal/repositories/debtinstrument"
	entityrepo "github.com/Ramsey-B/briar/internal/repositories/entity"
	guaranteerepo "github.com/Ramsey-B/briar/internal/repositories/guarantee"
	metricsrepo "github.com/Ramsey-B/briar/internal/repositories/metrics"
	"github.com/Ramsey-B/briar/internal/repositories/ownershiplink"
	snapshotrepo "github.com/Ramsey-B/briar/internal/repositories/snapshot"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/graph"
	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/middleware"
	"github.com/Ramsey-B/briar/pkg/processor"
	companyroutes "github.com/Ramsey-B/briar/pkg/routes/company"
	creditroutes "github.com/Ramsey-B/briar/pkg/routes/credit"
	graphroutes "github.com/Ramsey-B/briar/pkg/routes/graph"
	"github.com/Ramsey-B/briar/pkg/routes/health"
	snapshotroutes "github.com/Ramsey-B/briar/pkg/routes/snapshot"
	traverseroutes "github.com/Ramsey-B/briar/pkg/routes/traverse"
	snapshotpkg "github.com/Ramsey-B/briar/pkg/snapshot"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/Ramsey-B/briar/pkg/tracing/exporters"
	"github.com/Ramsey-B/briar/pkg/traversal"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fatal := func(err error, msg string) {
		logger.WithError(err).Error(msg)
		stop()
		os.Exit(1)
	}

	if cfg.TracingEnabled {
		shutdown, err := initTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize tracing")
		} else {
			defer shutdown(context.Background())
		}
	}

	db, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		fatal(err, "Failed to run migrations")
	}

	dbi := database.NewDatabaseInstance(db, logger)

	companies := companyrepo.NewRepository(dbi, logger)
	entities := entityrepo.NewRepository(dbi, logger)
	instruments := debtinstrument.NewRepository(dbi, logger)
	guarantees := guaranteerepo.NewRepository(dbi, logger)
	ownership := ownershiplink.NewRepository(dbi, logger)
	metrics := metricsrepo.NewRepository(dbi, logger)
	snapshots := snapshotrepo.NewRepository(dbi, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	emitter := events.NewEmitter(producer, logger)

	var mirror graphstore.Mirror
	var queryService *graph.QueryService
	if cfg.GraphDBEnabled {
		client, err := graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			fatal(err, "Failed to create graph client")
		}
		defer client.Close(context.Background())
		if err := client.VerifyConnectivity(ctx); err != nil {
			logger.WithError(err).Warn("Graph database unreachable at startup")
		}
		mirror = graph.NewMirrorService(client, logger)
		queryService = graph.NewQueryService(client, logger)
	}

	store := graphstore.NewStore(dbi, companies, entities, instruments, guarantees, ownership, metrics, emitter, mirror, logger)
	traversalEngine := traversal.NewEngine(cfg.TraversalDefaultDepth, cfg.TraversalDepthCap)
	snapshotEngine := snapshotpkg.NewEngine(store, snapshots, emitter, logger)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		proc := processor.NewProcessor(logger, store)
		consumer = kafka.NewConsumer(cfg, logger, proc.ProcessMessage)
		if err := consumer.Start(ctx); err != nil {
			fatal(err, "Failed to start Kafka consumer")
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Error("Failed to stop Kafka consumer")
			}
		}()
	}

	if err := registerDependencies(logger, store, traversalEngine, snapshotEngine, queryService); err != nil {
		fatal(err, "Failed to register dependencies")
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	var consumerHealth health.ConsumerHealth
	if consumer != nil {
		consumerHealth = consumer
	}
	checker := health.NewChecker(db, consumerHealth, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	companyroutes.Register(api.Group("/companies"))
	creditroutes.Register(api.Group("/companies"))
	snapshotroutes.Register(api.Group("/companies"))
	traverseroutes.Register(api)
	if queryService != nil {
		graphroutes.NewHandler(queryService, logger).Register(api.Group("/graph"))
	}

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server stopped unexpectedly")
			stop()
		}
	}()
	checker.SetReady(true)
	logger.WithField("port", cfg.Port).Infof("%s listening on port %d", cfg.AppName, cfg.Port)

	<-ctx.Done()
	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down server cleanly")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func initTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	return tp.Shutdown, nil
}

func connectDatabase(ctx context.Context, cfg config.Config, logger ectologger.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	var db *sqlx.DB
	var err error
	// Fibonacci backoff between attempts so a slow database does not fail
	// the pod immediately.
	a, b := 1, 1
	for attempt := 1; attempt <= cfg.StartupMaxAttempts; attempt++ {
		db, err = sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
		if err == nil {
			db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
			return db, nil
		}
		logger.WithError(err).Warnf("Database connection attempt %d/%d failed", attempt, cfg.StartupMaxAttempts)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}
	return nil, err
}

func runMigrations(cfg config.Config, db *sqlx.DB, logger ectologger.Logger) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func registerDependencies(
	logger ectologger.Logger,
	store *graphstore.Store,
	traversalEngine *traversal.Engine,
	snapshotEngine *snapshotpkg.Engine,
	queryService *graph.QueryService,
) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*graphstore.Store](container, store); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*traversal.Engine](container, traversalEngine); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*snapshotpkg.Engine](container, snapshotEngine); err != nil {
		return err
	}
	if queryService != nil {
		if err := ectoinject.RegisterInstance[*graph.QueryService](container, queryService); err != nil {
			return err
		}
	}
	return nil
}
