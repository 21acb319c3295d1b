package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/config"
	agentrepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/agent"
	editionrepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/edition"
	entityrepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/entity"
	equivalencerepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/equivalence"
	identifierrepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/identifier"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/agents"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/authority"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/database"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/editions"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/identifiers"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/kafka"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/middleware"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/processor"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/redis"
	editionroutes "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/routes/edition"
	equivalenceroutes "github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/routes/equivalence"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/routes/health"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/startup"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

const version = "1.0.0"

// dependency adapts closures to the startup.Dependency interface.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string              { return d.name }
func (d *dependency) DependsOn() []string          { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		b, err := json.Marshal(msg)
		if err != nil {
			return
		}
		fmt.Println(string(b))
	})

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracing.SetTracer(otel.Tracer(cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db          database.DB
		redisClient *redis.Client
		producer    *kafka.Producer
		consumers   []*kafka.Consumer
		e           *echo.Echo
		checker     *health.Checker
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			dsn := fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
			)
			sqlxDB, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
			if err != nil {
				return err
			}
			sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

			driver, err := postgres.WithInstance(sqlxDB.DB, &postgres.Config{})
			if err != nil {
				return err
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
				return err
			}

			db = database.NewDatabaseInstance(sqlxDB, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	boot.AddDependency(&dependency{
		name: "redis",
		start: func(ctx context.Context) error {
			client, err := redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		stop: func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	boot.AddDependency(&dependency{
		name: "kafka-producer",
		start: func(ctx context.Context) error {
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				UpdateTopic:  cfg.KafkaUpdateTopic,
				CoverTopic:   cfg.KafkaCoverTopic,
				ClusterTopic: cfg.KafkaClusterTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if producer == nil {
				return nil
			}
			return producer.Close()
		},
	})

	boot.AddDependency(&dependency{
		name:      "consumers",
		dependsOn: []string{"database", "redis", "kafka-producer"},
		start: func(ctx context.Context) error {
			entityRepo := entityrepo.NewRepository(db, logger)
			identifierRepo := identifierrepo.NewRepository(db, logger)
			agentRepo := agentrepo.NewRepository(db, logger)
			editionRepo := editionrepo.NewRepository(db, logger)
			equivalenceRepo := equivalencerepo.NewRepository(db, logger)

			authorityClient := authority.NewClient(authority.Config{
				BaseURL:  cfg.AuthorityBaseURL,
				Timeout:  cfg.AuthorityTimeout,
				CacheTTL: cfg.AuthorityCacheTTL,
				Enabled:  cfg.AuthorityLookupsEnabled,
			}, redisClient, logger)

			identifierResolver := identifiers.NewResolver(identifierRepo, equivalenceRepo, logger)
			agentResolver := agents.NewResolver(agentRepo, authorityClient, cfg.FuzzyNameThreshold, logger)
			clusterer := editions.NewClusterer(cfg.ClusterYearWeight, logger)
			editionService := editions.NewService(entityRepo, editionRepo, clusterer, logger)

			recordProcessor := processor.NewProcessor(
				processor.Config{
					MaxAttempts: cfg.MaxRecordAttempts,
					Topics: map[string]string{
						string(models.EntityKindWork):     cfg.KafkaWorkTopic,
						string(models.EntityKindInstance): cfg.KafkaInstanceTopic,
						string(models.EntityKindItem):     cfg.KafkaItemTopic,
					},
				},
				identifierResolver,
				entityRepo,
				identifierRepo,
				agentResolver,
				producer,
				editionService,
				logger,
			)

			container, err := ectoinject.NewDIDefaultContainer()
			if err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*equivalencerepo.Repository](container, equivalenceRepo); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*editionrepo.Repository](container, editionRepo); err != nil {
				return err
			}

			if !cfg.KafkaConsumerEnabled {
				logger.Info("Kafka consumers disabled")
				return nil
			}

			topics := []string{cfg.KafkaWorkTopic, cfg.KafkaInstanceTopic, cfg.KafkaItemTopic, cfg.KafkaClusterTopic}
			for _, topic := range topics {
				consumer := kafka.NewConsumer(kafka.ConsumerConfig{
					Brokers:       cfg.KafkaBrokers,
					Topic:         topic,
					ConsumerGroup: cfg.KafkaConsumerGroup,
				}, logger, recordProcessor.ProcessMessage)
				if err := consumer.Start(ctx); err != nil {
					return err
				}
				consumers = append(consumers, consumer)
			}
			return nil
		},
		stop: func(ctx context.Context) error {
			for _, consumer := range consumers {
				if err := consumer.Stop(); err != nil {
					return err
				}
			}
			return nil
		},
	})

	boot.AddDependency(&dependency{
		name:      "http-server",
		dependsOn: []string{"database", "redis", "consumers"},
		start: func(ctx context.Context) error {
			e = echo.New()
			e.HideBanner = true
			e.Use(otelecho.Middleware(cfg.AppName))
			e.Use(middleware.Logger(logger))
			e.HTTPErrorHandler = middleware.Error(logger)

			checker = health.NewChecker(db, redisClient, version)
			checker.RegisterRoutes(e)
			equivalenceroutes.Register(e.Group("/api/v1/equivalences"))
			editionroutes.Register(e.Group("/api/v1/editions"))

			go func() {
				if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
					logger.WithError(err).Info("HTTP server stopped")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		stop: func(ctx context.Context) error {
			if checker != nil {
				checker.SetReady(false)
			}
			if e == nil {
				return nil
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	logger.WithField("app", cfg.AppName).Info("Service started")

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}
