package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/config"
	"github.com/Ramsey-B/banksia/internal/repositories/goldenrecord"
	"github.com/Ramsey-B/banksia/internal/repositories/matchedge"
	"github.com/Ramsey-B/banksia/internal/repositories/override"
	"github.com/Ramsey-B/banksia/internal/repositories/patientrecord"
	"github.com/Ramsey-B/banksia/pkg/database"
	"github.com/Ramsey-B/banksia/pkg/events"
	"github.com/Ramsey-B/banksia/pkg/graph"
	"github.com/Ramsey-B/banksia/pkg/kafka"
	"github.com/Ramsey-B/banksia/pkg/logging"
	"github.com/Ramsey-B/banksia/pkg/matching"
	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/oracle"
	"github.com/Ramsey-B/banksia/pkg/pipeline"
	"github.com/Ramsey-B/banksia/pkg/quality"
	"github.com/Ramsey-B/banksia/pkg/resolution"
	goldenroutes "github.com/Ramsey-B/banksia/pkg/routes/goldenrecord"
	"github.com/Ramsey-B/banksia/pkg/routes/health"
	recordroutes "github.com/Ramsey-B/banksia/pkg/routes/records"
	resolutionroutes "github.com/Ramsey-B/banksia/pkg/routes/resolution"
	"github.com/Ramsey-B/banksia/pkg/server"
	"github.com/Ramsey-B/banksia/pkg/tracing"
	"github.com/Ramsey-B/banksia/pkg/version"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to shut down tracing", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := database.RunMigrations(db, cfg.DatabaseMigrationFolderPath, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	recordRepo := patientrecord.NewRepository(db, logger)
	edgeRepo := matchedge.NewRepository(db, logger)
	goldenRepo := goldenrecord.NewRepository(db, logger)
	overrideRepo := override.NewRepository(db, logger)

	scorer, err := buildOracle(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build similarity oracle", zap.Error(err))
	}

	matcher := matching.New(scorer, matching.NewMemoryEdgeCache(), logger, matching.Config{
		Concurrency:   cfg.OracleConcurrency,
		OracleTimeout: cfg.OracleTimeout,
	})
	assessor := quality.New(scorer, logger, quality.Config{
		Concurrency:        cfg.OracleConcurrency,
		OracleTimeout:      cfg.OracleTimeout,
		MinPopulatedFields: cfg.MinPopulatedFields,
	})
	engine := pipeline.New(matcher, assessor, logger, pipeline.Config{
		AcceptThreshold: cfg.AcceptThreshold,
		ReviewThreshold: cfg.ReviewThreshold,
	})

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaAuditTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer func() { _ = producer.Close() }()
	emitter := events.NewEmitter(producer, logger)

	var projector resolution.LineageProjector
	var lineage goldenroutes.LineageSource
	if cfg.GraphDBEnabled {
		graphClient, err := graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create graph client", zap.Error(err))
		}
		defer func() { _ = graphClient.Close(context.Background()) }()

		if err := graphClient.VerifyConnectivity(ctx); err != nil {
			logger.Fatal("graph database unreachable", zap.Error(err))
		}
		projector = graphClient
		lineage = graphClient
	}

	service := resolution.New(engine, recordRepo, edgeRepo, goldenRepo, overrideRepo, emitter, projector, logger)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, func(ctx context.Context, req *models.IngestRecordRequest) error {
			ingestedAt := time.Now().UTC()
			if req.IngestedAt != nil {
				ingestedAt = req.IngestedAt.UTC()
			}
			return recordRepo.Create(ctx, &models.Record{
				RecordID:     req.RecordID,
				SourceSystem: req.SourceSystem,
				IngestedAt:   ingestedAt,
				Fields:       req.Fields,
			})
		})
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal("failed to start kafka consumer", zap.Error(err))
		}
		defer func() { _ = consumer.Stop() }()
	}

	e := server.New(cfg, logger)

	checker := health.NewChecker(db, consumerHealth(consumer), version.Version)
	checker.RegisterRoutes(e)

	recordroutes.NewHandler(recordRepo).RegisterRoutes(e.Group("/api/v1/records"))
	resolutionroutes.NewHandler(service, edgeRepo).RegisterRoutes(e.Group("/api/v1/resolution"))
	goldenroutes.NewHandler(goldenRepo, overrideRepo, lineage).RegisterRoutes(e.Group("/api/v1/golden-records"))

	checker.SetReady(true)

	if err := server.Start(ctx, e, cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// consumerHealth keeps a nil consumer from becoming a non-nil interface.
func consumerHealth(c *kafka.Consumer) interface{ Health() bool } {
	if c == nil {
		return nil
	}
	return c
}

func buildOracle(cfg config.Config, logger *zap.Logger) (oracle.Oracle, error) {
	switch cfg.OracleKind {
	case "model":
		return oracle.NewModelOracle(oracle.ModelConfig{
			Endpoint: cfg.OracleEndpoint,
			Model:    cfg.OracleModel,
			APIKey:   cfg.OracleAPIKey,
		}, logger)
	default:
		return oracle.NewRuleOracle(oracle.RuleConfig{MatchThreshold: cfg.AcceptThreshold}), nil
	}
}
