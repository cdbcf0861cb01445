package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"manifest-relay/internal/config"
	"manifest-relay/internal/db"
	"manifest-relay/internal/logger"
	"manifest-relay/internal/pipeline"
	"manifest-relay/internal/queue"
	"manifest-relay/internal/storage"
	"manifest-relay/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting relay worker")

	// Initialize Redis client
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize S3 storage
	s3Storage, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
	}

	// Cancelling the context stops the current run before its next row.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runs worker.RunStore = queue.NewStatusStore(redisClient, cfg)
	if cfg.Database.Enabled {
		conn, err := db.NewConnection(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer conn.Close()

		history := db.NewRepository(conn)
		if err := history.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare run history")
		}
		runs = db.NewArchivingStore(runs, history, logger.Component("history"))
	}

	relayWorker := worker.NewRelayWorker(
		cfg,
		s3Storage,
		queue.NewConsumer(redisClient, cfg),
		pipeline.NewFromConfig(cfg),
		runs,
	)

	if err := relayWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Relay worker failed")
		os.Exit(1)
	}

	log.Info().Msg("Relay worker exited")
}
