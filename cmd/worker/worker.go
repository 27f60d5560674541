package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-base-platform/internal/ai"
	"knowledge-base-platform/internal/config"
	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/internal/queue"
	"knowledge-base-platform/internal/schedule"
	"knowledge-base-platform/internal/store"
	"knowledge-base-platform/internal/telemetry"
	"knowledge-base-platform/internal/vectorstore"
	"knowledge-base-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	embedder, err := ai.NewEmbeddingClient(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to init embedding client:", err)
	}
	defer embedder.Close()

	vectors := vectorstore.NewMongoVectorIndex(mongoClient, cfg, embedder.Dimensions())
	documents := store.NewDocumentStore(mongoClient, cfg)

	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	indexer := services.NewIndexer(chunker, embedder, vectors, documents, metrics)
	reaper := services.NewOrphanReaper(vectors, documents, metrics)

	// Periodic reconciliation between the vector index and the rows.
	scheduler := schedule.NewScheduler()
	if err := scheduler.Cron("orphan-reaper", cfg.ReaperCron, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_, err := reaper.Sweep(ctx)
		return err
	}); err != nil {
		log.Fatal("Failed to schedule orphan reaper:", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(indexer, documents)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexDocument, processor.HandleIndexDocument)

	logger.Info("worker starting", "redis", cfg.RedisURL, "reaper_cron", cfg.ReaperCron)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
