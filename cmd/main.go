package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"knowledge-base-platform/internal/ai"
	"knowledge-base-platform/internal/config"
	"knowledge-base-platform/internal/logger"
	"knowledge-base-platform/internal/queue"
	"knowledge-base-platform/internal/store"
	"knowledge-base-platform/internal/telemetry"
	"knowledge-base-platform/internal/vectorstore"
	"knowledge-base-platform/middleware"
	"knowledge-base-platform/routes"
	"knowledge-base-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("knowledge-base-platform")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
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

	generator, err := ai.NewGeminiGenerator(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to init generator:", err)
	}
	defer generator.Close()

	vectors := vectorstore.NewMongoVectorIndex(mongoClient, cfg, embedder.Dimensions())
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := vectors.EnsureSchema(ctx); err != nil {
			logger.Warn("vector schema setup failed, search index may be missing", "error", err)
		}
		cancel()
	}

	documents := store.NewDocumentStore(mongoClient, cfg)
	messages := store.NewMessageStore(mongoClient, cfg)

	queueClient := queue.NewClient(cfg.RedisURL, cfg.RedisPassword)
	defer queueClient.Close()

	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	indexer := services.NewIndexer(chunker, embedder, vectors, documents, metrics)
	retriever := services.NewRetriever(embedder, vectors, metrics,
		cfg.DefaultTopK, cfg.DefaultThreshold, cfg.MaxQueryLength)
	knowledgeSvc := services.NewKnowledgeService(documents, vectors, indexer, retriever,
		queueClient, cfg.SyncProcessingLimit)
	chatSvc := services.NewChatService(messages, retriever, generator)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics(metrics))
	router.Use(middleware.RateLimit(rdb, cfg.RateLimitReqs, cfg.RateLimitWindow))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "mongodb unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	auth := middleware.RequireAuth(cfg.JWTSecret)
	routes.SetupKnowledgeRoutes(router, knowledgeSvc, auth)
	routes.SetupChatRoutes(router, chatSvc, auth)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
