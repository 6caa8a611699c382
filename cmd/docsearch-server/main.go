package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docsearch/internal/config"
	"docsearch/internal/db"
	"docsearch/internal/repositories"
	"docsearch/internal/services"
	"docsearch/internal/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment defaults")
	}

	logger := log.New(os.Stdout, "[DOCSEARCH] ", log.LstdFlags)
	cfg := config.Load()

	redisClient, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatalf("❌ Failed to create Redis client: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx); err != nil {
		cancel()
		logger.Fatalf("❌ Redis not reachable at %s:%d: %v", cfg.Redis.Host, cfg.Redis.Port, err)
	}
	cancel()
	logger.Println("✅ Connected to Redis job store")

	esClient := db.NewElasticsearchClient(cfg.Elasticsearch)
	hbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := esClient.Heartbeat(hbCtx); err != nil {
		logger.Printf("⚠️  Elasticsearch not reachable at %s:%d: %v", cfg.Elasticsearch.Host, cfg.Elasticsearch.Port, err)
		logger.Println("   Indexing jobs will fail until the document store is available")
	} else {
		logger.Println("✅ Connected to Elasticsearch document store")
	}
	cancel()

	embedder := services.NewEmbeddingClient(cfg.EmbeddingServiceURL)
	healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if healthy, err := embedder.HealthCheck(healthCtx); err != nil || !healthy {
		logger.Printf("⚠️  Embedding service not reachable at %s", cfg.EmbeddingServiceURL)
		logger.Println("   Documents will be indexed without vectors until it recovers")
	} else {
		logger.Println("✅ Embedding service is healthy")
	}
	cancel()

	svcLogger := &services.DefaultLogger{}

	jobRepo := repositories.NewRedisJobRepositoryWithTTL(redisClient, cfg.JobTTL)
	processor := services.NewDocumentProcessor(esClient, embedder, svcLogger, cfg.DefaultIndex)
	runner := services.NewTaskRunner(processor)
	pool := workers.NewPool(workers.PoolConfig{Size: cfg.PoolSize})
	batch := services.NewBatchService(jobRepo, runner, pool, svcLogger)

	scheduler := services.NewJobSchedulerWithGrace(batch, svcLogger, cfg.MisfireGrace)
	if err := scheduler.SetupDefaultSchedules(cfg.DefaultIndex); err != nil {
		logger.Fatalf("❌ Failed to register default schedules: %v", err)
	}
	scheduler.Start()
	logger.Println("✅ Job scheduler started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Println("Shutting down...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Printf("⚠️  Worker pool did not drain in time: %v", err)
	}

	if err := jobRepo.Close(); err != nil {
		logger.Printf("⚠️  Failed to close Redis client: %v", err)
	}
	esClient.Close()
	logger.Println("Shutdown complete")
}
