package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medra-health/medirag/internal/config"
	"github.com/medra-health/medirag/internal/database"
	"github.com/medra-health/medirag/internal/index"
	"github.com/medra-health/medirag/internal/openai"
	"github.com/medra-health/medirag/internal/service"
	"github.com/medra-health/medirag/internal/storage"
)

// components holds the wired service graph shared by serve and reindex.
type components struct {
	ingestion *service.IngestionService
	retrieval *service.RetrievalService
	chat      *service.ChatService

	pool *pgxpool.Pool
}

func (c *components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func buildComponents(ctx context.Context, cfg *config.Config, migrateDB bool) (*components, error) {
	if !cfg.HasS3() {
		return nil, fmt.Errorf("S3 storage not configured (set MEDIRAG_S3_ENDPOINT, MEDIRAG_S3_ACCESS_KEY_ID, MEDIRAG_S3_SECRET_ACCESS_KEY)")
	}
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("embedding provider not configured (set MEDIRAG_OPENAI_API_KEY)")
	}

	store, err := storage.NewS3Store(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	embedClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		BatchSize:           cfg.EmbedBatchSize,
		RequestTimeout:      cfg.RequestTimeout,
	})
	chatClient := openai.NewChatClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.RequestTimeout)

	var (
		pool *pgxpool.Pool
		idx  service.VectorIndex
	)
	if cfg.HasPostgres() {
		pool, err = database.NewPool(ctx, cfg.DatabaseURL, database.Config{MaxConns: 8, MinConns: 2})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("connected to database")

		if migrateDB {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		pgIndex, err := index.NewPostgres(pool, cfg.Collection, cfg.EmbeddingDimensions)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		idx = pgIndex
	} else {
		idx = index.NewMemory(cfg.EmbeddingDimensions)
		log.Println("using in-process vector index (MEDIRAG_DATABASE_URL not set)")
	}

	// The index re-ensures lazily on first write or query, so a failure
	// here only delays table creation.
	if err := idx.Ensure(ctx); err != nil {
		log.Printf("vector index not ready yet: %v", err)
	}

	chunkCfg := service.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	}

	ingestion := service.NewIngestionService(store, embedClient, idx, chunkCfg)
	retrieval := service.NewRetrievalService(embedClient, idx)
	chat := service.NewChatService(retrieval, chatClient)

	return &components{
		ingestion: ingestion,
		retrieval: retrieval,
		chat:      chat,
		pool:      pool,
	}, nil
}
