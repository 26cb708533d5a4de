// Package main ingests the vehicle catalog into the vector store: it renders
// each catalog row into categorized specification chunks, embeds them in
// batches, and upserts them into Qdrant. Chunk ids are deterministic, so
// re-running refreshes the collection in place.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/AutoMatchAI/automatch-mvp/engine/catalog"
	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/engine/ingest"
	"github.com/AutoMatchAI/automatch-mvp/engine/semantic"
	"github.com/AutoMatchAI/automatch-mvp/pkg/fn"
	"github.com/AutoMatchAI/automatch-mvp/pkg/llm"
)

const (
	batchSize    = 64
	embedWorkers = 4
)

// Config holds all environment-based configuration.
type Config struct {
	VehiclesPart1  string
	VehiclesPart2  string
	ReviewsPath    string
	QdrantURL      string
	Collection     string
	OpenAIToken    string
	EmbeddingModel string
}

func loadConfig() Config {
	return Config{
		VehiclesPart1:  envOr("VEHICLES_PART1", "data/vehicles_part1.json"),
		VehiclesPart2:  envOr("VEHICLES_PART2", "data/vehicles_part2.json"),
		ReviewsPath:    envOr("REVIEWS_PATH", "data/reviews.json"),
		QdrantURL:      envOr("QDRANT_URL", "localhost:6334"),
		Collection:     envOr("QDRANT_COLLECTION", "automatch"),
		OpenAIToken:    os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := catalog.Load(cfg.VehiclesPart1, cfg.VehiclesPart2, cfg.ReviewsPath)
	if err != nil {
		return fmt.Errorf("catalog load: %w", err)
	}

	embedder, err := llm.NewOpenAIEmbedder(cfg.OpenAIToken, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	docEmbedder, ok := embedder.(llm.DocEmbedder)
	if !ok {
		return fmt.Errorf("embedder does not support document batches")
	}

	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	records := buildRecords(store.All())
	logger.Info("chunks built", "vehicles", store.Len(), "chunks", len(records))
	if len(records) == 0 {
		return fmt.Errorf("no chunks to ingest")
	}

	// Probe one embedding for the collection dimensionality.
	probe, err := docEmbedder.EmbedQuery(ctx, records[0].Content)
	if err != nil {
		return fmt.Errorf("probe embedding: %w", err)
	}
	if err := vectorStore.EnsureCollection(ctx, len(probe)); err != nil {
		return err
	}

	batches := fn.Chunk(records, batchSize)
	results := fn.ParMapResult(batches, embedWorkers, func(batch []semantic.ChunkRecord) fn.Result[int] {
		return fn.FromPair(ingestBatch(ctx, docEmbedder, vectorStore, batch))
	})

	total := 0
	failed := 0
	for _, r := range results {
		n, err := r.Unwrap()
		if err != nil {
			failed++
			logger.Error("batch failed", "err", err)
			continue
		}
		total += n
	}
	logger.Info("ingest complete", "chunks", total, "failed_batches", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d batches failed", failed, len(batches))
	}
	return nil
}

func buildRecords(vehicles []domain.Vehicle) []semantic.ChunkRecord {
	var records []semantic.ChunkRecord
	for _, v := range vehicles {
		records = append(records, ingest.BuildChunks(v)...)
	}
	return records
}

func ingestBatch(ctx context.Context, embedder llm.DocEmbedder, store *semantic.VectorStore, batch []semantic.ChunkRecord) (int, error) {
	texts := fn.Map(batch, func(r semantic.ChunkRecord) string { return r.Content })
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(batch))
	}
	for i := range batch {
		batch[i].Embedding = vectors[i]
	}
	if err := store.Upsert(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}
