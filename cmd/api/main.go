// Package main implements the AutoMatch recommendation API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/AutoMatchAI/automatch-mvp/engine/analyze"
	"github.com/AutoMatchAI/automatch-mvp/engine/catalog"
	"github.com/AutoMatchAI/automatch-mvp/engine/converse"
	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/engine/hydrate"
	"github.com/AutoMatchAI/automatch-mvp/engine/pipeline"
	"github.com/AutoMatchAI/automatch-mvp/engine/rank"
	"github.com/AutoMatchAI/automatch-mvp/engine/search"
	"github.com/AutoMatchAI/automatch-mvp/engine/semantic"
	"github.com/AutoMatchAI/automatch-mvp/pkg/llm"
	"github.com/AutoMatchAI/automatch-mvp/pkg/metrics"
	"github.com/AutoMatchAI/automatch-mvp/pkg/mid"
	"github.com/AutoMatchAI/automatch-mvp/pkg/natsutil"
	"github.com/AutoMatchAI/automatch-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	VehiclesPart1  string
	VehiclesPart2  string
	ReviewsPath    string
	SalesPath      string
	QdrantURL      string
	Collection     string
	OpenAIToken    string
	EmbeddingModel string
	AnthropicToken string
	AnthropicModel string
	NATSURL        string
	CORSOrigin     string
	ConverseRate   float64
	ConverseBurst  int
}

func loadConfig() Config {
	return Config{
		Port:           envOr("PORT", "8080"),
		VehiclesPart1:  envOr("VEHICLES_PART1", "data/vehicles_part1.json"),
		VehiclesPart2:  envOr("VEHICLES_PART2", "data/vehicles_part2.json"),
		ReviewsPath:    envOr("REVIEWS_PATH", "data/reviews.json"),
		SalesPath:      envOr("SALES_PATH", "data/sales_volumes.json"),
		QdrantURL:      envOr("QDRANT_URL", "localhost:6334"),
		Collection:     envOr("QDRANT_COLLECTION", "automatch"),
		OpenAIToken:    os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		AnthropicToken: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel: envOr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		NATSURL:        os.Getenv("NATS_URL"),
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
		ConverseRate:   envFloat("CONVERSE_RATE", 2),
		ConverseBurst:  envInt("CONVERSE_BURST", 5),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Load catalog, reviews, sales ---
	store, err := catalog.Load(cfg.VehiclesPart1, cfg.VehiclesPart2, cfg.ReviewsPath)
	if err != nil {
		return fmt.Errorf("catalog load: %w", err)
	}
	logger.Info("catalog loaded", "vehicles", store.Len())

	ranker, err := rank.Load(cfg.SalesPath, store, logger)
	if err != nil {
		return fmt.Errorf("sales load: %w", err)
	}

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Build LLM collaborators ---
	embedder, err := llm.NewOpenAIEmbedder(cfg.OpenAIToken, cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	completer, err := llm.NewAnthropicCompleter(llm.CompleterOpts{
		Token:             cfg.AnthropicToken,
		Model:             cfg.AnthropicModel,
		RequestsPerSecond: 2,
		Burst:             2,
	})
	if err != nil {
		return fmt.Errorf("completer: %w", err)
	}
	guarded := &guardedCompleter{
		inner:   completer,
		breaker: resilience.NewBreaker(resilience.BreakerOpts{}),
	}

	// --- Optional NATS analytics ---
	var publish pipeline.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "automatch-api")
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		publish = natsPublisher(nc, logger)
	}

	// --- Assemble pipeline ---
	reg := metrics.NewRegistry()
	svc := pipeline.New(
		store,
		search.New(embedder, vectorStore, logger),
		analyze.New(guarded, logger),
		ranker,
		hydrate.New(store, logger),
		publish,
		pipeline.DefaultOptions(),
		reg,
		logger,
	)
	conversation := converse.NewHandler(guarded, logger)

	// --- Build HTTP server ---
	converseLimiter := resilience.NewLimiter(resilience.LimiterOpts{
		Rate:  cfg.ConverseRate,
		Burst: cfg.ConverseBurst,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /api/vector-search", handleVectorSearch(svc, logger))
	mux.HandleFunc("POST /api/criteria-search", handleCriteriaSearch(svc, logger))
	mux.Handle("POST /api/conversation",
		mid.RateLimit(converseLimiter)(handleConversation(conversation, logger)))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("automatch-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// guardedCompleter wraps the completion client with a circuit breaker so a
// failing provider sheds load fast instead of queueing timeouts.
type guardedCompleter struct {
	inner   llm.Completer
	breaker *resilience.Breaker
}

func (g *guardedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.breaker.Do(func() error {
		var err error
		out, err = g.inner.Complete(ctx, prompt)
		return err
	})
	return out, err
}

func natsPublisher(nc *nats.Conn, logger *slog.Logger) pipeline.EventPublisher {
	return func(ctx context.Context, ev pipeline.SearchEvent) {
		if err := natsutil.Publish(ctx, nc, "search.completed", ev); err != nil {
			logger.Warn("event publish failed", "err", err)
		}
	}
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// VectorSearchRequest is the JSON body for POST /api/vector-search.
type VectorSearchRequest struct {
	VectorRequirements []string `json:"vectorRequirements"`
	VehicleIDs         []string `json:"vehicleIds"`
}

func handleVectorSearch(svc *pipeline.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VectorSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Search(r.Context(), req.VectorRequirements, req.VehicleIDs)
		if err != nil {
			writePipelineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleCriteriaSearch(svc *pipeline.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var criteria domain.Criteria
		if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.SearchByCriteria(r.Context(), criteria)
		if err != nil {
			writePipelineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ConversationRequest is the JSON body for POST /api/conversation.
type ConversationRequest struct {
	ConversationHistory []converse.Message `json:"conversationHistory"`
}

func handleConversation(h *converse.Handler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.ConversationHistory) == 0 {
			writeError(w, http.StatusBadRequest, "conversationHistory is required")
			return
		}

		reply, err := h.Handle(r.Context(), req.ConversationHistory)
		if err != nil {
			logger.Error("conversation failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

// writePipelineError maps validation failures to 400 and everything else to a
// uniform 500 failure body.
func writePipelineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) ||
		errors.Is(err, domain.ErrEmptyRequirements) ||
		errors.Is(err, domain.ErrNoCandidates) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Error("pipeline search failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}
