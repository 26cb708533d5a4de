// Package search implements the embedding-search stage: semantic ranking of
// specification chunks against free-text requirements, scoped to a
// pre-filtered candidate id set, with one surviving variant per make/model.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/engine/semantic"
	"github.com/AutoMatchAI/automatch-mvp/pkg/fn"
	"github.com/AutoMatchAI/automatch-mvp/pkg/llm"
)

const (
	// SimilarityThreshold is the cosine-similarity cut for chunk relevance.
	SimilarityThreshold = 0.38
	// MaxChunkRows is a safety bound on rows fetched per query, not a
	// business rule.
	MaxChunkRows = 1000
	// MaxVehicles is how many deduplicated vehicles feed the analyzer.
	MaxVehicles = 30
)

// ChunkSearcher abstracts the vector-store collaborator.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, candidateIDs []string, threshold float32, limit int) ([]semantic.ChunkHit, error)
	IdentityChunks(ctx context.Context, vehicleIDs []string) ([]semantic.ChunkHit, error)
}

// VehicleMatch is one vehicle surviving the embedding search, with its
// relevant chunks sorted by similarity descending.
type VehicleMatch struct {
	VehicleID       string              `json:"vehicleId"`
	Make            string              `json:"make"`
	Model           string              `json:"model"`
	IdentityContent string              `json:"identityContent"`
	AvgSimilarity   float64             `json:"avgSimilarity"`
	MaxSimilarity   float64             `json:"maxSimilarity"`
	Chunks          []semantic.ChunkHit `json:"relevantChunks"`
}

// Searcher runs the embedding-search stage.
type Searcher struct {
	embed  llm.Embedder
	store  ChunkSearcher
	retry  fn.RetryOpts
	logger *slog.Logger
}

// New creates a Searcher. The embedding call is retried only on transient
// rate-limit/overload failures.
func New(embed llm.Embedder, store ChunkSearcher, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	retry := fn.DefaultRetry
	retry.ShouldRetry = llm.IsRetryable
	return &Searcher{embed: embed, store: store, retry: retry, logger: logger}
}

// Search embeds the joined requirement text and returns up to MaxVehicles
// deduplicated vehicles ordered by maximum chunk similarity. An empty
// candidate list short-circuits to an empty result without touching either
// collaborator. Collaborator errors propagate; there are no partial results.
func (s *Searcher) Search(ctx context.Context, requirements []string, candidateIDs []string) ([]VehicleMatch, error) {
	if len(candidateIDs) == 0 {
		s.logger.Info("embedding search skipped: no candidates")
		return nil, nil
	}

	query := strings.TrimSpace(strings.Join(requirements, " "))
	embedding, err := fn.Retry(ctx, s.retry, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(s.embed.EmbedQuery(ctx, query))
	}).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	hits, err := s.store.SearchChunks(ctx, embedding, candidateIDs, SimilarityThreshold, MaxChunkRows)
	if err != nil {
		return nil, fmt.Errorf("search: chunk query: %w", err)
	}
	s.logger.Info("chunk query done", "hits", len(hits), "candidates", len(candidateIDs))
	if len(hits) == 0 {
		return nil, nil
	}

	byVehicle := fn.GroupBy(hits, func(h semantic.ChunkHit) string { return h.VehicleID })
	vehicleIDs := make([]string, 0, len(byVehicle))
	for id := range byVehicle {
		vehicleIDs = append(vehicleIDs, id)
	}
	sort.Strings(vehicleIDs)

	identities, err := s.store.IdentityChunks(ctx, vehicleIDs)
	if err != nil {
		return nil, fmt.Errorf("search: identity chunks: %w", err)
	}
	identityByVehicle := make(map[string]semantic.ChunkHit, len(identities))
	for _, id := range identities {
		identityByVehicle[id.VehicleID] = id
	}

	survivors := dedupeVariants(vehicleIDs, byVehicle, identityByVehicle)
	s.logger.Info("variant dedup done", "before", len(vehicleIDs), "after", len(survivors))

	matches := make([]VehicleMatch, 0, len(survivors))
	for _, id := range survivors {
		identity, ok := identityByVehicle[id]
		if !ok {
			continue
		}
		make_, model := parseIdentity(identity.Content)
		matched := byVehicle[id]
		matches = append(matches, VehicleMatch{
			VehicleID:       id,
			Make:            make_,
			Model:           model,
			IdentityContent: identity.Content,
			AvgSimilarity:   avgSimilarity(matched),
			MaxSimilarity:   maxSimilarity(matched),
			Chunks:          relevantChunks(matched, identity),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MaxSimilarity > matches[j].MaxSimilarity
	})
	if len(matches) > MaxVehicles {
		matches = matches[:MaxVehicles]
	}
	return matches, nil
}

// variantCandidate pairs a vehicle with its average similarity for dedup.
type variantCandidate struct {
	vehicleID string
	avg       float64
}

// dedupeVariants keeps, within each normalized make+model group, only the
// vehicle with the highest average similarity across its matched chunks.
// Vehicles without a parseable identity chunk are dropped.
func dedupeVariants(vehicleIDs []string, byVehicle map[string][]semantic.ChunkHit, identities map[string]semantic.ChunkHit) []string {
	var candidates []variantCandidate
	keys := make(map[string]string, len(vehicleIDs)) // vehicleID -> make_model key
	for _, id := range vehicleIDs {
		identity, ok := identities[id]
		if !ok {
			continue
		}
		make_, model := parseIdentity(identity.Content)
		if make_ == "" || model == "" {
			continue
		}
		keys[id] = domain.NormalizeKey(make_, model)
		candidates = append(candidates, variantCandidate{vehicleID: id, avg: avgSimilarity(byVehicle[id])})
	}

	groups := fn.GroupBy(candidates, func(c variantCandidate) string { return keys[c.vehicleID] })

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	var out []string
	for _, k := range groupKeys {
		best, ok := fn.MaxBy(groups[k], func(c variantCandidate) float64 { return c.avg })
		if ok {
			out = append(out, best.vehicleID)
		}
	}
	return out
}

// relevantChunks returns the vehicle's matched chunks plus its identity chunk,
// sorted by similarity descending. Essential categories bypass the threshold
// once the vehicle has qualified via another chunk; the identity chunk is the
// only one that can still be missing at this point, since everything else
// already passed the store-side cut.
func relevantChunks(matched []semantic.ChunkHit, identity semantic.ChunkHit) []semantic.ChunkHit {
	chunks := make([]semantic.ChunkHit, 0, len(matched)+1)
	hasIdentity := false
	for _, c := range matched {
		if c.Category == semantic.CategoryIdentity {
			hasIdentity = true
		}
		chunks = append(chunks, c)
	}
	if !hasIdentity {
		chunks = append(chunks, identity)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})
	return chunks
}

// parseIdentity extracts make and model from an identity chunk's content,
// whose leading comma-separated fields are make then model.
func parseIdentity(content string) (string, string) {
	parts := strings.SplitN(content, ",", 3)
	if len(parts) < 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func avgSimilarity(chunks []semantic.ChunkHit) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += float64(c.Similarity)
	}
	return sum / float64(len(chunks))
}

func maxSimilarity(chunks []semantic.ChunkHit) float64 {
	var max float64
	for _, c := range chunks {
		if float64(c.Similarity) > max {
			max = float64(c.Similarity)
		}
	}
	return max
}
