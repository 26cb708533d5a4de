// Package pipeline composes the candidate-narrowing funnel: structured filter,
// embedding search, requirement analysis, popularity re-rank, and hydration.
// Stages run strictly in order within a request; independent requests run
// concurrently against the read-only catalog and lookup tables.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/engine/filter"
	"github.com/AutoMatchAI/automatch-mvp/engine/hydrate"
	"github.com/AutoMatchAI/automatch-mvp/engine/rank"
	"github.com/AutoMatchAI/automatch-mvp/engine/search"
	"github.com/AutoMatchAI/automatch-mvp/pkg/metrics"
)

// VehicleSearcher is the embedding-search stage.
type VehicleSearcher interface {
	Search(ctx context.Context, requirements []string, candidateIDs []string) ([]search.VehicleMatch, error)
}

// RequirementAnalyzer is the confidence-ranking stage.
type RequirementAnalyzer interface {
	Analyze(ctx context.Context, candidates []search.VehicleMatch, requirements []string) ([]domain.RankedVehicle, error)
}

// PopularityRanker is the sales re-ranking stage.
type PopularityRanker interface {
	Rank(ranked []domain.RankedVehicle) rank.Ranked
}

// ResultHydrator expands final ids into display records.
type ResultHydrator interface {
	Hydrate(ids []string, metadata []domain.RankedVehicle) []hydrate.Result
}

// CatalogScanner provides the full vehicle list for the structured filter.
type CatalogScanner interface {
	All() []domain.Vehicle
}

// EventPublisher receives one event per completed search. Nil disables
// publishing.
type EventPublisher func(ctx context.Context, ev SearchEvent)

// SearchEvent is the per-request analytics event.
type SearchEvent struct {
	Requirements      []string      `json:"requirements"`
	InputVehicles     int           `json:"input_vehicles"`
	FoundVehicles     int           `json:"found_vehicles"`
	QualifiedVehicles int           `json:"qualified_vehicles"`
	Duration          time.Duration `json:"duration"`
}

// Options configures per-stage deadlines. The completion call dominates the
// whole-request budget.
type Options struct {
	SearchTimeout  time.Duration
	AnalyzeTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		SearchTimeout:  15 * time.Second,
		AnalyzeTimeout: 60 * time.Second,
	}
}

// Metadata summarizes the funnel for the response body.
type Metadata struct {
	SearchTime        string `json:"searchTime"`
	InputVehicles     int    `json:"inputVehicles"`
	FoundVehicles     int    `json:"foundVehicles"`
	QualifiedVehicles int    `json:"qualifiedVehicles"`
}

// Response is the pipeline outcome. Success false with a populated Error and
// zero results is the well-formed "no qualifying match" terminal state, not a
// technical failure — those surface as Go errors instead.
type Response struct {
	Success  bool             `json:"success"`
	Error    string           `json:"error,omitempty"`
	Results  []hydrate.Result `json:"results"`
	Metadata Metadata         `json:"metadata"`
}

// Service runs the pipeline.
type Service struct {
	catalog  CatalogScanner
	searcher VehicleSearcher
	analyzer RequirementAnalyzer
	ranker   PopularityRanker
	hydrator ResultHydrator
	publish  EventPublisher
	opts     Options
	logger   *slog.Logger

	searchesTotal *metrics.Counter
	emptyTotal    *metrics.Counter
	stageSeconds  *metrics.HistogramVec
}

// New creates a pipeline Service. reg may be nil to disable metrics.
func New(catalog CatalogScanner, searcher VehicleSearcher, analyzer RequirementAnalyzer, ranker PopularityRanker, hydrator ResultHydrator, publish EventPublisher, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &Service{
		catalog:       catalog,
		searcher:      searcher,
		analyzer:      analyzer,
		ranker:        ranker,
		hydrator:      hydrator,
		publish:       publish,
		opts:          opts,
		logger:        logger,
		searchesTotal: reg.Counter("pipeline_searches_total", "Total pipeline searches."),
		emptyTotal:    reg.Counter("pipeline_empty_results_total", "Searches ending in a no-match terminal state."),
		stageSeconds:  reg.HistogramVec("pipeline_stage_seconds", "Per-stage latency.", []string{"stage"}, metrics.DefaultBuckets),
	}
}

// FilterCandidates applies the structured filter to the full catalog. This is
// the single filter implementation behind both the wizard and conversational
// entry points.
func (s *Service) FilterCandidates(c domain.Criteria) []string {
	start := time.Now()
	ids := filter.Apply(s.catalog.All(), c)
	s.stageSeconds.Observe([]string{"filter"}, time.Since(start).Seconds())
	return ids
}

// SearchByCriteria runs the structured filter and then the full ranking
// pipeline using the criteria's free-text requirements.
func (s *Service) SearchByCriteria(ctx context.Context, c domain.Criteria) (Response, error) {
	if err := domain.ValidateCriteria(c); err != nil {
		return Response{}, err
	}
	ids := s.FilterCandidates(c)
	if len(ids) == 0 {
		s.emptyTotal.Inc()
		return emptyResponse("No vehicles matched your criteria. Try widening your budget or body type.", 0, 0), nil
	}
	return s.Search(ctx, c.Requirements, ids)
}

// Search runs the ranking pipeline over a pre-filtered candidate id set.
func (s *Service) Search(ctx context.Context, requirements []string, candidateIDs []string) (Response, error) {
	if err := domain.ValidateSearchRequest(requirements, candidateIDs); err != nil {
		return Response{}, err
	}

	s.searchesTotal.Inc()
	start := time.Now()
	tracer := otel.Tracer("engine/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.search")
	defer span.End()

	// Stage: embedding search.
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	matches, err := s.timedSearch(searchCtx, requirements, candidateIDs)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}
	if len(matches) == 0 {
		s.emptyTotal.Inc()
		return emptyResponse("No vehicle specifications were relevant to your requirements.", len(candidateIDs), 0), nil
	}

	// Stage: requirement analysis.
	analyzeCtx, cancel := context.WithTimeout(ctx, s.opts.AnalyzeTimeout)
	ranked, err := s.timedAnalyze(analyzeCtx, matches, requirements)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}
	if len(ranked) == 0 {
		s.emptyTotal.Inc()
		return emptyResponse(
			"No vehicles matched your specific requirements. Try adjusting your criteria or being less specific.",
			len(candidateIDs), len(matches)), nil
	}

	// Stage: popularity re-rank.
	rankStart := time.Now()
	reranked := s.ranker.Rank(ranked)
	s.stageSeconds.Observe([]string{"rank"}, time.Since(rankStart).Seconds())

	// Stage: hydration.
	hydrateStart := time.Now()
	results := s.hydrator.Hydrate(reranked.VehicleIDs, reranked.Metadata)
	s.stageSeconds.Observe([]string{"hydrate"}, time.Since(hydrateStart).Seconds())

	elapsed := time.Since(start)
	s.logger.Info("pipeline complete",
		"input", len(candidateIDs),
		"found", len(matches),
		"qualified", len(ranked),
		"results", len(results),
		"duration", elapsed,
	)

	if s.publish != nil {
		s.publish(ctx, SearchEvent{
			Requirements:      requirements,
			InputVehicles:     len(candidateIDs),
			FoundVehicles:     len(matches),
			QualifiedVehicles: len(ranked),
			Duration:          elapsed,
		})
	}

	return Response{
		Success: true,
		Results: results,
		Metadata: Metadata{
			SearchTime:        fmt.Sprintf("%dms", elapsed.Milliseconds()),
			InputVehicles:     len(candidateIDs),
			FoundVehicles:     len(matches),
			QualifiedVehicles: len(ranked),
		},
	}, nil
}

func (s *Service) timedSearch(ctx context.Context, requirements, candidateIDs []string) ([]search.VehicleMatch, error) {
	ctx, span := otel.Tracer("engine/pipeline").Start(ctx, "pipeline.embedding_search")
	defer span.End()
	start := time.Now()
	matches, err := s.searcher.Search(ctx, requirements, candidateIDs)
	s.stageSeconds.Observe([]string{"search"}, time.Since(start).Seconds())
	return matches, err
}

func (s *Service) timedAnalyze(ctx context.Context, matches []search.VehicleMatch, requirements []string) ([]domain.RankedVehicle, error) {
	ctx, span := otel.Tracer("engine/pipeline").Start(ctx, "pipeline.analyze")
	defer span.End()
	start := time.Now()
	ranked, err := s.analyzer.Analyze(ctx, matches, requirements)
	s.stageSeconds.Observe([]string{"analyze"}, time.Since(start).Seconds())
	return ranked, err
}

func emptyResponse(msg string, input, found int) Response {
	return Response{
		Success: false,
		Error:   msg,
		Results: []hydrate.Result{},
		Metadata: Metadata{
			InputVehicles:     input,
			FoundVehicles:     found,
			QualifiedVehicles: 0,
		},
	}
}
