package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/engine/hydrate"
	"github.com/AutoMatchAI/automatch-mvp/engine/rank"
	"github.com/AutoMatchAI/automatch-mvp/engine/search"
)

type stubSearcher struct {
	matches []search.VehicleMatch
	err     error
	calls   int
}

func (s *stubSearcher) Search(_ context.Context, _ []string, _ []string) ([]search.VehicleMatch, error) {
	s.calls++
	return s.matches, s.err
}

type stubAnalyzer struct {
	ranked []domain.RankedVehicle
	err    error
	calls  int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ []search.VehicleMatch, _ []string) ([]domain.RankedVehicle, error) {
	s.calls++
	return s.ranked, s.err
}

type stubRanker struct{}

func (stubRanker) Rank(ranked []domain.RankedVehicle) rank.Ranked {
	out := rank.Ranked{Metadata: ranked}
	for _, v := range ranked {
		out.VehicleIDs = append(out.VehicleIDs, v.VehicleID)
	}
	return out
}

type stubHydrator struct{}

func (stubHydrator) Hydrate(ids []string, metadata []domain.RankedVehicle) []hydrate.Result {
	out := make([]hydrate.Result, len(ids))
	for i, id := range ids {
		out[i] = hydrate.Result{VehicleID: id, MatchConfidence: metadata[i].MatchConfidence}
	}
	return out
}

type stubCatalog struct{ vehicles []domain.Vehicle }

func (s stubCatalog) All() []domain.Vehicle { return s.vehicles }

func match(id string) search.VehicleMatch {
	return search.VehicleMatch{VehicleID: id, Make: "Toyota", Model: "RAV4"}
}

func newService(searcher *stubSearcher, analyzer *stubAnalyzer, publish EventPublisher) *Service {
	return New(stubCatalog{}, searcher, analyzer, stubRanker{}, stubHydrator{}, publish, DefaultOptions(), nil, nil)
}

func TestSearch_Success(t *testing.T) {
	searcher := &stubSearcher{matches: []search.VehicleMatch{match("1"), match("2")}}
	analyzer := &stubAnalyzer{ranked: []domain.RankedVehicle{{VehicleID: "1", MatchConfidence: 88}}}
	svc := newService(searcher, analyzer, nil)

	resp, err := svc.Search(context.Background(), []string{"family suv"}, []string{"1", "2", "3"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if len(resp.Results) != 1 || resp.Results[0].VehicleID != "1" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	m := resp.Metadata
	if m.InputVehicles != 3 || m.FoundVehicles != 2 || m.QualifiedVehicles != 1 {
		t.Fatalf("unexpected funnel metadata: %+v", m)
	}
	if !strings.HasSuffix(m.SearchTime, "ms") {
		t.Fatalf("search time should be milliseconds text: %q", m.SearchTime)
	}
}

func TestSearch_ValidationFailure(t *testing.T) {
	svc := newService(&stubSearcher{}, &stubAnalyzer{}, nil)
	_, err := svc.Search(context.Background(), nil, []string{"1"})
	if !errors.Is(err, domain.ErrEmptyRequirements) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Search(context.Background(), []string{"x"}, nil)
	if !errors.Is(err, domain.ErrNoCandidates) {
		t.Fatalf("expected candidates error, got %v", err)
	}
}

func TestSearch_NoEmbeddingMatchesTerminalState(t *testing.T) {
	searcher := &stubSearcher{}
	analyzer := &stubAnalyzer{}
	svc := newService(searcher, analyzer, nil)

	resp, err := svc.Search(context.Background(), []string{"impossible"}, []string{"1", "2"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("expected no-match terminal state, got %+v", resp)
	}
	if resp.Metadata.QualifiedVehicles != 0 || resp.Metadata.InputVehicles != 2 {
		t.Fatalf("unexpected metadata: %+v", resp.Metadata)
	}
	if analyzer.calls != 0 {
		t.Fatal("analyzer must not run with no matches")
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("results must be an empty list, got %#v", resp.Results)
	}
}

func TestSearch_AnalyzerEmptyTerminalState(t *testing.T) {
	searcher := &stubSearcher{matches: []search.VehicleMatch{match("1")}}
	analyzer := &stubAnalyzer{}
	svc := newService(searcher, analyzer, nil)

	resp, err := svc.Search(context.Background(), []string{"very specific"}, []string{"1"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatalf("expected failure state, got %+v", resp)
	}
	if !strings.Contains(resp.Error, "less specific") {
		t.Fatalf("unexpected message: %q", resp.Error)
	}
	if resp.Metadata.FoundVehicles != 1 || resp.Metadata.QualifiedVehicles != 0 {
		t.Fatalf("unexpected metadata: %+v", resp.Metadata)
	}
}

func TestSearch_CollaboratorErrorsPropagate(t *testing.T) {
	svc := newService(&stubSearcher{err: errors.New("qdrant down")}, &stubAnalyzer{}, nil)
	if _, err := svc.Search(context.Background(), []string{"x"}, []string{"1"}); err == nil {
		t.Fatal("expected search error")
	}

	svc = newService(
		&stubSearcher{matches: []search.VehicleMatch{match("1")}},
		&stubAnalyzer{err: errors.New("llm down")}, nil)
	if _, err := svc.Search(context.Background(), []string{"x"}, []string{"1"}); err == nil {
		t.Fatal("expected analyze error")
	}
}

func TestSearch_PublishesEvent(t *testing.T) {
	var got *SearchEvent
	publish := func(_ context.Context, ev SearchEvent) { got = &ev }

	searcher := &stubSearcher{matches: []search.VehicleMatch{match("1")}}
	analyzer := &stubAnalyzer{ranked: []domain.RankedVehicle{{VehicleID: "1", MatchConfidence: 70}}}
	svc := newService(searcher, analyzer, publish)

	if _, err := svc.Search(context.Background(), []string{"x"}, []string{"1", "2"}); err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected event")
	}
	if got.InputVehicles != 2 || got.FoundVehicles != 1 || got.QualifiedVehicles != 1 {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestSearchByCriteria_FilterShortCircuit(t *testing.T) {
	searcher := &stubSearcher{}
	svc := New(
		stubCatalog{vehicles: []domain.Vehicle{
			{UID: "1", RetailPrice: "45990", BodyType: domain.BodySUV},
		}},
		searcher, &stubAnalyzer{}, stubRanker{}, stubHydrator{}, nil, DefaultOptions(), nil, nil)

	resp, err := svc.SearchByCriteria(context.Background(), domain.Criteria{
		Budget:       &domain.Budget{Min: 200000},
		Requirements: []string{"anything"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || searcher.calls != 0 {
		t.Fatalf("empty filter result must short-circuit: %+v, calls=%d", resp, searcher.calls)
	}
}

func TestSearchByCriteria_RunsPipelineOverFilterSurvivors(t *testing.T) {
	searcher := &stubSearcher{matches: []search.VehicleMatch{match("1")}}
	analyzer := &stubAnalyzer{ranked: []domain.RankedVehicle{{VehicleID: "1", MatchConfidence: 90}}}
	svc := New(
		stubCatalog{vehicles: []domain.Vehicle{
			{UID: "1", RetailPrice: "45990", BodyType: domain.BodySUV},
			{UID: "2", RetailPrice: "unknown", BodyType: domain.BodySUV},
		}},
		searcher, analyzer, stubRanker{}, stubHydrator{}, nil, DefaultOptions(), nil, nil)

	resp, err := svc.SearchByCriteria(context.Background(), domain.Criteria{
		Requirements: []string{"family suv"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Metadata.InputVehicles != 1 {
		t.Fatalf("expected one valid-price candidate: %+v", resp)
	}
}

func TestSearchByCriteria_InvalidCriteria(t *testing.T) {
	svc := newService(&stubSearcher{}, &stubAnalyzer{}, nil)
	_, err := svc.SearchByCriteria(context.Background(), domain.Criteria{
		BodyTypes: []domain.BodyType{"rocket"},
	})
	if !errors.Is(err, domain.ErrUnknownBodyType) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFilterCandidates_SharedImplementation(t *testing.T) {
	svc := New(
		stubCatalog{vehicles: []domain.Vehicle{
			{UID: "1", RetailPrice: "45990", BodyType: domain.BodySUV},
			{UID: "2", RetailPrice: "62990", BodyType: domain.BodyUte},
		}},
		&stubSearcher{}, &stubAnalyzer{}, stubRanker{}, stubHydrator{}, nil, DefaultOptions(), nil, nil)

	ids := svc.FilterCandidates(domain.Criteria{BodyTypes: []domain.BodyType{domain.BodyUte}})
	if len(ids) != 1 || ids[0] != "2" {
		t.Fatalf("unexpected filter result: %v", ids)
	}
}
