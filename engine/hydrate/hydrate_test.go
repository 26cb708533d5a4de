package hydrate

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

type fakeCatalog struct {
	vehicles map[string]domain.Vehicle
	reviews  map[string][]domain.Review
}

func (f *fakeCatalog) GetByID(id string) (domain.Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return domain.Vehicle{}, fmt.Errorf("catalog: %w: %s", domain.ErrVehicleNotFound, id)
	}
	return v, nil
}

func (f *fakeCatalog) ReviewsFor(make, model string) []domain.Review {
	return f.reviews[make+"/"+model]
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestExtractSeats(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"Five seats configured 2+3", 5}, // number word wins over split pattern
		{"seven seater layout", 7},
		{"2+3 configuration", 5},
		{"2+3+2 theatre", 5}, // first split pair only
		{"7 seats", 7},
		{"8 SEATS", 8},
		{"seats for days", DefaultSeats},
		{"", DefaultSeats},
	}
	for _, c := range cases {
		if got := ExtractSeats(c.in); got != c.want {
			t.Errorf("ExtractSeats(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTrimKeywords(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"GXL 2.8 4x4", []string{"GXL"}},
		{"Wildtrak X", []string{"X"}},
		{"ST-X Warrior", []string{"ST", "X"}},
		{"sr5", nil},
		{"2.0 110", nil},
		{"", nil},
	}
	for _, c := range cases {
		if got := TrimKeywords(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("TrimKeywords(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestBestReview_PrefersKeywordOverlap(t *testing.T) {
	reviews := []domain.Review{
		{TrimKeywords: []string{"GXL"}, Rating: domain.RatingGood, PublishDate: day(1)},
		{TrimKeywords: nil, Rating: domain.RatingExcellent, PublishDate: day(20)},
	}
	got, ok := BestReview(reviews, "GXL 2.8")
	if !ok || got.Rating != domain.RatingGood {
		t.Fatalf("trim overlap should beat recency: %+v, %v", got, ok)
	}
}

func TestBestReview_FallsBackToPlainMostRecent(t *testing.T) {
	reviews := []domain.Review{
		{TrimKeywords: []string{"SR5"}, Rating: domain.RatingPoor, PublishDate: day(25)},
		{TrimKeywords: nil, Rating: domain.RatingGood, PublishDate: day(10)},
		{TrimKeywords: nil, Rating: domain.RatingGreat, PublishDate: day(15)},
	}
	got, ok := BestReview(reviews, "GXL")
	if !ok || got.Rating != domain.RatingGreat {
		t.Fatalf("expected most recent plain review: %+v, %v", got, ok)
	}
}

func TestBestReview_LastResortMostRecentOverall(t *testing.T) {
	reviews := []domain.Review{
		{TrimKeywords: []string{"SR5"}, Rating: domain.RatingGood, PublishDate: day(5)},
		{TrimKeywords: []string{"XLT"}, Rating: domain.RatingGreat, PublishDate: day(9)},
	}
	got, ok := BestReview(reviews, "GXL")
	if !ok || got.Rating != domain.RatingGreat {
		t.Fatalf("expected most recent overall: %+v, %v", got, ok)
	}
}

func TestBestReview_NoCandidates(t *testing.T) {
	if _, ok := BestReview(nil, "GXL"); ok {
		t.Fatal("no candidates should yield no review")
	}
}

func TestHydrate_MergesMetadataByPosition(t *testing.T) {
	cat := &fakeCatalog{
		vehicles: map[string]domain.Vehicle{
			"1": {UID: "1", Make: "Toyota", Model: "RAV4", Variant: "GXL", Year: 2024,
				RetailPrice: "45990", BodyType: domain.BodySUV, FuelType: domain.FuelHybrid,
				Seating: "5 seats"},
			"2": {UID: "2", Make: "Ford", Model: "Ranger", Variant: "Wildtrak", Year: 2023,
				RetailPrice: "62990", BodyType: domain.BodyUte, FuelType: domain.FuelDiesel},
		},
		reviews: map[string][]domain.Review{
			"Toyota/RAV4": {{Rating: domain.RatingGreat, URL: "https://example.com/rav4", PublishDate: day(3)}},
		},
	}
	h := New(cat, nil)

	meta := []domain.RankedVehicle{
		{VehicleID: "1", MatchConfidence: 88, Reasoning: "fits", SalesVolume: 58000},
		{VehicleID: "2", MatchConfidence: 75, Reasoning: "tows", SalesVolume: 61000},
	}
	got := h.Hydrate([]string{"1", "2"}, meta)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}

	first := got[0]
	if first.VehicleID != "1" || first.Make != "Toyota" || first.Seats != 5 || first.Price != 45990 {
		t.Fatalf("unexpected hydration: %+v", first)
	}
	if first.MatchConfidence != 88 || first.SalesVolume != 58000 || first.Reasoning != "fits" {
		t.Fatalf("metadata not merged: %+v", first)
	}
	if !first.HasReview || first.ReviewRating != domain.RatingGreat || first.ReviewURL == "" {
		t.Fatalf("review not attached: %+v", first)
	}
	if got[1].HasReview {
		t.Fatalf("vehicle without reviews should have none attached: %+v", got[1])
	}
}

func TestHydrate_DropsUnresolvableIDs(t *testing.T) {
	cat := &fakeCatalog{
		vehicles: map[string]domain.Vehicle{
			"2": {UID: "2", Make: "Ford", Model: "Ranger", RetailPrice: "62990"},
		},
	}
	h := New(cat, nil)

	meta := []domain.RankedVehicle{
		{VehicleID: "ghost", MatchConfidence: 90},
		{VehicleID: "2", MatchConfidence: 80, Reasoning: "tows"},
	}
	got := h.Hydrate([]string{"ghost", "2"}, meta)
	if len(got) != 1 {
		t.Fatalf("unresolvable id should drop silently, got %d results", len(got))
	}
	// The survivor keeps its own metadata despite the dropped predecessor.
	if got[0].VehicleID != "2" || got[0].MatchConfidence != 80 || got[0].Reasoning != "tows" {
		t.Fatalf("metadata misaligned after drop: %+v", got[0])
	}
}

func TestHydrate_Empty(t *testing.T) {
	h := New(&fakeCatalog{}, nil)
	if got := h.Hydrate(nil, nil); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}
