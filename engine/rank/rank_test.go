package rank

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

type fakeResolver struct {
	vehicles map[string]domain.Vehicle
}

func (f *fakeResolver) GetByID(id string) (domain.Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return domain.Vehicle{}, fmt.Errorf("catalog: %w: %s", domain.ErrVehicleNotFound, id)
	}
	return v, nil
}

func resolver() *fakeResolver {
	return &fakeResolver{vehicles: map[string]domain.Vehicle{
		"1": {UID: "1", Make: "Toyota", Model: "RAV4"},
		"2": {UID: "2", Make: "Ford", Model: "Ranger"},
		"3": {UID: "3", Make: "Kia", Model: "Sorento"},
		"4": {UID: "4", Make: "Mazda", Model: "CX-5"},
		"5": {UID: "5", Make: "Subaru", Model: "Outback"},
		"6": {UID: "6", Make: "Nissan", Model: "X-Trail"},
	}}
}

func salesTable() map[string]int {
	return map[string]int{
		"toyota_rav4": 58000,
		"ford_ranger": 61000,
		"kia_sorento": 12000,
		"mazda_cx_5":  25000,
	}
}

func ranked(ids ...string) []domain.RankedVehicle {
	out := make([]domain.RankedVehicle, len(ids))
	for i, id := range ids {
		out[i] = domain.RankedVehicle{VehicleID: id, MatchConfidence: 90 - i, Reasoning: "r" + id}
	}
	return out
}

func TestRank_SortsBySalesVolumeDesc(t *testing.T) {
	r := New(salesTable(), resolver(), nil)
	got := r.Rank(ranked("1", "2", "3"))
	want := []string{"2", "1", "3"}
	if !reflect.DeepEqual(got.VehicleIDs, want) {
		t.Fatalf("got %v, want %v", got.VehicleIDs, want)
	}
	// Metadata stays index-aligned with the reordered ids.
	if got.Metadata[0].VehicleID != "2" || got.Metadata[0].SalesVolume != 61000 {
		t.Fatalf("metadata misaligned: %+v", got.Metadata[0])
	}
	if got.Metadata[0].Reasoning != "r2" {
		t.Fatalf("relevance metadata should travel with its vehicle: %+v", got.Metadata[0])
	}
}

func TestRank_TiesKeepAnalyzerOrder(t *testing.T) {
	// 5 and 6 have no sales entry: both volume 0, analyzer order preserved.
	r := New(salesTable(), resolver(), nil)
	got := r.Rank(ranked("5", "6"))
	want := []string{"5", "6"}
	if !reflect.DeepEqual(got.VehicleIDs, want) {
		t.Fatalf("stable sort violated: got %v", got.VehicleIDs)
	}
}

func TestRank_TruncatesToMaxResults(t *testing.T) {
	r := New(salesTable(), resolver(), nil)
	got := r.Rank(ranked("1", "2", "3", "4", "5", "6"))
	if len(got.VehicleIDs) != MaxResults || len(got.Metadata) != MaxResults {
		t.Fatalf("expected %d results, got %d ids / %d metadata", MaxResults, len(got.VehicleIDs), len(got.Metadata))
	}
	// The zero-volume tail is what gets cut.
	for _, id := range got.VehicleIDs {
		if id == "6" {
			t.Fatal("lowest-volume tail entry should be truncated")
		}
	}
}

func TestRank_EmptyInput(t *testing.T) {
	r := New(salesTable(), resolver(), nil)
	got := r.Rank(nil)
	if len(got.VehicleIDs) != 0 || len(got.Metadata) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestRank_MissingCatalogEntryGetsZeroVolume(t *testing.T) {
	r := New(salesTable(), resolver(), nil)
	got := r.Rank(ranked("ghost", "1"))
	want := []string{"1", "ghost"}
	if !reflect.DeepEqual(got.VehicleIDs, want) {
		t.Fatalf("unresolvable id should sink with volume 0: got %v", got.VehicleIDs)
	}
}

func TestSalesVolume_NormalizedLookup(t *testing.T) {
	r := New(salesTable(), resolver(), nil)
	if got := r.SalesVolume("Mazda", "CX-5"); got != 25000 {
		t.Fatalf("normalized key lookup failed: %d", got)
	}
	if got := r.SalesVolume("Lada", "Niva"); got != 0 {
		t.Fatalf("absent key should default to 0: %d", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.json")
	if err := os.WriteFile(path, []byte(`{"toyota_rav4":58000}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path, resolver(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.SalesVolume("Toyota", "RAV4") != 58000 {
		t.Fatal("loaded table not used")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json"), resolver(), nil); err == nil {
		t.Fatal("expected error for missing table")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`[1,2]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad, resolver(), nil); err == nil {
		t.Fatal("expected error for malformed table")
	}
}
