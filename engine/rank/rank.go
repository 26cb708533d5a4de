// Package rank reorders the analyzer's output by a static national
// sales-popularity table, trading relevance rank for market-popularity rank
// while retaining relevance metadata.
package rank

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

// MaxResults is the short-list size emitted by the re-ranker.
const MaxResults = 5

// VehicleResolver resolves ids back to catalog records.
type VehicleResolver interface {
	GetByID(id string) (domain.Vehicle, error)
}

// Ranked is the re-ranker's output: the ordered id list and a parallel
// metadata list preserving index correspondence.
type Ranked struct {
	VehicleIDs []string               `json:"rankedVehicleIds"`
	Metadata   []domain.RankedVehicle `json:"metadata"`
}

// Ranker holds the read-only sales lookup, loaded once at startup.
type Ranker struct {
	sales    map[string]int
	vehicles VehicleResolver
	logger   *slog.Logger
}

// Load reads the sales lookup table. A missing or malformed table is a fatal
// initialization error.
func Load(path string, vehicles VehicleResolver, logger *slog.Logger) (*Ranker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rank: read %s: %w", path, err)
	}
	var sales map[string]int
	if err := json.Unmarshal(data, &sales); err != nil {
		return nil, fmt.Errorf("rank: decode %s: %w", path, err)
	}
	return New(sales, vehicles, logger), nil
}

// New builds a Ranker from an already-decoded lookup.
func New(sales map[string]int, vehicles VehicleResolver, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{sales: sales, vehicles: vehicles, logger: logger}
}

// SalesVolume returns the sales volume for a make/model, defaulting to 0 when
// the normalized key is absent.
func (r *Ranker) SalesVolume(make, model string) int {
	return r.sales[domain.NormalizeKey(make, model)]
}

// Rank stable-sorts the analyzer's list by sales volume descending — ties
// retain the analyzer's relative order — and truncates to MaxResults. An
// empty input short-circuits to an empty result without touching the lookup.
func (r *Ranker) Rank(ranked []domain.RankedVehicle) Ranked {
	if len(ranked) == 0 {
		return Ranked{}
	}

	withSales := make([]domain.RankedVehicle, len(ranked))
	for i, v := range ranked {
		v.SalesVolume = 0
		if vehicle, err := r.vehicles.GetByID(v.VehicleID); err == nil {
			v.SalesVolume = r.SalesVolume(vehicle.Make, vehicle.Model)
		} else {
			r.logger.Warn("ranked vehicle missing from catalog", "vehicle_id", v.VehicleID)
		}
		withSales[i] = v
	}

	sort.SliceStable(withSales, func(i, j int) bool {
		return withSales[i].SalesVolume > withSales[j].SalesVolume
	})
	if len(withSales) > MaxResults {
		withSales = withSales[:MaxResults]
	}

	out := Ranked{
		VehicleIDs: make([]string, len(withSales)),
		Metadata:   withSales,
	}
	for i, v := range withSales {
		out.VehicleIDs[i] = v.VehicleID
	}
	return out
}
