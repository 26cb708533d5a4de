// Package hydrate expands final ranked vehicle ids into full display records
// and attaches ranking metadata.
package hydrate

import (
	"log/slog"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

// CatalogReader is the catalog surface the hydrator consumes.
type CatalogReader interface {
	GetByID(id string) (domain.Vehicle, error)
	ReviewsFor(make, model string) []domain.Review
}

// Result is one fully hydrated short-list entry.
type Result struct {
	VehicleID       string              `json:"vehicleId"`
	Make            string              `json:"make"`
	Model           string              `json:"model"`
	Variant         string              `json:"variant,omitempty"`
	BodyType        domain.BodyType     `json:"bodyType"`
	FuelType        domain.FuelType     `json:"fuelType"`
	Seats           int                 `json:"seats"`
	Price           float64             `json:"price"`
	Year            int                 `json:"year"`
	HasReview       bool                `json:"hasReview"`
	ReviewRating    domain.ReviewRating `json:"reviewRating,omitempty"`
	ReviewURL       string              `json:"reviewUrl,omitempty"`
	MatchConfidence int                 `json:"matchConfidence"`
	Reasoning       string              `json:"reasoning"`
	SalesVolume     int                 `json:"salesVolume"`
}

// Hydrator expands ids via the catalog.
type Hydrator struct {
	catalog CatalogReader
	logger  *slog.Logger
}

// New creates a Hydrator.
func New(catalog CatalogReader, logger *slog.Logger) *Hydrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hydrator{catalog: catalog, logger: logger}
}

// Hydrate expands each id into a display record, merging in the re-ranker
// metadata by positional correspondence with the input id order. An id the
// catalog cannot resolve is dropped silently — never an error for the whole
// request — and the remaining records keep their relative order and their own
// metadata.
func (h *Hydrator) Hydrate(ids []string, metadata []domain.RankedVehicle) []Result {
	var out []Result
	for i, id := range ids {
		vehicle, err := h.catalog.GetByID(id)
		if err != nil {
			h.logger.Warn("dropping unresolvable vehicle id", "vehicle_id", id)
			continue
		}

		price, _ := vehicle.Price()
		r := Result{
			VehicleID: vehicle.UID,
			Make:      vehicle.Make,
			Model:     vehicle.Model,
			Variant:   vehicle.Variant,
			BodyType:  vehicle.BodyType,
			FuelType:  vehicle.FuelType,
			Seats:     ExtractSeats(vehicle.Seating),
			Price:     price,
			Year:      vehicle.Year,
		}

		if review, ok := BestReview(h.catalog.ReviewsFor(vehicle.Make, vehicle.Model), vehicle.Variant); ok {
			r.HasReview = true
			r.ReviewRating = review.Rating
			r.ReviewURL = review.URL
		}

		if i < len(metadata) {
			r.MatchConfidence = metadata[i].MatchConfidence
			r.Reasoning = metadata[i].Reasoning
			r.SalesVolume = metadata[i].SalesVolume
		}

		out = append(out, r)
	}
	return out
}
