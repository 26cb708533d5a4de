// Package catalog owns the static vehicle and review datasets. Both are loaded
// exactly once at process start and are safe for unsynchronized concurrent
// reads afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

// Store is the in-memory catalog with an id index built at load time.
type Store struct {
	vehicles []domain.Vehicle
	byID     map[string]*domain.Vehicle
	reviews  []domain.Review
}

// Load reads the two partitioned vehicle sources and the review dataset,
// concatenates the vehicle parts in order, and indexes by UID. A missing or
// malformed source is a fatal initialization error.
func Load(vehiclePart1, vehiclePart2, reviewPath string) (*Store, error) {
	part1, err := readVehicles(vehiclePart1)
	if err != nil {
		return nil, err
	}
	part2, err := readVehicles(vehiclePart2)
	if err != nil {
		return nil, err
	}
	reviews, err := readReviews(reviewPath)
	if err != nil {
		return nil, err
	}
	return New(append(part1, part2...), reviews), nil
}

// New builds a Store from already-decoded records. Later duplicates of a UID
// are ignored; the catalog invariant is one record per id.
func New(vehicles []domain.Vehicle, reviews []domain.Review) *Store {
	s := &Store{
		vehicles: vehicles,
		byID:     make(map[string]*domain.Vehicle, len(vehicles)),
		reviews:  reviews,
	}
	for i := range s.vehicles {
		v := &s.vehicles[i]
		if _, dup := s.byID[v.UID]; !dup {
			s.byID[v.UID] = v
		}
	}
	return s
}

// All returns the full vehicle list in catalog order. Callers must not mutate.
func (s *Store) All() []domain.Vehicle {
	return s.vehicles
}

// GetByID returns the vehicle for the given UID.
func (s *Store) GetByID(id string) (domain.Vehicle, error) {
	v, ok := s.byID[id]
	if !ok {
		return domain.Vehicle{}, fmt.Errorf("catalog: %w: %s", domain.ErrVehicleNotFound, id)
	}
	return *v, nil
}

// ReviewsFor returns the candidate reviews sharing the vehicle's make and
// model, matched case-insensitively.
func (s *Store) ReviewsFor(make, model string) []domain.Review {
	var out []domain.Review
	for _, r := range s.reviews {
		if strings.EqualFold(r.Make, make) && strings.EqualFold(r.Model, model) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the catalog size.
func (s *Store) Len() int { return len(s.vehicles) }

func readVehicles(path string) ([]domain.Vehicle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var vehicles []domain.Vehicle
	if err := json.Unmarshal(data, &vehicles); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return vehicles, nil
}

func readReviews(path string) ([]domain.Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var reviews []domain.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return reviews, nil
}
