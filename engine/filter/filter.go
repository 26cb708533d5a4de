// Package filter reduces the full catalog to the subset satisfying hard
// constraints. It is the single structured-filter implementation shared by the
// wizard and conversational entry points.
package filter

import (
	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

// Apply returns the UIDs of vehicles satisfying every constrained dimension of
// the criteria, in catalog order. Vehicles without a valid positive price are
// excluded regardless of the other criteria. Empty criteria on every dimension
// yields the full valid-price catalog.
func Apply(vehicles []domain.Vehicle, c domain.Criteria) []string {
	var ids []string
	for _, v := range vehicles {
		if Matches(v, c) {
			ids = append(ids, v.UID)
		}
	}
	return ids
}

// Matches reports whether a single vehicle passes the criteria.
func Matches(v domain.Vehicle, c domain.Criteria) bool {
	price, ok := v.Price()
	if !ok {
		return false
	}
	if c.Budget != nil && !c.Budget.Contains(price) {
		return false
	}
	if len(c.UseCases) > 0 && !matchesUseCases(v, c.UseCases) {
		return false
	}
	if len(c.BodyTypes) > 0 && !containsBody(c.BodyTypes, v.BodyType) {
		return false
	}
	if len(c.FuelTypes) > 0 && !containsFuel(c.FuelTypes, v.FuelType) {
		return false
	}
	for _, f := range c.Features {
		if !v.Features[f] {
			return false
		}
	}
	return true
}

// matchesUseCases evaluates the OR-group semantics: the required tags are
// partitioned into family, towing, and off-road groups plus a strict
// remainder. The vehicle must carry at least one tag from each non-empty
// group, and every tag in the remainder.
func matchesUseCases(v domain.Vehicle, required []domain.UseCaseTag) bool {
	have := make(map[domain.UseCaseTag]bool, len(v.UseCases))
	for _, t := range v.UseCases {
		have[t] = true
	}

	groups := make(map[domain.UseCaseGroup][]domain.UseCaseTag)
	for _, t := range required {
		groups[t.Group()] = append(groups[t.Group()], t)
	}

	for _, g := range []domain.UseCaseGroup{domain.GroupFamily, domain.GroupTowing, domain.GroupOffroad} {
		tags := groups[g]
		if len(tags) == 0 {
			continue
		}
		anyMatch := false
		for _, t := range tags {
			if have[t] {
				anyMatch = true
				break
			}
		}
		if !anyMatch {
			return false
		}
	}

	for _, t := range groups[domain.GroupOther] {
		if !have[t] {
			return false
		}
	}
	return true
}

func containsBody(set []domain.BodyType, b domain.BodyType) bool {
	for _, x := range set {
		if x == b {
			return true
		}
	}
	return false
}

func containsFuel(set []domain.FuelType, f domain.FuelType) bool {
	for _, x := range set {
		if x == f {
			return true
		}
	}
	return false
}
