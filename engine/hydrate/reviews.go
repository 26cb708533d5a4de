package hydrate

import (
	"strconv"
	"strings"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

// TrimKeywords extracts the trim keywords from a variant label: tokens
// delimited by whitespace, hyphens, and periods that are fully uppercase,
// excluding pure numeric and decimal tokens. "GXL 2.8 4x4" yields ["GXL"].
func TrimKeywords(variant string) []string {
	tokens := strings.FieldsFunc(variant, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '.'
	})
	var out []string
	for _, t := range tokens {
		if t == "" || t != strings.ToUpper(t) {
			continue
		}
		if _, err := strconv.ParseFloat(t, 64); err == nil {
			continue
		}
		if !strings.ContainsFunc(t, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// BestReview selects exactly one review for a vehicle from the candidates
// sharing its make and model. Preference order: keyword overlap with the
// vehicle's parsed trim keywords, then the most recently published review
// among candidates lacking trim keywords, then the most recent overall.
func BestReview(candidates []domain.Review, vehicleTrim string) (domain.Review, bool) {
	if len(candidates) == 0 {
		return domain.Review{}, false
	}

	vehicleKeywords := TrimKeywords(vehicleTrim)

	var overlapping, plain []domain.Review
	for _, r := range candidates {
		switch {
		case keywordOverlap(r.TrimKeywords, vehicleKeywords):
			overlapping = append(overlapping, r)
		case len(r.TrimKeywords) == 0:
			plain = append(plain, r)
		}
	}

	if len(overlapping) > 0 {
		return mostRecent(overlapping), true
	}
	if len(plain) > 0 {
		return mostRecent(plain), true
	}
	return mostRecent(candidates), true
}

func keywordOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[strings.ToUpper(k)] = true
	}
	for _, k := range b {
		if set[strings.ToUpper(k)] {
			return true
		}
	}
	return false
}

func mostRecent(reviews []domain.Review) domain.Review {
	best := reviews[0]
	for _, r := range reviews[1:] {
		if r.PublishDate.After(best.PublishDate) {
			best = r
		}
	}
	return best
}
