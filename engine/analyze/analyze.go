// Package analyze applies free-text requirements to the embedding-search
// output via the text-completion collaborator and produces a
// confidence-ranked subset. Brand restrictions named in the requirements are
// enforced here programmatically rather than trusted to prompt compliance.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/engine/search"
	"github.com/AutoMatchAI/automatch-mvp/pkg/fn"
	"github.com/AutoMatchAI/automatch-mvp/pkg/llm"
)

// MaxRanked caps how many vehicles the analyzer may return.
const MaxRanked = 10

// ranking is the structured block expected inside the completion text.
type ranking struct {
	RankedVehicles []domain.RankedVehicle `json:"rankedVehicles"`
}

// Analyzer runs the requirement-analysis stage.
type Analyzer struct {
	complete llm.Completer
	retry    fn.RetryOpts
	logger   *slog.Logger
}

// New creates an Analyzer. Completion calls are retried only on transient
// rate-limit/overload failures.
func New(complete llm.Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	retry := fn.DefaultRetry
	retry.ShouldRetry = llm.IsRetryable
	return &Analyzer{complete: complete, retry: retry, logger: logger}
}

// Analyze scores the candidates against the requirements. A zero-length
// return with a nil error is the documented "no qualifying match" outcome,
// distinct from a collaborator or parse failure.
func (a *Analyzer) Analyze(ctx context.Context, candidates []search.VehicleMatch, requirements []string) ([]domain.RankedVehicle, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(candidates, requirements)
	a.logger.Info("analyzer start", "candidates", len(candidates))

	result := fn.Retry(ctx, a.retry, func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(a.complete.Complete(ctx, prompt))
	})
	raw, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("analyze: completion: %w", err)
	}

	r, err := parseRanking(raw)
	if err != nil {
		return nil, err
	}

	ranked := fn.Filter(r.RankedVehicles, func(v domain.RankedVehicle) bool {
		return v.MatchConfidence > 0
	})
	ranked = enforceBrands(ranked, candidates, requirements)
	if len(ranked) > MaxRanked {
		ranked = ranked[:MaxRanked]
	}
	a.logger.Info("analyzer done", "ranked", len(ranked))
	return ranked, nil
}

// enforceBrands drops ranked vehicles whose make does not match a brand the
// requirements explicitly name. Brands are detected against the candidate
// set's own makes, so only vocabulary the catalog knows can restrict.
func enforceBrands(ranked []domain.RankedVehicle, candidates []search.VehicleMatch, requirements []string) []domain.RankedVehicle {
	makeByID := make(map[string]string, len(candidates))
	makes := make(map[string]bool)
	for _, c := range candidates {
		m := strings.ToLower(c.Make)
		makeByID[c.VehicleID] = m
		if m != "" {
			makes[m] = true
		}
	}

	mentioned := make(map[string]bool)
	text := strings.ToLower(strings.Join(requirements, " "))
	words := tokenize(text)
	for m := range makes {
		if affirmativeMention(words, tokenize(m)) {
			mentioned[m] = true
		}
	}
	if len(mentioned) == 0 {
		return ranked
	}

	return fn.Filter(ranked, func(v domain.RankedVehicle) bool {
		return mentioned[makeByID[v.VehicleID]]
	})
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// negations are tokens that turn a following brand mention into an exclusion
// rather than a restriction.
var negations = map[string]bool{
	"no":      true,
	"not":     true,
	"except":  true,
	"avoid":   true,
	"without": true,
	"but":     true,
}

// affirmativeMention reports whether phrase occurs as consecutive words in
// words, at least once without an immediately preceding negation token.
// "no toyota" is an exclusion, not a request for Toyotas.
func affirmativeMention(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		if !phraseAt(words, phrase, i) {
			continue
		}
		if i > 0 && negations[words[i-1]] {
			continue
		}
		return true
	}
	return false
}

func phraseAt(words, phrase []string, i int) bool {
	for j, p := range phrase {
		if words[i+j] != p {
			return false
		}
	}
	return true
}

// buildPrompt formats the candidates and requirements for the completion
// collaborator. The contract: eliminate hard-constraint failures, score the
// rest 0-100, derive any requested calculations only from supplied chunk
// data, and return strictly the structured ranking.
func buildPrompt(candidates []search.VehicleMatch, requirements []string) string {
	var b strings.Builder
	b.WriteString("You are an automotive expert. Analyze these vehicles against the user requirements.\n\n")
	b.WriteString("STEP 1: ELIMINATE vehicles that fail absolute requirements (dimensions, hard constraints, explicit exclusions).\n")
	b.WriteString("STEP 2: RANK remaining vehicles by overall match quality (0-100 score).\n\n")
	b.WriteString("USER REQUIREMENTS: " + strings.Join(requirements, ", ") + "\n\n")
	b.WriteString("If the requirements imply calculations (power-to-weight, efficiency comparisons), ")
	b.WriteString("perform them using only data present in the vehicle chunks; never invent values, ")
	b.WriteString("and include the calculated result in the reasoning.\n")
	b.WriteString("If the requirements name specific brands, set matchConfidence to 0 for non-matching brands.\n\n")
	b.WriteString("VEHICLES TO ANALYZE:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n--- VEHICLE %d ---\n", i+1)
		fmt.Fprintf(&b, "ID: %s\n", c.VehicleID)
		fmt.Fprintf(&b, "IDENTITY: %s\n", c.IdentityContent)
		fmt.Fprintf(&b, "SIMILARITY: Avg %.3f, Max %.3f\n", c.AvgSimilarity, c.MaxSimilarity)
		b.WriteString("TECHNICAL DATA:\n")
		for _, chunk := range c.Chunks {
			fmt.Fprintf(&b, "[%s] %s\n", chunk.Category, chunk.Content)
		}
	}
	fmt.Fprintf(&b, `
Score only from data present in the chunks. Keep reasoning to 1-2 sentences per
vehicle, addressing the user requirements only.

Return ONLY the top %d vehicles as JSON in this exact shape, nothing else:
{
  "rankedVehicles": [
    {"vehicleId": "8410315", "matchConfidence": 87, "reasoning": "..."}
  ]
}
`, MaxRanked)
	return b.String()
}
