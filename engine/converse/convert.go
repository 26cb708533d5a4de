package converse

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/pkg/fn"
)

// Budget phrasing patterns. Amounts accept an optional k suffix (thousands).
var (
	underRe  = regexp.MustCompile(`^(?:under|up to|below|less than)\s*(\d+)k?$`)
	overRe   = regexp.MustCompile(`^(?:over|above|more than)\s*(\d+)k?\+?$`)
	aroundRe = regexp.MustCompile(`^(?:around|about|approximately)\s*(\d+)k?$`)
	rangeRe  = regexp.MustCompile(`^(\d+)k?\s*(?:-|to)\s*(\d+)k?(?:\s*range)?$`)
	maxRe    = regexp.MustCompile(`^(\d+)k?\s*max$`)
)

var vagueBudgets = map[string]domain.Budget{
	"cheap":         {Min: 0, Max: 35000},
	"budget":        {Min: 0, Max: 35000},
	"affordable":    {Min: 0, Max: 35000},
	"mid-range":     {Min: 35000, Max: 70000},
	"moderate":      {Min: 35000, Max: 70000},
	"expensive":     {Min: 70000, Max: 0},
	"luxury budget": {Min: 70000, Max: 0},
	"high-end":      {Min: 70000, Max: 0},
	"flexible":      {},
	"open budget":   {},
}

// ConvertBudget parses a natural-language budget phrase into a price range.
// "around" applies a -20%/+10% band. Unrecognized phrasing falls back to an
// unconstrained budget.
func ConvertBudget(s string) domain.Budget {
	b := strings.ToLower(strings.TrimSpace(s))
	if b == "" {
		return domain.Budget{}
	}

	if m := underRe.FindStringSubmatch(b); m != nil {
		return domain.Budget{Max: thousands(m[1])}
	}
	if m := overRe.FindStringSubmatch(b); m != nil {
		return domain.Budget{Min: thousands(m[1])}
	}
	if m := aroundRe.FindStringSubmatch(b); m != nil {
		base := thousands(m[1])
		return domain.Budget{Min: base * 0.8, Max: base * 1.1}
	}
	if m := rangeRe.FindStringSubmatch(b); m != nil {
		return domain.Budget{Min: thousands(m[1]), Max: thousands(m[2])}
	}
	if m := maxRe.FindStringSubmatch(b); m != nil {
		return domain.Budget{Max: thousands(m[1])}
	}
	if vague, ok := vagueBudgets[b]; ok {
		return vague
	}
	return domain.Budget{}
}

func thousands(s string) float64 {
	n, _ := strconv.Atoi(s)
	if n < 1000 {
		n *= 1000
	}
	return float64(n)
}

var directUseCases = map[string][]domain.UseCaseTag{
	"family 5 seats":  {domain.UseFamily5Seat},
	"family 6+ seats": {domain.UseFamily6Plus},
	"light towing":    {domain.UseTowingLight},
	"heavy towing":    {domain.UseTowingHeavy},
	"light off-road":  {domain.UseOffroadLight},
	"heavy off-road":  {domain.UseOffroadHeavy},
	"lifestyle ute":   {domain.UseUteLifestyle},
	"chassis ute":     {domain.UseUteChassis},
	"adventure ute":   {domain.UseUteLifestyle},
	"cab chassis ute": {domain.UseUteChassis},
}

// vectorOnlyTerms are soft preferences routed to semantic search rather than
// the structured filter.
var vectorOnlyTerms = map[string]bool{
	"reliable": true, "safe": true, "easy to park": true, "comfortable": true,
	"quiet": true, "practical": true, "carrying gear": true, "performance": true,
	"fun driving": true, "luxury": true, "workhorse": true, "highway driving": true,
	"trade work": true, "sports equipment": true, "dogs": true, "pets": true,
	"bikes": true, "bicycles": true, "city": true, "city driving": true,
	"commuting": true,
}

// ConvertUseCases maps natural-language use cases onto the closed tag
// vocabulary. Generic "towing"/"family" default to the light/5-seat variant
// only when no specific variant is present; terms with no mapping are
// classified by the completion collaborator and also kept as free-text
// requirements.
func (c *Converter) ConvertUseCases(ctx context.Context, useCases []string) ([]domain.UseCaseTag, []string) {
	var tags []domain.UseCaseTag
	var requirements []string
	var unknown []string

	lowered := fn.Map(useCases, func(s string) string { return strings.ToLower(strings.TrimSpace(s)) })
	hasSpecific := func(group domain.UseCaseGroup) bool {
		for _, l := range lowered {
			for phrase, mapped := range directUseCases {
				if l == phrase && mapped[0].Group() == group {
					return true
				}
			}
		}
		return false
	}

	for _, l := range lowered {
		switch {
		case l == "":
			continue
		case len(directUseCases[l]) > 0:
			tags = append(tags, directUseCases[l]...)
		case l == "towing" && !hasSpecific(domain.GroupTowing):
			tags = append(tags, domain.UseTowingLight)
		case l == "family" && !hasSpecific(domain.GroupFamily):
			tags = append(tags, domain.UseFamily5Seat)
		case l == "off-road" && !hasSpecific(domain.GroupOffroad):
			tags = append(tags, domain.UseOffroadLight)
		case l == "towing" || l == "family" || l == "off-road":
			// A specific variant is already present; skip the generic term.
		case vectorOnlyTerms[l]:
			requirements = append(requirements, l)
		default:
			unknown = append(unknown, l)
		}
	}

	if len(unknown) > 0 {
		classified := c.classifyUnknown(ctx, unknown)
		tags = append(tags, classified...)
		requirements = append(requirements, unknown...)
	}

	return dedupeTags(tags), fn.Unique(requirements)
}

// classifyUnknown asks the completion collaborator to map unmatched use-case
// phrases onto the tag vocabulary. Failures degrade to no tags — the phrases
// still travel as free-text requirements.
func (c *Converter) classifyUnknown(ctx context.Context, unknown []string) []domain.UseCaseTag {
	prompt := fmt.Sprintf(`These vehicle use cases don't match our predefined categories. Classify them:

Unknown use cases: %s

Categories:
- FAMILY_LIFE_5SEAT: 5 seats, couples, small families
- FAMILY_LIFE_6PLUS: 6+ seats, large families, multiple kids
- TOWING_LIGHT: boats, small trailers (under 3000kg)
- TOWING_HEAVY: caravans, large trailers (over 3000kg)
- OFFROAD_LIGHT: camping, beach, gravel roads
- OFFROAD_HEAVY: rock crawling, serious 4WD tracks
- UTE_LIFESTYLE: lifestyle dual cab utes with factory tub
- UTE_CHASSIS: commercial cab chassis utes with tray

If a use case matches none of these 8 categories, omit it.

Return only a JSON array: ["CATEGORY1", "CATEGORY2"] or []`, strings.Join(unknown, ", "))

	result := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[string] {
		return fn.FromPair(c.complete.Complete(ctx, prompt))
	})
	raw, err := result.Unwrap()
	if err != nil {
		c.logger.Warn("use-case classification failed", "err", err)
		return nil
	}

	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "```json", ""), "```", ""))
	var names []string
	if err := json.Unmarshal([]byte(cleaned), &names); err != nil {
		c.logger.Warn("use-case classification unparseable", "err", err)
		return nil
	}

	var tags []domain.UseCaseTag
	for _, n := range names {
		t := domain.UseCaseTag(n)
		if domain.ValidUseCaseTags[t] {
			tags = append(tags, t)
		}
	}
	return tags
}

func dedupeTags(tags []domain.UseCaseTag) []domain.UseCaseTag {
	return fn.Unique(tags)
}

var directBodyTypes = map[string][]domain.BodyType{
	"suv": {domain.BodySUV}, "ute": {domain.BodyUte}, "sedan": {domain.BodySedan},
	"hatchback": {domain.BodyHatchback}, "wagon": {domain.BodyWagon},
	"van": {domain.BodyVan}, "coupe": {domain.BodyCoupe},
	"convertible": {domain.BodyConvertible}, "people mover": {domain.BodyPeopleMover},
	"light truck": {domain.BodyLightTruck},
}

var alternativeBodyTypes = map[string][]domain.BodyType{
	"4wd": {domain.BodySUV}, "pickup": {domain.BodyUte}, "truck": {domain.BodyUte},
	"dual cab": {domain.BodyUte}, "crew cab": {domain.BodyUte},
	"hatch": {domain.BodyHatchback}, "station wagon": {domain.BodyWagon},
	"estate": {domain.BodyWagon}, "mpv": {domain.BodyPeopleMover},
	"minivan": {domain.BodyPeopleMover}, "soft-top": {domain.BodyConvertible},
	"cabriolet":          {domain.BodyConvertible},
	"commercial vehicle": {domain.BodyVan, domain.BodyLightTruck},
}

var sizeBodyTypes = map[string][]domain.BodyType{
	"small car":  {domain.BodyHatchback, domain.BodySedan},
	"compact":    {domain.BodyHatchback, domain.BodySedan},
	"mid-size":   {domain.BodySedan, domain.BodySUV},
	"large car":  {domain.BodySedan, domain.BodySUV},
	"family car": {domain.BodySUV, domain.BodySedan, domain.BodyWagon},
}

// ConvertBodyTypes maps natural-language body descriptions onto the closed
// vocabulary, falling back to SUV for unrecognized or empty input.
func ConvertBodyTypes(bodyTypes []string) []domain.BodyType {
	var out []domain.BodyType
	for _, raw := range bodyTypes {
		l := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case l == "":
			continue
		case len(directBodyTypes[l]) > 0:
			out = append(out, directBodyTypes[l]...)
		case len(alternativeBodyTypes[l]) > 0:
			out = append(out, alternativeBodyTypes[l]...)
		case len(sizeBodyTypes[l]) > 0:
			out = append(out, sizeBodyTypes[l]...)
		default:
			out = append(out, domain.BodySUV)
		}
	}
	if len(out) == 0 {
		out = append(out, domain.BodySUV)
	}
	return fn.Unique(out)
}

var directFuelTypes = map[string]domain.FuelType{
	"petrol": domain.FuelPetrol, "diesel": domain.FuelDiesel,
	"hybrid": domain.FuelHybrid, "electric": domain.FuelElectric,
	"plug-in hybrid": domain.FuelPlugInHybrid,
}

var alternativeFuelTypes = map[string]domain.FuelType{
	"gasoline": domain.FuelPetrol, "gas": domain.FuelPetrol,
	"unleaded": domain.FuelPetrol, "ev": domain.FuelElectric,
	"battery": domain.FuelElectric, "bev": domain.FuelElectric,
	"battery electric": domain.FuelElectric,
	"phev":             domain.FuelPlugInHybrid,
	"plug in hybrid":   domain.FuelPlugInHybrid,
	"plugin hybrid":    domain.FuelPlugInHybrid,
	"mild hybrid":      domain.FuelHybrid,
	"full hybrid":      domain.FuelHybrid,
	"self-charging hybrid": domain.FuelHybrid,
}

// preferenceFuelTypes expand qualitative fuel preferences into the set of
// fuel types that satisfy them, ordered by fit.
var preferenceFuelTypes = map[string][]domain.FuelType{
	"economical":               {domain.FuelHybrid, domain.FuelElectric},
	"environmentally friendly": {domain.FuelElectric, domain.FuelHybrid, domain.FuelPlugInHybrid},
	"eco":                      {domain.FuelElectric, domain.FuelHybrid, domain.FuelPlugInHybrid},
	"long range":               {domain.FuelDiesel, domain.FuelPetrol, domain.FuelHybrid},
	"quick refueling":          {domain.FuelPetrol, domain.FuelDiesel},
	"no emissions":             {domain.FuelElectric},
}

// ConvertFuelTypes maps natural-language fuel descriptions onto the closed
// vocabulary, falling back to petrol for unrecognized or empty input.
func ConvertFuelTypes(fuelTypes []string) []domain.FuelType {
	var out []domain.FuelType
	for _, raw := range fuelTypes {
		l := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case l == "":
			continue
		case directFuelTypes[l] != "":
			out = append(out, directFuelTypes[l])
		case alternativeFuelTypes[l] != "":
			out = append(out, alternativeFuelTypes[l])
		case len(preferenceFuelTypes[l]) > 0:
			out = append(out, preferenceFuelTypes[l]...)
		default:
			out = append(out, domain.FuelPetrol)
		}
	}
	if len(out) == 0 {
		out = append(out, domain.FuelPetrol)
	}
	return fn.Unique(out)
}
