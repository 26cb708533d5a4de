// Package ingest builds the categorized specification chunks the vector
// store serves, one set per catalog vehicle. Chunk ids are deterministic so
// re-ingestion overwrites in place.
package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
	"github.com/AutoMatchAI/automatch-mvp/engine/semantic"
)

// CategorySuitability holds the use-case and feature text that semantic
// search matches soft preferences against.
const CategorySuitability = "feature_suitability"

// PointID derives the deterministic Qdrant point id for one vehicle chunk.
// Qdrant only accepts integer or UUID point ids, so the stable
// "<uid>_<category>" name is hashed into a UUID; re-ingestion still
// overwrites in place.
func PointID(vehicleID, category string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s_%s", vehicleID, category))).String()
}

// BuildChunks renders one vehicle into its specification chunks. The identity
// chunk leads with "<make>, <model>" so downstream display parsing can split
// on the first two comma fields.
func BuildChunks(v domain.Vehicle) []semantic.ChunkRecord {
	var records []semantic.ChunkRecord
	add := func(category, content string) {
		if content == "" {
			return
		}
		records = append(records, semantic.ChunkRecord{
			ID:        PointID(v.UID, category),
			VehicleID: v.UID,
			Category:  category,
			Content:   content,
		})
	}

	add(semantic.CategoryIdentity, identityContent(v))
	add(semantic.CategoryPowertrain, powertrainContent(v))
	add(CategorySuitability, suitabilityContent(v))
	return records
}

func identityContent(v domain.Vehicle) string {
	parts := []string{v.Make, v.Model}
	if v.Variant != "" {
		parts = append(parts, v.Variant)
	}
	if v.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", v.Year))
	}
	parts = append(parts, string(v.BodyType))
	if v.Seating != "" {
		parts = append(parts, v.Seating)
	}
	return strings.Join(parts, ", ")
}

func powertrainContent(v domain.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s powertrain: %s", v.Make, v.Model, fuelText(v.FuelType))
	if price, ok := v.Price(); ok {
		fmt.Fprintf(&b, ". Retail price $%.0f", price)
	}
	return b.String()
}

func fuelText(f domain.FuelType) string {
	switch f {
	case domain.FuelPlugInHybrid:
		return "plug-in hybrid"
	case domain.FuelPetrol, domain.FuelDiesel, domain.FuelHybrid, domain.FuelElectric:
		return string(f)
	default:
		return "unspecified fuel"
	}
}

// suitabilityContent renders use-case tags and feature flags as prose so
// free-text requirements like "towing a boat" land near the right vehicles.
func suitabilityContent(v domain.Vehicle) string {
	var phrases []string
	for _, tag := range v.UseCases {
		if p := useCasePhrase(tag); p != "" {
			phrases = append(phrases, p)
		}
	}

	var features []string
	for name, present := range v.Features {
		if present {
			features = append(features, strings.ReplaceAll(name, "_", " "))
		}
	}
	sort.Strings(features)

	if len(phrases) == 0 && len(features) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", v.Make, v.Model)
	if len(phrases) > 0 {
		b.WriteString(" suited to " + strings.Join(phrases, ", "))
	}
	if len(features) > 0 {
		b.WriteString(". Equipped with " + strings.Join(features, ", "))
	}
	return b.String()
}

func useCasePhrase(tag domain.UseCaseTag) string {
	switch tag {
	case domain.UseFamily5Seat:
		return "family life with up to five seats"
	case domain.UseFamily6Plus:
		return "large families needing six or more seats"
	case domain.UseTowingLight:
		return "light towing of boats and small trailers"
	case domain.UseTowingHeavy:
		return "heavy towing of caravans and large trailers"
	case domain.UseOffroadLight:
		return "light off-road driving, camping and gravel roads"
	case domain.UseOffroadHeavy:
		return "serious off-road and 4WD tracks"
	case domain.UseUteLifestyle:
		return "lifestyle ute duties with a factory tub"
	case domain.UseUteChassis:
		return "commercial cab chassis work"
	default:
		return ""
	}
}
