// Package domain defines core domain types, constants, and validation for the
// AutoMatch recommendation pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// Vehicle is one catalog entry. The catalog is loaded once at startup and is
// immutable for the process lifetime.
type Vehicle struct {
	UID         string          `json:"uid"`
	Make        string          `json:"make_display"`
	Model       string          `json:"model_display"`
	Variant     string          `json:"trim_level,omitempty"`
	Year        int             `json:"year"`
	RetailPrice string          `json:"retail_price"`
	BodyType    BodyType        `json:"body_type"`
	FuelType    FuelType        `json:"fuel_type"`
	UseCases    []UseCaseTag    `json:"use_cases"`
	Features    map[string]bool `json:"features,omitempty"`
	Seating     string          `json:"seating,omitempty"`
}

// Price parses the retail price. ok is false for missing, zero, negative, or
// non-numeric values (the dataset carries literal "unknown" and "0" entries);
// such vehicles are excluded from every candidate set.
func (v Vehicle) Price() (float64, bool) {
	s := strings.TrimSpace(v.RetailPrice)
	if s == "" || s == "unknown" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p <= 0 {
		return 0, false
	}
	return p, true
}

// Review is one third-party review, related to vehicles by make/model and
// optionally refined by trim keywords.
type Review struct {
	Make         string       `json:"make_display"`
	Model        string       `json:"model_display"`
	TrimKeywords []string     `json:"trim_keywords,omitempty"`
	Rating       ReviewRating `json:"rating"`
	URL          string       `json:"original_url"`
	PublishDate  time.Time    `json:"publish_date"`
}

// ReviewRating is the categorical review verdict.
type ReviewRating string

const (
	RatingExcellent ReviewRating = "excellent"
	RatingGreat     ReviewRating = "great"
	RatingGood      ReviewRating = "good"
	RatingAverage   ReviewRating = "average"
	RatingPoor      ReviewRating = "poor"
)

// ValidRatings is the set of recognised review ratings.
var ValidRatings = map[ReviewRating]bool{
	RatingExcellent: true, RatingGreat: true, RatingGood: true,
	RatingAverage: true, RatingPoor: true,
}

// BodyType classifies the vehicle body.
type BodyType string

const (
	BodySUV         BodyType = "suv"
	BodyUte         BodyType = "ute"
	BodySedan       BodyType = "sedan"
	BodyHatchback   BodyType = "hatchback"
	BodyWagon       BodyType = "wagon"
	BodyVan         BodyType = "van"
	BodyCoupe       BodyType = "coupe"
	BodyConvertible BodyType = "convertible"
	BodyPeopleMover BodyType = "people_mover"
	BodyLightTruck  BodyType = "light_truck"
)

// ValidBodyTypes is the set of recognised body types.
var ValidBodyTypes = map[BodyType]bool{
	BodySUV: true, BodyUte: true, BodySedan: true, BodyHatchback: true,
	BodyWagon: true, BodyVan: true, BodyCoupe: true, BodyConvertible: true,
	BodyPeopleMover: true, BodyLightTruck: true,
}

// FuelType classifies the powertrain fuel.
type FuelType string

const (
	FuelPetrol       FuelType = "petrol"
	FuelDiesel       FuelType = "diesel"
	FuelHybrid       FuelType = "hybrid"
	FuelElectric     FuelType = "electric"
	FuelPlugInHybrid FuelType = "plug_in_hybrid"
)

// ValidFuelTypes is the set of recognised fuel types.
var ValidFuelTypes = map[FuelType]bool{
	FuelPetrol: true, FuelDiesel: true, FuelHybrid: true,
	FuelElectric: true, FuelPlugInHybrid: true,
}

// UseCaseTag is a closed vocabulary of buyer use cases. Tags within the same
// clarification group (family size, towing intensity, off-road intensity) are
// alternatives; everything else is a strict requirement.
type UseCaseTag string

const (
	UseFamily5Seat  UseCaseTag = "FAMILY_LIFE_5SEAT"
	UseFamily6Plus  UseCaseTag = "FAMILY_LIFE_6PLUS"
	UseTowingLight  UseCaseTag = "TOWING_LIGHT"
	UseTowingHeavy  UseCaseTag = "TOWING_HEAVY"
	UseOffroadLight UseCaseTag = "OFFROAD_LIGHT"
	UseOffroadHeavy UseCaseTag = "OFFROAD_HEAVY"
	UseUteLifestyle UseCaseTag = "UTE_LIFESTYLE"
	UseUteChassis   UseCaseTag = "UTE_CHASSIS"
)

// ValidUseCaseTags is the set of recognised use-case tags.
var ValidUseCaseTags = map[UseCaseTag]bool{
	UseFamily5Seat: true, UseFamily6Plus: true,
	UseTowingLight: true, UseTowingHeavy: true,
	UseOffroadLight: true, UseOffroadHeavy: true,
	UseUteLifestyle: true, UseUteChassis: true,
}

// UseCaseGroup identifies which OR-group a tag belongs to.
type UseCaseGroup int

const (
	GroupOther UseCaseGroup = iota
	GroupFamily
	GroupTowing
	GroupOffroad
)

// Group returns the clarification group for a tag.
func (t UseCaseTag) Group() UseCaseGroup {
	switch t {
	case UseFamily5Seat, UseFamily6Plus:
		return GroupFamily
	case UseTowingLight, UseTowingHeavy:
		return GroupTowing
	case UseOffroadLight, UseOffroadHeavy:
		return GroupOffroad
	default:
		return GroupOther
	}
}

// Budget is an inclusive price range. A zero Max means unbounded.
type Budget struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether p falls inside the budget.
func (b Budget) Contains(p float64) bool {
	if p < b.Min {
		return false
	}
	if b.Max > 0 && p > b.Max {
		return false
	}
	return true
}

// Criteria is the per-request structured filter input. A zero value on any
// dimension means that dimension is unconstrained.
type Criteria struct {
	Budget       *Budget      `json:"budget,omitempty"`
	UseCases     []UseCaseTag `json:"use_cases,omitempty"`
	BodyTypes    []BodyType   `json:"body_types,omitempty"`
	FuelTypes    []FuelType   `json:"fuel_types,omitempty"`
	Features     []string     `json:"features,omitempty"`
	Requirements []string     `json:"requirements,omitempty"`
}

// RankedVehicle is one analyzer-ranked candidate. Ephemeral per request.
type RankedVehicle struct {
	VehicleID       string `json:"vehicleId"`
	MatchConfidence int    `json:"matchConfidence"`
	Reasoning       string `json:"reasoning"`
	SalesVolume     int    `json:"salesVolume,omitempty"`
}
