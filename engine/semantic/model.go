package semantic

// Chunk categories used across the specification dataset. Identity chunks
// carry "<make>, <model>, ..." as their leading fields and are treated as
// relevant for any vehicle that already qualified via another chunk.
const (
	CategoryIdentity   = "feature_vehicle_identity"
	CategoryDimensions = "calc_physical_dimensions"
	CategoryWeights    = "calc_weight_limits"
	CategoryPowertrain = "feature_powertrain_performance"
)

// EssentialCategories always count as relevant once a vehicle has qualified.
var EssentialCategories = map[string]bool{
	CategoryIdentity:   true,
	CategoryDimensions: true,
	CategoryWeights:    true,
	CategoryPowertrain: true,
}

// ChunkHit is a single specification chunk returned by a similarity query.
type ChunkHit struct {
	VehicleID  string  `json:"vehicle_id"`
	Category   string  `json:"category"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// ChunkRecord is a specification chunk to store, with its embedding.
type ChunkRecord struct {
	ID        string
	VehicleID string
	Category  string
	Content   string
	Embedding []float32
}
