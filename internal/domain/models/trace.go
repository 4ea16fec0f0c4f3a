package models

import "time"

// AnimalSummary is the slice of animal data embedded in a trace record.
type AnimalSummary struct {
	AnimalID     string  `bson:"animal_id" json:"animal_id"`
	FarmerID     string  `bson:"farmer_id" json:"farmer_id"`
	Species      Species `bson:"species" json:"species"`
	Breed        string  `bson:"breed,omitempty" json:"breed,omitempty"`
	HealthStatus string  `bson:"health_status,omitempty" json:"health_status,omitempty"`
	LiveWeight   float64 `bson:"live_weight" json:"live_weight"`
}

// PartSummary is the slice of slaughter part data embedded in a trace
// record, one per ingredient.
type PartSummary struct {
	PartID       string   `bson:"part_id" json:"part_id"`
	PartType     PartType `bson:"part_type" json:"part_type"`
	Weight       float64  `bson:"weight" json:"weight"`
	QuantityUsed float64  `bson:"quantity_used" json:"quantity_used"`
}

// TraceCounts are the rollups a consumer-facing lookup needs without
// joining across the entity graph.
type TraceCounts struct {
	TimelineEvents int `bson:"timeline_events" json:"timeline_events"`
	Receipts       int `bson:"receipts" json:"receipts"`
	Rejections     int `bson:"rejections" json:"rejections"`
	Appeals        int `bson:"appeals" json:"appeals"`
}

// TraceRecord is the denormalized read model for a single product. It is
// rebuilt wholesale whenever the underlying history changes; readers are
// never served a partially-updated view.
type TraceRecord struct {
	ProductID       string              `bson:"_id" json:"product_id"`
	ProductName     string              `bson:"product_name" json:"product_name"`
	BatchNumber     string              `bson:"batch_number" json:"batch_number"`
	ProductType     ProductType         `bson:"product_type" json:"product_type"`
	Status          LifecycleStatus     `bson:"status" json:"status"`
	RejectionStatus RejectionStatus     `bson:"rejection_status,omitempty" json:"rejection_status,omitempty"`
	Animal          AnimalSummary       `bson:"animal" json:"animal"`
	Carcass         *CarcassMeasurement `bson:"carcass,omitempty" json:"carcass,omitempty"`
	Parts           []PartSummary       `bson:"parts,omitempty" json:"parts,omitempty"`
	Timeline        []TimelineEvent     `bson:"timeline" json:"timeline"`
	Rejections      []RejectionReason   `bson:"rejections,omitempty" json:"rejections,omitempty"`
	Appeals         []Appeal            `bson:"appeals,omitempty" json:"appeals,omitempty"`
	Counts          TraceCounts         `bson:"counts" json:"counts"`

	// Stale marks the record as awaiting a rebuild; readers are told
	// "projection pending" instead of being served it silently. MarkSeq
	// counts stale marks: a rebuild carries the seq it read its inputs
	// under, and the store keeps the record stale when a newer mark
	// landed mid-rebuild.
	Stale     bool      `bson:"stale" json:"stale"`
	MarkSeq   int64     `bson:"mark_seq" json:"-"`
	RebuiltAt time.Time `bson:"rebuilt_at" json:"rebuilt_at"`
}
