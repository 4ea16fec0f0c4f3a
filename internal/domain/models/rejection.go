package models

import "time"

// RejectionCategory groups the specific reason a quality controller gives
// when rejecting a unit.
type RejectionCategory string

const (
	RejectionHealth        RejectionCategory = "health"
	RejectionQuality       RejectionCategory = "quality"
	RejectionDocumentation RejectionCategory = "documentation"
	RejectionWeight        RejectionCategory = "weight_discrepancy"
	RejectionOtherReason   RejectionCategory = "other"
)

// ValidRejectionCategory reports whether c is a known category.
func ValidRejectionCategory(c RejectionCategory) bool {
	switch c {
	case RejectionHealth, RejectionQuality, RejectionDocumentation,
		RejectionWeight, RejectionOtherReason:
		return true
	}
	return false
}

// RejectionReason is the immutable record of a quality-control rejection.
// Compliance requires that it is never edited or deleted; resolutions add
// new records instead of rewriting history.
type RejectionReason struct {
	ID             string            `bson:"_id" json:"id"`
	UnitKind       UnitKind          `bson:"unit_kind" json:"unit_kind"`
	UnitID         string            `bson:"unit_id" json:"unit_id"`
	Category       RejectionCategory `bson:"category" json:"category"`
	SpecificReason string            `bson:"specific_reason" json:"specific_reason"`
	Notes          string            `bson:"notes,omitempty" json:"notes,omitempty"`
	RejectedBy     string            `bson:"rejected_by" json:"rejected_by"`
	RejectingScope ScopeKind         `bson:"rejecting_scope" json:"rejecting_scope"`
	RejectingUnit  string            `bson:"rejecting_unit" json:"rejecting_unit"`
	RejectedAt     time.Time         `bson:"rejected_at" json:"rejected_at"`
}

// Appeal is a farmer's challenge against exactly one rejection. At most one
// appeal per rejection may be pending at a time, and a denied appeal closes
// the rejection permanently.
type Appeal struct {
	ID              string       `bson:"_id" json:"id"`
	RejectionID     string       `bson:"rejection_id" json:"rejection_id"`
	FiledBy         string       `bson:"filed_by" json:"filed_by"`
	FiledAt         time.Time    `bson:"filed_at" json:"filed_at"`
	Notes           string       `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          AppealStatus `bson:"status" json:"status"`
	ResolutionNotes string       `bson:"resolution_notes,omitempty" json:"resolution_notes,omitempty"`
	ResolvedBy      string       `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time   `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}
