package models

import "time"

// PartType is the fixed taxonomy of carcass parts. The set of parts an
// animal yields is decided by the carcass split chosen at slaughter time.
type PartType string

const (
	PartWholeCarcass   PartType = "whole_carcass"
	PartLeftSide       PartType = "left_side"
	PartRightSide      PartType = "right_side"
	PartHead           PartType = "head"
	PartFeet           PartType = "feet"
	PartInternalOrgans PartType = "internal_organs"
	PartTorso          PartType = "torso"
	PartFrontLegs      PartType = "front_legs"
	PartHindLegs       PartType = "hind_legs"
	PartOther          PartType = "other"
)

// ValidPartType reports whether p belongs to the taxonomy.
func ValidPartType(p PartType) bool {
	switch p {
	case PartWholeCarcass, PartLeftSide, PartRightSide, PartHead, PartFeet,
		PartInternalOrgans, PartTorso, PartFrontLegs, PartHindLegs, PartOther:
		return true
	}
	return false
}

// SlaughterPart is a traceable unit carved from exactly one animal. The
// (animal, part type) pair is unique.
type SlaughterPart struct {
	ID          string    `bson:"_id" json:"id"`
	AnimalID    string    `bson:"animal_id" json:"animal_id"`
	PartType    PartType  `bson:"part_type" json:"part_type"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`

	// Weight is the carve-out weight in kg. RemainingWeight decreases as
	// products consume the part and never exceeds Weight.
	Weight          float64 `bson:"weight" json:"weight"`
	RemainingWeight float64 `bson:"remaining_weight" json:"remaining_weight"`

	Status  LifecycleStatus `bson:"status" json:"status"`
	Custody Custody         `bson:"custody" json:"custody"`

	// UsedInProduct is set exactly once, when a product consumes the part.
	UsedInProduct bool `bson:"used_in_product" json:"used_in_product"`

	RejectionStatus RejectionStatus `bson:"rejection_status,omitempty" json:"rejection_status,omitempty"`
	AppealStatus    AppealStatus    `bson:"appeal_status,omitempty" json:"appeal_status,omitempty"`

	Version int64 `bson:"version" json:"version"`
}
