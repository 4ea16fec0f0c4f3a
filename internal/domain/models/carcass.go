package models

import (
	"fmt"
	"time"
)

// CarcassType is the split policy chosen at slaughter time.
type CarcassType string

const (
	// CarcassWhole keeps the carcass as a single whole_carcass part.
	CarcassWhole CarcassType = "whole"
	// CarcassSplitSides halves the carcass into left and right sides.
	CarcassSplitSides CarcassType = "split"
	// CarcassSplitDetailed breaks the carcass down per-part.
	CarcassSplitDetailed CarcassType = "split_detailed"
)

// CarcassMeasurement snapshots the weights recorded at slaughter. Created
// atomically with the derived slaughter parts and never modified after.
type CarcassMeasurement struct {
	AnimalID    string               `bson:"_id" json:"animal_id"`
	CarcassType CarcassType          `bson:"carcass_type" json:"carcass_type"`
	Weights     map[PartType]float64 `bson:"weights" json:"weights"`
	TotalWeight float64              `bson:"total_weight" json:"total_weight"`
	MeasuredBy  string               `bson:"measured_by" json:"measured_by"`
	MeasuredAt  time.Time            `bson:"measured_at" json:"measured_at"`
}

// PartSpec describes one slaughter part to carve from a carcass.
type PartSpec struct {
	PartType PartType
	Weight   float64
}

// detailedPartOrder fixes the output ordering of a detailed split so that
// the derived parts are deterministic for a given weight map.
var detailedPartOrder = []PartType{
	PartHead, PartTorso, PartFrontLegs, PartHindLegs,
	PartFeet, PartInternalOrgans, PartOther,
}

// DeriveParts computes the slaughter parts produced by a carcass split. It
// is a pure function of the carcass type and the supplied weights; the
// caller checks the returned total against the animal's carcass weight.
func DeriveParts(carcassType CarcassType, weights map[PartType]float64) ([]PartSpec, float64, error) {
	for part, w := range weights {
		if !ValidPartType(part) {
			return nil, 0, fmt.Errorf("unknown part type %q", part)
		}
		if w <= 0 {
			return nil, 0, fmt.Errorf("weight for %s must be positive, got %.2f", part, w)
		}
	}

	var specs []PartSpec
	switch carcassType {
	case CarcassWhole:
		w, ok := weights[PartWholeCarcass]
		if !ok {
			return nil, 0, fmt.Errorf("whole carcass requires a %s weight", PartWholeCarcass)
		}
		specs = []PartSpec{{PartType: PartWholeCarcass, Weight: w}}
	case CarcassSplitSides:
		left, okL := weights[PartLeftSide]
		right, okR := weights[PartRightSide]
		if !okL || !okR {
			return nil, 0, fmt.Errorf("split carcass requires %s and %s weights", PartLeftSide, PartRightSide)
		}
		specs = []PartSpec{
			{PartType: PartLeftSide, Weight: left},
			{PartType: PartRightSide, Weight: right},
		}
	case CarcassSplitDetailed:
		for _, part := range detailedPartOrder {
			if w, ok := weights[part]; ok {
				specs = append(specs, PartSpec{PartType: part, Weight: w})
			}
		}
		if len(specs) == 0 {
			return nil, 0, fmt.Errorf("detailed split requires at least one part weight")
		}
	default:
		return nil, 0, fmt.Errorf("unknown carcass type %q", carcassType)
	}

	// Weight entries the chosen split does not carve are rejected, never
	// silently absorbed.
	if len(specs) != len(weights) {
		return nil, 0, fmt.Errorf("carcass type %q does not accept the supplied part types", carcassType)
	}

	var total float64
	for _, spec := range specs {
		total += spec.Weight
	}
	return specs, total, nil
}
