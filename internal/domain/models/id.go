package models

import (
	"strings"

	"github.com/google/uuid"
)

// Identifier prefixes follow the legacy scheme so existing QR codes keep
// resolving.
const (
	animalIDPrefix    = "ANIMAL_"
	partIDPrefix      = "PART_"
	productIDPrefix   = "PRODUCT_"
	rejectionIDPrefix = "REJ_"
	appealIDPrefix    = "APPEAL_"
)

func newID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(raw[:12])
}

// NewAnimalID generates a unique animal identifier, e.g. ANIMAL_3F9A1C02BD44.
func NewAnimalID() string { return newID(animalIDPrefix) }

// NewPartID generates a unique slaughter part identifier.
func NewPartID() string { return newID(partIDPrefix) }

// NewProductID generates a unique product identifier.
func NewProductID() string { return newID(productIDPrefix) }

// NewRejectionID generates a unique rejection record identifier.
func NewRejectionID() string { return newID(rejectionIDPrefix) }

// NewAppealID generates a unique appeal identifier.
func NewAppealID() string { return newID(appealIDPrefix) }
