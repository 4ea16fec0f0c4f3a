package models

import "time"

// ProductType enumerates the product categories carried by the system.
type ProductType string

const (
	ProductMeat ProductType = "meat"
	ProductMilk ProductType = "milk"
	ProductEggs ProductType = "eggs"
	ProductWool ProductType = "wool"
)

// Ingredient records a slaughter part consumed by a product and how much of
// it was used.
type Ingredient struct {
	PartID       string  `bson:"part_id" json:"part_id"`
	QuantityUsed float64 `bson:"quantity_used" json:"quantity_used"`
}

// Product is a traceable unit created from an animal directly or from one
// or more slaughter parts. Quantity and QuantityReceived are tracked
// separately because transfer and receipt are decoupled events.
type Product struct {
	ID               string       `bson:"_id" json:"id"`
	ProcessingUnitID string       `bson:"processing_unit_id" json:"processing_unit_id"`
	AnimalID         string       `bson:"animal_id" json:"animal_id"`
	Ingredients      []Ingredient `bson:"ingredients,omitempty" json:"ingredients,omitempty"`
	Name             string       `bson:"name" json:"name"`
	BatchNumber      string       `bson:"batch_number" json:"batch_number"`
	Type             ProductType  `bson:"type" json:"type"`
	Weight           float64      `bson:"weight" json:"weight"`
	Price            float64      `bson:"price,omitempty" json:"price,omitempty"`
	Description      string       `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt        time.Time    `bson:"created_at" json:"created_at"`

	// Quantity is the transferred amount; QuantityReceived accumulates
	// partial receipts and never exceeds Quantity.
	Quantity         float64 `bson:"quantity" json:"quantity"`
	QuantityReceived float64 `bson:"quantity_received" json:"quantity_received"`

	Status  LifecycleStatus `bson:"status" json:"status"`
	Custody Custody         `bson:"custody" json:"custody"`

	RejectionStatus RejectionStatus `bson:"rejection_status,omitempty" json:"rejection_status,omitempty"`
	AppealStatus    AppealStatus    `bson:"appeal_status,omitempty" json:"appeal_status,omitempty"`

	Version int64 `bson:"version" json:"version"`
}
