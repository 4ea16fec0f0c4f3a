package models

import "time"

// UnitKind identifies which traceable entity a record refers to.
type UnitKind string

const (
	KindAnimal        UnitKind = "animal"
	KindSlaughterPart UnitKind = "slaughter_part"
	KindProduct       UnitKind = "product"
)

// LifecycleStatus is the current position of a unit in its lifecycle.
//
// Animals move registered -> transferred -> received -> slaughtered -> processed.
// Slaughter parts move created -> transferred -> received -> used_in_product.
// Products move created -> transferred -> (receiving) -> received -> sold|consumed.
type LifecycleStatus string

const (
	StatusRegistered    LifecycleStatus = "registered"
	StatusCreated       LifecycleStatus = "created"
	StatusTransferred   LifecycleStatus = "transferred"
	StatusReceiving     LifecycleStatus = "receiving"
	StatusReceived      LifecycleStatus = "received"
	StatusSlaughtered   LifecycleStatus = "slaughtered"
	StatusProcessed     LifecycleStatus = "processed"
	StatusUsedInProduct LifecycleStatus = "used_in_product"
	StatusSold          LifecycleStatus = "sold"
	StatusConsumed      LifecycleStatus = "consumed"
)

// Terminal reports whether the status admits no further lifecycle transition.
func (s LifecycleStatus) Terminal() bool {
	switch s {
	case StatusProcessed, StatusUsedInProduct, StatusSold, StatusConsumed:
		return true
	}
	return false
}

// RejectionStatus tracks the quality-control sub-state of a unit. It is
// independent of the lifecycle status: a rejected unit keeps its last
// lifecycle status as a historical fact.
type RejectionStatus string

const (
	RejectionNone          RejectionStatus = ""
	RejectionPendingReview RejectionStatus = "pending_review"
	RejectionRejected      RejectionStatus = "rejected"
	RejectionOverturned    RejectionStatus = "overturned"
)

// AppealStatus tracks the farmer appeal attached to a rejection.
type AppealStatus string

const (
	AppealNone     AppealStatus = ""
	AppealPending  AppealStatus = "pending"
	AppealApproved AppealStatus = "approved"
	AppealDenied   AppealStatus = "denied"
)

// Custody records the transfer/receipt fields shared by every traceable
// unit. Past custody is preserved by keeping these fields rather than a
// mutable owner pointer.
type Custody struct {
	TransferredTo string     `bson:"transferred_to,omitempty" json:"transferred_to,omitempty"`
	TransferredBy string     `bson:"transferred_by,omitempty" json:"transferred_by,omitempty"`
	TransferredAt *time.Time `bson:"transferred_at,omitempty" json:"transferred_at,omitempty"`
	ReceivedBy    string     `bson:"received_by,omitempty" json:"received_by,omitempty"`
	ReceivedAt    *time.Time `bson:"received_at,omitempty" json:"received_at,omitempty"`
}
