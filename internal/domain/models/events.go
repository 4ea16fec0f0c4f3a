package models

import "time"

// TransitionEvent describes a committed state change for the notification
// dispatcher. The core emits these and does not depend on delivery.
type TransitionEvent struct {
	EntityKind UnitKind  `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	OldState   string    `json:"old_state"`
	NewState   string    `json:"new_state"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
