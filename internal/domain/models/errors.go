package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the lifecycle core. Callers discriminate with
// errors.Is; the typed errors below add entity context for UIs and audit
// logs.
var (
	ErrNotFound                         = errors.New("not found")
	ErrUnauthorized                     = errors.New("unauthorized")
	ErrInvalidTransition                = errors.New("invalid transition")
	ErrWeightConservation               = errors.New("weight conservation violation")
	ErrDuplicateAppeal                  = errors.New("duplicate appeal")
	ErrPartialReceiptExceedsTransferred = errors.New("partial receipt exceeds transferred quantity")
	ErrProjectionPending                = errors.New("projection pending")
	ErrVersionConflict                  = errors.New("version conflict")
)

// TransitionError reports an attempted lifecycle transition whose source
// state did not match the unit's current status.
type TransitionError struct {
	Kind      UnitKind
	ID        string
	Current   LifecycleStatus
	Attempted string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s from status %q", e.Kind, e.ID, e.Attempted, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// WeightError reports a weight that would exceed what the source unit can
// supply.
type WeightError struct {
	Kind      UnitKind
	ID        string
	Available float64
	Requested float64
}

func (e *WeightError) Error() string {
	return fmt.Sprintf("%s %s: requested weight %.2f exceeds available %.2f", e.Kind, e.ID, e.Requested, e.Available)
}

func (e *WeightError) Unwrap() error { return ErrWeightConservation }

// ReceiptError reports a receipt quantity that would exceed the transferred
// quantity once added to what was already received.
type ReceiptError struct {
	ProductID       string
	Transferred     float64
	AlreadyReceived float64
	Requested       float64
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("product %s: receiving %.2f on top of %.2f exceeds transferred %.2f",
		e.ProductID, e.Requested, e.AlreadyReceived, e.Transferred)
}

func (e *ReceiptError) Unwrap() error { return ErrPartialReceiptExceedsTransferred }
