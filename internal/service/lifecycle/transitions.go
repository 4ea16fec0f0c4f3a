package lifecycle

import (
	"fmt"

	"github.com/mamadbah2/meattrace/internal/domain/models"
)

// Operation names used in transition errors and notifications.
const (
	opRegister  = "register"
	opTransfer  = "transfer"
	opReceive   = "receive"
	opSlaughter = "slaughter"
	opProcess   = "process"
	opUse       = "use_in_product"
	opCreate    = "create"
	opSell      = "sell"
	opConsume   = "consume"
)

// Transition tables: a transition is legal only when the unit's current
// status is one of the operation's declared source states.
var (
	animalTransitions = map[string][]models.LifecycleStatus{
		opTransfer:  {models.StatusRegistered},
		opReceive:   {models.StatusTransferred},
		opSlaughter: {models.StatusReceived, models.StatusRegistered},
		opProcess:   {models.StatusSlaughtered},
	}

	partTransitions = map[string][]models.LifecycleStatus{
		opTransfer: {models.StatusCreated},
		opReceive:  {models.StatusTransferred},
		opUse:      {models.StatusCreated, models.StatusReceived},
	}

	productTransitions = map[string][]models.LifecycleStatus{
		opTransfer: {models.StatusCreated},
		opReceive:  {models.StatusTransferred, models.StatusReceiving},
		opSell:     {models.StatusReceived},
		opConsume:  {models.StatusReceived},
	}
)

// checkTransition validates the operation against the table and returns a
// TransitionError naming the current and attempted states on mismatch.
func checkTransition(kind models.UnitKind, id string, current models.LifecycleStatus, op string, table map[string][]models.LifecycleStatus) error {
	for _, from := range table[op] {
		if current == from {
			return nil
		}
	}
	return &models.TransitionError{Kind: kind, ID: id, Current: current, Attempted: op}
}

// checkNotRejected blocks lifecycle progress while a unit sits in the
// rejection workflow. An approved appeal clears the status and lets the
// lifecycle resume from where it stopped.
func checkNotRejected(kind models.UnitKind, id string, status models.RejectionStatus) error {
	switch status {
	case models.RejectionPendingReview, models.RejectionRejected:
		return fmt.Errorf("%s %s is blocked by rejection status %q: %w", kind, id, status, models.ErrInvalidTransition)
	}
	return nil
}
