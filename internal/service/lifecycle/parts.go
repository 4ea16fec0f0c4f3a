package lifecycle

import (
	"context"
	"fmt"

	"github.com/mamadbah2/meattrace/internal/domain/models"
)

// TransferPart hands a slaughter part off to another processing unit.
func (s *Service) TransferPart(ctx context.Context, actor, partID, destUnitID string) (*models.SlaughterPart, error) {
	if destUnitID == "" {
		return nil, ErrInvalidInput
	}

	p, err := s.withPart(ctx, partID, func(p *models.SlaughterPart) error {
		if err := checkNotRejected(models.KindSlaughterPart, p.ID, p.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindSlaughterPart, p.ID, p.Status, opTransfer, partTransitions); err != nil {
			return err
		}
		animal, err := s.store.GetAnimal(ctx, p.AnimalID)
		if err != nil {
			return err
		}
		// A part starts life wherever its animal was slaughtered, so the
		// animal's custodian authorizes the send-off.
		if err := s.authorizeCustodian(ctx, actor, animal); err != nil {
			return err
		}
		at := s.now().UTC()
		p.Status = models.StatusTransferred
		p.Custody.TransferredTo = destUnitID
		p.Custody.TransferredBy = actor
		p.Custody.TransferredAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, models.KindSlaughterPart, p.ID, models.StatusCreated, p.Status, actor, "to "+destUnitID)
	return p, nil
}

// ReceivePart confirms receipt of a part at the destination unit.
func (s *Service) ReceivePart(ctx context.Context, actor, partID string) (*models.SlaughterPart, error) {
	p, err := s.withPart(ctx, partID, func(p *models.SlaughterPart) error {
		if err := checkNotRejected(models.KindSlaughterPart, p.ID, p.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindSlaughterPart, p.ID, p.Status, opReceive, partTransitions); err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, actor, models.ScopeProcessingUnit, p.Custody.TransferredTo, models.PermissionWrite); err != nil {
			return err
		}
		at := s.now().UTC()
		p.Status = models.StatusReceived
		p.Custody.ReceivedBy = actor
		p.Custody.ReceivedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, models.KindSlaughterPart, p.ID, models.StatusTransferred, p.Status, actor, "")
	return p, nil
}

// consumePart marks a part as used by a product, exactly once, and carves
// the used quantity out of its remaining weight. A part that moved between
// units may only be consumed by the unit that received it.
func (s *Service) consumePart(ctx context.Context, unitID, partID string, quantity float64) (*models.SlaughterPart, models.LifecycleStatus, error) {
	var oldStatus models.LifecycleStatus
	p, err := s.withPart(ctx, partID, func(p *models.SlaughterPart) error {
		oldStatus = p.Status
		if err := checkNotRejected(models.KindSlaughterPart, p.ID, p.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindSlaughterPart, p.ID, p.Status, opUse, partTransitions); err != nil {
			return err
		}
		if p.Custody.ReceivedAt != nil && p.Custody.TransferredTo != unitID {
			return fmt.Errorf("part %s is held by %s: %w", p.ID, p.Custody.TransferredTo, models.ErrUnauthorized)
		}
		if quantity > p.RemainingWeight {
			return &models.WeightError{Kind: models.KindSlaughterPart, ID: p.ID, Available: p.RemainingWeight, Requested: quantity}
		}
		p.Status = models.StatusUsedInProduct
		p.UsedInProduct = true
		p.RemainingWeight -= quantity
		return nil
	})
	return p, oldStatus, err
}
