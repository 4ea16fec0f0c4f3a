package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
)

// PartUse names a slaughter part consumed as a product ingredient.
type PartUse struct {
	PartID       string
	QuantityUsed float64
}

// CreateProductInput describes a product to create from an animal directly
// or from one or more slaughter parts.
type CreateProductInput struct {
	ProcessingUnitID string
	AnimalID         string
	Parts            []PartUse
	Name             string
	BatchNumber      string
	Type             models.ProductType
	Quantity         float64
	Weight           float64
	Price            float64
	Description      string
	Location         string
}

// CreateProduct creates a product and consumes its sources: either parts
// (each marked used_in_product exactly once) or carcass weight taken
// directly from a slaughtered animal.
func (s *Service) CreateProduct(ctx context.Context, actor string, in CreateProductInput) (*models.Product, error) {
	if in.ProcessingUnitID == "" || in.Name == "" || in.Quantity <= 0 || in.Weight <= 0 {
		return nil, ErrInvalidInput
	}
	if len(in.Parts) == 0 && in.AnimalID == "" {
		return nil, ErrInvalidInput
	}
	if err := s.authz.Authorize(ctx, actor, models.ScopeProcessingUnit, in.ProcessingUnitID, models.PermissionWrite); err != nil {
		return nil, err
	}

	animalID := in.AnimalID
	ingredients := make([]models.Ingredient, 0, len(in.Parts))

	if len(in.Parts) > 0 {
		// Pre-validate every ingredient so an unusable part is caught
		// before any part is consumed.
		for _, use := range in.Parts {
			if use.QuantityUsed <= 0 {
				return nil, ErrInvalidInput
			}
			part, err := s.store.GetPart(ctx, use.PartID)
			if err != nil {
				return nil, err
			}
			if animalID == "" {
				animalID = part.AnimalID
			}
			if part.AnimalID != animalID {
				return nil, fmt.Errorf("%w: ingredient parts must come from one animal", ErrInvalidInput)
			}
		}

		for _, use := range in.Parts {
			part, prev, err := s.consumePart(ctx, in.ProcessingUnitID, use.PartID, use.QuantityUsed)
			if err != nil {
				return nil, err
			}
			ingredients = append(ingredients, models.Ingredient{PartID: part.ID, QuantityUsed: use.QuantityUsed})
			s.emit(ctx, models.KindSlaughterPart, part.ID, prev, part.Status, actor, "consumed by product")
		}
	} else {
		// Product made from the animal directly: carve the product weight
		// out of the remaining carcass weight.
		if _, err := s.withAnimal(ctx, animalID, func(a *models.Animal) error {
			if err := checkNotRejected(models.KindAnimal, a.ID, a.RejectionStatus); err != nil {
				return err
			}
			if a.Status != models.StatusSlaughtered {
				return &models.TransitionError{Kind: models.KindAnimal, ID: a.ID, Current: a.Status, Attempted: opCreate}
			}
			if in.Weight > a.RemainingWeight {
				return &models.WeightError{Kind: models.KindAnimal, ID: a.ID, Available: a.RemainingWeight, Requested: in.Weight}
			}
			a.RemainingWeight -= in.Weight
			return nil
		}); err != nil {
			return nil, err
		}
	}

	batch := in.BatchNumber
	if batch == "" {
		batch = "BATCH001"
	}
	productType := in.Type
	if productType == "" {
		productType = models.ProductMeat
	}

	p := &models.Product{
		ID:               s.newProductID(),
		ProcessingUnitID: in.ProcessingUnitID,
		AnimalID:         animalID,
		Ingredients:      ingredients,
		Name:             in.Name,
		BatchNumber:      batch,
		Type:             productType,
		Quantity:         in.Quantity,
		Weight:           in.Weight,
		Price:            in.Price,
		Description:      in.Description,
		Status:           models.StatusCreated,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.appendTimeline(ctx, p.ID, models.StageProcessed, "product created", in.Location, actor)
	s.logger.Info("product created",
		zap.String("product_id", p.ID),
		zap.String("animal_id", animalID),
		zap.Int("ingredients", len(ingredients)))
	s.emit(ctx, models.KindProduct, p.ID, "", models.StatusCreated, actor, "")
	s.refreshTrace(ctx, p.ID)
	return p, nil
}

// TransferProduct ships a product to a shop.
func (s *Service) TransferProduct(ctx context.Context, actor, productID, destShopID string) (*models.Product, error) {
	if destShopID == "" {
		return nil, ErrInvalidInput
	}

	var oldStatus models.LifecycleStatus
	p, err := s.withProduct(ctx, productID, func(p *models.Product) error {
		oldStatus = p.Status
		if err := checkNotRejected(models.KindProduct, p.ID, p.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindProduct, p.ID, p.Status, opTransfer, productTransitions); err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, actor, models.ScopeProcessingUnit, p.ProcessingUnitID, models.PermissionWrite); err != nil {
			return err
		}
		at := s.now().UTC()
		p.Status = models.StatusTransferred
		p.Custody.TransferredTo = destShopID
		p.Custody.TransferredBy = actor
		p.Custody.TransferredAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.appendTimeline(ctx, p.ID, models.StageShipped, "transferred to shop", destShopID, actor)
	s.emit(ctx, models.KindProduct, p.ID, oldStatus, p.Status, actor, "to "+destShopID)
	s.refreshTrace(ctx, p.ID)
	return p, nil
}

// receiptTolerance absorbs the rounding error a sum of partial receipt
// quantities accumulates. Quantities are kilograms or piece counts, so
// the slack is never observable.
const receiptTolerance = 1e-6

// ReceiveProduct confirms receipt of some or all of a transferred
// quantity. Cumulative receipts may never exceed what was transferred; a
// partial receipt leaves the product in a pending receiving state, and the
// transition completes automatically once the full quantity has arrived.
func (s *Service) ReceiveProduct(ctx context.Context, actor, productID string, quantity float64) (*models.Product, error) {
	if quantity <= 0 {
		return nil, ErrInvalidInput
	}

	var oldStatus models.LifecycleStatus
	p, err := s.withProduct(ctx, productID, func(p *models.Product) error {
		oldStatus = p.Status
		if err := checkNotRejected(models.KindProduct, p.ID, p.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindProduct, p.ID, p.Status, opReceive, productTransitions); err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, actor, models.ScopeShop, p.Custody.TransferredTo, models.PermissionWrite); err != nil {
			return err
		}
		if p.QuantityReceived+quantity > p.Quantity+receiptTolerance {
			return &models.ReceiptError{
				ProductID:       p.ID,
				Transferred:     p.Quantity,
				AlreadyReceived: p.QuantityReceived,
				Requested:       quantity,
			}
		}
		at := s.now().UTC()
		p.QuantityReceived += quantity
		p.Custody.ReceivedBy = actor
		p.Custody.ReceivedAt = &at
		if p.QuantityReceived >= p.Quantity-receiptTolerance {
			// Snap to the transferred quantity so the stored total is
			// exact and the transition cannot be missed to float error.
			p.QuantityReceived = p.Quantity
			p.Status = models.StatusReceived
		} else {
			p.Status = models.StatusReceiving
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.appendTimeline(ctx, p.ID, models.StageReceived,
		fmt.Sprintf("received %.2f of %.2f", p.QuantityReceived, p.Quantity), "", actor)
	s.emit(ctx, models.KindProduct, p.ID, oldStatus, p.Status, actor, "")
	s.refreshTrace(ctx, p.ID)
	return p, nil
}

// SellProduct records the terminal sale of a received product.
func (s *Service) SellProduct(ctx context.Context, actor, productID string) (*models.Product, error) {
	return s.finishProduct(ctx, actor, productID, opSell, models.StatusSold)
}

// ConsumeProduct records the terminal consumption of a received product.
func (s *Service) ConsumeProduct(ctx context.Context, actor, productID string) (*models.Product, error) {
	return s.finishProduct(ctx, actor, productID, opConsume, models.StatusConsumed)
}

func (s *Service) finishProduct(ctx context.Context, actor, productID, op string, final models.LifecycleStatus) (*models.Product, error) {
	var oldStatus models.LifecycleStatus
	p, err := s.withProduct(ctx, productID, func(p *models.Product) error {
		oldStatus = p.Status
		if err := checkNotRejected(models.KindProduct, p.ID, p.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindProduct, p.ID, p.Status, op, productTransitions); err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, actor, models.ScopeShop, p.Custody.TransferredTo, models.PermissionWrite); err != nil {
			return err
		}
		p.Status = final
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, models.KindProduct, p.ID, oldStatus, p.Status, actor, "")
	s.refreshTrace(ctx, p.ID)
	return p, nil
}

// RecordTimelineEvent appends a custom stage event to a product's history.
func (s *Service) RecordTimelineEvent(ctx context.Context, actor, productID string, stage models.ProcessingStage, action, location string) error {
	if !models.ValidStage(stage) || action == "" {
		return ErrInvalidInput
	}
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	// Products still at the processing unit are annotated by its staff;
	// once shipped, by the destination shop's.
	scopeKind, scopeID := models.ScopeProcessingUnit, p.ProcessingUnitID
	if p.Custody.TransferredAt != nil {
		scopeKind, scopeID = models.ScopeShop, p.Custody.TransferredTo
	}
	if err := s.authz.Authorize(ctx, actor, scopeKind, scopeID, models.PermissionWrite); err != nil {
		return err
	}

	event := &models.TimelineEvent{
		ProductID: productID,
		Stage:     stage,
		Action:    action,
		Location:  location,
		Actor:     actor,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.AppendTimeline(ctx, event); err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}
	s.refreshTrace(ctx, productID)
	return nil
}

// appendTimeline records a stage event generated by a lifecycle operation
// itself. Failures are logged, not propagated: the state change already
// committed.
func (s *Service) appendTimeline(ctx context.Context, productID string, stage models.ProcessingStage, action, location, actor string) {
	event := &models.TimelineEvent{
		ProductID: productID,
		Stage:     stage,
		Action:    action,
		Location:  location,
		Actor:     actor,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.AppendTimeline(ctx, event); err != nil {
		s.logger.Error("failed to append timeline event",
			zap.Error(err),
			zap.String("product_id", productID),
			zap.String("stage", string(stage)))
	}
}
