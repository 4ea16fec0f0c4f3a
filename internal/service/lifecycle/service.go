package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository"
	"github.com/mamadbah2/meattrace/internal/service/authz"
	"github.com/mamadbah2/meattrace/internal/service/notify"
)

// ErrInvalidInput indicates a malformed operation payload.
var ErrInvalidInput = errors.New("invalid input")

// Rebuilder triggers trace projection work after product history changes.
// The trace is marked stale before rebuilding so readers are never served a
// partially-updated view.
type Rebuilder interface {
	MarkStale(ctx context.Context, productID string) error
	Rebuild(ctx context.Context, productID string) error
}

// Service enforces the lifecycle state machines for animals, slaughter
// parts and products. Every transition is applied as a single
// compare-and-swap against the entity store, so concurrent transitions on
// the same unit serialize.
type Service struct {
	store     repository.Store
	authz     authz.Authorizer
	notifier  notify.Dispatcher
	rebuilder Rebuilder
	logger    *zap.Logger
	now       func() time.Time

	newAnimalID  func() string
	newPartID    func() string
	newProductID func() string
}

// NewService constructs the lifecycle service.
func NewService(store repository.Store, authorizer authz.Authorizer, notifier notify.Dispatcher, rebuilder Rebuilder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NopDispatcher{}
	}
	return &Service{
		store:        store,
		authz:        authorizer,
		notifier:     notifier,
		rebuilder:    rebuilder,
		logger:       logger,
		now:          time.Now,
		newAnimalID:  models.NewAnimalID,
		newPartID:    models.NewPartID,
		newProductID: models.NewProductID,
	}
}

// emit publishes a committed state change. Delivery is best-effort.
func (s *Service) emit(ctx context.Context, kind models.UnitKind, id string, oldState, newState models.LifecycleStatus, actor, detail string) {
	s.notifier.Dispatch(ctx, models.TransitionEvent{
		EntityKind: kind,
		EntityID:   id,
		OldState:   string(oldState),
		NewState:   string(newState),
		Actor:      actor,
		Detail:     detail,
		OccurredAt: s.now().UTC(),
	})
}

// refreshTrace marks the product's trace stale and rebuilds it. A rebuild
// failure is logged, not returned: the stale flag stays set and the
// scheduler sweep retries.
func (s *Service) refreshTrace(ctx context.Context, productID string) {
	if s.rebuilder == nil {
		return
	}
	if err := s.rebuilder.MarkStale(ctx, productID); err != nil {
		s.logger.Error("failed to mark trace stale", zap.Error(err), zap.String("product_id", productID))
		return
	}
	if err := s.rebuilder.Rebuild(ctx, productID); err != nil {
		s.logger.Warn("trace rebuild deferred to sweep", zap.Error(err), zap.String("product_id", productID))
	}
}

// withAnimal loads, mutates and CAS-updates an animal, retrying once on a
// version conflict.
func (s *Service) withAnimal(ctx context.Context, id string, mutate func(a *models.Animal) error) (*models.Animal, error) {
	for attempt := 0; ; attempt++ {
		a, err := s.store.GetAnimal(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(a); err != nil {
			return nil, err
		}
		err = s.store.UpdateAnimal(ctx, a)
		if errors.Is(err, models.ErrVersionConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

// withPart is withAnimal for slaughter parts.
func (s *Service) withPart(ctx context.Context, id string, mutate func(p *models.SlaughterPart) error) (*models.SlaughterPart, error) {
	for attempt := 0; ; attempt++ {
		p, err := s.store.GetPart(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(p); err != nil {
			return nil, err
		}
		err = s.store.UpdatePart(ctx, p)
		if errors.Is(err, models.ErrVersionConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// withProduct is withAnimal for products.
func (s *Service) withProduct(ctx context.Context, id string, mutate func(p *models.Product) error) (*models.Product, error) {
	for attempt := 0; ; attempt++ {
		p, err := s.store.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(p); err != nil {
			return nil, err
		}
		err = s.store.UpdateProduct(ctx, p)
		if errors.Is(err, models.ErrVersionConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// RegisterAnimalInput carries the fields a farmer supplies at
// registration.
type RegisterAnimalInput struct {
	FarmerID     string
	Name         string
	Species      models.Species
	Breed        string
	AgeMonths    float64
	Gender       string
	HealthStatus string
	LiveWeight   float64
}

// RegisterAnimal creates a new animal in the registered state, owned by
// the farmer.
func (s *Service) RegisterAnimal(ctx context.Context, actor string, in RegisterAnimalInput) (*models.Animal, error) {
	if in.FarmerID == "" || !models.ValidSpecies(in.Species) || in.LiveWeight <= 0 {
		return nil, ErrInvalidInput
	}
	if err := s.authz.Authorize(ctx, actor, models.ScopeFarmer, in.FarmerID, models.PermissionWrite); err != nil {
		return nil, err
	}

	a := &models.Animal{
		ID:              s.newAnimalID(),
		FarmerID:        in.FarmerID,
		Name:            in.Name,
		Species:         in.Species,
		Breed:           in.Breed,
		AgeMonths:       in.AgeMonths,
		Gender:          in.Gender,
		HealthStatus:    in.HealthStatus,
		LiveWeight:      in.LiveWeight,
		RemainingWeight: in.LiveWeight,
		Status:          models.StatusRegistered,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateAnimal(ctx, a); err != nil {
		return nil, fmt.Errorf("register animal: %w", err)
	}

	s.logger.Info("animal registered",
		zap.String("animal_id", a.ID),
		zap.String("farmer_id", a.FarmerID),
		zap.String("species", string(a.Species)))
	s.emit(ctx, models.KindAnimal, a.ID, "", models.StatusRegistered, actor, opRegister)
	return a, nil
}

// TransferAnimal hands an animal off to a processing unit. Custody does
// not move until the destination confirms receipt.
func (s *Service) TransferAnimal(ctx context.Context, actor, animalID, destUnitID string) (*models.Animal, error) {
	if destUnitID == "" {
		return nil, ErrInvalidInput
	}

	var oldStatus models.LifecycleStatus
	a, err := s.withAnimal(ctx, animalID, func(a *models.Animal) error {
		oldStatus = a.Status
		if err := checkNotRejected(models.KindAnimal, a.ID, a.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindAnimal, a.ID, a.Status, opTransfer, animalTransitions); err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, actor, models.ScopeFarmer, a.FarmerID, models.PermissionWrite); err != nil {
			return err
		}
		at := s.now().UTC()
		a.Status = models.StatusTransferred
		a.Custody.TransferredTo = destUnitID
		a.Custody.TransferredBy = actor
		a.Custody.TransferredAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, models.KindAnimal, a.ID, oldStatus, a.Status, actor, "to "+destUnitID)
	return a, nil
}

// ReceiveAnimal confirms receipt at the destination processing unit and
// moves custody there.
func (s *Service) ReceiveAnimal(ctx context.Context, actor, animalID string) (*models.Animal, error) {
	a, err := s.withAnimal(ctx, animalID, func(a *models.Animal) error {
		if err := checkNotRejected(models.KindAnimal, a.ID, a.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindAnimal, a.ID, a.Status, opReceive, animalTransitions); err != nil {
			return err
		}
		if err := s.authz.Authorize(ctx, actor, models.ScopeProcessingUnit, a.Custody.TransferredTo, models.PermissionWrite); err != nil {
			return err
		}
		at := s.now().UTC()
		a.Status = models.StatusReceived
		a.Custody.ReceivedBy = actor
		a.Custody.ReceivedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, models.KindAnimal, a.ID, models.StatusTransferred, a.Status, actor, "")
	return a, nil
}

// SlaughterInput carries the carcass split decision.
type SlaughterInput struct {
	CarcassType  models.CarcassType
	Weights      map[models.PartType]float64
	AbattoirName string
}

// Slaughter marks the animal slaughtered and atomically records the
// carcass measurement plus the slaughter parts the chosen split derives.
// The sum of part weights must not exceed the animal's carcass weight;
// surplus is rejected at entry.
func (s *Service) Slaughter(ctx context.Context, actor, animalID string, in SlaughterInput) (*models.Animal, []models.SlaughterPart, error) {
	specs, total, err := models.DeriveParts(in.CarcassType, in.Weights)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	var oldStatus models.LifecycleStatus
	a, err := s.withAnimal(ctx, animalID, func(a *models.Animal) error {
		oldStatus = a.Status
		if err := checkNotRejected(models.KindAnimal, a.ID, a.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindAnimal, a.ID, a.Status, opSlaughter, animalTransitions); err != nil {
			return err
		}
		// Slaughtering from registered is only legal when the animal was
		// never transferred off the farm.
		if a.Status == models.StatusRegistered && a.Custody.TransferredAt != nil {
			return &models.TransitionError{Kind: models.KindAnimal, ID: a.ID, Current: a.Status, Attempted: opSlaughter}
		}
		if err := s.authorizeCustodian(ctx, actor, a); err != nil {
			return err
		}
		if total > a.RemainingWeight {
			return &models.WeightError{Kind: models.KindAnimal, ID: a.ID, Available: a.RemainingWeight, Requested: total}
		}
		at := s.now().UTC()
		a.Status = models.StatusSlaughtered
		a.Slaughtered = true
		a.SlaughteredAt = &at
		a.AbattoirName = in.AbattoirName
		a.RemainingWeight -= total
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	measurement := &models.CarcassMeasurement{
		AnimalID:    a.ID,
		CarcassType: in.CarcassType,
		Weights:     in.Weights,
		TotalWeight: total,
		MeasuredBy:  actor,
		MeasuredAt:  s.now().UTC(),
	}
	if err := s.store.CreateCarcassMeasurement(ctx, measurement); err != nil {
		return nil, nil, fmt.Errorf("record carcass measurement: %w", err)
	}

	parts := make([]models.SlaughterPart, 0, len(specs))
	for _, spec := range specs {
		part := models.SlaughterPart{
			ID:              s.newPartID(),
			AnimalID:        a.ID,
			PartType:        spec.PartType,
			Weight:          spec.Weight,
			RemainingWeight: spec.Weight,
			Status:          models.StatusCreated,
			CreatedAt:       s.now().UTC(),
		}
		if err := s.store.CreatePart(ctx, &part); err != nil {
			return nil, nil, fmt.Errorf("create slaughter part %s: %w", spec.PartType, err)
		}
		parts = append(parts, part)
	}

	s.logger.Info("animal slaughtered",
		zap.String("animal_id", a.ID),
		zap.String("carcass_type", string(in.CarcassType)),
		zap.Float64("total_weight", total),
		zap.Int("parts", len(parts)))
	s.emit(ctx, models.KindAnimal, a.ID, oldStatus, a.Status, actor, string(in.CarcassType))
	return a, parts, nil
}

// MarkProcessed records that the animal has been fully processed into
// products.
func (s *Service) MarkProcessed(ctx context.Context, actor, animalID string) (*models.Animal, error) {
	a, err := s.withAnimal(ctx, animalID, func(a *models.Animal) error {
		if err := checkNotRejected(models.KindAnimal, a.ID, a.RejectionStatus); err != nil {
			return err
		}
		if err := checkTransition(models.KindAnimal, a.ID, a.Status, opProcess, animalTransitions); err != nil {
			return err
		}
		if err := s.authorizeCustodian(ctx, actor, a); err != nil {
			return err
		}
		a.Status = models.StatusProcessed
		a.Processed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, models.KindAnimal, a.ID, models.StatusSlaughtered, a.Status, actor, "")
	return a, nil
}

// GetAnimal exposes a read with the caller's read permission checked
// against the owning farmer scope.
func (s *Service) GetAnimal(ctx context.Context, actor, animalID string) (*models.Animal, error) {
	a, err := s.store.GetAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, models.ScopeFarmer, a.FarmerID, models.PermissionRead); err != nil {
		return nil, err
	}
	return a, nil
}

// authorizeCustodian authorizes against whichever organization currently
// holds the animal: the destination unit once it confirmed receipt, the
// farmer otherwise.
func (s *Service) authorizeCustodian(ctx context.Context, actor string, a *models.Animal) error {
	if a.Custody.ReceivedAt != nil {
		return s.authz.Authorize(ctx, actor, models.ScopeProcessingUnit, a.Custody.TransferredTo, models.PermissionWrite)
	}
	return s.authz.Authorize(ctx, actor, models.ScopeFarmer, a.FarmerID, models.PermissionWrite)
}
