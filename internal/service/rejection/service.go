package rejection

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

// ErrInvalidInput indicates a malformed rejection or appeal payload.
var ErrInvalidInput = errors.New("invalid input")

// TraceRefresher invalidates and rebuilds a product's trace after its
// quality-control history changes.
type TraceRefresher interface {
	MarkStale(ctx context.Context, productID string) error
	Rebuild(ctx context.Context, productID string) error
}

// Service runs the two-phase rejection workflow and the appeal process on
// top of it. Rejection reasons are immutable once written; lifecycle
// statuses are never rewritten, only the rejection and appeal flags on the
// unit change.
type Service struct {
	store     repository.Store
	authz     authz.Authorizer
	notifier  notify.Dispatcher
	refresher TraceRefresher
	logger    *zap.Logger
	now       func() time.Time

	newRejectionID func() string
	newAppealID    func() string
}

// NewService constructs the rejection service.
func NewService(store repository.Store, authorizer authz.Authorizer, notifier notify.Dispatcher, refresher TraceRefresher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NopDispatcher{}
	}
	return &Service{
		store:          store,
		authz:          authorizer,
		notifier:       notifier,
		refresher:      refresher,
		logger:         logger,
		now:            time.Now,
		newRejectionID: models.NewRejectionID,
		newAppealID:    models.NewAppealID,
	}
}

// unitFlags is the slice of a unit the workflow reads and writes: the
// lifecycle status it leaves alone and the two quality-control flags it
// owns.
type unitFlags struct {
	Status          models.LifecycleStatus
	RejectionStatus models.RejectionStatus
	AppealStatus    models.AppealStatus
}

// withUnit loads the unit of the given kind, applies mutate to its flags
// and CAS-updates the record, retrying once on a version conflict.
func (s *Service) withUnit(ctx context.Context, kind models.UnitKind, id string, mutate func(f *unitFlags) error) error {
	for attempt := 0; ; attempt++ {
		var err error
		switch kind {
		case models.KindAnimal:
			var a *models.Animal
			if a, err = s.store.GetAnimal(ctx, id); err != nil {
				return err
			}
			f := unitFlags{a.Status, a.RejectionStatus, a.AppealStatus}
			if err = mutate(&f); err != nil {
				return err
			}
			a.RejectionStatus, a.AppealStatus = f.RejectionStatus, f.AppealStatus
			err = s.store.UpdateAnimal(ctx, a)
		case models.KindSlaughterPart:
			var p *models.SlaughterPart
			if p, err = s.store.GetPart(ctx, id); err != nil {
				return err
			}
			f := unitFlags{p.Status, p.RejectionStatus, p.AppealStatus}
			if err = mutate(&f); err != nil {
				return err
			}
			p.RejectionStatus, p.AppealStatus = f.RejectionStatus, f.AppealStatus
			err = s.store.UpdatePart(ctx, p)
		case models.KindProduct:
			var p *models.Product
			if p, err = s.store.GetProduct(ctx, id); err != nil {
				return err
			}
			f := unitFlags{p.Status, p.RejectionStatus, p.AppealStatus}
			if err = mutate(&f); err != nil {
				return err
			}
			p.RejectionStatus, p.AppealStatus = f.RejectionStatus, f.AppealStatus
			err = s.store.UpdateProduct(ctx, p)
		default:
			return fmt.Errorf("%w: unknown unit kind %q", ErrInvalidInput, kind)
		}
		if errors.Is(err, models.ErrVersionConflict) && attempt == 0 {
			continue
		}
		return err
	}
}

// RejectInput carries the quality controller's verdict.
type RejectInput struct {
	UnitKind       models.UnitKind
	UnitID         string
	Category       models.RejectionCategory
	SpecificReason string
	Notes          string
	RejectingScope models.ScopeKind
	RejectingUnit  string
}

// Reject opens a rejection against a unit: the unit enters pending review
// and an immutable rejection reason is recorded. A unit already under
// rejection, or one whose lifecycle has finished, cannot be rejected.
func (s *Service) Reject(ctx context.Context, actor string, in RejectInput) (*models.RejectionReason, error) {
	if in.UnitID == "" || in.SpecificReason == "" || in.RejectingUnit == "" ||
		!models.ValidRejectionCategory(in.Category) {
		return nil, ErrInvalidInput
	}
	if err := s.authz.Authorize(ctx, actor, in.RejectingScope, in.RejectingUnit, models.PermissionWrite); err != nil {
		return nil, err
	}

	if err := s.withUnit(ctx, in.UnitKind, in.UnitID, func(f *unitFlags) error {
		if f.Status.Terminal() {
			return &models.TransitionError{Kind: in.UnitKind, ID: in.UnitID, Current: f.Status, Attempted: "reject"}
		}
		if f.RejectionStatus == models.RejectionPendingReview || f.RejectionStatus == models.RejectionRejected {
			return fmt.Errorf("%w: %s %s is already under rejection", models.ErrInvalidTransition, in.UnitKind, in.UnitID)
		}
		f.RejectionStatus = models.RejectionPendingReview
		f.AppealStatus = models.AppealNone
		return nil
	}); err != nil {
		return nil, err
	}

	r := &models.RejectionReason{
		ID:             s.newRejectionID(),
		UnitKind:       in.UnitKind,
		UnitID:         in.UnitID,
		Category:       in.Category,
		SpecificReason: in.SpecificReason,
		Notes:          in.Notes,
		RejectedBy:     actor,
		RejectingScope: in.RejectingScope,
		RejectingUnit:  in.RejectingUnit,
		RejectedAt:     s.now().UTC(),
	}
	if err := s.store.CreateRejection(ctx, r); err != nil {
		return nil, fmt.Errorf("record rejection: %w", err)
	}

	if in.UnitKind == models.KindProduct {
		s.appendQualityEvent(ctx, in.UnitID, "rejected: "+in.SpecificReason, actor)
		s.refreshTrace(ctx, in.UnitID)
	}
	s.logger.Warn("unit rejected pending review",
		zap.String("rejection_id", r.ID),
		zap.String("unit_kind", string(in.UnitKind)),
		zap.String("unit_id", in.UnitID),
		zap.String("category", string(in.Category)))
	s.notifier.Dispatch(ctx, models.TransitionEvent{
		EntityKind: in.UnitKind,
		EntityID:   in.UnitID,
		OldState:   string(models.RejectionNone),
		NewState:   string(models.RejectionPendingReview),
		Actor:      actor,
		Detail:     string(in.Category),
		OccurredAt: s.now().UTC(),
	})
	return r, nil
}

// ConfirmRejection finalizes a pending review into a standing rejection,
// which opens the appeal window for the unit's owner.
func (s *Service) ConfirmRejection(ctx context.Context, actor, rejectionID string) error {
	r, err := s.store.GetRejection(ctx, rejectionID)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, actor, r.RejectingScope, r.RejectingUnit, models.PermissionWrite); err != nil {
		return err
	}

	if err := s.withUnit(ctx, r.UnitKind, r.UnitID, func(f *unitFlags) error {
		if f.RejectionStatus != models.RejectionPendingReview {
			return fmt.Errorf("%w: %s %s is not pending review", models.ErrInvalidTransition, r.UnitKind, r.UnitID)
		}
		f.RejectionStatus = models.RejectionRejected
		return nil
	}); err != nil {
		return err
	}

	if r.UnitKind == models.KindProduct {
		s.appendQualityEvent(ctx, r.UnitID, "rejection confirmed", actor)
		s.refreshTrace(ctx, r.UnitID)
	}
	s.logger.Warn("rejection confirmed",
		zap.String("rejection_id", r.ID),
		zap.String("unit_id", r.UnitID))
	s.notifier.Dispatch(ctx, models.TransitionEvent{
		EntityKind: r.UnitKind,
		EntityID:   r.UnitID,
		OldState:   string(models.RejectionPendingReview),
		NewState:   string(models.RejectionRejected),
		Actor:      actor,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// FileAppeal opens the owning farmer's appeal against a confirmed
// rejection. Only one appeal may ever be pending per rejection, and a
// denied appeal closes the matter for good.
func (s *Service) FileAppeal(ctx context.Context, actor, rejectionID, notes string) (*models.Appeal, error) {
	r, err := s.store.GetRejection(ctx, rejectionID)
	if err != nil {
		return nil, err
	}

	farmerID, err := s.ownerFarmerID(ctx, r.UnitKind, r.UnitID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, models.ScopeFarmer, farmerID, models.PermissionWrite); err != nil {
		return nil, err
	}

	existing, err := s.store.ListAppealsByRejection(ctx, rejectionID)
	if err != nil {
		return nil, err
	}
	for _, a := range existing {
		switch a.Status {
		case models.AppealPending:
			return nil, fmt.Errorf("%w: appeal %s is still pending", models.ErrDuplicateAppeal, a.ID)
		case models.AppealDenied:
			return nil, fmt.Errorf("%w: rejection %s was upheld on appeal", models.ErrDuplicateAppeal, rejectionID)
		}
	}

	if err := s.withUnit(ctx, r.UnitKind, r.UnitID, func(f *unitFlags) error {
		if f.RejectionStatus != models.RejectionRejected {
			return fmt.Errorf("%w: %s %s has no standing rejection to appeal", models.ErrInvalidTransition, r.UnitKind, r.UnitID)
		}
		// The flag check runs inside the CAS so two concurrent filings
		// cannot both pass the appeal listing above: the loser's retry
		// re-reads the flag the winner already set.
		if f.AppealStatus == models.AppealPending {
			return fmt.Errorf("%w: an appeal against rejection %s is already pending", models.ErrDuplicateAppeal, rejectionID)
		}
		f.AppealStatus = models.AppealPending
		return nil
	}); err != nil {
		return nil, err
	}

	appeal := &models.Appeal{
		ID:          s.newAppealID(),
		RejectionID: rejectionID,
		FiledBy:     actor,
		FiledAt:     s.now().UTC(),
		Status:      models.AppealPending,
		Notes:       notes,
	}
	if err := s.store.CreateAppeal(ctx, appeal); err != nil {
		return nil, fmt.Errorf("file appeal: %w", err)
	}

	if r.UnitKind == models.KindProduct {
		s.refreshTrace(ctx, r.UnitID)
	}
	s.logger.Info("appeal filed",
		zap.String("appeal_id", appeal.ID),
		zap.String("rejection_id", rejectionID),
		zap.String("filed_by", actor))
	return appeal, nil
}

// ResolveAppeal decides a pending appeal. Approval overturns the rejection
// and the unit resumes its lifecycle exactly where it stopped; denial
// leaves the rejection standing permanently.
func (s *Service) ResolveAppeal(ctx context.Context, actor, appealID string, approve bool, notes string) (*models.Appeal, error) {
	appeal, err := s.store.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if appeal.Status != models.AppealPending {
		return nil, fmt.Errorf("%w: appeal %s is already resolved", models.ErrInvalidTransition, appealID)
	}
	r, err := s.store.GetRejection(ctx, appeal.RejectionID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, r.RejectingScope, r.RejectingUnit, models.PermissionWrite); err != nil {
		return nil, err
	}

	target := models.AppealDenied
	if approve {
		target = models.AppealApproved
	}

	// The unit's flags move first. If persisting the appeal record fails
	// afterwards, the appeal stays pending and the caller can resolve
	// again: the mutate below accepts a flag already at the same verdict.
	if err := s.withUnit(ctx, r.UnitKind, r.UnitID, func(f *unitFlags) error {
		if f.AppealStatus != models.AppealPending && f.AppealStatus != target {
			return fmt.Errorf("%w: appeal %s is already resolved", models.ErrInvalidTransition, appealID)
		}
		if approve {
			f.RejectionStatus = models.RejectionOverturned
		}
		f.AppealStatus = target
		return nil
	}); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	appeal.Status = target
	appeal.ResolutionNotes = notes
	appeal.ResolvedBy = actor
	appeal.ResolvedAt = &at
	if err := s.store.UpdateAppeal(ctx, appeal); err != nil {
		return nil, fmt.Errorf("resolve appeal: %w", err)
	}

	if r.UnitKind == models.KindProduct {
		verdict := "appeal denied"
		if approve {
			verdict = "appeal approved, rejection overturned"
		}
		s.appendQualityEvent(ctx, r.UnitID, verdict, actor)
		s.refreshTrace(ctx, r.UnitID)
	}
	s.logger.Info("appeal resolved",
		zap.String("appeal_id", appeal.ID),
		zap.String("rejection_id", r.ID),
		zap.Bool("approved", approve))
	s.notifier.Dispatch(ctx, models.TransitionEvent{
		EntityKind: r.UnitKind,
		EntityID:   r.UnitID,
		OldState:   string(models.AppealPending),
		NewState:   string(appeal.Status),
		Actor:      actor,
		Detail:     notes,
		OccurredAt: at,
	})
	return appeal, nil
}

// ListRejections returns the rejection history of a unit, oldest first.
func (s *Service) ListRejections(ctx context.Context, actor string, kind models.UnitKind, unitID string) ([]models.RejectionReason, error) {
	farmerID, err := s.ownerFarmerID(ctx, kind, unitID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, actor, models.ScopeFarmer, farmerID, models.PermissionRead); err != nil {
		return nil, err
	}
	return s.store.ListRejectionsByUnit(ctx, kind, unitID)
}

// ownerFarmerID walks any unit back to the farmer who registered the
// source animal.
func (s *Service) ownerFarmerID(ctx context.Context, kind models.UnitKind, unitID string) (string, error) {
	animalID := unitID
	switch kind {
	case models.KindSlaughterPart:
		p, err := s.store.GetPart(ctx, unitID)
		if err != nil {
			return "", err
		}
		animalID = p.AnimalID
	case models.KindProduct:
		p, err := s.store.GetProduct(ctx, unitID)
		if err != nil {
			return "", err
		}
		animalID = p.AnimalID
	}
	a, err := s.store.GetAnimal(ctx, animalID)
	if err != nil {
		return "", err
	}
	return a.FarmerID, nil
}

func (s *Service) appendQualityEvent(ctx context.Context, productID, action, actor string) {
	event := &models.TimelineEvent{
		ProductID: productID,
		Stage:     models.StageQualityChecked,
		Action:    action,
		Actor:     actor,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.AppendTimeline(ctx, event); err != nil {
		s.logger.Error("failed to append quality event",
			zap.Error(err), zap.String("product_id", productID))
	}
}

func (s *Service) refreshTrace(ctx context.Context, productID string) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.MarkStale(ctx, productID); err != nil {
		s.logger.Error("failed to mark trace stale", zap.Error(err), zap.String("product_id", productID))
		return
	}
	if err := s.refresher.Rebuild(ctx, productID); err != nil {
		s.logger.Warn("trace rebuild deferred to sweep", zap.Error(err), zap.String("product_id", productID))
	}
}
