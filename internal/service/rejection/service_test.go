package rejection

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository/memory"
	"github.com/mamadbah2/meattrace/internal/service/authz"
	"github.com/mamadbah2/meattrace/internal/service/lifecycle"
	"github.com/mamadbah2/meattrace/internal/service/projection"
)

const (
	farmer    = "fatou"
	inspector = "khady"
	processor = "moussa"
	farmID    = "FARM1"
	unitID    = "PU1"
)

type harness struct {
	svc   *Service
	lc    *lifecycle.Service
	store *memory.Store
}

func setup(t *testing.T) *harness {
	t.Helper()

	store := memory.NewStore()
	auth := authz.NewService(store, zap.NewNop())
	projector := projection.NewProjector(store, zap.NewNop())

	ctx := context.Background()
	grants := []models.Capability{
		{UserID: farmer, ScopeKind: models.ScopeFarmer, ScopeID: farmID, Role: models.RoleFarmer, Permission: models.PermissionWrite},
		{UserID: processor, ScopeKind: models.ScopeProcessingUnit, ScopeID: unitID, Role: models.RoleWorker, Permission: models.PermissionWrite},
		{UserID: inspector, ScopeKind: models.ScopeProcessingUnit, ScopeID: unitID, Role: models.RoleQualityControl, Permission: models.PermissionWrite},
	}
	for _, g := range grants {
		if err := auth.Grant(ctx, g); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}

	svc := NewService(store, auth, nil, projector, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	lc := lifecycle.NewService(store, auth, nil, projector, zap.NewNop())
	return &harness{svc: svc, lc: lc, store: store}
}

func transferredCow(t *testing.T, h *harness) *models.Animal {
	t.Helper()
	ctx := context.Background()
	a, err := h.lc.RegisterAnimal(ctx, farmer, lifecycle.RegisterAnimalInput{
		FarmerID:   farmID,
		Species:    models.SpeciesCow,
		LiveWeight: 500,
	})
	if err != nil {
		t.Fatalf("RegisterAnimal: %v", err)
	}
	if _, err := h.lc.TransferAnimal(ctx, farmer, a.ID, unitID); err != nil {
		t.Fatalf("TransferAnimal: %v", err)
	}
	return a
}

func rejectAnimal(t *testing.T, h *harness, animalID string) *models.RejectionReason {
	t.Helper()
	r, err := h.svc.Reject(context.Background(), inspector, RejectInput{
		UnitKind:       models.KindAnimal,
		UnitID:         animalID,
		Category:       models.RejectionHealth,
		SpecificReason: "suspected foot-and-mouth",
		RejectingScope: models.ScopeProcessingUnit,
		RejectingUnit:  unitID,
	})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	return r
}

func TestRejectBlocksLifecycle(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := transferredCow(t, h)
	r := rejectAnimal(t, h, a.ID)

	got, err := h.store.GetAnimal(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAnimal: %v", err)
	}
	if got.RejectionStatus != models.RejectionPendingReview {
		t.Fatalf("rejection status = %q, want pending_review", got.RejectionStatus)
	}
	// The lifecycle status stays where it was as a historical fact.
	if got.Status != models.StatusTransferred {
		t.Fatalf("status = %q, want transferred", got.Status)
	}

	// Pending review already blocks transitions.
	if _, err := h.lc.ReceiveAnimal(ctx, processor, a.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	if err := h.svc.ConfirmRejection(ctx, inspector, r.ID); err != nil {
		t.Fatalf("ConfirmRejection: %v", err)
	}
	got, _ = h.store.GetAnimal(ctx, a.ID)
	if got.RejectionStatus != models.RejectionRejected {
		t.Fatalf("rejection status = %q, want rejected", got.RejectionStatus)
	}
	if _, err := h.lc.ReceiveAnimal(ctx, processor, a.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	// Confirming twice is a workflow error.
	if err := h.svc.ConfirmRejection(ctx, inspector, r.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestRejectAlreadyRejected(t *testing.T) {
	h := setup(t)

	a := transferredCow(t, h)
	rejectAnimal(t, h, a.ID)

	_, err := h.svc.Reject(context.Background(), inspector, RejectInput{
		UnitKind:       models.KindAnimal,
		UnitID:         a.ID,
		Category:       models.RejectionQuality,
		SpecificReason: "bruising",
		RejectingScope: models.ScopeProcessingUnit,
		RejectingUnit:  unitID,
	})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestAppealApprovedRestoresLifecycle(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := transferredCow(t, h)
	r := rejectAnimal(t, h, a.ID)

	// No appeal before the rejection is confirmed.
	if _, err := h.svc.FileAppeal(ctx, farmer, r.ID, "healthy on re-check"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if err := h.svc.ConfirmRejection(ctx, inspector, r.ID); err != nil {
		t.Fatalf("ConfirmRejection: %v", err)
	}

	appeal, err := h.svc.FileAppeal(ctx, farmer, r.ID, "healthy on re-check")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}
	if appeal.Status != models.AppealPending {
		t.Fatalf("appeal status = %q, want pending", appeal.Status)
	}

	// Only one pending appeal per rejection.
	if _, err := h.svc.FileAppeal(ctx, farmer, r.ID, "again"); !errors.Is(err, models.ErrDuplicateAppeal) {
		t.Fatalf("err = %v, want ErrDuplicateAppeal", err)
	}

	appeal, err = h.svc.ResolveAppeal(ctx, inspector, appeal.ID, true, "vet cleared the animal")
	if err != nil {
		t.Fatalf("ResolveAppeal: %v", err)
	}
	if appeal.Status != models.AppealApproved {
		t.Fatalf("appeal status = %q, want approved", appeal.Status)
	}

	got, _ := h.store.GetAnimal(ctx, a.ID)
	if got.RejectionStatus != models.RejectionOverturned {
		t.Fatalf("rejection status = %q, want overturned", got.RejectionStatus)
	}
	// The lifecycle resumes exactly where it stopped.
	if got.Status != models.StatusTransferred {
		t.Fatalf("status = %q, want transferred", got.Status)
	}
	if _, err := h.lc.ReceiveAnimal(ctx, processor, a.ID); err != nil {
		t.Fatalf("ReceiveAnimal after overturn: %v", err)
	}

	// The rejection record itself is untouched history.
	stored, err := h.store.GetRejection(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRejection: %v", err)
	}
	if stored.SpecificReason != r.SpecificReason || !stored.RejectedAt.Equal(r.RejectedAt) {
		t.Fatalf("rejection record changed: %+v", stored)
	}
}

func TestAppealDeniedIsFinal(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := transferredCow(t, h)
	r := rejectAnimal(t, h, a.ID)
	if err := h.svc.ConfirmRejection(ctx, inspector, r.ID); err != nil {
		t.Fatalf("ConfirmRejection: %v", err)
	}

	appeal, err := h.svc.FileAppeal(ctx, farmer, r.ID, "contesting")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}
	if _, err := h.svc.ResolveAppeal(ctx, inspector, appeal.ID, false, "vet confirmed findings"); err != nil {
		t.Fatalf("ResolveAppeal: %v", err)
	}

	got, _ := h.store.GetAnimal(ctx, a.ID)
	if got.RejectionStatus != models.RejectionRejected || got.AppealStatus != models.AppealDenied {
		t.Fatalf("unexpected state: rejection=%q appeal=%q", got.RejectionStatus, got.AppealStatus)
	}

	// A denied appeal closes the matter permanently.
	if _, err := h.svc.FileAppeal(ctx, farmer, r.ID, "one more try"); !errors.Is(err, models.ErrDuplicateAppeal) {
		t.Fatalf("err = %v, want ErrDuplicateAppeal", err)
	}

	// And the resolved appeal cannot be re-resolved.
	if _, err := h.svc.ResolveAppeal(ctx, inspector, appeal.ID, true, ""); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestFileAppealRequiresOwner(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := transferredCow(t, h)
	r := rejectAnimal(t, h, a.ID)
	if err := h.svc.ConfirmRejection(ctx, inspector, r.ID); err != nil {
		t.Fatalf("ConfirmRejection: %v", err)
	}

	if _, err := h.svc.FileAppeal(ctx, processor, r.ID, "not my call"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestFileAppealFlagAlreadyPending(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := transferredCow(t, h)
	r := rejectAnimal(t, h, a.ID)
	if err := h.svc.ConfirmRejection(ctx, inspector, r.ID); err != nil {
		t.Fatalf("ConfirmRejection: %v", err)
	}

	// A concurrent filing can set the pending flag before its appeal
	// record is visible to a listing; the flag alone must block a second
	// filing.
	got, err := h.store.GetAnimal(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAnimal: %v", err)
	}
	got.AppealStatus = models.AppealPending
	if err := h.store.UpdateAnimal(ctx, got); err != nil {
		t.Fatalf("UpdateAnimal: %v", err)
	}

	if _, err := h.svc.FileAppeal(ctx, farmer, r.ID, "again"); !errors.Is(err, models.ErrDuplicateAppeal) {
		t.Fatalf("err = %v, want ErrDuplicateAppeal", err)
	}
}

type flakyAppealStore struct {
	*memory.Store
	failures int
}

func (s *flakyAppealStore) UpdateAppeal(ctx context.Context, a *models.Appeal) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	return s.Store.UpdateAppeal(ctx, a)
}

func TestResolveAppealRetriesAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyAppealStore{Store: memory.NewStore(), failures: 1}
	auth := authz.NewService(store, zap.NewNop())
	grants := []models.Capability{
		{UserID: farmer, ScopeKind: models.ScopeFarmer, ScopeID: farmID, Role: models.RoleFarmer, Permission: models.PermissionWrite},
		{UserID: inspector, ScopeKind: models.ScopeProcessingUnit, ScopeID: unitID, Role: models.RoleQualityControl, Permission: models.PermissionWrite},
	}
	for _, g := range grants {
		if err := auth.Grant(ctx, g); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}
	svc := NewService(store, auth, nil, nil, zap.NewNop())

	a := &models.Animal{
		ID:         "COW1",
		FarmerID:   farmID,
		Species:    models.SpeciesCow,
		LiveWeight: 500,
		Status:     models.StatusTransferred,
	}
	if err := store.CreateAnimal(ctx, a); err != nil {
		t.Fatalf("CreateAnimal: %v", err)
	}
	r, err := svc.Reject(ctx, inspector, RejectInput{
		UnitKind:       models.KindAnimal,
		UnitID:         a.ID,
		Category:       models.RejectionHealth,
		SpecificReason: "suspected foot-and-mouth",
		RejectingScope: models.ScopeProcessingUnit,
		RejectingUnit:  unitID,
	})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := svc.ConfirmRejection(ctx, inspector, r.ID); err != nil {
		t.Fatalf("ConfirmRejection: %v", err)
	}
	appeal, err := svc.FileAppeal(ctx, farmer, r.ID, "healthy on re-check")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}

	// The first resolution loses the appeal record write. The appeal must
	// stay pending so the caller can resolve again; an approved record
	// with a still-rejected unit would block the farmer forever.
	if _, err := svc.ResolveAppeal(ctx, inspector, appeal.ID, true, "vet cleared the animal"); err == nil {
		t.Fatal("expected store failure to surface")
	}
	stored, err := store.GetAppeal(ctx, appeal.ID)
	if err != nil {
		t.Fatalf("GetAppeal: %v", err)
	}
	if stored.Status != models.AppealPending {
		t.Fatalf("appeal status = %q, want pending after failed resolve", stored.Status)
	}

	resolved, err := svc.ResolveAppeal(ctx, inspector, appeal.ID, true, "vet cleared the animal")
	if err != nil {
		t.Fatalf("ResolveAppeal retry: %v", err)
	}
	if resolved.Status != models.AppealApproved {
		t.Fatalf("appeal status = %q, want approved", resolved.Status)
	}
	got, err := store.GetAnimal(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAnimal: %v", err)
	}
	if got.RejectionStatus != models.RejectionOverturned || got.AppealStatus != models.AppealApproved {
		t.Fatalf("unexpected flags: rejection=%q appeal=%q", got.RejectionStatus, got.AppealStatus)
	}
}
