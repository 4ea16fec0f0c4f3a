package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository/memory"
	"github.com/mamadbah2/meattrace/internal/service/authz"
	"github.com/mamadbah2/meattrace/internal/service/projection"
)

const (
	farmer     = "fatou"
	processor  = "moussa"
	shopkeeper = "awa"
	farmID     = "FARM1"
	unitID     = "PU1"
	shopID     = "SHOP1"
)

type harness struct {
	svc   *Service
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
		{UserID: shopkeeper, ScopeKind: models.ScopeShop, ScopeID: shopID, Role: models.RoleSalesperson, Permission: models.PermissionWrite},
	}
	for _, g := range grants {
		if err := auth.Grant(ctx, g); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}

	svc := NewService(store, auth, nil, projector, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &harness{svc: svc, store: store}
}

func registerCow(t *testing.T, h *harness, weight float64) *models.Animal {
	t.Helper()
	a, err := h.svc.RegisterAnimal(context.Background(), farmer, RegisterAnimalInput{
		FarmerID:   farmID,
		Name:       "Marguerite",
		Species:    models.SpeciesCow,
		LiveWeight: weight,
	})
	if err != nil {
		t.Fatalf("RegisterAnimal: %v", err)
	}
	return a
}

func receivedCow(t *testing.T, h *harness, weight float64) *models.Animal {
	t.Helper()
	ctx := context.Background()
	a := registerCow(t, h, weight)
	if _, err := h.svc.TransferAnimal(ctx, farmer, a.ID, unitID); err != nil {
		t.Fatalf("TransferAnimal: %v", err)
	}
	a, err := h.svc.ReceiveAnimal(ctx, processor, a.ID)
	if err != nil {
		t.Fatalf("ReceiveAnimal: %v", err)
	}
	return a
}

func TestRegisterAnimal(t *testing.T) {
	h := setup(t)

	a := registerCow(t, h, 500)
	if a.Status != models.StatusRegistered {
		t.Fatalf("status = %q, want registered", a.Status)
	}
	if a.RemainingWeight != 500 {
		t.Fatalf("remaining weight = %v, want 500", a.RemainingWeight)
	}
}

func TestRegisterAnimalUnauthorized(t *testing.T) {
	h := setup(t)

	_, err := h.svc.RegisterAnimal(context.Background(), "intruder", RegisterAnimalInput{
		FarmerID:   farmID,
		Species:    models.SpeciesCow,
		LiveWeight: 500,
	})
	if !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestTransferReceiveAnimal(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := registerCow(t, h, 500)
	a, err := h.svc.TransferAnimal(ctx, farmer, a.ID, unitID)
	if err != nil {
		t.Fatalf("TransferAnimal: %v", err)
	}
	if a.Status != models.StatusTransferred || a.Custody.TransferredTo != unitID {
		t.Fatalf("unexpected state after transfer: %+v", a)
	}

	// Receipt must come from the destination unit, not the farmer.
	if _, err := h.svc.ReceiveAnimal(ctx, farmer, a.ID); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	a, err = h.svc.ReceiveAnimal(ctx, processor, a.ID)
	if err != nil {
		t.Fatalf("ReceiveAnimal: %v", err)
	}
	if a.Status != models.StatusReceived || a.Custody.ReceivedBy != processor {
		t.Fatalf("unexpected state after receive: %+v", a)
	}

	// A received animal cannot be transferred again.
	if _, err := h.svc.TransferAnimal(ctx, farmer, a.ID, unitID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSlaughterSplitSides(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := receivedCow(t, h, 500)
	a, parts, err := h.svc.Slaughter(ctx, processor, a.ID, SlaughterInput{
		CarcassType: models.CarcassSplitSides,
		Weights: map[models.PartType]float64{
			models.PartLeftSide:  240,
			models.PartRightSide: 250,
		},
		AbattoirName: "Abattoir de Pikine",
	})
	if err != nil {
		t.Fatalf("Slaughter: %v", err)
	}
	if a.Status != models.StatusSlaughtered || !a.Slaughtered {
		t.Fatalf("unexpected animal state: %+v", a)
	}
	if a.RemainingWeight != 10 {
		t.Fatalf("remaining weight = %v, want 10", a.RemainingWeight)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	for _, p := range parts {
		if p.Status != models.StatusCreated || p.RemainingWeight != p.Weight {
			t.Fatalf("unexpected part state: %+v", p)
		}
	}

	m, err := h.store.GetCarcassMeasurement(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetCarcassMeasurement: %v", err)
	}
	if m.TotalWeight != 490 || m.CarcassType != models.CarcassSplitSides {
		t.Fatalf("unexpected measurement: %+v", m)
	}

	// Slaughter is once per animal.
	_, _, err = h.svc.Slaughter(ctx, processor, a.ID, SlaughterInput{
		CarcassType: models.CarcassWhole,
		Weights:     map[models.PartType]float64{models.PartWholeCarcass: 10},
	})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSlaughterWeightConservation(t *testing.T) {
	h := setup(t)

	a := receivedCow(t, h, 500)
	_, _, err := h.svc.Slaughter(context.Background(), processor, a.ID, SlaughterInput{
		CarcassType: models.CarcassSplitSides,
		Weights: map[models.PartType]float64{
			models.PartLeftSide:  260,
			models.PartRightSide: 250,
		},
	})
	if !errors.Is(err, models.ErrWeightConservation) {
		t.Fatalf("err = %v, want ErrWeightConservation", err)
	}

	var weightErr *models.WeightError
	if !errors.As(err, &weightErr) {
		t.Fatalf("err = %T, want *models.WeightError", err)
	}
	if weightErr.Available != 500 || weightErr.Requested != 510 {
		t.Fatalf("unexpected weight error: %+v", weightErr)
	}
}

func TestSlaughterOnFarm(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	// An animal never transferred off the farm may be slaughtered there.
	a := registerCow(t, h, 300)
	a, parts, err := h.svc.Slaughter(ctx, farmer, a.ID, SlaughterInput{
		CarcassType: models.CarcassWhole,
		Weights:     map[models.PartType]float64{models.PartWholeCarcass: 290},
	})
	if err != nil {
		t.Fatalf("Slaughter: %v", err)
	}
	if a.Status != models.StatusSlaughtered || len(parts) != 1 {
		t.Fatalf("unexpected result: %+v, %d parts", a, len(parts))
	}

	// Once transferred, the farm may no longer slaughter it.
	b := registerCow(t, h, 300)
	if _, err := h.svc.TransferAnimal(ctx, farmer, b.ID, unitID); err != nil {
		t.Fatalf("TransferAnimal: %v", err)
	}
	if _, _, err := h.svc.Slaughter(ctx, farmer, b.ID, SlaughterInput{
		CarcassType: models.CarcassWhole,
		Weights:     map[models.PartType]float64{models.PartWholeCarcass: 290},
	}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestMarkProcessed(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := receivedCow(t, h, 500)
	if _, err := h.svc.MarkProcessed(ctx, processor, a.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition before slaughter", err)
	}

	if _, _, err := h.svc.Slaughter(ctx, processor, a.ID, SlaughterInput{
		CarcassType: models.CarcassWhole,
		Weights:     map[models.PartType]float64{models.PartWholeCarcass: 480},
	}); err != nil {
		t.Fatalf("Slaughter: %v", err)
	}

	a, err := h.svc.MarkProcessed(ctx, processor, a.ID)
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if a.Status != models.StatusProcessed || !a.Processed {
		t.Fatalf("unexpected state: %+v", a)
	}
	if !a.Status.Terminal() {
		t.Fatal("processed should be terminal")
	}
}

func TestTransferReceivePart(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := receivedCow(t, h, 500)
	_, parts, err := h.svc.Slaughter(ctx, processor, a.ID, SlaughterInput{
		CarcassType: models.CarcassSplitSides,
		Weights: map[models.PartType]float64{
			models.PartLeftSide:  240,
			models.PartRightSide: 250,
		},
	})
	if err != nil {
		t.Fatalf("Slaughter: %v", err)
	}

	p, err := h.svc.TransferPart(ctx, processor, parts[0].ID, unitID)
	if err != nil {
		t.Fatalf("TransferPart: %v", err)
	}
	if p.Status != models.StatusTransferred {
		t.Fatalf("status = %q, want transferred", p.Status)
	}

	p, err = h.svc.ReceivePart(ctx, processor, p.ID)
	if err != nil {
		t.Fatalf("ReceivePart: %v", err)
	}
	if p.Status != models.StatusReceived {
		t.Fatalf("status = %q, want received", p.Status)
	}
}

type recordingDispatcher struct {
	events []models.TransitionEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e models.TransitionEvent) {
	d.events = append(d.events, e)
}

func TestSlaughterEventReportsPriorStatus(t *testing.T) {
	h := setup(t)
	rec := &recordingDispatcher{}
	h.svc.notifier = rec

	// An on-farm slaughter comes from registered, not received; the
	// emitted event must carry the state the animal actually left.
	a := registerCow(t, h, 300)
	if _, _, err := h.svc.Slaughter(context.Background(), farmer, a.ID, SlaughterInput{
		CarcassType: models.CarcassWhole,
		Weights:     map[models.PartType]float64{models.PartWholeCarcass: 290},
	}); err != nil {
		t.Fatalf("Slaughter: %v", err)
	}

	last := rec.events[len(rec.events)-1]
	if last.OldState != string(models.StatusRegistered) || last.NewState != string(models.StatusSlaughtered) {
		t.Fatalf("event states = %q -> %q, want registered -> slaughtered", last.OldState, last.NewState)
	}
}
