package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository/memory"
	"github.com/mamadbah2/meattrace/internal/server/handlers"
	"github.com/mamadbah2/meattrace/internal/server/router"
	"github.com/mamadbah2/meattrace/internal/service/authz"
	"github.com/mamadbah2/meattrace/internal/service/lifecycle"
	"github.com/mamadbah2/meattrace/internal/service/projection"
	"github.com/mamadbah2/meattrace/internal/service/rejection"
)

func setup(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	auth := authz.NewService(store, zap.NewNop())
	projector := projection.NewProjector(store, zap.NewNop())
	lifecycleSvc := lifecycle.NewService(store, auth, nil, projector, zap.NewNop())
	rejectionSvc := rejection.NewService(store, auth, nil, projector, zap.NewNop())

	ctx := context.Background()
	grants := []models.Capability{
		{UserID: "fatou", ScopeKind: models.ScopeFarmer, ScopeID: "FARM1", Role: models.RoleFarmer, Permission: models.PermissionWrite},
		{UserID: "moussa", ScopeKind: models.ScopeProcessingUnit, ScopeID: "PU1", Role: models.RoleWorker, Permission: models.PermissionWrite},
	}
	for _, g := range grants {
		if err := auth.Grant(ctx, g); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}

	engine := router.New(
		handlers.NewLifecycleHandler(lifecycleSvc, zap.NewNop()),
		handlers.NewRejectionHandler(rejectionSvc, zap.NewNop()),
		handlers.NewTraceHandler(projector, zap.NewNop()),
		handlers.NewCapabilityHandler(auth, zap.NewNop()),
		zap.NewNop(),
	)
	return engine, store
}

func do(t *testing.T, engine *gin.Engine, method, path, actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	engine, _ := setup(t)

	w := do(t, engine, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRegisterAnimalEndpoint(t *testing.T) {
	engine, _ := setup(t)

	body := `{"farmer_id":"FARM1","species":"cow","live_weight":500}`
	w := do(t, engine, http.MethodPost, "/animals", "fatou", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var animal models.Animal
	if err := json.Unmarshal(w.Body.Bytes(), &animal); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if animal.Status != models.StatusRegistered {
		t.Fatalf("status = %q, want registered", animal.Status)
	}

	// Unknown actor gets 403, not a 500.
	w = do(t, engine, http.MethodPost, "/animals", "intruder", body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	// Unknown species is a 400.
	w = do(t, engine, http.MethodPost, "/animals", "fatou", `{"farmer_id":"FARM1","species":"dragon","live_weight":500}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTransitionConflictMapsTo409(t *testing.T) {
	engine, _ := setup(t)

	w := do(t, engine, http.MethodPost, "/animals", "fatou", `{"farmer_id":"FARM1","species":"cow","live_weight":500}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}
	var animal models.Animal
	if err := json.Unmarshal(w.Body.Bytes(), &animal); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Receiving a registered animal skips the transfer step.
	w = do(t, engine, http.MethodPost, "/animals/"+animal.ID+"/receive", "moussa", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestWeightViolationMapsTo422(t *testing.T) {
	engine, _ := setup(t)

	w := do(t, engine, http.MethodPost, "/animals", "fatou", `{"farmer_id":"FARM1","species":"cow","live_weight":500}`)
	var animal models.Animal
	if err := json.Unmarshal(w.Body.Bytes(), &animal); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	do(t, engine, http.MethodPost, "/animals/"+animal.ID+"/transfer", "fatou", `{"destination":"PU1"}`)
	do(t, engine, http.MethodPost, "/animals/"+animal.ID+"/receive", "moussa", "")

	w = do(t, engine, http.MethodPost, "/animals/"+animal.ID+"/slaughter", "moussa",
		`{"carcass_type":"split","weights":{"left_side":260,"right_side":250}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
}

func TestTraceEndpoint(t *testing.T) {
	engine, store := setup(t)
	ctx := context.Background()

	w := do(t, engine, http.MethodGet, "/products/PRODUCT_MISSING/trace", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	// A stale trace answers 202 so callers know to retry.
	if err := store.MarkTraceStale(ctx, "PRODUCT_X"); err != nil {
		t.Fatalf("MarkTraceStale: %v", err)
	}
	w = do(t, engine, http.MethodGet, "/products/PRODUCT_X/trace", "", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
}
