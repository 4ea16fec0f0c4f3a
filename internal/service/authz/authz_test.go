package authz

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository/memory"
)

func TestAuthorize(t *testing.T) {
	svc := NewService(memory.NewStore(), zap.NewNop())
	ctx := context.Background()

	if err := svc.Grant(ctx, models.Capability{
		UserID:     "fatou",
		ScopeKind:  models.ScopeFarmer,
		ScopeID:    "FARM1",
		Role:       models.RoleFarmer,
		Permission: models.PermissionWrite,
	}); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	// Write covers read.
	if err := svc.Authorize(ctx, "fatou", models.ScopeFarmer, "FARM1", models.PermissionRead); err != nil {
		t.Fatalf("Authorize read: %v", err)
	}
	if err := svc.Authorize(ctx, "fatou", models.ScopeFarmer, "FARM1", models.PermissionWrite); err != nil {
		t.Fatalf("Authorize write: %v", err)
	}
	// But not admin.
	if err := svc.Authorize(ctx, "fatou", models.ScopeFarmer, "FARM1", models.PermissionAdmin); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	// Capabilities do not leak across scopes or users.
	if err := svc.Authorize(ctx, "fatou", models.ScopeFarmer, "FARM2", models.PermissionRead); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized for other scope", err)
	}
	if err := svc.Authorize(ctx, "fatou", models.ScopeShop, "FARM1", models.PermissionRead); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized for other scope kind", err)
	}
	if err := svc.Authorize(ctx, "moussa", models.ScopeFarmer, "FARM1", models.PermissionRead); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized for other user", err)
	}
	if err := svc.Authorize(ctx, "", models.ScopeFarmer, "FARM1", models.PermissionRead); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized for empty actor", err)
	}
}
