package authz

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository"
)

// Authorizer answers the single question the lifecycle core asks: is this
// actor entitled to act in this scope at this permission level.
type Authorizer interface {
	Authorize(ctx context.Context, actorID string, kind models.ScopeKind, scopeID string, required models.Permission) error
}

// Service implements Authorizer against the flat capability table.
type Service struct {
	store  repository.CapabilityStore
	logger *zap.Logger
}

// NewService constructs a capability-backed authorizer.
func NewService(store repository.CapabilityStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Authorize returns models.ErrUnauthorized unless the actor holds a
// capability covering the required permission in the scope.
func (s *Service) Authorize(ctx context.Context, actorID string, kind models.ScopeKind, scopeID string, required models.Permission) error {
	if actorID == "" {
		return fmt.Errorf("actor id is required: %w", models.ErrUnauthorized)
	}

	ok, err := s.store.HasCapability(ctx, actorID, kind, scopeID, required)
	if err != nil {
		return fmt.Errorf("capability lookup: %w", err)
	}
	if !ok {
		s.logger.Debug("authorization denied",
			zap.String("actor", actorID),
			zap.String("scope_kind", string(kind)),
			zap.String("scope_id", scopeID),
			zap.String("required", string(required)))
		return fmt.Errorf("actor %s lacks %s on %s %s: %w", actorID, required, kind, scopeID, models.ErrUnauthorized)
	}
	return nil
}

// Grant inserts a capability row. Exposed for provisioning and tests.
func (s *Service) Grant(ctx context.Context, c models.Capability) error {
	return s.store.GrantCapability(ctx, c)
}
