package repository

import (
	"context"
	"time"

	"github.com/mamadbah2/meattrace/internal/domain/models"
)

// AnimalStore persists animals. Update methods are compare-and-swap on the
// record version: a mismatch returns models.ErrVersionConflict and leaves
// the stored record untouched. On success the version is incremented both
// in the store and on the passed struct.
type AnimalStore interface {
	CreateAnimal(ctx context.Context, a *models.Animal) error
	GetAnimal(ctx context.Context, id string) (*models.Animal, error)
	UpdateAnimal(ctx context.Context, a *models.Animal) error
}

// PartStore persists slaughter parts. CreatePart enforces the unique
// (animal, part type) constraint.
type PartStore interface {
	CreatePart(ctx context.Context, p *models.SlaughterPart) error
	GetPart(ctx context.Context, id string) (*models.SlaughterPart, error)
	UpdatePart(ctx context.Context, p *models.SlaughterPart) error
	ListPartsByAnimal(ctx context.Context, animalID string) ([]models.SlaughterPart, error)
}

// ProductStore persists products.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	// ListProductsPendingReceipt returns products stuck in a partial
	// receipt since before the cutoff, for the reminder sweep.
	ListProductsPendingReceipt(ctx context.Context, cutoff time.Time) ([]models.Product, error)
}

// CarcassStore persists carcass measurements, one per animal.
type CarcassStore interface {
	CreateCarcassMeasurement(ctx context.Context, m *models.CarcassMeasurement) error
	GetCarcassMeasurement(ctx context.Context, animalID string) (*models.CarcassMeasurement, error)
}

// RejectionStore persists rejection reasons. Records are append-only; there
// is deliberately no update or delete.
type RejectionStore interface {
	CreateRejection(ctx context.Context, r *models.RejectionReason) error
	GetRejection(ctx context.Context, id string) (*models.RejectionReason, error)
	ListRejectionsByUnit(ctx context.Context, kind models.UnitKind, unitID string) ([]models.RejectionReason, error)
	// ListRejectionsSince feeds the compliance export.
	ListRejectionsSince(ctx context.Context, since time.Time) ([]models.RejectionReason, error)
}

// AppealStore persists appeals. UpdateAppeal only succeeds while the stored
// appeal is still pending.
type AppealStore interface {
	CreateAppeal(ctx context.Context, a *models.Appeal) error
	GetAppeal(ctx context.Context, id string) (*models.Appeal, error)
	UpdateAppeal(ctx context.Context, a *models.Appeal) error
	ListAppealsByRejection(ctx context.Context, rejectionID string) ([]models.Appeal, error)
	ListAppealsSince(ctx context.Context, since time.Time) ([]models.Appeal, error)
}

// TimelineStore appends and lists product timeline events. AppendTimeline
// assigns the per-product sequence number; events are never mutated.
type TimelineStore interface {
	AppendTimeline(ctx context.Context, e *models.TimelineEvent) error
	ListTimeline(ctx context.Context, productID string) ([]models.TimelineEvent, error)
}

// TraceStore persists the denormalized trace records. MarkTraceStale
// creates a stale placeholder when no record exists yet.
type TraceStore interface {
	SaveTrace(ctx context.Context, r *models.TraceRecord) error
	GetTrace(ctx context.Context, productID string) (*models.TraceRecord, error)
	MarkTraceStale(ctx context.Context, productID string) error
	ListStaleTraceIDs(ctx context.Context) ([]string, error)
}

// CapabilityStore holds the flat authorization table.
type CapabilityStore interface {
	GrantCapability(ctx context.Context, c models.Capability) error
	HasCapability(ctx context.Context, userID string, kind models.ScopeKind, scopeID string, required models.Permission) (bool, error)
}

// Store is the full entity store consumed by the services. Both the
// MongoDB and the in-memory implementations satisfy it.
type Store interface {
	AnimalStore
	PartStore
	ProductStore
	CarcassStore
	RejectionStore
	AppealStore
	TimelineStore
	TraceStore
	CapabilityStore
}
