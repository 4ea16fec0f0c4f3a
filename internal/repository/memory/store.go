package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository"
)

// Store is an in-memory entity store used by tests and local development.
// Every record type lives in its own map guarded by one RWMutex, and the
// Update methods implement the same compare-and-swap contract as the
// MongoDB store.
type Store struct {
	mu            sync.RWMutex
	animals       map[string]models.Animal
	parts         map[string]models.SlaughterPart
	partsByAnimal map[string][]string
	products      map[string]models.Product
	carcasses     map[string]models.CarcassMeasurement
	rejections    map[string]models.RejectionReason
	appeals       map[string]models.Appeal
	timelines     map[string][]models.TimelineEvent
	traces        map[string]models.TraceRecord
	capabilities  []models.Capability
}

var _ repository.Store = (*Store)(nil)

// NewStore builds an empty in-memory store.
func NewStore() *Store {
	return &Store{
		animals:       make(map[string]models.Animal),
		parts:         make(map[string]models.SlaughterPart),
		partsByAnimal: make(map[string][]string),
		products:      make(map[string]models.Product),
		carcasses:     make(map[string]models.CarcassMeasurement),
		rejections:    make(map[string]models.RejectionReason),
		appeals:       make(map[string]models.Appeal),
		timelines:     make(map[string][]models.TimelineEvent),
		traces:        make(map[string]models.TraceRecord),
	}
}

// CreateAnimal stores a new animal record.
func (s *Store) CreateAnimal(ctx context.Context, a *models.Animal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.animals[a.ID]; ok {
		return fmt.Errorf("animal %s already exists", a.ID)
	}
	s.animals[a.ID] = *a
	return nil
}

// GetAnimal returns a copy of the animal or models.ErrNotFound.
func (s *Store) GetAnimal(ctx context.Context, id string) (*models.Animal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.animals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := a
	return &cp, nil
}

// UpdateAnimal replaces the stored animal when the versions match.
func (s *Store) UpdateAnimal(ctx context.Context, a *models.Animal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.animals[a.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.Version != a.Version {
		return models.ErrVersionConflict
	}
	a.Version++
	s.animals[a.ID] = *a
	return nil
}

// CreatePart stores a new slaughter part, enforcing one part type per
// animal.
func (s *Store) CreatePart(ctx context.Context, p *models.SlaughterPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parts[p.ID]; ok {
		return fmt.Errorf("part %s already exists", p.ID)
	}
	for _, existingID := range s.partsByAnimal[p.AnimalID] {
		if s.parts[existingID].PartType == p.PartType {
			return fmt.Errorf("animal %s already has a %s part", p.AnimalID, p.PartType)
		}
	}
	s.parts[p.ID] = *p
	s.partsByAnimal[p.AnimalID] = append(s.partsByAnimal[p.AnimalID], p.ID)
	return nil
}

// GetPart returns a copy of the part or models.ErrNotFound.
func (s *Store) GetPart(ctx context.Context, id string) (*models.SlaughterPart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := p
	return &cp, nil
}

// UpdatePart replaces the stored part when the versions match.
func (s *Store) UpdatePart(ctx context.Context, p *models.SlaughterPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.parts[p.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.Version != p.Version {
		return models.ErrVersionConflict
	}
	p.Version++
	s.parts[p.ID] = *p
	return nil
}

// ListPartsByAnimal returns the animal's parts in creation order.
func (s *Store) ListPartsByAnimal(ctx context.Context, animalID string) ([]models.SlaughterPart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.partsByAnimal[animalID]
	out := make([]models.SlaughterPart, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.parts[id])
	}
	return out, nil
}

// CreateProduct stores a new product record.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	s.products[p.ID] = *p
	return nil
}

// GetProduct returns a copy of the product or models.ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := p
	return &cp, nil
}

// UpdateProduct replaces the stored product when the versions match.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.products[p.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.Version != p.Version {
		return models.ErrVersionConflict
	}
	p.Version++
	s.products[p.ID] = *p
	return nil
}

// ListProductsPendingReceipt returns products stuck mid-receipt since
// before the cutoff.
func (s *Store) ListProductsPendingReceipt(ctx context.Context, cutoff time.Time) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Product
	for _, p := range s.products {
		if p.Status != models.StatusReceiving {
			continue
		}
		if p.Custody.TransferredAt != nil && p.Custody.TransferredAt.After(cutoff) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateCarcassMeasurement stores the one measurement an animal gets.
func (s *Store) CreateCarcassMeasurement(ctx context.Context, m *models.CarcassMeasurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carcasses[m.AnimalID]; ok {
		return fmt.Errorf("animal %s already has a carcass measurement", m.AnimalID)
	}
	s.carcasses[m.AnimalID] = *m
	return nil
}

// GetCarcassMeasurement returns the animal's measurement or models.ErrNotFound.
func (s *Store) GetCarcassMeasurement(ctx context.Context, animalID string) (*models.CarcassMeasurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.carcasses[animalID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := m
	return &cp, nil
}

// CreateRejection stores an immutable rejection record.
func (s *Store) CreateRejection(ctx context.Context, r *models.RejectionReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rejections[r.ID]; ok {
		return fmt.Errorf("rejection %s already exists", r.ID)
	}
	s.rejections[r.ID] = *r
	return nil
}

// GetRejection returns the rejection or models.ErrNotFound.
func (s *Store) GetRejection(ctx context.Context, id string) (*models.RejectionReason, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rejections[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := r
	return &cp, nil
}

// ListRejectionsByUnit returns the unit's rejections ordered by time.
func (s *Store) ListRejectionsByUnit(ctx context.Context, kind models.UnitKind, unitID string) ([]models.RejectionReason, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RejectionReason
	for _, r := range s.rejections {
		if r.UnitKind == kind && r.UnitID == unitID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RejectedAt.Before(out[j].RejectedAt) })
	return out, nil
}

// ListRejectionsSince returns rejections recorded at or after the cutoff.
func (s *Store) ListRejectionsSince(ctx context.Context, since time.Time) ([]models.RejectionReason, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RejectionReason
	for _, r := range s.rejections {
		if !r.RejectedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RejectedAt.Before(out[j].RejectedAt) })
	return out, nil
}

// CreateAppeal stores a new appeal.
func (s *Store) CreateAppeal(ctx context.Context, a *models.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appeals[a.ID]; ok {
		return fmt.Errorf("appeal %s already exists", a.ID)
	}
	s.appeals[a.ID] = *a
	return nil
}

// GetAppeal returns the appeal or models.ErrNotFound.
func (s *Store) GetAppeal(ctx context.Context, id string) (*models.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appeals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := a
	return &cp, nil
}

// UpdateAppeal replaces a stored appeal that is still pending.
func (s *Store) UpdateAppeal(ctx context.Context, a *models.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.appeals[a.ID]
	if !ok {
		return models.ErrNotFound
	}
	if stored.Status != models.AppealPending {
		return models.ErrVersionConflict
	}
	s.appeals[a.ID] = *a
	return nil
}

// ListAppealsByRejection returns the rejection's appeals ordered by filing
// time.
func (s *Store) ListAppealsByRejection(ctx context.Context, rejectionID string) ([]models.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appeal
	for _, a := range s.appeals {
		if a.RejectionID == rejectionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiledAt.Before(out[j].FiledAt) })
	return out, nil
}

// ListAppealsSince returns appeals filed at or after the cutoff.
func (s *Store) ListAppealsSince(ctx context.Context, since time.Time) ([]models.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appeal
	for _, a := range s.appeals {
		if !a.FiledAt.Before(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiledAt.Before(out[j].FiledAt) })
	return out, nil
}

// AppendTimeline appends the event and assigns its sequence number.
func (s *Store) AppendTimeline(ctx context.Context, e *models.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Seq = int64(len(s.timelines[e.ProductID]) + 1)
	s.timelines[e.ProductID] = append(s.timelines[e.ProductID], *e)
	return nil
}

// ListTimeline returns the product's events in sequence order.
func (s *Store) ListTimeline(ctx context.Context, productID string) ([]models.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.timelines[productID]
	out := make([]models.TimelineEvent, len(events))
	copy(out, events)
	return out, nil
}

// SaveTrace replaces the product's trace record. A record rebuilt under an
// older stale mark does not clear a newer one: the rebuild missed whatever
// change raised it, so the record stays stale for the sweep.
func (s *Store) SaveTrace(ctx context.Context, r *models.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if stored, ok := s.traces[r.ProductID]; ok && stored.MarkSeq > r.MarkSeq {
		cp.Stale = true
		cp.MarkSeq = stored.MarkSeq
	}
	s.traces[r.ProductID] = cp
	return nil
}

// GetTrace returns the trace record or models.ErrNotFound.
func (s *Store) GetTrace(ctx context.Context, productID string) (*models.TraceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.traces[productID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := r
	return &cp, nil
}

// MarkTraceStale flags the record for rebuild, creating a placeholder when
// none exists.
func (s *Store) MarkTraceStale(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.traces[productID]
	if !ok {
		r = models.TraceRecord{ProductID: productID}
	}
	r.Stale = true
	r.MarkSeq++
	s.traces[productID] = r
	return nil
}

// ListStaleTraceIDs returns the product ids whose records await a rebuild.
func (s *Store) ListStaleTraceIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, r := range s.traces {
		if r.Stale {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// GrantCapability adds a row to the authorization table.
func (s *Store) GrantCapability(ctx context.Context, c models.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities = append(s.capabilities, c)
	return nil
}

// HasCapability reports whether the user holds a capability covering the
// required permission in the given scope.
func (s *Store) HasCapability(ctx context.Context, userID string, kind models.ScopeKind, scopeID string, required models.Permission) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.capabilities {
		if c.UserID == userID && c.ScopeKind == kind && c.ScopeID == scopeID && c.Permission.Covers(required) {
			return true, nil
		}
	}
	return false, nil
}
