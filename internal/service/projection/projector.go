package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository"
)

// Projector maintains the denormalized trace records. A trace is never
// patched in place: any change to the underlying history marks it stale
// and the whole record is rebuilt from the entity store. Rebuilding twice
// from the same state yields the same record, so the sweep can retry a
// failed rebuild safely.
type Projector struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewProjector constructs the projector.
func NewProjector(store repository.Store, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{store: store, logger: logger, now: time.Now}
}

// MarkStale flags a product's trace as out of date. Readers get
// models.ErrProjectionPending until the next successful rebuild.
func (p *Projector) MarkStale(ctx context.Context, productID string) error {
	return p.store.MarkTraceStale(ctx, productID)
}

// Rebuild recomputes the trace record for one product from scratch. The
// stale mark sequence is read before the inputs, so a mark raised while
// the rebuild runs keeps the saved record stale and the sweep retries.
func (p *Projector) Rebuild(ctx context.Context, productID string) error {
	markSeq := int64(0)
	prior, err := p.store.GetTrace(ctx, productID)
	switch {
	case err == nil:
		markSeq = prior.MarkSeq
	case errors.Is(err, models.ErrNotFound):
	default:
		return fmt.Errorf("load trace %s: %w", productID, err)
	}

	record, err := p.build(ctx, productID)
	if err != nil {
		return err
	}
	record.MarkSeq = markSeq
	if err := p.store.SaveTrace(ctx, record); err != nil {
		return fmt.Errorf("save trace %s: %w", productID, err)
	}
	p.logger.Debug("trace rebuilt",
		zap.String("product_id", productID),
		zap.Int("timeline_events", record.Counts.TimelineEvents))
	return nil
}

// Trace returns the current trace record for a product. A stale record is
// withheld: the caller is told the projection is pending rather than
// served a view that predates a known change.
func (p *Projector) Trace(ctx context.Context, productID string) (*models.TraceRecord, error) {
	record, err := p.store.GetTrace(ctx, productID)
	if err != nil {
		return nil, err
	}
	if record.Stale {
		return nil, fmt.Errorf("%w: trace for %s", models.ErrProjectionPending, productID)
	}
	return record, nil
}

// SweepStale rebuilds every trace left stale by a failed inline rebuild.
// It returns how many traces were repaired.
func (p *Projector) SweepStale(ctx context.Context) (int, error) {
	ids, err := p.store.ListStaleTraceIDs(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, id := range ids {
		if err := p.Rebuild(ctx, id); err != nil {
			p.logger.Error("stale trace rebuild failed",
				zap.Error(err), zap.String("product_id", id))
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (p *Projector) build(ctx context.Context, productID string) (*models.TraceRecord, error) {
	product, err := p.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	record := &models.TraceRecord{
		ProductID:       product.ID,
		ProductName:     product.Name,
		BatchNumber:     product.BatchNumber,
		ProductType:     product.Type,
		Status:          product.Status,
		RejectionStatus: product.RejectionStatus,
		RebuiltAt:       p.now().UTC(),
	}

	animal, err := p.store.GetAnimal(ctx, product.AnimalID)
	if err != nil {
		return nil, fmt.Errorf("trace %s: load animal: %w", productID, err)
	}
	record.Animal = models.AnimalSummary{
		AnimalID:     animal.ID,
		FarmerID:     animal.FarmerID,
		Species:      animal.Species,
		Breed:        animal.Breed,
		HealthStatus: animal.HealthStatus,
		LiveWeight:   animal.LiveWeight,
	}

	carcass, err := p.store.GetCarcassMeasurement(ctx, animal.ID)
	switch {
	case err == nil:
		record.Carcass = carcass
	case errors.Is(err, models.ErrNotFound):
		// Product made before slaughter data existed; the trace simply
		// has no carcass section.
	default:
		return nil, fmt.Errorf("trace %s: load carcass: %w", productID, err)
	}

	for _, ing := range product.Ingredients {
		part, err := p.store.GetPart(ctx, ing.PartID)
		if err != nil {
			return nil, fmt.Errorf("trace %s: load part %s: %w", productID, ing.PartID, err)
		}
		record.Parts = append(record.Parts, models.PartSummary{
			PartID:       part.ID,
			PartType:     part.PartType,
			Weight:       part.Weight,
			QuantityUsed: ing.QuantityUsed,
		})
	}

	timeline, err := p.store.ListTimeline(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("trace %s: load timeline: %w", productID, err)
	}
	record.Timeline = timeline

	rejections, appeals, err := p.collectQualityHistory(ctx, product)
	if err != nil {
		return nil, err
	}
	record.Rejections = rejections
	record.Appeals = appeals

	receipts := 0
	for _, e := range timeline {
		if e.Stage == models.StageReceived {
			receipts++
		}
	}
	record.Counts = models.TraceCounts{
		TimelineEvents: len(timeline),
		Receipts:       receipts,
		Rejections:     len(rejections),
		Appeals:        len(appeals),
	}
	record.Stale = false
	return record, nil
}

// collectQualityHistory gathers rejections and appeals for the product
// itself plus its upstream animal and ingredient parts, so a consumer
// lookup shows quality problems anywhere in the chain.
func (p *Projector) collectQualityHistory(ctx context.Context, product *models.Product) ([]models.RejectionReason, []models.Appeal, error) {
	type unit struct {
		kind models.UnitKind
		id   string
	}
	units := []unit{
		{models.KindProduct, product.ID},
		{models.KindAnimal, product.AnimalID},
	}
	for _, ing := range product.Ingredients {
		units = append(units, unit{models.KindSlaughterPart, ing.PartID})
	}

	var rejections []models.RejectionReason
	var appeals []models.Appeal
	for _, u := range units {
		rs, err := p.store.ListRejectionsByUnit(ctx, u.kind, u.id)
		if err != nil {
			return nil, nil, fmt.Errorf("trace %s: load rejections for %s %s: %w", product.ID, u.kind, u.id, err)
		}
		for _, r := range rs {
			rejections = append(rejections, r)
			as, err := p.store.ListAppealsByRejection(ctx, r.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("trace %s: load appeals for %s: %w", product.ID, r.ID, err)
			}
			appeals = append(appeals, as...)
		}
	}
	return rejections, appeals, nil
}
