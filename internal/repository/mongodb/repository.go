package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/repository"
)

const (
	collAnimals      = "animals"
	collParts        = "slaughter_parts"
	collProducts     = "products"
	collCarcasses    = "carcass_measurements"
	collRejections   = "rejections"
	collAppeals      = "appeals"
	collTimeline     = "timeline_events"
	collTraces       = "traces"
	collCapabilities = "capabilities"
	collCounters     = "timeline_counters"
)

// MongoDBRepository implements repository.Store on MongoDB. Concurrent
// transitions on the same unit are serialized by compare-and-swap updates
// filtered on (_id, version).
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
}

var _ repository.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository connects to MongoDB and verifies the connection.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{client: client, dbName: dbName}, nil
}

// EnsureIndexes creates the uniqueness and lookup indexes the store relies
// on. Safe to call on every startup.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	partIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "animal_id", Value: 1}, {Key: "part_type", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.coll(collParts).Indexes().CreateOne(ctx, partIdx); err != nil {
		return fmt.Errorf("create slaughter part index: %w", err)
	}

	timelineIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "product_id", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.coll(collTimeline).Indexes().CreateOne(ctx, timelineIdx); err != nil {
		return fmt.Errorf("create timeline index: %w", err)
	}

	capIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "scope_kind", Value: 1}, {Key: "scope_id", Value: 1}},
	}
	if _, err := r.coll(collCapabilities).Indexes().CreateOne(ctx, capIdx); err != nil {
		return fmt.Errorf("create capability index: %w", err)
	}

	return nil
}

// Close releases the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) coll(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}

// casUpdate replaces a versioned document filtered on its current version.
// The version on doc must already be incremented by the caller.
func (r *MongoDBRepository) casUpdate(ctx context.Context, coll string, id string, prevVersion int64, doc any) error {
	res, err := r.coll(coll).ReplaceOne(ctx, bson.M{"_id": id, "version": prevVersion}, doc)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", coll, id, err)
	}
	if res.MatchedCount == 0 {
		count, err := r.coll(coll).CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("check %s %s: %w", coll, id, err)
		}
		if count == 0 {
			return models.ErrNotFound
		}
		return models.ErrVersionConflict
	}
	return nil
}

// CreateAnimal inserts a new animal document.
func (r *MongoDBRepository) CreateAnimal(ctx context.Context, a *models.Animal) error {
	if _, err := r.coll(collAnimals).InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert animal: %w", err)
	}
	return nil
}

// GetAnimal fetches an animal by id.
func (r *MongoDBRepository) GetAnimal(ctx context.Context, id string) (*models.Animal, error) {
	var a models.Animal
	if err := r.coll(collAnimals).FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find animal %s: %w", id, err)
	}
	return &a, nil
}

// UpdateAnimal replaces the animal when its stored version matches.
func (r *MongoDBRepository) UpdateAnimal(ctx context.Context, a *models.Animal) error {
	prev := a.Version
	a.Version++
	if err := r.casUpdate(ctx, collAnimals, a.ID, prev, a); err != nil {
		a.Version = prev
		return err
	}
	return nil
}

// CreatePart inserts a new slaughter part; the unique (animal, part type)
// index rejects duplicates.
func (r *MongoDBRepository) CreatePart(ctx context.Context, p *models.SlaughterPart) error {
	if _, err := r.coll(collParts).InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("animal %s already has a %s part", p.AnimalID, p.PartType)
		}
		return fmt.Errorf("insert part: %w", err)
	}
	return nil
}

// GetPart fetches a slaughter part by id.
func (r *MongoDBRepository) GetPart(ctx context.Context, id string) (*models.SlaughterPart, error) {
	var p models.SlaughterPart
	if err := r.coll(collParts).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find part %s: %w", id, err)
	}
	return &p, nil
}

// UpdatePart replaces the part when its stored version matches.
func (r *MongoDBRepository) UpdatePart(ctx context.Context, p *models.SlaughterPart) error {
	prev := p.Version
	p.Version++
	if err := r.casUpdate(ctx, collParts, p.ID, prev, p); err != nil {
		p.Version = prev
		return err
	}
	return nil
}

// ListPartsByAnimal returns the animal's parts ordered by creation time.
func (r *MongoDBRepository) ListPartsByAnimal(ctx context.Context, animalID string) ([]models.SlaughterPart, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll(collParts).Find(ctx, bson.M{"animal_id": animalID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list parts of animal %s: %w", animalID, err)
	}
	var out []models.SlaughterPart
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode parts of animal %s: %w", animalID, err)
	}
	return out, nil
}

// CreateProduct inserts a new product document.
func (r *MongoDBRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	if _, err := r.coll(collProducts).InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetProduct fetches a product by id.
func (r *MongoDBRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.coll(collProducts).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return &p, nil
}

// UpdateProduct replaces the product when its stored version matches.
func (r *MongoDBRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	prev := p.Version
	p.Version++
	if err := r.casUpdate(ctx, collProducts, p.ID, prev, p); err != nil {
		p.Version = prev
		return err
	}
	return nil
}

// ListProductsPendingReceipt returns products stuck mid-receipt since
// before the cutoff.
func (r *MongoDBRepository) ListProductsPendingReceipt(ctx context.Context, cutoff time.Time) ([]models.Product, error) {
	filter := bson.M{
		"status":                 models.StatusReceiving,
		"custody.transferred_at": bson.M{"$lte": cutoff},
	}
	cur, err := r.coll(collProducts).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list pending receipts: %w", err)
	}
	var out []models.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pending receipts: %w", err)
	}
	return out, nil
}

// CreateCarcassMeasurement inserts the one measurement an animal gets.
func (r *MongoDBRepository) CreateCarcassMeasurement(ctx context.Context, m *models.CarcassMeasurement) error {
	if _, err := r.coll(collCarcasses).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("animal %s already has a carcass measurement", m.AnimalID)
		}
		return fmt.Errorf("insert carcass measurement: %w", err)
	}
	return nil
}

// GetCarcassMeasurement fetches the animal's carcass measurement.
func (r *MongoDBRepository) GetCarcassMeasurement(ctx context.Context, animalID string) (*models.CarcassMeasurement, error) {
	var m models.CarcassMeasurement
	if err := r.coll(collCarcasses).FindOne(ctx, bson.M{"_id": animalID}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find carcass measurement of %s: %w", animalID, err)
	}
	return &m, nil
}

// CreateRejection inserts an immutable rejection record.
func (r *MongoDBRepository) CreateRejection(ctx context.Context, rej *models.RejectionReason) error {
	if _, err := r.coll(collRejections).InsertOne(ctx, rej); err != nil {
		return fmt.Errorf("insert rejection: %w", err)
	}
	return nil
}

// GetRejection fetches a rejection by id.
func (r *MongoDBRepository) GetRejection(ctx context.Context, id string) (*models.RejectionReason, error) {
	var rej models.RejectionReason
	if err := r.coll(collRejections).FindOne(ctx, bson.M{"_id": id}).Decode(&rej); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find rejection %s: %w", id, err)
	}
	return &rej, nil
}

// ListRejectionsByUnit returns the unit's rejections ordered by time.
func (r *MongoDBRepository) ListRejectionsByUnit(ctx context.Context, kind models.UnitKind, unitID string) ([]models.RejectionReason, error) {
	opts := options.Find().SetSort(bson.D{{Key: "rejected_at", Value: 1}})
	cur, err := r.coll(collRejections).Find(ctx, bson.M{"unit_kind": kind, "unit_id": unitID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list rejections of %s %s: %w", kind, unitID, err)
	}
	var out []models.RejectionReason
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode rejections of %s %s: %w", kind, unitID, err)
	}
	return out, nil
}

// ListRejectionsSince returns rejections recorded at or after the cutoff.
func (r *MongoDBRepository) ListRejectionsSince(ctx context.Context, since time.Time) ([]models.RejectionReason, error) {
	opts := options.Find().SetSort(bson.D{{Key: "rejected_at", Value: 1}})
	cur, err := r.coll(collRejections).Find(ctx, bson.M{"rejected_at": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list rejections since %s: %w", since, err)
	}
	var out []models.RejectionReason
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode rejections since %s: %w", since, err)
	}
	return out, nil
}

// CreateAppeal inserts a new appeal.
func (r *MongoDBRepository) CreateAppeal(ctx context.Context, a *models.Appeal) error {
	if _, err := r.coll(collAppeals).InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

// GetAppeal fetches an appeal by id.
func (r *MongoDBRepository) GetAppeal(ctx context.Context, id string) (*models.Appeal, error) {
	var a models.Appeal
	if err := r.coll(collAppeals).FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find appeal %s: %w", id, err)
	}
	return &a, nil
}

// UpdateAppeal replaces an appeal that is still pending in the store, so
// two resolvers cannot both land.
func (r *MongoDBRepository) UpdateAppeal(ctx context.Context, a *models.Appeal) error {
	filter := bson.M{"_id": a.ID, "status": models.AppealPending}
	res, err := r.coll(collAppeals).ReplaceOne(ctx, filter, a)
	if err != nil {
		return fmt.Errorf("update appeal %s: %w", a.ID, err)
	}
	if res.MatchedCount == 0 {
		count, err := r.coll(collAppeals).CountDocuments(ctx, bson.M{"_id": a.ID})
		if err != nil {
			return fmt.Errorf("check appeal %s: %w", a.ID, err)
		}
		if count == 0 {
			return models.ErrNotFound
		}
		return models.ErrVersionConflict
	}
	return nil
}

// ListAppealsByRejection returns the rejection's appeals ordered by filing
// time.
func (r *MongoDBRepository) ListAppealsByRejection(ctx context.Context, rejectionID string) ([]models.Appeal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "filed_at", Value: 1}})
	cur, err := r.coll(collAppeals).Find(ctx, bson.M{"rejection_id": rejectionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list appeals of rejection %s: %w", rejectionID, err)
	}
	var out []models.Appeal
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode appeals of rejection %s: %w", rejectionID, err)
	}
	return out, nil
}

// ListAppealsSince returns appeals filed at or after the cutoff.
func (r *MongoDBRepository) ListAppealsSince(ctx context.Context, since time.Time) ([]models.Appeal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "filed_at", Value: 1}})
	cur, err := r.coll(collAppeals).Find(ctx, bson.M{"filed_at": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list appeals since %s: %w", since, err)
	}
	var out []models.Appeal
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode appeals since %s: %w", since, err)
	}
	return out, nil
}

// AppendTimeline assigns the next per-product sequence number through an
// atomic counter and inserts the event.
func (r *MongoDBRepository) AppendTimeline(ctx context.Context, e *models.TimelineEvent) error {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.coll(collCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": e.ProductID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("next timeline seq for %s: %w", e.ProductID, err)
	}
	e.Seq = counter.Seq

	if _, err := r.coll(collTimeline).InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

// ListTimeline returns the product's events in sequence order.
func (r *MongoDBRepository) ListTimeline(ctx context.Context, productID string) ([]models.TimelineEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := r.coll(collTimeline).Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list timeline of %s: %w", productID, err)
	}
	var out []models.TimelineEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode timeline of %s: %w", productID, err)
	}
	return out, nil
}

// SaveTrace upserts the product's trace record. The replace matches only
// when no stale mark landed after the rebuild read its inputs; otherwise
// the existing record stays stale and the sweep rebuilds it again.
func (r *MongoDBRepository) SaveTrace(ctx context.Context, rec *models.TraceRecord) error {
	filter := bson.M{"_id": rec.ProductID, "mark_seq": bson.M{"$lte": rec.MarkSeq}}
	res, err := r.coll(collTraces).ReplaceOne(ctx, filter, rec)
	if err != nil {
		return fmt.Errorf("save trace %s: %w", rec.ProductID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.coll(collTraces).InsertOne(ctx, rec); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				// A newer mark exists; leave it for the sweep.
				return nil
			}
			return fmt.Errorf("save trace %s: %w", rec.ProductID, err)
		}
	}
	return nil
}

// GetTrace fetches the product's trace record.
func (r *MongoDBRepository) GetTrace(ctx context.Context, productID string) (*models.TraceRecord, error) {
	var rec models.TraceRecord
	if err := r.coll(collTraces).FindOne(ctx, bson.M{"_id": productID}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find trace %s: %w", productID, err)
	}
	return &rec, nil
}

// MarkTraceStale flags the record for rebuild, creating a placeholder when
// none exists.
func (r *MongoDBRepository) MarkTraceStale(ctx context.Context, productID string) error {
	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": bson.M{"stale": true}, "$inc": bson.M{"mark_seq": 1}}
	_, err := r.coll(collTraces).UpdateOne(ctx, bson.M{"_id": productID}, update, opts)
	if err != nil {
		return fmt.Errorf("mark trace %s stale: %w", productID, err)
	}
	return nil
}

// ListStaleTraceIDs returns product ids whose trace records await rebuild.
func (r *MongoDBRepository) ListStaleTraceIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := r.coll(collTraces).Find(ctx, bson.M{"stale": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("list stale traces: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode stale traces: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// GrantCapability adds a row to the authorization table.
func (r *MongoDBRepository) GrantCapability(ctx context.Context, c models.Capability) error {
	if _, err := r.coll(collCapabilities).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert capability: %w", err)
	}
	return nil
}

// HasCapability reports whether the user holds a capability covering the
// required permission in the given scope.
func (r *MongoDBRepository) HasCapability(ctx context.Context, userID string, kind models.ScopeKind, scopeID string, required models.Permission) (bool, error) {
	covering := []models.Permission{models.PermissionAdmin}
	switch required {
	case models.PermissionRead:
		covering = append(covering, models.PermissionWrite, models.PermissionRead)
	case models.PermissionWrite:
		covering = append(covering, models.PermissionWrite)
	}

	filter := bson.M{
		"user_id":    userID,
		"scope_kind": kind,
		"scope_id":   scopeID,
		"permission": bson.M{"$in": covering},
	}
	count, err := r.coll(collCapabilities).CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("check capability: %w", err)
	}
	return count > 0, nil
}
