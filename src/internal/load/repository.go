package load

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loadhub-core-svc/src/clients"
	"loadhub-core-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type loadRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewLoadRepository(mongoClient *clients.MongoDB, collectionName string) Store {
	return &loadRepository{
		collection: mongoClient.Database.Collection(collectionName),
		now:        time.Now,
	}
}

// EnsureIndexes creates the lookup indexes used by the lifecycle queries.
func EnsureIndexes(ctx context.Context, mongoClient *clients.MongoDB, collectionName string) error {
	collection := mongoClient.Database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "accepted_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("%w: create load indexes: %v", models.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *loadRepository) Insert(ctx context.Context, l *Load) (*Load, error) {
	_, err := r.collection.InsertOne(ctx, l)
	if err != nil {
		logrus.WithError(err).WithField("load_id", l.ID).Error("Failed to insert load")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseInsert, err)
	}
	return l, nil
}

func (r *loadRepository) Get(ctx context.Context, id string) (*Load, error) {
	var l Load
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrLoadNotFound
		}
		logrus.WithError(err).WithField("load_id", id).Error("Failed to get load")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	return &l, nil
}

func (r *loadRepository) ConditionalUpdate(ctx context.Context, id string, cond Condition, mut Mutation) (*Load, error) {
	cond.ID = id
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var l Load
	err := r.collection.FindOneAndUpdate(ctx, cond.filter(), mut.update(r.now()), opts).Decode(&l)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrZeroMatched
		}
		logrus.WithError(err).WithField("load_id", id).Error("Failed to conditionally update load")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}
	return &l, nil
}

func (r *loadRepository) BulkConditionalUpdate(ctx context.Context, cond Condition, mut Mutation) (int64, error) {
	result, err := r.collection.UpdateMany(ctx, cond.filter(), mut.update(r.now()))
	if err != nil {
		logrus.WithError(err).Error("Failed to bulk update loads")
		return 0, fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}
	return result.ModifiedCount, nil
}

func (r *loadRepository) Count(ctx context.Context, cond Condition) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, cond.filter())
	if err != nil {
		logrus.WithError(err).Error("Failed to count loads")
		return 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	return count, nil
}

func (r *loadRepository) Find(ctx context.Context, cond Condition, page Page) ([]*Load, int64, error) {
	filter := cond.filter()

	totalCount, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count loads")
		return nil, 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}

	opts := options.Find().
		SetSkip(page.Skip).
		SetSort(bson.M{"created_at": -1})
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find loads")
		return nil, 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	defer cursor.Close(ctx)

	var loads []*Load
	for cursor.Next(ctx) {
		var l Load
		if err := cursor.Decode(&l); err != nil {
			logrus.WithError(err).Error("Failed to decode load")
			continue
		}
		loads = append(loads, &l)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}

	logrus.WithFields(logrus.Fields{
		"count": len(loads),
		"total": totalCount,
		"skip":  page.Skip,
		"limit": page.Limit,
	}).Debug("Retrieved loads successfully")

	return loads, totalCount, nil
}
