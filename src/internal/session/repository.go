package session

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

type repository struct {
	collection *mongo.Collection
}

func NewSessionRepository(db *clients.MongoDB, collectionName string) Store {
	collection := db.Database.Collection(collectionName)
	return &repository{collection: collection}
}

// EnsureIndexes adds the hash lookup index and a TTL index that lets Mongo
// purge records once the refresh credential has expired.
func EnsureIndexes(ctx context.Context, db *clients.MongoDB, collectionName string) error {
	_, err := db.Database.Collection(collectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_revoked", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("%w: create session indexes: %v", models.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *repository) Insert(ctx context.Context, s *Session) error {
	if _, err := r.collection.InsertOne(ctx, s); err != nil {
		logrus.WithError(err).WithField("user_id", s.UserID).Error("Failed to insert session")
		return fmt.Errorf("%w: %v", models.ErrDatabaseInsert, err)
	}
	return nil
}

func (r *repository) RevokeActive(ctx context.Context, tokenHash, reason string, now time.Time) (*Session, error) {
	filter := bson.M{
		"token_hash": tokenHash,
		"is_revoked": false,
		"expires_at": bson.M{"$gt": now},
	}

	update := bson.M{
		"$set": bson.M{
			"is_revoked":    true,
			"revoked_at":    now,
			"revoke_reason": reason,
		},
	}

	var s Session
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrZeroMatched
		}
		logrus.WithError(err).Error("Failed to revoke session")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}

	return &s, nil
}

func (r *repository) RevokeAllForUser(ctx context.Context, userID, reason string, now time.Time) (int64, error) {
	filter := bson.M{
		"user_id":    userID,
		"is_revoked": false,
	}

	update := bson.M{
		"$set": bson.M{
			"is_revoked":    true,
			"revoked_at":    now,
			"revoke_reason": reason,
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to revoke user sessions")
		return 0, fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}

	return result.ModifiedCount, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list sessions")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	defer cursor.Close(ctx)

	sessions := []*Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	return sessions, nil
}
