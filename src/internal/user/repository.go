package user

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

const (
	regexKey   = "$regex"
	optionsKey = "$options"
)

type userRepository struct {
	Collection *mongo.Collection
}

func NewUserRepository(mongoClient *clients.MongoDB, collectionName string) Repository {
	return &userRepository{
		Collection: mongoClient.Database.Collection(collectionName),
	}
}

// EnsureIndexes keeps email and phone unique and makes reset lookups cheap.
func EnsureIndexes(ctx context.Context, mongoClient *clients.MongoDB, collectionName string) error {
	_, err := mongoClient.Database.Collection(collectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "reset_token_hash", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("%w: create user indexes: %v", models.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *userRepository) Insert(ctx context.Context, u *User) error {
	_, err := r.Collection.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrDuplicateUser
		}
		logrus.WithError(err).Error("Failed to insert user")
		return fmt.Errorf("%w: %v", models.ErrDatabaseInsert, err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	err := r.Collection.FindOne(ctx, filter).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		logrus.WithError(err).Error("Failed to find user")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	return &u, nil
}

func (r *userRepository) GetAllUsers(ctx context.Context, req *GetAllUsersRequest) ([]*User, int64, error) {
	filter := bson.M{}

	if req.Role != "" {
		filter["role"] = req.Role
	}

	if req.Status != "" {
		filter["status"] = req.Status
	}

	if req.Search != "" {
		filter["$or"] = []bson.M{
			{"name": bson.M{regexKey: req.Search, optionsKey: "i"}},
			{"email": bson.M{regexKey: req.Search, optionsKey: "i"}},
		}
	}

	totalCount, err := r.Collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to count users")
		return nil, 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}

	skip, err := models.PageSkip(req.Page, req.Limit)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetLimit(int64(req.Limit)).
		SetSkip(skip).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to find users")
		return nil, 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	defer cursor.Close(ctx)

	var users []*User
	for cursor.Next(ctx) {
		var user User
		if err := cursor.Decode(&user); err != nil {
			logrus.WithError(err).Error("Failed to decode user")
			continue
		}
		users = append(users, &user)
	}

	if err := cursor.Err(); err != nil {
		logrus.WithError(err).Error("Cursor error")
		return nil, 0, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}

	logrus.WithFields(logrus.Fields{
		"count": len(users),
		"total": totalCount,
		"page":  req.Page,
		"limit": req.Limit,
	}).Debug("Retrieved users successfully")

	return users, totalCount, nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, id, status string, now time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"status": status, "updated_at": now}})
}

func (r *userRepository) TouchLogin(ctx context.Context, id string, now time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"last_login_at": now}})
}

func (r *userRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt, now time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"reset_token_hash": tokenHash,
		"reset_expires_at": expiresAt,
		"updated_at":       now,
	}})
}

func (r *userRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	result, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		logrus.WithError(err).WithField("user_id", id).Error("Failed to update user")
		return fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}
	if result.MatchedCount == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error) {
	filter := bson.M{
		"reset_token_hash": tokenHash,
		"reset_expires_at": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": now},
		"$unset": bson.M{"reset_token_hash": "", "reset_expires_at": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u User
	err := r.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrZeroMatched
		}
		logrus.WithError(err).Error("Failed to consume reset token")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}
	return &u, nil
}
