package fleet

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

type fleetRepository struct {
	owners   *mongo.Collection
	drivers  *mongo.Collection
	vehicles *mongo.Collection
}

func NewFleetRepository(mongoClient *clients.MongoDB, ownersCollection, driversCollection, vehiclesCollection string) Store {
	return &fleetRepository{
		owners:   mongoClient.Database.Collection(ownersCollection),
		drivers:  mongoClient.Database.Collection(driversCollection),
		vehicles: mongoClient.Database.Collection(vehiclesCollection),
	}
}

// EnsureIndexes makes profiles unique per user and indexes vehicle lookups.
func EnsureIndexes(ctx context.Context, mongoClient *clients.MongoDB, ownersCollection, driversCollection, vehiclesCollection string) error {
	unique := options.Index().SetUnique(true)
	byUser := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique}

	if _, err := mongoClient.Database.Collection(ownersCollection).Indexes().CreateOne(ctx, byUser); err != nil {
		return fmt.Errorf("%w: create owner indexes: %v", models.ErrDatabaseQuery, err)
	}
	if _, err := mongoClient.Database.Collection(driversCollection).Indexes().CreateOne(ctx, byUser); err != nil {
		return fmt.Errorf("%w: create driver indexes: %v", models.ErrDatabaseQuery, err)
	}
	_, err := mongoClient.Database.Collection(vehiclesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "driver_id", Value: 1}}},
		{Keys: bson.D{{Key: "number", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("%w: create vehicle indexes: %v", models.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *fleetRepository) InsertOwner(ctx context.Context, p *OwnerProfile) error {
	return insert(ctx, r.owners, p, "owner profile")
}

func (r *fleetRepository) InsertDriver(ctx context.Context, p *DriverProfile) error {
	return insert(ctx, r.drivers, p, "driver profile")
}

func (r *fleetRepository) InsertVehicle(ctx context.Context, v *Vehicle) error {
	return insert(ctx, r.vehicles, v, "vehicle")
}

func insert(ctx context.Context, collection *mongo.Collection, doc any, kind string) error {
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s already exists: %w", kind, models.ErrConflict)
		}
		logrus.WithError(err).WithField("kind", kind).Error("Failed to insert fleet record")
		return fmt.Errorf("%w: %v", models.ErrDatabaseInsert, err)
	}
	return nil
}

func (r *fleetRepository) GetOwnerByUser(ctx context.Context, userID string) (*OwnerProfile, error) {
	var p OwnerProfile
	if err := r.owners.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p); err != nil {
		return nil, notFoundOr(err, models.ErrProfileNotFound)
	}
	return &p, nil
}

func (r *fleetRepository) GetDriverByUser(ctx context.Context, userID string) (*DriverProfile, error) {
	var p DriverProfile
	if err := r.drivers.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p); err != nil {
		return nil, notFoundOr(err, models.ErrProfileNotFound)
	}
	return &p, nil
}

func (r *fleetRepository) GetVehicleForDriver(ctx context.Context, driverUserID string) (*Vehicle, error) {
	var v Vehicle
	if err := r.vehicles.FindOne(ctx, bson.M{"driver_id": driverUserID}).Decode(&v); err != nil {
		return nil, notFoundOr(err, models.ErrVehicleNotFound)
	}
	return &v, nil
}

func (r *fleetRepository) ListVehiclesByOwner(ctx context.Context, ownerUserID string) ([]*Vehicle, error) {
	cursor, err := r.vehicles.Find(ctx, bson.M{"owner_id": ownerUserID}, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		logrus.WithError(err).Error("Failed to find vehicles")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	defer cursor.Close(ctx)

	vehicles := []*Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		logrus.WithError(err).Error("Failed to decode vehicles")
		return nil, fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	return vehicles, nil
}

func (r *fleetRepository) SetAvailability(ctx context.Context, userID string, available bool) error {
	result, err := r.drivers.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"is_available": available, "updated_at": time.Now()}})
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to update driver availability")
		return fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}
	if result.MatchedCount == 0 {
		return models.ErrProfileNotFound
	}
	return nil
}

func (r *fleetRepository) ClaimDriver(ctx context.Context, userID, loadID string) error {
	result, err := r.drivers.UpdateOne(ctx,
		bson.M{
			"user_id":        userID,
			"is_available":   true,
			"active_load_id": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"active_load_id": loadID, "updated_at": time.Now()}})
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to claim driver")
		return fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	exists, err := r.drivers.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
	}
	if exists == 0 {
		return models.ErrProfileNotFound
	}
	return models.ErrDriverBusy
}

func (r *fleetRepository) ReleaseDriver(ctx context.Context, userID, loadID string, completed bool) error {
	update := bson.M{
		"$unset": bson.M{"active_load_id": ""},
		"$set":   bson.M{"updated_at": time.Now()},
	}
	if completed {
		update["$inc"] = bson.M{"total_trips": 1}
	}

	_, err := r.drivers.UpdateOne(ctx, bson.M{"user_id": userID, "active_load_id": loadID}, update)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"load_id": loadID,
		}).Error("Failed to release driver")
		return fmt.Errorf("%w: %v", models.ErrDatabaseUpdate, err)
	}
	return nil
}

func notFoundOr(err error, notFound error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	logrus.WithError(err).Error("Failed to query fleet collection")
	return fmt.Errorf("%w: %v", models.ErrDatabaseQuery, err)
}
