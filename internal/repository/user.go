package repository

import (
	"context"
	"errors"
	"fmt"

	"rcubed-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const usersCollection = "Users"

// UserRepository handles the Users collection. It performs raw
// single-document operations only; authorization and idempotence
// checks belong to the service layer.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// Insert stores a new user and returns the stored copy with the
// id assigned by the database. The argument is not mutated.
func (r *UserRepository) Insert(ctx context.Context, user *models.User) (*models.User, error) {
	stored := user.Clone()
	stored.ID = primitive.NilObjectID
	if stored.Friends == nil {
		stored.Friends = []string{}
	}

	res, err := r.coll.InsertOne(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	stored.ID = res.InsertedID.(primitive.ObjectID)
	return stored, nil
}

// GetByUsername retrieves a user by username. An absent user is not
// an error: the result is nil, nil.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"Username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UsernameExists checks whether a username is already taken.
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"Username": username})
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return count > 0, nil
}

// Delete removes a user document. Returns false when no document
// matched.
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return res.DeletedCount == 1, nil
}

// PushFriend adds a name to the user's friends list. $addToSet keeps
// the list duplicate-free even if two sessions race. The matched and
// modified counts let the caller tell not-found from no-op.
func (r *UserRepository) PushFriend(ctx context.Context, username, friend string) (matched, modified bool, err error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"Username": username},
		bson.M{"$addToSet": bson.M{"Friends": friend}},
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to add friend: %w", err)
	}
	return res.MatchedCount == 1, res.ModifiedCount == 1, nil
}

// PullFriend removes a name from the user's friends list.
func (r *UserRepository) PullFriend(ctx context.Context, username, friend string) (matched, modified bool, err error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"Username": username},
		bson.M{"$pull": bson.M{"Friends": friend}},
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to remove friend: %w", err)
	}
	return res.MatchedCount == 1, res.ModifiedCount == 1, nil
}
