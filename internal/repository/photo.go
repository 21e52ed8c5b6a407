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

const photosCollection = "Photos"

// PhotoRepository handles the Photos collection. All updates are
// unconditional single-document writes: concurrent edits to the same
// photo resolve last-write-wins.
type PhotoRepository struct {
	coll *mongo.Collection
}

// NewPhotoRepository creates a new photo repository.
func NewPhotoRepository(db *mongo.Database) *PhotoRepository {
	return &PhotoRepository{coll: db.Collection(photosCollection)}
}

// Insert stores a new photo document and returns the stored copy with
// the id assigned by the database. The argument is not mutated.
func (r *PhotoRepository) Insert(ctx context.Context, photo *models.Photo) (*models.Photo, error) {
	stored := photo.Clone()
	stored.ID = primitive.NilObjectID
	if stored.Tags == nil {
		stored.Tags = []string{}
	}
	if stored.Comments == nil {
		stored.Comments = []string{}
	}

	res, err := r.coll.InsertOne(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to insert photo: %w", err)
	}
	stored.ID = res.InsertedID.(primitive.ObjectID)
	return stored, nil
}

// GetByID retrieves a photo by id. An absent photo is nil, nil.
func (r *PhotoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Photo, error) {
	var photo models.Photo
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &photo, nil
}

// Delete removes a photo document. Returns false when no document
// matched.
func (r *PhotoRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete photo: %w", err)
	}
	return res.DeletedCount == 1, nil
}

// PushTag appends a tag to the photo's tag list.
func (r *PhotoRepository) PushTag(ctx context.Context, id primitive.ObjectID, tag string) (matched, modified bool, err error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"Tags": tag}},
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to add tag: %w", err)
	}
	return res.MatchedCount == 1, res.ModifiedCount == 1, nil
}

// PullTag removes a tag from the photo's tag list.
func (r *PhotoRepository) PullTag(ctx context.Context, id primitive.ObjectID, tag string) (matched, modified bool, err error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{"Tags": tag}},
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to remove tag: %w", err)
	}
	return res.MatchedCount == 1, res.ModifiedCount == 1, nil
}

// PushComment appends a comment. Comments are append-only; there is
// no corresponding pull.
func (r *PhotoRepository) PushComment(ctx context.Context, id primitive.ObjectID, comment string) (matched, modified bool, err error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"Comments": comment}},
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to add comment: %w", err)
	}
	return res.MatchedCount == 1, res.ModifiedCount == 1, nil
}

// SetVisibility replaces the photo's visibility level.
func (r *PhotoRepository) SetVisibility(ctx context.Context, id primitive.ObjectID, v models.Visibility) (matched, modified bool, err error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"Visibility": int(v)}},
	)
	if err != nil {
		return false, false, fmt.Errorf("failed to change visibility: %w", err)
	}
	return res.MatchedCount == 1, res.ModifiedCount == 1, nil
}

// Query returns all photos owned by owner at or above the given
// visibility floor, optionally filtered by tag membership. Result
// order is whatever the store returns; display ordering is imposed by
// the caller.
func (r *PhotoRepository) Query(ctx context.Context, owner, tag string, floor models.Visibility) ([]*models.Photo, error) {
	filter := bson.M{
		"Owner":      owner,
		"Visibility": bson.M{"$gte": int(floor)},
	}
	if tag != "" {
		filter["Tags"] = tag
	}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer cursor.Close(ctx)

	var photos []*models.Photo
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode photos: %w", err)
	}
	return photos, nil
}
