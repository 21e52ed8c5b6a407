package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rcubed-backend/internal/models"
	"rcubed-backend/internal/storage"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultVisibility is applied to uploads that do not specify one.
var DefaultVisibility = models.VisibilityPublic

// ErrEmptyUpload is returned when an upload carries no image bytes.
var ErrEmptyUpload = errors.New("upload contains no image data")

// PhotoStore is the persistence surface the photo service needs.
// Implemented by repository.PhotoRepository.
type PhotoStore interface {
	Insert(ctx context.Context, photo *models.Photo) (*models.Photo, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Photo, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	PushTag(ctx context.Context, id primitive.ObjectID, tag string) (matched, modified bool, err error)
	PullTag(ctx context.Context, id primitive.ObjectID, tag string) (matched, modified bool, err error)
	PushComment(ctx context.Context, id primitive.ObjectID, comment string) (matched, modified bool, err error)
	SetVisibility(ctx context.Context, id primitive.ObjectID, v models.Visibility) (matched, modified bool, err error)
	Query(ctx context.Context, owner, tag string, floor models.Visibility) ([]*models.Photo, error)
}

// PhotoService handles uploads, album queries and photo mutations.
// Only a photo's owner may change its tags, visibility or existence;
// anyone who can see a photo may comment on it.
type PhotoService struct {
	photos PhotoStore
	users  UserStore
	blobs  storage.BlobStore
}

// NewPhotoService creates a new photo service.
func NewPhotoService(photos PhotoStore, users UserStore, blobs storage.BlobStore) *PhotoService {
	return &PhotoService{photos: photos, users: users, blobs: blobs}
}

// SplitTags turns a comma-separated tag string into a tag list. Each
// fragment is trimmed and empty fragments are dropped, so "" yields
// zero tags and "a," yields just "a".
func SplitTags(csv string) []string {
	tags := []string{}
	for _, fragment := range strings.Split(csv, ",") {
		if tag := strings.TrimSpace(fragment); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Upload buffers the image stream, stores the bytes in the blob
// store and inserts the photo record. The upload timestamp is set
// here. If the record insert fails after the blob was written, the
// orphaned blob is deleted best-effort; the consumed stream cannot be
// rolled back.
func (s *PhotoService) Upload(ctx context.Context, owner *models.User, filename, title, tagCSV string, visibility models.Visibility, r io.Reader) (*models.Photo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	imageID, err := s.blobs.Put(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	photo := &models.Photo{
		Owner:      owner.Username,
		Title:      title,
		Tags:       SplitTags(tagCSV),
		Comments:   []string{},
		Timestamp:  time.Now().Unix(),
		Visibility: visibility,
		ImageID:    imageID,
	}

	stored, err := s.photos.Insert(ctx, photo)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, imageID); delErr != nil {
			log.Warn().Err(delErr).Str("image_id", imageID).Msg("Failed to clean up orphaned image")
		}
		return nil, fmt.Errorf("failed to insert photo: %w", err)
	}
	return stored, nil
}

// Album returns the photos of ownerName that viewer is allowed to
// see, optionally filtered by tag. An empty ownerName means the
// viewer's own album. An unknown owner returns ErrUnknownUser.
func (s *PhotoService) Album(ctx context.Context, viewer *models.User, ownerName, tag string) ([]*models.Photo, error) {
	owner := viewer
	if ownerName != "" && ownerName != viewer.Username {
		var err error
		owner, err = s.users.GetByUsername(ctx, ownerName)
		if err != nil {
			return nil, fmt.Errorf("failed to look up owner: %w", err)
		}
		if owner == nil {
			return nil, ErrUnknownUser
		}
	}

	floor := VisibilityFloor(viewer, owner)
	return s.photos.Query(ctx, owner.Username, tag, floor)
}

// Image returns the raw image bytes of a photo, subject to the same
// visibility rules as the album query.
func (s *PhotoService) Image(ctx context.Context, viewer *models.User, id primitive.ObjectID) ([]byte, models.Outcome, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if photo == nil {
		return nil, models.OutcomeNotFound, nil
	}

	outcome, err := s.readAccess(ctx, viewer, photo)
	if err != nil || outcome != models.OutcomeOK {
		return nil, outcome, err
	}

	data, err := s.blobs.Get(ctx, photo.ImageID)
	if err != nil {
		return nil, 0, err
	}
	return data, models.OutcomeOK, nil
}

// AddTag attaches a tag to a photo. Owner-only; attaching a tag that
// is already present is a no-op that never reaches the store.
func (s *PhotoService) AddTag(ctx context.Context, actor *models.User, id primitive.ObjectID, tag string) (*models.Photo, models.Outcome, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if photo == nil {
		return nil, models.OutcomeNotFound, nil
	}
	if actor.Username != photo.Owner {
		return nil, models.OutcomeUnauthorized, nil
	}
	if photo.HasTag(tag) {
		return photo, models.OutcomeNoChange, nil
	}

	matched, _, err := s.photos.PushTag(ctx, id, tag)
	if err != nil {
		return nil, 0, err
	}
	if !matched {
		return nil, models.OutcomeNotFound, nil
	}

	updated := photo.Clone()
	updated.Tags = append(updated.Tags, tag)
	return updated, models.OutcomeOK, nil
}

// RemoveTag detaches a tag from a photo. Owner-only; removing an
// absent tag is a no-op.
func (s *PhotoService) RemoveTag(ctx context.Context, actor *models.User, id primitive.ObjectID, tag string) (*models.Photo, models.Outcome, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if photo == nil {
		return nil, models.OutcomeNotFound, nil
	}
	if actor.Username != photo.Owner {
		return nil, models.OutcomeUnauthorized, nil
	}
	if !photo.HasTag(tag) {
		return photo, models.OutcomeNoChange, nil
	}

	matched, _, err := s.photos.PullTag(ctx, id, tag)
	if err != nil {
		return nil, 0, err
	}
	if !matched {
		return nil, models.OutcomeNotFound, nil
	}

	updated := photo.Clone()
	tags := updated.Tags[:0]
	for _, t := range updated.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	updated.Tags = tags
	return updated, models.OutcomeOK, nil
}

// AddComment appends a comment to a photo. Any viewer with read
// access may comment; the stored text is prefixed with the
// commenter's username. Comments are append-only.
func (s *PhotoService) AddComment(ctx context.Context, actor *models.User, id primitive.ObjectID, text string) (*models.Photo, models.Outcome, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if photo == nil {
		return nil, models.OutcomeNotFound, nil
	}

	outcome, err := s.readAccess(ctx, actor, photo)
	if err != nil || outcome != models.OutcomeOK {
		return nil, outcome, err
	}

	comment := fmt.Sprintf("%s: %s", actor.Username, text)
	matched, _, err := s.photos.PushComment(ctx, id, comment)
	if err != nil {
		return nil, 0, err
	}
	if !matched {
		return nil, models.OutcomeNotFound, nil
	}

	updated := photo.Clone()
	updated.Comments = append(updated.Comments, comment)
	return updated, models.OutcomeOK, nil
}

// ChangeVisibility replaces a photo's visibility level. Owner-only.
func (s *PhotoService) ChangeVisibility(ctx context.Context, actor *models.User, id primitive.ObjectID, v models.Visibility) (*models.Photo, models.Outcome, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if photo == nil {
		return nil, models.OutcomeNotFound, nil
	}
	if actor.Username != photo.Owner {
		return nil, models.OutcomeUnauthorized, nil
	}
	if photo.Visibility == v {
		return photo, models.OutcomeNoChange, nil
	}

	matched, _, err := s.photos.SetVisibility(ctx, id, v)
	if err != nil {
		return nil, 0, err
	}
	if !matched {
		return nil, models.OutcomeNotFound, nil
	}

	updated := photo.Clone()
	updated.Visibility = v
	return updated, models.OutcomeOK, nil
}

// Delete removes a photo and its stored image. Owner-only. Deleting
// a photo that is already gone reports not-found, not an error.
func (s *PhotoService) Delete(ctx context.Context, actor *models.User, id primitive.ObjectID) (models.Outcome, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if photo == nil {
		return models.OutcomeNotFound, nil
	}
	if actor.Username != photo.Owner {
		return models.OutcomeUnauthorized, nil
	}

	deleted, err := s.photos.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	if !deleted {
		return models.OutcomeNotFound, nil
	}

	if err := s.blobs.Delete(ctx, photo.ImageID); err != nil {
		log.Warn().Err(err).Str("image_id", photo.ImageID).Msg("Failed to delete image blob")
	}
	return models.OutcomeOK, nil
}

// readAccess checks whether viewer may see photo at all, by resolving
// the viewer's floor against the photo's owner record. An owner
// record that has vanished leaves the viewer with the stranger floor.
func (s *PhotoService) readAccess(ctx context.Context, viewer *models.User, photo *models.Photo) (models.Outcome, error) {
	if viewer.Username == photo.Owner {
		return models.OutcomeOK, nil
	}

	floor := models.VisibilityPublic
	owner, err := s.users.GetByUsername(ctx, photo.Owner)
	if err != nil {
		return 0, fmt.Errorf("failed to look up owner: %w", err)
	}
	if owner != nil {
		floor = VisibilityFloor(viewer, owner)
	}

	if photo.Visibility < floor {
		return models.OutcomeUnauthorized, nil
	}
	return models.OutcomeOK, nil
}
