package services

import (
	"context"
	"fmt"

	"rcubed-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory stands-ins for the Mongo-backed repositories. They keep
// the same absent-is-nil and matched/modified semantics.

type fakeUserStore struct {
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Insert(_ context.Context, user *models.User) (*models.User, error) {
	stored := user.Clone()
	stored.ID = primitive.NewObjectID()
	f.users[stored.Username] = stored
	return stored.Clone(), nil
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	return user.Clone(), nil
}

func (f *fakeUserStore) UsernameExists(_ context.Context, username string) (bool, error) {
	_, ok := f.users[username]
	return ok, nil
}

func (f *fakeUserStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	for name, user := range f.users {
		if user.ID == id {
			delete(f.users, name)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) PushFriend(_ context.Context, username, friend string) (bool, bool, error) {
	user, ok := f.users[username]
	if !ok {
		return false, false, nil
	}
	if user.HasFriend(friend) {
		return true, false, nil
	}
	user.Friends = append(user.Friends, friend)
	return true, true, nil
}

func (f *fakeUserStore) PullFriend(_ context.Context, username, friend string) (bool, bool, error) {
	user, ok := f.users[username]
	if !ok {
		return false, false, nil
	}
	if !user.HasFriend(friend) {
		return true, false, nil
	}
	friends := user.Friends[:0]
	for _, name := range user.Friends {
		if name != friend {
			friends = append(friends, name)
		}
	}
	user.Friends = friends
	return true, true, nil
}

type fakePhotoStore struct {
	photos map[primitive.ObjectID]*models.Photo
}

func newFakePhotoStore() *fakePhotoStore {
	return &fakePhotoStore{photos: make(map[primitive.ObjectID]*models.Photo)}
}

func (f *fakePhotoStore) Insert(_ context.Context, photo *models.Photo) (*models.Photo, error) {
	stored := photo.Clone()
	stored.ID = primitive.NewObjectID()
	f.photos[stored.ID] = stored
	return stored.Clone(), nil
}

func (f *fakePhotoStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Photo, error) {
	photo, ok := f.photos[id]
	if !ok {
		return nil, nil
	}
	return photo.Clone(), nil
}

func (f *fakePhotoStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := f.photos[id]; !ok {
		return false, nil
	}
	delete(f.photos, id)
	return true, nil
}

func (f *fakePhotoStore) PushTag(_ context.Context, id primitive.ObjectID, tag string) (bool, bool, error) {
	photo, ok := f.photos[id]
	if !ok {
		return false, false, nil
	}
	photo.Tags = append(photo.Tags, tag)
	return true, true, nil
}

func (f *fakePhotoStore) PullTag(_ context.Context, id primitive.ObjectID, tag string) (bool, bool, error) {
	photo, ok := f.photos[id]
	if !ok {
		return false, false, nil
	}
	if !photo.HasTag(tag) {
		return true, false, nil
	}
	tags := photo.Tags[:0]
	for _, t := range photo.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	photo.Tags = tags
	return true, true, nil
}

func (f *fakePhotoStore) PushComment(_ context.Context, id primitive.ObjectID, comment string) (bool, bool, error) {
	photo, ok := f.photos[id]
	if !ok {
		return false, false, nil
	}
	photo.Comments = append(photo.Comments, comment)
	return true, true, nil
}

func (f *fakePhotoStore) SetVisibility(_ context.Context, id primitive.ObjectID, v models.Visibility) (bool, bool, error) {
	photo, ok := f.photos[id]
	if !ok {
		return false, false, nil
	}
	if photo.Visibility == v {
		return true, false, nil
	}
	photo.Visibility = v
	return true, true, nil
}

func (f *fakePhotoStore) Query(_ context.Context, owner, tag string, floor models.Visibility) ([]*models.Photo, error) {
	var result []*models.Photo
	for _, photo := range f.photos {
		if photo.Owner != owner {
			continue
		}
		if tag != "" && !photo.HasTag(tag) {
			continue
		}
		if photo.Visibility < floor {
			continue
		}
		result = append(result, photo.Clone())
	}
	return result, nil
}

type fakeBlobStore struct {
	blobs map[string][]byte
	next  int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, _ string, data []byte) (string, error) {
	f.next++
	id := fmt.Sprintf("blob-%d", f.next)
	f.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

func (f *fakeBlobStore) Get(_ context.Context, id string) ([]byte, error) {
	data, ok := f.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", id)
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, id string) error {
	delete(f.blobs, id)
	return nil
}
