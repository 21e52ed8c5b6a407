package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"rcubed-backend/internal/middleware"
	"rcubed-backend/internal/models"
	"rcubed-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Minimal in-memory stores backing the services under test.

type memUserStore struct {
	users map[string]*models.User
}

func (m *memUserStore) Insert(_ context.Context, user *models.User) (*models.User, error) {
	stored := user.Clone()
	stored.ID = primitive.NewObjectID()
	m.users[stored.Username] = stored
	return stored.Clone(), nil
}

func (m *memUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return user.Clone(), nil
}

func (m *memUserStore) UsernameExists(_ context.Context, username string) (bool, error) {
	_, ok := m.users[username]
	return ok, nil
}

func (m *memUserStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	for name, user := range m.users {
		if user.ID == id {
			delete(m.users, name)
			return true, nil
		}
	}
	return false, nil
}

func (m *memUserStore) PushFriend(_ context.Context, username, friend string) (bool, bool, error) {
	user, ok := m.users[username]
	if !ok {
		return false, false, nil
	}
	if user.HasFriend(friend) {
		return true, false, nil
	}
	user.Friends = append(user.Friends, friend)
	return true, true, nil
}

func (m *memUserStore) PullFriend(_ context.Context, username, friend string) (bool, bool, error) {
	user, ok := m.users[username]
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

type memPhotoStore struct {
	photos map[primitive.ObjectID]*models.Photo
}

func (m *memPhotoStore) Insert(_ context.Context, photo *models.Photo) (*models.Photo, error) {
	stored := photo.Clone()
	stored.ID = primitive.NewObjectID()
	m.photos[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *memPhotoStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Photo, error) {
	photo, ok := m.photos[id]
	if !ok {
		return nil, nil
	}
	return photo.Clone(), nil
}

func (m *memPhotoStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := m.photos[id]; !ok {
		return false, nil
	}
	delete(m.photos, id)
	return true, nil
}

func (m *memPhotoStore) PushTag(_ context.Context, id primitive.ObjectID, tag string) (bool, bool, error) {
	photo, ok := m.photos[id]
	if !ok {
		return false, false, nil
	}
	photo.Tags = append(photo.Tags, tag)
	return true, true, nil
}

func (m *memPhotoStore) PullTag(_ context.Context, id primitive.ObjectID, tag string) (bool, bool, error) {
	photo, ok := m.photos[id]
	if !ok {
		return false, false, nil
	}
	tags := photo.Tags[:0]
	modified := false
	for _, t := range photo.Tags {
		if t == tag {
			modified = true
			continue
		}
		tags = append(tags, t)
	}
	photo.Tags = tags
	return true, modified, nil
}

func (m *memPhotoStore) PushComment(_ context.Context, id primitive.ObjectID, comment string) (bool, bool, error) {
	photo, ok := m.photos[id]
	if !ok {
		return false, false, nil
	}
	photo.Comments = append(photo.Comments, comment)
	return true, true, nil
}

func (m *memPhotoStore) SetVisibility(_ context.Context, id primitive.ObjectID, v models.Visibility) (bool, bool, error) {
	photo, ok := m.photos[id]
	if !ok {
		return false, false, nil
	}
	modified := photo.Visibility != v
	photo.Visibility = v
	return true, modified, nil
}

func (m *memPhotoStore) Query(_ context.Context, owner, tag string, floor models.Visibility) ([]*models.Photo, error) {
	var result []*models.Photo
	for _, photo := range m.photos {
		if photo.Owner != owner || photo.Visibility < floor {
			continue
		}
		if tag != "" && !photo.HasTag(tag) {
			continue
		}
		result = append(result, photo.Clone())
	}
	return result, nil
}

type memBlobStore struct {
	blobs map[string][]byte
	next  int
}

func (m *memBlobStore) Put(_ context.Context, _ string, data []byte) (string, error) {
	m.next++
	id := fmt.Sprintf("blob-%d", m.next)
	m.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

func (m *memBlobStore) Get(_ context.Context, id string) ([]byte, error) {
	data, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", id)
	}
	return data, nil
}

func (m *memBlobStore) Delete(_ context.Context, id string) error {
	delete(m.blobs, id)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	userStore := &memUserStore{users: make(map[string]*models.User)}
	photoStore := &memPhotoStore{photos: make(map[primitive.ObjectID]*models.Photo)}
	blobStore := &memBlobStore{blobs: make(map[string][]byte)}

	userService := services.NewUserService(userStore, "test-secret")
	photoService := services.NewPhotoService(photoStore, userStore, blobStore)

	userHandler := NewUserHandler(userService)
	photoHandler := NewPhotoHandler(photoService)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", userHandler.Signup)
		r.Post("/login", userHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/users/me", userHandler.Me)
			r.Delete("/users/me", userHandler.DeleteMe)
			r.Post("/users/me/friends", userHandler.AddFriend)
			r.Delete("/users/me/friends/{name}", userHandler.RemoveFriend)

			r.Get("/photos", photoHandler.Album)
			r.Post("/photos", photoHandler.Upload)
			r.Get("/photos/{id}/image", photoHandler.Image)
			r.Post("/photos/{id}/tags", photoHandler.AddTag)
			r.Delete("/photos/{id}/tags/{tag}", photoHandler.RemoveTag)
			r.Post("/photos/{id}/comments", photoHandler.AddComment)
			r.Put("/photos/{id}/visibility", photoHandler.ChangeVisibility)
			r.Delete("/photos/{id}", photoHandler.Delete)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func signup(t *testing.T, srv *httptest.Server, username string) {
	t.Helper()
	body, _ := json.Marshal(SignupRequest{Username: username})
	resp, err := http.Post(srv.URL+"/api/v1/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	body, _ := json.Marshal(SignupRequest{Username: username})
	resp, err := http.Post(srv.URL+"/api/v1/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lr LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lr))
	return lr.Token
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func uploadPhoto(t *testing.T, srv *httptest.Server, token, title, tags, visibility string) models.Photo {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", title+".jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake-image-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", title))
	require.NoError(t, mw.WriteField("tags", tags))
	if visibility != "" {
		require.NoError(t, mw.WriteField("visibility", visibility))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/photos", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var photo models.Photo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&photo))
	return photo
}

func TestSignupValidation(t *testing.T) {
	srv := newTestServer(t)

	// Username must be email-shaped.
	body, _ := json.Marshal(SignupRequest{Username: "fred"})
	resp, err := http.Post(srv.URL+"/api/v1/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	signup(t, srv, "fred@s.com")

	// Duplicate usernames are rejected.
	body, _ = json.Marshal(SignupRequest{Username: "fred@s.com"})
	resp, err = http.Post(srv.URL+"/api/v1/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginUnknownUser(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(SignupRequest{Username: "nobody@s.com"})
	resp, err := http.Post(srv.URL+"/api/v1/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/photos")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFriendManagement(t *testing.T) {
	srv := newTestServer(t)
	signup(t, srv, "fred@s.com")
	token := login(t, srv, "fred@s.com")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/me/friends", token, FriendRequest{Username: "bob@s.com"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fred models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fred))
	assert.Equal(t, []string{"bob@s.com"}, fred.Friends)

	// Befriending yourself is rejected.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/me/friends", token, FriendRequest{Username: "fred@s.com"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Removing a non-member is still a success.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/users/me/friends/carol@s.com", token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/users/me/friends/bob@s.com", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fred))
	assert.Empty(t, fred.Friends)
}

func TestUploadAlbumAndImage(t *testing.T) {
	srv := newTestServer(t)
	signup(t, srv, "fred@s.com")
	signup(t, srv, "alice@s.com")
	fredToken := login(t, srv, "fred@s.com")
	aliceToken := login(t, srv, "alice@s.com")

	photo := uploadPhoto(t, srv, fredToken, "Tree", "Christmas,", "public")
	assert.Equal(t, []string{"Christmas"}, photo.Tags)
	assert.Equal(t, models.VisibilityPublic, photo.Visibility)

	uploadPhoto(t, srv, fredToken, "Hidden", "Christmas", "private")

	// A stranger browsing fred's album sees only the public photo.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/photos?owner=fred@s.com&tag=Christmas", aliceToken, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var album struct {
		Photos []models.Photo `json:"photos"`
		Total  int            `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&album))
	assert.Equal(t, 1, album.Total)
	assert.Equal(t, "Tree", album.Photos[0].Title)

	// The public photo's bytes are served to the stranger.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/photos/"+photo.ID.Hex()+"/image", aliceToken, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPhotoMutationsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	signup(t, srv, "fred@s.com")
	signup(t, srv, "alice@s.com")
	fredToken := login(t, srv, "fred@s.com")
	aliceToken := login(t, srv, "alice@s.com")

	photo := uploadPhoto(t, srv, fredToken, "Tree", "", "public")

	// A non-owner cannot change visibility.
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/photos/"+photo.ID.Hex()+"/visibility", aliceToken,
		VisibilityRequest{Visibility: models.VisibilityPrivate})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The owner can.
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/photos/"+photo.ID.Hex()+"/visibility", fredToken,
		VisibilityRequest{Visibility: models.VisibilityPrivate})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Now the stranger cannot even fetch the image.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/photos/"+photo.ID.Hex()+"/image", aliceToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Tagging is owner-only; commenting is open to readers.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/photos/"+photo.ID.Hex()+"/tags", aliceToken, TagRequest{Tag: "x"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/photos/"+photo.ID.Hex()+"/comments", fredToken,
		CommentRequest{Text: "mine"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Photo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, []string{"fred@s.com: mine"}, updated.Comments)

	// Delete is owner-only.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/photos/"+photo.ID.Hex(), aliceToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/photos/"+photo.ID.Hex(), fredToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/photos/"+photo.ID.Hex(), fredToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
