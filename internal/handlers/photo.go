package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"rcubed-backend/internal/middleware"
	"rcubed-backend/internal/models"
	"rcubed-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxUploadMemory = 32 << 20

// PhotoHandler handles photo-related HTTP requests.
type PhotoHandler struct {
	photoService *services.PhotoService
}

// NewPhotoHandler creates a new photo handler.
func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// Album handles GET /api/v1/photos?owner=&tag=. The owner defaults
// to the viewer. Photos are sorted by upload time, oldest first.
func (h *PhotoHandler) Album(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := middleware.GetUser(ctx)

	owner := r.URL.Query().Get("owner")
	tag := r.URL.Query().Get("tag")

	photos, err := h.photoService.Album(ctx, viewer, owner, tag)
	if err != nil {
		if errors.Is(err, services.ErrUnknownUser) {
			respondError(w, "Unknown user: "+owner, http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("viewer", viewer.Username).Str("owner", owner).Msg("Failed to query album")
		respondError(w, "Failed to query album", http.StatusInternalServerError)
		return
	}

	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].Timestamp < photos[j].Timestamp
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"photos": photos,
		"total":  len(photos),
	})
}

// Upload handles POST /api/v1/photos as a multipart form with a
// "file" part plus "title", "tags" (comma-separated) and an optional
// "visibility" field. Omitted visibility defaults to public.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.GetUser(ctx)

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	visibility := services.DefaultVisibility
	if v := r.FormValue("visibility"); v != "" {
		visibility, err = models.ParseVisibility(v)
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	photo, err := h.photoService.Upload(ctx, owner, header.Filename,
		r.FormValue("title"), r.FormValue("tags"), visibility, file)
	if err != nil {
		if errors.Is(err, services.ErrEmptyUpload) {
			respondError(w, "Upload contains no image data", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("owner", owner.Username).Str("filename", header.Filename).Msg("Failed to upload photo")
		respondError(w, "Failed to upload photo", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("owner", owner.Username).
		Str("photo_id", photo.ID.Hex()).
		Str("visibility", photo.Visibility.String()).
		Msg("Photo uploaded")

	respondJSON(w, http.StatusCreated, photo)
}

// Image handles GET /api/v1/photos/{id}/image, serving the raw bytes
// subject to the viewer's visibility floor.
func (h *PhotoHandler) Image(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer := middleware.GetUser(ctx)

	id, ok := photoID(w, r)
	if !ok {
		return
	}

	data, outcome, err := h.photoService.Image(ctx, viewer, id)
	if err != nil {
		log.Error().Err(err).Str("photo_id", id.Hex()).Msg("Failed to load image")
		respondError(w, "Failed to load image", http.StatusInternalServerError)
		return
	}
	if outcome != models.OutcomeOK {
		respondError(w, "Photo not available", outcomeStatus(outcome))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// TagRequest is the body of POST /api/v1/photos/{id}/tags.
type TagRequest struct {
	Tag string `json:"tag"`
}

// AddTag handles POST /api/v1/photos/{id}/tags. Owner-only.
func (h *PhotoHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetUser(ctx)

	id, ok := photoID(w, r)
	if !ok {
		return
	}

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		respondError(w, "tag is required", http.StatusBadRequest)
		return
	}

	photo, outcome, err := h.photoService.AddTag(ctx, actor, id, tag)
	h.respondMutation(w, photo, outcome, err, actor.Username, "add tag")
}

// RemoveTag handles DELETE /api/v1/photos/{id}/tags/{tag}. Owner-only.
func (h *PhotoHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetUser(ctx)

	id, ok := photoID(w, r)
	if !ok {
		return
	}

	tag := chi.URLParam(r, "tag")
	if unescaped, err := url.PathUnescape(tag); err == nil {
		tag = unescaped
	}

	photo, outcome, err := h.photoService.RemoveTag(ctx, actor, id, tag)
	h.respondMutation(w, photo, outcome, err, actor.Username, "remove tag")
}

// CommentRequest is the body of POST /api/v1/photos/{id}/comments.
type CommentRequest struct {
	Text string `json:"text"`
}

// AddComment handles POST /api/v1/photos/{id}/comments. Open to any
// viewer who can see the photo.
func (h *PhotoHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetUser(ctx)

	id, ok := photoID(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		respondError(w, "text is required", http.StatusBadRequest)
		return
	}

	photo, outcome, err := h.photoService.AddComment(ctx, actor, id, req.Text)
	h.respondMutation(w, photo, outcome, err, actor.Username, "add comment")
}

// VisibilityRequest is the body of PUT /api/v1/photos/{id}/visibility.
type VisibilityRequest struct {
	Visibility models.Visibility `json:"visibility"`
}

// ChangeVisibility handles PUT /api/v1/photos/{id}/visibility.
// Owner-only.
func (h *PhotoHandler) ChangeVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetUser(ctx)

	id, ok := photoID(w, r)
	if !ok {
		return
	}

	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	photo, outcome, err := h.photoService.ChangeVisibility(ctx, actor, id, req.Visibility)
	h.respondMutation(w, photo, outcome, err, actor.Username, "change visibility")
}

// Delete handles DELETE /api/v1/photos/{id}. Owner-only.
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetUser(ctx)

	id, ok := photoID(w, r)
	if !ok {
		return
	}

	outcome, err := h.photoService.Delete(ctx, actor, id)
	if err != nil {
		log.Error().Err(err).Str("actor", actor.Username).Str("photo_id", id.Hex()).Msg("Failed to delete photo")
		respondError(w, "Failed to delete photo", http.StatusInternalServerError)
		return
	}
	if outcome == models.OutcomeUnauthorized || outcome == models.OutcomeNotFound {
		respondError(w, "Failed to delete photo", outcomeStatus(outcome))
		return
	}

	log.Info().Str("actor", actor.Username).Str("photo_id", id.Hex()).Msg("Photo deleted")
	w.WriteHeader(http.StatusOK)
}

// respondMutation maps a photo mutation result onto the wire: the
// updated (or unchanged) record on success, an error body otherwise.
func (h *PhotoHandler) respondMutation(w http.ResponseWriter, photo *models.Photo, outcome models.Outcome, err error, actor, op string) {
	if err != nil {
		log.Error().Err(err).Str("actor", actor).Msg("Failed to " + op)
		respondError(w, "Failed to "+op, http.StatusInternalServerError)
		return
	}
	if photo == nil {
		respondError(w, "Failed to "+op, outcomeStatus(outcome))
		return
	}
	respondJSON(w, outcomeStatus(outcome), photo)
}

// photoID parses the {id} route parameter. A malformed id cannot
// name any photo, so it reports not-found.
func photoID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "Unknown photo", http.StatusNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}
