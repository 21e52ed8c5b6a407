package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"rcubed-backend/internal/middleware"
	"rcubed-backend/internal/models"
	"rcubed-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler handles user and friends-list HTTP requests.
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// SignupRequest is the body of POST /api/v1/users.
type SignupRequest struct {
	Username string `json:"username"`
}

// LoginResponse is the body returned by POST /api/v1/login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /api/v1/users.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !isEmailAddress(req.Username) {
		respondError(w, "Username must be an email address", http.StatusBadRequest)
		return
	}

	user, err := h.userService.Signup(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			respondError(w, "Username already taken", http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to create user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().Str("username", user.Username).Msg("User created")
	respondJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/login. There is no password: the album
// is guarded only by knowing the username, as in the original app.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !isEmailAddress(req.Username) {
		respondError(w, "Username must be an email address", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.Login(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, services.ErrUnknownUser) {
			respondError(w, "Unknown user: "+req.Username, http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to log in")
		respondError(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, middleware.GetUser(r.Context()))
}

// DeleteMe handles DELETE /api/v1/users/me. Photos are not cascaded.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	outcome, err := h.userService.Delete(r.Context(), user)
	if err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("Failed to delete user")
		respondError(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}
	log.Info().Str("username", user.Username).Str("outcome", outcome.String()).Msg("User deleted")
	w.WriteHeader(outcomeStatus(outcome))
}

// FriendRequest is the body of POST /api/v1/users/me/friends.
type FriendRequest struct {
	Username string `json:"username"`
}

// AddFriend handles POST /api/v1/users/me/friends. Adding the same
// friend twice is a success no-op.
func (h *UserHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !isEmailAddress(req.Username) {
		respondError(w, "Friend's name must be an email address", http.StatusBadRequest)
		return
	}

	updated, outcome, err := h.userService.AddFriend(r.Context(), user, req.Username)
	if err != nil {
		if errors.Is(err, services.ErrSelfFriend) {
			respondError(w, "Cannot add yourself as a friend", http.StatusUnprocessableEntity)
			return
		}
		log.Error().Err(err).Str("username", user.Username).Msg("Failed to add friend")
		respondError(w, "Failed to add friend", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		respondError(w, "Failed to add friend", outcomeStatus(outcome))
		return
	}

	respondJSON(w, outcomeStatus(outcome), updated)
}

// RemoveFriend handles DELETE /api/v1/users/me/friends/{name}.
// Removing a name that is not listed is a success no-op.
func (h *UserHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	updated, outcome, err := h.userService.RemoveFriend(r.Context(), user, name)
	if err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("Failed to remove friend")
		respondError(w, "Failed to remove friend", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		respondError(w, "Failed to remove friend", outcomeStatus(outcome))
		return
	}

	respondJSON(w, outcomeStatus(outcome), updated)
}
