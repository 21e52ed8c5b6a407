package handlers

import (
	"encoding/json"
	"net/http"
	"net/mail"

	"rcubed-backend/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// outcomeStatus maps an operation outcome to an HTTP status. A no-op
// is still a success; an unauthorized attempt is not.
func outcomeStatus(o models.Outcome) int {
	switch o {
	case models.OutcomeOK, models.OutcomeNoChange:
		return http.StatusOK
	case models.OutcomeUnauthorized:
		return http.StatusForbidden
	case models.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// isEmailAddress reports whether s is a bare email address. Usernames
// and friend names must be email-shaped; like the original validator
// this is not fully RFC-strict.
func isEmailAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
