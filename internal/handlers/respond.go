// Package handlers provides HTTP handlers for API endpoints
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"dawam/internal/models"
	"dawam/internal/photo"
	"dawam/internal/services"
)

// UserHeader carries the id of the signed-in user on every request after login
const UserHeader = "X-User-ID"

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps service errors to status codes; guard rejections are shown to the user as-is
func writeError(w http.ResponseWriter, err error) {
	switch {
	case services.IsRejection(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Reason: services.RejectionReason(err)})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrSelfDelete):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrInvalidRadius), errors.Is(err, services.ErrInvalidInput), errors.Is(err, photo.ErrInvalidPhoto):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		log.Printf("❌ Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// userID resolves the acting user from the query string, then the header
func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("user_id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// locationPayload is a position reading sent by the client; Error reports a failed reading
type locationPayload struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error,omitempty"`
}

func (p *locationPayload) sample() models.LocationSample {
	if p == nil {
		return models.LocationSample{}
	}
	if p.Error != "" {
		return models.LocationSample{Err: errors.New(p.Error)}
	}
	if p.Lat == nil || p.Lng == nil {
		return models.LocationSample{}
	}
	return models.LocationSample{Coordinate: &models.Coordinate{Latitude: *p.Lat, Longitude: *p.Lng}}
}
