package handlers

import (
	"log"
	"net/http"

	"dawam/internal/models"
	"dawam/internal/photo"
	"dawam/internal/services"
)

// PhotoSaver prepares selfies in memory and writes them on demand
type PhotoSaver interface {
	Prepare(dataURL string) (*photo.Pending, error)
	Commit(p *photo.Pending) (bool, error)
	Remove(name string) error
}

// selfie defers the selfie work until the check-in guards have passed
type selfie struct {
	photos  PhotoSaver
	dataURL string
	name    string
	created bool
}

func (s *selfie) Attach() (string, error) {
	pending, err := s.photos.Prepare(s.dataURL)
	if err != nil {
		return "", err
	}
	created, err := s.photos.Commit(pending)
	if err != nil {
		return "", err
	}
	s.name, s.created = pending.Name, created
	return pending.Name, nil
}

func (s *selfie) Detach() {
	if !s.created {
		return
	}
	if err := s.photos.Remove(s.name); err != nil {
		log.Printf("Warning: failed to remove selfie %s: %v", s.name, err)
	}
}

// AttendanceHandler handles check-in, check-out and attendance queries
type AttendanceHandler struct {
	service  services.AttendanceProcessor
	sessions SessionRegistry
	photos   PhotoSaver
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(service services.AttendanceProcessor, sessions SessionRegistry, photos PhotoSaver) *AttendanceHandler {
	return &AttendanceHandler{service: service, sessions: sessions, photos: photos}
}

type attendanceRequest struct {
	UserID   string           `json:"user_id"`
	Location *locationPayload `json:"location"`
	Selfie   string           `json:"selfie"`
}

func (h *AttendanceHandler) read(w http.ResponseWriter, r *http.Request) (*attendanceRequest, bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return nil, false
	}
	var req attendanceRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return nil, false
	}
	if req.UserID == "" {
		req.UserID = userID(r)
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return nil, false
	}
	return &req, true
}

// sample prefers the reading in the request and falls back to the session's last reading
func (h *AttendanceHandler) sample(req *attendanceRequest) models.LocationSample {
	if req.Location != nil {
		return req.Location.sample()
	}
	if s, ok := h.sessions.Get(req.UserID); ok {
		return s.Location()
	}
	return models.LocationSample{}
}

// refresh drops the session's cached eligibility once the user's attendance state changed
func (h *AttendanceHandler) refresh(userID string) {
	if s, ok := h.sessions.Get(userID); ok {
		s.Invalidate()
	}
}

// HandleCheckIn records a check-in; the selfie is only stored when the check-in is accepted
func (h *AttendanceHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.read(w, r)
	if !ok {
		return
	}

	record, err := h.service.CheckIn(r.Context(), services.CheckInRequest{
		UserID: req.UserID,
		Sample: h.sample(req),
		Photo:  &selfie{photos: h.photos, dataURL: req.Selfie},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.refresh(req.UserID)
	writeJSON(w, http.StatusCreated, record)
}

// HandleCheckoutPreview returns the summary shown before a check-out; nothing is written
func (h *AttendanceHandler) HandleCheckoutPreview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.read(w, r)
	if !ok {
		return
	}
	summary, err := h.service.PrepareCheckout(r.Context(), req.UserID, h.sample(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleCheckout records the check-out the user confirmed
func (h *AttendanceHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.read(w, r)
	if !ok {
		return
	}
	record, err := h.service.ConfirmCheckout(r.Context(), req.UserID, h.sample(req))
	if err != nil {
		writeError(w, err)
		return
	}
	h.refresh(req.UserID)
	writeJSON(w, http.StatusCreated, record)
}

// HandleBreak toggles between active and break
func (h *AttendanceHandler) HandleBreak(w http.ResponseWriter, r *http.Request) {
	req, ok := h.read(w, r)
	if !ok {
		return
	}
	status, err := h.service.ToggleBreak(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.refresh(req.UserID)
	writeJSON(w, http.StatusOK, map[string]models.WorkerStatus{"status": status})
}

// HandleSummary returns the daily summary, today unless date is given
func (h *AttendanceHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := userID(r)
	if id == "" {
		badRequest(w, "user_id is required")
		return
	}
	summary, err := h.service.DailySummary(r.Context(), id, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleHistory returns the user's records newest first
func (h *AttendanceHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := userID(r)
	if id == "" {
		badRequest(w, "user_id is required")
		return
	}
	records, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	log.Printf("📜 History of %s: %d records", id, len(records))
	writeJSON(w, http.StatusOK, records)
}
