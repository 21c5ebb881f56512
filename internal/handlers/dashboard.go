package handlers

import (
	"context"
	"net/http"

	"dawam/internal/models"
	"dawam/internal/services"
)

// NotificationReader lists and acknowledges notifications
type NotificationReader interface {
	List(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}

// DashboardHandler assembles the employee home screen
type DashboardHandler struct {
	attendance services.AttendanceProcessor
	tasks      services.TaskManager
	notes      NotificationReader
	sessions   SessionRegistry
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	attendance services.AttendanceProcessor,
	tasks services.TaskManager,
	notes NotificationReader,
	sessions SessionRegistry,
) *DashboardHandler {
	return &DashboardHandler{attendance: attendance, tasks: tasks, notes: notes, sessions: sessions}
}

// Dashboard is everything the employee screen renders
type Dashboard struct {
	Eligibility   *models.Eligibility       `json:"eligibility"`
	Status        models.WorkerStatus       `json:"status"`
	Today         []models.AttendanceRecord `json:"today"`
	Tasks         []models.Task             `json:"tasks"`
	Completed     int                       `json:"completed_tasks"`
	Remaining     int                       `json:"remaining_tasks"`
	Notifications []models.Notification     `json:"notifications"`
	Unread        int                       `json:"unread"`
	Toasts        []models.Notification     `json:"toasts"`
}

// HandleDashboard returns the dashboard, evaluating eligibility against the session's last reading
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := userID(r)
	if id == "" {
		badRequest(w, "user_id is required")
		return
	}
	ctx := r.Context()

	var sample models.LocationSample
	var toasts []models.Notification
	var eligibility *models.Eligibility
	if s, ok := h.sessions.Get(id); ok {
		sample = s.Location()
		toasts = s.Toasts()
		eligibility = s.Eligibility()
	}

	if eligibility == nil {
		var err error
		if eligibility, err = h.attendance.Eligibility(ctx, id, sample); err != nil {
			writeError(w, err)
			return
		}
	}
	status, err := h.attendance.Status(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	today, err := h.attendance.TodayRecords(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := h.tasks.ForUser(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	notes, err := h.notes.List(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	completed, remaining := services.Progress(tasks)
	writeJSON(w, http.StatusOK, Dashboard{
		Eligibility:   eligibility,
		Status:        status,
		Today:         orEmpty(today),
		Tasks:         orEmpty(tasks),
		Completed:     completed,
		Remaining:     remaining,
		Notifications: orEmpty(notes),
		Unread:        services.UnreadCount(notes),
		Toasts:        orEmpty(toasts),
	})
}

// HandleMarkRead marks all of the user's notifications as read
func (h *DashboardHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	id := userID(r)
	if id == "" {
		badRequest(w, "user_id is required")
		return
	}
	if err := h.notes.MarkAllRead(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
