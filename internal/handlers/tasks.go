package handlers

import (
	"net/http"

	"dawam/internal/models"
	"dawam/internal/services"
)

// TaskHandler handles task listing, assignment and completion
type TaskHandler struct {
	tasks services.TaskManager
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks services.TaskManager) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// HandleTasks lists a user's ordered tasks (GET) or assigns a new task (POST)
func (h *TaskHandler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id := userID(r)
		if id == "" {
			badRequest(w, "user_id is required")
			return
		}
		tasks, err := h.tasks.ForUser(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orEmpty(tasks))
	case http.MethodPost:
		var req struct {
			Title      string          `json:"title"`
			AssignedTo string          `json:"assigned_to"`
			Priority   models.Priority `json:"priority"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		task, err := h.tasks.Assign(r.Context(), req.Title, req.AssignedTo, req.Priority)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	default:
		methodNotAllowed(w)
	}
}

// HandleToggle flips the task named in the path; report tasks need report_text to complete
func (h *TaskHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		ReportText string `json:"report_text"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
	}
	task, err := h.tasks.Toggle(r.Context(), r.PathValue("id"), req.ReportText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleDigest sends the pending-task digest to every user
func (h *TaskHandler) HandleDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	n, err := h.tasks.SendDigest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"notified": n})
}
