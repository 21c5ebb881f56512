package handlers

import (
	"net/http"

	"dawam/internal/models"
)

// UserHandler handles user management
type UserHandler struct {
	users UserDirectory
}

// NewUserHandler creates a new user handler
func NewUserHandler(users UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

type userRequest struct {
	FullName string      `json:"full_name"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

// HandleUsers lists (GET) or creates (POST) users
func (h *UserHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := h.users.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orEmpty(users))
	case http.MethodPost:
		var req userRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		if req.Role == "" {
			req.Role = models.RoleUser
		}
		user, err := h.users.Create(r.Context(), req.FullName, req.Email, req.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w)
	}
}

// HandleUser reads (GET), updates (PUT) or deletes (DELETE) the user named in the path
func (h *UserHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		user, err := h.users.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var req userRequest
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}
		user, err := h.users.Update(r.Context(), id, req.FullName, req.Email, req.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := h.users.Delete(r.Context(), r.Header.Get(UserHeader), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
