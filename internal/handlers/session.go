package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"dawam/internal/models"
	"dawam/internal/session"
)

// SessionRegistry opens and closes per-user background sessions
type SessionRegistry interface {
	Start(userID string) *session.Session
	Get(userID string) (*session.Session, bool)
	Stop(userID string) bool
}

// UserDirectory defines the user operations the handlers need
type UserDirectory interface {
	Login(ctx context.Context, email string) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, fullName, email string, role models.Role) (*models.User, error)
	Update(ctx context.Context, userID, fullName, email string, role models.Role) (*models.User, error)
	Delete(ctx context.Context, actingUserID, userID string) error
}

// SessionHandler handles sign-in, sign-out and location updates
type SessionHandler struct {
	users    UserDirectory
	sessions SessionRegistry
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(users UserDirectory, sessions SessionRegistry) *SessionHandler {
	return &SessionHandler{users: users, sessions: sessions}
}

// HandleLogin signs a user in by email and starts their session
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		badRequest(w, "Invalid request body")
		return
	}

	user, err := h.users.Login(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	h.sessions.Start(user.ID)
	log.Printf("👤 %s signed in", user.Email)
	writeJSON(w, http.StatusOK, user)
}

// HandleLogout closes the user's session
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	id := userID(r)
	if id == "" {
		badRequest(w, "user_id is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": h.sessions.Stop(id)})
}

// locationWait bounds how long HandleLocation waits for the session to evaluate a reading
const locationWait = 2 * time.Second

// HandleLocation feeds a position reading into the user's session watch and returns its evaluation.
// It answers 202 with no body when the evaluation is not ready in time.
func (h *SessionHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req locationPayload
	if err := decode(r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	s, ok := h.sessions.Get(userID(r))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not signed in"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), locationWait)
	defer cancel()
	e, ok := s.Evaluate(ctx, req.sample())
	if !ok || e == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
