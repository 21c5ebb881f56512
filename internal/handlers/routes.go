package handlers

import (
	"errors"
	"net/http"

	"dawam/internal/models"
	"dawam/internal/services"
)

// API groups every handler of the service
type API struct {
	Sessions   *SessionHandler
	Attendance *AttendanceHandler
	Dashboard  *DashboardHandler
	Tasks      *TaskHandler
	Admin      *AdminHandler
	Users      *UserHandler
	// Directory resolves the acting user for admin-only routes
	Directory UserDirectory
}

// Register adds every route to mux
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/login", a.Sessions.HandleLogin)
	mux.HandleFunc("/api/logout", a.Sessions.HandleLogout)
	mux.HandleFunc("/api/location", a.Sessions.HandleLocation)

	mux.HandleFunc("/api/dashboard", a.Dashboard.HandleDashboard)
	mux.HandleFunc("/api/notifications/read", a.Dashboard.HandleMarkRead)

	mux.HandleFunc("/api/attendance/checkin", a.Attendance.HandleCheckIn)
	mux.HandleFunc("/api/attendance/checkout/preview", a.Attendance.HandleCheckoutPreview)
	mux.HandleFunc("/api/attendance/checkout", a.Attendance.HandleCheckout)
	mux.HandleFunc("/api/attendance/summary", a.Attendance.HandleSummary)
	mux.HandleFunc("/api/attendance/history", a.Attendance.HandleHistory)
	mux.HandleFunc("/api/status/break", a.Attendance.HandleBreak)

	mux.HandleFunc("GET /api/tasks", a.Tasks.HandleTasks)
	mux.HandleFunc("POST /api/tasks", a.requireAdmin(a.Tasks.HandleTasks))
	mux.HandleFunc("/api/tasks/{id}/toggle", a.Tasks.HandleToggle)
	mux.HandleFunc("/api/tasks/digest", a.requireAdmin(a.Tasks.HandleDigest))

	mux.HandleFunc("GET /api/settings", a.Admin.HandleSettings)
	mux.HandleFunc("PUT /api/settings", a.requireAdmin(a.Admin.HandleSettings))
	mux.HandleFunc("/api/admin/monitor", a.requireAdmin(a.Admin.HandleMonitor))
	mux.HandleFunc("/api/admin/export", a.requireAdmin(a.Admin.HandleExport))

	mux.HandleFunc("/api/users", a.requireAdmin(a.Users.HandleUsers))
	mux.HandleFunc("/api/users/{id}", a.requireAdmin(a.Users.HandleUser))
}

// requireAdmin lets the request through only when the X-User-ID header names an administrator
func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not signed in"})
			return
		}
		user, err := a.Directory.Get(r.Context(), id)
		if errors.Is(err, services.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unknown user"})
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		if user.Role != models.RoleAdmin {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "administrators only"})
			return
		}
		next(w, r)
	}
}
