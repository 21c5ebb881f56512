package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dawam/internal/models"
	"dawam/internal/services"
	"dawam/internal/session"
)

type testServer struct {
	mux        *http.ServeMux
	attendance *mockAttendanceService
	tasks      *mockTaskService
	users      *mockUsers
	notes      *mockNotes
	photos     *mockPhotos
	sites      *mockSites
	sessions   *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		mux:        http.NewServeMux(),
		attendance: &mockAttendanceService{},
		tasks:      &mockTaskService{},
		users:      &mockUsers{users: testUsers()},
		notes:      &mockNotes{},
		photos:     &mockPhotos{},
		sites:      &mockSites{site: models.WorkSite{Latitude: 24.7136, Longitude: 46.6753, RadiusKm: 0.5}},
	}
	ts.sessions = session.NewManager(ts.attendance, ts.notes, session.Options{NotificationPoll: time.Hour})
	t.Cleanup(ts.sessions.CloseAll)

	api := &API{
		Sessions:   NewSessionHandler(ts.users, ts.sessions),
		Attendance: NewAttendanceHandler(ts.attendance, ts.sessions, ts.photos),
		Dashboard:  NewDashboardHandler(ts.attendance, ts.tasks, ts.notes, ts.sessions),
		Tasks:      NewTaskHandler(ts.tasks),
		Admin:      NewAdminHandler(ts.sites, mockMonitor{}, &mockRecords{}, ts.users, time.UTC),
		Users:      NewUserHandler(ts.users),
		Directory:  ts.users,
	}
	api.Register(ts.mux)
	return ts
}

func (ts *testServer) do(method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	var bodyBytes []byte
	switch b := body.(type) {
	case nil:
	case string:
		bodyBytes = []byte(b)
	default:
		bodyBytes, _ = json.Marshal(b)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(UserHeader, actor)
	}
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

func TestHandleCheckIn(t *testing.T) {
	lat, lng := 24.7136, 46.6753

	tests := []struct {
		name           string
		method         string
		body           interface{}
		serviceErr     error
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:   "Valid check-in",
			method: http.MethodPost,
			body: map[string]interface{}{
				"user_id":  "u2",
				"location": map[string]float64{"lat": lat, "lng": lng},
				"selfie":   "data:image/png;base64,AAAA",
			},
			wantStatusCode: http.StatusCreated,
			wantCalled:     true,
		},
		{
			name:           "Invalid method - GET",
			method:         http.MethodGet,
			wantStatusCode: http.StatusMethodNotAllowed,
		},
		{
			name:           "Invalid JSON body",
			method:         http.MethodPost,
			body:           "invalid json",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "Missing selfie",
			method:         http.MethodPost,
			body:           map[string]string{"user_id": "u2"},
			wantStatusCode: http.StatusBadRequest,
			wantCalled:     true,
		},
		{
			name:   "Too soon",
			method: http.MethodPost,
			body: map[string]interface{}{
				"user_id": "u2",
				"selfie":  "data:image/png;base64,AAAA",
			},
			serviceErr:     services.ErrTooSoon,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.attendance.returnError = tt.serviceErr

			rr := ts.do(tt.method, "/api/attendance/checkin", "", tt.body)

			if rr.Code != tt.wantStatusCode {
				t.Errorf("HandleCheckIn() status = %v, want %v (%s)", rr.Code, tt.wantStatusCode, rr.Body.String())
			}
			called := ts.attendance.lastCheckIn != nil
			if called != tt.wantCalled {
				t.Errorf("CheckIn called = %v, want %v", called, tt.wantCalled)
			}
			wantSaved := 0
			if tt.wantStatusCode == http.StatusCreated {
				wantSaved = 1
			}
			if ts.photos.saved != wantSaved {
				t.Errorf("photos saved = %d, want %d", ts.photos.saved, wantSaved)
			}
			if tt.wantStatusCode == http.StatusCreated {
				var record models.AttendanceRecord
				if err := json.Unmarshal(rr.Body.Bytes(), &record); err != nil {
					t.Fatalf("Failed to decode body: %v", err)
				}
				if record.PhotoRef != "abc.png" {
					t.Errorf("PhotoRef = %v, want abc.png", record.PhotoRef)
				}
				req := ts.attendance.lastCheckIn
				if req.Sample.Coordinate == nil || req.Sample.Coordinate.Latitude != lat {
					t.Errorf("Sample = %+v, want lat %v", req.Sample, lat)
				}
			}
		})
	}
}

func TestRejectionResponseBody(t *testing.T) {
	ts := newTestServer(t)
	ts.attendance.returnError = services.ErrOutsideZone

	rr := ts.do(http.MethodPost, "/api/attendance/checkout", "", map[string]string{"user_id": "u2"})

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %v, want 422", rr.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Reason != "outside_zone" || body.Error != services.ErrOutsideZone.Error() {
		t.Errorf("body = %+v", body)
	}
}

func TestCheckoutUsesSessionLocation(t *testing.T) {
	ts := newTestServer(t)

	if rr := ts.do(http.MethodPost, "/api/login", "", map[string]string{"email": "AHMED@company.com"}); rr.Code != http.StatusOK {
		t.Fatalf("login status = %v", rr.Code)
	}
	rr := ts.do(http.MethodPost, "/api/location", "u2", map[string]float64{"lat": 24.7, "lng": 46.6})
	if rr.Code != http.StatusOK {
		t.Fatalf("location status = %v", rr.Code)
	}
	var eligibility models.Eligibility
	if err := json.Unmarshal(rr.Body.Bytes(), &eligibility); err != nil {
		t.Fatalf("Failed to decode eligibility: %v", err)
	}
	if !eligibility.CanCheckIn {
		t.Errorf("eligibility = %+v, want check-in allowed for a reading", eligibility)
	}

	s, ok := ts.sessions.Get("u2")
	if !ok {
		t.Fatal("session not started")
	}
	if s.Location().Coordinate == nil {
		t.Fatal("session reading not recorded")
	}

	rr = ts.do(http.MethodPost, "/api/attendance/checkout/preview", "", map[string]string{"user_id": "u2"})
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status = %v", rr.Code)
	}
	if ts.attendance.confirmCalls != 0 {
		t.Errorf("preview must not confirm")
	}
	if c := ts.attendance.lastSample.Coordinate; c == nil || c.Latitude != 24.7 {
		t.Errorf("sample = %+v, want the session reading", ts.attendance.lastSample)
	}

	rr = ts.do(http.MethodPost, "/api/logout", "u2", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("logout status = %v", rr.Code)
	}
	if rr := ts.do(http.MethodPost, "/api/location", "u2", map[string]float64{"lat": 1, "lng": 1}); rr.Code != http.StatusUnauthorized {
		t.Errorf("location after logout status = %v, want 401", rr.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ghost@company.com"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %v, want 404", rr.Code)
	}
}

func TestHandleToggle(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		serviceErr     error
		wantStatusCode int
		wantText       string
	}{
		{"with report", map[string]string{"report_text": "done"}, nil, http.StatusOK, "done"},
		{"empty body", nil, nil, http.StatusOK, ""},
		{"empty report", map[string]string{"report_text": ""}, services.ErrEmptyReport, http.StatusUnprocessableEntity, ""},
		{"unknown task", nil, services.ErrNotFound, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.tasks.returnError = tt.serviceErr

			rr := ts.do(http.MethodPost, "/api/tasks/t1/toggle", "u2", tt.body)

			if rr.Code != tt.wantStatusCode {
				t.Errorf("status = %v, want %v", rr.Code, tt.wantStatusCode)
			}
			if ts.tasks.toggledID != "t1" {
				t.Errorf("toggled id = %q, want t1", ts.tasks.toggledID)
			}
			if ts.tasks.toggledText != tt.wantText {
				t.Errorf("report text = %q, want %q", ts.tasks.toggledText, tt.wantText)
			}
		})
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		actor          string
		body           interface{}
		wantStatusCode int
	}{
		{"monitor as admin", http.MethodGet, "/api/admin/monitor", "u1", nil, http.StatusOK},
		{"monitor as employee", http.MethodGet, "/api/admin/monitor", "u2", nil, http.StatusForbidden},
		{"monitor anonymous", http.MethodGet, "/api/admin/monitor", "", nil, http.StatusUnauthorized},
		{"monitor unknown user", http.MethodGet, "/api/admin/monitor", "ghost", nil, http.StatusUnauthorized},
		{"assign as admin", http.MethodPost, "/api/tasks", "u1", map[string]string{"title": "x", "assigned_to": "u2", "priority": "urgent"}, http.StatusCreated},
		{"assign as employee", http.MethodPost, "/api/tasks", "u2", map[string]string{"title": "x"}, http.StatusForbidden},
		{"list tasks as employee", http.MethodGet, "/api/tasks?user_id=u2", "u2", nil, http.StatusOK},
		{"digest as admin", http.MethodPost, "/api/tasks/digest", "u1", nil, http.StatusOK},
		{"read settings as employee", http.MethodGet, "/api/settings", "u2", nil, http.StatusOK},
		{"update settings as employee", http.MethodPut, "/api/settings", "u2", map[string]float64{"radius": 1}, http.StatusForbidden},
		{"users as employee", http.MethodGet, "/api/users", "u2", nil, http.StatusForbidden},
		{"users as admin", http.MethodGet, "/api/users", "u1", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(tt.method, tt.path, tt.actor, tt.body)
			if rr.Code != tt.wantStatusCode {
				t.Errorf("%s %s status = %v, want %v (%s)", tt.method, tt.path, rr.Code, tt.wantStatusCode, rr.Body.String())
			}
		})
	}
}

func TestHandleSettingsUpdate(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		wantStatusCode int
		wantLat        float64
	}{
		{"valid", map[string]float64{"location_lat": 21.5, "location_lng": 39.2, "radius": 1}, http.StatusOK, 21.5},
		{"zero radius", map[string]float64{"location_lat": 21.5, "location_lng": 39.2, "radius": 0}, http.StatusBadRequest, 24.7136},
		{"move to admin position", map[string]interface{}{"use_location": map[string]float64{"lat": 25, "lng": 47}}, http.StatusOK, 25},
		{"admin position unavailable", map[string]interface{}{"use_location": map[string]string{"error": "denied"}}, http.StatusUnprocessableEntity, 24.7136},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(http.MethodPut, "/api/settings", "u1", tt.body)
			if rr.Code != tt.wantStatusCode {
				t.Errorf("status = %v, want %v (%s)", rr.Code, tt.wantStatusCode, rr.Body.String())
			}
			if ts.sites.site.Latitude != tt.wantLat {
				t.Errorf("latitude = %v, want %v", ts.sites.site.Latitude, tt.wantLat)
			}
		})
	}
}

func TestHandleExport(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/api/admin/export?format=csv", "u1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %v", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "ID,User,Type,Time,Date,Lat,Lng") {
		t.Errorf("missing header in %q", rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/api/admin/export?format=pdf", "u1", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("pdf status = %v, want 400", rr.Code)
	}
}

func TestUserManagement(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/users", "u1", map[string]string{"full_name": "Omar", "email": "omar@company.com"})
	if rr.Code != http.StatusCreated {
		t.Errorf("create status = %v", rr.Code)
	}
	var created models.User
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	if created.Role != models.RoleUser {
		t.Errorf("role = %q, want default user", created.Role)
	}

	ts.users.returnError = services.ErrEmailTaken
	if rr := ts.do(http.MethodPost, "/api/users", "u1", map[string]string{"full_name": "A", "email": "ahmed@company.com"}); rr.Code != http.StatusConflict {
		t.Errorf("duplicate status = %v, want 409", rr.Code)
	}

	if rr := ts.do(http.MethodDelete, "/api/users/u1", "u1", nil); rr.Code != http.StatusConflict {
		t.Errorf("self delete status = %v, want 409", rr.Code)
	}
	if rr := ts.do(http.MethodDelete, "/api/users/u2", "u1", nil); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %v, want 204", rr.Code)
	}
	if ts.users.deletedBy != "u1" {
		t.Errorf("acting user = %q, want u1", ts.users.deletedBy)
	}
}

func TestHandleDashboard(t *testing.T) {
	ts := newTestServer(t)
	ts.tasks.tasks = []models.Task{
		{ID: "a", Priority: models.Routine},
		{ID: "b", Priority: models.Urgent},
		{ID: "c", Priority: models.Urgent, Completed: true},
	}
	ts.notes.notes = []models.Notification{{ID: "n1"}, {ID: "n2", Read: true}}

	rr := ts.do(http.MethodGet, "/api/dashboard?user_id=u2", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %v", rr.Code)
	}
	var got Dashboard
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if got.Tasks[0].ID != "b" || got.Completed != 1 || got.Remaining != 2 {
		t.Errorf("tasks = %+v completed=%d remaining=%d", got.Tasks, got.Completed, got.Remaining)
	}
	if got.Unread != 1 {
		t.Errorf("unread = %d, want 1", got.Unread)
	}
	if got.Eligibility == nil || got.Eligibility.CanCheckIn {
		t.Errorf("eligibility without a location reading should disable check-in: %+v", got.Eligibility)
	}

	if rr := ts.do(http.MethodPost, "/api/notifications/read", "u2", nil); rr.Code != http.StatusNoContent {
		t.Errorf("mark read status = %v", rr.Code)
	}
	if ts.notes.markedBy != "u2" {
		t.Errorf("marked by %q", ts.notes.markedBy)
	}
}

func TestDashboardUsesSessionEvaluation(t *testing.T) {
	ts := newTestServer(t)

	if rr := ts.do(http.MethodPost, "/api/login", "", map[string]string{"email": "AHMED@company.com"}); rr.Code != http.StatusOK {
		t.Fatalf("login status = %v", rr.Code)
	}
	if rr := ts.do(http.MethodPost, "/api/location", "u2", map[string]float64{"lat": 24.7, "lng": 46.6}); rr.Code != http.StatusOK {
		t.Fatalf("location status = %v", rr.Code)
	}
	evaluated := ts.attendance.evaluations.Load()

	rr := ts.do(http.MethodGet, "/api/dashboard?user_id=u2", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %v", rr.Code)
	}
	var got Dashboard
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if got.Eligibility == nil || !got.Eligibility.CanCheckIn {
		t.Errorf("eligibility = %+v, want the session evaluation", got.Eligibility)
	}
	if n := ts.attendance.evaluations.Load(); n != evaluated {
		t.Errorf("dashboard evaluated again: %d evaluations, want %d", n, evaluated)
	}

	// a check-in drops the cached evaluation and the session re-evaluates its last reading
	if rr := ts.do(http.MethodPost, "/api/attendance/checkin", "", map[string]string{
		"user_id": "u2",
		"selfie":  "data:image/png;base64,AAAA",
	}); rr.Code != http.StatusCreated {
		t.Fatalf("check-in status = %v", rr.Code)
	}
	s, _ := ts.sessions.Get("u2")
	deadline := time.Now().Add(time.Second)
	for ts.attendance.evaluations.Load() == evaluated && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := ts.attendance.evaluations.Load(); n == evaluated {
		t.Errorf("session did not re-evaluate after check-in")
	}
	if s.Location().Coordinate == nil {
		t.Errorf("session lost its reading")
	}
}
