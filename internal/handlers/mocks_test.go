package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"dawam/internal/models"
	"dawam/internal/photo"
	"dawam/internal/services"
)

var errInvalidPhotoForTest = fmt.Errorf("%w: selfie is required", photo.ErrInvalidPhoto)

// mockAttendanceService is a mock implementation for testing
type mockAttendanceService struct {
	lastCheckIn  *services.CheckInRequest
	lastSample   *models.LocationSample
	confirmCalls int
	returnError  error
	evaluations  atomic.Int32
}

func (m *mockAttendanceService) CheckIn(ctx context.Context, req services.CheckInRequest) (*models.AttendanceRecord, error) {
	m.lastCheckIn = &req
	if m.returnError != nil {
		return nil, m.returnError
	}
	ref := req.PhotoRef
	if req.Photo != nil {
		var err error
		if ref, err = req.Photo.Attach(); err != nil {
			return nil, err
		}
	}
	return &models.AttendanceRecord{ID: "r1", UserID: req.UserID, Kind: models.CheckIn, PhotoRef: ref}, nil
}

func (m *mockAttendanceService) PrepareCheckout(ctx context.Context, userID string, sample models.LocationSample) (*models.CheckoutSummary, error) {
	m.lastSample = &sample
	if m.returnError != nil {
		return nil, m.returnError
	}
	return &models.CheckoutSummary{Elapsed: "8.00", ElapsedHours: 8}, nil
}

func (m *mockAttendanceService) ConfirmCheckout(ctx context.Context, userID string, sample models.LocationSample) (*models.AttendanceRecord, error) {
	m.confirmCalls++
	m.lastSample = &sample
	if m.returnError != nil {
		return nil, m.returnError
	}
	return &models.AttendanceRecord{ID: "r2", UserID: userID, Kind: models.CheckOut}, nil
}

func (m *mockAttendanceService) Eligibility(ctx context.Context, userID string, sample models.LocationSample) (*models.Eligibility, error) {
	m.evaluations.Add(1)
	return &models.Eligibility{State: models.StateNoCheckIn, CanCheckIn: sample.Coordinate != nil}, nil
}

func (m *mockAttendanceService) DailySummary(ctx context.Context, userID, day string) (*models.DailySummary, error) {
	return &models.DailySummary{UserID: userID, Date: day, Elapsed: "0.00"}, nil
}

func (m *mockAttendanceService) History(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (m *mockAttendanceService) TodayRecords(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (m *mockAttendanceService) Status(ctx context.Context, userID string) (models.WorkerStatus, error) {
	return models.StatusOffline, nil
}

func (m *mockAttendanceService) ToggleBreak(ctx context.Context, userID string) (models.WorkerStatus, error) {
	if m.returnError != nil {
		return "", m.returnError
	}
	return models.StatusBreak, nil
}

// Ensure mock implements the interface
var _ services.AttendanceProcessor = (*mockAttendanceService)(nil)

type mockTaskService struct {
	tasks       []models.Task
	toggledID   string
	toggledText string
	returnError error
}

func (m *mockTaskService) ForUser(ctx context.Context, userID string) ([]models.Task, error) {
	return services.OrderTasks(m.tasks), nil
}

func (m *mockTaskService) Assign(ctx context.Context, title, userID string, priority models.Priority) (*models.Task, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return &models.Task{ID: "t9", Title: title, AssignedUserID: userID, Priority: priority}, nil
}

func (m *mockTaskService) Toggle(ctx context.Context, taskID, reportText string) (*models.Task, error) {
	m.toggledID, m.toggledText = taskID, reportText
	if m.returnError != nil {
		return nil, m.returnError
	}
	return &models.Task{ID: taskID, Completed: true, ReportText: reportText}, nil
}

func (m *mockTaskService) SendDigest(ctx context.Context) (int, error) {
	return 2, nil
}

var _ services.TaskManager = (*mockTaskService)(nil)

type mockUsers struct {
	users       []models.User
	deletedBy   string
	returnError error
}

func (m *mockUsers) Login(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, services.ErrNotFound
}

func (m *mockUsers) Get(ctx context.Context, userID string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == userID {
			user := u
			return &user, nil
		}
	}
	return nil, services.ErrNotFound
}

func (m *mockUsers) List(ctx context.Context) ([]models.User, error) {
	return m.users, nil
}

func (m *mockUsers) Create(ctx context.Context, fullName, email string, role models.Role) (*models.User, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return &models.User{ID: "u9", FullName: fullName, Email: email, Role: role}, nil
}

func (m *mockUsers) Update(ctx context.Context, userID, fullName, email string, role models.Role) (*models.User, error) {
	return &models.User{ID: userID, FullName: fullName, Email: email, Role: role}, nil
}

func (m *mockUsers) Delete(ctx context.Context, actingUserID, userID string) error {
	m.deletedBy = actingUserID
	if actingUserID == userID {
		return services.ErrSelfDelete
	}
	return nil
}

var _ UserDirectory = (*mockUsers)(nil)

type mockNotes struct {
	notes    []models.Notification
	markedBy string
}

func (m *mockNotes) List(ctx context.Context, userID string) ([]models.Notification, error) {
	return m.notes, nil
}

func (m *mockNotes) MarkAllRead(ctx context.Context, userID string) error {
	m.markedBy = userID
	return nil
}

func (m *mockNotes) Fresh(ctx context.Context, userID string, window time.Duration) ([]models.Notification, error) {
	return nil, nil
}

type mockPhotos struct {
	saved   int
	removed []string
}

func (m *mockPhotos) Prepare(dataURL string) (*photo.Pending, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return nil, errInvalidPhotoForTest
	}
	return &photo.Pending{Name: "abc.png", Data: []byte(dataURL)}, nil
}

func (m *mockPhotos) Commit(p *photo.Pending) (bool, error) {
	m.saved++
	return true, nil
}

func (m *mockPhotos) Remove(name string) error {
	m.removed = append(m.removed, name)
	return nil
}

var _ PhotoSaver = (*mockPhotos)(nil)

func testUsers() []models.User {
	return []models.User{
		{ID: "u1", FullName: "System Admin", Email: "admin@company.com", Role: models.RoleAdmin},
		{ID: "u2", FullName: "Ahmed Mohammed", Email: "ahmed@company.com", Role: models.RoleUser},
	}
}

type mockSites struct {
	site models.WorkSite
}

func (m *mockSites) Current(ctx context.Context) (models.WorkSite, error) {
	return m.site, nil
}

func (m *mockSites) Update(ctx context.Context, site models.WorkSite) (models.WorkSite, error) {
	if err := services.ValidateSite(site); err != nil {
		return models.WorkSite{}, err
	}
	m.site = site
	return site, nil
}

func (m *mockSites) MoveTo(ctx context.Context, at models.Coordinate) (models.WorkSite, error) {
	m.site.Latitude, m.site.Longitude = at.Latitude, at.Longitude
	return m.site, nil
}

type mockMonitor struct{}

func (mockMonitor) Latest(ctx context.Context) (*services.MonitorSnapshot, error) {
	return &services.MonitorSnapshot{Date: "2026-02-01", CheckIns: 3}, nil
}

type mockRecords struct {
	records []models.AttendanceRecord
}

func (m *mockRecords) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	return m.records, nil
}
