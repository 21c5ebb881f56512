package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"dawam/internal/models"
	"dawam/internal/repository"
)

// fakeClock is a settable clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type sentNote struct {
	UserID  string
	Title   string
	Message string
	Urgency models.Urgency
}

// recordingNotifier captures notifications instead of delivering them
type recordingNotifier struct {
	mu     sync.Mutex
	sent   []sentNote
	admins []string
}

func (n *recordingNotifier) Notify(ctx context.Context, userID, title, message string, urgency models.Urgency) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNote{UserID: userID, Title: title, Message: message, Urgency: urgency})
}

func (n *recordingNotifier) NotifyAdmins(ctx context.Context, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admins = append(n.admins, title+": "+message)
}

func (n *recordingNotifier) Sent() []sentNote {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNote(nil), n.sent...)
}

// failingRecords rejects every append
type failingRecords struct {
	repository.RecordRepository
}

func (failingRecords) Append(ctx context.Context, record *models.AttendanceRecord) error {
	return errors.New("disk full")
}

// recordingBot captures Telegram pushes
type recordingBot struct {
	mu       sync.Mutex
	group    []string
	personal map[int64][]string
}

func (b *recordingBot) SendNotification(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.group = append(b.group, message)
}

func (b *recordingBot) SendPersonalNotification(chatID int64, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.personal == nil {
		b.personal = make(map[int64][]string)
	}
	b.personal[chatID] = append(b.personal[chatID], message)
}

// at returns a sample at the given coordinate
func at(lat, lng float64) models.LocationSample {
	return models.LocationSample{Coordinate: &models.Coordinate{Latitude: lat, Longitude: lng}}
}

var onSite = at(repository.DefaultSite.Latitude, repository.DefaultSite.Longitude)

// day returns 2026-02-01 at the given local time in UTC
func day(hour, minute int) time.Time {
	return time.Date(2026, 2, 1, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	store      *repository.Store
	clock      *fakeClock
	notifier   *recordingNotifier
	settings   *SettingsService
	attendance *AttendanceService
	tasks      *TaskService
	users      *UserService
}

func newFixture(now time.Time) *fixture {
	store := repository.NewMemoryStore(repository.DefaultSite)
	for _, u := range repository.DefaultUsers() {
		user := u
		_ = store.Users.Create(context.Background(), &user)
	}
	clock := newFakeClock(now)
	notifier := &recordingNotifier{}
	settings := NewSettingsService(store.Settings)
	return &fixture{
		store:      store,
		clock:      clock,
		notifier:   notifier,
		settings:   settings,
		attendance: NewAttendanceService(store.Records, store.Tasks, store.Statuses, settings, notifier, clock, AttendanceOptions{}),
		tasks:      NewTaskService(store.Tasks, store.Users, notifier, clock),
		users:      NewUserService(store.Users),
	}
}
