package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dawam/internal/models"
)

// memoryDB holds every collection behind a single lock so writes are visible to the next read
type memoryDB struct {
	mu            sync.RWMutex
	records       []models.AttendanceRecord
	tasks         []models.Task
	statuses      map[string]models.WorkerStatus
	site          models.WorkSite
	users         []models.User
	notifications []models.Notification
}

// NewMemoryStore creates an in-process store seeded with the given work site
func NewMemoryStore(site models.WorkSite) *Store {
	db := &memoryDB{
		statuses: make(map[string]models.WorkerStatus),
		site:     site,
	}
	return &Store{
		Records:       &memoryRecords{db},
		Tasks:         &memoryTasks{db},
		Statuses:      &memoryStatuses{db},
		Settings:      &memorySettings{db},
		Users:         &memoryUsers{db},
		Notifications: &memoryNotifications{db},
	}
}

type memoryRecords struct{ db *memoryDB }

func (r *memoryRecords) Append(ctx context.Context, record *models.AttendanceRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.records = append(r.db.records, *record)
	return nil
}

func (r *memoryRecords) ListByUser(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.AttendanceRecord
	for _, rec := range r.db.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRecords) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]models.AttendanceRecord(nil), r.db.records...), nil
}

type memoryTasks struct{ db *memoryDB }

func (r *memoryTasks) List(ctx context.Context) ([]models.Task, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]models.Task(nil), r.db.tasks...), nil
}

func (r *memoryTasks) Get(ctx context.Context, taskID string) (*models.Task, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, t := range r.db.tasks {
		if t.ID == taskID {
			task := t
			return &task, nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}

func (r *memoryTasks) Add(ctx context.Context, task *models.Task) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.tasks = append(r.db.tasks, *task)
	return nil
}

func (r *memoryTasks) SetCompletion(ctx context.Context, taskID string, completed bool, reportText string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.tasks {
		if r.db.tasks[i].ID != taskID {
			continue
		}
		r.db.tasks[i].Completed = completed
		if r.db.tasks[i].ReportText == "" {
			r.db.tasks[i].ReportText = reportText
		}
		return nil
	}
	return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}

type memoryStatuses struct{ db *memoryDB }

func (r *memoryStatuses) Get(ctx context.Context, userID string) (models.WorkerStatus, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if s, ok := r.db.statuses[userID]; ok {
		return s, nil
	}
	return models.StatusOffline, nil
}

func (r *memoryStatuses) Set(ctx context.Context, userID string, status models.WorkerStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.statuses[userID] = status
	return nil
}

func (r *memoryStatuses) All(ctx context.Context) (map[string]models.WorkerStatus, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make(map[string]models.WorkerStatus, len(r.db.statuses))
	for k, v := range r.db.statuses {
		out[k] = v
	}
	return out, nil
}

type memorySettings struct{ db *memoryDB }

func (r *memorySettings) Get(ctx context.Context) (models.WorkSite, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.site, nil
}

func (r *memorySettings) Update(ctx context.Context, site models.WorkSite) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.site = site
	return nil
}

type memoryUsers struct{ db *memoryDB }

func (r *memoryUsers) List(ctx context.Context) ([]models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]models.User(nil), r.db.users...), nil
}

func (r *memoryUsers) Get(ctx context.Context, userID string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if u.ID == userID {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

func (r *memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (r *memoryUsers) Create(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.users = append(r.db.users, *user)
	return nil
}

func (r *memoryUsers) Update(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.users {
		if r.db.users[i].ID == user.ID {
			r.db.users[i] = *user
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
}

func (r *memoryUsers) Delete(ctx context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.users {
		if r.db.users[i].ID == userID {
			r.db.users = append(r.db.users[:i], r.db.users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

type memoryNotifications struct{ db *memoryDB }

func (r *memoryNotifications) Add(ctx context.Context, n *models.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.notifications = append(r.db.notifications, *n)
	return nil
}

func (r *memoryNotifications) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []models.Notification
	for _, n := range r.db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (r *memoryNotifications) MarkAllRead(ctx context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.notifications {
		if r.db.notifications[i].UserID == userID {
			r.db.notifications[i].Read = true
		}
	}
	return nil
}
