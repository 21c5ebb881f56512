// Package repository defines repository interfaces for data access
package repository

import (
	"context"
	"errors"

	"dawam/internal/models"
)

// ErrNotFound is returned when a looked-up entity does not exist
var ErrNotFound = errors.New("not found")

// RecordRepository is the append-only attendance log
type RecordRepository interface {
	// Append stores a new record; records are never updated or deleted
	Append(ctx context.Context, record *models.AttendanceRecord) error
	// ListByUser returns one user's records in insertion order
	ListByUser(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
	// ListAll returns every record in insertion order
	ListAll(ctx context.Context) ([]models.AttendanceRecord, error)
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// List returns all tasks in insertion order
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, taskID string) (*models.Task, error)
	Add(ctx context.Context, task *models.Task) error
	// SetCompletion updates the completion flag; reportText is stored only while the task has no report yet
	SetCompletion(ctx context.Context, taskID string, completed bool, reportText string) error
}

// StatusRepository stores the live worker status per user
type StatusRepository interface {
	// Get returns StatusOffline for users without a stored status
	Get(ctx context.Context, userID string) (models.WorkerStatus, error)
	Set(ctx context.Context, userID string, status models.WorkerStatus) error
	All(ctx context.Context) (map[string]models.WorkerStatus, error)
}

// SettingsRepository stores the work-site configuration
type SettingsRepository interface {
	Get(ctx context.Context) (models.WorkSite, error)
	Update(ctx context.Context, site models.WorkSite) error
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	// GetByEmail matches case-insensitively
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, userID string) error
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	Add(ctx context.Context, n *models.Notification) error
	// ListByUser returns the user's notifications newest first
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}

// Store bundles every repository the services need
type Store struct {
	Records       RecordRepository
	Tasks         TaskRepository
	Statuses      StatusRepository
	Settings      SettingsRepository
	Users         UserRepository
	Notifications NotificationRepository
}
