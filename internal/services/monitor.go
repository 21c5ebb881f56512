package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dawam/internal/models"
	"dawam/internal/repository"
)

// WorkerView is one row of the live monitor
type WorkerView struct {
	User   models.User         `json:"user"`
	Status models.WorkerStatus `json:"status"`
	Stats  models.UserStats    `json:"stats"`
}

// MonitorSnapshot is the admin's view of the workforce at one instant
type MonitorSnapshot struct {
	TakenAt   time.Time            `json:"taken_at"`
	Date      string               `json:"date"`
	CheckIns  int                  `json:"check_ins"`
	CheckOuts int                  `json:"check_outs"`
	Workers   []WorkerView         `json:"workers"`
	Digest    []models.DigestEntry `json:"digest"`
}

// MonitorService builds admin snapshots and caches the most recent one
type MonitorService struct {
	attendance *AttendanceService
	users      repository.UserRepository
	statuses   repository.StatusRepository
	clock      Clock

	mu     sync.RWMutex
	latest *MonitorSnapshot
}

// NewMonitorService creates a new monitor service
func NewMonitorService(
	attendance *AttendanceService,
	users repository.UserRepository,
	statuses repository.StatusRepository,
	clock Clock,
) *MonitorService {
	return &MonitorService{
		attendance: attendance,
		users:      users,
		statuses:   statuses,
		clock:      clock,
	}
}

// Snapshot builds a fresh snapshot from the stores
func (s *MonitorService) Snapshot(ctx context.Context) (*MonitorSnapshot, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	statuses, err := s.statuses.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load worker statuses: %w", err)
	}
	checkIns, checkOuts, err := s.attendance.TodayCounts(ctx)
	if err != nil {
		return nil, err
	}

	var employees []models.User
	workers := make([]WorkerView, 0, len(users))
	for _, u := range users {
		if u.Role != models.RoleUser {
			continue
		}
		employees = append(employees, u)

		stats, err := s.attendance.UserStats(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		status, ok := statuses[u.ID]
		if !ok {
			status = models.StatusOffline
		}
		workers = append(workers, WorkerView{User: u, Status: status, Stats: *stats})
	}

	digest, err := s.attendance.Digest(ctx, employees)
	if err != nil {
		return nil, err
	}

	return &MonitorSnapshot{
		TakenAt:   s.clock.Now(),
		Date:      s.attendance.Today(),
		CheckIns:  checkIns,
		CheckOuts: checkOuts,
		Workers:   workers,
		Digest:    digest,
	}, nil
}

// Refresh rebuilds the cached snapshot; it is the body of the monitor poll
func (s *MonitorService) Refresh(ctx context.Context) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()
	return nil
}

// Latest returns the cached snapshot, building one if the poll has not run yet
func (s *MonitorService) Latest(ctx context.Context) (*MonitorSnapshot, error) {
	s.mu.RLock()
	snap := s.latest
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, nil
}
