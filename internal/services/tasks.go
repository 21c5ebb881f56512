package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"dawam/internal/metrics"
	"dawam/internal/models"
	"dawam/internal/repository"

	"github.com/google/uuid"
)

// TaskManager defines the task operations exposed to handlers and the bot
type TaskManager interface {
	ForUser(ctx context.Context, userID string) ([]models.Task, error)
	Assign(ctx context.Context, title, userID string, priority models.Priority) (*models.Task, error)
	Toggle(ctx context.Context, taskID, reportText string) (*models.Task, error)
	SendDigest(ctx context.Context) (int, error)
}

// TaskService handles task assignment and the completion protocol
type TaskService struct {
	tasks    repository.TaskRepository
	users    repository.UserRepository
	notifier Notifier
	clock    Clock
}

// NewTaskService creates a new task service
func NewTaskService(
	tasks repository.TaskRepository,
	users repository.UserRepository,
	notifier Notifier,
	clock Clock,
) *TaskService {
	return &TaskService{
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		clock:    clock,
	}
}

// OrderTasks returns a copy sorted incomplete first, then by priority weight descending.
// Ties keep their original order.
func OrderTasks(tasks []models.Task) []models.Task {
	out := append([]models.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		return a.Priority.Weight() > b.Priority.Weight()
	})
	return out
}

// Progress counts completed and remaining tasks
func Progress(tasks []models.Task) (completed, remaining int) {
	for _, t := range tasks {
		if t.Completed {
			completed++
		} else {
			remaining++
		}
	}
	return completed, remaining
}

// ForUser returns the user's tasks in display order
func (s *TaskService) ForUser(ctx context.Context, userID string) ([]models.Task, error) {
	all, err := s.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	var mine []models.Task
	for _, t := range all {
		if t.AssignedUserID == userID {
			mine = append(mine, t)
		}
	}
	return OrderTasks(mine), nil
}

// Assign creates a task for a user and notifies them
func (s *TaskService) Assign(ctx context.Context, title, userID string, priority models.Priority) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" || userID == "" {
		return nil, fmt.Errorf("%w: title and assignee are required", ErrInvalidInput)
	}
	if priority == "" {
		priority = models.Routine
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to find assignee: %w", err)
	}

	task := &models.Task{
		ID:             uuid.NewString(),
		Title:          title,
		AssignedUserID: userID,
		CreatedAt:      s.clock.Now(),
		Priority:       priority,
	}
	if err := s.tasks.Add(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	log.Printf("📝 Task %q (%s) assigned to %s", task.Title, task.Priority, userID)

	urgency, heading := models.UrgencyInfo, "New task"
	if priority == models.Urgent {
		urgency, heading = models.UrgencyUrgent, "🚨 Urgent task!"
	}
	s.notifier.Notify(ctx, userID, heading, "New task assigned: "+task.Title, urgency)

	return task, nil
}

// Toggle flips a task between pending and completed.
// Completing a report task needs a non-blank report the first time; the report is set once and
// stays attached when the task is reopened or completed again.
func (s *TaskService) Toggle(ctx context.Context, taskID, reportText string) (*models.Task, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	switch {
	case task.Completed:
		err = s.tasks.SetCompletion(ctx, taskID, false, "")
	case task.Priority == models.ReportRequired && task.ReportText == "":
		report := strings.TrimSpace(reportText)
		if report == "" {
			metrics.Rejections.WithLabelValues("task", RejectionReason(ErrEmptyReport)).Inc()
			return nil, ErrEmptyReport
		}
		err = s.tasks.SetCompletion(ctx, taskID, true, report)
	default:
		err = s.tasks.SetCompletion(ctx, taskID, true, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	updated, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}
	if updated.Completed {
		metrics.TasksCompleted.Inc()
	}
	return updated, nil
}

// SendDigest notifies every user with pending tasks of how many remain; it returns the number of users notified
func (s *TaskService) SendDigest(ctx context.Context) (int, error) {
	all, err := s.tasks.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks: %w", err)
	}

	pending := make(map[string]int)
	var order []string
	for _, t := range all {
		if t.Completed {
			continue
		}
		if pending[t.AssignedUserID] == 0 {
			order = append(order, t.AssignedUserID)
		}
		pending[t.AssignedUserID]++
	}

	for _, userID := range order {
		s.notifier.Notify(ctx, userID, "Daily task digest",
			fmt.Sprintf("You have %d pending tasks today. Please check your task board.", pending[userID]),
			models.UrgencyDigest)
	}
	log.Printf("📋 Task digest sent to %d users", len(order))
	return len(order), nil
}
