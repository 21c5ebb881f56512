package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"dawam/internal/metrics"
	"dawam/internal/models"
	"dawam/internal/repository"

	"github.com/google/uuid"
)

// Notifier delivers a message to a user; delivery is best-effort and never fails the caller
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, urgency models.Urgency)
	NotifyAdmins(ctx context.Context, title, message string)
}

// BotNotifier defines the interface for bot notifications
type BotNotifier interface {
	SendNotification(message string)
	SendPersonalNotification(chatID int64, message string)
}

// NotificationService stores notifications and pushes them through the bot
type NotificationService struct {
	repo  repository.NotificationRepository
	users repository.UserRepository
	bot   BotNotifier
	clock Clock
}

// NewNotificationService creates a new notification service; bot may be nil
func NewNotificationService(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	bot BotNotifier,
	clock Clock,
) *NotificationService {
	return &NotificationService{
		repo:  repo,
		users: users,
		bot:   bot,
		clock: clock,
	}
}

// Notify stores the notification and pushes it to the user's Telegram chat when linked
func (s *NotificationService) Notify(ctx context.Context, userID, title, message string, urgency models.Urgency) {
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Urgency:   urgency,
		Timestamp: s.clock.Now(),
	}
	if err := s.repo.Add(ctx, n); err != nil {
		log.Printf("Warning: failed to store notification for %s: %v", userID, err)
		return
	}

	push := "none"
	if s.bot != nil {
		if user, err := s.users.Get(ctx, userID); err == nil && user.TelegramChatID != 0 {
			s.bot.SendPersonalNotification(user.TelegramChatID, formatPush(title, message, urgency))
			push = "telegram"
		}
	}
	metrics.Notifications.WithLabelValues(string(urgency), push).Inc()
}

// NotifyAdmins stores an urgent notification for every administrator and posts to the admin chat
func (s *NotificationService) NotifyAdmins(ctx context.Context, title, message string) {
	users, err := s.users.List(ctx)
	if err != nil {
		log.Printf("Warning: failed to list admins: %v", err)
	}
	for _, u := range users {
		if u.Role == models.RoleAdmin {
			s.Notify(ctx, u.ID, title, message, models.UrgencyUrgent)
		}
	}
	if s.bot != nil {
		s.bot.SendNotification(formatPush(title, message, models.UrgencyUrgent))
	}
}

// List returns the user's notifications newest first
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	notes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notes, nil
}

// Fresh returns unread notifications created within the window, newest first
func (s *NotificationService) Fresh(ctx context.Context, userID string, window time.Duration) ([]models.Notification, error) {
	notes, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	cutoff := s.clock.Now().Add(-window)
	var fresh []models.Notification
	for _, n := range notes {
		if !n.Read && n.Timestamp.After(cutoff) {
			fresh = append(fresh, n)
		}
	}
	return fresh, nil
}

// MarkAllRead marks every notification of the user as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// UnreadCount counts unread notifications
func UnreadCount(notes []models.Notification) int {
	count := 0
	for _, n := range notes {
		if !n.Read {
			count++
		}
	}
	return count
}

func formatPush(title, message string, urgency models.Urgency) string {
	emoji := "🔔"
	switch urgency {
	case models.UrgencyUrgent:
		emoji = "🚨"
	case models.UrgencyDigest:
		emoji = "📋"
	}
	return fmt.Sprintf("%s *%s*\n%s", emoji, title, message)
}
