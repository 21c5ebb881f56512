package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"dawam/internal/models"
	"dawam/internal/repository"

	"github.com/google/uuid"
)

// UserService manages the user directory and email sign-in
type UserService struct {
	users repository.UserRepository
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Login resolves a user by email; there is no password
func (s *UserService) Login(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", email, err)
	}
	return user, nil
}

// Get returns one user
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.users.Get(ctx, userID)
}

// List returns all users
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// Create adds a user with a unique email
func (s *UserService) Create(ctx context.Context, fullName, email string, role models.Role) (*models.User, error) {
	user := &models.User{
		ID:       "u" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		FullName: strings.TrimSpace(fullName),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Role:     role,
	}
	user.Photo = "https://picsum.photos/100/100?random=" + user.ID
	if err := s.validate(ctx, user); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Printf("👤 Created %s %s", user.Role, user.Email)
	return user, nil
}

// Update changes name, email and role of an existing user
func (s *UserService) Update(ctx context.Context, userID, fullName, email string, role models.Role) (*models.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	user.FullName = strings.TrimSpace(fullName)
	user.Email = strings.ToLower(strings.TrimSpace(email))
	user.Role = role
	if err := s.validate(ctx, user); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// Delete removes a user; the acting user cannot delete themself
func (s *UserService) Delete(ctx context.Context, actingUserID, userID string) error {
	if actingUserID == userID {
		return ErrSelfDelete
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// LinkTelegram binds a Telegram chat to the user with the given email
func (s *UserService) LinkTelegram(ctx context.Context, email string, chatID int64) (*models.User, error) {
	user, err := s.Login(ctx, email)
	if err != nil {
		return nil, err
	}
	user.TelegramChatID = chatID
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to link telegram: %w", err)
	}
	return user, nil
}

// ByTelegramChat finds the user linked to a chat
func (s *UserService) ByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.TelegramChatID == chatID {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("chat %d: %w", chatID, ErrNotFound)
}

func (s *UserService) validate(ctx context.Context, user *models.User) error {
	if user.FullName == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return fmt.Errorf("%w: bad email %q", ErrInvalidInput, user.Email)
	}
	if user.Role != models.RoleAdmin && user.Role != models.RoleUser {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, user.Role)
	}

	existing, err := s.users.GetByEmail(ctx, user.Email)
	switch {
	case err == nil && existing.ID != user.ID:
		return ErrEmailTaken
	case err != nil && !errors.Is(err, ErrNotFound):
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}
