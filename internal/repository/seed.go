package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"dawam/internal/models"
)

// DefaultSite is the work site used until an administrator moves it
var DefaultSite = models.WorkSite{
	Latitude:  24.7136,
	Longitude: 46.6753,
	RadiusKm:  0.5,
}

// DefaultUsers are created on first start so the service can be tried immediately
func DefaultUsers() []models.User {
	return []models.User{
		{ID: "u1", FullName: "System Admin", Email: "admin@company.com", Role: models.RoleAdmin, Photo: "https://picsum.photos/100/100?random=1"},
		{ID: "u2", FullName: "Ahmed Mohammed", Email: "ahmed@company.com", Role: models.RoleUser, Photo: "https://picsum.photos/100/100?random=2"},
		{ID: "u3", FullName: "Sara Ali", Email: "sara@company.com", Role: models.RoleUser, Photo: "https://picsum.photos/100/100?random=3"},
	}
}

// Seed fills an empty store with the default users and a first task
func Seed(ctx context.Context, store *Store, now time.Time) error {
	users, err := store.Users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	// the store may replace ids on create; bind the task to the id it assigned
	var firstEmployee string
	for _, u := range DefaultUsers() {
		user := u
		if err := store.Users.Create(ctx, &user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
		if firstEmployee == "" && user.Role == models.RoleUser {
			firstEmployee = user.ID
		}
	}

	task := &models.Task{
		ID:             "t1",
		Title:          "Review the financial report",
		AssignedUserID: firstEmployee,
		CreatedAt:      now,
		Priority:       models.Urgent,
	}
	if err := store.Tasks.Add(ctx, task); err != nil {
		return fmt.Errorf("failed to seed task: %w", err)
	}

	log.Printf("🌱 Seeded %d users and 1 task", len(DefaultUsers()))
	return nil
}
