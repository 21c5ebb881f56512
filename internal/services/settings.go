package services

import (
	"context"
	"fmt"
	"log"
	"math"

	"dawam/internal/models"
	"dawam/internal/repository"
)

// SiteProvider returns the current work-site snapshot
type SiteProvider interface {
	Current(ctx context.Context) (models.WorkSite, error)
}

// SettingsService manages the work-site configuration
type SettingsService struct {
	repo repository.SettingsRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// Current returns the work site as a value snapshot
func (s *SettingsService) Current(ctx context.Context) (models.WorkSite, error) {
	site, err := s.repo.Get(ctx)
	if err != nil {
		return models.WorkSite{}, fmt.Errorf("failed to load work site: %w", err)
	}
	return site, nil
}

// Update validates and stores a new work site
func (s *SettingsService) Update(ctx context.Context, site models.WorkSite) (models.WorkSite, error) {
	if err := ValidateSite(site); err != nil {
		return models.WorkSite{}, err
	}
	if err := s.repo.Update(ctx, site); err != nil {
		return models.WorkSite{}, fmt.Errorf("failed to save work site: %w", err)
	}
	log.Printf("📍 Work site set to %.5f,%.5f (radius %.2f km)", site.Latitude, site.Longitude, site.RadiusKm)
	return site, nil
}

// MoveTo recentres the work site on the given coordinate and keeps the radius
func (s *SettingsService) MoveTo(ctx context.Context, at models.Coordinate) (models.WorkSite, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return models.WorkSite{}, err
	}
	current.Latitude = at.Latitude
	current.Longitude = at.Longitude
	return s.Update(ctx, current)
}

// ValidateSite checks coordinate ranges and a positive radius
func ValidateSite(site models.WorkSite) error {
	if !(site.RadiusKm > 0) || math.IsInf(site.RadiusKm, 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidRadius, site.RadiusKm)
	}
	return ValidateCoordinate(site.Center())
}

// ValidateCoordinate checks latitude and longitude ranges; NaN is out of every range
func ValidateCoordinate(c models.Coordinate) error {
	if !(c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180) {
		return fmt.Errorf("%w: coordinate %v,%v out of range", ErrInvalidInput, c.Latitude, c.Longitude)
	}
	return nil
}
