package services

import (
	"context"
	"math"
	"testing"

	"dawam/internal/models"
	"dawam/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSite(t *testing.T) {
	tests := []struct {
		name    string
		site    models.WorkSite
		wantErr error
	}{
		{"default", repository.DefaultSite, nil},
		{"zero radius", models.WorkSite{Latitude: 1, Longitude: 1}, ErrInvalidRadius},
		{"negative radius", models.WorkSite{RadiusKm: -1}, ErrInvalidRadius},
		{"latitude out of range", models.WorkSite{Latitude: 91, RadiusKm: 1}, ErrInvalidInput},
		{"longitude out of range", models.WorkSite{Longitude: -181, RadiusKm: 1}, ErrInvalidInput},
		{"NaN latitude", models.WorkSite{Latitude: math.NaN(), RadiusKm: 1}, ErrInvalidInput},
		{"NaN longitude", models.WorkSite{Longitude: math.NaN(), RadiusKm: 1}, ErrInvalidInput},
		{"infinite longitude", models.WorkSite{Longitude: math.Inf(1), RadiusKm: 1}, ErrInvalidInput},
		{"NaN radius", models.WorkSite{RadiusKm: math.NaN()}, ErrInvalidRadius},
		{"infinite radius", models.WorkSite{RadiusKm: math.Inf(1)}, ErrInvalidRadius},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSite(tt.site)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSettingsService(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(repository.DefaultSite)
	svc := NewSettingsService(store.Settings)

	_, err := svc.Update(ctx, models.WorkSite{Latitude: 21.5, Longitude: 39.2})
	require.ErrorIs(t, err, ErrInvalidRadius)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.DefaultSite, current, "rejected update leaves the site untouched")

	moved, err := svc.MoveTo(ctx, models.Coordinate{Latitude: 21.5, Longitude: 39.2})
	require.NoError(t, err)
	assert.Equal(t, models.WorkSite{Latitude: 21.5, Longitude: 39.2, RadiusKm: 0.5}, moved)

	// snapshots handed out earlier do not change
	assert.Equal(t, 24.7136, current.Latitude)
}
