package services

import (
	"errors"

	"dawam/internal/repository"
)

// Guard rejections. All of them are recoverable and shown to the acting user as-is.
var (
	ErrTooSoon             = errors.New("checked in less than an hour ago")
	ErrOutsideZone         = errors.New("outside the work site")
	ErrNoOpenSession       = errors.New("no check-in recorded today")
	ErrEmptyReport         = errors.New("a report is required to complete this task")
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Validation failures of the administrative operations
var (
	ErrNotFound      = repository.ErrNotFound
	ErrEmailTaken    = errors.New("email already registered")
	ErrInvalidRadius = errors.New("radius must be greater than zero")
	ErrInvalidInput  = errors.New("invalid input")
	ErrSelfDelete    = errors.New("cannot delete the signed-in account")
)

// IsRejection reports whether err is one of the attendance or task guard rejections
func IsRejection(err error) bool {
	for _, target := range []error{ErrTooSoon, ErrOutsideZone, ErrNoOpenSession, ErrEmptyReport, ErrLocationUnavailable} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RejectionReason returns a short label for metrics
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrTooSoon):
		return "too_soon"
	case errors.Is(err, ErrOutsideZone):
		return "outside_zone"
	case errors.Is(err, ErrNoOpenSession):
		return "no_open_session"
	case errors.Is(err, ErrEmptyReport):
		return "empty_report"
	case errors.Is(err, ErrLocationUnavailable):
		return "location_unavailable"
	}
	return "other"
}
