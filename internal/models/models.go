// Package models contains data structures for the application
package models

import (
	"time"
)

// DateLayout is the calendar-day format stored on attendance records
const DateLayout = "2006-01-02"

// Coordinate is a point in floating-point degrees
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// WorkSite is an immutable snapshot of the configured work location and its geofence radius
type WorkSite struct {
	Latitude  float64 `json:"location_lat" yaml:"latitude"`
	Longitude float64 `json:"location_lng" yaml:"longitude"`
	RadiusKm  float64 `json:"radius" yaml:"radius_km"`
}

// Center returns the site coordinate
func (s WorkSite) Center() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// RecordKind distinguishes check-in from check-out records
type RecordKind string

const (
	CheckIn  RecordKind = "checkin"
	CheckOut RecordKind = "checkout"
)

// AttendanceRecord is one immutable entry of the append-only attendance log
type AttendanceRecord struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      RecordKind `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Date      string     `json:"date"`
	Location  Coordinate `json:"location"`
	PhotoRef  string     `json:"selfie,omitempty"`
}

// Priority is the task urgency class
type Priority string

const (
	Routine        Priority = "routine"
	Urgent         Priority = "urgent"
	ReportRequired Priority = "report"
)

// Weight orders priorities: Urgent > ReportRequired > Routine
func (p Priority) Weight() int {
	switch p {
	case Urgent:
		return 3
	case ReportRequired:
		return 2
	case Routine:
		return 1
	}
	return 0
}

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	return p.Weight() > 0
}

// Task is a unit of work assigned to one user
type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	AssignedUserID string    `json:"assigned_to"`
	Completed      bool      `json:"is_completed"`
	CreatedAt      time.Time `json:"created_at"`
	Priority       Priority  `json:"priority"`
	ReportText     string    `json:"report_response,omitempty"`
}

// WorkerStatus is the live presence of a worker
type WorkerStatus string

const (
	StatusOffline WorkerStatus = "offline"
	StatusActive  WorkerStatus = "active"
	StatusBreak   WorkerStatus = "break"
)

// Role is the user's access level
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an employee or administrator
type User struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	Photo          string `json:"photo"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Urgency classifies a notification
type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyInfo   Urgency = "info"
	UrgencyDigest Urgency = "digest"
)

// Notification is a message delivered to one user
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Urgency   Urgency   `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"is_read"`
}

// LocationSample is one reading from a location provider; Err is set when the provider failed
type LocationSample struct {
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	Err        error       `json:"-"`
}

// SessionState is the per-day attendance state of a user
type SessionState string

const (
	StateNoCheckIn  SessionState = "no_checkin"
	StateCheckedIn  SessionState = "checked_in"
	StateCheckedOut SessionState = "checked_out"
)

// DailySummary is derived from the attendance log for one user and day
type DailySummary struct {
	UserID       string       `json:"user_id"`
	Date         string       `json:"date"`
	State        SessionState `json:"state"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
	ElapsedHours float64      `json:"elapsed_hours"`
	Elapsed      string       `json:"elapsed"`
}

// CheckoutSummary is shown to the user before a check-out is confirmed
type CheckoutSummary struct {
	StartedAt      time.Time `json:"started_at"`
	Now            time.Time `json:"now"`
	ElapsedHours   float64   `json:"elapsed_hours"`
	Elapsed        string    `json:"elapsed"`
	CompletedTasks int       `json:"completed_tasks"`
	RemainingTasks int       `json:"remaining_tasks"`
}

// Eligibility reports which attendance actions are currently allowed
type Eligibility struct {
	State          SessionState `json:"state"`
	DistanceKm     *float64     `json:"distance_km,omitempty"`
	InZone         bool         `json:"in_zone"`
	CanCheckIn     bool         `json:"can_check_in"`
	CanCheckOut    bool         `json:"can_check_out"`
	CheckInReason  string       `json:"check_in_reason,omitempty"`
	CheckOutReason string       `json:"check_out_reason,omitempty"`
}

// UserStats aggregates attendance across all days
type UserStats struct {
	UserID      string  `json:"user_id"`
	TotalHours  float64 `json:"total_hours"`
	PresentDays int     `json:"present_days"`
}

// DigestEntry is one user's line in the admin daily attendance digest
type DigestEntry struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}
