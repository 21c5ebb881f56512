// Package services implements business logic for the application
package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"dawam/internal/geofence"
	"dawam/internal/metrics"
	"dawam/internal/models"
	"dawam/internal/repository"

	"github.com/google/uuid"
)

// DefaultCheckInCooldown is the minimum gap between two check-ins of the same user
const DefaultCheckInCooldown = time.Hour

// AttendanceProcessor defines the interface for attendance processing
type AttendanceProcessor interface {
	CheckIn(ctx context.Context, req CheckInRequest) (*models.AttendanceRecord, error)
	PrepareCheckout(ctx context.Context, userID string, sample models.LocationSample) (*models.CheckoutSummary, error)
	ConfirmCheckout(ctx context.Context, userID string, sample models.LocationSample) (*models.AttendanceRecord, error)
	Eligibility(ctx context.Context, userID string, sample models.LocationSample) (*models.Eligibility, error)
	DailySummary(ctx context.Context, userID, day string) (*models.DailySummary, error)
	History(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
	TodayRecords(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
	Status(ctx context.Context, userID string) (models.WorkerStatus, error)
	ToggleBreak(ctx context.Context, userID string) (models.WorkerStatus, error)
}

// CheckInRequest carries everything a check-in needs
type CheckInRequest struct {
	UserID   string
	Sample   models.LocationSample
	PhotoRef string
	// Photo, when set, is attached after the guards pass and replaces PhotoRef
	Photo PhotoAttacher
}

// PhotoAttacher stores a check-in photo only once the check-in is allowed
type PhotoAttacher interface {
	// Attach validates and stores the photo and returns its reference
	Attach() (string, error)
	// Detach undoes Attach when the record cannot be written
	Detach()
}

// AttendanceOptions tunes the attendance rules
type AttendanceOptions struct {
	// Cooldown between two check-ins; zero means DefaultCheckInCooldown
	Cooldown time.Duration
	// WorkStartTime in 15:04:05 form, used to flag late arrivals; empty disables it
	WorkStartTime string
	// Location is the time zone calendar days are cut in; nil means UTC
	Location *time.Location
}

// AttendanceService handles attendance business logic
type AttendanceService struct {
	records  repository.RecordRepository
	tasks    repository.TaskRepository
	statuses repository.StatusRepository
	sites    SiteProvider
	notifier Notifier
	clock    Clock

	cooldown      time.Duration
	workStartTime string
	loc           *time.Location
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(
	records repository.RecordRepository,
	tasks repository.TaskRepository,
	statuses repository.StatusRepository,
	sites SiteProvider,
	notifier Notifier,
	clock Clock,
	opts AttendanceOptions,
) *AttendanceService {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCheckInCooldown
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &AttendanceService{
		records:       records,
		tasks:         tasks,
		statuses:      statuses,
		sites:         sites,
		notifier:      notifier,
		clock:         clock,
		cooldown:      opts.Cooldown,
		workStartTime: opts.WorkStartTime,
		loc:           opts.Location,
	}
}

// Today returns the current calendar day
func (s *AttendanceService) Today() string {
	return s.dayOf(s.clock.Now())
}

func (s *AttendanceService) dayOf(t time.Time) string {
	return t.In(s.loc).Format(models.DateLayout)
}

// CheckIn validates and records a check-in
func (s *AttendanceService) CheckIn(ctx context.Context, req CheckInRequest) (*models.AttendanceRecord, error) {
	now := s.clock.Now()

	records, err := s.records.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	if err := s.checkCooldown(records, now); err != nil {
		return nil, s.reject("checkin", err)
	}

	coord, err := requireLocation(req.Sample)
	if err != nil {
		return nil, s.reject("checkin", err)
	}
	if _, err := s.checkZone(ctx, coord); err != nil {
		return nil, s.reject("checkin", err)
	}

	photoRef := req.PhotoRef
	if req.Photo != nil {
		if photoRef, err = req.Photo.Attach(); err != nil {
			return nil, err
		}
	}

	record := &models.AttendanceRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Kind:      models.CheckIn,
		Timestamp: now,
		Date:      s.dayOf(now),
		Location:  coord,
		PhotoRef:  photoRef,
	}
	if err := s.appendRecord(ctx, record, models.StatusActive); err != nil {
		if req.Photo != nil {
			req.Photo.Detach()
		}
		return nil, err
	}

	status := calculateStatus(now.In(s.loc), s.workStartTime)
	log.Printf("✅ User %s checked in at %s (Status: %s)", req.UserID, now.In(s.loc).Format("15:04:05"), status)
	s.sendCheckInNotification(ctx, req.UserID, now.In(s.loc), status)

	return record, nil
}

// PrepareCheckout validates a check-out and returns the summary the user must acknowledge; it writes nothing
func (s *AttendanceService) PrepareCheckout(ctx context.Context, userID string, sample models.LocationSample) (*models.CheckoutSummary, error) {
	summary, _, err := s.checkoutGuards(ctx, userID, sample)
	if err != nil {
		return nil, s.reject("checkout", err)
	}
	return summary, nil
}

// ConfirmCheckout re-validates and records the check-out after the user acknowledged the summary
func (s *AttendanceService) ConfirmCheckout(ctx context.Context, userID string, sample models.LocationSample) (*models.AttendanceRecord, error) {
	summary, coord, err := s.checkoutGuards(ctx, userID, sample)
	if err != nil {
		return nil, s.reject("checkout", err)
	}

	now := summary.Now
	record := &models.AttendanceRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      models.CheckOut,
		Timestamp: now,
		Date:      s.dayOf(now),
		Location:  coord,
	}
	if err := s.appendRecord(ctx, record, models.StatusOffline); err != nil {
		return nil, err
	}

	log.Printf("👋 User %s checked out at %s after %s h", userID, now.In(s.loc).Format("15:04:05"), summary.Elapsed)
	s.notifier.Notify(ctx, userID, "Checked out",
		fmt.Sprintf("Worked %s hours today. Tasks done: %d, remaining: %d",
			summary.Elapsed, summary.CompletedTasks, summary.RemainingTasks),
		models.UrgencyInfo)

	return record, nil
}

func (s *AttendanceService) checkoutGuards(ctx context.Context, userID string, sample models.LocationSample) (*models.CheckoutSummary, models.Coordinate, error) {
	now := s.clock.Now()

	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, models.Coordinate{}, fmt.Errorf("failed to load attendance: %w", err)
	}
	firstIn := firstOfKind(recordsOnDay(records, s.dayOf(now)), models.CheckIn)
	if firstIn == nil {
		return nil, models.Coordinate{}, ErrNoOpenSession
	}

	coord, err := requireLocation(sample)
	if err != nil {
		return nil, models.Coordinate{}, err
	}
	if _, err := s.checkZone(ctx, coord); err != nil {
		return nil, models.Coordinate{}, err
	}

	tasks, err := s.userTasks(ctx, userID)
	if err != nil {
		return nil, models.Coordinate{}, err
	}
	completed, remaining := Progress(tasks)

	elapsed := hours(now.Sub(firstIn.Timestamp))
	return &models.CheckoutSummary{
		StartedAt:      firstIn.Timestamp,
		Now:            now,
		ElapsedHours:   elapsed,
		Elapsed:        formatHours(elapsed),
		CompletedTasks: completed,
		RemainingTasks: remaining,
	}, coord, nil
}

// Eligibility reports which actions the user may take with the given location sample
func (s *AttendanceService) Eligibility(ctx context.Context, userID string, sample models.LocationSample) (*models.Eligibility, error) {
	now := s.clock.Now()
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	today := recordsOnDay(records, s.dayOf(now))

	e := &models.Eligibility{State: sessionState(today)}
	checkInErr := s.checkCooldown(records, now)
	var checkOutErr error
	if firstOfKind(today, models.CheckIn) == nil {
		checkOutErr = ErrNoOpenSession
	}

	coord, locErr := requireLocation(sample)
	if locErr == nil {
		eval, zoneErr := s.checkZone(ctx, coord)
		if zoneErr != nil && !IsRejection(zoneErr) {
			return nil, zoneErr
		}
		d := eval.DistanceKm
		e.DistanceKm = &d
		e.InZone = eval.InZone
		locErr = zoneErr
	}
	if checkInErr == nil {
		checkInErr = locErr
	}
	if checkOutErr == nil {
		checkOutErr = locErr
	}

	e.CanCheckIn = checkInErr == nil
	e.CanCheckOut = checkOutErr == nil
	if checkInErr != nil {
		e.CheckInReason = checkInErr.Error()
	}
	if checkOutErr != nil {
		e.CheckOutReason = checkOutErr.Error()
	}
	return e, nil
}

// DailySummary derives the user's session for one calendar day from the attendance log.
// Only the first check-in and the most recent check-out up to now are considered.
func (s *AttendanceService) DailySummary(ctx context.Context, userID, day string) (*models.DailySummary, error) {
	now := s.clock.Now()
	if day == "" {
		day = s.dayOf(now)
	}
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	onDay := recordsOnDay(records, day)

	summary := &models.DailySummary{
		UserID: userID,
		Date:   day,
		State:  sessionState(onDay),
	}

	firstIn := firstOfKind(onDay, models.CheckIn)
	if firstIn == nil {
		summary.Elapsed = formatHours(0)
		return summary, nil
	}
	start := firstIn.Timestamp
	summary.StartedAt = &start

	var lastOut *models.AttendanceRecord
	for i := range onDay {
		r := &onDay[i]
		if r.Kind == models.CheckOut && !r.Timestamp.After(now) {
			lastOut = r
		}
	}

	switch {
	case lastOut != nil:
		end := lastOut.Timestamp
		summary.EndedAt = &end
		summary.ElapsedHours = hours(end.Sub(start))
	case day == s.dayOf(now):
		summary.ElapsedHours = hours(now.Sub(start))
	}
	summary.Elapsed = formatHours(summary.ElapsedHours)
	return summary, nil
}

// History returns the user's records newest first
func (s *AttendanceService) History(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// TodayRecords returns the user's records of the current day in order
func (s *AttendanceService) TodayRecords(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	return recordsOnDay(records, s.Today()), nil
}

// Status returns the user's live worker status
func (s *AttendanceService) Status(ctx context.Context, userID string) (models.WorkerStatus, error) {
	status, err := s.statuses.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to read worker status: %w", err)
	}
	return status, nil
}

// ToggleBreak switches a working user between active and break
func (s *AttendanceService) ToggleBreak(ctx context.Context, userID string) (models.WorkerStatus, error) {
	current, err := s.statuses.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to read worker status: %w", err)
	}

	var next models.WorkerStatus
	switch current {
	case models.StatusActive:
		next = models.StatusBreak
	case models.StatusBreak:
		next = models.StatusActive
	default:
		return current, s.reject("break", ErrNoOpenSession)
	}

	if err := s.statuses.Set(ctx, userID, next); err != nil {
		return "", fmt.Errorf("failed to update worker status: %w", err)
	}
	log.Printf("☕ User %s is now %s", userID, next)
	return next, nil
}

// UserStats sums the hours of every complete check-in/check-out pair per day
func (s *AttendanceService) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	stats := aggregate(records)
	stats.UserID = userID
	return &stats, nil
}

// TodayCounts counts today's check-ins and check-outs across all users
func (s *AttendanceService) TodayCounts(ctx context.Context) (checkIns, checkOuts int, err error) {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load attendance: %w", err)
	}
	for _, r := range recordsOnDay(records, s.Today()) {
		switch r.Kind {
		case models.CheckIn:
			checkIns++
		case models.CheckOut:
			checkOuts++
		}
	}
	return checkIns, checkOuts, nil
}

// Digest lists each user's first check-in and check-out time today
func (s *AttendanceService) Digest(ctx context.Context, users []models.User) ([]models.DigestEntry, error) {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	today := recordsOnDay(records, s.Today())

	entries := make([]models.DigestEntry, 0, len(users))
	for _, u := range users {
		var mine []models.AttendanceRecord
		for _, r := range today {
			if r.UserID == u.ID {
				mine = append(mine, r)
			}
		}
		entries = append(entries, models.DigestEntry{
			UserID:   u.ID,
			Name:     u.FullName,
			CheckIn:  s.clockTime(firstOfKind(mine, models.CheckIn)),
			CheckOut: s.clockTime(firstOfKind(mine, models.CheckOut)),
		})
	}
	return entries, nil
}

func (s *AttendanceService) clockTime(r *models.AttendanceRecord) string {
	if r == nil {
		return "Missing"
	}
	return r.Timestamp.In(s.loc).Format("15:04")
}

func (s *AttendanceService) checkCooldown(records []models.AttendanceRecord, now time.Time) error {
	var last *models.AttendanceRecord
	for i := range records {
		r := &records[i]
		if r.Kind != models.CheckIn {
			continue
		}
		if last == nil || r.Timestamp.After(last.Timestamp) {
			last = r
		}
	}
	if last == nil {
		return nil
	}
	if since := now.Sub(last.Timestamp); since < s.cooldown {
		return fmt.Errorf("%w: last check-in was %d minutes ago", ErrTooSoon, int(since.Minutes()))
	}
	return nil
}

func (s *AttendanceService) checkZone(ctx context.Context, coord models.Coordinate) (geofence.Evaluation, error) {
	site, err := s.sites.Current(ctx)
	if err != nil {
		return geofence.Evaluation{}, err
	}
	eval := geofence.Evaluate(site, coord)
	if !eval.InZone {
		return eval, fmt.Errorf("%w: %.2f km away, allowed %.2f km", ErrOutsideZone, eval.DistanceKm, site.RadiusKm)
	}
	return eval, nil
}

// appendRecord sets the worker status and appends the record; the status is restored if the append fails
func (s *AttendanceService) appendRecord(ctx context.Context, record *models.AttendanceRecord, status models.WorkerStatus) error {
	previous, err := s.statuses.Get(ctx, record.UserID)
	if err != nil {
		return fmt.Errorf("failed to read worker status: %w", err)
	}
	if err := s.statuses.Set(ctx, record.UserID, status); err != nil {
		return fmt.Errorf("failed to update worker status: %w", err)
	}
	if err := s.records.Append(ctx, record); err != nil {
		if rbErr := s.statuses.Set(ctx, record.UserID, previous); rbErr != nil {
			log.Printf("❌ Failed to restore status %s for user %s: %v", previous, record.UserID, rbErr)
		}
		return fmt.Errorf("failed to create attendance record: %w", err)
	}
	metrics.Attendance.WithLabelValues(string(record.Kind)).Inc()
	return nil
}

func (s *AttendanceService) reject(action string, err error) error {
	if IsRejection(err) {
		metrics.Rejections.WithLabelValues(action, RejectionReason(err)).Inc()
		log.Printf("⛔ %s rejected: %v", action, err)
	}
	return err
}

func (s *AttendanceService) userTasks(ctx context.Context, userID string) ([]models.Task, error) {
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
	return mine, nil
}

// sendCheckInNotification sends check-in notification to the user, and to admins when late
func (s *AttendanceService) sendCheckInNotification(ctx context.Context, userID string, checkInTime time.Time, status string) {
	statusText := "on time"
	if status == "late" {
		statusText = calculateLateStatus(checkInTime, s.workStartTime)
	}

	s.notifier.Notify(ctx, userID, "Checked in",
		fmt.Sprintf("Check-in time: %s (%s). Have a good day!", checkInTime.Format("15:04:05"), statusText),
		models.UrgencyInfo)

	if status == "late" {
		s.notifier.NotifyAdmins(ctx, "Late check-in",
			fmt.Sprintf("User %s checked in at %s, %s", userID, checkInTime.Format("15:04:05"), statusText))
	}
}

func requireLocation(sample models.LocationSample) (models.Coordinate, error) {
	if sample.Err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, sample.Err)
	}
	if sample.Coordinate == nil {
		return models.Coordinate{}, ErrLocationUnavailable
	}
	return *sample.Coordinate, nil
}

func recordsOnDay(records []models.AttendanceRecord, day string) []models.AttendanceRecord {
	var out []models.AttendanceRecord
	for _, r := range records {
		if r.Date == day {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func firstOfKind(ordered []models.AttendanceRecord, kind models.RecordKind) *models.AttendanceRecord {
	for i := range ordered {
		if ordered[i].Kind == kind {
			return &ordered[i]
		}
	}
	return nil
}

func sessionState(ordered []models.AttendanceRecord) models.SessionState {
	if len(ordered) == 0 {
		return models.StateNoCheckIn
	}
	if ordered[len(ordered)-1].Kind == models.CheckIn {
		return models.StateCheckedIn
	}
	if firstOfKind(ordered, models.CheckIn) == nil {
		return models.StateNoCheckIn
	}
	return models.StateCheckedOut
}

// aggregate pairs each check-in with the next check-out of the same day
func aggregate(records []models.AttendanceRecord) models.UserStats {
	byDay := make(map[string][]models.AttendanceRecord)
	for _, r := range records {
		byDay[r.Date] = append(byDay[r.Date], r)
	}

	var stats models.UserStats
	for day := range byDay {
		ordered := recordsOnDay(byDay[day], day)
		if firstOfKind(ordered, models.CheckIn) == nil {
			continue
		}
		stats.PresentDays++

		var open *models.AttendanceRecord
		for i := range ordered {
			r := &ordered[i]
			switch {
			case r.Kind == models.CheckIn && open == nil:
				open = r
			case r.Kind == models.CheckOut && open != nil:
				stats.TotalHours += hours(r.Timestamp.Sub(open.Timestamp))
				open = nil
			}
		}
	}
	return stats
}

func formatHours(h float64) string {
	return fmt.Sprintf("%.2f", h)
}

// calculateStatus determines if check-in is on time or late
func calculateStatus(checkInTime time.Time, workStartTime string) string {
	workStart, err := time.Parse("15:04:05", workStartTime)
	if err != nil {
		return "ontime" // Default to ontime if can't parse
	}

	todayWorkStart := time.Date(
		checkInTime.Year(),
		checkInTime.Month(),
		checkInTime.Day(),
		workStart.Hour(),
		workStart.Minute(),
		workStart.Second(),
		0,
		checkInTime.Location(),
	)

	// Grace period: 5 minutes
	gracePeriod := 5 * time.Minute

	if checkInTime.Before(todayWorkStart.Add(gracePeriod)) {
		return "ontime"
	}

	return "late"
}

// calculateLateStatus calculates late minutes for display
func calculateLateStatus(checkInTime time.Time, workStartTime string) string {
	workStart, err := time.Parse("15:04:05", workStartTime)
	if err != nil {
		return "late"
	}

	todayWorkStart := time.Date(
		checkInTime.Year(),
		checkInTime.Month(),
		checkInTime.Day(),
		workStart.Hour(),
		workStart.Minute(),
		workStart.Second(),
		0,
		checkInTime.Location(),
	)

	lateMinutes := int(checkInTime.Sub(todayWorkStart).Minutes())
	return fmt.Sprintf("late by %d minutes", lateMinutes)
}
