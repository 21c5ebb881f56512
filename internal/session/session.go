package session

import (
	"context"
	"log"
	"sync"
	"time"

	"dawam/internal/metrics"
	"dawam/internal/models"
)

const (
	// DefaultNotificationPoll is how often a session looks for new notifications
	DefaultNotificationPoll = 3 * time.Second
	// DefaultFreshWindow is how old a notification may be and still surface as a toast
	DefaultFreshWindow = 4 * time.Second

	sampleBuffer = 8
	maxToasts    = 20
)

// Evaluator computes attendance eligibility for a user
type Evaluator interface {
	Eligibility(ctx context.Context, userID string, sample models.LocationSample) (*models.Eligibility, error)
}

// NotificationSource lists the recent unread notifications of a user
type NotificationSource interface {
	Fresh(ctx context.Context, userID string, window time.Duration) ([]models.Notification, error)
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Options tunes session loops
type Options struct {
	NotificationPoll time.Duration
	FreshWindow      time.Duration
	// Clock stamps StartedAt; defaults to the wall clock
	Clock Clock
}

// Session owns the background loops of one signed-in user
type Session struct {
	UserID    string
	StartedAt time.Time

	provider *ChannelProvider
	watcher  *Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	seen   map[string]bool
	toasts []models.Notification
	closed bool
}

func start(parent context.Context, userID string, eval Evaluator, notes NotificationSource, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)
	provider := NewChannelProvider(sampleBuffer)
	s := &Session{
		UserID:    userID,
		StartedAt: opts.Clock.Now(),
		provider:  provider,
		cancel:    cancel,
		seen:      make(map[string]bool),
	}
	s.watcher = NewWatcher(provider, func(ctx context.Context, sample models.LocationSample) (*models.Eligibility, error) {
		return eval.Eligibility(ctx, userID, sample)
	})

	poll := Loop{
		Name:      "notifications " + userID,
		Interval:  opts.NotificationPoll,
		Immediate: true,
		Tick: func(ctx context.Context) error {
			fresh, err := notes.Fresh(ctx, userID, opts.FreshWindow)
			if err != nil {
				return err
			}
			s.collect(fresh)
			return nil
		},
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.watcher.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		poll.Run(ctx)
	}()
	metrics.ActiveSessions.Inc()
	return s
}

// PushLocation hands a position sample to the watcher
func (s *Session) PushLocation(sample models.LocationSample) bool {
	return s.provider.Push(sample)
}

// Location returns the last pushed sample
func (s *Session) Location() models.LocationSample {
	return s.watcher.Sample()
}

// Eligibility returns the evaluation of the last sample, nil before the first one or after Invalidate
func (s *Session) Eligibility() *models.Eligibility {
	return s.watcher.Latest()
}

// Evaluate pushes a sample and waits for the watcher to process it.
// It returns false when the session is closed or ctx ends first, which includes the sample being dropped for a newer one.
func (s *Session) Evaluate(ctx context.Context, sample models.LocationSample) (*models.Eligibility, bool) {
	n := s.watcher.Received()
	if !s.provider.Push(sample) {
		return nil, false
	}
	return s.watcher.Await(ctx, n, sample)
}

// Invalidate discards the cached evaluation and re-evaluates the last sample
func (s *Session) Invalidate() {
	s.watcher.Invalidate()
	if s.watcher.Received() > 0 {
		s.provider.Push(s.watcher.Sample())
	}
}

// collect queues notifications not surfaced before, oldest first
func (s *Session) collect(fresh []models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(fresh) - 1; i >= 0; i-- {
		n := fresh[i]
		if s.seen[n.ID] {
			continue
		}
		s.seen[n.ID] = true
		s.toasts = append(s.toasts, n)
	}
	if len(s.toasts) > maxToasts {
		s.toasts = s.toasts[len(s.toasts)-maxToasts:]
	}
}

// Toasts drains the queued notifications
func (s *Session) Toasts() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.toasts
	s.toasts = nil
	return out
}

// Close cancels both loops and waits for them to return
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.provider.Close()
	s.wg.Wait()
	metrics.ActiveSessions.Dec()
}

// Manager keeps at most one session per user
type Manager struct {
	eval  Evaluator
	notes NotificationSource
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(eval Evaluator, notes NotificationSource, opts Options) *Manager {
	if opts.NotificationPoll <= 0 {
		opts.NotificationPoll = DefaultNotificationPoll
	}
	if opts.FreshWindow <= 0 {
		opts.FreshWindow = DefaultFreshWindow
	}
	if opts.Clock == nil {
		opts.Clock = wallClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		eval:     eval,
		notes:    notes,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session for the user, closing any previous one
func (m *Manager) Start(userID string) *Session {
	m.mu.Lock()
	previous := m.sessions[userID]
	s := start(m.ctx, userID, m.eval, m.notes, m.opts)
	m.sessions[userID] = s
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
		log.Printf("🔁 Replaced session of %s", userID)
	} else {
		log.Printf("🔑 Session started for %s", userID)
	}
	return s
}

// Get returns the user's session
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Stop closes the user's session; it reports whether one was open
func (m *Manager) Stop(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
		log.Printf("🔒 Session closed for %s", userID)
	}
	return ok
}

// Len counts open sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every session and waits for their loops
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.cancel()
	for _, s := range sessions {
		s.Close()
	}
	log.Printf("🛑 Closed %d sessions", len(sessions))
}
