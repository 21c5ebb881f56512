package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dawam/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	mu    sync.Mutex
	calls int
}

func (e *stubEvaluator) Eligibility(ctx context.Context, userID string, sample models.LocationSample) (*models.Eligibility, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if sample.Err != nil || sample.Coordinate == nil {
		return &models.Eligibility{CheckInReason: "location unavailable"}, nil
	}
	return &models.Eligibility{InZone: true, CanCheckIn: true}, nil
}

type stubNotes struct {
	mu    sync.Mutex
	notes []models.Notification
	polls atomic.Int32
}

func (n *stubNotes) Fresh(ctx context.Context, userID string, window time.Duration) ([]models.Notification, error) {
	n.polls.Add(1)
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.notes...), nil
}

func (n *stubNotes) add(note models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append([]models.Notification{note}, n.notes...)
}

func TestLoopRunsSequentiallyUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var inFlight, maxInFlight, ticks atomic.Int32

	loop := Loop{
		Name:      "test",
		Interval:  time.Millisecond,
		Immediate: true,
		Tick: func(ctx context.Context) error {
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			time.Sleep(3 * time.Millisecond)
			inFlight.Add(-1)
			if ticks.Add(1) == 2 {
				return errors.New("transient")
			}
			return nil
		},
	}

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return ticks.Load() >= 4 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.Equal(t, int32(1), maxInFlight.Load())

	stopped := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load(), "no ticks after Run returned")
}

func TestChannelProviderDropsOldest(t *testing.T) {
	p := NewChannelProvider(2)
	for i := 1; i <= 3; i++ {
		assert.True(t, p.Push(models.LocationSample{Coordinate: &models.Coordinate{Latitude: float64(i)}}))
	}
	p.Close()
	assert.False(t, p.Push(models.LocationSample{}))

	var got []float64
	for s := range p.Samples() {
		got = append(got, s.Coordinate.Latitude)
	}
	assert.Equal(t, []float64{2, 3}, got)
}

func TestWatcherEvaluatesEverySample(t *testing.T) {
	eval := &stubEvaluator{}
	provider := NewChannelProvider(4)
	w := NewWatcher(provider, func(ctx context.Context, s models.LocationSample) (*models.Eligibility, error) {
		return eval.Eligibility(ctx, "u2", s)
	})

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	assert.Nil(t, w.Latest())

	provider.Push(models.LocationSample{Coordinate: &models.Coordinate{Latitude: 1}})
	require.Eventually(t, func() bool { return w.Received() == 1 }, time.Second, time.Millisecond)
	assert.True(t, w.Latest().CanCheckIn)

	// a provider error is never masked by the previous good sample
	provider.Push(models.LocationSample{Err: errors.New("denied")})
	require.Eventually(t, func() bool { return w.Received() == 2 }, time.Second, time.Millisecond)
	assert.False(t, w.Latest().CanCheckIn)
	assert.Error(t, w.Sample().Err)

	provider.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop when the provider closed")
	}
}

func TestSessionToastsAndClose(t *testing.T) {
	notes := &stubNotes{}
	m := NewManager(&stubEvaluator{}, notes, Options{NotificationPoll: 2 * time.Millisecond})
	defer m.CloseAll()

	s := m.Start("u2")
	notes.add(models.Notification{ID: "n1", Title: "first"})
	notes.add(models.Notification{ID: "n2", Title: "second"})

	var toasts []models.Notification
	require.Eventually(t, func() bool {
		toasts = append(toasts, s.Toasts()...)
		return len(toasts) >= 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, "n1", toasts[0].ID)
	assert.Equal(t, "n2", toasts[1].ID)

	// the same notification is surfaced once even though later polls return it again
	polls := notes.polls.Load()
	require.Eventually(t, func() bool { return notes.polls.Load() > polls+2 }, time.Second, time.Millisecond)
	assert.Empty(t, s.Toasts())

	assert.True(t, s.PushLocation(models.LocationSample{Coordinate: &models.Coordinate{}}))
	require.Eventually(t, func() bool { return s.Eligibility() != nil }, time.Second, time.Millisecond)

	assert.True(t, m.Stop("u2"))
	assert.False(t, m.Stop("u2"))
	assert.False(t, s.PushLocation(models.LocationSample{}))

	after := notes.polls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, notes.polls.Load(), "poll stopped with the session")
}

func TestManagerReplacesSessionOnRelogin(t *testing.T) {
	m := NewManager(&stubEvaluator{}, &stubNotes{}, Options{})

	first := m.Start("u2")
	second := m.Start("u2")
	assert.NotSame(t, first, second)
	assert.False(t, first.PushLocation(models.LocationSample{}), "previous session is closed")

	got, ok := m.Get("u2")
	require.True(t, ok)
	assert.Same(t, second, got)

	m.Start("u3")
	assert.Equal(t, 2, m.Len())

	m.CloseAll()
	assert.Equal(t, 0, m.Len())
	assert.False(t, second.PushLocation(models.LocationSample{}))
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestSessionEvaluateAndInvalidate(t *testing.T) {
	eval := &stubEvaluator{}
	started := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	m := NewManager(eval, &stubNotes{}, Options{NotificationPoll: time.Hour, Clock: fixedClock{started}})
	defer m.CloseAll()

	s := m.Start("u2")
	assert.Equal(t, started, s.StartedAt)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e, ok := s.Evaluate(ctx, models.LocationSample{Coordinate: &models.Coordinate{Latitude: 1}})
	require.True(t, ok)
	require.NotNil(t, e)
	assert.True(t, e.CanCheckIn)
	assert.Same(t, e, s.Eligibility())

	eval.mu.Lock()
	calls := eval.calls
	eval.mu.Unlock()

	s.Invalidate()
	require.Eventually(t, func() bool {
		eval.mu.Lock()
		defer eval.mu.Unlock()
		return eval.calls > calls && s.Eligibility() != nil
	}, time.Second, time.Millisecond)
	assert.NotSame(t, e, s.Eligibility(), "last reading is evaluated again")
	assert.Equal(t, 1.0, s.Location().Coordinate.Latitude)

	m.Stop("u2")
	_, ok = s.Evaluate(ctx, models.LocationSample{})
	assert.False(t, ok)
}

func TestWatcherDiscardsEvaluationStartedBeforeInvalidate(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var calls atomic.Int32
	provider := NewChannelProvider(2)
	w := NewWatcher(provider, func(ctx context.Context, s models.LocationSample) (*models.Eligibility, error) {
		if calls.Add(1) == 1 {
			entered <- struct{}{}
			<-release
		}
		return &models.Eligibility{CanCheckIn: true}, nil
	})
	go w.Run(context.Background())
	defer provider.Close()

	sample := models.LocationSample{Coordinate: &models.Coordinate{}}
	provider.Push(sample)
	<-entered
	w.Invalidate()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, ok := w.Await(ctx, 0, sample)
	require.True(t, ok)
	assert.Nil(t, e, "evaluation from before the invalidation is dropped")
	assert.Equal(t, 1, w.Received())
}
