package session

import (
	"context"
	"errors"
	"sync"

	"dawam/internal/models"
)

// EvaluateFunc computes the user's eligibility for one sample
type EvaluateFunc func(ctx context.Context, sample models.LocationSample) (*models.Eligibility, error)

// Watcher re-evaluates eligibility on every sample from a provider
type Watcher struct {
	provider LocationProvider
	evaluate EvaluateFunc

	mu       sync.RWMutex
	sample   models.LocationSample
	latest   *models.Eligibility
	received int
	// gen is bumped by Invalidate; evaluations started under an older gen are discarded
	gen     int
	updated chan struct{}
}

// NewWatcher creates a watcher over provider
func NewWatcher(provider LocationProvider, evaluate EvaluateFunc) *Watcher {
	return &Watcher{provider: provider, evaluate: evaluate, updated: make(chan struct{})}
}

// Run consumes samples until ctx is cancelled or the provider closes
func (w *Watcher) Run(ctx context.Context) {
	samples := w.provider.Samples()
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			w.handle(ctx, sample)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, sample models.LocationSample) {
	w.mu.RLock()
	gen := w.gen
	w.mu.RUnlock()

	e, err := w.evaluate(ctx, sample)
	if err != nil {
		e = nil
	}

	w.mu.Lock()
	w.sample = sample
	if gen == w.gen {
		w.latest = e
	}
	w.received++
	close(w.updated)
	w.updated = make(chan struct{})
	w.mu.Unlock()
}

// Invalidate drops the current evaluation, typically after the user's attendance state changed
func (w *Watcher) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.latest = nil
}

// Await blocks until more than n samples have been processed and the last one is want,
// then returns its evaluation. It returns false when ctx ends first.
func (w *Watcher) Await(ctx context.Context, n int, want models.LocationSample) (*models.Eligibility, bool) {
	for {
		w.mu.RLock()
		if w.received > n && sameSample(w.sample, want) {
			e := w.latest
			w.mu.RUnlock()
			return e, true
		}
		updated := w.updated
		w.mu.RUnlock()

		select {
		case <-updated:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Sample returns the most recent sample; a zero sample has no coordinate and reads as unavailable
func (w *Watcher) Sample() models.LocationSample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sample
}

// Latest returns the evaluation of the most recent sample, nil before the first one or after Invalidate
func (w *Watcher) Latest() *models.Eligibility {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

// Received counts processed samples
func (w *Watcher) Received() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.received
}

// sameSample reports whether a and b are the same pushed reading
func sameSample(a, b models.LocationSample) bool {
	return a.Coordinate == b.Coordinate && errors.Is(a.Err, b.Err) && errors.Is(b.Err, a.Err)
}
