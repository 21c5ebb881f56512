// Package session runs the per-login background loops: the position watch and the notification poll
package session

import (
	"context"
	"log"
	"time"
)

// Loop calls Tick every Interval until the context is cancelled.
// Ticks run on the loop goroutine, so at most one is in flight; a slow tick delays the next one.
type Loop struct {
	Name     string
	Interval time.Duration
	Tick     func(ctx context.Context) error
	// Immediate runs the first tick before waiting one interval
	Immediate bool
}

// Run blocks until ctx is cancelled
func (l Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	if l.Immediate {
		l.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l Loop) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := l.Tick(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Warning: %s tick failed: %v", l.Name, err)
	}
}
