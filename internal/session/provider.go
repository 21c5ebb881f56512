package session

import (
	"sync"

	"dawam/internal/models"
)

// LocationProvider delivers position samples; an error sample means the position is unknown
type LocationProvider interface {
	Samples() <-chan models.LocationSample
}

// ChannelProvider is a LocationProvider fed by Push, typically from the HTTP location endpoint
type ChannelProvider struct {
	mu     sync.Mutex
	ch     chan models.LocationSample
	closed bool
}

// NewChannelProvider creates a provider that buffers up to size samples
func NewChannelProvider(size int) *ChannelProvider {
	if size < 1 {
		size = 1
	}
	return &ChannelProvider{ch: make(chan models.LocationSample, size)}
}

// Samples returns the sample channel; it is closed by Close
func (p *ChannelProvider) Samples() <-chan models.LocationSample {
	return p.ch
}

// Push enqueues a sample without blocking. When the buffer is full the oldest sample is dropped.
// It returns false once the provider is closed.
func (p *ChannelProvider) Push(sample models.LocationSample) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	for {
		select {
		case p.ch <- sample:
			return true
		default:
		}
		select {
		case <-p.ch:
		default:
		}
	}
}

// Close stops the provider; pending samples can still be read
func (p *ChannelProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}
