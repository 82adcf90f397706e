package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Ticker runs a job every interval until Stop is called or the start
// context ends.
type Ticker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker builds a Ticker. interval must be positive.
func NewTicker(interval time.Duration) (*Ticker, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	return &Ticker{interval: interval}, nil
}

// Start begins ticking in the background. A second Start while running is a
// no-op.
func (t *Ticker) Start(ctx context.Context, job func(context.Context, time.Time)) error {
	if job == nil {
		return errors.New("scheduler: job is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				job(ctx, now)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the ticker and waits for an in-flight job, bounded by ctx.
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
