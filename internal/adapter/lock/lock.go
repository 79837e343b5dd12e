// Package lock serializes work on a single conversation across goroutines and
// processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives a held lock back.
type Release func(ctx context.Context) error

// Locker hands out per-conversation locks. Acquire never blocks waiting for
// the current holder; it returns ErrNotAcquired instead. Use Wait to queue
// behind the holder.
type Locker interface {
	Acquire(ctx context.Context, conversationID string) (Release, error)
}

// MemoryLocker is a process-local Locker used when no Redis is configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// Acquire implements Locker.
func (m *MemoryLocker) Acquire(ctx context.Context, conversationID string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[conversationID]; ok {
		return nil, ErrNotAcquired
	}
	m.held[conversationID] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, conversationID)
			m.mu.Unlock()
		})
		return nil
	}, nil
}

// Wait acquires the lock for conversationID, retrying with exponential backoff
// while another holder owns it. It gives up with ErrNotAcquired after maxWait;
// a non-positive maxWait tries once.
func Wait(ctx context.Context, l Locker, conversationID string, maxWait time.Duration) (Release, error) {
	if maxWait <= 0 {
		return l.Acquire(ctx, conversationID)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = maxWait

	var release Release
	op := func() error {
		var err error
		release, err = l.Acquire(ctx, conversationID)
		if err == nil || errors.Is(err, ErrNotAcquired) {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return release, nil
}
