// Package lock provides the per-user single-flight guard around digest cycles.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned by TryLock when someone else holds the key.
var ErrHeld = errors.New("lock held")

// Unlock releases a lock obtained from TryLock.
type Unlock func()

// Locker grants exclusive, non-blocking ownership of a key.
type Locker interface {
	TryLock(ctx context.Context, key string) (Unlock, error)
}

// Memory is a process-local Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory creates an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

// TryLock acquires key or returns ErrHeld immediately.
func (m *Memory) TryLock(_ context.Context, key string) (Unlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, ErrHeld
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
