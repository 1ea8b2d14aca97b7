package claim

import (
	"context"
	"sync"
)

// Memory is an in-process claim set. It is safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemory returns an empty set.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

// Accept claims candidate if it has not been seen.
func (m *Memory) Accept(ctx context.Context, candidate string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if candidate == "" {
		return false, ErrEmptyCandidate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[candidate]; ok {
		return false, nil
	}
	m.seen[candidate] = struct{}{}
	return true, nil
}

// Contains reports whether candidate has been claimed.
func (m *Memory) Contains(candidate string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[candidate]
	return ok
}

// Release forgets a claim.
func (m *Memory) Release(candidate string) {
	m.mu.Lock()
	delete(m.seen, candidate)
	m.mu.Unlock()
}

// Len returns the number of claims.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
