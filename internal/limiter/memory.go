package limiter

import (
	"context"
	"sync"
	"time"
)

type attempt struct {
	fails        int
	first        time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with the same policy as PG. Used by the dev server.
type Memory struct {
	mu     sync.Mutex
	policy Policy
	byKey  map[string]*attempt
	now    func() time.Time
}

// NewMemory constructs an in-memory limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, byKey: map[string]*attempt{}, now: time.Now}
}

func key(email string, ipHash []byte) string { return email + "\x00" + string(ipHash) }

func (m *Memory) Allow(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byKey[key(email, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); a.blockedUntil.After(now) {
		return false, a.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

func (m *Memory) Success(_ context.Context, email string, ipHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, key(email, ipHash))
	return nil
}

func (m *Memory) Failure(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := key(email, ipHash)
	a, ok := m.byKey[k]
	if !ok || now.Sub(a.first) > m.policy.Window {
		a = &attempt{first: now}
		m.byKey[k] = a
	}
	a.fails++
	if a.fails < m.policy.MaxFails {
		return false, 0, nil
	}
	a.blockedUntil = now.Add(m.policy.BlockFor)
	return true, m.policy.BlockFor, nil
}
