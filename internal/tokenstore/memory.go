package tokenstore

import "sync"

// Memory is an in-process Store.
type Memory struct {
	mu sync.RWMutex
	kv map[string]string
}

var (
	_ Store       = (*Memory)(nil)
	_ BatchSetter = (*Memory)(nil)
)

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory { return &Memory{kv: map[string]string{}} }

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	m.kv[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) SetMany(kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kv {
		m.kv[k] = v
	}
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.kv = map[string]string{}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.kv)
}
