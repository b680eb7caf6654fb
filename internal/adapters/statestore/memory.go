package statestore

import (
	"context"
	"sync"
)

// Memory is the in-process stand-in for the hash store. It never fails.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Write(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		m.data[key] = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		m.data[key][k] = v
	}
	return nil
}

func (m *Memory) ReadAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.data[key]))
	for k, v := range m.data[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) DeleteFields(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hash, ok := m.data[key]; ok {
		for _, f := range fields {
			delete(hash, f)
		}
	}
	return nil
}
