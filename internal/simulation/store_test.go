package simulation_test

import (
	"context"
	"sync"
)

// memStore is an in-memory skills.StateStore.
type memStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	failSave error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) SaveModuleState(_ context.Context, moduleID, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.data[moduleID+"/"+key] = append([]byte(nil), payload...)
	return nil
}

func (m *memStore) LoadModuleState(_ context.Context, moduleID, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[moduleID+"/"+key]
	return p, ok, nil
}
