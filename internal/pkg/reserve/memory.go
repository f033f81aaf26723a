package reserve

import (
	"context"
	"sync"
)

// MemoryReserver keeps reservations in process memory.
type MemoryReserver struct {
	mu      sync.Mutex
	holders map[int64]string
}

// NewMemoryReserver creates an empty MemoryReserver.
func NewMemoryReserver() *MemoryReserver {
	return &MemoryReserver{holders: make(map[int64]string)}
}

func (m *MemoryReserver) Reserve(_ context.Context, accountID int64, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.holders[accountID]; ok && cur != holder {
		return ErrReserved
	}
	m.holders[accountID] = holder
	return nil
}

func (m *MemoryReserver) Rebind(_ context.Context, accountID int64, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[accountID] != from {
		return ErrNotHolder
	}
	m.holders[accountID] = to
	return nil
}

func (m *MemoryReserver) Release(_ context.Context, accountID int64, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.holders[accountID]
	if !ok || cur != holder {
		return ErrNotHolder
	}
	delete(m.holders, accountID)
	return nil
}

func (m *MemoryReserver) Holder(_ context.Context, accountID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holders[accountID]
	return h, ok, nil
}

func (m *MemoryReserver) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.holders)
	return nil
}
