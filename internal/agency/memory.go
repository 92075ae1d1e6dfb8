package agency

import (
	"context"
	"fmt"
	"sync"
)

type Memory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[string]Profile)}
}

func (m *Memory) Get(_ context.Context, id string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

func (m *Memory) Upsert(_ context.Context, p Profile) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.profiles[p.ID]; ok && cur.OwnerID != "" && cur.OwnerID != p.OwnerID {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotOwner, p.ID)
	}
	m.profiles[p.ID] = p
	return p, nil
}
