package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Memory is a Directory for tests and database-less runs.
type Memory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

func NewMemory() *Memory {
	return &Memory{contacts: make(map[string]Contact)}
}

func (m *Memory) EnsureUser(_ context.Context, u UpsertUser) (Contact, error) {
	if strings.TrimSpace(u.ID) == "" {
		return Contact{}, fmt.Errorf("user id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.contacts[u.ID]
	c.ID = u.ID
	if u.Email != "" {
		c.Email = u.Email
	}
	if u.DisplayName != "" {
		c.DisplayName = u.DisplayName
	}
	if u.WhatsAppNumber != "" {
		c.WhatsAppNumber = u.WhatsAppNumber
	}
	m.contacts[u.ID] = c
	return c, nil
}

func (m *Memory) Contact(_ context.Context, id string) (Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contacts[id]
	if !ok {
		return Contact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}
