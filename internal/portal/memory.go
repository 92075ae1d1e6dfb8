package portal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

type Memory struct {
	mu          sync.Mutex
	invitations map[string]Invitation
}

func NewMemory() *Memory {
	return &Memory{invitations: make(map[string]Invitation)}
}

func (m *Memory) Create(_ context.Context, inv Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.invitations[inv.Token]; exists {
		return fmt.Errorf("invitation %s already exists", inv.Token)
	}
	m.invitations[inv.Token] = inv
	return nil
}

func (m *Memory) Get(_ context.Context, token string) (Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[token]
	if !ok {
		return Invitation{}, fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	return inv, nil
}

func (m *Memory) ListByItinerary(_ context.Context, itineraryID string) ([]Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invitation, 0)
	for _, inv := range m.invitations {
		if inv.ItineraryID == itineraryID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

func (m *Memory) RecordView(_ context.Context, token string, at time.Time) (Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[token]
	if !ok {
		return Invitation{}, fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	at = at.UTC()
	inv.ViewCount++
	inv.LastViewedAt = &at
	m.invitations[token] = inv
	return inv, nil
}

func (m *Memory) Decide(_ context.Context, token string, d Decision, note string, at time.Time) (Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[token]
	if !ok {
		return Invitation{}, fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	if inv.Decision != DecisionPending {
		return Invitation{}, fmt.Errorf("%w: invitation already %s", domain.ErrInvalidStateTransition, inv.Decision)
	}
	at = at.UTC()
	inv.Decision = d
	inv.DecisionNote = note
	inv.DecidedAt = &at
	m.invitations[token] = inv
	return inv, nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invitations[token]; !ok {
		return fmt.Errorf("%w: invitation", domain.ErrNotFound)
	}
	delete(m.invitations, token)
	return nil
}
