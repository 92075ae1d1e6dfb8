package repository

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

// Memory is an in-process implementation of every store. It backs tests and
// the API when no database is configured.
type Memory struct {
	mu          sync.RWMutex
	itineraries map[string]*itineraryRecord
	collabs     map[string]map[string]domain.Collaborator // itinerary -> user -> collaborator
	comments    map[string]*domain.Comment
	order       []string // comment ids in insertion order

	now func() time.Time
}

// itineraryRecord serializes writers with mu; readers load the published
// slice without taking the lock.
type itineraryRecord struct {
	mu       sync.Mutex
	live     atomic.Pointer[domain.Itinerary]
	versions atomic.Pointer[[]domain.Version]
}

func NewMemory() *Memory {
	return &Memory{
		itineraries: make(map[string]*itineraryRecord),
		collabs:     make(map[string]map[string]domain.Collaborator),
		comments:    make(map[string]*domain.Comment),
		now:         time.Now,
	}
}

func (m *Memory) record(id string) (*itineraryRecord, error) {
	m.mu.RLock()
	rec, ok := m.itineraries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: itinerary %s", domain.ErrNotFound, id)
	}
	return rec, nil
}

func (m *Memory) CreateItinerary(_ context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	rec, it := m.newRecord(it)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.itineraries[it.ID]; exists {
		return domain.Itinerary{}, fmt.Errorf("itinerary %s already exists", it.ID)
	}
	m.itineraries[it.ID] = rec
	return it.Clone(), nil
}

// CreateWithFirstVersion publishes the itinerary, its approver and version 1
// under one lock. Nothing is visible if any part is rejected.
func (m *Memory) CreateWithFirstVersion(_ context.Context, it domain.Itinerary, snap domain.PricingSnapshot, actor string) (domain.Version, error) {
	if actor == "" {
		return domain.Version{}, fmt.Errorf("%w: approver is required", domain.ErrValidation)
	}
	rec, it := m.newRecord(it)
	v := domain.Version{
		ItineraryID: it.ID,
		Number:      1,
		Content:     it.Clone(),
		Pricing:     snap,
		CreatedAt:   it.UpdatedAt,
		CreatedBy:   actor,
	}
	versions := []domain.Version{v}
	rec.versions.Store(&versions)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.itineraries[it.ID]; exists {
		return domain.Version{}, fmt.Errorf("itinerary %s already exists", it.ID)
	}
	m.itineraries[it.ID] = rec
	m.collabs[it.ID] = map[string]domain.Collaborator{
		actor: {ItineraryID: it.ID, UserID: actor, Role: domain.RoleApprover, UpdatedAt: it.UpdatedAt},
	}
	return v.Clone(), nil
}

// newRecord fills id and timestamps and builds an unpublished record.
func (m *Memory) newRecord(it domain.Itinerary) (*itineraryRecord, domain.Itinerary) {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	now := m.now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now

	rec := &itineraryRecord{}
	stored := it.Clone()
	rec.live.Store(&stored)
	empty := []domain.Version{}
	rec.versions.Store(&empty)
	return rec, it
}

func (m *Memory) GetItinerary(_ context.Context, id string) (domain.Itinerary, error) {
	rec, err := m.record(id)
	if err != nil {
		return domain.Itinerary{}, err
	}
	return rec.live.Load().Clone(), nil
}

func (m *Memory) ListItineraries(_ context.Context, agencyID, memberID string) ([]domain.Itinerary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Itinerary, 0, len(m.itineraries))
	for id, rec := range m.itineraries {
		it := rec.live.Load()
		if it.Archived || (agencyID != "" && it.AgencyID != agencyID) {
			continue
		}
		if _, ok := m.collabs[id][memberID]; memberID != "" && !ok {
			continue
		}
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SetStatus(_ context.Context, id string, from, to domain.Status) error {
	rec, err := m.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	cur := rec.live.Load().Clone()
	if cur.Status != from {
		return fmt.Errorf("%w: itinerary is %s, not %s", domain.ErrInvalidStateTransition, cur.Status, from)
	}
	cur.Status = to
	cur.UpdatedAt = m.now().UTC()
	rec.live.Store(&cur)
	return nil
}

func (m *Memory) Archive(_ context.Context, id string) error {
	rec, err := m.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	cur := rec.live.Load().Clone()
	cur.Archived = true
	cur.UpdatedAt = m.now().UTC()
	rec.live.Store(&cur)
	return nil
}

func (m *Memory) Commit(_ context.Context, it domain.Itinerary, snap domain.PricingSnapshot, actor string) (domain.Version, error) {
	rec, err := m.record(it.ID)
	if err != nil {
		return domain.Version{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	prev := *rec.versions.Load()
	now := m.now().UTC()

	cur := rec.live.Load()
	if err := lockedErr(*cur); err != nil {
		return domain.Version{}, err
	}

	// workflow fields belong to SetStatus/Archive, not to content commits
	live := it.Clone()
	live.Status = cur.Status
	live.Archived = cur.Archived
	live.CreatedAt = cur.CreatedAt
	live.UpdatedAt = now
	v := domain.Version{
		ItineraryID: it.ID,
		Number:      len(prev) + 1,
		Content:     live.Clone(),
		Pricing:     snap,
		CreatedAt:   now,
		CreatedBy:   actor,
	}

	// publish a fresh slice so concurrent readers never see a partial append
	next := make([]domain.Version, len(prev), len(prev)+1)
	copy(next, prev)
	next = append(next, v)

	rec.live.Store(&live)
	rec.versions.Store(&next)
	return v.Clone(), nil
}

func (m *Memory) Latest(_ context.Context, itineraryID string) (domain.Version, error) {
	rec, err := m.record(itineraryID)
	if err != nil {
		return domain.Version{}, err
	}
	versions := *rec.versions.Load()
	if len(versions) == 0 {
		return domain.Version{}, fmt.Errorf("%w: itinerary %s has no committed version", domain.ErrNotFound, itineraryID)
	}
	return versions[len(versions)-1].Clone(), nil
}

func (m *Memory) Get(_ context.Context, itineraryID string, number int) (domain.Version, error) {
	rec, err := m.record(itineraryID)
	if err != nil {
		return domain.Version{}, err
	}
	versions := *rec.versions.Load()
	if number < 1 || number > len(versions) {
		return domain.Version{}, fmt.Errorf("%w: itinerary %s version %d", domain.ErrNotFound, itineraryID, number)
	}
	return versions[number-1].Clone(), nil
}

func (m *Memory) List(_ context.Context, itineraryID string) iter.Seq2[domain.Version, error] {
	return func(yield func(domain.Version, error) bool) {
		rec, err := m.record(itineraryID)
		if err != nil {
			yield(domain.Version{}, err)
			return
		}
		for _, v := range *rec.versions.Load() {
			if !yield(v.Clone(), nil) {
				return
			}
		}
	}
}

func (m *Memory) UpsertCollaborator(_ context.Context, c domain.Collaborator) (domain.Collaborator, error) {
	if _, err := m.record(c.ItineraryID); err != nil {
		return domain.Collaborator{}, err
	}
	c.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	byUser, ok := m.collabs[c.ItineraryID]
	if !ok {
		byUser = make(map[string]domain.Collaborator)
		m.collabs[c.ItineraryID] = byUser
	}
	byUser[c.UserID] = c
	return c, nil
}

func (m *Memory) Role(_ context.Context, itineraryID, userID string) (domain.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collabs[itineraryID][userID]
	if !ok {
		return "", fmt.Errorf("%w: %s is not a collaborator on %s", domain.ErrNotFound, userID, itineraryID)
	}
	return c.Role, nil
}

func (m *Memory) ListCollaborators(_ context.Context, itineraryID string) ([]domain.Collaborator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Collaborator, 0, len(m.collabs[itineraryID]))
	for _, c := range m.collabs[itineraryID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) InsertComment(_ context.Context, c domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.comments[c.ID]; exists {
		return fmt.Errorf("comment %s already exists", c.ID)
	}
	cp := c
	m.comments[c.ID] = &cp
	m.order = append(m.order, c.ID)
	return nil
}

func (m *Memory) GetComment(_ context.Context, commentID string) (domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[commentID]
	if !ok {
		return domain.Comment{}, fmt.Errorf("%w: comment %s", domain.ErrNotFound, commentID)
	}
	return *c, nil
}

func (m *Memory) ResolveComment(_ context.Context, commentID string, at time.Time) (domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[commentID]
	if !ok {
		return domain.Comment{}, fmt.Errorf("%w: comment %s", domain.ErrNotFound, commentID)
	}
	if !c.Resolved {
		c.Resolved = true
		t := at.UTC()
		c.ResolvedAt = &t
	}
	return *c, nil
}

func (m *Memory) ListComments(_ context.Context, itineraryID string) ([]domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Comment, 0)
	for _, id := range m.order {
		if c := m.comments[id]; c.ItineraryID == itineraryID {
			out = append(out, *c)
		}
	}
	return out, nil
}
