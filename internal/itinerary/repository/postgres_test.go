package repository

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/storage/postgres"
)

// setupTestPostgres migrates the database named by TEST_DB_DSN and returns a
// store on it. The test is skipped when TEST_DB_DSN is not set.
func setupTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping PostgreSQL integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer sqlDB.Close()
	_, err = postgres.Migrate(ctx, sqlDB)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgres(pool)
}

func TestPostgres_VersionLifecycle(t *testing.T) {
	store := setupTestPostgres(t)
	ctx := context.Background()

	it, err := store.CreateItinerary(ctx, domain.Itinerary{
		ID:       uuid.New().String(),
		AgencyID: "agency-it",
		Title:    "Lisbon",
		Currency: "EUR",
		Status:   domain.StatusDraft,
		Markup:   domain.FlatMarkup(decimal.NewFromInt(20)),
		Days: []domain.DayPlan{
			{Position: 1, Items: []domain.LineItem{{Title: "Hotel", Cost: decimal.NewFromInt(100)}}},
		},
	})
	require.NoError(t, err)

	_, err = store.Latest(ctx, it.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	v1, err := store.Commit(ctx, it, domain.PricingSnapshot{BaseCost: decimal.NewFromInt(100), Currency: "EUR"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)

	it.Days[0].Items[0].Cost = decimal.NewFromInt(300)
	v2, err := store.Commit(ctx, it, domain.PricingSnapshot{BaseCost: decimal.NewFromInt(300), Currency: "EUR"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)

	got, err := store.Get(ctx, it.ID, 1)
	require.NoError(t, err)
	assert.True(t, got.Content.Days[0].Items[0].Cost.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.Pricing.BaseCost.Equal(decimal.NewFromInt(100)))

	var numbers []int
	for v, err := range store.List(ctx, it.ID) {
		require.NoError(t, err)
		numbers = append(numbers, v.Number)
	}
	assert.Equal(t, []int{1, 2}, numbers)

	require.NoError(t, store.SetStatus(ctx, it.ID, domain.StatusDraft, domain.StatusSent))
	err = store.SetStatus(ctx, it.ID, domain.StatusDraft, domain.StatusSent)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestPostgres_ConcurrentCommits(t *testing.T) {
	store := setupTestPostgres(t)
	ctx := context.Background()

	it, err := store.CreateItinerary(ctx, domain.Itinerary{
		ID: uuid.New().String(), AgencyID: "agency-it", Title: "Race", Currency: "USD", Status: domain.StatusDraft,
	})
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Commit(ctx, it, domain.PricingSnapshot{}, "writer")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	latest, err := store.Latest(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, writers, latest.Number)
}

func TestPostgres_Comments(t *testing.T) {
	store := setupTestPostgres(t)
	ctx := context.Background()

	it, err := store.CreateItinerary(ctx, domain.Itinerary{
		ID: uuid.New().String(), AgencyID: "agency-it", Title: "Notes", Currency: "USD", Status: domain.StatusDraft,
	})
	require.NoError(t, err)
	_, err = store.Commit(ctx, it, domain.PricingSnapshot{}, "alice")
	require.NoError(t, err)

	err = store.InsertComment(ctx, domain.Comment{ID: uuid.New().String(), ItineraryID: it.ID, VersionNumber: 9, Author: "a", Body: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	id := uuid.New().String()
	require.NoError(t, store.InsertComment(ctx, domain.Comment{ID: id, ItineraryID: it.ID, VersionNumber: 1, Author: "a", Body: "x", CreatedAt: time.Now()}))

	first, err := store.ResolveComment(ctx, id, time.Now())
	require.NoError(t, err)
	second, err := store.ResolveComment(ctx, id, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, second.Resolved)
	assert.True(t, first.ResolvedAt.Equal(*second.ResolvedAt))
}

func TestPostgres_CreateWithFirstVersionAndLocking(t *testing.T) {
	store := setupTestPostgres(t)
	ctx := context.Background()
	owner := "owner-" + uuid.New().String()

	v, err := store.CreateWithFirstVersion(ctx, domain.Itinerary{
		AgencyID: "agency-it", Title: "Atomic", Currency: "USD", Status: domain.StatusDraft,
	}, domain.PricingSnapshot{BaseCost: decimal.NewFromInt(5), Currency: "USD"}, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Number)

	role, err := store.Role(ctx, v.ItineraryID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleApprover, role)

	mine, err := store.ListItineraries(ctx, "agency-it", owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, v.ItineraryID, mine[0].ID)

	// duplicate id rolls back the whole create
	_, err = store.CreateWithFirstVersion(ctx, domain.Itinerary{ID: v.ItineraryID, AgencyID: "agency-it", Title: "Dup"}, domain.PricingSnapshot{}, "intruder")
	require.Error(t, err)
	_, err = store.Role(ctx, v.ItineraryID, "intruder")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SetStatus(ctx, v.ItineraryID, domain.StatusDraft, domain.StatusSent))
	require.NoError(t, store.SetStatus(ctx, v.ItineraryID, domain.StatusSent, domain.StatusApproved))
	_, err = store.Commit(ctx, v.Content, domain.PricingSnapshot{}, owner)
	assert.ErrorIs(t, err, domain.ErrItineraryLocked)
}
