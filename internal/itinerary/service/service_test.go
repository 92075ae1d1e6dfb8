package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourplanner/tourplanner-backend/internal/agency"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/collab"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/pricing"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/render"
	"github.com/tourplanner/tourplanner-backend/internal/itinerary/repository"
	"github.com/tourplanner/tourplanner-backend/internal/notification"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev notification.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) types() []notification.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc      *ItineraryService
	notes    *recordingNotifier
	agencies *agency.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mem := repository.NewMemory()
	notes := &recordingNotifier{}
	agencies := agency.NewMemory()
	svc := NewItineraryService(Deps{
		Itineraries: mem,
		Versions:    mem,
		Ledger:      collab.NewLedger(mem, mem, mem),
		Calculator:  pricing.NewCalculator(pricing.Options{}),
		Renderer:    render.NewRenderer(render.DefaultLayouts()),
		Agencies:    agencies,
		Notifier:    notes,
	})
	return fixture{svc: svc, notes: notes, agencies: agencies}
}

func capeTown() domain.Itinerary {
	return domain.Itinerary{
		AgencyID:  "agency-1",
		Title:     "Cape Town",
		StartDate: "2026-03-01",
		EndDate:   "2026-03-02",
		Currency:  "usd",
		Markup:    domain.FlatMarkup(decimal.NewFromInt(40)),
		Days: []domain.DayPlan{
			{Position: 2, Title: "Peninsula", Items: []domain.LineItem{{Title: "Tour", Cost: decimal.NewFromInt(50)}}},
			{Position: 1, Title: "Arrival", Items: []domain.LineItem{{Title: "Hotel", Category: "accommodation", Cost: decimal.NewFromInt(100)}}},
		},
	}
}

func TestCreateItinerary_CommitsFirstVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)

	assert.Equal(t, 1, v.Number)
	assert.Equal(t, "alice", v.Content.OwnerID)
	assert.Equal(t, domain.StatusDraft, v.Content.Status)
	assert.Equal(t, "USD", v.Content.Currency)
	assert.Equal(t, 1, v.Content.Days[0].Position)
	assert.True(t, v.Pricing.BaseCost.Equal(decimal.NewFromInt(150)))
	assert.True(t, v.Pricing.SellPrice.Equal(decimal.NewFromInt(190)))

	role, err := f.svc.ledger.RoleOf(ctx, v.ItineraryID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleApprover, role)
	assert.Equal(t, []notification.EventType{notification.EventVersionCommitted}, f.notes.types())
}

func TestCreateItinerary_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := capeTown()
	in.Title = " "
	_, err := f.svc.CreateItinerary(ctx, "alice", in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = capeTown()
	in.Days[0].Items[0].Cost = decimal.NewFromInt(-1)
	_, err = f.svc.CreateItinerary(ctx, "alice", in)
	assert.ErrorIs(t, err, domain.ErrInvalidCost)

	in = capeTown()
	in.Markup = domain.PercentageMarkup(decimal.RequireFromString("1.5"))
	_, err = f.svc.CreateItinerary(ctx, "alice", in)
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)

	_, err = f.svc.CreateItinerary(ctx, "", capeTown())
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := f.svc.ListItineraries(ctx, "alice", "agency-1")
	require.NoError(t, err)
	assert.Empty(t, list, "rejected input must not leave records behind")
}

func TestUpdateItinerary_VersionsAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)

	in := v1.Content
	in.Days[0].Items[0].Cost = decimal.NewFromInt(300)
	in.OwnerID = "mallory"
	v2, err := f.svc.UpdateItinerary(ctx, "alice", v1.ItineraryID, in)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)
	assert.Equal(t, "alice", v2.Content.OwnerID, "owner is not editable")
	assert.True(t, v2.Pricing.BaseCost.Equal(decimal.NewFromInt(350)))

	got, err := f.svc.GetVersion(ctx, "alice", v1.ItineraryID, 1)
	require.NoError(t, err)
	assert.True(t, got.Pricing.BaseCost.Equal(decimal.NewFromInt(150)))

	latest, err := f.svc.GetVersion(ctx, "alice", v1.ItineraryID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Number)

	snap, err := f.svc.ComputePricing(ctx, "alice", v1.ItineraryID)
	require.NoError(t, err)
	assert.True(t, snap.SellPrice.Equal(decimal.NewFromInt(390)))

	var numbers []int
	seq, err := f.svc.ListVersions(ctx, "alice", v1.ItineraryID)
	require.NoError(t, err)
	for v, err := range seq {
		require.NoError(t, err)
		numbers = append(numbers, v.Number)
	}
	assert.Equal(t, []int{1, 2}, numbers)
}

func TestPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)
	id := v.ItineraryID

	_, err = f.svc.GetItinerary(ctx, "stranger", id)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.AddCollaborator(ctx, "alice", id, "victor", domain.RoleViewer)
	require.NoError(t, err)

	_, err = f.svc.GetItinerary(ctx, "victor", id)
	require.NoError(t, err)
	_, err = f.svc.CommitVersion(ctx, "victor", id)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.AddCollaborator(ctx, "victor", id, "eve", domain.RoleApprover)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, f.svc.ArchiveItinerary(ctx, "victor", id), domain.ErrForbidden)

	_, err = f.svc.GetItinerary(ctx, "alice", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApprovedItineraryIsLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)
	id := v.ItineraryID

	_, err = f.svc.TransitionStatus(ctx, "alice", id, domain.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition, "draft cannot jump to approved")

	it, err := f.svc.TransitionStatus(ctx, "alice", id, domain.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, it.Status)
	it, err = f.svc.TransitionStatus(ctx, "alice", id, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, it.Status)

	_, err = f.svc.CommitVersion(ctx, "alice", id)
	assert.ErrorIs(t, err, domain.ErrItineraryLocked)
	_, err = f.svc.UpdateItinerary(ctx, "alice", id, v.Content)
	assert.ErrorIs(t, err, domain.ErrItineraryLocked)

	latest, err := f.svc.GetVersion(ctx, "alice", id, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Number, "status changes do not create versions")

	assert.Contains(t, f.notes.types(), notification.EventStatusChanged)
}

func TestConcurrentCommitVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CommitVersion(ctx, "alice", v.ItineraryID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	latest, err := f.svc.GetVersion(ctx, "alice", v.ItineraryID, 0)
	require.NoError(t, err)
	assert.Equal(t, writers+1, latest.Number)
}

func TestDuplicateAndArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)
	_, err = f.svc.AddCollaborator(ctx, "alice", v.ItineraryID, "bob", domain.RoleViewer)
	require.NoError(t, err)

	cp, err := f.svc.DuplicateItinerary(ctx, "bob", v.ItineraryID)
	require.NoError(t, err)
	assert.NotEqual(t, v.ItineraryID, cp.ItineraryID)
	assert.Equal(t, "Cape Town (Copy)", cp.Content.Title)
	assert.Equal(t, "bob", cp.Content.OwnerID)
	assert.Equal(t, 1, cp.Number)
	assert.True(t, cp.Pricing.SellPrice.Equal(v.Pricing.SellPrice))

	require.NoError(t, f.svc.ArchiveItinerary(ctx, "alice", v.ItineraryID))
	list, err := f.svc.ListItineraries(ctx, "bob", "agency-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cp.ItineraryID, list[0].ID)

	_, err = f.svc.GetVersion(ctx, "alice", v.ItineraryID, 1)
	assert.NoError(t, err, "archived versions stay readable")
	_, err = f.svc.CommitVersion(ctx, "alice", v.ItineraryID)
	assert.ErrorIs(t, err, domain.ErrItineraryLocked)
}

func TestRenderDocument_UsesAgencyBranding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.agencies.Upsert(ctx, agency.Profile{ID: "agency-1", DisplayName: "Safari Co", PrimaryColor: "#112233"})
	require.NoError(t, err)

	in := capeTown()
	in.Branding.SecondaryColor = "#445566"
	v, err := f.svc.CreateItinerary(ctx, "alice", in)
	require.NoError(t, err)

	doc, err := f.svc.RenderDocument(ctx, "alice", RenderRequest{ItineraryID: v.ItineraryID, Layout: "Modern", Format: render.FormatHTML})
	require.NoError(t, err)
	assert.Equal(t, "modern", doc.Layout)
	body := string(doc.Body)
	assert.Contains(t, body, "Safari Co")
	assert.Contains(t, body, "#112233")
	assert.Contains(t, body, "#445566")

	pdf, err := f.svc.RenderDocument(ctx, "alice", RenderRequest{ItineraryID: v.ItineraryID, Version: 1, Layout: "classic", Format: render.FormatPDF})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))

	_, err = f.svc.RenderDocument(ctx, "alice", RenderRequest{ItineraryID: v.ItineraryID, Layout: "poster", Format: render.FormatPDF})
	assert.ErrorIs(t, err, domain.ErrUnknownLayout)
	_, err = f.svc.RenderDocument(ctx, "alice", RenderRequest{ItineraryID: v.ItineraryID, Version: 7, Layout: "classic", Format: render.FormatPDF})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	docs, err := f.svc.PreviewLayouts(ctx, "alice", v.ItineraryID, render.FormatHTML)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "classic", docs[0].Layout)
}

func TestRenderDocument_UnknownAgencyUsesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)

	doc, err := f.svc.RenderDocument(ctx, "alice", RenderRequest{ItineraryID: v.ItineraryID, Layout: "classic", Format: render.FormatHTML})
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), render.DefaultPoweredBy)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)
	id := v.ItineraryID
	_, err = f.svc.AddCollaborator(ctx, "alice", id, "carol", domain.RoleViewer)
	require.NoError(t, err)
	_, err = f.svc.AddCollaborator(ctx, "alice", id, "dave", domain.RoleViewer)
	require.NoError(t, err)

	c, err := f.svc.AddComment(ctx, "carol", id, 1, "Can we add a wine tour?")
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, "carol", id, 5, "later version")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.ResolveComment(ctx, "dave", c.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden, "viewers resolve only their own comments")

	resolved, err := f.svc.ResolveComment(ctx, "carol", c.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	list, err := f.svc.ListComments(ctx, "alice", id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Resolved)

	collabs, err := f.svc.ListCollaborators(ctx, "carol", id)
	require.NoError(t, err)
	assert.Len(t, collabs, 3)

	assert.Contains(t, f.notes.types(), notification.EventCommentAdded)
	assert.Contains(t, f.notes.types(), notification.EventCollaboratorAdded)
}

// approvingStore approves the itinerary right before every commit, the way
// an approver acting between the service's check and the write would.
type approvingStore struct {
	*repository.Memory
}

func (s approvingStore) Commit(ctx context.Context, it domain.Itinerary, snap domain.PricingSnapshot, actor string) (domain.Version, error) {
	if err := s.SetStatus(ctx, it.ID, domain.StatusSent, domain.StatusApproved); err != nil {
		return domain.Version{}, err
	}
	return s.Memory.Commit(ctx, it, snap, actor)
}

func TestCommit_ApprovalBetweenCheckAndWrite(t *testing.T) {
	mem := repository.NewMemory()
	svc := NewItineraryService(Deps{
		Itineraries: mem,
		Versions:    approvingStore{mem},
		Ledger:      collab.NewLedger(mem, mem, mem),
		Calculator:  pricing.NewCalculator(pricing.Options{}),
		Renderer:    render.NewRenderer(render.DefaultLayouts()),
	})
	ctx := context.Background()

	v, err := mem.CreateWithFirstVersion(ctx, capeTown(), domain.PricingSnapshot{}, "alice")
	require.NoError(t, err)
	require.NoError(t, mem.SetStatus(ctx, v.ItineraryID, domain.StatusDraft, domain.StatusSent))

	_, err = svc.UpdateItinerary(ctx, "alice", v.ItineraryID, capeTown())
	assert.ErrorIs(t, err, domain.ErrItineraryLocked)

	latest, err := mem.Latest(ctx, v.ItineraryID)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Number, "no version lands on an approved itinerary")
}

type failingCreateStore struct {
	*repository.Memory
}

func (failingCreateStore) CreateWithFirstVersion(context.Context, domain.Itinerary, domain.PricingSnapshot, string) (domain.Version, error) {
	return domain.Version{}, errors.New("connection reset")
}

func TestCreateItinerary_StoreFailureLeavesNothing(t *testing.T) {
	mem := repository.NewMemory()
	notes := &recordingNotifier{}
	svc := NewItineraryService(Deps{
		Itineraries: failingCreateStore{mem},
		Versions:    mem,
		Ledger:      collab.NewLedger(mem, mem, mem),
		Calculator:  pricing.NewCalculator(pricing.Options{}),
		Renderer:    render.NewRenderer(render.DefaultLayouts()),
		Notifier:    notes,
	})
	ctx := context.Background()

	_, err := svc.CreateItinerary(ctx, "alice", capeTown())
	require.Error(t, err)

	list, err := mem.ListItineraries(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, notes.types())
}

func TestListItineraries_OnlyWhereActorHasARole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateItinerary(ctx, "alice", capeTown())
	require.NoError(t, err)

	list, err := f.svc.ListItineraries(ctx, "mallory", "agency-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.AddCollaborator(ctx, "alice", v.ItineraryID, "bob", domain.RoleViewer)
	require.NoError(t, err)
	list, err = f.svc.ListItineraries(ctx, "bob", "agency-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, v.ItineraryID, list[0].ID)

	_, err = f.svc.ListItineraries(ctx, "", "agency-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// stallingNotifier blocks until its context ends, like an unreachable queue.
type stallingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *stallingNotifier) Notify(ctx context.Context, _ notification.Event) {
	<-ctx.Done()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, ctx.Err())
}

func TestNotify_IsBoundedByTimeout(t *testing.T) {
	mem := repository.NewMemory()
	notes := &stallingNotifier{}
	svc := NewItineraryService(Deps{
		Itineraries:   mem,
		Versions:      mem,
		Ledger:        collab.NewLedger(mem, mem, mem),
		Calculator:    pricing.NewCalculator(pricing.Options{}),
		Renderer:      render.NewRenderer(render.DefaultLayouts()),
		Notifier:      notes,
		NotifyTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	_, err := svc.CreateItinerary(context.Background(), "alice", capeTown())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	notes.mu.Lock()
	defer notes.mu.Unlock()
	require.Len(t, notes.errs, 1)
	assert.ErrorIs(t, notes.errs[0], context.DeadlineExceeded)
}

func TestCreateItinerary_PricesExtensionsSeparately(t *testing.T) {
	f := newFixture(t)
	in := capeTown()
	in.Extensions = []domain.Extension{{Title: " Winelands day ", AdditionalCost: decimal.NewFromInt(80)}}

	v, err := f.svc.CreateItinerary(context.Background(), "alice", in)
	require.NoError(t, err)
	assert.True(t, v.Pricing.SellPrice.Equal(decimal.NewFromInt(190)))
	assert.True(t, v.Pricing.ExtensionsTotal.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, "Winelands day", v.Content.Extensions[0].Title)

	in.Extensions = []domain.Extension{{Title: "", AdditionalCost: decimal.NewFromInt(1)}}
	_, err = f.svc.CreateItinerary(context.Background(), "alice", in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
