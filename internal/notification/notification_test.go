package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourplanner/tourplanner-backend/internal/users"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

type staticRecipients struct {
	users []string
	err   error
}

func (s staticRecipients) Recipients(context.Context, string) ([]string, error) {
	return s.users, s.err
}

func queued(t *testing.T, mr *miniredis.Miniredis, key string) []Job {
	t.Helper()
	if !mr.Exists(key) {
		return nil
	}
	raw, err := mr.List(key)
	require.NoError(t, err)
	out := make([]Job, 0, len(raw))
	for _, r := range raw {
		var j Job
		require.NoError(t, json.Unmarshal([]byte(r), &j))
		out = append(out, j)
	}
	return out
}

func TestDispatcher_FansOutByRoute(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewDispatcher(NewQueue(client), staticRecipients{users: []string{"owner", "editor", "viewer"}}, nil)

	d.Notify(context.Background(), Event{Type: EventStatusChanged, ItineraryID: "it-1", Actor: "owner", Status: "sent"})

	jobs := queued(t, mr, QueueKey)
	require.Len(t, jobs, 4, "two recipients on two channels, actor excluded")
	for _, j := range jobs {
		assert.NotEqual(t, "owner", j.Recipient)
		assert.NotEmpty(t, j.ID)
		assert.False(t, j.Event.OccurredAt.IsZero())
	}
	assert.Equal(t, ChannelEmail, jobs[0].Channel)
	assert.Equal(t, ChannelWhatsApp, jobs[1].Channel)
}

func TestDispatcher_CollaboratorSubjectIsNotified(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewDispatcher(NewQueue(client), staticRecipients{users: []string{"owner"}}, nil)

	d.Notify(context.Background(), Event{Type: EventCollaboratorAdded, ItineraryID: "it-1", Actor: "owner", Subject: "newbie"})

	jobs := queued(t, mr, QueueKey)
	require.Len(t, jobs, 2)
	assert.Equal(t, "newbie", jobs[0].Recipient)
}

func TestDispatcher_PublishesEvent(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, EventChannel("it-1"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	d := NewDispatcher(NewQueue(client), staticRecipients{users: []string{"a"}}, nil)
	d.Notify(ctx, Event{Type: EventVersionCommitted, ItineraryID: "it-1", VersionNumber: 2})

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, EventVersionCommitted, ev.Type)
		assert.Equal(t, 2, ev.VersionNumber)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewDispatcher(NewQueue(client), staticRecipients{err: errors.New("db down")}, nil)
	d.Notify(context.Background(), Event{Type: EventCommentAdded, ItineraryID: "it-1"})
	assert.Empty(t, queued(t, mr, QueueKey))

	d = NewDispatcher(NewQueue(client), staticRecipients{users: []string{"a"}}, nil)
	mr.Close()
	assert.NotPanics(t, func() {
		d.Notify(context.Background(), Event{Type: EventCommentAdded, ItineraryID: "it-1"})
	})
}

func TestQueue_RequeueRetries(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewQueue(client)
	ctx := context.Background()

	require.NoError(t, q.Retry(ctx, Job{ID: "fresh", Attempts: 1}))
	require.NoError(t, q.Retry(ctx, Job{ID: "spent", Attempts: 3}))
	require.NoError(t, client.RPush(ctx, RetryKey, "{garbage").Err())

	requeued, dead, err := q.RequeueRetries(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	assert.Equal(t, 2, dead)

	jobs := queued(t, mr, QueueKey)
	require.Len(t, jobs, 1)
	assert.Equal(t, "fresh", jobs[0].ID)
	n, err := q.Len(ctx, RetryKey)
	require.NoError(t, err)
	assert.Zero(t, n)

	job, ok, err := q.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", job.ID)

	_, ok, err = q.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

type capture struct {
	mu       sync.Mutex
	requests []map[string]any
	auth     []string
	status   int
}

func (c *capture) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		c.mu.Lock()
		c.requests = append(c.requests, m)
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		status := c.status
		c.mu.Unlock()
		if status == 0 {
			status = http.StatusAccepted
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWorker_DeliversAndRetries(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	q := NewQueue(client)

	dir := users.NewMemory()
	_, err := dir.EnsureUser(ctx, users.UpsertUser{ID: "ann", Email: "ann@example.com", DisplayName: "Ann", WhatsAppNumber: "+100"})
	require.NoError(t, err)
	_, err = dir.EnsureUser(ctx, users.UpsertUser{ID: "bob"}) // no addresses
	require.NoError(t, err)

	email := &capture{}
	wa := &capture{status: http.StatusInternalServerError}
	emailSrv := email.server(t)
	waSrv := wa.server(t)

	w := NewWorker(q, dir, WorkerOptions{MaxAttempts: 2}, nil,
		NewEmailSender(emailSrv.URL, "key", "noreply@example.com"),
		NewWhatsAppSender(waSrv.URL, "token"))

	ev := Event{Type: EventStatusChanged, ItineraryID: "it-1", ItineraryTitle: "Cape Town", Actor: "owner", Status: "sent"}

	w.Process(ctx, Job{ID: "1", Event: ev, Channel: ChannelEmail, Recipient: "ann"})
	require.Len(t, email.requests, 1)
	assert.Equal(t, "ann@example.com", email.requests[0]["to"])
	assert.Equal(t, "noreply@example.com", email.requests[0]["from"])
	assert.Equal(t, "Cape Town is now sent", email.requests[0]["subject"])
	assert.Equal(t, "Bearer key", email.auth[0])

	// no address and unknown recipients are dropped without retry
	w.Process(ctx, Job{ID: "2", Event: ev, Channel: ChannelEmail, Recipient: "bob"})
	w.Process(ctx, Job{ID: "3", Event: ev, Channel: ChannelEmail, Recipient: "ghost"})
	assert.Len(t, email.requests, 1)

	w.Process(ctx, Job{ID: "4", Event: ev, Channel: ChannelWhatsApp, Recipient: "ann"})
	require.Len(t, wa.requests, 1)
	assert.Equal(t, "+100", wa.requests[0]["to"])
	retry := queued(t, mr, RetryKey)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].Attempts)
	assert.Contains(t, retry[0].LastError, "status 500")

	// second failure reaches MaxAttempts
	w.Process(ctx, retry[0])
	dead := queued(t, mr, DeadKey)
	require.Len(t, dead, 1)
	assert.Equal(t, 2, dead[0].Attempts)
}

func TestWorker_RunDrainsQueue(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewQueue(client)

	dir := users.NewMemory()
	_, err := dir.EnsureUser(ctx, users.UpsertUser{ID: "ann", Email: "ann@example.com"})
	require.NoError(t, err)

	email := &capture{}
	srv := email.server(t)
	w := NewWorker(q, dir, WorkerOptions{}, nil, NewEmailSender(srv.URL, "k", "f@example.com"))

	require.NoError(t, q.Push(ctx, Event{ItineraryID: "it-1"},
		Job{ID: "1", Event: Event{Type: EventCommentAdded, ItineraryID: "it-1", VersionNumber: 1}, Channel: ChannelEmail, Recipient: "ann"}))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		email.mu.Lock()
		defer email.mu.Unlock()
		return len(email.requests) == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_RetrySweepRejectsBadSchedule(t *testing.T) {
	client, _ := setupTestRedis(t)
	w := NewWorker(NewQueue(client), users.NewMemory(), WorkerOptions{RetrySchedule: "not a schedule"}, nil)
	err := w.RunRetrySweep(context.Background())
	assert.Error(t, err)
}

func TestCompose(t *testing.T) {
	c := users.Contact{ID: "ann", Email: "ann@example.com", DisplayName: "Ann"}
	ev := Event{Type: EventCollaboratorAdded, ItineraryTitle: "Lisbon", Actor: "owner", Subject: "ann"}

	msg, ok := Compose(Job{Event: ev, Channel: ChannelEmail, Recipient: "ann"}, c)
	require.True(t, ok)
	assert.Equal(t, "You have access to Lisbon", msg.Subject)

	msg, ok = Compose(Job{Event: ev, Channel: ChannelEmail, Recipient: "other"}, c)
	require.True(t, ok)
	assert.Equal(t, "Lisbon: new collaborator", msg.Subject)

	_, ok = Compose(Job{Event: ev, Channel: ChannelWhatsApp, Recipient: "ann"}, c)
	assert.False(t, ok)
}
