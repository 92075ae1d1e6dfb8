package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
)

// Notifier accepts events fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// RecipientResolver lists the users who follow an itinerary.
type RecipientResolver interface {
	Recipients(ctx context.Context, itineraryID string) ([]string, error)
}

// Dispatcher fans an event out into one job per channel and recipient. It
// never reports failure to the caller.
type Dispatcher struct {
	queue      *Queue
	recipients RecipientResolver
	log        *logger.Logger
	now        func() time.Time
}

func NewDispatcher(queue *Queue, recipients RecipientResolver, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{queue: queue, recipients: recipients, log: log, now: time.Now}
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	log := logger.FromContext(ctx, d.log).With("event", ev.Type, "itinerary_id", ev.ItineraryID)

	channels, ok := Routes[ev.Type]
	if !ok {
		log.Warn("no route for notification event")
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.now().UTC()
	}

	users, err := d.recipients.Recipients(ctx, ev.ItineraryID)
	if err != nil {
		log.Warn("failed to resolve notification recipients", "error", err)
		return
	}

	// the actor already knows; the subject of a collaborator event is told
	// even when not yet listed
	seen := map[string]bool{ev.Actor: true}
	var targets []string
	candidates := append(append([]string(nil), users...), ev.Subject)
	for _, u := range candidates {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		targets = append(targets, u)
	}

	jobs := make([]Job, 0, len(targets)*len(channels))
	for _, u := range targets {
		for _, ch := range channels {
			jobs = append(jobs, Job{ID: uuid.New().String(), Event: ev, Channel: ch, Recipient: u})
		}
	}

	if err := d.queue.Push(ctx, ev, jobs...); err != nil {
		log.Error("failed to enqueue notifications", "error", err, "jobs", len(jobs))
		return
	}
	log.Debug("notifications enqueued", "jobs", len(jobs))
}
