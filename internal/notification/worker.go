package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
	"github.com/tourplanner/tourplanner-backend/internal/users"
)

const popTimeout = 2 * time.Second

type WorkerOptions struct {
	MaxAttempts int
	// RetrySchedule is a six-field cron spec (seconds first).
	RetrySchedule string
}

// Worker delivers queued jobs and periodically requeues failed ones.
type Worker struct {
	queue    *Queue
	contacts users.Directory
	senders  map[Channel]Sender
	opts     WorkerOptions
	log      *logger.Logger
}

func NewWorker(queue *Queue, contacts users.Directory, opts WorkerOptions, log *logger.Logger, senders ...Sender) *Worker {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.RetrySchedule == "" {
		opts.RetrySchedule = "0 */5 * * * *"
	}
	if log == nil {
		log = logger.Nop()
	}
	byChannel := make(map[Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Worker{queue: queue, contacts: contacts, senders: byChannel, opts: opts, log: log}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("notification worker started", "channels", len(w.senders))
	for {
		if ctx.Err() != nil {
			return nil
		}
		job, ok, err := w.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Warn("queue pop failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if ok {
			w.Process(ctx, job)
		}
	}
}

// Process delivers one job. Failed deliveries go to the retry list with the
// attempt counted.
func (w *Worker) Process(ctx context.Context, job Job) {
	log := w.log.With("job_id", job.ID, "channel", job.Channel, "recipient", job.Recipient, "event", job.Event.Type)

	sender, ok := w.senders[job.Channel]
	if !ok {
		log.Debug("channel not configured, dropping job")
		return
	}

	contact, err := w.contacts.Contact(ctx, job.Recipient)
	if errors.Is(err, users.ErrNotFound) {
		log.Info("recipient has no contact record, dropping job")
		return
	}
	if err != nil {
		w.fail(ctx, log, job, fmt.Errorf("contact lookup: %w", err))
		return
	}

	msg, ok := Compose(job, contact)
	if !ok {
		log.Debug("recipient has no address on channel, dropping job")
		return
	}

	if err := sender.Send(ctx, msg); err != nil {
		w.fail(ctx, log, job, err)
		return
	}
	log.Info("notification delivered")
}

func (w *Worker) fail(ctx context.Context, log *logger.Logger, job Job, cause error) {
	job.Attempts++
	job.LastError = cause.Error()
	log.Warn("notification delivery failed", "attempts", job.Attempts, "error", cause)

	var err error
	if job.Attempts >= w.opts.MaxAttempts {
		err = w.queue.Dead(ctx, job)
	} else {
		err = w.queue.Retry(ctx, job)
	}
	if err != nil {
		log.Error("failed to park notification job", "error", err)
	}
}

// SweepRetries moves retry jobs back onto the queue.
func (w *Worker) SweepRetries(ctx context.Context) {
	requeued, dead, err := w.queue.RequeueRetries(ctx, w.opts.MaxAttempts)
	if err != nil {
		w.log.Error("retry sweep failed", "error", err)
		return
	}
	if requeued+dead > 0 {
		w.log.Info("retry sweep finished", "requeued", requeued, "dead", dead)
	}
}

// RunRetrySweep schedules SweepRetries on the configured cron spec and
// blocks until ctx is cancelled.
func (w *Worker) RunRetrySweep(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(w.opts.RetrySchedule, func() { w.SweepRetries(ctx) }); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", w.opts.RetrySchedule, err)
	}
	c.Start()
	w.log.Info("retry sweep scheduled", "schedule", w.opts.RetrySchedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
