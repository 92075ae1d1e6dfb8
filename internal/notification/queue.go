package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	QueueKey = "notify:queue"
	RetryKey = "notify:retry"
	DeadKey  = "notify:dead"

	eventChannelPrefix = "notify:events:"
)

// EventChannel is the pub/sub channel that carries an itinerary's events.
func EventChannel(itineraryID string) string {
	return eventChannelPrefix + itineraryID
}

// Queue is a redis list backed job queue with retry and dead-letter lists.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Push appends jobs to the main queue and publishes ev in one pipeline.
func (q *Queue) Push(ctx context.Context, ev Event, jobs ...Job) error {
	pipe := q.client.Pipeline()
	for _, j := range jobs {
		raw, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("failed to encode job: %w", err)
		}
		pipe.RPush(ctx, QueueKey, raw)
	}
	if raw, err := json.Marshal(ev); err == nil {
		pipe.Publish(ctx, EventChannel(ev.ItineraryID), raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue notifications: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next job. ok is false on timeout.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (job Job, ok bool, err error) {
	res, err := q.client.BLPop(ctx, timeout, QueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	// res is [key, value]
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, false, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, true, nil
}

func (q *Queue) push(ctx context.Context, key string, j Job) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return q.client.RPush(ctx, key, raw).Err()
}

func (q *Queue) Retry(ctx context.Context, j Job) error { return q.push(ctx, RetryKey, j) }
func (q *Queue) Dead(ctx context.Context, j Job) error  { return q.push(ctx, DeadKey, j) }

// RequeueRetries drains the retry list: jobs below maxAttempts go back to
// the queue, the rest to the dead-letter list.
func (q *Queue) RequeueRetries(ctx context.Context, maxAttempts int) (requeued, dead int, err error) {
	for {
		raw, err := q.client.LPop(ctx, RetryKey).Result()
		if errors.Is(err, redis.Nil) {
			return requeued, dead, nil
		}
		if err != nil {
			return requeued, dead, err
		}
		var j Job
		if err := json.Unmarshal([]byte(raw), &j); err != nil {
			// unreadable entries are parked as-is
			if err := q.client.RPush(ctx, DeadKey, raw).Err(); err != nil {
				return requeued, dead, err
			}
			dead++
			continue
		}
		if j.Attempts >= maxAttempts {
			if err := q.Dead(ctx, j); err != nil {
				return requeued, dead, err
			}
			dead++
			continue
		}
		if err := q.push(ctx, QueueKey, j); err != nil {
			return requeued, dead, err
		}
		requeued++
	}
}

// Len reports the length of one of the queue lists.
func (q *Queue) Len(ctx context.Context, key string) (int64, error) {
	return q.client.LLen(ctx, key).Result()
}
