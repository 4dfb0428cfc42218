package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	listKeyPrefix = "transcription:rq:"
	delayedKey    = "transcription:rq:delayed"
)

func listKey(queue string) string {
	return listKeyPrefix + queue
}

// Redis is an Enqueuer backed by Redis lists, one list per named queue.
// Retries are parked in a sorted set scored by their ready time and promoted
// back onto their list by the worker loop.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a Redis-backed queue from an already-connected client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Enqueue pushes a first-attempt task onto the named queue.
func (r *Redis) Enqueue(ctx context.Context, queue, jobID string) error {
	return r.push(ctx, task{Queue: queue, JobID: jobID, Attempt: 1})
}

func (r *Redis) push(ctx context.Context, t task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := r.rdb.LPush(ctx, listKey(t.Queue), payload).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Queue, err)
	}
	return nil
}

func (r *Redis) park(ctx context.Context, t task, readyAt time.Time) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	member := redis.Z{Score: float64(readyAt.UnixMilli()), Member: payload}
	if err := r.rdb.ZAdd(ctx, delayedKey, member).Err(); err != nil {
		return fmt.Errorf("park retry: %w", err)
	}
	return nil
}

// promoteDue moves tasks whose retry delay elapsed back onto their queues.
func (r *Redis) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := r.rdb.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed tasks: %w", err)
	}

	for _, member := range members {
		// Only the worker that wins the removal re-queues the task, so a
		// promoted retry is delivered once even with several workers.
		removed, err := r.rdb.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return fmt.Errorf("claim delayed task: %w", err)
		}
		if removed == 0 {
			continue
		}
		var t task
		if err := json.Unmarshal([]byte(member), &t); err != nil {
			continue
		}
		if err := r.rdb.LPush(ctx, listKey(t.Queue), member).Err(); err != nil {
			return fmt.Errorf("requeue %s: %w", t.Queue, err)
		}
	}
	return nil
}

// Worker consumes stage queues and dispatches deliveries to registered
// handlers, applying the retry policy on failure.
type Worker struct {
	broker   *Redis
	retry    RetryPolicy
	logger   *slog.Logger
	handlers map[string]Handler

	// onExhausted runs after a task burns its final attempt. The bootstrap
	// wires it to mark the job failed in the store.
	onExhausted func(ctx context.Context, jobID string, err error)
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) WorkerOption {
	return func(w *Worker) { w.retry = p }
}

// WithExhaustedFunc sets the callback invoked when a task runs out of
// retries.
func WithExhaustedFunc(fn func(ctx context.Context, jobID string, err error)) WorkerOption {
	return func(w *Worker) { w.onExhausted = fn }
}

// NewWorker creates a worker bound to the given broker.
func NewWorker(broker *Redis, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		broker:   broker,
		retry:    DefaultRetryPolicy(),
		logger:   logger,
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register binds a handler to a named queue. Must be called before Run.
func (w *Worker) Register(queue string, h Handler) {
	w.handlers[queue] = h
}

// Run blocks, consuming the registered queues until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	keys := make([]string, 0, len(w.handlers))
	for queue := range w.handlers {
		keys = append(keys, listKey(queue))
	}
	if len(keys) == 0 {
		return errors.New("queue: no handlers registered")
	}

	w.logger.Info("queue worker started", slog.Int("queues", len(keys)))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.broker.promoteDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("promote delayed tasks", slog.String("error", err.Error()))
		}

		res, err := w.broker.rdb.BRPop(ctx, time.Second, keys...).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.Warn("queue pop failed", slog.String("error", err.Error()))
			// Brief pause so a dead broker does not spin the loop.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPop returns [key, payload].
		if len(res) != 2 {
			continue
		}
		w.dispatch(ctx, res[1])
	}
}

func (w *Worker) dispatch(ctx context.Context, payload string) {
	var t task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		w.logger.Error("malformed task dropped", slog.String("payload", payload))
		return
	}

	h, ok := w.handlers[t.Queue]
	if !ok {
		w.logger.Error("no handler for queue", slog.String("queue", t.Queue))
		return
	}

	start := time.Now()
	err := h(ctx, t.JobID)
	if err == nil {
		w.logger.Info("task completed",
			slog.String("queue", t.Queue),
			slog.String("job_id", t.JobID),
			slog.Int("attempt", t.Attempt),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}

	w.logger.Error("task failed",
		slog.String("queue", t.Queue),
		slog.String("job_id", t.JobID),
		slog.Int("attempt", t.Attempt),
		slog.String("error", err.Error()),
	)

	if w.retry.Exhausted(t.Attempt) {
		if w.onExhausted != nil {
			w.onExhausted(ctx, t.JobID, err)
		}
		return
	}

	retry := t
	retry.Attempt++
	readyAt := time.Now().Add(w.retry.Backoff(t.Attempt))
	if parkErr := w.broker.park(ctx, retry, readyAt); parkErr != nil {
		w.logger.Error("retry scheduling failed",
			slog.String("queue", t.Queue),
			slog.String("job_id", t.JobID),
			slog.String("error", parkErr.Error()),
		)
	}
}
