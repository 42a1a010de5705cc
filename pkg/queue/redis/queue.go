// Package redis provides the Redis-backed job queue shared by the
// scheduler and worker processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/node-drop/nodedrop/pkg/queue"
)

const (
	waitingKey   = "nodedrop:queue:waiting"
	delayedKey   = "nodedrop:queue:delayed"
	activeKey    = "nodedrop:queue:active"
	heartbeatKey = "nodedrop:queue:heartbeats"
	completedKey = "nodedrop:queue:completed"
	failedKey    = "nodedrop:queue:failed"

	dequeueBlock = 1 * time.Second
)

type Queue struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewQueue connects to Redis and verifies the connection.
func NewQueue(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*Queue, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger = logger.With("module", "queue", "provider", "redis")
	logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return &Queue{client: client, logger: logger}, nil
}

// NewQueueWithClient wraps an existing client, mainly for tests.
func NewQueueWithClient(client redis.UniversalClient, logger *slog.Logger) *Queue {
	return &Queue{
		client: client,
		logger: logger.With("module", "queue", "provider", "redis"),
	}
}

func (q *Queue) Enqueue(ctx context.Context, job *queue.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return &queue.QueueError{Op: "Enqueue", JobID: job.ID, Err: err}
	}

	err = q.client.RPush(ctx, waitingKey, payload).Err()
	if err != nil {
		return &queue.QueueError{Op: "Enqueue", JobID: job.ID, Err: err}
	}

	return nil
}

func (q *Queue) EnqueueDelayed(ctx context.Context, job *queue.Job, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return &queue.QueueError{Op: "EnqueueDelayed", JobID: job.ID, Err: err}
	}

	member := redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: payload,
	}

	err = q.client.ZAdd(ctx, delayedKey, member).Err()
	if err != nil {
		return &queue.QueueError{Op: "EnqueueDelayed", JobID: job.ID, Err: err}
	}

	return nil
}

func (q *Queue) Dequeue(ctx context.Context, workerID string) (*queue.Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	result, err := q.client.BLPop(ctx, dequeueBlock, waitingKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, queue.ErrNoJob
		}

		return nil, &queue.QueueError{Op: "Dequeue", Err: err}
	}

	if len(result) < 2 {
		return nil, queue.ErrNoJob
	}

	var job queue.Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, &queue.QueueError{Op: "Dequeue", Err: err}
	}

	now := time.Now()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, activeKey, job.ID, result[1])
	pipe.ZAdd(ctx, heartbeatKey, redis.Z{Score: float64(now.UnixMilli()), Member: job.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, &queue.QueueError{Op: "Dequeue", JobID: job.ID, Err: err}
	}

	q.logger.DebugContext(ctx, "Job claimed", "job_id", job.ID, "worker_id", workerID)

	return &job, nil
}

func (q *Queue) Complete(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.HDel(ctx, activeKey, jobID)
	pipe.ZRem(ctx, heartbeatKey, jobID)
	pipe.Incr(ctx, completedKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return &queue.QueueError{Op: "Complete", JobID: jobID, Err: err}
	}

	return nil
}

func (q *Queue) Fail(ctx context.Context, job *queue.Job, reason string) error {
	pipe := q.client.TxPipeline()
	pipe.HDel(ctx, activeKey, job.ID)
	pipe.ZRem(ctx, heartbeatKey, job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return &queue.QueueError{Op: "Fail", JobID: job.ID, Err: err}
	}

	if job.Attempt < job.MaxAttempts {
		retry := *job
		retry.Attempt++
		retry.LastError = reason

		delay := queue.DefaultPolicy().Backoff(retry.Attempt)

		q.logger.InfoContext(ctx, "Re-enqueueing failed job with backoff",
			"job_id", job.ID, "attempt", retry.Attempt, "delay", delay)

		return q.EnqueueDelayed(ctx, &retry, delay)
	}

	if err := q.client.Incr(ctx, failedKey).Err(); err != nil {
		return &queue.QueueError{Op: "Fail", JobID: job.ID, Err: err}
	}

	return nil
}

func (q *Queue) Remove(ctx context.Context, executionID string) (bool, error) {
	members, err := q.client.LRange(ctx, waitingKey, 0, -1).Result()
	if err != nil {
		return false, &queue.QueueError{Op: "Remove", Err: err}
	}

	for _, member := range members {
		var job queue.Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}

		if job.ExecutionID == executionID {
			if err := q.client.LRem(ctx, waitingKey, 1, member).Err(); err != nil {
				return false, &queue.QueueError{Op: "Remove", JobID: job.ID, Err: err}
			}

			return true, nil
		}
	}

	delayed, err := q.client.ZRange(ctx, delayedKey, 0, -1).Result()
	if err != nil {
		return false, &queue.QueueError{Op: "Remove", Err: err}
	}

	for _, member := range delayed {
		var job queue.Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue
		}

		if job.ExecutionID == executionID {
			if err := q.client.ZRem(ctx, delayedKey, member).Err(); err != nil {
				return false, &queue.QueueError{Op: "Remove", JobID: job.ID, Err: err}
			}

			return true, nil
		}
	}

	return false, nil
}

func (q *Queue) Heartbeat(ctx context.Context, jobID string) error {
	member := redis.Z{Score: float64(time.Now().UnixMilli()), Member: jobID}

	err := q.client.ZAdd(ctx, heartbeatKey, member).Err()
	if err != nil {
		return &queue.QueueError{Op: "Heartbeat", JobID: jobID, Err: err}
	}

	return nil
}

func (q *Queue) RequeueStalled(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-threshold).UnixMilli(), 10)

	stalled, err := q.client.ZRangeByScore(ctx, heartbeatKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return 0, &queue.QueueError{Op: "RequeueStalled", Err: err}
	}

	requeued := 0

	for _, jobID := range stalled {
		payload, err := q.client.HGet(ctx, activeKey, jobID).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				_ = q.client.ZRem(ctx, heartbeatKey, jobID).Err()

				continue
			}

			return requeued, &queue.QueueError{Op: "RequeueStalled", JobID: jobID, Err: err}
		}

		pipe := q.client.TxPipeline()
		pipe.HDel(ctx, activeKey, jobID)
		pipe.ZRem(ctx, heartbeatKey, jobID)
		pipe.RPush(ctx, waitingKey, payload)

		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, &queue.QueueError{Op: "RequeueStalled", JobID: jobID, Err: err}
		}

		q.logger.WarnContext(ctx, "Requeued stalled job", "job_id", jobID)
		requeued++
	}

	return requeued, nil
}

func (q *Queue) GetStats(ctx context.Context) (queue.Stats, error) {
	var stats queue.Stats

	waiting, err := q.client.LLen(ctx, waitingKey).Result()
	if err != nil {
		return stats, &queue.QueueError{Op: "GetStats", Err: err}
	}

	active, err := q.client.HLen(ctx, activeKey).Result()
	if err != nil {
		return stats, &queue.QueueError{Op: "GetStats", Err: err}
	}

	delayed, err := q.client.ZCard(ctx, delayedKey).Result()
	if err != nil {
		return stats, &queue.QueueError{Op: "GetStats", Err: err}
	}

	completed, err := q.counter(ctx, completedKey)
	if err != nil {
		return stats, err
	}

	failed, err := q.counter(ctx, failedKey)
	if err != nil {
		return stats, err
	}

	stats.Waiting = waiting
	stats.Active = active
	stats.Delayed = delayed
	stats.Completed = completed
	stats.Failed = failed

	return stats, nil
}

func (q *Queue) counter(ctx context.Context, key string) (int64, error) {
	value, err := q.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, &queue.QueueError{Op: "GetStats", Err: err}
	}

	return value, nil
}

func (q *Queue) Close(_ context.Context) error {
	return q.client.Close()
}

// promoteDue moves delayed jobs whose time has come onto the waiting list.
func (q *Queue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return &queue.QueueError{Op: "Dequeue", Err: err}
	}

	for _, member := range due {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, delayedKey, member)
		pipe.RPush(ctx, waitingKey, member)

		if _, err := pipe.Exec(ctx); err != nil {
			return &queue.QueueError{Op: "Dequeue", Err: err}
		}
	}

	return nil
}
