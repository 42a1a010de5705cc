// Package redis provides the Redis-backed execution state store used when
// scheduler and workers run as separate processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/statestore"
)

const keyPrefix = "nodedrop:execution:"

type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*Store, error) {
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

	logger = logger.With("module", "statestore", "provider", "redis")
	logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return &Store{client: client, logger: logger}, nil
}

// NewStoreWithClient wraps an existing client, mainly for tests.
func NewStoreWithClient(client redis.UniversalClient, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With("module", "statestore", "provider", "redis"),
	}
}

func stateKey(executionID string) string {
	return keyPrefix + executionID
}

func (s *Store) CreateState(ctx context.Context, execCtx *models.ExecutionContext) error {
	payload, err := json.Marshal(execCtx)
	if err != nil {
		return statestore.NewStateError("CreateState", execCtx.ExecutionID, err)
	}

	err = s.client.Set(ctx, stateKey(execCtx.ExecutionID), payload, 0).Err()
	if err != nil {
		return statestore.NewStateError("CreateState", execCtx.ExecutionID, err)
	}

	return nil
}

func (s *Store) GetState(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	payload, err := s.client.Get(ctx, stateKey(executionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, statestore.NewStateError("GetState", executionID, statestore.ErrStateNotFound)
		}

		return nil, statestore.NewStateError("GetState", executionID, err)
	}

	var execCtx models.ExecutionContext
	if err := json.Unmarshal(payload, &execCtx); err != nil {
		return nil, statestore.NewStateError("GetState", executionID, err)
	}

	return &execCtx, nil
}

func (s *Store) UpdateStatus(ctx context.Context, executionID string, status models.ContextStatus) error {
	return s.mutate(ctx, "UpdateStatus", executionID, func(execCtx *models.ExecutionContext) {
		execCtx.Status = status
	})
}

func (s *Store) SetNodeOutput(ctx context.Context, executionID, nodeID string, output models.Envelope) error {
	// Output and cursor land in one write: a context read by a later retry
	// either has both or neither.
	return s.mutate(ctx, "SetNodeOutput", executionID, func(execCtx *models.ExecutionContext) {
		if execCtx.NodeOutputs == nil {
			execCtx.NodeOutputs = make(map[string]models.Envelope)
		}

		execCtx.NodeOutputs[nodeID] = output
		execCtx.LastCompletedNodeID = nodeID
	})
}

func (s *Store) GetAllNodeOutputs(ctx context.Context, executionID string) (map[string]models.Envelope, error) {
	execCtx, err := s.GetState(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return execCtx.NodeOutputs, nil
}

func (s *Store) DeleteState(ctx context.Context, executionID string) error {
	err := s.client.Del(ctx, stateKey(executionID)).Err()
	if err != nil {
		return statestore.NewStateError("DeleteState", executionID, err)
	}

	return nil
}

func (s *Store) SetCompletionTTL(ctx context.Context, executionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = statestore.DefaultCompletionTTL
	}

	ok, err := s.client.Expire(ctx, stateKey(executionID), ttl).Result()
	if err != nil {
		return statestore.NewStateError("SetCompletionTTL", executionID, err)
	}

	if !ok {
		return statestore.NewStateError("SetCompletionTTL", executionID, statestore.ErrStateNotFound)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}

// mutate applies a read-modify-write on the stored context, preserving any
// TTL already set on the key. Contexts are single-owner so this does not
// need optimistic locking.
func (s *Store) mutate(ctx context.Context, op, executionID string, apply func(*models.ExecutionContext)) error {
	execCtx, err := s.GetState(ctx, executionID)
	if err != nil {
		var stateErr *statestore.StateError
		if errors.As(err, &stateErr) {
			stateErr.Op = op
		}

		return err
	}

	apply(execCtx)

	payload, err := json.Marshal(execCtx)
	if err != nil {
		return statestore.NewStateError(op, executionID, err)
	}

	err = s.client.Set(ctx, stateKey(executionID), payload, redis.KeepTTL).Err()
	if err != nil {
		return statestore.NewStateError(op, executionID, err)
	}

	return nil
}
