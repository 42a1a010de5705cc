// Package memory provides an in-process execution state store for tests
// and single-process development setups.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/statestore"
)

type entry struct {
	payload   []byte
	expiresAt time.Time // zero means no expiry scheduled
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cron    *cron.Cron
}

// NewStore creates a memory store with a background sweep that evicts
// expired contexts once a minute, bounding memory across the process's
// lifetime the way Redis TTLs do for the shared store.
func NewStore() *Store {
	store := &Store{
		entries: make(map[string]*entry),
		cron:    cron.New(),
	}

	_, _ = store.cron.AddFunc("@every 1m", store.sweep)
	store.cron.Start()

	return store
}

func (s *Store) CreateState(_ context.Context, execCtx *models.ExecutionContext) error {
	payload, err := json.Marshal(execCtx)
	if err != nil {
		return statestore.NewStateError("CreateState", execCtx.ExecutionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[execCtx.ExecutionID] = &entry{payload: payload}

	return nil
}

func (s *Store) GetState(_ context.Context, executionID string) (*models.ExecutionContext, error) {
	s.mu.RLock()
	stored, ok := s.entries[executionID]
	s.mu.RUnlock()

	if !ok || expired(stored) {
		return nil, statestore.NewStateError("GetState", executionID, statestore.ErrStateNotFound)
	}

	var execCtx models.ExecutionContext
	if err := json.Unmarshal(stored.payload, &execCtx); err != nil {
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

func (s *Store) DeleteState(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, executionID)

	return nil
}

func (s *Store) SetCompletionTTL(_ context.Context, executionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = statestore.DefaultCompletionTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[executionID]
	if !ok || expired(stored) {
		return statestore.NewStateError("SetCompletionTTL", executionID, statestore.ErrStateNotFound)
	}

	stored.expiresAt = time.Now().Add(ttl)

	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.cron.Stop()

	return nil
}

func (s *Store) mutate(ctx context.Context, op, executionID string, apply func(*models.ExecutionContext)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[executionID]
	if !ok || expired(stored) {
		return statestore.NewStateError(op, executionID, statestore.ErrStateNotFound)
	}

	var execCtx models.ExecutionContext
	if err := json.Unmarshal(stored.payload, &execCtx); err != nil {
		return statestore.NewStateError(op, executionID, err)
	}

	apply(&execCtx)

	payload, err := json.Marshal(&execCtx)
	if err != nil {
		return statestore.NewStateError(op, executionID, err)
	}

	stored.payload = payload

	return nil
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for executionID, stored := range s.entries {
		if expired(stored) {
			delete(s.entries, executionID)
		}
	}
}

func expired(e *entry) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}
