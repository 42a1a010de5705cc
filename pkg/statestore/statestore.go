// Package statestore defines the shared store holding one mutable
// execution context per run. It is the coordination point between the
// scheduler and workers when they run as separate processes: losing it
// loses resumability, never the durable execution record.
package statestore

import (
	"context"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
)

// Store holds execution contexts keyed by execution id. One context per
// key; status and cursor fields are last-writer-wins, but a context is
// owned by at most one worker at a time so writers never race in practice.
type Store interface {
	// CreateState writes a fresh context under its execution id.
	CreateState(ctx context.Context, execCtx *models.ExecutionContext) error

	// GetState returns the context, or ErrStateNotFound when missing or
	// already expired.
	GetState(ctx context.Context, executionID string) (*models.ExecutionContext, error)

	// UpdateStatus sets the context status.
	UpdateStatus(ctx context.Context, executionID string, status models.ContextStatus) error

	// SetNodeOutput records a node's output and advances the resume cursor
	// to that node in the same write, so the cursor and the output map can
	// never disagree.
	SetNodeOutput(ctx context.Context, executionID, nodeID string, output models.Envelope) error

	// GetAllNodeOutputs returns every recorded node output for the run.
	GetAllNodeOutputs(ctx context.Context, executionID string) (map[string]models.Envelope, error)

	// DeleteState removes the context outright.
	DeleteState(ctx context.Context, executionID string) error

	// SetCompletionTTL schedules deletion after the retention window.
	// Called once a run reaches a terminal status; the window leaves time
	// for clients to fetch final state and for retries to read the cursor.
	SetCompletionTTL(ctx context.Context, executionID string, ttl time.Duration) error

	Close(ctx context.Context) error
}

// DefaultCompletionTTL is the retention window applied to terminal
// contexts when the caller does not choose one.
const DefaultCompletionTTL = 30 * time.Minute
