// Package protocol defines the interfaces and contracts for pluggable node executors.
package protocol

import (
	"context"
	"log/slog"

	"github.com/node-drop/nodedrop/pkg/models"
)

// LogEmitter forwards a diagnostic line from inside a node execution to
// observers as an execution.log event.
type LogEmitter func(level, message string)

// ExecutionScope is the read-only view of the run handed to a node
// executor, plus the diagnostics channel back out of it.
type ExecutionScope struct {
	ExecutionID string
	WorkflowID  string
	NodeID      string
	NodeName    string
	TriggerData map[string]any
	Logger      *slog.Logger
	EmitLog     LogEmitter
}

// NodeExecutor is a single unit of work in the graph. Executors are pure
// with respect to run state: everything they need arrives in the input
// envelope and the scope, and everything they produce leaves in the
// returned envelope.
type NodeExecutor interface {
	// ID returns the node instance id.
	ID() string

	// Type returns the node type identifier.
	Type() string

	// Execute runs the node. The input envelope holds the items routed to
	// each of the node's input ports; the returned envelope routes items
	// to downstream branches by output port name.
	Execute(ctx context.Context, input models.Envelope, scope ExecutionScope) (models.Envelope, error)
}

// NodeFactory creates node executor instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node executor with the given configuration.
	Create(ctx context.Context, id string, config map[string]any) (NodeExecutor, error)

	// ID returns the unique identifier for this node type.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for configuring this node type.
	Schema() map[string]any
}
