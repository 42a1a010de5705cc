package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/node-drop/nodedrop/pkg/eventbus"
	"github.com/node-drop/nodedrop/pkg/events"
	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
	"github.com/node-drop/nodedrop/pkg/registry"
	"github.com/node-drop/nodedrop/pkg/statestore"
)

// Result summarizes one executor walk over a run.
type Result struct {
	Status        models.ContextStatus
	ExecutedNodes []string
	FailedNodes   []string
	SkippedNodes  []string

	// FailedNodeID and FailedNodeError describe the first failure when
	// Status is failed.
	FailedNodeID    string
	FailedNodeError string

	// Output carries the envelope of the single executed node when the
	// context ran in single-node mode. Empty otherwise.
	Output models.Envelope
}

// Executor walks an ExecutionContext's graph in topological order,
// persisting each node's output to the state store and emitting lifecycle
// events. One executor instance is shared by all jobs of a worker; all
// per-run state lives in the context and the store.
type Executor struct {
	registry  *registry.Registry
	store     statestore.Store
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	workerID  string
}

// NewExecutor creates an executor bound to a node registry, state store
// and event publisher.
func NewExecutor(
	reg *registry.Registry,
	store statestore.Store,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	workerID string,
) *Executor {
	return &Executor{
		registry:  reg,
		store:     store,
		publisher: publisher,
		logger:    logger,
		workerID:  workerID,
	}
}

// Execute runs the context to a terminal result. A node failure does not
// abort the walk: dependents of the failed node are left unvisited while
// independent branches continue, and the run ends failed. Cancellation is
// cooperative, checked before each node dispatch by re-reading the stored
// context. An error return means the walk itself could not proceed
// (broken graph, store unreachable), not that a node failed.
func (e *Executor) Execute(ctx context.Context, execCtx *models.ExecutionContext) (*Result, error) {
	logger := e.logger.With(
		"execution_id", execCtx.ExecutionID,
		"workflow_id", execCtx.WorkflowID,
	)

	if execCtx.SingleNodeMode {
		return e.executeSingleNode(ctx, execCtx, logger)
	}

	g, err := buildGraph(execCtx.Nodes, execCtx.Connections, execCtx.TriggerNodeID)
	if err != nil {
		return nil, fmt.Errorf("build graph for execution %s: %w", execCtx.ExecutionID, err)
	}

	outputs := make(map[string]models.Envelope, len(execCtx.NodeOutputs))
	for nodeID, envelope := range execCtx.NodeOutputs {
		outputs[nodeID] = envelope
	}

	result := &Result{Status: models.ContextStatusCompleted}

	completed := make(map[string]bool, len(g.order))
	unrunnable := make(map[string]bool)
	failed := make(map[string]bool)

	startTime := time.Now()

	for _, nodeID := range g.order {
		// Resume: a node with a recorded output from an earlier attempt is
		// replayed from the store, never re-invoked. A node without one
		// runs, even when the cursor moved past it because an independent
		// branch completed after it failed.
		if _, done := outputs[nodeID]; done {
			completed[nodeID] = true
			result.ExecutedNodes = append(result.ExecutedNodes, nodeID)

			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execution %s aborted: %w", execCtx.ExecutionID, err)
		}

		cancelled, err := e.checkCancelled(ctx, execCtx.ExecutionID)
		if err != nil {
			return nil, err
		}

		if cancelled {
			logger.Info("execution cancelled, stopping before next node", "node_id", nodeID)

			result.Status = models.ContextStatusCancelled

			return result, nil
		}

		// A node whose dependency failed or was itself skipped is never
		// visited; it stays pending and is reported as skipped.
		if e.dependencyBlocked(g, nodeID, failed, unrunnable) {
			unrunnable[nodeID] = true
			result.SkippedNodes = append(result.SkippedNodes, nodeID)

			continue
		}

		node := g.nodes[nodeID]
		input := g.inputFor(nodeID, outputs)

		if !node.Enabled {
			// Disabled nodes pass their input through untouched.
			output := models.Envelope{models.PortMain: input.Port(models.PortMain)}

			if err := e.recordOutput(ctx, execCtx, nodeID, output, outputs); err != nil {
				return nil, err
			}

			completed[nodeID] = true
			result.ExecutedNodes = append(result.ExecutedNodes, nodeID)

			continue
		}

		output, nodeErr := e.runNode(ctx, execCtx, node, input, logger)
		if nodeErr != nil {
			failed[nodeID] = true
			result.FailedNodes = append(result.FailedNodes, nodeID)

			if result.FailedNodeID == "" {
				result.FailedNodeID = nodeID
				result.FailedNodeError = nodeErr.Error()
			}

			continue
		}

		if err := e.recordOutput(ctx, execCtx, nodeID, output, outputs); err != nil {
			return nil, err
		}

		completed[nodeID] = true
		result.ExecutedNodes = append(result.ExecutedNodes, nodeID)

		e.publishNodeCompleted(ctx, execCtx, g, nodeID, output, startTime)
		e.publishProgress(ctx, execCtx, len(completed), len(g.order))
	}

	if len(result.FailedNodes) > 0 {
		result.Status = models.ContextStatusFailed
	}

	return result, nil
}

// executeSingleNode runs exactly one node with the trigger data as input
// and hands the envelope back without persisting run state.
func (e *Executor) executeSingleNode(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (*Result, error) {
	node, ok := execCtx.NodeByID(execCtx.TriggerNodeID)
	if !ok {
		return nil, fmt.Errorf("single node %s: %w", execCtx.TriggerNodeID, models.ErrUnknownNode)
	}

	input := make(models.Envelope)
	if execCtx.TriggerData != nil {
		input = models.SingleItem(models.PortMain, models.Item(execCtx.TriggerData))
	}

	output, err := e.runNode(ctx, execCtx, node, input, logger)
	if err != nil {
		return &Result{
			Status:          models.ContextStatusFailed,
			FailedNodes:     []string{node.ID},
			FailedNodeID:    node.ID,
			FailedNodeError: err.Error(),
		}, nil
	}

	return &Result{
		Status:        models.ContextStatusCompleted,
		ExecutedNodes: []string{node.ID},
		Output:        output,
	}, nil
}

// runNode creates the executor for one node, emits started/failed events
// and returns the node's envelope.
func (e *Executor) runNode(
	ctx context.Context,
	execCtx *models.ExecutionContext,
	node *models.WorkflowNode,
	input models.Envelope,
	logger *slog.Logger,
) (models.Envelope, error) {
	nodeLogger := logger.With("node_id", node.ID, "node_type", node.Type)

	executor, err := e.registry.CreateNode(ctx, node.Type, node.ID, node.Config)
	if err != nil {
		nodeLogger.Error("failed to create node executor", "error", err)
		e.publishNodeFailed(ctx, execCtx, node, err.Error(), 0)

		return nil, fmt.Errorf("create node %s: %w", node.ID, err)
	}

	e.publish(ctx, execCtx.ExecutionID, events.NodeStarted{
		BaseEvent: e.baseEvent(events.NodeStartedEvent, execCtx),
		NodeID:    node.ID,
		NodeName:  execCtx.NodeName(node.ID),
		NodeType:  node.Type,
	})

	scope := protocol.ExecutionScope{
		ExecutionID: execCtx.ExecutionID,
		WorkflowID:  execCtx.WorkflowID,
		NodeID:      node.ID,
		NodeName:    execCtx.NodeName(node.ID),
		TriggerData: execCtx.TriggerData,
		Logger:      nodeLogger,
		EmitLog: func(level, message string) {
			e.publish(ctx, execCtx.ExecutionID, events.ExecutionLog{
				BaseEvent: e.baseEvent(events.ExecutionLogEvent, execCtx),
				NodeID:    node.ID,
				Level:     level,
				Message:   message,
			})
		},
	}

	nodeStart := time.Now()

	output, err := executor.Execute(ctx, input, scope)
	if err != nil {
		nodeLogger.Error("node execution failed", "error", err)
		e.publishNodeFailed(ctx, execCtx, node, err.Error(), time.Since(nodeStart).Milliseconds())

		return nil, err
	}

	nodeLogger.Debug("node executed", "duration", time.Since(nodeStart))

	return output, nil
}

// dependencyBlocked reports whether any direct dependency of nodeID
// failed or was itself blocked.
func (e *Executor) dependencyBlocked(g *graph, nodeID string, failed, unrunnable map[string]bool) bool {
	for _, parent := range g.parents[nodeID] {
		if failed[parent] || unrunnable[parent] {
			return true
		}
	}

	return false
}

// recordOutput persists the node output, advancing the resume cursor in
// the same write, and mirrors it into the in-memory output map.
func (e *Executor) recordOutput(
	ctx context.Context,
	execCtx *models.ExecutionContext,
	nodeID string,
	output models.Envelope,
	outputs map[string]models.Envelope,
) error {
	if err := e.store.SetNodeOutput(ctx, execCtx.ExecutionID, nodeID, output); err != nil {
		return fmt.Errorf("persist output of node %s: %w", nodeID, err)
	}

	outputs[nodeID] = output
	execCtx.LastCompletedNodeID = nodeID

	return nil
}

// checkCancelled re-reads the stored context to observe cancel requests
// made by the scheduler while this worker holds the job. A missing
// context is treated as cancelled: the run can no longer persist outputs.
func (e *Executor) checkCancelled(ctx context.Context, executionID string) (bool, error) {
	stored, err := e.store.GetState(ctx, executionID)
	if err != nil {
		if statestore.IsStateNotFound(err) {
			return true, nil
		}

		return false, fmt.Errorf("read context for %s: %w", executionID, err)
	}

	return stored.IsCancelled(), nil
}

func (e *Executor) publishNodeCompleted(
	ctx context.Context,
	execCtx *models.ExecutionContext,
	g *graph,
	nodeID string,
	output models.Envelope,
	startTime time.Time,
) {
	active := make([]events.ActiveConnection, 0, len(g.outgoing[nodeID]))

	for _, conn := range g.outgoing[nodeID] {
		target := conn.TargetNodeID()
		if !g.reachable[target] {
			continue
		}

		_, sourcePort, _ := models.ParsePortID(conn.SourcePort)

		_, targetPort, _ := models.ParsePortID(conn.TargetPort)

		active = append(active, events.ActiveConnection{
			ConnectionID: conn.ID,
			SourceNodeID: nodeID,
			SourcePort:   sourcePort,
			TargetNodeID: target,
			TargetPort:   targetPort,
		})
	}

	e.publish(ctx, execCtx.ExecutionID, events.NodeCompleted{
		BaseEvent:         e.baseEvent(events.NodeCompletedEvent, execCtx),
		NodeID:            nodeID,
		NodeName:          execCtx.NodeName(nodeID),
		Output:            output,
		ActiveConnections: active,
		DurationMs:        time.Since(startTime).Milliseconds(),
	})
}

func (e *Executor) publishNodeFailed(
	ctx context.Context,
	execCtx *models.ExecutionContext,
	node *models.WorkflowNode,
	message string,
	durationMs int64,
) {
	e.publish(ctx, execCtx.ExecutionID, events.NodeFailed{
		BaseEvent:  e.baseEvent(events.NodeFailedEvent, execCtx),
		NodeID:     node.ID,
		NodeName:   execCtx.NodeName(node.ID),
		Error:      message,
		DurationMs: durationMs,
	})
}

func (e *Executor) publishProgress(ctx context.Context, execCtx *models.ExecutionContext, completed, total int) {
	e.publish(ctx, execCtx.ExecutionID, events.ExecutionProgress{
		BaseEvent:      e.baseEvent(events.ExecutionProgressEvent, execCtx),
		CompletedNodes: completed,
		TotalNodes:     total,
	})
}

func (e *Executor) baseEvent(eventType events.EventType, execCtx *models.ExecutionContext) events.BaseEvent {
	base := events.NewBaseEvent(eventType, execCtx.ExecutionID, execCtx.WorkflowID)
	base.WorkerID = e.workerID

	return base
}

// publish sends an event, logging instead of failing the run when the
// channel is unavailable. Durable truth lives in the store, not the
// event stream.
func (e *Executor) publish(ctx context.Context, executionID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, executionID, event); err != nil {
		e.logger.Warn("failed to publish event",
			"execution_id", executionID,
			"event_type", event.GetType(),
			"error", err,
		)
	}
}
