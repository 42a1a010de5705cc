// Package projector derives a client-facing visual model of executions
// from the event stream. The projection is a pure state transition:
// Apply(state, event) returns a new state and never mutates its input, so
// the projector is testable without a live event source and safe to drive
// from a single event-loop context.
package projector

import (
	"time"

	"github.com/node-drop/nodedrop/pkg/events"
)

// VisualStatus is the per-node display status.
type VisualStatus string

const (
	StatusIdle      VisualStatus = "IDLE"
	StatusQueued    VisualStatus = "QUEUED"
	StatusRunning   VisualStatus = "RUNNING"
	StatusCompleted VisualStatus = "COMPLETED"
	StatusFailed    VisualStatus = "FAILED"
	StatusCancelled VisualStatus = "CANCELLED"
)

// AnimationState is the rendering hint derived from the status.
type AnimationState string

const (
	AnimationIdle     AnimationState = "idle"
	AnimationPulsing  AnimationState = "pulsing"
	AnimationSpinning AnimationState = "spinning"
	AnimationSuccess  AnimationState = "success"
	AnimationError    AnimationState = "error"
)

var animationFor = map[VisualStatus]AnimationState{
	StatusIdle:      AnimationIdle,
	StatusQueued:    AnimationPulsing,
	StatusRunning:   AnimationSpinning,
	StatusCompleted: AnimationSuccess,
	StatusFailed:    AnimationError,
	StatusCancelled: AnimationIdle,
}

// NodeVisualState is the display state of one node under one execution.
type NodeVisualState struct {
	NodeID         string
	Status         VisualStatus
	AnimationState AnimationState
	LastUpdated    time.Time
	ErrorMessage   string
}

// ExecutionFlowStatus tracks one execution's visual state. Several
// coexist while concurrent executions are displayed; only one is the
// active projection surface at a time.
type ExecutionFlowStatus struct {
	ExecutionID    string
	WorkflowID     string
	Status         VisualStatus
	Nodes          map[string]NodeVisualState
	CompletedNodes int
	TotalNodes     int
	UpdatedAt      time.Time
}

// DefaultHistoryLimit caps the finished-execution history.
const DefaultHistoryLimit = 20

// State is the whole projection: the tracked executions, which one is
// actively displayed, and a bounded history of finished runs. Values are
// treated as immutable; every transition returns a fresh State sharing
// unchanged flows.
type State struct {
	ActiveExecutionID string
	Active            map[string]*ExecutionFlowStatus
	History           []*ExecutionFlowStatus // most recent first
	HistoryLimit      int
}

// NewState returns an empty projection.
func NewState() State {
	return State{
		Active:       make(map[string]*ExecutionFlowStatus),
		HistoryLimit: DefaultHistoryLimit,
	}
}

// Track registers an execution as a projection target and makes it the
// active surface. Tracking a new execution never touches the visual
// state of other tracked executions.
func Track(state State, executionID, workflowID string) State {
	next := shallowCopy(state)
	next.ActiveExecutionID = executionID

	if _, ok := next.Active[executionID]; !ok {
		next.Active[executionID] = &ExecutionFlowStatus{
			ExecutionID: executionID,
			WorkflowID:  workflowID,
			Status:      StatusQueued,
			Nodes:       make(map[string]NodeVisualState),
		}
	}

	return next
}

// SetActive switches the displayed execution without touching any flow.
func SetActive(state State, executionID string) State {
	next := shallowCopy(state)
	next.ActiveExecutionID = executionID

	return next
}

// ClearVisualStates drops the recorded visual state of one execution.
// Clearing the execution that is still actively displayed is refused:
// its icons stay visible until something else is selected.
func ClearVisualStates(state State, executionID string) State {
	if state.ActiveExecutionID == executionID {
		return state
	}

	next := shallowCopy(state)
	delete(next.Active, executionID)

	history := make([]*ExecutionFlowStatus, 0, len(next.History))

	for _, flow := range next.History {
		if flow.ExecutionID != executionID {
			history = append(history, flow)
		}
	}

	next.History = history

	return next
}

// Apply folds one event into the projection. Events for executions that
// are neither tracked nor in history are discarded. Event pointers as
// delivered by the event bus are expected.
func Apply(state State, event any) State {
	switch e := event.(type) {
	case *events.NodeStarted:
		return applyNode(state, e.ExecutionID, e.NodeID, StatusRunning, "", e.Timestamp)
	case *events.NodeCompleted:
		next := applyNode(state, e.ExecutionID, e.NodeID, StatusCompleted, "", e.Timestamp)

		// Edges lighting up mean their targets are about to be
		// dispatched: show them queued.
		for _, conn := range e.ActiveConnections {
			next = queueNodeIfIdle(next, e.ExecutionID, conn.TargetNodeID, e.Timestamp)
		}

		return next
	case *events.NodeFailed:
		return applyNode(state, e.ExecutionID, e.NodeID, StatusFailed, e.Error, e.Timestamp)
	case *events.ExecutionProgress:
		return applyProgress(state, e)
	case *events.ExecutionCompleted:
		return finishExecution(state, e.ExecutionID, StatusCompleted, e.Timestamp)
	case *events.ExecutionFailed:
		return finishExecution(state, e.ExecutionID, StatusFailed, e.Timestamp)
	case *events.ExecutionCancelled:
		return finishExecution(state, e.ExecutionID, StatusCancelled, e.Timestamp)
	default:
		return state
	}
}

// NodeStatus looks a node's visual state up across the active set and
// history. Unsubscribed or finished executions keep their last-known
// statuses until explicitly cleared or evicted.
func (s State) NodeStatus(executionID, nodeID string) (NodeVisualState, bool) {
	if flow, ok := s.Active[executionID]; ok {
		visual, ok := flow.Nodes[nodeID]

		return visual, ok
	}

	for _, flow := range s.History {
		if flow.ExecutionID == executionID {
			visual, ok := flow.Nodes[nodeID]

			return visual, ok
		}
	}

	return NodeVisualState{}, false
}

// Flow returns the tracked flow for an execution, active or historical.
func (s State) Flow(executionID string) (*ExecutionFlowStatus, bool) {
	if flow, ok := s.Active[executionID]; ok {
		return flow, true
	}

	for _, flow := range s.History {
		if flow.ExecutionID == executionID {
			return flow, true
		}
	}

	return nil, false
}

func applyNode(state State, executionID, nodeID string, status VisualStatus, errorMessage string, at time.Time) State {
	flow, ok := state.Active[executionID]
	if !ok {
		return state // foreign or finished execution, never mutates visible state
	}

	next := shallowCopy(state)
	updated := copyFlow(flow)

	updated.Status = StatusRunning
	updated.UpdatedAt = at
	updated.Nodes[nodeID] = NodeVisualState{
		NodeID:         nodeID,
		Status:         status,
		AnimationState: animationFor[status],
		LastUpdated:    at,
		ErrorMessage:   errorMessage,
	}

	next.Active[executionID] = updated

	return next
}

func queueNodeIfIdle(state State, executionID, nodeID string, at time.Time) State {
	flow, ok := state.Active[executionID]
	if !ok {
		return state
	}

	if existing, ok := flow.Nodes[nodeID]; ok && existing.Status != StatusIdle {
		return state
	}

	return applyNode(state, executionID, nodeID, StatusQueued, "", at)
}

func applyProgress(state State, e *events.ExecutionProgress) State {
	flow, ok := state.Active[e.ExecutionID]
	if !ok {
		return state
	}

	next := shallowCopy(state)
	updated := copyFlow(flow)
	updated.CompletedNodes = e.CompletedNodes
	updated.TotalNodes = e.TotalNodes
	updated.UpdatedAt = e.Timestamp
	next.Active[e.ExecutionID] = updated

	return next
}

// finishExecution records the terminal status, settles still-pending
// nodes, and moves the flow from the active set into bounded history.
func finishExecution(state State, executionID string, status VisualStatus, at time.Time) State {
	flow, ok := state.Active[executionID]
	if !ok {
		return state
	}

	next := shallowCopy(state)
	updated := copyFlow(flow)
	updated.Status = status
	updated.UpdatedAt = at

	if status == StatusCancelled {
		for nodeID, visual := range updated.Nodes {
			if visual.Status == StatusRunning || visual.Status == StatusQueued {
				visual.Status = StatusCancelled
				visual.AnimationState = animationFor[StatusCancelled]
				visual.LastUpdated = at
				updated.Nodes[nodeID] = visual
			}
		}
	}

	delete(next.Active, executionID)

	next.History = append([]*ExecutionFlowStatus{updated}, next.History...)

	limit := next.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	if len(next.History) > limit {
		next.History = next.History[:limit]
	}

	return next
}

func shallowCopy(state State) State {
	next := State{
		ActiveExecutionID: state.ActiveExecutionID,
		Active:            make(map[string]*ExecutionFlowStatus, len(state.Active)),
		History:           append([]*ExecutionFlowStatus(nil), state.History...),
		HistoryLimit:      state.HistoryLimit,
	}

	for id, flow := range state.Active {
		next.Active[id] = flow
	}

	return next
}

func copyFlow(flow *ExecutionFlowStatus) *ExecutionFlowStatus {
	copied := *flow
	copied.Nodes = make(map[string]NodeVisualState, len(flow.Nodes))

	for nodeID, visual := range flow.Nodes {
		copied.Nodes[nodeID] = visual
	}

	return &copied
}
