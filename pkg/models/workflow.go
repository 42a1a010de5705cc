package models

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft       WorkflowStatus = "draft"       // Editable, not executable
	WorkflowStatusPublished   WorkflowStatus = "published"   // Current active, executable
	WorkflowStatusUnpublished WorkflowStatus = "unpublished" // Historical, not executable
)

// Workflow represents a node-based workflow graph.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"      validate:"required"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Connections []*Connection   `json:"connections"`
	Variables   map[string]any  `json:"variables,omitempty"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Graph mutation errors.
var (
	ErrTriggerHasIncoming = errors.New("trigger node must have no incoming connections")
	ErrGraphCycle         = errors.New("workflow graph contains a cycle")
	ErrUnknownNode        = errors.New("connection references unknown node")
)

// ValidateGraph enforces the structural invariants checked at
// graph-mutation time: every connection endpoint names an existing node,
// trigger nodes have zero incoming connections, and the subgraph reachable
// from any trigger node is acyclic. Execution assumes these hold.
func ValidateGraph(nodes []*WorkflowNode, connections []*Connection) error {
	byID := make(map[string]*WorkflowNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	incoming := make(map[string][]string, len(nodes))
	outgoing := make(map[string][]string, len(nodes))

	for _, conn := range connections {
		source := conn.SourceNodeID()
		target := conn.TargetNodeID()

		if _, ok := byID[source]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, source)
		}

		if _, ok := byID[target]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, target)
		}

		incoming[target] = append(incoming[target], source)
		outgoing[source] = append(outgoing[source], target)
	}

	for _, node := range nodes {
		if node.IsTriggerNode() && len(incoming[node.ID]) > 0 {
			return fmt.Errorf("%w: %s", ErrTriggerHasIncoming, node.ID)
		}
	}

	for _, node := range nodes {
		if !node.IsTriggerNode() {
			continue
		}

		if err := checkAcyclic(node.ID, outgoing); err != nil {
			return err
		}
	}

	return nil
}

const (
	colorUnvisited = 0
	colorInStack   = 1
	colorDone      = 2
)

func checkAcyclic(root string, outgoing map[string][]string) error {
	colors := make(map[string]int)

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case colorInStack:
			return fmt.Errorf("%w: through node %s", ErrGraphCycle, id)
		case colorDone:
			return nil
		}

		colors[id] = colorInStack
		for _, next := range outgoing[id] {
			if err := visit(next); err != nil {
				return err
			}
		}
		colors[id] = colorDone

		return nil
	}

	return visit(root)
}

// Validate checks the workflow's graph invariants.
func (w *Workflow) Validate() error {
	return ValidateGraph(w.Nodes, w.Connections)
}

// TriggerNodes returns the workflow's trigger nodes in declaration order.
func (w *Workflow) TriggerNodes() []*WorkflowNode {
	var triggers []*WorkflowNode

	for _, node := range w.Nodes {
		if node.IsTriggerNode() {
			triggers = append(triggers, node)
		}
	}

	return triggers
}
