// Package workflow implements the DAG executor that walks a workflow
// graph snapshot node by node, persisting outputs and emitting lifecycle
// events as it goes.
package workflow

import (
	"fmt"

	"github.com/node-drop/nodedrop/pkg/models"
)

// graph is the executable view of an ExecutionContext's snapshot:
// adjacency restricted to nodes reachable from the trigger, plus a
// deterministic topological order over them.
type graph struct {
	nodes     map[string]*models.WorkflowNode
	order     []string            // topological, ties by node array order
	parents   map[string][]string // direct dependencies, deduplicated
	reachable map[string]bool
	incoming  map[string][]*models.Connection
	outgoing  map[string][]*models.Connection
}

// buildGraph restricts the snapshot to nodes reachable from triggerID and
// computes the execution order. Ordering ties are broken by position in
// the node array so two walks of the same snapshot always agree.
func buildGraph(nodes []*models.WorkflowNode, connections []*models.Connection, triggerID string) (*graph, error) {
	byID := make(map[string]*models.WorkflowNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	if _, ok := byID[triggerID]; !ok {
		return nil, fmt.Errorf("trigger node %s: %w", triggerID, models.ErrUnknownNode)
	}

	adjacency := make(map[string][]string)

	incoming := make(map[string][]*models.Connection)
	outgoing := make(map[string][]*models.Connection)

	for _, conn := range connections {
		source := conn.SourceNodeID()
		target := conn.TargetNodeID()

		if _, ok := byID[source]; !ok {
			continue
		}

		if _, ok := byID[target]; !ok {
			continue
		}

		adjacency[source] = append(adjacency[source], target)
		incoming[target] = append(incoming[target], conn)
		outgoing[source] = append(outgoing[source], conn)
	}

	reachable := map[string]bool{triggerID: true}
	stack := []string{triggerID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, next := range adjacency[current] {
			if !reachable[next] {
				reachable[next] = true

				stack = append(stack, next)
			}
		}
	}

	parents := make(map[string][]string)
	children := make(map[string][]string)
	inDegree := make(map[string]int)

	for _, node := range nodes {
		if !reachable[node.ID] {
			continue
		}

		seen := make(map[string]bool)

		for _, conn := range incoming[node.ID] {
			source := conn.SourceNodeID()
			if !reachable[source] || seen[source] {
				continue
			}

			seen[source] = true
			parents[node.ID] = append(parents[node.ID], source)
			children[source] = append(children[source], node.ID)
			inDegree[node.ID]++
		}
	}

	order := make([]string, 0, len(reachable))
	placed := make(map[string]bool, len(reachable))

	for len(order) < len(reachable) {
		progressed := false

		for _, node := range nodes {
			if !reachable[node.ID] || placed[node.ID] || inDegree[node.ID] != 0 {
				continue
			}

			placed[node.ID] = true
			order = append(order, node.ID)
			progressed = true

			for _, dependent := range children[node.ID] {
				if !placed[dependent] {
					inDegree[dependent]--
				}
			}
		}

		if !progressed {
			return nil, models.ErrGraphCycle
		}
	}

	return &graph{
		nodes:     byID,
		order:     order,
		parents:   parents,
		reachable: reachable,
		incoming:  incoming,
		outgoing:  outgoing,
	}, nil
}

// inputFor assembles the input envelope for a node from its incoming
// connections: for each edge, the items on the source's named output port
// are appended to the edge's target port, preserving connection order.
func (g *graph) inputFor(nodeID string, outputs map[string]models.Envelope) models.Envelope {
	input := make(models.Envelope)

	for _, conn := range g.incoming[nodeID] {
		source := conn.SourceNodeID()
		if !g.reachable[source] {
			continue
		}

		sourceOutput, ok := outputs[source]
		if !ok {
			continue
		}

		_, sourcePort, _ := models.ParsePortID(conn.SourcePort)

		_, targetPort, _ := models.ParsePortID(conn.TargetPort)

		items := sourceOutput.Port(sourcePort)
		if len(items) > 0 {
			input[targetPort] = append(input[targetPort], items...)
		}
	}

	return input
}
