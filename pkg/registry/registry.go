// Package registry maintains the catalog of available node types and
// creates executor instances with validated configuration.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/node-drop/nodedrop/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	nodeFactories map[string]protocol.NodeFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger.With("module", "registry"),
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.nodeFactories[factory.ID()] = factory
}

// CreateNode instantiates an executor for the node type, validating the
// configuration against the factory's schema first.
func (r *Registry) CreateNode(ctx context.Context, nodeType, nodeID string, config map[string]any) (protocol.NodeExecutor, error) {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	if err := ValidateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("invalid config for node type '%s': %w", nodeType, err)
	}

	return factory.Create(ctx, nodeID, config)
}

// IsNodeRegistered checks if a node type is registered.
func (r *Registry) IsNodeRegistered(nodeType string) bool {
	_, exists := r.nodeFactories[nodeType]

	return exists
}

// AvailableNodes returns metadata for every registered node type.
func (r *Registry) AvailableNodes() []NodeTypeInfo {
	nodes := make([]NodeTypeInfo, 0, len(r.nodeFactories))

	for _, factory := range r.nodeFactories {
		nodes = append(nodes, NodeTypeInfo{
			Type:        factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return nodes
}

// NodeTypeInfo describes a registered node type for catalog consumers.
type NodeTypeInfo struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}
