// Package log provides the logging node for workflow graph execution.
package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
	"github.com/node-drop/nodedrop/pkg/template"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// LogNode emits a rendered message to the worker log and to execution
// observers through the scope's log emitter.
type LogNode struct {
	id      string
	message string
	level   string
}

// NewLogNode creates a new logging node.
func NewLogNode(id string, config map[string]any) (*LogNode, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"

	if lvl, ok := config["level"].(string); ok {
		if _, known := levels[lvl]; !known {
			return nil, fmt.Errorf("unknown log level %q", lvl)
		}

		level = lvl
	}

	return &LogNode{
		id:      id,
		message: message,
		level:   level,
	}, nil
}

// ID returns the node ID.
func (n *LogNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *LogNode) Type() string {
	return "log"
}

// Execute renders and emits the log message, then passes the input items
// through unchanged on the success port.
func (n *LogNode) Execute(ctx context.Context, input models.Envelope, scope protocol.ExecutionScope) (models.Envelope, error) {
	rendered, err := template.RenderInput(n.message, input, scope)
	if err != nil {
		return models.SingleItem(models.PortError, models.Item{
			"error":   fmt.Sprintf("failed to render log message template: %v", err),
			"success": false,
		}), nil
	}

	message := fmt.Sprintf("%v", rendered)

	logger := scope.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.With("node_id", n.id, "node_type", "log").Log(ctx, levels[n.level], message)

	if scope.EmitLog != nil {
		scope.EmitLog(n.level, message)
	}

	items := input.Port(models.PortMain)
	if len(items) == 0 {
		items = []models.Item{{"message": message, "level": n.level}}
	}

	return models.Envelope{models.PortSuccess: items}, nil
}
