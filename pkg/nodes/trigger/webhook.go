package trigger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

// WebhookTriggerNode starts executions from inbound HTTP deliveries.
type WebhookTriggerNode struct {
	id     string
	config WebhookTriggerConfig
}

// WebhookTriggerConfig defines the configuration for webhook trigger nodes.
type WebhookTriggerConfig struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// NewWebhookTriggerNode creates a new webhook trigger node.
func NewWebhookTriggerNode(id string, config map[string]any) (*WebhookTriggerNode, error) {
	webhookConfig := WebhookTriggerConfig{
		Method: "POST",
	}

	if path, ok := config["path"].(string); ok {
		webhookConfig.Path = path
	} else {
		return nil, errors.New("missing required field 'path'")
	}

	if !strings.HasPrefix(webhookConfig.Path, "/") {
		return nil, errors.New("path must start with '/'")
	}

	if method, ok := config["method"].(string); ok {
		webhookConfig.Method = strings.ToUpper(method)
	}

	return &WebhookTriggerNode{
		id:     id,
		config: webhookConfig,
	}, nil
}

// ID returns the node ID.
func (n *WebhookTriggerNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *WebhookTriggerNode) Type() string {
	return models.NodeTypeTriggerWebhook
}

// Execute emits the webhook delivery as the first item of the run. The
// delivery's body, headers and query arrive in the trigger data captured
// when the execution was enqueued.
func (n *WebhookTriggerNode) Execute(ctx context.Context, input models.Envelope, scope protocol.ExecutionScope) (models.Envelope, error) {
	item := models.Item{
		"path":        n.config.Path,
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range scope.TriggerData {
		item[k] = v
	}

	return models.SingleItem(models.PortMain, item), nil
}
