package trigger

import (
	"context"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

// WebhookTriggerNodeFactory creates WebhookTriggerNode instances.
type WebhookTriggerNodeFactory struct{}

// NewWebhookTriggerNodeFactory creates a new webhook trigger node factory.
func NewWebhookTriggerNodeFactory() protocol.NodeFactory {
	return &WebhookTriggerNodeFactory{}
}

// Create creates a new WebhookTriggerNode instance.
func (f *WebhookTriggerNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.NodeExecutor, error) {
	return NewWebhookTriggerNode(id, config)
}

// ID returns the factory ID.
func (f *WebhookTriggerNodeFactory) ID() string {
	return models.NodeTypeTriggerWebhook
}

// Name returns the factory name.
func (f *WebhookTriggerNodeFactory) Name() string {
	return "Webhook Trigger"
}

// Description returns the factory description.
func (f *WebhookTriggerNodeFactory) Description() string {
	return "Starts workflow execution when an HTTP delivery arrives"
}

// Schema returns the JSON schema for webhook trigger node configuration.
func (f *WebhookTriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Webhook path the trigger listens on",
				"examples":    []string{"/hooks/github", "/hooks/payment"},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method accepted by the webhook",
				"default":     "POST",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
			},
		},
		"required": []string{"path"},
	}
}
