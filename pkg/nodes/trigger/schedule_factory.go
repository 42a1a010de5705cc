package trigger

import (
	"context"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

// ScheduleTriggerNodeFactory creates ScheduleTriggerNode instances.
type ScheduleTriggerNodeFactory struct{}

// NewScheduleTriggerNodeFactory creates a new schedule trigger node factory.
func NewScheduleTriggerNodeFactory() protocol.NodeFactory {
	return &ScheduleTriggerNodeFactory{}
}

// Create creates a new ScheduleTriggerNode instance.
func (f *ScheduleTriggerNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.NodeExecutor, error) {
	return NewScheduleTriggerNode(id, config)
}

// ID returns the factory ID.
func (f *ScheduleTriggerNodeFactory) ID() string {
	return models.NodeTypeTriggerSchedule
}

// Name returns the factory name.
func (f *ScheduleTriggerNodeFactory) Name() string {
	return "Schedule Trigger"
}

// Description returns the factory description.
func (f *ScheduleTriggerNodeFactory) Description() string {
	return "Starts workflow execution on a cron schedule"
}

// Schema returns the JSON schema for schedule trigger node configuration.
func (f *ScheduleTriggerNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cron_expression": map[string]any{
				"type":        "string",
				"description": "Cron expression defining when the schedule fires",
				"examples": []string{
					"0 9 * * MON-FRI",
					"*/15 * * * *",
					"@hourly",
				},
			},
			"timezone": map[string]any{
				"type":        "string",
				"description": "Timezone for the cron expression",
				"default":     "UTC",
				"examples":    []string{"UTC", "America/New_York", "Europe/London"},
			},
		},
		"required": []string{"cron_expression"},
	}
}
