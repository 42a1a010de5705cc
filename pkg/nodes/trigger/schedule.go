package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduleTriggerNode starts executions on a cron schedule.
type ScheduleTriggerNode struct {
	id     string
	config ScheduleTriggerConfig
}

// ScheduleTriggerConfig defines the configuration for schedule trigger nodes.
type ScheduleTriggerConfig struct {
	CronExpression string `json:"cron_expression"`
	Timezone       string `json:"timezone"`
}

// NewScheduleTriggerNode creates a new schedule trigger node. The cron
// expression and timezone are validated up front so a broken schedule is
// rejected at save time rather than at fire time.
func NewScheduleTriggerNode(id string, config map[string]any) (*ScheduleTriggerNode, error) {
	scheduleConfig := ScheduleTriggerConfig{
		Timezone: "UTC",
	}

	if cronExpr, ok := config["cron_expression"].(string); ok {
		scheduleConfig.CronExpression = cronExpr
	} else {
		return nil, errors.New("cron_expression is required")
	}

	if _, err := cronParser.Parse(scheduleConfig.CronExpression); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", scheduleConfig.CronExpression, err)
	}

	if timezone, ok := config["timezone"].(string); ok {
		scheduleConfig.Timezone = timezone
	}

	if _, err := time.LoadLocation(scheduleConfig.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", scheduleConfig.Timezone, err)
	}

	return &ScheduleTriggerNode{
		id:     id,
		config: scheduleConfig,
	}, nil
}

// ID returns the node ID.
func (n *ScheduleTriggerNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *ScheduleTriggerNode) Type() string {
	return models.NodeTypeTriggerSchedule
}

// NextFireTime returns the next time the schedule fires after t.
func (n *ScheduleTriggerNode) NextFireTime(t time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(n.config.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	schedule, err := cronParser.Parse(n.config.CronExpression)
	if err != nil {
		return time.Time{}, err
	}

	return schedule.Next(t.In(loc)), nil
}

// Execute emits the fire event as the first item of the run.
func (n *ScheduleTriggerNode) Execute(ctx context.Context, input models.Envelope, scope protocol.ExecutionScope) (models.Envelope, error) {
	item := models.Item{
		"cron_expression": n.config.CronExpression,
		"timezone":        n.config.Timezone,
		"fired_at":        time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range scope.TriggerData {
		item[k] = v
	}

	return models.SingleItem(models.PortMain, item), nil
}
