// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/node-drop/nodedrop/pkg/nodes/httprequest"
	lognode "github.com/node-drop/nodedrop/pkg/nodes/log"
	switchnode "github.com/node-drop/nodedrop/pkg/nodes/switch"
	"github.com/node-drop/nodedrop/pkg/nodes/transform"
	"github.com/node-drop/nodedrop/pkg/nodes/trigger"
	"github.com/node-drop/nodedrop/pkg/registry"
)

func registerNativeNodes(reg *registry.Registry) {
	reg.RegisterNode(httprequest.NewHTTPRequestNodeFactory())
	reg.RegisterNode(transform.NewTransformNodeFactory())
	reg.RegisterNode(lognode.NewLogNodeFactory())
	reg.RegisterNode(switchnode.NewSwitchNodeFactory())
	reg.RegisterNode(trigger.NewManualTriggerNodeFactory())
	reg.RegisterNode(trigger.NewWebhookTriggerNodeFactory())
	reg.RegisterNode(trigger.NewScheduleTriggerNodeFactory())
}

func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeNodes(reg)

	return reg
}
