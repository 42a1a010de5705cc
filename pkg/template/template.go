// Package template provides templating functionality for dynamic node configuration.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
)

// RenderInput renders templateStr against the items routed to the node plus
// the execution scope. The first item on the main port is exposed as .input,
// the full item list as .items.
func RenderInput(templateStr string, input models.Envelope, scope protocol.ExecutionScope) (any, error) {
	items := input.Port(models.PortMain)

	var first models.Item
	if len(items) > 0 {
		first = items[0]
	}

	data := map[string]any{
		"input":        first,
		"items":        items,
		"trigger_data": scope.TriggerData,
		"env":          getEnvVars(),
		"execution": map[string]any{
			"id":          scope.ExecutionID,
			"workflow_id": scope.WorkflowID,
		},
	}

	return Render(templateStr, data)
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("node").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}
				num := make([]byte, 1)
				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	// Rendered output that looks like JSON is decoded so downstream nodes
	// receive structured data instead of a string.
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// NeedsTemplating reports whether input contains template syntax.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// getEnvVars returns environment variables as a map.
func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
