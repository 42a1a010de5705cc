// Package httprequest provides the HTTP request node for workflow graph execution.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/node-drop/nodedrop/pkg/models"
	"github.com/node-drop/nodedrop/pkg/protocol"
	"github.com/node-drop/nodedrop/pkg/template"
)

// HTTPRequestNode performs HTTP requests and routes the response to the
// success or error output port.
type HTTPRequestNode struct {
	id     string
	config HTTPRequestConfig
}

// HTTPRequestConfig defines the configuration for HTTP request nodes.
type HTTPRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
	Timeout int               `json:"timeout"`
	Retries RetryConfig       `json:"retries"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	Attempts int `json:"attempts"`
	Delay    int `json:"delay"`
}

// NewHTTPRequestNode creates a new HTTP request node.
func NewHTTPRequestNode(id string, config map[string]any) (*HTTPRequestNode, error) {
	httpConfig := HTTPRequestConfig{
		Method:  "GET",
		Headers: make(map[string]string),
		Timeout: 30,
		Retries: RetryConfig{Attempts: 1, Delay: 0},
	}

	if url, ok := config["url"].(string); ok {
		httpConfig.URL = url
	} else {
		return nil, errors.New("missing required field 'url'")
	}

	if method, ok := config["method"].(string); ok {
		httpConfig.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				httpConfig.Headers[k] = strVal
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		httpConfig.Body = body
	}

	if timeout, ok := config["timeout"].(float64); ok {
		httpConfig.Timeout = int(timeout)
	}

	if retries, ok := config["retries"].(map[string]any); ok {
		if attempts, ok := retries["attempts"].(float64); ok {
			httpConfig.Retries.Attempts = int(attempts)
		}

		if delay, ok := retries["delay"].(float64); ok {
			httpConfig.Retries.Delay = int(delay)
		}
	}

	return &HTTPRequestNode{
		id:     id,
		config: httpConfig,
	}, nil
}

// ID returns the node ID.
func (n *HTTPRequestNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *HTTPRequestNode) Type() string {
	return "httprequest"
}

// Execute performs the HTTP request. URL, body and header values are
// rendered as templates against the input envelope before the request goes
// out. Request failures surface on the error port, not as execution errors.
func (n *HTTPRequestNode) Execute(ctx context.Context, input models.Envelope, scope protocol.ExecutionScope) (models.Envelope, error) {
	renderedURL, err := template.RenderInput(n.config.URL, input, scope)
	if err != nil {
		return n.errorEnvelope(fmt.Sprintf("failed to render URL template: %v", err)), nil
	}

	urlStr, ok := renderedURL.(string)
	if !ok {
		return n.errorEnvelope("URL template must render to string"), nil
	}

	var renderedBody string

	if n.config.Body != "" {
		renderedBodyAny, err := template.RenderInput(n.config.Body, input, scope)
		if err != nil {
			return n.errorEnvelope(fmt.Sprintf("failed to render body template: %v", err)), nil
		}

		switch v := renderedBodyAny.(type) {
		case string:
			renderedBody = v
		default:
			encoded, err := json.Marshal(v)
			if err == nil {
				renderedBody = string(encoded)
			}
		}
	}

	renderedHeaders := make(map[string]string)

	for key, value := range n.config.Headers {
		renderedValue, err := template.RenderInput(value, input, scope)
		if err != nil {
			renderedHeaders[key] = value // keep the raw value when the template fails
		} else if strVal, ok := renderedValue.(string); ok {
			renderedHeaders[key] = strVal
		} else {
			renderedHeaders[key] = value
		}
	}

	var lastErr error

	for attempt := 1; attempt <= n.config.Retries.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(n.config.Retries.Delay) * time.Millisecond):
			}
		}

		result, err := n.performRequest(ctx, urlStr, renderedBody, renderedHeaders)
		if err == nil {
			return models.SingleItem(models.PortSuccess, result), nil
		}

		lastErr = err

		// Client errors are not retried, only server errors and network failures.
		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			break
		}
	}

	return n.errorEnvelope(fmt.Sprintf("HTTP request failed after %d attempts: %v", n.config.Retries.Attempts, lastErr)), nil
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// performRequest executes a single HTTP request.
func (n *HTTPRequestNode) performRequest(ctx context.Context, url, body string, headers map[string]string) (models.Item, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{
		Timeout: time.Duration(n.config.Timeout) * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	result := models.Item{
		"status_code": resp.StatusCode,
		"headers":     resp.Header,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return result, nil
}

func (n *HTTPRequestNode) errorEnvelope(message string) models.Envelope {
	return models.SingleItem(models.PortError, models.Item{
		"error":   message,
		"success": false,
	})
}
