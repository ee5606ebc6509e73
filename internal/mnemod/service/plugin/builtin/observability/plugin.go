// Package observability contributes the logging middleware: structured
// request/response logging with secret redaction and timing.
package observability

import (
	"context"
	"strings"
	"time"

	"github.com/mnemora/mnemora/internal/mnemod/service/middleware"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/pkg/logger"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "observability"

// LoggingPriority places the logging middleware early in the request chain
// so it observes what the operation actually received.
const LoggingPriority = 10

const startedAtKey = "observability.started_at"

// redactedKeys are parameter names whose values never reach the log.
var redactedKeys = []string{"api_key", "password", "token", "secret"}

// Plugin wires the logging middleware into the pipeline.
type Plugin struct{}

// New creates the plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        PluginName,
		Version:     "1.0.0",
		Description: "Request and response logging with secret redaction.",
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error { return nil }
func (p *Plugin) Teardown(ctx context.Context) error                 { return nil }

func (p *Plugin) Middlewares() []middleware.Middleware {
	return []middleware.Middleware{&loggingMiddleware{}}
}

type loggingMiddleware struct{}

func (m *loggingMiddleware) Name() string  { return "logging" }
func (m *loggingMiddleware) Priority() int { return LoggingPriority }

func (m *loggingMiddleware) HandleRequest(ctx context.Context, req *middleware.Request) error {
	req.Meta[startedAtKey] = time.Now()
	logger.Info("[Dispatch] --> %s.%s request_id=%s params=%v",
		req.Tool, req.Operation, req.ID, redact(req.Params))
	return nil
}

func (m *loggingMiddleware) HandleResponse(ctx context.Context, req *middleware.Request, resp *middleware.Response) error {
	elapsed := resp.ExecutionTimeMs
	if started, ok := req.Meta[startedAtKey].(time.Time); ok {
		elapsed = float64(time.Since(started).Microseconds()) / 1000.0
	}

	if resp.Status == "success" {
		logger.Info("[Dispatch] <-- %s.%s request_id=%s status=%s elapsed=%.2fms",
			req.Tool, req.Operation, req.ID, resp.Status, elapsed)
	} else {
		logger.Warn("[Dispatch] <-- %s.%s request_id=%s status=%s elapsed=%.2fms error=%v",
			req.Tool, req.Operation, req.ID, resp.Status, elapsed, resp.Error)
	}
	return nil
}

// redact returns a copy of params with secret-bearing keys masked. Nested
// objects are walked too.
func redact(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}

	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if isSecretKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, secret := range redactedKeys {
		if strings.Contains(lowered, secret) {
			return true
		}
	}
	return false
}
