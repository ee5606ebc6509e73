// Package webhook implements the webhook tool: forwarding selected bus
// events to registered HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
	"github.com/mnemora/mnemora/pkg/logger"
	"github.com/mnemora/mnemora/pkg/utils/json"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "webhook"

// ToolName is the tool the plugin exposes.
const ToolName = "webhook"

const deliveryTimeout = 10 * time.Second

type hook struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	subIDs map[string]string
}

// Plugin delivers bus events to registered endpoints. Deliveries run on
// their own goroutines so slow endpoints never block the emitter.
type Plugin struct {
	mu     sync.Mutex
	hooks  map[string]*hook
	bus    *event.Bus
	client *http.Client
	wg     sync.WaitGroup
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{
		hooks:  make(map[string]*hook),
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        PluginName,
		Version:     "1.0.0",
		Description: "Forward runtime events to HTTP endpoints.",
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error {
	p.bus = host.Bus
	return nil
}

func (p *Plugin) Teardown(ctx context.Context) error {
	p.mu.Lock()
	for _, h := range p.hooks {
		p.removeSubscriptions(h)
	}
	p.hooks = make(map[string]*hook)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Plugin) Tools() []plugin.ToolDefinition {
	register := operation.NewFunc(schema.Metadata{
		Name:        "register",
		Description: "Register an endpoint for the given event names.",
		Parameters: []schema.ParameterDefinition{
			{Name: "url", Type: schema.TypeString, Required: true,
				Validate: validURL},
			{Name: "events", Type: schema.TypeArray, Required: true},
		},
		Returns: "object",
	}, p.register)

	unregister := operation.NewFunc(schema.Metadata{
		Name:        "unregister",
		Description: "Remove a registered endpoint.",
		Parameters: []schema.ParameterDefinition{
			{Name: "webhook_id", Type: schema.TypeString, Required: true},
		},
		Returns: "object",
	}, p.unregister)

	list := operation.NewFunc(schema.Metadata{
		Name:        "list",
		Description: "List registered endpoints.",
		Returns:     "object",
	}, p.list)

	return []plugin.ToolDefinition{{
		Name:        ToolName,
		Description: "Event delivery to external endpoints.",
		Operations: map[string]operation.Handler{
			"register":   register,
			"unregister": unregister,
			"list":       list,
		},
	}}
}

func validURL(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (p *Plugin) register(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	rawEvents, _ := params["events"].([]interface{})
	events := make([]string, 0, len(rawEvents))
	for _, e := range rawEvents {
		if name, ok := e.(string); ok && name != "" {
			events = append(events, name)
		}
	}

	h := &hook{
		ID:     uuid.NewString(),
		URL:    params["url"].(string),
		Events: events,
		subIDs: make(map[string]string, len(events)),
	}

	for _, name := range events {
		eventName := name
		h.subIDs[eventName] = p.bus.Subscribe(eventName, 100, func(ctx context.Context, evt event.Event) error {
			p.deliver(h.URL, evt)
			return nil
		})
	}

	p.mu.Lock()
	p.hooks[h.ID] = h
	p.mu.Unlock()

	return map[string]interface{}{"webhook_id": h.ID}, nil
}

func (p *Plugin) unregister(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	id := params["webhook_id"].(string)

	p.mu.Lock()
	h, ok := p.hooks[id]
	if ok {
		p.removeSubscriptions(h)
		delete(p.hooks, id)
	}
	p.mu.Unlock()

	return map[string]interface{}{"removed": ok}, nil
}

func (p *Plugin) list(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]interface{}, 0, len(p.hooks))
	for _, h := range p.hooks {
		out = append(out, map[string]interface{}{
			"webhook_id": h.ID,
			"url":        h.URL,
			"events":     h.Events,
		})
	}
	return map[string]interface{}{"webhooks": out, "count": len(out)}, nil
}

func (p *Plugin) removeSubscriptions(h *hook) {
	for eventName, subID := range h.subIDs {
		p.bus.Unsubscribe(eventName, subID)
	}
}

func (p *Plugin) deliver(endpoint string, evt event.Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		body, err := json.Marshal(evt)
		if err != nil {
			logger.Error("[Webhook] failed to encode event %s: %v", evt.Name, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			logger.Error("[Webhook] bad endpoint %s: %v", endpoint, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			logger.Warn("[Webhook] delivery of %s to %s failed: %v", evt.Name, endpoint, err)
			return
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			logger.Warn("[Webhook] endpoint %s answered %d for event %s", endpoint, resp.StatusCode, evt.Name)
		}
	}()
}
