// Package history implements the history tool: a persistent audit trail of
// memory mutations, fed from the event bus into the sqlite store.
package history

import (
	"context"
	"fmt"

	"github.com/mnemora/mnemora/internal/mnemod/service/backend"
	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/memory"
	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
	"github.com/mnemora/mnemora/pkg/utils/json"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "history"

// ToolName is the tool the plugin exposes.
const ToolName = "history"

// Plugin records memory mutations into the audit store.
type Plugin struct {
	store  *backend.HistoryStore
	bus    *event.Bus
	subIDs map[string]string
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{subIDs: make(map[string]string)}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:         PluginName,
		Version:      "1.0.0",
		Description:  "Audit trail of memory mutations.",
		Dependencies: []string{memory.PluginName},
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error {
	inst, err := host.Container.Resolve(runtime.CapabilityHistory)
	if err != nil {
		return err
	}
	store, ok := inst.(*backend.HistoryStore)
	if !ok {
		return fmt.Errorf("history capability is not an audit store")
	}
	p.store = store
	p.bus = host.Bus

	for eventName, op := range map[string]string{
		memory.EventAdded:    "add",
		memory.EventUpdated:  "update",
		memory.EventDeleted:  "delete",
		memory.EventFeedback: "feedback",
	} {
		opName := op
		p.subIDs[eventName] = host.Bus.Subscribe(eventName, 90, func(ctx context.Context, evt event.Event) error {
			recordID, _ := evt.Payload["memory_id"].(string)
			return p.store.Append(ctx, recordID, opName, evt.Payload)
		})
	}
	return nil
}

func (p *Plugin) Teardown(ctx context.Context) error {
	for eventName, subID := range p.subIDs {
		p.bus.Unsubscribe(eventName, subID)
	}
	p.subIDs = make(map[string]string)
	return nil
}

func (p *Plugin) Tools() []plugin.ToolDefinition {
	recent := operation.NewFunc(schema.Metadata{
		Name:        "recent",
		Description: "List recent memory mutations, newest first.",
		Parameters: []schema.ParameterDefinition{
			{Name: "memory_id", Type: schema.TypeString},
			{Name: "limit", Type: schema.TypeInteger, Default: 50},
		},
		Returns: "object",
	}, p.recent)

	return []plugin.ToolDefinition{{
		Name:        ToolName,
		Description: "Mutation history for memories.",
		Operations: map[string]operation.Handler{
			"recent": recent,
		},
	}}
}

func (p *Plugin) recent(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	recordID, _ := params["memory_id"].(string)
	limit := 50
	switch v := params["limit"].(type) {
	case int:
		limit = v
	case float64:
		limit = int(v)
	}

	entries, err := p.store.Recent(ctx, recordID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		m, err := entryToMap(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return map[string]interface{}{"entries": out, "count": len(out)}, nil
}

func entryToMap(entry backend.HistoryEntry) (map[string]interface{}, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
