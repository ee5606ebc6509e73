// Package export implements the export tool: dumping and restoring memory
// records as JSON documents.
package export

import (
	"context"
	"fmt"

	"github.com/bytedance/gg/gslice"

	"github.com/mnemora/mnemora/internal/mnemod/service/backend"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/memory"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
	"github.com/mnemora/mnemora/pkg/utils/json"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "export"

// ToolName is the tool the plugin exposes.
const ToolName = "export"

// Plugin serializes memory records for backup and restores them.
type Plugin struct {
	store backend.Client
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:         PluginName,
		Version:      "1.0.0",
		Description:  "Dump and restore memory records as JSON.",
		Dependencies: []string{memory.PluginName},
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error {
	inst, err := host.Container.Resolve(plugin.BackendCapability)
	if err != nil {
		return err
	}
	store, ok := inst.(backend.Client)
	if !ok {
		return fmt.Errorf("backend does not implement the storage contract")
	}
	p.store = store
	return nil
}

func (p *Plugin) Teardown(ctx context.Context) error { return nil }

func (p *Plugin) Tools() []plugin.ToolDefinition {
	dump := operation.NewFunc(schema.Metadata{
		Name:        "dump",
		Description: "Export memories as a JSON document.",
		Parameters: []schema.ParameterDefinition{
			{Name: "user_id", Type: schema.TypeString},
			{Name: "pretty", Type: schema.TypeBoolean, Default: false},
		},
		Returns: "object",
	}, p.dump)

	restore := operation.NewFunc(schema.Metadata{
		Name:        "restore",
		Description: "Import memories from a JSON document produced by dump.",
		Parameters: []schema.ParameterDefinition{
			{Name: "data", Type: schema.TypeString, Required: true},
		},
		Returns: "object",
	}, p.restore)

	return []plugin.ToolDefinition{{
		Name:        ToolName,
		Description: "Backup and restore for memory records.",
		Operations: map[string]operation.Handler{
			"dump":    dump,
			"restore": restore,
		},
	}}
}

func (p *Plugin) dump(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	filter := backend.Filter{}
	filter.UserID, _ = params["user_id"].(string)

	records, err := p.store.GetAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if pretty, _ := params["pretty"].(bool); pretty {
		raw, err = json.MarshalIndent(records, "", "  ")
	} else {
		raw, err = json.Marshal(records)
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"data":  string(raw),
		"count": len(records),
		"ids":   gslice.Map(records, func(r backend.Record) string { return r.ID }),
	}, nil
}

func (p *Plugin) restore(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	var records []backend.Record
	if err := json.Unmarshal([]byte(params["data"].(string)), &records); err != nil {
		return nil, fmt.Errorf("export document is not valid: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if _, err := p.store.Add(ctx, rec); err != nil {
			return nil, err
		}
		restored++
	}

	return map[string]interface{}{"restored": restored}, nil
}
