// Package memory implements the memory tool: persistent records with
// search, streaming listing, batch ingestion and feedback.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemora/mnemora/internal/mnemod/service/backend"
	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
	"github.com/mnemora/mnemora/pkg/utils/json"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "memory"

// ToolName is the tool the plugin exposes.
const ToolName = "memory"

// Domain events emitted on record mutations.
const (
	EventAdded    = "memory.added"
	EventUpdated  = "memory.updated"
	EventDeleted  = "memory.deleted"
	EventFeedback = "memory.feedback"
)

// Config holds the plugin's knobs.
type Config struct {
	// Backend names the backend registration to use. Empty selects the
	// most recently registered backend.
	Backend string
	// CacheTTL applies to the search result cache.
	CacheTTL time.Duration
	// ChunkSize applies to streamed get_all results.
	ChunkSize int
}

// Plugin is the runtime instance of the memory plugin.
type Plugin struct {
	cfg    Config
	store  backend.Client
	bus    *event.Bus
	search *operation.CachedHandler
}

// New creates the plugin. The backend is resolved during Setup.
func New(cfg Config) *Plugin {
	return &Plugin{cfg: cfg}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        PluginName,
		Version:     "1.0.0",
		Description: "Persistent memory records with search, streaming and batch ingestion.",
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error {
	var inst interface{}
	var err error
	if p.cfg.Backend != "" {
		inst, err = host.Container.ResolveNamed(plugin.BackendCapability, p.cfg.Backend)
	} else {
		inst, err = host.Container.Resolve(plugin.BackendCapability)
	}
	if err != nil {
		return err
	}

	store, ok := inst.(backend.Client)
	if !ok {
		return fmt.Errorf("backend %q does not implement the storage contract", p.cfg.Backend)
	}

	p.store = store
	p.bus = host.Bus
	return nil
}

func (p *Plugin) Teardown(ctx context.Context) error {
	if p.search != nil {
		p.search.Invalidate()
	}
	return nil
}

// Tools exposes the memory tool. Search results are cached, get_all is
// streamable and add has a derived batch variant.
func (p *Plugin) Tools() []plugin.ToolDefinition {
	add := operation.NewFunc(schema.Metadata{
		Name:        "add",
		Description: "Store a new memory.",
		Parameters: []schema.ParameterDefinition{
			{Name: "content", Type: schema.TypeString, Required: true, Description: "Memory text."},
			{Name: "user_id", Type: schema.TypeString, Description: "Owning user."},
			{Name: "agent_id", Type: schema.TypeString, Description: "Owning agent."},
			{Name: "metadata", Type: schema.TypeObject, Description: "Arbitrary metadata."},
		},
		Returns: "object",
	}, p.add)

	search := operation.NewFunc(schema.Metadata{
		Name:        "search",
		Description: "Search memories by relevance.",
		Parameters: []schema.ParameterDefinition{
			{Name: "query", Type: schema.TypeString, Required: true},
			{Name: "user_id", Type: schema.TypeString},
			{Name: "agent_id", Type: schema.TypeString},
			{Name: "limit", Type: schema.TypeInteger, Default: 10},
		},
		Returns: "object",
	}, p.searchOp)
	p.search = operation.NewCached(search, p.cfg.CacheTTL)

	get := operation.NewFunc(schema.Metadata{
		Name:        "get",
		Description: "Fetch one memory by ID.",
		Parameters: []schema.ParameterDefinition{
			{Name: "memory_id", Type: schema.TypeString, Required: true},
		},
		Returns: "object",
	}, p.get)

	getAll := operation.NewFunc(schema.Metadata{
		Name:        "get_all",
		Description: "List memories, optionally streamed in chunks.",
		Parameters: []schema.ParameterDefinition{
			{Name: "user_id", Type: schema.TypeString},
			{Name: "agent_id", Type: schema.TypeString},
		},
		Returns: "object",
	}, p.getAll)

	update := operation.NewFunc(schema.Metadata{
		Name:        "update",
		Description: "Update a memory's content or metadata.",
		Parameters: []schema.ParameterDefinition{
			{Name: "memory_id", Type: schema.TypeString, Required: true},
			{Name: "content", Type: schema.TypeString},
			{Name: "metadata", Type: schema.TypeObject},
		},
		Returns: "object",
	}, p.update)

	del := operation.NewFunc(schema.Metadata{
		Name:        "delete",
		Description: "Delete a memory by ID.",
		Parameters: []schema.ParameterDefinition{
			{Name: "memory_id", Type: schema.TypeString, Required: true},
		},
		Returns: "object",
	}, p.delete)

	feedback := operation.NewFunc(schema.Metadata{
		Name:        "feedback",
		Description: "Attach relevance feedback to a memory.",
		Parameters: []schema.ParameterDefinition{
			{Name: "memory_id", Type: schema.TypeString, Required: true},
			{Name: "rating", Type: schema.TypeInteger, Required: true,
				Choices: []interface{}{-1, 0, 1, float64(-1), float64(0), float64(1)}},
			{Name: "comment", Type: schema.TypeString},
		},
		Returns: "object",
	}, p.feedback)

	return []plugin.ToolDefinition{{
		Name:        ToolName,
		Description: "Persistent memory for agents.",
		Operations: map[string]operation.Handler{
			"add":       add,
			"add_batch": operation.NewBatch(add),
			"search":    p.search,
			"get":       get,
			"get_all":   operation.NewStreaming(getAll, "memories", p.cfg.ChunkSize),
			"update":    update,
			"delete":    del,
			"feedback":  feedback,
		},
	}}
}

func (p *Plugin) add(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	rec := backend.Record{
		Content: params["content"].(string),
	}
	rec.UserID, _ = params["user_id"].(string)
	rec.AgentID, _ = params["agent_id"].(string)
	rec.Metadata, _ = params["metadata"].(map[string]interface{})

	stored, err := p.store.Add(ctx, rec)
	if err != nil {
		return nil, err
	}

	p.invalidateSearch()
	p.emit(ctx, EventAdded, stored.ID, map[string]interface{}{"content": stored.Content})

	return map[string]interface{}{"memory": toMap(stored)}, nil
}

func (p *Plugin) searchOp(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	limit := intParam(params, "limit", 10)

	hits, err := p.store.Search(ctx, params["query"].(string), filterFrom(params), limit)
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, 0, len(hits))
	for _, hit := range hits {
		m := toMap(hit.Record)
		m["score"] = hit.Score
		out = append(out, m)
	}
	return map[string]interface{}{"hits": out, "count": len(out)}, nil
}

func (p *Plugin) get(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	rec, err := p.store.Get(ctx, params["memory_id"].(string))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"memory": toMap(rec)}, nil
}

func (p *Plugin) getAll(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	records, err := p.store.GetAll(ctx, filterFrom(params))
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, 0, len(records))
	for _, rec := range records {
		out = append(out, toMap(rec))
	}
	return map[string]interface{}{"memories": out, "count": len(out)}, nil
}

func (p *Plugin) update(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	id := params["memory_id"].(string)
	content, _ := params["content"].(string)
	metadata, _ := params["metadata"].(map[string]interface{})

	rec, err := p.store.Update(ctx, id, content, metadata)
	if err != nil {
		return nil, err
	}

	p.invalidateSearch()
	p.emit(ctx, EventUpdated, id, nil)

	return map[string]interface{}{"memory": toMap(rec)}, nil
}

func (p *Plugin) delete(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	id := params["memory_id"].(string)
	if err := p.store.Delete(ctx, id); err != nil {
		return nil, err
	}

	p.invalidateSearch()
	p.emit(ctx, EventDeleted, id, nil)

	return map[string]interface{}{"deleted": true, "memory_id": id}, nil
}

func (p *Plugin) feedback(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	id := params["memory_id"].(string)
	rating := intParam(params, "rating", 0)
	comment, _ := params["comment"].(string)

	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	metadata := rec.Metadata
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	entries, _ := metadata["feedback"].([]interface{})
	entries = append(entries, map[string]interface{}{
		"rating":  rating,
		"comment": comment,
		"at":      time.Now().Format(time.RFC3339),
	})
	metadata["feedback"] = entries

	if _, err := p.store.Update(ctx, id, "", metadata); err != nil {
		return nil, err
	}

	p.emit(ctx, EventFeedback, id, map[string]interface{}{"rating": rating})

	return map[string]interface{}{"memory_id": id, "recorded": true}, nil
}

func (p *Plugin) invalidateSearch() {
	if p.search != nil {
		p.search.Invalidate()
	}
}

func (p *Plugin) emit(ctx context.Context, name, id string, extra map[string]interface{}) {
	if p.bus == nil {
		return
	}
	payload := map[string]interface{}{"memory_id": id}
	for k, v := range extra {
		payload[k] = v
	}
	_ = p.bus.Emit(ctx, name, payload)
}

func filterFrom(params map[string]interface{}) backend.Filter {
	var f backend.Filter
	f.UserID, _ = params["user_id"].(string)
	f.AgentID, _ = params["agent_id"].(string)
	return f
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// toMap converts a record into the generic result shape through a JSON
// round trip so timestamps and metadata serialize consistently.
func toMap(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
