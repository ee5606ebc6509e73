// Package entity implements the entity tool: lightweight named-entity
// extraction over memory content, kept current through memory events.
package entity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/memory"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "entity"

// ToolName is the tool the plugin exposes.
const ToolName = "entity"

// Entity is one known entity with the memories that mention it.
type Entity struct {
	Name     string   `json:"name"`
	Mentions int      `json:"mentions"`
	Memories []string `json:"memories,omitempty"`
}

// Plugin tracks entities mentioned in memories. New memories are indexed
// through the memory.added event.
type Plugin struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	bus      *event.Bus
	subID    string
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{entities: make(map[string]*Entity)}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:         PluginName,
		Version:      "1.0.0",
		Description:  "Entity extraction and lookup over memory content.",
		Dependencies: []string{memory.PluginName},
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error {
	p.bus = host.Bus
	p.subID = host.Bus.Subscribe(memory.EventAdded, 50, p.onMemoryAdded)
	return nil
}

func (p *Plugin) Teardown(ctx context.Context) error {
	if p.bus != nil {
		p.bus.Unsubscribe(memory.EventAdded, p.subID)
	}
	return nil
}

func (p *Plugin) onMemoryAdded(ctx context.Context, evt event.Event) error {
	content, _ := evt.Payload["content"].(string)
	memoryID, _ := evt.Payload["memory_id"].(string)
	p.index(content, memoryID)
	return nil
}

func (p *Plugin) Tools() []plugin.ToolDefinition {
	extract := operation.NewFunc(schema.Metadata{
		Name:        "extract",
		Description: "Extract entities from text and index them.",
		Parameters: []schema.ParameterDefinition{
			{Name: "text", Type: schema.TypeString, Required: true},
			{Name: "memory_id", Type: schema.TypeString},
		},
		Returns: "object",
	}, p.extract)

	resolve := operation.NewFunc(schema.Metadata{
		Name:        "resolve",
		Description: "Look up a known entity by name.",
		Parameters: []schema.ParameterDefinition{
			{Name: "name", Type: schema.TypeString, Required: true},
		},
		Returns: "object",
	}, p.resolve)

	list := operation.NewFunc(schema.Metadata{
		Name:        "list",
		Description: "List known entities sorted by mention count.",
		Parameters:  nil,
		Returns:     "object",
	}, p.list)

	return []plugin.ToolDefinition{{
		Name:        ToolName,
		Description: "Entities mentioned across memories.",
		Operations: map[string]operation.Handler{
			"extract": extract,
			"resolve": resolve,
			"list":    list,
		},
	}}
}

func (p *Plugin) extract(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	text := params["text"].(string)
	memoryID, _ := params["memory_id"].(string)

	names := p.index(text, memoryID)
	return map[string]interface{}{"entities": names, "count": len(names)}, nil
}

func (p *Plugin) resolve(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	name := normalize(params["name"].(string))

	p.mu.RLock()
	defer p.mu.RUnlock()

	ent, ok := p.entities[name]
	if !ok {
		return map[string]interface{}{"found": false, "name": name}, nil
	}
	return map[string]interface{}{
		"found":    true,
		"name":     ent.Name,
		"mentions": ent.Mentions,
		"memories": ent.Memories,
	}, nil
}

func (p *Plugin) list(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	p.mu.RLock()
	ents := make([]*Entity, 0, len(p.entities))
	for _, ent := range p.entities {
		ents = append(ents, ent)
	}
	p.mu.RUnlock()

	sort.Slice(ents, func(i, j int) bool {
		if ents[i].Mentions != ents[j].Mentions {
			return ents[i].Mentions > ents[j].Mentions
		}
		return ents[i].Name < ents[j].Name
	})

	out := make([]interface{}, 0, len(ents))
	for _, ent := range ents {
		out = append(out, map[string]interface{}{"name": ent.Name, "mentions": ent.Mentions})
	}
	return map[string]interface{}{"entities": out, "count": len(out)}, nil
}

// index extracts entity candidates from text and records the mention. It
// returns the normalized names found.
func (p *Plugin) index(text, memoryID string) []string {
	names := extractNames(text)
	if len(names) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, name := range names {
		ent, ok := p.entities[name]
		if !ok {
			ent = &Entity{Name: name}
			p.entities[name] = ent
		}
		ent.Mentions++
		if memoryID != "" {
			ent.Memories = append(ent.Memories, memoryID)
		}
	}
	return names
}

// extractNames finds capitalized tokens that are not sentence-leading
// stopwords. It is a deliberately simple heuristic, not an NLP model.
func extractNames(text string) []string {
	seen := make(map[string]bool)
	var names []string

	for _, token := range strings.Fields(text) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(token) < 2 {
			continue
		}
		runes := []rune(token)
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		name := normalize(token)
		if stopwords[name] || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "i": true, "he": true, "she": true,
	"it": true, "we": true, "they": true, "this": true, "that": true,
	"my": true, "his": true, "her": true, "our": true, "their": true,
}
