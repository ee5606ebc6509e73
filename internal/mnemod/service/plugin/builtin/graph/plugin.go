// Package graph implements the graph tool: typed relations between
// entities with neighbor traversal.
package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/entity"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "graph"

// ToolName is the tool the plugin exposes.
const ToolName = "graph"

// Relation is one directed edge between two entities.
type Relation struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

// Plugin keeps a directed relation graph between entities.
type Plugin struct {
	mu        sync.RWMutex
	relations []Relation
	outgoing  map[string][]int
	incoming  map[string][]int
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:         PluginName,
		Version:      "1.0.0",
		Description:  "Relation graph between entities.",
		Dependencies: []string{entity.PluginName},
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error { return nil }
func (p *Plugin) Teardown(ctx context.Context) error                 { return nil }

func (p *Plugin) Tools() []plugin.ToolDefinition {
	addRelation := operation.NewFunc(schema.Metadata{
		Name:        "add_relation",
		Description: "Add a directed relation between two entities.",
		Parameters: []schema.ParameterDefinition{
			{Name: "source", Type: schema.TypeString, Required: true},
			{Name: "relation", Type: schema.TypeString, Required: true},
			{Name: "target", Type: schema.TypeString, Required: true},
		},
		Returns: "object",
	}, p.addRelation)

	neighbors := operation.NewFunc(schema.Metadata{
		Name:        "neighbors",
		Description: "List relations touching an entity.",
		Parameters: []schema.ParameterDefinition{
			{Name: "entity", Type: schema.TypeString, Required: true},
			{Name: "direction", Type: schema.TypeString, Default: "both",
				Choices: []interface{}{"in", "out", "both"}},
		},
		Returns: "object",
	}, p.neighbors)

	deleteRelation := operation.NewFunc(schema.Metadata{
		Name:        "delete_relation",
		Description: "Remove a relation.",
		Parameters: []schema.ParameterDefinition{
			{Name: "source", Type: schema.TypeString, Required: true},
			{Name: "relation", Type: schema.TypeString, Required: true},
			{Name: "target", Type: schema.TypeString, Required: true},
		},
		Returns: "object",
	}, p.deleteRelation)

	return []plugin.ToolDefinition{{
		Name:        ToolName,
		Description: "Entity relation graph.",
		Operations: map[string]operation.Handler{
			"add_relation":    addRelation,
			"neighbors":       neighbors,
			"delete_relation": deleteRelation,
		},
	}}
}

func (p *Plugin) addRelation(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	rel := Relation{
		Source:   params["source"].(string),
		Relation: params["relation"].(string),
		Target:   params["target"].(string),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.relations {
		if existing == rel {
			return map[string]interface{}{"added": false, "reason": "relation already exists"}, nil
		}
	}

	idx := len(p.relations)
	p.relations = append(p.relations, rel)
	p.outgoing[rel.Source] = append(p.outgoing[rel.Source], idx)
	p.incoming[rel.Target] = append(p.incoming[rel.Target], idx)

	return map[string]interface{}{"added": true}, nil
}

func (p *Plugin) neighbors(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	name := params["entity"].(string)
	direction := params["direction"].(string)

	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []interface{}
	appendRels := func(indices []int) {
		for _, i := range indices {
			rel := p.relations[i]
			if rel == (Relation{}) {
				continue
			}
			out = append(out, map[string]interface{}{
				"source":   rel.Source,
				"relation": rel.Relation,
				"target":   rel.Target,
			})
		}
	}

	if direction == "out" || direction == "both" {
		appendRels(p.outgoing[name])
	}
	if direction == "in" || direction == "both" {
		appendRels(p.incoming[name])
	}

	return map[string]interface{}{"relations": out, "count": len(out)}, nil
}

func (p *Plugin) deleteRelation(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	rel := Relation{
		Source:   params["source"].(string),
		Relation: params["relation"].(string),
		Target:   params["target"].(string),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, existing := range p.relations {
		if existing == rel {
			// Tombstone the slot so the index slices stay valid.
			p.relations[i] = Relation{}
			return map[string]interface{}{"deleted": true}, nil
		}
	}
	return nil, fmt.Errorf("relation %s -[%s]-> %s not found", rel.Source, rel.Relation, rel.Target)
}
