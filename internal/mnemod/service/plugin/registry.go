package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/middleware"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/pkg/logger"
)

type registryEntry struct {
	plugin Plugin
	state  State
	err    error
	// exposed maps tool name to the operations this plugin contributed,
	// so withdrawal removes only its own share of a merged tool.
	exposed map[string][]string
}

// Registry owns every registered plugin and the operations they expose.
// Initialization runs in topological dependency order; a plugin whose
// Setup fails is marked failed and its operations stay unexposed, without
// stopping the rest of the set. Several plugins may contribute operations
// to one tool name; only operation names collide.
type Registry struct {
	mu        sync.RWMutex
	host      *Host
	entries   map[string]*registryEntry
	order     []string
	initOrder []string
	tools     map[string]map[string]operation.Handler
	opOwners  map[string]map[string]string
	toolDescs map[string]string
}

// NewRegistry creates a registry bound to the given host.
func NewRegistry(host *Host) *Registry {
	return &Registry{
		host:      host,
		entries:   make(map[string]*registryEntry),
		tools:     make(map[string]map[string]operation.Handler),
		opOwners:  make(map[string]map[string]string),
		toolDescs: make(map[string]string),
	}
}

// Register adds a plugin. Registering two plugins under one name is a
// hard error.
func (r *Registry) Register(p Plugin) error {
	md := p.Metadata()
	if md.Name == "" {
		return errno.New(errno.KindPluginSetupFailed, "plugin has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[md.Name]; exists {
		return errno.New(errno.KindOperationCollision, "plugin %s is already registered", md.Name)
	}

	r.entries[md.Name] = &registryEntry{plugin: p, state: StateRegistered}
	r.order = append(r.order, md.Name)
	logger.Info("[Plugin] registered plugin %s (version=%s)", md.Name, md.Version)
	return nil
}

// LoadFrom registers every plugin the loader produces.
func (r *Registry) LoadFrom(l Loader) error {
	plugins, err := l.Load()
	if err != nil {
		return err
	}
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// InitializeAll runs Setup on every registered plugin in dependency order.
// An unresolved or cyclic dependency graph aborts before any Setup runs.
// Individual Setup failures mark that plugin (and its dependents) failed
// and initialization continues.
func (r *Registry) InitializeAll(ctx context.Context) error {
	r.mu.Lock()
	order, err := r.topoOrder()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	for _, name := range order {
		if err := r.initialize(ctx, name); err != nil {
			if errno.IsKind(err, errno.KindOperationCollision) {
				return err
			}
			logger.Error("[Plugin] setup of %s failed: %v", name, err)
		}
	}
	return nil
}

// topoOrder computes a dependency-respecting initialization order over the
// registered plugins, keeping registration order among independent plugins.
// Callers must hold r.mu.
func (r *Registry) topoOrder() ([]string, error) {
	indegree := make(map[string]int, len(r.entries))
	dependents := make(map[string][]string, len(r.entries))

	for _, name := range r.order {
		md := r.entries[name].plugin.Metadata()
		indegree[name] = 0
		for _, dep := range md.Dependencies {
			if _, ok := r.entries[dep]; !ok {
				return nil, errno.New(errno.KindPluginDepUnresolved,
					"plugin %s depends on unregistered plugin %s", name, dep)
			}
		}
	}

	for _, name := range r.order {
		for _, dep := range r.entries[name].plugin.Metadata().Dependencies {
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range r.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(r.order) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, errno.New(errno.KindPluginDepCycle,
			"plugin dependency cycle involving %v", stuck)
	}

	return order, nil
}

func (r *Registry) initialize(ctx context.Context, name string) error {
	r.mu.Lock()
	entry := r.entries[name]
	md := entry.plugin.Metadata()

	for _, dep := range md.Dependencies {
		if depEntry := r.entries[dep]; depEntry == nil || depEntry.state != StateActive {
			entry.state = StateFailed
			entry.err = errno.New(errno.KindPluginSetupFailed,
				"dependency %s of plugin %s is not active", dep, name)
			r.mu.Unlock()
			return entry.err
		}
	}
	r.mu.Unlock()

	if err := entry.plugin.Setup(ctx, r.host); err != nil {
		r.mu.Lock()
		entry.state = StateFailed
		entry.err = errno.Wrap(errno.KindPluginSetupFailed, err, "plugin %s setup failed", name)
		r.mu.Unlock()
		return entry.err
	}

	if err := r.expose(name, entry); err != nil {
		r.mu.Lock()
		entry.state = StateFailed
		entry.err = err
		r.mu.Unlock()
		if terr := entry.plugin.Teardown(ctx); terr != nil {
			logger.Error("[Plugin] teardown after failed exposure of %s: %v", name, terr)
		}
		return err
	}

	r.mu.Lock()
	entry.state = StateActive
	entry.err = nil
	r.initOrder = append(r.initOrder, name)
	r.mu.Unlock()

	logger.Info("[Plugin] plugin %s is active", name)
	return nil
}

// expose publishes the plugin's tools and backends. Operation maps from
// several plugins merge into one tool; an operation name already owned by
// another plugin is a hard collision. Any failure withdraws whatever this
// call already published, so a failed plugin never leaves partial tools
// dispatchable.
func (r *Registry) expose(name string, entry *registryEntry) error {
	if tp, ok := entry.plugin.(ToolPlugin); ok {
		defs := tp.Tools()

		r.mu.Lock()
		if entry.exposed == nil {
			entry.exposed = make(map[string][]string)
		}
		for _, def := range defs {
			ops := r.tools[def.Name]
			if ops == nil {
				ops = make(map[string]operation.Handler, len(def.Operations))
				r.tools[def.Name] = ops
			}
			owners := r.opOwners[def.Name]
			if owners == nil {
				owners = make(map[string]string, len(def.Operations))
				r.opOwners[def.Name] = owners
			}

			for opName, h := range def.Operations {
				if owner, dup := owners[opName]; dup {
					r.unexpose(entry)
					r.mu.Unlock()
					if owner == name {
						return errno.New(errno.KindOperationCollision,
							"operation %s.%s registered twice by %s", def.Name, opName, name)
					}
					return errno.New(errno.KindOperationCollision,
						"operation %s.%s contributed by both %s and %s", def.Name, opName, owner, name)
				}
				if err := h.Metadata().Validate(); err != nil {
					r.unexpose(entry)
					r.mu.Unlock()
					return errno.Wrap(errno.KindPluginSetupFailed, err,
						"operation %s.%s has invalid metadata", def.Name, opName)
				}
				ops[opName] = h
				owners[opName] = name
				entry.exposed[def.Name] = append(entry.exposed[def.Name], opName)
			}

			if def.Description != "" && r.toolDescs[def.Name] == "" {
				r.toolDescs[def.Name] = def.Description
			}
		}
		r.mu.Unlock()
	}

	if bp, ok := entry.plugin.(BackendPlugin); ok && r.host != nil && r.host.Container != nil {
		for backendName, client := range bp.Backends() {
			if err := r.host.Container.RegisterInstance(BackendCapability, backendName, client); err != nil {
				r.mu.Lock()
				r.unexpose(entry)
				r.mu.Unlock()
				return err
			}
		}
	}

	return nil
}

// unexpose withdraws the plugin's contributed operations, dropping a tool
// entirely once no plugin contributes to it. Callers must hold r.mu.
func (r *Registry) unexpose(entry *registryEntry) {
	for tool, opNames := range entry.exposed {
		ops := r.tools[tool]
		owners := r.opOwners[tool]
		for _, opName := range opNames {
			delete(ops, opName)
			delete(owners, opName)
		}
		if len(ops) == 0 {
			delete(r.tools, tool)
			delete(r.opOwners, tool)
			delete(r.toolDescs, tool)
		}
	}
	entry.exposed = nil
}

// TeardownAll stops active plugins in reverse initialization order.
func (r *Registry) TeardownAll(ctx context.Context) {
	r.mu.Lock()
	order := make([]string, len(r.initOrder))
	copy(order, r.initOrder)
	r.initOrder = nil
	r.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]

		r.mu.Lock()
		entry := r.entries[name]
		if entry == nil || entry.state != StateActive {
			r.mu.Unlock()
			continue
		}
		r.unexpose(entry)
		entry.state = StateStopped
		r.mu.Unlock()

		if err := entry.plugin.Teardown(ctx); err != nil {
			logger.Error("[Plugin] teardown of %s failed: %v", name, err)
		} else {
			logger.Info("[Plugin] plugin %s stopped", name)
		}
	}
}

// ReloadPlugin tears an active plugin down and runs its Setup again. Tools
// are re-exposed only after the new Setup succeeds.
func (r *Registry) ReloadPlugin(ctx context.Context, name string) error {
	r.mu.Lock()
	entry, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return errno.New(errno.KindDependencyNotRegistered, "plugin %s is not registered", name)
	}
	wasActive := entry.state == StateActive
	if wasActive {
		r.unexpose(entry)
		entry.state = StateStopped
		for i, n := range r.initOrder {
			if n == name {
				r.initOrder = append(r.initOrder[:i:i], r.initOrder[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if wasActive {
		if err := entry.plugin.Teardown(ctx); err != nil {
			logger.Error("[Plugin] teardown of %s during reload failed: %v", name, err)
		}
	}

	return r.initialize(ctx, name)
}

// OperationHandler resolves a tool/operation pair to its handler.
func (r *Registry) OperationHandler(tool, op string) (operation.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops, ok := r.tools[tool]
	if !ok {
		return nil, errno.New(errno.KindUnknownTool, "unknown tool %s", tool)
	}
	h, ok := ops[op]
	if !ok {
		return nil, errno.New(errno.KindUnknownOperation, "tool %s has no operation %s", tool, op)
	}
	return h, nil
}

// ToolDefinitions lists every exposed tool with its operations, sorted by
// tool name for stable output.
func (r *Registry) ToolDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		ops := make(map[string]operation.Handler, len(r.tools[name]))
		for opName, h := range r.tools[name] {
			ops[opName] = h
		}
		defs = append(defs, ToolDefinition{
			Name:        name,
			Description: r.toolDescs[name],
			Operations:  ops,
		})
	}
	return defs
}

// Middlewares collects the middlewares contributed by active plugins, in
// initialization order.
func (r *Registry) Middlewares() []middleware.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var mws []middleware.Middleware
	for _, name := range r.initOrder {
		entry := r.entries[name]
		if entry.state != StateActive {
			continue
		}
		if mp, ok := entry.plugin.(MiddlewarePlugin); ok {
			mws = append(mws, mp.Middlewares()...)
		}
	}
	return mws
}

// Infos reports every registered plugin in registration order.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		entry := r.entries[name]
		tools := make([]string, 0, len(entry.exposed))
		for tool := range entry.exposed {
			tools = append(tools, tool)
		}
		sort.Strings(tools)
		info := Info{
			Metadata: entry.plugin.Metadata(),
			State:    entry.state,
			Tools:    tools,
		}
		if entry.err != nil {
			info.Error = entry.err.Error()
		}
		infos = append(infos, info)
	}
	return infos
}
