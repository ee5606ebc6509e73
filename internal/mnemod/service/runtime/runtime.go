// Package runtime is the composition root of the dispatch engine. It owns
// the container, the plugin registry, the event bus and the middleware
// pipeline, and drives every request through them.
package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mnemora/mnemora/internal/mnemod/service/backend"
	"github.com/mnemora/mnemora/internal/mnemod/service/container"
	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/middleware"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/pkg/logger"
)

// Container capability keys for the core services the runtime registers.
const (
	CapabilityBus     = "event.bus"
	CapabilityHistory = "history.store"
)

// Dispatch event names.
const (
	EventDispatchCompleted = "dispatch.completed"
)

// Config collects the knobs of a runtime instance.
type Config struct {
	// EventHistorySize bounds the event bus history. Zero selects the
	// bus default.
	EventHistorySize int
	// StorePath is the bolt file backing the record store. Empty selects
	// the in-memory store.
	StorePath string
	// HistoryPath is the sqlite file backing the audit log. Empty selects
	// an in-memory database.
	HistoryPath string
	// CacheTTL applies to cached operations. Zero selects the default.
	CacheTTL time.Duration
	// StreamChunkSize applies to streaming operations. Zero selects the
	// default.
	StreamChunkSize int
}

// CompletedConfig is a Config whose defaults have been filled in.
type CompletedConfig struct {
	*Config
}

// Complete fills in defaulted values.
func (c *Config) Complete() CompletedConfig {
	if c.HistoryPath == "" {
		c.HistoryPath = ":memory:"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = operation.DefaultCacheTTL
	}
	if c.StreamChunkSize <= 0 {
		c.StreamChunkSize = operation.DefaultChunkSize
	}
	return CompletedConfig{c}
}

// New builds a runtime from the completed config. The record store, the
// audit store and the event bus are registered on the container so plugins
// can resolve them during Setup.
func (c CompletedConfig) New() (*Runtime, error) {
	ctn := container.New()
	bus := event.NewBus(c.EventHistorySize)

	if err := ctn.RegisterInstance(CapabilityBus, "", bus); err != nil {
		return nil, err
	}

	var store backend.Client
	if c.StorePath != "" {
		boltStore, err := backend.NewBoltStore(c.StorePath)
		if err != nil {
			return nil, err
		}
		store = boltStore
		if err := ctn.RegisterInstance(plugin.BackendCapability, "bolt", store); err != nil {
			return nil, err
		}
	} else {
		store = backend.NewMemoryStore()
		if err := ctn.RegisterInstance(plugin.BackendCapability, "memory", store); err != nil {
			return nil, err
		}
	}

	history, err := backend.NewHistoryStore(c.HistoryPath)
	if err != nil {
		return nil, err
	}
	if err := ctn.RegisterInstance(CapabilityHistory, "", history); err != nil {
		return nil, err
	}

	rt := &Runtime{
		config:    c,
		container: ctn,
		bus:       bus,
		store:     store,
		history:   history,
	}
	rt.pipeline.Store(middleware.NewPipeline())
	rt.registry = plugin.NewRegistry(&plugin.Host{Container: ctn, Bus: bus})
	return rt, nil
}

// Runtime is the assembled dispatch engine.
type Runtime struct {
	config    CompletedConfig
	container *container.Container
	registry  *plugin.Registry
	bus       *event.Bus
	// pipeline is swapped atomically on plugin reload so in-flight
	// dispatches never observe a half-built replacement.
	pipeline atomic.Pointer[middleware.Pipeline]
	store    backend.Client
	history  *backend.HistoryStore
}

// Container exposes the root container.
func (rt *Runtime) Container() *container.Container { return rt.container }

// Registry exposes the plugin registry.
func (rt *Runtime) Registry() *plugin.Registry { return rt.registry }

// Bus exposes the event bus.
func (rt *Runtime) Bus() *event.Bus { return rt.bus }

// CacheTTL reports the configured operation cache TTL.
func (rt *Runtime) CacheTTL() time.Duration { return rt.config.CacheTTL }

// StreamChunkSize reports the configured streaming chunk size.
func (rt *Runtime) StreamChunkSize() int { return rt.config.StreamChunkSize }

// Register adds a plugin to the registry.
func (rt *Runtime) Register(p plugin.Plugin) error {
	return rt.registry.Register(p)
}

// LoadFrom registers every plugin from the loader.
func (rt *Runtime) LoadFrom(l plugin.Loader) error {
	return rt.registry.LoadFrom(l)
}

// Init initializes all registered plugins and assembles the middleware
// pipeline from the active set.
func (rt *Runtime) Init(ctx context.Context) error {
	if err := rt.registry.InitializeAll(ctx); err != nil {
		return err
	}
	rt.syncMiddlewares()
	return nil
}

// ReloadPlugin reloads one plugin and resyncs the middleware pipeline.
func (rt *Runtime) ReloadPlugin(ctx context.Context, name string) error {
	if err := rt.registry.ReloadPlugin(ctx, name); err != nil {
		return err
	}
	rt.syncMiddlewares()
	return nil
}

func (rt *Runtime) syncMiddlewares() {
	p := middleware.NewPipeline()
	p.Use(rt.registry.Middlewares()...)
	rt.pipeline.Store(p)
}

// Shutdown tears plugins down and closes the stores.
func (rt *Runtime) Shutdown(ctx context.Context) {
	rt.registry.TeardownAll(ctx)
	if err := rt.store.Close(); err != nil {
		logger.Error("[Runtime] failed to close record store: %v", err)
	}
	if err := rt.history.Close(); err != nil {
		logger.Error("[Runtime] failed to close history store: %v", err)
	}
}

// Dispatch runs one request through the middleware pipeline and the
// resolved operation. It always returns a response: failures of any stage
// are folded into a structured error body. Request-scoped container
// instances are discarded when the dispatch finishes.
func (rt *Runtime) Dispatch(ctx context.Context, req *middleware.Request) *middleware.Response {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Meta == nil {
		req.Meta = make(map[string]interface{})
	}
	req.ReceivedAt = start

	defer rt.container.ClearRequestScope()

	opName := req.Tool + "." + req.Operation
	resp := &middleware.Response{Operation: opName}
	pipeline := rt.pipeline.Load()

	var dispatchErr error
	if err := pipeline.HandleRequest(ctx, req); err != nil {
		dispatchErr = err
		resp.Status = "error"
		resp.Error = operation.ErrorResult(opName, err)
	} else if h, err := rt.registry.OperationHandler(req.Tool, req.Operation); err != nil {
		dispatchErr = err
		resp.Status = "error"
		resp.Error = operation.ErrorResult(opName, err)
	} else {
		out, err := operation.Invoke(ctx, h, req.Params)
		if err != nil {
			dispatchErr = err
			resp.Status = "error"
			resp.Error = out
		} else {
			resp.Status = "success"
			resp.Data = out
		}
	}

	resp.ExecutionTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	pipeline.HandleResponse(ctx, req, resp)

	rt.emitDispatchEvents(ctx, req, resp, dispatchErr)
	return resp
}

func (rt *Runtime) emitDispatchEvents(ctx context.Context, req *middleware.Request, resp *middleware.Response, dispatchErr error) {
	payload := map[string]interface{}{
		"request_id":        req.ID,
		"tool":              req.Tool,
		"operation":         req.Operation,
		"status":            resp.Status,
		"execution_time_ms": resp.ExecutionTimeMs,
	}
	if dispatchErr != nil {
		payload["error_kind"] = string(errno.KindOf(dispatchErr))
	}

	if err := rt.bus.Emit(ctx, fmt.Sprintf("tool.%s.%s", req.Tool, req.Operation), payload); err != nil {
		logger.Debug("[Runtime] tool event handler error: %v", err)
	}
	if err := rt.bus.Emit(ctx, EventDispatchCompleted, payload); err != nil {
		logger.Debug("[Runtime] dispatch event handler error: %v", err)
	}
}
