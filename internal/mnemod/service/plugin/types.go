// Package plugin defines the plugin contract and the registry that owns
// plugin lifecycle: registration, dependency-ordered initialization,
// operation exposure and teardown.
package plugin

import (
	"context"

	"github.com/mnemora/mnemora/internal/mnemod/service/container"
	"github.com/mnemora/mnemora/internal/mnemod/service/event"
	"github.com/mnemora/mnemora/internal/mnemod/service/middleware"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
)

// Metadata identifies a plugin and declares its dependencies on other
// plugins by name.
type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Host is the runtime surface handed to plugins during Setup. Plugins pull
// shared services from the container and publish or subscribe on the bus.
type Host struct {
	Container *container.Container
	Bus       *event.Bus
}

// Plugin is the minimal lifecycle contract. Setup runs once, in dependency
// order; Teardown runs in reverse initialization order.
type Plugin interface {
	Metadata() Metadata
	Setup(ctx context.Context, host *Host) error
	Teardown(ctx context.Context) error
}

// ToolDefinition groups the operations a plugin exposes under one tool name.
type ToolDefinition struct {
	Name        string
	Description string
	Operations  map[string]operation.Handler
}

// ToolPlugin exposes dispatchable tools. Tools is read after a successful
// Setup.
type ToolPlugin interface {
	Plugin
	Tools() []ToolDefinition
}

// MiddlewarePlugin contributes middlewares to the dispatch pipeline.
type MiddlewarePlugin interface {
	Plugin
	Middlewares() []middleware.Middleware
}

// BackendPlugin contributes named storage backends. Each entry is
// registered on the container under the backend capability after Setup.
type BackendPlugin interface {
	Plugin
	Backends() map[string]interface{}
}

// BackendCapability is the container key backend clients register under.
const BackendCapability = "backend"

// Loader produces plugins from an external source, such as a compiled-in
// set or a discovery mechanism.
type Loader interface {
	Load() ([]Plugin, error)
}

// State tracks where a plugin is in its lifecycle.
type State string

const (
	StateRegistered State = "registered"
	StateActive     State = "active"
	StateFailed     State = "failed"
	StateStopped    State = "stopped"
)

// Info is the introspection view of a registered plugin.
type Info struct {
	Metadata Metadata `json:"metadata"`
	State    State    `json:"state"`
	Error    string   `json:"error,omitempty"`
	Tools    []string `json:"tools,omitempty"`
}
