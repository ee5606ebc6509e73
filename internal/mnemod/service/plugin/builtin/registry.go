// Package builtin assembles the in-tree plugin set from the unified
// plugins options. Each plugin receives its configuration from
// plugins.entries.<name>.config.
package builtin

import (
	"time"

	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/entity"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/export"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/graph"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/history"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/memory"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/observability"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/ratelimit"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin/webhook"
	genericoptions "github.com/mnemora/mnemora/internal/pkg/options"
	"github.com/mnemora/mnemora/pkg/logger"
)

// Defaults are the runtime-level fallbacks for per-plugin settings not
// present in the options file.
type Defaults struct {
	CacheTTL       time.Duration
	ChunkSize      int
	RateLimitRPS   float64
	RateLimitBurst int
}

// Loader produces the in-tree plugins honoring the allow/deny filters.
// It implements plugin.Loader.
type Loader struct {
	opts     *genericoptions.PluginsOptions
	defaults Defaults
}

// NewLoader creates the in-tree plugin loader.
func NewLoader(opts *genericoptions.PluginsOptions, defaults Defaults) *Loader {
	if opts == nil {
		opts = genericoptions.NewPluginsOptions()
	}
	return &Loader{opts: opts, defaults: defaults}
}

// Load implements plugin.Loader.
func (l *Loader) Load() ([]plugin.Plugin, error) {
	candidates := []plugin.Plugin{
		memory.New(l.memoryConfig()),
		entity.New(),
		graph.New(),
		export.New(),
		webhook.New(),
		history.New(),
		observability.New(),
		ratelimit.New(l.ratelimitConfig()),
	}

	var out []plugin.Plugin
	for _, p := range candidates {
		name := p.Metadata().Name
		if !l.opts.Allowed(name) {
			logger.Info("[Plugin] skipping plugin %s (filtered by options)", name)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// memoryConfig resolves the memory plugin config from
// plugins.entries.memory.config.
func (l *Loader) memoryConfig() memory.Config {
	cfg := memory.Config{
		CacheTTL:  l.defaults.CacheTTL,
		ChunkSize: l.defaults.ChunkSize,
	}

	entry := l.opts.EntryConfig(memory.PluginName)
	if entry == nil {
		return cfg
	}

	if v, ok := entry["backend"]; ok {
		if s, ok := v.(string); ok {
			cfg.Backend = s
		}
	}
	if v, ok := entry["cache_ttl"]; ok {
		if s, ok := v.(string); ok {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheTTL = d
			}
		}
	}
	if v, ok := entry["chunk_size"]; ok {
		switch n := v.(type) {
		case int:
			cfg.ChunkSize = n
		case float64:
			cfg.ChunkSize = int(n)
		}
	}
	return cfg
}

// ratelimitConfig resolves the rate limiter config from
// plugins.entries.ratelimit.config, falling back to the runtime defaults.
func (l *Loader) ratelimitConfig() ratelimit.Config {
	cfg := ratelimit.Config{
		RPS:   l.defaults.RateLimitRPS,
		Burst: l.defaults.RateLimitBurst,
	}

	entry := l.opts.EntryConfig(ratelimit.PluginName)
	if entry == nil {
		return cfg
	}

	if v, ok := entry["rps"]; ok {
		switch n := v.(type) {
		case int:
			cfg.RPS = float64(n)
		case float64:
			cfg.RPS = n
		}
	}
	if v, ok := entry["burst"]; ok {
		switch n := v.(type) {
		case int:
			cfg.Burst = n
		case float64:
			cfg.Burst = int(n)
		}
	}
	return cfg
}
