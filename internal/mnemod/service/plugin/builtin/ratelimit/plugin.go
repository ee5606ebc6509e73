// Package ratelimit contributes a token-bucket rate limiting middleware.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/middleware"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "ratelimit"

// Priority places the limiter before the logging middleware so rejected
// requests are still cheap.
const Priority = 5

// Config holds the limiter's knobs.
type Config struct {
	// RPS is the sustained request rate. Zero or less disables limiting.
	RPS float64
	// Burst is the bucket size. Zero selects RPS rounded up, minimum 1.
	Burst int
}

// Plugin wires the rate limiting middleware into the pipeline.
type Plugin struct {
	cfg Config
}

// New creates the plugin.
func New(cfg Config) *Plugin {
	return &Plugin{cfg: cfg}
}

func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        PluginName,
		Version:     "1.0.0",
		Description: "Token-bucket rate limiting for dispatches.",
	}
}

func (p *Plugin) Setup(ctx context.Context, host *plugin.Host) error { return nil }
func (p *Plugin) Teardown(ctx context.Context) error                 { return nil }

func (p *Plugin) Middlewares() []middleware.Middleware {
	if p.cfg.RPS <= 0 {
		return nil
	}

	burst := p.cfg.Burst
	if burst <= 0 {
		burst = int(p.cfg.RPS)
		if burst < 1 {
			burst = 1
		}
	}

	return []middleware.Middleware{&limiterMiddleware{
		rps:      p.cfg.RPS,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}}
}

// limiterMiddleware keeps one token bucket per tool so a chatty tool
// cannot starve the others.
type limiterMiddleware struct {
	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (m *limiterMiddleware) Name() string  { return "ratelimit" }
func (m *limiterMiddleware) Priority() int { return Priority }

func (m *limiterMiddleware) limiterFor(tool string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[tool]
	if !ok {
		l = rate.NewLimiter(rate.Limit(m.rps), m.burst)
		m.limiters[tool] = l
	}
	return l
}

func (m *limiterMiddleware) HandleRequest(ctx context.Context, req *middleware.Request) error {
	if !m.limiterFor(req.Tool).Allow() {
		return errno.New(errno.KindRateLimited,
			"request rate exceeded for %s.%s", req.Tool, req.Operation)
	}
	return nil
}

func (m *limiterMiddleware) HandleResponse(ctx context.Context, req *middleware.Request, resp *middleware.Response) error {
	return nil
}
