// Package middleware implements the cross-cutting pipeline wrapped around
// every dispatch. Request processing runs in ascending priority order and
// response processing runs in the exact reverse order.
package middleware

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mnemora/mnemora/pkg/logger"
)

// Request is the dispatch request as seen by middlewares. Middlewares may
// rewrite Params and stash cross-stage state in Meta.
type Request struct {
	ID         string                 `json:"id"`
	Tool       string                 `json:"tool"`
	Operation  string                 `json:"operation"`
	Params     map[string]interface{} `json:"params"`
	Meta       map[string]interface{} `json:"-"`
	ReceivedAt time.Time              `json:"received_at"`
}

// Response is the dispatch response as seen by middlewares.
type Response struct {
	Status          string                 `json:"status"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Error           map[string]interface{} `json:"error,omitempty"`
	Operation       string                 `json:"operation"`
	ExecutionTimeMs float64                `json:"execution_time_ms"`
}

// Middleware processes requests before dispatch and responses after.
// Lower priority values run first on the request side.
type Middleware interface {
	Name() string
	Priority() int
	HandleRequest(ctx context.Context, req *Request) error
	HandleResponse(ctx context.Context, req *Request, resp *Response) error
}

// Pipeline holds middlewares sorted by priority. Equal priorities keep
// their registration order.
type Pipeline struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Use adds middlewares to the pipeline, keeping the priority ordering.
func (p *Pipeline) Use(mws ...Middleware) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.middlewares = append(p.middlewares, mws...)
	sort.SliceStable(p.middlewares, func(i, j int) bool {
		return p.middlewares[i].Priority() < p.middlewares[j].Priority()
	})
}

// Names lists the middleware names in execution order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.middlewares))
	for _, mw := range p.middlewares {
		names = append(names, mw.Name())
	}
	return names
}

// HandleRequest runs every middleware in priority order. The first error
// aborts the chain and the dispatch.
func (p *Pipeline) HandleRequest(ctx context.Context, req *Request) error {
	p.mu.RLock()
	mws := p.middlewares
	p.mu.RUnlock()

	for _, mw := range mws {
		if err := mw.HandleRequest(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// HandleResponse runs every middleware in reverse priority order. Response
// processing is best-effort: a failing middleware is logged and skipped so
// the response still reaches the caller.
func (p *Pipeline) HandleResponse(ctx context.Context, req *Request, resp *Response) {
	p.mu.RLock()
	mws := p.middlewares
	p.mu.RUnlock()

	for i := len(mws) - 1; i >= 0; i-- {
		if err := mws[i].HandleResponse(ctx, req, resp); err != nil {
			logger.Error("[Middleware] %s response stage failed: %v", mws[i].Name(), err)
		}
	}
}
