package operation

import (
	"context"

	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

// CompositeHandler runs a fixed sequence of handlers as a pipeline. Each
// stage receives the original parameters merged with the previous stage's
// result; the final stage's result is returned. A failing stage aborts
// the pipeline.
type CompositeHandler struct {
	meta   schema.Metadata
	stages []Handler
}

// NewComposite builds a pipeline handler from the given stages.
func NewComposite(meta schema.Metadata, stages ...Handler) *CompositeHandler {
	return &CompositeHandler{meta: meta, stages: stages}
}

func (c *CompositeHandler) Metadata() schema.Metadata {
	return c.meta
}

func (c *CompositeHandler) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	current := params
	var result map[string]interface{}

	for _, stage := range c.stages {
		out, err := Invoke(ctx, stage, current)
		if err != nil {
			return out, err
		}
		result = out

		next := make(map[string]interface{}, len(params)+len(out))
		for k, v := range params {
			next[k] = v
		}
		for k, v := range out {
			next[k] = v
		}
		current = next
	}

	if result == nil {
		result = map[string]interface{}{}
	}
	return result, nil
}
