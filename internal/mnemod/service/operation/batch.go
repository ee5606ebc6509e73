package operation

import (
	"context"
	"fmt"

	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

// BatchHandler wraps a handler so it accepts an "items" array and runs the
// inner lifecycle once per item. Items are not isolated from one another:
// a failing item is recorded and processing continues with the next.
type BatchHandler struct {
	inner Handler
	meta  schema.Metadata
}

// NewBatch derives a batch variant of the inner handler. Its operation name
// is the inner name with a "_batch" suffix.
func NewBatch(inner Handler) *BatchHandler {
	innerMeta := inner.Metadata()
	return &BatchHandler{
		inner: inner,
		meta: schema.Metadata{
			Name:        innerMeta.Name + "_batch",
			Description: fmt.Sprintf("Batch variant of %s, applied to each element of items.", innerMeta.Name),
			Parameters: []schema.ParameterDefinition{
				{Name: "items", Type: schema.TypeArray, Required: true,
					Description: "Per-item parameter objects."},
			},
			Returns: "object",
			Version: innerMeta.Version,
		},
	}
}

func (b *BatchHandler) Metadata() schema.Metadata {
	return b.meta
}

func (b *BatchHandler) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	items, _ := params["items"].([]interface{})

	results := make([]map[string]interface{}, 0, len(items))
	succeeded, failed := 0, 0

	for i, raw := range items {
		itemParams, ok := raw.(map[string]interface{})
		if !ok {
			failed++
			results = append(results, map[string]interface{}{
				"index":  i,
				"status": "error",
				"error":  fmt.Sprintf("item %d is not an object", i),
			})
			continue
		}

		out, err := Invoke(ctx, b.inner, itemParams)
		if err != nil {
			failed++
			results = append(results, map[string]interface{}{
				"index":  i,
				"status": "error",
				"error":  out,
			})
			continue
		}

		succeeded++
		results = append(results, map[string]interface{}{
			"index":  i,
			"status": "success",
			"data":   out,
		})
	}

	return map[string]interface{}{
		"results":   results,
		"total":     len(items),
		"succeeded": succeeded,
		"failed":    failed,
	}, nil
}
