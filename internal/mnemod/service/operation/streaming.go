package operation

import (
	"context"

	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

const (
	// StreamParam requests chunked delivery when set to true.
	StreamParam = "stream"
	// StreamResultKey holds the chunk channel in a streaming result.
	StreamResultKey = "stream"
	// DefaultChunkSize is used when no chunk size is configured.
	DefaultChunkSize = 50
)

// Chunk is one slice of a streamed result set.
type Chunk struct {
	Index int           `json:"index"`
	Items []interface{} `json:"items"`
	Done  bool          `json:"done"`
}

// StreamingHandler wraps a handler whose result carries a list under
// ItemsKey. When the caller sets the stream parameter, the list is
// delivered as chunks over a channel instead of a single payload.
type StreamingHandler struct {
	inner     Handler
	itemsKey  string
	chunkSize int
}

// NewStreaming wraps the inner handler. itemsKey names the result field
// holding the streamable list; chunkSize <= 0 selects DefaultChunkSize.
func NewStreaming(inner Handler, itemsKey string, chunkSize int) *StreamingHandler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &StreamingHandler{inner: inner, itemsKey: itemsKey, chunkSize: chunkSize}
}

func (s *StreamingHandler) Metadata() schema.Metadata {
	return s.inner.Metadata()
}

func (s *StreamingHandler) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	want, _ := params[StreamParam].(bool)
	if want {
		delete(params, StreamParam)
	}

	result, err := s.inner.Execute(ctx, params)
	if err != nil || !want {
		return result, err
	}

	items, ok := result[s.itemsKey].([]interface{})
	if !ok {
		return result, nil
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		index := 0
		for start := 0; start < len(items); start += s.chunkSize {
			end := start + s.chunkSize
			if end > len(items) {
				end = len(items)
			}
			chunk := Chunk{Index: index, Items: items[start:end], Done: end == len(items)}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
			index++
		}
		if len(items) == 0 {
			select {
			case ch <- Chunk{Index: 0, Items: nil, Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	out := make(map[string]interface{}, len(result)+2)
	for k, v := range result {
		if k == s.itemsKey {
			continue
		}
		out[k] = v
	}
	out[StreamResultKey] = (<-chan Chunk)(ch)
	out["streaming"] = true
	return out, nil
}

// PreExecute and the other optional lifecycle stages are forwarded to the
// inner handler so wrapping does not hide its hooks.
func (s *StreamingHandler) PreExecute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	if pre, ok := s.inner.(PreHook); ok {
		return pre.PreExecute(ctx, params)
	}
	return params, nil
}

func (s *StreamingHandler) HandleError(ctx context.Context, err error, params map[string]interface{}) map[string]interface{} {
	if eh, ok := s.inner.(ErrorHandler); ok {
		return eh.HandleError(ctx, err, params)
	}
	return nil
}
