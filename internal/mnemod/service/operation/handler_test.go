package operation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

type hookedHandler struct {
	meta      schema.Metadata
	preCalls  int
	postCalls int
	execErr   error
}

func (h *hookedHandler) Metadata() schema.Metadata { return h.meta }

func (h *hookedHandler) PreExecute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	h.preCalls++
	params["stamped"] = true
	return params, nil
}

func (h *hookedHandler) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	if h.execErr != nil {
		return nil, h.execErr
	}
	return map[string]interface{}{"echo": params["value"], "stamped": params["stamped"]}, nil
}

func (h *hookedHandler) PostExecute(ctx context.Context, params, result map[string]interface{}) (map[string]interface{}, error) {
	h.postCalls++
	result["post"] = true
	return result, nil
}

func echoMeta() schema.Metadata {
	return schema.Metadata{
		Name: "echo",
		Parameters: []schema.ParameterDefinition{
			{Name: "value", Type: schema.TypeString, Required: true},
		},
	}
}

func TestInvokeRunsFullLifecycle(t *testing.T) {
	h := &hookedHandler{meta: echoMeta()}
	out, err := Invoke(context.Background(), h, map[string]interface{}{"value": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])
	assert.Equal(t, true, out["stamped"])
	assert.Equal(t, true, out["post"])
	assert.Equal(t, 1, h.preCalls)
	assert.Equal(t, 1, h.postCalls)
}

func TestInvokeValidationFailureSkipsExecution(t *testing.T) {
	h := &hookedHandler{meta: echoMeta()}
	out, err := Invoke(context.Background(), h, map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, 0, h.preCalls)
	assert.Equal(t, string(errno.KindValidation), out["kind"])
	assert.NotEmpty(t, out["violations"])
}

func TestInvokeExecutionErrorProducesStructuredResult(t *testing.T) {
	h := &hookedHandler{meta: echoMeta(), execErr: errors.New("backend down")}
	out, err := Invoke(context.Background(), h, map[string]interface{}{"value": "hi"})
	require.Error(t, err)
	assert.Equal(t, "echo", out["operation"])
	assert.Equal(t, string(errno.KindDomainExecution), out["kind"])
	assert.Contains(t, out["error"], "backend down")
	assert.Equal(t, 0, h.postCalls)
}

type customErrHandler struct {
	Func
}

func (c *customErrHandler) HandleError(ctx context.Context, err error, params map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"handled": true}
}

func TestInvokePrefersHandlersOwnErrorShape(t *testing.T) {
	h := &customErrHandler{Func: Func{
		Meta: schema.Metadata{Name: "flaky"},
		Fn: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return nil, errors.New("boom")
		},
	}}

	out, err := Invoke(context.Background(), h, nil)
	require.Error(t, err)
	assert.Equal(t, map[string]interface{}{"handled": true}, out)
}

func TestBatchHandlerContinuesPastFailures(t *testing.T) {
	inner := NewFunc(echoMeta(), func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"echo": params["value"]}, nil
	})

	batch := NewBatch(inner)
	assert.Equal(t, "echo_batch", batch.Metadata().Name)

	out, err := Invoke(context.Background(), batch, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"value": "a"},
			map[string]interface{}{},
			map[string]interface{}{"value": "c"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out["total"])
	assert.Equal(t, 2, out["succeeded"])
	assert.Equal(t, 1, out["failed"])

	results := out["results"].([]map[string]interface{})
	assert.Equal(t, "success", results[0]["status"])
	assert.Equal(t, "error", results[1]["status"])
	assert.Equal(t, "success", results[2]["status"])
}

func TestStreamingHandlerChunksItems(t *testing.T) {
	items := make([]interface{}, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, i)
	}
	inner := NewFunc(schema.Metadata{Name: "get_all"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"memories": items, "count": len(items)}, nil
	})

	s := NewStreaming(inner, "memories", 2)

	out, err := Invoke(context.Background(), s, map[string]interface{}{"stream": true})
	require.NoError(t, err)
	assert.Equal(t, true, out["streaming"])

	ch, ok := out[StreamResultKey].(<-chan Chunk)
	require.True(t, ok)

	var chunks []Chunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Items, 2)
	assert.Len(t, chunks[2].Items, 1)
	assert.True(t, chunks[2].Done)
	assert.False(t, chunks[0].Done)
}

func TestStreamingHandlerPassesThroughWithoutStreamFlag(t *testing.T) {
	inner := NewFunc(schema.Metadata{Name: "get_all"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"memories": []interface{}{1, 2}}, nil
	})
	s := NewStreaming(inner, "memories", 2)

	out, err := Invoke(context.Background(), s, map[string]interface{}{})
	require.NoError(t, err)
	assert.NotContains(t, out, StreamResultKey)
	assert.Len(t, out["memories"], 2)
}

func TestCachedHandlerHitAndExpiry(t *testing.T) {
	calls := 0
	inner := NewFunc(schema.Metadata{Name: "search"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		calls++
		return map[string]interface{}{"hits": []interface{}{"m1"}}, nil
	})

	cached := NewCached(inner, 50*time.Millisecond)
	ctx := context.Background()
	params := map[string]interface{}{"query": "golang"}

	first, err := Invoke(ctx, cached, params)
	require.NoError(t, err)
	assert.NotContains(t, first, "from_cache")

	second, err := Invoke(ctx, cached, params)
	require.NoError(t, err)
	assert.Equal(t, true, second["from_cache"])
	assert.Equal(t, 1, calls)

	// Mutating the hit must not poison the cache.
	second["hits"].([]interface{})[0] = "tampered"
	third, err := Invoke(ctx, cached, params)
	require.NoError(t, err)
	assert.Equal(t, "m1", third["hits"].([]interface{})[0])

	time.Sleep(60 * time.Millisecond)
	_, err = Invoke(ctx, cached, params)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedHandlerDistinguishesParams(t *testing.T) {
	calls := 0
	inner := NewFunc(schema.Metadata{Name: "search"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		calls++
		return map[string]interface{}{"q": params["query"]}, nil
	})
	cached := NewCached(inner, time.Minute)
	ctx := context.Background()

	_, err := Invoke(ctx, cached, map[string]interface{}{"query": "a"})
	require.NoError(t, err)
	_, err = Invoke(ctx, cached, map[string]interface{}{"query": "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	cached.Invalidate()
	_, err = Invoke(ctx, cached, map[string]interface{}{"query": "a"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCompositePipelineFeedsResultsForward(t *testing.T) {
	first := NewFunc(schema.Metadata{Name: "resolve"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"entity_id": "e1"}, nil
	})
	second := NewFunc(schema.Metadata{Name: "enrich"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"entity_id": params["entity_id"], "enriched": true}, nil
	})

	pipeline := NewComposite(schema.Metadata{Name: "resolve_and_enrich"}, first, second)

	out, err := Invoke(context.Background(), pipeline, map[string]interface{}{"name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "e1", out["entity_id"])
	assert.Equal(t, true, out["enriched"])
}

func TestCompositePipelineAbortsOnFailure(t *testing.T) {
	first := NewFunc(schema.Metadata{Name: "resolve"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("no such entity")
	})
	var secondRan bool
	second := NewFunc(schema.Metadata{Name: "enrich"}, func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		secondRan = true
		return nil, nil
	})

	pipeline := NewComposite(schema.Metadata{Name: "resolve_and_enrich"}, first, second)

	_, err := Invoke(context.Background(), pipeline, nil)
	require.Error(t, err)
	assert.False(t, secondRan)
}
