package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMiddleware struct {
	name     string
	priority int
	trace    *[]string
	reqErr   error
	respErr  error
}

func (m *recordingMiddleware) Name() string  { return m.name }
func (m *recordingMiddleware) Priority() int { return m.priority }

func (m *recordingMiddleware) HandleRequest(ctx context.Context, req *Request) error {
	*m.trace = append(*m.trace, m.name+".req")
	return m.reqErr
}

func (m *recordingMiddleware) HandleResponse(ctx context.Context, req *Request, resp *Response) error {
	*m.trace = append(*m.trace, m.name+".resp")
	return m.respErr
}

func TestPipelineOrdering(t *testing.T) {
	var trace []string
	p := NewPipeline()
	p.Use(
		&recordingMiddleware{name: "m2", priority: 20, trace: &trace},
		&recordingMiddleware{name: "m1", priority: 10, trace: &trace},
	)

	req := &Request{Tool: "memory", Operation: "add"}
	require.NoError(t, p.HandleRequest(context.Background(), req))
	p.HandleResponse(context.Background(), req, &Response{})

	assert.Equal(t, []string{"m1.req", "m2.req", "m2.resp", "m1.resp"}, trace)
	assert.Equal(t, []string{"m1", "m2"}, p.Names())
}

func TestPipelineEqualPrioritiesKeepRegistrationOrder(t *testing.T) {
	var trace []string
	p := NewPipeline()
	p.Use(
		&recordingMiddleware{name: "a", priority: 10, trace: &trace},
		&recordingMiddleware{name: "b", priority: 10, trace: &trace},
	)

	require.NoError(t, p.HandleRequest(context.Background(), &Request{}))
	assert.Equal(t, []string{"a.req", "b.req"}, trace)
}

func TestPipelineRequestErrorAborts(t *testing.T) {
	var trace []string
	p := NewPipeline()
	p.Use(
		&recordingMiddleware{name: "first", priority: 1, trace: &trace, reqErr: errors.New("denied")},
		&recordingMiddleware{name: "second", priority: 2, trace: &trace},
	)

	err := p.HandleRequest(context.Background(), &Request{})
	require.Error(t, err)
	assert.Equal(t, []string{"first.req"}, trace)
}

func TestPipelineResponseErrorsAreBestEffort(t *testing.T) {
	var trace []string
	p := NewPipeline()
	p.Use(
		&recordingMiddleware{name: "first", priority: 1, trace: &trace},
		&recordingMiddleware{name: "second", priority: 2, trace: &trace, respErr: errors.New("boom")},
	)

	p.HandleResponse(context.Background(), &Request{}, &Response{})
	assert.Equal(t, []string{"second.resp", "first.resp"}, trace)
}
