// Package operation defines the handler contract every dispatchable
// operation implements, plus the lifecycle driver and the decorators
// (batch, streaming, cached, composite) that compose handlers.
package operation

import (
	"context"
	"errors"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
	"github.com/mnemora/mnemora/pkg/logger"
)

// Handler is a dispatchable operation. Execute receives parameters that
// already passed schema validation.
type Handler interface {
	Metadata() schema.Metadata
	Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// PreHook runs after validation and before Execute. It may rewrite the
// parameter set; returning an error aborts the operation.
type PreHook interface {
	PreExecute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// PostHook runs after a successful Execute and may rewrite the result.
type PostHook interface {
	PostExecute(ctx context.Context, params, result map[string]interface{}) (map[string]interface{}, error)
}

// ErrorHandler converts a lifecycle failure into a structured error result.
// Implementations must not panic; the returned map becomes the response body.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error, params map[string]interface{}) map[string]interface{}
}

// Invoke drives the full operation lifecycle: validate, pre-execute,
// execute, post-execute. Failures at any stage are converted into a
// structured error map, either by the handler's own ErrorHandler or by
// the default shape, and returned alongside the original error. Invoke
// never lets an error escape without a usable result map.
func Invoke(ctx context.Context, h Handler, raw map[string]interface{}) (map[string]interface{}, error) {
	md := h.Metadata()

	params, err := md.ValidateParams(raw)
	if err != nil {
		return fail(ctx, h, err, raw), err
	}

	if pre, ok := h.(PreHook); ok {
		params, err = pre.PreExecute(ctx, params)
		if err != nil {
			return fail(ctx, h, err, params), err
		}
	}

	result, err := h.Execute(ctx, params)
	if err != nil {
		return fail(ctx, h, err, params), err
	}

	if post, ok := h.(PostHook); ok {
		result, err = post.PostExecute(ctx, params, result)
		if err != nil {
			return fail(ctx, h, err, params), err
		}
	}

	return result, nil
}

func fail(ctx context.Context, h Handler, err error, params map[string]interface{}) map[string]interface{} {
	logger.Debug("[Operation] %s failed: %v", h.Metadata().Name, err)

	if eh, ok := h.(ErrorHandler); ok {
		if out := eh.HandleError(ctx, err, params); out != nil {
			return out
		}
	}
	return ErrorResult(h.Metadata().Name, err)
}

// ErrorResult is the default structured error body for a failed operation.
func ErrorResult(operation string, err error) map[string]interface{} {
	out := map[string]interface{}{
		"operation": operation,
		"kind":      string(errno.KindOf(err)),
		"error":     err.Error(),
	}

	var e *errno.Error
	if errors.As(err, &e) && len(e.Violations()) > 0 {
		out["violations"] = e.Violations()
	}
	return out
}

// Func adapts a plain function into a Handler.
type Func struct {
	Meta schema.Metadata
	Fn   func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// NewFunc builds a function-backed handler.
func NewFunc(meta schema.Metadata, fn func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)) *Func {
	return &Func{Meta: meta, Fn: fn}
}

func (f *Func) Metadata() schema.Metadata {
	return f.Meta
}

func (f *Func) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	return f.Fn(ctx, params)
}
