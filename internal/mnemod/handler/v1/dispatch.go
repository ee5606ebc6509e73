// Package v1 implements the HTTP gateway handlers of the dispatch runtime.
package v1

import (
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/mnemora/mnemora/internal/mnemod/service/middleware"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
)

// DispatchRequest is the HTTP body of a dispatch call.
type DispatchRequest struct {
	Tool      string                 `json:"tool" binding:"required"`
	Operation string                 `json:"operation" binding:"required"`
	Params    map[string]interface{} `json:"params"`
}

// DispatchHandler serves /v1/dispatch.
type DispatchHandler struct {
	runtime *runtime.Runtime
}

// NewDispatchHandler creates the handler.
func NewDispatchHandler(rt *runtime.Runtime) *DispatchHandler {
	return &DispatchHandler{runtime: rt}
}

// Handle runs one dispatch. Streaming results are delivered as
// server-sent events; everything else as a single JSON document.
func (h *DispatchHandler) Handle(c *gin.Context) {
	var body DispatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := &middleware.Request{
		Tool:      body.Tool,
		Operation: body.Operation,
		Params:    body.Params,
	}
	resp := h.runtime.Dispatch(c.Request.Context(), req)

	if resp.Status == "success" {
		if ch, ok := resp.Data[operation.StreamResultKey].(<-chan operation.Chunk); ok {
			streamChunks(c, ch)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(statusFor(resp), resp)
}

func statusFor(resp *middleware.Response) int {
	kind, _ := resp.Error["kind"].(string)
	switch kind {
	case "ValidationError":
		return http.StatusBadRequest
	case "UnknownTool", "UnknownOperation":
		return http.StatusNotFound
	case "RateLimited":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func streamChunks(c *gin.Context, ch <-chan operation.Chunk) {
	c.Header("Content-Type", sse.ContentType)

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-ch
		if !ok {
			return false
		}
		event := sse.Event{Event: "chunk", Data: chunk}
		if err := sse.Encode(w, event); err != nil {
			return false
		}
		return !chunk.Done
	})
}
