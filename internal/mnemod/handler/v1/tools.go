package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
)

// ToolsHandler serves the tool catalog.
type ToolsHandler struct {
	runtime *runtime.Runtime
}

// NewToolsHandler creates the handler.
func NewToolsHandler(rt *runtime.Runtime) *ToolsHandler {
	return &ToolsHandler{runtime: rt}
}

// List returns every exposed tool with its operations and parameters.
func (h *ToolsHandler) List(c *gin.Context) {
	defs := h.runtime.Registry().ToolDefinitions()

	tools := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		ops := make(map[string]gin.H, len(def.Operations))
		for name, handler := range def.Operations {
			ops[name] = describeOperation(handler.Metadata())
		}
		tools = append(tools, gin.H{
			"name":        def.Name,
			"description": def.Description,
			"operations":  ops,
		})
	}

	c.JSON(http.StatusOK, gin.H{"tools": tools, "count": len(tools)})
}

func describeOperation(md schema.Metadata) gin.H {
	params := make([]gin.H, 0, len(md.Parameters))
	for _, p := range md.Parameters {
		param := gin.H{
			"name":     p.Name,
			"type":     string(p.Type),
			"required": p.Required,
		}
		if p.Description != "" {
			param["description"] = p.Description
		}
		if p.Default != nil {
			param["default"] = p.Default
		}
		if len(p.Choices) > 0 {
			param["choices"] = p.Choices
		}
		params = append(params, param)
	}

	out := gin.H{
		"description": md.Description,
		"parameters":  params,
	}
	if md.Deprecated {
		out["deprecated"] = true
	}
	if md.Version != "" {
		out["version"] = md.Version
	}
	return out
}
