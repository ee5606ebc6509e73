package mnemod

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mnemora/mnemora/internal/mnemod/service/middleware"
	"github.com/mnemora/mnemora/internal/mnemod/service/operation"
	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
	"github.com/mnemora/mnemora/internal/mnemod/service/schema"
	"github.com/mnemora/mnemora/pkg/logger"
)

const mcpServerVersion = "1.0.0"

// mcpServer adapts the dispatch runtime to MCP on stdin/stdout. Every
// tool operation becomes one MCP tool named <tool>_<operation>.
type mcpServer struct {
	runtime *runtime.Runtime
	server  *mcpserver.MCPServer
}

func newMCPServer(name string, rt *runtime.Runtime) *mcpServer {
	s := mcpserver.NewMCPServer(
		name,
		mcpServerVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithLogging(),
	)

	adapter := &mcpServer{runtime: rt, server: s}
	adapter.installTools()
	return adapter
}

func (m *mcpServer) installTools() {
	for _, def := range m.runtime.Registry().ToolDefinitions() {
		for opName, h := range def.Operations {
			tool := def.Name
			op := opName

			m.server.AddTool(mcp.Tool{
				Name:        fmt.Sprintf("%s_%s", tool, op),
				Description: h.Metadata().Description,
				InputSchema: inputSchemaFor(h.Metadata()),
			}, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return m.dispatch(ctx, tool, op, request.GetArguments())
			})
		}
	}
}

func (m *mcpServer) dispatch(ctx context.Context, tool, op string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	resp := m.runtime.Dispatch(ctx, &middleware.Request{
		Tool:      tool,
		Operation: op,
		Params:    args,
	})

	if resp.Status != "success" {
		msg, _ := resp.Error["error"].(string)
		if msg == "" {
			msg = fmt.Sprintf("%s.%s failed", tool, op)
		}
		return mcp.NewToolResultError(msg), nil
	}

	// Stdio has no chunked delivery; collect streamed results first.
	data := resp.Data
	if ch, ok := data[operation.StreamResultKey].(<-chan operation.Chunk); ok {
		var items []interface{}
		for chunk := range ch {
			items = append(items, chunk.Items...)
		}
		collected := make(map[string]interface{}, len(data))
		for k, v := range data {
			if k == operation.StreamResultKey {
				continue
			}
			collected[k] = v
		}
		collected["items"] = items
		data = collected
	}

	return mcp.NewToolResultStructuredOnly(data), nil
}

// Serve blocks serving MCP on stdin/stdout.
func (m *mcpServer) Serve() error {
	logger.Info("[MCP] serving tools on stdio")
	return mcpserver.ServeStdio(m.server)
}

func inputSchemaFor(md schema.Metadata) mcp.ToolInputSchema {
	properties := make(map[string]interface{}, len(md.Parameters))
	var required []string

	for _, p := range md.Parameters {
		prop := map[string]interface{}{}
		if t := jsonSchemaType(p.Type); t != "" {
			prop["type"] = t
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Choices) > 0 {
			prop["enum"] = p.Choices
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func jsonSchemaType(t schema.ParameterType) string {
	switch t {
	case schema.TypeString:
		return "string"
	case schema.TypeInteger:
		return "integer"
	case schema.TypeFloat:
		return "number"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeObject:
		return "object"
	case schema.TypeArray:
		return "array"
	default:
		return ""
	}
}
