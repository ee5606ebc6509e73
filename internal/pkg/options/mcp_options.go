package options

import (
	"github.com/spf13/pflag"
)

// MCPOptions configures the MCP stdio transport.
type MCPOptions struct {
	// Enabled serves the runtime's tools over MCP on stdin/stdout.
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// ServerName is the name announced during the MCP handshake.
	ServerName string `json:"server-name" mapstructure:"server-name"`
}

// NewMCPOptions returns a new instance of MCPOptions.
func NewMCPOptions() *MCPOptions {
	return &MCPOptions{
		Enabled:    false,
		ServerName: "mnemora",
	}
}

// Validate checks MCPOptions fields.
func (o *MCPOptions) Validate() []error {
	return nil
}

// AddFlags adds flags for the MCP options.
func (o *MCPOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "mcp.enabled", o.Enabled,
		"Serve tools over MCP on stdin/stdout in addition to the HTTP gateway.")
	fs.StringVar(&o.ServerName, "mcp.server-name", o.ServerName,
		"Server name announced during the MCP handshake.")
}
