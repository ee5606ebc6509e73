// Package options assembles the full flag surface of the mnemod server.
package options

import (
	genericoptions "github.com/mnemora/mnemora/internal/pkg/options"
	"github.com/mnemora/mnemora/internal/pkg/server"
	"github.com/mnemora/mnemora/pkg/utils/cliflag"
	"github.com/mnemora/mnemora/pkg/utils/json"
)

// Options runs the mnemod server.
type Options struct {
	GenericServerRunOptions *genericoptions.ServerRunOptions `json:"serving"  mapstructure:"serving"`
	PluginOptions           *genericoptions.PluginsOptions   `json:"plugins"  mapstructure:"plugins"`
	RuntimeOptions          *genericoptions.RuntimeOptions   `json:"runtime"  mapstructure:"runtime"`
	BackendOptions          *genericoptions.BackendOptions   `json:"backend"  mapstructure:"backend"`
	MCPOptions              *genericoptions.MCPOptions       `json:"mcp"      mapstructure:"mcp"`
	LogOptions              *genericoptions.LogOptions       `json:"log"      mapstructure:"log"`
}

// NewOptions creates an Options with default parameters.
func NewOptions() *Options {
	return &Options{
		GenericServerRunOptions: genericoptions.NewServerRunOptions(),
		PluginOptions:           genericoptions.NewPluginsOptions(),
		RuntimeOptions:          genericoptions.NewRuntimeOptions(),
		BackendOptions:          genericoptions.NewBackendOptions(),
		MCPOptions:              genericoptions.NewMCPOptions(),
		LogOptions:              genericoptions.NewLogOptions(),
	}
}

// Flags returns flags grouped by section.
func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.GenericServerRunOptions.AddFlags(fss.FlagSet("serving"))
	o.PluginOptions.AddFlags(fss.FlagSet("plugins"))
	o.RuntimeOptions.AddFlags(fss.FlagSet("runtime"))
	o.BackendOptions.AddFlags(fss.FlagSet("backend"))
	o.MCPOptions.AddFlags(fss.FlagSet("mcp"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	return fss
}

// ApplyTo applies the run options to the given server config.
func (o *Options) ApplyTo(c *server.Config) error {
	return o.GenericServerRunOptions.ApplyTo(c)
}

// Validate checks all option sections.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.GenericServerRunOptions.Validate()...)
	errs = append(errs, o.PluginOptions.Validate()...)
	errs = append(errs, o.RuntimeOptions.Validate()...)
	errs = append(errs, o.BackendOptions.Validate()...)
	errs = append(errs, o.MCPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	return errs
}

// Complete set default Options.
func (o *Options) Complete() error {
	return nil
}

func (o *Options) String() string {
	data, _ := json.Marshal(o)
	return string(data)
}
