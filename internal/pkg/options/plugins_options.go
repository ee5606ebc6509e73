package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

// PluginsOptions holds the top-level configuration for the plugin system.
// Aligned with the plugin system configuration file.
type PluginsOptions struct {
	// Enabled controls whether the plugin system is enabled. (default: true)
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Allow lists plugins that are explicitly allowed to be loaded. An
	// empty list allows every plugin not denied.
	Allow []string `json:"allow" mapstructure:"allow"`
	// Deny lists plugins that are explicitly denied to be loaded.
	Deny []string `json:"deny" mapstructure:"deny"`
	// Entries holds per-plugin configuration.
	// Key is the plugin name. (e.g. "memory", "ratelimit")
	Entries map[string]PluginEntryConfig `json:"entries" mapstructure:"entries"`
}

// PluginEntryConfig holds per-plugin configuration.
type PluginEntryConfig struct {
	Enabled *bool                  `json:"enabled,omitempty" mapstructure:"enabled"`
	Config  map[string]interface{} `json:"config,omitempty" mapstructure:"config"`
}

// NewPluginsOptions returns a new instance of PluginsOptions.
func NewPluginsOptions() *PluginsOptions {
	return &PluginsOptions{
		Enabled: true,
		Allow:   []string{},
		Deny:    []string{},
		Entries: make(map[string]PluginEntryConfig),
	}
}

// Allowed reports whether the named plugin passes the allow/deny filters
// and its own enabled switch.
func (o *PluginsOptions) Allowed(name string) bool {
	if !o.Enabled {
		return false
	}
	for _, denied := range o.Deny {
		if denied == name {
			return false
		}
	}
	if len(o.Allow) > 0 {
		found := false
		for _, allowed := range o.Allow {
			if allowed == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if entry, ok := o.Entries[name]; ok && entry.Enabled != nil {
		return *entry.Enabled
	}
	return true
}

// EntryConfig returns the per-plugin config map, which may be nil.
func (o *PluginsOptions) EntryConfig(name string) map[string]interface{} {
	if entry, ok := o.Entries[name]; ok {
		return entry.Config
	}
	return nil
}

// Validate checks PluginsOptions fields.
func (o *PluginsOptions) Validate() []error {
	var errs []error

	for _, name := range append(append([]string{}, o.Allow...), o.Deny...) {
		for _, c := range name {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_') {
				errs = append(errs, fmt.Errorf("invalid character %q in plugin name %q", c, name))
				break
			}
		}
	}

	return errs
}

// AddFlags adds flags for the plugins options.
// Only global-level switches are exposed as CLI flags.
// Per-plugin configuration is done via the configuration file.
func (o *PluginsOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "plugins.enabled", o.Enabled, "Enable the plugin system.")
	fs.StringSliceVar(&o.Allow, "plugins.allow", o.Allow, "Plugins explicitly allowed to load.")
	fs.StringSliceVar(&o.Deny, "plugins.deny", o.Deny, "Plugins explicitly denied from loading.")
}
