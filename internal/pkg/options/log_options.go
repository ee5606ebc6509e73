package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

// LogOptions configures the process logger.
type LogOptions struct {
	// Level is the minimum level written: debug, info, warn or error.
	Level string `json:"level" mapstructure:"level"`
	// Path is the log file. Empty writes to stderr only.
	Path string `json:"path" mapstructure:"path"`
}

// NewLogOptions creates a LogOptions with default parameters.
func NewLogOptions() *LogOptions {
	return &LogOptions{
		Level: "info",
	}
}

// Validate checks LogOptions fields.
func (o *LogOptions) Validate() []error {
	var errs []error

	switch o.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("--log.level %q must be debug, info, warn or error", o.Level))
	}

	return errs
}

// AddFlags adds flags for the log options.
func (o *LogOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level: debug, info, warn or error.")
	fs.StringVar(&o.Path, "log.path", o.Path, "Log file path. Empty writes to stderr only.")
}
