// Package config carries the resolved running configuration of mnemod.
package config

import (
	"github.com/mnemora/mnemora/internal/mnemod/options"
)

// Config is the running configuration structure of the mnemod service.
type Config struct {
	*options.Options
}

// CreateConfigFromOptions creates a running configuration instance based
// on the given command line options.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	return &Config{opts}, nil
}
